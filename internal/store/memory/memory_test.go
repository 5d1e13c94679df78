package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"packtrack/internal/inventory"
	"packtrack/internal/model"
)

func TestStore_PutAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	box := model.Box{ID: "b1", Name: "Kitchen", CreatedAt: time.UnixMilli(1000)}
	if err := s.PutBox(ctx, box); err != nil {
		t.Fatalf("PutBox() error = %v", err)
	}

	// Upsert replaces the record with the same ID
	box.IsFull = true
	if err := s.PutBox(ctx, box); err != nil {
		t.Fatalf("PutBox() second call error = %v", err)
	}

	boxes, err := s.GetAllBoxes(ctx)
	if err != nil {
		t.Fatalf("GetAllBoxes() error = %v", err)
	}
	if len(boxes) != 1 {
		t.Fatalf("GetAllBoxes() len = %d, want 1", len(boxes))
	}
	if !boxes[0].IsFull {
		t.Error("GetAllBoxes() returned stale box, want IsFull = true")
	}
}

func TestStore_ItemsAreCopied(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	item := model.Item{ID: "i1", BoxID: "b1", Name: "Mug", Tags: []string{"kitchen"}}
	if err := s.PutItem(ctx, item); err != nil {
		t.Fatalf("PutItem() error = %v", err)
	}

	// Mutating the caller's slice must not leak into the store
	item.Tags[0] = "changed"

	items, err := s.GetAllItems(ctx)
	if err != nil {
		t.Fatalf("GetAllItems() error = %v", err)
	}
	if got := items[0].Tags[0]; got != "kitchen" {
		t.Errorf("stored tag = %q, want %q", got, "kitchen")
	}

	items[0].Tags[0] = "changed again"
	again, _ := s.GetAllItems(ctx)
	if got := again[0].Tags[0]; got != "kitchen" {
		t.Errorf("stored tag after read mutation = %q, want %q", got, "kitchen")
	}
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		table   inventory.Table
		id      string
		wantErr bool
	}{
		{name: "existing item", table: inventory.TableItems, id: "i1"},
		{name: "missing item", table: inventory.TableItems, id: "nope"},
		{name: "existing box", table: inventory.TableBoxes, id: "b1"},
		{name: "unknown table", table: inventory.Table("rooms"), id: "x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			_ = s.PutBox(ctx, model.Box{ID: "b1", Name: "Garage"})
			_ = s.PutItem(ctx, model.Item{ID: "i1", BoxID: "b1"})

			err := s.Delete(ctx, tt.table, tt.id)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Delete() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			boxes, _ := s.GetAllBoxes(ctx)
			items, _ := s.GetAllItems(ctx)
			for _, b := range boxes {
				if tt.table == inventory.TableBoxes && b.ID == tt.id {
					t.Errorf("box %q still present after Delete()", tt.id)
				}
			}
			for _, it := range items {
				if tt.table == inventory.TableItems && it.ID == tt.id {
					t.Errorf("item %q still present after Delete()", tt.id)
				}
			}
		})
	}
}

func TestStore_Unavailable(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	s.SetUnavailable(true)

	if err := s.PutBox(ctx, model.Box{ID: "b1"}); !errors.Is(err, inventory.ErrStorageUnavailable) {
		t.Errorf("PutBox() error = %v, want ErrStorageUnavailable", err)
	}
	if _, err := s.GetAllItems(ctx); !errors.Is(err, inventory.ErrStorageUnavailable) {
		t.Errorf("GetAllItems() error = %v, want ErrStorageUnavailable", err)
	}

	s.SetUnavailable(false)
	if err := s.PutBox(ctx, model.Box{ID: "b1"}); err != nil {
		t.Errorf("PutBox() after recovery error = %v", err)
	}
}

func TestStore_Close(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := s.GetAllBoxes(ctx); !errors.Is(err, inventory.ErrStorageUnavailable) {
		t.Errorf("GetAllBoxes() after Close error = %v, want ErrStorageUnavailable", err)
	}
}
