package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"packtrack/internal/inventory"
	"packtrack/internal/model"
	"packtrack/internal/store/memory"
)

// NewTestStore creates a new in-memory store that is closed when the test
// completes.
func NewTestStore(t *testing.T) *memory.Store {
	t.Helper()

	s := memory.NewStore()
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

// NewTestInventory creates an Inventory over store with a ticking clock and
// sequential IDs. The write queue is drained and closed when the test ends.
func NewTestInventory(t *testing.T, store inventory.Store) *inventory.Inventory {
	t.Helper()

	inv := inventory.New(store, inventory.NewNopLogger(), NewTickingClock(time.Second), NewStubIDGenerator())
	t.Cleanup(func() {
		inv.Close(context.Background())
	})
	return inv
}

// StoreCall records one operation seen by a RecordingStore.
type StoreCall struct {
	Op    string // "put_box", "put_item", "delete"
	Table inventory.Table
	ID    string
}

// RecordingStore wraps a Store and records every write in the order it was
// applied. An optional Gate blocks writes until it is closed.
type RecordingStore struct {
	inventory.Store

	Gate chan struct{}

	mu    sync.Mutex
	calls []StoreCall
}

// NewRecordingStore wraps inner.
func NewRecordingStore(inner inventory.Store) *RecordingStore {
	return &RecordingStore{Store: inner}
}

func (r *RecordingStore) wait(ctx context.Context) error {
	if r.Gate == nil {
		return nil
	}
	select {
	case <-r.Gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *RecordingStore) record(c StoreCall) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

func (r *RecordingStore) PutBox(ctx context.Context, box model.Box) error {
	if err := r.wait(ctx); err != nil {
		return err
	}
	r.record(StoreCall{Op: "put_box", Table: inventory.TableBoxes, ID: box.ID})
	return r.Store.PutBox(ctx, box)
}

func (r *RecordingStore) PutItem(ctx context.Context, item model.Item) error {
	if err := r.wait(ctx); err != nil {
		return err
	}
	r.record(StoreCall{Op: "put_item", Table: inventory.TableItems, ID: item.ID})
	return r.Store.PutItem(ctx, item)
}

func (r *RecordingStore) Delete(ctx context.Context, table inventory.Table, id string) error {
	if err := r.wait(ctx); err != nil {
		return err
	}
	r.record(StoreCall{Op: "delete", Table: table, ID: id})
	return r.Store.Delete(ctx, table, id)
}

// Calls returns a copy of the recorded writes.
func (r *RecordingStore) Calls() []StoreCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]StoreCall{}, r.calls...)
}

// CapturingLogger records Error and Warn messages. Safe for concurrent use.
type CapturingLogger struct {
	inventory.NopLogger

	mu       sync.Mutex
	errors   []string
	warnings []string
}

func (l *CapturingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warnings = append(l.warnings, msg)
}

func (l *CapturingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

// Errors returns the captured error messages.
func (l *CapturingLogger) Errors() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string{}, l.errors...)
}

// Warnings returns the captured warning messages.
func (l *CapturingLogger) Warnings() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string{}, l.warnings...)
}
