package blob

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"packtrack/internal/inventory"
	"packtrack/internal/model"
	"packtrack/internal/store/codec"
)

// Store implements inventory.Store over a Storage. Each collection lives
// under one key as a JSON array and is rewritten in full on every put or
// delete. The mutex serialises read-modify-write cycles within a process.
type Store struct {
	storage Storage

	mu     sync.Mutex
	closed bool
}

// NewStore creates a Store over storage.
func NewStore(storage Storage) *Store {
	return &Store{storage: storage}
}

// PutBox upserts box into the boxes document.
func (s *Store) PutBox(ctx context.Context, box model.Box) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(); err != nil {
		return err
	}
	boxes, err := s.readBoxes(ctx)
	if err != nil {
		return err
	}

	replaced := false
	for i := range boxes {
		if boxes[i].ID == box.ID {
			boxes[i] = box
			replaced = true
			break
		}
	}
	if !replaced {
		boxes = append(boxes, box)
	}
	return s.writeBoxes(ctx, boxes)
}

// PutItem upserts item into the items document.
func (s *Store) PutItem(ctx context.Context, item model.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(); err != nil {
		return err
	}
	items, err := s.readItems(ctx)
	if err != nil {
		return err
	}

	replaced := false
	for i := range items {
		if items[i].ID == item.ID {
			items[i] = item
			replaced = true
			break
		}
	}
	if !replaced {
		items = append(items, item)
	}
	return s.writeItems(ctx, items)
}

func (s *Store) GetAllBoxes(ctx context.Context) ([]model.Box, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(); err != nil {
		return nil, err
	}
	return s.readBoxes(ctx)
}

func (s *Store) GetAllItems(ctx context.Context) ([]model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(); err != nil {
		return nil, err
	}
	return s.readItems(ctx)
}

// Delete removes the record from its collection document. A missing record
// leaves the document untouched.
func (s *Store) Delete(ctx context.Context, table inventory.Table, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(); err != nil {
		return err
	}

	switch table {
	case inventory.TableBoxes:
		boxes, err := s.readBoxes(ctx)
		if err != nil {
			return err
		}
		kept := boxes[:0]
		for _, b := range boxes {
			if b.ID != id {
				kept = append(kept, b)
			}
		}
		if len(kept) == len(boxes) {
			return nil
		}
		return s.writeBoxes(ctx, kept)
	case inventory.TableItems:
		items, err := s.readItems(ctx)
		if err != nil {
			return err
		}
		kept := items[:0]
		for _, it := range items {
			if it.ID != id {
				kept = append(kept, it)
			}
		}
		if len(kept) == len(items) {
			return nil
		}
		return s.writeItems(ctx, kept)
	default:
		return fmt.Errorf("unknown table: %s", table)
	}
}

// Close marks the store closed. The underlying Storage needs no cleanup.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) check() error {
	if s.closed {
		return fmt.Errorf("blob store closed: %w", inventory.ErrStorageUnavailable)
	}
	return nil
}

func (s *Store) readBoxes(ctx context.Context) ([]model.Box, error) {
	data, found, err := s.storage.Get(ctx, KeyBoxes)
	if err != nil {
		return nil, storageErr("reading boxes", err)
	}
	if !found {
		return []model.Box{}, nil
	}
	return codec.DecodeBoxes(data)
}

func (s *Store) readItems(ctx context.Context) ([]model.Item, error) {
	data, found, err := s.storage.Get(ctx, KeyItems)
	if err != nil {
		return nil, storageErr("reading items", err)
	}
	if !found {
		return []model.Item{}, nil
	}
	return codec.DecodeItems(data)
}

func (s *Store) writeBoxes(ctx context.Context, boxes []model.Box) error {
	data, err := codec.EncodeBoxes(boxes)
	if err != nil {
		return err
	}
	if err := s.storage.Set(ctx, KeyBoxes, data); err != nil {
		return storageErr("writing boxes", err)
	}
	return nil
}

func (s *Store) writeItems(ctx context.Context, items []model.Item) error {
	data, err := codec.EncodeItems(items)
	if err != nil {
		return err
	}
	if err := s.storage.Set(ctx, KeyItems, data); err != nil {
		return storageErr("writing items", err)
	}
	return nil
}

// storageErr classifies a backend failure as unavailability unless it
// already carries a more specific sentinel.
func storageErr(op string, err error) error {
	if errors.Is(err, inventory.ErrMalformedData) || errors.Is(err, inventory.ErrStorageUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, inventory.ErrStorageUnavailable, err)
}

// Compile-time check that Store implements inventory.Store interface
var _ inventory.Store = (*Store)(nil)
