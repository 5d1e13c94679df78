package memory

import (
	"context"
	"fmt"
	"sync"

	"packtrack/internal/inventory"
	"packtrack/internal/model"
)

// Store is an in-memory implementation of the inventory.Store interface.
// Records are copied in and out so callers never share memory with it.
// This implementation is safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	boxes       map[string]model.Box  // box ID -> box
	items       map[string]model.Item // item ID -> item
	unavailable bool
	closed      bool
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		boxes: make(map[string]model.Box),
		items: make(map[string]model.Item),
	}
}

// SetUnavailable makes every subsequent operation fail with
// inventory.ErrStorageUnavailable until it is called again with false.
func (s *Store) SetUnavailable(unavailable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unavailable = unavailable
}

// check must be called with s.mu held.
func (s *Store) check() error {
	if s.closed {
		return fmt.Errorf("memory store closed: %w", inventory.ErrStorageUnavailable)
	}
	if s.unavailable {
		return fmt.Errorf("memory store offline: %w", inventory.ErrStorageUnavailable)
	}
	return nil
}

// PutBox upserts a box by ID.
func (s *Store) PutBox(_ context.Context, box model.Box) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(); err != nil {
		return err
	}
	s.boxes[box.ID] = box
	return nil
}

// PutItem upserts an item by ID.
func (s *Store) PutItem(_ context.Context, item model.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(); err != nil {
		return err
	}
	s.items[item.ID] = item.Clone()
	return nil
}

// GetAllBoxes returns every stored box in unspecified order.
func (s *Store) GetAllBoxes(_ context.Context) ([]model.Box, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.check(); err != nil {
		return nil, err
	}
	out := make([]model.Box, 0, len(s.boxes))
	for _, b := range s.boxes {
		out = append(out, b)
	}
	return out, nil
}

// GetAllItems returns every stored item in unspecified order.
func (s *Store) GetAllItems(_ context.Context) ([]model.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.check(); err != nil {
		return nil, err
	}
	out := make([]model.Item, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, it.Clone())
	}
	return out, nil
}

// Delete removes a record by ID. Missing records are not an error.
func (s *Store) Delete(_ context.Context, table inventory.Table, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(); err != nil {
		return err
	}
	switch table {
	case inventory.TableBoxes:
		delete(s.boxes, id)
	case inventory.TableItems:
		delete(s.items, id)
	default:
		return fmt.Errorf("unknown table: %s", table)
	}
	return nil
}

// Close marks the store closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Compile-time check that Store implements inventory.Store interface
var _ inventory.Store = (*Store)(nil)
