package inventory

import (
	"context"
	"errors"

	"packtrack/internal/model"
)

// Table names a record table in the durable store.
type Table string

const (
	TableBoxes Table = "boxes"
	TableItems Table = "items"
)

var (
	// ErrStorageUnavailable is returned by a Store that has not finished
	// initializing, has been closed, or cannot reach its backend.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrMalformedData is returned when persisted records cannot be decoded.
	ErrMalformedData = errors.New("malformed persisted data")
)

// Store is the durable backing for the inventory. Every record is addressed
// by its own ID and every operation is independent: there is no atomicity
// across tables or across calls.
type Store interface {
	// PutBox upserts a box by ID.
	PutBox(ctx context.Context, box model.Box) error

	// PutItem upserts an item by ID.
	PutItem(ctx context.Context, item model.Item) error

	// GetAllBoxes returns every stored box. Order is unspecified.
	GetAllBoxes(ctx context.Context) ([]model.Box, error)

	// GetAllItems returns every stored item. Order is unspecified.
	GetAllItems(ctx context.Context) ([]model.Item, error)

	// Delete removes the record with the given ID from table.
	// Deleting a missing record succeeds.
	Delete(ctx context.Context, table Table, id string) error

	// Close releases the backend. Operations after Close fail with
	// ErrStorageUnavailable.
	Close() error
}
