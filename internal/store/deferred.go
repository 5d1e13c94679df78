package store

import (
	"context"
	"fmt"
	"sync"

	"packtrack/internal/inventory"
	"packtrack/internal/model"
)

// OpenFunc opens a backend. It runs once, on its own goroutine.
type OpenFunc func(ctx context.Context) (inventory.Store, error)

// Deferred is an inventory.Store whose backend opens in the background.
// Until the open completes every operation fails fast with
// inventory.ErrStorageUnavailable; if the open failed they keep failing,
// wrapping the cause. No operation ever waits for the open.
type Deferred struct {
	ready chan struct{}

	mu      sync.Mutex
	backend inventory.Store
	openErr error
	closed  bool
}

// NewDeferred starts open in the background and returns immediately.
func NewDeferred(ctx context.Context, open OpenFunc) *Deferred {
	d := &Deferred{ready: make(chan struct{})}
	go d.run(ctx, open)
	return d
}

func (d *Deferred) run(ctx context.Context, open OpenFunc) {
	s, err := open(ctx)

	d.mu.Lock()
	if err == nil && d.closed {
		// Closed while opening: nobody will use the backend
		s.Close()
		s = nil
	}
	d.backend = s
	d.openErr = err
	d.mu.Unlock()

	close(d.ready)
}

// Ready returns a channel that is closed once the open has finished,
// successfully or not.
func (d *Deferred) Ready() <-chan struct{} {
	return d.ready
}

// Err returns the open error. It is nil before Ready is closed.
func (d *Deferred) Err() error {
	select {
	case <-d.ready:
	default:
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.openErr
}

// Wait blocks until the open has finished or ctx ends and returns the open
// error.
func (d *Deferred) Wait(ctx context.Context) error {
	select {
	case <-d.ready:
		return d.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Backend returns the opened store, if any.
func (d *Deferred) Backend() (inventory.Store, bool) {
	s, err := d.get()
	return s, err == nil
}

func (d *Deferred) get() (inventory.Store, error) {
	select {
	case <-d.ready:
	default:
		return nil, fmt.Errorf("store still opening: %w", inventory.ErrStorageUnavailable)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	switch {
	case d.closed:
		return nil, fmt.Errorf("store closed: %w", inventory.ErrStorageUnavailable)
	case d.openErr != nil:
		return nil, fmt.Errorf("store failed to open: %w: %w", inventory.ErrStorageUnavailable, d.openErr)
	}
	return d.backend, nil
}

func (d *Deferred) PutBox(ctx context.Context, box model.Box) error {
	s, err := d.get()
	if err != nil {
		return err
	}
	return s.PutBox(ctx, box)
}

func (d *Deferred) PutItem(ctx context.Context, item model.Item) error {
	s, err := d.get()
	if err != nil {
		return err
	}
	return s.PutItem(ctx, item)
}

func (d *Deferred) GetAllBoxes(ctx context.Context) ([]model.Box, error) {
	s, err := d.get()
	if err != nil {
		return nil, err
	}
	return s.GetAllBoxes(ctx)
}

func (d *Deferred) GetAllItems(ctx context.Context) ([]model.Item, error) {
	s, err := d.get()
	if err != nil {
		return nil, err
	}
	return s.GetAllItems(ctx)
}

func (d *Deferred) Delete(ctx context.Context, table inventory.Table, id string) error {
	s, err := d.get()
	if err != nil {
		return err
	}
	return s.Delete(ctx, table, id)
}

// Close closes the backend if it is open. A backend that finishes opening
// after Close is closed immediately.
func (d *Deferred) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	if d.backend != nil {
		return d.backend.Close()
	}
	return nil
}

var _ inventory.Store = (*Deferred)(nil)
