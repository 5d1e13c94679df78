package inventory

import (
	"context"
	"errors"
	"fmt"

	"packtrack/internal/model"
)

// Load replaces the in-memory collections with the contents of the store.
//
// Boxes and items load independently. A collection that cannot be read is
// logged and left empty while the other one still loads; the returned error
// joins the failures so the caller can report them. The current-box pointer
// is kept as is.
func (inv *Inventory) Load(ctx context.Context) error {
	var errs []error

	boxes, err := inv.store.GetAllBoxes(ctx)
	if err != nil {
		inv.logger.Error("loading boxes failed", "error", err)
		errs = append(errs, fmt.Errorf("loading boxes: %w", err))
		boxes = nil
	}

	items, err := inv.store.GetAllItems(ctx)
	if err != nil {
		inv.logger.Error("loading items failed", "error", err)
		errs = append(errs, fmt.Errorf("loading items: %w", err))
		items = nil
	}

	loadedBoxes := append([]model.Box{}, boxes...)
	sortBoxes(loadedBoxes)
	loadedItems := make([]model.Item, 0, len(items))
	for _, it := range items {
		if it.Tags == nil {
			it.Tags = []string{}
		}
		loadedItems = append(loadedItems, it.Clone())
	}
	sortItems(loadedItems)

	inv.mu.Lock()
	inv.boxes = loadedBoxes
	inv.items = loadedItems
	inv.subs.enqueue(Change{Kind: Loaded})
	inv.mu.Unlock()

	inv.logger.Info("inventory loaded", "boxes", len(loadedBoxes), "items", len(loadedItems))
	inv.subs.deliver()
	return errors.Join(errs...)
}
