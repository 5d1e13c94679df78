package inventory

import (
	"sort"

	"packtrack/internal/model"
)

// Views are computed from the current collections on every call and return
// copies, so callers can never mutate inventory state through them.

// Boxes returns all boxes, newest first by CreatedAt.
func (inv *Inventory) Boxes() []model.Box {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	out := append([]model.Box{}, inv.boxes...)
	sortBoxes(out)
	return out
}

// Items returns all items, newest first by Timestamp.
func (inv *Inventory) Items() []model.Item {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	return inv.filterItems(func(model.Item) bool { return true })
}

// Box returns the box with the given ID.
func (inv *Inventory) Box(id string) (model.Box, bool) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	if idx := inv.boxIndex(id); idx >= 0 {
		return inv.boxes[idx], true
	}
	return model.Box{}, false
}

// Item returns the item with the given ID.
func (inv *Inventory) Item(id string) (model.Item, bool) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	if idx := inv.itemIndex(id); idx >= 0 {
		return inv.items[idx].Clone(), true
	}
	return model.Item{}, false
}

// CurrentBoxID returns the raw current-box pointer, which may be empty or
// refer to a box that does not exist.
func (inv *Inventory) CurrentBoxID() string {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return inv.currentBoxID
}

// CurrentBox resolves the current-box pointer. It reports false when nothing
// is selected or the pointer dangles.
func (inv *Inventory) CurrentBox() (model.Box, bool) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	if inv.currentBoxID == "" {
		return model.Box{}, false
	}
	if idx := inv.boxIndex(inv.currentBoxID); idx >= 0 {
		return inv.boxes[idx], true
	}
	return model.Box{}, false
}

// ItemsInCurrentBox returns the items of the current box, newest first. The
// result is empty when no box is selected.
func (inv *Inventory) ItemsInCurrentBox() []model.Item {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	if inv.currentBoxID == "" {
		return []model.Item{}
	}
	current := inv.currentBoxID
	return inv.filterItems(func(it model.Item) bool { return it.BoxID == current })
}

// ItemsInBox returns the items whose BoxID is boxID, newest first.
func (inv *Inventory) ItemsInBox(boxID string) []model.Item {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	return inv.filterItems(func(it model.Item) bool { return it.BoxID == boxID })
}

// ItemsByID returns the inventory's own copies of the items named by ids, in
// the order of ids. Unknown and repeated IDs are skipped.
func (inv *Inventory) ItemsByID(ids []string) []model.Item {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	out := make([]model.Item, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if idx := inv.itemIndex(id); idx >= 0 {
			out = append(out, inv.items[idx].Clone())
		}
	}
	return out
}

// filterItems must be called with inv.mu held.
func (inv *Inventory) filterItems(keep func(model.Item) bool) []model.Item {
	out := []model.Item{}
	for _, it := range inv.items {
		if keep(it) {
			out = append(out, it.Clone())
		}
	}
	sortItems(out)
	return out
}

// sortBoxes orders newest first. The sort is stable so boxes with equal
// CreatedAt keep their insertion recency.
func sortBoxes(boxes []model.Box) {
	sort.SliceStable(boxes, func(i, j int) bool {
		return boxes[i].CreatedAt.After(boxes[j].CreatedAt)
	})
}

func sortItems(items []model.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Timestamp.After(items[j].Timestamp)
	})
}
