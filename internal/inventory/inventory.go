package inventory

import (
	"context"
	"strings"
	"sync"
	"time"

	"packtrack/internal/model"
)

// Inventory is the single owner of the in-memory boxes and items.
//
// Every mutation is applied to memory first and is complete when the method
// returns; the matching durable write is queued and applied later in call
// order. A failed write is logged and never rolled back: memory stays the
// source of truth for the session.
//
// CreatedAt and Timestamp are stamped in UTC at millisecond precision, the
// resolution both stores persist, and each new stamp is later than every
// existing one in its collection so newest-first order survives a reload.
type Inventory struct {
	store  Store
	logger Logger
	clock  Clock
	idgen  IDGenerator

	mu           sync.RWMutex
	boxes        []model.Box  // newest first
	items        []model.Item // newest first
	currentBoxID string

	writes *writeQueue
	subs   subscribers
}

// New creates an Inventory backed by store. The collections start empty;
// call Load to populate them from the store.
func New(store Store, logger Logger, clock Clock, idgen IDGenerator) *Inventory {
	return &Inventory{
		store:  store,
		logger: logger,
		clock:  clock,
		idgen:  idgen,
		writes: newWriteQueue(logger),
	}
}

// AddBox creates a box named name, makes it the current box and queues it
// for persistence. A name that is empty after trimming is ignored and ok is
// false.
func (inv *Inventory) AddBox(name string) (box model.Box, ok bool) {
	if strings.TrimSpace(name) == "" {
		inv.logger.Debug("add box skipped: empty name")
		return model.Box{}, false
	}

	inv.mu.Lock()
	box = model.Box{
		ID:        inv.idgen.New(),
		Name:      name,
		IsFull:    false,
		CreatedAt: inv.stamp(inv.latestBox()),
	}
	inv.boxes = append([]model.Box{box}, inv.boxes...)
	inv.currentBoxID = box.ID
	inv.putBox(box)
	inv.subs.enqueue(Change{Kind: BoxAdded, ID: box.ID}, Change{Kind: BoxSelected, ID: box.ID})
	inv.mu.Unlock()

	inv.logger.Info("box added", "box_id", box.ID, "name", box.Name)
	inv.subs.deliver()
	return box, true
}

// AddItem creates an item in the box identified by boxID and queues it for
// persistence. Missing draft fields get defaults. If the box does not exist
// nothing happens and ok is false.
func (inv *Inventory) AddItem(boxID string, draft model.ItemDraft) (item model.Item, ok bool) {
	inv.mu.Lock()
	idx := inv.boxIndex(boxID)
	if idx < 0 {
		inv.mu.Unlock()
		inv.logger.Debug("add item skipped: unknown box", "box_id", boxID)
		return model.Item{}, false
	}

	item = model.Item{
		ID:          inv.idgen.New(),
		BoxID:       boxID,
		BoxName:     inv.boxes[idx].Name,
		ImageURL:    draft.ImageURL,
		Name:        draft.Name,
		Description: draft.Description,
		Tags:        append([]string{}, draft.Tags...),
		Timestamp:   inv.stamp(inv.latestItem()),
	}
	if item.Name == "" {
		item.Name = model.DefaultItemName
	}
	inv.items = append([]model.Item{item}, inv.items...)
	inv.putItem(item)
	inv.subs.enqueue(Change{Kind: ItemAdded, ID: item.ID})
	inv.mu.Unlock()

	inv.logger.Info("item added", "item_id", item.ID, "box_id", boxID, "name", item.Name)
	inv.subs.deliver()
	return item.Clone(), true
}

// UpdateBoxStatus sets the sealed flag of a box. Unknown boxes are ignored.
func (inv *Inventory) UpdateBoxStatus(boxID string, isFull bool) {
	inv.mu.Lock()
	idx := inv.boxIndex(boxID)
	if idx < 0 {
		inv.mu.Unlock()
		inv.logger.Debug("update box skipped: unknown box", "box_id", boxID)
		return
	}
	box := inv.boxes[idx]
	box.IsFull = isFull
	inv.boxes[idx] = box
	inv.putBox(box)
	inv.subs.enqueue(Change{Kind: BoxUpdated, ID: boxID})
	inv.mu.Unlock()

	inv.logger.Info("box status updated", "box_id", boxID, "is_full", isFull)
	inv.subs.deliver()
}

// SelectBox points the current box at boxID. The ID is not validated: a
// dangling pointer simply makes CurrentBox report no box. An empty ID clears
// the selection.
func (inv *Inventory) SelectBox(boxID string) {
	inv.mu.Lock()
	inv.currentBoxID = boxID
	inv.subs.enqueue(Change{Kind: BoxSelected, ID: boxID})
	inv.mu.Unlock()

	inv.subs.deliver()
}

// UpdateItem merges patch into the item identified by itemID and queues the
// full updated record for persistence. Unknown items are ignored.
func (inv *Inventory) UpdateItem(itemID string, patch model.ItemPatch) {
	inv.mu.Lock()
	idx := inv.itemIndex(itemID)
	if idx < 0 {
		inv.mu.Unlock()
		inv.logger.Debug("update item skipped: unknown item", "item_id", itemID)
		return
	}
	item := patch.Apply(inv.items[idx])
	inv.items[idx] = item
	inv.putItem(item)
	inv.subs.enqueue(Change{Kind: ItemUpdated, ID: itemID})
	inv.mu.Unlock()

	inv.logger.Info("item updated", "item_id", itemID)
	inv.subs.deliver()
}

// DeleteItem removes the item identified by itemID and queues a durable
// delete. Deleting an unknown ID leaves the collection unchanged.
func (inv *Inventory) DeleteItem(itemID string) {
	inv.mu.Lock()
	kept := inv.items[:0:0]
	for _, item := range inv.items {
		if item.ID != itemID {
			kept = append(kept, item)
		}
	}
	inv.items = kept
	inv.writes.enqueue(writeOp{
		action: "delete",
		table:  TableItems,
		id:     itemID,
		fn: func(ctx context.Context) error {
			return inv.store.Delete(ctx, TableItems, itemID)
		},
	})
	inv.subs.enqueue(Change{Kind: ItemDeleted, ID: itemID})
	inv.mu.Unlock()

	inv.logger.Info("item deleted", "item_id", itemID)
	inv.subs.deliver()
}

// Subscribe registers fn to be called after every applied mutation. Changes
// reach fn one at a time in the order the mutations were applied, even when
// several goroutines mutate at once. fn runs outside the inventory lock and
// may read views or mutate; a mutation made from fn is delivered after fn
// returns. The returned func removes the subscription.
func (inv *Inventory) Subscribe(fn func(Change)) (cancel func()) {
	return inv.subs.add(fn)
}

// Flush waits until every durable write queued so far has been attempted.
func (inv *Inventory) Flush(ctx context.Context) error {
	return inv.writes.flush(ctx)
}

// Pending returns the number of queued durable writes not yet attempted.
func (inv *Inventory) Pending() int {
	return inv.writes.pending()
}

// Close drains the write queue and stops it. Mutations after Close still
// apply in memory but their durable writes are dropped. Close does not close
// the store; its owner does.
func (inv *Inventory) Close(ctx context.Context) error {
	return inv.writes.close(ctx)
}

// putBox queues a durable upsert. Callers hold inv.mu so queue order matches
// mutation order.
func (inv *Inventory) putBox(box model.Box) {
	inv.writes.enqueue(writeOp{
		action: "put",
		table:  TableBoxes,
		id:     box.ID,
		fn: func(ctx context.Context) error {
			return inv.store.PutBox(ctx, box)
		},
	})
}

func (inv *Inventory) putItem(item model.Item) {
	item = item.Clone()
	inv.writes.enqueue(writeOp{
		action: "put",
		table:  TableItems,
		id:     item.ID,
		fn: func(ctx context.Context) error {
			return inv.store.PutItem(ctx, item)
		},
	})
}

// stamp returns the clock's time truncated to the millisecond in UTC, moved
// to one millisecond past latest when it would not sort after it. Callers
// hold inv.mu.
func (inv *Inventory) stamp(latest time.Time) time.Time {
	now := inv.clock.Now().UTC().Truncate(time.Millisecond)
	if !latest.IsZero() && !now.After(latest) {
		now = latest.UTC().Truncate(time.Millisecond).Add(time.Millisecond)
	}
	return now
}

func (inv *Inventory) latestBox() time.Time {
	var latest time.Time
	for i := range inv.boxes {
		if inv.boxes[i].CreatedAt.After(latest) {
			latest = inv.boxes[i].CreatedAt
		}
	}
	return latest
}

func (inv *Inventory) latestItem() time.Time {
	var latest time.Time
	for i := range inv.items {
		if inv.items[i].Timestamp.After(latest) {
			latest = inv.items[i].Timestamp
		}
	}
	return latest
}

func (inv *Inventory) boxIndex(id string) int {
	for i := range inv.boxes {
		if inv.boxes[i].ID == id {
			return i
		}
	}
	return -1
}

func (inv *Inventory) itemIndex(id string) int {
	for i := range inv.items {
		if inv.items[i].ID == id {
			return i
		}
	}
	return -1
}
