package inventory

import (
	"slices"
	"sync"
)

// ChangeKind identifies what an applied mutation did.
type ChangeKind string

const (
	BoxAdded    ChangeKind = "box_added"
	BoxUpdated  ChangeKind = "box_updated"
	BoxSelected ChangeKind = "box_selected"
	ItemAdded   ChangeKind = "item_added"
	ItemUpdated ChangeKind = "item_updated"
	ItemDeleted ChangeKind = "item_deleted"
	Loaded      ChangeKind = "loaded"
)

// Change is published to subscribers after a mutation has been applied in
// memory. ID is the affected box or item, empty for Loaded.
type Change struct {
	Kind ChangeKind
	ID   string
}

// subscribers delivers changes in the order mutations applied them. Changes
// are queued while the inventory lock is held and handed out one at a time
// by whichever caller is delivering; a mutation made from inside a
// subscriber is queued behind the change being delivered.
type subscribers struct {
	mu         sync.Mutex
	next       int
	fns        map[int]func(Change)
	queue      []Change
	delivering bool
}

func (s *subscribers) add(fn func(Change)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fns == nil {
		s.fns = make(map[int]func(Change))
	}
	id := s.next
	s.next++
	s.fns[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.fns, id)
			s.mu.Unlock()
		})
	}
}

// enqueue must be called with the inventory lock held.
func (s *subscribers) enqueue(cs ...Change) {
	s.mu.Lock()
	s.queue = append(s.queue, cs...)
	s.mu.Unlock()
}

// deliver runs subscribers for every queued change. It returns at once when
// another caller is already delivering, since that caller drains the queue.
func (s *subscribers) deliver() {
	s.mu.Lock()
	if s.delivering {
		s.mu.Unlock()
		return
	}
	s.delivering = true
	defer func() {
		s.delivering = false
		s.mu.Unlock()
	}()

	for len(s.queue) > 0 {
		c := s.queue[0]
		s.queue = s.queue[1:]
		fns := s.snapshot()

		s.mu.Unlock()
		for _, fn := range fns {
			fn(c)
		}
		s.mu.Lock()
	}
}

// snapshot returns the subscribers in subscription order. s.mu must be held.
func (s *subscribers) snapshot() []func(Change) {
	ids := make([]int, 0, len(s.fns))
	for id := range s.fns {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(Change), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.fns[id])
	}
	return fns
}
