package inventory

import (
	"context"
	"sync"
)

// writeOp is one durable operation waiting in the queue. A barrier op has no
// fn and only signals that everything before it has been attempted.
type writeOp struct {
	action  string
	table   Table
	id      string
	fn      func(ctx context.Context) error
	barrier chan struct{}
}

// writeQueue applies durable operations in enqueue order on a single worker
// goroutine. Enqueue never blocks: the queue is unbounded, so a stalled store
// makes it grow instead of slowing down mutations.
type writeQueue struct {
	logger Logger
	mu     sync.Mutex
	cond   *sync.Cond
	ops    []writeOp
	closed bool
	done   chan struct{}
}

func newWriteQueue(logger Logger) *writeQueue {
	q := &writeQueue{
		logger: logger,
		done:   make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

// enqueue adds op to the tail of the queue. It reports false when the queue
// has been closed and the op was dropped.
func (q *writeQueue) enqueue(op writeOp) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.logger.Warn("durable write dropped after close", "action", op.action, "table", string(op.table), "id", op.id)
		return false
	}
	q.ops = append(q.ops, op)
	q.cond.Signal()
	q.mu.Unlock()
	return true
}

// flush waits until every op enqueued before the call has been attempted.
func (q *writeQueue) flush(ctx context.Context) error {
	barrier := make(chan struct{})

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		select {
		case <-q.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	q.ops = append(q.ops, writeOp{barrier: barrier})
	q.cond.Signal()
	q.mu.Unlock()

	select {
	case <-barrier:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close stops accepting ops and waits for the worker to drain the queue.
func (q *writeQueue) close(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()

	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pending returns the number of durable ops not yet attempted.
func (q *writeQueue) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, op := range q.ops {
		if op.barrier == nil {
			n++
		}
	}
	return n
}

func (q *writeQueue) run() {
	defer close(q.done)

	for {
		q.mu.Lock()
		for len(q.ops) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.ops) == 0 {
			q.mu.Unlock()
			return
		}
		op := q.ops[0]
		q.ops[0] = writeOp{}
		q.ops = q.ops[1:]
		q.mu.Unlock()

		if op.barrier != nil {
			close(op.barrier)
			continue
		}

		if err := op.fn(context.Background()); err != nil {
			q.logger.Error("durable write failed", "action", op.action, "table", string(op.table), "id", op.id, "error", err)
			continue
		}
		q.logger.Debug("durable write applied", "action", op.action, "table", string(op.table), "id", op.id)
	}
}
