package cache

import (
	"context"
	"sync"
)

// PendingInvalidations queues cache invalidation work raised inside a
// database transaction. Dropping keys before the transaction commits leaves
// a window where a concurrent read re-caches the pre-commit row, so the
// queue is flushed only once the write is visible to other readers.
type PendingInvalidations struct {
	mu  sync.Mutex
	fns []func(context.Context)
}

func (p *PendingInvalidations) Add(fn func(context.Context)) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fns = append(p.fns, fn)
}

// Flush runs and drains the queued invalidations.
func (p *PendingInvalidations) Flush(ctx context.Context) {
	if p == nil {
		return
	}
	p.mu.Lock()
	fns := p.fns
	p.fns = nil
	p.mu.Unlock()

	for _, fn := range fns {
		fn(ctx)
	}
}
