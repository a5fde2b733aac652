package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPendingInvalidationsDeferUntilFlush(t *testing.T) {
	helper, _ := newTestCache(t)
	ctx := context.Background()

	helper.Set(ctx, "pair:student-1:1", cachedValue{Name: "pre-write"}, time.Minute)

	pending := &PendingInvalidations{}
	pending.Add(func(ctx context.Context) {
		SafeDelete(ctx, helper, "pair:student-1:1")
	})

	// A read between the queued drop and the flush still sees the key; the
	// drop must not run before the surrounding write commits.
	var got cachedValue
	if err := helper.Get(ctx, "pair:student-1:1", &got); err != nil {
		t.Fatalf("key must survive until flush: %v", err)
	}

	pending.Flush(ctx)
	if err := helper.Get(ctx, "pair:student-1:1", &got); !errors.Is(err, ErrCacheNotFound) {
		t.Errorf("flushed key should be gone, got %v", err)
	}
}

func TestPendingInvalidationsFlushDrains(t *testing.T) {
	helper, _ := newTestCache(t)
	ctx := context.Background()

	pending := &PendingInvalidations{}
	pending.Add(func(ctx context.Context) {
		SafeDelete(ctx, helper, "pair:student-1:1")
	})
	pending.Flush(ctx)

	helper.Set(ctx, "pair:student-1:1", cachedValue{Name: "fresh"}, time.Minute)
	pending.Flush(ctx)

	var got cachedValue
	if err := helper.Get(ctx, "pair:student-1:1", &got); err != nil {
		t.Errorf("a drained queue must not re-run old invalidations: %v", err)
	}
}

func TestPendingInvalidationsNilReceiver(t *testing.T) {
	var pending *PendingInvalidations
	pending.Add(func(context.Context) {})
	pending.Flush(context.Background())
}
