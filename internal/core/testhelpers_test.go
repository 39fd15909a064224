package core

import (
	"context"
	"sync"
	"testing"
	"time"

	kvmemory "plancore/internal/infra/kv/memory"
)

// testClock returns a deterministic time source that advances one second per
// call, so updatedAt comparisons are strict.
func testClock() func() time.Time {
	base := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		base = base.Add(time.Second)
		return base
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(NewEventBus(nil), nil, testClock())
}

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{WithKV(kvmemory.New()), WithClock(testClock())}, opts...)
	svc, err := NewService(context.Background(), opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}
