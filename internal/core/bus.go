package core

import (
	"sort"
	"sync"

	"plancore/pkg/domain"
)

// EventHandler observes store mutations. Handlers run synchronously on the
// mutating goroutine, in registration order, before control returns to the
// caller that triggered the mutation.
type EventHandler func(Event)

// EventBus fans mutation events out to per-collection listeners. Subscribing
// with domain.WildcardCollection receives every event. A panicking handler is
// recovered and logged; remaining handlers still run.
type EventBus struct {
	mu        sync.Mutex
	nextID    int
	listeners map[Collection][]subscription
	log       Logger
}

type subscription struct {
	id int
	fn EventHandler
}

func NewEventBus(log Logger) *EventBus {
	if log == nil {
		log = noopLogger{}
	}
	return &EventBus{listeners: make(map[Collection][]subscription), log: log}
}

// Subscribe registers fn for events on col and returns an unsubscribe
// function. Unsubscribing twice is harmless. A handler removed while a
// dispatch is in flight still sees events from that dispatch; the snapshot
// taken at emit time is authoritative.
func (b *EventBus) Subscribe(col Collection, fn EventHandler) func() {
	if fn == nil {
		return func() {}
	}
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.listeners[col] = append(b.listeners[col], subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			subs := b.listeners[col]
			for i, s := range subs {
				if s.id == id {
					b.listeners[col] = append(append([]subscription(nil), subs[:i]...), subs[i+1:]...)
					break
				}
			}
		})
	}
}

// Emit dispatches each event to the collection's listeners and to wildcard
// listeners, merged by registration order.
func (b *EventBus) Emit(events ...Event) {
	for _, ev := range events {
		for _, sub := range b.snapshot(ev.Collection) {
			b.dispatch(sub, ev)
		}
	}
}

func (b *EventBus) snapshot(col Collection) []subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	merged := make([]subscription, 0, len(b.listeners[col])+len(b.listeners[domain.WildcardCollection]))
	merged = append(merged, b.listeners[col]...)
	if col != domain.WildcardCollection {
		merged = append(merged, b.listeners[domain.WildcardCollection]...)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].id < merged[j].id })
	return merged
}

func (b *EventBus) dispatch(sub subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panicked", "collection", ev.Collection, "event", ev.Type, "panic", r)
		}
	}()
	sub.fn(ev)
}
