package core

import (
	"testing"

	"plancore/pkg/domain"
)

func TestEventBusDispatchOrder(t *testing.T) {
	bus := NewEventBus(nil)
	var calls []string
	bus.Subscribe(CollectionUsers, func(Event) { calls = append(calls, "first") })
	bus.Subscribe(domain.WildcardCollection, func(Event) { calls = append(calls, "wildcard") })
	bus.Subscribe(CollectionUsers, func(Event) { calls = append(calls, "second") })

	bus.Emit(Event{Type: EventCreated, Collection: CollectionUsers, ID: "u1"})

	want := []string{"first", "wildcard", "second"}
	if len(calls) != len(want) {
		t.Fatalf("got %d calls, want %d: %v", len(calls), len(want), calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("call %d = %q, want %q (full order %v)", i, calls[i], want[i], calls)
		}
	}
}

func TestEventBusCollectionFiltering(t *testing.T) {
	bus := NewEventBus(nil)
	var userEvents, taskEvents, all int
	bus.Subscribe(CollectionUsers, func(Event) { userEvents++ })
	bus.Subscribe(CollectionTasks, func(Event) { taskEvents++ })
	bus.Subscribe(domain.WildcardCollection, func(Event) { all++ })

	bus.Emit(
		Event{Type: EventCreated, Collection: CollectionUsers, ID: "u1"},
		Event{Type: EventCreated, Collection: CollectionUsers, ID: "u2"},
		Event{Type: EventDeleted, Collection: CollectionTasks, ID: "t1"},
	)

	if userEvents != 2 || taskEvents != 1 || all != 3 {
		t.Fatalf("userEvents=%d taskEvents=%d all=%d", userEvents, taskEvents, all)
	}
}

func TestEventBusPanickingHandlerIsIsolated(t *testing.T) {
	bus := NewEventBus(nil)
	var survived bool
	bus.Subscribe(CollectionUsers, func(Event) { panic("listener bug") })
	bus.Subscribe(CollectionUsers, func(Event) { survived = true })

	bus.Emit(Event{Type: EventCreated, Collection: CollectionUsers, ID: "u1"})

	if !survived {
		t.Fatal("handler after the panicking one did not run")
	}
}

func TestEventBusUnsubscribeDuringDispatch(t *testing.T) {
	bus := NewEventBus(nil)
	var first, second int
	var unsubscribe func()
	unsubscribe = bus.Subscribe(CollectionUsers, func(Event) {
		first++
		unsubscribe()
	})
	bus.Subscribe(CollectionUsers, func(Event) { second++ })

	bus.Emit(Event{Type: EventCreated, Collection: CollectionUsers, ID: "u1"})
	bus.Emit(Event{Type: EventCreated, Collection: CollectionUsers, ID: "u2"})

	if first != 1 {
		t.Fatalf("self-unsubscribing handler ran %d times, want 1", first)
	}
	if second != 2 {
		t.Fatalf("remaining handler ran %d times, want 2", second)
	}
	unsubscribe() // second call is a no-op
}
