package sesstore

import (
	"context"
	"testing"
	"time"
)

func collectEvents(ch <-chan Event, n int, timeout time.Duration) []Event {
	out := make([]Event, 0, n)
	deadline := time.After(timeout)
	for len(out) < n {
		select {
		case ev := <-ch:
			out = append(out, ev)
		case <-deadline:
			return out
		}
	}
	return out
}

func TestLifecycleEventsEmitted(t *testing.T) {
	clock := newFakeClock()
	sink := NewChannelSink(32)

	cfg := DefaultConfig()
	cfg.Now = clock.Now
	cfg.Events = EventsConfig{Enabled: true, BufferSize: 32, Sink: sink}

	store, err := New(NewMemoryTable(), cfg)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	ctx := context.Background()
	id, err := store.Create(ctx, []byte("x"), time.Minute)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Touch(ctx, id, time.Hour); err != nil {
		t.Fatalf("touch: %v", err)
	}
	if err := store.Update(ctx, id, []byte("y")); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := store.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	store.Close() // drains the dispatcher

	events := collectEvents(sink.Events(), 4, 2*time.Second)
	want := []EventType{EventCreated, EventTouched, EventUpdated, EventDeleted}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(events))
	}
	for i, typ := range want {
		if events[i].Type != typ {
			t.Fatalf("event %d: expected %s, got %s", i, typ, events[i].Type)
		}
		if events[i].SessionID != id {
			t.Fatalf("event %d: expected session %s, got %s", i, id, events[i].SessionID)
		}
	}
}

func TestSweepEmitsExpiredEvents(t *testing.T) {
	clock := newFakeClock()
	sink := NewChannelSink(32)

	cfg := DefaultConfig()
	cfg.Now = clock.Now
	cfg.Events = EventsConfig{Enabled: true, BufferSize: 32, Sink: sink}

	store, err := New(NewMemoryTable(), cfg)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	ctx := context.Background()
	id, err := store.Create(ctx, []byte("x"), time.Minute)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	clock.Advance(2 * time.Minute)

	sweeper := NewSweeper(store)
	if _, err := sweeper.RunOnce(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	store.Close()

	events := collectEvents(sink.Events(), 2, 2*time.Second)
	if len(events) != 2 {
		t.Fatalf("expected created+expired, got %d events", len(events))
	}
	if events[1].Type != EventExpired || events[1].SessionID != id {
		t.Fatalf("expected expired event for %s, got %+v", id, events[1])
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	// A sink that never returns: with DropIfFull every emit beyond the
	// buffer is counted, none block.
	d := newEventDispatcher(EventsConfig{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: true,
		Sink:       blockingSink{},
	})

	for i := 0; i < 50; i++ {
		d.emit(context.Background(), Event{Type: EventCreated, SessionID: "x"})
	}
	if d.droppedCount() == 0 {
		t.Fatal("expected dropped events with a saturated buffer")
	}
}

// blockingSink never returns from Emit until the program exits; it simulates
// a wedged consumer.
type blockingSink struct{}

func (blockingSink) Emit(context.Context, Event) {
	select {}
}

func TestDisabledEventsAreFree(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	// Events disabled by default: nil dispatcher, zero drops, no panic.
	if _, err := store.Create(ctx, nil, time.Minute); err != nil {
		t.Fatalf("create: %v", err)
	}
	if store.DroppedEvents() != 0 {
		t.Fatalf("expected zero dropped events, got %d", store.DroppedEvents())
	}
}
