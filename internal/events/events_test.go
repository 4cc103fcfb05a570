package events

import (
	"testing"
	"time"
)

func TestBroker_SubscribePublish(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: WorktreeCreated, Project: "/home/dev/app", Name: "feature-a"})

	select {
	case ev := <-ch:
		if ev.Type != WorktreeCreated {
			t.Errorf("Type = %q, want %q", ev.Type, WorktreeCreated)
		}
		if ev.Project != "/home/dev/app" || ev.Name != "feature-a" {
			t.Errorf("payload = %+v, want project and name carried through", ev)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected event on subscriber channel")
	}
}

func TestBroker_MultipleSubscribers(t *testing.T) {
	b := NewBroker()
	ch1 := b.Subscribe()
	ch2 := b.Subscribe()
	defer b.Unsubscribe(ch1)
	defer b.Unsubscribe(ch2)

	b.Publish(Event{Type: ProjectAdded})

	for i, ch := range []chan Event{ch1, ch2} {
		select {
		case <-ch:
			// ok
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("subscriber %d: expected event", i)
		}
	}
}

func TestBroker_PublishNeverBlocks(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Overfill the subscriber buffer without consuming; Publish must not
	// block once it is full.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(Event{Type: FSActivity})
		}
		close(done)
	}()

	select {
	case <-done:
		// ok
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}

	if got := len(ch); got != cap(ch) {
		t.Errorf("buffered events = %d, want full buffer %d", got, cap(ch))
	}
}

func TestBroker_UnsubscribeRemoves(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe()
	b.Unsubscribe(ch)

	b.Publish(Event{Type: WorktreeRemoved})

	select {
	case <-ch:
		t.Fatal("should not receive after unsubscribe")
	default:
		// ok
	}
}

func TestBroker_SlowSubscriberDoesNotStallOthers(t *testing.T) {
	b := NewBroker()
	slow := b.Subscribe()
	fast := b.Subscribe()
	defer b.Unsubscribe(slow)
	defer b.Unsubscribe(fast)

	// Fill the slow subscriber completely.
	for i := 0; i < cap(slow)+5; i++ {
		b.Publish(Event{Type: RunStarted})
	}

	// Drain fast; it must have received up to its own capacity regardless.
	if got := len(fast); got != cap(fast) {
		t.Errorf("fast subscriber buffered %d, want %d", got, cap(fast))
	}
}
