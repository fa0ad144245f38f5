package eventbus

import (
	"testing"
	"time"

	"github.com/hazyhaar/eidetic/internal/reconciler"
)

func TestPublish_DeliversToSubscriber(t *testing.T) {
	b := New(nil)
	ch, unsubscribe := b.Subscribe("proj1")
	defer unsubscribe()

	b.Publish("proj1", []reconciler.Event{{Kind: reconciler.EventNewEvidence}})

	select {
	case e := <-ch:
		if e.Kind != reconciler.EventNewEvidence {
			t.Fatalf("Kind = %v, want EventNewEvidence", e.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublish_NoSubscribersIsANoop(t *testing.T) {
	b := New(nil)
	// No subscriber for this project yet; must not panic or block.
	b.Publish("proj-none", []reconciler.Event{{Kind: reconciler.EventNewEvidence}})
}

func TestPublish_DoesNotReplayToLateSubscriber(t *testing.T) {
	b := New(nil)
	b.Publish("proj1", []reconciler.Event{{Kind: reconciler.EventNewEvidence}})

	ch, unsubscribe := b.Subscribe("proj1")
	defer unsubscribe()

	select {
	case e := <-ch:
		t.Fatalf("late subscriber should not see events published before it subscribed, got %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublish_IsolatesProjects(t *testing.T) {
	b := New(nil)
	ch1, unsub1 := b.Subscribe("proj1")
	defer unsub1()
	ch2, unsub2 := b.Subscribe("proj2")
	defer unsub2()

	b.Publish("proj1", []reconciler.Event{{Kind: reconciler.EventNewProposition}})

	select {
	case <-ch1:
	case <-time.After(time.Second):
		t.Fatal("proj1 subscriber should have received its event")
	}

	select {
	case e := <-ch2:
		t.Fatalf("proj2 subscriber should not see proj1's event, got %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribe_StopsDelivery(t *testing.T) {
	b := New(nil)
	ch, unsubscribe := b.Subscribe("proj1")
	unsubscribe()

	b.Publish("proj1", []reconciler.Event{{Kind: reconciler.EventNewEvidence}})

	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after unsubscribe")
	}
}

func TestSubscriberBacklogFull_DropsRatherThanBlocks(t *testing.T) {
	b := New(nil)
	_, unsubscribe := b.Subscribe("proj1") // never drained
	defer unsubscribe()

	events := make([]reconciler.Event, subscriberBacklog+10)
	for i := range events {
		events[i] = reconciler.Event{Kind: reconciler.EventNewEvidence}
	}

	done := make(chan struct{})
	go func() {
		b.Publish("proj1", events)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish should never block even when a subscriber's backlog is full")
	}
}
