// Package eventbus fans a project's reconciler events out to any number of
// live subscribers — the read side of spec.md §7's event feed. There is no
// backlog replay: a subscriber only sees events published while it is
// subscribed, same as the teacher's channel dispatch loop only delivers
// messages received while a channel is actively listening.
package eventbus

import (
	"log/slog"
	"sync"

	"github.com/hazyhaar/eidetic/internal/reconciler"
)

// subscriberBacklog is how many unconsumed events one subscriber may queue
// before Publish starts dropping its oldest queued events. A slow HTTP/SSE client must never
// be able to block the rest of the project's subscribers, let alone the
// Reconciler commit path that triggered the publish.
const subscriberBacklog = 64

type subscriber struct {
	ch     chan reconciler.Event
	closed bool
}

type topic struct {
	mu   sync.Mutex
	subs map[int]*subscriber
	next int
}

// Bus is a per-project registry of subscriber channels, grounded on
// channels.Dispatcher's registry-under-mutex-plus-per-entry-lifecycle shape,
// inverted here from inbound fan-in to outbound fan-out.
type Bus struct {
	mu     sync.Mutex
	topics map[string]*topic
	logger *slog.Logger
}

// New returns an empty Bus.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{topics: make(map[string]*topic), logger: logger}
}

func (b *Bus) topicFor(projectID string) *topic {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.topics[projectID]
	if !ok {
		t = &topic{subs: make(map[int]*subscriber)}
		b.topics[projectID] = t
	}
	return t
}

// Subscribe returns a channel that receives every event Publish sends for
// projectID from this point on, and an unsubscribe function the caller must
// call exactly once (typically via defer) when it stops reading.
func (b *Bus) Subscribe(projectID string) (<-chan reconciler.Event, func()) {
	t := b.topicFor(projectID)
	t.mu.Lock()
	id := t.next
	t.next++
	sub := &subscriber{ch: make(chan reconciler.Event, subscriberBacklog)}
	t.subs[id] = sub
	t.mu.Unlock()

	unsubscribe := func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if s, ok := t.subs[id]; ok && !s.closed {
			s.closed = true
			close(s.ch)
			delete(t.subs, id)
		}
	}
	return sub.ch, unsubscribe
}

// Publish fans events out to every live subscriber of projectID. A
// subscriber whose backlog is full loses its oldest queued event to make room
// rather than blocking the publisher — satisfies pipeline.EventPublisher.
func (b *Bus) Publish(projectID string, events []reconciler.Event) {
	if len(events) == 0 {
		return
	}
	b.mu.Lock()
	t, ok := b.topics[projectID]
	b.mu.Unlock()
	if !ok {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for id, sub := range t.subs {
		if sub.closed {
			continue
		}
		for _, e := range events {
			select {
			case sub.ch <- e:
			default:
				select {
				case <-sub.ch:
				default:
				}
				select {
				case sub.ch <- e:
				default:
				}
				b.logger.Warn("eventbus: dropping oldest event for slow subscriber", "project_id", projectID, "subscriber", id)
			}
		}
	}
}

// Close closes every outstanding subscriber channel across all projects. Call
// once during process shutdown.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range b.topics {
		t.mu.Lock()
		for id, sub := range t.subs {
			if !sub.closed {
				sub.closed = true
				close(sub.ch)
			}
			delete(t.subs, id)
		}
		t.mu.Unlock()
	}
}
