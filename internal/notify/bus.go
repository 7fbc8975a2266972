// Package notify fans pipeline progress events out to subscribers. It is
// the in-process replacement for the push-based event relay the web UI
// consumes; pipeline code only ever sees the Publish side.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is one progress message.
type Event struct {
	Session string    `json:"session"`
	Step    string    `json:"step"`
	Detail  string    `json:"detail"`
	Time    time.Time `json:"time"`
}

// Bus is a session-keyed publish/subscribe channel. Slow subscribers drop
// events instead of blocking the pipeline.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]map[string]chan Event // session -> subscriber id -> channel
}

const subscriberBuffer = 64

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[string]chan Event)}
}

// Subscribe registers a listener for a session. The returned cancel
// function closes the channel and must be called exactly once.
func (b *Bus) Subscribe(session string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[session] == nil {
		b.subs[session] = make(map[string]chan Event)
	}
	id := uuid.New().String()
	ch := make(chan Event, subscriberBuffer)
	b.subs[session][id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[session][id]; ok {
			delete(b.subs[session], id)
			if len(b.subs[session]) == 0 {
				delete(b.subs, session)
			}
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber of its session. Full
// subscriber buffers are skipped.
func (b *Bus) Publish(session, step, detail string) {
	event := Event{
		Session: session,
		Step:    step,
		Detail:  detail,
		Time:    time.Now(),
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[session] {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribers reports the listener count for a session.
func (b *Bus) Subscribers(session string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[session])
}
