// Package events is the in-process publish/subscribe surface that decouples
// unlock producers from the consumers that render progress.
package events

import (
	"context"
	"slices"
	"sync"
)

const (
	MilestoneUnlocked = "milestoneUnlocked"
	Confetti          = "confetti"
	Toast             = "achievementToast"
)

// Event mirrors a DOM CustomEvent: a name plus a string detail map. Visitor
// scopes the event to one browser; Origin is set when the event came from
// another instance through a relay.
type Event struct {
	Name    string            `json:"name"`
	Visitor string            `json:"visitor,omitempty"`
	Detail  map[string]string `json:"detail,omitempty"`
	Origin  string            `json:"origin,omitempty"`
}

type Listener func(ctx context.Context, ev Event)

type subscription struct {
	id   uint64
	name string
	fn   Listener
}

// Bus delivers synchronously in registration order and keeps no history.
// The wildcard name "*" receives every event, interleaved with named
// listeners in the order they subscribed.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscription
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers fn for name and returns a function that removes it.
func (b *Bus) Subscribe(name string, fn Listener) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, name: name, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = slices.DeleteFunc(b.subs, func(s subscription) bool { return s.id == id })
}

// Publish delivers ev to every listener registered for its name or for "*".
// Listeners run on the caller's goroutine.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	b.mu.RLock()
	targets := make([]Listener, 0, len(b.subs))
	for _, s := range b.subs {
		if s.name == ev.Name || s.name == "*" {
			targets = append(targets, s.fn)
		}
	}
	b.mu.RUnlock()

	for _, fn := range targets {
		fn(ctx, ev)
	}
}

// Listeners reports how many listeners are registered for name.
func (b *Bus) Listeners(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, s := range b.subs {
		if s.name == name {
			n++
		}
	}
	return n
}
