package menu

import (
	"context"
	"slices"
	"sync"

	"communitysite/internal/events"
)

// Tracker keeps one visitor's unlocked ids current by listening to the bus,
// so an open menu updates without a reload.
type Tracker struct {
	visitor     string
	onChange    func(id string, ids []string)
	unsubscribe func()

	mu  sync.Mutex
	ids []string
}

func NewTracker(bus *events.Bus, visitor string, initial []string, onChange func(id string, ids []string)) *Tracker {
	t := &Tracker{visitor: visitor, onChange: onChange, ids: slices.Clone(initial)}
	t.unsubscribe = bus.Subscribe(events.MilestoneUnlocked, t.handle)
	return t
}

func (t *Tracker) handle(_ context.Context, ev events.Event) {
	if ev.Visitor != t.visitor {
		return
	}
	id := ev.Detail["id"]
	if id == "" {
		return
	}
	t.mu.Lock()
	if slices.Contains(t.ids, id) {
		t.mu.Unlock()
		return
	}
	t.ids = append(t.ids, id)
	snapshot := slices.Clone(t.ids)
	t.mu.Unlock()

	if t.onChange != nil {
		t.onChange(id, snapshot)
	}
}

func (t *Tracker) IDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.ids)
}

func (t *Tracker) Close() {
	t.unsubscribe()
}
