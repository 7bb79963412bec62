package milestone

import (
	"context"
	"sync"
	"time"

	"communitysite/internal/events"
)

const (
	DefaultToastDisplay = 3 * time.Second
	DefaultToastFade    = 800 * time.Millisecond
)

// Presenter renders celebratory effects for a visitor. The engine only calls
// it; rendering belongs to whatever is on the other end.
type Presenter interface {
	Confetti(ctx context.Context, visitor string) error
	ShowToast(ctx context.Context, visitor, toastID, asset string)
	FadeToast(ctx context.Context, visitor, toastID string)
	RemoveToast(ctx context.Context, visitor, toastID string)
}

// BusPresenter turns effects into bus events that the SSE stream forwards to
// the page.
type BusPresenter struct {
	Bus *events.Bus
}

func (p BusPresenter) Confetti(ctx context.Context, visitor string) error {
	p.Bus.Publish(ctx, events.Event{Name: events.Confetti, Visitor: visitor})
	return nil
}

func (p BusPresenter) ShowToast(ctx context.Context, visitor, toastID, asset string) {
	p.toast(ctx, visitor, toastID, "show", asset)
}

func (p BusPresenter) FadeToast(ctx context.Context, visitor, toastID string) {
	p.toast(ctx, visitor, toastID, "fade", "")
}

func (p BusPresenter) RemoveToast(ctx context.Context, visitor, toastID string) {
	p.toast(ctx, visitor, toastID, "remove", "")
}

func (p BusPresenter) toast(ctx context.Context, visitor, toastID, phase, asset string) {
	detail := map[string]string{"toast": toastID, "phase": phase}
	if asset != "" {
		detail["asset"] = asset
	}
	p.Bus.Publish(ctx, events.Event{Name: events.Toast, Visitor: visitor, Detail: detail})
}

// toastTimers owns the show -> fade -> remove lifecycle of every toast. Each
// toast has its own timers; stopAll cancels whatever has not fired yet.
type toastTimers struct {
	mu      sync.Mutex
	next    uint64
	pending map[uint64]*time.Timer
	closed  bool
}

func newToastTimers() *toastTimers {
	return &toastTimers{pending: make(map[uint64]*time.Timer)}
}

func (t *toastTimers) schedule(display, fade time.Duration, onFade, onRemove func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.next++
	key := t.next
	t.pending[key] = time.AfterFunc(display, func() {
		t.mu.Lock()
		if t.closed {
			t.mu.Unlock()
			return
		}
		t.pending[key] = time.AfterFunc(fade, func() {
			t.mu.Lock()
			if t.closed {
				t.mu.Unlock()
				return
			}
			delete(t.pending, key)
			t.mu.Unlock()
			onRemove()
		})
		t.mu.Unlock()
		onFade()
	})
}

func (t *toastTimers) active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

func (t *toastTimers) stopAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	for key, timer := range t.pending {
		timer.Stop()
		delete(t.pending, key)
	}
}
