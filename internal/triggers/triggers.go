// Package triggers holds the easter-egg conditions that unlock milestones.
// Each trigger is a thin producer over the unlock engine.
package triggers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"communitysite/internal/milestone"
)

var ErrUnknownTrigger = errors.New("unknown trigger")

const (
	PetThreshold    = 10
	SquashThreshold = 25
)

// Unlocker is satisfied by *milestone.Session.
type Unlocker interface {
	Unlock(ctx context.Context, id, imageKey, locale string) (bool, error)
}

var milestoneFor = map[string]string{
	"console": "CONSOLE_EXPLORER",
	"konami":  "KONAMI",
	"pet":     "CAT_PETTER",
	"duck":    "HIDDEN_DUCK",
	"squash":  "BUG_SQUASHER",
	"kaboom":  "KABOOM",
}

var KonamiSequence = []string{
	"ArrowUp", "ArrowUp", "ArrowDown", "ArrowDown",
	"ArrowLeft", "ArrowRight", "ArrowLeft", "ArrowRight",
	"b", "a",
}

// KonamiDetector remembers the most recent key presses.
type KonamiDetector struct {
	buf []string
}

// Press records key and reports whether the sequence just completed.
func (k *KonamiDetector) Press(key string) bool {
	k.buf = append(k.buf, key)
	if len(k.buf) > len(KonamiSequence) {
		k.buf = k.buf[len(k.buf)-len(KonamiSequence):]
	}
	if len(k.buf) != len(KonamiSequence) {
		return false
	}
	for i, want := range KonamiSequence {
		if k.buf[i] != want {
			return false
		}
	}
	k.buf = k.buf[:0]
	return true
}

type Input struct {
	Trigger string
	Key     string
	Score   int
	Locale  string
}

type Result struct {
	Fired    bool `json:"fired"`
	Unlocked bool `json:"unlocked"`
}

type visitorState struct {
	konami KonamiDetector
	pets   int
	seen   time.Time
}

// Set evaluates trigger conditions, keeping the small per-visitor state some
// of them need (key buffer, hover count).
type Set struct {
	catalog *milestone.Catalog

	mu       sync.Mutex
	visitors map[string]*visitorState
}

func NewSet(catalog *milestone.Catalog) *Set {
	return &Set{catalog: catalog, visitors: make(map[string]*visitorState)}
}

func (s *Set) state(visitor string) *visitorState {
	st, ok := s.visitors[visitor]
	if !ok {
		st = &visitorState{}
		s.visitors[visitor] = st
	}
	st.seen = time.Now()
	return st
}

// Prune forgets key buffers and hover counts not touched since cutoff and
// reports how many visitors were dropped.
func (s *Set) Prune(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for visitor, st := range s.visitors {
		if st.seen.Before(cutoff) {
			delete(s.visitors, visitor)
			n++
		}
	}
	return n
}

// Tracked reports how many visitors currently have trigger state.
func (s *Set) Tracked() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.visitors)
}

// PruneEvery runs Prune on a ticker until ctx is done, dropping state idle
// for longer than idle.
func (s *Set) PruneEvery(ctx context.Context, every, idle time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Prune(now.Add(-idle))
		}
	}
}

// condition reports whether the trigger's condition holds after this input.
func (s *Set) condition(visitor string, in Input) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch in.Trigger {
	case "console", "duck", "kaboom":
		return true, nil
	case "konami":
		return s.state(visitor).konami.Press(in.Key), nil
	case "pet":
		st := s.state(visitor)
		st.pets++
		return st.pets == PetThreshold, nil
	case "squash":
		return in.Score >= SquashThreshold, nil
	}
	return false, ErrUnknownTrigger
}

func (s *Set) Handle(ctx context.Context, u Unlocker, visitor string, in Input) (Result, error) {
	name, ok := milestoneFor[in.Trigger]
	if !ok {
		return Result{}, ErrUnknownTrigger
	}
	met, err := s.condition(visitor, in)
	if err != nil || !met {
		return Result{}, err
	}
	m, ok := s.catalog.ByName(name)
	if !ok {
		return Result{}, fmt.Errorf("trigger %s: %w", in.Trigger, ErrUnknownTrigger)
	}
	unlocked, err := u.Unlock(ctx, m.ID, m.ImageKey, in.Locale)
	if err != nil {
		return Result{Fired: true}, err
	}
	return Result{Fired: true, Unlocked: unlocked}, nil
}
