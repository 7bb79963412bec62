// Package milestone implements hidden achievements: the catalog, the salted
// identity hasher, the per-visitor unlocked-set store and the unlock engine.
package milestone

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"communitysite/internal/events"
	"communitysite/internal/kv"
	"communitysite/internal/logger"
	"communitysite/internal/metrics"
)

// Syncer copies a visitor's unlocked tokens to a linked account.
type Syncer interface {
	SaveUserMilestones(ctx context.Context, userID string, tokens []string) (bool, error)
}

type Options struct {
	Hasher    *Hasher
	Catalog   *Catalog
	KV        kv.Store
	Bus       *events.Bus
	Presenter Presenter
	Syncer    Syncer
	Log       *logger.Logger

	ToastDisplay time.Duration
	ToastFade    time.Duration
	SyncTimeout  time.Duration
	// SessionIdle is how long an untouched session is kept in memory.
	SessionIdle time.Duration
}

const DefaultSessionIdle = 24 * time.Hour

type Engine struct {
	hasher    *Hasher
	catalog   *Catalog
	kv        kv.Store
	bus       *events.Bus
	presenter Presenter
	syncer    Syncer
	log       *logger.Logger

	toastDisplay time.Duration
	toastFade    time.Duration
	syncTimeout  time.Duration
	sessionIdle  time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
	toasts   *toastTimers
	wg       sync.WaitGroup

	stop      chan struct{}
	closeOnce sync.Once
	janitor   sync.WaitGroup
}

func NewEngine(opts Options) (*Engine, error) {
	if opts.Hasher == nil {
		return nil, ErrMissingSalt
	}
	if opts.KV == nil {
		return nil, errors.New("milestone engine: kv store required")
	}
	if opts.Catalog == nil {
		return nil, errors.New("milestone engine: catalog required")
	}
	e := &Engine{
		hasher:       opts.Hasher,
		catalog:      opts.Catalog,
		kv:           opts.KV,
		bus:          opts.Bus,
		presenter:    opts.Presenter,
		syncer:       opts.Syncer,
		log:          opts.Log,
		toastDisplay: opts.ToastDisplay,
		toastFade:    opts.ToastFade,
		syncTimeout:  opts.SyncTimeout,
		sessionIdle:  opts.SessionIdle,
		sessions:     make(map[string]*Session),
		toasts:       newToastTimers(),
		stop:         make(chan struct{}),
	}
	if e.bus == nil {
		e.bus = events.NewBus()
	}
	if e.log == nil {
		e.log = logger.Nop()
	}
	e.log = e.log.With("component", "MilestoneEngine")
	if e.toastDisplay <= 0 {
		e.toastDisplay = DefaultToastDisplay
	}
	if e.toastFade <= 0 {
		e.toastFade = DefaultToastFade
	}
	if e.syncTimeout <= 0 {
		e.syncTimeout = 10 * time.Second
	}
	if e.sessionIdle <= 0 {
		e.sessionIdle = DefaultSessionIdle
	}
	e.janitor.Add(1)
	go e.sweep(max(e.sessionIdle/4, time.Second))
	return e, nil
}

func (e *Engine) sweep(every time.Duration) {
	defer e.janitor.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-e.stop:
			return
		case now := <-ticker.C:
			if n := e.Prune(now.Add(-e.sessionIdle)); n > 0 {
				e.log.Debug("pruned idle sessions", "count", n)
			}
		}
	}
}

func (e *Engine) Catalog() *Catalog { return e.catalog }
func (e *Engine) Bus() *events.Bus  { return e.bus }
func (e *Engine) Hasher() *Hasher   { return e.hasher }

// Session returns the visitor's session, creating it on first use. Sessions
// hold the in-memory list of ids unlocked through them and are dropped after
// SessionIdle without use.
func (e *Engine) Session(visitorID string) *Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[visitorID]
	if !ok {
		s = e.newSession(visitorID)
		e.sessions[visitorID] = s
	}
	s.lastSeen = time.Now()
	return s
}

// Peek returns the visitor's live session if there is one, otherwise a
// detached session that reads storage without being kept. Read-only paths
// use it so that anonymous requests do not pin memory.
func (e *Engine) Peek(visitorID string) *Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.sessions[visitorID]; ok {
		return s
	}
	return e.newSession(visitorID)
}

func (e *Engine) newSession(visitorID string) *Session {
	return &Session{
		engine:  e,
		visitor: visitorID,
		store:   NewStore(kv.Namespace(e.kv, visitorID), e.log.With("visitor", visitorID)),
	}
}

// Prune drops sessions last used before cutoff and reports how many went.
func (e *Engine) Prune(cutoff time.Time) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for id, s := range e.sessions {
		if s.lastSeen.Before(cutoff) {
			delete(e.sessions, id)
			n++
		}
	}
	return n
}

// Sessions reports how many sessions are held in memory.
func (e *Engine) Sessions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

func (e *Engine) Unlock(ctx context.Context, visitorID, id, imageKey, locale string) (bool, error) {
	return e.Session(visitorID).Unlock(ctx, id, imageKey, locale)
}

// Wait blocks until background confetti and sync work has finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Close cancels pending toast timers, stops the session sweeper and waits for
// background work. It is safe to call more than once.
func (e *Engine) Close() {
	e.closeOnce.Do(func() { close(e.stop) })
	e.janitor.Wait()
	e.toasts.stopAll()
	e.wg.Wait()
}

// Session is one visitor's view of the engine.
type Session struct {
	engine  *Engine
	visitor string
	store   *Store

	// lastSeen is guarded by engine.mu.
	lastSeen time.Time

	mu  sync.Mutex
	ids []string
}

func (s *Session) Visitor() string { return s.visitor }
func (s *Session) Store() *Store   { return s.store }

// Unlock records the milestone once. It returns false when the milestone was
// already unlocked and only fails when the token cannot be computed.
func (s *Session) Unlock(ctx context.Context, id, imageKey, locale string) (bool, error) {
	e := s.engine
	token, err := e.hasher.Hash(id)
	if err != nil {
		metrics.Unlocks.WithLabelValues("error").Inc()
		e.log.Error("milestone hash failed", "error", err)
		return false, fmt.Errorf("hash milestone: %w", err)
	}

	// The store makes the append atomic across instances; the session lock
	// keeps the shadow list in step with it.
	s.mu.Lock()
	added, tokens, err := s.store.AddUnlocked(ctx, token)
	if err != nil {
		metrics.StorageFailures.Inc()
		e.log.Warn("persist unlocked milestones", "error", err, "visitor", s.visitor)
		tokens = s.store.GetUnlocked(ctx)
		added = !slices.Contains(tokens, token)
		if added {
			tokens = append(tokens, token)
		}
	}
	// The shadow list answers for unlocks whose write was lost.
	if !added || slices.Contains(s.ids, id) {
		s.mu.Unlock()
		metrics.Unlocks.WithLabelValues("duplicate").Inc()
		return false, nil
	}
	s.ids = append(s.ids, id)
	s.mu.Unlock()
	metrics.Unlocks.WithLabelValues("new").Inc()

	locale = NormalizeLocale(locale)
	e.bus.Publish(ctx, events.Event{
		Name:    events.MilestoneUnlocked,
		Visitor: s.visitor,
		Detail: map[string]string{
			"hash":     token,
			"id":       id,
			"imageKey": imageKey,
			"locale":   locale,
		},
	})

	if e.presenter != nil {
		e.celebrate(ctx, s.visitor, AssetPath(locale, imageKey))
	}

	if userID, ok := s.store.GetLinkedUserID(ctx); ok && e.syncer != nil {
		e.sync(ctx, userID, slices.Clone(tokens))
	}
	return true, nil
}

func (e *Engine) celebrate(ctx context.Context, visitor, asset string) {
	detached := context.WithoutCancel(ctx)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				e.log.Warn("confetti panicked", "panic", r)
			}
		}()
		if err := e.presenter.Confetti(detached, visitor); err != nil {
			e.log.Warn("confetti failed", "error", err)
		}
	}()

	toastID := uuid.NewString()
	e.presenter.ShowToast(detached, visitor, toastID, asset)
	e.toasts.schedule(e.toastDisplay, e.toastFade,
		func() { e.presenter.FadeToast(detached, visitor, toastID) },
		func() { e.presenter.RemoveToast(detached, visitor, toastID) },
	)
}

func (e *Engine) sync(ctx context.Context, userID string, tokens []string) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		syncCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.syncTimeout)
		defer cancel()
		ok, err := e.syncer.SaveUserMilestones(syncCtx, userID, tokens)
		if err != nil || !ok {
			metrics.SyncFailures.Inc()
			e.log.Warn("milestone sync failed", "error", err, "user_id", userID)
		}
	}()
}

// SessionIDs returns the ids unlocked through this session since start-up.
func (s *Session) SessionIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.ids)
}

// Reconcile re-hashes every catalog id and returns, in catalog order, the ids
// whose tokens are in the persisted set. Tokens are one-way, so this is the
// only way to recover which milestones a returning visitor holds.
func (s *Session) Reconcile(ctx context.Context) ([]string, error) {
	tokens := s.store.GetUnlocked(ctx)
	if len(tokens) == 0 {
		return []string{}, nil
	}
	held := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		held[t] = struct{}{}
	}
	ids := []string{}
	for _, m := range s.engine.catalog.All() {
		token, err := s.engine.hasher.Hash(m.ID)
		if err != nil {
			return nil, err
		}
		if _, ok := held[token]; ok {
			ids = append(ids, m.ID)
		}
	}
	return ids, nil
}

// UnlockedIDs merges the reconciled ids with this session's shadow list, so
// unlocks whose write was lost still show for the rest of the session.
func (s *Session) UnlockedIDs(ctx context.Context) ([]string, error) {
	ids, err := s.Reconcile(ctx)
	if err != nil {
		return nil, err
	}
	for _, id := range s.SessionIDs() {
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
