package milestone

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"communitysite/internal/events"
	"communitysite/internal/kv"
)

type fakeSyncer struct {
	mu    sync.Mutex
	calls []syncCall
	err   error
}

type syncCall struct {
	userID string
	tokens []string
}

func (f *fakeSyncer) SaveUserMilestones(_ context.Context, userID string, tokens []string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, syncCall{userID: userID, tokens: tokens})
	if f.err != nil {
		return false, f.err
	}
	return true, nil
}

func (f *fakeSyncer) Calls() []syncCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]syncCall(nil), f.calls...)
}

type recordingPresenter struct {
	mu       sync.Mutex
	phases   []string
	confetti int
	fail     bool
}

func (p *recordingPresenter) Confetti(context.Context, string) error {
	p.mu.Lock()
	p.confetti++
	p.mu.Unlock()
	if p.fail {
		panic("canvas missing")
	}
	return nil
}

func (p *recordingPresenter) ShowToast(_ context.Context, _, _, asset string) {
	p.record("show:" + asset)
}
func (p *recordingPresenter) FadeToast(context.Context, string, string) { p.record("fade") }
func (p *recordingPresenter) RemoveToast(context.Context, string, string) { p.record("remove") }

func (p *recordingPresenter) record(phase string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.phases = append(p.phases, phase)
}

func (p *recordingPresenter) Phases() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.phases...)
}

type fixture struct {
	engine    *Engine
	kv        *kv.Memory
	bus       *events.Bus
	syncer    *fakeSyncer
	presenter *recordingPresenter
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	catalog, err := NewCatalog(map[string]Milestone{
		"KABOOM": {ID: "kaboom-id", ImageKey: "kaboom", Icon: "💥"},
		"DUCK":   {ID: "duck-id", ImageKey: "duck", Icon: "🦆"},
	})
	require.NoError(t, err)
	hasher, err := NewHasher("test-salt")
	require.NoError(t, err)

	f := fixture{
		kv:        kv.NewMemory(),
		bus:       events.NewBus(),
		syncer:    &fakeSyncer{},
		presenter: &recordingPresenter{},
	}
	f.engine, err = NewEngine(Options{
		Hasher:       hasher,
		Catalog:      catalog,
		KV:           f.kv,
		Bus:          f.bus,
		Presenter:    f.presenter,
		Syncer:       f.syncer,
		ToastDisplay: 20 * time.Millisecond,
		ToastFade:    10 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(f.engine.Close)
	return f
}

func expectedToken(id string) string {
	sum := sha256.Sum256([]byte("test-salt" + id))
	return hex.EncodeToString(sum[:])
}

func TestUnlockScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var got []events.Event
	f.bus.Subscribe(events.MilestoneUnlocked, func(_ context.Context, ev events.Event) { got = append(got, ev) })

	ok, err := f.engine.Unlock(ctx, "v1", "kaboom-id", "kaboom", "en")
	require.NoError(t, err)
	assert.True(t, ok)

	stored := f.engine.Session("v1").Store().GetUnlocked(ctx)
	assert.Equal(t, []string{expectedToken("kaboom-id")}, stored)

	require.Len(t, got, 1)
	assert.Equal(t, "v1", got[0].Visitor)
	assert.Equal(t, "kaboom-id", got[0].Detail["id"])
	assert.Equal(t, "kaboom", got[0].Detail["imageKey"])
	assert.Equal(t, "en", got[0].Detail["locale"])
	assert.Equal(t, expectedToken("kaboom-id"), got[0].Detail["hash"])
}

func TestUnlockIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	delivered := 0
	f.bus.Subscribe("milestoneUnlocked", func(context.Context, events.Event) { delivered++ })

	first, err := f.engine.Unlock(ctx, "v1", "kaboom-id", "kaboom", "en")
	require.NoError(t, err)
	second, err := f.engine.Unlock(ctx, "v1", "kaboom-id", "kaboom", "en")
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
	assert.Len(t, f.engine.Session("v1").Store().GetUnlocked(ctx), 1)
	assert.Equal(t, 1, delivered)
}

func TestUnlockIsScopedPerVisitor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ok, err := f.engine.Unlock(ctx, "v1", "kaboom-id", "kaboom", "de")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = f.engine.Unlock(ctx, "v2", "kaboom-id", "kaboom", "de")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConcurrentUnlocksStoreOneToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make(chan bool, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := f.engine.Unlock(ctx, "v1", "kaboom-id", "kaboom", "de")
			assert.NoError(t, err)
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for ok := range results {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Len(t, f.engine.Session("v1").Store().GetUnlocked(ctx), 1)
}

func TestPersistedValueLeaksNoIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, m := range f.engine.Catalog().All() {
		_, err := f.engine.Unlock(ctx, "v1", m.ID, m.ImageKey, "en")
		require.NoError(t, err)
	}
	raw, ok, err := f.kv.Get(ctx, "visitor:v1:"+KeyUnlocked)
	require.NoError(t, err)
	require.True(t, ok)
	for _, m := range f.engine.Catalog().All() {
		assert.NotContains(t, raw, m.ID)
		assert.NotContains(t, raw, m.ImageKey)
	}
	assert.False(t, strings.ContainsAny(strings.Trim(raw, `[]",`), "ghijklmnopqrstuvwxyz"))
}

func TestLocaleDefaultsToGerman(t *testing.T) {
	f := newFixture(t)
	var locale string
	f.bus.Subscribe(events.MilestoneUnlocked, func(_ context.Context, ev events.Event) { locale = ev.Detail["locale"] })

	_, err := f.engine.Unlock(context.Background(), "v1", "kaboom-id", "kaboom", "fr")
	require.NoError(t, err)
	assert.Equal(t, "de", locale)
}

func TestNoSyncWithoutLinkedUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Unlock(context.Background(), "v1", "kaboom-id", "kaboom", "en")
	require.NoError(t, err)
	f.engine.Wait()
	assert.Empty(t, f.syncer.Calls())
}

func TestSyncsFullSetForLinkedUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.engine.Session("v1").Store().SetLinkedUserID(ctx, "user-42"))

	_, err := f.engine.Unlock(ctx, "v1", "kaboom-id", "kaboom", "en")
	require.NoError(t, err)
	_, err = f.engine.Unlock(ctx, "v1", "duck-id", "duck", "en")
	require.NoError(t, err)
	f.engine.Wait()

	calls := f.syncer.Calls()
	require.Len(t, calls, 2)
	// Syncs run in the background, so either may land first.
	full := calls[0]
	if len(calls[1].tokens) > len(full.tokens) {
		full = calls[1]
	}
	assert.Equal(t, "user-42", full.userID)
	assert.ElementsMatch(t, []string{expectedToken("kaboom-id"), expectedToken("duck-id")}, full.tokens)
}

func TestSyncFailureDoesNotFailUnlock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.syncer.err = errors.New("backend down")
	require.NoError(t, f.engine.Session("v1").Store().SetLinkedUserID(ctx, "user-42"))

	ok, err := f.engine.Unlock(ctx, "v1", "kaboom-id", "kaboom", "en")
	require.NoError(t, err)
	assert.True(t, ok)
	f.engine.Wait()
	assert.Len(t, f.syncer.Calls(), 1)
}

func TestConfettiPanicIsContained(t *testing.T) {
	f := newFixture(t)
	f.presenter.fail = true

	ok, err := f.engine.Unlock(context.Background(), "v1", "kaboom-id", "kaboom", "en")
	require.NoError(t, err)
	assert.True(t, ok)
	f.engine.Wait()
	assert.Equal(t, 1, f.presenter.confetti)
}

func TestToastLifecycle(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Unlock(context.Background(), "v1", "kaboom-id", "kaboom", "en")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(f.presenter.Phases()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{
		"show:/images/achievements/achievement-en-kaboom.webp",
		"fade",
		"remove",
	}, f.presenter.Phases())
	assert.Equal(t, 0, f.engine.toasts.active())
}

func TestCloseCancelsPendingToasts(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Unlock(context.Background(), "v1", "kaboom-id", "kaboom", "en")
	require.NoError(t, err)
	_, err = f.engine.Unlock(context.Background(), "v1", "duck-id", "duck", "en")
	require.NoError(t, err)

	f.engine.Close()
	time.Sleep(60 * time.Millisecond)

	for _, phase := range f.presenter.Phases() {
		assert.True(t, strings.HasPrefix(phase, "show:"), "unexpected phase %s after close", phase)
	}
}

func TestStorageFailureDegrades(t *testing.T) {
	catalog, err := NewCatalog(map[string]Milestone{"KABOOM": {ID: "kaboom-id", ImageKey: "kaboom"}})
	require.NoError(t, err)
	hasher, _ := NewHasher("test-salt")
	engine, err := NewEngine(Options{Hasher: hasher, Catalog: catalog, KV: brokenKV{}})
	require.NoError(t, err)
	defer engine.Close()

	ok, err := engine.Unlock(context.Background(), "v1", "kaboom-id", "kaboom", "de")
	require.NoError(t, err)
	assert.True(t, ok)

	ids, err := engine.Session("v1").UnlockedIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"kaboom-id"}, ids)
}

func TestRepeatUnlockWithBrokenStorageStaysIdempotent(t *testing.T) {
	catalog, err := NewCatalog(map[string]Milestone{"KABOOM": {ID: "kaboom-id", ImageKey: "kaboom"}})
	require.NoError(t, err)
	hasher, _ := NewHasher("test-salt")
	bus := events.NewBus()
	engine, err := NewEngine(Options{Hasher: hasher, Catalog: catalog, KV: brokenKV{}, Bus: bus})
	require.NoError(t, err)
	defer engine.Close()

	published := 0
	bus.Subscribe(events.MilestoneUnlocked, func(context.Context, events.Event) { published++ })

	ctx := context.Background()
	first, err := engine.Unlock(ctx, "v1", "kaboom-id", "kaboom", "de")
	require.NoError(t, err)
	second, err := engine.Unlock(ctx, "v1", "kaboom-id", "kaboom", "de")
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
	assert.Equal(t, 1, published)
}

func TestEnginesSharingStoreKeepEveryToken(t *testing.T) {
	f := newFixture(t)
	other, err := NewEngine(Options{Hasher: f.engine.Hasher(), Catalog: f.engine.Catalog(), KV: f.kv})
	require.NoError(t, err)
	defer other.Close()
	ctx := context.Background()

	ids := make([]string, 24)
	for i := range ids {
		ids[i] = fmt.Sprintf("extra-%02d", i)
	}

	var wg sync.WaitGroup
	for i, id := range ids {
		engine := f.engine
		if i%2 == 1 {
			engine = other
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := engine.Unlock(ctx, "v1", id, "extra", "de")
			assert.NoError(t, err)
			assert.True(t, ok)
		}()
	}
	wg.Wait()

	stored := f.engine.Session("v1").Store().GetUnlocked(ctx)
	require.Len(t, stored, len(ids))
	for _, id := range ids {
		assert.Contains(t, stored, expectedToken(id))
	}
}

func TestPruneDropsIdleSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.engine.Unlock(ctx, "v1", "duck-id", "duck", "de")
	require.NoError(t, err)
	require.Equal(t, 1, f.engine.Sessions())

	assert.Equal(t, 0, f.engine.Prune(time.Now().Add(-time.Hour)))
	assert.Equal(t, 1, f.engine.Prune(time.Now().Add(time.Second)))
	assert.Equal(t, 0, f.engine.Sessions())

	ids, err := f.engine.Session("v1").UnlockedIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"duck-id"}, ids)
}

func TestPeekDoesNotKeepSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ids, err := f.engine.Peek("anon").UnlockedIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Equal(t, 0, f.engine.Sessions())

	live := f.engine.Session("v1")
	assert.Same(t, live, f.engine.Peek("v1"))
}

func TestCloseIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.engine.Close()
	f.engine.Close()
}

func TestNewEngineRequiresHasher(t *testing.T) {
	_, err := NewEngine(Options{KV: kv.NewMemory()})
	require.ErrorIs(t, err, ErrMissingSalt)
}

func TestReconcileRecoversIDsAcrossRestarts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.engine.Unlock(ctx, "v1", "duck-id", "duck", "de")
	require.NoError(t, err)

	restarted, err := NewEngine(Options{Hasher: f.engine.Hasher(), Catalog: f.engine.Catalog(), KV: f.kv})
	require.NoError(t, err)
	defer restarted.Close()

	session := restarted.Session("v1")
	assert.Empty(t, session.SessionIDs())
	ids, err := session.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"duck-id"}, ids)

	ok, err := session.Unlock(ctx, "duck-id", "duck", "de")
	require.NoError(t, err)
	assert.False(t, ok)
}
