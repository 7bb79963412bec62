package triggers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"communitysite/internal/milestone"
)

type recordingUnlocker struct {
	ids  []string
	seen map[string]bool
}

func (r *recordingUnlocker) Unlock(_ context.Context, id, _, _ string) (bool, error) {
	if r.seen == nil {
		r.seen = map[string]bool{}
	}
	r.ids = append(r.ids, id)
	if r.seen[id] {
		return false, nil
	}
	r.seen[id] = true
	return true, nil
}

func newSet(t *testing.T) *Set {
	t.Helper()
	c, err := milestone.DefaultCatalog()
	require.NoError(t, err)
	return NewSet(c)
}

func TestKonamiDetector(t *testing.T) {
	var k KonamiDetector
	for _, key := range []string{"x", "ArrowUp"} {
		assert.False(t, k.Press(key))
	}
	fired := false
	for _, key := range KonamiSequence {
		fired = k.Press(key)
	}
	assert.True(t, fired)
	assert.False(t, k.Press("a"))
}

func TestImmediateTriggers(t *testing.T) {
	s := newSet(t)
	u := &recordingUnlocker{}
	ctx := context.Background()

	res, err := s.Handle(ctx, u, "v1", Input{Trigger: "console"})
	require.NoError(t, err)
	assert.Equal(t, Result{Fired: true, Unlocked: true}, res)

	res, err = s.Handle(ctx, u, "v1", Input{Trigger: "console"})
	require.NoError(t, err)
	assert.Equal(t, Result{Fired: true, Unlocked: false}, res)
}

func TestPetNeedsThreshold(t *testing.T) {
	s := newSet(t)
	u := &recordingUnlocker{}
	ctx := context.Background()

	for i := 1; i < PetThreshold; i++ {
		res, err := s.Handle(ctx, u, "v1", Input{Trigger: "pet"})
		require.NoError(t, err)
		assert.False(t, res.Fired)
	}
	res, err := s.Handle(ctx, u, "v1", Input{Trigger: "pet"})
	require.NoError(t, err)
	assert.True(t, res.Unlocked)

	res, err = s.Handle(ctx, u, "v2", Input{Trigger: "pet"})
	require.NoError(t, err)
	assert.False(t, res.Fired)
	assert.Len(t, u.ids, 1)
}

func TestKonamiTrigger(t *testing.T) {
	s := newSet(t)
	u := &recordingUnlocker{}
	var res Result
	var err error
	for _, key := range KonamiSequence {
		res, err = s.Handle(context.Background(), u, "v1", Input{Trigger: "konami", Key: key})
		require.NoError(t, err)
	}
	assert.True(t, res.Unlocked)
}

func TestSquashScore(t *testing.T) {
	s := newSet(t)
	u := &recordingUnlocker{}
	res, err := s.Handle(context.Background(), u, "v1", Input{Trigger: "squash", Score: SquashThreshold - 1})
	require.NoError(t, err)
	assert.False(t, res.Fired)
	res, err = s.Handle(context.Background(), u, "v1", Input{Trigger: "squash", Score: SquashThreshold})
	require.NoError(t, err)
	assert.True(t, res.Unlocked)
}

func TestUnknownTrigger(t *testing.T) {
	_, err := newSet(t).Handle(context.Background(), &recordingUnlocker{}, "v1", Input{Trigger: "nope"})
	require.ErrorIs(t, err, ErrUnknownTrigger)
}

func TestStatelessTriggersKeepNoVisitorState(t *testing.T) {
	s := newSet(t)
	u := &recordingUnlocker{}
	for _, name := range []string{"console", "duck", "kaboom", "squash"} {
		_, err := s.Handle(context.Background(), u, "v-"+name, Input{Trigger: name, Score: 1})
		require.NoError(t, err)
	}
	assert.Equal(t, 0, s.Tracked())
}

func TestPruneForgetsIdleVisitors(t *testing.T) {
	s := newSet(t)
	u := &recordingUnlocker{}
	ctx := context.Background()
	for i := 0; i < PetThreshold-1; i++ {
		_, err := s.Handle(ctx, u, "v1", Input{Trigger: "pet"})
		require.NoError(t, err)
	}
	require.Equal(t, 1, s.Tracked())

	assert.Equal(t, 0, s.Prune(time.Now().Add(-time.Minute)))
	assert.Equal(t, 1, s.Prune(time.Now().Add(time.Second)))
	assert.Equal(t, 0, s.Tracked())

	// The hover count starts over after pruning.
	res, err := s.Handle(ctx, u, "v1", Input{Trigger: "pet"})
	require.NoError(t, err)
	assert.False(t, res.Fired)
}
