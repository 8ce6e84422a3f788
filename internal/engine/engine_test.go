package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/platform/metrics"
)

func newTestEngine(t *testing.T, p Params) *Engine {
	t.Helper()
	e, err := NewEngine(p, 42, time.Millisecond, nil, nil, metrics.New())
	require.NoError(t, err)
	return e
}

func TestEngineAdvancePublishes(t *testing.T) {
	e := newTestEngine(t, DefaultParams())

	var got []Snapshot
	e.OnSnapshot(func(s Snapshot) { got = append(got, s) })

	snap, err := e.Advance()
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Step)
	require.Len(t, got, 1)
	assert.Equal(t, snap, got[0])
}

func TestEnginePauseBlocksTicks(t *testing.T) {
	e := newTestEngine(t, DefaultParams())

	e.Pause()
	assert.True(t, e.Paused())
	assert.False(t, e.tick())
	assert.Zero(t, e.Snapshot().Step)

	e.Resume()
	assert.False(t, e.Paused())
	assert.True(t, e.tick())
	assert.Equal(t, 1, e.Snapshot().Step)
}

func TestEngineAdvanceAfterFinish(t *testing.T) {
	p := DefaultParams()
	p.MaxSteps = 2
	e := newTestEngine(t, p)

	_, err := e.Advance()
	require.NoError(t, err)
	_, err = e.Advance()
	require.NoError(t, err)
	_, err = e.Advance()
	assert.ErrorIs(t, err, ErrNotRunning)
	assert.False(t, e.tick())
}

func TestEngineResetStartsNewRun(t *testing.T) {
	e := newTestEngine(t, DefaultParams())
	first := e.RunID()
	_, err := e.Advance()
	require.NoError(t, err)

	seed := int64(7)
	snap, err := e.Reset(&seed)
	require.NoError(t, err)

	assert.NotEqual(t, first, snap.RunID)
	assert.Equal(t, snap.RunID, e.RunID())
	assert.Zero(t, snap.Step)
	assert.True(t, snap.Running)
	assert.Equal(t, int64(7), e.Seed())
	assert.Empty(t, e.History())

	assert.NotEmpty(t, e.EventLog().GetByRun(first), "earlier runs stay in the shared log")
}

func TestEngineStartTicksUntilCancelled(t *testing.T) {
	p := DefaultParams()
	p.MaxSteps = 20
	e := newTestEngine(t, p)

	var mu sync.Mutex
	last := 0
	e.OnSnapshot(func(s Snapshot) {
		mu.Lock()
		last = s.Step
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.Start(ctx)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return last == 20
	}, 5*time.Second, 5*time.Millisecond)

	assert.False(t, e.Snapshot().Running)
	e.Stop()
	e.Stop()
}
