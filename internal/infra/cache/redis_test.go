package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/domain/grid"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/engine"
)

type fakeRedis struct {
	mu      sync.Mutex
	strings map[string]string
	hashes  map[string]map[string]string
	ttls    map[string]time.Duration
	failSet bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		strings: map[string]string{},
		hashes:  map[string]map[string]string{},
		ttls:    map[string]time.Duration{},
	}
}

func (f *fakeRedis) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.strings[key]
	if !ok {
		return "", ErrCacheMiss
	}
	return v, nil
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, exp time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSet {
		return errors.New("connection refused")
	}
	switch v := value.(type) {
	case []byte:
		f.strings[key] = string(v)
	case string:
		f.strings[key] = v
	}
	f.ttls[key] = exp
	return nil
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.strings, k)
		delete(f.hashes, k)
	}
	return nil
}

func (f *fakeRedis) HGetAll(_ context.Context, key string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]string{}
	for k, v := range f.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (f *fakeRedis) HSet(_ context.Context, key string, values ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hashes[key]
	if !ok {
		h = map[string]string{}
		f.hashes[key] = h
	}
	for i := 0; i+1 < len(values); i += 2 {
		h[values[i].(string)] = values[i+1].(string)
	}
	return nil
}

func (f *fakeRedis) Expire(_ context.Context, key string, exp time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ttls[key] = exp
	return nil
}

func sampleSnapshot() engine.Snapshot {
	return engine.Snapshot{
		RunID:           "run-9",
		Step:            12,
		Running:         true,
		Width:           10,
		Height:          10,
		CleanPercentage: 40,
		DirtyTiles:      3,
		CleanTiles:      2,
		ActiveAgents:    2,
		Agents: []engine.AgentState{
			{ID: 1, Position: grid.Coord(2, 3), Battery: 88, Movements: 11},
			{ID: 2, Position: grid.Coord(7, 1), Battery: 0, Dead: true},
		},
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	client := newFakeRedis()
	c := NewSnapshotCache(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.SetSnapshot(ctx, sampleSnapshot()))
	assert.Equal(t, time.Minute, client.ttls["roomba:run:run-9:snapshot"])
	assert.Equal(t, time.Minute, client.ttls["roomba:run:run-9:agents"])

	got, err := c.GetSnapshot(ctx, "run-9")
	require.NoError(t, err)
	assert.Equal(t, 12, got.Step)
	assert.Len(t, got.Agents, 2)

	agents, err := c.GetAgents(ctx, "run-9")
	require.NoError(t, err)
	require.Len(t, agents, 2)
	assert.Equal(t, grid.Coord(2, 3), agents[1].Position)
	assert.True(t, agents[2].Dead)
}

func TestMissAndInvalidate(t *testing.T) {
	c := NewSnapshotCache(newFakeRedis(), 0)
	ctx := context.Background()
	assert.Equal(t, DefaultTTL, c.expiration)

	_, err := c.GetSnapshot(ctx, "run-9")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = c.GetAgents(ctx, "run-9")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.SetSnapshot(ctx, sampleSnapshot()))
	require.NoError(t, c.InvalidateRun(ctx, "run-9"))
	_, err = c.GetSnapshot(ctx, "run-9")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestSetSnapshotPropagatesClientErrors(t *testing.T) {
	client := newFakeRedis()
	client.failSet = true
	c := NewSnapshotCache(client, time.Minute)
	assert.Error(t, c.SetSnapshot(context.Background(), sampleSnapshot()))
}

func TestWriterKeepsLatest(t *testing.T) {
	client := newFakeRedis()
	w := NewWriter(NewSnapshotCache(client, time.Minute), nil)

	for step := 1; step <= 5; step++ {
		s := sampleSnapshot()
		s.Step = step
		w.Observe(s)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	require.Eventually(t, func() bool { return w.Written() == 1 }, 2*time.Second, 10*time.Millisecond)
	s, err := NewSnapshotCache(client, time.Minute).GetSnapshot(context.Background(), "run-9")
	require.NoError(t, err)
	assert.Equal(t, 5, s.Step)
	assert.Zero(t, w.Failed())
}
