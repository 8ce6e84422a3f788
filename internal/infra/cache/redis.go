// Package cache provides Redis-based caching for quick state reads.
// The cache holds the latest snapshot of each run; it is not the source of truth.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/engine"
)

// ErrCacheMiss is returned when a key is absent.
var ErrCacheMiss = errors.New("cache: miss")

// DefaultTTL applies when no expiration is configured.
const DefaultTTL = 15 * time.Minute

// RedisClient is an interface for Redis operations.
// This allows for easy mocking in tests.
type RedisClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HSet(ctx context.Context, key string, values ...any) error
	Expire(ctx context.Context, key string, expiration time.Duration) error
}

// SnapshotCache provides fast access to the latest run snapshots.
type SnapshotCache struct {
	client     RedisClient
	expiration time.Duration
}

// NewSnapshotCache creates a cache. ttl <= 0 uses DefaultTTL.
func NewSnapshotCache(client RedisClient, ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SnapshotCache{client: client, expiration: ttl}
}

// SetSnapshot caches the whole snapshot and a per-agent hash.
func (c *SnapshotCache) SetSnapshot(ctx context.Context, s engine.Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := c.client.Set(ctx, c.snapshotKey(s.RunID), data, c.expiration); err != nil {
		return err
	}
	if len(s.Agents) == 0 {
		return nil
	}

	values := make([]any, 0, len(s.Agents)*2)
	for _, a := range s.Agents {
		data, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("failed to marshal agent %d: %w", a.ID, err)
		}
		values = append(values, strconv.Itoa(a.ID), string(data))
	}
	key := c.agentsKey(s.RunID)
	if err := c.client.HSet(ctx, key, values...); err != nil {
		return err
	}
	return c.client.Expire(ctx, key, c.expiration)
}

// GetSnapshot returns the cached snapshot of a run or ErrCacheMiss.
func (c *SnapshotCache) GetSnapshot(ctx context.Context, runID string) (*engine.Snapshot, error) {
	data, err := c.client.Get(ctx, c.snapshotKey(runID))
	if err != nil {
		return nil, err
	}

	var s engine.Snapshot
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &s, nil
}

// GetAgents returns the cached agent states keyed by agent id.
func (c *SnapshotCache) GetAgents(ctx context.Context, runID string) (map[int]engine.AgentState, error) {
	data, err := c.client.HGetAll(ctx, c.agentsKey(runID))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrCacheMiss
	}

	agents := make(map[int]engine.AgentState, len(data))
	for field, raw := range data {
		id, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("bad agent field %q: %w", field, err)
		}
		var a engine.AgentState
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			return nil, fmt.Errorf("failed to unmarshal agent %d: %w", id, err)
		}
		agents[id] = a
	}
	return agents, nil
}

// InvalidateRun removes all cached state for a run.
func (c *SnapshotCache) InvalidateRun(ctx context.Context, runID string) error {
	return c.client.Del(ctx, c.snapshotKey(runID), c.agentsKey(runID))
}

func (c *SnapshotCache) snapshotKey(runID string) string {
	return fmt.Sprintf("roomba:run:%s:snapshot", runID)
}

func (c *SnapshotCache) agentsKey(runID string) string {
	return fmt.Sprintf("roomba:run:%s:agents", runID)
}
