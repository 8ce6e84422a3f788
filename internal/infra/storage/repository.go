// Package storage provides the persistence layer for simulation runs.
// This package implements the repository pattern to keep the domain pure.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrRunNotFound is returned when a run id has no stored record.
var ErrRunNotFound = errors.New("storage: run not found")

// Run is the summary row of one simulation run.
type Run struct {
	ID              string          `json:"id" db:"id"`
	Seed            int64           `json:"seed" db:"seed"`
	Params          json.RawMessage `json:"params" db:"params"`
	StartedAt       time.Time       `json:"started_at" db:"started_at"`
	FinishedAt      *time.Time      `json:"finished_at,omitempty" db:"finished_at"`
	Steps           int             `json:"steps" db:"steps"`
	Complete        bool            `json:"complete" db:"complete"`
	CleanPercentage float64         `json:"clean_percentage" db:"clean_percentage"`
}

// EventRecord mirrors the simulation event for persistence.
// The domain packages should NOT import this; use interfaces instead.
type EventRecord struct {
	ID        string          `json:"id" db:"id"`
	RunID     string          `json:"run_id" db:"run_id"`
	Timestamp time.Time       `json:"timestamp" db:"ts"`
	EventType string          `json:"event_type" db:"event_type"`
	AgentID   int             `json:"agent_id" db:"agent_id"`
	Step      int             `json:"step" db:"step"`
	Payload   json.RawMessage `json:"payload" db:"payload"`
}

// AgentSnapshot is the state of one agent at one step, for quick reads.
type AgentSnapshot struct {
	RunID      string    `json:"run_id" db:"run_id"`
	AgentID    int       `json:"agent_id" db:"agent_id"`
	Step       int       `json:"step" db:"step"`
	X          int       `json:"x" db:"x"`
	Y          int       `json:"y" db:"y"`
	Battery    int       `json:"battery" db:"battery"`
	Movements  int       `json:"movements" db:"movements"`
	Dead       bool      `json:"dead" db:"dead"`
	RecordedAt time.Time `json:"recorded_at" db:"recorded_at"`
}

// RunRepository stores run summaries.
type RunRepository interface {
	// CreateRun inserts a new run row.
	CreateRun(ctx context.Context, run Run) error

	// FinishRun records the outcome of a run.
	FinishRun(ctx context.Context, runID string, steps int, complete bool, cleanPct float64) error

	// GetRun returns ErrRunNotFound for unknown ids.
	GetRun(ctx context.Context, runID string) (*Run, error)

	// ListRuns returns the most recent runs first.
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}

// EventRepository defines the interface for event persistence.
type EventRepository interface {
	// Append adds a new event to the immutable ledger.
	Append(ctx context.Context, event EventRecord) error

	// GetByRunID retrieves all events of a run (for replay).
	GetByRunID(ctx context.Context, runID string) ([]EventRecord, error)

	// GetByAgentID retrieves all events of one agent.
	GetByAgentID(ctx context.Context, runID string, agentID int) ([]EventRecord, error)

	// GetByStep retrieves all events recorded during one step.
	GetByStep(ctx context.Context, runID string, step int) ([]EventRecord, error)

	// GetByEventType retrieves all events of a specific type.
	GetByEventType(ctx context.Context, runID, eventType string) ([]EventRecord, error)
}

// SnapshotRepository defines the interface for agent state snapshots.
type SnapshotRepository interface {
	// Upsert inserts or replaces snapshots keyed by run, agent and step.
	Upsert(ctx context.Context, snapshots ...AgentSnapshot) error

	// GetLatest returns the newest snapshot of every agent in a run.
	GetLatest(ctx context.Context, runID string) ([]AgentSnapshot, error)

	// RebuildFromEvents reconstructs final snapshots from the event log.
	RebuildFromEvents(ctx context.Context, runID string, events []EventRecord) error
}

// Repository bundles the three stores one database provides.
type Repository interface {
	RunRepository
	EventRepository
	SnapshotRepository
}
