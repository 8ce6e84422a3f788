package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/events"
)

// DefaultWriteTimeout bounds a single persisted write.
const DefaultWriteTimeout = 5 * time.Second

// EventPersister writes simulation events through to a Repository. Run
// start and finish events also maintain the runs table.
type EventPersister struct {
	repo    Repository
	timeout time.Duration
}

var _ events.Persister = (*EventPersister)(nil)

// NewEventPersister wraps repo. A non-positive timeout uses DefaultWriteTimeout.
func NewEventPersister(repo Repository, timeout time.Duration) *EventPersister {
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	return &EventPersister{repo: repo, timeout: timeout}
}

// Append implements events.Persister.
func (p *EventPersister) Append(e events.SimEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	rec, err := ToRecord(e)
	if err != nil {
		return err
	}

	switch e.Type {
	case events.EventTypeRunStarted:
		if err := p.repo.CreateRun(ctx, runFromStart(e, rec.Payload)); err != nil {
			return err
		}
	case events.EventTypeRunFinished:
		var fin struct {
			Steps           int     `json:"steps"`
			Complete        bool    `json:"complete"`
			CleanPercentage float64 `json:"clean_percentage"`
		}
		if err := json.Unmarshal(rec.Payload, &fin); err != nil {
			return fmt.Errorf("decode run summary: %w", err)
		}
		if err := p.repo.FinishRun(ctx, e.RunID, fin.Steps, fin.Complete, fin.CleanPercentage); err != nil {
			return err
		}
	}

	return p.repo.Append(ctx, rec)
}

// ToRecord converts a simulation event to its stored form.
func ToRecord(e events.SimEvent) (EventRecord, error) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return EventRecord{}, fmt.Errorf("encode payload of %s: %w", e.Type, err)
	}
	return EventRecord{
		ID:        e.ID,
		RunID:     e.RunID,
		Timestamp: e.Timestamp,
		EventType: string(e.Type),
		AgentID:   e.AgentID,
		Step:      e.Step,
		Payload:   payload,
	}, nil
}

func runFromStart(e events.SimEvent, payload json.RawMessage) Run {
	var start struct {
		Seed   int64           `json:"seed"`
		Params json.RawMessage `json:"params"`
	}
	// A payload without seed or params still creates the row.
	_ = json.Unmarshal(payload, &start)
	return Run{
		ID:        e.RunID,
		Seed:      start.Seed,
		Params:    start.Params,
		StartedAt: e.Timestamp,
	}
}
