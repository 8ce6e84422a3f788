// Package events provides the append-only log of everything a simulation run
// did. The log is the source for replay and for the persisted run history.
package events

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType defines the category of a simulation event.
type EventType string

const (
	EventTypeRunStarted      EventType = "RUN_STARTED"
	EventTypeAgentAction     EventType = "AGENT_ACTION"
	EventTypeTileCleaned     EventType = "TILE_CLEANED"
	EventTypeAgentCharged    EventType = "AGENT_CHARGED"
	EventTypeBatteryDepleted EventType = "BATTERY_DEPLETED"
	EventTypeRunFinished     EventType = "RUN_FINISHED"
)

// SimEvent is an immutable record of something that happened during a run.
type SimEvent struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	AgentID   int       `json:"agent_id"` // 0 for run-level events
	Step      int       `json:"step"`
	Payload   any       `json:"payload,omitempty"`
}

// NewEvent stamps a fresh event with an ID and the current time.
func NewEvent(runID string, t EventType, agentID, step int, payload any) SimEvent {
	return SimEvent{
		ID:        GenerateEventID(),
		RunID:     runID,
		Timestamp: time.Now().UTC(),
		Type:      t,
		AgentID:   agentID,
		Step:      step,
		Payload:   payload,
	}
}

// Persister defines how an event is durably stored.
type Persister interface {
	Append(event SimEvent) error
}

// EventLog is the in-memory append-only log of simulation events, with an
// optional write-through persister.
type EventLog struct {
	mu        sync.RWMutex
	events    []SimEvent
	persister Persister
}

// NewEventLog creates a new event log. persister may be nil.
func NewEventLog(persister Persister) *EventLog {
	return &EventLog{
		events:    make([]SimEvent, 0),
		persister: persister,
	}
}

// Append adds an event to the log. The event is kept in memory even when the
// persister fails; the persister error is returned so callers can count it.
func (el *EventLog) Append(event SimEvent) error {
	el.mu.Lock()
	el.events = append(el.events, event)
	p := el.persister
	el.mu.Unlock()

	if p == nil {
		return nil
	}
	if err := p.Append(event); err != nil {
		return fmt.Errorf("persist event %s: %w", event.ID, err)
	}
	return nil
}

// Len returns the number of events recorded.
func (el *EventLog) Len() int {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return len(el.events)
}

// GetByAgent returns all events attributed to one agent.
func (el *EventLog) GetByAgent(agentID int) []SimEvent {
	return el.filter(func(e SimEvent) bool { return e.AgentID == agentID })
}

// GetByRun returns all events of one run.
func (el *EventLog) GetByRun(runID string) []SimEvent {
	return el.filter(func(e SimEvent) bool { return e.RunID == runID })
}

// GetByStep returns all events recorded during a single step.
func (el *EventLog) GetByStep(step int) []SimEvent {
	return el.filter(func(e SimEvent) bool { return e.Step == step })
}

// GetByType returns all events of one type.
func (el *EventLog) GetByType(t EventType) []SimEvent {
	return el.filter(func(e SimEvent) bool { return e.Type == t })
}

// Since returns the events appended after the first n.
func (el *EventLog) Since(n int) []SimEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()
	if n < 0 {
		n = 0
	}
	if n >= len(el.events) {
		return nil
	}
	out := make([]SimEvent, len(el.events)-n)
	copy(out, el.events[n:])
	return out
}

// Replay returns a copy of the full history in append order.
func (el *EventLog) Replay() []SimEvent {
	return el.Since(0)
}

func (el *EventLog) filter(keep func(SimEvent) bool) []SimEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []SimEvent
	for _, e := range el.events {
		if keep(e) {
			result = append(result, e)
		}
	}
	return result
}

// GenerateEventID creates a unique event identifier.
func GenerateEventID() string {
	return uuid.NewString()
}
