package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/domain/grid"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/domain/roomba"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/events"
)

// RebuiltState is an agent's state derived purely from its events.
type RebuiltState struct {
	AgentID      int             `json:"agent_id"`
	Step         int             `json:"step"`
	Position     grid.Coordinate `json:"position"`
	Battery      int             `json:"battery"`
	Movements    int             `json:"movements"`
	TilesCleaned int             `json:"tiles_cleaned"`
	Charges      int             `json:"charges"`
	Dead         bool            `json:"dead"`
}

// Snapshot converts the state to a storable row.
func (s RebuiltState) Snapshot(runID string) AgentSnapshot {
	return AgentSnapshot{
		RunID:     runID,
		AgentID:   s.AgentID,
		Step:      s.Step,
		X:         s.Position.X,
		Y:         s.Position.Y,
		Battery:   s.Battery,
		Movements: s.Movements,
		Dead:      s.Dead,
	}
}

// Replay folds AGENT_ACTION events into per-agent state, ordered by agent id.
// Events must be in append order.
func Replay(records []EventRecord) ([]RebuiltState, error) {
	states := make(map[int]*RebuiltState)
	for _, e := range records {
		if e.EventType != string(events.EventTypeAgentAction) {
			continue
		}
		var out roomba.Outcome
		if err := json.Unmarshal(e.Payload, &out); err != nil {
			return nil, fmt.Errorf("decode event %s: %w", e.ID, err)
		}

		st, ok := states[e.AgentID]
		if !ok {
			st = &RebuiltState{AgentID: e.AgentID}
			states[e.AgentID] = st
		}
		st.Step = e.Step
		st.Position = out.To
		st.Battery = out.Battery
		st.Dead = out.Battery <= 0
		if out.Moved {
			st.Movements++
		}
		if out.Cleaned {
			st.TilesCleaned++
		}
		if out.Action == roomba.ActionCharge {
			st.Charges++
		}
	}

	result := make([]RebuiltState, 0, len(states))
	for _, st := range states {
		result = append(result, *st)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].AgentID < result[j].AgentID })
	return result, nil
}

// Reconstructor rebuilds agent state and step recaps from stored events.
// This is used for:
// 1. Replaying a finished run without re-simulating it
// 2. Snapshot rebuilding after cache invalidation
// 3. Auditing and debugging
type Reconstructor struct {
	eventRepo EventRepository
}

// NewReconstructor creates a new state reconstructor.
func NewReconstructor(eventRepo EventRepository) *Reconstructor {
	return &Reconstructor{eventRepo: eventRepo}
}

// RebuildAgentStates replays a whole run.
func (r *Reconstructor) RebuildAgentStates(ctx context.Context, runID string) ([]RebuiltState, error) {
	records, err := r.eventRepo.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get events for run: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}
	return Replay(records)
}

// RecapEvent is a one-line, human-readable account of an agent action.
type RecapEvent struct {
	Step    int    `json:"step"`
	AgentID int    `json:"agent_id"`
	Action  string `json:"action"`
	Summary string `json:"summary"`
}

// GenerateRecap summarizes one agent's actions from sinceStep onwards.
func (r *Reconstructor) GenerateRecap(ctx context.Context, runID string, agentID, sinceStep int) ([]RecapEvent, error) {
	records, err := r.eventRepo.GetByAgentID(ctx, runID, agentID)
	if err != nil {
		return nil, err
	}

	var recap []RecapEvent
	for _, e := range records {
		if e.Step < sinceStep || e.EventType != string(events.EventTypeAgentAction) {
			continue
		}
		var out roomba.Outcome
		if err := json.Unmarshal(e.Payload, &out); err != nil {
			return nil, fmt.Errorf("decode event %s: %w", e.ID, err)
		}
		recap = append(recap, RecapEvent{
			Step:    e.Step,
			AgentID: agentID,
			Action:  string(out.Action),
			Summary: summarize(out),
		})
	}
	return recap, nil
}

func summarize(out roomba.Outcome) string {
	switch out.Action {
	case roomba.ActionDead:
		return fmt.Sprintf("battery empty at %s", out.From)
	case roomba.ActionCharge:
		return fmt.Sprintf("charged to %d%% at %s", out.Battery, out.From)
	case roomba.ActionClean:
		return fmt.Sprintf("cleaned %s", out.From)
	case roomba.ActionIdle:
		return fmt.Sprintf("stuck at %s", out.From)
	}
	if !out.Moved {
		return fmt.Sprintf("%s failed at %s", out.Action, out.From)
	}
	return fmt.Sprintf("%s %s -> %s (%d%%)", out.Action, out.From, out.To, out.Battery)
}
