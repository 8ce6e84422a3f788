package roomba

import "github.com/PaoloZesatiTec/Tareas-multiagentes/internal/domain/grid"

// Action names the rule an agent fired during a tick.
type Action string

const (
	ActionDead     Action = "DEAD"      // battery exhausted, nothing happens
	ActionCharge   Action = "CHARGE"    // on a station, battery refilled
	ActionSeekHome Action = "SEEK_HOME" // low battery, heading to the home station
	ActionClean    Action = "CLEAN"     // cleaned the tile underneath
	ActionSeekDirt Action = "SEEK_DIRT" // stepped onto a dirty neighbor
	ActionSweep    Action = "SWEEP"     // lawn-mower coverage step
	ActionExplore  Action = "EXPLORE"   // least-visited neighbor fallback
	ActionIdle     Action = "IDLE"      // no move was possible
)

// Direction is the row order of the snake sweep.
type Direction bool

const (
	Increasing Direction = true
	Decreasing Direction = false
)

func (d Direction) String() string {
	if d == Increasing {
		return "increasing"
	}
	return "decreasing"
}

// Outcome describes what one Step did.
type Outcome struct {
	AgentID int             `json:"agent_id"`
	Action  Action          `json:"action"`
	From    grid.Coordinate `json:"from"`
	To      grid.Coordinate `json:"to"`
	Moved   bool            `json:"moved"`
	Cleaned bool            `json:"cleaned"`
	Battery int             `json:"battery"`
}
