package engine

import (
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/domain/grid"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/domain/roomba"
)

// AgentState is the public view of one cleaning agent.
type AgentState struct {
	ID          int              `json:"id"`
	Position    grid.Coordinate  `json:"position"`
	Battery     int              `json:"battery"`
	Movements   int              `json:"movements"`
	HomeStation *grid.Coordinate `json:"home_station,omitempty"`
	Zone        *roomba.Zone     `json:"zone,omitempty"`
	Sweep       string           `json:"sweep"`
	Visited     int              `json:"visited"`
	Dead        bool             `json:"dead"`
}

// Snapshot is a self-contained copy of the model state, safe to hand to
// other goroutines.
type Snapshot struct {
	RunID           string            `json:"run_id"`
	Step            int               `json:"step"`
	Running         bool              `json:"running"`
	Width           int               `json:"width"`
	Height          int               `json:"height"`
	CleanPercentage float64           `json:"clean_percentage"`
	DirtyTiles      int               `json:"dirty_tiles"`
	CleanTiles      int               `json:"clean_tiles"`
	ActiveAgents    int               `json:"active_agents"`
	Agents          []AgentState      `json:"agents"`
	Tiles           []grid.FloorTile  `json:"tiles"`
	Obstacles       []grid.Coordinate `json:"obstacles"`
	Stations        []grid.Coordinate `json:"stations"`
}

// NewAgentState captures a.
func NewAgentState(a *roomba.Agent) AgentState {
	s := AgentState{
		ID:        a.ID(),
		Position:  a.Coordinate(),
		Battery:   a.Battery(),
		Movements: a.Movements(),
		Sweep:     a.SweepDirection().String(),
		Visited:   a.Visited(),
		Dead:      a.IsDead(),
	}
	if home, ok := a.HomeStation(); ok {
		s.HomeStation = &home
	}
	if z, ok := a.Zone(); ok {
		s.Zone = &z
	}
	return s
}

// Snapshot captures the current state.
func (m *Model) Snapshot() Snapshot {
	dirty, clean := m.grid.CountTiles()
	s := Snapshot{
		RunID:           m.runID,
		Step:            m.stepsTaken,
		Running:         m.running,
		Width:           m.grid.Width(),
		Height:          m.grid.Height(),
		CleanPercentage: m.CleanPercentage(),
		DirtyTiles:      dirty,
		CleanTiles:      clean,
		ActiveAgents:    m.ActiveAgents(),
		Tiles:           m.grid.FloorTiles(),
	}
	for _, a := range m.scheduler.agents {
		s.Agents = append(s.Agents, NewAgentState(a))
	}
	for _, o := range m.grid.Obstacles() {
		s.Obstacles = append(s.Obstacles, o.Coordinate)
	}
	for _, st := range m.grid.Stations() {
		s.Stations = append(s.Stations, st.Coordinate)
	}
	return s
}
