// Package roomba defines the cleaning agent and its per-tick decision policy.
// This package is PURE and must NOT import any infrastructure packages.
package roomba

import (
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/domain/grid"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/domain/rules"
)

// Floor is the view of the shared grid an agent reads and mutates.
// *grid.Grid satisfies it.
type Floor interface {
	InBounds(c grid.Coordinate) bool
	Neighbors(c grid.Coordinate) []grid.Coordinate
	HasObstacle(c grid.Coordinate) bool
	HasStation(c grid.Coordinate) bool
	HasDirtyTile(c grid.Coordinate) bool
	CleanTile(c grid.Coordinate) bool
	MoveAgent(id int, from, to grid.Coordinate) error
}

// Random is the slice of the shared random stream the policy needs.
type Random interface {
	IntN(n int) int
}

// Agent is a battery-powered cleaner confined to a zone.
type Agent struct {
	id          int
	position    grid.Coordinate
	battery     int
	movements   int
	homeStation *grid.Coordinate
	zone        *Zone
	sweep       Direction
	visits      map[grid.Coordinate]int
	policy      rules.Policy
}

// Option customizes a new Agent.
type Option func(*Agent)

// WithBattery sets the starting charge, clamped to the policy range.
func WithBattery(level int) Option {
	return func(a *Agent) { a.battery = level }
}

// WithHomeStation sets the station the agent returns to when low.
func WithHomeStation(c grid.Coordinate) Option {
	return func(a *Agent) {
		home := c
		a.homeStation = &home
	}
}

// WithZone confines the sweep to z.
func WithZone(z Zone) Option {
	return func(a *Agent) {
		zone := z
		a.zone = &zone
	}
}

// WithPolicy overrides the battery tuning.
func WithPolicy(p rules.Policy) Option {
	return func(a *Agent) { a.policy = p }
}

// WithSweepDirection sets the initial snake direction.
func WithSweepDirection(d Direction) Option {
	return func(a *Agent) { a.sweep = d }
}

// New creates an agent standing on start. The start cell counts as visited
// once. The agent is not added to any grid; the caller owns membership.
func New(id int, start grid.Coordinate, opts ...Option) *Agent {
	a := &Agent{
		id:       id,
		position: start,
		sweep:    Increasing,
		visits:   map[grid.Coordinate]int{start: 1},
		policy:   rules.DefaultPolicy(),
	}
	a.battery = a.policy.FullBattery
	for _, opt := range opts {
		opt(a)
	}
	a.battery = rules.Clamp(a.battery, 0, a.policy.FullBattery)
	return a
}

// ID returns the agent's identifier.
func (a *Agent) ID() int { return a.id }

// Coordinate returns the cell the agent currently occupies.
func (a *Agent) Coordinate() grid.Coordinate { return a.position }

// Battery returns the current charge.
func (a *Agent) Battery() int { return a.battery }

// Movements returns how many successful moves the agent has made.
func (a *Agent) Movements() int { return a.movements }

// HomeStation returns the home station, if one was assigned.
func (a *Agent) HomeStation() (grid.Coordinate, bool) {
	if a.homeStation == nil {
		return grid.Coordinate{}, false
	}
	return *a.homeStation, true
}

// Zone returns the sweep zone, if one was assigned.
func (a *Agent) Zone() (Zone, bool) {
	if a.zone == nil {
		return Zone{}, false
	}
	return *a.zone, true
}

// SweepDirection returns the current snake direction.
func (a *Agent) SweepDirection() Direction { return a.sweep }

// VisitCount returns how many times the agent has occupied c.
func (a *Agent) VisitCount(c grid.Coordinate) int { return a.visits[c] }

// Visited returns the number of distinct coordinates the agent has occupied.
func (a *Agent) Visited() int { return len(a.visits) }

// IsDead reports whether the battery is exhausted.
func (a *Agent) IsDead() bool { return a.battery <= 0 }

// Policy returns the battery tuning in effect.
func (a *Agent) Policy() rules.Policy { return a.policy }
