package roomba

import (
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/domain/grid"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/domain/rules"
)

// Step runs exactly one action, chosen by first-match priority:
// dead, charge, seek home, clean, seek dirt, sweep.
func (a *Agent) Step(f Floor, r Random) Outcome {
	out := Outcome{AgentID: a.id, From: a.position}

	switch {
	case a.battery <= 0:
		out.Action = ActionDead
	case f.HasStation(a.position) && a.policy.CanCharge(a.battery):
		a.battery = a.policy.Charge(a.battery)
		out.Action = ActionCharge
	case a.policy.NeedsCharging(a.battery):
		out.Action = ActionSeekHome
		out.Moved = a.moveTowardsHome(f, r)
	case f.HasDirtyTile(a.position):
		out.Action = ActionClean
		out.Cleaned = a.cleanCurrentCell(f)
	case a.moveToDirtyNeighbor(f):
		out.Action = ActionSeekDirt
		out.Moved = true
	case a.moveSnake(f):
		out.Action = ActionSweep
		out.Moved = true
	case a.moveToUnvisitedNeighbor(f, r):
		out.Action = ActionExplore
		out.Moved = true
	default:
		out.Action = ActionIdle
	}

	out.To = a.position
	out.Battery = a.battery
	return out
}

func (a *Agent) cleanCurrentCell(f Floor) bool {
	if a.battery <= 0 || !f.CleanTile(a.position) {
		return false
	}
	a.battery = a.policy.Drain(a.battery, a.policy.CleanCost)
	return true
}

// moveTo performs the shared bookkeeping of every successful move.
func (a *Agent) moveTo(f Floor, target grid.Coordinate) bool {
	if err := f.MoveAgent(a.id, a.position, target); err != nil {
		return false
	}
	a.position = target
	a.visits[target]++
	a.battery = a.policy.Drain(a.battery, a.policy.MoveCost)
	a.movements++
	return true
}

// moveTowardsHome greedily steps to the neighbor closest to the home station.
// The zone does not apply, so an agent that wandered off its strip can still
// get back. Without a home station it wanders to the least visited neighbor.
func (a *Agent) moveTowardsHome(f Floor, r Random) bool {
	if a.battery <= 0 {
		return false
	}
	if a.homeStation == nil {
		return a.moveToUnvisitedNeighbor(f, r)
	}

	home := *a.homeStation
	best, bestDistance, found := grid.Coordinate{}, 0, false
	for _, n := range f.Neighbors(a.position) {
		if f.HasObstacle(n) {
			continue
		}
		d := rules.ManhattanDistance(n, home)
		if !found || d < bestDistance {
			best, bestDistance, found = n, d, true
		}
	}
	if !found {
		return false
	}
	return a.moveTo(f, best)
}

// moveToDirtyNeighbor steps onto the least visited dirty neighbor.
func (a *Agent) moveToDirtyNeighbor(f Floor) bool {
	if a.battery <= 0 {
		return false
	}

	best, bestVisits, found := grid.Coordinate{}, 0, false
	for _, n := range f.Neighbors(a.position) {
		if f.HasObstacle(n) || !f.HasDirtyTile(n) {
			continue
		}
		v := a.visits[n]
		if !found || v < bestVisits {
			best, bestVisits, found = n, v, true
		}
	}
	if !found {
		return false
	}
	return a.moveTo(f, best)
}

// moveToUnvisitedNeighbor picks at random among the obstacle-free neighbors
// tied for the lowest visit count. The zone does not apply here.
func (a *Agent) moveToUnvisitedNeighbor(f Floor, r Random) bool {
	if a.battery <= 0 {
		return false
	}

	var candidates []grid.Coordinate
	minVisits := 0
	for _, n := range f.Neighbors(a.position) {
		if f.HasObstacle(n) {
			continue
		}
		v := a.visits[n]
		switch {
		case len(candidates) == 0 || v < minVisits:
			candidates = append(candidates[:0], n)
			minVisits = v
		case v == minVisits:
			candidates = append(candidates, n)
		}
	}
	if len(candidates) == 0 {
		return false
	}
	return a.moveTo(f, candidates[r.IntN(len(candidates))])
}

// canSnakeTo is the strict sweep validity check: inside the zone, no
// obstacle, never visited. Agents without a zone can never snake.
func (a *Agent) canSnakeTo(f Floor, c grid.Coordinate) bool {
	if a.zone == nil || !a.zone.Contains(c) || !f.InBounds(c) {
		return false
	}
	return !f.HasObstacle(c) && a.visits[c] == 0
}

// moveSnake advances the lawn-mower sweep by one cell. When the current lane
// is exhausted the direction flips for the next attempt.
func (a *Agent) moveSnake(f Floor) bool {
	if a.battery <= 0 || a.zone == nil {
		return false
	}

	cur := a.position
	dy := 1
	if a.sweep == Decreasing {
		dy = -1
	}

	for _, target := range []grid.Coordinate{
		cur.Add(0, dy),
		cur.Add(-1, 0),
		cur.Add(1, 0),
	} {
		if a.canSnakeTo(f, target) {
			return a.moveTo(f, target)
		}
	}

	a.sweep = !a.sweep
	next := cur.Add(1, 0)
	if next.X <= a.zone.MaxX && a.canSnakeTo(f, next) {
		return a.moveTo(f, next)
	}
	return false
}
