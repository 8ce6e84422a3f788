package engine

import (
	"fmt"

	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/domain/grid"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/domain/roomba"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/rng"
)

// placeBorder walls off the outermost ring of cells.
func placeBorder(g *grid.Grid) error {
	w, h := g.Width(), g.Height()
	for _, c := range g.Cells() {
		x, y := c.Coordinate.X, c.Coordinate.Y
		if x == 0 || y == 0 || x == w-1 || y == h-1 {
			if err := g.PlaceObstacle(c.Coordinate); err != nil {
				return fmt.Errorf("border %s: %w", c.Coordinate, err)
			}
		}
	}
	return nil
}

// placeAgents seeds one station and one agent per zone. A lone agent gets
// the station at (1,1); otherwise each station is drawn uniformly from the
// zone's obstacle-free cells. Agents start on their station.
func placeAgents(g *grid.Grid, zones []roomba.Zone, src *rng.Source, p Params) ([]*roomba.Agent, error) {
	agents := make([]*roomba.Agent, 0, len(zones))

	for i, zone := range zones {
		var station grid.Coordinate
		if len(zones) == 1 {
			station = grid.Coord(1, 1)
		} else {
			var free []grid.Coordinate
			for _, c := range zone.Coordinates() {
				if !g.HasObstacle(c) {
					free = append(free, c)
				}
			}
			pick, ok := rng.Choice(src, free)
			if !ok {
				continue
			}
			station = pick
		}

		if err := g.PlaceStation(station); err != nil {
			return nil, fmt.Errorf("station for zone %s: %w", zone, err)
		}
		a := roomba.New(i+1, station,
			roomba.WithHomeStation(station),
			roomba.WithZone(zone),
			roomba.WithPolicy(p.Policy),
		)
		if err := g.AddAgent(station, a.ID()); err != nil {
			return nil, fmt.Errorf("agent %d: %w", a.ID(), err)
		}
		agents = append(agents, a)
	}
	return agents, nil
}

func freeCells(g *grid.Grid) []grid.Coordinate {
	var out []grid.Coordinate
	for _, c := range g.Cells() {
		if c.IsFree() {
			out = append(out, c.Coordinate)
		}
	}
	return out
}

// scatterDirt places k dirty tiles on cells holding nothing yet. Nothing is
// placed when fewer than k such cells exist.
func scatterDirt(g *grid.Grid, src *rng.Source, k int) (int, error) {
	available := freeCells(g)
	if len(available) < k {
		return 0, nil
	}
	picked, err := rng.Sample(src, available, k)
	if err != nil {
		return 0, err
	}
	for _, c := range picked {
		if err := g.PlaceFloorTile(c, false); err != nil {
			return 0, fmt.Errorf("tile %s: %w", c, err)
		}
	}
	return len(picked), nil
}

// scatterObstacles places k extra obstacles on cells that are still empty,
// tiles included. Nothing is placed when fewer than k such cells exist.
func scatterObstacles(g *grid.Grid, src *rng.Source, k int) (int, error) {
	available := freeCells(g)
	if len(available) < k {
		return 0, nil
	}
	picked, err := rng.Sample(src, available, k)
	if err != nil {
		return 0, err
	}
	for _, c := range picked {
		if err := g.PlaceObstacle(c); err != nil {
			return 0, fmt.Errorf("obstacle %s: %w", c, err)
		}
	}
	return len(picked), nil
}
