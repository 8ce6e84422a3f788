// Package grid defines the discrete floor the cleaning agents move on.
// This package is PURE and must NOT import any infrastructure packages.
//
// The Grid owns every cell, floor tile and agent membership by index.
// Callers hold Coordinates, never pointers into the arena.
package grid

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfBounds is returned for coordinates outside the grid.
	ErrOutOfBounds = errors.New("grid: coordinate out of bounds")
	// ErrCellOccupied is returned when a placement conflicts with the cell's current role.
	ErrCellOccupied = errors.New("grid: cell already holds a conflicting entity")
	// ErrInvalidSize is returned for non-positive dimensions.
	ErrInvalidSize = errors.New("grid: width and height must be positive")
	// ErrAgentNotFound is returned when an agent is not a member of the given cell.
	ErrAgentNotFound = errors.New("grid: agent not found in cell")
)

// Grid is a width x height non-toroidal floor.
type Grid struct {
	width  int
	height int
	cells  []Cell
	tiles  []FloorTile
}

// New creates an empty grid where every cell is plain floor.
func New(width, height int) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: got %dx%d", ErrInvalidSize, width, height)
	}

	g := &Grid{
		width:  width,
		height: height,
		cells:  make([]Cell, width*height),
	}
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			g.cells[g.index(Coordinate{X: x, Y: y})] = Cell{
				Coordinate: Coordinate{X: x, Y: y},
				tile:       noTile,
			}
		}
	}
	return g, nil
}

// Width returns the number of columns.
func (g *Grid) Width() int { return g.width }

// Height returns the number of rows.
func (g *Grid) Height() int { return g.height }

// InBounds reports whether c lies on the grid.
func (g *Grid) InBounds(c Coordinate) bool {
	return c.X >= 0 && c.X < g.width && c.Y >= 0 && c.Y < g.height
}

func (g *Grid) index(c Coordinate) int {
	return c.X*g.height + c.Y
}

// Cell returns the cell at c.
func (g *Grid) Cell(c Coordinate) (*Cell, error) {
	if !g.InBounds(c) {
		return nil, fmt.Errorf("%w: %v", ErrOutOfBounds, c)
	}
	return &g.cells[g.index(c)], nil
}

// Cells returns every cell, column by column (x major, then y).
func (g *Grid) Cells() []*Cell {
	out := make([]*Cell, len(g.cells))
	for i := range g.cells {
		out[i] = &g.cells[i]
	}
	return out
}

// neighborOffsets fixes the Moore enumeration order used for tie-breaking.
var neighborOffsets = [8]Coordinate{
	{-1, -1}, {-1, 0}, {-1, 1},
	{0, -1}, {0, 1},
	{1, -1}, {1, 0}, {1, 1},
}

// Neighbors returns the up-to-8 Moore neighbors of c, clipped at the edges.
// The order is stable: dx from -1 to 1, then dy from -1 to 1.
func (g *Grid) Neighbors(c Coordinate) []Coordinate {
	out := make([]Coordinate, 0, len(neighborOffsets))
	for _, off := range neighborOffsets {
		n := c.Add(off.X, off.Y)
		if g.InBounds(n) {
			out = append(out, n)
		}
	}
	return out
}

// HasObstacle reports whether c holds an obstacle. Out-of-bounds coordinates report false.
func (g *Grid) HasObstacle(c Coordinate) bool {
	if !g.InBounds(c) {
		return false
	}
	return g.cells[g.index(c)].role == RoleObstacle
}

// HasStation reports whether c holds a charging station.
func (g *Grid) HasStation(c Coordinate) bool {
	if !g.InBounds(c) {
		return false
	}
	return g.cells[g.index(c)].role == RoleStation
}

// FloorTile returns the tile placed on c, if any.
func (g *Grid) FloorTile(c Coordinate) (FloorTile, bool) {
	if !g.InBounds(c) {
		return FloorTile{}, false
	}
	cell := &g.cells[g.index(c)]
	if cell.tile == noTile {
		return FloorTile{}, false
	}
	return g.tiles[cell.tile], true
}

// HasDirtyTile reports whether c holds a floor tile that is not yet clean.
func (g *Grid) HasDirtyTile(c Coordinate) bool {
	tile, ok := g.FloorTile(c)
	return ok && !tile.Clean
}

// CleanTile marks the dirty tile on c as clean. It returns false when there
// is nothing to clean. Cleaning is one-way.
func (g *Grid) CleanTile(c Coordinate) bool {
	if !g.InBounds(c) {
		return false
	}
	cell := &g.cells[g.index(c)]
	if cell.tile == noTile || g.tiles[cell.tile].Clean {
		return false
	}
	g.tiles[cell.tile].Clean = true
	return true
}

// PlaceObstacle marks c as impassable.
func (g *Grid) PlaceObstacle(c Coordinate) error {
	return g.setRole(c, RoleObstacle)
}

// PlaceStation marks c as a charging station.
func (g *Grid) PlaceStation(c Coordinate) error {
	return g.setRole(c, RoleStation)
}

func (g *Grid) setRole(c Coordinate, role Role) error {
	cell, err := g.Cell(c)
	if err != nil {
		return err
	}
	if cell.role != RoleFloor {
		return fmt.Errorf("%w: %v is already %s", ErrCellOccupied, c, cell.role)
	}
	cell.role = role
	return nil
}

// PlaceFloorTile puts a tile on c with the given cleanliness.
func (g *Grid) PlaceFloorTile(c Coordinate, clean bool) error {
	cell, err := g.Cell(c)
	if err != nil {
		return err
	}
	if cell.tile != noTile {
		return fmt.Errorf("%w: %v already has a floor tile", ErrCellOccupied, c)
	}
	cell.tile = len(g.tiles)
	g.tiles = append(g.tiles, FloorTile{Coordinate: c, Clean: clean})
	return nil
}

// AddAgent records agent id as a member of c.
func (g *Grid) AddAgent(c Coordinate, id int) error {
	cell, err := g.Cell(c)
	if err != nil {
		return err
	}
	cell.agents = append(cell.agents, id)
	return nil
}

// RemoveAgent drops agent id from c.
func (g *Grid) RemoveAgent(c Coordinate, id int) error {
	cell, err := g.Cell(c)
	if err != nil {
		return err
	}
	for i, member := range cell.agents {
		if member == id {
			cell.agents = append(cell.agents[:i], cell.agents[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: agent %d at %v", ErrAgentNotFound, id, c)
}

// MoveAgent transfers agent id from one cell to another.
func (g *Grid) MoveAgent(id int, from, to Coordinate) error {
	if !g.InBounds(to) {
		return fmt.Errorf("%w: %v", ErrOutOfBounds, to)
	}
	if err := g.RemoveAgent(from, id); err != nil {
		return err
	}
	return g.AddAgent(to, id)
}

// FloorTiles returns a copy of every tile in placement order.
func (g *Grid) FloorTiles() []FloorTile {
	out := make([]FloorTile, len(g.tiles))
	copy(out, g.tiles)
	return out
}

// CountTiles returns the number of dirty and clean tiles.
func (g *Grid) CountTiles() (dirty, clean int) {
	for _, t := range g.tiles {
		if t.Clean {
			clean++
		} else {
			dirty++
		}
	}
	return dirty, clean
}

// Obstacles lists every obstacle on the grid.
func (g *Grid) Obstacles() []Obstacle {
	var out []Obstacle
	for i := range g.cells {
		if g.cells[i].role == RoleObstacle {
			out = append(out, Obstacle{Coordinate: g.cells[i].Coordinate})
		}
	}
	return out
}

// Stations lists every charging station on the grid.
func (g *Grid) Stations() []Station {
	var out []Station
	for i := range g.cells {
		if g.cells[i].role == RoleStation {
			out = append(out, Station{Coordinate: g.cells[i].Coordinate})
		}
	}
	return out
}
