package grid

import "fmt"

// Coordinate is an integer position on the grid.
type Coordinate struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Coord is a convenience constructor for Coordinate.
func Coord(x, y int) Coordinate { return Coordinate{X: x, Y: y} }

// Add returns c shifted by (dx, dy).
func (c Coordinate) Add(dx, dy int) Coordinate {
	return Coordinate{X: c.X + dx, Y: c.Y + dy}
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// Role is the fixed terrain role of a cell.
type Role uint8

const (
	RoleFloor Role = iota
	RoleObstacle
	RoleStation
)

func (r Role) String() string {
	switch r {
	case RoleObstacle:
		return "obstacle"
	case RoleStation:
		return "station"
	default:
		return "floor"
	}
}

const noTile = -1

// Cell represents a single square of floor. A cell holds at most one
// Obstacle or Station, at most one FloorTile and any number of agents.
type Cell struct {
	Coordinate Coordinate
	role       Role
	tile       int
	agents     []int
}

// Role returns the terrain role of the cell.
func (c *Cell) Role() Role { return c.role }

// HasObstacle reports whether the cell is impassable.
func (c *Cell) HasObstacle() bool { return c.role == RoleObstacle }

// HasStation reports whether the cell is a charging point.
func (c *Cell) HasStation() bool { return c.role == RoleStation }

// HasTile reports whether a floor tile was placed on the cell.
func (c *Cell) HasTile() bool { return c.tile != noTile }

// IsOccupied reports whether any cleaning agent stands on the cell.
func (c *Cell) IsOccupied() bool { return len(c.agents) > 0 }

// Agents returns the ids of the agents standing on the cell.
func (c *Cell) Agents() []int {
	out := make([]int, len(c.agents))
	copy(out, c.agents)
	return out
}

// IsFree reports whether nothing at all has been placed on the cell.
func (c *Cell) IsFree() bool {
	return c.role == RoleFloor && c.tile == noTile && len(c.agents) == 0
}
