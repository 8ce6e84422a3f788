package roomba

import (
	"fmt"

	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/domain/grid"
)

// Zone is the inclusive axis-aligned rectangle an agent sweeps.
type Zone struct {
	MinX int `json:"min_x"`
	MaxX int `json:"max_x"`
	MinY int `json:"min_y"`
	MaxY int `json:"max_y"`
}

// Contains reports whether c lies inside the zone, edges included.
func (z Zone) Contains(c grid.Coordinate) bool {
	return c.X >= z.MinX && c.X <= z.MaxX && c.Y >= z.MinY && c.Y <= z.MaxY
}

// Width is the number of columns covered.
func (z Zone) Width() int { return z.MaxX - z.MinX + 1 }

// Height is the number of rows covered.
func (z Zone) Height() int { return z.MaxY - z.MinY + 1 }

// Coordinates lists every cell of the zone, column by column.
func (z Zone) Coordinates() []grid.Coordinate {
	out := make([]grid.Coordinate, 0, z.Width()*z.Height())
	for x := z.MinX; x <= z.MaxX; x++ {
		for y := z.MinY; y <= z.MaxY; y++ {
			out = append(out, grid.Coord(x, y))
		}
	}
	return out
}

func (z Zone) String() string {
	return fmt.Sprintf("[%d..%d]x[%d..%d]", z.MinX, z.MaxX, z.MinY, z.MaxY)
}
