package engine

import (
	"fmt"

	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/domain/roomba"
)

// PartitionZones splits the interior of a width x height grid into n
// vertical strips of (width-2)/n columns. The last strip absorbs the
// remainder. Every strip spans rows 1..height-2.
func PartitionZones(width, height, n int) ([]roomba.Zone, error) {
	usable := width - 2
	if usable < 1 || height < 3 {
		return nil, fmt.Errorf("%w: %dx%d grid has no interior", ErrInvalidParams, width, height)
	}
	if n < 1 || n > usable {
		return nil, fmt.Errorf("%w: cannot split %d columns into %d zones", ErrInvalidParams, usable, n)
	}

	section := usable / n
	zones := make([]roomba.Zone, n)
	for i := range zones {
		minX := 1 + i*section
		maxX := minX + section - 1
		if i == n-1 {
			maxX = width - 2
		}
		zones[i] = roomba.Zone{MinX: minX, MaxX: maxX, MinY: 1, MaxY: height - 2}
	}
	return zones, nil
}
