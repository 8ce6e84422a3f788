package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsInvalidSize(t *testing.T) {
	_, err := New(0, 5)
	assert.ErrorIs(t, err, ErrInvalidSize)

	_, err = New(5, -1)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestCellLookup(t *testing.T) {
	g, err := New(4, 3)
	require.NoError(t, err)

	cell, err := g.Cell(Coord(3, 2))
	require.NoError(t, err)
	assert.Equal(t, Coord(3, 2), cell.Coordinate)
	assert.True(t, cell.IsFree())

	_, err = g.Cell(Coord(4, 0))
	assert.ErrorIs(t, err, ErrOutOfBounds)
	_, err = g.Cell(Coord(0, -1))
	assert.ErrorIs(t, err, ErrOutOfBounds)

	assert.Len(t, g.Cells(), 12)
}

func TestNeighborsAreClippedAndOrdered(t *testing.T) {
	g, err := New(5, 5)
	require.NoError(t, err)

	corner := g.Neighbors(Coord(0, 0))
	assert.Equal(t, []Coordinate{{0, 1}, {1, 0}, {1, 1}}, corner)

	center := g.Neighbors(Coord(2, 2))
	assert.Equal(t, []Coordinate{
		{1, 1}, {1, 2}, {1, 3},
		{2, 1}, {2, 3},
		{3, 1}, {3, 2}, {3, 3},
	}, center)

	edge := g.Neighbors(Coord(4, 2))
	assert.Len(t, edge, 5)
}

func TestRolesAreExclusive(t *testing.T) {
	g, err := New(3, 3)
	require.NoError(t, err)

	require.NoError(t, g.PlaceObstacle(Coord(0, 0)))
	assert.ErrorIs(t, g.PlaceStation(Coord(0, 0)), ErrCellOccupied)
	assert.ErrorIs(t, g.PlaceObstacle(Coord(0, 0)), ErrCellOccupied)

	require.NoError(t, g.PlaceStation(Coord(1, 1)))
	assert.True(t, g.HasStation(Coord(1, 1)))
	assert.False(t, g.HasObstacle(Coord(1, 1)))
	assert.True(t, g.HasObstacle(Coord(0, 0)))
	assert.False(t, g.HasObstacle(Coord(9, 9)))

	require.NoError(t, g.PlaceFloorTile(Coord(2, 2), false))
	assert.ErrorIs(t, g.PlaceFloorTile(Coord(2, 2), true), ErrCellOccupied)

	assert.Len(t, g.Obstacles(), 1)
	assert.Len(t, g.Stations(), 1)
}

func TestCleanTileIsOneWay(t *testing.T) {
	g, err := New(3, 3)
	require.NoError(t, err)
	require.NoError(t, g.PlaceFloorTile(Coord(1, 2), false))

	assert.True(t, g.HasDirtyTile(Coord(1, 2)))
	assert.True(t, g.CleanTile(Coord(1, 2)))
	assert.False(t, g.HasDirtyTile(Coord(1, 2)))
	assert.False(t, g.CleanTile(Coord(1, 2)), "an already clean tile cannot be cleaned again")
	assert.False(t, g.CleanTile(Coord(0, 0)), "no tile on this cell")

	tile, ok := g.FloorTile(Coord(1, 2))
	require.True(t, ok)
	assert.True(t, tile.Clean)

	dirty, clean := g.CountTiles()
	assert.Equal(t, 0, dirty)
	assert.Equal(t, 1, clean)
}

func TestAgentMembership(t *testing.T) {
	g, err := New(3, 3)
	require.NoError(t, err)

	require.NoError(t, g.AddAgent(Coord(0, 0), 7))
	require.NoError(t, g.AddAgent(Coord(0, 0), 8))

	cell, _ := g.Cell(Coord(0, 0))
	assert.ElementsMatch(t, []int{7, 8}, cell.Agents())

	require.NoError(t, g.MoveAgent(7, Coord(0, 0), Coord(1, 1)))
	assert.Equal(t, []int{8}, cell.Agents())

	dest, _ := g.Cell(Coord(1, 1))
	assert.Equal(t, []int{7}, dest.Agents())
	assert.True(t, dest.IsOccupied())

	assert.ErrorIs(t, g.MoveAgent(7, Coord(0, 0), Coord(2, 2)), ErrAgentNotFound)
	assert.ErrorIs(t, g.MoveAgent(7, Coord(1, 1), Coord(3, 3)), ErrOutOfBounds)
}
