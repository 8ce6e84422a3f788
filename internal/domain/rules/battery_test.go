package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/domain/grid"
)

func TestChargeCapsAtFull(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		battery int
		want    int
	}{
		{0, 5},
		{40, 45},
		{96, 100},
		{100, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Charge(tt.battery), "charge from %d", tt.battery)
	}
}

func TestDrainNeverGoesNegative(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, 4, p.Drain(5, p.MoveCost))
	assert.Equal(t, 0, p.Drain(0, p.MoveCost))
	assert.Equal(t, 0, p.Drain(1, 3))
}

func TestThresholds(t *testing.T) {
	p := DefaultPolicy()
	assert.True(t, p.NeedsCharging(29))
	assert.False(t, p.NeedsCharging(30))
	assert.True(t, p.CanCharge(99))
	assert.False(t, p.CanCharge(100))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, DefaultPolicy().Validate())

	bad := DefaultPolicy()
	bad.ChargeRate = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidPolicy)

	bad = DefaultPolicy()
	bad.LowBatteryThreshold = 150
	assert.ErrorIs(t, bad.Validate(), ErrInvalidPolicy)

	bad = DefaultPolicy()
	bad.FullBattery = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidPolicy)
}

func TestManhattanDistance(t *testing.T) {
	assert.Equal(t, 0, ManhattanDistance(grid.Coord(1, 1), grid.Coord(1, 1)))
	assert.Equal(t, 1, ManhattanDistance(grid.Coord(1, 2), grid.Coord(1, 1)))
	assert.Equal(t, 7, ManhattanDistance(grid.Coord(-2, 3), grid.Coord(1, -1)))
}

func TestChebyshevDistance(t *testing.T) {
	assert.Equal(t, 0, ChebyshevDistance(grid.Coord(4, 4), grid.Coord(4, 4)))
	assert.Equal(t, 1, ChebyshevDistance(grid.Coord(2, 2), grid.Coord(3, 3)))
	assert.Equal(t, 2, ChebyshevDistance(grid.Coord(1, 1), grid.Coord(3, 2)))
	assert.Equal(t, 4, ChebyshevDistance(grid.Coord(-2, 3), grid.Coord(1, -1)))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 3, Clamp(3, 0, 10))
	assert.Equal(t, int64(0), Clamp(int64(-4), 0, 10))
	assert.Equal(t, uint8(10), Clamp(uint8(200), 0, 10))
}
