// Package rules contains the pure calculation logic for battery and distance.
// This package is PURE and must NOT import any infrastructure packages.
package rules

import (
	"errors"
	"fmt"

	"golang.org/x/exp/constraints"

	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/domain/grid"
)

// ErrInvalidPolicy is returned by Policy.Validate.
var ErrInvalidPolicy = errors.New("rules: invalid battery policy")

// Policy holds the tunable battery constants of a cleaning agent.
type Policy struct {
	FullBattery         int `json:"full_battery" yaml:"full_battery"`
	LowBatteryThreshold int `json:"low_battery_threshold" yaml:"low_battery_threshold"`
	ChargeRate          int `json:"charge_rate" yaml:"charge_rate"`
	MoveCost            int `json:"move_cost" yaml:"move_cost"`
	CleanCost           int `json:"clean_cost" yaml:"clean_cost"`
}

// DefaultPolicy returns the stock Roomba tuning: 100% battery, head home
// under 30%, +5% per tick on a station, 1% per move or clean.
func DefaultPolicy() Policy {
	return Policy{
		FullBattery:         100,
		LowBatteryThreshold: 30,
		ChargeRate:          5,
		MoveCost:            1,
		CleanCost:           1,
	}
}

// Validate checks that the policy keeps battery arithmetic meaningful.
func (p Policy) Validate() error {
	switch {
	case p.FullBattery <= 0:
		return fmt.Errorf("%w: full_battery must be positive", ErrInvalidPolicy)
	case p.LowBatteryThreshold < 0 || p.LowBatteryThreshold > p.FullBattery:
		return fmt.Errorf("%w: low_battery_threshold must be within [0, %d]", ErrInvalidPolicy, p.FullBattery)
	case p.ChargeRate <= 0:
		return fmt.Errorf("%w: charge_rate must be positive", ErrInvalidPolicy)
	case p.MoveCost < 0 || p.CleanCost < 0:
		return fmt.Errorf("%w: costs cannot be negative", ErrInvalidPolicy)
	}
	return nil
}

// NeedsCharging reports whether the agent should head back to its station.
func (p Policy) NeedsCharging(battery int) bool {
	return battery < p.LowBatteryThreshold
}

// CanCharge reports whether a station would add anything.
func (p Policy) CanCharge(battery int) bool {
	return battery < p.FullBattery
}

// Charge returns the battery level after one tick on a station.
func (p Policy) Charge(battery int) int {
	return Clamp(battery+p.ChargeRate, 0, p.FullBattery)
}

// Drain returns the battery level after spending cost.
func (p Policy) Drain(battery, cost int) int {
	return Clamp(battery-cost, 0, p.FullBattery)
}

// Clamp bounds v to [lo, hi].
func Clamp[T constraints.Integer](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ManhattanDistance is |dx| + |dy| between two coordinates.
func ManhattanDistance(a, b grid.Coordinate) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

// ChebyshevDistance is max(|dx|, |dy|), the number of king moves between two
// coordinates.
func ChebyshevDistance(a, b grid.Coordinate) int {
	return max(abs(a.X-b.X), abs(a.Y-b.Y))
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
