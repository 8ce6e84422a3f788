// Package stress runs many seeded simulations and checks the model's
// invariants after every step.
package stress

import (
	"context"
	"fmt"
	"time"

	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/domain/grid"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/domain/roomba"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/domain/rules"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/engine"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/platform/logger"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/platform/metrics"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/rng"
)

// maxViolations caps how many violations one run records.
const maxViolations = 20

// Scenario is one parameter set to exercise over several seeds.
type Scenario struct {
	Name   string
	Params engine.Params
	Seeds  []int64
}

// TestResult captures the outcome of one seeded run.
type TestResult struct {
	Scenario        string
	Seed            int64
	RunID           string
	Steps           int
	Complete        bool
	CleanPercentage float64
	ActiveAgents    int
	Deterministic   bool
	Violations      []string
	Duration        time.Duration
	Passed          bool
}

// Harness executes scenarios.
type Harness struct {
	logger  *logger.Logger
	metrics *metrics.Collector
	results []TestResult
}

// NewHarness creates the stress test harness.
func NewHarness(log *logger.Logger, m *metrics.Collector) *Harness {
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Harness{logger: log, metrics: m}
}

// Run executes every seed of every scenario. It stops early only when ctx
// is cancelled.
func (h *Harness) Run(ctx context.Context, scenarios ...Scenario) ([]TestResult, error) {
	for _, sc := range scenarios {
		for _, seed := range sc.Seeds {
			if err := ctx.Err(); err != nil {
				return h.results, err
			}
			res, err := h.runOne(ctx, sc, seed)
			if err != nil {
				return h.results, fmt.Errorf("%s seed %d: %w", sc.Name, seed, err)
			}
			h.results = append(h.results, res)
			if !res.Passed {
				h.logger.Warn("invariant violations",
					logger.Str("scenario", sc.Name),
					logger.Int("seed", int(seed)),
					logger.Int("violations", len(res.Violations)),
				)
			}
		}
	}
	return h.results, nil
}

// GetResults returns all test results.
func (h *Harness) GetResults() []TestResult {
	return h.results
}

func (h *Harness) runOne(ctx context.Context, sc Scenario, seed int64) (TestResult, error) {
	start := time.Now()
	m, err := engine.NewModel(sc.Params, rng.New(seed),
		engine.WithLogger(h.logger),
		engine.WithMetrics(h.metrics),
	)
	if err != nil {
		return TestResult{}, err
	}

	res := TestResult{Scenario: sc.Name, Seed: seed, RunID: m.RunID()}
	chk := newChecker(m)
	for m.Running() {
		if err := ctx.Err(); err != nil {
			return TestResult{}, err
		}
		outcomes := m.Step()
		chk.afterStep(m, outcomes)
		if len(chk.violations) >= maxViolations {
			break
		}
	}

	res.Steps = m.StepsTaken()
	res.Complete = m.DirtyTiles() == 0
	res.CleanPercentage = m.CleanPercentage()
	res.ActiveAgents = m.ActiveAgents()
	res.Violations = chk.violations
	if m.Running() {
		res.Violations = append(res.Violations, "run did not stop within its step budget")
	}

	res.Deterministic, err = replayMatches(ctx, sc.Params, seed, m.Snapshot())
	if err != nil {
		return TestResult{}, err
	}
	if !res.Deterministic {
		res.Violations = append(res.Violations, "same seed produced a different final state")
	}

	res.Duration = time.Since(start)
	res.Passed = len(res.Violations) == 0
	return res, nil
}

// replayMatches reruns seed headless and compares the final agent states.
func replayMatches(ctx context.Context, p engine.Params, seed int64, want engine.Snapshot) (bool, error) {
	m, err := engine.NewModel(p, rng.New(seed))
	if err != nil {
		return false, err
	}
	if err := m.Run(ctx); err != nil {
		return false, err
	}
	got := m.Snapshot()
	if got.Step != want.Step || got.DirtyTiles != want.DirtyTiles || len(got.Agents) != len(want.Agents) {
		return false, nil
	}
	for i := range got.Agents {
		a, b := got.Agents[i], want.Agents[i]
		if a.Position != b.Position || a.Battery != b.Battery || a.Movements != b.Movements {
			return false, nil
		}
	}
	return true, nil
}

type agentTrack struct {
	position  grid.Coordinate
	battery   int
	movements int
	dead      bool
}

// checker holds the previous step's state for the monotonic checks.
type checker struct {
	full       int
	dirty      int
	agents     map[int]agentTrack
	violations []string
}

func newChecker(m *engine.Model) *checker {
	c := &checker{
		full:   m.Params().Policy.FullBattery,
		dirty:  m.DirtyTiles(),
		agents: make(map[int]agentTrack),
	}
	for _, a := range m.Agents() {
		c.agents[a.ID()] = agentTrack{position: a.Coordinate(), battery: a.Battery(), movements: a.Movements(), dead: a.IsDead()}
	}
	return c
}

func (c *checker) failf(step int, format string, args ...any) {
	c.violations = append(c.violations, fmt.Sprintf("step %d: ", step)+fmt.Sprintf(format, args...))
}

func (c *checker) afterStep(m *engine.Model, outcomes []roomba.Outcome) {
	step := m.StepsTaken()
	g := m.Grid()

	if len(outcomes) != len(m.Agents()) {
		c.failf(step, "%d outcomes for %d agents", len(outcomes), len(m.Agents()))
	}

	dirty := m.DirtyTiles()
	if dirty > c.dirty {
		c.failf(step, "dirty tiles rose from %d to %d", c.dirty, dirty)
	}
	c.dirty = dirty
	if pct := m.CleanPercentage(); pct < 0 || pct > 100 {
		c.failf(step, "clean percentage %.2f out of range", pct)
	}

	for _, a := range m.Agents() {
		prev := c.agents[a.ID()]
		pos := a.Coordinate()
		switch {
		case !g.InBounds(pos):
			c.failf(step, "agent %d out of bounds at %s", a.ID(), pos)
		case g.HasObstacle(pos):
			c.failf(step, "agent %d on an obstacle at %s", a.ID(), pos)
		}
		if rules.ChebyshevDistance(pos, prev.position) > 1 {
			c.failf(step, "agent %d jumped from %s to %s", a.ID(), prev.position, pos)
		}
		if b := a.Battery(); b < 0 || b > c.full {
			c.failf(step, "agent %d battery %d out of range", a.ID(), b)
		}
		if d := a.Movements() - prev.movements; d < 0 || d > 1 {
			c.failf(step, "agent %d movement count changed by %d", a.ID(), d)
		}
		if prev.dead && (!a.IsDead() || pos != prev.position) {
			c.failf(step, "agent %d acted after its battery died", a.ID())
		}
		c.agents[a.ID()] = agentTrack{position: pos, battery: a.Battery(), movements: a.Movements(), dead: a.IsDead()}
	}
}
