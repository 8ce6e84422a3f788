package stress

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/domain/grid"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/engine"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/platform/config"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/platform/metrics"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/rng"
)

func smallScenarios() []Scenario {
	low := engine.ParamsFromConfig(config.LowResourceConfig())
	low.MaxSteps = 300

	multi := engine.DefaultParams()
	multi.Agents = 3
	multi.MaxSteps = 300

	return []Scenario{
		{Name: "low", Params: low, Seeds: []int64{1, 2, 3}},
		{Name: "multi", Params: multi, Seeds: []int64{4, 5}},
	}
}

func TestHarnessFindsNoViolations(t *testing.T) {
	m := metrics.New()
	h := NewHarness(nil, m)

	results, err := h.Run(context.Background(), smallScenarios()...)
	require.NoError(t, err)
	require.Len(t, results, 5)
	assert.Equal(t, results, h.GetResults())

	for _, r := range results {
		assert.True(t, r.Passed, "%s seed %d: %v", r.Scenario, r.Seed, r.Violations)
		assert.True(t, r.Deterministic)
		assert.LessOrEqual(t, r.Steps, 300)
		assert.NotEmpty(t, r.RunID)
	}
	assert.Equal(t, int64(5), m.RunsFinished.Load())
}

func TestHarnessStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, err := NewHarness(nil, nil).Run(ctx, smallScenarios()...)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}

func TestHarnessReportsConstructionErrors(t *testing.T) {
	bad := engine.DefaultParams()
	bad.MaxSteps = 0
	_, err := NewHarness(nil, nil).Run(context.Background(), Scenario{Name: "bad", Params: bad, Seeds: []int64{1}})
	assert.ErrorIs(t, err, engine.ErrInvalidParams)
}

func TestCheckerFlagsJumps(t *testing.T) {
	m, err := engine.NewModel(engine.DefaultParams(), rng.New(1))
	require.NoError(t, err)
	chk := newChecker(m)

	// Pretend the agent was somewhere far away last step.
	id := m.Agents()[0].ID()
	track := chk.agents[id]
	track.position = grid.Coord(20, 20)
	chk.agents[id] = track

	chk.afterStep(m, m.Step())
	require.NotEmpty(t, chk.violations)
	assert.Contains(t, chk.violations[0], "jumped")
}

func TestWriteReport(t *testing.T) {
	results := []TestResult{
		{Scenario: "a", Seed: 1, Steps: 1200, Complete: true, CleanPercentage: 100, Passed: true, Duration: 20 * time.Millisecond},
		{Scenario: "a", Seed: 2, Steps: 1000, CleanPercentage: 50, Violations: []string{"step 3: boom"}, Duration: 40 * time.Millisecond},
	}

	var buf bytes.Buffer
	s := WriteReport(&buf, results)

	assert.Equal(t, 2, s.Runs)
	assert.Equal(t, 1, s.Passed)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Complete)
	assert.Equal(t, 2200, s.TotalSteps)
	assert.InDelta(t, 75.0, s.MeanClean, 1e-9)
	assert.Equal(t, 40*time.Millisecond, s.Slowest)

	out := buf.String()
	assert.Contains(t, out, "steps=1,200")
	assert.Contains(t, out, "FAIL")
	assert.Contains(t, out, "- step 3: boom")
	assert.Contains(t, out, "runs:      2 (1 passed, 1 failed)")
	assert.Contains(t, out, "2,200")
}

func TestDefaultScenarios(t *testing.T) {
	scs := DefaultScenarios(3)
	require.Len(t, scs, 4)
	for _, sc := range scs {
		assert.Equal(t, []int64{1, 2, 3}, sc.Seeds)
	}
	assert.Equal(t, 4, scs[1].Params.Agents)
	assert.Equal(t, 12, scs[2].Params.Width)
}
