package stress

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/engine"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/platform/config"
)

// Summary aggregates a batch of results.
type Summary struct {
	Runs         int
	Passed       int
	Failed       int
	Complete     int
	TotalSteps   int
	MeanClean    float64
	Slowest      time.Duration
	TotalRuntime time.Duration
}

// Summarize folds results into a Summary.
func Summarize(results []TestResult) Summary {
	var s Summary
	for _, r := range results {
		s.Runs++
		if r.Passed {
			s.Passed++
		} else {
			s.Failed++
		}
		if r.Complete {
			s.Complete++
		}
		s.TotalSteps += r.Steps
		s.MeanClean += r.CleanPercentage
		s.TotalRuntime += r.Duration
		s.Slowest = max(s.Slowest, r.Duration)
	}
	if s.Runs > 0 {
		s.MeanClean /= float64(s.Runs)
	}
	return s
}

// WriteReport prints one line per run followed by the summary.
func WriteReport(w io.Writer, results []TestResult) Summary {
	rule := strings.Repeat("=", 60)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "STRESS REPORT")
	fmt.Fprintln(w, rule)

	for _, r := range results {
		status := "PASS"
		if !r.Passed {
			status = "FAIL"
		}
		fmt.Fprintf(w, "%s  %-12s seed=%-6d steps=%-7s clean=%5.1f%%  active=%d  %s\n",
			status, r.Scenario, r.Seed, humanize.Comma(int64(r.Steps)), r.CleanPercentage, r.ActiveAgents, r.Duration.Round(time.Millisecond))
		for _, v := range r.Violations {
			fmt.Fprintf(w, "      - %s\n", v)
		}
	}

	s := Summarize(results)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "runs:      %s (%d passed, %d failed)\n", humanize.Comma(int64(s.Runs)), s.Passed, s.Failed)
	fmt.Fprintf(w, "completed: %d of %d floors fully cleaned\n", s.Complete, s.Runs)
	fmt.Fprintf(w, "steps:     %s\n", humanize.Comma(int64(s.TotalSteps)))
	fmt.Fprintf(w, "clean:     %s%% mean\n", humanize.FormatFloat("#.##", s.MeanClean))
	fmt.Fprintf(w, "runtime:   %s total, %s slowest\n", s.TotalRuntime.Round(time.Millisecond), s.Slowest.Round(time.Millisecond))
	return s
}

// DefaultScenarios covers each config profile over seeds 1..n.
func DefaultScenarios(n int) []Scenario {
	seeds := make([]int64, n)
	for i := range seeds {
		seeds[i] = int64(i + 1)
	}

	multi := engine.ParamsFromConfig(config.DefaultConfig())
	multi.Agents = 4

	return []Scenario{
		{Name: "default", Params: engine.ParamsFromConfig(config.DefaultConfig()), Seeds: seeds},
		{Name: "multi-agent", Params: multi, Seeds: seeds},
		{Name: "low-resource", Params: engine.ParamsFromConfig(config.LowResourceConfig()), Seeds: seeds},
		{Name: "stress", Params: engine.ParamsFromConfig(config.StressTestConfig()), Seeds: seeds},
	}
}
