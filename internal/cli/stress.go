package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/platform/metrics"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/stress"
)

type stressOptions struct {
	seeds     int
	maxSteps  int
	scenarios []string
}

// newStressCmd creates the stress command.
func (a *App) newStressCmd() *cobra.Command {
	opts := &stressOptions{}

	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Run seeded scenarios and check simulation invariants",
		Long: `Run every scenario once per seed, checking after each step that agents
stay in bounds, never enter obstacles, move at most one cell, keep their
battery in range, and that the dirty tile count never grows. Each run is
replayed with the same seed to confirm it is deterministic.

Examples:
  roomba stress --seeds 10
  roomba stress --scenario low-resource --scenario multi-agent --max-steps 500`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runStress(cmd.Context(), opts)
		},
	}

	cmd.Flags().IntVar(&opts.seeds, "seeds", 5, "Seeds per scenario, starting at 1")
	cmd.Flags().IntVar(&opts.maxSteps, "max-steps", 0, "Step limit for every scenario (0 keeps each scenario's own)")
	cmd.Flags().StringSliceVar(&opts.scenarios, "scenario", nil, "Only run the named scenarios (default, multi-agent, low-resource, stress)")

	return cmd
}

func (a *App) runStress(ctx context.Context, opts *stressOptions) error {
	if opts.seeds < 1 {
		return fmt.Errorf("--seeds must be at least 1")
	}
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	scenarios := stress.DefaultScenarios(opts.seeds)
	if len(opts.scenarios) > 0 {
		scenarios, err = selectScenarios(scenarios, opts.scenarios)
		if err != nil {
			return err
		}
	}
	if opts.maxSteps > 0 {
		for i := range scenarios {
			scenarios[i].Params.MaxSteps = opts.maxSteps
		}
	}

	h := stress.NewHarness(a.newLogger(cfg), metrics.New())
	results, err := h.Run(ctx, scenarios...)
	summary := stress.WriteReport(a.stdout, results)
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d runs failed", summary.Failed, summary.Runs)
	}
	return nil
}

func selectScenarios(all []stress.Scenario, names []string) ([]stress.Scenario, error) {
	byName := make(map[string]stress.Scenario, len(all))
	known := make([]string, 0, len(all))
	for _, sc := range all {
		byName[sc.Name] = sc
		known = append(known, sc.Name)
	}
	out := make([]stress.Scenario, 0, len(names))
	for _, n := range names {
		sc, ok := byName[n]
		if !ok {
			return nil, fmt.Errorf("unknown scenario %q (known: %s)", n, strings.Join(known, ", "))
		}
		out = append(out, sc)
	}
	return out, nil
}
