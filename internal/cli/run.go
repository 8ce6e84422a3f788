package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/engine"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/infra/storage"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/platform/logger"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/platform/metrics"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/rng"
)

// runOptions holds options for the run command. Zero values keep the
// configured setting.
type runOptions struct {
	seed       int64
	seedSet    bool
	agents     int
	maxSteps   int
	width      int
	height     int
	jsonOutput bool
	rebuild    bool
}

// runReport is the result of a headless run.
type runReport struct {
	RunID           string              `json:"run_id"`
	Seed            int64               `json:"seed"`
	Steps           int                 `json:"steps"`
	Complete        bool                `json:"complete"`
	CleanPercentage float64             `json:"clean_percentage"`
	DirtyTiles      int                 `json:"dirty_tiles"`
	ActiveAgents    int                 `json:"active_agents"`
	Events          int                 `json:"events"`
	Duration        time.Duration       `json:"duration_ns"`
	Agents          []engine.AgentState `json:"agents"`
}

// newRunCmd creates the run command.
func (a *App) newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one simulation to completion without a server",
		Long: `Run a single simulation headless and print a summary.

The run ends when every tile is clean or the step limit is reached. Agents
that run out of battery stay on the floor until then.

Examples:
  # Default 28x28 floor with one agent
  roomba run

  # Four agents, fixed seed, JSON output
  roomba run --agents 4 --seed 7 --json

  # Persist events to SQLite and rebuild agent snapshots from them
  ROOMBA_STORAGE_DRIVER=sqlite ROOMBA_STORAGE_DSN=runs.db roomba run --rebuild`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.seedSet = cmd.Flags().Changed("seed")
			return a.runSimulation(cmd.Context(), opts)
		},
	}

	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "Random seed (overrides config)")
	cmd.Flags().IntVar(&opts.agents, "agents", 0, "Number of agents (overrides config)")
	cmd.Flags().IntVar(&opts.maxSteps, "max-steps", 0, "Step limit (overrides config)")
	cmd.Flags().IntVar(&opts.width, "width", 0, "Grid width including walls (overrides config)")
	cmd.Flags().IntVar(&opts.height, "height", 0, "Grid height including walls (overrides config)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output the report as JSON")
	cmd.Flags().BoolVar(&opts.rebuild, "rebuild", false, "Rebuild agent snapshots from the stored events")

	return cmd
}

func (a *App) runSimulation(ctx context.Context, opts *runOptions) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if opts.seedSet {
		cfg.Simulation.Seed = opts.seed
	}
	if opts.agents > 0 {
		cfg.Simulation.Agents = opts.agents
	}
	if opts.maxSteps > 0 {
		cfg.Simulation.MaxSteps = opts.maxSteps
	}
	if opts.width > 0 {
		cfg.Simulation.Width = opts.width
	}
	if opts.height > 0 {
		cfg.Simulation.Height = opts.height
	}

	log := a.newLogger(cfg)
	repo, closeStore, err := openStorage(ctx, cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Warn("storage close failed", logger.Err(err))
		}
	}()

	eventLog := newEventLog(repo)
	model, err := engine.NewModel(engine.ParamsFromConfig(cfg), rng.New(cfg.Simulation.Seed),
		engine.WithEventLog(eventLog),
		engine.WithLogger(log),
		engine.WithMetrics(metrics.New()),
	)
	if err != nil {
		return err
	}

	start := time.Now()
	if err := model.Run(ctx); err != nil {
		return fmt.Errorf("run %s interrupted: %w", model.RunID(), err)
	}

	snap := model.Snapshot()
	report := runReport{
		RunID:           model.RunID(),
		Seed:            cfg.Simulation.Seed,
		Steps:           model.StepsTaken(),
		Complete:        model.DirtyTiles() == 0,
		CleanPercentage: model.CleanPercentage(),
		DirtyTiles:      model.DirtyTiles(),
		ActiveAgents:    model.ActiveAgents(),
		Events:          len(eventLog.GetByRun(model.RunID())),
		Duration:        time.Since(start),
		Agents:          snap.Agents,
	}

	if opts.rebuild {
		if repo == nil {
			return fmt.Errorf("--rebuild needs a persistent storage driver")
		}
		n, err := rebuildSnapshots(ctx, repo, model.RunID())
		if err != nil {
			return err
		}
		log.Info("agent snapshots rebuilt", logger.Str("run_id", model.RunID()), logger.Int("agents", n))
	}

	if opts.jsonOutput {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	a.printRunReport(report)
	return nil
}

// rebuildSnapshots folds the stored events of runID and saves the result.
func rebuildSnapshots(ctx context.Context, repo storage.Repository, runID string) (int, error) {
	states, err := storage.NewReconstructor(repo).RebuildAgentStates(ctx, runID)
	if err != nil {
		return 0, err
	}
	snaps := make([]storage.AgentSnapshot, 0, len(states))
	for _, s := range states {
		snaps = append(snaps, s.Snapshot(runID))
	}
	if err := repo.Upsert(ctx, snaps...); err != nil {
		return 0, fmt.Errorf("save rebuilt snapshots: %w", err)
	}
	return len(snaps), nil
}

func (a *App) printRunReport(r runReport) {
	status := "step limit reached"
	switch {
	case r.Complete:
		status = "floor clean"
	case r.ActiveAgents == 0:
		status = "all agents depleted"
	}

	_, _ = fmt.Fprintf(a.stdout, "Run %s (seed %d)\n", r.RunID, r.Seed)
	_, _ = fmt.Fprintf(a.stdout, "  Result:     %s\n", status)
	_, _ = fmt.Fprintf(a.stdout, "  Steps:      %s\n", humanize.Comma(int64(r.Steps)))
	_, _ = fmt.Fprintf(a.stdout, "  Clean:      %s%% (%d dirty left)\n", humanize.FormatFloat("#.##", r.CleanPercentage), r.DirtyTiles)
	_, _ = fmt.Fprintf(a.stdout, "  Active:     %d of %d agents\n", r.ActiveAgents, len(r.Agents))
	_, _ = fmt.Fprintf(a.stdout, "  Events:     %s\n", humanize.Comma(int64(r.Events)))
	_, _ = fmt.Fprintf(a.stdout, "  Duration:   %s\n", r.Duration.Round(time.Microsecond))
	for _, ag := range r.Agents {
		_, _ = fmt.Fprintf(a.stdout, "  Agent %d:    %s moves, battery %d, at (%d,%d)\n",
			ag.ID, humanize.Comma(int64(ag.Movements)), ag.Battery, ag.Position.X, ag.Position.Y)
	}
}
