package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/engine"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/infra/cache"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/infra/storage"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/network"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/platform/config"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/platform/logger"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/platform/metrics"
)

const (
	shutdownTimeout  = 10 * time.Second
	snapshotEvery    = 10
	snapshotBacklog  = 64
	defaultTuneEvery = 30 * time.Second
)

type serveOptions struct {
	addr      string
	paused    bool
	tuneEvery time.Duration
}

// newServeCmd creates the serve command.
func (a *App) newServeCmd() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the simulation server",
		Long: `Start the tick loop and expose it over HTTP and websockets.

Routes:
  /ws                   live snapshots and PAUSE/RESUME/STATE/STEP/RESET commands
  /api/state            current snapshot
  /api/history          per-step data series
  /api/pause, /api/resume, /api/step, /api/reset
  /api/replay           event log, filtered by run_id, agent, type, since_step
  /api/replay/agents    agent states folded from the event log
  /api/runs             stored runs (persistent storage only)
  /metrics              JSON counters
  /metrics/prometheus   Prometheus text format`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "Listen address (overrides config)")
	cmd.Flags().BoolVar(&opts.paused, "paused", false, "Start with the tick loop paused")
	cmd.Flags().DurationVar(&opts.tuneEvery, "tune-every", defaultTuneEvery, "How often to log tuning recommendations (0 disables)")

	return cmd
}

func (a *App) serve(ctx context.Context, opts *serveOptions) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if opts.addr != "" {
		cfg.Server.Addr = opts.addr
	}

	log := a.newLogger(cfg)
	m := metrics.New()

	repo, closeStore, err := openStorage(ctx, cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Warn("storage close failed", logger.Err(err))
		}
	}()
	logLastRun(ctx, repo, log)

	eventLog := newEventLog(repo)
	eng, err := engine.NewEngine(engine.ParamsFromConfig(cfg), cfg.Simulation.Seed, cfg.Simulation.TickRate, eventLog, log, m)
	if err != nil {
		return err
	}

	hub := network.NewHub(cfg.Server, log, m)
	go hub.Run(ctx)
	eng.OnSnapshot(hub.BroadcastSnapshot)

	if repo != nil {
		rec := storage.NewSnapshotRecorder(repo, snapshotEvery, snapshotBacklog, log)
		eng.OnSnapshot(rec.Observe)
		go rec.Start(ctx)
	}

	snapCache, closeCache := openCache(ctx, cfg.Cache, log)
	defer func() {
		if err := closeCache(); err != nil {
			log.Warn("redis close failed", logger.Err(err))
		}
	}()
	if snapCache != nil {
		w := cache.NewWriter(snapCache, log)
		eng.OnSnapshot(w.Observe)
		go w.Start(ctx)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", network.ServeWS(hub, eng))
	network.NewControlAPI(eng, hub, log).RegisterRoutes(mux)
	network.NewReplayHandler(eventLog, repo, eng.RunID, log).RegisterRoutes(mux)
	mux.HandleFunc("/metrics", m.Handler())
	mux.HandleFunc("/metrics/prometheus", m.PrometheusHandler())

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if opts.paused {
		eng.Pause()
	}
	eng.Start(ctx)
	defer eng.Stop()

	if opts.tuneEvery > 0 {
		go tuneLoop(ctx, cfg, m, opts.tuneEvery, log)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening",
			logger.Str("addr", cfg.Server.Addr),
			logger.Str("run_id", eng.RunID()),
			logger.Str("storage", cfg.Storage.Driver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// logLastRun reports the newest stored run so operators can find it.
func logLastRun(ctx context.Context, repo storage.Repository, log *logger.Logger) {
	if repo == nil {
		return
	}
	runs, err := repo.ListRuns(ctx, 1)
	if err != nil {
		log.Warn("could not list stored runs", logger.Err(err))
		return
	}
	if len(runs) == 0 {
		log.Info("event store is empty")
		return
	}
	log.Info("previous run found",
		logger.Str("run_id", runs[0].ID),
		logger.Int("steps", runs[0].Steps),
		logger.Bool("complete", runs[0].Complete),
	)
}

// tuneLoop periodically logs the recommendations config.Analyze derives
// from the live counters. It never changes the running configuration.
func tuneLoop(ctx context.Context, cfg *config.Config, m *metrics.Collector, every time.Duration, log *logger.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			rec := config.Analyze(cfg, config.Observations{
				MaxTickLatency:   m.MaxTickLatency(),
				EventWriteErrors: m.EventWriteErrors.Load(),
				DroppedMessages:  m.WSDropped.Load(),
			})
			for _, note := range rec.Notes {
				log.Warn("tuning recommendation", logger.Str("note", note))
			}
		}
	}
}
