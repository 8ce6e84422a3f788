package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/stress"
)

// newSpectateCmd creates the spectate command.
func (a *App) newSpectateCmd() *cobra.Command {
	cfg := stress.SpectatorConfig{}

	cmd := &cobra.Command{
		Use:   "spectate",
		Short: "Load test a running server with websocket viewers",
		Long: `Connect many websocket viewers to a running server and send commands at
a fixed interval, then report traffic and write latency.

Only STATE is sent by default. Add PAUSE, RESUME, STEP or RESET with
--command to exercise the control path as well.

Examples:
  roomba spectate --clients 100 --duration 30s
  roomba spectate --url ws://sim:8080/ws --command STATE --command STEP`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSpectators(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.URL, "url", "ws://localhost:8080/ws", "Websocket endpoint")
	cmd.Flags().IntVar(&cfg.Clients, "clients", 50, "Concurrent viewers")
	cmd.Flags().DurationVar(&cfg.Interval, "interval", 100*time.Millisecond, "Command interval per viewer")
	cmd.Flags().DurationVar(&cfg.Duration, "duration", 60*time.Second, "Test duration")
	cmd.Flags().StringSliceVar(&cfg.Commands, "command", []string{"STATE"}, "Commands to pick from")
	cmd.Flags().Int64Var(&cfg.Seed, "seed", 1, "Seed for command selection")

	return cmd
}

func (a *App) runSpectators(ctx context.Context, cfg stress.SpectatorConfig) error {
	appCfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(a.stdout, "spectating %s with %d viewers for %s\n", cfg.URL, cfg.Clients, cfg.Duration)

	start := time.Now()
	stats, err := stress.Spectate(ctx, cfg, a.newLogger(appCfg))
	if err != nil {
		return err
	}
	stress.WriteSpectatorReport(a.stdout, cfg, stats, time.Since(start))
	if stats.Connected.Load() == 0 {
		return fmt.Errorf("no viewer could connect to %s", cfg.URL)
	}
	return nil
}
