// Package cli provides the command-line interface of the cleaning-agent
// simulator. It only handles flag parsing and dependency injection.
// NO simulation logic belongs here.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/platform/config"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/platform/logger"
)

// Version information set at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// App represents the CLI application.
type App struct {
	root   *cobra.Command
	stdout io.Writer
	stderr io.Writer

	configPath string
	profile    string
}

// New creates a new CLI application.
func New() *App {
	app := &App{
		stdout: os.Stdout,
		stderr: os.Stderr,
	}

	app.root = &cobra.Command{
		Use:   "roomba",
		Short: "Multi-agent floor cleaning simulation",
		Long: `roomba simulates battery-powered cleaning agents on a walled grid.

Agents clean dirty tiles, sweep their zone lane by lane, and head back to
their charging station when the battery runs low. Runs are seeded and
reproducible.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	app.root.PersistentFlags().StringVarP(&app.configPath, "config", "c", "", "Path to a YAML configuration file")
	app.root.PersistentFlags().StringVarP(&app.profile, "profile", "p", "default", "Base profile: default, stress or low-resource")

	app.root.AddCommand(
		app.newVersionCmd(),
		app.newRunCmd(),
		app.newServeCmd(),
		app.newStressCmd(),
		app.newSpectateCmd(),
	)

	return app
}

// WithOutput sets custom output writers.
func (a *App) WithOutput(stdout, stderr io.Writer) *App {
	a.stdout = stdout
	a.stderr = stderr
	a.root.SetOut(stdout)
	a.root.SetErr(stderr)
	return a
}

// Execute runs the CLI application.
func (a *App) Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return a.root.ExecuteContext(ctx)
}

// ExecuteWithArgs runs the CLI with specific arguments (useful for testing).
func (a *App) ExecuteWithArgs(ctx context.Context, args []string) error {
	a.root.SetArgs(args)
	return a.Execute(ctx)
}

// loadConfig resolves profile, file and environment, in that order.
func (a *App) loadConfig() (*config.Config, error) {
	base, err := config.Profile(a.profile)
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadFrom(base, a.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// newLogger writes logs to stderr so stdout stays clean for reports.
func (a *App) newLogger(cfg *config.Config) *logger.Logger {
	return logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: a.stderr,
	})
}

// newVersionCmd creates the version command.
func (a *App) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "roomba version %s\n", Version)
			fmt.Fprintf(a.stdout, "  Git commit: %s\n", GitCommit)
			fmt.Fprintf(a.stdout, "  Build date: %s\n", BuildDate)
		},
	}
}
