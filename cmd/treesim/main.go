package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/nvandessel/treesim/internal/config"
	"github.com/nvandessel/treesim/internal/logging"
	"github.com/nvandessel/treesim/internal/store"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "treesim",
		Short: "Lookahead simulation preorders over tree automata",
		Long: `treesim computes simulation preorders over finite tree automata with a
game-based lookahead refinement, combines them with the upward relation,
and saturates automata with the result.

Every run is recorded in ~/.treesim/runs.db.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.treesim/config.yaml)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newConfigCmd(),
		newDemoCmd(),
		newBenchCmd(),
		newRunsCmd(),
	)

	return rootCmd
}

// loadConfig loads the --config file when given, the default locations
// otherwise, and validates the result.
func loadConfig(cmd *cobra.Command) (*config.TreesimConfig, error) {
	path, _ := cmd.Flags().GetString("config")

	var cfg *config.TreesimConfig
	var err error
	if path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// configPath returns the file config commands read and write.
func configPath(cmd *cobra.Command) (string, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return path, nil
	}
	dir, err := store.GlobalTreesimPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// openStore opens the run store selected by the configuration.
func openStore(cfg *config.TreesimConfig) (store.RunStore, error) {
	if strings.EqualFold(cfg.Store.Backend, "memory") {
		return store.NewInMemoryRunStore(), nil
	}

	path := cfg.Store.Path
	if path == "" {
		var err error
		path, err = store.DefaultDBPath()
		if err != nil {
			return nil, err
		}
	}
	s, err := store.NewSQLiteRunStore(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}
	return s, nil
}

// newLoggers builds the stderr logger and the refinement trace. The trace
// is nil below debug level.
func newLoggers(cfg *config.TreesimConfig) (*slog.Logger, *logging.TraceLogger) {
	logger := logging.NewLogger(cfg.Logging.Level, os.Stderr)

	dir := cfg.Logging.Dir
	if dir == "" {
		var err error
		dir, err = store.GlobalTreesimPath()
		if err != nil {
			return logger, nil
		}
	}
	return logger, logging.NewTraceLogger(dir, cfg.Logging.Level)
}

// signalContext returns a context cancelled on interrupt.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
