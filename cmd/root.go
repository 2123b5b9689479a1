package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/adalundhe/adjgraph/core/config"
	"github.com/adalundhe/adjgraph/core/graphstore"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// =============================================================================
// Root Command Flags
// =============================================================================

var (
	configPath string

	// flagConfig receives explicitly set flags; its non-zero fields are
	// overlaid on the loaded config.
	flagConfig config.Config
)

// session holds the state shared by every subcommand of one invocation.
type session struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *graphstore.Metrics
	runID    string
	seed     uint64
	stop     func() error
}

var current *session

var rootCmd = &cobra.Command{
	Use:   "adjgraph",
	Short: "adjgraph - a persisted fixed-degree vector graph",
	Long: `adjgraph stores quantized vectors and fixed-degree adjacency lists in
SQLite and runs random walks over them.

Examples:
  adjgraph init --db graph.db --dim 128 --degree 32
  adjgraph load --db graph.db --count 10000
  adjgraph walk --db graph.db --samples 100 --hops 10
  adjgraph grow --db graph.db --count 100
  adjgraph bench --dim 16 --degree 8 --count 5000`,
	SilenceUsage:       true,
	PersistentPreRunE:  startSession,
	PersistentPostRunE: endSession,
}

func init() {
	pflags := rootCmd.PersistentFlags()
	pflags.StringVar(&configPath, "config", "", "Path to a YAML config file")
	pflags.StringVar(&flagConfig.Store.Path, "db", "", "Path to the SQLite database (default adjgraph.db)")
	pflags.StringVar(&flagConfig.Store.Driver, "driver", "", "SQL driver: sqlite3 (cgo) or sqlite (pure Go)")
	pflags.StringVar(&flagConfig.Log.Level, "log-level", "", "Log level: debug, info, warn or error")
	pflags.StringVar(&flagConfig.Log.Format, "log-format", "", "Log format: auto, text or json")
	pflags.StringVar(&flagConfig.Metrics.Addr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	pflags.Uint64Var(&flagConfig.Generator.Seed, "seed", 0, "Seed for every random draw (0 picks one)")
}

func Execute() error {
	err := rootCmd.Execute()
	// PersistentPostRunE is skipped when a command fails.
	if cerr := closeSession(); err == nil {
		err = cerr
	}
	return err
}

func startSession(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	config.Overlay(cfg, &flagConfig)
	if err := cfg.Validate(); err != nil {
		return err
	}

	s := &session{
		cfg:      cfg,
		registry: prometheus.NewRegistry(),
		runID:    uuid.NewString(),
		seed:     cfg.Generator.Seed,
	}
	if s.seed == 0 {
		s.seed = uint64(time.Now().UnixNano())
	}

	logger, err := newLogger(cmd.ErrOrStderr(), cfg.Log)
	if err != nil {
		return err
	}
	s.logger = logger.With("run_id", s.runID, "command", cmd.Name())
	s.metrics = graphstore.NewMetrics(s.registry)

	if cfg.Metrics.Addr != "" {
		stop, err := serveMetrics(cfg.Metrics.Addr, s.registry, s.logger)
		if err != nil {
			return fmt.Errorf("metrics server: %w", err)
		}
		s.stop = stop
	}

	s.logger.Debug("session started", "seed", s.seed, "db", cfg.Store.Path, "driver", cfg.Store.Driver)
	current = s
	return nil
}

func endSession(cmd *cobra.Command, args []string) error {
	return closeSession()
}

func closeSession() error {
	s := current
	current = nil
	if s == nil || s.stop == nil {
		return nil
	}
	return s.stop()
}
