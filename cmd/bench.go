package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/adalundhe/adjgraph/core/config"
	"github.com/spf13/cobra"
)

var (
	benchKeep bool
	benchJSON bool
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Time schema creation, bulk load, walks and incremental growth",
	Long: `Run the full lifecycle against a fresh database and print the time spent
in each phase:

  1. create the schema
  2. bulk load --count random nodes
  3. run --samples random walks of --hops hops
  4. insert --grow nodes with back-edges
  5. repeat the walks on the grown graph

The database is created in a temporary directory and removed afterwards
unless --keep is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		dir, err := os.MkdirTemp("", "adjgraph-bench-*")
		if err != nil {
			return err
		}
		if !benchKeep {
			defer os.RemoveAll(dir)
		}

		cfg := *current.cfg
		cfg.Store.Path = filepath.Join(dir, "bench.db")
		report, err := runBench(ctx, current, &cfg)
		if err != nil {
			return err
		}

		if benchJSON {
			return writeJSON(cmd.OutOrStdout(), report)
		}
		printBenchReport(cmd.OutOrStdout(), report)
		if benchKeep {
			fmt.Fprintf(cmd.OutOrStdout(), "%sDatabase kept at %s%s\n", colorYellow, cfg.Store.Path, colorReset)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(benchCmd)
	addShapeFlags(benchCmd)
	addWalkFlags(benchCmd)
	benchCmd.Flags().IntVarP(&flagConfig.Generator.Count, "count", "n", 0, "Nodes to bulk load (default 10000)")
	benchCmd.Flags().IntVarP(&flagConfig.Generator.BatchSize, "batch-size", "b", 0, "Nodes per transaction (default 1000)")
	benchCmd.Flags().IntVar(&flagConfig.Grow.Count, "grow", 0, "Nodes to insert with back-edges (default 100)")
	benchCmd.Flags().BoolVar(&benchKeep, "keep", false, "Keep the benchmark database")
	benchCmd.Flags().BoolVar(&benchJSON, "json", false, "Output as JSON")
}

type benchPhase struct {
	Name     string        `json:"name"`
	Ops      int           `json:"ops"`
	Duration time.Duration `json:"duration"`
}

type benchReport struct {
	Seed   uint64        `json:"seed"`
	Dim    int           `json:"dim"`
	Degree int           `json:"degree"`
	Phases []benchPhase  `json:"phases"`
	Total  time.Duration `json:"total"`
}

// runBench drives every phase from one generator so a seeded run is
// reproducible end to end.
func runBench(ctx context.Context, s *session, cfg *config.Config) (*benchReport, error) {
	scoped := *s
	scoped.cfg = cfg

	db, ns, err := scoped.openStore()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	gen := scoped.newGenerator()
	te := scoped.traversalEngine(ns)
	report := &benchReport{Seed: s.seed, Dim: cfg.Store.Dim, Degree: cfg.Store.Degree}
	began := time.Now()

	phase := func(name string, fn func() (int, error)) error {
		start := time.Now()
		ops, err := fn()
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		report.Phases = append(report.Phases, benchPhase{Name: name, Ops: ops, Duration: time.Since(start)})
		s.logger.Info("bench phase finished", "phase", name, "ops", ops, "duration", time.Since(start))
		return nil
	}

	walk := func() (int, error) {
		r, err := runWalks(ctx, ns, te, gen, cfg.Walk.Samples, cfg.Walk.Hops, cfg.Walk.Parallelism)
		if err != nil {
			return 0, err
		}
		return r.Fetches, nil
	}

	steps := []struct {
		name string
		fn   func() (int, error)
	}{
		{"create schema", func() (int, error) {
			return 1, ns.CreateSchema(ctx, cfg.Shape())
		}},
		{"bulk load", func() (int, error) {
			r, err := runLoad(ctx, ns, gen, loadParams{
				Count:     cfg.Generator.Count,
				BatchSize: cfg.Generator.BatchSize,
				Radius:    cfg.Generator.Radius,
			}, nil)
			if err != nil {
				return 0, err
			}
			return r.Inserted, nil
		}},
		{"random walks", walk},
		{"grow with back-edges", func() (int, error) {
			r, err := runGrow(ctx, ns, gen, cfg.Grow.Count, cfg.Generator.Radius)
			if err != nil {
				return 0, err
			}
			return r.Inserted, nil
		}},
		{"random walks after growth", walk},
	}

	for _, step := range steps {
		if err := phase(step.name, step.fn); err != nil {
			return nil, err
		}
	}

	report.Total = time.Since(began)
	return report, nil
}

func printBenchReport(w io.Writer, r *benchReport) {
	fmt.Fprintf(w, "%s%sBenchmark%s (dim %d, degree %d, seed %d)\n", colorBold, colorCyan, colorReset, r.Dim, r.Degree, r.Seed)
	for _, p := range r.Phases {
		per := time.Duration(0)
		if p.Ops > 0 {
			per = p.Duration / time.Duration(p.Ops)
		}
		fmt.Fprintf(w, "  %s%-26s%s %8d ops %14s %12s/op\n", colorGray, p.Name, colorReset, p.Ops, p.Duration, per)
	}
	fmt.Fprintf(w, "  %s%-26s%s %27s\n", colorBold, "total", colorReset, r.Total)
}
