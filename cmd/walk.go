package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/adalundhe/adjgraph/core/generator"
	"github.com/adalundhe/adjgraph/core/graphstore"
	"github.com/spf13/cobra"
)

var walkJSON bool

var errEmptyStore = errors.New("store holds no nodes")

var walkCmd = &cobra.Command{
	Use:   "walk",
	Short: "Run random walks from sampled start nodes",
	Long: `Sample start nodes uniformly and run an independent random walk from each.
Every hop issues exactly one batched fetch of the current frontier.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		db, ns, err := current.openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		result, err := runWalks(ctx, ns, current.traversalEngine(ns), current.newGenerator(), current.cfg.Walk.Samples,
			current.cfg.Walk.Hops, current.cfg.Walk.Parallelism)
		if err != nil {
			return err
		}

		if walkJSON {
			return writeJSON(cmd.OutOrStdout(), result)
		}
		printWalkResult(cmd.OutOrStdout(), result)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(walkCmd)
	addWalkFlags(walkCmd)
	walkCmd.Flags().BoolVar(&walkJSON, "json", false, "Output as JSON")
}

func addWalkFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&flagConfig.Walk.Samples, "samples", "s", 0, "Number of walks (default 100)")
	cmd.Flags().Uint32Var(&flagConfig.Walk.Hops, "hops", 0, "Hops per walk (default 10)")
	cmd.Flags().IntVarP(&flagConfig.Walk.Parallelism, "parallelism", "p", 0, "Concurrent walks (default 4)")
}

type walkResult struct {
	Samples  int           `json:"samples"`
	Hops     uint32        `json:"hops"`
	Fetches  int           `json:"fetches"`
	Duration time.Duration `json:"duration"`
	PerWalk  time.Duration `json:"per_walk"`
	PerHop   time.Duration `json:"per_hop"`
}

func runWalks(ctx context.Context, ns *graphstore.NodeStore, te *graphstore.TraversalEngine, gen *generator.Generator,
	samples int, hops uint32, parallelism int) (*walkResult, error) {
	count, err := ns.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, errEmptyStore
	}

	start := time.Now()
	walks, err := te.WalkMany(ctx, sampleStarts(gen, samples, count), hops, parallelism)
	if err != nil {
		return nil, err
	}

	result := &walkResult{
		Samples:  samples,
		Hops:     hops,
		Duration: time.Since(start),
	}
	for _, w := range walks {
		result.Fetches += w.Fetches
	}
	if samples > 0 {
		result.PerWalk = result.Duration / time.Duration(samples)
	}
	if result.Fetches > 0 {
		result.PerHop = result.Duration / time.Duration(result.Fetches)
	}
	return result, nil
}

func printWalkResult(w io.Writer, r *walkResult) {
	fmt.Fprintf(w, "%s%sRandom Walks%s\n", colorBold, colorCyan, colorReset)
	fmt.Fprintf(w, "%sWalks:%s    %d x %d hops\n", colorGray, colorReset, r.Samples, r.Hops)
	fmt.Fprintf(w, "%sFetches:%s  %d\n", colorGray, colorReset, r.Fetches)
	fmt.Fprintf(w, "%sTotal:%s    %s\n", colorGray, colorReset, r.Duration)
	fmt.Fprintf(w, "%sPer walk:%s %s\n", colorGray, colorReset, r.PerWalk)
	fmt.Fprintf(w, "%sPer hop:%s  %s\n", colorGray, colorReset, r.PerHop)
}
