package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/adalundhe/adjgraph/core/generator"
	"github.com/adalundhe/adjgraph/core/graphstore"
	"github.com/spf13/cobra"
)

var loadJSON bool

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Bulk load random nodes",
	Long: `Generate random vectors and adjacency lists and insert them in batches.
Each batch commits atomically. Neighbors are drawn from every row id the
store will hold once the load finishes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		db, ns, err := current.openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		result, err := runLoad(ctx, ns, current.newGenerator(), loadParams{
			Count:     current.cfg.Generator.Count,
			BatchSize: current.cfg.Generator.BatchSize,
			Radius:    current.cfg.Generator.Radius,
		}, cmd.ErrOrStderr())
		if err != nil {
			return err
		}

		if loadJSON {
			return writeJSON(cmd.OutOrStdout(), result)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%sLoaded%s %d nodes (row ids %d-%d) in %s\n",
			colorGreen, colorReset, result.Inserted, result.FirstRowID, result.LastRowID, result.Duration)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loadCmd)
	loadCmd.Flags().IntVarP(&flagConfig.Generator.Count, "count", "n", 0, "Number of nodes to load (default 10000)")
	loadCmd.Flags().IntVarP(&flagConfig.Generator.BatchSize, "batch-size", "b", 0, "Nodes per transaction (default 1000)")
	loadCmd.Flags().Float32Var(&flagConfig.Generator.Radius, "radius", 0, "Vector radius in (0, 127) (default 100)")
	loadCmd.Flags().BoolVar(&loadJSON, "json", false, "Output as JSON")
}

type loadParams struct {
	Count     int
	BatchSize int
	Radius    float32
}

type loadResult struct {
	Inserted   int              `json:"inserted"`
	FirstRowID graphstore.RowID `json:"first_row_id"`
	LastRowID  graphstore.RowID `json:"last_row_id"`
	Duration   time.Duration    `json:"duration"`
}

func runLoad(ctx context.Context, ns *graphstore.NodeStore, gen *generator.Generator, p loadParams, progress io.Writer) (*loadResult, error) {
	start := time.Now()
	result := &loadResult{}

	shape, err := ns.Shape(ctx)
	if err != nil {
		return nil, err
	}
	existing, err := ns.Count(ctx)
	if err != nil {
		return nil, err
	}

	maxID := existing + uint64(p.Count)
	if maxID > uint64(graphstore.MaxRowID) {
		return nil, fmt.Errorf("load of %d nodes would exceed row id %d", p.Count, graphstore.MaxRowID)
	}

	for done := 0; done < p.Count; {
		n := min(p.BatchSize, p.Count-done)
		nodes, err := gen.Nodes(shape, n, p.Radius, uint32(maxID), existing+uint64(done)+1)
		if err != nil {
			return nil, err
		}

		ids, err := ns.InsertBatch(ctx, nodes)
		if err != nil {
			return result, fmt.Errorf("batch at node %d: %w", done, err)
		}
		if result.FirstRowID == 0 {
			result.FirstRowID = ids[0]
		}
		result.LastRowID = ids[len(ids)-1]
		result.Inserted += len(ids)
		done += n

		if progress != nil {
			writeProgress(progress, done, p.Count)
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}
