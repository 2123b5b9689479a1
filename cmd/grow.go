package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/adalundhe/adjgraph/core/generator"
	"github.com/adalundhe/adjgraph/core/graphstore"
	"github.com/spf13/cobra"
)

var growJSON bool

var growCmd = &cobra.Command{
	Use:   "grow",
	Short: "Insert nodes one at a time with back-edges",
	Long: `Insert random nodes whose neighbors are existing nodes. Each insert also
overwrites one random adjacency slot of every distinct neighbor with the new
row id, in the same transaction.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		db, ns, err := current.openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		result, err := runGrow(ctx, ns, current.newGenerator(), current.cfg.Grow.Count, current.cfg.Generator.Radius)
		if err != nil {
			return err
		}

		if growJSON {
			return writeJSON(cmd.OutOrStdout(), result)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%sGrew%s %d nodes in %s (%s per insert)\n",
			colorGreen, colorReset, result.Inserted, result.Duration, result.PerInsert)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(growCmd)
	growCmd.Flags().IntVarP(&flagConfig.Grow.Count, "count", "n", 0, "Number of nodes to insert (default 100)")
	growCmd.Flags().Float32Var(&flagConfig.Generator.Radius, "radius", 0, "Vector radius in (0, 127) (default 100)")
	growCmd.Flags().BoolVar(&growJSON, "json", false, "Output as JSON")
}

type growResult struct {
	Inserted  int              `json:"inserted"`
	LastRowID graphstore.RowID `json:"last_row_id"`
	Duration  time.Duration    `json:"duration"`
	PerInsert time.Duration    `json:"per_insert"`
}

func runGrow(ctx context.Context, ns *graphstore.NodeStore, gen *generator.Generator, count int, radius float32) (*growResult, error) {
	shape, err := ns.Shape(ctx)
	if err != nil {
		return nil, err
	}
	existing, err := ns.Count(ctx)
	if err != nil {
		return nil, err
	}
	if existing == 0 {
		return nil, errEmptyStore
	}
	if existing+uint64(count) > uint64(graphstore.MaxRowID) {
		return nil, fmt.Errorf("growing by %d nodes would exceed row id %d", count, graphstore.MaxRowID)
	}

	start := time.Now()
	result := &growResult{}
	for i := 0; i < count; i++ {
		// Neighbors are drawn from nodes that already exist.
		maxID := uint32(existing) + uint32(i)
		node, err := gen.Node(shape, radius, maxID, uint64(maxID)+1)
		if err != nil {
			return nil, err
		}

		id, err := ns.InsertWithBackEdges(ctx, node)
		if err != nil {
			return result, err
		}
		result.LastRowID = id
		result.Inserted++
	}

	result.Duration = time.Since(start)
	if count > 0 {
		result.PerInsert = result.Duration / time.Duration(count)
	}
	return result, nil
}
