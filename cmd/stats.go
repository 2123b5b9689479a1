package cmd

import (
	"fmt"
	"io"

	"github.com/adalundhe/adjgraph/core/graphstore"
	"github.com/spf13/cobra"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show node count, shape and database size",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		db, ns, err := current.openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := ns.Stats(ctx)
		if err != nil {
			return err
		}

		if statsJSON {
			return writeJSON(cmd.OutOrStdout(), statsOutput{
				Path:      db.Path(),
				Driver:    db.Driver(),
				Nodes:     stats.TotalNodes,
				Dim:       stats.Shape.Dim,
				Degree:    stats.Shape.Degree,
				SizeBytes: stats.DBSizeBytes,
			})
		}
		printStats(cmd.OutOrStdout(), db, stats)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output as JSON")
}

type statsOutput struct {
	Path      string `json:"path"`
	Driver    string `json:"driver"`
	Nodes     uint64 `json:"nodes"`
	Dim       int    `json:"dim"`
	Degree    int    `json:"degree"`
	SizeBytes int64  `json:"size_bytes"`
}

func printStats(w io.Writer, db *graphstore.GraphDB, stats *graphstore.DBStats) {
	fmt.Fprintf(w, "%s%sGraph Store%s\n", colorBold, colorCyan, colorReset)
	fmt.Fprintf(w, "%sPath:%s   %s (%s)\n", colorGray, colorReset, db.Path(), db.Driver())
	fmt.Fprintf(w, "%sNodes:%s  %d\n", colorGray, colorReset, stats.TotalNodes)
	fmt.Fprintf(w, "%sShape:%s  dim %d, degree %d\n", colorGray, colorReset, stats.Shape.Dim, stats.Shape.Degree)
	fmt.Fprintf(w, "%sSize:%s   %s\n", colorGray, colorReset, formatBytes(stats.DBSizeBytes))
}
