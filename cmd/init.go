package cmd

import (
	"fmt"
	"io"

	"github.com/adalundhe/adjgraph/core/graphstore"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the graph schema",
	Long: `Create the nodes table and record the vector dimension and adjacency
degree. Every later write is checked against this shape.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		db, ns, err := current.openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		shape := current.cfg.Shape()
		if err := ns.CreateSchema(ctx, shape); err != nil {
			return err
		}
		printShape(cmd.OutOrStdout(), db.Path(), shape)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	addShapeFlags(initCmd)
}

func addShapeFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&flagConfig.Store.Dim, "dim", 0, "Vector dimension (default 128)")
	cmd.Flags().IntVar(&flagConfig.Store.Degree, "degree", 0, "Adjacency degree (default 32)")
}

func printShape(w io.Writer, path string, shape graphstore.Shape) {
	fmt.Fprintf(w, "%s%sInitialized%s %s\n", colorBold, colorGreen, colorReset, path)
	fmt.Fprintf(w, "%sDim:%s    %d\n", colorGray, colorReset, shape.Dim)
	fmt.Fprintf(w, "%sDegree:%s %d\n", colorGray, colorReset, shape.Degree)
}
