package cmd

import (
	"errors"
	"fmt"

	"github.com/adalundhe/adjgraph/core/graphstore"
	"github.com/spf13/cobra"
)

var dumpLimit int

var errDumpLimit = errors.New("dump limit reached")

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print every node in row id order",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		db, ns, err := current.openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		w := cmd.OutOrStdout()
		printed := 0
		err = ns.ForEach(ctx, func(n graphstore.Node) error {
			if dumpLimit > 0 && printed >= dumpLimit {
				return errDumpLimit
			}
			fmt.Fprintln(w, n.String())
			printed++
			return nil
		})
		if errors.Is(err, errDumpLimit) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(dumpCmd)
	dumpCmd.Flags().IntVar(&dumpLimit, "limit", 0, "Stop after this many nodes (0 prints all)")
}
