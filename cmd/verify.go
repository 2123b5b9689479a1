package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/adalundhe/adjgraph/core/graphstore"
	"github.com/spf13/cobra"
)

var (
	verifyJSON   bool
	verifyVacuum bool
)

var errCorrupt = errors.New("store has critical integrity violations")

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check stored rows against the graph shape",
	Long: `Run SQLite's quick_check, confirm every vector and adjacency blob matches
the recorded shape, and report adjacency entries that name missing rows.

Dangling entries are warnings. Shape violations are critical and make the
command fail. With --vacuum a clean store is compacted afterwards.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		db, ns, err := current.openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		result, err := graphstore.NewIntegrityValidator(ns, current.logger).ValidateAll(ctx)
		if err != nil {
			return err
		}

		if verifyJSON {
			if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
		} else {
			printValidation(cmd.OutOrStdout(), result)
		}

		if result.HasCritical() {
			return errCorrupt
		}
		if verifyVacuum {
			before := db.SizeBytes()
			if err := db.Vacuum(ctx); err != nil {
				return err
			}
			current.logger.Info("vacuumed store", "before", before, "after", db.SizeBytes())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().BoolVar(&verifyJSON, "json", false, "Output as JSON")
	verifyCmd.Flags().BoolVar(&verifyVacuum, "vacuum", false, "Compact the database when no critical violations are found")
}

func printValidation(w io.Writer, r *graphstore.ValidationResult) {
	fmt.Fprintf(w, "%s%sIntegrity%s %d nodes, %d checks, %s\n",
		colorBold, colorCyan, colorReset, r.TotalChecked, r.ChecksRun, r.Duration)
	if len(r.Violations) == 0 {
		fmt.Fprintf(w, "%sNo violations.%s\n", colorGreen, colorReset)
		return
	}
	for _, v := range r.Violations {
		fmt.Fprintf(w, "  %s%-8s%s row %d %s: %s\n", colorYellow, v.Severity, colorReset, v.RowID, v.Check, v.Description)
	}
}
