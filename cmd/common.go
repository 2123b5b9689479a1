package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/adalundhe/adjgraph/core/generator"
	"github.com/adalundhe/adjgraph/core/graphstore"
	"github.com/spf13/cobra"
)

// ANSI color codes for terminal output.
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

// ProgressBarWidth is the width of the load progress bar in characters.
const ProgressBarWidth = 40

// commandContext is canceled on SIGINT or SIGTERM.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// openStore opens the configured database and wires the session's logger,
// metrics and seeded randomness into a NodeStore.
func (s *session) openStore() (*graphstore.GraphDB, *graphstore.NodeStore, error) {
	db, err := graphstore.OpenWithConfig(s.cfg.DBConfig())
	if err != nil {
		return nil, nil, err
	}
	ns := graphstore.NewNodeStore(db,
		graphstore.WithLogger(s.logger),
		graphstore.WithMetrics(s.metrics),
		graphstore.WithRandSource(graphstore.NewRandSource(int64(s.seed))),
	)
	return db, ns, nil
}

func (s *session) traversalEngine(ns *graphstore.NodeStore) *graphstore.TraversalEngine {
	return graphstore.NewTraversalEngine(ns,
		graphstore.NewRandSource(int64(s.seed)+1),
		graphstore.WithTraversalLogger(s.logger),
		graphstore.WithTraversalMetrics(s.metrics),
	)
}

func (s *session) newGenerator() *generator.Generator {
	return generator.New(s.seed)
}

// sampleStarts draws n start ids uniformly from [1, count].
func sampleStarts(gen *generator.Generator, n int, count uint64) []graphstore.RowID {
	starts := make([]graphstore.RowID, n)
	for i := range starts {
		starts[i] = graphstore.RowID(1 + gen.Intn(int(count)))
	}
	return starts
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func writeProgress(w io.Writer, done, total int) {
	if total == 0 {
		return
	}
	filled := done * ProgressBarWidth / total
	bar := make([]byte, ProgressBarWidth)
	for i := range bar {
		bar[i] = '-'
		if i < filled {
			bar[i] = '='
		}
	}
	fmt.Fprintf(w, "\r%s[%s]%s %d/%d", colorCyan, bar, colorReset, done, total)
	if done == total {
		fmt.Fprintln(w)
	}
}

// formatBytes formats bytes as human-readable string.
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
