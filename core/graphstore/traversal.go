package graphstore

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"
)

// NodeFetcher is the read side of NodeStore used by traversal.
type NodeFetcher interface {
	GetNode(ctx context.Context, id RowID) (*Node, error)
	FetchByIDs(ctx context.Context, ids []RowID) ([]Node, error)
}

// Walk records one random walk.
type Walk struct {
	Start RowID
	// Hops is the number of completed hops.
	Hops int
	// Fetches counts batched fetch calls made after the start node was read.
	Fetches int
	// Visited holds the node chosen at each hop.
	Visited []RowID
	// Frontiers holds the candidate set consumed at each hop.
	Frontiers [][]RowID
}

// TraversalEngine runs bounded random walks over persisted adjacency. Every
// hop is a fresh store round trip; nothing is cached between hops.
type TraversalEngine struct {
	fetcher NodeFetcher
	rng     RandSource
	logger  *slog.Logger
	metrics *Metrics
}

// TraversalOption configures a TraversalEngine.
type TraversalOption func(*TraversalEngine)

func WithTraversalLogger(logger *slog.Logger) TraversalOption {
	return func(te *TraversalEngine) { te.logger = logger }
}

func WithTraversalMetrics(m *Metrics) TraversalOption {
	return func(te *TraversalEngine) { te.metrics = m }
}

// NewTraversalEngine creates an engine. A nil rng is replaced with a
// time-seeded source.
func NewTraversalEngine(fetcher NodeFetcher, rng RandSource, opts ...TraversalOption) *TraversalEngine {
	te := &TraversalEngine{fetcher: fetcher, rng: rng}
	for _, opt := range opts {
		opt(te)
	}
	if te.rng == nil {
		te.rng = NewTimeSeededRandSource()
	}
	if te.logger == nil {
		te.logger = slog.Default()
	}
	return te
}

// RandomWalk starts at start and takes hops steps. Each step fetches every
// node named by the current frontier in one call, picks one uniformly and
// moves the frontier to its adjacency list. An empty frontier, or one whose
// ids all dangle, fails with *EmptyFrontierError.
func (te *TraversalEngine) RandomWalk(ctx context.Context, start RowID, hops uint32) (*Walk, error) {
	began := time.Now()
	walk, err := te.randomWalk(ctx, start, hops)
	te.metrics.observe("random_walk", began, err)
	if err != nil {
		return walk, err
	}
	te.logger.Debug("random walk finished",
		"start", start,
		"hops", walk.Hops,
		"duration", time.Since(began))
	return walk, nil
}

func (te *TraversalEngine) randomWalk(ctx context.Context, start RowID, hops uint32) (*Walk, error) {
	walk := &Walk{
		Start:     start,
		Visited:   make([]RowID, 0, hops),
		Frontiers: make([][]RowID, 0, hops),
	}

	node, err := te.fetcher.GetNode(ctx, start)
	if err != nil {
		return walk, fmt.Errorf("walk start %d: %w", start, err)
	}
	frontier := node.Neighbors()

	for hop := 0; hop < int(hops); hop++ {
		if err := ctx.Err(); err != nil {
			return walk, err
		}
		next, err := te.step(ctx, walk, hop, frontier)
		if err != nil {
			return walk, err
		}
		frontier = next
	}
	return walk, nil
}

func (te *TraversalEngine) step(ctx context.Context, walk *Walk, hop int, frontier []RowID) ([]RowID, error) {
	walk.Frontiers = append(walk.Frontiers, frontier)
	if len(frontier) == 0 {
		return nil, &EmptyFrontierError{Hop: hop}
	}

	nodes, err := te.fetcher.FetchByIDs(ctx, frontier)
	walk.Fetches++
	if err != nil {
		return nil, fmt.Errorf("walk hop %d: %w", hop, err)
	}
	if len(nodes) == 0 {
		return nil, &EmptyFrontierError{Hop: hop}
	}

	// Fetch order is unspecified; sorting keeps seeded walks reproducible.
	slices.SortFunc(nodes, func(a, b Node) int {
		switch {
		case a.RowID < b.RowID:
			return -1
		case a.RowID > b.RowID:
			return 1
		}
		return 0
	})
	chosen := nodes[te.rng.Intn(len(nodes))]

	walk.Visited = append(walk.Visited, chosen.RowID)
	walk.Hops++
	te.metrics.incHops()
	return chosen.Neighbors(), nil
}

// WalkMany runs one independent walk per start id with at most parallelism
// walks in flight. Per-walk sources are seeded from the engine's source
// before any walk begins, so a seeded engine gives reproducible results.
// Results are in the order of starts.
func (te *TraversalEngine) WalkMany(ctx context.Context, starts []RowID, hops uint32, parallelism int) ([]*Walk, error) {
	if parallelism <= 0 {
		parallelism = 1
	}

	seeds := make([]int64, len(starts))
	for i := range seeds {
		seeds[i] = int64(te.rng.Intn(math.MaxInt32))
	}

	walks := make([]*Walk, len(starts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for i, start := range starts {
		g.Go(func() error {
			sub := &TraversalEngine{
				fetcher: te.fetcher,
				rng:     NewRandSource(seeds[i]),
				logger:  te.logger,
				metrics: te.metrics,
			}
			walk, err := sub.RandomWalk(gctx, start, hops)
			walks[i] = walk
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return walks, err
	}
	return walks, nil
}
