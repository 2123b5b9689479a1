package graphstore

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingFetcher records every batched fetch made through it.
type countingFetcher struct {
	NodeFetcher
	mu      sync.Mutex
	fetches [][]RowID
}

func (f *countingFetcher) FetchByIDs(ctx context.Context, ids []RowID) ([]Node, error) {
	f.mu.Lock()
	f.fetches = append(f.fetches, append([]RowID(nil), ids...))
	f.mu.Unlock()
	return f.NodeFetcher.FetchByIDs(ctx, ids)
}

func (f *countingFetcher) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fetches)
}

// ringStore builds n nodes where node i points at i+1, i+2 and i+3 (mod n).
func ringStore(t *testing.T, n int) *NodeStore {
	t.Helper()
	ns := setupTestStore(t, testShape)

	batch := make([]Node, n)
	for i := 0; i < n; i++ {
		adj := make([]uint32, 3)
		for j := range adj {
			adj[j] = uint32((i+j+1)%n) + 1
		}
		batch[i] = makeNode(4, byte(i), adj...)
	}
	_, err := ns.InsertBatch(context.Background(), batch)
	require.NoError(t, err)
	return ns
}

func TestRandomWalkPerformsOneFetchPerHop(t *testing.T) {
	ns := ringStore(t, 20)
	fetcher := &countingFetcher{NodeFetcher: ns}
	te := NewTraversalEngine(fetcher, NewRandSource(5))

	walk, err := te.RandomWalk(context.Background(), 1, 12)
	require.NoError(t, err)

	assert.Equal(t, 12, fetcher.Count())
	assert.Equal(t, 12, walk.Fetches)
	assert.Equal(t, 12, walk.Hops)
	require.Len(t, walk.Visited, 12)
	require.Len(t, walk.Frontiers, 12)

	for hop, visited := range walk.Visited {
		assert.Contains(t, walk.Frontiers[hop], visited, "hop %d", hop)
	}
	// The first frontier is the start node's adjacency.
	assert.Equal(t, []RowID{2, 3, 4}, walk.Frontiers[0])
}

func TestRandomWalkZeroHops(t *testing.T) {
	ns := ringStore(t, 5)
	fetcher := &countingFetcher{NodeFetcher: ns}

	walk, err := NewTraversalEngine(fetcher, NewRandSource(1)).RandomWalk(context.Background(), 3, 0)
	require.NoError(t, err)
	assert.Zero(t, fetcher.Count())
	assert.Zero(t, walk.Hops)
	assert.Empty(t, walk.Visited)
}

func TestRandomWalkEmptyFrontier(t *testing.T) {
	ctx := context.Background()
	ns := setupTestStore(t, testShape)
	_, err := ns.InsertBatch(ctx, []Node{
		makeNode(4, 0, 2, 2, 2),
		makeNode(4, 1, 1, 1, 1),
	})
	require.NoError(t, err)
	corruptAdjacency(t, ns, 2, []byte{})

	fetcher := &countingFetcher{NodeFetcher: ns}
	walk, err := NewTraversalEngine(fetcher, newScriptedRand(0)).RandomWalk(ctx, 1, 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyFrontier)

	var efErr *EmptyFrontierError
	require.True(t, errors.As(err, &efErr))
	assert.Equal(t, 1, efErr.Hop)
	assert.Equal(t, 1, fetcher.Count())
	assert.Equal(t, []RowID{2}, walk.Visited)
}

func TestRandomWalkEmptyStartAdjacency(t *testing.T) {
	ctx := context.Background()
	ns := ringStore(t, 4)
	corruptAdjacency(t, ns, 1, []byte{})

	fetcher := &countingFetcher{NodeFetcher: ns}
	_, err := NewTraversalEngine(fetcher, NewRandSource(1)).RandomWalk(ctx, 1, 3)

	var efErr *EmptyFrontierError
	require.True(t, errors.As(err, &efErr))
	assert.Equal(t, 0, efErr.Hop)
	assert.Zero(t, fetcher.Count())
}

func TestRandomWalkDanglingFrontier(t *testing.T) {
	ctx := context.Background()
	ns := setupTestStore(t, testShape)
	_, err := ns.InsertBatch(ctx, []Node{makeNode(4, 0, 90, 91, 92)})
	require.NoError(t, err)

	walk, err := NewTraversalEngine(ns, NewRandSource(1)).RandomWalk(ctx, 1, 2)
	assert.ErrorIs(t, err, ErrEmptyFrontier)
	assert.Equal(t, 1, walk.Fetches)
}

func TestRandomWalkMissingStart(t *testing.T) {
	ns := ringStore(t, 3)

	_, err := NewTraversalEngine(ns, NewRandSource(1)).RandomWalk(context.Background(), 404, 3)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRandomWalkCanceled(t *testing.T) {
	ns := ringStore(t, 6)
	ctx, cancel := context.WithCancel(context.Background())

	fetcher := &countingFetcher{NodeFetcher: ns}
	te := NewTraversalEngine(cancelAfterFetch{fetcher, cancel}, NewRandSource(1))

	walk, err := te.RandomWalk(ctx, 1, 10)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, walk.Hops)
}

type cancelAfterFetch struct {
	*countingFetcher
	cancel context.CancelFunc
}

func (c cancelAfterFetch) FetchByIDs(ctx context.Context, ids []RowID) ([]Node, error) {
	nodes, err := c.countingFetcher.FetchByIDs(ctx, ids)
	c.cancel()
	return nodes, err
}

func TestRandomWalkSeededIsReproducible(t *testing.T) {
	ns := ringStore(t, 50)

	a, err := NewTraversalEngine(ns, NewRandSource(99)).RandomWalk(context.Background(), 7, 25)
	require.NoError(t, err)
	b, err := NewTraversalEngine(ns, NewRandSource(99)).RandomWalk(context.Background(), 7, 25)
	require.NoError(t, err)

	assert.Equal(t, a.Visited, b.Visited)
}

// reversedFetcher returns nodes in descending row id order.
type reversedFetcher struct {
	nodes map[RowID]Node
}

func (f reversedFetcher) GetNode(_ context.Context, id RowID) (*Node, error) {
	n, ok := f.nodes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &n, nil
}

func (f reversedFetcher) FetchByIDs(_ context.Context, ids []RowID) ([]Node, error) {
	var out []Node
	for id := RowID(100); id > 0; id-- {
		for _, want := range ids {
			if want == id {
				out = append(out, f.nodes[id])
				break
			}
		}
	}
	return out, nil
}

func TestRandomWalkSamplesInRowIDOrder(t *testing.T) {
	fetcher := reversedFetcher{nodes: map[RowID]Node{
		1: {RowID: 1, Adjacency: []uint32{4, 2, 3}},
		2: {RowID: 2, Adjacency: []uint32{1, 1, 1}},
		3: {RowID: 3, Adjacency: []uint32{1, 1, 1}},
		4: {RowID: 4, Adjacency: []uint32{1, 1, 1}},
	}}

	walk, err := NewTraversalEngine(fetcher, newScriptedRand(0, 2)).RandomWalk(context.Background(), 1, 2)
	require.NoError(t, err)
	// Draw 0 of {2,3,4} is 2; draw 2 of {1} is 1.
	assert.Equal(t, []RowID{2, 1}, walk.Visited)
}

func TestWalkMany(t *testing.T) {
	ns := ringStore(t, 30)
	fetcher := &countingFetcher{NodeFetcher: ns}
	te := NewTraversalEngine(fetcher, NewRandSource(11))

	starts := []RowID{1, 5, 9, 13, 17, 21, 25, 29}
	walks, err := te.WalkMany(context.Background(), starts, 6, 3)
	require.NoError(t, err)
	require.Len(t, walks, len(starts))

	for i, w := range walks {
		assert.Equal(t, starts[i], w.Start)
		assert.Equal(t, 6, w.Hops)
	}
	assert.Equal(t, 6*len(starts), fetcher.Count())

	again, err := NewTraversalEngine(ns, NewRandSource(11)).WalkMany(context.Background(), starts, 6, 1)
	require.NoError(t, err)
	for i := range walks {
		assert.Equal(t, walks[i].Visited, again[i].Visited)
	}
}

func TestWalkManyPropagatesFailure(t *testing.T) {
	ns := ringStore(t, 10)

	_, err := NewTraversalEngine(ns, NewRandSource(2)).WalkMany(context.Background(), []RowID{1, 500, 3}, 4, 2)
	assert.ErrorIs(t, err, ErrNotFound)
}
