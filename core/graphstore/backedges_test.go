package graphstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bootstrapChain inserts nodes 1..5 whose adjacency only names lower ids.
// Node 1 points at id 0, which never exists.
func bootstrapChain(t *testing.T, ns *NodeStore) map[RowID]Node {
	t.Helper()
	ctx := context.Background()

	batch := []Node{
		{GUID: GUIDPtr(1), Vector: []byte{1, 1, 1, 1}, Adjacency: []uint32{0, 0, 0}},
		{GUID: GUIDPtr(2), Vector: []byte{2, 2, 2, 2}, Adjacency: []uint32{1, 1, 1}},
		{GUID: GUIDPtr(3), Vector: []byte{3, 3, 3, 3}, Adjacency: []uint32{1, 2, 1}},
		{GUID: GUIDPtr(4), Vector: []byte{4, 4, 4, 4}, Adjacency: []uint32{1, 2, 3}},
		{GUID: GUIDPtr(5), Vector: []byte{5, 5, 5, 5}, Adjacency: []uint32{2, 3, 4}},
	}
	ids, err := ns.InsertBatch(ctx, batch)
	require.NoError(t, err)
	require.Equal(t, []RowID{1, 2, 3, 4, 5}, ids)

	nodes, err := ns.FetchExact(ctx, ids)
	require.NoError(t, err)
	return nodeMap(nodes)
}

func TestInsertWithBackEdgesScenario(t *testing.T) {
	ctx := context.Background()
	ns := setupTestStore(t, testShape, WithRandSource(NewRandSource(42)))
	before := bootstrapChain(t, ns)

	id, err := ns.InsertWithBackEdges(ctx, Node{
		GUID:      GUIDPtr(6),
		Vector:    []byte{6, 6, 6, 6},
		Adjacency: []uint32{1, 2, 3},
	})
	require.NoError(t, err)
	require.Equal(t, RowID(6), id)

	after, err := ns.FetchExact(ctx, []RowID{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)
	byID := nodeMap(after)

	for _, target := range []RowID{1, 2, 3} {
		assert.Contains(t, byID[target].Adjacency, uint32(6), "node %d", target)
	}
	for _, untouched := range []RowID{4, 5} {
		assert.Equal(t, before[untouched], byID[untouched], "node %d", untouched)
	}
	assert.Equal(t, []uint32{1, 2, 3}, byID[6].Adjacency)
}

func TestInsertWithBackEdgesSingleSlotMutation(t *testing.T) {
	ctx := context.Background()
	rng := newScriptedRand(1, 0, 2)
	ns := setupTestStore(t, testShape, WithRandSource(rng))
	before := bootstrapChain(t, ns)

	id, err := ns.InsertWithBackEdges(ctx, makeNode(4, 9, 3, 4, 5))
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3, 3}, rng.Calls())

	nodes, err := ns.FetchExact(ctx, []RowID{1, 2, 3, 4, 5})
	require.NoError(t, err)
	byID := nodeMap(nodes)

	expectedSlot := map[RowID]int{3: 1, 4: 0, 5: 2}
	for target, slot := range expectedSlot {
		old := before[target].Adjacency
		got := byID[target].Adjacency
		require.Len(t, got, len(old))

		changed := 0
		for i := range got {
			if got[i] != old[i] {
				changed++
			}
		}
		assert.LessOrEqual(t, changed, 1, "node %d", target)
		assert.Equal(t, uint32(id), got[slot], "node %d", target)
	}

	assert.Equal(t, before[1], byID[1])
	assert.Equal(t, before[2], byID[2])
}

func TestInsertWithBackEdgesDistinctTargets(t *testing.T) {
	ctx := context.Background()
	rng := newScriptedRand(0)
	ns := setupTestStore(t, testShape, WithRandSource(rng))
	bootstrapChain(t, ns)

	id, err := ns.InsertWithBackEdges(ctx, makeNode(4, 9, 2, 2, 4))
	require.NoError(t, err)
	assert.Len(t, rng.Calls(), 2)

	n2, err := ns.GetNode(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint32{uint32(id), 1, 1}, n2.Adjacency)
}

func TestInsertWithBackEdgesMissingTargetRollsBack(t *testing.T) {
	ctx := context.Background()
	ns := setupTestStore(t, testShape, WithRandSource(newScriptedRand(0)))
	before := bootstrapChain(t, ns)

	_, err := ns.InsertWithBackEdges(ctx, makeNode(4, 9, 1, 2, 77))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBackEdgeUpdateFailed)
	assert.ErrorIs(t, err, ErrNotFound)

	var beErr *BackEdgeError
	require.True(t, errors.As(err, &beErr))
	assert.Equal(t, RowID(77), beErr.Target)

	count, err := ns.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), count)

	nodes, err := ns.FetchExact(ctx, []RowID{1, 2, 3, 4, 5})
	require.NoError(t, err)
	assert.Equal(t, before, nodeMap(nodes))
}

func TestInsertWithBackEdgesEmptyNeighborAdjacency(t *testing.T) {
	ctx := context.Background()
	ns := setupTestStore(t, testShape, WithRandSource(newScriptedRand(0)))
	bootstrapChain(t, ns)
	corruptAdjacency(t, ns, 2, []byte{})

	_, err := ns.InsertWithBackEdges(ctx, makeNode(4, 9, 1, 2, 3))
	assert.ErrorIs(t, err, ErrBackEdgeUpdateFailed)
	assert.ErrorIs(t, err, ErrEmptyAdjacency)

	count, err := ns.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), count)

	// Target 1 was updated before target 2 failed; the rollback undoes it.
	n1, err := ns.GetNode(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 0, 0}, n1.Adjacency)
}

func TestInsertWithBackEdgesShapeMismatch(t *testing.T) {
	ctx := context.Background()
	ns := setupTestStore(t, testShape)
	bootstrapChain(t, ns)

	_, err := ns.InsertWithBackEdges(ctx, makeNode(4, 9, 1, 2))
	assert.ErrorIs(t, err, ErrBackEdgeUpdateFailed)
	assert.ErrorIs(t, err, ErrEncoding)

	count, err := ns.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), count)
}

type firstSlotEviction struct {
	seen []RowID
}

func (p *firstSlotEviction) Slot(target RowID, adjacency []uint32) (int, error) {
	p.seen = append(p.seen, target)
	return 0, nil
}

type outOfRangeEviction struct{}

func (outOfRangeEviction) Slot(RowID, []uint32) (int, error) {
	return 3, nil
}

func TestInsertWithBackEdgesCustomEviction(t *testing.T) {
	ctx := context.Background()
	policy := &firstSlotEviction{}
	ns := setupTestStore(t, testShape, WithEvictionPolicy(policy))
	bootstrapChain(t, ns)

	id, err := ns.InsertWithBackEdges(ctx, makeNode(4, 9, 5, 4, 5))
	require.NoError(t, err)
	assert.Equal(t, []RowID{5, 4}, policy.seen)

	n5, err := ns.GetNode(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, []uint32{uint32(id), 3, 4}, n5.Adjacency)
}

func TestInsertWithBackEdgesRejectsBadSlot(t *testing.T) {
	ctx := context.Background()
	ns := setupTestStore(t, testShape, WithEvictionPolicy(outOfRangeEviction{}))
	bootstrapChain(t, ns)

	_, err := ns.InsertWithBackEdges(ctx, makeNode(4, 9, 1, 2, 3))
	assert.ErrorIs(t, err, ErrBackEdgeUpdateFailed)

	count, err := ns.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), count)
}

func TestRandomEvictionEmpty(t *testing.T) {
	_, err := RandomEviction{Rand: newScriptedRand(0)}.Slot(4, nil)
	assert.ErrorIs(t, err, ErrEmptyAdjacency)
}

func TestGraphMaintainerApplyWithinTx(t *testing.T) {
	ctx := context.Background()
	ns := setupTestStore(t, testShape)
	bootstrapChain(t, ns)

	tx, err := ns.db.BeginTx(ctx)
	require.NoError(t, err)

	n, err := NewGraphMaintainer(RandomEviction{Rand: newScriptedRand(2)}).Apply(ctx, tx, 99, []RowID{4, 5})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, tx.Rollback())

	n4, err := ns.GetNode(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 2, 3}, n4.Adjacency)
}
