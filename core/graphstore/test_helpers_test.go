package graphstore

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// scriptedRand replays draws in order, wrapping around. Each draw is reduced
// modulo n so scripts stay valid for any degree.
type scriptedRand struct {
	draws []int
	calls []int
	mu    sync.Mutex
}

func newScriptedRand(draws ...int) *scriptedRand {
	return &scriptedRand{draws: draws}
}

func (r *scriptedRand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := 0
	if len(r.draws) > 0 {
		d = r.draws[len(r.calls)%len(r.draws)] % n
	}
	r.calls = append(r.calls, n)
	return d
}

func (r *scriptedRand) Calls() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.calls...)
}

func setupTestDB(t *testing.T, opts ...DBOption) *GraphDB {
	t.Helper()
	db, err := OpenWithOptions(filepath.Join(t.TempDir(), "test.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func setupTestStore(t *testing.T, shape Shape, opts ...StoreOption) *NodeStore {
	t.Helper()
	ns := NewNodeStore(setupTestDB(t), opts...)
	require.NoError(t, ns.CreateSchema(context.Background(), shape))
	return ns
}

func makeNode(dim int, fill byte, adjacency ...uint32) Node {
	vec := make([]byte, dim)
	for i := range vec {
		vec[i] = fill + byte(i)
	}
	return Node{Vector: vec, Adjacency: adjacency}
}

func nodeMap(nodes []Node) map[RowID]Node {
	m := make(map[RowID]Node, len(nodes))
	for _, n := range nodes {
		m[n.RowID] = n
	}
	return m
}

// corruptAdjacency writes raw bytes into a node's adjacency column,
// bypassing shape checks.
func corruptAdjacency(t *testing.T, ns *NodeStore, id RowID, raw []byte) {
	t.Helper()
	_, err := ns.db.DB().Exec("UPDATE nodes SET adjacency = ? WHERE row_id = ?", raw, int64(id))
	require.NoError(t, err)
}
