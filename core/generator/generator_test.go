package generator

import (
	"math"
	"testing"

	"github.com/adalundhe/adjgraph/core/graphstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorsShapeAndRange(t *testing.T) {
	g := New(1)
	const radius = 100

	vecs, err := g.Vectors(16, 50, radius)
	require.NoError(t, err)
	require.Len(t, vecs, 50)

	for _, v := range vecs {
		require.Len(t, v, 16)
		var sumSq float64
		for _, b := range v {
			assert.GreaterOrEqual(t, int(b), quantizeOffset-radius)
			assert.LessOrEqual(t, int(b), quantizeOffset+radius)
			d := float64(b) - quantizeOffset
			sumSq += d * d
		}
		// Truncation loses under one unit per coordinate.
		assert.InDelta(t, radius, math.Sqrt(sumSq), 4.5)
	}
}

func TestVectorsRejectsBadRadius(t *testing.T) {
	g := New(1)
	for _, r := range []float32{0, -1, 127, 200, float32(math.NaN())} {
		_, err := g.Vectors(4, 1, r)
		assert.ErrorIs(t, err, ErrInvalidRadius, "radius %v", r)
	}
}

func TestVectorsRejectsBadArgs(t *testing.T) {
	g := New(1)
	_, err := g.Vectors(0, 1, 10)
	assert.ErrorIs(t, err, ErrInvalidShape)
	_, err = g.Vectors(4, -1, 10)
	assert.ErrorIs(t, err, ErrInvalidCount)
}

func TestAdjacencyBounds(t *testing.T) {
	g := New(2)

	adj, err := g.Adjacency(200, 8, 10)
	require.NoError(t, err)
	require.Len(t, adj, 200)

	seen := map[uint32]bool{}
	for _, list := range adj {
		require.Len(t, list, 8)
		for _, id := range list {
			assert.GreaterOrEqual(t, id, uint32(1))
			assert.LessOrEqual(t, id, uint32(10))
			seen[id] = true
		}
	}
	assert.Len(t, seen, 10)
}

func TestAdjacencyRejectsBadArgs(t *testing.T) {
	g := New(2)
	_, err := g.Adjacency(1, 0, 10)
	assert.ErrorIs(t, err, ErrInvalidShape)
	_, err = g.Adjacency(1, 3, 0)
	assert.ErrorIs(t, err, ErrInvalidMaxID)
}

func TestSeededGeneratorsAgree(t *testing.T) {
	shape := graphstore.Shape{Dim: 8, Degree: 4}

	a, err := New(77).Nodes(shape, 20, 60, 20, 1)
	require.NoError(t, err)
	b, err := New(77).Nodes(shape, 20, 60, 20, 1)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := New(78).Nodes(shape, 20, 60, 20, 1)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestNodesAssignSequentialGUIDs(t *testing.T) {
	shape := graphstore.Shape{Dim: 4, Degree: 3}

	nodes, err := New(5).Nodes(shape, 5, 50, 5, 100)
	require.NoError(t, err)
	for i, n := range nodes {
		require.NotNil(t, n.GUID)
		assert.Equal(t, uint64(100+i), *n.GUID)
		assert.NoError(t, shape.Check(&n))
	}

	_, err = New(5).Nodes(graphstore.Shape{Dim: 0, Degree: 3}, 1, 50, 5, 0)
	assert.ErrorIs(t, err, ErrInvalidShape)
}

func TestIntnStaysInRange(t *testing.T) {
	g := New(9)
	for i := 0; i < 100; i++ {
		v := g.Intn(7)
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 7)
	}
}
