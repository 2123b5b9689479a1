// Package generator produces synthetic quantized vectors and random
// adjacency lists for loading and benchmarking a graph store.
package generator

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/adalundhe/adjgraph/core/graphstore"
	"github.com/viterin/vek/vek32"
	"gonum.org/v1/gonum/stat/distuv"
)

// quantizeOffset centers each coordinate in the byte range.
const quantizeOffset = 127

var (
	ErrInvalidRadius = errors.New("radius must be in (0, 127)")
	ErrInvalidCount  = errors.New("count must not be negative")
	ErrInvalidShape  = errors.New("dimension and degree must be positive")
	ErrInvalidMaxID  = errors.New("max id must be positive")
)

// Generator draws vectors and adjacency from a single seeded source. It is
// not safe for concurrent use.
type Generator struct {
	rng    *rand.Rand
	normal distuv.Normal
}

// New returns a generator seeded with seed.
func New(seed uint64) *Generator {
	rng := rand.New(rand.NewPCG(seed, seed^0xDEADBEEF))
	return &Generator{
		rng:    rng,
		normal: distuv.Normal{Mu: 0, Sigma: 1, Src: rng},
	}
}

// Vectors returns count vectors of ndim bytes. Each is a standard normal
// sample scaled to length radius, shifted by 127 and truncated to a byte,
// so every coordinate lands in [127-radius, 127+radius].
func (g *Generator) Vectors(ndim, count int, radius float32) ([][]byte, error) {
	if !(radius > 0 && radius < 127) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidRadius, radius)
	}
	if ndim <= 0 {
		return nil, fmt.Errorf("%w: dim %d", ErrInvalidShape, ndim)
	}
	if count < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCount, count)
	}

	out := make([][]byte, count)
	sample := make([]float32, ndim)
	for i := range out {
		norm := g.fillGaussian(sample)
		scaled := vek32.MulNumber(sample, radius/norm)

		vec := make([]byte, ndim)
		for j, x := range scaled {
			vec[j] = byte(x + quantizeOffset)
		}
		out[i] = vec
	}
	return out, nil
}

// fillGaussian fills sample with standard normal draws and returns its
// Euclidean norm, redrawing the vanishingly rare all-zero sample.
func (g *Generator) fillGaussian(sample []float32) float32 {
	for {
		for j := range sample {
			sample[j] = float32(g.normal.Rand())
		}
		norm := float32(math.Sqrt(float64(vek32.Dot(sample, sample))))
		if norm > 0 {
			return norm
		}
	}
}

// Adjacency returns count lists of degree row ids drawn uniformly from
// [1, maxID]. Duplicates and self references are allowed.
func (g *Generator) Adjacency(count, degree int, maxID uint32) ([][]uint32, error) {
	if degree <= 0 {
		return nil, fmt.Errorf("%w: degree %d", ErrInvalidShape, degree)
	}
	if count < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCount, count)
	}
	if maxID == 0 {
		return nil, ErrInvalidMaxID
	}

	out := make([][]uint32, count)
	for i := range out {
		adj := make([]uint32, degree)
		for j := range adj {
			adj[j] = 1 + g.rng.Uint32N(maxID)
		}
		out[i] = adj
	}
	return out, nil
}

// Nodes combines Vectors and Adjacency into insertable nodes. GUIDs are
// assigned sequentially starting at firstGUID.
func (g *Generator) Nodes(shape graphstore.Shape, count int, radius float32, maxID uint32, firstGUID uint64) ([]graphstore.Node, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidShape, err)
	}
	vectors, err := g.Vectors(shape.Dim, count, radius)
	if err != nil {
		return nil, err
	}
	adjacency, err := g.Adjacency(count, shape.Degree, maxID)
	if err != nil {
		return nil, err
	}

	nodes := make([]graphstore.Node, count)
	for i := range nodes {
		nodes[i] = graphstore.Node{
			GUID:      graphstore.GUIDPtr(firstGUID + uint64(i)),
			Vector:    vectors[i],
			Adjacency: adjacency[i],
		}
	}
	return nodes, nil
}

// Node draws a single node whose neighbors are in [1, maxID].
func (g *Generator) Node(shape graphstore.Shape, radius float32, maxID uint32, guid uint64) (graphstore.Node, error) {
	nodes, err := g.Nodes(shape, 1, radius, maxID, guid)
	if err != nil {
		return graphstore.Node{}, err
	}
	return nodes[0], nil
}

// Intn draws from the generator's source so it can drive store and
// traversal randomness from the same seed.
func (g *Generator) Intn(n int) int {
	return g.rng.IntN(n)
}
