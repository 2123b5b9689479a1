package graphstore

import (
	"fmt"
	"math"
	"strings"
)

// RowID is the store-assigned node identifier. Row ids are assigned in
// strictly increasing order and never reused.
type RowID uint64

// MaxRowID is the largest row id an adjacency entry can reference.
const MaxRowID = RowID(math.MaxUint32)

// Node is a persisted graph vertex: a quantized vector plus a fixed-length
// list of out-neighbor row ids.
//
// GUID is a caller-supplied identifier carried alongside the node. It is not
// unique and is never used to resolve adjacency; adjacency entries always
// name row ids.
type Node struct {
	RowID     RowID
	GUID      *uint64
	Vector    []byte
	Adjacency []uint32
}

// GUIDPtr is a convenience for building nodes with a GUID.
func GUIDPtr(v uint64) *uint64 {
	return &v
}

// Neighbors returns the adjacency list as row ids.
func (n *Node) Neighbors() []RowID {
	ids := make([]RowID, len(n.Adjacency))
	for i, id := range n.Adjacency {
		ids[i] = RowID(id)
	}
	return ids
}

func (n Node) String() string {
	guid := "nil"
	if n.GUID != nil {
		guid = fmt.Sprintf("%d", *n.GUID)
	}
	adj := make([]string, len(n.Adjacency))
	for i, id := range n.Adjacency {
		adj[i] = fmt.Sprintf("%d", id)
	}
	return fmt.Sprintf("row_id: %d, guid: %s, vector: %v, adjacency: [%s]",
		n.RowID, guid, n.Vector, strings.Join(adj, ", "))
}

// Shape is the fixed vector dimension and adjacency degree of an index,
// recorded once at schema creation.
type Shape struct {
	Dim    int `yaml:"dim"`
	Degree int `yaml:"degree"`
}

// Validate checks that both dimensions are positive.
func (s Shape) Validate() error {
	if s.Dim <= 0 {
		return fmt.Errorf("%w: dim must be positive, got %d", ErrSchema, s.Dim)
	}
	if s.Degree <= 0 {
		return fmt.Errorf("%w: degree must be positive, got %d", ErrSchema, s.Degree)
	}
	return nil
}

// Check reports a *ShapeError if node does not match the shape.
func (s Shape) Check(node *Node) error {
	if len(node.Vector) != s.Dim {
		return &ShapeError{Field: "vector", Expected: s.Dim, Actual: len(node.Vector)}
	}
	if len(node.Adjacency) != s.Degree {
		return &ShapeError{Field: "adjacency", Expected: s.Degree, Actual: len(node.Adjacency)}
	}
	return nil
}

// DBStats summarizes a store.
type DBStats struct {
	TotalNodes  uint64
	Shape       Shape
	DBSizeBytes int64
}

func distinctRowIDs(ids []RowID) []RowID {
	seen := make(map[RowID]struct{}, len(ids))
	out := make([]RowID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
