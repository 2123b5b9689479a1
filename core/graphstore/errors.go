package graphstore

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is() usage.
var (
	ErrSchema               = errors.New("schema error")
	ErrSchemaExists         = fmt.Errorf("%w: schema already exists", ErrSchema)
	ErrSchemaMissing        = fmt.Errorf("%w: schema not initialized", ErrSchema)
	ErrEncoding             = errors.New("encoding error")
	ErrShapeMismatch        = fmt.Errorf("%w: node shape mismatch", ErrEncoding)
	ErrQuery                = errors.New("query failed")
	ErrNotFound             = errors.New("node not found")
	ErrEmptyFrontier        = errors.New("empty frontier")
	ErrEmptyAdjacency       = errors.New("empty adjacency list")
	ErrBackEdgeUpdateFailed = errors.New("back edge update failed")
)

// EncodingError reports a byte buffer whose length is not a multiple of the
// element width.
type EncodingError struct {
	Len   int
	Width int
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encoding error: buffer length %d is not a multiple of %d", e.Len, e.Width)
}

func (e *EncodingError) Unwrap() error {
	return ErrEncoding
}

// ShapeError reports a node whose vector or adjacency length disagrees with
// the shape fixed at schema creation.
type ShapeError struct {
	Field    string
	Expected int
	Actual   int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("node shape mismatch: %s length %d, want %d", e.Field, e.Actual, e.Expected)
}

func (e *ShapeError) Unwrap() error {
	return ErrShapeMismatch
}

// QueryError wraps a failure reported by the backing store.
type QueryError struct {
	Op  string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %s: %v", e.Op, e.Err)
}

func (e *QueryError) Is(target error) bool {
	return target == ErrQuery
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

func queryErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &QueryError{Op: op, Err: err}
}

// NotFoundError is returned when fewer nodes came back than were requested.
type NotFoundError struct {
	Requested int
	Found     int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("node not found: requested %d, found %d", e.Requested, e.Found)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// EmptyFrontierError records the hop at which a walk ran out of candidates.
// Hop 0 is the frontier taken from the start node.
type EmptyFrontierError struct {
	Hop int
}

func (e *EmptyFrontierError) Error() string {
	return fmt.Sprintf("empty frontier at hop %d", e.Hop)
}

func (e *EmptyFrontierError) Unwrap() error {
	return ErrEmptyFrontier
}

// BackEdgeError wraps the failure of one step of the back-edge update. The
// surrounding transaction has already been rolled back when it surfaces.
type BackEdgeError struct {
	Target RowID
	Err    error
}

func (e *BackEdgeError) Error() string {
	if e.Target == 0 {
		return fmt.Sprintf("back edge update failed: %v", e.Err)
	}
	return fmt.Sprintf("back edge update failed for target %d: %v", e.Target, e.Err)
}

func (e *BackEdgeError) Is(target error) bool {
	return target == ErrBackEdgeUpdateFailed
}

func (e *BackEdgeError) Unwrap() error {
	return e.Err
}
