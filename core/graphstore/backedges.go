package graphstore

import (
	"context"
	"fmt"
	"time"
)

// EvictionPolicy chooses which adjacency slot of target gives way to a new
// back edge. adjacency is the target's current list.
type EvictionPolicy interface {
	Slot(target RowID, adjacency []uint32) (int, error)
}

// RandomEviction picks a slot uniformly at random.
//
// This is lossy on purpose: whichever edge occupied the slot is dropped,
// even if it was the target's only route to part of the graph, and the new
// id may duplicate an entry already present. The update costs O(D) per
// inserted node. A policy that evicts the least useful edge can be swapped in
// through WithEvictionPolicy.
type RandomEviction struct {
	Rand RandSource
}

func (p RandomEviction) Slot(target RowID, adjacency []uint32) (int, error) {
	if len(adjacency) == 0 {
		return 0, fmt.Errorf("%w: node %d", ErrEmptyAdjacency, target)
	}
	return p.Rand.Intn(len(adjacency)), nil
}

// GraphMaintainer writes back edges from existing nodes to a newly inserted
// node. It runs inside the caller's transaction and never commits.
type GraphMaintainer struct {
	eviction EvictionPolicy
}

func NewGraphMaintainer(eviction EvictionPolicy) *GraphMaintainer {
	return &GraphMaintainer{eviction: eviction}
}

// Apply overwrites one adjacency slot of every distinct target with newID.
// It returns the number of targets updated.
func (gm *GraphMaintainer) Apply(ctx context.Context, q queryer, newID RowID, targets []RowID) (int, error) {
	distinct := distinctRowIDs(targets)
	for _, t := range distinct {
		if err := ctx.Err(); err != nil {
			return 0, &BackEdgeError{Target: t, Err: err}
		}
		if err := gm.linkBack(ctx, q, t, newID); err != nil {
			return 0, &BackEdgeError{Target: t, Err: err}
		}
	}
	return len(distinct), nil
}

func (gm *GraphMaintainer) linkBack(ctx context.Context, q queryer, target, newID RowID) error {
	node, err := getNode(ctx, q, target)
	if err != nil {
		return err
	}

	slot, err := gm.eviction.Slot(target, node.Adjacency)
	if err != nil {
		return err
	}
	if slot < 0 || slot >= len(node.Adjacency) {
		return fmt.Errorf("eviction slot %d out of range [0, %d)", slot, len(node.Adjacency))
	}
	node.Adjacency[slot] = uint32(newID)

	result, err := q.ExecContext(ctx, "UPDATE nodes SET adjacency = ? WHERE row_id = ?",
		EncodeAdjacency(node.Adjacency), int64(target))
	if err != nil {
		return queryErr(fmt.Sprintf("update adjacency %d", target), err)
	}
	if n, err := result.RowsAffected(); err == nil && n != 1 {
		return fmt.Errorf("%w: row %d", ErrNotFound, target)
	}
	return nil
}

// InsertWithBackEdges inserts node and links each of its adjacency targets
// back to it. The insert and every neighbor update share one transaction;
// on any failure nothing is written and the error matches
// ErrBackEdgeUpdateFailed.
func (ns *NodeStore) InsertWithBackEdges(ctx context.Context, node Node) (RowID, error) {
	start := time.Now()
	id, linked, err := ns.insertWithBackEdges(ctx, node)
	ns.metrics.observe("insert_with_back_edges", start, err)
	if err != nil {
		ns.logger.Warn("insert with back edges rolled back",
			"targets", len(node.Adjacency),
			"error", err)
		return 0, err
	}

	ns.metrics.addInserted(1)
	ns.metrics.addBackEdges(linked)
	ns.logger.Debug("inserted node with back edges",
		"row_id", id,
		"linked", linked,
		"duration", time.Since(start))
	return id, nil
}

func (ns *NodeStore) insertWithBackEdges(ctx context.Context, node Node) (RowID, int, error) {
	shape, err := ns.Shape(ctx)
	if err != nil {
		return 0, 0, &BackEdgeError{Err: err}
	}
	args, err := nodeArgs(shape, &node)
	if err != nil {
		return 0, 0, &BackEdgeError{Err: err}
	}

	tx, err := ns.db.BeginTx(ctx)
	if err != nil {
		return 0, 0, &BackEdgeError{Err: queryErr("begin tx", err)}
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, insertNodeSQL, args...)
	if err != nil {
		return 0, 0, &BackEdgeError{Err: queryErr("insert node", err)}
	}
	id, err := insertedRowID(result)
	if err != nil {
		return 0, 0, &BackEdgeError{Err: err}
	}

	linked, err := NewGraphMaintainer(ns.eviction).Apply(ctx, tx, id, node.Neighbors())
	if err != nil {
		return 0, 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, &BackEdgeError{Err: queryErr("commit insert", err)}
	}
	return id, linked, nil
}
