package graphstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const (
	nodeColumns   = "row_id, guid, vector, adjacency"
	insertNodeSQL = "INSERT INTO nodes (guid, vector, adjacency) VALUES (?, ?, ?)"

	// maxIDsPerQuery keeps membership lookups under SQLite's host parameter
	// limit.
	maxIDsPerQuery = 500
)

// BatchProgress is called after each node of a batch has been written.
type BatchProgress func(completed, total int)

// NodeStore persists nodes and their adjacency lists.
//
// Thread Safety: concurrent reads are safe. Writers each hold one exclusive
// transaction; coordination between concurrent writers is left to SQLite.
type NodeStore struct {
	db       *GraphDB
	rng      RandSource
	eviction EvictionPolicy
	logger   *slog.Logger
	metrics  *Metrics

	shapeMu sync.RWMutex
	shape   *Shape
}

// StoreOption configures a NodeStore.
type StoreOption func(*NodeStore)

// WithRandSource sets the source used to pick back-edge slots.
func WithRandSource(rng RandSource) StoreOption {
	return func(ns *NodeStore) { ns.rng = rng }
}

// WithEvictionPolicy replaces the default random slot eviction.
func WithEvictionPolicy(p EvictionPolicy) StoreOption {
	return func(ns *NodeStore) { ns.eviction = p }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(ns *NodeStore) { ns.logger = logger }
}

// WithMetrics attaches prometheus instrumentation.
func WithMetrics(m *Metrics) StoreOption {
	return func(ns *NodeStore) { ns.metrics = m }
}

// NewNodeStore creates a NodeStore over db. Without options it logs to
// slog.Default() and evicts back-edge slots using a time-seeded source.
func NewNodeStore(db *GraphDB, opts ...StoreOption) *NodeStore {
	ns := &NodeStore{db: db}
	for _, opt := range opts {
		opt(ns)
	}
	if ns.logger == nil {
		ns.logger = slog.Default()
	}
	if ns.rng == nil {
		ns.rng = NewTimeSeededRandSource()
	}
	if ns.eviction == nil {
		ns.eviction = RandomEviction{Rand: ns.rng}
	}
	return ns
}

// InsertBatch writes nodes in a single transaction and returns their row
// ids in input order. Either every node is committed or none is.
func (ns *NodeStore) InsertBatch(ctx context.Context, nodes []Node) ([]RowID, error) {
	return ns.InsertBatchWithProgress(ctx, nodes, nil)
}

func (ns *NodeStore) InsertBatchWithProgress(ctx context.Context, nodes []Node, progress BatchProgress) ([]RowID, error) {
	start := time.Now()
	ids, err := ns.insertBatch(ctx, nodes, progress)
	ns.metrics.observe("insert_batch", start, err)
	if err != nil {
		ns.logger.Warn("batch insert rolled back",
			"nodes", len(nodes),
			"error", err)
		return nil, err
	}

	ns.metrics.addInserted(len(ids))
	ns.logger.Debug("batch insert committed",
		"nodes", len(ids),
		"duration", time.Since(start))
	return ids, nil
}

func (ns *NodeStore) insertBatch(ctx context.Context, nodes []Node, progress BatchProgress) ([]RowID, error) {
	shape, err := ns.Shape(ctx)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return []RowID{}, nil
	}

	tx, err := ns.db.BeginTx(ctx)
	if err != nil {
		return nil, queryErr("begin tx", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertNodeSQL)
	if err != nil {
		return nil, queryErr("prepare insert", err)
	}
	defer stmt.Close()

	ids, err := executeNodeInserts(ctx, stmt, shape, nodes, progress)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, queryErr("commit batch", err)
	}
	return ids, nil
}

func executeNodeInserts(ctx context.Context, stmt *sql.Stmt, shape Shape, nodes []Node, progress BatchProgress) ([]RowID, error) {
	ids := make([]RowID, 0, len(nodes))
	for i := range nodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		args, err := nodeArgs(shape, &nodes[i])
		if err != nil {
			return nil, fmt.Errorf("batch node %d: %w", i, err)
		}
		result, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return nil, queryErr(fmt.Sprintf("insert batch node %d", i), err)
		}
		id, err := insertedRowID(result)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
		reportProgress(progress, i+1, len(nodes))
	}
	return ids, nil
}

func reportProgress(progress BatchProgress, completed, total int) {
	if progress != nil {
		progress(completed, total)
	}
}

// nodeArgs validates node against shape and returns its insert parameters.
func nodeArgs(shape Shape, node *Node) ([]any, error) {
	if err := shape.Check(node); err != nil {
		return nil, err
	}
	return []any{nullGUID(node.GUID), node.Vector, EncodeAdjacency(node.Adjacency)}, nil
}

func insertedRowID(result sql.Result) (RowID, error) {
	id, err := result.LastInsertId()
	if err != nil {
		return 0, queryErr("fetch row id", err)
	}
	if id <= 0 || RowID(id) > MaxRowID {
		return 0, fmt.Errorf("%w: row id %d does not fit an adjacency entry", ErrEncoding, id)
	}
	return RowID(id), nil
}

// FetchByIDs returns every persisted node whose row id is in ids. Duplicate
// ids are collapsed and missing ids are omitted. The result is in the
// store's natural order, not the order of ids.
func (ns *NodeStore) FetchByIDs(ctx context.Context, ids []RowID) ([]Node, error) {
	start := time.Now()
	nodes, err := ns.fetchByIDs(ctx, ids)
	ns.metrics.observe("fetch_by_ids", start, err)
	return nodes, err
}

func (ns *NodeStore) fetchByIDs(ctx context.Context, ids []RowID) ([]Node, error) {
	distinct := distinctRowIDs(ids)
	if len(distinct) == 0 {
		return []Node{}, nil
	}
	ns.metrics.observeFetch(len(distinct))

	if len(distinct) <= maxIDsPerQuery {
		return fetchNodes(ctx, ns.db.DB(), distinct)
	}

	// Chunks share one transaction so the result is a single snapshot.
	tx, err := ns.db.BeginTx(ctx)
	if err != nil {
		return nil, queryErr("begin tx", err)
	}
	defer tx.Rollback()

	nodes, err := fetchNodes(ctx, tx, distinct)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, queryErr("commit fetch", err)
	}
	return nodes, nil
}

// FetchExact is FetchByIDs for callers that need every id to resolve. It
// returns a *NotFoundError when fewer nodes exist than distinct ids asked for.
func (ns *NodeStore) FetchExact(ctx context.Context, ids []RowID) ([]Node, error) {
	nodes, err := ns.FetchByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if want := len(distinctRowIDs(ids)); len(nodes) != want {
		return nil, &NotFoundError{Requested: want, Found: len(nodes)}
	}
	return nodes, nil
}

// fetchNodes expects ids to be distinct.
func fetchNodes(ctx context.Context, q queryer, ids []RowID) ([]Node, error) {
	nodes := make([]Node, 0, len(ids))
	for lo := 0; lo < len(ids); lo += maxIDsPerQuery {
		hi := min(lo+maxIDsPerQuery, len(ids))
		pred, args := rowIDPredicate(ids[lo:hi])

		rows, err := q.QueryContext(ctx, "SELECT "+nodeColumns+" FROM nodes WHERE "+pred, args...)
		if err != nil {
			return nil, queryErr("fetch nodes", err)
		}
		nodes, err = scanNodes(rows, nodes)
		if err != nil {
			return nil, err
		}
	}
	return nodes, nil
}

// rowIDPredicate builds a parameterized membership predicate. An empty set
// yields a predicate that matches nothing.
func rowIDPredicate(ids []RowID) (string, []any) {
	if len(ids) == 0 {
		return "0 = 1", nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = int64(id)
	}
	placeholders := strings.Repeat(",?", len(ids))[1:]
	return "row_id IN (" + placeholders + ")", args
}

func scanNodes(rows *sql.Rows, dst []Node) ([]Node, error) {
	defer rows.Close()
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, wrapScanErr(err)
		}
		dst = append(dst, node)
	}
	if err := rows.Err(); err != nil {
		return nil, queryErr("scan nodes", err)
	}
	return dst, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(row rowScanner) (Node, error) {
	var (
		rowID     int64
		guid      sql.NullInt64
		vector    []byte
		adjacency []byte
	)
	if err := row.Scan(&rowID, &guid, &vector, &adjacency); err != nil {
		return Node{}, err
	}

	adj, err := DecodeAdjacency(adjacency)
	if err != nil {
		return Node{}, fmt.Errorf("node %d adjacency: %w", rowID, err)
	}

	node := Node{
		RowID:     RowID(rowID),
		Vector:    vector,
		Adjacency: adj,
	}
	if guid.Valid {
		node.GUID = GUIDPtr(uint64(guid.Int64))
	}
	return node, nil
}

func wrapScanErr(err error) error {
	if errors.Is(err, ErrEncoding) {
		return err
	}
	return queryErr("scan node", err)
}

// GetNode loads a single node.
func (ns *NodeStore) GetNode(ctx context.Context, id RowID) (*Node, error) {
	node, err := getNode(ctx, ns.db.DB(), id)
	if err != nil {
		return nil, err
	}
	return &node, nil
}

func getNode(ctx context.Context, q queryer, id RowID) (Node, error) {
	row := q.QueryRowContext(ctx, "SELECT "+nodeColumns+" FROM nodes WHERE row_id = ?", int64(id))
	node, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Node{}, fmt.Errorf("%w: row %d", ErrNotFound, id)
	}
	if errors.Is(err, ErrEncoding) {
		return Node{}, err
	}
	if err != nil {
		return Node{}, queryErr(fmt.Sprintf("get node %d", id), err)
	}
	return node, nil
}

// Count returns the number of persisted nodes.
func (ns *NodeStore) Count(ctx context.Context) (uint64, error) {
	if _, err := ns.Shape(ctx); err != nil {
		return 0, err
	}
	var n int64
	if err := ns.db.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM nodes").Scan(&n); err != nil {
		return 0, queryErr("count nodes", err)
	}
	return uint64(n), nil
}

// ForEach streams every node in row id order. Iteration stops at the first
// error returned by fn.
func (ns *NodeStore) ForEach(ctx context.Context, fn func(Node) error) error {
	rows, err := ns.db.DB().QueryContext(ctx, "SELECT "+nodeColumns+" FROM nodes ORDER BY row_id")
	if err != nil {
		return queryErr("scan table", err)
	}
	defer rows.Close()

	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return wrapScanErr(err)
		}
		if err := fn(node); err != nil {
			return err
		}
	}
	return queryErr("scan table", rows.Err())
}

// Stats reports the node count, shape and file size.
func (ns *NodeStore) Stats(ctx context.Context) (*DBStats, error) {
	shape, err := ns.Shape(ctx)
	if err != nil {
		return nil, err
	}
	count, err := ns.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &DBStats{
		TotalNodes:  count,
		Shape:       shape,
		DBSizeBytes: ns.db.SizeBytes(),
	}, nil
}

func nullGUID(g *uint64) any {
	if g == nil {
		return nil
	}
	return int64(*g)
}
