package graphstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"
)

//go:embed schema.sql
var schemaSQL string

// CreateSchema initializes the node and metadata tables and records shape.
// It fails with ErrSchemaExists if the store was already initialized.
func (ns *NodeStore) CreateSchema(ctx context.Context, shape Shape) error {
	if err := shape.Validate(); err != nil {
		return err
	}

	tx, err := ns.db.BeginTx(ctx)
	if err != nil {
		return queryErr("begin tx", err)
	}
	defer tx.Rollback()

	exists, err := tableExists(ctx, tx, "nodes")
	if err != nil {
		return err
	}
	if exists {
		return ErrSchemaExists
	}

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return queryErr("create schema", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO graph_meta (id, dim, degree, created_at) VALUES (1, ?, ?, ?)",
		shape.Dim, shape.Degree, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return queryErr("record shape", err)
	}
	if err := tx.Commit(); err != nil {
		return queryErr("commit schema", err)
	}

	ns.setShape(shape)
	ns.logger.Info("created graph schema",
		"path", ns.db.Path(),
		"dim", shape.Dim,
		"degree", shape.Degree)
	return nil
}

// Shape returns the vector dimension and degree recorded at schema creation.
func (ns *NodeStore) Shape(ctx context.Context) (Shape, error) {
	ns.shapeMu.RLock()
	if ns.shape != nil {
		s := *ns.shape
		ns.shapeMu.RUnlock()
		return s, nil
	}
	ns.shapeMu.RUnlock()

	s, err := loadShape(ctx, ns.db.DB())
	if err != nil {
		return Shape{}, err
	}
	ns.setShape(s)
	return s, nil
}

func (ns *NodeStore) setShape(s Shape) {
	ns.shapeMu.Lock()
	ns.shape = &s
	ns.shapeMu.Unlock()
}

func loadShape(ctx context.Context, q queryer) (Shape, error) {
	exists, err := tableExists(ctx, q, "graph_meta")
	if err != nil {
		return Shape{}, err
	}
	if !exists {
		return Shape{}, ErrSchemaMissing
	}

	var s Shape
	err = q.QueryRowContext(ctx, "SELECT dim, degree FROM graph_meta WHERE id = 1").Scan(&s.Dim, &s.Degree)
	if errors.Is(err, sql.ErrNoRows) {
		return Shape{}, fmt.Errorf("%w: shape row missing", ErrSchemaMissing)
	}
	if err != nil {
		return Shape{}, queryErr("load shape", err)
	}
	return s, nil
}

func tableExists(ctx context.Context, q queryer, name string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&n)
	if err != nil {
		return false, queryErr("inspect schema", err)
	}
	return n > 0, nil
}
