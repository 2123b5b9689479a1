package graphstore

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"time"
)

// Severity represents the severity level of an integrity violation.
type Severity int

const (
	// SeverityWarning is survivable: walks treat the entry as absent.
	SeverityWarning Severity = iota
	// SeverityCritical means reads of the row fail.
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	default:
		return fmt.Sprintf("severity(%d)", s)
	}
}

// Violation is one row that breaks an invariant.
type Violation struct {
	Check       string   `json:"check"`
	RowID       RowID    `json:"row_id"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
}

// ValidationResult summarizes one validation run.
type ValidationResult struct {
	Violations   []Violation   `json:"violations"`
	ChecksRun    int           `json:"checks_run"`
	TotalChecked uint64        `json:"total_checked"`
	Duration     time.Duration `json:"duration"`
	Timestamp    time.Time     `json:"timestamp"`
}

// HasCritical reports whether any violation makes rows unreadable.
func (r *ValidationResult) HasCritical() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// invariantCheck selects the row ids of offending nodes.
type invariantCheck struct {
	Name        string
	Description string
	Query       string
	Args        []any
	Severity    Severity
}

func shapeChecks(shape Shape) []invariantCheck {
	return []invariantCheck{
		{
			Name:        "vector_dim",
			Description: fmt.Sprintf("vector length differs from dim %d", shape.Dim),
			Query:       "SELECT row_id FROM nodes WHERE length(vector) != ? ORDER BY row_id",
			Args:        []any{shape.Dim},
			Severity:    SeverityCritical,
		},
		{
			Name:        "adjacency_width",
			Description: fmt.Sprintf("adjacency is not %d little-endian entries", shape.Degree),
			Query:       "SELECT row_id FROM nodes WHERE length(adjacency) != ? ORDER BY row_id",
			Args:        []any{shape.Degree * AdjacencyWidth},
			Severity:    SeverityCritical,
		},
	}
}

// IntegrityValidator scans a store for rows that break the shape or
// reference nodes that do not exist.
type IntegrityValidator struct {
	store  *NodeStore
	logger *slog.Logger
}

func NewIntegrityValidator(store *NodeStore, logger *slog.Logger) *IntegrityValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &IntegrityValidator{store: store, logger: logger}
}

// ValidateAll runs SQLite's quick_check, the shape checks and the dangling
// reference scan. Dangling entries are warnings: back-edge eviction never
// creates them, but bulk-loaded adjacency may name ids that were never
// inserted.
func (v *IntegrityValidator) ValidateAll(ctx context.Context) (*ValidationResult, error) {
	start := time.Now()
	result := &ValidationResult{
		Violations: make([]Violation, 0),
		Timestamp:  start,
	}

	if err := v.quickCheck(ctx); err != nil {
		return nil, err
	}
	result.ChecksRun++

	shape, err := v.store.Shape(ctx)
	if err != nil {
		return nil, err
	}

	for _, check := range shapeChecks(shape) {
		violations, err := v.runCheck(ctx, check)
		if err != nil {
			return nil, fmt.Errorf("check %s: %w", check.Name, err)
		}
		result.Violations = append(result.Violations, violations...)
		result.ChecksRun++
	}

	dangling, total, err := v.danglingReferences(ctx)
	if err != nil {
		return nil, fmt.Errorf("check dangling_adjacency: %w", err)
	}
	result.Violations = append(result.Violations, dangling...)
	result.ChecksRun++
	result.TotalChecked = total

	result.Duration = time.Since(start)
	v.logViolations(result.Violations)
	return result, nil
}

func (v *IntegrityValidator) quickCheck(ctx context.Context) error {
	var status string
	if err := v.store.db.DB().QueryRowContext(ctx, "PRAGMA quick_check").Scan(&status); err != nil {
		return queryErr("quick check", err)
	}
	if status != "ok" {
		return queryErr("quick check", fmt.Errorf("database is corrupt: %s", status))
	}
	return nil
}

func (v *IntegrityValidator) runCheck(ctx context.Context, check invariantCheck) ([]Violation, error) {
	rows, err := v.store.db.DB().QueryContext(ctx, check.Query, check.Args...)
	if err != nil {
		return nil, queryErr(check.Name, err)
	}
	defer rows.Close()

	var violations []Violation
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, queryErr(check.Name, err)
		}
		violations = append(violations, Violation{
			Check:       check.Name,
			RowID:       RowID(id),
			Description: check.Description,
			Severity:    check.Severity,
		})
	}
	return violations, queryErr(check.Name, rows.Err())
}

// danglingReferences reports every node with at least one adjacency entry
// that names a missing row. Rows with a malformed adjacency blob are left to
// the adjacency_width check.
func (v *IntegrityValidator) danglingReferences(ctx context.Context) ([]Violation, uint64, error) {
	db := v.store.db.DB()

	present := make(map[uint32]struct{})
	rows, err := db.QueryContext(ctx, "SELECT row_id FROM nodes")
	if err != nil {
		return nil, 0, queryErr("list row ids", err)
	}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, 0, queryErr("list row ids", err)
		}
		present[uint32(id)] = struct{}{}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, queryErr("list row ids", err)
	}

	rows, err = db.QueryContext(ctx, "SELECT row_id, adjacency FROM nodes ORDER BY row_id")
	if err != nil {
		return nil, 0, queryErr("scan adjacency", err)
	}
	defer rows.Close()

	var violations []Violation
	var total uint64
	for rows.Next() {
		var id int64
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, 0, queryErr("scan adjacency", err)
		}
		total++
		if len(raw)%AdjacencyWidth != 0 {
			continue
		}

		missing := 0
		for off := 0; off < len(raw); off += AdjacencyWidth {
			if _, ok := present[binary.LittleEndian.Uint32(raw[off:])]; !ok {
				missing++
			}
		}
		if missing > 0 {
			violations = append(violations, Violation{
				Check:       "dangling_adjacency",
				RowID:       RowID(id),
				Description: fmt.Sprintf("%d of %d adjacency entries name missing rows", missing, len(raw)/AdjacencyWidth),
				Severity:    SeverityWarning,
			})
		}
	}
	return violations, total, queryErr("scan adjacency", rows.Err())
}

func (v *IntegrityValidator) logViolations(violations []Violation) {
	for _, violation := range violations {
		attrs := []any{
			"check", violation.Check,
			"row_id", violation.RowID,
			"description", violation.Description,
		}
		if violation.Severity == SeverityCritical {
			v.logger.Error("integrity violation", attrs...)
			continue
		}
		v.logger.Warn("integrity violation", attrs...)
	}
}
