package graphstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegrityValidatorCleanStore(t *testing.T) {
	ns := ringStore(t, 12)

	result, err := NewIntegrityValidator(ns, nil).ValidateAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Violations)
	assert.Equal(t, 4, result.ChecksRun)
	assert.Equal(t, uint64(12), result.TotalChecked)
	assert.False(t, result.HasCritical())
}

func TestIntegrityValidatorFindsViolations(t *testing.T) {
	ctx := context.Background()
	ns := setupTestStore(t, testShape)
	_, err := ns.InsertBatch(ctx, []Node{
		makeNode(4, 0, 2, 3, 3),
		makeNode(4, 1, 1, 1, 1),
		makeNode(4, 2, 1, 2, 40),
		makeNode(4, 3, 1, 1, 1),
	})
	require.NoError(t, err)

	corruptAdjacency(t, ns, 4, []byte{1, 2, 3})
	_, err = ns.db.DB().Exec("UPDATE nodes SET vector = ? WHERE row_id = 2", []byte{9})
	require.NoError(t, err)

	result, err := NewIntegrityValidator(ns, nil).ValidateAll(ctx)
	require.NoError(t, err)
	assert.True(t, result.HasCritical())

	byCheck := map[string][]RowID{}
	for _, v := range result.Violations {
		byCheck[v.Check] = append(byCheck[v.Check], v.RowID)
	}
	assert.Equal(t, []RowID{2}, byCheck["vector_dim"])
	assert.Equal(t, []RowID{4}, byCheck["adjacency_width"])
	assert.Equal(t, []RowID{3}, byCheck["dangling_adjacency"])
}

func TestIntegrityValidatorRequiresSchema(t *testing.T) {
	ns := NewNodeStore(setupTestDB(t))

	_, err := NewIntegrityValidator(ns, nil).ValidateAll(context.Background())
	assert.ErrorIs(t, err, ErrSchemaMissing)
}

func TestSeverityString(t *testing.T) {
	assert.Equal(t, "warning", SeverityWarning.String())
	assert.Equal(t, "critical", SeverityCritical.String())
	assert.Equal(t, "severity(7)", Severity(7).String())
}
