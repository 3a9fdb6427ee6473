/*
Copyright 2025 Stoolap Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package mvcc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pidb/duckdb/internal/storage"
	"github.com/pidb/duckdb/internal/storage/expression"
)

func TestAddColumnMirrorsLocalRows(t *testing.T) {
	e := newTestEnv()
	entry := e.createTable(t, "t", []storage.ColumnDefinition{intColumn("a")}, nil)
	parent := entry.Storage()
	appendCommitted(t, e, entry, intChunk(1))

	txn := e.begin(t)
	require.NoError(t, localAppend(t, entry, txn, intChunk(2)))

	successor, err := NewDataTableWithAddedColumn(txn, parent, intColumn("b"),
		expression.NewConstantExpression(iv(7)))
	require.NoError(t, err)
	entry.SetStorage(successor)
	entry.SetColumns(successor.Columns())

	// the transaction keeps one consistent view: committed and local rows
	// both carry the default
	rows := scanAll(t, successor, txn, []int{0, 1})
	require.Len(t, rows, 2)
	for _, row := range rows {
		b, _ := row[1].AsInt64()
		assert.EqualValues(t, 7, b)
	}
	require.NoError(t, txn.Rollback())
}

func TestDropColumnRenumbersStorageOrdinals(t *testing.T) {
	e := newTestEnv()
	gen := expression.NewArithmeticExpression(expression.OpMul,
		expression.NewColumnExpression("a", 0), expression.NewConstantExpression(iv(2)))
	columns := []storage.ColumnDefinition{
		intColumn("a"),
		{Name: "g", Type: storage.INTEGER, Generated: gen},
		intColumn("b"),
		intColumn("c"),
	}
	entry := e.createTable(t, "t", columns, nil)
	parent := entry.Storage()

	// drop b (ordinal 2): ordinals close up, storage ordinals skip the
	// generated column and stay dense
	txn := e.begin(t)
	successor, err := NewDataTableWithRemovedColumn(txn, parent, 2)
	require.NoError(t, err)
	entry.SetStorage(successor)
	entry.SetColumns(successor.Columns())

	cols := successor.Columns()
	require.Len(t, cols, 3)
	assert.Equal(t, []string{"a", "g", "c"}, []string{cols[0].Name, cols[1].Name, cols[2].Name})
	for i := range cols {
		assert.Equal(t, i, cols[i].ID)
	}
	assert.Equal(t, 0, cols[0].StorageID)
	assert.True(t, cols[1].IsGenerated())
	assert.Equal(t, 1, cols[2].StorageID)
	require.NoError(t, txn.Rollback())
}

func TestAlterTypeRewritesColumn(t *testing.T) {
	e := newTestEnv()
	entry := e.createTable(t, "t",
		[]storage.ColumnDefinition{intColumn("a"), intColumn("b")}, nil)
	parent := entry.Storage()
	appendCommitted(t, e, entry, chunkOf(entry.PhysicalTypes(),
		storage.Row{iv(1), iv(10)}, storage.Row{iv(2), iv(20)}))

	txn := e.begin(t)
	require.NoError(t, localAppend(t, entry, txn,
		chunkOf(entry.PhysicalTypes(), storage.Row{iv(3), iv(30)})))

	// the cast expression reads the changed column through the bound projection
	cast := expression.NewCastExpression(expression.NewColumnExpression("b", 0), storage.TEXT)
	successor, err := NewDataTableWithChangedType(txn, parent, 1, storage.TEXT, []int{1}, cast)
	require.NoError(t, err)
	entry.SetStorage(successor)
	entry.SetColumns(successor.Columns())

	assert.Equal(t, storage.TEXT, successor.Columns()[1].Type)
	assert.False(t, parent.IsRoot())

	rows := scanAll(t, successor, txn, []int{1})
	require.Len(t, rows, 3)
	var got []string
	for _, row := range rows {
		s, ok := row[0].AsString()
		require.True(t, ok)
		got = append(got, s)
	}
	assert.Equal(t, []string{"10", "20", "30"}, got)
	require.NoError(t, txn.Rollback())
}

func TestAlterTypeBlockedByIndex(t *testing.T) {
	e := newTestEnv()
	entry := e.createTable(t, "t", []storage.ColumnDefinition{intColumn("a")}, nil)
	addUniqueIndex(entry, "t_a_unique", 0, "a")
	parent := entry.Storage()

	txn := e.begin(t)
	cast := expression.NewCastExpression(expression.NewColumnExpression("a", 0), storage.TEXT)
	_, err := NewDataTableWithChangedType(txn, parent, 0, storage.TEXT, []int{0}, cast)
	require.Error(t, err)
	assert.True(t, storage.IsCatalogError(err))
	assert.True(t, parent.IsRoot())
	require.NoError(t, txn.Rollback())
}

func TestAddNotNullConstraintVerifiesBothStores(t *testing.T) {
	e := newTestEnv()
	entry := e.createTable(t, "t", []storage.ColumnDefinition{intColumn("a")}, nil)
	parent := entry.Storage()
	appendCommitted(t, e, entry, intChunk(1))

	// a local NULL blocks the constraint and the parent stays root
	txn := e.begin(t)
	require.NoError(t, localAppend(t, entry, txn,
		chunkOf(entry.PhysicalTypes(), storage.Row{nullInt()})))
	constraint := &storage.NotNullConstraint{ColumnIndex: 0, StorageIndex: 0}
	_, err := NewDataTableWithConstraint(txn, parent, constraint)
	require.Error(t, err)
	assert.True(t, storage.IsConstraintError(err))
	assert.True(t, parent.IsRoot())
	require.NoError(t, txn.Rollback())

	// without the offending row the constraint lands and local data moves over
	txn2 := e.begin(t)
	require.NoError(t, localAppend(t, entry, txn2, intChunk(2)))
	successor, err := NewDataTableWithConstraint(txn2, parent, constraint)
	require.NoError(t, err)
	entry.SetStorage(successor)
	entry.AddConstraint(constraint)

	assert.False(t, parent.IsRoot())
	assert.True(t, successor.IsRoot())
	// row groups are shared, the local rows now belong to the successor
	assert.Same(t, parent.RowGroups(), successor.RowGroups())
	assert.True(t, txn2.LocalStorage().Find(successor))
	assert.False(t, txn2.LocalStorage().Find(parent))
	assert.Equal(t, []int64{1, 2}, scanColumn(t, successor, txn2, 0))
	require.NoError(t, txn2.Commit())
}

func TestAddUnsupportedConstraintRejected(t *testing.T) {
	e := newTestEnv()
	entry := e.createTable(t, "t", []storage.ColumnDefinition{intColumn("a")}, nil)
	parent := entry.Storage()

	txn := e.begin(t)
	_, err := NewDataTableWithConstraint(txn, parent,
		&storage.UniqueConstraint{Columns: []int{0}})
	require.Error(t, err)
	var nie *storage.NotImplementedError
	assert.ErrorAs(t, err, &nie)
	assert.True(t, parent.IsRoot())
	require.NoError(t, txn.Rollback())
}

func TestCommitDropTable(t *testing.T) {
	e := newTestEnv()
	entry := e.createTable(t, "t", []storage.ColumnDefinition{intColumn("a")}, nil)
	dt := entry.Storage()
	appendCommitted(t, e, entry, intChunk(1))

	dt.CommitDropTable()
	assert.True(t, dt.RowGroups().IsDropped())
}
