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
)

func TestSnapshotIsolation(t *testing.T) {
	e := newTestEnv()
	entry := e.createTable(t, "t", []storage.ColumnDefinition{intColumn("a")}, nil)
	dt := entry.Storage()

	early := e.begin(t)

	writer := e.begin(t)
	require.NoError(t, localAppend(t, entry, writer, intChunk(1)))
	// uncommitted rows are invisible to everyone else
	assert.Empty(t, scanColumn(t, dt, early, 0))
	require.NoError(t, writer.Commit())

	// a snapshot taken before the commit still does not see the row
	assert.Empty(t, scanColumn(t, dt, early, 0))
	require.NoError(t, early.Rollback())

	late := e.begin(t)
	assert.Equal(t, []int64{1}, scanColumn(t, dt, late, 0))
	require.NoError(t, late.Rollback())
}

func TestRollbackDiscardsLocalRows(t *testing.T) {
	e := newTestEnv()
	entry := e.createTable(t, "t", []storage.ColumnDefinition{intColumn("a")}, nil)
	dt := entry.Storage()

	txn := e.begin(t)
	require.NoError(t, localAppend(t, entry, txn, intChunk(1, 2)))
	require.NoError(t, txn.Rollback())

	check := e.begin(t)
	assert.Empty(t, scanColumn(t, dt, check, 0))
	assert.EqualValues(t, 0, dt.GetTotalRows())
	require.NoError(t, check.Rollback())
}

func TestRollbackUndoesCommittedStoreWrites(t *testing.T) {
	e := newTestEnv()
	entry := e.createTable(t, "t", []storage.ColumnDefinition{intColumn("a")}, nil)
	dt := entry.Storage()
	appendCommitted(t, e, entry, intChunk(1, 2))

	txn := e.begin(t)
	ids := scanRowIDs(t, dt, txn, nil)
	require.Len(t, ids, 2)

	deleted, err := dt.Delete(entry, txn, ids[:1], 1)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	require.NoError(t, dt.Update(entry, txn, ids[1:], []int{0}, intChunk(99)))
	require.NoError(t, txn.Rollback())

	check := e.begin(t)
	assert.Equal(t, []int64{1, 2}, scanColumn(t, dt, check, 0))
	require.NoError(t, check.Rollback())
}

func TestDoubleCommitRejected(t *testing.T) {
	e := newTestEnv()
	txn := e.begin(t)
	require.NoError(t, txn.Commit())
	assert.ErrorIs(t, txn.Commit(), ErrTransactionClosed)
	assert.ErrorIs(t, txn.Rollback(), ErrTransactionClosed)
}

func TestRegistryStopsAcceptingTransactions(t *testing.T) {
	e := newTestEnv()
	e.registry.StopAcceptingTransactions()
	_, err := e.registry.Begin(e.catalog, e.wal)
	require.Error(t, err)
}

func TestRegistrySequencesAreMonotonic(t *testing.T) {
	r := NewTransactionRegistry()
	id1, seq1, err := r.BeginTransaction()
	require.NoError(t, err)
	id2, seq2, err := r.BeginTransaction()
	require.NoError(t, err)
	assert.Less(t, id1, id2)
	assert.Less(t, seq1, seq2)

	commit1 := r.StartCommit(id1)
	assert.Greater(t, commit1, seq2)
	r.CompleteCommit(id1)
	got, ok := r.GetCommitSequence(id1)
	assert.True(t, ok)
	assert.Equal(t, commit1, got)

	r.AbortTransaction(id2)
	_, ok = r.GetCommitSequence(id2)
	assert.False(t, ok)
}

func TestConcurrentWritersOnDistinctKeys(t *testing.T) {
	e := newTestEnv()
	entry := e.createTable(t, "t", []storage.ColumnDefinition{intColumn("a")},
		[]storage.Constraint{&storage.UniqueConstraint{Columns: []int{0}}})
	addUniqueIndex(entry, "t_a_unique", 0, "a")
	dt := entry.Storage()

	const writers = 8
	done := make(chan error, writers)
	for w := 0; w < writers; w++ {
		go func(w int) {
			txn, err := e.registry.Begin(e.catalog, e.wal)
			if err != nil {
				done <- err
				return
			}
			if err := LocalAppendToTable(entry, txn, intChunk(int64(w))); err != nil {
				done <- err
				return
			}
			done <- txn.Commit()
		}(w)
	}
	for w := 0; w < writers; w++ {
		require.NoError(t, <-done)
	}

	check := e.begin(t)
	values := scanColumn(t, dt, check, 0)
	assert.Len(t, values, writers)
	assert.EqualValues(t, writers, dt.Cardinality())
	require.NoError(t, check.Rollback())
}
