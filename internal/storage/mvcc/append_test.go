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

// bulkAppend drives the global append pipeline directly: lock, reserve,
// append, index, commit
func bulkAppend(t *testing.T, e *testEnv, entry *TableEntry, txn *Transaction, chunk *storage.DataChunk) int64 {
	t.Helper()
	dt := entry.Storage()
	state := &TableAppendState{}
	require.NoError(t, dt.AppendLock(state))
	require.NoError(t, dt.InitializeAppend(txn, state, chunk.Size()))
	dt.Append(chunk, state)
	require.NoError(t, dt.AppendToIndexes(chunk, state.RowStart()))
	state.Release()

	commitSeq := e.registry.StartCommit(txn.ID())
	dt.CommitAppend(commitSeq, state.RowStart(), int64(chunk.Size()))
	e.registry.CompleteCommit(txn.ID())
	return state.RowStart()
}

func TestGlobalAppendCommit(t *testing.T) {
	e := newTestEnv()
	entry := e.createTable(t, "t", []storage.ColumnDefinition{intColumn("a")}, nil)
	dt := entry.Storage()

	txn := e.begin(t)
	rowStart := bulkAppend(t, e, entry, txn, intChunk(1, 2, 3))
	assert.EqualValues(t, 0, rowStart)
	assert.EqualValues(t, 3, dt.GetTotalRows())
	assert.EqualValues(t, 3, dt.Cardinality())

	check := e.begin(t)
	assert.Equal(t, []int64{1, 2, 3}, scanColumn(t, dt, check, 0))
	require.NoError(t, check.Rollback())
}

func TestInitializeAppendRequiresAppendLock(t *testing.T) {
	e := newTestEnv()
	entry := e.createTable(t, "t", []storage.ColumnDefinition{intColumn("a")}, nil)
	txn := e.begin(t)

	err := entry.Storage().InitializeAppend(txn, &TableAppendState{}, 1)
	require.Error(t, err)
	assert.True(t, storage.IsInternalError(err))
	require.NoError(t, txn.Rollback())
}

func TestAppendLockRejectsNonRoot(t *testing.T) {
	e := newTestEnv()
	entry := e.createTable(t, "t", []storage.ColumnDefinition{intColumn("a")}, nil)
	parent := entry.Storage()

	txn := e.begin(t)
	successor, err := NewDataTableWithAddedColumn(txn, parent, intColumn("b"), nil)
	require.NoError(t, err)
	entry.SetStorage(successor)
	entry.SetColumns(successor.Columns())

	err = parent.AppendLock(&TableAppendState{})
	require.Error(t, err)
	assert.True(t, storage.IsTransactionConflict(err))
	require.NoError(t, txn.Rollback())
}

func TestAppendRevertRoundTrip(t *testing.T) {
	e := newTestEnv()
	entry := e.createTable(t, "t", []storage.ColumnDefinition{intColumn("a")}, nil)
	idx := addUniqueIndex(entry, "t_a_unique", 0, "a")
	dt := entry.Storage()
	appendCommitted(t, e, entry, intChunk(1, 2))

	totalBefore := dt.GetTotalRows()
	keysBefore := idx.Len()

	txn := e.begin(t)
	state := &TableAppendState{}
	require.NoError(t, dt.AppendLock(state))
	require.NoError(t, dt.InitializeAppend(txn, state, 3))
	chunk := intChunk(10, 11, 12)
	dt.Append(chunk, state)
	require.NoError(t, dt.AppendToIndexes(chunk, state.RowStart()))
	state.Release()

	require.NoError(t, dt.RevertAppend(state.RowStart(), 3))

	assert.Equal(t, totalBefore, dt.GetTotalRows())
	assert.Equal(t, keysBefore, idx.Len())
	assert.EqualValues(t, totalBefore, dt.Cardinality())
	for _, rowID := range []int64{2, 3, 4} {
		assert.False(t, idx.HasRowID(rowID))
	}
	require.NoError(t, txn.Rollback())
}

func TestAppendToIndexesRollsBackOnPartialFailure(t *testing.T) {
	e := newTestEnv()
	entry := e.createTable(t, "t",
		[]storage.ColumnDefinition{intColumn("a"), intColumn("b")}, nil)
	first := addUniqueIndex(entry, "t_a_unique", 0, "a")
	second := addUniqueIndex(entry, "t_b_unique", 1, "b")
	dt := entry.Storage()
	appendCommitted(t, e, entry,
		chunkOf(entry.PhysicalTypes(), storage.Row{iv(1), iv(10)}))

	firstBefore := first.Len()
	secondBefore := second.Len()

	txn := e.begin(t)
	state := &TableAppendState{}
	require.NoError(t, dt.AppendLock(state))
	require.NoError(t, dt.InitializeAppend(txn, state, 1))
	// b=10 collides in the second index after the first index accepted a=2
	chunk := chunkOf(entry.PhysicalTypes(), storage.Row{iv(2), iv(10)})
	dt.Append(chunk, state)

	err := dt.AppendToIndexes(chunk, state.RowStart())
	require.Error(t, err)
	assert.True(t, storage.IsConstraintError(err))

	// the first index was unwound: no index holds the attempted row id
	assert.Equal(t, firstBefore, first.Len())
	assert.Equal(t, secondBefore, second.Len())
	assert.False(t, first.HasRowID(state.RowStart()))
	assert.False(t, second.HasRowID(state.RowStart()))

	require.NoError(t, dt.revertAppendLocked(state.RowStart(), 1))
	state.Release()
	assert.EqualValues(t, 1, dt.GetTotalRows())
	require.NoError(t, txn.Rollback())
}

func TestCommitTimeIndexFailureRevertsFlushedRows(t *testing.T) {
	e := newTestEnv()
	entry := e.createTable(t, "t", []storage.ColumnDefinition{intColumn("a")},
		[]storage.Constraint{&storage.UniqueConstraint{Columns: []int{0}}})
	idx := addUniqueIndex(entry, "t_a_unique", 0, "a")
	dt := entry.Storage()

	// two transactions locally append the same key; the loser fails at commit
	t1 := e.begin(t)
	t2 := e.begin(t)
	require.NoError(t, localAppend(t, entry, t1, intChunk(7)))
	require.NoError(t, localAppend(t, entry, t2, intChunk(7)))
	require.NoError(t, t1.Commit())

	err := t2.Commit()
	require.Error(t, err)
	assert.True(t, storage.IsConstraintError(err))

	check := e.begin(t)
	assert.Equal(t, []int64{7}, scanColumn(t, dt, check, 0))
	assert.EqualValues(t, 1, dt.GetTotalRows())
	assert.EqualValues(t, 1, dt.Cardinality())
	assert.Equal(t, 1, idx.Len())
	require.NoError(t, check.Rollback())
}

func TestScanTableSegmentAlignsAndSlices(t *testing.T) {
	e := newTestEnv()
	entry := e.createTable(t, "t", []storage.ColumnDefinition{intColumn("a")}, nil)
	dt := entry.Storage()

	total := int64(3 * storage.VectorSize)
	chunk := storage.NewDataChunk(entry.PhysicalTypes())
	txn := e.begin(t)
	for i := int64(0); i < total; i++ {
		chunk.AppendRow(iv(i))
		if chunk.Size() == storage.VectorSize {
			bulkAppend(t, e, entry, txn, chunk)
			chunk = storage.NewDataChunk(entry.PhysicalTypes())
		}
	}

	// an unaligned range: starts mid-vector, ends mid-vector
	start := int64(storage.VectorSize + 500)
	count := int64(storage.VectorSize + 100)
	var got []int64
	err := dt.ScanTableSegment(start, count, func(chunk *storage.DataChunk) error {
		for i := 0; i < chunk.Size(); i++ {
			v, _ := chunk.Value(0, i).AsInt64()
			got = append(got, v)
		}
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, int(count))
	assert.Equal(t, start, got[0])
	assert.Equal(t, start+count-1, got[len(got)-1])
	for i := 1; i < len(got); i++ {
		assert.Equal(t, got[i-1]+1, got[i])
	}
	require.NoError(t, txn.Rollback())
}

func TestWriteToLogRecordsSegment(t *testing.T) {
	e := newTestEnv()
	entry := e.createTable(t, "t", []storage.ColumnDefinition{intColumn("a")}, nil)

	txn := e.begin(t)
	require.NoError(t, localAppend(t, entry, txn, intChunk(1, 2, 3)))
	require.NoError(t, txn.Commit())

	records := e.wal.Records()
	require.NotEmpty(t, records)
	assert.Equal(t, WALSetTable, records[0].Type)
	assert.Equal(t, "main", records[0].SchemaName)
	assert.Equal(t, "t", records[0].TableName)

	inserted := 0
	for _, rec := range records[1:] {
		if rec.Type == WALInsert {
			inserted += len(rec.Rows)
		}
	}
	assert.Equal(t, 3, inserted)
}

func TestWriteToLogHonorsSkipFlag(t *testing.T) {
	e := newTestEnv()
	e.wal.SkipWriting = true
	entry := e.createTable(t, "t", []storage.ColumnDefinition{intColumn("a")}, nil)

	txn := e.begin(t)
	require.NoError(t, localAppend(t, entry, txn, intChunk(1)))
	require.NoError(t, txn.Commit())
	assert.Zero(t, e.wal.Len())
}

func TestMergeStorage(t *testing.T) {
	e := newTestEnv()
	entry := e.createTable(t, "t", []storage.ColumnDefinition{intColumn("a")}, nil)
	dt := entry.Storage()
	appendCommitted(t, e, entry, intChunk(1))

	txn := e.begin(t)
	writer := dt.CreateOptimisticWriter(txn)
	writer.Append(intChunk(2, 3))
	collection := writer.FinalFlush()

	require.NoError(t, dt.MergeStorage(collection))
	assert.EqualValues(t, 3, dt.GetTotalRows())
	require.NoError(t, txn.Rollback())
}

func TestLocalMergeFlushesOnCommit(t *testing.T) {
	e := newTestEnv()
	entry := e.createTable(t, "t", []storage.ColumnDefinition{intColumn("a")}, nil)
	dt := entry.Storage()

	txn := e.begin(t)
	writer := dt.CreateOptimisticWriter(txn)
	writer.Append(intChunk(5, 6))
	require.NoError(t, dt.LocalMerge(txn, writer.FinalFlush()))

	assert.Equal(t, []int64{5, 6}, scanColumn(t, dt, txn, 0))
	require.NoError(t, txn.Commit())

	check := e.begin(t)
	assert.Equal(t, []int64{5, 6}, scanColumn(t, dt, check, 0))
	require.NoError(t, check.Rollback())
}
