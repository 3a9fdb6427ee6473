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
	"go.uber.org/multierr"

	"github.com/pidb/duckdb/internal/storage"
)

// TableAppendState tracks one bulk append: it holds the table's append lock
// from AppendLock until Release and remembers where the append started.
type TableAppendState struct {
	table  *DataTable
	locked bool

	rowStart   int64
	currentRow int64
	remaining  int
	txn        *Transaction
}

// RowStart returns the first row id of the append
func (s *TableAppendState) RowStart() int64 { return s.rowStart }

// Release drops the append lock; safe to call more than once
func (s *TableAppendState) Release() {
	if s.locked {
		s.locked = false
		s.table.appendLock.Unlock()
	}
}

// InitializeLocalAppend prepares appending into the transaction's local
// store, rejecting superseded table versions
func (dt *DataTable) InitializeLocalAppend(state *LocalAppendState, txn *Transaction) error {
	if !dt.isRoot.Load() {
		return storage.NewTransactionConflictError("adding entries to a table that has been altered!")
	}
	txn.local.InitializeAppend(state, dt)
	return nil
}

// LocalAppend verifies a chunk against the table's constraints and inserts
// it into the transaction's local store. Verification runs before insertion,
// so a failed chunk leaves no partial row behind. unsafe skips verification
// for data already known valid, e.g. WAL replay.
func (dt *DataTable) LocalAppend(state *LocalAppendState, table *TableEntry, txn *Transaction,
	chunk *storage.DataChunk, unsafe bool) error {
	if chunk.Size() == 0 {
		return nil
	}
	if chunk.ColumnCount() != table.PhysicalColumnCount() {
		return storage.NewInternalError("append chunk has %d columns, table %q has %d physical columns",
			chunk.ColumnCount(), table.TableName, table.PhysicalColumnCount())
	}
	if !dt.isRoot.Load() {
		return storage.NewTransactionConflictError("adding entries to a table that has been altered!")
	}
	if err := chunk.Verify(); err != nil {
		return err
	}

	if !unsafe {
		if err := dt.VerifyAppendConstraints(table, txn, chunk, nil); err != nil {
			return err
		}
	}
	return txn.local.Append(state, chunk)
}

// FinalizeLocalAppend closes the local appender
func (dt *DataTable) FinalizeLocalAppend(state *LocalAppendState) {
	if state.storage != nil {
		state.storage = nil
	}
}

// LocalAppendToTable is the one-shot local append: initialize, append one
// chunk, finalize
func LocalAppendToTable(table *TableEntry, txn *Transaction, chunk *storage.DataChunk) error {
	dt := table.Storage()
	state := &LocalAppendState{}
	if err := dt.InitializeLocalAppend(state, txn); err != nil {
		return err
	}
	if err := dt.LocalAppend(state, table, txn, chunk, false); err != nil {
		return err
	}
	dt.FinalizeLocalAppend(state)
	return nil
}

// AppendLock acquires the table's append lock and records the append start.
// The caller owns the lock through the state until Release.
func (dt *DataTable) AppendLock(state *TableAppendState) error {
	dt.appendLock.Lock()
	state.table = dt
	state.locked = true
	if !dt.isRoot.Load() {
		state.Release()
		return storage.NewTransactionConflictError("adding entries to a table that has been altered!")
	}
	state.rowStart = dt.rowGroups.GetTotalRows()
	state.currentRow = state.rowStart
	return nil
}

// InitializeAppend reserves row-group storage for an append of the given size
func (dt *DataTable) InitializeAppend(txn *Transaction, state *TableAppendState, count int) error {
	if !state.locked {
		return storage.NewInternalError("AppendLock should be called before InitializeAppend")
	}
	dt.rowGroups.InitializeAppend(txn, state, count)
	return nil
}

// Append writes a chunk into the row groups without re-verifying constraints
func (dt *DataTable) Append(chunk *storage.DataChunk, state *TableAppendState) {
	dt.rowGroups.Append(chunk, state)
}

// CommitAppend publishes the appended rows under the commit sequence and
// bumps the cardinality
func (dt *DataTable) CommitAppend(commitSeq int64, rowStart int64, count int64) {
	dt.appendLock.Lock()
	defer dt.appendLock.Unlock()
	dt.rowGroups.CommitAppend(commitSeq, rowStart, count)
	dt.info.cardinality.Add(uint64(count))
}

// appendChunkToIndexes inserts a chunk into every index of the list. On any
// failure the already-updated indexes are unwound in reverse order, so the
// list as a whole observes the append atomically.
func appendChunkToIndexes(indexes *TableIndexList, chunk *storage.DataChunk, rowStart int64) error {
	if indexes.Empty() {
		return nil
	}
	rowIDs := storage.GenerateRowSequence(rowStart, chunk.Size())

	var appended []storage.Index
	var appendErr error
	indexes.Scan(func(index storage.Index) bool {
		if err := index.Append(chunk, rowIDs); err != nil {
			appendErr = err
			return true
		}
		appended = append(appended, index)
		return false
	})
	if appendErr == nil {
		return nil
	}

	var undoErr error
	for i := len(appended) - 1; i >= 0; i-- {
		undoErr = multierr.Append(undoErr, appended[i].Delete(chunk, rowIDs))
	}
	if undoErr != nil {
		return multierr.Append(appendErr, undoErr)
	}
	return appendErr
}

// AppendToIndexes inserts freshly appended rows into every table index,
// rolling all of them back when any index rejects the rows
func (dt *DataTable) AppendToIndexes(chunk *storage.DataChunk, rowStart int64) error {
	return appendChunkToIndexes(dt.info.indexes, chunk, rowStart)
}

// appendToIndexesLocked is AppendToIndexes for callers already holding the
// append lock through a TableAppendState
func (dt *DataTable) appendToIndexesLocked(chunk *storage.DataChunk, rowStart int64) error {
	return appendChunkToIndexes(dt.info.indexes, chunk, rowStart)
}

// RemoveFromIndexes deletes a chunk's rows from every index, with row ids
// generated from rowStart
func (dt *DataTable) RemoveFromIndexes(chunk *storage.DataChunk, rowStart int64) {
	if dt.info.indexes.Empty() {
		return
	}
	rowIDs := storage.GenerateRowSequence(rowStart, chunk.Size())
	dt.info.indexes.Scan(func(index storage.Index) bool {
		_ = index.Delete(chunk, rowIDs)
		return false
	})
}

// RemoveRowIDsFromIndexes deletes the given committed rows from every index,
// fetching their key columns from the row groups
func (dt *DataTable) RemoveRowIDsFromIndexes(rowIDs []int64, count int) error {
	return dt.rowGroups.RemoveFromIndexes(dt.info.indexes, rowIDs, count)
}

// RevertAppend removes rows [startRow, startRow+count) from the committed
// store and every index, restoring the pre-append state
func (dt *DataTable) RevertAppend(startRow int64, count int64) error {
	dt.appendLock.Lock()
	defer dt.appendLock.Unlock()
	return dt.revertAppendLocked(startRow, count)
}

func (dt *DataTable) revertAppendLocked(startRow int64, count int64) error {
	if !dt.info.indexes.Empty() {
		currentRowBase := startRow
		err := dt.ScanTableSegment(startRow, count, func(chunk *storage.DataChunk) error {
			rowIDs := storage.GenerateRowSequence(currentRowBase, chunk.Size())
			var deleteErr error
			dt.info.indexes.Scan(func(index storage.Index) bool {
				deleteErr = multierr.Append(deleteErr, index.Delete(chunk, rowIDs))
				return false
			})
			currentRowBase += int64(chunk.Size())
			return deleteErr
		})
		if err != nil {
			dt.log.Error().Err(err).Msg("index cleanup during append revert failed")
		}
	}
	dt.revertAppendInternal(startRow, count)
	return nil
}

// revertAppendInternal resets the cardinality and drops the reverted rows
func (dt *DataTable) revertAppendInternal(startRow int64, count int64) {
	if count == 0 {
		return
	}
	dt.info.cardinality.Store(uint64(startRow))
	dt.rowGroups.RevertAppendInternal(startRow, count)
}

// ScanTableSegment streams rows [rowStart, rowStart+count) of the committed
// store through fn in vector-sized chunks. The scan starts at the enclosing
// vector boundary; the first and last chunks are sliced when they straddle
// the requested range.
func (dt *DataTable) ScanTableSegment(rowStart int64, count int64, fn func(chunk *storage.DataChunk) error) error {
	if count == 0 {
		return nil
	}
	end := rowStart + count

	types := dt.rowGroups.Types()
	columnIDs := make([]int, len(types))
	for i := range columnIDs {
		columnIDs[i] = i
	}

	state := &TableScanState{}
	dt.InitializeScanWithOffset(state, columnIDs, rowStart, end)
	currentRow := state.tableState.alignedStart()

	for currentRow < end {
		chunk := storage.NewDataChunk(types)
		if !state.tableState.ScanCommitted(chunk, TableScanCommittedRows) {
			break
		}
		if chunk.Size() == 0 {
			break
		}
		endRow := currentRow + int64(chunk.Size())
		chunkStart := currentRow
		if rowStart > chunkStart {
			chunkStart = rowStart
		}
		chunkEnd := endRow
		if end < chunkEnd {
			chunkEnd = end
		}
		chunkCount := int(chunkEnd - chunkStart)
		if chunkCount != chunk.Size() {
			startInChunk := 0
			if currentRow < rowStart {
				startInChunk = int(rowStart - currentRow)
			}
			chunk.Slice(startInChunk, chunkCount)
		}
		if err := fn(chunk); err != nil {
			return err
		}
		currentRow = endRow
	}
	return nil
}

// WriteToLog records the appended segment in the write-ahead log
func (dt *DataTable) WriteToLog(wal *WriteAheadLog, rowStart int64, count int64) {
	if wal == nil || wal.SkipWriting {
		return
	}
	wal.WriteSetTable(dt.info.schemaName, dt.info.tableName)
	_ = dt.ScanTableSegment(rowStart, count, func(chunk *storage.DataChunk) error {
		return wal.WriteInsert(chunk)
	})
}

// MergeStorage folds a privately built collection into the committed row groups
func (dt *DataTable) MergeStorage(data *RowGroupCollection) error {
	dt.rowGroups.MergeStorage(data)
	return dt.rowGroups.Verify()
}

// LocalMerge folds a privately built collection into the transaction's local store
func (dt *DataTable) LocalMerge(txn *Transaction, collection *RowGroupCollection) error {
	return txn.local.LocalMerge(dt, collection)
}

// CreateOptimisticWriter returns a writer buffering bulk loads for this table
func (dt *DataTable) CreateOptimisticWriter(txn *Transaction) *OptimisticDataWriter {
	return txn.local.CreateOptimisticWriter(dt)
}
