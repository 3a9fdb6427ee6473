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
	"sync"

	"github.com/pidb/duckdb/internal/fastmap"
	"github.com/pidb/duckdb/internal/storage"
)

// localTableStorage holds one table's uncommitted rows inside a transaction.
// Row offsets are stable; deletes only mark. The local index list mirrors
// the table's indexes so constraint probes can see uncommitted keys.
type localTableStorage struct {
	table *DataTable

	mu      sync.RWMutex
	rows    []storage.Row
	deleted *fastmap.SyncInt64Map[struct{}]
	indexes *TableIndexList
}

func newLocalTableStorage(table *DataTable) *localTableStorage {
	lts := &localTableStorage{
		table:   table,
		deleted: fastmap.NewSyncInt64Map[struct{}](4),
		indexes: NewTableIndexList(),
	}
	table.info.indexes.Scan(func(index storage.Index) bool {
		names := []string(nil)
		if ki, ok := index.(*KeyIndex); ok {
			names = ki.columnNames
		}
		lts.indexes.AddIndex(NewKeyIndex(
			"local_"+index.Name(), table.info.tableName,
			index.ColumnIDs(), names, index.IsUnique(), index.IsForeign()))
		return false
	})
	return lts
}

// appendChunk inserts a chunk into the local indexes and rows. Index
// insertion happens first with rollback, so a constraint failure leaves no
// partial row behind.
func (lts *localTableStorage) appendChunk(chunk *storage.DataChunk) error {
	lts.mu.Lock()
	defer lts.mu.Unlock()
	base := int64(len(lts.rows))
	if err := appendChunkToIndexes(lts.indexes, chunk, storage.MaxRowID+base); err != nil {
		return err
	}
	for i := 0; i < chunk.Size(); i++ {
		lts.rows = append(lts.rows, chunk.Row(i))
	}
	return nil
}

func (lts *localTableStorage) liveRowCount() int {
	lts.mu.RLock()
	defer lts.mu.RUnlock()
	n := 0
	for off := range lts.rows {
		if !lts.deleted.Has(int64(off)) {
			n++
		}
	}
	return n
}

// LocalStorage is the per-transaction container of uncommitted table data,
// keyed by table identity. Schema changes move a table's entry to the
// successor so the transaction keeps one consistent view.
type LocalStorage struct {
	txn *Transaction

	mu     sync.RWMutex
	tables map[*DataTable]*localTableStorage
}

// NewLocalStorage creates the local store of one transaction
func NewLocalStorage(txn *Transaction) *LocalStorage {
	return &LocalStorage{txn: txn, tables: make(map[*DataTable]*localTableStorage)}
}

func (ls *LocalStorage) find(table *DataTable) *localTableStorage {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	return ls.tables[table]
}

func (ls *LocalStorage) getOrCreate(table *DataTable) *localTableStorage {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if lts, ok := ls.tables[table]; ok {
		return lts
	}
	lts := newLocalTableStorage(table)
	ls.tables[table] = lts
	return lts
}

// Find reports whether the transaction holds local data for the table
func (ls *LocalStorage) Find(table *DataTable) bool {
	lts := ls.find(table)
	return lts != nil && len(lts.rows) > 0
}

// GetIndexes returns the local index list for the table, creating the entry
// on first use
func (ls *LocalStorage) GetIndexes(table *DataTable) *TableIndexList {
	return ls.getOrCreate(table).indexes
}

// LocalAppendState tracks one local append between initialize and finalize
type LocalAppendState struct {
	storage *localTableStorage
}

// InitializeAppend prepares appending into the table's local store
func (ls *LocalStorage) InitializeAppend(state *LocalAppendState, table *DataTable) {
	state.storage = ls.getOrCreate(table)
}

// Append inserts a verified chunk into the local store
func (ls *LocalStorage) Append(state *LocalAppendState, chunk *storage.DataChunk) error {
	return state.storage.appendChunk(chunk)
}

// FinalizeAppend closes a local append
func (ls *LocalStorage) FinalizeAppend(state *LocalAppendState) {
	state.storage = nil
}

// Delete marks the given local rows deleted and removes them from the local
// indexes, returning the number of rows deleted
func (ls *LocalStorage) Delete(table *DataTable, rowIDs []int64, count int) int {
	lts := ls.find(table)
	if lts == nil {
		return 0
	}
	lts.mu.Lock()
	defer lts.mu.Unlock()

	types := table.rowGroups.Types()
	chunk := storage.NewDataChunk(types)
	ids := make([]int64, 0, count)
	deleted := 0
	for i := 0; i < count; i++ {
		off := rowIDs[i] - storage.MaxRowID
		if off < 0 || off >= int64(len(lts.rows)) || lts.deleted.Has(off) {
			continue
		}
		chunk.AppendRow(lts.rows[off]...)
		ids = append(ids, rowIDs[i])
		lts.deleted.Set(off, struct{}{})
		deleted++
	}
	lts.indexes.Scan(func(index storage.Index) bool {
		_ = index.Delete(chunk, ids)
		return false
	})
	return deleted
}

// Update overwrites the given physical columns of local rows
func (ls *LocalStorage) Update(table *DataTable, rowIDs []int64, columnIDs []int, updates *storage.DataChunk) {
	lts := ls.find(table)
	if lts == nil {
		return
	}
	lts.mu.Lock()
	defer lts.mu.Unlock()
	for i := 0; i < updates.Size(); i++ {
		off := rowIDs[i] - storage.MaxRowID
		if off < 0 || off >= int64(len(lts.rows)) {
			continue
		}
		for ci, col := range columnIDs {
			lts.rows[off][col] = updates.Value(ci, i)
		}
	}
}

// FetchChunk materializes the given local rows with all physical columns
func (ls *LocalStorage) FetchChunk(table *DataTable, rowIDs []int64, count int, result *storage.DataChunk) error {
	lts := ls.find(table)
	if lts == nil {
		return storage.NewInternalError("no transaction-local data for table %q", table.info.tableName)
	}
	lts.mu.RLock()
	defer lts.mu.RUnlock()
	for i := 0; i < count; i++ {
		off := rowIDs[i] - storage.MaxRowID
		if off < 0 || off >= int64(len(lts.rows)) {
			return storage.NewInternalError("row id %d is outside the transaction-local store", rowIDs[i])
		}
		result.AppendRow(lts.rows[off]...)
	}
	return nil
}

// LocalScanState walks a table's local rows in insertion order
type LocalScanState struct {
	storage    *localTableStorage
	offset     int
	endOffset  int
	filters    *TableFilterSet
	batchIndex int64
}

// InitializeScan binds a scan state to the table's local rows
func (ls *LocalStorage) InitializeScan(table *DataTable, state *LocalScanState, filters *TableFilterSet) {
	lts := ls.find(table)
	state.storage = lts
	state.filters = filters
	state.offset = 0
	state.endOffset = -1
	if lts != nil {
		lts.mu.RLock()
		state.endOffset = len(lts.rows)
		lts.mu.RUnlock()
	}
}

// Scan produces the next batch of live local rows projected to columnIDs,
// returning false when the local store is exhausted
func (ls *LocalStorage) Scan(state *LocalScanState, columnIDs []int, result *storage.DataChunk) bool {
	lts := state.storage
	if lts == nil {
		return false
	}
	lts.mu.RLock()
	defer lts.mu.RUnlock()
	end := state.endOffset
	if end < 0 || end > len(lts.rows) {
		end = len(lts.rows)
	}
	count := 0
	for state.offset < end && count < storage.VectorSize {
		off := state.offset
		state.offset++
		if lts.deleted.Has(int64(off)) {
			continue
		}
		row := lts.rows[off]
		if state.filters != nil && !state.filters.RowMatches(row) {
			continue
		}
		for ci, col := range columnIDs {
			if col == storage.RowIDColumnID {
				result.Column(ci).Append(storage.NewIntegerValue(storage.MaxRowID + int64(off)))
				continue
			}
			result.Column(ci).Append(row[col])
		}
		count++
	}
	result.SetCardinality(count)
	return count > 0
}

// LocalParallelScanState splits the local rows into scan units
type LocalParallelScanState struct {
	mu         sync.Mutex
	nextOffset int
	rowCount   int
}

// InitializeParallelScan prepares handing out local scan units
func (ls *LocalStorage) InitializeParallelScan(table *DataTable, state *LocalParallelScanState) {
	state.nextOffset = 0
	state.rowCount = 0
	if lts := ls.find(table); lts != nil {
		lts.mu.RLock()
		state.rowCount = len(lts.rows)
		lts.mu.RUnlock()
	}
}

// NextParallelScan hands out the next unit of local rows, one row-group's
// worth per call. Returns false when the local rows are exhausted.
func (ls *LocalStorage) NextParallelScan(table *DataTable, state *LocalParallelScanState, scanState *LocalScanState) bool {
	state.mu.Lock()
	defer state.mu.Unlock()
	if state.nextOffset >= state.rowCount {
		return false
	}
	unit := storage.VectorSize * table.rowGroups.VectorCount()
	scanState.storage = ls.find(table)
	scanState.offset = state.nextOffset
	scanState.endOffset = state.nextOffset + unit
	if scanState.endOffset > state.rowCount {
		scanState.endOffset = state.rowCount
	}
	state.nextOffset = scanState.endOffset
	return true
}

// AddColumn mirrors an added column into the local rows, transferring the
// table's local data from the parent to the successor
func (ls *LocalStorage) AddColumn(parent, successor *DataTable, newCol storage.ColumnDefinition, defaultExpr storage.Expression) error {
	lts := ls.take(parent)
	if lts == nil {
		return nil
	}
	lts.mu.Lock()
	for off := range lts.rows {
		val := storage.ColumnValue(storage.NewNullValue(newCol.Type))
		if defaultExpr != nil {
			chunk := storage.NewDataChunk(parent.rowGroups.Types())
			chunk.AppendRow(lts.rows[off]...)
			vec, err := defaultExpr.Eval(chunk)
			if err != nil {
				lts.mu.Unlock()
				return err
			}
			val = vec.Get(0)
		}
		lts.rows[off] = append(lts.rows[off], val)
	}
	lts.table = successor
	lts.mu.Unlock()
	ls.put(successor, lts)
	return nil
}

// DropColumn mirrors a dropped column into the local rows
func (ls *LocalStorage) DropColumn(parent, successor *DataTable, removedStorageIdx int) {
	lts := ls.take(parent)
	if lts == nil {
		return
	}
	lts.mu.Lock()
	for off := range lts.rows {
		row := lts.rows[off]
		lts.rows[off] = append(row[:removedStorageIdx], row[removedStorageIdx+1:]...)
	}
	lts.table = successor
	lts.mu.Unlock()
	ls.put(successor, lts)
}

// ChangeType mirrors a column type change into the local rows. The cast
// expression's column references index into the boundColumns projection.
func (ls *LocalStorage) ChangeType(parent, successor *DataTable, changedStorageIdx int,
	targetType storage.DataType, boundColumns []int, castExpr storage.Expression) error {
	lts := ls.take(parent)
	if lts == nil {
		return nil
	}
	lts.mu.Lock()
	parentTypes := parent.rowGroups.Types()
	boundTypes := make([]storage.DataType, len(boundColumns))
	for i, b := range boundColumns {
		boundTypes[i] = parentTypes[b]
	}
	for off := range lts.rows {
		chunk := storage.NewDataChunk(boundTypes)
		row := make(storage.Row, len(boundColumns))
		for i, b := range boundColumns {
			row[i] = lts.rows[off][b]
		}
		chunk.AppendRow(row...)
		vec, err := castExpr.Eval(chunk)
		if err != nil {
			lts.mu.Unlock()
			return err
		}
		lts.rows[off][changedStorageIdx] = vec.Get(0)
	}
	lts.table = successor
	lts.mu.Unlock()
	ls.put(successor, lts)
	return nil
}

// MoveStorage transfers ownership of the parent's local data to the successor
func (ls *LocalStorage) MoveStorage(parent, successor *DataTable) {
	if lts := ls.take(parent); lts != nil {
		lts.mu.Lock()
		lts.table = successor
		lts.mu.Unlock()
		ls.put(successor, lts)
	}
}

func (ls *LocalStorage) take(table *DataTable) *localTableStorage {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	lts := ls.tables[table]
	delete(ls.tables, table)
	return lts
}

func (ls *LocalStorage) put(table *DataTable, lts *localTableStorage) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.tables[table] = lts
}

// VerifyNewConstraint checks the transaction's local rows against a
// constraint being added by a schema change
func (ls *LocalStorage) VerifyNewConstraint(parent *DataTable, constraint storage.Constraint) error {
	notNull, ok := constraint.(*storage.NotNullConstraint)
	if !ok {
		return storage.NewNotImplementedError("adding this constraint type to an existing table is not supported")
	}
	lts := ls.find(parent)
	if lts == nil {
		return nil
	}
	lts.mu.RLock()
	defer lts.mu.RUnlock()
	for off, row := range lts.rows {
		if lts.deleted.Has(int64(off)) {
			continue
		}
		if storage.IsNullValue(row[notNull.StorageIndex]) {
			return storage.NewNotNullConstraintError(
				parent.info.tableName, parent.columns[notNull.ColumnIndex].Name)
		}
	}
	return nil
}

// LocalMerge folds a privately built row-group collection into the table's
// local rows, keeping the local indexes consistent
func (ls *LocalStorage) LocalMerge(table *DataTable, collection *RowGroupCollection) error {
	lts := ls.getOrCreate(table)
	types := collection.Types()
	chunk := storage.NewDataChunk(types)
	collection.mu.RLock()
	groups := collection.groups
	collection.mu.RUnlock()
	for _, g := range groups {
		for off := 0; off < g.count; off++ {
			row := make(storage.Row, len(g.columns))
			for ci, col := range g.columns {
				row[ci] = col.Get(off)
			}
			chunk.AppendRow(row...)
			if chunk.Size() == storage.VectorSize {
				if err := lts.appendChunk(chunk); err != nil {
					return err
				}
				chunk = storage.NewDataChunk(types)
			}
		}
	}
	if chunk.Size() > 0 {
		return lts.appendChunk(chunk)
	}
	return nil
}

// OptimisticDataWriter accumulates bulk-loaded chunks into a private
// collection that is merged into the local store when the load succeeds
type OptimisticDataWriter struct {
	table      *DataTable
	collection *RowGroupCollection
}

// CreateOptimisticWriter returns a writer buffering bulk appends for the table
func (ls *LocalStorage) CreateOptimisticWriter(table *DataTable) *OptimisticDataWriter {
	return &OptimisticDataWriter{
		table:      table,
		collection: NewRowGroupCollection(table.rowGroups.Types()),
	}
}

// Append buffers one chunk into the writer's private collection
func (w *OptimisticDataWriter) Append(chunk *storage.DataChunk) {
	state := &TableAppendState{}
	w.collection.InitializeAppend(nil, state, chunk.Size())
	w.collection.Append(chunk, state)
}

// FinalFlush hands the buffered collection to the caller
func (w *OptimisticDataWriter) FinalFlush() *RowGroupCollection {
	return w.collection
}

// flush appends every live local row into the committed row groups and
// indexes under the commit sequence. A failed index append reverts the
// table's fresh rows before the error is returned.
func (ls *LocalStorage) flush(t *Transaction, commitSeq int64) error {
	ls.mu.RLock()
	tables := make([]*localTableStorage, 0, len(ls.tables))
	for _, lts := range ls.tables {
		tables = append(tables, lts)
	}
	ls.mu.RUnlock()

	for _, lts := range tables {
		if err := ls.flushTable(t, lts, commitSeq); err != nil {
			return err
		}
	}
	return nil
}

func (ls *LocalStorage) flushTable(t *Transaction, lts *localTableStorage, commitSeq int64) error {
	lts.mu.RLock()
	live := make([]storage.Row, 0, len(lts.rows))
	for off, row := range lts.rows {
		if !lts.deleted.Has(int64(off)) {
			live = append(live, row)
		}
	}
	lts.mu.RUnlock()
	if len(live) == 0 {
		return nil
	}

	table := lts.table
	types := table.rowGroups.Types()
	state := &TableAppendState{}
	if err := table.AppendLock(state); err != nil {
		return err
	}
	table.InitializeAppend(t, state, len(live))

	written := 0
	for written < len(live) {
		chunk := storage.NewDataChunk(types)
		for i := written; i < len(live) && chunk.Size() < storage.VectorSize; i++ {
			chunk.AppendRow(live[i]...)
		}
		table.Append(chunk, state)
		if err := table.appendToIndexesLocked(chunk, state.rowStart+int64(written)); err != nil {
			// the failing chunk is already in the row groups; revert it
			// together with the chunks flushed before it
			table.revertAppendLocked(state.rowStart, int64(written+chunk.Size()))
			state.Release()
			return err
		}
		written += chunk.Size()
	}

	table.WriteToLog(t.wal, state.rowStart, int64(written))
	state.Release()
	table.CommitAppend(commitSeq, state.rowStart, int64(written))
	return nil
}

// reset drops all local data, called when the transaction finishes
func (ls *LocalStorage) reset() {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.tables = make(map[*DataTable]*localTableStorage)
}
