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
// Package mvcc implements a transactional columnar table-storage engine:
// multi-versioned row groups, per-transaction local stores, constraint
// verification and schema evolution.
package mvcc

import (
	"sync"

	"go.uber.org/atomic"

	"github.com/pidb/duckdb/internal/config"
	"github.com/pidb/duckdb/internal/storage"
)

// rowGroup is a horizontal partition of the table with columnar storage and
// per-row version metadata. Rows are addressed by their global position:
// group.start + offset inside the group.
type rowGroup struct {
	start   int64
	count   int
	columns []*storage.Vector

	// insertTxn is the writing transaction; insertSeq is stamped at
	// CommitAppend and stays zero while the append is uncommitted
	insertTxn []int64
	insertSeq []int64
	// deleteTxn marks a pending or committed delete; visibility consults
	// the transaction registry for the deleter's commit sequence
	deleteTxn []int64
}

func newRowGroup(start int64, types []storage.DataType, capacity int) *rowGroup {
	cols := make([]*storage.Vector, len(types))
	for i, t := range types {
		cols[i] = storage.NewVector(t, capacity)
	}
	return &rowGroup{
		start:     start,
		columns:   cols,
		insertTxn: make([]int64, 0, capacity),
		insertSeq: make([]int64, 0, capacity),
		deleteTxn: make([]int64, 0, capacity),
	}
}

// RowGroupCollection owns the committed columnar storage of one table
// version: a list of fixed-capacity row groups plus per-column statistics.
type RowGroupCollection struct {
	mu    sync.RWMutex
	types []storage.DataType

	groups        []*rowGroup
	groupCapacity int
	vectorCount   int

	totalRows atomic.Int64
	stats     []*ColumnStatistics

	dropped bool
}

// NewRowGroupCollection creates a collection for the given physical column
// types. The row-group capacity follows the engine config.
func NewRowGroupCollection(types []storage.DataType) *RowGroupCollection {
	vectorCount := config.Get().RowGroupVectorCount
	if vectorCount < 1 {
		vectorCount = 1
	}
	stats := make([]*ColumnStatistics, len(types))
	for i, t := range types {
		stats[i] = NewColumnStatistics(t)
	}
	return &RowGroupCollection{
		types:         append([]storage.DataType(nil), types...),
		groupCapacity: storage.VectorSize * vectorCount,
		vectorCount:   vectorCount,
		stats:         stats,
	}
}

// InitializeEmpty prepares the collection for a fresh table
func (rg *RowGroupCollection) InitializeEmpty() {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	rg.groups = nil
	rg.totalRows.Store(0)
}

// Initialize loads the collection from persisted table data
func (rg *RowGroupCollection) Initialize(data *PersistentTableData) {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	for _, rows := range data.RowGroups {
		for _, row := range rows {
			rg.appendRowLocked(row, 0, data.CommitSeq)
		}
	}
}

// GetTotalRows returns the number of physically present rows, committed or not
func (rg *RowGroupCollection) GetTotalRows() int64 {
	return rg.totalRows.Load()
}

// Types returns the physical column types
func (rg *RowGroupCollection) Types() []storage.DataType {
	return rg.types
}

// VectorCount returns the number of vectors per row group
func (rg *RowGroupCollection) VectorCount() int {
	return rg.vectorCount
}

func (rg *RowGroupCollection) locate(rowID int64) (*rowGroup, int, bool) {
	gi := int(rowID) / rg.groupCapacity
	if gi >= len(rg.groups) {
		return nil, 0, false
	}
	g := rg.groups[gi]
	off := int(rowID) - int(g.start)
	if off < 0 || off >= g.count {
		return nil, 0, false
	}
	return g, off, true
}

// appendRowLocked adds one row at the tail, creating a group as needed
func (rg *RowGroupCollection) appendRowLocked(row storage.Row, txnID, commitSeq int64) {
	total := rg.totalRows.Load()
	var g *rowGroup
	if n := len(rg.groups); n > 0 && rg.groups[n-1].count < rg.groupCapacity {
		g = rg.groups[n-1]
	} else {
		g = newRowGroup(total, rg.types, rg.groupCapacity)
		rg.groups = append(rg.groups, g)
	}
	for i, v := range row {
		g.columns[i].Append(v)
		rg.stats[i].Update(v)
	}
	g.insertTxn = append(g.insertTxn, txnID)
	g.insertSeq = append(g.insertSeq, commitSeq)
	g.deleteTxn = append(g.deleteTxn, 0)
	g.count++
	rg.totalRows.Store(total + 1)
}

// InitializeAppend reserves storage for an append of the given size
func (rg *RowGroupCollection) InitializeAppend(txn *Transaction, state *TableAppendState, count int) {
	state.txn = txn
	state.remaining = count
}

// Append writes a chunk of physical columns at the tail of the collection.
// The rows stay invisible to other transactions until CommitAppend.
func (rg *RowGroupCollection) Append(chunk *storage.DataChunk, state *TableAppendState) {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	var txnID int64
	if state.txn != nil {
		txnID = state.txn.id
	}
	for i := 0; i < chunk.Size(); i++ {
		rg.appendRowLocked(chunk.Row(i), txnID, 0)
	}
	state.currentRow += int64(chunk.Size())
	state.remaining -= chunk.Size()
}

// CommitAppend publishes rows [rowStart, rowStart+count) under commitSeq
func (rg *RowGroupCollection) CommitAppend(commitSeq int64, rowStart int64, count int64) {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	for row := rowStart; row < rowStart+count; row++ {
		g, off, ok := rg.locate(row)
		if !ok {
			continue
		}
		g.insertSeq[off] = commitSeq
	}
}

// RevertAppendInternal drops rows [start, start+count) off the tail
func (rg *RowGroupCollection) RevertAppendInternal(start int64, count int64) {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	for len(rg.groups) > 0 {
		g := rg.groups[len(rg.groups)-1]
		if g.start >= start+count {
			rg.groups = rg.groups[:len(rg.groups)-1]
			continue
		}
		if g.start+int64(g.count) <= start {
			break
		}
		keep := int(start - g.start)
		if keep < 0 {
			keep = 0
		}
		for _, col := range g.columns {
			col.Slice(0, keep)
		}
		g.insertTxn = g.insertTxn[:keep]
		g.insertSeq = g.insertSeq[:keep]
		g.deleteTxn = g.deleteTxn[:keep]
		g.count = keep
		if keep == 0 {
			rg.groups = rg.groups[:len(rg.groups)-1]
			continue
		}
		break
	}
	rg.totalRows.Store(start)
}

// Delete marks the given committed rows as deleted by the transaction and
// returns the number of rows newly deleted
func (rg *RowGroupCollection) Delete(txn *Transaction, table *DataTable, rowIDs []int64, count int) int {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	deleted := 0
	for i := 0; i < count; i++ {
		g, off, ok := rg.locate(rowIDs[i])
		if !ok {
			continue
		}
		if g.deleteTxn[off] != 0 && txn.seesDelete(g.deleteTxn[off]) {
			continue
		}
		g.deleteTxn[off] = txn.id
		txn.recordDeleteUndo(rg, rowIDs[i])
		deleted++
	}
	return deleted
}

// undoDelete clears a pending delete mark, called on transaction rollback
func (rg *RowGroupCollection) undoDelete(rowID int64, txnID int64) {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	if g, off, ok := rg.locate(rowID); ok && g.deleteTxn[off] == txnID {
		g.deleteTxn[off] = 0
	}
}

// Update overwrites the given physical columns of the given rows in place,
// recording undo entries on the transaction
func (rg *RowGroupCollection) Update(txn *Transaction, rowIDs []int64, columnIDs []int, updates *storage.DataChunk) {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	for i := 0; i < updates.Size(); i++ {
		g, off, ok := rg.locate(rowIDs[i])
		if !ok {
			continue
		}
		for ci, col := range columnIDs {
			old := g.columns[col].Get(off)
			txn.recordUpdateUndo(rg, rowIDs[i], col, old)
			val := updates.Value(ci, i)
			g.columns[col].Set(off, val)
			rg.stats[col].Update(val)
		}
	}
}

// UpdateColumn overwrites one column addressed by a column path
func (rg *RowGroupCollection) UpdateColumn(txn *Transaction, rowIDs []int64, columnPath []int, updates *storage.DataChunk) {
	rg.Update(txn, rowIDs, columnPath[:1], updates)
}

// undoUpdate restores an overwritten value, called on transaction rollback
func (rg *RowGroupCollection) undoUpdate(rowID int64, col int, old storage.ColumnValue) {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	if g, off, ok := rg.locate(rowID); ok {
		g.columns[col].Set(off, old)
	}
}

// Fetch materializes the given rows into result, projecting columnIDs.
// Only rows visible to the transaction are produced.
func (rg *RowGroupCollection) Fetch(txn *Transaction, result *storage.DataChunk, columnIDs []int,
	rowIDs []int64, count int, state *ColumnFetchState) int {
	rg.mu.RLock()
	defer rg.mu.RUnlock()
	fetched := 0
	for i := 0; i < count; i++ {
		g, off, ok := rg.locate(rowIDs[i])
		if !ok || !rg.rowVisibleLocked(txn, g, off) {
			continue
		}
		for ci, col := range columnIDs {
			if col == storage.RowIDColumnID {
				result.Column(ci).Append(storage.NewIntegerValue(rowIDs[i]))
				continue
			}
			result.Column(ci).Append(g.columns[col].Get(off))
		}
		fetched++
	}
	result.SetCardinality(fetched)
	return fetched
}

func (rg *RowGroupCollection) rowVisibleLocked(txn *Transaction, g *rowGroup, off int) bool {
	if !txn.seesInsert(g.insertTxn[off], g.insertSeq[off]) {
		return false
	}
	if g.deleteTxn[off] != 0 && txn.seesDelete(g.deleteTxn[off]) {
		return false
	}
	return true
}

// committedRowPresentLocked is the latest-committed view used by index
// builds and segment scans: every physically present row that does not carry
// a committed delete.
func (rg *RowGroupCollection) committedRowPresentLocked(registry *TransactionRegistry, g *rowGroup, off int) bool {
	if g.deleteTxn[off] == 0 {
		return true
	}
	if registry == nil {
		return false
	}
	_, committed := registry.GetCommitSequence(g.deleteTxn[off])
	return !committed
}

// VerifyNewConstraint checks every committed row against a constraint being
// added by a schema change. Only NOT NULL is supported.
func (rg *RowGroupCollection) VerifyNewConstraint(table string, columns []storage.ColumnDefinition, constraint storage.Constraint) error {
	notNull, ok := constraint.(*storage.NotNullConstraint)
	if !ok {
		return storage.NewNotImplementedError("adding this constraint type to an existing table is not supported")
	}
	rg.mu.RLock()
	defer rg.mu.RUnlock()
	for _, g := range rg.groups {
		if g.columns[notNull.StorageIndex].HasNull(g.count) {
			return storage.NewNotNullConstraintError(table, columns[notNull.ColumnIndex].Name)
		}
	}
	return nil
}

// MergeStorage appends every row of data at the tail of this collection
func (rg *RowGroupCollection) MergeStorage(data *RowGroupCollection) {
	data.mu.RLock()
	defer data.mu.RUnlock()
	rg.mu.Lock()
	defer rg.mu.Unlock()
	for _, g := range data.groups {
		for off := 0; off < g.count; off++ {
			row := make(storage.Row, len(g.columns))
			for ci, col := range g.columns {
				row[ci] = col.Get(off)
			}
			rg.appendRowLocked(row, g.insertTxn[off], g.insertSeq[off])
		}
	}
}

// RemoveFromIndexes deletes the given rows from every index in the list
func (rg *RowGroupCollection) RemoveFromIndexes(indexes *TableIndexList, rowIDs []int64, count int) error {
	rg.mu.RLock()
	chunk := storage.NewDataChunk(rg.types)
	ids := make([]int64, 0, count)
	for i := 0; i < count; i++ {
		g, off, ok := rg.locate(rowIDs[i])
		if !ok {
			continue
		}
		row := make(storage.Row, len(g.columns))
		for ci, col := range g.columns {
			row[ci] = col.Get(off)
		}
		chunk.AppendRow(row...)
		ids = append(ids, rowIDs[i])
	}
	rg.mu.RUnlock()

	var err error
	indexes.Scan(func(index storage.Index) bool {
		if e := index.Delete(chunk, ids); e != nil {
			err = e
			return true
		}
		return false
	})
	return err
}

// AddColumn produces a new collection with an extra column at the end,
// filled from the default expression (typed NULL when absent). Unchanged
// column storage is shared with the parent, which is quiesced by the caller.
func (rg *RowGroupCollection) AddColumn(newCol storage.ColumnDefinition, defaultExpr storage.Expression) (*RowGroupCollection, error) {
	rg.mu.RLock()
	defer rg.mu.RUnlock()

	out := NewRowGroupCollection(append(append([]storage.DataType(nil), rg.types...), newCol.Type))
	out.groupCapacity = rg.groupCapacity
	out.vectorCount = rg.vectorCount
	for i, s := range rg.stats {
		out.stats[i] = s.Copy()
	}

	for _, g := range rg.groups {
		ng := &rowGroup{
			start:     g.start,
			count:     g.count,
			columns:   append(append([]*storage.Vector(nil), g.columns...), nil),
			insertTxn: g.insertTxn,
			insertSeq: g.insertSeq,
			deleteTxn: g.deleteTxn,
		}
		filled, err := rg.fillColumnLocked(g, newCol, defaultExpr)
		if err != nil {
			return nil, err
		}
		ng.columns[len(ng.columns)-1] = filled
		for i := 0; i < filled.Size(); i++ {
			out.stats[len(out.stats)-1].Update(filled.Get(i))
		}
		out.groups = append(out.groups, ng)
	}
	out.totalRows.Store(rg.totalRows.Load())
	return out, nil
}

func (rg *RowGroupCollection) fillColumnLocked(g *rowGroup, newCol storage.ColumnDefinition, defaultExpr storage.Expression) (*storage.Vector, error) {
	filled := storage.NewVector(newCol.Type, g.count)
	if defaultExpr == nil {
		for i := 0; i < g.count; i++ {
			filled.Append(storage.NewNullValue(newCol.Type))
		}
		return filled, nil
	}
	chunk := storage.NewEmptyChunk(rg.types)
	for ci, col := range g.columns {
		chunk.ReferenceColumn(ci, col)
	}
	chunk.SetCardinality(g.count)
	vec, err := defaultExpr.Eval(chunk)
	if err != nil {
		return nil, err
	}
	for i := 0; i < g.count; i++ {
		filled.Append(vec.Get(i))
	}
	return filled, nil
}

// RemoveColumn produces a new collection without the given physical column,
// sharing the remaining column storage with the parent
func (rg *RowGroupCollection) RemoveColumn(removed int) *RowGroupCollection {
	rg.mu.RLock()
	defer rg.mu.RUnlock()

	types := make([]storage.DataType, 0, len(rg.types)-1)
	types = append(types, rg.types[:removed]...)
	types = append(types, rg.types[removed+1:]...)
	out := NewRowGroupCollection(types)
	out.groupCapacity = rg.groupCapacity
	out.vectorCount = rg.vectorCount
	si := 0
	for i, s := range rg.stats {
		if i == removed {
			continue
		}
		out.stats[si] = s.Copy()
		si++
	}

	for _, g := range rg.groups {
		cols := make([]*storage.Vector, 0, len(g.columns)-1)
		cols = append(cols, g.columns[:removed]...)
		cols = append(cols, g.columns[removed+1:]...)
		out.groups = append(out.groups, &rowGroup{
			start:     g.start,
			count:     g.count,
			columns:   cols,
			insertTxn: g.insertTxn,
			insertSeq: g.insertSeq,
			deleteTxn: g.deleteTxn,
		})
	}
	out.totalRows.Store(rg.totalRows.Load())
	return out
}

// AlterType produces a new collection with the given physical column
// rewritten through the cast expression. The expression's column references
// index into the boundColumns projection.
func (rg *RowGroupCollection) AlterType(changed int, targetType storage.DataType,
	boundColumns []int, castExpr storage.Expression) (*RowGroupCollection, error) {
	rg.mu.RLock()
	defer rg.mu.RUnlock()

	types := append([]storage.DataType(nil), rg.types...)
	types[changed] = targetType
	out := NewRowGroupCollection(types)
	out.groupCapacity = rg.groupCapacity
	out.vectorCount = rg.vectorCount
	for i, s := range rg.stats {
		if i == changed {
			continue
		}
		out.stats[i] = s.Copy()
	}

	for _, g := range rg.groups {
		boundTypes := make([]storage.DataType, len(boundColumns))
		for i, b := range boundColumns {
			boundTypes[i] = rg.types[b]
		}
		chunk := storage.NewEmptyChunk(boundTypes)
		for i, b := range boundColumns {
			chunk.ReferenceColumn(i, g.columns[b])
		}
		chunk.SetCardinality(g.count)
		vec, err := castExpr.Eval(chunk)
		if err != nil {
			return nil, err
		}
		rewritten := storage.NewVector(targetType, g.count)
		for i := 0; i < g.count; i++ {
			rewritten.Append(vec.Get(i))
			out.stats[changed].Update(vec.Get(i))
		}
		cols := append([]*storage.Vector(nil), g.columns...)
		cols[changed] = rewritten
		out.groups = append(out.groups, &rowGroup{
			start:     g.start,
			count:     g.count,
			columns:   cols,
			insertTxn: g.insertTxn,
			insertSeq: g.insertSeq,
			deleteTxn: g.deleteTxn,
		})
	}
	out.totalRows.Store(rg.totalRows.Load())
	return out, nil
}

// CopyStats returns a snapshot of one column's statistics
func (rg *RowGroupCollection) CopyStats(col int) *ColumnStatistics {
	rg.mu.RLock()
	defer rg.mu.RUnlock()
	return rg.stats[col].Copy()
}

// SetStatistics lets the caller mutate one column's statistics in place
func (rg *RowGroupCollection) SetStatistics(col int, set func(*ColumnStatistics)) {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	set(rg.stats[col])
}

// Checkpoint writes every row group's payload through the writer
func (rg *RowGroupCollection) Checkpoint(writer TableDataWriter) {
	rg.mu.RLock()
	defer rg.mu.RUnlock()
	for _, g := range rg.groups {
		writer.WriteRowGroup(RowGroupInfo{
			Start:       g.start,
			Count:       int64(g.count),
			ColumnCount: len(g.columns),
		})
	}
}

// CommitDropColumn marks one column's storage for reclamation
func (rg *RowGroupCollection) CommitDropColumn(col int) {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	rg.stats[col] = NewColumnStatistics(rg.types[col])
}

// CommitDropTable marks the whole collection for reclamation
func (rg *RowGroupCollection) CommitDropTable() {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	rg.dropped = true
}

// IsDropped reports whether CommitDropTable ran
func (rg *RowGroupCollection) IsDropped() bool {
	rg.mu.RLock()
	defer rg.mu.RUnlock()
	return rg.dropped
}

// RowGroupInfo describes one row group for introspection and checkpointing
type RowGroupInfo struct {
	Start       int64
	Count       int64
	ColumnCount int
}

// GetStorageInfo lists the collection's row groups
func (rg *RowGroupCollection) GetStorageInfo() []RowGroupInfo {
	rg.mu.RLock()
	defer rg.mu.RUnlock()
	out := make([]RowGroupInfo, 0, len(rg.groups))
	for _, g := range rg.groups {
		out = append(out, RowGroupInfo{Start: g.start, Count: int64(g.count), ColumnCount: len(g.columns)})
	}
	return out
}

// Verify checks row-group bookkeeping invariants
func (rg *RowGroupCollection) Verify() error {
	rg.mu.RLock()
	defer rg.mu.RUnlock()
	var expected int64
	for gi, g := range rg.groups {
		if g.start != expected {
			return storage.NewInternalError("row group %d starts at %d, expected %d", gi, g.start, expected)
		}
		for ci, col := range g.columns {
			if col.Size() != g.count {
				return storage.NewInternalError("row group %d column %d holds %d values for %d rows", gi, ci, col.Size(), g.count)
			}
		}
		expected += int64(g.count)
	}
	if expected != rg.totalRows.Load() {
		return storage.NewInternalError("row groups hold %d rows, collection reports %d", expected, rg.totalRows.Load())
	}
	return nil
}

// PersistentTableData is the persisted form a fresh table can be opened from
type PersistentTableData struct {
	RowGroups [][]storage.Row
	CommitSeq int64
}
