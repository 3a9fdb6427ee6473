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
	"context"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/pidb/duckdb/internal/config"
	"github.com/pidb/duckdb/internal/storage"
	"github.com/pidb/duckdb/internal/storage/expression"
)

// TableScanType selects the visibility rule of a committed-store scan
type TableScanType int

const (
	// TableScanRegular honors the scanning transaction's snapshot
	TableScanRegular TableScanType = iota
	// TableScanCommittedRows reads the latest physically present rows,
	// bypassing snapshot visibility; used by index builds and segment scans
	TableScanCommittedRows
)

// TableFilter matches one physical column against a constant
type TableFilter struct {
	Column int
	Op     expression.CompareOp
	Value  storage.ColumnValue
}

// Matches applies the filter to one value; NULL never matches
func (f *TableFilter) Matches(v storage.ColumnValue) bool {
	if storage.IsNullValue(v) {
		return false
	}
	cmp, err := v.Compare(f.Value)
	if err != nil {
		return false
	}
	switch f.Op {
	case expression.OpEQ:
		return cmp == 0
	case expression.OpNE:
		return cmp != 0
	case expression.OpLT:
		return cmp < 0
	case expression.OpLE:
		return cmp <= 0
	case expression.OpGT:
		return cmp > 0
	case expression.OpGE:
		return cmp >= 0
	default:
		return false
	}
}

// TableFilterSet is a conjunction of pushed-down column filters
type TableFilterSet struct {
	Filters []TableFilter
}

// RowMatches reports whether a full physical row passes every filter
func (s *TableFilterSet) RowMatches(row storage.Row) bool {
	for i := range s.Filters {
		if !s.Filters[i].Matches(row[s.Filters[i].Column]) {
			return false
		}
	}
	return true
}

// rowGroupScanState walks a row range of the committed store
type rowGroupScanState struct {
	collection *RowGroupCollection
	columnIDs  []int
	filters    *TableFilterSet

	nextRow    int64
	maxRow     int64
	batchIndex int64
}

func (s *rowGroupScanState) alignedStart() int64 {
	return (s.nextRow / storage.VectorSize) * storage.VectorSize
}

func (s *rowGroupScanState) project(g *rowGroup, off int, globalRow int64, result *storage.DataChunk) {
	for ci, col := range s.columnIDs {
		if col == storage.RowIDColumnID {
			result.Column(ci).Append(storage.NewIntegerValue(globalRow))
			continue
		}
		result.Column(ci).Append(g.columns[col].Get(off))
	}
}

func (s *rowGroupScanState) materializeRow(g *rowGroup, off int) storage.Row {
	row := make(storage.Row, len(g.columns))
	for ci, col := range g.columns {
		row[ci] = col.Get(off)
	}
	return row
}

// Scan produces the next batch of rows visible to the transaction,
// returning false when the range is exhausted
func (s *rowGroupScanState) Scan(txn *Transaction, result *storage.DataChunk) bool {
	rg := s.collection
	if rg == nil {
		return false
	}
	rg.mu.RLock()
	defer rg.mu.RUnlock()

	end := rg.totalRows.Load()
	if s.maxRow > 0 && s.maxRow < end {
		end = s.maxRow
	}
	count := 0
	for s.nextRow < end && count < storage.VectorSize {
		row := s.nextRow
		s.nextRow++
		g, off, ok := rg.locate(row)
		if !ok || !rg.rowVisibleLocked(txn, g, off) {
			continue
		}
		if s.filters != nil && !s.filters.RowMatches(s.materializeRow(g, off)) {
			continue
		}
		s.project(g, off, row, result)
		count++
	}
	result.SetCardinality(count)
	return count > 0
}

// ScanCommitted produces the next vector of physically present rows,
// ignoring snapshot visibility
func (s *rowGroupScanState) ScanCommitted(result *storage.DataChunk, scanType TableScanType) bool {
	rg := s.collection
	if rg == nil {
		return false
	}
	rg.mu.RLock()
	defer rg.mu.RUnlock()

	end := rg.totalRows.Load()
	if s.maxRow > 0 {
		alignedMax := ((s.maxRow + storage.VectorSize - 1) / storage.VectorSize) * storage.VectorSize
		if alignedMax < end {
			end = alignedMax
		}
	}
	count := 0
	for s.nextRow < end && count < storage.VectorSize {
		row := s.nextRow
		s.nextRow++
		g, off, ok := rg.locate(row)
		if !ok {
			continue
		}
		s.project(g, off, row, result)
		count++
	}
	result.SetCardinality(count)
	return count > 0
}

// TableScanState carries one scan over a table: the committed-store state
// plus the transaction-local state that takes over when row groups drain
type TableScanState struct {
	tableState rowGroupScanState
	localState LocalScanState

	columnIDs []int
	filters   *TableFilterSet
}

// Initialize binds the projection and optional filter set
func (s *TableScanState) Initialize(columnIDs []int, filters *TableFilterSet) {
	s.columnIDs = columnIDs
	s.filters = filters
}

// GetColumnIDs returns the scan projection
func (s *TableScanState) GetColumnIDs() []int { return s.columnIDs }

// BatchIndex returns the work-unit ordinal of a parallel scan state
func (s *TableScanState) BatchIndex() int64 { return s.tableState.batchIndex }

func (rg *RowGroupCollection) initScanState(s *rowGroupScanState, columnIDs []int, filters *TableFilterSet) {
	s.collection = rg
	s.columnIDs = columnIDs
	s.filters = filters
	s.nextRow = 0
	s.maxRow = 0
}

// InitializeScan starts a committed-store scan over the projection
func (dt *DataTable) InitializeScan(state *TableScanState, columnIDs []int, filters *TableFilterSet) {
	state.Initialize(columnIDs, filters)
	dt.rowGroups.initScanState(&state.tableState, columnIDs, filters)
}

// InitializeScanWithTransaction additionally attaches the transaction's
// local rows, scanned after the committed store drains
func (dt *DataTable) InitializeScanWithTransaction(txn *Transaction, state *TableScanState,
	columnIDs []int, filters *TableFilterSet) {
	dt.InitializeScan(state, columnIDs, filters)
	txn.local.InitializeScan(dt, &state.localState, filters)
}

// InitializeScanWithOffset starts a bounded committed-store scan over
// [startRow, endRow), used by index builds
func (dt *DataTable) InitializeScanWithOffset(state *TableScanState, columnIDs []int, startRow, endRow int64) {
	state.Initialize(columnIDs, nil)
	dt.rowGroups.initScanState(&state.tableState, columnIDs, nil)
	state.tableState.nextRow = (startRow / storage.VectorSize) * storage.VectorSize
	state.tableState.maxRow = endRow
}

// Scan produces the next batch: committed rows until exhausted, then the
// transaction's local rows. Returns false when both are drained.
func (dt *DataTable) Scan(txn *Transaction, result *storage.DataChunk, state *TableScanState) bool {
	if state.tableState.Scan(txn, result) {
		return true
	}
	return txn.local.Scan(&state.localState, state.columnIDs, result)
}

// CreateIndexScan scans committed rows only, bypassing snapshot visibility
func (dt *DataTable) CreateIndexScan(state *TableScanState, result *storage.DataChunk, scanType TableScanType) bool {
	return state.tableState.ScanCommitted(result, scanType)
}

// CreateIndexScanState is a bounded scan holding the append lock so no rows
// arrive while an index is built
type CreateIndexScanState struct {
	TableScanState
	lock TableAppendState
}

// Release drops the append lock held by the index scan
func (s *CreateIndexScanState) Release() { s.lock.Release() }

// InitializeCreateIndexScan grabs the append lock and starts a full
// committed-store scan for building an index
func (dt *DataTable) InitializeCreateIndexScan(state *CreateIndexScanState, columnIDs []int) {
	dt.appendLock.Lock()
	state.lock.table = dt
	state.lock.locked = true
	dt.InitializeScan(&state.TableScanState, columnIDs, nil)
}

// ColumnFetchState carries cached state across point fetches
type ColumnFetchState struct{}

// Fetch materializes the given committed rows into result
func (dt *DataTable) Fetch(txn *Transaction, result *storage.DataChunk, columnIDs []int,
	rowIDs []int64, count int, state *ColumnFetchState) int {
	return dt.rowGroups.Fetch(txn, result, columnIDs, rowIDs, count, state)
}

// scanTypes returns the chunk types for a projection
func (dt *DataTable) scanTypes(columnIDs []int) []storage.DataType {
	physical := dt.rowGroups.Types()
	types := make([]storage.DataType, len(columnIDs))
	for i, col := range columnIDs {
		if col == storage.RowIDColumnID {
			types[i] = storage.INTEGER
			continue
		}
		types[i] = physical[col]
	}
	return types
}

// MaxThreads returns how many parallel scan workers to run: the number of
// scan units (total rows over the unit size, rounded up) plus one.
// The verify-parallelism knob shrinks units to a single vector.
func (dt *DataTable) MaxThreads() int {
	vectorCount := dt.rowGroups.VectorCount()
	if config.Get().VerifyParallelism {
		vectorCount = 1
	}
	unit := int64(storage.VectorSize * vectorCount)
	return int((dt.GetTotalRows()+unit-1)/unit) + 1
}

// ParallelTableScanState hands out disjoint scan units: committed row-group
// ranges first, then the transaction-local units
type ParallelTableScanState struct {
	mu         sync.Mutex
	nextRow    int64
	batchIndex int64
	local      LocalParallelScanState
}

// InitializeParallelScan prepares the shared parallel scan state
func (dt *DataTable) InitializeParallelScan(txn *Transaction, state *ParallelTableScanState) {
	state.nextRow = 0
	state.batchIndex = 0
	txn.local.InitializeParallelScan(dt, &state.local)
}

// NextParallelScan configures scanState with the next unit of work. When the
// committed units are exhausted the current batch index transfers to the
// local scan and local units follow. Returns false only when both are drained.
func (dt *DataTable) NextParallelScan(txn *Transaction, state *ParallelTableScanState, scanState *TableScanState) bool {
	state.mu.Lock()
	defer state.mu.Unlock()

	vectorCount := dt.rowGroups.VectorCount()
	if config.Get().VerifyParallelism {
		vectorCount = 1
	}
	unit := int64(storage.VectorSize * vectorCount)

	total := dt.GetTotalRows()
	if state.nextRow < total {
		dt.rowGroups.initScanState(&scanState.tableState, scanState.columnIDs, scanState.filters)
		scanState.tableState.nextRow = state.nextRow
		scanState.tableState.maxRow = state.nextRow + unit
		if scanState.tableState.maxRow > total {
			scanState.tableState.maxRow = total
		}
		scanState.tableState.batchIndex = state.batchIndex
		state.nextRow = scanState.tableState.maxRow
		state.batchIndex++
		return true
	}

	scanState.tableState.collection = nil
	scanState.tableState.batchIndex = state.batchIndex
	scanState.localState.batchIndex = state.batchIndex
	if txn.local.NextParallelScan(dt, &state.local, &scanState.localState) {
		state.batchIndex++
		return true
	}
	return false
}

// ParallelScanAll drives a parallel scan with a worker pool sized by
// MaxThreads, invoking fn for every produced chunk. fn may run concurrently.
func (dt *DataTable) ParallelScanAll(ctx context.Context, txn *Transaction, columnIDs []int,
	fn func(chunk *storage.DataChunk) error) error {
	state := &ParallelTableScanState{}
	dt.InitializeParallelScan(txn, state)

	types := dt.scanTypes(columnIDs)
	workers := pool.New().WithErrors().WithMaxGoroutines(dt.MaxThreads())
	for i := 0; i < dt.MaxThreads(); i++ {
		workers.Go(func() error {
			scanState := &TableScanState{}
			scanState.Initialize(columnIDs, nil)
			for {
				if err := ctx.Err(); err != nil {
					return err
				}
				if !dt.NextParallelScan(txn, state, scanState) {
					return nil
				}
				for {
					chunk := storage.NewDataChunk(types)
					if !dt.Scan(txn, chunk, scanState) {
						break
					}
					if err := fn(chunk); err != nil {
						return err
					}
				}
			}
		})
	}
	return workers.Wait()
}
