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

	"github.com/pidb/duckdb/internal/storage"
)

// TableDataWriter is the sink a table checkpoint writes through: row-group
// payloads first, then column statistics, the table pointer and index
// metadata in FinalizeTable
type TableDataWriter interface {
	WriteRowGroup(info RowGroupInfo)
	FinalizeTable(stats []*ColumnStatistics, info *DataTableInfo, totalRows int64)
}

// MemoryTableDataWriter records a checkpoint in memory, for tests and for
// engines that persist elsewhere
type MemoryTableDataWriter struct {
	mu sync.Mutex

	RowGroupsWritten []RowGroupInfo
	Stats            []*ColumnStatistics
	SchemaName       string
	TableName        string
	TotalRows        int64
	IndexNames       []string
	Finalized        bool
}

// NewMemoryTableDataWriter creates an empty in-memory checkpoint sink
func NewMemoryTableDataWriter() *MemoryTableDataWriter {
	return &MemoryTableDataWriter{}
}

// WriteRowGroup records one row group pointer
func (w *MemoryTableDataWriter) WriteRowGroup(info RowGroupInfo) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.RowGroupsWritten = append(w.RowGroupsWritten, info)
}

// FinalizeTable records column stats, the table pointer and index metadata
func (w *MemoryTableDataWriter) FinalizeTable(stats []*ColumnStatistics, info *DataTableInfo, totalRows int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Stats = stats
	w.SchemaName = info.SchemaName()
	w.TableName = info.TableName()
	w.TotalRows = totalRows
	info.indexes.Scan(func(index storage.Index) bool {
		w.IndexNames = append(w.IndexNames, index.Name())
		return false
	})
	w.Finalized = true
}

// Checkpoint writes the table through the writer: per-column statistics are
// snapshotted, the row groups write their payload, then the writer finalizes
// with stats, table pointer and index data
func (dt *DataTable) Checkpoint(writer TableDataWriter) {
	stats := make([]*ColumnStatistics, 0, len(dt.rowGroups.Types()))
	for i := range dt.rowGroups.Types() {
		stats = append(stats, dt.rowGroups.CopyStats(i))
	}
	dt.rowGroups.Checkpoint(writer)
	writer.FinalizeTable(stats, dt.info, dt.GetTotalRows())
}

// GetStatistics returns a snapshot of one physical column's statistics; the
// row-id pseudo column has none
func (dt *DataTable) GetStatistics(columnID int) *ColumnStatistics {
	if columnID == storage.RowIDColumnID {
		return nil
	}
	return dt.rowGroups.CopyStats(columnID)
}

// SetStatistics mutates one physical column's statistics in place
func (dt *DataTable) SetStatistics(columnID int, set func(*ColumnStatistics)) {
	dt.rowGroups.SetStatistics(columnID, set)
}

// CommitDropColumn marks a dropped column's storage for reclamation
func (dt *DataTable) CommitDropColumn(columnID int) {
	dt.rowGroups.CommitDropColumn(columnID)
}

// CommitDropTable marks the whole table's storage for reclamation
func (dt *DataTable) CommitDropTable() {
	dt.rowGroups.CommitDropTable()
}

// GetStorageInfo lists the table's row groups for introspection
func (dt *DataTable) GetStorageInfo() []RowGroupInfo {
	return dt.rowGroups.GetStorageInfo()
}
