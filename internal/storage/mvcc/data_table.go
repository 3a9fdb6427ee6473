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

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/pidb/duckdb/internal/logger"
	"github.com/pidb/duckdb/internal/storage"
)

// TableIOManager is the opaque I/O handle a table carries for its block
// storage. The in-memory engine only exposes an identifier.
type TableIOManager interface {
	Identifier() string
}

type memoryIOManager struct{ id string }

func (m *memoryIOManager) Identifier() string { return m.id }

// NewMemoryIOManager returns an in-memory table I/O handle
func NewMemoryIOManager(id string) TableIOManager { return &memoryIOManager{id: id} }

// DataTableInfo is the version-independent state of a table: catalog
// coordinates, the I/O handle, the index list and the cardinality counter.
// It is shared by every DataTable version of the table and outlives schema
// changes.
type DataTableInfo struct {
	schemaName string
	tableName  string
	ioManager  TableIOManager

	indexes     *TableIndexList
	cardinality atomic.Uint64
}

// NewDataTableInfo creates the shared info of a table
func NewDataTableInfo(ioManager TableIOManager, schemaName, tableName string) *DataTableInfo {
	return &DataTableInfo{
		schemaName: schemaName,
		tableName:  tableName,
		ioManager:  ioManager,
		indexes:    NewTableIndexList(),
	}
}

// SchemaName returns the schema the table lives in
func (info *DataTableInfo) SchemaName() string { return info.schemaName }

// TableName returns the table name
func (info *DataTableInfo) TableName() string { return info.tableName }

// Indexes returns the shared index list
func (info *DataTableInfo) Indexes() *TableIndexList { return info.indexes }

// Cardinality returns the committed row count estimate
func (info *DataTableInfo) Cardinality() uint64 { return info.cardinality.Load() }

// DataTable owns the physical representation of one table version. Writes
// go through the transaction-local store until commit; bulk appends and
// schema changes serialize on the append lock. A version stops accepting
// writes the moment a successor is constructed from it.
type DataTable struct {
	info    *DataTableInfo
	columns []storage.ColumnDefinition

	rowGroups *RowGroupCollection

	appendLock sync.Mutex
	isRoot     atomic.Bool

	log zerolog.Logger
}

// NewDataTable creates a table version from persistent data, or empty when
// data is nil
func NewDataTable(ioManager TableIOManager, schemaName, tableName string,
	columns []storage.ColumnDefinition, data *PersistentTableData) (*DataTable, error) {
	dt := &DataTable{
		info:    NewDataTableInfo(ioManager, schemaName, tableName),
		columns: storage.CopyColumns(columns),
		log:     logger.For("datatable"),
	}
	storage.RenumberColumns(dt.columns)
	dt.rowGroups = NewRowGroupCollection(storage.PhysicalTypes(dt.columns))
	if data != nil && len(data.RowGroups) > 0 {
		dt.rowGroups.Initialize(data)
		dt.info.cardinality.Store(uint64(dt.rowGroups.GetTotalRows()))
	} else {
		dt.rowGroups.InitializeEmpty()
	}
	if err := dt.rowGroups.Verify(); err != nil {
		return nil, err
	}
	dt.isRoot.Store(true)
	return dt, nil
}

// Info returns the shared table info
func (dt *DataTable) Info() *DataTableInfo { return dt.info }

// Columns returns the logical column definitions of this version
func (dt *DataTable) Columns() []storage.ColumnDefinition { return dt.columns }

// IsRoot reports whether this is the current writable version
func (dt *DataTable) IsRoot() bool { return dt.isRoot.Load() }

// RowGroups exposes the committed storage, used by introspection and tests
func (dt *DataTable) RowGroups() *RowGroupCollection { return dt.rowGroups }

// GetTypes returns the logical column types
func (dt *DataTable) GetTypes() []storage.DataType {
	types := make([]storage.DataType, len(dt.columns))
	for i := range dt.columns {
		types[i] = dt.columns[i].Type
	}
	return types
}

// GetTotalRows returns the number of physically present committed-store rows
func (dt *DataTable) GetTotalRows() int64 { return dt.rowGroups.GetTotalRows() }

// Cardinality returns the committed row count estimate
func (dt *DataTable) Cardinality() uint64 { return dt.info.cardinality.Load() }

func (dt *DataTable) storageIndexOf(logicalIdx int) int {
	return dt.columns[logicalIdx].StorageID
}

// demote fences this version out: every later write attempt fails with a
// transaction conflict. Called under dt.appendLock by successor constructors.
func (dt *DataTable) demote() {
	dt.isRoot.Store(false)
}

// NewDataTableWithAddedColumn constructs the successor version holding one
// extra column filled from the default expression. The parent is demoted.
func NewDataTableWithAddedColumn(txn *Transaction, parent *DataTable,
	newColumn storage.ColumnDefinition, defaultExpr storage.Expression) (*DataTable, error) {
	parent.appendLock.Lock()
	defer parent.appendLock.Unlock()

	dt := &DataTable{
		info:    parent.info,
		columns: append(storage.CopyColumns(parent.columns), newColumn),
		log:     parent.log,
	}
	storage.RenumberColumns(dt.columns)

	rowGroups, err := parent.rowGroups.AddColumn(newColumn, defaultExpr)
	if err != nil {
		return nil, err
	}
	dt.rowGroups = rowGroups
	dt.isRoot.Store(true)

	if err := txn.local.AddColumn(parent, dt, newColumn, defaultExpr); err != nil {
		return nil, err
	}

	parent.demote()
	dt.log.Info().Str("table", dt.info.tableName).Str("column", newColumn.Name).Msg("added column")
	return dt, nil
}

// NewDataTableWithRemovedColumn constructs the successor version without the
// given logical column. The removal is rejected while any index depends on
// the column or on a column after it.
func NewDataTableWithRemovedColumn(txn *Transaction, parent *DataTable, removedColumn int) (*DataTable, error) {
	parent.appendLock.Lock()
	defer parent.appendLock.Unlock()

	var indexErr error
	parent.info.indexes.Scan(func(index storage.Index) bool {
		for _, columnID := range index.ColumnIDs() {
			if columnID == parent.storageIndexOf(removedColumn) {
				indexErr = storage.NewCatalogError("Cannot drop this column: an index depends on it!")
				return true
			} else if columnID > parent.storageIndexOf(removedColumn) {
				indexErr = storage.NewCatalogError("Cannot drop this column: an index depends on a column after it!")
				return true
			}
		}
		return false
	})
	if indexErr != nil {
		return nil, indexErr
	}

	removedStorageIdx := parent.storageIndexOf(removedColumn)
	columns := make([]storage.ColumnDefinition, 0, len(parent.columns)-1)
	columns = append(columns, parent.columns[:removedColumn]...)
	columns = append(columns, parent.columns[removedColumn+1:]...)

	dt := &DataTable{
		info:    parent.info,
		columns: columns,
		log:     parent.log,
	}
	storage.RenumberColumns(dt.columns)
	dt.rowGroups = parent.rowGroups.RemoveColumn(removedStorageIdx)
	dt.isRoot.Store(true)

	txn.local.DropColumn(parent, dt, removedStorageIdx)

	parent.demote()
	dt.log.Info().Str("table", dt.info.tableName).Int("column", removedColumn).Msg("removed column")
	return dt, nil
}

// NewDataTableWithChangedType constructs the successor version with the
// given logical column rewritten to the target type through the cast
// expression. Rejected while an index depends on the column.
func NewDataTableWithChangedType(txn *Transaction, parent *DataTable, changedColumn int,
	targetType storage.DataType, boundColumns []int, castExpr storage.Expression) (*DataTable, error) {
	parent.appendLock.Lock()
	defer parent.appendLock.Unlock()

	changedStorageIdx := parent.storageIndexOf(changedColumn)
	var indexErr error
	parent.info.indexes.Scan(func(index storage.Index) bool {
		for _, columnID := range index.ColumnIDs() {
			if columnID == changedStorageIdx {
				indexErr = storage.NewCatalogError("Cannot change the type of this column: an index depends on it!")
				return true
			}
		}
		return false
	})
	if indexErr != nil {
		return nil, indexErr
	}

	columns := storage.CopyColumns(parent.columns)
	columns[changedColumn].Type = targetType

	dt := &DataTable{
		info:    parent.info,
		columns: columns,
		log:     parent.log,
	}
	rowGroups, err := parent.rowGroups.AlterType(changedStorageIdx, targetType, boundColumns, castExpr)
	if err != nil {
		return nil, err
	}
	dt.rowGroups = rowGroups
	dt.isRoot.Store(true)

	if err := txn.local.ChangeType(parent, dt, changedStorageIdx, targetType, boundColumns, castExpr); err != nil {
		return nil, err
	}

	parent.demote()
	dt.log.Info().Str("table", dt.info.tableName).Int("column", changedColumn).
		Str("type", targetType.String()).Msg("changed column type")
	return dt, nil
}

// NewDataTableWithConstraint constructs the successor version carrying an
// added constraint, verified against both committed and local rows. The row
// groups are shared with the parent; local data ownership moves over.
func NewDataTableWithConstraint(txn *Transaction, parent *DataTable, constraint storage.Constraint) (*DataTable, error) {
	parent.appendLock.Lock()
	defer parent.appendLock.Unlock()

	dt := &DataTable{
		info:      parent.info,
		columns:   storage.CopyColumns(parent.columns),
		rowGroups: parent.rowGroups,
		log:       parent.log,
	}

	if err := dt.VerifyNewConstraint(txn, parent, constraint); err != nil {
		return nil, err
	}
	dt.isRoot.Store(true)

	txn.local.MoveStorage(parent, dt)

	parent.demote()
	dt.log.Info().Str("table", dt.info.tableName).Msg("added constraint")
	return dt, nil
}

// VerifyNewConstraint checks a constraint being added against the parent's
// committed rows and the transaction's local rows. Only NOT NULL is supported.
func (dt *DataTable) VerifyNewConstraint(txn *Transaction, parent *DataTable, constraint storage.Constraint) error {
	if constraint.ConstraintType() != storage.ConstraintNotNull {
		return storage.NewNotImplementedError("ALTER TABLE with such constraint is not supported yet")
	}
	if err := parent.rowGroups.VerifyNewConstraint(parent.info.tableName, parent.columns, constraint); err != nil {
		return err
	}
	return txn.local.VerifyNewConstraint(parent, constraint)
}
