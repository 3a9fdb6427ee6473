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
	"github.com/pidb/duckdb/internal/storage"
)

func hasInboundForeignKey(table *TableEntry) bool {
	for _, constraint := range table.Constraints() {
		if fk, ok := constraint.(*storage.ForeignKeyConstraint); ok {
			if fk.Type == storage.ForeignKeyPrimaryTable || fk.Type == storage.ForeignKeySelfReference {
				return true
			}
		}
	}
	return false
}

// Delete removes the given rows, routing by the row-id space: local ids go
// to the transaction's store, committed ids to the row groups. When inbound
// foreign keys exist the rows are fetched first so the references can be
// verified. Returns the number of rows actually deleted.
func (dt *DataTable) Delete(table *TableEntry, txn *Transaction, rowIDs []int64, count int) (int, error) {
	if count == 0 {
		return 0, nil
	}
	firstID := rowIDs[0]
	local := storage.IsLocalRowID(firstID)

	if hasInboundForeignKey(table) {
		verifyChunk := storage.NewDataChunk(dt.rowGroups.Types())
		if local {
			if err := txn.local.FetchChunk(dt, rowIDs, count, verifyChunk); err != nil {
				return 0, err
			}
			verifyChunk.SetCardinality(count)
		} else {
			columnIDs := make([]int, len(dt.rowGroups.Types()))
			for i := range columnIDs {
				columnIDs[i] = i
			}
			fetchState := &ColumnFetchState{}
			dt.Fetch(txn, verifyChunk, columnIDs, rowIDs, count, fetchState)
		}
		if err := dt.VerifyDeleteConstraints(table, txn, verifyChunk); err != nil {
			return 0, err
		}
	}

	if local {
		return txn.local.Delete(dt, rowIDs, count), nil
	}
	return dt.rowGroups.Delete(txn, dt, rowIDs, count), nil
}

// Update overwrites the given physical columns of the given rows, routing by
// the row-id space. Updates touching indexed columns are rejected; the
// planner rewrites those into delete plus insert.
func (dt *DataTable) Update(table *TableEntry, txn *Transaction, rowIDs []int64,
	columnIDs []int, updates *storage.DataChunk) error {
	if len(columnIDs) != updates.ColumnCount() {
		return storage.NewInternalError("update chunk has %d columns for %d column ids",
			updates.ColumnCount(), len(columnIDs))
	}
	count := updates.Size()
	if count == 0 {
		return nil
	}
	if err := updates.Verify(); err != nil {
		return err
	}
	if !dt.isRoot.Load() {
		return storage.NewTransactionConflictError("cannot update a table that has been altered!")
	}

	if err := dt.VerifyUpdateConstraints(table, updates, columnIDs); err != nil {
		return err
	}

	if storage.IsLocalRowID(rowIDs[0]) {
		txn.local.Update(dt, rowIDs, columnIDs, updates)
		return nil
	}
	dt.rowGroups.Update(txn, rowIDs, columnIDs, updates)
	return nil
}

// UpdateColumn overwrites a single column addressed by a column path,
// bypassing constraint verification; used internally for committed rows only
func (dt *DataTable) UpdateColumn(txn *Transaction, rowIDs []int64,
	columnPath []int, updates *storage.DataChunk) error {
	if updates.ColumnCount() != 1 {
		return storage.NewInternalError("UpdateColumn expects a single update column, got %d", updates.ColumnCount())
	}
	if updates.Size() == 0 {
		return nil
	}
	if !dt.isRoot.Load() {
		return storage.NewTransactionConflictError("cannot update a table that has been altered!")
	}
	dt.rowGroups.UpdateColumn(txn, rowIDs, columnPath, updates)
	return nil
}
