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
	"sort"

	"github.com/pidb/duckdb/internal/storage"
)

func verifyNotNullConstraint(table *TableEntry, vec *storage.Vector, count int, columnName string) error {
	if !vec.HasNull(count) {
		return nil
	}
	return storage.NewNotNullConstraintError(table.TableName, columnName)
}

// verifyGeneratedExpression moves generated-column failures from SELECT time
// to INSERT time: the bound expression must evaluate cleanly over the chunk.
// Internal errors indicate bugs and propagate unwrapped.
func verifyGeneratedExpression(table *TableEntry, chunk *storage.DataChunk, col *storage.ColumnDefinition) error {
	_, err := col.Generated.Eval(chunk)
	if err == nil {
		return nil
	}
	if storage.IsInternalError(err) {
		return err
	}
	return storage.NewGeneratedColumnError(col.Name, col.Type, col.Generated.String(), err)
}

func verifyCheckConstraint(table *TableEntry, expr storage.Expression, chunk *storage.DataChunk) error {
	result, err := expr.Eval(chunk)
	if err != nil {
		return storage.NewCheckConstraintEvalError(table.TableName, err)
	}
	for i := 0; i < chunk.Size(); i++ {
		v := result.Get(i)
		if storage.IsNullValue(v) {
			continue
		}
		n, ok := v.AsInt64()
		if !ok {
			return storage.NewInternalError("CHECK expression %q did not yield an integer", expr.String())
		}
		if n == 0 {
			return storage.NewCheckConstraintError(table.TableName)
		}
	}
	return nil
}

// VerifyAppendConstraints checks a chunk about to be appended: generated
// columns, NOT NULL, CHECK, UNIQUE and the referencing side of foreign keys,
// in that order. A conflict manager opts into ON CONFLICT semantics: unique
// indexes matching the conflict target are scanned, all others still fail hard.
func (dt *DataTable) VerifyAppendConstraints(table *TableEntry, txn *Transaction,
	chunk *storage.DataChunk, conflicts *storage.ConflictManager) error {
	if table.HasGeneratedColumns() {
		columns := table.Columns()
		for i := range columns {
			if !columns[i].IsGenerated() {
				continue
			}
			if err := verifyGeneratedExpression(table, chunk, &columns[i]); err != nil {
				return err
			}
		}
	}
	constraints := append([]storage.Constraint(nil), table.Constraints()...)
	sort.SliceStable(constraints, func(i, j int) bool {
		return constraints[i].ConstraintType() < constraints[j].ConstraintType()
	})
	for _, constraint := range constraints {
		switch c := constraint.(type) {
		case *storage.NotNullConstraint:
			columnName := table.Columns()[c.ColumnIndex].Name
			if err := verifyNotNullConstraint(table, chunk.Column(c.StorageIndex), chunk.Size(), columnName); err != nil {
				return err
			}
		case *storage.CheckConstraint:
			if err := verifyCheckConstraint(table, c.Expression, chunk); err != nil {
				return err
			}
		case *storage.UniqueConstraint:
			if err := dt.verifyUniqueIndexes(chunk, conflicts); err != nil {
				return err
			}
		case *storage.ForeignKeyConstraint:
			if c.Type == storage.ForeignKeyForeignTable || c.Type == storage.ForeignKeySelfReference {
				if err := dt.VerifyForeignKeyConstraint(c, txn, chunk, storage.VerifyAppendFK); err != nil {
					return err
				}
			}
		default:
			return storage.NewNotImplementedError("constraint type not implemented")
		}
	}
	return nil
}

// verifyUniqueIndexes probes every unique index for the chunk's keys. With a
// conflict manager the probe runs in two passes: scan mode over the indexes
// matching the conflict target, then throw mode over the rest.
func (dt *DataTable) verifyUniqueIndexes(chunk *storage.DataChunk, conflicts *storage.ConflictManager) error {
	var err error
	if conflicts == nil {
		dt.info.indexes.Scan(func(index storage.Index) bool {
			if !index.IsUnique() {
				return false
			}
			if e := index.VerifyAppend(chunk, nil); e != nil {
				err = e
				return true
			}
			return false
		})
		return err
	}

	info := conflicts.ConflictInfo()
	conflicts.SetMode(storage.ConflictScan)
	dt.info.indexes.Scan(func(index storage.Index) bool {
		if !index.IsUnique() || !info.TargetMatches(index) {
			return false
		}
		if e := index.VerifyAppend(chunk, conflicts); e != nil {
			err = e
			return true
		}
		return false
	})
	if err != nil {
		return err
	}

	conflicts.SetMode(storage.ConflictThrow)
	dt.info.indexes.Scan(func(index storage.Index) bool {
		if !index.IsUnique() {
			return false
		}
		if e := index.VerifyAppend(chunk, conflicts); e != nil {
			err = e
			return true
		}
		return false
	})
	return err
}

// VerifyDeleteConstraints checks rows about to be deleted: only the
// referenced side of foreign keys participates, probing for inbound
// references that would be orphaned
func (dt *DataTable) VerifyDeleteConstraints(table *TableEntry, txn *Transaction, chunk *storage.DataChunk) error {
	for _, constraint := range table.Constraints() {
		switch c := constraint.(type) {
		case *storage.NotNullConstraint, *storage.CheckConstraint, *storage.UniqueConstraint:
		case *storage.ForeignKeyConstraint:
			if c.Type == storage.ForeignKeyPrimaryTable || c.Type == storage.ForeignKeySelfReference {
				if err := dt.VerifyForeignKeyConstraint(c, txn, chunk, storage.VerifyDeleteFK); err != nil {
					return err
				}
			}
		default:
			return storage.NewNotImplementedError("constraint type not implemented")
		}
	}
	return nil
}

// createMockChunk lays the updated columns over the table's full physical
// layout so constraint expressions can address columns by their ordinary
// positions. Returns false when none of the desired columns is updated.
func createMockChunk(table *TableEntry, columnIDs []int, desired []int,
	chunk *storage.DataChunk) (*storage.DataChunk, bool, error) {
	found := 0
	for _, want := range desired {
		for _, have := range columnIDs {
			if want == have {
				found++
				break
			}
		}
	}
	if found == 0 {
		return nil, false, nil
	}
	if found != len(desired) {
		// the binder adds every referenced column to the update chunk
		return nil, false, storage.NewInternalError(
			"not all columns required for the CHECK constraint are present in the updated chunk")
	}
	mock := storage.NewEmptyChunk(table.PhysicalTypes())
	for i, col := range columnIDs {
		mock.ReferenceColumn(col, chunk.Column(i))
	}
	mock.SetCardinality(chunk.Size())
	return mock, true, nil
}

// VerifyUpdateConstraints checks an update chunk restricted to the updated
// columns: NOT NULL on updated columns and CHECK constraints touching them.
// UNIQUE and FOREIGN KEY are not verified here; such updates must have been
// rewritten into delete plus insert, which IndexIsUpdated enforces.
func (dt *DataTable) VerifyUpdateConstraints(table *TableEntry, chunk *storage.DataChunk, columnIDs []int) error {
	for _, constraint := range table.Constraints() {
		switch c := constraint.(type) {
		case *storage.NotNullConstraint:
			for pos, updated := range columnIDs {
				if updated == c.StorageIndex {
					columnName := table.Columns()[c.ColumnIndex].Name
					if err := verifyNotNullConstraint(table, chunk.Column(pos), chunk.Size(), columnName); err != nil {
						return err
					}
					break
				}
			}
		case *storage.CheckConstraint:
			mock, run, err := createMockChunk(table, columnIDs, c.BoundColumns, chunk)
			if err != nil {
				return err
			}
			if run {
				if err := verifyCheckConstraint(table, c.Expression, mock); err != nil {
					return err
				}
			}
		case *storage.UniqueConstraint, *storage.ForeignKeyConstraint:
		default:
			return storage.NewNotImplementedError("constraint type not implemented")
		}
	}

	if updated := dt.indexIsUpdated(columnIDs); updated != "" {
		return storage.NewInternalError(
			"update touches column of index %q; it must be rewritten as delete and insert", updated)
	}
	return nil
}

// indexIsUpdated returns the name of the first index covering any of the
// updated columns, empty when none does
func (dt *DataTable) indexIsUpdated(columnIDs []int) string {
	name := ""
	dt.info.indexes.Scan(func(index storage.Index) bool {
		for _, indexColumn := range index.ColumnIDs() {
			for _, updated := range columnIDs {
				if indexColumn == updated {
					name = index.Name()
					return true
				}
			}
		}
		return false
	})
	return name
}

func isForeignKeyConstraintError(isAppend bool, inputCount int, matches *storage.ManagedSelection) bool {
	if isAppend {
		// every input key must find a match
		return matches.Count() != inputCount
	}
	// no input key may find a match
	return matches.Count() != 0
}

// firstMissingMatch returns the first input position absent from the
// ordered match set
func firstMissingMatch(inputCount int, matches *storage.ManagedSelection) int {
	matchIdx := 0
	for i := 0; i < inputCount; i++ {
		if matches.IndexMapsToLocation(matchIdx, i) {
			matchIdx++
			continue
		}
		return i
	}
	return storage.InvalidIndex
}

// locateErrorIndex finds the first offending input position: the first
// unexpected match for a delete, the first missing match for an append
func locateErrorIndex(isAppend bool, inputCount int, matches *storage.ManagedSelection) int {
	if !isAppend {
		return matches.Get(0)
	}
	return firstMissingMatch(inputCount, matches)
}

func throwForeignKeyError(failedIndex int, verifyType storage.VerifyExistenceType,
	index storage.Index, chunk *storage.DataChunk) error {
	if index == nil {
		return storage.NewInternalError("no index backs the violated foreign key")
	}
	if failedIndex == storage.InvalidIndex {
		return storage.NewInternalError("foreign key violation without an offending row")
	}
	keyName := index.GenerateErrorKeyName(chunk, failedIndex)
	return storage.NewConstraintError("%s", index.ConstraintErrorMessage(verifyType, keyName))
}

// VerifyForeignKeyConstraint probes the referenced table for the chunk's key
// columns. An append succeeds for a row when either the committed index or
// the current transaction's local index of the referenced table holds the
// key; a delete succeeds when neither does. Only the current transaction's
// local store is consulted.
func (dt *DataTable) VerifyForeignKeyConstraint(fk *storage.ForeignKeyConstraint, txn *Transaction,
	chunk *storage.DataChunk, verifyType storage.VerifyExistenceType) error {
	isAppend := verifyType == storage.VerifyAppendFK
	srcKeys, dstKeys := fk.FKKeys, fk.PKKeys
	if !isAppend {
		srcKeys, dstKeys = fk.PKKeys, fk.FKKeys
	}

	entry, ok := txn.catalog.GetEntry(fk.SchemaName, fk.TableName)
	if !ok {
		return storage.NewInternalError("can't find table %q in foreign key constraint", fk.TableName)
	}
	dstTable := entry.Storage()

	// alias the source key columns into the referenced table's layout
	dstChunk := storage.NewEmptyChunk(entry.PhysicalTypes())
	for i := range srcKeys {
		dstChunk.ReferenceColumn(dstKeys[i], chunk.Column(srcKeys[i]))
	}
	dstChunk.SetCardinality(chunk.Size())

	count := dstChunk.Size()
	if count <= 0 {
		return nil
	}

	regularConflicts := storage.NewConflictManager(verifyType, count, storage.NewConflictInfo())
	transactionConflicts := storage.NewConflictManager(verifyType, count, storage.NewConflictInfo())

	if err := dstTable.info.indexes.VerifyForeignKey(dstKeys, dstChunk, regularConflicts); err != nil {
		return err
	}
	regularConflicts.Finalize()
	regularMatches := regularConflicts.Conflicts()
	regularError := isForeignKeyConstraintError(isAppend, count, regularMatches)

	transactionCheck := txn.local.Find(dstTable)
	transactionError := false
	var transactionMatches *storage.ManagedSelection
	if transactionCheck {
		localIndexes := txn.local.GetIndexes(dstTable)
		if err := localIndexes.VerifyForeignKey(dstKeys, dstChunk, transactionConflicts); err != nil {
			return err
		}
		transactionConflicts.Finalize()
		transactionMatches = transactionConflicts.Conflicts()
		transactionError = isForeignKeyConstraintError(isAppend, count, transactionMatches)
	}

	if !transactionError && !regularError {
		return nil
	}

	fkType := storage.ForeignKeyForeignTable
	if isAppend {
		fkType = storage.ForeignKeyPrimaryTable
	}
	index := dstTable.info.indexes.FindForeignKeyIndex(dstKeys, fkType)
	var transactionIndex storage.Index
	if transactionCheck {
		transactionIndex = txn.local.GetIndexes(dstTable).FindForeignKeyIndex(dstKeys, fkType)
	}

	if !transactionCheck {
		// only the committed store was probed
		failedIndex := locateErrorIndex(isAppend, count, regularMatches)
		return throwForeignKeyError(failedIndex, verifyType, index, dstChunk)
	}

	if transactionError && regularError && isAppend {
		// union semantics: a row fails only when neither store holds its key
		failedIndex := storage.InvalidIndex
		regularIdx, transactionIdx := 0, 0
		for i := 0; i < count; i++ {
			inRegular := regularMatches.IndexMapsToLocation(regularIdx, i)
			if inRegular {
				regularIdx++
			}
			inTransaction := transactionMatches.IndexMapsToLocation(transactionIdx, i)
			if inTransaction {
				transactionIdx++
			}
			if !inRegular && !inTransaction {
				failedIndex = i
				break
			}
		}
		if failedIndex == storage.InvalidIndex {
			// every key was present in one of the stores
			return nil
		}
		return throwForeignKeyError(failedIndex, verifyType, index, dstChunk)
	}

	if !isAppend {
		// a delete fails on any match in either store
		if regularError {
			failedIndex := locateErrorIndex(false, count, regularMatches)
			return throwForeignKeyError(failedIndex, verifyType, index, dstChunk)
		}
		failedIndex := locateErrorIndex(false, count, transactionMatches)
		return throwForeignKeyError(failedIndex, verifyType, transactionIndex, dstChunk)
	}

	// append satisfied by whichever store matched every key
	return nil
}
