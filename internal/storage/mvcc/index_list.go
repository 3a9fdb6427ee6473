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

// TableIndexList is the lock-protected set of indexes attached to a table.
// It is shared across table versions through DataTableInfo.
type TableIndexList struct {
	mu      sync.RWMutex
	indexes []storage.Index
}

// NewTableIndexList creates an empty list
func NewTableIndexList() *TableIndexList {
	return &TableIndexList{}
}

// Empty reports whether the list holds no indexes
func (l *TableIndexList) Empty() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.indexes) == 0
}

// Count returns the number of indexes
func (l *TableIndexList) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.indexes)
}

// AddIndex appends an index to the list
func (l *TableIndexList) AddIndex(index storage.Index) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.indexes = append(l.indexes, index)
}

// Scan iterates the indexes under the list lock; fn returning true
// short-circuits the iteration
func (l *TableIndexList) Scan(fn func(index storage.Index) bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, idx := range l.indexes {
		if fn(idx) {
			return
		}
	}
}

// IsForeignKeyIndex reports whether an index serves the given foreign-key
// role: the flag must match the role's side and the index columns must equal
// the supplied key set
func IsForeignKeyIndex(fkKeys []int, index storage.Index, fkType storage.ForeignKeyType) bool {
	if fkType == storage.ForeignKeyPrimaryTable {
		if !index.IsUnique() {
			return false
		}
	} else if !index.IsForeign() {
		return false
	}
	ids := index.ColumnIDs()
	if len(fkKeys) != len(ids) {
		return false
	}
	for _, key := range fkKeys {
		found := false
		for _, id := range ids {
			if key == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// FindForeignKeyIndex locates the index serving the given foreign-key role
func (l *TableIndexList) FindForeignKeyIndex(fkKeys []int, fkType storage.ForeignKeyType) storage.Index {
	var found storage.Index
	l.Scan(func(index storage.Index) bool {
		if IsForeignKeyIndex(fkKeys, index, fkType) {
			found = index
			return true
		}
		return false
	})
	return found
}

// VerifyForeignKey probes the foreign-key index matching the conflict
// manager's direction, recording matches into the manager
func (l *TableIndexList) VerifyForeignKey(fkKeys []int, chunk *storage.DataChunk, conflicts *storage.ConflictManager) error {
	fkType := storage.ForeignKeyForeignTable
	if conflicts.VerifyType() == storage.VerifyAppendFK {
		fkType = storage.ForeignKeyPrimaryTable
	}
	index := l.FindForeignKeyIndex(fkKeys, fkType)
	if index == nil {
		return storage.NewInternalError("no index backs the foreign key columns %v", fkKeys)
	}
	return index.VerifyForeignKey(fkKeys, chunk, conflicts)
}
