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
	"strings"
	"sync"

	"github.com/pidb/duckdb/internal/storage"
)

// KeyIndex is a hash index over an encoded multi-column key. It backs both
// unique constraints (one row per key) and foreign-key probing (the
// referencing side keeps a multimap). Table indexes and transaction-local
// indexes share this implementation.
type KeyIndex struct {
	name        string
	tableName   string
	columnIDs   []int
	columnNames []string
	unique      bool
	foreign     bool

	mu      sync.RWMutex
	entries map[string][]int64
}

// NewKeyIndex creates an index over the given physical columns
func NewKeyIndex(name, tableName string, columnIDs []int, columnNames []string, unique, foreign bool) *KeyIndex {
	return &KeyIndex{
		name:        name,
		tableName:   tableName,
		columnIDs:   append([]int(nil), columnIDs...),
		columnNames: append([]string(nil), columnNames...),
		unique:      unique,
		foreign:     foreign,
		entries:     make(map[string][]int64),
	}
}

// Name returns the index name
func (idx *KeyIndex) Name() string { return idx.name }

// TableName returns the owning table's name
func (idx *KeyIndex) TableName() string { return idx.tableName }

// ColumnIDs returns the physical columns the index covers
func (idx *KeyIndex) ColumnIDs() []int { return idx.columnIDs }

// IsUnique reports whether the index enforces key uniqueness
func (idx *KeyIndex) IsUnique() bool { return idx.unique }

// IsForeign reports whether the index backs the referencing side of a foreign key
func (idx *KeyIndex) IsForeign() bool { return idx.foreign }

// encodeKey renders the key columns of one chunk row. The second return is
// false when any key column is NULL; NULL keys never participate in probes.
func (idx *KeyIndex) encodeKey(chunk *storage.DataChunk, row int) (string, bool) {
	var b strings.Builder
	for i, col := range idx.columnIDs {
		v := chunk.Value(col, row)
		if storage.IsNullValue(v) {
			return "", false
		}
		if i > 0 {
			b.WriteByte(0)
		}
		b.WriteString(v.Type().String())
		b.WriteByte(':')
		s, _ := v.AsString()
		b.WriteString(s)
	}
	return b.String(), true
}

// Append inserts the chunk's keys under the given row ids. On a unique
// violation nothing is inserted and a constraint error is returned.
func (idx *KeyIndex) Append(chunk *storage.DataChunk, rowIDs []int64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	keys := make([]string, chunk.Size())
	valid := make([]bool, chunk.Size())
	if idx.unique {
		seen := make(map[string]struct{}, chunk.Size())
		for i := 0; i < chunk.Size(); i++ {
			key, ok := idx.encodeKey(chunk, i)
			keys[i], valid[i] = key, ok
			if !ok {
				continue
			}
			if _, dup := seen[key]; dup {
				return storage.NewUniqueConstraintError(idx.name, idx.GenerateErrorKeyName(chunk, i))
			}
			if len(idx.entries[key]) > 0 {
				return storage.NewUniqueConstraintError(idx.name, idx.GenerateErrorKeyName(chunk, i))
			}
			seen[key] = struct{}{}
		}
	} else {
		for i := 0; i < chunk.Size(); i++ {
			keys[i], valid[i] = idx.encodeKey(chunk, i)
		}
	}

	for i := 0; i < chunk.Size(); i++ {
		if !valid[i] {
			continue
		}
		idx.entries[keys[i]] = append(idx.entries[keys[i]], rowIDs[i])
	}
	return nil
}

// Delete removes the chunk's keys for the given row ids
func (idx *KeyIndex) Delete(chunk *storage.DataChunk, rowIDs []int64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for i := 0; i < chunk.Size(); i++ {
		key, ok := idx.encodeKey(chunk, i)
		if !ok {
			continue
		}
		ids := idx.entries[key]
		for j, id := range ids {
			if id == rowIDs[i] {
				idx.entries[key] = append(ids[:j], ids[j+1:]...)
				break
			}
		}
		if len(idx.entries[key]) == 0 {
			delete(idx.entries, key)
		}
	}
	return nil
}

// VerifyAppend probes the chunk's keys for conflicts without modifying the
// index. A nil conflict manager fails on the first conflict; otherwise the
// manager's mode decides between recording and failing.
func (idx *KeyIndex) VerifyAppend(chunk *storage.DataChunk, conflicts *storage.ConflictManager) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if !idx.unique {
		return nil
	}
	seen := make(map[string]int, chunk.Size())
	for i := 0; i < chunk.Size(); i++ {
		key, ok := idx.encodeKey(chunk, i)
		if !ok {
			continue
		}
		existing := int64(storage.InvalidIndex)
		conflict := false
		if ids := idx.entries[key]; len(ids) > 0 {
			existing, conflict = ids[0], true
		} else if _, dup := seen[key]; dup {
			conflict = true
		}
		seen[key] = i
		if !conflict {
			continue
		}
		if conflicts == nil || !conflicts.AddConflict(i, existing) {
			return storage.NewUniqueConstraintError(idx.name, idx.GenerateErrorKeyName(chunk, i))
		}
	}
	return nil
}

// VerifyForeignKey probes the chunk laid out in the owning table's physical
// layout, recording every input row whose key exists in the index. The keys
// argument names the probe columns and must cover the index's column set.
func (idx *KeyIndex) VerifyForeignKey(keys []int, chunk *storage.DataChunk, conflicts *storage.ConflictManager) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	for i := 0; i < chunk.Size(); i++ {
		key, ok := idx.encodeKey(chunk, i)
		if !ok {
			// a NULL key satisfies an append probe and can never be
			// referenced, so it counts as a match only on the append side
			if conflicts.VerifyType() == storage.VerifyAppendFK {
				conflicts.AddConflict(i, int64(storage.InvalidIndex))
			}
			continue
		}
		ids := idx.entries[key]
		if len(ids) == 0 {
			continue
		}
		if !conflicts.AddConflict(i, ids[0]) {
			keyName := idx.GenerateErrorKeyName(chunk, i)
			return storage.NewConstraintError("%s", idx.ConstraintErrorMessage(conflicts.VerifyType(), keyName))
		}
	}
	return nil
}

// GenerateErrorKeyName renders one row's key for error messages
func (idx *KeyIndex) GenerateErrorKeyName(chunk *storage.DataChunk, row int) string {
	var b strings.Builder
	b.WriteByte('(')
	for i, col := range idx.columnIDs {
		if i > 0 {
			b.WriteString(", ")
		}
		if i < len(idx.columnNames) {
			b.WriteString(idx.columnNames[i])
			b.WriteString(": ")
		}
		b.WriteString(storage.FormatValue(chunk.Value(col, row)))
	}
	b.WriteByte(')')
	return b.String()
}

// ConstraintErrorMessage builds the violation message for a failed probe
func (idx *KeyIndex) ConstraintErrorMessage(verifyType storage.VerifyExistenceType, keyName string) string {
	switch verifyType {
	case storage.VerifyAppendFK:
		return "Violates foreign key constraint because key " + keyName +
			" does not exist in the referenced table"
	case storage.VerifyDeleteFK:
		return "Violates foreign key constraint because key " + keyName +
			" is still referenced by a foreign key in a different table"
	default:
		return "Duplicate key " + keyName + " violates unique constraint \"" + idx.name + "\""
	}
}

// Len returns the number of distinct keys in the index
func (idx *KeyIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// HasRowID reports whether any key maps to the given row id
func (idx *KeyIndex) HasRowID(rowID int64) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	for _, ids := range idx.entries {
		for _, id := range ids {
			if id == rowID {
				return true
			}
		}
	}
	return false
}
