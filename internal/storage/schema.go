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
package storage

// ColumnDefinition describes one column of a table. The logical ordinal (ID)
// counts every column; the storage ordinal (StorageID) densely numbers only
// non-generated columns and addresses columnar storage.
type ColumnDefinition struct {
	Name      string
	Type      DataType
	ID        int
	StorageID int

	// Generated holds the bound expression of a generated column, nil for
	// plain columns. Generated columns have no storage ordinal.
	Generated Expression
}

// IsGenerated reports whether the column is computed at insert time
func (c *ColumnDefinition) IsGenerated() bool { return c.Generated != nil }

// CopyColumns copies a column definition list; Generated expressions are
// shared with the source, not cloned
func CopyColumns(columns []ColumnDefinition) []ColumnDefinition {
	out := make([]ColumnDefinition, len(columns))
	copy(out, columns)
	return out
}

// RenumberColumns reassigns logical ordinals to the list positions and
// storage ordinals densely over the non-generated columns, preserving order
func RenumberColumns(columns []ColumnDefinition) {
	storageID := 0
	for i := range columns {
		columns[i].ID = i
		if columns[i].IsGenerated() {
			continue
		}
		columns[i].StorageID = storageID
		storageID++
	}
}

// PhysicalTypes returns the types of the non-generated columns in storage order
func PhysicalTypes(columns []ColumnDefinition) []DataType {
	types := make([]DataType, 0, len(columns))
	for i := range columns {
		if columns[i].IsGenerated() {
			continue
		}
		types = append(types, columns[i].Type)
	}
	return types
}

// PhysicalColumnCount returns the number of non-generated columns
func PhysicalColumnCount(columns []ColumnDefinition) int {
	n := 0
	for i := range columns {
		if !columns[i].IsGenerated() {
			n++
		}
	}
	return n
}
