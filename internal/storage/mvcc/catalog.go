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
	"sync/atomic"

	"github.com/pidb/duckdb/internal/storage"
)

// TableEntry is the catalog's view of one table: the logical column list,
// the bound constraints, and an atomic reference to the current writable
// DataTable version. Schema changes swap the reference; superseded versions
// stay alive for transactions still scanning them.
type TableEntry struct {
	SchemaName string
	TableName  string

	mu          sync.RWMutex
	columns     []storage.ColumnDefinition
	constraints []storage.Constraint

	table atomic.Pointer[DataTable]
}

// NewTableEntry creates a catalog entry over bound columns and constraints
func NewTableEntry(schemaName, tableName string, columns []storage.ColumnDefinition, constraints []storage.Constraint) *TableEntry {
	e := &TableEntry{
		SchemaName:  schemaName,
		TableName:   tableName,
		columns:     storage.CopyColumns(columns),
		constraints: constraints,
	}
	storage.RenumberColumns(e.columns)
	return e
}

// Storage returns the current writable table version
func (e *TableEntry) Storage() *DataTable { return e.table.Load() }

// SetStorage publishes a new table version
func (e *TableEntry) SetStorage(dt *DataTable) { e.table.Store(dt) }

// Columns returns the logical column definitions
func (e *TableEntry) Columns() []storage.ColumnDefinition {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.columns
}

// SetColumns replaces the logical column definitions after a schema change
func (e *TableEntry) SetColumns(columns []storage.ColumnDefinition) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.columns = columns
}

// Constraints returns the bound constraints
func (e *TableEntry) Constraints() []storage.Constraint {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.constraints
}

// AddConstraint appends a bound constraint
func (e *TableEntry) AddConstraint(c storage.Constraint) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.constraints = append(e.constraints, c)
}

// HasGeneratedColumns reports whether any column is generated
func (e *TableEntry) HasGeneratedColumns() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for i := range e.columns {
		if e.columns[i].IsGenerated() {
			return true
		}
	}
	return false
}

// PhysicalColumnCount returns the number of non-generated columns
func (e *TableEntry) PhysicalColumnCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return storage.PhysicalColumnCount(e.columns)
}

// PhysicalTypes returns the non-generated column types in storage order
func (e *TableEntry) PhysicalTypes() []storage.DataType {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return storage.PhysicalTypes(e.columns)
}

// Catalog resolves schema-qualified table names to entries. Foreign keys
// look up their referenced table here at verification time.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]*TableEntry
}

// NewCatalog creates an empty catalog
func NewCatalog() *Catalog {
	return &Catalog{entries: make(map[string]*TableEntry)}
}

func catalogKey(schema, table string) string { return schema + "." + table }

// Register adds a table entry to the catalog
func (c *Catalog) Register(entry *TableEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[catalogKey(entry.SchemaName, entry.TableName)] = entry
}

// GetEntry resolves a schema-qualified table name
func (c *Catalog) GetEntry(schema, table string) (*TableEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[catalogKey(schema, table)]
	return e, ok
}

// Drop removes a table entry
func (c *Catalog) Drop(schema, table string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, catalogKey(schema, table))
}
