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

import "fmt"

// DataChunk is a horizontal slice of a table: one vector per column plus a
// cardinality. Column vectors may be references into other chunks.
type DataChunk struct {
	columns []*Vector
	count   int
}

// NewDataChunk creates an empty chunk with one vector per type
func NewDataChunk(types []DataType) *DataChunk {
	cols := make([]*Vector, len(types))
	for i, t := range types {
		cols[i] = NewVector(t, VectorSize)
	}
	return &DataChunk{columns: cols}
}

// NewEmptyChunk creates a chunk whose column vectors are unset, ready for
// ReferenceColumn aliasing
func NewEmptyChunk(types []DataType) *DataChunk {
	cols := make([]*Vector, len(types))
	for i, t := range types {
		cols[i] = NewVector(t, 0)
	}
	return &DataChunk{columns: cols}
}

// ColumnCount returns the number of columns
func (c *DataChunk) ColumnCount() int { return len(c.columns) }

// Size returns the chunk cardinality
func (c *DataChunk) Size() int { return c.count }

// SetCardinality sets the chunk cardinality
func (c *DataChunk) SetCardinality(n int) { c.count = n }

// Column returns the vector at position i
func (c *DataChunk) Column(i int) *Vector { return c.columns[i] }

// ReferenceColumn aliases another chunk's vector into position i
func (c *DataChunk) ReferenceColumn(i int, v *Vector) { c.columns[i] = v }

// Types returns the column types of the chunk
func (c *DataChunk) Types() []DataType {
	types := make([]DataType, len(c.columns))
	for i, col := range c.columns {
		types[i] = col.DataType()
	}
	return types
}

// AppendRow adds one row of values, growing the cardinality
func (c *DataChunk) AppendRow(values ...ColumnValue) {
	for i, v := range values {
		c.columns[i].Append(v)
	}
	c.count++
}

// Row materializes row i as a value slice
func (c *DataChunk) Row(i int) Row {
	row := make(Row, len(c.columns))
	for j, col := range c.columns {
		row[j] = col.Get(i)
	}
	return row
}

// Value returns the value at (column, row)
func (c *DataChunk) Value(col, row int) ColumnValue { return c.columns[col].Get(row) }

// Slice restricts the chunk to rows [offset, offset+count), sharing storage
func (c *DataChunk) Slice(offset, count int) {
	for _, col := range c.columns {
		col.Slice(offset, count)
	}
	c.count = count
}

// Reset truncates all columns and the cardinality
func (c *DataChunk) Reset() {
	for _, col := range c.columns {
		col.Reset()
	}
	c.count = 0
}

// Verify checks internal consistency between cardinality and column sizes.
// Referenced columns may be longer than the cardinality, never shorter.
func (c *DataChunk) Verify() error {
	for i, col := range c.columns {
		if col.Size() < c.count {
			return fmt.Errorf("chunk column %d holds %d values for cardinality %d", i, col.Size(), c.count)
		}
	}
	return nil
}
