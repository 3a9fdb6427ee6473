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
package expression

import (
	"github.com/pidb/duckdb/internal/storage"
)

// ColumnExpression reads one physical column of the chunk by position
type ColumnExpression struct {
	Name  string
	Index int
}

// NewColumnExpression creates a bound reference to chunk column index
func NewColumnExpression(name string, index int) *ColumnExpression {
	return &ColumnExpression{Name: name, Index: index}
}

// Eval returns the referenced column vector without copying
func (e *ColumnExpression) Eval(chunk *storage.DataChunk) (*storage.Vector, error) {
	if e.Index < 0 || e.Index >= chunk.ColumnCount() {
		return nil, storage.NewInternalError("column reference %q out of range: %d", e.Name, e.Index)
	}
	return chunk.Column(e.Index), nil
}

func (e *ColumnExpression) String() string { return e.Name }

// ConstantExpression yields the same value for every row
type ConstantExpression struct {
	Value storage.ColumnValue
}

// NewConstantExpression creates a constant
func NewConstantExpression(value storage.ColumnValue) *ConstantExpression {
	return &ConstantExpression{Value: value}
}

// Eval replicates the constant across the chunk cardinality
func (e *ConstantExpression) Eval(chunk *storage.DataChunk) (*storage.Vector, error) {
	vec := storage.NewVector(e.Value.Type(), chunk.Size())
	for i := 0; i < chunk.Size(); i++ {
		vec.Append(e.Value)
	}
	return vec, nil
}

func (e *ConstantExpression) String() string { return storage.FormatValue(e.Value) }
