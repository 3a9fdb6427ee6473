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
// Package expression implements bound expressions evaluated vector-wise
// over data chunks: column references, constants, comparisons, arithmetic,
// logical connectives and casts.
package expression

import (
	"github.com/pidb/duckdb/internal/storage"
)

// evalOperand evaluates a child expression and checks the result cardinality
func evalOperand(expr storage.Expression, chunk *storage.DataChunk) (*storage.Vector, error) {
	vec, err := expr.Eval(chunk)
	if err != nil {
		return nil, err
	}
	if vec.Size() < chunk.Size() {
		return nil, storage.NewInternalError(
			"expression %q produced %d values for %d rows", expr.String(), vec.Size(), chunk.Size())
	}
	return vec, nil
}

// boolToInteger renders a three-valued comparison result as an INTEGER value
func boolToInteger(v bool) storage.ColumnValue {
	if v {
		return storage.NewIntegerValue(1)
	}
	return storage.NewIntegerValue(0)
}
