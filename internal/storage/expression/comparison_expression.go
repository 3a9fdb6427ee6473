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
	"fmt"

	"github.com/pidb/duckdb/internal/storage"
)

// CompareOp is a comparison operator
type CompareOp int

const (
	// OpEQ is =
	OpEQ CompareOp = iota
	// OpNE is <>
	OpNE
	// OpLT is <
	OpLT
	// OpLE is <=
	OpLE
	// OpGT is >
	OpGT
	// OpGE is >=
	OpGE
)

func (op CompareOp) String() string {
	switch op {
	case OpEQ:
		return "="
	case OpNE:
		return "<>"
	case OpLT:
		return "<"
	case OpLE:
		return "<="
	case OpGT:
		return ">"
	case OpGE:
		return ">="
	default:
		return fmt.Sprintf("CompareOp(%d)", int(op))
	}
}

// ComparisonExpression compares two child expressions row by row, yielding
// an INTEGER vector of 0/1 with NULL propagation
type ComparisonExpression struct {
	Op    CompareOp
	Left  storage.Expression
	Right storage.Expression
}

// NewComparisonExpression creates a bound comparison
func NewComparisonExpression(op CompareOp, left, right storage.Expression) *ComparisonExpression {
	return &ComparisonExpression{Op: op, Left: left, Right: right}
}

// Eval evaluates both sides and compares per row
func (e *ComparisonExpression) Eval(chunk *storage.DataChunk) (*storage.Vector, error) {
	left, err := evalOperand(e.Left, chunk)
	if err != nil {
		return nil, err
	}
	right, err := evalOperand(e.Right, chunk)
	if err != nil {
		return nil, err
	}
	out := storage.NewVector(storage.INTEGER, chunk.Size())
	for i := 0; i < chunk.Size(); i++ {
		l, r := left.Get(i), right.Get(i)
		if storage.IsNullValue(l) || storage.IsNullValue(r) {
			out.Append(storage.NewNullValue(storage.INTEGER))
			continue
		}
		cmp, err := l.Compare(r)
		if err != nil {
			return nil, err
		}
		var res bool
		switch e.Op {
		case OpEQ:
			res = cmp == 0
		case OpNE:
			res = cmp != 0
		case OpLT:
			res = cmp < 0
		case OpLE:
			res = cmp <= 0
		case OpGT:
			res = cmp > 0
		case OpGE:
			res = cmp >= 0
		}
		out.Append(boolToInteger(res))
	}
	return out, nil
}

func (e *ComparisonExpression) String() string {
	return fmt.Sprintf("%s %s %s", e.Left, e.Op, e.Right)
}
