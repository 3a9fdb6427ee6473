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

// AndExpression is a row-wise logical AND over integer operands
type AndExpression struct {
	Left  storage.Expression
	Right storage.Expression
}

// NewAndExpression creates a bound AND
func NewAndExpression(left, right storage.Expression) *AndExpression {
	return &AndExpression{Left: left, Right: right}
}

// Eval combines operands with SQL three-valued AND
func (e *AndExpression) Eval(chunk *storage.DataChunk) (*storage.Vector, error) {
	return evalLogical(chunk, e.Left, e.Right, true)
}

func (e *AndExpression) String() string { return fmt.Sprintf("%s AND %s", e.Left, e.Right) }

// OrExpression is a row-wise logical OR over integer operands
type OrExpression struct {
	Left  storage.Expression
	Right storage.Expression
}

// NewOrExpression creates a bound OR
func NewOrExpression(left, right storage.Expression) *OrExpression {
	return &OrExpression{Left: left, Right: right}
}

// Eval combines operands with SQL three-valued OR
func (e *OrExpression) Eval(chunk *storage.DataChunk) (*storage.Vector, error) {
	return evalLogical(chunk, e.Left, e.Right, false)
}

func (e *OrExpression) String() string { return fmt.Sprintf("%s OR %s", e.Left, e.Right) }

func evalLogical(chunk *storage.DataChunk, left, right storage.Expression, isAnd bool) (*storage.Vector, error) {
	lv, err := evalOperand(left, chunk)
	if err != nil {
		return nil, err
	}
	rv, err := evalOperand(right, chunk)
	if err != nil {
		return nil, err
	}
	out := storage.NewVector(storage.INTEGER, chunk.Size())
	for i := 0; i < chunk.Size(); i++ {
		l, lok := truth(lv.Get(i))
		r, rok := truth(rv.Get(i))
		switch {
		case isAnd && lok && rok:
			out.Append(boolToInteger(l && r))
		case isAnd && ((lok && !l) || (rok && !r)):
			// FALSE AND NULL is FALSE
			out.Append(boolToInteger(false))
		case !isAnd && lok && rok:
			out.Append(boolToInteger(l || r))
		case !isAnd && ((lok && l) || (rok && r)):
			// TRUE OR NULL is TRUE
			out.Append(boolToInteger(true))
		default:
			out.Append(storage.NewNullValue(storage.INTEGER))
		}
	}
	return out, nil
}

func truth(v storage.ColumnValue) (val, known bool) {
	if storage.IsNullValue(v) {
		return false, false
	}
	b, ok := v.AsBoolean()
	return b, ok
}
