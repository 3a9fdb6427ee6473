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

// ArithmeticOp is a binary arithmetic operator
type ArithmeticOp int

const (
	// OpAdd is +
	OpAdd ArithmeticOp = iota
	// OpSub is -
	OpSub
	// OpMul is *
	OpMul
	// OpDiv is /, failing on a zero divisor
	OpDiv
)

func (op ArithmeticOp) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	default:
		return fmt.Sprintf("ArithmeticOp(%d)", int(op))
	}
}

// ArithmeticExpression combines two child expressions row by row. Integer
// operands stay INTEGER, anything involving a float widens to FLOAT.
type ArithmeticExpression struct {
	Op    ArithmeticOp
	Left  storage.Expression
	Right storage.Expression
}

// NewArithmeticExpression creates a bound arithmetic expression
func NewArithmeticExpression(op ArithmeticOp, left, right storage.Expression) *ArithmeticExpression {
	return &ArithmeticExpression{Op: op, Left: left, Right: right}
}

// Eval evaluates both sides and combines per row, propagating NULL
func (e *ArithmeticExpression) Eval(chunk *storage.DataChunk) (*storage.Vector, error) {
	left, err := evalOperand(e.Left, chunk)
	if err != nil {
		return nil, err
	}
	right, err := evalOperand(e.Right, chunk)
	if err != nil {
		return nil, err
	}

	useFloat := left.DataType() == storage.FLOAT || right.DataType() == storage.FLOAT
	outType := storage.INTEGER
	if useFloat {
		outType = storage.FLOAT
	}
	out := storage.NewVector(outType, chunk.Size())
	for i := 0; i < chunk.Size(); i++ {
		l, r := left.Get(i), right.Get(i)
		if storage.IsNullValue(l) || storage.IsNullValue(r) {
			out.Append(storage.NewNullValue(outType))
			continue
		}
		if useFloat {
			lf, lok := l.AsFloat64()
			rf, rok := r.AsFloat64()
			if !lok || !rok {
				return nil, fmt.Errorf("cannot apply %s to %s and %s", e.Op, l.Type(), r.Type())
			}
			var res float64
			switch e.Op {
			case OpAdd:
				res = lf + rf
			case OpSub:
				res = lf - rf
			case OpMul:
				res = lf * rf
			case OpDiv:
				if rf == 0 {
					return nil, fmt.Errorf("division by zero")
				}
				res = lf / rf
			}
			out.Append(storage.NewFloatValue(res))
			continue
		}
		li, lok := l.AsInt64()
		ri, rok := r.AsInt64()
		if !lok || !rok {
			return nil, fmt.Errorf("cannot apply %s to %s and %s", e.Op, l.Type(), r.Type())
		}
		var res int64
		switch e.Op {
		case OpAdd:
			res = li + ri
		case OpSub:
			res = li - ri
		case OpMul:
			res = li * ri
		case OpDiv:
			if ri == 0 {
				return nil, fmt.Errorf("division by zero")
			}
			res = li / ri
		}
		out.Append(storage.NewIntegerValue(res))
	}
	return out, nil
}

func (e *ArithmeticExpression) String() string {
	return fmt.Sprintf("%s %s %s", e.Left, e.Op, e.Right)
}
