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

// CastExpression converts a child expression's values to a target type.
// NULL casts to a typed NULL; an unrepresentable value fails the evaluation.
type CastExpression struct {
	Child      storage.Expression
	TargetType storage.DataType
}

// NewCastExpression creates a bound cast
func NewCastExpression(child storage.Expression, target storage.DataType) *CastExpression {
	return &CastExpression{Child: child, TargetType: target}
}

// Eval casts every row of the child result
func (e *CastExpression) Eval(chunk *storage.DataChunk) (*storage.Vector, error) {
	in, err := evalOperand(e.Child, chunk)
	if err != nil {
		return nil, err
	}
	out := storage.NewVector(e.TargetType, chunk.Size())
	for i := 0; i < chunk.Size(); i++ {
		v, err := CastValue(in.Get(i), e.TargetType)
		if err != nil {
			return nil, err
		}
		out.Append(v)
	}
	return out, nil
}

func (e *CastExpression) String() string {
	return fmt.Sprintf("CAST(%s AS %s)", e.Child, e.TargetType)
}

// CastValue converts a single value to the target type
func CastValue(v storage.ColumnValue, target storage.DataType) (storage.ColumnValue, error) {
	if storage.IsNullValue(v) {
		return storage.NewNullValue(target), nil
	}
	if v.Type() == target {
		return v, nil
	}
	switch target {
	case storage.INTEGER:
		if i, ok := v.AsInt64(); ok {
			return storage.NewIntegerValue(i), nil
		}
	case storage.FLOAT:
		if f, ok := v.AsFloat64(); ok {
			return storage.NewFloatValue(f), nil
		}
	case storage.TEXT:
		if s, ok := v.AsString(); ok {
			return storage.NewTextValue(s), nil
		}
	case storage.BOOLEAN:
		if b, ok := v.AsBoolean(); ok {
			return storage.NewBooleanValue(b), nil
		}
	case storage.TIMESTAMP:
		if t, ok := v.AsTimestamp(); ok {
			return storage.NewTimestampValue(t), nil
		}
	}
	return nil, fmt.Errorf("cannot cast %s %q to %s", v.Type(), storage.FormatValue(v), target)
}
