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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pidb/duckdb/internal/storage"
)

func intChunkOf(values ...interface{}) *storage.DataChunk {
	chunk := storage.NewDataChunk([]storage.DataType{storage.INTEGER})
	for _, v := range values {
		if v == nil {
			chunk.AppendRow(storage.NewNullValue(storage.INTEGER))
			continue
		}
		chunk.AppendRow(storage.NewIntegerValue(int64(v.(int))))
	}
	return chunk
}

func TestComparisonWithNullPropagation(t *testing.T) {
	chunk := intChunkOf(1, nil, 5)
	expr := NewComparisonExpression(OpGT,
		NewColumnExpression("a", 0), NewConstantExpression(storage.NewIntegerValue(2)))

	out, err := expr.Eval(chunk)
	require.NoError(t, err)

	v0, _ := out.Get(0).AsInt64()
	assert.EqualValues(t, 0, v0)
	assert.True(t, storage.IsNullValue(out.Get(1)))
	v2, _ := out.Get(2).AsInt64()
	assert.EqualValues(t, 1, v2)
	assert.Equal(t, "a > 2", expr.String())
}

func TestArithmeticDivisionByZero(t *testing.T) {
	chunk := intChunkOf(0)
	expr := NewArithmeticExpression(OpDiv,
		NewConstantExpression(storage.NewIntegerValue(10)), NewColumnExpression("a", 0))
	_, err := expr.Eval(chunk)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "division by zero")
}

func TestArithmeticWidensToFloat(t *testing.T) {
	chunk := intChunkOf(3)
	expr := NewArithmeticExpression(OpMul,
		NewColumnExpression("a", 0), NewConstantExpression(storage.NewFloatValue(1.5)))
	out, err := expr.Eval(chunk)
	require.NoError(t, err)
	assert.Equal(t, storage.FLOAT, out.DataType())
	f, _ := out.Get(0).AsFloat64()
	assert.InDelta(t, 4.5, f, 1e-9)
}

func TestCastExpression(t *testing.T) {
	chunk := intChunkOf(42, nil)
	expr := NewCastExpression(NewColumnExpression("a", 0), storage.TEXT)
	out, err := expr.Eval(chunk)
	require.NoError(t, err)
	s, _ := out.Get(0).AsString()
	assert.Equal(t, "42", s)
	assert.True(t, storage.IsNullValue(out.Get(1)))
	assert.Equal(t, storage.TEXT, out.Get(1).Type())
	assert.Equal(t, "CAST(a AS TEXT)", expr.String())
}

func TestCastValueFailure(t *testing.T) {
	_, err := CastValue(storage.NewTextValue("not a number"), storage.INTEGER)
	require.Error(t, err)
}

func TestLogicalThreeValued(t *testing.T) {
	chunk := intChunkOf(1)
	one := NewConstantExpression(storage.NewIntegerValue(1))
	zero := NewConstantExpression(storage.NewIntegerValue(0))
	null := NewConstantExpression(storage.NewNullValue(storage.INTEGER))

	evalOne := func(e storage.Expression) (int64, bool) {
		out, err := e.Eval(chunk)
		require.NoError(t, err)
		if storage.IsNullValue(out.Get(0)) {
			return 0, false
		}
		v, _ := out.Get(0).AsInt64()
		return v, true
	}

	v, known := evalOne(NewAndExpression(one, zero))
	assert.True(t, known)
	assert.EqualValues(t, 0, v)

	// FALSE AND NULL is FALSE, TRUE OR NULL is TRUE
	v, known = evalOne(NewAndExpression(zero, null))
	assert.True(t, known)
	assert.EqualValues(t, 0, v)
	v, known = evalOne(NewOrExpression(one, null))
	assert.True(t, known)
	assert.EqualValues(t, 1, v)

	// TRUE AND NULL stays unknown
	_, known = evalOne(NewAndExpression(one, null))
	assert.False(t, known)
}

func TestColumnExpressionOutOfRange(t *testing.T) {
	chunk := intChunkOf(1)
	_, err := NewColumnExpression("missing", 3).Eval(chunk)
	require.Error(t, err)
	assert.True(t, storage.IsInternalError(err))
}
