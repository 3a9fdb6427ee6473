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

import (
	"fmt"
	"strconv"
	"time"
)

// ColumnValue represents a single value in a column
type ColumnValue interface {
	Type() DataType
	IsNull() bool
	AsInt64() (int64, bool)
	AsFloat64() (float64, bool)
	AsBoolean() (bool, bool)
	AsString() (string, bool)
	AsTimestamp() (time.Time, bool)
	AsInterface() interface{}

	Equals(other ColumnValue) bool

	// Compare compares two values and returns:
	// -1 if v < other
	// 0 if v == other
	// 1 if v > other
	// error if the comparison is not possible
	Compare(other ColumnValue) (int, error)
}

// Row represents a single row of data
type Row []ColumnValue

// IntegerValue is a non-null INTEGER
type IntegerValue struct {
	val int64
}

// NewIntegerValue creates an integer column value
func NewIntegerValue(v int64) IntegerValue { return IntegerValue{val: v} }

func (v IntegerValue) Type() DataType                  { return INTEGER }
func (v IntegerValue) IsNull() bool                    { return false }
func (v IntegerValue) AsInt64() (int64, bool)          { return v.val, true }
func (v IntegerValue) AsFloat64() (float64, bool)      { return float64(v.val), true }
func (v IntegerValue) AsBoolean() (bool, bool)         { return v.val != 0, true }
func (v IntegerValue) AsString() (string, bool)        { return strconv.FormatInt(v.val, 10), true }
func (v IntegerValue) AsTimestamp() (time.Time, bool)  { return time.Time{}, false }
func (v IntegerValue) AsInterface() interface{}        { return v.val }

func (v IntegerValue) Equals(other ColumnValue) bool {
	if other == nil || other.IsNull() {
		return false
	}
	o, ok := other.AsInt64()
	return ok && o == v.val
}

func (v IntegerValue) Compare(other ColumnValue) (int, error) {
	if other == nil || other.IsNull() {
		return 1, nil
	}
	o, ok := other.AsInt64()
	if !ok {
		return 0, fmt.Errorf("cannot compare INTEGER with %s", other.Type())
	}
	switch {
	case v.val < o:
		return -1, nil
	case v.val > o:
		return 1, nil
	default:
		return 0, nil
	}
}

// FloatValue is a non-null FLOAT
type FloatValue struct {
	val float64
}

// NewFloatValue creates a float column value
func NewFloatValue(v float64) FloatValue { return FloatValue{val: v} }

func (v FloatValue) Type() DataType                 { return FLOAT }
func (v FloatValue) IsNull() bool                   { return false }
func (v FloatValue) AsInt64() (int64, bool)         { return int64(v.val), true }
func (v FloatValue) AsFloat64() (float64, bool)     { return v.val, true }
func (v FloatValue) AsBoolean() (bool, bool)        { return v.val != 0, true }
func (v FloatValue) AsString() (string, bool) {
	return strconv.FormatFloat(v.val, 'g', -1, 64), true
}
func (v FloatValue) AsTimestamp() (time.Time, bool) { return time.Time{}, false }
func (v FloatValue) AsInterface() interface{}       { return v.val }

func (v FloatValue) Equals(other ColumnValue) bool {
	if other == nil || other.IsNull() {
		return false
	}
	o, ok := other.AsFloat64()
	return ok && o == v.val
}

func (v FloatValue) Compare(other ColumnValue) (int, error) {
	if other == nil || other.IsNull() {
		return 1, nil
	}
	o, ok := other.AsFloat64()
	if !ok {
		return 0, fmt.Errorf("cannot compare FLOAT with %s", other.Type())
	}
	switch {
	case v.val < o:
		return -1, nil
	case v.val > o:
		return 1, nil
	default:
		return 0, nil
	}
}

// TextValue is a non-null TEXT
type TextValue struct {
	val string
}

// NewTextValue creates a text column value
func NewTextValue(v string) TextValue { return TextValue{val: v} }

func (v TextValue) Type() DataType                 { return TEXT }
func (v TextValue) IsNull() bool                   { return false }
func (v TextValue) AsInt64() (int64, bool) {
	i, err := strconv.ParseInt(v.val, 10, 64)
	return i, err == nil
}
func (v TextValue) AsFloat64() (float64, bool) {
	f, err := strconv.ParseFloat(v.val, 64)
	return f, err == nil
}
func (v TextValue) AsBoolean() (bool, bool)        { b, err := strconv.ParseBool(v.val); return b, err == nil }
func (v TextValue) AsString() (string, bool)       { return v.val, true }
func (v TextValue) AsTimestamp() (time.Time, bool) {
	t, err := time.Parse(time.RFC3339, v.val)
	return t, err == nil
}
func (v TextValue) AsInterface() interface{} { return v.val }

func (v TextValue) Equals(other ColumnValue) bool {
	if other == nil || other.IsNull() {
		return false
	}
	o, ok := other.AsString()
	return ok && o == v.val
}

func (v TextValue) Compare(other ColumnValue) (int, error) {
	if other == nil || other.IsNull() {
		return 1, nil
	}
	o, ok := other.AsString()
	if !ok {
		return 0, fmt.Errorf("cannot compare TEXT with %s", other.Type())
	}
	switch {
	case v.val < o:
		return -1, nil
	case v.val > o:
		return 1, nil
	default:
		return 0, nil
	}
}

// BooleanValue is a non-null BOOLEAN
type BooleanValue struct {
	val bool
}

// NewBooleanValue creates a boolean column value
func NewBooleanValue(v bool) BooleanValue { return BooleanValue{val: v} }

func (v BooleanValue) Type() DataType { return BOOLEAN }
func (v BooleanValue) IsNull() bool   { return false }
func (v BooleanValue) AsInt64() (int64, bool) {
	if v.val {
		return 1, true
	}
	return 0, true
}
func (v BooleanValue) AsFloat64() (float64, bool) {
	if v.val {
		return 1, true
	}
	return 0, true
}
func (v BooleanValue) AsBoolean() (bool, bool)        { return v.val, true }
func (v BooleanValue) AsString() (string, bool)       { return strconv.FormatBool(v.val), true }
func (v BooleanValue) AsTimestamp() (time.Time, bool) { return time.Time{}, false }
func (v BooleanValue) AsInterface() interface{}       { return v.val }

func (v BooleanValue) Equals(other ColumnValue) bool {
	if other == nil || other.IsNull() {
		return false
	}
	o, ok := other.AsBoolean()
	return ok && o == v.val
}

func (v BooleanValue) Compare(other ColumnValue) (int, error) {
	if other == nil || other.IsNull() {
		return 1, nil
	}
	o, ok := other.AsBoolean()
	if !ok {
		return 0, fmt.Errorf("cannot compare BOOLEAN with %s", other.Type())
	}
	a, _ := v.AsInt64()
	bv := BooleanValue{val: o}
	b, _ := bv.AsInt64()
	switch {
	case a < b:
		return -1, nil
	case a > b:
		return 1, nil
	default:
		return 0, nil
	}
}

// TimestampValue is a non-null TIMESTAMP
type TimestampValue struct {
	val time.Time
}

// NewTimestampValue creates a timestamp column value
func NewTimestampValue(v time.Time) TimestampValue { return TimestampValue{val: v} }

func (v TimestampValue) Type() DataType                 { return TIMESTAMP }
func (v TimestampValue) IsNull() bool                   { return false }
func (v TimestampValue) AsInt64() (int64, bool)         { return v.val.UnixNano(), true }
func (v TimestampValue) AsFloat64() (float64, bool)     { return float64(v.val.UnixNano()), true }
func (v TimestampValue) AsBoolean() (bool, bool)        { return false, false }
func (v TimestampValue) AsString() (string, bool)       { return v.val.Format(time.RFC3339Nano), true }
func (v TimestampValue) AsTimestamp() (time.Time, bool) { return v.val, true }
func (v TimestampValue) AsInterface() interface{}       { return v.val }

func (v TimestampValue) Equals(other ColumnValue) bool {
	if other == nil || other.IsNull() {
		return false
	}
	o, ok := other.AsTimestamp()
	return ok && o.Equal(v.val)
}

func (v TimestampValue) Compare(other ColumnValue) (int, error) {
	if other == nil || other.IsNull() {
		return 1, nil
	}
	o, ok := other.AsTimestamp()
	if !ok {
		return 0, fmt.Errorf("cannot compare TIMESTAMP with %s", other.Type())
	}
	switch {
	case v.val.Before(o):
		return -1, nil
	case v.val.After(o):
		return 1, nil
	default:
		return 0, nil
	}
}

// NullValue is a typed NULL
type NullValue struct {
	typ DataType
}

// NewNullValue creates a NULL of the given type
func NewNullValue(dt DataType) NullValue { return NullValue{typ: dt} }

func (v NullValue) Type() DataType                 { return v.typ }
func (v NullValue) IsNull() bool                   { return true }
func (v NullValue) AsInt64() (int64, bool)         { return 0, false }
func (v NullValue) AsFloat64() (float64, bool)     { return 0, false }
func (v NullValue) AsBoolean() (bool, bool)        { return false, false }
func (v NullValue) AsString() (string, bool)       { return "", false }
func (v NullValue) AsTimestamp() (time.Time, bool) { return time.Time{}, false }
func (v NullValue) AsInterface() interface{}       { return nil }

func (v NullValue) Equals(other ColumnValue) bool { return false }

func (v NullValue) Compare(other ColumnValue) (int, error) {
	if other == nil || other.IsNull() {
		return 0, nil
	}
	return -1, nil
}

// IsNullValue reports whether a value is absent or a typed NULL
func IsNullValue(v ColumnValue) bool {
	return v == nil || v.IsNull()
}

// FormatValue renders a value the way constraint error messages expect it
func FormatValue(v ColumnValue) string {
	if IsNullValue(v) {
		return "NULL"
	}
	s, _ := v.AsString()
	return s
}
