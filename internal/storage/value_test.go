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
	"testing"
	"time"
)

func TestValueCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b ColumnValue
		want int
	}{
		{"int less", NewIntegerValue(1), NewIntegerValue(2), -1},
		{"int equal", NewIntegerValue(5), NewIntegerValue(5), 0},
		{"int greater", NewIntegerValue(9), NewIntegerValue(2), 1},
		{"float", NewFloatValue(1.5), NewFloatValue(2.5), -1},
		{"text", NewTextValue("a"), NewTextValue("b"), -1},
		{"bool", NewBooleanValue(false), NewBooleanValue(true), -1},
		{"int vs null", NewIntegerValue(1), NewNullValue(INTEGER), 1},
		{"null vs null", NewNullValue(INTEGER), NewNullValue(INTEGER), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.a.Compare(tt.b)
			if err != nil {
				t.Fatalf("Compare failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Compare(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestValueEquals(t *testing.T) {
	if !NewIntegerValue(3).Equals(NewIntegerValue(3)) {
		t.Error("equal integers must compare equal")
	}
	if NewIntegerValue(3).Equals(NewIntegerValue(4)) {
		t.Error("distinct integers must not compare equal")
	}
	if NewNullValue(INTEGER).Equals(NewNullValue(INTEGER)) {
		t.Error("NULL never equals NULL")
	}
	if NewIntegerValue(3).Equals(NewNullValue(INTEGER)) {
		t.Error("a value never equals NULL")
	}
}

func TestTimestampValue(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	v := NewTimestampValue(now)
	got, ok := v.AsTimestamp()
	if !ok || !got.Equal(now) {
		t.Fatalf("AsTimestamp returned %v, want %v", got, now)
	}
	later := NewTimestampValue(now.Add(time.Hour))
	cmp, err := v.Compare(later)
	if err != nil || cmp != -1 {
		t.Errorf("earlier timestamp must compare less, got %d err %v", cmp, err)
	}
}

func TestFormatValue(t *testing.T) {
	if got := FormatValue(NewNullValue(TEXT)); got != "NULL" {
		t.Errorf("FormatValue(NULL) = %q", got)
	}
	if got := FormatValue(NewIntegerValue(42)); got != "42" {
		t.Errorf("FormatValue(42) = %q", got)
	}
}

func TestRowIDPartition(t *testing.T) {
	if IsLocalRowID(0) || IsLocalRowID(MaxRowID-1) {
		t.Error("committed half misclassified")
	}
	if !IsLocalRowID(MaxRowID) || !IsLocalRowID(MaxRowID+100) {
		t.Error("local half misclassified")
	}
}
