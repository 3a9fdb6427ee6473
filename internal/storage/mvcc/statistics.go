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
package mvcc

import (
	"github.com/pidb/duckdb/internal/storage"
)

// ColumnStatistics tracks the value distribution of one physical column
type ColumnStatistics struct {
	Type      storage.DataType
	Min       storage.ColumnValue
	Max       storage.ColumnValue
	NullCount int64
	Count     int64
}

// NewColumnStatistics creates empty statistics for a column type
func NewColumnStatistics(dt storage.DataType) *ColumnStatistics {
	return &ColumnStatistics{Type: dt}
}

// Update folds one value into the statistics
func (s *ColumnStatistics) Update(v storage.ColumnValue) {
	s.Count++
	if storage.IsNullValue(v) {
		s.NullCount++
		return
	}
	if s.Min == nil {
		s.Min = v
		s.Max = v
		return
	}
	if cmp, err := v.Compare(s.Min); err == nil && cmp < 0 {
		s.Min = v
	}
	if cmp, err := v.Compare(s.Max); err == nil && cmp > 0 {
		s.Max = v
	}
}

// Merge folds another statistics object into this one
func (s *ColumnStatistics) Merge(other *ColumnStatistics) {
	s.Count += other.Count
	s.NullCount += other.NullCount
	if other.Min != nil {
		s.Update(other.Min)
		s.Count--
	}
	if other.Max != nil {
		s.Update(other.Max)
		s.Count--
	}
}

// Copy returns an independent snapshot
func (s *ColumnStatistics) Copy() *ColumnStatistics {
	c := *s
	return &c
}

// HasNull reports whether any tracked value was NULL
func (s *ColumnStatistics) HasNull() bool { return s.NullCount > 0 }
