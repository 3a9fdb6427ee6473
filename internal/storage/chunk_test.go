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
)

func TestChunkAppendAndSlice(t *testing.T) {
	chunk := NewDataChunk([]DataType{INTEGER, TEXT})
	for i := int64(0); i < 5; i++ {
		chunk.AppendRow(NewIntegerValue(i), NewTextValue("r"))
	}
	if chunk.Size() != 5 {
		t.Fatalf("Size = %d, want 5", chunk.Size())
	}

	chunk.Slice(1, 3)
	if chunk.Size() != 3 {
		t.Fatalf("sliced Size = %d, want 3", chunk.Size())
	}
	v, _ := chunk.Value(0, 0).AsInt64()
	if v != 1 {
		t.Errorf("first sliced value = %d, want 1", v)
	}
	if err := chunk.Verify(); err != nil {
		t.Errorf("Verify failed: %v", err)
	}
}

func TestChunkReferenceColumnAliases(t *testing.T) {
	src := NewDataChunk([]DataType{INTEGER})
	src.AppendRow(NewIntegerValue(7))

	dst := NewEmptyChunk([]DataType{INTEGER, INTEGER})
	dst.ReferenceColumn(1, src.Column(0))
	dst.SetCardinality(src.Size())

	v, _ := dst.Value(1, 0).AsInt64()
	if v != 7 {
		t.Fatalf("aliased value = %d, want 7", v)
	}

	// aliasing shares storage: a write through the source is observed
	src.Column(0).Set(0, NewIntegerValue(8))
	v, _ = dst.Value(1, 0).AsInt64()
	if v != 8 {
		t.Errorf("aliased vector did not share storage, got %d", v)
	}
}

func TestChunkVerifyDetectsShortColumn(t *testing.T) {
	chunk := NewEmptyChunk([]DataType{INTEGER})
	chunk.SetCardinality(2)
	if err := chunk.Verify(); err == nil {
		t.Error("Verify must reject a column shorter than the cardinality")
	}
}

func TestGenerateRowSequence(t *testing.T) {
	ids := GenerateRowSequence(10, 3)
	want := []int64{10, 11, 12}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("sequence[%d] = %d, want %d", i, ids[i], want[i])
		}
	}
}

func TestVectorHasNull(t *testing.T) {
	vec := NewVector(INTEGER, 4)
	vec.Append(NewIntegerValue(1))
	vec.Append(NewNullValue(INTEGER))
	if !vec.HasNull(2) {
		t.Error("HasNull missed a NULL")
	}
	if vec.HasNull(1) {
		t.Error("HasNull looked past the given count")
	}
}
