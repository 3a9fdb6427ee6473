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

func TestConflictManagerScanThenThrow(t *testing.T) {
	cm := NewConflictManager(VerifyAppend, 4, NewConflictInfo())

	if !cm.AddConflict(2, 100) {
		t.Fatal("scan mode must record conflicts")
	}
	if !cm.AddConflict(0, 200) {
		t.Fatal("scan mode must record conflicts")
	}

	cm.SetMode(ConflictThrow)
	if !cm.AddConflict(2, 100) {
		t.Error("a conflict captured during scan must not throw")
	}
	if cm.AddConflict(1, 300) {
		t.Error("a fresh conflict in throw mode must fail")
	}
}

func TestManagedSelectionIsOrdered(t *testing.T) {
	cm := NewConflictManager(VerifyAppend, 5, NewConflictInfo())
	cm.AddConflict(3, 30)
	cm.AddConflict(1, 10)
	cm.AddConflict(4, 40)
	cm.Finalize()

	sel := cm.Conflicts()
	if sel.Count() != 3 {
		t.Fatalf("Count = %d, want 3", sel.Count())
	}
	want := []int{1, 3, 4}
	for i, w := range want {
		if sel.Get(i) != w {
			t.Errorf("Get(%d) = %d, want %d", i, sel.Get(i), w)
		}
	}

	ids := cm.ConflictRowIDs()
	wantIDs := []int64{10, 30, 40}
	for i, w := range wantIDs {
		if ids[i] != w {
			t.Errorf("ConflictRowIDs[%d] = %d, want %d", i, ids[i], w)
		}
	}
}

func TestIndexMapsToLocationWalk(t *testing.T) {
	cm := NewConflictManager(VerifyAppendFK, 4, NewConflictInfo())
	cm.AddConflict(0, 1)
	cm.AddConflict(2, 2)
	cm.Finalize()
	sel := cm.Conflicts()

	matchIdx := 0
	var missing []int
	for i := 0; i < 4; i++ {
		if sel.IndexMapsToLocation(matchIdx, i) {
			matchIdx++
			continue
		}
		missing = append(missing, i)
	}
	if len(missing) != 2 || missing[0] != 1 || missing[1] != 3 {
		t.Errorf("missing = %v, want [1 3]", missing)
	}
}

type fakeIndex struct {
	Index
	columnIDs []int
}

func (f *fakeIndex) ColumnIDs() []int { return f.columnIDs }

func TestConflictTargetMatches(t *testing.T) {
	anyTarget := NewConflictInfo()
	if !anyTarget.TargetMatches(&fakeIndex{columnIDs: []int{1, 2}}) {
		t.Error("an empty target must match every index")
	}

	target := NewConflictInfo(1, 2)
	if !target.TargetMatches(&fakeIndex{columnIDs: []int{2, 1}}) {
		t.Error("target must match the same column set in any order")
	}
	if target.TargetMatches(&fakeIndex{columnIDs: []int{1}}) {
		t.Error("target must not match a narrower index")
	}
	if target.TargetMatches(&fakeIndex{columnIDs: []int{1, 3}}) {
		t.Error("target must not match a different column set")
	}
}

func TestConstraintErrorKinds(t *testing.T) {
	if !IsConstraintError(NewNotNullConstraintError("t", "a")) {
		t.Error("NOT NULL must be a constraint error")
	}
	if !IsTransactionConflict(NewTransactionConflictError("altered")) {
		t.Error("transaction conflict helper failed")
	}
	if !IsCatalogError(NewCatalogError("index depends on it")) {
		t.Error("catalog error helper failed")
	}
	if !IsInternalError(NewInternalError("bug")) {
		t.Error("internal error helper failed")
	}
	if IsConstraintError(NewInternalError("bug")) {
		t.Error("an internal error is not a constraint error")
	}
}
