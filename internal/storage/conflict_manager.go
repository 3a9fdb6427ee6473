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

import "sort"

// ManagedSelection is the finalized, ascending set of input positions that
// matched during an index probe
type ManagedSelection struct {
	sel []int
}

// Count returns the number of matched positions
func (s *ManagedSelection) Count() int { return len(s.sel) }

// Get returns the matched input position at slot i
func (s *ManagedSelection) Get(i int) int { return s.sel[i] }

// IndexMapsToLocation reports whether match slot matchIdx holds input
// position rowIdx. Walking matchIdx forward while iterating rowIdx yields a
// membership test over the ordered selection.
func (s *ManagedSelection) IndexMapsToLocation(matchIdx, rowIdx int) bool {
	return matchIdx < len(s.sel) && s.sel[matchIdx] == rowIdx
}

// ConflictManagerMode switches a probe between recording and failing
type ConflictManagerMode int

const (
	// ConflictScan records conflicts for later inspection
	ConflictScan ConflictManagerMode = iota
	// ConflictThrow fails on the first conflict not captured by a prior scan
	ConflictThrow
)

// ConflictInfo describes an ON CONFLICT target: the physical column set the
// caller wants conflicts captured for. An empty column set matches every
// unique index.
type ConflictInfo struct {
	Columns map[int]struct{}
}

// NewConflictInfo builds a conflict target over the given physical columns
func NewConflictInfo(columns ...int) *ConflictInfo {
	set := make(map[int]struct{}, len(columns))
	for _, c := range columns {
		set[c] = struct{}{}
	}
	return &ConflictInfo{Columns: set}
}

// TargetMatches reports whether an index covers exactly the conflict target
func (ci *ConflictInfo) TargetMatches(index Index) bool {
	if len(ci.Columns) == 0 {
		return true
	}
	ids := index.ColumnIDs()
	if len(ids) != len(ci.Columns) {
		return false
	}
	for _, id := range ids {
		if _, ok := ci.Columns[id]; !ok {
			return false
		}
	}
	return true
}

// ConflictManager captures which input rows of a probe chunk matched existing
// index entries. In scan mode matches accumulate; in throw mode a match on a
// row that was not already captured is a hard conflict.
type ConflictManager struct {
	verifyType VerifyExistenceType
	inputCount int
	info       *ConflictInfo
	mode       ConflictManagerMode

	matched    map[int]int64
	finalized  *ManagedSelection
	matchedIDs []int64
}

// NewConflictManager creates a manager for a probe over inputCount rows
func NewConflictManager(verifyType VerifyExistenceType, inputCount int, info *ConflictInfo) *ConflictManager {
	return &ConflictManager{
		verifyType: verifyType,
		inputCount: inputCount,
		info:       info,
		mode:       ConflictScan,
		matched:    make(map[int]int64),
	}
}

// VerifyType returns the probe direction this manager was built for
func (cm *ConflictManager) VerifyType() VerifyExistenceType { return cm.verifyType }

// InputCount returns the probe chunk cardinality
func (cm *ConflictManager) InputCount() int { return cm.inputCount }

// ConflictInfo returns the conflict target, never nil
func (cm *ConflictManager) ConflictInfo() *ConflictInfo {
	if cm.info == nil {
		return &ConflictInfo{}
	}
	return cm.info
}

// SetMode switches between scan and throw
func (cm *ConflictManager) SetMode(mode ConflictManagerMode) { cm.mode = mode }

// Mode returns the current mode
func (cm *ConflictManager) Mode() ConflictManagerMode { return cm.mode }

// AddConflict records that input row rowIdx matched the existing row
// existingID. It returns false when the conflict must fail the probe: throw
// mode, and the row was not captured by an earlier scan pass.
func (cm *ConflictManager) AddConflict(rowIdx int, existingID int64) bool {
	if _, seen := cm.matched[rowIdx]; seen {
		return true
	}
	if cm.mode == ConflictThrow {
		return false
	}
	cm.matched[rowIdx] = existingID
	return true
}

// Finalize freezes the recorded conflicts into an ordered selection
func (cm *ConflictManager) Finalize() {
	sel := make([]int, 0, len(cm.matched))
	for idx := range cm.matched {
		sel = append(sel, idx)
	}
	sort.Ints(sel)
	ids := make([]int64, len(sel))
	for i, idx := range sel {
		ids[i] = cm.matched[idx]
	}
	cm.finalized = &ManagedSelection{sel: sel}
	cm.matchedIDs = ids
}

// Conflicts returns the finalized selection, finalizing on first use
func (cm *ConflictManager) Conflicts() *ManagedSelection {
	if cm.finalized == nil {
		cm.Finalize()
	}
	return cm.finalized
}

// ConflictRowIDs returns the matched existing row ids aligned with Conflicts
func (cm *ConflictManager) ConflictRowIDs() []int64 {
	if cm.finalized == nil {
		cm.Finalize()
	}
	return cm.matchedIDs
}
