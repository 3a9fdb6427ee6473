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
	"errors"
	"sync"

	"go.uber.org/atomic"

	"github.com/pidb/duckdb/internal/fastmap"
	"github.com/pidb/duckdb/internal/storage"
)

// ErrTransactionClosed is returned when committing or rolling back twice
var ErrTransactionClosed = errors.New("transaction already closed")

// TransactionRegistry allocates transaction ids and commit sequences and
// answers visibility questions. A single monotonic sequence orders both
// transaction begins and commits.
type TransactionRegistry struct {
	nextTxnID    atomic.Int64
	nextSequence atomic.Int64

	activeTransactions     *fastmap.SyncInt64Map[int64]
	committedTransactions  *fastmap.SyncInt64Map[int64]
	committingTransactions *fastmap.SyncInt64Map[int64]

	accepting  atomic.Bool
	commitCond *sync.Cond
}

// NewTransactionRegistry creates an empty registry
func NewTransactionRegistry() *TransactionRegistry {
	r := &TransactionRegistry{
		activeTransactions:     fastmap.NewSyncInt64Map[int64](6),
		committedTransactions:  fastmap.NewSyncInt64Map[int64](6),
		committingTransactions: fastmap.NewSyncInt64Map[int64](6),
		commitCond:             sync.NewCond(&sync.Mutex{}),
	}
	r.accepting.Store(true)
	return r
}

// BeginTransaction allocates a transaction id and a begin sequence. Begins
// wait for in-flight commits so a snapshot never straddles a half-published
// commit.
func (r *TransactionRegistry) BeginTransaction() (txnID int64, beginSeq int64, err error) {
	if !r.accepting.Load() {
		return 0, 0, errors.New("transaction registry is not accepting new transactions")
	}

	r.commitCond.L.Lock()
	defer r.commitCond.L.Unlock()
	for r.committingTransactions.Len() != 0 {
		r.commitCond.Wait()
	}

	txnID = r.nextTxnID.Add(1)
	beginSeq = r.nextSequence.Add(1)
	r.activeTransactions.Set(txnID, beginSeq)
	return txnID, beginSeq, nil
}

// StartCommit allocates the commit sequence and marks the transaction as committing
func (r *TransactionRegistry) StartCommit(txnID int64) int64 {
	commitSeq := r.nextSequence.Add(1)
	r.committingTransactions.Set(txnID, commitSeq)
	return commitSeq
}

// CompleteCommit publishes a commit started with StartCommit
func (r *TransactionRegistry) CompleteCommit(txnID int64) {
	if seq, ok := r.committingTransactions.Get(txnID); ok {
		r.committedTransactions.Set(txnID, seq)
		r.committingTransactions.Del(txnID)
	}
	r.activeTransactions.Del(txnID)

	r.commitCond.L.Lock()
	r.commitCond.Broadcast()
	r.commitCond.L.Unlock()
}

// AbortTransaction removes a transaction without publishing its writes
func (r *TransactionRegistry) AbortTransaction(txnID int64) {
	r.committingTransactions.Del(txnID)
	r.activeTransactions.Del(txnID)

	r.commitCond.L.Lock()
	r.commitCond.Broadcast()
	r.commitCond.L.Unlock()
}

// GetCommitSequence returns the published commit sequence of a transaction
func (r *TransactionRegistry) GetCommitSequence(txnID int64) (int64, bool) {
	return r.committedTransactions.Get(txnID)
}

// GetCurrentSequence returns the latest allocated sequence number
func (r *TransactionRegistry) GetCurrentSequence() int64 {
	return r.nextSequence.Load()
}

// StopAcceptingTransactions rejects future begins, used during shutdown
func (r *TransactionRegistry) StopAcceptingTransactions() {
	r.accepting.Store(false)
}

// Begin starts a transaction bound to a catalog and an optional write-ahead log
func (r *TransactionRegistry) Begin(catalog *Catalog, wal *WriteAheadLog) (*Transaction, error) {
	txnID, beginSeq, err := r.BeginTransaction()
	if err != nil {
		return nil, err
	}
	t := &Transaction{
		id:       txnID,
		beginSeq: beginSeq,
		registry: r,
		catalog:  catalog,
		wal:      wal,
		active:   true,
	}
	t.local = NewLocalStorage(t)
	return t, nil
}

type undoKind int

const (
	undoDeleteMark undoKind = iota
	undoUpdateValue
)

type undoEntry struct {
	kind       undoKind
	collection *RowGroupCollection
	rowID      int64
	column     int
	old        storage.ColumnValue
}

// Transaction is one logical actor against the storage layer. It carries a
// snapshot (the begin sequence), its uncommitted local store, and an undo
// log for in-place writes against committed storage.
type Transaction struct {
	id       int64
	beginSeq int64
	registry *TransactionRegistry
	catalog  *Catalog
	wal      *WriteAheadLog
	local    *LocalStorage

	undo   []undoEntry
	active bool
}

// ID returns the transaction id
func (t *Transaction) ID() int64 { return t.id }

// BeginSequence returns the snapshot sequence of the transaction
func (t *Transaction) BeginSequence() int64 { return t.beginSeq }

// LocalStorage returns the transaction's uncommitted store
func (t *Transaction) LocalStorage() *LocalStorage { return t.local }

// Catalog returns the catalog the transaction resolves tables against
func (t *Transaction) Catalog() *Catalog { return t.catalog }

// seesInsert decides whether a row version written by insertTxn is inside
// the transaction's snapshot. A stamped insertSeq is authoritative; an
// unstamped row falls back to the registry.
func (t *Transaction) seesInsert(insertTxn, insertSeq int64) bool {
	if insertSeq != 0 {
		return insertSeq <= t.beginSeq || insertTxn == t.id
	}
	if insertTxn == t.id {
		return true
	}
	if seq, ok := t.registry.GetCommitSequence(insertTxn); ok {
		return seq <= t.beginSeq
	}
	return false
}

// seesDelete decides whether a delete mark by deleteTxn applies to this snapshot
func (t *Transaction) seesDelete(deleteTxn int64) bool {
	if deleteTxn == t.id {
		return true
	}
	if seq, ok := t.registry.GetCommitSequence(deleteTxn); ok {
		return seq <= t.beginSeq
	}
	return false
}

func (t *Transaction) recordDeleteUndo(rg *RowGroupCollection, rowID int64) {
	t.undo = append(t.undo, undoEntry{kind: undoDeleteMark, collection: rg, rowID: rowID})
}

func (t *Transaction) recordUpdateUndo(rg *RowGroupCollection, rowID int64, column int, old storage.ColumnValue) {
	t.undo = append(t.undo, undoEntry{kind: undoUpdateValue, collection: rg, rowID: rowID, column: column, old: old})
}

func (t *Transaction) rollbackUndo() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		e := t.undo[i]
		switch e.kind {
		case undoDeleteMark:
			e.collection.undoDelete(e.rowID, t.id)
		case undoUpdateValue:
			e.collection.undoUpdate(e.rowID, e.column, e.old)
		}
	}
	t.undo = nil
}

// Commit publishes the transaction: local appends are flushed into the
// committed row groups and indexes under the commit sequence, then the
// registry publishes the commit. Any failure reverts the flushed rows and
// aborts.
func (t *Transaction) Commit() error {
	if !t.active {
		return ErrTransactionClosed
	}
	t.active = false

	commitSeq := t.registry.StartCommit(t.id)
	if err := t.local.flush(t, commitSeq); err != nil {
		t.registry.AbortTransaction(t.id)
		t.rollbackUndo()
		t.local.reset()
		return err
	}
	t.registry.CompleteCommit(t.id)
	t.undo = nil
	t.local.reset()
	return nil
}

// Rollback discards the transaction: the local store is dropped and every
// in-place write against committed storage is undone
func (t *Transaction) Rollback() error {
	if !t.active {
		return ErrTransactionClosed
	}
	t.active = false
	t.registry.AbortTransaction(t.id)
	t.rollbackUndo()
	t.local.reset()
	return nil
}
