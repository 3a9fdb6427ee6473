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
	"sync"

	"github.com/rs/zerolog"

	"github.com/pidb/duckdb/internal/config"
	"github.com/pidb/duckdb/internal/logger"
	"github.com/pidb/duckdb/internal/storage"
)

// WALRecordType enumerates write-ahead log record kinds
type WALRecordType int

const (
	// WALSetTable switches the log's current table
	WALSetTable WALRecordType = iota
	// WALInsert carries appended rows for the current table
	WALInsert
)

// WALRecord is one framed log entry
type WALRecord struct {
	Type       WALRecordType
	SchemaName string
	TableName  string
	Rows       []storage.Row
}

// WriteAheadLog records committed appends before they are published.
// SkipWriting disables logging wholesale, e.g. during replay or for
// temporary tables.
type WriteAheadLog struct {
	SkipWriting bool

	mu      sync.Mutex
	records []WALRecord
	log     zerolog.Logger
}

// NewWriteAheadLog creates a log, honoring the engine config's skip flag
func NewWriteAheadLog() *WriteAheadLog {
	return &WriteAheadLog{
		SkipWriting: config.Get().WalSkipWriting,
		log:         logger.For("wal"),
	}
}

// WriteSetTable records which table the following inserts belong to
func (w *WriteAheadLog) WriteSetTable(schema, table string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.records = append(w.records, WALRecord{Type: WALSetTable, SchemaName: schema, TableName: table})
	w.log.Debug().Str("schema", schema).Str("table", table).Msg("wal set table")
}

// WriteInsert records one chunk of appended rows
func (w *WriteAheadLog) WriteInsert(chunk *storage.DataChunk) error {
	rows := make([]storage.Row, chunk.Size())
	for i := 0; i < chunk.Size(); i++ {
		rows[i] = chunk.Row(i)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.records = append(w.records, WALRecord{Type: WALInsert, Rows: rows})
	w.log.Debug().Int("rows", len(rows)).Msg("wal insert")
	return nil
}

// Records returns a snapshot of the logged records
func (w *WriteAheadLog) Records() []WALRecord {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]WALRecord, len(w.records))
	copy(out, w.records)
	return out
}

// Len returns the number of logged records
func (w *WriteAheadLog) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.records)
}
