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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pidb/duckdb/internal/storage"
)

func TestCheckpointWritesStatsGroupsAndIndexData(t *testing.T) {
	e := newTestEnv()
	entry := e.createTable(t, "t", []storage.ColumnDefinition{intColumn("a")}, nil)
	addUniqueIndex(entry, "t_a_unique", 0, "a")
	dt := entry.Storage()
	appendCommitted(t, e, entry, intChunk(3, 1, 2))

	writer := NewMemoryTableDataWriter()
	dt.Checkpoint(writer)

	assert.True(t, writer.Finalized)
	assert.Equal(t, "main", writer.SchemaName)
	assert.Equal(t, "t", writer.TableName)
	assert.EqualValues(t, 3, writer.TotalRows)
	assert.Equal(t, []string{"t_a_unique"}, writer.IndexNames)

	require.Len(t, writer.RowGroupsWritten, 1)
	assert.EqualValues(t, 0, writer.RowGroupsWritten[0].Start)
	assert.EqualValues(t, 3, writer.RowGroupsWritten[0].Count)

	require.Len(t, writer.Stats, 1)
	min, _ := writer.Stats[0].Min.AsInt64()
	max, _ := writer.Stats[0].Max.AsInt64()
	assert.EqualValues(t, 1, min)
	assert.EqualValues(t, 3, max)
	assert.EqualValues(t, 0, writer.Stats[0].NullCount)
}

func TestGetStatistics(t *testing.T) {
	e := newTestEnv()
	entry := e.createTable(t, "t", []storage.ColumnDefinition{intColumn("a")}, nil)
	dt := entry.Storage()
	appendCommitted(t, e, entry,
		chunkOf(entry.PhysicalTypes(), storage.Row{iv(5)}, storage.Row{nullInt()}))

	stats := dt.GetStatistics(0)
	require.NotNil(t, stats)
	assert.True(t, stats.HasNull())
	min, _ := stats.Min.AsInt64()
	assert.EqualValues(t, 5, min)

	assert.Nil(t, dt.GetStatistics(storage.RowIDColumnID))

	dt.SetStatistics(0, func(s *ColumnStatistics) { s.NullCount = 0 })
	assert.False(t, dt.GetStatistics(0).HasNull())
}

func TestGetStorageInfo(t *testing.T) {
	e := newTestEnv()
	entry := e.createTable(t, "t", []storage.ColumnDefinition{intColumn("a")}, nil)
	dt := entry.Storage()

	groupRows := int64(storage.VectorSize * dt.RowGroups().VectorCount())
	fillTable(t, e, entry, groupRows+10)

	info := dt.GetStorageInfo()
	require.Len(t, info, 2)
	assert.EqualValues(t, 0, info[0].Start)
	assert.Equal(t, groupRows, info[0].Count)
	assert.Equal(t, groupRows, info[1].Start)
	assert.EqualValues(t, 10, info[1].Count)
	assert.Equal(t, 1, info[0].ColumnCount)
}

func TestCommitDropColumnResetsStats(t *testing.T) {
	e := newTestEnv()
	entry := e.createTable(t, "t", []storage.ColumnDefinition{intColumn("a")}, nil)
	dt := entry.Storage()
	appendCommitted(t, e, entry, intChunk(1, 2))

	require.NotNil(t, dt.GetStatistics(0).Min)
	dt.CommitDropColumn(0)
	assert.Nil(t, dt.GetStatistics(0).Min)
}
