// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package datasetwriter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartitionRoutingAlternatingKeys(t *testing.T) {
	dir := t.TempDir()
	pw, err := NewPartitionedDatasetWriter(dir, ColumnKey("category"), testCSVFactory(t, false),
		PartitionedConfig{PartitionColumn: "category"})
	require.NoError(t, err)

	slot := pw.ThreadWriter()
	for i := range int64(100) {
		category := "a"
		if i%2 == 1 {
			category = "b"
		}
		require.NoError(t, slot.Write(testRow(i, category)))
	}

	byPartition, err := pw.Close(context.Background())
	require.NoError(t, err)
	require.Len(t, byPartition, 2)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		require.True(t, e.IsDir())
		names = append(names, e.Name())
	}
	sort.Strings(names)
	assert.Equal(t, []string{"category=a", "category=b"}, names)

	// Each nested dataset holds only rows tagged with its key.
	for key, results := range byPartition {
		for _, res := range results {
			assert.Contains(t, res.FileName, "category="+key)
			for _, rec := range decodeCSVPart(t, res.FileName) {
				assert.Equal(t, key, rec[1])
			}
		}
	}
}

func TestPartitionBareKeyDirectories(t *testing.T) {
	dir := t.TempDir()
	pw, err := NewPartitionedDatasetWriter(dir, ColumnKey("category"), testCSVFactory(t, false),
		PartitionedConfig{})
	require.NoError(t, err)

	slot := pw.ThreadWriter()
	require.NoError(t, slot.Write(testRow(1, "a")))

	_, err = pw.Close(context.Background())
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "a"))
	assert.NoError(t, err)
}

func TestPartitionExactlyOnceConstructionUnderRace(t *testing.T) {
	const goroutines = 32

	dir := t.TempDir()
	pw, err := NewPartitionedDatasetWriter(dir, ColumnKey("category"), testCSVFactory(t, false),
		PartitionedConfig{})
	require.NoError(t, err)

	// Barrier-release all workers on the same fresh key simultaneously.
	var start, done sync.WaitGroup
	start.Add(1)
	done.Add(goroutines)
	for i := range goroutines {
		slot := pw.ThreadWriter()
		go func() {
			defer done.Done()
			start.Wait()
			assert.NoError(t, slot.Write(testRow(int64(i), "fresh")))
		}()
	}
	start.Done()
	done.Wait()

	byPartition, err := pw.Close(context.Background())
	require.NoError(t, err)
	require.Len(t, byPartition, 1)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "exactly one nested dataset per key")

	// A single shared sequencer means dense part indices: a second writer
	// racing into existence would have restarted numbering and collided.
	results := byPartition["fresh"]
	require.Len(t, results, goroutines)
	names := make(map[string]bool)
	rows := 0
	for _, res := range results {
		require.False(t, names[res.FileName], "duplicate part-file %s", res.FileName)
		names[res.FileName] = true
		rows += int(res.RecordCount)
	}
	assert.Equal(t, goroutines, rows)
	for i := range goroutines {
		expect := filepath.Join(dir, "fresh", fmt.Sprintf("part-%06d.csv", i))
		assert.True(t, names[expect], "missing sequential part-file %s", expect)
	}
}

func TestColumnKeyMissingColumn(t *testing.T) {
	pw, err := NewPartitionedDatasetWriter(t.TempDir(), ColumnKey("category"), testCSVFactory(t, false),
		PartitionedConfig{})
	require.NoError(t, err)
	defer pw.Abort()

	slot := pw.ThreadWriter()
	err = slot.Write(Row{"id": int64(1)})
	require.Error(t, err)

	var keyErr *KeyError
	require.ErrorAs(t, err, &keyErr)
	assert.Equal(t, "category", keyErr.Column)
}

func TestHashBucketKeyStableRouting(t *testing.T) {
	keyFn := HashBucketKey("category", 4)

	first, err := keyFn(testRow(1, "some-value"))
	require.NoError(t, err)
	for range 10 {
		again, err := keyFn(testRow(99, "some-value"))
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	// Many distinct values should spread across more than one bucket.
	buckets := make(map[string]bool)
	for i := range 100 {
		key, err := keyFn(testRow(0, fmt.Sprintf("value-%d", i)))
		require.NoError(t, err)
		buckets[key] = true
	}
	assert.Greater(t, len(buckets), 1)
	assert.LessOrEqual(t, len(buckets), 4)
}

func TestPartitionedWriteAfterCloseFails(t *testing.T) {
	pw, err := NewPartitionedDatasetWriter(t.TempDir(), ColumnKey("category"), testCSVFactory(t, false),
		PartitionedConfig{})
	require.NoError(t, err)

	slot := pw.ThreadWriter()
	require.NoError(t, slot.Write(testRow(1, "a")))

	_, err = pw.Close(context.Background())
	require.NoError(t, err)

	assert.ErrorIs(t, slot.Write(testRow(2, "a")), ErrWriterClosed)
	assert.ErrorIs(t, slot.Write(testRow(3, "z")), ErrWriterClosed)
}

func TestPartitionedAbortRemovesFiles(t *testing.T) {
	dir := t.TempDir()
	pw, err := NewPartitionedDatasetWriter(dir, ColumnKey("category"), testCSVFactory(t, false),
		PartitionedConfig{})
	require.NoError(t, err)

	slot := pw.ThreadWriter()
	require.NoError(t, slot.Write(testRow(1, "a")))
	require.NoError(t, slot.Write(testRow(2, "b")))

	pw.Abort()

	for _, sub := range []string{"a", "b"} {
		entries, err := os.ReadDir(filepath.Join(dir, sub))
		require.NoError(t, err)
		assert.Empty(t, entries)
	}
}

func TestSanitizePartitionValue(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want string
	}{
		{name: "plain", key: "region-us_east.1", want: "region-us_east.1"},
		{name: "empty", key: "", want: "__HIVE_DEFAULT_PARTITION__"},
		{name: "path separator", key: "a/b", want: "a%2Fb"},
		{name: "backslash", key: `a\b`, want: "a%5Cb"},
		{name: "space", key: "a b", want: "a%20b"},
		{name: "percent is escaped", key: "100%", want: "100%25"},
		{name: "literal default segment", key: "__HIVE_DEFAULT_PARTITION__", want: "%5F_HIVE_DEFAULT_PARTITION__"},
		{name: "leading dot", key: ".hidden", want: "%2Ehidden"},
		{name: "dot dot", key: "..", want: "%2E."},
		{name: "non-ascii", key: "é", want: "%C3%A9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizePartitionValue(tt.key))
		})
	}
}

func TestPartitionEmptyKeyDistinctFromLiteralDefault(t *testing.T) {
	dir := t.TempDir()
	pw, err := NewPartitionedDatasetWriter(dir, ColumnKey("category"), testCSVFactory(t, false),
		PartitionedConfig{})
	require.NoError(t, err)

	slot := pw.ThreadWriter()
	require.NoError(t, slot.Write(testRow(1, "")))
	require.NoError(t, slot.Write(testRow(2, hiveDefaultPartition)))

	byPartition, err := pw.Close(context.Background())
	require.NoError(t, err)
	require.Len(t, byPartition, 2)

	// Two registry entries must mean two directories; a shared directory
	// would give both sequencers the same part-file names.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var total int64
	for _, results := range byPartition {
		require.Len(t, results, 1)
		total += results[0].RecordCount
	}
	assert.Equal(t, int64(2), total)
}

func TestSanitizePartitionValueInjective(t *testing.T) {
	keys := []string{"a/b", "a%2Fb", "a b", "a%20b", "", "__HIVE_DEFAULT_PARTITION__"}
	seen := make(map[string]string)
	for _, key := range keys {
		seg := sanitizePartitionValue(key)
		prev, dup := seen[seg]
		require.False(t, dup, "keys %q and %q map to the same segment %q", prev, key, seg)
		seen[seg] = key
	}
}
