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
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/hashicorp/go-multierror"
)

// KeyFunc derives the partition key from a row. It must be a pure function
// of the row: equal keys always route to the same nested dataset.
type KeyFunc func(row Row) (string, error)

// ColumnKey partitions by the textual value of a single column. Rows missing
// the column fail with a KeyError.
func ColumnKey(column string) KeyFunc {
	return func(row Row) (string, error) {
		v, ok := row[column]
		if !ok {
			return "", &KeyError{Column: column, Err: errors.New("column missing from row")}
		}
		return formatColumnValue(v), nil
	}
}

// HashBucketKey partitions by hashing a column's textual value into a fixed
// number of buckets, for fanout-style layouts where the key cardinality is
// unbounded. Bucket keys are decimal strings "0".."N-1".
func HashBucketKey(column string, buckets uint16) KeyFunc {
	if buckets == 0 {
		buckets = 1
	}
	return func(row Row) (string, error) {
		v, ok := row[column]
		if !ok {
			return "", &KeyError{Column: column, Err: errors.New("column missing from row")}
		}
		h := xxhash.Sum64String(formatColumnValue(v))
		return strconv.FormatUint(h%uint64(buckets), 10), nil
	}
}

// PartitionedConfig configures a PartitionedDatasetWriter.
type PartitionedConfig struct {
	WriterConfig

	// PartitionColumn, when set, names nested directories "column=value"
	// (Hive style) instead of the bare sanitized key.
	PartitionColumn string
}

// PartitionedDatasetWriter routes rows into nested ParallelDatasetWriters
// keyed by a row-derived partition value. Nested writers and their
// sub-directories are created on first use; the registry only ever grows for
// the writer's lifetime.
type PartitionedDatasetWriter struct {
	dir     string
	keyFn   KeyFunc
	factory TableWriterFactory
	config  PartitionedConfig

	parts  sync.Map // partition key -> *partitionEntry
	closed atomic.Bool
}

// partitionEntry guards exactly-once construction of a nested writer when
// several workers discover the same new key concurrently: LoadOrStore picks
// a single winning entry and its Once runs the constructor once.
type partitionEntry struct {
	once sync.Once
	ds   *ParallelDatasetWriter
	err  error
}

// NewPartitionedDatasetWriter creates the base directory if absent and
// returns a partitioned writer over it.
func NewPartitionedDatasetWriter(dir string, keyFn KeyFunc, factory TableWriterFactory, config PartitionedConfig) (*PartitionedDatasetWriter, error) {
	if keyFn == nil {
		return nil, errors.New("datasetwriter: key function cannot be nil")
	}

	// Validate the base directory eagerly; nested directories are created
	// per partition on first use.
	base, err := NewParallelDatasetWriter(dir, factory, config.WriterConfig)
	if err != nil {
		return nil, err
	}

	return &PartitionedDatasetWriter{
		dir:     base.Dir(),
		keyFn:   keyFn,
		factory: factory,
		config:  config,
	}, nil
}

// Dir returns the base directory path.
func (p *PartitionedDatasetWriter) Dir() string { return p.dir }

// dataset returns the nested writer for key, constructing it exactly once
// across all workers.
func (p *PartitionedDatasetWriter) dataset(key string) (*ParallelDatasetWriter, error) {
	if p.closed.Load() {
		return nil, ErrWriterClosed
	}

	v, _ := p.parts.LoadOrStore(key, &partitionEntry{})
	entry := v.(*partitionEntry)
	entry.once.Do(func() {
		sub := filepath.Join(p.dir, p.partitionSegment(key))
		entry.ds, entry.err = NewParallelDatasetWriter(sub, p.factory, p.config.WriterConfig)
	})
	if entry.err != nil {
		return nil, fmt.Errorf("create partition %q: %w", key, entry.err)
	}
	return entry.ds, nil
}

// ThreadWriter returns a per-worker handle that routes each row to the
// worker's slot in the row's partition. The handle caches nested slots
// locally, so after a key's first sighting the per-row path is lock-free.
func (p *PartitionedDatasetWriter) ThreadWriter() *PartitionedThreadWriter {
	return &PartitionedThreadWriter{
		p:     p,
		slots: make(map[string]*ThreadWriter),
	}
}

// Close finalizes every nested dataset writer in the registry and returns
// their part-file metadata keyed by partition. Must be called after all
// worker goroutines have stopped writing.
func (p *PartitionedDatasetWriter) Close(ctx context.Context) (map[string][]Result, error) {
	p.closed.Store(true)

	results := make(map[string][]Result)
	var errs *multierror.Error
	p.parts.Range(func(k, v any) bool {
		entry := v.(*partitionEntry)
		if entry.ds == nil {
			return true
		}
		res, err := entry.ds.Close(ctx)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("partition %q: %w", k, err))
		}
		results[k.(string)] = res
		return true
	})
	return results, errs.ErrorOrNil()
}

// Abort aborts every nested dataset writer, removing all produced files.
func (p *PartitionedDatasetWriter) Abort() {
	p.closed.Store(true)
	p.parts.Range(func(_, v any) bool {
		if entry := v.(*partitionEntry); entry.ds != nil {
			entry.ds.Abort()
		}
		return true
	})
}

func (p *PartitionedDatasetWriter) partitionSegment(key string) string {
	value := sanitizePartitionValue(key)
	if p.config.PartitionColumn == "" {
		return value
	}
	return p.config.PartitionColumn + "=" + value
}

// PartitionedThreadWriter is a worker goroutine's handle into a partitioned
// dataset. Not safe for sharing between goroutines.
type PartitionedThreadWriter struct {
	p     *PartitionedDatasetWriter
	slots map[string]*ThreadWriter
}

// Write extracts the row's partition key and appends the row to this
// worker's slot in that partition's nested dataset.
func (t *PartitionedThreadWriter) Write(row Row) error {
	key, err := t.p.keyFn(row)
	if err != nil {
		return err
	}

	slot, ok := t.slots[key]
	if !ok {
		ds, err := t.p.dataset(key)
		if err != nil {
			return err
		}
		slot = ds.ThreadWriter()
		t.slots[key] = slot
	}
	return slot.Write(row)
}

// Close finalizes this worker's slots across all partitions it wrote to.
func (t *PartitionedThreadWriter) Close() error {
	var errs *multierror.Error
	for _, slot := range t.slots {
		if err := slot.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

// hiveDefaultPartition is the directory name used for the empty partition
// key, following the Hive/Iceberg convention for null partition values.
const hiveDefaultPartition = "__HIVE_DEFAULT_PARTITION__"

// sanitizePartitionValue turns an arbitrary partition key into a safe path
// segment. Bytes outside [A-Za-z0-9._-] are percent-encoded, as is a leading
// dot (no hidden-file or ".." segments). Since '%' itself is encoded the
// mapping is injective: distinct keys never share a directory.
func sanitizePartitionValue(key string) string {
	if key == "" {
		return hiveDefaultPartition
	}

	// A literal key spelled like the empty-key segment must not share its
	// directory; encoding the first byte keeps the mapping injective.
	if key == hiveDefaultPartition {
		return "%5F" + key[1:]
	}

	var b strings.Builder
	b.Grow(len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		if partitionSafeByte(c) && !(c == '.' && i == 0) {
			b.WriteByte(c)
			continue
		}
		b.WriteString(fmt.Sprintf("%%%02X", c))
	}
	return b.String()
}

func partitionSafeByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z':
		return true
	case c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == '.' || c == '_' || c == '-':
		return true
	}
	return false
}
