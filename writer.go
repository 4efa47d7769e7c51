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

// Package datasetwriter writes a logical dataset as a directory of part-files
// from many worker goroutines in parallel. Each worker owns an exclusive,
// lazily created table writer; once a writer's accumulated output crosses the
// configured target size it is finalized and a fresh part-file is started, so
// every finalized part-file is a complete, independently readable unit.
//
// CSV, line-oriented text, Arrow IPC, and Parquet table writers are provided;
// any codec can participate by implementing TableWriter and
// TableWriterFactory.
package datasetwriter

import "errors"

// Row is a single data row, keyed by column name.
type Row = map[string]any

// TableWriter is the capability contract every codec backend satisfies.
// A TableWriter owns exactly one part-file and is used by exactly one
// goroutine; implementations need no internal locking.
type TableWriter interface {
	// AppendRow encodes one row into the part-file's buffer or stream.
	AppendRow(row Row) error

	// BytesWritten reports the accumulated output size. It is monotonically
	// non-decreasing between appends; the basis (exact bytes vs. a content
	// estimate) is codec-specific.
	BytesWritten() int64

	// Finish flushes buffered data, writes any trailer, and closes the
	// backing file. It is idempotent: calls after the first are no-ops.
	Finish() error
}

// TableWriterFactory creates TableWriters for new part-files.
type TableWriterFactory interface {
	// NewTableWriter opens a writer for a new part-file at path. The path
	// already carries the factory's suffix.
	NewTableWriter(path string) (TableWriter, error)

	// Suffix returns the file name suffix without a leading dot, such as
	// "parquet" or "csv.zst".
	Suffix() string
}

// Result describes one finalized part-file.
type Result struct {
	// FileName is the absolute path to the part-file.
	FileName string

	// RecordCount is the number of rows written to this file.
	RecordCount int64

	// FileSize is the on-disk size in bytes, or -1 if it could not be
	// determined.
	FileSize int64
}

// WriterConfig configures a ParallelDatasetWriter.
type WriterConfig struct {
	// TargetFileBytes is the rotation threshold checked against
	// TableWriter.BytesWritten after each append. Zero or negative disables
	// rotation; each worker then produces a single part-file. The threshold
	// is checked after the triggering row has been appended, so a part-file
	// may exceed the target by at most one row.
	TargetFileBytes int64

	// FilePrefix is prepended to the sequence index when naming part-files.
	// Defaults to "part-".
	FilePrefix string
}

// DefaultFilePrefix is used when WriterConfig.FilePrefix is empty.
const DefaultFilePrefix = "part-"

// ErrWriterClosed is returned when writing through a dataset writer or slot
// that has already been closed or finalized.
var ErrWriterClosed = errors.New("datasetwriter: writer is already closed")
