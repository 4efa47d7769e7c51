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
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// ArrowIPCWriterOptions configures the Arrow IPC file writer.
type ArrowIPCWriterOptions struct {
	// Schema is the Arrow schema every row must conform to. Required; use
	// InferArrowSchema to derive one from a sample row.
	Schema *arrow.Schema

	// ChunkSize is the number of rows buffered per record batch. Zero uses
	// the default of 10000.
	ChunkSize int64

	// Allocator defaults to memory.DefaultAllocator.
	Allocator memory.Allocator
}

const defaultArrowChunkSize = 10000

// ArrowIPCWriterFactory creates Arrow IPC table writers.
type ArrowIPCWriterFactory struct {
	opts ArrowIPCWriterOptions
}

// NewArrowIPCWriterFactory validates the options and returns a factory.
func NewArrowIPCWriterFactory(opts ArrowIPCWriterOptions) (*ArrowIPCWriterFactory, error) {
	if opts.Schema == nil {
		return nil, errors.New("datasetwriter: Arrow IPC writer requires a schema")
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = defaultArrowChunkSize
	}
	if opts.Allocator == nil {
		opts.Allocator = memory.DefaultAllocator
	}
	return &ArrowIPCWriterFactory{opts: opts}, nil
}

func (f *ArrowIPCWriterFactory) Suffix() string { return "arrow" }

func (f *ArrowIPCWriterFactory) NewTableWriter(path string) (TableWriter, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}

	fw, err := ipc.NewFileWriter(file,
		ipc.WithSchema(f.opts.Schema),
		ipc.WithAllocator(f.opts.Allocator),
	)
	if err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("create IPC writer for %s: %w", path, err)
	}

	builder := array.NewRecordBuilder(f.opts.Allocator, f.opts.Schema)
	builder.Reserve(int(f.opts.ChunkSize))

	return &arrowTableWriter{
		file:    file,
		fw:      fw,
		builder: builder,
		schema:  f.opts.Schema,
		chunk:   f.opts.ChunkSize,
	}, nil
}

type arrowTableWriter struct {
	file     *os.File
	fw       *ipc.FileWriter
	builder  *array.RecordBuilder
	schema   *arrow.Schema
	chunk    int64
	pending  int64
	logical  int64
	finished bool
}

// AppendRow appends the row's value for each schema field, null for fields
// the row does not carry. Row columns outside the schema are dropped.
func (t *arrowTableWriter) AppendRow(row Row) error {
	for i, field := range t.schema.Fields() {
		if err := appendArrowValue(t.builder.Field(i), row[field.Name]); err != nil {
			return fmt.Errorf("column %s: %w", field.Name, err)
		}
	}
	t.pending++
	t.logical += estimateRowBytes(row)

	if t.pending >= t.chunk {
		return t.flushPending()
	}
	return nil
}

// BytesWritten is a content estimate: IPC bytes only reach the file at
// record batch boundaries, and an estimate keeps the value monotone.
func (t *arrowTableWriter) BytesWritten() int64 {
	return t.logical
}

// flushPending writes buffered rows as one record batch and releases them.
func (t *arrowTableWriter) flushPending() error {
	if t.pending == 0 {
		return nil
	}

	rec := t.builder.NewRecord()
	defer rec.Release()

	if err := t.fw.Write(rec); err != nil {
		return fmt.Errorf("write record batch: %w", err)
	}

	t.builder.Reserve(int(t.chunk))
	t.pending = 0
	return nil
}

func (t *arrowTableWriter) Finish() error {
	if t.finished {
		return nil
	}
	t.finished = true

	err := t.flushPending()
	t.builder.Release()

	// Close writes the IPC footer; without it the file is unreadable.
	if cerr := t.fw.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("close IPC writer: %w", cerr)
	}
	if cerr := t.file.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// InferArrowSchema derives an Arrow schema from a sample row, with columns
// sorted by name for a deterministic field order.
func InferArrowSchema(sample Row) *arrow.Schema {
	names := make([]string, 0, len(sample))
	for name := range sample {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]arrow.Field, len(names))
	for i, name := range names {
		fields[i] = arrow.Field{Name: name, Type: inferArrowType(sample[name]), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

// inferArrowType infers the Arrow data type from a Go value.
func inferArrowType(value any) arrow.DataType {
	switch value.(type) {
	case bool:
		return arrow.FixedWidthTypes.Boolean
	case int, int32, int64:
		return arrow.PrimitiveTypes.Int64
	case float32, float64:
		return arrow.PrimitiveTypes.Float64
	case string:
		return arrow.BinaryTypes.String
	default:
		return arrow.BinaryTypes.String
	}
}

// appendArrowValue appends a Go value to the appropriate Arrow builder.
func appendArrowValue(builder array.Builder, value any) error {
	if value == nil {
		builder.AppendNull()
		return nil
	}

	switch b := builder.(type) {
	case *array.BooleanBuilder:
		v, ok := value.(bool)
		if !ok {
			return fmt.Errorf("type mismatch: expected bool, got %T", value)
		}
		b.Append(v)
	case *array.Int64Builder:
		switch v := value.(type) {
		case int64:
			b.Append(v)
		case int:
			b.Append(int64(v))
		case int32:
			b.Append(int64(v))
		default:
			return fmt.Errorf("type mismatch: expected int64, got %T", value)
		}
	case *array.Float64Builder:
		switch v := value.(type) {
		case float64:
			b.Append(v)
		case float32:
			b.Append(float64(v))
		default:
			return fmt.Errorf("type mismatch: expected float64, got %T", value)
		}
	case *array.StringBuilder:
		switch v := value.(type) {
		case string:
			b.Append(v)
		default:
			b.Append(formatColumnValue(v))
		}
	default:
		return fmt.Errorf("unsupported builder type: %T", builder)
	}
	return nil
}
