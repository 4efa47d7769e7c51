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

	"github.com/parquet-go/parquet-go"
)

// ParquetWriterOptions configures the Parquet table writer.
type ParquetWriterOptions struct {
	// Schema is the parquet schema every row must conform to. Required; use
	// SchemaBuilder to derive one from sample rows.
	Schema *parquet.Schema

	// MaxRowsPerRowGroup bounds row group size. Zero uses the default.
	MaxRowsPerRowGroup int64
}

const defaultMaxRowsPerRowGroup = 80_000

// ParquetWriterFactory creates Parquet table writers.
type ParquetWriterFactory struct {
	opts ParquetWriterOptions
}

// NewParquetWriterFactory validates the options and returns a factory.
func NewParquetWriterFactory(opts ParquetWriterOptions) (*ParquetWriterFactory, error) {
	if opts.Schema == nil {
		return nil, errors.New("datasetwriter: Parquet writer requires a schema")
	}
	if opts.MaxRowsPerRowGroup <= 0 {
		opts.MaxRowsPerRowGroup = defaultMaxRowsPerRowGroup
	}
	return &ParquetWriterFactory{opts: opts}, nil
}

func (f *ParquetWriterFactory) Suffix() string { return "parquet" }

func (f *ParquetWriterFactory) NewTableWriter(path string) (TableWriter, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}

	config, err := parquet.NewWriterConfig(
		f.opts.Schema,
		parquet.Compression(&parquet.Zstd),
		parquet.PageBufferSize(32*1024),
		parquet.MaxRowsPerRowGroup(f.opts.MaxRowsPerRowGroup),
	)
	if err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("create writer config for %s: %w", path, err)
	}

	cw := &countingWriter{w: file}
	return &parquetTableWriter{
		file: file,
		cw:   cw,
		w:    parquet.NewGenericWriter[map[string]any](cw, config),
	}, nil
}

type parquetTableWriter struct {
	file     *os.File
	cw       *countingWriter
	w        *parquet.GenericWriter[map[string]any]
	logical  int64
	finished bool
}

func (t *parquetTableWriter) AppendRow(row Row) error {
	if _, err := t.w.Write([]map[string]any{row}); err != nil {
		return fmt.Errorf("write row to parquet: %w", err)
	}
	t.logical += estimateRowBytes(row)
	return nil
}

// BytesWritten combines the bytes already flushed to the file with the
// content estimate for rows still buffered in the current row group. Both
// terms are monotone, so the maximum is too.
func (t *parquetTableWriter) BytesWritten() int64 {
	return max(t.cw.n, t.logical)
}

func (t *parquetTableWriter) Finish() error {
	if t.finished {
		return nil
	}
	t.finished = true

	err := t.w.Close()
	if cerr := t.file.Close(); cerr != nil && err == nil {
		err = cerr
	}

	if err != nil {
		return fmt.Errorf("finish %s: %w", t.file.Name(), err)
	}
	return nil
}
