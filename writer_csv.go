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
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
)

// CSVWriterOptions configures the CSV table writer.
type CSVWriterOptions struct {
	// Columns is the output column order. Required. Row values for columns
	// not listed here are dropped; listed columns missing from a row render
	// as empty cells.
	Columns []string

	// Header writes the column names as the first record of every part-file.
	Header bool

	// UseCRLF terminates records with \r\n instead of \n.
	UseCRLF bool

	// Compress wraps the output in a zstd stream and appends ".zst" to the
	// part-file suffix.
	Compress bool

	// CompressionLevel is the zstd level (1-22). Zero means
	// DefaultCompressionLevel.
	CompressionLevel int
}

// CSVWriterFactory creates CSV table writers.
type CSVWriterFactory struct {
	opts CSVWriterOptions
}

// NewCSVWriterFactory validates the options and returns a factory.
func NewCSVWriterFactory(opts CSVWriterOptions) (*CSVWriterFactory, error) {
	if len(opts.Columns) == 0 {
		return nil, errors.New("datasetwriter: CSV writer requires at least one column")
	}
	return &CSVWriterFactory{opts: opts}, nil
}

func (f *CSVWriterFactory) Suffix() string {
	if f.opts.Compress {
		return "csv.zst"
	}
	return "csv"
}

func (f *CSVWriterFactory) NewTableWriter(path string) (TableWriter, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}

	var sink io.Writer = file
	var zw io.WriteCloser
	if f.opts.Compress {
		zw = newZstdWriter(file, f.opts.CompressionLevel)
		sink = zw
	}

	// The counter sits between the CSV encoder and the compressor, so
	// BytesWritten reports uncompressed CSV bytes.
	cw := &countingWriter{w: sink}
	w := csv.NewWriter(cw)
	w.UseCRLF = f.opts.UseCRLF

	tw := &csvTableWriter{
		file:    file,
		zw:      zw,
		cw:      cw,
		w:       w,
		columns: f.opts.Columns,
	}

	if f.opts.Header {
		if err := w.Write(f.opts.Columns); err != nil {
			_ = tw.Finish()
			return nil, fmt.Errorf("write CSV header to %s: %w", path, err)
		}
	}
	return tw, nil
}

type csvTableWriter struct {
	file     *os.File
	zw       io.WriteCloser // nil without compression
	cw       *countingWriter
	w        *csv.Writer
	columns  []string
	finished bool
}

func (t *csvTableWriter) AppendRow(row Row) error {
	record := make([]string, len(t.columns))
	for i, col := range t.columns {
		record[i] = formatColumnValue(row[col])
	}
	if err := t.w.Write(record); err != nil {
		return fmt.Errorf("encode CSV record: %w", err)
	}

	// Flush each record so BytesWritten tracks output as it accumulates;
	// the zstd layer (or the OS) still batches the actual writes.
	t.w.Flush()
	if err := t.w.Error(); err != nil {
		return fmt.Errorf("flush CSV record: %w", err)
	}
	return nil
}

func (t *csvTableWriter) BytesWritten() int64 {
	return t.cw.n
}

func (t *csvTableWriter) Finish() error {
	if t.finished {
		return nil
	}
	t.finished = true

	t.w.Flush()
	err := t.w.Error()

	if t.zw != nil {
		if cerr := t.zw.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if cerr := t.file.Close(); cerr != nil && err == nil {
		err = cerr
	}

	if err != nil {
		return fmt.Errorf("finish %s: %w", t.file.Name(), err)
	}
	return nil
}
