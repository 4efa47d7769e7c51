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
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
)

// TextWriterOptions configures the line-oriented plain text writer, which
// writes one column's value per line.
type TextWriterOptions struct {
	// Column is the row column emitted on each line. Required.
	Column string

	// Compress wraps the output in a zstd stream and appends ".zst" to the
	// part-file suffix.
	Compress bool

	// CompressionLevel is the zstd level (1-22). Zero means
	// DefaultCompressionLevel.
	CompressionLevel int
}

// TextWriterFactory creates plain text table writers.
type TextWriterFactory struct {
	opts TextWriterOptions
}

// NewTextWriterFactory validates the options and returns a factory.
func NewTextWriterFactory(opts TextWriterOptions) (*TextWriterFactory, error) {
	if opts.Column == "" {
		return nil, errors.New("datasetwriter: text writer requires a column")
	}
	return &TextWriterFactory{opts: opts}, nil
}

func (f *TextWriterFactory) Suffix() string {
	if f.opts.Compress {
		return "txt.zst"
	}
	return "txt"
}

func (f *TextWriterFactory) NewTableWriter(path string) (TableWriter, error) {
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

	bufw := bufio.NewWriter(sink)
	return &textTableWriter{
		file:   file,
		zw:     zw,
		bufw:   bufw,
		cw:     &countingWriter{w: bufw},
		column: f.opts.Column,
	}, nil
}

type textTableWriter struct {
	file     *os.File
	zw       io.WriteCloser // nil without compression
	bufw     *bufio.Writer
	cw       *countingWriter
	column   string
	finished bool
}

func (t *textTableWriter) AppendRow(row Row) error {
	line := formatColumnValue(row[t.column])
	if _, err := t.cw.Write([]byte(line)); err != nil {
		return fmt.Errorf("write line: %w", err)
	}
	if _, err := t.cw.Write([]byte{'\n'}); err != nil {
		return fmt.Errorf("write line terminator: %w", err)
	}
	return nil
}

func (t *textTableWriter) BytesWritten() int64 {
	return t.cw.n
}

func (t *textTableWriter) Finish() error {
	if t.finished {
		return nil
	}
	t.finished = true

	err := t.bufw.Flush()

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
