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
	"fmt"
	"os"
	"path/filepath"
)

// ThreadWriter is a worker goroutine's exclusive writer slot within one
// dataset. It holds at most one open TableWriter, created lazily on the
// first row and re-created after each rotation. A ThreadWriter must only be
// used by the goroutine that obtained it; the per-row path takes no locks.
type ThreadWriter struct {
	ds        *ParallelDatasetWriter
	current   TableWriter // nil until first row and between rotations
	path      string
	rows      int64
	finalized bool
}

// Write appends one row, rotating to a fresh part-file once the current
// writer's accumulated size reaches the configured target. The rotation
// check runs after the append, so a part-file may exceed the target by at
// most one row and a finalized part-file is never empty.
func (t *ThreadWriter) Write(row Row) error {
	if t.finalized {
		return ErrWriterClosed
	}

	if t.current == nil {
		if err := t.open(); err != nil {
			return err
		}
	}

	if err := t.current.AppendRow(row); err != nil {
		return fmt.Errorf("append row to %s: %w", t.path, err)
	}
	t.rows++

	if limit := t.ds.config.TargetFileBytes; limit > 0 && t.current.BytesWritten() >= limit {
		return t.rotate()
	}
	return nil
}

// Close finalizes the slot's current writer, if any. Idempotent. Workers may
// call it when they finish producing; the dataset's Close finalizes any
// slots still open.
func (t *ThreadWriter) Close() error {
	return t.finalize()
}

func (t *ThreadWriter) open() error {
	name := composePartName(t.ds.seq.nextBase(), t.ds.factory.Suffix())
	path := filepath.Join(t.ds.dir, name)

	tw, err := t.ds.factory.NewTableWriter(path)
	if err != nil {
		return fmt.Errorf("create table writer for %s: %w", path, err)
	}

	t.current = tw
	t.path = path
	t.rows = 0
	return nil
}

// rotate finishes the current part-file and leaves the slot empty; the next
// Write lazily opens a replacement, so a worker that stops producing never
// leaves an empty trailing file.
func (t *ThreadWriter) rotate() error {
	if err := t.current.Finish(); err != nil {
		return fmt.Errorf("finish %s: %w", t.path, err)
	}
	t.ds.recordResult(t.path, t.rows)
	t.current = nil
	t.rows = 0
	return nil
}

func (t *ThreadWriter) finalize() error {
	if t.finalized {
		return nil
	}
	t.finalized = true

	if t.current == nil {
		return nil
	}

	err := t.current.Finish()
	if err == nil {
		t.ds.recordResult(t.path, t.rows)
	}
	t.current = nil
	if err != nil {
		return fmt.Errorf("finish %s: %w", t.path, err)
	}
	return nil
}

// abort closes and removes the slot's open part-file, if any.
func (t *ThreadWriter) abort() {
	t.finalized = true
	if t.current != nil {
		_ = t.current.Finish()
		_ = os.Remove(t.path)
		t.current = nil
	}
}
