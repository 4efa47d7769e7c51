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
	"os"
	"slices"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// ParallelDatasetWriter writes one dataset directory from many worker
// goroutines. Each worker obtains its own ThreadWriter slot; the only state
// shared across workers is the part-file sequencer and the slot registry
// used at teardown.
type ParallelDatasetWriter struct {
	dir     string
	factory TableWriterFactory
	config  WriterConfig
	seq     *partSequencer

	mu      sync.Mutex
	slots   []*ThreadWriter
	results []Result
	closed  bool
}

// NewParallelDatasetWriter creates the dataset directory if absent and
// returns a writer for it. It fails with a DirectoryError if the path exists
// as a non-directory or cannot be created.
func NewParallelDatasetWriter(dir string, factory TableWriterFactory, config WriterConfig) (*ParallelDatasetWriter, error) {
	if factory == nil {
		return nil, errors.New("datasetwriter: factory cannot be nil")
	}

	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		return nil, &DirectoryError{Path: dir, Err: errors.New("exists and is not a directory")}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &DirectoryError{Path: dir, Err: err}
	}

	return &ParallelDatasetWriter{
		dir:     dir,
		factory: factory,
		config:  config,
		seq:     newPartSequencer(config.FilePrefix),
	}, nil
}

// Dir returns the dataset directory path.
func (d *ParallelDatasetWriter) Dir() string { return d.dir }

// ThreadWriter registers and returns a new writer slot. Each worker
// goroutine calls this once and uses the returned slot for its entire
// row-production loop; the slot itself is not safe for sharing.
func (d *ParallelDatasetWriter) ThreadWriter() *ThreadWriter {
	slot := &ThreadWriter{ds: d}
	d.mu.Lock()
	d.slots = append(d.slots, slot)
	d.mu.Unlock()
	return slot
}

// recordResult stats the finalized part-file and appends its metadata.
// Called off the per-row hot path, only at rotation or teardown.
func (d *ParallelDatasetWriter) recordResult(path string, rows int64) {
	var size int64 = -1
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}

	d.mu.Lock()
	d.results = append(d.results, Result{FileName: path, RecordCount: rows, FileSize: size})
	d.mu.Unlock()
}

// Close finalizes every slot ever created and returns metadata for all
// part-files produced. It must be called after all worker goroutines have
// stopped writing. Calling Close again returns the same results.
func (d *ParallelDatasetWriter) Close(ctx context.Context) ([]Result, error) {
	d.mu.Lock()
	if d.closed {
		results := d.results
		d.mu.Unlock()
		return results, nil
	}
	d.closed = true
	slots := slices.Clone(d.slots)
	d.mu.Unlock()

	var errs *multierror.Error
	for _, slot := range slots {
		if err := slot.finalize(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	d.mu.Lock()
	results := d.results
	d.mu.Unlock()
	return results, errs.ErrorOrNil()
}

// Abort closes all slots and removes every part-file this writer produced,
// finalized or not. Can be called multiple times safely.
func (d *ParallelDatasetWriter) Abort() {
	d.mu.Lock()
	d.closed = true
	slots := slices.Clone(d.slots)
	results := d.results
	d.results = nil
	d.mu.Unlock()

	for _, slot := range slots {
		slot.abort()
	}
	for _, result := range results {
		_ = os.Remove(result.FileName)
	}
}
