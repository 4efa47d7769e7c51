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
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// DefaultCompressionLevel is the zstd level used when a writer's options
// leave CompressionLevel at zero.
const DefaultCompressionLevel = 3

// Encoders allocate large history buffers, so they are pooled per level and
// reset against each new output stream instead of being rebuilt per
// part-file.
var zstdEncoderPools sync.Map // map[zstd.EncoderLevel]*sync.Pool

func zstdEncoderPool(level zstd.EncoderLevel) *sync.Pool {
	if pool, ok := zstdEncoderPools.Load(level); ok {
		return pool.(*sync.Pool)
	}

	newPool := &sync.Pool{
		New: func() any {
			enc, _ := zstd.NewWriter(nil,
				zstd.WithZeroFrames(true),
				zstd.WithEncoderLevel(level),
			)
			return enc
		},
	}

	actual, _ := zstdEncoderPools.LoadOrStore(level, newPool)
	return actual.(*sync.Pool)
}

// pooledZstdWriter wraps a pooled zstd.Encoder and returns it to its pool on
// Close.
type pooledZstdWriter struct {
	enc    *zstd.Encoder
	level  zstd.EncoderLevel
	closed bool
}

// newZstdWriter returns a compressing WriteCloser over w. level is a zstd
// compression level in the native 1-22 range.
func newZstdWriter(w io.Writer, level int) io.WriteCloser {
	if level <= 0 {
		level = DefaultCompressionLevel
	}
	encLevel := zstd.EncoderLevelFromZstd(level)

	enc := zstdEncoderPool(encLevel).Get().(*zstd.Encoder)
	enc.Reset(w)

	return &pooledZstdWriter{enc: enc, level: encLevel}
}

func (w *pooledZstdWriter) Write(p []byte) (int, error) {
	return w.enc.Write(p)
}

// Close flushes the frame and returns the encoder to the pool. Idempotent.
func (w *pooledZstdWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	err := w.enc.Close()
	w.enc.Reset(nil)
	zstdEncoderPool(w.level).Put(w.enc)
	w.enc = nil
	return err
}
