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
	"bytes"
	"io"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zstdRoundtrip(t *testing.T, level int, payload []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := newZstdWriter(&buf, level)
	_, err := zw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	dec, err := zstd.NewReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer dec.Close()

	out, err := io.ReadAll(dec)
	require.NoError(t, err)
	return out
}

func TestZstdWriterRoundtrip(t *testing.T) {
	payload := bytes.Repeat([]byte("some compressible payload\n"), 100)
	assert.Equal(t, payload, zstdRoundtrip(t, 0, payload))
	assert.Equal(t, payload, zstdRoundtrip(t, 1, payload))
	assert.Equal(t, payload, zstdRoundtrip(t, 19, payload))
}

func TestZstdWriterEmptyStream(t *testing.T) {
	// WithZeroFrames makes even an empty part-file a valid zstd frame.
	assert.Empty(t, zstdRoundtrip(t, 0, nil))
}

func TestZstdWriterCloseIdempotent(t *testing.T) {
	var buf bytes.Buffer
	zw := newZstdWriter(&buf, 0)
	_, err := zw.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, zw.Close())
}

func TestZstdWriterPoolReuse(t *testing.T) {
	// Sequential writers at the same level reuse pooled encoders; each must
	// still produce an independent, decodable frame.
	first := bytes.Repeat([]byte("first stream "), 50)
	second := bytes.Repeat([]byte("second stream "), 50)
	assert.Equal(t, first, zstdRoundtrip(t, 3, first))
	assert.Equal(t, second, zstdRoundtrip(t, 3, second))
}
