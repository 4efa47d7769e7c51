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
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTextWriterFactoryRequiresColumn(t *testing.T) {
	_, err := NewTextWriterFactory(TextWriterOptions{})
	require.Error(t, err)
}

func TestTextWriterSuffix(t *testing.T) {
	plain, err := NewTextWriterFactory(TextWriterOptions{Column: "line"})
	require.NoError(t, err)
	assert.Equal(t, "txt", plain.Suffix())

	compressed, err := NewTextWriterFactory(TextWriterOptions{Column: "line", Compress: true})
	require.NoError(t, err)
	assert.Equal(t, "txt.zst", compressed.Suffix())
}

func TestTextWriterLines(t *testing.T) {
	factory, err := NewTextWriterFactory(TextWriterOptions{Column: "msg"})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out.txt")
	tw, err := factory.NewTableWriter(path)
	require.NoError(t, err)

	require.NoError(t, tw.AppendRow(Row{"msg": "hello"}))
	require.NoError(t, tw.AppendRow(Row{"msg": int64(42)}))
	require.NoError(t, tw.AppendRow(Row{"other": "ignored"})) // missing column
	require.NoError(t, tw.Finish())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello\n42\n\n", string(raw))
}

func TestTextWriterCompressedRoundtrip(t *testing.T) {
	factory, err := NewTextWriterFactory(TextWriterOptions{Column: "msg", Compress: true})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out.txt.zst")
	tw, err := factory.NewTableWriter(path)
	require.NoError(t, err)
	require.NoError(t, tw.AppendRow(Row{"msg": "first"}))
	require.NoError(t, tw.AppendRow(Row{"msg": "second"}))
	require.NoError(t, tw.Finish())

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	dec, err := zstd.NewReader(file)
	require.NoError(t, err)
	defer dec.Close()

	raw, err := io.ReadAll(dec)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", string(raw))
}

func TestTextWriterBytesWrittenCountsTerminator(t *testing.T) {
	factory, err := NewTextWriterFactory(TextWriterOptions{Column: "msg"})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out.txt")
	tw, err := factory.NewTableWriter(path)
	require.NoError(t, err)

	require.NoError(t, tw.AppendRow(Row{"msg": "abc"}))
	assert.Equal(t, int64(4), tw.BytesWritten())
	require.NoError(t, tw.AppendRow(Row{"msg": "de"}))
	assert.Equal(t, int64(7), tw.BytesWritten())
	require.NoError(t, tw.Finish())
}
