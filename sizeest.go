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

import "encoding/json"

// estimateRowBytes does a rough content-based calculation of a row's encoded
// size. Columnar codecs buffer rows in memory and only hit the file at row
// group or record batch boundaries, so their BytesWritten uses this estimate
// to stay monotone between flushes.
func estimateRowBytes(row Row) int64 {
	var size int64

	for key, value := range row {
		// Key overhead (column name + some metadata)
		size += int64(len(key)) + 8

		switch v := value.(type) {
		case nil:
			size += 1 // Null marker
		case bool:
			size += 1
		case int, int32, int64:
			size += 8
		case float32:
			size += 4
		case float64:
			size += 8
		case string:
			size += int64(len(v)) + 4 // String length + length prefix
		case []byte:
			size += int64(len(v)) + 4
		default:
			// For complex types, use JSON marshaling as a rough estimate
			if data, err := json.Marshal(v); err == nil {
				size += int64(len(data)) + 4
			} else {
				size += 20 // Fallback for unknown types
			}
		}
	}

	return size
}
