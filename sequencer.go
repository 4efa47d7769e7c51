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
	"strings"
	"sync/atomic"
)

// partSequencer allocates unique, monotonically increasing part-file base
// names within one dataset directory. Safe for concurrent use from any
// number of goroutines.
type partSequencer struct {
	prefix string
	next   atomic.Uint64
}

func newPartSequencer(prefix string) *partSequencer {
	if prefix == "" {
		prefix = DefaultFilePrefix
	}
	return &partSequencer{prefix: prefix}
}

// nextBase returns the next base name, e.g. "part-000017". Indices are
// zero-padded so a lexicographic directory listing matches index order.
func (s *partSequencer) nextBase() string {
	return fmt.Sprintf("%s%06d", s.prefix, s.next.Add(1)-1)
}

// composePartName joins a base name and a suffix such as "parquet" or
// "csv.zst". Stray dots on either side are trimmed first so the result never
// contains a doubled separator, regardless of how the prefix or suffix were
// spelled.
func composePartName(base, suffix string) string {
	base = strings.TrimRight(base, ".")
	suffix = strings.Trim(suffix, ".")
	if suffix == "" {
		return base
	}
	return base + "." + suffix
}
