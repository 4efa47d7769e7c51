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

// DirectoryError reports that a dataset directory could not be created or
// exists as something other than a directory.
type DirectoryError struct {
	Path string
	Err  error
}

func (e *DirectoryError) Error() string {
	return "datasetwriter: directory " + e.Path + ": " + e.Err.Error()
}

func (e *DirectoryError) Unwrap() error { return e.Err }

// KeyError reports that a partition key could not be extracted from a row.
type KeyError struct {
	Column string
	Err    error
}

func (e *KeyError) Error() string {
	if e.Column == "" {
		return "datasetwriter: partition key: " + e.Err.Error()
	}
	return "datasetwriter: partition key " + e.Column + ": " + e.Err.Error()
}

func (e *KeyError) Unwrap() error { return e.Err }
