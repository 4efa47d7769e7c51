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
	"errors"
	"fmt"
	"maps"

	"github.com/parquet-go/parquet-go"
)

// ParquetNodeFromValue maps a Go value to an optional parquet node for the
// named column. Scalar integer and string leaves are dictionary-encoded.
func ParquetNodeFromValue(name string, v any) (parquet.Node, error) {
	enc := func(n parquet.Node) parquet.Node {
		if n.Leaf() {
			n = parquet.Encoded(n, &parquet.RLEDictionary)
		}
		return n
	}

	switch v.(type) {
	case bool:
		return parquet.Optional(parquet.Leaf(parquet.BooleanType)), nil
	case []byte:
		return parquet.Optional(parquet.Leaf(parquet.ByteArrayType)), nil

	case int8:
		return parquet.Optional(enc(parquet.Int(8))), nil
	case int16:
		return parquet.Optional(enc(parquet.Int(16))), nil
	case int32:
		return parquet.Optional(enc(parquet.Int(32))), nil
	case int, int64:
		return parquet.Optional(enc(parquet.Int(64))), nil

	case uint8:
		return parquet.Optional(enc(parquet.Uint(8))), nil
	case uint16:
		return parquet.Optional(enc(parquet.Uint(16))), nil
	case uint32:
		return parquet.Optional(enc(parquet.Uint(32))), nil
	case uint, uint64:
		return parquet.Optional(enc(parquet.Uint(64))), nil

	case float32:
		return parquet.Optional(enc(parquet.Leaf(parquet.FloatType))), nil
	case float64:
		return parquet.Optional(enc(parquet.Leaf(parquet.DoubleType))), nil

	case string:
		return parquet.Optional(enc(parquet.String())), nil
	}

	return nil, fmt.Errorf("unsupported type %T for field %q", v, name)
}

// SchemaBuilder accumulates example rows and produces a consolidated parquet
// schema. Fields seen with conflicting types across rows are rejected.
type SchemaBuilder struct {
	nodes map[string]parquet.Node
}

// NewSchemaBuilder initializes an empty schema builder.
func NewSchemaBuilder() *SchemaBuilder {
	return &SchemaBuilder{nodes: make(map[string]parquet.Node)}
}

// AddRow inspects the fields of a row and merges their types into the
// builder. Nil values do not contribute to the schema.
func (b *SchemaBuilder) AddRow(row Row) error {
	for name, val := range row {
		if val == nil {
			continue
		}
		node, err := ParquetNodeFromValue(name, val)
		if err != nil {
			return fmt.Errorf("build node for field %q: %w", name, err)
		}
		if existing, ok := b.nodes[name]; ok {
			if !parquet.EqualNodes(existing, node) {
				return fmt.Errorf("type mismatch for field %q: existing %T, new %T",
					name, existing, node)
			}
		} else {
			b.nodes[name] = node
		}
	}
	return nil
}

// Nodes returns a copy of the consolidated node map.
func (b *SchemaBuilder) Nodes() map[string]parquet.Node {
	out := make(map[string]parquet.Node, len(b.nodes))
	maps.Copy(out, b.nodes)
	return out
}

// Build returns the parquet schema for all columns seen so far.
func (b *SchemaBuilder) Build() (*parquet.Schema, error) {
	if len(b.nodes) == 0 {
		return nil, errors.New("no columns discovered for schema")
	}
	return parquet.NewSchema("dataset", parquet.Group(b.Nodes())), nil
}
