// Copyright (C) 2025 Paper Trail Data, Inc
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

// Package schema holds per-dataset type configurations: the declared column
// set and types, null-marker tokens, and the columns tracked for integrity
// validation. A TypeConfig is built once per dataset kind and never mutated
// during a run, which keeps the converter and validator code paths identical
// across datasets.
package schema

import (
	"fmt"
)

// Source text encodings.
const (
	EncodingUTF8   = "utf8"
	EncodingLatin1 = "latin1"
)

// ColumnType is the semantic type of a column in the target schema.
type ColumnType int

const (
	TypeString ColumnType = iota
	TypeInt64
	TypeFloat64
)

func (t ColumnType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt64:
		return "int"
	case TypeFloat64:
		return "float"
	default:
		return fmt.Sprintf("ColumnType(%d)", int(t))
	}
}

// ParseColumnType converts the wire form used in YAML descriptors.
func ParseColumnType(s string) (ColumnType, error) {
	switch s {
	case "string", "str", "text":
		return TypeString, nil
	case "int", "integer", "int64":
		return TypeInt64, nil
	case "float", "float64", "double":
		return TypeFloat64, nil
	default:
		return TypeString, fmt.Errorf("unknown column type %q", s)
	}
}

// Column is one entry of the ordered target schema.
type Column struct {
	Name string
	Type ColumnType
}

// TypeConfig describes one dataset kind. Identifier columns must stay typed
// as strings so values like zip codes keep their leading zeros.
type TypeConfig struct {
	// Name identifies the dataset kind, e.g. "dime-contributions".
	Name string

	// Columns is the ordered expected column set with semantic types.
	Columns []Column

	// NullTokens are raw values treated as null in any column.
	NullTokens []string

	// KeyColumns have their non-null counts tracked during streaming and
	// cross-checked against the output (Tier 2).
	KeyColumns []string

	// ChecksumColumn, if non-empty, names a numeric column whose sum is
	// tracked during streaming and cross-checked against the output (Tier 2).
	ChecksumColumn string

	// DefaultSampleSize is the Tier 3 sample size used when the caller does
	// not specify one.
	DefaultSampleSize int

	// Encoding is the source text encoding, EncodingUTF8 or EncodingLatin1.
	// The DIME exports are latin1; most other sources are UTF-8.
	Encoding string

	types      map[string]ColumnType
	nullTokens map[string]struct{}
}

// Validate checks internal consistency and initializes lookup tables. It must
// be called once after construction; registry and YAML configs arrive
// pre-validated.
func (c *TypeConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("schema: config has no name")
	}
	if len(c.Columns) == 0 {
		return fmt.Errorf("schema: config %q has no columns", c.Name)
	}
	c.types = make(map[string]ColumnType, len(c.Columns))
	for _, col := range c.Columns {
		if col.Name == "" {
			return fmt.Errorf("schema: config %q has an unnamed column", c.Name)
		}
		if _, dup := c.types[col.Name]; dup {
			return fmt.Errorf("schema: config %q declares column %q twice", c.Name, col.Name)
		}
		c.types[col.Name] = col.Type
	}
	for _, key := range c.KeyColumns {
		if _, ok := c.types[key]; !ok {
			return fmt.Errorf("schema: config %q key column %q is not in the column set", c.Name, key)
		}
	}
	if c.ChecksumColumn != "" {
		t, ok := c.types[c.ChecksumColumn]
		if !ok {
			return fmt.Errorf("schema: config %q checksum column %q is not in the column set", c.Name, c.ChecksumColumn)
		}
		if t == TypeString {
			return fmt.Errorf("schema: config %q checksum column %q must be numeric", c.Name, c.ChecksumColumn)
		}
	}
	if c.DefaultSampleSize <= 0 {
		c.DefaultSampleSize = 1000
	}
	switch c.Encoding {
	case "":
		c.Encoding = EncodingUTF8
	case EncodingUTF8, EncodingLatin1:
	default:
		return fmt.Errorf("schema: config %q has unknown encoding %q", c.Name, c.Encoding)
	}
	c.nullTokens = make(map[string]struct{}, len(c.NullTokens))
	for _, tok := range c.NullTokens {
		c.nullTokens[tok] = struct{}{}
	}
	return nil
}

// ColumnType returns the declared type of a column.
func (c *TypeConfig) ColumnType(name string) (ColumnType, bool) {
	t, ok := c.types[name]
	return t, ok
}

// ColumnNames returns the expected column names in declaration order.
func (c *TypeConfig) ColumnNames() []string {
	names := make([]string, len(c.Columns))
	for i, col := range c.Columns {
		names[i] = col.Name
	}
	return names
}

// IsNullToken reports whether a raw value is one of the null markers.
func (c *TypeConfig) IsNullToken(raw string) bool {
	_, ok := c.nullTokens[raw]
	return ok
}
