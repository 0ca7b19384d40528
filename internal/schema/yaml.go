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

package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// yamlConfig is the on-disk descriptor format for custom datasets:
//
//	name: my-dataset
//	columns:
//	  - {name: id, type: string}
//	  - {name: amount, type: float}
//	null_tokens: ["\\N", ""]
//	key_columns: [id]
//	checksum_column: amount
//	default_sample_size: 500
type yamlConfig struct {
	Name              string       `yaml:"name"`
	Columns           []yamlColumn `yaml:"columns"`
	NullTokens        *[]string    `yaml:"null_tokens"`
	KeyColumns        []string     `yaml:"key_columns"`
	ChecksumColumn    string       `yaml:"checksum_column"`
	DefaultSampleSize int          `yaml:"default_sample_size"`
	Encoding          string       `yaml:"encoding"`
}

type yamlColumn struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// LoadFile reads a custom dataset descriptor from a YAML file. Null tokens
// default to the DIME convention when the key is absent.
func LoadFile(path string) (*TypeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: read descriptor: %w", err)
	}
	var wire yamlConfig
	if err := yaml.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("schema: parse descriptor %s: %w", path, err)
	}

	cfg := &TypeConfig{
		Name:              wire.Name,
		Columns:           make([]Column, 0, len(wire.Columns)),
		NullTokens:        DefaultNullTokens,
		KeyColumns:        wire.KeyColumns,
		ChecksumColumn:    wire.ChecksumColumn,
		DefaultSampleSize: wire.DefaultSampleSize,
		Encoding:          wire.Encoding,
	}
	if wire.NullTokens != nil {
		cfg.NullTokens = *wire.NullTokens
	}
	for _, col := range wire.Columns {
		t, err := ParseColumnType(col.Type)
		if err != nil {
			return nil, fmt.Errorf("schema: descriptor %s, column %q: %w", path, col.Name, err)
		}
		cfg.Columns = append(cfg.Columns, Column{Name: col.Name, Type: t})
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
