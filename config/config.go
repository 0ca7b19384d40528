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

package config

import (
	"reflect"
	"strings"

	"github.com/spf13/viper"
)

// Config aggregates configuration for the application.
type Config struct {
	Convert ConvertConfig `mapstructure:"convert"`
	Load    LoadConfig    `mapstructure:"load"`
}

type ConvertConfig struct {
	// BatchSize is rows per in-memory batch during conversion.
	BatchSize int `mapstructure:"batch_size"`
	// SampleSize overrides the dataset's Tier 3 sample size when nonzero.
	SampleSize int `mapstructure:"sample_size"`
	// SchemaDir holds extra dataset schema YAML files.
	SchemaDir string `mapstructure:"schema_dir"`
}

type LoadConfig struct {
	// Database is the Postgres connection string.
	Database string `mapstructure:"database"`
	// BatchSize is rows per COPY transaction.
	BatchSize int `mapstructure:"batch_size"`
	// CheckpointDir holds per-source resume state.
	CheckpointDir string `mapstructure:"checkpoint_dir"`
}

// Load reads configuration from files and environment variables.
// Environment variables use the prefix "COLSTREAM" and the dot character
// in keys is replaced by an underscore. For example, "convert.batch_size"
// becomes "COLSTREAM_CONVERT_BATCH_SIZE".
func Load() (*Config, error) {
	cfg := &Config{
		Convert: ConvertConfig{
			BatchSize: 100_000,
		},
		Load: LoadConfig{
			BatchSize:     1_000_000,
			CheckpointDir: ".",
		},
	}

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.SetEnvPrefix("COLSTREAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)
	_ = v.ReadInConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(parts, tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
