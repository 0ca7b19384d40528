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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 100_000, cfg.Convert.BatchSize)
	assert.Equal(t, 1_000_000, cfg.Load.BatchSize)
	assert.Equal(t, ".", cfg.Load.CheckpointDir)
	assert.Empty(t, cfg.Load.Database)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("COLSTREAM_CONVERT_BATCH_SIZE", "25000")
	t.Setenv("COLSTREAM_CONVERT_SAMPLE_SIZE", "500")
	t.Setenv("COLSTREAM_LOAD_DATABASE", "postgres://localhost/finance")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 25_000, cfg.Convert.BatchSize)
	assert.Equal(t, 500, cfg.Convert.SampleSize)
	assert.Equal(t, "postgres://localhost/finance", cfg.Load.Database)
	// untouched keys keep their defaults
	assert.Equal(t, 1_000_000, cfg.Load.BatchSize)
}
