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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupKnownDatasets(t *testing.T) {
	for _, name := range []string{
		DatasetContributions,
		DatasetRecipients,
		DatasetContributors,
		DatasetVoteviewMembers,
		DatasetVoteviewRollcalls,
		DatasetVoteviewVotes,
	} {
		cfg, err := Lookup(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, cfg.Name)
		assert.NotEmpty(t, cfg.Columns)
		assert.NotEmpty(t, cfg.KeyColumns)
		assert.Positive(t, cfg.DefaultSampleSize)
	}
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("nope")
	assert.ErrorContains(t, err, "unknown dataset")
}

func TestContributionsShape(t *testing.T) {
	cfg, err := Lookup(DatasetContributions)
	require.NoError(t, err)

	assert.Equal(t, "amount", cfg.ChecksumColumn)
	assert.Equal(t, EncodingLatin1, cfg.Encoding)
	assert.Contains(t, cfg.KeyColumns, "transaction.id")

	ct, ok := cfg.ColumnType("amount")
	require.True(t, ok)
	assert.Equal(t, TypeFloat64, ct)

	ct, ok = cfg.ColumnType("cycle")
	require.True(t, ok)
	assert.Equal(t, TypeInt64, ct)
}

func TestVoteviewMembersShape(t *testing.T) {
	cfg, err := Lookup(DatasetVoteviewMembers)
	require.NoError(t, err)

	assert.Len(t, cfg.ColumnNames(), 22)
	assert.Equal(t, "nominate_number_of_votes", cfg.ChecksumColumn)
	assert.Equal(t, []string{"icpsr", "congress", "chamber", "bioname"}, cfg.KeyColumns)
	assert.Equal(t, 1000, cfg.DefaultSampleSize)

	ct, ok := cfg.ColumnType("icpsr")
	require.True(t, ok)
	assert.Equal(t, TypeInt64, ct)

	ct, ok = cfg.ColumnType("nominate_number_of_votes")
	require.True(t, ok)
	assert.Equal(t, TypeFloat64, ct)
}

func TestVoteviewRollcallsShape(t *testing.T) {
	cfg, err := Lookup(DatasetVoteviewRollcalls)
	require.NoError(t, err)

	assert.Len(t, cfg.ColumnNames(), 18)
	assert.Equal(t, "yea_count", cfg.ChecksumColumn)
	assert.Equal(t, []string{"congress", "chamber", "rollnumber", "date"}, cfg.KeyColumns)
	assert.Equal(t, 1000, cfg.DefaultSampleSize)

	ct, ok := cfg.ColumnType("yea_count")
	require.True(t, ok)
	assert.Equal(t, TypeInt64, ct)

	// Nullable counts carry float notation in the CSV.
	ct, ok = cfg.ColumnType("clerk_rollnumber")
	require.True(t, ok)
	assert.Equal(t, TypeFloat64, ct)

	ct, ok = cfg.ColumnType("bill_number")
	require.True(t, ok)
	assert.Equal(t, TypeString, ct)
}

func TestVoteviewVotesShape(t *testing.T) {
	cfg, err := Lookup(DatasetVoteviewVotes)
	require.NoError(t, err)

	assert.Len(t, cfg.ColumnNames(), 6)
	assert.Equal(t, "cast_code", cfg.ChecksumColumn)
	assert.Equal(t, []string{"congress", "chamber", "rollnumber", "icpsr", "cast_code"}, cfg.KeyColumns)
	assert.Equal(t, 2000, cfg.DefaultSampleSize)

	// Integer-valued columns arrive as "10713.0" so they stay float64.
	for _, col := range []string{"rollnumber", "icpsr", "cast_code"} {
		ct, ok := cfg.ColumnType(col)
		require.True(t, ok, col)
		assert.Equal(t, TypeFloat64, ct, col)
	}

	ct, ok := cfg.ColumnType("congress")
	require.True(t, ok)
	assert.Equal(t, TypeInt64, ct)
}

func TestVoteviewNullTokens(t *testing.T) {
	cfg, err := Lookup(DatasetVoteviewMembers)
	require.NoError(t, err)

	assert.True(t, cfg.IsNullToken(""))
	assert.True(t, cfg.IsNullToken("N/A"))
	assert.False(t, cfg.IsNullToken(`\N`))
	assert.Equal(t, EncodingUTF8, cfg.Encoding)
}

func TestDefaultNullTokens(t *testing.T) {
	cfg, err := Lookup(DatasetContributions)
	require.NoError(t, err)

	assert.True(t, cfg.IsNullToken(`\N`))
	assert.True(t, cfg.IsNullToken(""))
	assert.False(t, cfg.IsNullToken("0"))
	assert.False(t, cfg.IsNullToken("NULL"))
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name string
		cfg  TypeConfig
		want string
	}{
		{
			name: "duplicate column",
			cfg: TypeConfig{
				Name:    "d",
				Columns: []Column{{Name: "a", Type: TypeString}, {Name: "a", Type: TypeString}},
			},
			want: "twice",
		},
		{
			name: "unknown key column",
			cfg: TypeConfig{
				Name:       "d",
				Columns:    []Column{{Name: "a", Type: TypeString}},
				KeyColumns: []string{"b"},
			},
			want: "key column",
		},
		{
			name: "non-numeric checksum column",
			cfg: TypeConfig{
				Name:           "d",
				Columns:        []Column{{Name: "a", Type: TypeString}},
				ChecksumColumn: "a",
			},
			want: "checksum column",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			assert.ErrorContains(t, err, tt.want)
		})
	}
}
