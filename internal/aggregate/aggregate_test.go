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

package aggregate

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papertraildata/colstream/internal/colfile"
	"github.com/papertraildata/colstream/internal/schema"
)

func memberConfig(t *testing.T) *schema.TypeConfig {
	t.Helper()
	cfg := &schema.TypeConfig{
		Name: "members",
		Columns: []schema.Column{
			{Name: "bioguide_id", Type: schema.TypeString},
			{Name: "congress", Type: schema.TypeInt64},
			{Name: "chamber", Type: schema.TypeString},
			{Name: "bioname", Type: schema.TypeString},
		},
		NullTokens: schema.DefaultNullTokens,
		KeyColumns: []string{"bioguide_id"},
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

func testSpec() Spec {
	return Spec{
		Name:          "test_members",
		KeyColumn:     "bioguide_id",
		OrderColumn:   "congress",
		MinOrder:      96,
		LatestColumns: []string{"chamber", "bioname"},
		ListColumn:    "congresses",
		SampleSize:    10,
	}
}

func writeMembers(t *testing.T, rows []map[string]any) string {
	t.Helper()
	cfg := memberConfig(t)
	path := filepath.Join(t.TempDir(), "members.parquet")
	w, err := colfile.NewWriter(path, cfg.ColumnNames(), cfg)
	require.NoError(t, err)
	require.NoError(t, w.WriteBatch(rows))
	require.NoError(t, w.Close())
	return path
}

func queryOutput(t *testing.T, output, query string, dest ...any) {
	t.Helper()
	db, err := sql.Open("duckdb", "")
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec("CREATE VIEW agg AS SELECT * FROM read_parquet('" + output + "')")
	require.NoError(t, err)
	require.NoError(t, db.QueryRow(query).Scan(dest...))
}

func TestRunCollapsesToLatestRow(t *testing.T) {
	source := writeMembers(t, []map[string]any{
		{"bioguide_id": "X000001", "congress": int64(115), "chamber": "House", "bioname": "DOE, Jane"},
		{"bioguide_id": "X000001", "congress": int64(117), "chamber": "Senate", "bioname": "DOE, Jane"},
		{"bioguide_id": "X000001", "congress": int64(116), "chamber": "House", "bioname": "DOE, Jane"},
		{"bioguide_id": "Y000002", "congress": int64(110), "chamber": "House", "bioname": "ROE, Richard"},
	})
	output := filepath.Join(t.TempDir(), "out.parquet")

	result, err := Run(context.Background(), source, output, testSpec())
	require.NoError(t, err)

	assert.Equal(t, int64(4), result.SourceRows)
	assert.Equal(t, int64(2), result.OutputRows)
	assert.Equal(t, int64(2), result.DistinctKeys)

	// key X collapses to its congress-117 row with the full ascending history
	var chamber, congresses string
	var first, last int64
	queryOutput(t, output,
		`SELECT chamber, CAST(congresses AS VARCHAR), first_congress, last_congress
		 FROM agg WHERE bioguide_id = 'X000001'`,
		&chamber, &congresses, &first, &last)
	assert.Equal(t, "Senate", chamber)
	assert.Equal(t, "[115, 116, 117]", congresses)
	assert.Equal(t, int64(115), first)
	assert.Equal(t, int64(117), last)
}

func TestRunDropsNullKeysAndEarlyCongresses(t *testing.T) {
	source := writeMembers(t, []map[string]any{
		{"bioguide_id": "X000001", "congress": int64(100), "chamber": "House", "bioname": "DOE, Jane"},
		{"bioguide_id": "X000001", "congress": int64(95), "chamber": "House", "bioname": "DOE, Jane"},
		{"congress": int64(101), "chamber": "House", "bioname": "NAMELESS"},
	})
	output := filepath.Join(t.TempDir(), "out.parquet")

	result, err := Run(context.Background(), source, output, testSpec())
	require.NoError(t, err)

	assert.Equal(t, int64(1), result.OutputRows)

	var first int64
	queryOutput(t, output,
		"SELECT first_congress FROM agg WHERE bioguide_id = 'X000001'", &first)
	// the congress-95 row is excluded before grouping
	assert.Equal(t, int64(100), first)
}

func TestRunSingleRowGroups(t *testing.T) {
	source := writeMembers(t, []map[string]any{
		{"bioguide_id": "A000001", "congress": int64(118), "chamber": "House", "bioname": "AAA"},
		{"bioguide_id": "B000002", "congress": int64(118), "chamber": "Senate", "bioname": "BBB"},
	})
	output := filepath.Join(t.TempDir(), "out.parquet")

	result, err := Run(context.Background(), source, output, testSpec())
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.OutputRows)

	var congresses string
	queryOutput(t, output,
		"SELECT CAST(congresses AS VARCHAR) FROM agg WHERE bioguide_id = 'A000001'", &congresses)
	assert.Equal(t, "[118]", congresses)
}

func TestRunMissingSource(t *testing.T) {
	output := filepath.Join(t.TempDir(), "out.parquet")
	_, err := Run(context.Background(), filepath.Join(t.TempDir(), "nope.parquet"), output, testSpec())
	assert.Error(t, err)
}

func TestBuildAggregateSQL(t *testing.T) {
	sql := buildAggregateSQL(testSpec())
	assert.Contains(t, sql, `GROUP BY "bioguide_id"`)
	assert.Contains(t, sql, `"congress" >= 96`)
	assert.Contains(t, sql, `LAST("chamber" ORDER BY "congress")`)
	assert.Contains(t, sql, `LIST("congress" ORDER BY "congress")`)
	assert.Contains(t, sql, `MIN("congress") AS first_congress`)
}
