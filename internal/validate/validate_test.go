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

package validate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papertraildata/colstream/internal/colfile"
	"github.com/papertraildata/colstream/internal/converr"
	"github.com/papertraildata/colstream/internal/csvfile"
	"github.com/papertraildata/colstream/internal/schema"
)

func testConfig(t *testing.T) *schema.TypeConfig {
	t.Helper()
	cfg := &schema.TypeConfig{
		Name: "test",
		Columns: []schema.Column{
			{Name: "id", Type: schema.TypeString},
			{Name: "year", Type: schema.TypeInt64},
			{Name: "amount", Type: schema.TypeFloat64},
		},
		NullTokens:        schema.DefaultNullTokens,
		KeyColumns:        []string{"id", "amount"},
		ChecksumColumn:    "amount",
		DefaultSampleSize: 100,
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

// fixture writes a CSV source, converts it faithfully to an artifact, and
// returns both paths plus the expectation a conversion run would accumulate.
// mutate, when set, alters the typed rows between read and write to model
// artifact corruption.
func fixture(t *testing.T, cfg *schema.TypeConfig, csvContent string, mutate func([]map[string]any)) (string, string, Expectation) {
	t.Helper()
	dir := t.TempDir()
	source := filepath.Join(dir, "in.csv")
	output := filepath.Join(dir, "out.parquet")
	require.NoError(t, os.WriteFile(source, []byte(csvContent), 0o644))

	r, err := csvfile.NewReader(source, cfg)
	require.NoError(t, err)
	defer r.Close()

	rows, err := r.NextBatch(1 << 20)
	require.NoError(t, err)

	exp := Expectation{
		RowCount:      int64(len(rows)),
		NonNullCounts: map[string]int64{},
	}
	for _, row := range rows {
		if v, ok := row[cfg.ChecksumColumn]; ok {
			exp.ChecksumSum += v.(float64)
		}
		for _, col := range cfg.KeyColumns {
			if _, ok := row[col]; ok {
				exp.NonNullCounts[col]++
			}
		}
	}

	if mutate != nil {
		mutate(rows)
	}

	w, err := colfile.NewWriter(output, r.Header(), cfg)
	require.NoError(t, err)
	require.NoError(t, w.WriteBatch(rows))
	require.NoError(t, w.Close())

	return source, output, exp
}

const cleanCSV = "id,year,amount\n" +
	"A,2018,100.25\n" +
	"B,2019,35.25\n" +
	"C,\\N,\n" +
	"D,2021,0\n" +
	"E,2022,-12.75\n"

func runner(t *testing.T, cfg *schema.TypeConfig, source, output string, exp Expectation) (*Runner, *[]int) {
	t.Helper()
	var tiers []int
	r := &Runner{
		SourcePath: source,
		OutputPath: output,
		Config:     cfg,
		Expected:   exp,
		SampleSize: 5,
	}
	r.tierStarted = func(tier int) { tiers = append(tiers, tier) }
	return r, &tiers
}

func TestRunAllTiersPass(t *testing.T) {
	cfg := testConfig(t)
	source, output, exp := fixture(t, cfg, cleanCSV, nil)

	r, tiers := runner(t, cfg, source, output, exp)
	result, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, result.AllValid())
	assert.Equal(t, []int{1, 2, 3}, *tiers)
	assert.Equal(t, int64(5), result.RowCountActual)
	assert.InDelta(t, 122.75, result.ChecksumActual, 1e-9)
	assert.Equal(t, CountPair{Expected: 4, Actual: 4}, result.NonNullCounts["amount"])
	assert.Equal(t, 5, result.SampleSize)
}

func TestRowCountMismatchFailsFast(t *testing.T) {
	cfg := testConfig(t)
	source, output, exp := fixture(t, cfg, cleanCSV, nil)
	exp.RowCount = 6

	r, tiers := runner(t, cfg, source, output, exp)
	result, err := r.Run(context.Background())

	var mismatch *converr.RowCountMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, int64(6), mismatch.Expected)
	assert.Equal(t, int64(5), mismatch.Actual)

	// tiers 2 and 3 never start
	assert.Equal(t, []int{1}, *tiers)
	assert.False(t, result.RowCountValid)
	assert.False(t, result.ChecksumValid)
}

func TestChecksumSumMismatch(t *testing.T) {
	cfg := testConfig(t)
	source, output, exp := fixture(t, cfg, cleanCSV, nil)
	exp.ChecksumSum += 5.0

	r, tiers := runner(t, cfg, source, output, exp)
	_, err := r.Run(context.Background())

	var mismatch *converr.ChecksumMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, converr.StatSum, mismatch.Stat)
	assert.Equal(t, "amount", mismatch.Column)
	assert.Equal(t, []int{1, 2}, *tiers)
}

func TestNonNullCountMismatch(t *testing.T) {
	cfg := testConfig(t)
	source, output, exp := fixture(t, cfg, cleanCSV, nil)
	exp.NonNullCounts["id"] = 3

	r, _ := runner(t, cfg, source, output, exp)
	_, err := r.Run(context.Background())

	var mismatch *converr.ChecksumMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, converr.StatNonNull, mismatch.Stat)
	assert.Equal(t, "id", mismatch.Column)
}

func TestSampleDetectsCorruption(t *testing.T) {
	cfg := testConfig(t)
	// corrupt a string field: row counts and the numeric checksum still match
	source, output, exp := fixture(t, cfg, cleanCSV, func(rows []map[string]any) {
		rows[2]["id"] = "X"
	})

	// sampling every row guarantees the corrupt one is compared
	r, tiers := runner(t, cfg, source, output, exp)
	_, err := r.Run(context.Background())

	var mismatch *converr.SampleMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, int64(2), mismatch.RowIndex)
	assert.Equal(t, "id", mismatch.Column)
	assert.Equal(t, "C", mismatch.Expected)
	assert.Equal(t, "X", mismatch.Actual)
	assert.Equal(t, []int{1, 2, 3}, *tiers)
}

func TestSampleToleratesFormattingDrift(t *testing.T) {
	cfg := testConfig(t)
	// "100.25" vs 100.25 and "\N" vs null must compare equal
	source, output, exp := fixture(t, cfg, cleanCSV, nil)

	r, _ := runner(t, cfg, source, output, exp)
	result, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, result.SampleValid)
}

func TestSampleSizeClampedToRowCount(t *testing.T) {
	cfg := testConfig(t)
	source, output, exp := fixture(t, cfg, cleanCSV, nil)

	r, _ := runner(t, cfg, source, output, exp)
	r.SampleSize = 1000
	result, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, result.SampleSize)
}

func TestSampleIndices(t *testing.T) {
	r := &Runner{}

	all := r.sampleIndices(4, 10)
	assert.Equal(t, []int64{0, 1, 2, 3}, all)

	some := r.sampleIndices(1000, 50)
	assert.Len(t, some, 50)
	for i := 1; i < len(some); i++ {
		assert.Less(t, some[i-1], some[i])
	}
	for _, idx := range some {
		assert.GreaterOrEqual(t, idx, int64(0))
		assert.Less(t, idx, int64(1000))
	}
}

func TestSumsMatch(t *testing.T) {
	tests := []struct {
		name     string
		expected float64
		actual   float64
		want     bool
	}{
		{"exact", 135.5, 135.5, true},
		{"within absolute tolerance", 135.5, 135.509, true},
		{"outside absolute tolerance", 135.5, 135.52, false},
		{"large sums within relative tolerance", 1e12, 1e12 + 1e5, true},
		{"large sums outside relative tolerance", 1e12, 1e12 + 1e7, false},
		{"zero", 0, 0, true},
		{"sign flip", 10, -10, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sumsMatch(tt.expected, tt.actual))
		})
	}
}
