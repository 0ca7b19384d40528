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

// Package validate proves a converted artifact correct through three
// escalating tiers: row-count parity, aggregate-checksum parity, and
// random-sample field equality. Tiers run strictly in order and the first
// failure stops the run; a later tier's result adds nothing once an earlier
// contract is already broken. The design deliberately favors false negatives
// over false positives: downstream analysis cannot tolerate undetected
// corruption.
package validate

import (
	"context"
	"math"
	"math/rand/v2"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/papertraildata/colstream/internal/colfile"
	"github.com/papertraildata/colstream/internal/converr"
	"github.com/papertraildata/colstream/internal/csvfile"
	"github.com/papertraildata/colstream/internal/logctx"
	"github.com/papertraildata/colstream/internal/schema"
)

const (
	// Sum comparison accepts either bound: absolute for small sums,
	// relative for large sums where floating-point accumulation order
	// shifts the low digits.
	sumAbsTolerance = 0.01
	sumRelTolerance = 1e-6
)

// Expectation carries the statistics accumulated during conversion plus the
// pre-flight row count, frozen at run end and handed to the validator.
type Expectation struct {
	RowCount      int64
	ChecksumSum   float64
	NonNullCounts map[string]int64
}

// CountPair holds an expected/actual non-null count for one key column.
type CountPair struct {
	Expected int64
	Actual   int64
}

// Result records the values compared at each tier. A tier's failure raises
// immediately, so a populated Result with all three booleans set means every
// tier passed.
type Result struct {
	RowCountValid    bool
	RowCountExpected int64
	RowCountActual   int64

	ChecksumValid    bool
	ChecksumColumn   string
	ChecksumExpected float64
	ChecksumActual   float64
	NonNullCounts    map[string]CountPair

	SampleValid bool
	SampleSize  int
}

// AllValid reports whether every tier passed.
func (r *Result) AllValid() bool {
	return r.RowCountValid && r.ChecksumValid && r.SampleValid
}

// Runner validates one output artifact against its source and the streaming
// expectation. Each run exclusively owns its Runner; there is no shared
// mutable state between concurrent runs.
type Runner struct {
	SourcePath string
	OutputPath string
	Config     *schema.TypeConfig
	Expected   Expectation

	// SampleSize bounds Tier 3; zero means the dataset default.
	SampleSize int

	// rng overrides the sample index source in tests.
	rng *rand.Rand
	// tierStarted is test instrumentation for fail-fast ordering.
	tierStarted func(tier int)
}

// Run executes tiers 1→2→3 and fails fast on the first mismatch.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	ll := logctx.FromContext(ctx)
	result := &Result{NonNullCounts: map[string]CountPair{}}

	if err := r.runRowCount(result); err != nil {
		recordTierFailure(ctx, 1)
		return result, err
	}
	ll.Info("tier 1 row count passed", "rows", result.RowCountActual)

	if err := r.runChecksums(result); err != nil {
		recordTierFailure(ctx, 2)
		return result, err
	}
	ll.Info("tier 2 checksums passed",
		"column", result.ChecksumColumn,
		"sum", result.ChecksumActual,
		"keyColumns", len(result.NonNullCounts))

	if err := r.runSample(result); err != nil {
		recordTierFailure(ctx, 3)
		return result, err
	}
	ll.Info("tier 3 sample passed", "sampleSize", result.SampleSize)

	return result, nil
}

// Tier 1: compare the artifact's stored row count against the pre-flight
// expectation. Reads file metadata only.
func (r *Runner) runRowCount(result *Result) error {
	r.tier(1)
	actual, err := colfile.RowCount(r.OutputPath)
	if err != nil {
		return err
	}
	result.RowCountExpected = r.Expected.RowCount
	result.RowCountActual = actual
	if actual != r.Expected.RowCount {
		return &converr.RowCountMismatchError{
			Source:   r.SourcePath,
			Expected: r.Expected.RowCount,
			Actual:   actual,
		}
	}
	result.RowCountValid = true
	return nil
}

// Tier 2: recompute the checksum-column sum and each key column's non-null
// count from the artifact, reading only those columns, and compare against
// the streaming expectation. This catches systematic corruption (a dropped
// batch, a truncated column) that row-count parity alone would miss when
// rows are dropped in one region and duplicated in another.
func (r *Runner) runChecksums(result *Result) error {
	r.tier(2)
	if col := r.Config.ChecksumColumn; col != "" {
		sum, _, err := colfile.ColumnStats(r.OutputPath, col)
		if err != nil {
			return err
		}
		result.ChecksumColumn = col
		result.ChecksumExpected = r.Expected.ChecksumSum
		result.ChecksumActual = sum
		if !sumsMatch(r.Expected.ChecksumSum, sum) {
			return &converr.ChecksumMismatchError{
				Source:   r.SourcePath,
				Column:   col,
				Stat:     converr.StatSum,
				Expected: r.Expected.ChecksumSum,
				Actual:   sum,
			}
		}
	}

	for _, col := range r.Config.KeyColumns {
		expected, ok := r.Expected.NonNullCounts[col]
		if !ok {
			continue
		}
		_, nonNull, err := colfile.ColumnStats(r.OutputPath, col)
		if err != nil {
			return err
		}
		result.NonNullCounts[col] = CountPair{Expected: expected, Actual: nonNull}
		if nonNull != expected {
			return &converr.ChecksumMismatchError{
				Source:   r.SourcePath,
				Column:   col,
				Stat:     converr.StatNonNull,
				Expected: float64(expected),
				Actual:   float64(nonNull),
			}
		}
	}
	result.ChecksumValid = true
	return nil
}

// Tier 3: re-read a uniform random sample of rows from the original source
// and the artifact and compare every column after normalization. The two
// reads are independent single-pass scans driven by the sorted index list
// and run concurrently; ordering within each stream stays sequential to
// preserve the batch-at-a-time memory bound.
func (r *Runner) runSample(result *Result) error {
	r.tier(3)
	total := result.RowCountActual
	if total == 0 {
		result.SampleValid = true
		return nil
	}

	size := r.SampleSize
	if size <= 0 {
		size = r.Config.DefaultSampleSize
	}
	if int64(size) > total {
		size = int(total)
	}
	indices := r.sampleIndices(total, size)
	result.SampleSize = len(indices)

	var sourceRows []map[string]string
	var outputRows []map[string]any
	g := new(errgroup.Group)
	g.Go(func() error {
		var err error
		sourceRows, err = csvfile.ReadRowsAt(r.SourcePath, r.Config.Encoding, indices)
		return err
	})
	g.Go(func() error {
		var err error
		outputRows, err = colfile.ReadRowsAt(r.OutputPath, indices)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	columns, err := colfile.Columns(r.OutputPath)
	if err != nil {
		return err
	}

	for i, rowIdx := range indices {
		for _, col := range columns {
			var source any
			if raw, ok := sourceRows[i][col]; ok {
				source = raw
			}
			expected := Normalize(source, r.Config.IsNullToken)
			actual := Normalize(outputRows[i][col], r.Config.IsNullToken)
			if !Equal(expected, actual) {
				return &converr.SampleMismatchError{
					Source:   r.SourcePath,
					RowIndex: rowIdx,
					Column:   col,
					Expected: display(expected),
					Actual:   display(actual),
				}
			}
		}
	}
	result.SampleValid = true
	return nil
}

// sampleIndices draws size distinct indices uniformly from [0, total) and
// returns them sorted ascending, ready to drive the forward scans.
func (r *Runner) sampleIndices(total int64, size int) []int64 {
	if int64(size) >= total {
		all := make([]int64, total)
		for i := range all {
			all[i] = int64(i)
		}
		return all
	}
	intn := rand.Int64N
	if r.rng != nil {
		intn = r.rng.Int64N
	}
	seen := make(map[int64]struct{}, size)
	for len(seen) < size {
		seen[intn(total)] = struct{}{}
	}
	indices := make([]int64, 0, size)
	for idx := range seen {
		indices = append(indices, idx)
	}
	slices.Sort(indices)
	return indices
}

func (r *Runner) tier(n int) {
	if r.tierStarted != nil {
		r.tierStarted(n)
	}
}

func sumsMatch(expected, actual float64) bool {
	diff := math.Abs(expected - actual)
	if diff <= sumAbsTolerance {
		return true
	}
	return diff <= sumRelTolerance*math.Max(math.Abs(expected), math.Abs(actual))
}
