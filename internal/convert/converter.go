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

// Package convert streams a delimited source file into a columnar artifact
// in fixed-size batches, holding at most one batch in memory regardless of
// source size, and accumulates the statistics the validator later replays
// against the artifact.
package convert

import (
	"context"
	"slices"
	"time"

	"github.com/papertraildata/colstream/internal/colfile"
	"github.com/papertraildata/colstream/internal/converr"
	"github.com/papertraildata/colstream/internal/csvfile"
	"github.com/papertraildata/colstream/internal/logctx"
	"github.com/papertraildata/colstream/internal/schema"
	"github.com/papertraildata/colstream/internal/validate"
)

// DefaultBatchSize is the row count per in-memory batch when the caller
// does not override it.
const DefaultBatchSize = 100_000

// Options tunes a single conversion run.
type Options struct {
	// BatchSize is rows per batch; zero means DefaultBatchSize.
	BatchSize int
	// Validate runs the tiered validator after the artifact closes.
	Validate bool
	// SampleSize bounds the Tier 3 sample; zero means the dataset default.
	SampleSize int
}

// StreamingStats accumulates per-batch aggregates during conversion. The
// checksum sum and non-null counts are computed from exactly the rows
// written, so a later recomputation from the artifact must reproduce them.
type StreamingStats struct {
	RowCount      int64
	ChecksumSum   float64
	NonNullCounts map[string]int64
}

func newStreamingStats(cfg *schema.TypeConfig) *StreamingStats {
	counts := make(map[string]int64, len(cfg.KeyColumns))
	for _, col := range cfg.KeyColumns {
		counts[col] = 0
	}
	return &StreamingStats{NonNullCounts: counts}
}

// observe folds one coerced batch into the running aggregates. A key is
// absent from a row exactly when the source held a null token, so presence
// is the non-null signal.
func (s *StreamingStats) observe(batch []map[string]any, cfg *schema.TypeConfig) {
	s.RowCount += int64(len(batch))
	for _, row := range batch {
		if cfg.ChecksumColumn != "" {
			if v, ok := row[cfg.ChecksumColumn]; ok {
				switch t := v.(type) {
				case float64:
					s.ChecksumSum += t
				case int64:
					s.ChecksumSum += float64(t)
				}
			}
		}
		for _, col := range cfg.KeyColumns {
			if _, ok := row[col]; ok {
				s.NonNullCounts[col]++
			}
		}
	}
}

// expectation freezes the accumulated stats for the validator.
func (s *StreamingStats) expectation(preflight int64) validate.Expectation {
	counts := make(map[string]int64, len(s.NonNullCounts))
	for col, n := range s.NonNullCounts {
		counts[col] = n
	}
	return validate.Expectation{
		RowCount:      preflight,
		ChecksumSum:   s.ChecksumSum,
		NonNullCounts: counts,
	}
}

// ConversionResult reports what one run produced.
type ConversionResult struct {
	Source     string
	Output     string
	RowCount   int64
	Batches    int
	Stats      *StreamingStats
	Elapsed    time.Duration
	Validation *validate.Result
}

// Convert streams source into output. It counts the source's logical rows
// up front, verifies the header against cfg, writes coerced batches, and
// optionally validates the finished artifact. Any error leaves a partial
// output file on disk; callers treat the artifact as valid only when
// Convert returns nil.
func Convert(ctx context.Context, source, output string, cfg *schema.TypeConfig, opts Options) (*ConversionResult, error) {
	ll := logctx.FromContext(ctx)
	start := time.Now()

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	preflight, err := csvfile.CountRows(source, cfg.Encoding)
	if err != nil {
		return nil, err
	}
	ll.Info("pre-flight row count", "source", source, "rows", preflight)

	reader, err := csvfile.NewReader(source, cfg)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	if err := checkHeader(source, reader.Header(), cfg); err != nil {
		return nil, err
	}

	writer, err := colfile.NewWriter(output, reader.Header(), cfg)
	if err != nil {
		return nil, err
	}
	defer writer.Close()

	stats := newStreamingStats(cfg)
	batches := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		batch, err := reader.NextBatch(batchSize)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		if err := writer.WriteBatch(batch); err != nil {
			return nil, err
		}
		stats.observe(batch, cfg)
		batches++
		recordRowsConverted(ctx, cfg.Name, int64(len(batch)))
		if batches%10 == 0 {
			ll.Info("conversion progress", "rows", stats.RowCount, "batches", batches)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}

	result := &ConversionResult{
		Source:   source,
		Output:   output,
		RowCount: stats.RowCount,
		Batches:  batches,
		Stats:    stats,
		Elapsed:  time.Since(start),
	}

	if opts.Validate {
		runner := &validate.Runner{
			SourcePath: source,
			OutputPath: output,
			Config:     cfg,
			Expected:   stats.expectation(preflight),
			SampleSize: opts.SampleSize,
		}
		vr, err := runner.Run(ctx)
		result.Validation = vr
		if err != nil {
			return result, err
		}
	}

	result.Elapsed = time.Since(start)
	ll.Info("conversion complete",
		"source", source,
		"output", output,
		"rows", result.RowCount,
		"batches", result.Batches,
		"elapsed", result.Elapsed.String())
	return result, nil
}

// checkHeader demands exact set equality between the source header and the
// configured columns. Column order may differ; membership may not. A
// header drift means the upstream publisher changed the format and every
// downstream assumption is suspect, so conversion refuses to start.
func checkHeader(source string, header []string, cfg *schema.TypeConfig) error {
	want := cfg.ColumnNames()
	have := make(map[string]bool, len(header))
	for _, col := range header {
		have[col] = true
	}
	wantSet := make(map[string]bool, len(want))
	for _, col := range want {
		wantSet[col] = true
	}

	var missing, extra []string
	for _, col := range want {
		if !have[col] {
			missing = append(missing, col)
		}
	}
	for _, col := range header {
		if !wantSet[col] {
			extra = append(extra, col)
		}
	}
	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}
	slices.Sort(missing)
	slices.Sort(extra)
	return &converr.SchemaValidationError{
		Source:  source,
		Missing: missing,
		Extra:   extra,
	}
}
