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

// Package converr defines the closed set of failure kinds surfaced by the
// conversion and validation engine. Every error carries enough structured
// context (row index, column, expected/actual) to diagnose a failure without
// re-running the pipeline. Nothing in the engine is silently recovered; a
// detected inconsistency is always a hard stop.
package converr

import (
	"fmt"
	"path/filepath"
	"strings"
)

// SourceUnreadableError indicates the source file or URL could not be opened
// or read. Retry policy belongs to the caller, not the engine.
type SourceUnreadableError struct {
	Source string
	Err    error
}

func (e *SourceUnreadableError) Error() string {
	return fmt.Sprintf("[%s] source unreadable: %v", filepath.Base(e.Source), e.Err)
}

func (e *SourceUnreadableError) Unwrap() error { return e.Err }

// CSVParseError indicates a row that violates the declared schema. The run
// aborts and any partial output must be discarded.
type CSVParseError struct {
	Source  string
	Row     int64 // 1-based data row number (header excluded)
	Column  string
	RawText string
	Err     error
}

func (e *CSVParseError) Error() string {
	parts := []string{fmt.Sprintf("[%s]", filepath.Base(e.Source))}
	if e.Row > 0 {
		parts = append(parts, fmt.Sprintf("row %d", e.Row))
	}
	if e.Column != "" {
		parts = append(parts, fmt.Sprintf("column %q", e.Column))
	}
	if e.RawText != "" {
		raw := e.RawText
		if len(raw) > 100 {
			raw = raw[:100] + "..."
		}
		parts = append(parts, fmt.Sprintf("value %q", raw))
	}
	parts = append(parts, fmt.Sprintf("csv parse error: %v", e.Err))
	return strings.Join(parts, " ")
}

func (e *CSVParseError) Unwrap() error { return e.Err }

// SchemaValidationError indicates the realized column set of the output does
// not exactly match the configured expected set.
type SchemaValidationError struct {
	Source  string
	Missing []string // expected but not observed
	Extra   []string // observed but not expected
}

func (e *SchemaValidationError) Error() string {
	parts := []string{fmt.Sprintf("[%s] schema mismatch:", filepath.Base(e.Source))}
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing columns %v", e.Missing))
	}
	if len(e.Extra) > 0 {
		parts = append(parts, fmt.Sprintf("extra columns %v", e.Extra))
	}
	return strings.Join(parts, " ")
}

// RowCountMismatchError is a Tier 1 validation failure.
type RowCountMismatchError struct {
	Source   string
	Expected int64
	Actual   int64
}

// Diff returns expected minus actual.
func (e *RowCountMismatchError) Diff() int64 { return e.Expected - e.Actual }

func (e *RowCountMismatchError) Error() string {
	return fmt.Sprintf("[%s] row count mismatch: expected %d, got %d (difference %d)",
		filepath.Base(e.Source), e.Expected, e.Actual, e.Diff())
}

// ChecksumStat names which Tier 2 statistic failed.
type ChecksumStat string

const (
	StatSum     ChecksumStat = "sum"
	StatNonNull ChecksumStat = "non-null count"
)

// ChecksumMismatchError is a Tier 2 validation failure for a single column
// statistic, either the checksum-column sum or a key column's non-null count.
type ChecksumMismatchError struct {
	Source   string
	Column   string
	Stat     ChecksumStat
	Expected float64
	Actual   float64
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("[%s] checksum mismatch for %q (%s): expected %v, got %v",
		filepath.Base(e.Source), e.Column, e.Stat, e.Expected, e.Actual)
}

// SampleMismatchError is a Tier 3 validation failure: a sampled output row
// disagrees with the corresponding source row.
type SampleMismatchError struct {
	Source   string
	RowIndex int64
	Column   string
	Expected string
	Actual   string
}

func (e *SampleMismatchError) Error() string {
	return fmt.Sprintf("[%s] sample mismatch at row %d, column %q: expected %q, got %q",
		filepath.Base(e.Source), e.RowIndex, e.Column, e.Expected, e.Actual)
}

// CompletenessError is the aggregation variant's Tier 1 failure: the output
// key set is not exactly the distinct source key set.
type CompletenessError struct {
	Expected    int64
	Actual      int64
	Duplicates  int64
	MissingKeys []string // up to 10 examples
	ExtraKeys   []string // up to 10 examples
}

func (e *CompletenessError) Error() string {
	parts := []string{fmt.Sprintf("completeness mismatch: expected %d keys, got %d", e.Expected, e.Actual)}
	if e.Duplicates > 0 {
		parts = append(parts, fmt.Sprintf("%d duplicated", e.Duplicates))
	}
	if len(e.MissingKeys) > 0 {
		parts = append(parts, fmt.Sprintf("missing %v", e.MissingKeys))
	}
	if len(e.ExtraKeys) > 0 {
		parts = append(parts, fmt.Sprintf("extra %v", e.ExtraKeys))
	}
	return strings.Join(parts, "; ")
}

// AggregationError is the aggregation variant's Tier 2/3 failure: a recomputed
// reduction for one key disagrees with the stored output value.
type AggregationError struct {
	Key      string
	Field    string
	Expected string
	Actual   string
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("aggregation mismatch for key %q, field %q: expected %q, got %q",
		e.Key, e.Field, e.Expected, e.Actual)
}

// OutputWriteError indicates the destination could not be written.
type OutputWriteError struct {
	Output string
	Err    error
}

func (e *OutputWriteError) Error() string {
	return fmt.Sprintf("[%s] output write failed: %v", filepath.Base(e.Output), e.Err)
}

func (e *OutputWriteError) Unwrap() error { return e.Err }
