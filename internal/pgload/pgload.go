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

// Package pgload bulk-loads a dataset's source file into Postgres with the
// COPY protocol. Loads of the large archives take hours, so progress is
// checkpointed after every batch and an interrupted load resumes from the
// last committed batch instead of starting over.
package pgload

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/papertraildata/colstream/internal/converr"
	"github.com/papertraildata/colstream/internal/csvfile"
	"github.com/papertraildata/colstream/internal/logctx"
	"github.com/papertraildata/colstream/internal/schema"
)

// DefaultBatchSize is rows per COPY transaction.
const DefaultBatchSize = 1_000_000

// AmountCap clamps monetary values to fit NUMERIC(10,2) target columns.
// A handful of archive rows carry corrupt amounts in the trillions; the
// originals stay intact in the source file.
const AmountCap = 99_999_999.99

// Options tunes one load.
type Options struct {
	// Table is the destination table; it must already exist.
	Table string
	// BatchSize is rows per COPY transaction; zero means DefaultBatchSize.
	BatchSize int
	// CheckpointPath holds resume state; empty disables checkpointing.
	CheckpointPath string
	// CapColumns lists float columns clamped to ±AmountCap.
	CapColumns []string
}

// Result reports one completed load.
type Result struct {
	RowsLoaded  int64
	RowsSkipped int64
	TableRows   int64
	Resumed     bool
}

type checkpoint struct {
	Source     string `json:"source"`
	RowsLoaded int64  `json:"rows_loaded"`
}

func readCheckpoint(path, source string) int64 {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	var cp checkpoint
	if json.Unmarshal(data, &cp) != nil || cp.Source != source {
		return 0
	}
	return cp.RowsLoaded
}

func writeCheckpoint(path, source string, rows int64) error {
	data, err := json.Marshal(checkpoint{Source: source, RowsLoaded: rows})
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// columnIdent maps a dataset column name to a Postgres identifier. Dataset
// headers use dots as separators; the tables use underscores.
func columnIdent(name string) string {
	return strings.ReplaceAll(name, ".", "_")
}

// Load copies source into opts.Table over conn. Rows covered by an
// existing checkpoint are skipped; every committed batch advances the
// checkpoint. The final table count is verified against the source's
// logical row count.
func Load(ctx context.Context, conn *pgx.Conn, source string, cfg *schema.TypeConfig, opts Options) (*Result, error) {
	ll := logctx.FromContext(ctx)

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	total, err := csvfile.CountRows(source, cfg.Encoding)
	if err != nil {
		return nil, err
	}

	var skip int64
	if opts.CheckpointPath != "" {
		skip = readCheckpoint(opts.CheckpointPath, source)
	}
	result := &Result{RowsSkipped: skip, Resumed: skip > 0}
	if skip > 0 {
		ll.Info("resuming load", "table", opts.Table, "skippingRows", skip)
	}

	reader, err := csvfile.NewReader(source, cfg)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	columns := cfg.ColumnNames()
	idents := make([]string, len(columns))
	for i, col := range columns {
		idents[i] = columnIdent(col)
	}
	capSet := make(map[string]bool, len(opts.CapColumns))
	for _, col := range opts.CapColumns {
		capSet[col] = true
	}

	loaded := skip
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		batch, err := reader.NextBatch(batchSize)
		if err != nil {
			return result, err
		}
		if len(batch) == 0 {
			break
		}
		if skip >= int64(len(batch)) {
			skip -= int64(len(batch))
			continue
		}
		batch = batch[skip:]
		skip = 0

		rows := make([][]any, len(batch))
		for i, row := range batch {
			tuple := make([]any, len(columns))
			for j, col := range columns {
				v, ok := row[col]
				if !ok {
					continue
				}
				if capSet[col] {
					v = capAmount(v)
				}
				tuple[j] = v
			}
			rows[i] = tuple
		}

		n, err := conn.CopyFrom(ctx, pgx.Identifier{opts.Table}, idents, pgx.CopyFromRows(rows))
		if err != nil {
			return result, fmt.Errorf("copy into %s: %w", opts.Table, err)
		}
		loaded += n
		result.RowsLoaded += n

		if opts.CheckpointPath != "" {
			if err := writeCheckpoint(opts.CheckpointPath, source, loaded); err != nil {
				return result, fmt.Errorf("write checkpoint: %w", err)
			}
		}
		ll.Info("batch loaded", "table", opts.Table, "rows", loaded, "of", total)
	}

	var tableRows int64
	countSQL := fmt.Sprintf("SELECT COUNT(*) FROM %s", pgx.Identifier{opts.Table}.Sanitize())
	if err := conn.QueryRow(ctx, countSQL).Scan(&tableRows); err != nil {
		return result, fmt.Errorf("count %s: %w", opts.Table, err)
	}
	result.TableRows = tableRows
	if tableRows != total {
		return result, &converr.RowCountMismatchError{
			Source:   source,
			Expected: total,
			Actual:   tableRows,
		}
	}

	if opts.CheckpointPath != "" {
		_ = os.Remove(opts.CheckpointPath)
	}
	ll.Info("load complete", "table", opts.Table, "rows", tableRows)
	return result, nil
}

func capAmount(v any) any {
	switch t := v.(type) {
	case float64:
		if t > AmountCap {
			return AmountCap
		}
		if t < -AmountCap {
			return -AmountCap
		}
	case int64:
		if float64(t) > AmountCap {
			return AmountCap
		}
		if float64(t) < -AmountCap {
			return -AmountCap
		}
	}
	return v
}
