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

// Package aggregate collapses a many-row-per-entity artifact into a
// one-row-per-entity artifact inside an embedded analytical database, then
// validates the collapse with checks adapted to the many-to-one shape:
// source row counts no longer equal output row counts, so correctness is
// proven through key completeness, per-key aggregation integrity, and a
// deep sample of fully reassembled rows.
package aggregate

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/papertraildata/colstream/internal/converr"
	"github.com/papertraildata/colstream/internal/logctx"
)

// Spec describes one many-to-one aggregation. Input rows group by
// KeyColumn; ordering within a group follows OrderColumn ascending, so
// "latest" means the row with the greatest OrderColumn value.
type Spec struct {
	// Name tags log lines and the output table.
	Name string
	// KeyColumn is the entity identity; rows with a null key are dropped.
	KeyColumn string
	// OrderColumn sequences each group (for DIME-adjacent data, the
	// congress number).
	OrderColumn string
	// MinOrder drops groups' rows below this OrderColumn value before
	// grouping. Zero means no floor.
	MinOrder int64
	// LatestColumns are carried from the group's greatest-order row.
	LatestColumns []string
	// ListColumn, when set, adds "<OrderColumn>s": every order value in
	// the group, ascending.
	ListColumn string
	// SampleSize bounds the deep-sample check.
	SampleSize int
}

// Legislators aggregates member-congress rows into one row per legislator,
// keeping the most recent biographical fields, the full list of congresses
// served, and the first/last congress bounds. Congresses before the 96th
// predate the identifier scheme and are excluded.
func Legislators() Spec {
	return Spec{
		Name:        "distinct_legislators",
		KeyColumn:   "bioguide_id",
		OrderColumn: "congress",
		MinOrder:    96,
		LatestColumns: []string{
			"chamber", "icpsr", "state_icpsr", "district_code", "state_abbrev",
			"party_code", "bioname", "born", "died",
		},
		ListColumn: "congresses",
		SampleSize: 200,
	}
}

// Result reports one aggregation run and its validation outcome.
type Result struct {
	Source       string
	Output       string
	SourceRows   int64
	OutputRows   int64
	DistinctKeys int64
	SampleSize   int
}

// Run aggregates source (a columnar artifact) into output per spec and
// validates the result. The whole run shares one in-memory database so the
// validation queries see exactly the data that produced the output file.
func Run(ctx context.Context, source, output string, spec Spec) (*Result, error) {
	ll := logctx.FromContext(ctx)

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx,
		fmt.Sprintf("CREATE VIEW source_rows AS SELECT * FROM read_parquet(%s)", quoteLiteral(source)),
	); err != nil {
		return nil, &converr.SourceUnreadableError{Source: source, Err: err}
	}

	if _, err := db.ExecContext(ctx, buildAggregateSQL(spec)); err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", spec.Name, err)
	}

	copySQL := fmt.Sprintf(
		"COPY (SELECT * FROM aggregated ORDER BY %s) TO %s (FORMAT PARQUET, COMPRESSION ZSTD)",
		quoteIdent(spec.KeyColumn), quoteLiteral(output),
	)
	if _, err := db.ExecContext(ctx, copySQL); err != nil {
		return nil, &converr.OutputWriteError{Output: output, Err: err}
	}

	result := &Result{Source: source, Output: output, SampleSize: spec.SampleSize}
	if err := validateCompleteness(ctx, db, source, output, spec, result); err != nil {
		return result, err
	}
	ll.Info("completeness passed", "distinctKeys", result.DistinctKeys, "outputRows", result.OutputRows)

	if err := validateIntegrity(ctx, db, spec, result); err != nil {
		return result, err
	}
	ll.Info("aggregation integrity passed", "sampledKeys", result.SampleSize)

	if err := validateDeepSample(ctx, db, spec, result); err != nil {
		return result, err
	}
	ll.Info("deep sample passed", "sampledKeys", result.SampleSize)

	return result, nil
}

// buildAggregateSQL produces the grouped temp table. LAST(x ORDER BY o)
// picks each latest-row field and LIST(o ORDER BY o) reassembles the
// ascending order history, so one statement yields the whole output shape.
func buildAggregateSQL(spec Spec) string {
	var sb strings.Builder
	sb.WriteString("CREATE TEMP TABLE aggregated AS SELECT ")
	sb.WriteString(quoteIdent(spec.KeyColumn))

	for _, col := range spec.LatestColumns {
		fmt.Fprintf(&sb, ", LAST(%s ORDER BY %s) AS %s",
			quoteIdent(col), quoteIdent(spec.OrderColumn), quoteIdent(col))
	}
	if spec.ListColumn != "" {
		fmt.Fprintf(&sb, ", LIST(%s ORDER BY %s) AS %s",
			quoteIdent(spec.OrderColumn), quoteIdent(spec.OrderColumn), quoteIdent(spec.ListColumn))
	}
	fmt.Fprintf(&sb, ", MIN(%s) AS first_%s, MAX(%s) AS last_%s",
		quoteIdent(spec.OrderColumn), spec.OrderColumn,
		quoteIdent(spec.OrderColumn), spec.OrderColumn)

	fmt.Fprintf(&sb, " FROM source_rows WHERE %s IS NOT NULL", quoteIdent(spec.KeyColumn))
	if spec.MinOrder != 0 {
		fmt.Fprintf(&sb, " AND %s >= %d", quoteIdent(spec.OrderColumn), spec.MinOrder)
	}
	fmt.Fprintf(&sb, " GROUP BY %s", quoteIdent(spec.KeyColumn))
	return sb.String()
}

// quoteIdent wraps a column name in double quotes for DuckDB identifiers;
// dataset columns contain dots and other separator characters.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quoteLiteral wraps a path in single quotes for DuckDB string literals.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
