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
	"errors"
	"fmt"

	"github.com/papertraildata/colstream/internal/converr"
)

// sourceFilter renders the row filter that defines a group's membership.
func sourceFilter(spec Spec) string {
	f := fmt.Sprintf("%s IS NOT NULL", quoteIdent(spec.KeyColumn))
	if spec.MinOrder != 0 {
		f += fmt.Sprintf(" AND %s >= %d", quoteIdent(spec.OrderColumn), spec.MinOrder)
	}
	return f
}

// validateCompleteness re-reads the written artifact and checks that it
// holds exactly one row per distinct surviving key: no key lost, none
// invented, none duplicated. Reads the output file itself rather than the
// temp table so a failed COPY cannot hide behind an intact in-memory state.
func validateCompleteness(ctx context.Context, db *sql.DB, source, output string, spec Spec, result *Result) error {
	if _, err := db.ExecContext(ctx,
		fmt.Sprintf("CREATE VIEW output_rows AS SELECT * FROM read_parquet(%s)", quoteLiteral(output)),
	); err != nil {
		return &converr.SourceUnreadableError{Source: output, Err: err}
	}

	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM source_rows").Scan(&result.SourceRows); err != nil {
		return err
	}
	expectedQ := fmt.Sprintf("SELECT COUNT(DISTINCT %s) FROM source_rows WHERE %s",
		quoteIdent(spec.KeyColumn), sourceFilter(spec))
	if err := db.QueryRowContext(ctx, expectedQ).Scan(&result.DistinctKeys); err != nil {
		return err
	}
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM output_rows").Scan(&result.OutputRows); err != nil {
		return err
	}

	var duplicates int64
	dupQ := fmt.Sprintf(
		"SELECT COUNT(*) FROM (SELECT %s FROM output_rows GROUP BY %s HAVING COUNT(*) > 1)",
		quoteIdent(spec.KeyColumn), quoteIdent(spec.KeyColumn))
	if err := db.QueryRowContext(ctx, dupQ).Scan(&duplicates); err != nil {
		return err
	}

	if result.OutputRows == result.DistinctKeys && duplicates == 0 {
		return nil
	}

	missing, err := keyDiff(ctx, db, spec,
		fmt.Sprintf("SELECT DISTINCT %s FROM source_rows WHERE %s", quoteIdent(spec.KeyColumn), sourceFilter(spec)),
		fmt.Sprintf("SELECT %s FROM output_rows", quoteIdent(spec.KeyColumn)))
	if err != nil {
		return err
	}
	extra, err := keyDiff(ctx, db, spec,
		fmt.Sprintf("SELECT %s FROM output_rows", quoteIdent(spec.KeyColumn)),
		fmt.Sprintf("SELECT DISTINCT %s FROM source_rows WHERE %s", quoteIdent(spec.KeyColumn), sourceFilter(spec)))
	if err != nil {
		return err
	}
	return &converr.CompletenessError{
		Expected:    result.DistinctKeys,
		Actual:      result.OutputRows,
		Duplicates:  duplicates,
		MissingKeys: missing,
		ExtraKeys:   extra,
	}
}

// keyDiff returns up to ten keys present in left but not right, for
// mismatch reports.
func keyDiff(ctx context.Context, db *sql.DB, spec Spec, left, right string) ([]string, error) {
	q := fmt.Sprintf("SELECT CAST(k AS VARCHAR) FROM ((%s) EXCEPT (%s)) AS d(k) ORDER BY k LIMIT 10", left, right)
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// validateIntegrity recomputes the cheap per-group invariants for a random
// sample of output keys: first/last order bounds and, when a list column
// exists, the list length against the group's row count. The comparison
// runs in one set-based query; only a mismatching row crosses back into Go.
func validateIntegrity(ctx context.Context, db *sql.DB, spec Spec, result *Result) error {
	lenExpr := "0"
	countExpr := "0"
	if spec.ListColumn != "" {
		lenExpr = fmt.Sprintf("len(s.%s)", quoteIdent(spec.ListColumn))
		countExpr = "r.cnt"
	}
	q := fmt.Sprintf(`
WITH sampled AS (
  SELECT * FROM output_rows USING SAMPLE %d ROWS
),
recomputed AS (
  SELECT %[2]s AS k, MIN(%[3]s) AS mn, MAX(%[3]s) AS mx, COUNT(*) AS cnt
  FROM source_rows WHERE %[4]s GROUP BY %[2]s
)
SELECT CAST(s.%[2]s AS VARCHAR),
       s.first_%[5]s, r.mn, s.last_%[5]s, r.mx, %[6]s, %[7]s
FROM sampled s JOIN recomputed r ON s.%[2]s = r.k
WHERE s.first_%[5]s <> r.mn OR s.last_%[5]s <> r.mx OR %[6]s <> %[7]s
LIMIT 1`,
		spec.SampleSize, quoteIdent(spec.KeyColumn), quoteIdent(spec.OrderColumn),
		sourceFilter(spec), spec.OrderColumn, lenExpr, countExpr)

	var key string
	var firstGot, firstWant, lastGot, lastWant, lenGot, lenWant int64
	err := db.QueryRowContext(ctx, q).Scan(&key, &firstGot, &firstWant, &lastGot, &lastWant, &lenGot, &lenWant)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	switch {
	case firstGot != firstWant:
		return &converr.AggregationError{Key: key, Field: "first_" + spec.OrderColumn,
			Expected: fmt.Sprint(firstWant), Actual: fmt.Sprint(firstGot)}
	case lastGot != lastWant:
		return &converr.AggregationError{Key: key, Field: "last_" + spec.OrderColumn,
			Expected: fmt.Sprint(lastWant), Actual: fmt.Sprint(lastGot)}
	default:
		return &converr.AggregationError{Key: key, Field: "len(" + spec.ListColumn + ")",
			Expected: fmt.Sprint(lenWant), Actual: fmt.Sprint(lenGot)}
	}
}

// validateDeepSample fully reassembles a random sample of groups from the
// source and compares every aggregated field, list history included,
// against the written row. List values compare as VARCHAR on both sides so
// the check is independent of the driver's composite-type decoding.
func validateDeepSample(ctx context.Context, db *sql.DB, spec Spec, result *Result) error {
	for _, col := range spec.LatestColumns {
		q := fmt.Sprintf(`
WITH sampled AS (
  SELECT * FROM output_rows USING SAMPLE %d ROWS
),
recomputed AS (
  SELECT %[2]s AS k, LAST(%[3]s ORDER BY %[4]s) AS v
  FROM source_rows WHERE %[5]s GROUP BY %[2]s
)
SELECT CAST(s.%[2]s AS VARCHAR), CAST(r.v AS VARCHAR), CAST(s.%[3]s AS VARCHAR)
FROM sampled s JOIN recomputed r ON s.%[2]s = r.k
WHERE s.%[3]s IS DISTINCT FROM r.v
LIMIT 1`,
			spec.SampleSize, quoteIdent(spec.KeyColumn), quoteIdent(col),
			quoteIdent(spec.OrderColumn), sourceFilter(spec))
		if err := scanFieldMismatch(ctx, db, q, col); err != nil {
			return err
		}
	}

	if spec.ListColumn == "" {
		return nil
	}
	q := fmt.Sprintf(`
WITH sampled AS (
  SELECT * FROM output_rows USING SAMPLE %d ROWS
),
recomputed AS (
  SELECT %[2]s AS k, LIST(%[3]s ORDER BY %[3]s) AS v
  FROM source_rows WHERE %[4]s GROUP BY %[2]s
)
SELECT CAST(s.%[2]s AS VARCHAR), CAST(r.v AS VARCHAR), CAST(s.%[5]s AS VARCHAR)
FROM sampled s JOIN recomputed r ON s.%[2]s = r.k
WHERE CAST(s.%[5]s AS VARCHAR) IS DISTINCT FROM CAST(r.v AS VARCHAR)
LIMIT 1`,
		spec.SampleSize, quoteIdent(spec.KeyColumn), quoteIdent(spec.OrderColumn),
		sourceFilter(spec), quoteIdent(spec.ListColumn))
	return scanFieldMismatch(ctx, db, q, spec.ListColumn)
}

func scanFieldMismatch(ctx context.Context, db *sql.DB, query, field string) error {
	var key string
	var expected, actual sql.NullString
	err := db.QueryRowContext(ctx, query).Scan(&key, &expected, &actual)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	return &converr.AggregationError{
		Key:      key,
		Field:    field,
		Expected: nullStr(expected),
		Actual:   nullStr(actual),
	}
}

func nullStr(s sql.NullString) string {
	if !s.Valid {
		return "<null>"
	}
	return s.String
}
