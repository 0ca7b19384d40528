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

package colfile

import (
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/parquet-go/parquet-go"
)

func openParquet(path string) (*os.File, *parquet.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("stat %s: %w", path, err)
	}
	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("open parquet %s: %w", path, err)
	}
	return f, pf, nil
}

// RowCount returns the artifact's row count from file metadata only; no
// column data is read.
func RowCount(path string) (int64, error) {
	f, pf, err := openParquet(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return pf.NumRows(), nil
}

// Columns returns the artifact's column names.
func Columns(path string) ([]string, error) {
	f, pf, err := openParquet(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	fields := pf.Schema().Fields()
	names := make([]string, len(fields))
	for i, fld := range fields {
		names[i] = fld.Name()
	}
	return names, nil
}

// ColumnStats reads exactly one column from the artifact and returns the sum
// of its non-null numeric values and its non-null count. Only the pages of
// that column are decoded; other columns are never touched.
func ColumnStats(path, column string) (sum float64, nonNull int64, err error) {
	f, pf, err := openParquet(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	colIdx := -1
	for i, fld := range pf.Schema().Fields() {
		if fld.Name() == column {
			colIdx = i
			break
		}
	}
	if colIdx < 0 {
		return 0, 0, fmt.Errorf("column %q not present in %s", column, path)
	}

	buf := make([]parquet.Value, 1024)
	for _, rg := range pf.RowGroups() {
		pages := rg.ColumnChunks()[colIdx].Pages()
		for {
			page, err := pages.ReadPage()
			if err == io.EOF {
				break
			}
			if err != nil {
				_ = pages.Close()
				return 0, 0, fmt.Errorf("read page for %q: %w", column, err)
			}
			vr := page.Values()
			for {
				n, err := vr.ReadValues(buf)
				for _, v := range buf[:n] {
					if v.IsNull() {
						continue
					}
					nonNull++
					switch v.Kind() {
					case parquet.Int32:
						sum += float64(v.Int32())
					case parquet.Int64:
						sum += float64(v.Int64())
					case parquet.Float:
						sum += float64(v.Float())
					case parquet.Double:
						sum += v.Double()
					}
				}
				if err == io.EOF {
					break
				}
				if err != nil {
					_ = pages.Close()
					return 0, 0, fmt.Errorf("read values for %q: %w", column, err)
				}
			}
		}
		if err := pages.Close(); err != nil {
			return 0, 0, fmt.Errorf("close pages for %q: %w", column, err)
		}
	}
	return sum, nonNull, nil
}

// ReadRowsAt reads the rows at the given 0-based indices, ordered ascending.
// A single forward scan over the artifact captures rows as their index is
// reached; the artifact is never materialized whole, and the scan stops as
// soon as the last wanted index has been captured.
func ReadRowsAt(path string, indices []int64) ([]map[string]any, error) {
	if len(indices) == 0 {
		return nil, nil
	}
	want := slices.Clone(indices)
	slices.Sort(want)
	want = slices.Compact(want)

	f, pf, err := openParquet(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := parquet.NewGenericReader[map[string]any](pf, pf.Schema())
	defer reader.Close()

	const chunk = 1000
	out := make([]map[string]any, 0, len(want))
	next := 0
	var base int64
	for next < len(want) {
		rows := make([]map[string]any, chunk)
		for i := range rows {
			rows[i] = make(map[string]any)
		}
		n, err := reader.Read(rows)
		if n == 0 {
			if err == io.EOF || err == nil {
				return nil, fmt.Errorf("row index %d beyond end of %s (%d rows)", want[next], path, base)
			}
			return nil, fmt.Errorf("read rows from %s: %w", path, err)
		}
		for next < len(want) && want[next] < base+int64(n) {
			out = append(out, rows[want[next]-base])
			next++
		}
		base += int64(n)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read rows from %s: %w", path, err)
		}
	}
	if next < len(want) {
		return nil, fmt.Errorf("row index %d beyond end of %s (%d rows)", want[next], path, base)
	}
	return out, nil
}
