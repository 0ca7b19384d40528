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

package csvfile

import (
	"encoding/csv"
	"fmt"
	"io"
	"slices"

	"github.com/papertraildata/colstream/internal/converr"
)

// ReadRowsAt reads the raw string values of the data rows at the given
// 0-based indices, keyed by header column name. The file is scanned once
// forward, capturing rows as their index is reached; random seeks are not
// assumed to be possible on the underlying format. Results are ordered by
// ascending row index.
func ReadRowsAt(path, encoding string, indices []int64) ([]map[string]string, error) {
	if len(indices) == 0 {
		return nil, nil
	}
	want := slices.Clone(indices)
	slices.Sort(want)
	want = slices.Compact(want)

	rc, err := open(path, encoding)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	cr := csv.NewReader(rc)
	header, err := cr.Read()
	if err != nil {
		return nil, &converr.SourceUnreadableError{Source: path, Err: err}
	}
	hdr := make([]string, len(header))
	copy(hdr, header)
	cr.FieldsPerRecord = len(hdr)
	cr.ReuseRecord = true

	out := make([]map[string]string, 0, len(want))
	next := 0
	var idx int64
	for next < len(want) {
		record, err := cr.Read()
		if err == io.EOF {
			return nil, &converr.SourceUnreadableError{
				Source: path,
				Err:    fmt.Errorf("row index %d beyond end of file (%d rows)", want[next], idx),
			}
		}
		if err != nil {
			return nil, &converr.CSVParseError{Source: path, Row: idx + 1, Err: err}
		}
		if idx == want[next] {
			row := make(map[string]string, len(hdr))
			for i, v := range record {
				row[hdr[i]] = v
			}
			out = append(out, row)
			next++
		}
		idx++
	}
	return out, nil
}
