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
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/papertraildata/colstream/internal/converr"
	"github.com/papertraildata/colstream/internal/schema"
)

// Reader streams typed rows from a delimited source in bounded batches.
// Values are coerced to the configured column types; a value matching a null
// token becomes a null (absent map key). Any value that can neither be
// coerced nor treated as null fails the whole read with a CSVParseError —
// rows are never silently dropped or coerced.
type Reader struct {
	path   string
	rc     io.ReadCloser
	cr     *csv.Reader
	cfg    *schema.TypeConfig
	header []string
	rowNum int64 // 1-based data row number of the last row read
}

// NewReader opens the source and reads its header row. Columns in the header
// that are not declared in cfg are carried through as strings; the schema
// validator flags them after conversion.
func NewReader(path string, cfg *schema.TypeConfig) (*Reader, error) {
	rc, err := open(path, cfg.Encoding)
	if err != nil {
		return nil, err
	}
	cr := csv.NewReader(rc)
	header, err := cr.Read()
	if err != nil {
		_ = rc.Close()
		return nil, &converr.SourceUnreadableError{Source: path, Err: err}
	}
	hdr := make([]string, len(header))
	copy(hdr, header)
	// A repeated header name would make later occurrences silently overwrite
	// earlier ones in the row maps.
	seen := make(map[string]struct{}, len(hdr))
	for _, name := range hdr {
		if _, dup := seen[name]; dup {
			_ = rc.Close()
			return nil, &converr.CSVParseError{
				Source: path,
				Column: name,
				Err:    errors.New("column appears more than once in the header"),
			}
		}
		seen[name] = struct{}{}
	}
	cr.FieldsPerRecord = len(hdr)
	return &Reader{path: path, rc: rc, cr: cr, cfg: cfg, header: hdr}, nil
}

// Header returns the realized column names in source order.
func (r *Reader) Header() []string {
	return r.header
}

// NextBatch reads up to size rows. It returns an empty slice once the source
// is exhausted. At most one batch of rows is resident at a time.
func (r *Reader) NextBatch(size int) ([]map[string]any, error) {
	rows := make([]map[string]any, 0, size)
	for len(rows) < size {
		record, err := r.cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &converr.CSVParseError{
				Source:  r.path,
				Row:     r.rowNum + 1,
				RawText: rawRecord(record),
				Err:     err,
			}
		}
		r.rowNum++
		row, err := r.coerce(record)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Close releases the underlying source handle.
func (r *Reader) Close() error {
	return r.rc.Close()
}

func (r *Reader) coerce(record []string) (map[string]any, error) {
	row := make(map[string]any, len(record))
	for i, raw := range record {
		name := r.header[i]
		if r.cfg.IsNullToken(raw) {
			continue
		}
		ct, known := r.cfg.ColumnType(name)
		if !known {
			ct = schema.TypeString
		}
		switch ct {
		case schema.TypeString:
			row[name] = raw
		case schema.TypeInt64:
			v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
			if err != nil {
				return nil, &converr.CSVParseError{
					Source:  r.path,
					Row:     r.rowNum,
					Column:  name,
					RawText: raw,
					Err:     fmt.Errorf("not an integer"),
				}
			}
			row[name] = v
		case schema.TypeFloat64:
			v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				return nil, &converr.CSVParseError{
					Source:  r.path,
					Row:     r.rowNum,
					Column:  name,
					RawText: raw,
					Err:     fmt.Errorf("not a float"),
				}
			}
			row[name] = v
		}
	}
	return row, nil
}

func rawRecord(record []string) string {
	if record == nil {
		return ""
	}
	return strings.Join(record, ",")
}
