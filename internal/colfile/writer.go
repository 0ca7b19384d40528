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

// Package colfile writes and reads the engine's columnar output artifacts:
// zstd-compressed Parquet with the column types declared by the dataset
// configuration reproduced bit-exactly (a string-typed identifier column is
// never coerced to a numeric type).
package colfile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"github.com/papertraildata/colstream/internal/converr"
	"github.com/papertraildata/colstream/internal/schema"
)

func writerOptions(sch *parquet.Schema) []parquet.WriterOption {
	return []parquet.WriterOption{
		sch,
		parquet.Compression(&parquet.Zstd),
		parquet.PageBufferSize(32 * 1024),
		parquet.ColumnIndexSizeLimit(1024),
		parquet.MaxRowsPerRowGroup(80_000),
	}
}

// nodeFor maps a declared column type to a parquet node. Every column is
// optional: null tokens in the source become nulls in the output.
func nodeFor(ct schema.ColumnType) parquet.Node {
	switch ct {
	case schema.TypeInt64:
		return parquet.Optional(parquet.Encoded(parquet.Int(64), &parquet.RLEDictionary))
	case schema.TypeFloat64:
		return parquet.Optional(parquet.Leaf(parquet.DoubleType))
	default:
		return parquet.Optional(parquet.Encoded(parquet.String(), &parquet.RLEDictionary))
	}
}

// Writer streams batches of rows into a single Parquet artifact. The schema
// is fixed at construction from the source's realized header. Writers are
// not concurrency-safe.
type Writer struct {
	path   string
	f      *os.File
	pw     *parquet.GenericWriter[map[string]any]
	colSet map[string]struct{}
	rows   int64
	closed bool
}

// NewWriter creates the output artifact with one optional column per entry of
// columns. Types come from cfg; columns unknown to cfg are written as
// strings so a schema mismatch is still diagnosable after conversion.
func NewWriter(path string, columns []string, cfg *schema.TypeConfig) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &converr.OutputWriteError{Output: path, Err: err}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, &converr.OutputWriteError{Output: path, Err: err}
	}

	nodes := make(map[string]parquet.Node, len(columns))
	colSet := make(map[string]struct{}, len(columns))
	for _, name := range columns {
		ct, ok := cfg.ColumnType(name)
		if !ok {
			ct = schema.TypeString
		}
		nodes[name] = nodeFor(ct)
		colSet[name] = struct{}{}
	}
	sch := parquet.NewSchema("colstream", parquet.Group(nodes))
	wc, err := parquet.NewWriterConfig(writerOptions(sch)...)
	if err != nil {
		_ = f.Close()
		return nil, &converr.OutputWriteError{Output: path, Err: err}
	}

	return &Writer{
		path:   path,
		f:      f,
		pw:     parquet.NewGenericWriter[map[string]any](f, wc),
		colSet: colSet,
	}, nil
}

// WriteBatch appends one batch. Rows must conform to the schema fixed at
// construction; a row carrying an unknown column is an error, which catches
// sources whose optional columns differ between chunks.
func (w *Writer) WriteBatch(rows []map[string]any) error {
	if w.closed {
		return &converr.OutputWriteError{Output: w.path, Err: fmt.Errorf("writer is closed")}
	}
	for _, row := range rows {
		for name := range row {
			if _, ok := w.colSet[name]; !ok {
				return &converr.OutputWriteError{
					Output: w.path,
					Err:    fmt.Errorf("row %d carries column %q not in the artifact schema", w.rows, name),
				}
			}
		}
	}
	if _, err := w.pw.Write(rows); err != nil {
		return &converr.OutputWriteError{Output: w.path, Err: err}
	}
	w.rows += int64(len(rows))
	return nil
}

// RowsWritten returns the number of rows written so far.
func (w *Writer) RowsWritten() int64 {
	return w.rows
}

// Close flushes and finalizes the artifact. A conversion that failed earlier
// leaves a partial, invalid artifact behind; discarding it is the caller's
// responsibility, as is any atomic-rename publication step.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.pw.Close(); err != nil {
		_ = w.f.Close()
		return &converr.OutputWriteError{Output: w.path, Err: err}
	}
	if err := w.f.Close(); err != nil {
		return &converr.OutputWriteError{Output: w.path, Err: err}
	}
	return nil
}
