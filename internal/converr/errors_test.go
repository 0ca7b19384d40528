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

package converr

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceUnreadableUnwraps(t *testing.T) {
	err := &SourceUnreadableError{Source: "/data/in.csv", Err: fs.ErrNotExist}
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Contains(t, err.Error(), "[in.csv]")
}

func TestCSVParseErrorMessage(t *testing.T) {
	err := &CSVParseError{
		Source:  "/data/contribDB_2020.csv",
		Row:     1042,
		Column:  "amount",
		RawText: "12..5",
		Err:     fmt.Errorf("not a float"),
	}
	msg := err.Error()
	assert.Contains(t, msg, "[contribDB_2020.csv]")
	assert.Contains(t, msg, "row 1042")
	assert.Contains(t, msg, `column "amount"`)
	assert.Contains(t, msg, `"12..5"`)
}

func TestCSVParseErrorTruncatesLongValues(t *testing.T) {
	err := &CSVParseError{
		Source:  "in.csv",
		Row:     1,
		RawText: strings.Repeat("x", 500),
		Err:     fmt.Errorf("bad record"),
	}
	assert.Less(t, len(err.Error()), 250)
	assert.Contains(t, err.Error(), "...")
}

func TestRowCountMismatchDiff(t *testing.T) {
	err := &RowCountMismatchError{Source: "in.csv", Expected: 100, Actual: 97}
	assert.Equal(t, int64(3), err.Diff())
	assert.Contains(t, err.Error(), "expected 100, got 97")
}

func TestChecksumMismatchStats(t *testing.T) {
	sum := &ChecksumMismatchError{Source: "in.csv", Column: "amount", Stat: StatSum, Expected: 1.5, Actual: 2.5}
	assert.Contains(t, sum.Error(), "(sum)")

	nn := &ChecksumMismatchError{Source: "in.csv", Column: "id", Stat: StatNonNull, Expected: 4, Actual: 3}
	assert.Contains(t, nn.Error(), "(non-null count)")
}

func TestCompletenessErrorMessage(t *testing.T) {
	err := &CompletenessError{
		Expected:    500,
		Actual:      498,
		MissingKeys: []string{"A000001", "B000002"},
	}
	msg := err.Error()
	assert.Contains(t, msg, "expected 500 keys, got 498")
	assert.Contains(t, msg, "A000001")
}

func TestErrorsAsDistinguishesKinds(t *testing.T) {
	// wrapped taxonomy errors stay matchable through fmt.Errorf chains
	var base error = &SampleMismatchError{Source: "in.csv", RowIndex: 7, Column: "id", Expected: "C", Actual: "X"}
	wrapped := fmt.Errorf("validating: %w", base)

	var sample *SampleMismatchError
	require.True(t, errors.As(wrapped, &sample))
	assert.Equal(t, int64(7), sample.RowIndex)

	var rowCount *RowCountMismatchError
	assert.False(t, errors.As(wrapped, &rowCount))
}
