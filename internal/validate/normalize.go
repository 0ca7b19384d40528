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

package validate

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// sampleTolerance bounds relative numeric drift in Tier 3 comparisons.
const sampleTolerance = 1e-6

// Normalize maps a raw source or artifact value to its canonical comparison
// form: nil for any null representation (absent, NaN, a configured null
// token, or the literal string "nan"), float64 for numeric types, and a
// whitespace-trimmed string otherwise. The source side arrives as raw CSV
// strings, the artifact side as typed values, so both funnel through here
// before Equal sees them.
func Normalize(v any, isNullToken func(string) bool) any {
	switch t := v.(type) {
	case nil:
		return nil
	case float64:
		if math.IsNaN(t) {
			return nil
		}
		return t
	case float32:
		if math.IsNaN(float64(t)) {
			return nil
		}
		return float64(t)
	case int64:
		return float64(t)
	case int32:
		return float64(t)
	case int:
		return float64(t)
	case []byte:
		return normalizeString(string(t), isNullToken)
	case string:
		return normalizeString(t, isNullToken)
	default:
		return v
	}
}

func normalizeString(raw string, isNullToken func(string) bool) any {
	if isNullToken != nil && isNullToken(raw) {
		return nil
	}
	s := strings.TrimSpace(raw)
	if isNullToken != nil && isNullToken(s) {
		return nil
	}
	if strings.EqualFold(s, "nan") {
		return nil
	}
	return s
}

// Equal compares two normalized values. Two nils match; two values that both
// parse as numbers match within sampleTolerance; everything else falls back
// to exact string equality. A numeric-looking string compares equal to its
// float form so int columns survive the CSV "12" versus parquet 12 round
// trip.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return floatsMatch(af, bf)
	}
	return display(a) == display(b)
}

func floatsMatch(a, b float64) bool {
	diff := math.Abs(a - b)
	if diff == 0 {
		return true
	}
	scale := math.Max(math.Abs(a), math.Abs(b))
	if scale < 1 {
		scale = 1
	}
	return diff <= sampleTolerance*scale
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// display renders a normalized value for mismatch reports.
func display(v any) string {
	switch t := v.(type) {
	case nil:
		return "<null>"
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
