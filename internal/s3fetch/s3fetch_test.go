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

package s3fetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsS3(t *testing.T) {
	assert.True(t, IsS3("s3://dime-archive/contribDB_2020.csv.gz"))
	assert.False(t, IsS3("/data/contribDB_2020.csv.gz"))
	assert.False(t, IsS3("https://example.com/file.csv"))
}

func TestParseURI(t *testing.T) {
	bucket, key, err := parseURI("s3://dime-archive/raw/contribDB_2020.csv.gz")
	require.NoError(t, err)
	assert.Equal(t, "dime-archive", bucket)
	assert.Equal(t, "raw/contribDB_2020.csv.gz", key)
}

func TestParseURIErrors(t *testing.T) {
	for _, uri := range []string{
		"/local/path.csv",
		"s3://bucket-only",
		"s3:///no-bucket",
		"s3://",
	} {
		_, _, err := parseURI(uri)
		assert.Error(t, err, uri)
	}
}
