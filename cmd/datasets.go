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

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papertraildata/colstream/internal/schema"
)

func init() {
	cmd := &cobra.Command{
		Use:   "datasets",
		Short: "List registered datasets and their shapes",
		RunE: func(c *cobra.Command, args []string) error {
			for _, name := range schema.Names() {
				cfg, err := schema.Lookup(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.OutOrStdout(), "%-24s %3d columns  checksum=%s  sample=%d  encoding=%s\n",
					name, len(cfg.Columns), cfg.ChecksumColumn, cfg.DefaultSampleSize, cfg.Encoding)
			}
			return nil
		},
	}
	rootCmd.AddCommand(cmd)
}
