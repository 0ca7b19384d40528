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

	"github.com/papertraildata/colstream/internal/aggregate"
	"github.com/papertraildata/colstream/internal/logctx"
)

func init() {
	cmd := &cobra.Command{
		Use:   "aggregate SOURCE OUTPUT",
		Short: "Collapse a member-congress artifact into one row per legislator",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			sampleSize, _ := c.Flags().GetInt("sample-size")
			logFile, _ := c.Flags().GetString("log-file")

			ctx, cancel, cleanup, err := setupRun(logFile)
			if err != nil {
				return err
			}
			defer cancel()
			defer cleanup()

			spec := aggregate.Legislators()
			if sampleSize > 0 {
				spec.SampleSize = sampleSize
			}

			result, err := aggregate.Run(ctx, args[0], args[1], spec)
			if err != nil {
				return fmt.Errorf("aggregate %s: %w", args[0], err)
			}
			logctx.FromContext(ctx).Info("aggregation complete",
				"sourceRows", result.SourceRows,
				"outputRows", result.OutputRows,
				"output", result.Output)
			return nil
		},
	}
	cmd.Flags().Int("sample-size", 0, "validation sample size override")
	cmd.Flags().String("log-file", "", "also write JSON logs to this file")
	rootCmd.AddCommand(cmd)
}
