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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/papertraildata/colstream/config"
	"github.com/papertraildata/colstream/internal/convert"
	"github.com/papertraildata/colstream/internal/logctx"
	"github.com/papertraildata/colstream/internal/s3fetch"
	"github.com/papertraildata/colstream/internal/schema"
)

func init() {
	cmd := &cobra.Command{
		Use:   "convert SOURCE...",
		Short: "Convert CSV sources to validated columnar artifacts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			dataset, _ := c.Flags().GetString("dataset")
			schemaFile, _ := c.Flags().GetString("schema")
			output, _ := c.Flags().GetString("output")
			outputDir, _ := c.Flags().GetString("output-dir")
			batchSize, _ := c.Flags().GetInt("batch-size")
			sampleSize, _ := c.Flags().GetInt("sample-size")
			noValidate, _ := c.Flags().GetBool("no-validate")
			logFile, _ := c.Flags().GetString("log-file")

			if len(args) > 1 && output != "" {
				return fmt.Errorf("--output requires a single source; use --output-dir")
			}

			cfg, err := resolveSchema(dataset, schemaFile)
			if err != nil {
				return err
			}

			appCfg, err := config.Load()
			if err != nil {
				return err
			}
			if batchSize == 0 {
				batchSize = appCfg.Convert.BatchSize
			}
			if sampleSize == 0 {
				sampleSize = appCfg.Convert.SampleSize
			}

			ctx, cancel, cleanup, err := setupRun(logFile)
			if err != nil {
				return err
			}
			defer cancel()
			defer cleanup()

			opts := convert.Options{
				BatchSize:  batchSize,
				Validate:   !noValidate,
				SampleSize: sampleSize,
			}

			var errs *multierror.Error
			for _, source := range args {
				if err := convertOne(ctx, source, output, outputDir, cfg, opts); err != nil {
					logctx.FromContext(ctx).Error("conversion failed",
						"source", source, "error", err.Error())
					errs = multierror.Append(errs, fmt.Errorf("%s: %w", source, err))
				}
			}
			return errs.ErrorOrNil()
		},
	}
	cmd.Flags().String("dataset", "", "registered dataset name (see 'datasets')")
	cmd.Flags().String("schema", "", "dataset schema YAML file (overrides --dataset)")
	cmd.Flags().StringP("output", "o", "", "output file (single source only)")
	cmd.Flags().String("output-dir", "", "output directory (derives file names)")
	cmd.Flags().Int("batch-size", 0, "rows per in-memory batch")
	cmd.Flags().Int("sample-size", 0, "tier 3 sample size override")
	cmd.Flags().Bool("no-validate", false, "skip post-conversion validation")
	cmd.Flags().String("log-file", "", "also write JSON logs to this file")
	rootCmd.AddCommand(cmd)
}

func convertOne(ctx context.Context, source, output, outputDir string, cfg *schema.TypeConfig, opts convert.Options) error {
	if s3fetch.IsS3(source) {
		local, err := s3fetch.Fetch(ctx, os.TempDir(), source)
		if err != nil {
			return err
		}
		defer os.Remove(local)
		if output == "" {
			output = filepath.Join(outputDir, artifactName(source))
		}
		source = local
	}
	if output == "" {
		output = filepath.Join(outputDir, artifactName(source))
	}
	_, err := convert.Convert(ctx, source, output, cfg, opts)
	return err
}

// artifactName derives out.parquet from any of in.csv, in.csv.gz, or an
// s3 key ending in either.
func artifactName(source string) string {
	base := filepath.Base(source)
	base = strings.TrimSuffix(base, ".gz")
	base = strings.TrimSuffix(base, ".csv")
	return base + ".parquet"
}

func resolveSchema(dataset, schemaFile string) (*schema.TypeConfig, error) {
	if schemaFile != "" {
		return schema.LoadFile(schemaFile)
	}
	if dataset == "" {
		return nil, fmt.Errorf("one of --dataset or --schema is required")
	}
	return schema.Lookup(dataset)
}
