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
	"path/filepath"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"

	"github.com/papertraildata/colstream/config"
	"github.com/papertraildata/colstream/internal/logctx"
	"github.com/papertraildata/colstream/internal/pgload"
)

func init() {
	cmd := &cobra.Command{
		Use:   "load SOURCE",
		Short: "Bulk-load a CSV source into Postgres with checkpointed COPY",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			dataset, _ := c.Flags().GetString("dataset")
			schemaFile, _ := c.Flags().GetString("schema")
			table, _ := c.Flags().GetString("table")
			database, _ := c.Flags().GetString("database")
			batchSize, _ := c.Flags().GetInt("batch-size")
			capColumns, _ := c.Flags().GetStringSlice("cap-column")
			logFile, _ := c.Flags().GetString("log-file")

			if table == "" {
				return fmt.Errorf("--table is required")
			}

			cfg, err := resolveSchema(dataset, schemaFile)
			if err != nil {
				return err
			}

			appCfg, err := config.Load()
			if err != nil {
				return err
			}
			if database == "" {
				database = appCfg.Load.Database
			}
			if database == "" {
				return fmt.Errorf("no database configured; set --database or COLSTREAM_LOAD_DATABASE")
			}
			if batchSize == 0 {
				batchSize = appCfg.Load.BatchSize
			}

			ctx, cancel, cleanup, err := setupRun(logFile)
			if err != nil {
				return err
			}
			defer cancel()
			defer cleanup()

			conn, err := pgx.Connect(ctx, database)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer conn.Close(ctx)

			checkpoint := filepath.Join(appCfg.Load.CheckpointDir, table+".checkpoint.json")
			result, err := pgload.Load(ctx, conn, args[0], cfg, pgload.Options{
				Table:          table,
				BatchSize:      batchSize,
				CheckpointPath: checkpoint,
				CapColumns:     capColumns,
			})
			if err != nil {
				return fmt.Errorf("load %s: %w", args[0], err)
			}
			logctx.FromContext(ctx).Info("load finished",
				"table", table,
				"rowsLoaded", result.RowsLoaded,
				"tableRows", result.TableRows,
				"resumed", result.Resumed)
			return nil
		},
	}
	cmd.Flags().String("dataset", "", "registered dataset name (see 'datasets')")
	cmd.Flags().String("schema", "", "dataset schema YAML file (overrides --dataset)")
	cmd.Flags().String("table", "", "destination table")
	cmd.Flags().String("database", "", "Postgres connection string")
	cmd.Flags().Int("batch-size", 0, "rows per COPY transaction")
	cmd.Flags().StringSlice("cap-column", []string{"amount"}, "float columns clamped to the NUMERIC(10,2) cap")
	cmd.Flags().String("log-file", "", "also write JSON logs to this file")
	rootCmd.AddCommand(cmd)
}
