// Copyright (C) 2025 CardinalHQ, Inc
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
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/filestat/internal/colmeta"
	"github.com/cardinalhq/filestat/internal/logctx"
)

func newGenerateSampleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate-sample FILE",
		Short: "Write a sample columnar file for testing",
		Long:  `Writes a Parquet file with id, name and value columns, split into small row groups so the file has several stripes.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			rows, err := c.Flags().GetInt("rows")
			if err != nil {
				return fmt.Errorf("failed to get rows flag: %w", err)
			}
			perStripe, err := c.Flags().GetInt("rows-per-stripe")
			if err != nil {
				return fmt.Errorf("failed to get rows-per-stripe flag: %w", err)
			}
			verbose, err := c.Flags().GetBool("verbose")
			if err != nil {
				return fmt.Errorf("failed to get verbose flag: %w", err)
			}
			return withTelemetry(verbose, c.ErrOrStderr(), func(ctx context.Context) error {
				return runGenerateSample(ctx, args[0], rows, perStripe)
			})
		},
	}

	cmd.Flags().Int("rows", 1000, "Number of rows to write")
	cmd.Flags().Int("rows-per-stripe", 100, "Rows per stripe (row group)")

	return cmd
}

func runGenerateSample(ctx context.Context, filename string, rows, perStripe int) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filename, err)
	}
	if err := colmeta.WriteSample(f, rows, perStripe); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write sample file %s: %w", filename, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", filename, err)
	}

	logctx.FromContext(ctx).Info("Created sample file",
		slog.String("path", filename),
		slog.Int("rows", rows),
		slog.Int("rowsPerStripe", perStripe))
	return nil
}
