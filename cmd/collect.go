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
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/filestat/internal/colmeta"
	"github.com/cardinalhq/filestat/internal/fetcher"
	"github.com/cardinalhq/filestat/internal/locator"
	"github.com/cardinalhq/filestat/internal/logctx"
	"github.com/cardinalhq/filestat/internal/report"
)

type collectOptions struct {
	input  string
	output string
	format string
	human  bool
	sort   bool
}

func newCollectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect INPUT",
		Short: "Collect metadata for every path listed in INPUT",
		Long: `Reads one path per line from INPUT ("-" for stdin), fetches footer metadata for
each file concurrently and writes one row per path. Blank lines and lines
starting with # are ignored. Per-file failures are reported in the error
column and do not change the exit status.`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			opts := collectOptions{input: args[0]}
			var err error
			if opts.output, err = c.Flags().GetString("output"); err != nil {
				return fmt.Errorf("failed to get output flag: %w", err)
			}
			if opts.format, err = c.Flags().GetString("format"); err != nil {
				return fmt.Errorf("failed to get format flag: %w", err)
			}
			if opts.human, err = c.Flags().GetBool("human"); err != nil {
				return fmt.Errorf("failed to get human flag: %w", err)
			}
			if opts.sort, err = c.Flags().GetBool("sort"); err != nil {
				return fmt.Errorf("failed to get sort flag: %w", err)
			}
			verbose, err := c.Flags().GetBool("verbose")
			if err != nil {
				return fmt.Errorf("failed to get verbose flag: %w", err)
			}

			return withTelemetry(verbose, c.ErrOrStderr(), func(ctx context.Context) error {
				return runCollect(ctx, c, opts)
			})
		},
	}

	cmd.Flags().StringP("output", "o", "", "Write results to this file instead of stdout")
	cmd.Flags().IntP("workers", "w", fetcher.DefaultPoolSize, "Number of files fetched concurrently")
	cmd.Flags().Duration("item-timeout", 0, "Per-file time limit (0 for none)")
	cmd.Flags().String("format", "", "Output format: csv, table or jsonl (default csv with --output, table otherwise)")
	cmd.Flags().Bool("human", false, "Show sizes in human readable units in table output")
	cmd.Flags().Bool("sort", false, "Sort results by path instead of completion order")
	addStorageFlags(cmd)

	return cmd
}

func runCollect(ctx context.Context, c *cobra.Command, opts collectOptions) error {
	logger := logctx.FromContext(ctx)

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	format, err := outputFormat(opts.format, opts.output)
	if err != nil {
		return err
	}

	paths, err := readInputFile(opts.input, c.InOrStdin())
	if err != nil {
		return err
	}
	logger.Info("Loaded input paths", slog.Int("count", len(paths)), slog.String("input", opts.input))

	router, err := newStorage(ctx, cfg, schemesIn(paths, supportedSchemes))
	if err != nil {
		return err
	}
	reader, err := colmeta.NewReader(cfg.Fetch.Reader, router)
	if err != nil {
		return err
	}
	f, err := fetcher.New(reader, cfg.Fetch.Workers,
		fetcher.WithItemTimeout(cfg.Fetch.ItemTimeout),
		fetcher.WithResolver(locator.NewResolver(supportedSchemes...)),
	)
	if err != nil {
		return err
	}

	ctx, span := tracer.Start(ctx, "filestat.collect", trace.WithAttributes(
		attribute.Int("paths", len(paths)),
		attribute.Int("workers", cfg.Fetch.Workers),
	))
	start := time.Now()
	records := f.FetchPaths(ctx, paths)
	span.End()

	summary := report.Summarize(records)
	logger.Info("Metadata collection finished",
		slog.Any("summary", summary),
		slog.Duration("elapsed", time.Since(start)))

	ropts := report.Options{Format: format, Human: opts.human, Sort: opts.sort}
	if opts.output == "" {
		if err := report.Write(c.OutOrStdout(), records, ropts); err != nil {
			return fmt.Errorf("failed to write results: %w", err)
		}
		return nil
	}
	if err := writeResultsFile(opts.output, records, ropts); err != nil {
		return err
	}
	logger.Info("Results saved", slog.String("path", opts.output))
	return nil
}

func writeResultsFile(name string, records []fetcher.Record, opts report.Options) error {
	file, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", name, err)
	}
	if err := report.Write(file, records, opts); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to write results to %s: %w", name, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close output file %s: %w", name, err)
	}
	return nil
}

// outputFormat picks the explicit format, else CSV for files and a table for
// the terminal.
func outputFormat(format, output string) (report.Format, error) {
	switch {
	case format != "":
		return report.ParseFormat(format)
	case output != "":
		return report.FormatCSV, nil
	default:
		return report.FormatTable, nil
	}
}
