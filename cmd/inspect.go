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
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/cardinalhq/filestat/config"
	"github.com/cardinalhq/filestat/internal/cloudstorage"
	"github.com/cardinalhq/filestat/internal/colmeta"
	"github.com/cardinalhq/filestat/internal/locator"
)

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect PATH",
		Short: "Show footer details of a single file",
		Long: `Prints file length, stripe count, raw data size, per-stripe row counts and the
schema of one file. PATH is either a storage URL such as s3://bucket/key or a
local file path.`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			verbose, err := c.Flags().GetBool("verbose")
			if err != nil {
				return fmt.Errorf("failed to get verbose flag: %w", err)
			}
			return withTelemetry(verbose, c.ErrOrStderr(), func(ctx context.Context) error {
				cfg, err := loadConfig(c)
				if err != nil {
					return err
				}
				return runInspect(ctx, cfg, args[0], c.OutOrStdout())
			})
		},
	}
	addStorageFlags(cmd)
	return cmd
}

func runInspect(ctx context.Context, cfg *config.Config, path string, out io.Writer) error {
	fs, loc, err := inspectTarget(ctx, cfg, path)
	if err != nil {
		return err
	}
	reader, err := colmeta.NewReader(cfg.Fetch.Reader, fs)
	if err != nil {
		return err
	}

	h, err := reader.Open(ctx, loc)
	if err != nil {
		return fmt.Errorf("failed to read metadata of %s: %w", path, err)
	}
	defer func() { _ = h.Close() }()

	writeInspection(out, path, h)
	return nil
}

// inspectTarget resolves path to a filesystem and locator. Paths without a
// scheme are local files.
func inspectTarget(ctx context.Context, cfg *config.Config, path string) (cloudstorage.Filesystem, locator.Locator, error) {
	if !strings.Contains(path, "://") {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, locator.Locator{}, fmt.Errorf("failed to resolve %s: %w", path, err)
		}
		fs := cloudstorage.NewLocalFilesystem(filepath.Dir(abs))
		return fs, locator.Locator{Scheme: "file", Container: ".", Key: filepath.Base(abs)}, nil
	}

	loc, err := locator.NewResolver(supportedSchemes...).Resolve(path)
	if err != nil {
		return nil, locator.Locator{}, err
	}
	router, err := newStorage(ctx, cfg, []string{loc.Scheme})
	if err != nil {
		return nil, locator.Locator{}, err
	}
	return router, loc, nil
}

func writeInspection(out io.Writer, path string, h colmeta.Handle) {
	footer := h.Footer()

	raw := "unknown"
	if size, ok := h.RawDataSize(); ok {
		raw = fmt.Sprintf("%d (%s)", size, humanize.Bytes(size))
	}

	fmt.Fprintf(out, "File:          %s\n", path)
	fmt.Fprintf(out, "File length:   %d (%s)\n", h.FileLength(), humanize.Bytes(h.FileLength()))
	fmt.Fprintf(out, "Stripes:       %d\n", h.StripeCount())
	fmt.Fprintf(out, "Rows:          %d\n", footer.NumRows)
	fmt.Fprintf(out, "Raw data size: %s\n", raw)
	if footer.CreatedBy != "" {
		fmt.Fprintf(out, "Created by:    %s\n", footer.CreatedBy)
	}
	fmt.Fprintln(out)

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"stripe", "rows", "byte_size", "columns"})
	table.SetAutoFormatHeaders(false)
	for i, s := range footer.Stripes {
		table.Append([]string{
			strconv.Itoa(i),
			strconv.FormatInt(s.Rows, 10),
			strconv.FormatUint(s.ByteSize, 10),
			strconv.Itoa(len(s.Columns)),
		})
	}
	table.Render()

	if footer.Schema != "" {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Schema:")
		fmt.Fprintln(out, footer.Schema)
	}
}
