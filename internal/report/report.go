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

// Package report renders fetched metadata records as CSV, a console table
// or JSON lines.
package report

import (
	"cmp"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"github.com/cardinalhq/filestat/internal/fetcher"
)

type Format string

const (
	FormatCSV   Format = "csv"
	FormatTable Format = "table"
	FormatJSONL Format = "jsonl"
)

// Columns is the header shared by all formats.
var Columns = []string{"file_path", "file_length", "num_stripes", "raw_data_size", "error"}

func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatCSV, FormatTable, FormatJSONL:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want csv, table or jsonl)", s)
	}
}

type Options struct {
	Format Format
	// Human renders sizes like "1.2 MB" in table output.
	Human bool
	// Sort orders records by path instead of completion order.
	Sort bool
}

// Write renders records to w. Absent values are left empty (null in JSON).
func Write(w io.Writer, records []fetcher.Record, opts Options) error {
	if opts.Sort {
		records = SortByPath(records)
	}
	switch opts.Format {
	case FormatCSV, "":
		return writeCSV(w, records)
	case FormatTable:
		return writeTable(w, records, opts.Human)
	case FormatJSONL:
		return writeJSONL(w, records)
	default:
		return fmt.Errorf("unknown output format %q", opts.Format)
	}
}

// SortByPath returns a copy of records ordered by path.
func SortByPath(records []fetcher.Record) []fetcher.Record {
	out := slices.Clone(records)
	slices.SortStableFunc(out, func(a, b fetcher.Record) int {
		return cmp.Compare(a.Path, b.Path)
	})
	return out
}

func writeCSV(w io.Writer, records []fetcher.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write(row(r, false)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeTable(w io.Writer, records []fetcher.Record, human bool) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader(Columns)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	for _, r := range records {
		table.Append(row(r, human))
	}
	table.Render()
	return nil
}

func writeJSONL(w io.Writer, records []fetcher.Record) error {
	enc := json.NewEncoder(w)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

func row(r fetcher.Record, human bool) []string {
	size := func(v *uint64) string {
		switch {
		case v == nil:
			return ""
		case human:
			return humanize.Bytes(*v)
		default:
			return strconv.FormatUint(*v, 10)
		}
	}
	stripes := ""
	if r.NumStripes != nil {
		stripes = strconv.FormatUint(uint64(*r.NumStripes), 10)
	}
	return []string{r.Path, size(r.FileLength), stripes, size(r.RawDataSize), r.Error}
}
