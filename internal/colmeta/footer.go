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

package colmeta

import "slices"

// ColumnStats are per-column totals taken from footer statistics. A zero
// field means the statistic was not recorded.
type ColumnStats struct {
	Path string
	// BytesOnDisk is the compressed size of the column's chunks.
	BytesOnDisk uint64
	// UncompressedBytes is the uncompressed size of the column's chunks.
	UncompressedBytes uint64
	// NumValues counts values, including nulls.
	NumValues uint64
}

// Stripe describes one stripe (a row group in Parquet).
type Stripe struct {
	Rows     int64
	ByteSize uint64
	Columns  []ColumnStats
}

// Footer is the decoded summary of a file's footer.
type Footer struct {
	FileLength uint64
	NumRows    int64
	// ContentLength is the file-level data size: ORC's content length, or
	// the sum of Parquet row groups' total byte sizes. Zero when the writer
	// did not record it.
	ContentLength uint64
	Stripes       []Stripe
	// FileColumns holds file-level column statistics for formats that keep
	// them outside the stripes (ORC).
	FileColumns []ColumnStats
	CreatedBy   string
	Schema      string
}

// ColumnTotals returns the file-level column statistics when the format
// records them, and otherwise sums each column over all stripes in the order
// columns first appear.
func (f *Footer) ColumnTotals() []ColumnStats {
	if len(f.FileColumns) > 0 {
		return slices.Clone(f.FileColumns)
	}
	var (
		out   []ColumnStats
		index = map[string]int{}
	)
	for _, s := range f.Stripes {
		for _, c := range s.Columns {
			i, ok := index[c.Path]
			if !ok {
				i = len(out)
				index[c.Path] = i
				out = append(out, ColumnStats{Path: c.Path})
			}
			out[i].BytesOnDisk += c.BytesOnDisk
			out[i].UncompressedBytes += c.UncompressedBytes
			out[i].NumValues += c.NumValues
		}
	}
	return out
}

// DeriveRawDataSize estimates a file's raw data size. The fallback order is:
//
//  1. contentLength, when non-zero;
//  2. per column, the on-disk byte count if recorded, else the value count;
//  3. absent, when the sum is zero.
//
// Value counts are a rough proxy for bytes, so the result is only an
// approximation once step 2 falls back to them.
func DeriveRawDataSize(contentLength uint64, columns []ColumnStats) (uint64, bool) {
	if contentLength > 0 {
		return contentLength, true
	}

	var total uint64
	for _, c := range columns {
		switch {
		case c.BytesOnDisk > 0:
			total += c.BytesOnDisk
		case c.NumValues > 0:
			total += c.NumValues
		}
	}
	if total == 0 {
		return 0, false
	}
	return total, true
}

func nonNegative(v int64) uint64 {
	if v < 0 {
		return 0
	}
	return uint64(v)
}
