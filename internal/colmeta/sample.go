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

import (
	"errors"
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"
)

// SampleRow is the row layout written by WriteSample.
type SampleRow struct {
	ID    int64   `parquet:"id"`
	Name  string  `parquet:"name"`
	Value float64 `parquet:"value"`
}

// WriteSample writes rows sample rows to w, flushing a new stripe every
// rowsPerStripe rows so the file ends up with several row groups.
func WriteSample(w io.Writer, rows, rowsPerStripe int) error {
	if rows < 0 || rowsPerStripe <= 0 {
		return errors.New("rows must be >= 0 and rows per stripe > 0")
	}

	pw := parquet.NewGenericWriter[SampleRow](w, parquet.Compression(&parquet.Zstd))
	batch := make([]SampleRow, 0, rowsPerStripe)
	for i := 0; i < rows; i++ {
		batch = append(batch, SampleRow{
			ID:    int64(i),
			Name:  fmt.Sprintf("name_%d", i),
			Value: float64(i) * 1.5,
		})
		if len(batch) == rowsPerStripe || i == rows-1 {
			if _, err := pw.Write(batch); err != nil {
				return fmt.Errorf("write rows: %w", err)
			}
			if err := pw.Flush(); err != nil {
				return fmt.Errorf("flush row group: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}
