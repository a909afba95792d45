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
	"context"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/format"

	"github.com/cardinalhq/filestat/internal/cloudstorage"
	"github.com/cardinalhq/filestat/internal/locator"
)

// ParquetReader decodes footers with parquet-go.
type ParquetReader struct {
	fs cloudstorage.Filesystem
}

var _ Reader = (*ParquetReader)(nil)

func NewParquetReader(fs cloudstorage.Filesystem) *ParquetReader {
	return &ParquetReader{fs: fs}
}

func (r *ParquetReader) Open(ctx context.Context, loc locator.Locator) (Handle, error) {
	return openFooter(ctx, r.fs, loc, decodeParquet)
}

func decodeParquet(obj cloudstorage.Object) (*Footer, error) {
	// Page indexes and bloom filters live outside the footer; skipping them
	// keeps the read to the tail of the object.
	pf, err := parquet.OpenFile(obj, obj.Size(),
		parquet.SkipPageIndex(true),
		parquet.SkipBloomFilters(true),
	)
	if err != nil {
		return nil, err
	}

	footer := footerFromParquet(pf.Metadata())
	footer.Schema = pf.Schema().String()
	return footer, nil
}

func footerFromParquet(md *format.FileMetaData) *Footer {
	f := &Footer{
		NumRows:   md.NumRows,
		CreatedBy: md.CreatedBy,
		Stripes:   make([]Stripe, 0, len(md.RowGroups)),
	}
	for _, rg := range md.RowGroups {
		s := Stripe{
			Rows:     rg.NumRows,
			ByteSize: nonNegative(rg.TotalByteSize),
			Columns:  make([]ColumnStats, 0, len(rg.Columns)),
		}
		for _, cc := range rg.Columns {
			cmd := cc.MetaData
			s.Columns = append(s.Columns, ColumnStats{
				Path:              strings.Join(cmd.PathInSchema, "."),
				BytesOnDisk:       nonNegative(cmd.TotalCompressedSize),
				UncompressedBytes: nonNegative(cmd.TotalUncompressedSize),
				NumValues:         nonNegative(cmd.NumValues),
			})
		}
		f.ContentLength += s.ByteSize
		f.Stripes = append(f.Stripes, s)
	}
	return f
}
