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
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/metadata"

	"github.com/cardinalhq/filestat/internal/cloudstorage"
	"github.com/cardinalhq/filestat/internal/locator"
)

// ArrowReader decodes footers with the Apache Arrow parquet implementation.
type ArrowReader struct {
	fs cloudstorage.Filesystem
}

var _ Reader = (*ArrowReader)(nil)

func NewArrowReader(fs cloudstorage.Filesystem) *ArrowReader {
	return &ArrowReader{fs: fs}
}

func (r *ArrowReader) Open(ctx context.Context, loc locator.Locator) (Handle, error) {
	return openFooter(ctx, r.fs, loc, decodeArrow)
}

func decodeArrow(obj cloudstorage.Object) (*Footer, error) {
	pf, err := file.NewParquetReader(io.NewSectionReader(obj, 0, obj.Size()))
	if err != nil {
		return nil, err
	}
	defer func() { _ = pf.Close() }()

	md := pf.MetaData()
	footer, err := footerFromArrow(md)
	if err != nil {
		return nil, err
	}
	if md.Schema != nil {
		footer.Schema = md.Schema.String()
	}
	return footer, nil
}

func footerFromArrow(md *metadata.FileMetaData) (*Footer, error) {
	f := &Footer{
		NumRows:   md.GetNumRows(),
		CreatedBy: md.GetCreatedBy(),
		Stripes:   make([]Stripe, 0, md.NumRowGroups()),
	}
	for i := 0; i < md.NumRowGroups(); i++ {
		rg := md.RowGroup(i)
		s := Stripe{
			Rows:     rg.NumRows(),
			ByteSize: nonNegative(rg.TotalByteSize()),
			Columns:  make([]ColumnStats, 0, rg.NumColumns()),
		}
		for j := 0; j < rg.NumColumns(); j++ {
			cc, err := rg.ColumnChunk(j)
			if err != nil {
				return nil, fmt.Errorf("row group %d column %d: %w", i, j, err)
			}
			s.Columns = append(s.Columns, ColumnStats{
				Path:              cc.PathInSchema().String(),
				BytesOnDisk:       nonNegative(cc.TotalCompressedSize()),
				UncompressedBytes: nonNegative(cc.TotalUncompressedSize()),
				NumValues:         nonNegative(cc.NumValues()),
			})
		}
		f.ContentLength += s.ByteSize
		f.Stripes = append(f.Stripes, s)
	}
	return f, nil
}
