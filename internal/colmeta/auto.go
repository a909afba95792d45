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
	"errors"
	"io"

	"github.com/cardinalhq/filestat/internal/cloudstorage"
	"github.com/cardinalhq/filestat/internal/locator"
)

const parquetMagic = "PAR1"

// AutoReader picks a decoder per file from its trailer: Parquet files end
// with "PAR1", anything else is decoded as ORC. The trailer lies inside the
// tail prefetched by the Filesystem.
type AutoReader struct {
	fs cloudstorage.Filesystem
}

var _ Reader = (*AutoReader)(nil)

func NewAutoReader(fs cloudstorage.Filesystem) *AutoReader {
	return &AutoReader{fs: fs}
}

func (r *AutoReader) Open(ctx context.Context, loc locator.Locator) (Handle, error) {
	return openFooter(ctx, r.fs, loc, decodeAuto)
}

func decodeAuto(obj cloudstorage.Object) (*Footer, error) {
	if size := obj.Size(); size >= int64(len(parquetMagic)) {
		trailer, err := readAt(obj, size-int64(len(parquetMagic)), int64(len(parquetMagic)))
		if err != nil {
			return nil, err
		}
		if string(trailer) == parquetMagic {
			return decodeParquet(obj)
		}
	}
	return decodeORC(obj)
}

// readAt reads exactly n bytes at off.
func readAt(r io.ReaderAt, off, n int64) ([]byte, error) {
	buf := make([]byte, n)
	got, err := r.ReadAt(buf, off)
	if got == len(buf) {
		return buf, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return nil, err
}
