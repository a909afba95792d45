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

// Package colmeta reads footer metadata of columnar files in object storage:
// stripe (row group) count, file length and an approximate raw data size.
// Only footer bytes are read; column data is never fetched.
package colmeta

import (
	"context"
	"errors"
	"fmt"

	"github.com/cardinalhq/filestat/internal/cloudstorage"
	"github.com/cardinalhq/filestat/internal/locator"
)

// Reader opens columnar files for metadata access. Implementations must be
// safe for concurrent use.
type Reader interface {
	Open(ctx context.Context, loc locator.Locator) (Handle, error)
}

// Handle exposes the metadata of one opened file.
type Handle interface {
	StripeCount() uint32
	FileLength() uint64
	// RawDataSize is best effort; ok is false when no estimate exists.
	RawDataSize() (size uint64, ok bool)
	// Footer returns the decoded footer summary.
	Footer() *Footer
	Close() error
}

// FormatError means the object was readable but is not a valid columnar
// file.
type FormatError struct {
	Path string
	Err  error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid file format %s: %v", e.Path, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// classifyOpenError keeps storage and context failures as they are and
// reports everything else as a FormatError.
func classifyOpenError(loc locator.Locator, err error) error {
	var storageErr *cloudstorage.Error
	if errors.As(err, &storageErr) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &FormatError{Path: loc.String(), Err: err}
}

// Reader kinds accepted by NewReader.
const (
	KindAuto    = "auto"
	KindORC     = "orc"
	KindParquet = "parquet"
	KindArrow   = "arrow"
)

// NewReader returns the Reader implementation named by kind. An empty kind
// selects KindAuto, which tells Parquet from ORC by the file trailer.
func NewReader(kind string, fs cloudstorage.Filesystem) (Reader, error) {
	switch kind {
	case "", KindAuto:
		return NewAutoReader(fs), nil
	case KindORC:
		return NewORCReader(fs), nil
	case KindParquet:
		return NewParquetReader(fs), nil
	case KindArrow:
		return NewArrowReader(fs), nil
	default:
		return nil, fmt.Errorf("unknown metadata reader %q", kind)
	}
}

// footerDecoder decodes the footer of an opened object.
type footerDecoder func(obj cloudstorage.Object) (*Footer, error)

// openFooter opens loc and decodes its footer. The object stays open until
// the returned handle is closed.
func openFooter(ctx context.Context, fs cloudstorage.Filesystem, loc locator.Locator, decode footerDecoder) (Handle, error) {
	obj, err := fs.Open(ctx, loc)
	if err != nil {
		return nil, err
	}
	footer, err := decode(obj)
	if err != nil {
		_ = obj.Close()
		return nil, classifyOpenError(loc, err)
	}
	footer.FileLength = nonNegative(obj.Size())
	return &fileHandle{footer: footer, obj: obj}, nil
}

// fileHandle is the Handle shared by all reader implementations.
type fileHandle struct {
	footer *Footer
	obj    cloudstorage.Object
}

func (h *fileHandle) StripeCount() uint32 {
	return uint32(len(h.footer.Stripes))
}

func (h *fileHandle) FileLength() uint64 {
	return h.footer.FileLength
}

func (h *fileHandle) RawDataSize() (uint64, bool) {
	return DeriveRawDataSize(h.footer.ContentLength, h.footer.ColumnTotals())
}

func (h *fileHandle) Footer() *Footer {
	return h.footer
}

func (h *fileHandle) Close() error {
	if h.obj == nil {
		return nil
	}
	return h.obj.Close()
}
