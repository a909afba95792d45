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

package cloudstorage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// DefaultTailPrefetch is how many bytes from the end of an object are fetched
// in one request when it is opened. Columnar footers are read back to front,
// so most metadata reads are then served without another round trip.
const DefaultTailPrefetch = 64 * 1024

// rangeFunc fetches length bytes starting at offset.
type rangeFunc func(ctx context.Context, offset, length int64) (io.ReadCloser, error)

// rangedObject adapts a range fetcher to io.ReaderAt.
type rangedObject struct {
	ctx   context.Context
	size  int64
	fetch rangeFunc

	mu      sync.Mutex
	tailOff int64
	tail    []byte
}

var _ Object = (*rangedObject)(nil)

func newRangedObject(ctx context.Context, size int64, fetch rangeFunc) *rangedObject {
	return &rangedObject{ctx: ctx, size: size, fetch: fetch, tailOff: size}
}

// prefetchTail loads the last n bytes of the object.
func (o *rangedObject) prefetchTail(n int64) error {
	if n <= 0 || o.size == 0 {
		return nil
	}
	if n > o.size {
		n = o.size
	}
	off := o.size - n
	buf := make([]byte, n)
	if err := o.readRemote(buf, off); err != nil {
		return err
	}

	o.mu.Lock()
	o.tailOff = off
	o.tail = buf
	o.mu.Unlock()
	return nil
}

func (o *rangedObject) Size() int64 {
	return o.size
}

func (o *rangedObject) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.New("negative offset")
	}
	if off >= o.size {
		return 0, io.EOF
	}

	want := int64(len(p))
	short := false
	if off+want > o.size {
		want = o.size - off
		short = true
	}
	buf := p[:want]

	o.mu.Lock()
	tailOff, tail := o.tailOff, o.tail
	o.mu.Unlock()

	if tail != nil && off >= tailOff {
		copy(buf, tail[off-tailOff:])
	} else if err := o.readRemote(buf, off); err != nil {
		return 0, err
	}

	if short {
		return int(want), io.EOF
	}
	return int(want), nil
}

func (o *rangedObject) readRemote(buf []byte, off int64) error {
	if len(buf) == 0 {
		return nil
	}
	body, err := o.fetch(o.ctx, off, int64(len(buf)))
	if err != nil {
		return err
	}
	defer func() { _ = body.Close() }()

	if _, err := io.ReadFull(body, buf); err != nil {
		return fmt.Errorf("read %d bytes at offset %d: %w", len(buf), off, err)
	}
	return nil
}

func (o *rangedObject) Close() error {
	o.mu.Lock()
	o.tail = nil
	o.mu.Unlock()
	return nil
}

// httpRange formats an inclusive HTTP byte range.
func httpRange(offset, length int64) string {
	return fmt.Sprintf("bytes=%d-%d", offset, offset+length-1)
}
