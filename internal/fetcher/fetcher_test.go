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

package fetcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/filestat/internal/cloudstorage"
	"github.com/cardinalhq/filestat/internal/colmeta"
	"github.com/cardinalhq/filestat/internal/locator"
)

type fakeFile struct {
	length  uint64
	stripes uint32
	raw     uint64
	hasRaw  bool
	err     error
}

type fakeHandle struct {
	f      fakeFile
	closed *atomic.Int32
}

func (h *fakeHandle) StripeCount() uint32 { return h.f.stripes }
func (h *fakeHandle) FileLength() uint64 { return h.f.length }
func (h *fakeHandle) RawDataSize() (uint64, bool) { return h.f.raw, h.f.hasRaw }
func (h *fakeHandle) Footer() *colmeta.Footer { return &colmeta.Footer{FileLength: h.f.length} }
func (h *fakeHandle) Close() error { h.closed.Add(1); return nil }

type fakeReader struct {
	files map[string]fakeFile
	delay time.Duration
	block chan struct{}

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	opened      atomic.Int32
	closed      atomic.Int32
}

func (r *fakeReader) Open(ctx context.Context, loc locator.Locator) (colmeta.Handle, error) {
	r.opened.Add(1)
	n := r.inFlight.Add(1)
	defer r.inFlight.Add(-1)
	for {
		m := r.maxInFlight.Load()
		if n <= m || r.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}

	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f, ok := r.files[loc.String()]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", loc, cloudstorage.ErrNotFound)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &fakeHandle{f: f, closed: &r.closed}, nil
}

func byPath(records []Record) map[string]Record {
	m := make(map[string]Record, len(records))
	for _, r := range records {
		m[r.Path] = r
	}
	return m
}

func mustLocators(t *testing.T, paths ...string) []locator.Locator {
	t.Helper()
	out := make([]locator.Locator, len(paths))
	for i, p := range paths {
		loc, err := locator.Resolve(p)
		require.NoError(t, err)
		out[i] = loc
	}
	return out
}

func TestNewRejectsInvalidPoolSize(t *testing.T) {
	_, err := New(&fakeReader{}, 0)
	assert.ErrorIs(t, err, ErrInvalidPoolSize)

	_, err = New(&fakeReader{}, -3)
	assert.ErrorIs(t, err, ErrInvalidPoolSize)

	_, err = New(nil, 1)
	assert.Error(t, err)

	f, err := New(&fakeReader{}, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, f.PoolSize())
}

func TestFetchAllMixedOutcomes(t *testing.T) {
	reader := &fakeReader{files: map[string]fakeFile{
		"s3://bucket/a.orc": {length: 1024, stripes: 3, raw: 300, hasRaw: true},
	}}
	f, err := New(reader, 2)
	require.NoError(t, err)

	records := f.FetchAll(context.Background(), mustLocators(t, "s3://bucket/a.orc", "s3://bucket/b.orc"))
	require.Len(t, records, 2)

	got := byPath(records)
	a := got["s3://bucket/a.orc"]
	require.False(t, a.Failed())
	require.NotNil(t, a.FileLength)
	require.NotNil(t, a.NumStripes)
	require.NotNil(t, a.RawDataSize)
	assert.Equal(t, uint64(1024), *a.FileLength)
	assert.Equal(t, uint32(3), *a.NumStripes)
	assert.Equal(t, uint64(300), *a.RawDataSize)
	assert.Empty(t, a.Error)

	b := got["s3://bucket/b.orc"]
	assert.True(t, b.Failed())
	assert.Equal(t, KindNotFound, b.ErrorKind)
	assert.Contains(t, b.Error, "not found: ")
	assert.Nil(t, b.FileLength)
	assert.Nil(t, b.NumStripes)
	assert.Nil(t, b.RawDataSize)
}

func TestFetchAllEmpty(t *testing.T) {
	f, err := New(&fakeReader{}, 4)
	require.NoError(t, err)
	assert.Empty(t, f.FetchAll(context.Background(), nil))
	assert.Empty(t, f.FetchPaths(context.Background(), nil))
}

func TestFetchAllAllSucceed(t *testing.T) {
	files := map[string]fakeFile{}
	var paths []string
	for i := range 25 {
		p := fmt.Sprintf("s3://bucket/file-%02d.parquet", i)
		files[p] = fakeFile{length: uint64(100 + i), stripes: uint32(i%4 + 1)}
		paths = append(paths, p)
	}
	reader := &fakeReader{files: files}
	f, err := New(reader, 5)
	require.NoError(t, err)

	records := f.FetchAll(context.Background(), mustLocators(t, paths...))
	require.Len(t, records, len(paths))

	var got []string
	for _, r := range records {
		assert.False(t, r.Failed(), r.Error)
		assert.Nil(t, r.RawDataSize)
		require.NotNil(t, r.FileLength)
		assert.Equal(t, files[r.Path].length, *r.FileLength)
		got = append(got, r.Path)
	}
	sort.Strings(got)
	assert.Equal(t, paths, got)
	assert.Equal(t, int32(len(paths)), reader.closed.Load())
}

func TestFetchAllFailureIsolation(t *testing.T) {
	formatErr := &colmeta.FormatError{Path: "s3://b/bad.parquet", Err: errors.New("bad magic")}
	reader := &fakeReader{files: map[string]fakeFile{
		"s3://b/ok1.parquet":    {length: 1, stripes: 1},
		"s3://b/bad.parquet":    {err: formatErr},
		"s3://b/denied.parquet": {err: fmt.Errorf("head: %w", cloudstorage.ErrAccess)},
		"s3://b/boom.parquet":   {err: errors.New("connection reset")},
		"s3://b/ok2.parquet":    {length: 2, stripes: 2},
	}}
	f, err := New(reader, 1)
	require.NoError(t, err)

	records := f.FetchAll(context.Background(), mustLocators(t,
		"s3://b/ok1.parquet", "s3://b/bad.parquet", "s3://b/denied.parquet",
		"s3://b/boom.parquet", "s3://b/ok2.parquet"))
	require.Len(t, records, 5)

	got := byPath(records)
	assert.False(t, got["s3://b/ok1.parquet"].Failed())
	assert.False(t, got["s3://b/ok2.parquet"].Failed())

	assert.Equal(t, KindFormat, got["s3://b/bad.parquet"].ErrorKind)
	assert.Contains(t, got["s3://b/bad.parquet"].Error, "invalid file format: ")

	assert.Equal(t, KindAccess, got["s3://b/denied.parquet"].ErrorKind)
	assert.Contains(t, got["s3://b/denied.parquet"].Error, "access denied: ")

	assert.Equal(t, KindUnknown, got["s3://b/boom.parquet"].ErrorKind)
	assert.Equal(t, "connection reset", got["s3://b/boom.parquet"].Error)
}

func TestFetchAllErrorWithoutMessage(t *testing.T) {
	reader := &fakeReader{files: map[string]fakeFile{
		"s3://b/silent.orc": {err: errors.New("")},
	}}
	f, err := New(reader, 1)
	require.NoError(t, err)

	records := f.FetchAll(context.Background(), mustLocators(t, "s3://b/silent.orc"))
	require.Len(t, records, 1)

	rec := records[0]
	assert.True(t, rec.Failed())
	assert.Equal(t, KindUnknown, rec.ErrorKind)
	assert.Equal(t, "unknown error", rec.Error)
	assert.Nil(t, rec.FileLength)
	assert.Nil(t, rec.NumStripes)
}

func TestRecordFailed(t *testing.T) {
	length, stripes := uint64(1), uint32(1)
	assert.False(t, Record{Path: "s3://b/a", FileLength: &length, NumStripes: &stripes}.Failed())
	assert.True(t, Record{Path: "s3://b/a", ErrorKind: KindUnknown}.Failed())
	assert.True(t, Record{Path: "s3://b/a", Error: "boom"}.Failed())
}

func TestFetchAllRespectsPoolSize(t *testing.T) {
	files := map[string]fakeFile{}
	var paths []string
	for i := range 40 {
		p := fmt.Sprintf("s3://bucket/f%d", i)
		files[p] = fakeFile{length: 1, stripes: 1}
		paths = append(paths, p)
	}

	for _, pool := range []int{1, 3, 8} {
		t.Run(fmt.Sprintf("pool=%d", pool), func(t *testing.T) {
			reader := &fakeReader{files: files, delay: 5 * time.Millisecond}
			f, err := New(reader, pool)
			require.NoError(t, err)

			records := f.FetchAll(context.Background(), mustLocators(t, paths...))
			require.Len(t, records, len(paths))
			assert.LessOrEqual(t, reader.maxInFlight.Load(), int32(pool))
			assert.Equal(t, int32(len(paths)), reader.opened.Load())
		})
	}
}

func TestFetchAllIdempotent(t *testing.T) {
	reader := &fakeReader{files: map[string]fakeFile{
		"s3://b/a.parquet": {length: 10, stripes: 2, raw: 30, hasRaw: true},
		"s3://b/c.parquet": {length: 20, stripes: 1},
	}}
	f, err := New(reader, 3)
	require.NoError(t, err)

	locs := mustLocators(t, "s3://b/a.parquet", "s3://b/b.parquet", "s3://b/c.parquet")
	first := byPath(f.FetchAll(context.Background(), locs))
	second := byPath(f.FetchAll(context.Background(), locs))
	assert.Equal(t, first, second)
}

func TestFetchPaths(t *testing.T) {
	reader := &fakeReader{files: map[string]fakeFile{
		"s3://b/a.orc":   {length: 1024, stripes: 3},
		"file://b/x.orc": {length: 7, stripes: 1},
	}}
	f, err := New(reader, 2, WithResolver(locator.NewResolver("s3", "file")))
	require.NoError(t, err)

	paths := []string{"s3://b/a.orc", "gs://b/a.orc", "s3://b", "file://b/x.orc", "not a path"}
	records := f.FetchPaths(context.Background(), paths)
	require.Len(t, records, len(paths))

	got := byPath(records)
	assert.False(t, got["s3://b/a.orc"].Failed())
	assert.False(t, got["file://b/x.orc"].Failed())

	for _, p := range []string{"gs://b/a.orc", "s3://b", "not a path"} {
		rec := got[p]
		assert.Equal(t, KindResolve, rec.ErrorKind, p)
		assert.Contains(t, rec.Error, "resolve: ", p)
	}
	assert.Equal(t, int32(2), reader.opened.Load())
}

func TestFetchAllItemTimeout(t *testing.T) {
	reader := &fakeReader{
		files: map[string]fakeFile{"s3://b/slow": {length: 1, stripes: 1}},
		block: make(chan struct{}),
	}
	f, err := New(reader, 1, WithItemTimeout(10*time.Millisecond))
	require.NoError(t, err)

	records := f.FetchAll(context.Background(), mustLocators(t, "s3://b/slow"))
	require.Len(t, records, 1)
	assert.Equal(t, KindTimeout, records[0].ErrorKind)
	assert.Contains(t, records[0].Error, "timeout: ")
}

func TestFetchAllCanceled(t *testing.T) {
	block := make(chan struct{})
	files := map[string]fakeFile{}
	var paths []string
	for i := range 10 {
		p := fmt.Sprintf("s3://bucket/f%d", i)
		files[p] = fakeFile{length: 1, stripes: 1}
		paths = append(paths, p)
	}
	reader := &fakeReader{files: files, block: block}
	f, err := New(reader, 2)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var (
		records []Record
		wg      sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		records = f.FetchAll(ctx, mustLocators(t, paths...))
	}()

	require.Eventually(t, func() bool { return reader.inFlight.Load() == 2 }, time.Second, time.Millisecond)
	cancel()
	wg.Wait()

	require.Len(t, records, len(paths))
	for _, r := range records {
		assert.Equal(t, KindCanceled, r.ErrorKind, r.Path)
	}
	assert.LessOrEqual(t, reader.opened.Load(), int32(2))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, KindNone},
		{"resolution", &locator.ResolutionError{Raw: "x", Err: locator.ErrMalformedPath}, KindResolve},
		{"not found", fmt.Errorf("wrap: %w", cloudstorage.ErrNotFound), KindNotFound},
		{"access", cloudstorage.ErrAccess, KindAccess},
		{"format", &colmeta.FormatError{Err: errors.New("x")}, KindFormat},
		{"timeout", fmt.Errorf("get: %w", context.DeadlineExceeded), KindTimeout},
		{"canceled", context.Canceled, KindCanceled},
		{"other", errors.New("x"), KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
