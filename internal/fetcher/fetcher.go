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

// Package fetcher collects metadata for many files at once on a bounded
// worker pool. Each file is independent: a failure is recorded on that
// file's Record and never stops the others.
package fetcher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/filestat/internal/colmeta"
	"github.com/cardinalhq/filestat/internal/locator"
	"github.com/cardinalhq/filestat/internal/logctx"
)

// DefaultPoolSize is the number of concurrent fetches used when the caller
// has no preference.
const DefaultPoolSize = 10

var ErrInvalidPoolSize = errors.New("pool size must be at least 1")

// Fetcher runs metadata fetches with at most PoolSize in flight. It is safe
// for concurrent use; each call to FetchAll gets its own pool.
type Fetcher struct {
	reader      colmeta.Reader
	resolver    *locator.Resolver
	poolSize    int
	itemTimeout time.Duration
}

type Option func(*Fetcher)

// WithItemTimeout bounds each file's fetch. Zero disables the bound.
func WithItemTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.itemTimeout = d
	}
}

// WithResolver sets the resolver used by FetchPaths.
func WithResolver(r *locator.Resolver) Option {
	return func(f *Fetcher) {
		f.resolver = r
	}
}

func New(reader colmeta.Reader, poolSize int, opts ...Option) (*Fetcher, error) {
	if reader == nil {
		return nil, errors.New("metadata reader is required")
	}
	if poolSize < 1 {
		return nil, ErrInvalidPoolSize
	}
	f := &Fetcher{
		reader:   reader,
		resolver: locator.NewResolver(),
		poolSize: poolSize,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

func (f *Fetcher) PoolSize() int {
	return f.poolSize
}

type unit struct {
	path string
	loc  locator.Locator
}

// FetchAll returns one Record per locator, in completion order. It returns
// only after every fetch has finished. If ctx is canceled, fetches that have
// not started are recorded as canceled.
func (f *Fetcher) FetchAll(ctx context.Context, locs []locator.Locator) []Record {
	units := make([]unit, len(locs))
	for i, loc := range locs {
		units[i] = unit{path: loc.String(), loc: loc}
	}
	return f.run(ctx, units, nil)
}

// FetchPaths resolves each raw path and fetches the ones that resolve.
// Paths that fail to resolve are recorded without any I/O and are reported
// ahead of the fetched ones.
func (f *Fetcher) FetchPaths(ctx context.Context, paths []string) []Record {
	var (
		units    = make([]unit, 0, len(paths))
		resolved []Record
	)
	for _, p := range paths {
		loc, err := f.resolver.Resolve(p)
		if err != nil {
			resolved = append(resolved, failureRecord(p, err))
			continue
		}
		units = append(units, unit{path: p, loc: loc})
	}
	return f.run(ctx, units, resolved)
}

func (f *Fetcher) run(ctx context.Context, units []unit, early []Record) []Record {
	logger := logctx.FromContext(ctx)
	total := len(units) + len(early)
	out := make([]Record, 0, total)

	record := func(rec Record) {
		out = append(out, rec)
		recordOutcome(ctx, rec)
		logger.Info("Processed",
			slog.Int("done", len(out)),
			slog.Int("total", total),
			slog.String("path", rec.Path),
			slog.String("errorKind", string(rec.ErrorKind)))
	}

	for _, rec := range early {
		record(rec)
	}

	// Sized so workers never block on send.
	results := make(chan Record, len(units))

	go func() {
		var g errgroup.Group
		g.SetLimit(f.poolSize)
		for _, u := range units {
			if ctx.Err() != nil {
				results <- failureRecord(u.path, ctx.Err())
				continue
			}
			g.Go(func() error {
				results <- f.fetchOne(ctx, u)
				return nil
			})
		}
		_ = g.Wait()
		close(results)
	}()

	for rec := range results {
		record(rec)
	}
	return out
}

func (f *Fetcher) fetchOne(ctx context.Context, u unit) Record {
	if err := ctx.Err(); err != nil {
		return failureRecord(u.path, err)
	}

	start := time.Now()
	defer func() {
		fetchDuration.Record(ctx, time.Since(start).Seconds())
	}()

	if f.itemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.itemTimeout)
		defer cancel()
	}

	h, err := f.reader.Open(ctx, u.loc)
	if err != nil {
		logctx.FromContext(ctx).Debug("Metadata fetch failed",
			slog.String("path", u.path),
			slog.Any("error", err))
		return failureRecord(u.path, err)
	}
	defer func() {
		if err := h.Close(); err != nil {
			logctx.FromContext(ctx).Debug("Failed to close file handle",
				slog.String("path", u.path),
				slog.Any("error", err))
		}
	}()

	raw, hasRaw := h.RawDataSize()
	return successRecord(u.path, h.FileLength(), h.StripeCount(), raw, hasRaw)
}
