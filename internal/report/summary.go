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

package report

import (
	"log/slog"
	"slices"

	"github.com/cardinalhq/filestat/internal/fetcher"
)

// Summary totals a batch of records.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	// TotalLength sums FileLength over successful records.
	TotalLength uint64
	// TotalRawDataSize sums RawDataSize where present.
	TotalRawDataSize uint64
	ByKind           map[fetcher.ErrorKind]int
}

func Summarize(records []fetcher.Record) Summary {
	s := Summary{Total: len(records), ByKind: map[fetcher.ErrorKind]int{}}
	for _, r := range records {
		if r.Failed() {
			s.Failed++
			kind := r.ErrorKind
			if kind == fetcher.KindNone {
				kind = fetcher.KindUnknown
			}
			s.ByKind[kind]++
			continue
		}
		s.Succeeded++
		if r.FileLength != nil {
			s.TotalLength += *r.FileLength
		}
		if r.RawDataSize != nil {
			s.TotalRawDataSize += *r.RawDataSize
		}
	}
	return s
}

// LogValue renders the summary as a slog group, with one failed_<kind>
// counter per error kind seen.
func (s Summary) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("total", s.Total),
		slog.Int("succeeded", s.Succeeded),
		slog.Int("failed", s.Failed),
		slog.Uint64("total_length", s.TotalLength),
		slog.Uint64("total_raw_data_size", s.TotalRawDataSize),
	}
	kinds := make([]fetcher.ErrorKind, 0, len(s.ByKind))
	for k := range s.ByKind {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	for _, k := range kinds {
		attrs = append(attrs, slog.Int("failed_"+string(k), s.ByKind[k]))
	}
	return slog.GroupValue(attrs...)
}
