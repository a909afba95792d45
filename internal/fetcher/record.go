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
	"strings"

	"github.com/cardinalhq/filestat/internal/cloudstorage"
	"github.com/cardinalhq/filestat/internal/colmeta"
	"github.com/cardinalhq/filestat/internal/locator"
)

// ErrorKind classifies why a record failed.
type ErrorKind string

const (
	KindNone     ErrorKind = ""
	KindResolve  ErrorKind = "resolve"
	KindNotFound ErrorKind = "not_found"
	KindAccess   ErrorKind = "access"
	KindFormat   ErrorKind = "format"
	KindTimeout  ErrorKind = "timeout"
	KindCanceled ErrorKind = "canceled"
	KindUnknown  ErrorKind = "unknown"
)

// Record is the outcome of fetching metadata for one input path. Either the
// metadata fields or Error is set, never both. RawDataSize may be nil on
// success when the file records no usable size statistics.
type Record struct {
	Path        string    `json:"file_path"`
	FileLength  *uint64   `json:"file_length"`
	NumStripes  *uint32   `json:"num_stripes"`
	RawDataSize *uint64   `json:"raw_data_size"`
	Error       string    `json:"error,omitempty"`
	ErrorKind   ErrorKind `json:"error_kind,omitempty"`
}

// Failed reports whether the record carries an error.
func (r Record) Failed() bool {
	return r.ErrorKind != KindNone || r.Error != ""
}

func successRecord(path string, length uint64, stripes uint32, raw uint64, hasRaw bool) Record {
	rec := Record{
		Path:       path,
		FileLength: &length,
		NumStripes: &stripes,
	}
	if hasRaw {
		rec.RawDataSize = &raw
	}
	return rec
}

func failureRecord(path string, err error) Record {
	kind := Classify(err)
	msg := kindPrefix(kind) + err.Error()
	if strings.TrimSpace(msg) == "" {
		msg = string(kind) + " error"
	}
	return Record{
		Path:      path,
		Error:     msg,
		ErrorKind: kind,
	}
}

// Classify maps an error from resolution, storage or decoding to an
// ErrorKind.
func Classify(err error) ErrorKind {
	var (
		resolutionErr *locator.ResolutionError
		formatErr     *colmeta.FormatError
	)
	switch {
	case err == nil:
		return KindNone
	case errors.As(err, &resolutionErr):
		return KindResolve
	case errors.Is(err, cloudstorage.ErrNotFound):
		return KindNotFound
	case errors.Is(err, cloudstorage.ErrAccess):
		return KindAccess
	case errors.As(err, &formatErr):
		return KindFormat
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	default:
		return KindUnknown
	}
}

func kindPrefix(kind ErrorKind) string {
	switch kind {
	case KindResolve:
		return "resolve: "
	case KindNotFound:
		return "not found: "
	case KindAccess:
		return "access denied: "
	case KindFormat:
		return "invalid file format: "
	case KindTimeout:
		return "timeout: "
	case KindCanceled:
		return "canceled: "
	default:
		return ""
	}
}
