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

// Package cloudstorage provides read-only, ranged access to objects in
// S3, S3-compatible stores, Google Cloud Storage, Azure Blob Storage and the
// local filesystem behind one Filesystem interface.
package cloudstorage

import (
	"context"
	"errors"
	"io"

	"github.com/cardinalhq/filestat/internal/locator"
)

var (
	// ErrNotFound means the bucket, container or object does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAccess means the object could not be reached for reasons other than
	// absence: denied permissions, bad credentials.
	ErrAccess = errors.New("access denied")
)

// ObjectInfo is what Stat reports about an object.
type ObjectInfo struct {
	Size int64
}

// Object is an open remote object. ReadAt issues ranged reads against the
// backing store; only the bytes asked for are transferred.
type Object interface {
	io.ReaderAt
	io.Closer
	Size() int64
}

// Filesystem is the read side of an object store. Implementations must be
// safe for concurrent use with distinct locators.
type Filesystem interface {
	// Stat returns the object's size, or an error matching ErrNotFound.
	Stat(ctx context.Context, loc locator.Locator) (ObjectInfo, error)

	// Open returns a random-access handle on the object. ctx bounds every
	// read made through the handle.
	Open(ctx context.Context, loc locator.Locator) (Object, error)
}

// Error describes a failed storage operation. Kind, when set, is ErrNotFound
// or ErrAccess and can be matched with errors.Is.
type Error struct {
	Op   string
	Path string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *Error) Unwrap() []error {
	if e.Kind == nil {
		return []error{e.Err}
	}
	return []error{e.Kind, e.Err}
}

func newError(op string, loc locator.Locator, kind, err error) error {
	return &Error{Op: op, Path: loc.String(), Kind: kind, Err: err}
}
