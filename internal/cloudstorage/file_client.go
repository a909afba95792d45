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
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cardinalhq/filestat/internal/locator"
)

// localFilesystem serves file:// locators from disk. The container is the
// first path element below root, so with root "/" the locator
// file://tmp/data/a.parquet names /tmp/data/a.parquet.
type localFilesystem struct {
	root string
}

var _ Filesystem = (*localFilesystem)(nil)

// NewLocalFilesystem returns a Filesystem rooted at root ("/" when empty).
func NewLocalFilesystem(root string) Filesystem {
	if root == "" {
		root = string(filepath.Separator)
	}
	return &localFilesystem{root: root}
}

// errOutsideRoot rejects locators whose container or key would resolve
// outside the filesystem root, such as file://../secret.
var errOutsideRoot = errors.New("path escapes the local root")

func (c *localFilesystem) path(loc locator.Locator) (string, error) {
	key := filepath.FromSlash(loc.Key)
	if !filepath.IsLocal(loc.Container) || !filepath.IsLocal(key) {
		return "", errOutsideRoot
	}
	return filepath.Join(c.root, loc.Container, key), nil
}

func classifyLocalError(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ErrNotFound
	case errors.Is(err, fs.ErrPermission):
		return ErrAccess
	default:
		return nil
	}
}

func (c *localFilesystem) Stat(ctx context.Context, loc locator.Locator) (ObjectInfo, error) {
	p, err := c.path(loc)
	if err != nil {
		return ObjectInfo{}, newError("stat", loc, ErrAccess, err)
	}
	fi, err := os.Stat(p)
	if err != nil {
		return ObjectInfo{}, newError("stat", loc, classifyLocalError(err), err)
	}
	if fi.IsDir() {
		return ObjectInfo{}, newError("stat", loc, ErrNotFound, errors.New("is a directory"))
	}
	return ObjectInfo{Size: fi.Size()}, nil
}

func (c *localFilesystem) Open(ctx context.Context, loc locator.Locator) (Object, error) {
	info, err := c.Stat(ctx, loc)
	if err != nil {
		return nil, err
	}
	p, err := c.path(loc)
	if err != nil {
		return nil, newError("open", loc, ErrAccess, err)
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, newError("open", loc, classifyLocalError(err), err)
	}
	return &localObject{File: f, size: info.Size}, nil
}

type localObject struct {
	*os.File
	size int64
}

func (o *localObject) Size() int64 {
	return o.size
}
