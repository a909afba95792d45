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
	"fmt"
	"io"

	"github.com/cardinalhq/filestat/internal/awsclient"
	"github.com/cardinalhq/filestat/internal/locator"
	"github.com/cardinalhq/filestat/internal/storageprofile"
)

// GCSInteropEndpoint is the S3-compatible endpoint of Google Cloud Storage.
const GCSInteropEndpoint = "https://storage.googleapis.com"

// s3Filesystem reads objects through the S3 API. GCS is reached the same way
// through its interoperability endpoint.
type s3Filesystem struct {
	manager       *awsclient.Manager
	profiles      storageprofile.StorageProfileProvider
	cloudProvider string
	extra         []awsclient.S3Option
	tailPrefetch  int64
}

var _ Filesystem = (*s3Filesystem)(nil)

// NewS3Filesystem returns a Filesystem for s3:// locators. extra options are
// applied after the bucket's storage profile.
func NewS3Filesystem(manager *awsclient.Manager, profiles storageprofile.StorageProfileProvider, extra ...awsclient.S3Option) Filesystem {
	return &s3Filesystem{
		manager:       manager,
		profiles:      profiles,
		cloudProvider: "aws",
		extra:         extra,
		tailPrefetch:  DefaultTailPrefetch,
	}
}

// NewGCSFilesystem returns a Filesystem for gs:// locators using HMAC keys
// against the GCS interoperability endpoint.
func NewGCSFilesystem(manager *awsclient.Manager, profiles storageprofile.StorageProfileProvider, extra ...awsclient.S3Option) Filesystem {
	return &s3Filesystem{
		manager:       manager,
		profiles:      profiles,
		cloudProvider: "gcp",
		extra:         extra,
		tailPrefetch:  DefaultTailPrefetch,
	}
}

func (f *s3Filesystem) client(ctx context.Context, bucket string) (*awsclient.S3Client, error) {
	profile := f.profiles.ProfileForBucket(f.cloudProvider, bucket)
	if f.cloudProvider == "gcp" && profile.Endpoint == "" {
		profile.Endpoint = GCSInteropEndpoint
	}
	client, err := f.manager.GetS3ForProfile(ctx, profile, f.extra...)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client for bucket %s: %w", bucket, err)
	}
	return client, nil
}

func (f *s3Filesystem) Stat(ctx context.Context, loc locator.Locator) (ObjectInfo, error) {
	client, err := f.client(ctx, loc.Container)
	if err != nil {
		return ObjectInfo{}, newError("stat", loc, nil, err)
	}
	size, err := headS3Object(ctx, client, loc.Container, loc.Key)
	if err != nil {
		return ObjectInfo{}, newError("stat", loc, classifyS3Error(err), err)
	}
	return ObjectInfo{Size: size}, nil
}

func (f *s3Filesystem) Open(ctx context.Context, loc locator.Locator) (Object, error) {
	client, err := f.client(ctx, loc.Container)
	if err != nil {
		return nil, newError("open", loc, nil, err)
	}
	size, err := headS3Object(ctx, client, loc.Container, loc.Key)
	if err != nil {
		return nil, newError("open", loc, classifyS3Error(err), err)
	}

	obj := newRangedObject(ctx, size, func(ctx context.Context, offset, length int64) (io.ReadCloser, error) {
		body, err := getS3Range(ctx, client, loc.Container, loc.Key, offset, length)
		if err != nil {
			return nil, newError("read", loc, classifyS3Error(err), err)
		}
		return body, nil
	})
	if err := obj.prefetchTail(f.tailPrefetch); err != nil {
		return nil, err
	}
	return obj, nil
}
