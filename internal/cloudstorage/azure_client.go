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
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/filestat/internal/azureclient"
	"github.com/cardinalhq/filestat/internal/locator"
	"github.com/cardinalhq/filestat/internal/storageprofile"
)

// azureFilesystem reads blobs from Azure Blob Storage. The locator's
// container is the blob container; the storage account comes from the
// bucket's storage profile.
type azureFilesystem struct {
	manager      *azureclient.Manager
	profiles     storageprofile.StorageProfileProvider
	extra        []azureclient.BlobOption
	tailPrefetch int64
}

var _ Filesystem = (*azureFilesystem)(nil)

// NewAzureFilesystem returns a Filesystem for az:// locators.
func NewAzureFilesystem(manager *azureclient.Manager, profiles storageprofile.StorageProfileProvider, extra ...azureclient.BlobOption) Filesystem {
	return &azureFilesystem{
		manager:      manager,
		profiles:     profiles,
		extra:        extra,
		tailPrefetch: DefaultTailPrefetch,
	}
}

func classifyAzureError(err error) error {
	if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound, bloberror.ResourceNotFound) {
		return ErrNotFound
	}
	if bloberror.HasCode(err, bloberror.AuthorizationFailure, bloberror.AuthorizationPermissionMismatch,
		bloberror.AuthenticationFailed, bloberror.InsufficientAccountPermissions) {
		return ErrAccess
	}
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case http.StatusNotFound:
			return ErrNotFound
		case http.StatusUnauthorized, http.StatusForbidden:
			return ErrAccess
		}
	}
	return nil
}

func (f *azureFilesystem) client(ctx context.Context, container string) (*azureclient.BlobClient, error) {
	profile := f.profiles.ProfileForBucket("azure", container)
	opts := []azureclient.BlobOption{
		azureclient.WithBlobStorageAccount(profile.StorageAccount),
		azureclient.WithBlobEndpoint(profile.Endpoint),
	}
	if profile.Anonymous {
		opts = append(opts, azureclient.WithAnonymousAccess())
	}
	opts = append(opts, f.extra...)
	client, err := f.manager.GetBlob(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure blob client for container %s: %w", container, err)
	}
	return client, nil
}

func (f *azureFilesystem) stat(ctx context.Context, client *azureclient.BlobClient, loc locator.Locator) (int64, error) {
	ctx, span := client.Tracer.Start(ctx, "cloudstorage.azureGetProperties",
		trace.WithAttributes(
			attribute.String("bucket", loc.Container),
			attribute.String("key", loc.Key),
		),
	)
	defer span.End()

	statCount.Add(ctx, 1, metric.WithAttributes(attribute.String("bucket", loc.Container)))

	props, err := client.Client.ServiceClient().
		NewContainerClient(loc.Container).
		NewBlobClient(loc.Key).
		GetProperties(ctx, nil)
	if err != nil {
		span.RecordError(err)
		readErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("bucket", loc.Container),
			attribute.String("reason", reason(classifyAzureError(err))),
		))
		return 0, err
	}
	if props.ContentLength == nil {
		return 0, fmt.Errorf("blob %s has no content length", loc)
	}
	return *props.ContentLength, nil
}

func (f *azureFilesystem) Stat(ctx context.Context, loc locator.Locator) (ObjectInfo, error) {
	client, err := f.client(ctx, loc.Container)
	if err != nil {
		return ObjectInfo{}, newError("stat", loc, nil, err)
	}
	size, err := f.stat(ctx, client, loc)
	if err != nil {
		return ObjectInfo{}, newError("stat", loc, classifyAzureError(err), err)
	}
	return ObjectInfo{Size: size}, nil
}

func (f *azureFilesystem) Open(ctx context.Context, loc locator.Locator) (Object, error) {
	client, err := f.client(ctx, loc.Container)
	if err != nil {
		return nil, newError("open", loc, nil, err)
	}
	size, err := f.stat(ctx, client, loc)
	if err != nil {
		return nil, newError("open", loc, classifyAzureError(err), err)
	}

	obj := newRangedObject(ctx, size, func(ctx context.Context, offset, length int64) (io.ReadCloser, error) {
		ctx, span := client.Tracer.Start(ctx, "cloudstorage.azureDownloadRange",
			trace.WithAttributes(
				attribute.String("bucket", loc.Container),
				attribute.String("key", loc.Key),
				attribute.Int64("offset", offset),
				attribute.Int64("length", length),
			),
		)
		defer span.End()

		resp, err := client.Client.DownloadStream(ctx, loc.Container, loc.Key, &azblob.DownloadStreamOptions{
			Range: azblob.HTTPRange{Offset: offset, Count: length},
		})
		if err != nil {
			span.RecordError(err)
			kind := classifyAzureError(err)
			readErrors.Add(ctx, 1, metric.WithAttributes(
				attribute.String("bucket", loc.Container),
				attribute.String("reason", reason(kind)),
			))
			return nil, newError("read", loc, kind, err)
		}
		readCount.Add(ctx, 1, metric.WithAttributes(attribute.String("bucket", loc.Container)))
		readBytes.Add(ctx, length, metric.WithAttributes(attribute.String("bucket", loc.Container)))
		return resp.Body, nil
	})
	if err := obj.prefetchTail(f.tailPrefetch); err != nil {
		return nil, err
	}
	return obj, nil
}
