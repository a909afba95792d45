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
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/filestat/internal/awsclient"
	"github.com/cardinalhq/filestat/internal/azureclient"
	"github.com/cardinalhq/filestat/internal/locator"
	"github.com/cardinalhq/filestat/internal/storageprofile"
)

// fakeS3 serves path-style GET and HEAD requests with Range support.
type fakeS3 struct {
	objects  map[string][]byte
	denied   map[string]bool
	requests atomic.Int64
	gets     atomic.Int64
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.requests.Add(1)
	if r.Method == http.MethodGet {
		f.gets.Add(1)
	}
	path := strings.TrimPrefix(r.URL.Path, "/")

	if f.denied[path] {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusForbidden)
		if r.Method != http.MethodHead {
			_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>Access Denied</Message></Error>`))
		}
		return
	}

	data, ok := f.objects[path]
	if !ok {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusNotFound)
		if r.Method != http.MethodHead {
			_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`))
		}
		return
	}
	http.ServeContent(w, r, path, time.Time{}, bytes.NewReader(data))
}

func newTestS3Filesystem(t *testing.T, fake *fakeS3) Filesystem {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	cfg := aws.Config{
		Region:           "us-east-1",
		Credentials:      credentials.NewStaticCredentialsProvider("a", "b", ""),
		HTTPClient:       server.Client(),
		RetryMaxAttempts: 1,
	}
	mgr := awsclient.NewManagerFromConfig(cfg)
	profiles := storageprofile.NewStaticProvider(storageprofile.StorageProfile{
		Endpoint:     server.URL,
		UsePathStyle: true,
	})
	return NewS3Filesystem(mgr, profiles)
}

func TestS3FilesystemStatAndOpen(t *testing.T) {
	data := testData(200_000)
	fake := &fakeS3{objects: map[string][]byte{"bucket/dir/a.parquet": data}}
	fs := newTestS3Filesystem(t, fake)
	loc := locator.Locator{Scheme: "s3", Container: "bucket", Key: "dir/a.parquet"}

	info, err := fs.Stat(context.Background(), loc)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), info.Size)

	before := fake.gets.Load()
	obj, err := fs.Open(context.Background(), loc)
	require.NoError(t, err)
	defer func() { _ = obj.Close() }()
	assert.Equal(t, int64(len(data)), obj.Size())
	assert.Equal(t, before+1, fake.gets.Load(), "open fetches only the tail")

	tail := make([]byte, 8)
	_, err = obj.ReadAt(tail, int64(len(data)-8))
	require.NoError(t, err)
	assert.Equal(t, data[len(data)-8:], tail)
	assert.Equal(t, before+1, fake.gets.Load())

	head := make([]byte, 4096)
	_, err = obj.ReadAt(head, 100)
	require.NoError(t, err)
	assert.Equal(t, data[100:4196], head)
	assert.Equal(t, before+2, fake.gets.Load())
}

func TestS3FilesystemNotFound(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}}
	fs := newTestS3Filesystem(t, fake)
	loc := locator.Locator{Scheme: "s3", Container: "bucket", Key: "missing.parquet"}

	_, err := fs.Stat(context.Background(), loc)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = fs.Open(context.Background(), loc)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrAccess)
}

func TestS3FilesystemAccessDenied(t *testing.T) {
	fake := &fakeS3{
		objects: map[string][]byte{"bucket/secret.parquet": []byte("x")},
		denied:  map[string]bool{"bucket/secret.parquet": true},
	}
	fs := newTestS3Filesystem(t, fake)

	_, err := fs.Open(context.Background(), locator.Locator{Scheme: "s3", Container: "bucket", Key: "secret.parquet"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAccess)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestS3ClientsAreCached(t *testing.T) {
	mgr := awsclient.NewManagerFromConfig(aws.Config{
		Region:      "us-east-1",
		Credentials: credentials.NewStaticCredentialsProvider("a", "b", ""),
	})
	p := storageprofile.StorageProfile{Region: "eu-west-1", Endpoint: "http://localhost:9000", UsePathStyle: true}

	c1, err := mgr.GetS3ForProfile(context.Background(), p)
	require.NoError(t, err)
	c2, err := mgr.GetS3ForProfile(context.Background(), p)
	require.NoError(t, err)
	assert.Same(t, c1, c2)

	p.Region = "eu-west-2"
	c3, err := mgr.GetS3ForProfile(context.Background(), p)
	require.NoError(t, err)
	assert.NotSame(t, c1, c3)
}

func TestGlobalEndpointOnlyReachesS3(t *testing.T) {
	mgr := awsclient.NewManagerFromConfig(aws.Config{
		Region:      "us-east-1",
		Credentials: credentials.NewStaticCredentialsProvider("a", "b", ""),
	})
	profiles := storageprofile.NewStaticProvider(storageprofile.StorageProfile{
		Region:         "us-east-1",
		Endpoint:       "http://minio.local:9000",
		UsePathStyle:   true,
		StorageAccount: "acme",
	})

	s3fs := NewS3Filesystem(mgr, profiles).(*s3Filesystem)
	c, err := s3fs.client(context.Background(), "bucket")
	require.NoError(t, err)
	assert.Equal(t, "http://minio.local:9000", aws.ToString(c.Client.Options().BaseEndpoint))
	assert.True(t, c.Client.Options().UsePathStyle)

	gcs := NewGCSFilesystem(mgr, profiles).(*s3Filesystem)
	c, err = gcs.client(context.Background(), "my-gcs-bucket")
	require.NoError(t, err)
	assert.Equal(t, GCSInteropEndpoint, aws.ToString(c.Client.Options().BaseEndpoint))
	assert.False(t, c.Client.Options().UsePathStyle)

	azureMgr, err := azureclient.NewManager(context.Background())
	require.NoError(t, err)
	az := NewAzureFilesystem(azureMgr, profiles, azureclient.WithAnonymousAccess()).(*azureFilesystem)
	blob, err := az.client(context.Background(), "events")
	require.NoError(t, err)
	assert.Equal(t, azureclient.BlobEndpoint("acme"), blob.Client.URL())
}
