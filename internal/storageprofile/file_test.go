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

package storageprofile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	defaults = StorageProfile{
		Region:   "us-west-2",
		Endpoint: "",
	}

	v1Content = `
- bucket: "minio-bucket"
  cloud_provider: "aws"
  region: "us-east-1"
  endpoint: "http://localhost:9000"
  use_path_style: true
  insecure_tls: true
- bucket: "role-bucket"
  cloud_provider: "aws"
  role: "arn:aws:iam::123456789012:role/reader"
`

	v2Content = `
version: 2
buckets:
  - name: "lake"
    cloud_provider: "aws"
    region: "eu-west-1"
  - name: "lake"
    cloud_provider: "gcp"
    region: "auto"
    endpoint: "https://storage.googleapis.com"
  - name: "events"
    cloud_provider: "azure"
    storage_account: "acmeevents"
  - name: "public"
    cloud_provider: "azure"
    storage_account: "opendata"
    anonymous: true
  - name: "minio"
    cloud_provider: "aws"
    endpoint: "http://minio:9000"
    access_key_env: "MINIO_ACCESS_KEY"
    secret_key_env: "MINIO_SECRET_KEY"
`
)

func Test_newFileProviderFromContents_V1(t *testing.T) {
	provider, err := newFileProviderFromContents("test.yaml", []byte(v1Content), defaults)
	require.NoError(t, err)

	minio := provider.ProfileForBucket("aws", "minio-bucket")
	assert.Equal(t, "us-east-1", minio.Region)
	assert.Equal(t, "http://localhost:9000", minio.Endpoint)
	assert.True(t, minio.UsePathStyle)
	assert.True(t, minio.InsecureTLS)

	role := provider.ProfileForBucket("aws", "role-bucket")
	assert.Equal(t, "us-west-2", role.Region, "region falls back to defaults")
	assert.Equal(t, "arn:aws:iam::123456789012:role/reader", role.Role)
}

func Test_newFileProviderFromContents_V2(t *testing.T) {
	provider, err := newFileProviderFromContents("test.yaml", []byte(v2Content), defaults)
	require.NoError(t, err)

	aws := provider.ProfileForBucket("aws", "lake")
	assert.Equal(t, "eu-west-1", aws.Region)
	assert.Empty(t, aws.Endpoint)

	gcp := provider.ProfileForBucket("gcp", "lake")
	assert.Equal(t, "auto", gcp.Region)
	assert.Equal(t, "https://storage.googleapis.com", gcp.Endpoint)

	az := provider.ProfileForBucket("azure", "events")
	assert.Equal(t, "acmeevents", az.StorageAccount)
	assert.False(t, az.Anonymous)

	public := provider.ProfileForBucket("azure", "public")
	assert.True(t, public.Anonymous)

	minio := provider.ProfileForBucket("aws", "minio")
	assert.Equal(t, "MINIO_ACCESS_KEY", minio.AccessKeyEnv)
	assert.Equal(t, "MINIO_SECRET_KEY", minio.SecretKeyEnv)
}

func TestFileProvider_UnknownBucketUsesDefaults(t *testing.T) {
	provider, err := newFileProviderFromContents("test.yaml", []byte(v2Content), defaults)
	require.NoError(t, err)

	p := provider.ProfileForBucket("aws", "somewhere-else")
	assert.Equal(t, StorageProfile{Bucket: "somewhere-else", CloudProvider: "aws", Region: "us-west-2"}, p)
}

func Test_newFileProviderFromContents_UnmarshalError(t *testing.T) {
	_, err := newFileProviderFromContents("bad.yaml", []byte("not: [valid: yaml"), defaults)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal v1 storage profiles from file bad.yaml")
}

func Test_newFileProviderFromContents_UnknownField(t *testing.T) {
	_, err := newFileProviderFromContents("bad.yaml", []byte("- bucket: a\n  colour: blue\n"), defaults)
	require.Error(t, err)
}

func Test_newFileProviderFromContents_Duplicate(t *testing.T) {
	content := `
- bucket: "a"
  cloud_provider: "aws"
- bucket: "a"
  cloud_provider: "aws"
`
	_, err := newFileProviderFromContents("dup.yaml", []byte(content), defaults)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate storage profile for aws bucket a")
}

func Test_NewFileProvider_env(t *testing.T) {
	t.Setenv("TEST_STORAGE_PROFILES", v1Content)
	provider, err := NewFileProvider("env:TEST_STORAGE_PROFILES", defaults)
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", provider.ProfileForBucket("aws", "minio-bucket").Region)

	_, err = NewFileProvider("env:TEST_STORAGE_PROFILES_UNSET", defaults)
	require.Error(t, err)
}

func Test_NewFileProvider_file(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(v2Content), 0o644))

	provider, err := NewFileProvider(path, defaults)
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", provider.ProfileForBucket("aws", "lake").Region)

	_, err = NewFileProvider(filepath.Join(t.TempDir(), "missing.yaml"), defaults)
	require.Error(t, err)
}

func TestSetupStorageProfiles_Static(t *testing.T) {
	t.Setenv("STORAGE_PROFILE_FILE", "")
	provider, err := SetupStorageProfiles("", StorageProfile{Region: "ap-south-1", Endpoint: "http://minio:9000"})
	require.NoError(t, err)

	p := provider.ProfileForBucket("aws", "bucket")
	assert.Equal(t, "bucket", p.Bucket)
	assert.Equal(t, "ap-south-1", p.Region)
	assert.Equal(t, "http://minio:9000", p.Endpoint)
}

func TestGlobalDefaultsApplyPerProvider(t *testing.T) {
	global := StorageProfile{
		Region:         "us-east-1",
		Endpoint:       "http://minio.local:9000",
		UsePathStyle:   true,
		InsecureTLS:    true,
		StorageAccount: "acme",
	}
	static := NewStaticProvider(global)
	file, err := newFileProviderFromContents("test.yaml", []byte(v2Content), global)
	require.NoError(t, err)

	for name, provider := range map[string]StorageProfileProvider{"static": static, "file": file} {
		t.Run(name, func(t *testing.T) {
			s3 := provider.ProfileForBucket("aws", "unlisted")
			assert.Equal(t, "http://minio.local:9000", s3.Endpoint)
			assert.True(t, s3.UsePathStyle)
			assert.True(t, s3.InsecureTLS)
			assert.Empty(t, s3.StorageAccount)

			gcs := provider.ProfileForBucket("gcp", "unlisted")
			assert.Empty(t, gcs.Endpoint)
			assert.False(t, gcs.UsePathStyle)
			assert.False(t, gcs.InsecureTLS)
			assert.Equal(t, "us-east-1", gcs.Region)

			az := provider.ProfileForBucket("azure", "unlisted")
			assert.Empty(t, az.Endpoint)
			assert.Equal(t, "acme", az.StorageAccount)
		})
	}

	events := file.ProfileForBucket("azure", "events")
	assert.Equal(t, "acmeevents", events.StorageAccount)
	assert.Empty(t, events.Endpoint)
}
