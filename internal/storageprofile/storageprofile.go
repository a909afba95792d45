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
	"log/slog"
	"os"
)

// StorageProfile describes how to reach one bucket or container.
type StorageProfile struct {
	Bucket         string `json:"bucket" yaml:"bucket"`
	CloudProvider  string `json:"cloud_provider" yaml:"cloud_provider"`
	Region         string `json:"region" yaml:"region"`
	Role           string `json:"role,omitempty" yaml:"role,omitempty"`
	Endpoint       string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	StorageAccount string `json:"storage_account,omitempty" yaml:"storage_account,omitempty"`
	InsecureTLS    bool   `json:"insecure_tls,omitempty" yaml:"insecure_tls,omitempty"`
	UsePathStyle   bool   `json:"use_path_style,omitempty" yaml:"use_path_style,omitempty"`
	// AccessKeyEnv and SecretKeyEnv name environment variables holding a
	// static key pair, for S3-compatible stores and GCS HMAC keys.
	AccessKeyEnv string `json:"access_key_env,omitempty" yaml:"access_key_env,omitempty"`
	SecretKeyEnv string `json:"secret_key_env,omitempty" yaml:"secret_key_env,omitempty"`
	// Anonymous skips credentials entirely, for public containers.
	Anonymous bool `json:"anonymous,omitempty" yaml:"anonymous,omitempty"`
}

// StorageProfileProvider looks up the profile for a bucket. Lookups for
// buckets that have no explicit entry fall back to the provider's defaults.
type StorageProfileProvider interface {
	ProfileForBucket(cloudProvider, bucket string) StorageProfile
}

// SetupStorageProfiles returns a file backed provider when filename is set
// (or STORAGE_PROFILE_FILE is), otherwise a provider that only knows the
// defaults.
func SetupStorageProfiles(filename string, defaults StorageProfile) (StorageProfileProvider, error) {
	if filename == "" {
		filename = os.Getenv("STORAGE_PROFILE_FILE")
	}
	if filename == "" {
		slog.Debug("No storage profile file configured, using defaults",
			slog.String("region", defaults.Region),
			slog.String("endpoint", defaults.Endpoint))
		return NewStaticProvider(defaults), nil
	}
	slog.Info("Using file storage profile provider", slog.String("path", filename))
	return NewFileProvider(filename, defaults)
}

type staticProvider struct {
	defaults StorageProfile
}

// NewStaticProvider returns a provider that answers every lookup from defaults.
func NewStaticProvider(defaults StorageProfile) StorageProfileProvider {
	return &staticProvider{defaults: defaults}
}

func (p *staticProvider) ProfileForBucket(cloudProvider, bucket string) StorageProfile {
	profile := defaultsFor(cloudProvider, p.defaults)
	profile.Bucket = bucket
	profile.CloudProvider = cloudProvider
	return profile
}

// defaultsFor narrows the global defaults to the fields that apply to
// cloudProvider. The global endpoint, path style and TLS switches configure
// S3 only; the storage account configures Azure only.
func defaultsFor(cloudProvider string, defaults StorageProfile) StorageProfile {
	if cloudProvider != "aws" {
		defaults.Endpoint = ""
		defaults.UsePathStyle = false
		defaults.InsecureTLS = false
	}
	if cloudProvider != "azure" {
		defaults.StorageAccount = ""
	}
	return defaults
}

// mergeDefaults fills unset fields of p from defaults.
func mergeDefaults(p, defaults StorageProfile) StorageProfile {
	if p.Region == "" {
		p.Region = defaults.Region
	}
	if p.Endpoint == "" {
		p.Endpoint = defaults.Endpoint
	}
	if p.Role == "" {
		p.Role = defaults.Role
	}
	if p.StorageAccount == "" {
		p.StorageAccount = defaults.StorageAccount
	}
	if !p.UsePathStyle {
		p.UsePathStyle = defaults.UsePathStyle
	}
	if !p.InsecureTLS {
		p.InsecureTLS = defaults.InsecureTLS
	}
	if p.AccessKeyEnv == "" && p.SecretKeyEnv == "" {
		p.AccessKeyEnv = defaults.AccessKeyEnv
		p.SecretKeyEnv = defaults.SecretKeyEnv
	}
	if !p.Anonymous {
		p.Anonymous = defaults.Anonymous
	}
	return p
}
