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
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// V2 YAML structures
type configV2 struct {
	Version int              `yaml:"version"`
	Buckets []bucketConfigV2 `yaml:"buckets"`
}

type bucketConfigV2 struct {
	Name           string `yaml:"name"`
	CloudProvider  string `yaml:"cloud_provider"`
	Region         string `yaml:"region"`
	Endpoint       string `yaml:"endpoint,omitempty"`
	Role           string `yaml:"role,omitempty"`
	StorageAccount string `yaml:"storage_account,omitempty"`
	InsecureTLS    bool   `yaml:"insecure_tls,omitempty"`
	UsePathStyle   bool   `yaml:"use_path_style,omitempty"`
	AccessKeyEnv   string `yaml:"access_key_env,omitempty"`
	SecretKeyEnv   string `yaml:"secret_key_env,omitempty"`
	Anonymous      bool   `yaml:"anonymous,omitempty"`
}

type fileProvider struct {
	defaults StorageProfile
	// keyed by bucket name; a bucket may appear once per cloud provider
	profiles map[string][]StorageProfile
}

var _ StorageProfileProvider = (*fileProvider)(nil)

// NewFileProvider loads profiles from a YAML file. A filename of the form
// "env:NAME" reads the YAML from the NAME environment variable instead.
func NewFileProvider(filename string, defaults StorageProfile) (StorageProfileProvider, error) {
	if after, ok := strings.CutPrefix(filename, "env:"); ok {
		envVar := after
		contents := os.Getenv(envVar)
		if contents == "" {
			return nil, fmt.Errorf("environment variable %s is not set", envVar)
		}
		return newFileProviderFromContents(filename, []byte(contents), defaults)
	}

	contents, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read storage profiles from file %s: %w", filename, err)
	}

	return newFileProviderFromContents(filename, contents, defaults)
}

func newFileProviderFromContents(filename string, contents []byte, defaults StorageProfile) (StorageProfileProvider, error) {
	var versionCheck struct {
		Version int `yaml:"version"`
	}

	dec := yaml.NewDecoder(bytes.NewReader(contents))
	if err := dec.Decode(&versionCheck); err == nil && versionCheck.Version == 2 {
		return parseV2Config(filename, contents, defaults)
	}

	return parseV1Config(filename, contents, defaults)
}

func parseV1Config(filename string, contents []byte, defaults StorageProfile) (StorageProfileProvider, error) {
	var profiles []StorageProfile

	dec := yaml.NewDecoder(bytes.NewReader(contents))
	dec.KnownFields(true)
	if err := dec.Decode(&profiles); err != nil {
		return nil, fmt.Errorf("failed to unmarshal v1 storage profiles from file %s: %w", filename, err)
	}

	return newFileProvider(filename, profiles, defaults)
}

func parseV2Config(filename string, contents []byte, defaults StorageProfile) (StorageProfileProvider, error) {
	var config configV2

	dec := yaml.NewDecoder(bytes.NewReader(contents))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal v2 storage profiles from file %s: %w", filename, err)
	}

	profiles := make([]StorageProfile, 0, len(config.Buckets))
	for _, bucket := range config.Buckets {
		profiles = append(profiles, StorageProfile{
			Bucket:         bucket.Name,
			CloudProvider:  bucket.CloudProvider,
			Region:         bucket.Region,
			Endpoint:       bucket.Endpoint,
			Role:           bucket.Role,
			StorageAccount: bucket.StorageAccount,
			InsecureTLS:    bucket.InsecureTLS,
			UsePathStyle:   bucket.UsePathStyle,
			AccessKeyEnv:   bucket.AccessKeyEnv,
			SecretKeyEnv:   bucket.SecretKeyEnv,
			Anonymous:      bucket.Anonymous,
		})
	}

	return newFileProvider(filename, profiles, defaults)
}

func newFileProvider(filename string, profiles []StorageProfile, defaults StorageProfile) (*fileProvider, error) {
	byBucket := make(map[string][]StorageProfile, len(profiles))
	for _, profile := range profiles {
		if profile.Bucket == "" {
			return nil, fmt.Errorf("storage profile in %s has no bucket name", filename)
		}
		for _, existing := range byBucket[profile.Bucket] {
			if existing.CloudProvider == profile.CloudProvider {
				return nil, fmt.Errorf("duplicate storage profile for %s bucket %s in %s",
					providerName(profile.CloudProvider), profile.Bucket, filename)
			}
		}
		byBucket[profile.Bucket] = append(byBucket[profile.Bucket], profile)
	}
	return &fileProvider{defaults: defaults, profiles: byBucket}, nil
}

// ProfileForBucket returns the configured profile for bucket, preferring an
// entry whose cloud provider matches. Unset fields come from the defaults.
func (p *fileProvider) ProfileForBucket(cloudProvider, bucket string) StorageProfile {
	defaults := defaultsFor(cloudProvider, p.defaults)
	candidates := p.profiles[bucket]
	for _, profile := range candidates {
		if profile.CloudProvider == cloudProvider {
			return mergeDefaults(profile, defaults)
		}
	}
	for _, profile := range candidates {
		if profile.CloudProvider == "" {
			profile.CloudProvider = cloudProvider
			return mergeDefaults(profile, defaults)
		}
	}

	profile := defaults
	profile.Bucket = bucket
	profile.CloudProvider = cloudProvider
	return profile
}

func providerName(p string) string {
	if p == "" {
		return "default"
	}
	return p
}
