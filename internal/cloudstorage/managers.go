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
	"slices"

	"github.com/cardinalhq/filestat/internal/awsclient"
	"github.com/cardinalhq/filestat/internal/azureclient"
	"github.com/cardinalhq/filestat/internal/locator"
	"github.com/cardinalhq/filestat/internal/storageprofile"
)

// Router dispatches each locator to the Filesystem registered for its
// scheme.
type Router struct {
	backends map[string]Filesystem
}

var _ Filesystem = (*Router)(nil)

// NewRouter returns an empty Router.
func NewRouter() *Router {
	return &Router{backends: make(map[string]Filesystem)}
}

// Register binds fs to each scheme. Later registrations replace earlier ones.
func (r *Router) Register(fs Filesystem, schemes ...string) *Router {
	for _, s := range schemes {
		r.backends[s] = fs
	}
	return r
}

// Schemes lists the registered schemes in sorted order.
func (r *Router) Schemes() []string {
	out := make([]string, 0, len(r.backends))
	for s := range r.backends {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}

func (r *Router) backend(loc locator.Locator) (Filesystem, error) {
	fs, ok := r.backends[loc.Scheme]
	if !ok {
		return nil, fmt.Errorf("no storage backend for scheme %q", loc.Scheme)
	}
	return fs, nil
}

func (r *Router) Stat(ctx context.Context, loc locator.Locator) (ObjectInfo, error) {
	fs, err := r.backend(loc)
	if err != nil {
		return ObjectInfo{}, err
	}
	return fs.Stat(ctx, loc)
}

func (r *Router) Open(ctx context.Context, loc locator.Locator) (Object, error) {
	fs, err := r.backend(loc)
	if err != nil {
		return nil, err
	}
	return fs.Open(ctx, loc)
}

// Options selects which backends NewCloudRouter builds.
type Options struct {
	Schemes      []string
	Profiles     storageprofile.StorageProfileProvider
	LocalRoot    string
	AWSOptions   []awsclient.ManagerOption
	S3Options    []awsclient.S3Option
	AzureOptions []azureclient.BlobOption
	// TailPrefetch overrides DefaultTailPrefetch when positive.
	TailPrefetch int64
}

func applyTailPrefetch(fs Filesystem, n int64) Filesystem {
	if n <= 0 {
		return fs
	}
	switch f := fs.(type) {
	case *s3Filesystem:
		f.tailPrefetch = n
	case *azureFilesystem:
		f.tailPrefetch = n
	}
	return fs
}

// NewCloudRouter builds a Router with a backend for every requested scheme.
// Cloud SDK managers are only created when a scheme needs them.
func NewCloudRouter(ctx context.Context, opts Options) (*Router, error) {
	r := NewRouter()
	profiles := opts.Profiles
	if profiles == nil {
		profiles = storageprofile.NewStaticProvider(storageprofile.StorageProfile{})
	}

	var awsManager *awsclient.Manager
	getAWS := func() (*awsclient.Manager, error) {
		if awsManager != nil {
			return awsManager, nil
		}
		// Create AWS manager - required for S3-compatible storage (AWS, GCP)
		mgr, err := awsclient.NewManager(ctx, opts.AWSOptions...)
		if err != nil {
			return nil, fmt.Errorf("failed to create AWS manager: %w", err)
		}
		awsManager = mgr
		return mgr, nil
	}

	for _, scheme := range opts.Schemes {
		switch scheme {
		case "s3", "s3a":
			mgr, err := getAWS()
			if err != nil {
				return nil, err
			}
			r.Register(applyTailPrefetch(NewS3Filesystem(mgr, profiles, opts.S3Options...), opts.TailPrefetch), scheme)
		case "gs":
			mgr, err := getAWS()
			if err != nil {
				return nil, err
			}
			r.Register(applyTailPrefetch(NewGCSFilesystem(mgr, profiles, opts.S3Options...), opts.TailPrefetch), scheme)
		case "az":
			azureManager, err := azureclient.NewManager(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to create Azure manager: %w", err)
			}
			r.Register(applyTailPrefetch(NewAzureFilesystem(azureManager, profiles, opts.AzureOptions...), opts.TailPrefetch), scheme)
		case "file":
			r.Register(NewLocalFilesystem(opts.LocalRoot), scheme)
		default:
			return nil, fmt.Errorf("unsupported storage scheme: %s", scheme)
		}
	}

	return r, nil
}
