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

package azureclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"go.opentelemetry.io/otel/trace"
)

type BlobClient struct {
	Client *azblob.Client
	Tracer trace.Tracer
}

type blobConfig struct {
	StorageAccount string
	Endpoint       string
	Anonymous      bool
}

type BlobOption func(*blobConfig)

func WithBlobStorageAccount(storageAccount string) BlobOption {
	return func(c *blobConfig) {
		c.StorageAccount = storageAccount
	}
}

func WithBlobEndpoint(endpoint string) BlobOption {
	return func(c *blobConfig) {
		c.Endpoint = endpoint
	}
}

// WithAnonymousAccess builds the client without a credential, for public
// containers, SAS URLs and local emulators.
func WithAnonymousAccess() BlobOption {
	return func(c *blobConfig) {
		c.Anonymous = true
	}
}

type blobClientKey struct {
	Endpoint  string
	Anonymous bool
}

// BlobEndpoint returns the public blob service URL for a storage account.
func BlobEndpoint(storageAccount string) string {
	return fmt.Sprintf("https://%s.blob.core.windows.net/", storageAccount)
}

func (m *Manager) GetBlob(ctx context.Context, opts ...BlobOption) (*BlobClient, error) {
	bc := blobConfig{}
	for _, o := range opts {
		o(&bc)
	}

	endpoint := bc.Endpoint
	if endpoint == "" {
		if bc.StorageAccount == "" {
			return nil, fmt.Errorf("storage account or endpoint is required")
		}
		endpoint = BlobEndpoint(bc.StorageAccount)
	}
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}

	key := blobClientKey{Endpoint: endpoint, Anonymous: bc.Anonymous}
	m.RLock()
	client, ok := m.blobClients[key]
	m.RUnlock()
	if ok {
		return client, nil
	}

	m.Lock()
	defer m.Unlock()
	if client, ok = m.blobClients[key]; ok {
		return client, nil
	}

	var (
		blobClient *azblob.Client
		err        error
	)
	if bc.Anonymous {
		blobClient, err = azblob.NewClientWithNoCredential(endpoint, nil)
	} else {
		cred, credErr := m.credential()
		if credErr != nil {
			return nil, credErr
		}
		blobClient, err = azblob.NewClient(endpoint, cred, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}

	client = &BlobClient{
		Client: blobClient,
		Tracer: m.tracer,
	}
	m.blobClients[key] = client
	return client, nil
}
