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

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/filestat/config"
	"github.com/cardinalhq/filestat/internal/awsclient"
	"github.com/cardinalhq/filestat/internal/cloudstorage"
	"github.com/cardinalhq/filestat/internal/storageprofile"
)

// supportedSchemes are the URL schemes filestat can read.
var supportedSchemes = []string{"s3", "s3a", "gs", "az", "file"}

// addStorageFlags registers the flags shared by commands that read storage.
func addStorageFlags(cmd *cobra.Command) {
	cmd.Flags().String("reader", "", "Metadata reader: auto (by file trailer), orc, parquet or arrow")
	cmd.Flags().String("profiles", "", "Storage profile YAML file with per-bucket settings")
	cmd.Flags().String("local-root", "", "Base directory for file:// paths")
	cmd.Flags().String("region", "", "Default storage region (env FILESTAT_REGION or AWS_REGION)")
	cmd.Flags().String("endpoint", "", "S3 endpoint override (env FILESTAT_ENDPOINT)")
}

// loadConfig loads the environment configuration and applies any flags the
// user set explicitly.
func loadConfig(c *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	flags := c.Flags()
	stringFlags := map[string]*string{
		"reader":     &cfg.Fetch.Reader,
		"profiles":   &cfg.Profiles,
		"local-root": &cfg.LocalRoot,
		"region":     &cfg.Region,
		"endpoint":   &cfg.Endpoint,
	}
	for name, dst := range stringFlags {
		if flags.Lookup(name) == nil || !flags.Changed(name) {
			continue
		}
		v, err := flags.GetString(name)
		if err != nil {
			return nil, fmt.Errorf("failed to get %s flag: %w", name, err)
		}
		*dst = v
	}
	if flags.Lookup("workers") != nil && flags.Changed("workers") {
		if cfg.Fetch.Workers, err = flags.GetInt("workers"); err != nil {
			return nil, fmt.Errorf("failed to get workers flag: %w", err)
		}
	}
	if flags.Lookup("item-timeout") != nil && flags.Changed("item-timeout") {
		if cfg.Fetch.ItemTimeout, err = flags.GetDuration("item-timeout"); err != nil {
			return nil, fmt.Errorf("failed to get item-timeout flag: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newStorage builds a Router with backends for the given schemes.
func newStorage(ctx context.Context, cfg *config.Config, schemes []string) (*cloudstorage.Router, error) {
	profiles, err := storageprofile.SetupStorageProfiles(cfg.Profiles, storageprofile.StorageProfile{
		Region:         cfg.Region,
		Endpoint:       cfg.Endpoint,
		UsePathStyle:   cfg.Storage.UsePathStyle,
		InsecureTLS:    cfg.Storage.InsecureTLS,
		StorageAccount: cfg.Storage.AzureAccount,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load storage profiles: %w", err)
	}

	router, err := cloudstorage.NewCloudRouter(ctx, cloudstorage.Options{
		Schemes:   schemes,
		Profiles:  profiles,
		LocalRoot: cfg.LocalRoot,
		AWSOptions: []awsclient.ManagerOption{
			awsclient.WithAssumeRoleSessionName(serviceName),
			awsclient.WithDefaultRegion(cfg.Region),
			awsclient.WithRetryMaxAttempts(cfg.Storage.RetryMaxAttempts),
		},
		TailPrefetch: cfg.Storage.TailPrefetch,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up storage: %w", err)
	}
	return router, nil
}
