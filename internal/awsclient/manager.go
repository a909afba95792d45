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

package awsclient

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// DefaultRegion is used when neither the environment nor a storage profile
// names a region.
const DefaultRegion = "us-west-2"

type Manager struct {
	baseCfg     aws.Config
	stsClient   *sts.Client
	sessionName string

	defaultRegion    string
	retryMaxAttempts int

	sync.RWMutex
	providers map[roleKey]aws.CredentialsProvider
	clients   map[clientKey]*S3Client
	tracer    trace.Tracer
}

// ManagerOption is a functional option for configuring the Manager.
type ManagerOption func(*Manager)

func WithAssumeRoleSessionName(name string) ManagerOption {
	return func(mgr *Manager) {
		mgr.sessionName = name
	}
}

// WithDefaultRegion sets the region used when the loaded AWS config has none.
func WithDefaultRegion(region string) ManagerOption {
	return func(mgr *Manager) {
		mgr.defaultRegion = region
	}
}

// WithRetryMaxAttempts overrides the SDK retryer's attempt count. Zero keeps
// the SDK default.
func WithRetryMaxAttempts(n int) ManagerOption {
	return func(mgr *Manager) {
		mgr.retryMaxAttempts = n
	}
}

// NewManager initializes AWS config + a single STS client.
func NewManager(ctx context.Context, opts ...ManagerOption) (*Manager, error) {
	mgr := &Manager{
		sessionName:   "filestat",
		defaultRegion: DefaultRegion,
		providers:     make(map[roleKey]aws.CredentialsProvider),
		clients:       make(map[clientKey]*S3Client),
		tracer:        otel.Tracer("github.com/cardinalhq/filestat/internal/awsclient"),
	}
	for _, opt := range opts {
		opt(mgr)
	}

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	if cfg.Region == "" {
		cfg.Region = mgr.defaultRegion
	}
	if mgr.retryMaxAttempts > 0 {
		cfg.RetryMaxAttempts = mgr.retryMaxAttempts
	}

	otelaws.AppendMiddlewares(&cfg.APIOptions)

	mgr.baseCfg = cfg
	mgr.stsClient = sts.NewFromConfig(cfg)
	return mgr, nil
}

// NewManagerFromConfig builds a Manager around an already loaded config.
// Tests use it to point the SDK at a local endpoint with static credentials.
func NewManagerFromConfig(cfg aws.Config, opts ...ManagerOption) *Manager {
	mgr := &Manager{
		baseCfg:       cfg,
		stsClient:     sts.NewFromConfig(cfg),
		sessionName:   "filestat",
		defaultRegion: DefaultRegion,
		providers:     make(map[roleKey]aws.CredentialsProvider),
		clients:       make(map[clientKey]*S3Client),
		tracer:        otel.Tracer("github.com/cardinalhq/filestat/internal/awsclient"),
	}
	for _, opt := range opts {
		opt(mgr)
	}
	if mgr.baseCfg.Region == "" {
		mgr.baseCfg.Region = mgr.defaultRegion
	}
	return mgr
}

// Region returns the region clients get when no override is given.
func (m *Manager) Region() string {
	return m.baseCfg.Region
}
