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

package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
)

const (
	EnvPrefix     = "FILESTAT"
	DefaultRegion = "us-west-2"
)

// Readers lists the accepted values for Fetch.Reader.
var Readers = []string{"auto", "orc", "parquet", "arrow"}

// Config aggregates configuration for the application.
type Config struct {
	// Region is the default object storage region. Falls back to AWS_REGION.
	Region string `mapstructure:"region"`
	// Endpoint overrides the S3 endpoint, for MinIO and other compatible
	// services.
	Endpoint string `mapstructure:"endpoint"`
	// Profiles is an optional storage profile file with per-bucket settings.
	Profiles  string        `mapstructure:"profiles"`
	LocalRoot string        `mapstructure:"local_root"`
	Storage   StorageConfig `mapstructure:"storage"`
	Fetch     FetchConfig   `mapstructure:"fetch"`
}

type StorageConfig struct {
	UsePathStyle     bool `mapstructure:"use_path_style"`
	InsecureTLS      bool `mapstructure:"insecure_tls"`
	RetryMaxAttempts int  `mapstructure:"retry_max_attempts"`
	// AzureAccount is the storage account for az:// containers without a
	// storage profile.
	AzureAccount string `mapstructure:"azure_account"`
	// TailPrefetch is how many trailing bytes are read when a file is
	// opened. Footers that fit need a single ranged request.
	TailPrefetch int64 `mapstructure:"tail_prefetch"`
}

type FetchConfig struct {
	Workers     int           `mapstructure:"workers"`
	ItemTimeout time.Duration `mapstructure:"item_timeout"`
	Reader      string        `mapstructure:"reader"`
}

func DefaultConfig() *Config {
	return &Config{
		Region:    DefaultRegion,
		LocalRoot: "/",
		Storage: StorageConfig{
			TailPrefetch: 64 * 1024,
		},
		Fetch: FetchConfig{
			Workers: 10,
			Reader:  "auto",
		},
	}
}

// Load reads configuration from an optional filestat.yaml in the current
// directory and from environment variables. Environment variables use the
// prefix "FILESTAT" and the dot character in keys is replaced by an
// underscore. For example, "fetch.workers" becomes "FILESTAT_FETCH_WORKERS".
func Load() (*Config, error) {
	cfg := DefaultConfig()
	if r := os.Getenv("AWS_REGION"); r != "" {
		cfg.Region = r
	}

	v := viper.New()
	v.SetConfigName("filestat")
	v.AddConfigPath(".")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs *multierror.Error
	if c.Region == "" {
		errs = multierror.Append(errs, errors.New("region must not be empty"))
	}
	if c.Fetch.Workers < 1 {
		errs = multierror.Append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Fetch.Workers))
	}
	if c.Fetch.ItemTimeout < 0 {
		errs = multierror.Append(errs, fmt.Errorf("item timeout must not be negative, got %s", c.Fetch.ItemTimeout))
	}
	if !slices.Contains(Readers, c.Fetch.Reader) {
		errs = multierror.Append(errs, fmt.Errorf("reader must be one of %s, got %q", strings.Join(Readers, ", "), c.Fetch.Reader))
	}
	if c.Storage.RetryMaxAttempts < 0 {
		errs = multierror.Append(errs, fmt.Errorf("retry max attempts must not be negative, got %d", c.Storage.RetryMaxAttempts))
	}
	if c.Storage.TailPrefetch < 0 {
		errs = multierror.Append(errs, fmt.Errorf("tail prefetch must not be negative, got %d", c.Storage.TailPrefetch))
	}
	return errs.ErrorOrNil()
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(parts, tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
