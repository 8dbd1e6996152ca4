// Copyright 2026 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package engine

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/docker/go-units"
	"github.com/plansplit/plansplit/pkg/config"
	"github.com/plansplit/plansplit/pkg/util/dbterror/offloaderrors"
	"github.com/plansplit/plansplit/pkg/util/logutil"
	"go.uber.org/zap"
)

// InMemory is the target name logged for an engine without a database file.
const InMemory = ":memory:"

// Config is the resolved, immutable engine configuration. It is built once,
// before the engine instance is created.
type Config struct {
	// Path is the database file, empty for an in-memory instance.
	Path             string
	MemoryLimit      string
	MemoryLimitBytes int64
	AccessMode       string
	UserAgent        string
	ObjectCache      bool
	Autoload         bool
	Threads          int
}

// Option is one engine setting in the form the engine expects it.
type Option struct {
	Name  string
	Value string
}

// NewConfig validates the engine section of the plansplit config and resolves
// it into a Config.
func NewConfig(c config.Engine) (*Config, error) {
	limit := strings.TrimSpace(c.MemoryLimit)
	bytes, err := units.RAMInBytes(limit)
	if err != nil {
		return nil, offloaderrors.ErrEngineConfig.GenWithStackByArgs("max_memory", err.Error())
	}
	if bytes <= 0 {
		return nil, offloaderrors.ErrEngineConfig.GenWithStackByArgs("max_memory", "memory limit must be positive, got "+strconv.Quote(c.MemoryLimit))
	}
	if strings.ContainsAny(c.Path, "?#") {
		// DSN() appends the settings as a query string
		return nil, offloaderrors.ErrEngineConfig.GenWithStackByArgs("path", "must not contain '?' or '#', got "+strconv.Quote(c.Path))
	}
	if c.Threads < 0 {
		return nil, offloaderrors.ErrEngineConfig.GenWithStackByArgs("threads", "must not be negative")
	}

	mode := strings.ToLower(strings.TrimSpace(c.AccessMode))
	switch mode {
	case "":
		mode = config.AccessModeAutomatic
	case config.AccessModeAutomatic, config.AccessModeReadOnly, config.AccessModeReadWrite:
	default:
		return nil, offloaderrors.ErrEngineConfig.GenWithStackByArgs("access_mode", "unknown mode "+strconv.Quote(c.AccessMode))
	}
	if c.Path == "" && mode == config.AccessModeReadOnly {
		// An in-memory instance cannot be opened read-only.
		logutil.BgLogger().Info("in-memory engine ignores read-only access mode",
			zap.String("access-mode", c.AccessMode))
		mode = config.AccessModeAutomatic
	}

	userAgent := c.UserAgent
	if userAgent == "" {
		userAgent = config.DefaultUserAgent
	}
	return &Config{
		Path:             c.Path,
		MemoryLimit:      limit,
		MemoryLimitBytes: bytes,
		AccessMode:       mode,
		UserAgent:        userAgent,
		ObjectCache:      c.EnableObjectCache,
		Autoload:         c.AutoloadExtensions,
		Threads:          c.Threads,
	}, nil
}

// Target returns the database file, or InMemory.
func (c *Config) Target() string {
	if c.Path == "" {
		return InMemory
	}
	return c.Path
}

// Options returns the engine settings in the order they are applied.
func (c *Config) Options() []Option {
	opts := []Option{
		{Name: "custom_user_agent", Value: c.UserAgent},
		{Name: "max_memory", Value: c.MemoryLimit},
		{Name: "access_mode", Value: c.AccessMode},
		{Name: "enable_object_cache", Value: strconv.FormatBool(c.ObjectCache)},
		{Name: "autoload_known_extensions", Value: strconv.FormatBool(c.Autoload)},
	}
	if c.Threads > 0 {
		opts = append(opts, Option{Name: "threads", Value: strconv.Itoa(c.Threads)})
	}
	return opts
}

// DSN renders the config as a DuckDB data source name.
func (c *Config) DSN() string {
	values := url.Values{}
	for _, opt := range c.Options() {
		values.Set(opt.Name, opt.Value)
	}
	return c.Path + "?" + values.Encode()
}

// Fields returns the config as log fields.
func (c *Config) Fields() []zap.Field {
	return []zap.Field{
		zap.String("target", c.Target()),
		zap.String("max-memory", c.MemoryLimit),
		zap.String("max-memory-bytes", units.BytesSize(float64(c.MemoryLimitBytes))),
		zap.String("access-mode", c.AccessMode),
		zap.String("user-agent", c.UserAgent),
		zap.Bool("object-cache", c.ObjectCache),
		zap.Bool("autoload-extensions", c.Autoload),
		zap.Int("threads", c.Threads),
	}
}

// GlobalConfig resolves the engine section of the global plansplit config.
func GlobalConfig() (*Config, error) {
	return NewConfig(config.GetGlobalConfig().Engine)
}
