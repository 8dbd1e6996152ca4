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

package config

import (
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pingcap/errors"
	"github.com/plansplit/plansplit/pkg/util/logutil"
	"go.uber.org/atomic"
)

// Access modes accepted by the embedded engine.
const (
	AccessModeAutomatic = "automatic"
	AccessModeReadOnly  = "read_only"
	AccessModeReadWrite = "read_write"
)

// Policies applied when the host hands over a CTE list that breaks its own invariants.
const (
	MalformedPolicySkip  = "skip"
	MalformedPolicyAbort = "abort"
)

// DefaultUserAgent is the identifying tag reported to the embedded engine.
const DefaultUserAgent = "pg_plansplit"

// Config contains configuration options.
type Config struct {
	Log     Log     `toml:"log" json:"log"`
	Engine  Engine  `toml:"engine" json:"engine"`
	Offload Offload `toml:"offload" json:"offload"`
	Status  Status  `toml:"status" json:"status"`
}

// Log is the log section of config.
type Log struct {
	// Log level.
	Level string `toml:"level" json:"level"`
	// Log format. one of json, text, or console.
	Format string `toml:"format" json:"format"`
	// Disable automatic timestamps in output.
	DisableTimestamp bool `toml:"disable-timestamp" json:"disable-timestamp"`
	// File log config.
	File logutil.FileLogConfig `toml:"file" json:"file"`
	// QueryLogMaxLen bounds the SQL text written to the log.
	QueryLogMaxLen int `toml:"query-log-max-len" json:"query-log-max-len"`
}

// Engine is the embedded engine section of config. It is read once, when the
// engine connection is first requested.
type Engine struct {
	// Path of the database file, empty opens an in-memory instance.
	Path string `toml:"path" json:"path"`
	// MemoryLimit is the advisory memory ceiling, e.g. "1GB".
	MemoryLimit string `toml:"memory-limit" json:"memory-limit"`
	// AccessMode is one of automatic, read_only or read_write.
	AccessMode         string `toml:"access-mode" json:"access-mode"`
	UserAgent          string `toml:"user-agent" json:"user-agent"`
	EnableObjectCache  bool   `toml:"enable-object-cache" json:"enable-object-cache"`
	AutoloadExtensions bool   `toml:"autoload-extensions" json:"autoload-extensions"`
	// Threads limits engine worker threads, 0 leaves the engine default.
	Threads int `toml:"threads" json:"threads"`
}

// Offload is the offload section of config.
type Offload struct {
	Enable bool `toml:"enable" json:"enable"`
	// MalformedPolicy is one of skip or abort.
	MalformedPolicy string `toml:"malformed-policy" json:"malformed-policy"`
}

// Status is the status section of the config.
type Status struct {
	MetricsAddr string `toml:"metrics-addr" json:"metrics-addr"`
}

var defaultConf = Config{
	Log: Log{
		Level:          logutil.DefaultLogLevel,
		Format:         logutil.DefaultLogFormat,
		File:           logutil.NewFileLogConfig(logutil.DefaultLogMaxSize),
		QueryLogMaxLen: logutil.DefaultQueryLogMaxLen,
	},
	Engine: Engine{
		MemoryLimit:        "1GB",
		AccessMode:         AccessModeReadOnly,
		UserAgent:          DefaultUserAgent,
		EnableObjectCache:  true,
		AutoloadExtensions: true,
	},
	Offload: Offload{
		Enable:          true,
		MalformedPolicy: MalformedPolicySkip,
	},
}

var globalConf = atomic.NewPointer(NewConfig())

// NewConfig creates a new config instance with default value.
func NewConfig() *Config {
	conf := defaultConf
	return &conf
}

// GetGlobalConfig returns the global configuration for this process.
// It should not be modified after it is stored.
func GetGlobalConfig() *Config {
	return globalConf.Load()
}

// StoreGlobalConfig stores a new config to the globalConf.
func StoreGlobalConfig(config *Config) {
	globalConf.Store(config)
}

// Load loads config options from a toml file.
func (c *Config) Load(confFile string) error {
	metaData, err := toml.DecodeFile(confFile, c)
	if err != nil {
		return errors.Trace(err)
	}
	if undecoded := metaData.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, item := range undecoded {
			keys = append(keys, item.String())
		}
		return errors.Errorf("config file %s contained invalid configuration options: %s",
			confFile, strings.Join(keys, ", "))
	}
	return nil
}

// Valid checks if this config is valid. The engine memory limit is checked by
// the engine itself, when it is first opened.
func (c *Config) Valid() error {
	switch c.Engine.AccessMode {
	case AccessModeAutomatic, AccessModeReadOnly, AccessModeReadWrite:
	default:
		return errors.Errorf("invalid engine.access-mode %q", c.Engine.AccessMode)
	}
	switch c.Offload.MalformedPolicy {
	case MalformedPolicySkip, MalformedPolicyAbort:
	default:
		return errors.Errorf("invalid offload.malformed-policy %q", c.Offload.MalformedPolicy)
	}
	if c.Engine.Threads < 0 {
		return errors.Errorf("invalid engine.threads %d", c.Engine.Threads)
	}
	if c.Log.QueryLogMaxLen < 0 {
		return errors.Errorf("invalid log.query-log-max-len %d", c.Log.QueryLogMaxLen)
	}
	return nil
}

// ToLogConfig converts *Log to *logutil.LogConfig.
func (l *Log) ToLogConfig() *logutil.LogConfig {
	return logutil.NewLogConfig(l.Level, l.Format, l.File, l.DisableTimestamp)
}
