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
	"context"
	"database/sql"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/marcboeker/go-duckdb"
	"github.com/pingcap/errors"
	"github.com/pingcap/failpoint"
	"github.com/plansplit/plansplit/pkg/metrics"
	"github.com/plansplit/plansplit/pkg/util/dbterror/offloaderrors"
	"github.com/plansplit/plansplit/pkg/util/logutil"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Opener opens the engine described by cfg. Errors must be ErrEngineConfig or
// ErrEngineOpen; anything else is reported as ErrEngineOpen.
type Opener func(ctx context.Context, cfg *Config) (*sql.DB, error)

type failpointBindingType struct{}

// curpkg returns the failpoint path of name in this package.
func curpkg(name string) string {
	return reflect.TypeOf(failpointBindingType{}).PkgPath() + "/" + name
}

// OpenDuckDB opens an in-process DuckDB instance.
func OpenDuckDB(_ context.Context, cfg *Config) (*sql.DB, error) {
	if val, _err_ := failpoint.Eval(curpkg("mockOpenError")); _err_ == nil {
		return nil, offloaderrors.ErrEngineOpen.GenWithStackByArgs(cfg.Target(), val.(string))
	}
	connector, err := duckdb.NewConnector(cfg.DSN(), nil)
	if err != nil {
		return nil, classifyOpenError(cfg, err)
	}
	return sql.OpenDB(connector), nil
}

// classifyOpenError maps a driver error to ErrEngineConfig when the engine
// rejected a setting, ErrEngineOpen otherwise. The engine's own message is kept.
func classifyOpenError(cfg *Config, err error) error {
	msg := err.Error()
	logutil.BgLogger().Error("embedded engine refused to open",
		zap.String("target", cfg.Target()), zap.String("engine-message", msg))
	if strings.Contains(strings.ToLower(msg), "config") {
		return offloaderrors.ErrEngineConfig.GenWithStackByArgs("(rejected by engine)", msg)
	}
	return offloaderrors.ErrEngineOpen.GenWithStackByArgs(cfg.Target(), msg)
}

// Connection is the single connection to the embedded engine. Statements run
// one at a time.
type Connection struct {
	cfg *Config

	mu     sync.Mutex
	db     *sql.DB
	conn   *sql.Conn
	closed bool
}

// Config returns the configuration the connection was opened with.
func (c *Connection) Config() *Config {
	return c.cfg
}

// Execute prepares and runs sql, and returns all of its rows. It blocks until
// the connection is free. The statement and its rows are closed before
// Execute returns.
func (c *Connection) Execute(ctx context.Context, sql string) (batch *ResultBatch, err error) {
	start := time.Now()
	defer func() {
		result := metrics.LblOK
		if err != nil {
			result = metrics.LblError
		}
		metrics.EngineExecuteHistogram.WithLabelValues(result).Observe(time.Since(start).Seconds())
	}()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, offloaderrors.ErrEngineClosed.GenWithStackByArgs()
	}

	stmt, err := c.conn.PrepareContext(ctx, sql)
	if err != nil {
		return nil, offloaderrors.ErrPrepare.GenWithStackByArgs(err.Error())
	}
	defer func() {
		if closeErr := stmt.Close(); closeErr != nil {
			logutil.Logger(ctx).Warn("close prepared statement failed", zap.Error(closeErr))
		}
	}()

	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		return nil, offloaderrors.ErrExecute.GenWithStackByArgs(err.Error())
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			logutil.Logger(ctx).Warn("close result rows failed", zap.Error(closeErr))
		}
	}()

	batch, err = collect(rows)
	if err != nil {
		return nil, offloaderrors.ErrExecute.GenWithStackByArgs(err.Error())
	}
	return batch, nil
}

// Close releases the connection and the engine instance. It waits for the
// running statement, and later calls are no-ops.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return errors.Trace(multierr.Combine(c.conn.Close(), c.db.Close()))
}
