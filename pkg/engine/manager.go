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
	"sync"

	"github.com/pingcap/errors"
	"github.com/plansplit/plansplit/pkg/metrics"
	"github.com/plansplit/plansplit/pkg/util/dbterror/offloaderrors"
	"github.com/plansplit/plansplit/pkg/util/logutil"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// ConfigLoader resolves the engine configuration. It is called once.
type ConfigLoader func() (*Config, error)

// Manager owns the lazily opened engine connection. The first Instance call
// opens it, concurrent callers wait for that call, and the outcome, success
// or failure, is kept for the lifetime of the Manager.
type Manager struct {
	load ConfigLoader
	open Opener

	once sync.Once
	conn *Connection
	err  error

	inits        atomic.Int32
	shutdownOnce sync.Once
}

// NewManager creates a Manager.
func NewManager(load ConfigLoader, open Opener) *Manager {
	return &Manager{load: load, open: open}
}

// Instance returns the engine connection, opening it on first use.
func (m *Manager) Instance() (*Connection, error) {
	m.once.Do(m.init)
	return m.conn, m.err
}

// Inits returns how many times initialization ran. It never exceeds one.
func (m *Manager) Inits() int32 {
	return m.inits.Load()
}

func (m *Manager) init() {
	m.inits.Inc()
	m.conn, m.err = m.connect(context.Background())
	if m.err != nil {
		metrics.EngineInitCounter.WithLabelValues(metrics.LblError).Inc()
		logutil.BgLogger().Error("embedded engine init failed, offload is disabled", zap.Error(m.err))
		return
	}
	metrics.EngineInitCounter.WithLabelValues(metrics.LblOK).Inc()
	logutil.BgLogger().Info("embedded engine ready", m.conn.cfg.Fields()...)
}

func (m *Manager) connect(ctx context.Context) (*Connection, error) {
	cfg, err := m.load()
	if err != nil {
		if !offloaderrors.IsEngineInitErr(err) {
			err = offloaderrors.ErrEngineConfig.GenWithStackByArgs("(config)", err.Error())
		}
		return nil, err
	}
	logutil.BgLogger().Debug("embedded engine config resolved", cfg.Fields()...)

	db, err := m.open(ctx, cfg)
	if err != nil {
		if !offloaderrors.IsEngineInitErr(err) {
			err = offloaderrors.ErrEngineOpen.GenWithStackByArgs(cfg.Target(), err.Error())
		}
		return nil, err
	}
	// every statement must see the same session
	db.SetMaxOpenConns(1)
	conn, err := db.Conn(ctx)
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logutil.BgLogger().Warn("close engine after failed connect", zap.Error(closeErr))
		}
		return nil, offloaderrors.ErrEngineOpen.GenWithStackByArgs(cfg.Target(), err.Error())
	}
	return &Connection{cfg: cfg, db: db, conn: conn}, nil
}

// Shutdown releases the engine connection. A Manager that was never used is
// marked closed so it will not open afterwards. Only the first call has an
// effect.
func (m *Manager) Shutdown() error {
	var err error
	m.shutdownOnce.Do(func() {
		m.once.Do(func() {
			m.err = offloaderrors.ErrEngineClosed.GenWithStackByArgs()
		})
		if m.conn == nil {
			return
		}
		err = m.conn.Close()
		logutil.BgLogger().Info("embedded engine released", zap.Error(err))
	})
	return errors.Trace(err)
}

var globalManager = NewManager(GlobalConfig, OpenDuckDB)

// GlobalManager returns the process-wide Manager, configured from the global
// plansplit config.
func GlobalManager() *Manager {
	return globalManager
}

// Instance returns the process-wide engine connection.
func Instance() (*Connection, error) {
	return globalManager.Instance()
}

// Shutdown releases the process-wide engine connection.
func Shutdown() error {
	return globalManager.Shutdown()
}
