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

// Package hook installs plansplit ahead of the host's planner. The installed
// planner offloads the CTEs of every top-level query and then hands the call,
// unchanged, to whatever planner was there before.
package hook

import (
	"context"

	"github.com/plansplit/plansplit/pkg/config"
	"github.com/plansplit/plansplit/pkg/engine"
	"github.com/plansplit/plansplit/pkg/host"
	"github.com/plansplit/plansplit/pkg/offload"
	"github.com/plansplit/plansplit/pkg/util/dbterror/offloaderrors"
	"github.com/plansplit/plansplit/pkg/util/logutil"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Hello returns the liveness probe message.
func Hello() string {
	return "Hello, pg_plansplit"
}

// Observer receives the outcomes of one offloaded query.
type Observer func(ctx context.Context, outcomes []offload.Outcome)

// Manager owns the planner hook installed on one host. Once installed the hook
// stays for the life of the host.
type Manager struct {
	host       *host.Host
	dispatcher *offload.Dispatcher
	enabled    bool
	observer   Observer

	installed atomic.Bool
	prev      host.PlannerHook
	queryID   atomic.Uint64
}

// Option configures a Manager.
type Option func(*Manager)

// WithObserver registers o to receive the outcomes of every offloaded query.
func WithObserver(o Observer) Option {
	return func(m *Manager) {
		m.observer = o
	}
}

// WithOffload turns offloading on or off. A disabled manager still installs
// its hook and only passes calls through.
func WithOffload(enable bool) Option {
	return func(m *Manager) {
		m.enabled = enable
	}
}

// NewManager creates a Manager for h.
func NewManager(h *host.Host, dispatcher *offload.Dispatcher, opts ...Option) *Manager {
	m := &Manager{host: h, dispatcher: dispatcher, enabled: true}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Install puts the manager's planner in front of the host's current planner
// hook. It must run in the primary server process during startup. Installing
// twice is a no-op.
func (m *Manager) Install() error {
	if m.host.IsUnderPostmaster() {
		return offloaderrors.ErrBadInit.GenWithStackByArgs("must be loaded in the primary server process at startup")
	}
	if !m.installed.CompareAndSwap(false, true) {
		return nil
	}
	m.prev = m.host.PlannerHook()
	m.host.SetPlannerHook(m.planner)
	logutil.BgLogger().Info("planner hook installed",
		zap.String("dialect", m.host.Dialect().Name()),
		zap.Bool("chained", m.prev != nil),
		zap.Bool("offload", m.enabled))
	return nil
}

// Installed reports whether the hook is in place.
func (m *Manager) Installed() bool {
	return m.installed.Load()
}

func (m *Manager) planner(ctx context.Context, parse *host.Query, queryString string, cursorOptions int, boundParams host.ParamList) (*host.PlannedStmt, error) {
	// nested planning calls belong to a query that was already offloaded
	if m.enabled && host.PlanningLevel(ctx) == 1 {
		qctx := logutil.WithQueryID(ctx, m.queryID.Inc())
		outcomes := m.dispatcher.Offload(qctx, parse)
		if m.observer != nil && len(outcomes) > 0 {
			m.observer(qctx, outcomes)
		}
	}
	if m.prev != nil {
		return m.prev(ctx, parse, queryString, cursorOptions, boundParams)
	}
	return host.StandardPlanner(ctx, parse, queryString, cursorOptions, boundParams)
}

// Init wires plansplit into h from cfg, offloading to the process-wide engine.
// cfg becomes the global config, which the engine reads when it is first used.
func Init(h *host.Host, cfg *config.Config, opts ...Option) (*Manager, error) {
	config.StoreGlobalConfig(cfg)
	dispatcher := offload.New(h.Dialect(), offload.FromManager(engine.GlobalManager()),
		offload.WithMalformedPolicy(cfg.Offload.MalformedPolicy),
		offload.WithQueryLogMaxLen(cfg.Log.QueryLogMaxLen))
	m := NewManager(h, dispatcher, append([]Option{WithOffload(cfg.Offload.Enable)}, opts...)...)
	if err := m.Install(); err != nil {
		return nil, err
	}
	return m, nil
}

// MustInit is Init that exits the process on failure.
func MustInit(h *host.Host, cfg *config.Config, opts ...Option) *Manager {
	m, err := Init(h, cfg, opts...)
	if err != nil {
		logutil.BgLogger().Fatal("plansplit init failed", zap.Error(err))
	}
	return m
}
