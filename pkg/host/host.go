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

package host

import (
	"context"

	"github.com/pingcap/errors"
	"go.uber.org/atomic"
)

// Host is a minimal in-process database front end: it parses statements with
// its dialect and plans them through a replaceable planner hook.
type Host struct {
	dialect Dialect
	// underPostmaster is true in forked worker processes.
	underPostmaster bool
	plannerHook     atomic.Pointer[PlannerHook]
}

// Option configures a Host.
type Option func(*Host)

// AsWorkerProcess marks the host as a forked worker process.
func AsWorkerProcess() Option {
	return func(h *Host) {
		h.underPostmaster = true
	}
}

// New creates a Host using dialect.
func New(dialect Dialect, opts ...Option) *Host {
	h := &Host{dialect: dialect}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Dialect returns the host's SQL dialect.
func (h *Host) Dialect() Dialect {
	return h.dialect
}

// IsUnderPostmaster reports whether this is a forked worker process rather
// than the primary server process.
func (h *Host) IsUnderPostmaster() bool {
	return h.underPostmaster
}

// PlannerHook returns the installed planner hook, nil if there is none.
func (h *Host) PlannerHook() PlannerHook {
	if p := h.plannerHook.Load(); p != nil {
		return *p
	}
	return nil
}

// SetPlannerHook replaces the planner hook. Hooks are expected to be set at
// startup, before the host plans any query.
func (h *Host) SetPlannerHook(hook PlannerHook) {
	if hook == nil {
		h.plannerHook.Store(nil)
		return
	}
	h.plannerHook.Store(&hook)
}

// Plan plans one analyzed query through the planner hook, or the standard
// planner when no hook is installed. A hook that panics with an error at the
// top planning level fails the statement with that error.
func (h *Host) Plan(ctx context.Context, parse *Query, queryString string, cursorOptions int, boundParams ParamList) (plan *PlannedStmt, err error) {
	ctx = enterPlanning(ctx)
	if PlanningLevel(ctx) == 1 {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			abort, ok := r.(error)
			if !ok {
				panic(r)
			}
			plan, err = nil, errors.Annotate(abort, "planning aborted")
		}()
	}
	if hook := h.PlannerHook(); hook != nil {
		return hook(ctx, parse, queryString, cursorOptions, boundParams)
	}
	return StandardPlanner(ctx, parse, queryString, cursorOptions, boundParams)
}

// Run parses sql and plans every statement in it.
func (h *Host) Run(ctx context.Context, sql string, boundParams ParamList) ([]*PlannedStmt, error) {
	queries, err := h.dialect.Parse(sql)
	if err != nil {
		return nil, errors.Trace(err)
	}
	plans := make([]*PlannedStmt, 0, len(queries))
	for _, q := range queries {
		plan, err := h.Plan(ctx, q, sql, CursorOptParallelOK, boundParams)
		if err != nil {
			return plans, errors.Trace(err)
		}
		plans = append(plans, plan)
	}
	return plans, nil
}
