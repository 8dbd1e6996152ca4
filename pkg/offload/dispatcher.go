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

// Package offload runs the CTEs of a query being planned on the embedded
// engine. It never affects the plan: every failure is logged and counted, and
// the caller always continues with planning.
package offload

import (
	"context"
	"fmt"
	"time"

	"github.com/pingcap/errors"
	"github.com/plansplit/plansplit/pkg/config"
	"github.com/plansplit/plansplit/pkg/engine"
	"github.com/plansplit/plansplit/pkg/host"
	"github.com/plansplit/plansplit/pkg/metrics"
	"github.com/plansplit/plansplit/pkg/offload/hostadapter"
	"github.com/plansplit/plansplit/pkg/util/logutil"
	"go.uber.org/zap"
)

// Executor runs one SQL statement and returns its complete result.
type Executor interface {
	Execute(ctx context.Context, sql string) (*engine.ResultBatch, error)
}

// EngineAccessor returns the engine connection, creating it on first use.
type EngineAccessor func() (Executor, error)

// FromManager returns an EngineAccessor backed by m.
func FromManager(m *engine.Manager) EngineAccessor {
	return func() (Executor, error) {
		conn, err := m.Instance()
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// Outcome is what happened to one CTE.
type Outcome struct {
	Name string
	SQL  string
	// Skipped is set when the CTE was not sent to the engine.
	Skipped bool
	Batch   *engine.ResultBatch
	Err     error
}

// Dispatcher offloads the CTEs of planned queries.
type Dispatcher struct {
	deparser        host.Deparser
	engine          EngineAccessor
	malformedPolicy string
	queryLogMaxLen  int
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMalformedPolicy sets what happens when the host hands over a broken CTE
// list: config.MalformedPolicySkip logs it and offloads nothing,
// config.MalformedPolicyAbort panics with the error.
func WithMalformedPolicy(policy string) Option {
	return func(d *Dispatcher) {
		d.malformedPolicy = policy
	}
}

// WithQueryLogMaxLen bounds the SQL text written to the log.
func WithQueryLogMaxLen(n int) Option {
	return func(d *Dispatcher) {
		d.queryLogMaxLen = n
	}
}

// New creates a Dispatcher.
func New(deparser host.Deparser, accessor EngineAccessor, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		deparser:        deparser,
		engine:          accessor,
		malformedPolicy: config.MalformedPolicySkip,
		queryLogMaxLen:  logutil.DefaultQueryLogMaxLen,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Offload executes every CTE of q on the engine, in declaration order. A query
// without CTEs does not touch the engine. The engine is resolved at most once
// per call, and only when some CTE is actually sent to it.
func (d *Dispatcher) Offload(ctx context.Context, q *host.Query) []Outcome {
	ctx = logutil.WithCategory(ctx, "offload")
	logger := logutil.Logger(ctx)
	ctes, err := hostadapter.ExtractCTEs(d.deparser, q)
	if err != nil {
		metrics.MalformedHostCounter.Inc()
		if d.malformedPolicy == config.MalformedPolicyAbort {
			logger.Error("malformed cte list, aborting", zap.Error(err))
			panic(err)
		}
		logger.Warn("malformed cte list, offload skipped", zap.Error(err))
		return nil
	}
	if len(ctes) == 0 {
		return nil
	}
	metrics.OffloadQueryCounter.WithLabelValues().Inc()
	if ce := logger.Check(zap.DebugLevel, "collected cte sql"); ce != nil {
		texts := make([]string, 0, len(ctes))
		for i := range ctes {
			texts = append(texts, logutil.TruncateSQL(ctes[i].SQL, d.queryLogMaxLen))
		}
		ce.Write(zap.Int("count", len(ctes)), zap.Strings("sql", texts))
	}

	var (
		exec      Executor
		engineErr error
		resolved  bool
	)
	outcomes := make([]Outcome, 0, len(ctes))
	for i := range ctes {
		cte := &ctes[i]
		out := Outcome{Name: cte.Name, SQL: cte.SQL}
		cteLogger := logger.With(zap.String(logutil.LogFieldCTE, cte.Name))
		switch {
		case cte.Err != nil:
			out.Skipped, out.Err = true, cte.Err
			cteLogger.Warn("cte could not be reconstructed, skipped", zap.Error(cte.Err))
		case !cte.ReadOnly():
			out.Skipped = true
			cteLogger.Info("data-modifying cte is not offloaded", zap.Stringer("command", cte.CommandType))
		default:
			if !resolved {
				exec, engineErr = d.engine()
				resolved = true
			}
			if engineErr != nil {
				out.Err = engineErr
				cteLogger.Warn("embedded engine unavailable, cte not offloaded", zap.Error(engineErr))
				break
			}
			start := time.Now()
			out.Batch, out.Err = execute(ctx, exec, cte.SQL)
			if out.Err != nil {
				cteLogger.Warn("offloaded cte failed",
					zap.String("sql", logutil.TruncateSQL(cte.SQL, d.queryLogMaxLen)),
					zap.Duration("cost", time.Since(start)), zap.Error(out.Err))
				break
			}
			cteLogger.Info("offloaded cte",
				zap.Int("columns", len(out.Batch.Columns)), zap.Int("rows", out.Batch.NumRows()),
				zap.Duration("cost", time.Since(start)))
		}
		metrics.OffloadCTECounter.WithLabelValues(outcomeLabel(&out)).Inc()
		outcomes = append(outcomes, out)
	}
	return outcomes
}

// execute runs sql on exec, reporting a panic of the executor as an error.
func execute(ctx context.Context, exec Executor, sql string) (batch *engine.ResultBatch, err error) {
	defer func() {
		if r := recover(); r != nil {
			batch, err = nil, errors.Errorf("embedded engine panicked: %s", fmt.Sprint(r))
		}
	}()
	batch, err = exec.Execute(ctx, sql)
	if err == nil && batch == nil {
		err = errors.New("embedded engine returned no result")
	}
	return batch, err
}

func outcomeLabel(out *Outcome) string {
	switch {
	case out.Skipped && out.Err == nil:
		return metrics.LblSkipped
	case out.Err != nil:
		return metrics.LblError
	default:
		return metrics.LblOK
	}
}
