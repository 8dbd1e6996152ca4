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
)

// Cursor options passed to the planner.
const (
	CursorOptNone       = 0x0000
	CursorOptScroll     = 0x0002
	CursorOptHold       = 0x0020
	CursorOptFastPlan   = 0x0100
	CursorOptParallelOK = 0x0800
)

// Param is one bound parameter.
type Param struct {
	Value  any
	IsNull bool
}

// ParamList is the list of bound parameters of a statement.
type ParamList []Param

// PlannedStmt is the result of planning a query.
type PlannedStmt struct {
	CommandType   CmdType
	CanSetTag     bool
	QueryText     string
	CursorOptions int
	NumParams     int
	// CTENames lists the CTEs the plan materializes, in declaration order.
	CTENames []string
}

// PlannerHook is the signature of the planning entry point. A hook must
// return the plan produced by the standard planner or by the hook it replaced.
type PlannerHook func(ctx context.Context, parse *Query, queryString string, cursorOptions int, boundParams ParamList) (*PlannedStmt, error)

// StandardPlanner is the host's own planning routine.
func StandardPlanner(_ context.Context, parse *Query, queryString string, cursorOptions int, boundParams ParamList) (*PlannedStmt, error) {
	if parse == nil {
		return nil, errors.New("standard planner: nil query")
	}
	return &PlannedStmt{
		CommandType:   parse.CommandType,
		CanSetTag:     parse.CanSetTag,
		QueryText:     queryString,
		CursorOptions: cursorOptions,
		NumParams:     len(boundParams),
		CTENames:      parse.CTENames(),
	}, nil
}

type planningLevelKey struct{}

// PlanningLevel returns how many planning calls are active on ctx. It is 1
// inside a top-level planner invocation.
func PlanningLevel(ctx context.Context) int {
	if lvl, ok := ctx.Value(planningLevelKey{}).(int); ok {
		return lvl
	}
	return 0
}

func enterPlanning(ctx context.Context) context.Context {
	return context.WithValue(ctx, planningLevelKey{}, PlanningLevel(ctx)+1)
}
