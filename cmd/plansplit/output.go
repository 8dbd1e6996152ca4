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

package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/plansplit/plansplit/pkg/engine"
	"github.com/plansplit/plansplit/pkg/host"
	"github.com/plansplit/plansplit/pkg/offload"
	"github.com/plansplit/plansplit/pkg/offload/hostadapter"
)

func renderPlans(plans []*host.PlannedStmt) string {
	t := table.NewWriter()
	t.SetTitle("Plans")
	t.AppendHeader(table.Row{"#", "Command", "CTEs", "Cursor Options", "Params"})
	for i, plan := range plans {
		t.AppendRow(table.Row{i + 1, plan.CommandType, strings.Join(plan.CTENames, ", "),
			fmt.Sprintf("0x%04x", plan.CursorOptions), plan.NumParams})
	}
	return t.Render()
}

func renderOutcome(outcome offload.Outcome) string {
	state := "ok"
	switch {
	case outcome.Skipped:
		state = "skipped"
	case outcome.Err != nil:
		state = "error"
	}
	res := fmt.Sprintf("\nCTE %s (%s): %s\n", outcome.Name, state, outcome.SQL)
	if outcome.Err != nil {
		res += text.FgRed.Sprint(outcome.Err.Error()) + "\n"
	}
	if outcome.Batch != nil {
		res += renderBatch(outcome.Batch)
	}
	return res
}

func renderBatch(batch *engine.ResultBatch) string {
	rec := batch.ToArrow(nil)
	defer rec.Release()

	t := table.NewWriter()
	header := make(table.Row, 0, rec.NumCols())
	for _, field := range rec.Schema().Fields() {
		header = append(header, field.Name+"\n"+field.Type.String())
	}
	t.AppendHeader(header)
	for i := 0; i < int(rec.NumRows()); i++ {
		row := make(table.Row, 0, rec.NumCols())
		for _, col := range rec.Columns() {
			row = append(row, engine.ArrowText(col, i))
		}
		t.AppendRow(row)
	}
	t.AppendFooter(table.Row{fmt.Sprintf("%d rows", rec.NumRows())})
	return t.Render()
}

func renderCTEs(ctes []hostadapter.CTE) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "CTE", "Command", "SQL"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "SQL", WidthMax: 80},
	})
	for i, cte := range ctes {
		sql := cte.SQL
		if cte.Err != nil {
			sql = text.FgRed.Sprint(cte.Err.Error())
		}
		t.AppendRow(table.Row{i + 1, cte.Name, cte.CommandType, sql})
	}
	return t.Render()
}

func renderEngine(cfg *engine.Config, version string) string {
	t := table.NewWriter()
	t.SetTitle("Embedded Engine " + version)
	t.AppendHeader(table.Row{"Option", "Value"})
	t.AppendRow(table.Row{"target", cfg.Target()})
	for _, opt := range cfg.Options() {
		t.AppendRow(table.Row{opt.Name, opt.Value})
	}
	return t.Render()
}
