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
	"context"
	"fmt"

	"github.com/pingcap/errors"
	"github.com/plansplit/plansplit/pkg/config"
	"github.com/plansplit/plansplit/pkg/engine"
	"github.com/plansplit/plansplit/pkg/hook"
	"github.com/plansplit/plansplit/pkg/host"
	"github.com/plansplit/plansplit/pkg/offload"
	"github.com/plansplit/plansplit/pkg/offload/hostadapter"
	"github.com/spf13/cobra"
)

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run <sql>...",
		Short: "plan statements on a simulated host and print what their CTEs returned on the embedded engine",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dialect, err := newDialect(cmd.Flags())
			if err != nil {
				return err
			}
			var pending []offload.Outcome
			h := host.New(dialect)
			if _, err := hook.Init(h, config.GetGlobalConfig(), hook.WithObserver(func(_ context.Context, outcomes []offload.Outcome) {
				pending = append(pending, outcomes...)
			})); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, sql := range args {
				plans, err := h.Run(cmd.Context(), sql, nil)
				if err != nil {
					return errors.Trace(err)
				}
				fmt.Fprintln(out, renderPlans(plans))
				for _, outcome := range pending {
					fmt.Fprintln(out, renderOutcome(outcome))
				}
				pending = pending[:0]
			}
			return nil
		},
	}
}

func newDeparseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "deparse <sql>...",
		Short: "print the SQL text the host reconstructs for every CTE",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dialect, err := newDialect(cmd.Flags())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, sql := range args {
				queries, err := dialect.Parse(sql)
				if err != nil {
					return errors.Trace(err)
				}
				for _, q := range queries {
					ctes, err := hostadapter.ExtractPrettyCTEs(dialect, q)
					if err != nil {
						return err
					}
					fmt.Fprintln(out, renderCTEs(ctes))
				}
			}
			return nil
		},
	}
}

func newProbeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "check that plansplit is loaded and the embedded engine opens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, hook.Hello())
			conn, err := engine.Instance()
			if err != nil {
				return err
			}
			version, err := engine.Version(cmd.Context(), conn)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, renderEngine(conn.Config(), version))
			return nil
		},
	}
}

func newDemoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "run a sample query on the embedded engine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, err := engine.Instance()
			if err != nil {
				return err
			}
			batch, err := engine.Demo(cmd.Context(), conn)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, engine.DemoSQL)
			fmt.Fprintln(out, renderBatch(batch))
			return nil
		},
	}
}
