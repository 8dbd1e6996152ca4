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

// Package hostadapter is the boundary between plansplit and host-owned parse
// structures. Everything it returns is an owned copy: no host pointer survives
// past ExtractCTEs.
package hostadapter

import (
	"fmt"
	"strings"

	"github.com/plansplit/plansplit/pkg/host"
	"github.com/plansplit/plansplit/pkg/util/dbterror/offloaderrors"
)

// CTE is an owned copy of one entry of a query's CTE list.
type CTE struct {
	Name        string
	SQL         string
	CommandType host.CmdType
	// Err is the reconstruction failure, SQL is empty when it is set.
	Err error
}

// ReadOnly reports whether the CTE body is a plain query.
func (c *CTE) ReadOnly() bool {
	return c.CommandType == host.CmdSelect
}

// Reconstruct regenerates the SQL text of q. Offload paths pass pretty=false.
func Reconstruct(d host.Deparser, q *host.Query, pretty bool) (string, error) {
	if d == nil || q == nil {
		return "", offloaderrors.ErrDeparseFailure.GenWithStackByArgs("nil query or deparser")
	}
	sql, err := d.Deparse(q, pretty)
	if err != nil {
		return "", offloaderrors.ErrDeparseFailure.GenWithStackByArgs(err.Error())
	}
	if strings.TrimSpace(sql) == "" {
		return "", offloaderrors.ErrDeparseFailure.GenWithStackByArgs("empty result")
	}
	return sql, nil
}

// ExtractCTEs walks q's CTE list in order and reconstructs every body. An
// absent list yields no CTEs. The list shape is checked before any body is
// deparsed; a violation fails with ErrMalformedHostStructure. Reconstruction
// failures are reported per CTE in CTE.Err.
func ExtractCTEs(d host.Deparser, q *host.Query) ([]CTE, error) {
	return extract(d, q, false)
}

// ExtractPrettyCTEs is ExtractCTEs with pretty-printed bodies. The result is
// meant for display, never for execution.
func ExtractPrettyCTEs(d host.Deparser, q *host.Query) ([]CTE, error) {
	return extract(d, q, true)
}

func extract(d host.Deparser, q *host.Query, pretty bool) ([]CTE, error) {
	if q == nil || q.CteList == nil {
		return nil, nil
	}
	list := q.CteList
	if list.Length != len(list.Elements) {
		return nil, offloaderrors.ErrMalformedHostStructure.GenWithStackByArgs(
			fmt.Sprintf("cte list length %d does not match %d elements", list.Length, len(list.Elements)))
	}
	entries := make([]*host.CommonTableExpr, 0, len(list.Elements))
	bodies := make([]*host.Query, 0, len(list.Elements))
	for i, cell := range list.Elements {
		entry, ok := cell.PtrValue.(*host.CommonTableExpr)
		if !ok || entry == nil {
			return nil, offloaderrors.ErrMalformedHostStructure.GenWithStackByArgs(
				fmt.Sprintf("cte list cell %d holds %T, not a common table expression", i, cell.PtrValue))
		}
		body, ok := entry.CteQuery.(*host.Query)
		if !ok || body == nil {
			return nil, offloaderrors.ErrMalformedHostStructure.GenWithStackByArgs(
				fmt.Sprintf("cte %q has no query body", entry.Ctename))
		}
		entries = append(entries, entry)
		bodies = append(bodies, body)
	}

	ctes := make([]CTE, 0, len(entries))
	for i, entry := range entries {
		sql, err := Reconstruct(d, bodies[i], pretty)
		ctes = append(ctes, CTE{
			Name:        strings.Clone(entry.Ctename),
			SQL:         sql,
			CommandType: bodies[i].CommandType,
			Err:         err,
		})
	}
	return ctes, nil
}
