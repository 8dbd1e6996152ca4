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

// Package pgdialect analyzes and deparses PostgreSQL statements for the host.
package pgdialect

import (
	pg_query "github.com/pganalyze/pg_query_go/v6"
	"github.com/pingcap/errors"
	"github.com/plansplit/plansplit/pkg/host"
)

// Name is the dialect name.
const Name = "postgres"

// Dialect implements host.Dialect with the PostgreSQL parser.
type Dialect struct{}

// New creates a PostgreSQL dialect.
func New() *Dialect {
	return &Dialect{}
}

// Name implements host.Dialect.
func (*Dialect) Name() string {
	return Name
}

// Parse implements host.Dialect.
func (*Dialect) Parse(sql string) ([]*host.Query, error) {
	tree, err := pg_query.Parse(sql)
	if err != nil {
		return nil, errors.Trace(err)
	}
	queries := make([]*host.Query, 0, len(tree.GetStmts()))
	for _, raw := range tree.GetStmts() {
		q := analyze(raw.GetStmt())
		q.CanSetTag = true
		queries = append(queries, q)
	}
	return queries, nil
}

// Deparse implements host.Deparser. The PostgreSQL deparser has a single
// output format, so pretty is ignored.
func (*Dialect) Deparse(q *host.Query, _ bool) (string, error) {
	if q == nil {
		return "", errors.New("deparse: nil query")
	}
	node, ok := q.Raw.(*pg_query.Node)
	if !ok || node == nil {
		return "", errors.Errorf("deparse: query was not analyzed by the %s dialect", Name)
	}
	tree := &pg_query.ParseResult{Stmts: []*pg_query.RawStmt{{Stmt: node}}}
	sql, err := pg_query.Deparse(tree)
	if err != nil {
		return "", errors.Trace(err)
	}
	return sql, nil
}

func analyze(node *pg_query.Node) *host.Query {
	q := &host.Query{Raw: node}
	var with *pg_query.WithClause
	switch {
	case node.GetSelectStmt() != nil:
		q.CommandType = host.CmdSelect
		with = node.GetSelectStmt().GetWithClause()
	case node.GetInsertStmt() != nil:
		q.CommandType = host.CmdInsert
		with = node.GetInsertStmt().GetWithClause()
	case node.GetUpdateStmt() != nil:
		q.CommandType = host.CmdUpdate
		with = node.GetUpdateStmt().GetWithClause()
	case node.GetDeleteStmt() != nil:
		q.CommandType = host.CmdDelete
		with = node.GetDeleteStmt().GetWithClause()
	default:
		q.CommandType = host.CmdUtility
	}
	if with == nil || len(with.GetCtes()) == 0 {
		return q
	}
	ctes := make([]any, 0, len(with.GetCtes()))
	for _, item := range with.GetCtes() {
		cte := item.GetCommonTableExpr()
		if cte == nil {
			continue
		}
		ctes = append(ctes, &host.CommonTableExpr{
			Ctename:   cte.GetCtename(),
			CteQuery:  analyze(cte.GetCtequery()),
			Recursive: with.GetRecursive(),
			Location:  int(cte.GetLocation()),
		})
	}
	q.CteList = host.NewList(ctes...)
	return q
}
