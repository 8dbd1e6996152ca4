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

// Package mysqldialect analyzes and deparses MySQL statements for the host.
package mysqldialect

import (
	"strings"

	"github.com/pingcap/errors"
	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	"github.com/pingcap/tidb/pkg/parser/format"
	// value expressions for the standalone parser.
	_ "github.com/pingcap/tidb/pkg/parser/test_driver"
	"github.com/plansplit/plansplit/pkg/host"
)

// Name is the dialect name.
const Name = "mysql"

// restoreFlags renders identifiers with double quotes so the text is also
// valid for the embedded engine.
const restoreFlags = format.RestoreStringSingleQuotes |
	format.RestoreNameDoubleQuotes |
	format.RestoreStringWithoutCharset

// Dialect implements host.Dialect with the TiDB parser. A parser is not safe
// for concurrent use, so Parse creates one per call.
type Dialect struct {
	charset   string
	collation string
}

// New creates a MySQL dialect.
func New() *Dialect {
	return &Dialect{}
}

// Name implements host.Dialect.
func (*Dialect) Name() string {
	return Name
}

// Parse implements host.Dialect.
func (d *Dialect) Parse(sql string) ([]*host.Query, error) {
	stmts, _, err := parser.New().Parse(sql, d.charset, d.collation)
	if err != nil {
		return nil, errors.Trace(err)
	}
	queries := make([]*host.Query, 0, len(stmts))
	for _, stmt := range stmts {
		q := analyze(stmt)
		q.CanSetTag = true
		queries = append(queries, q)
	}
	return queries, nil
}

// Deparse implements host.Deparser. Keywords are upper case unless pretty is
// set, in which case they are lower case.
func (*Dialect) Deparse(q *host.Query, pretty bool) (string, error) {
	if q == nil {
		return "", errors.New("deparse: nil query")
	}
	node, ok := q.Raw.(ast.Node)
	if !ok || node == nil {
		return "", errors.Errorf("deparse: query was not analyzed by the %s dialect", Name)
	}
	flags := restoreFlags | format.RestoreKeyWordUppercase
	if pretty {
		flags = restoreFlags | format.RestoreKeyWordLowercase
	}
	var sb strings.Builder
	if err := node.Restore(format.NewRestoreCtx(flags, &sb)); err != nil {
		return "", errors.Trace(err)
	}
	return sb.String(), nil
}

func analyze(node ast.Node) *host.Query {
	q := &host.Query{Raw: node}
	var with *ast.WithClause
	switch n := node.(type) {
	case *ast.SelectStmt:
		q.CommandType = host.CmdSelect
		with = n.With
	case *ast.SetOprStmt:
		q.CommandType = host.CmdSelect
		with = n.With
	case *ast.InsertStmt:
		q.CommandType = host.CmdInsert
	case *ast.UpdateStmt:
		q.CommandType = host.CmdUpdate
		with = n.With
	case *ast.DeleteStmt:
		q.CommandType = host.CmdDelete
		with = n.With
	default:
		q.CommandType = host.CmdUtility
	}
	if with == nil || len(with.CTEs) == 0 {
		return q
	}
	ctes := make([]any, 0, len(with.CTEs))
	for _, cte := range with.CTEs {
		if cte == nil || cte.Query == nil || cte.Query.Query == nil {
			continue
		}
		ctes = append(ctes, &host.CommonTableExpr{
			Ctename:   cte.Name.O,
			CteQuery:  analyze(cte.Query.Query),
			Recursive: with.IsRecursive,
			Location:  -1,
		})
	}
	q.CteList = host.NewList(ctes...)
	return q
}
