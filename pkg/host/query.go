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

import "fmt"

// CmdType is the kind of statement a Query represents.
type CmdType int

// Command types.
const (
	CmdUnknown CmdType = iota
	CmdSelect
	CmdInsert
	CmdUpdate
	CmdDelete
	CmdUtility
)

// String implements fmt.Stringer.
func (t CmdType) String() string {
	switch t {
	case CmdSelect:
		return "SELECT"
	case CmdInsert:
		return "INSERT"
	case CmdUpdate:
		return "UPDATE"
	case CmdDelete:
		return "DELETE"
	case CmdUtility:
		return "UTILITY"
	default:
		return fmt.Sprintf("CmdType(%d)", int(t))
	}
}

// Query is an analyzed statement. Queries handed to planner hooks are owned by
// the host and are only valid for the duration of the planning call.
type Query struct {
	CommandType CmdType
	// CanSetTag is false for queries nested in another one, such as CTE bodies.
	CanSetTag bool
	// CteList holds *CommonTableExpr cells in declaration order, nil when the
	// query has no WITH clause.
	CteList *List
	// Raw is the dialect parse node the query was analyzed from.
	Raw any
}

// List is the host's generic pointer list. Length mirrors len(Elements) for a
// well-formed list.
type List struct {
	Length   int
	Elements []ListCell
}

// ListCell is one element of a List.
type ListCell struct {
	PtrValue any
}

// NewList creates a well-formed list from values.
func NewList(values ...any) *List {
	l := &List{Length: len(values), Elements: make([]ListCell, 0, len(values))}
	for _, v := range values {
		l.Elements = append(l.Elements, ListCell{PtrValue: v})
	}
	return l
}

// CommonTableExpr is one entry of a query's CTE list.
type CommonTableExpr struct {
	Ctename string
	// CteQuery is the analyzed body, a *Query.
	CteQuery  any
	Recursive bool
	// Location is the byte offset of the CTE in the query text, -1 if unknown.
	Location int
}

// CTENames returns the names in q's CTE list, skipping cells that are not CTEs.
func (q *Query) CTENames() []string {
	if q == nil || q.CteList == nil {
		return nil
	}
	names := make([]string, 0, len(q.CteList.Elements))
	for _, cell := range q.CteList.Elements {
		if cte, ok := cell.PtrValue.(*CommonTableExpr); ok && cte != nil {
			names = append(names, cte.Ctename)
		}
	}
	return names
}
