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

package hostadapter

import (
	"testing"

	"github.com/pingcap/errors"
	"github.com/plansplit/plansplit/pkg/host"
	"github.com/plansplit/plansplit/pkg/host/pgdialect"
	"github.com/plansplit/plansplit/pkg/util/dbterror/offloaderrors"
	"github.com/stretchr/testify/require"
)

// fakeDeparser renders q.Raw as the SQL text, and fails for error values.
type fakeDeparser struct {
	calls   []*host.Query
	prettys []bool
}

func (f *fakeDeparser) Deparse(q *host.Query, pretty bool) (string, error) {
	f.calls = append(f.calls, q)
	f.prettys = append(f.prettys, pretty)
	switch raw := q.Raw.(type) {
	case error:
		return "", raw
	case string:
		return raw, nil
	}
	return "", nil
}

func body(raw any) *host.Query {
	return &host.Query{CommandType: host.CmdSelect, Raw: raw}
}

func TestReconstruct(t *testing.T) {
	d := &fakeDeparser{}
	sql, err := Reconstruct(d, body("SELECT 1 AS x"), false)
	require.NoError(t, err)
	require.Equal(t, "SELECT 1 AS x", sql)

	_, err = Reconstruct(d, body(errors.New("cache lookup failed")), false)
	require.True(t, offloaderrors.ErrDeparseFailure.Equal(err))
	require.ErrorContains(t, err, "cache lookup failed")

	_, err = Reconstruct(d, body("  "), false)
	require.True(t, offloaderrors.ErrDeparseFailure.Equal(err))

	_, err = Reconstruct(d, nil, false)
	require.True(t, offloaderrors.ErrDeparseFailure.Equal(err))
	_, err = Reconstruct(nil, body("SELECT 1"), false)
	require.True(t, offloaderrors.ErrDeparseFailure.Equal(err))
	require.Len(t, d.calls, 3)
}

func TestExtractAbsentOrEmpty(t *testing.T) {
	d := &fakeDeparser{}
	ctes, err := ExtractCTEs(d, &host.Query{})
	require.NoError(t, err)
	require.Empty(t, ctes)

	ctes, err = ExtractCTEs(d, &host.Query{CteList: host.NewList()})
	require.NoError(t, err)
	require.Empty(t, ctes)

	ctes, err = ExtractCTEs(d, nil)
	require.NoError(t, err)
	require.Empty(t, ctes)
	require.Empty(t, d.calls)
}

func TestExtractInOrder(t *testing.T) {
	d := &fakeDeparser{}
	q := &host.Query{CteList: host.NewList(
		&host.CommonTableExpr{Ctename: "a", CteQuery: body("SELECT 1")},
		&host.CommonTableExpr{Ctename: "b", CteQuery: body(errors.New("boom"))},
		&host.CommonTableExpr{Ctename: "c", CteQuery: &host.Query{CommandType: host.CmdDelete, Raw: "DELETE FROM t"}},
	)}
	ctes, err := ExtractCTEs(d, q)
	require.NoError(t, err)
	require.Len(t, ctes, 3)
	require.Len(t, d.calls, 3)
	require.Equal(t, []bool{false, false, false}, d.prettys)

	require.Equal(t, "a", ctes[0].Name)
	require.Equal(t, "SELECT 1", ctes[0].SQL)
	require.NoError(t, ctes[0].Err)
	require.True(t, ctes[0].ReadOnly())

	require.Equal(t, "b", ctes[1].Name)
	require.Empty(t, ctes[1].SQL)
	require.True(t, offloaderrors.ErrDeparseFailure.Equal(ctes[1].Err))

	require.Equal(t, "DELETE FROM t", ctes[2].SQL)
	require.False(t, ctes[2].ReadOnly())
}

func TestExtractMalformed(t *testing.T) {
	good := &host.CommonTableExpr{Ctename: "a", CteQuery: body("SELECT 1")}
	cases := []*host.List{
		{Length: 2, Elements: []host.ListCell{{PtrValue: good}}},
		{Length: 1, Elements: []host.ListCell{{PtrValue: nil}}},
		{Length: 1, Elements: []host.ListCell{{PtrValue: "not a cte"}}},
		{Length: 1, Elements: []host.ListCell{{PtrValue: (*host.CommonTableExpr)(nil)}}},
		{Length: 2, Elements: []host.ListCell{{PtrValue: good}, {PtrValue: &host.CommonTableExpr{Ctename: "b"}}}},
		{Length: 1, Elements: []host.ListCell{{PtrValue: &host.CommonTableExpr{Ctename: "b", CteQuery: (*host.Query)(nil)}}}},
	}
	for i, list := range cases {
		d := &fakeDeparser{}
		ctes, err := ExtractCTEs(d, &host.Query{CteList: list})
		require.Truef(t, offloaderrors.ErrMalformedHostStructure.Equal(err), "case %d: %v", i, err)
		require.Nil(t, ctes)
		// nothing is deparsed from a malformed list
		require.Emptyf(t, d.calls, "case %d", i)
	}
}

func TestExtractWithPostgresDialect(t *testing.T) {
	d := pgdialect.New()
	queries, err := d.Parse("WITH a AS (SELECT 1 AS x), b AS (SELECT x + 1 AS y FROM a) SELECT * FROM a, b")
	require.NoError(t, err)
	ctes, err := ExtractCTEs(d, queries[0])
	require.NoError(t, err)
	require.Len(t, ctes, 2)
	require.Equal(t, "SELECT 1 AS x", ctes[0].SQL)
	require.Equal(t, "b", ctes[1].Name)
	require.Contains(t, ctes[1].SQL, "FROM a")
}

func TestExtractPretty(t *testing.T) {
	d := &fakeDeparser{}
	q := &host.Query{CteList: host.NewList(&host.CommonTableExpr{Ctename: "a", CteQuery: body("select 1")})}
	ctes, err := ExtractPrettyCTEs(d, q)
	require.NoError(t, err)
	require.Len(t, ctes, 1)
	require.Equal(t, []bool{true}, d.prettys)
}
