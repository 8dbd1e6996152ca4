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

package engine

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pingcap/errors"
	"github.com/plansplit/plansplit/pkg/config"
	"github.com/plansplit/plansplit/pkg/metrics"
	"github.com/plansplit/plansplit/pkg/util/dbterror/offloaderrors"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newMockConnection(t *testing.T) (*Connection, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	conn, err := db.Conn(context.Background())
	require.NoError(t, err)
	cfg, err := NewConfig(config.NewConfig().Engine)
	require.NoError(t, err)
	return &Connection{cfg: cfg, db: db, conn: conn}, mock
}

func closeMockConnection(t *testing.T, c *Connection, mock sqlmock.Sqlmock) {
	mock.ExpectClose()
	require.NoError(t, c.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute(t *testing.T) {
	c, mock := newMockConnection(t)
	defer closeMockConnection(t, c, mock)
	ok := metrics.ReadHistogramCount(metrics.EngineExecuteHistogram.WithLabelValues(metrics.LblOK))

	rows := sqlmock.NewRows([]string{"i", "j"}).
		AddRow(int64(3), int64(4)).
		AddRow(int64(7), nil)
	mock.ExpectPrepare("SELECT i, j FROM t").WillBeClosed().
		ExpectQuery().WillReturnRows(rows).RowsWillBeClosed()

	batch, err := c.Execute(context.Background(), "SELECT i, j FROM t")
	require.NoError(t, err)
	require.Equal(t, []string{"i", "j"}, batch.Columns)
	require.Equal(t, 2, batch.NumRows())
	require.Equal(t, [][]string{{"3", "4"}, {"7", NullMarker}}, batch.Strings())
	require.True(t, batch.Rows[1][1].Null)
	require.Equal(t, ok+1, metrics.ReadHistogramCount(metrics.EngineExecuteHistogram.WithLabelValues(metrics.LblOK)))
}

func TestExecuteEmptyResult(t *testing.T) {
	c, mock := newMockConnection(t)
	defer closeMockConnection(t, c, mock)
	mock.ExpectPrepare("SELECT x FROM t WHERE false").WillBeClosed().
		ExpectQuery().WillReturnRows(sqlmock.NewRows([]string{"x"})).RowsWillBeClosed()

	batch, err := c.Execute(context.Background(), "SELECT x FROM t WHERE false")
	require.NoError(t, err)
	require.Equal(t, []string{"x"}, batch.Columns)
	require.Zero(t, batch.NumRows())
}

func TestExecutePrepareError(t *testing.T) {
	c, mock := newMockConnection(t)
	defer closeMockConnection(t, c, mock)
	failed := metrics.ReadHistogramCount(metrics.EngineExecuteHistogram.WithLabelValues(metrics.LblError))
	mock.ExpectPrepare("SELECT * FROM missing").
		WillReturnError(errors.New("Catalog Error: Table with name missing does not exist!"))

	batch, err := c.Execute(context.Background(), "SELECT * FROM missing")
	require.Nil(t, batch)
	require.True(t, offloaderrors.ErrPrepare.Equal(err))
	require.ErrorContains(t, err, "Table with name missing does not exist")
	require.Equal(t, failed+1, metrics.ReadHistogramCount(metrics.EngineExecuteHistogram.WithLabelValues(metrics.LblError)))
}

func TestExecuteQueryError(t *testing.T) {
	c, mock := newMockConnection(t)
	defer closeMockConnection(t, c, mock)
	mock.ExpectPrepare("SELECT 1 / 0").WillBeClosed().
		ExpectQuery().WillReturnError(errors.New("Invalid Input Error: division by zero"))

	_, err := c.Execute(context.Background(), "SELECT 1 / 0")
	require.True(t, offloaderrors.ErrExecute.Equal(err))
	require.ErrorContains(t, err, "division by zero")
}

func TestExecuteRowError(t *testing.T) {
	c, mock := newMockConnection(t)
	defer closeMockConnection(t, c, mock)
	rows := sqlmock.NewRows([]string{"x"}).
		AddRow(int64(1)).
		AddRow(int64(2)).
		RowError(1, errors.New("Conversion Error: overflow"))
	mock.ExpectPrepare("SELECT x FROM t").WillBeClosed().
		ExpectQuery().WillReturnRows(rows).RowsWillBeClosed()

	_, err := c.Execute(context.Background(), "SELECT x FROM t")
	require.True(t, offloaderrors.ErrExecute.Equal(err))
	require.ErrorContains(t, err, "overflow")
}

func TestExecuteAfterClose(t *testing.T) {
	c, mock := newMockConnection(t)
	mock.ExpectClose()
	require.NoError(t, c.Close())

	_, err := c.Execute(context.Background(), "SELECT 1")
	require.True(t, offloaderrors.ErrEngineClosed.Equal(err))
	require.NoError(t, c.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteConcurrent(t *testing.T) {
	c, mock := newMockConnection(t)
	defer closeMockConnection(t, c, mock)

	// Expectations are matched in order, so a statement prepared while another
	// one is still running fails to match the pending query.
	const workers = 8
	for i := 0; i < workers; i++ {
		mock.ExpectPrepare("SELECT x FROM t").WillBeClosed().
			ExpectQuery().WillDelayFor(5 * time.Millisecond).
			WillReturnRows(sqlmock.NewRows([]string{"x"}).AddRow(int64(i))).RowsWillBeClosed()
	}

	var eg errgroup.Group
	results := make([]string, workers)
	for i := 0; i < workers; i++ {
		i := i
		eg.Go(func() error {
			batch, err := c.Execute(context.Background(), "SELECT x FROM t")
			if err != nil {
				return err
			}
			results[i] = batch.Strings()[0][0]
			return nil
		})
	}
	require.NoError(t, eg.Wait())
	require.ElementsMatch(t, []string{"0", "1", "2", "3", "4", "5", "6", "7"}, results)
	require.NoError(t, mock.ExpectationsWereMet())
}
