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
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pingcap/errors"
	"github.com/plansplit/plansplit/pkg/config"
	"github.com/plansplit/plansplit/pkg/metrics"
	"github.com/plansplit/plansplit/pkg/util/dbterror/offloaderrors"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
)

func defaultLoader() (*Config, error) {
	return NewConfig(config.NewConfig().Engine)
}

// mockOpener hands out one sqlmock database and counts how often it is asked to.
type mockOpener struct {
	db    *sql.DB
	mock  sqlmock.Sqlmock
	opens atomic.Int32
	err   error
}

func newMockOpener(t *testing.T) *mockOpener {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	return &mockOpener{db: db, mock: mock}
}

func (o *mockOpener) open(context.Context, *Config) (*sql.DB, error) {
	o.opens.Inc()
	if o.err != nil {
		return nil, o.err
	}
	return o.db, nil
}

func TestInstanceIsIdempotent(t *testing.T) {
	opener := newMockOpener(t)
	m := NewManager(defaultLoader, opener.open)

	conn, err := m.Instance()
	require.NoError(t, err)
	require.NotNil(t, conn)
	for i := 0; i < 5; i++ {
		again, err := m.Instance()
		require.NoError(t, err)
		require.Same(t, conn, again)
	}
	require.Equal(t, int32(1), opener.opens.Load())
	require.Equal(t, int32(1), m.Inits())
	require.Equal(t, config.DefaultUserAgent, conn.Config().UserAgent)

	opener.mock.ExpectClose()
	require.NoError(t, m.Shutdown())
	require.NoError(t, opener.mock.ExpectationsWereMet())
}

func TestInstanceConcurrentFirstAccess(t *testing.T) {
	opener := newMockOpener(t)
	m := NewManager(defaultLoader, opener.open)

	const workers = 32
	conns := make([]*Connection, workers)
	var eg errgroup.Group
	for i := 0; i < workers; i++ {
		i := i
		eg.Go(func() error {
			conn, err := m.Instance()
			conns[i] = conn
			return err
		})
	}
	require.NoError(t, eg.Wait())
	for _, conn := range conns {
		require.Same(t, conns[0], conn)
	}
	require.Equal(t, int32(1), opener.opens.Load())
	require.Equal(t, int32(1), m.Inits())

	opener.mock.ExpectClose()
	require.NoError(t, m.Shutdown())
}

func TestInstanceFailureIsCached(t *testing.T) {
	opener := &mockOpener{err: offloaderrors.ErrEngineOpen.GenWithStackByArgs(InMemory, "IO Error: could not set lock on file")}
	m := NewManager(defaultLoader, opener.open)
	failed := metrics.ReadCounter(metrics.EngineInitCounter.WithLabelValues(metrics.LblError))

	var eg errgroup.Group
	errs := make([]error, 8)
	for i := range errs {
		i := i
		eg.Go(func() error {
			_, errs[i] = m.Instance()
			return nil
		})
	}
	require.NoError(t, eg.Wait())
	for _, err := range errs {
		require.True(t, offloaderrors.ErrEngineOpen.Equal(err))
		require.Equal(t, errs[0], err)
	}
	conn, err := m.Instance()
	require.Nil(t, conn)
	require.Equal(t, errs[0], err)
	require.Equal(t, int32(1), opener.opens.Load())
	require.Equal(t, failed+1, metrics.ReadCounter(metrics.EngineInitCounter.WithLabelValues(metrics.LblError)))

	// nothing to release
	require.NoError(t, m.Shutdown())
}

func TestInstanceWrapsUnknownOpenError(t *testing.T) {
	opener := &mockOpener{err: errors.New("driver exploded")}
	m := NewManager(defaultLoader, opener.open)
	_, err := m.Instance()
	require.True(t, offloaderrors.ErrEngineOpen.Equal(err))
	require.ErrorContains(t, err, "driver exploded")
}

func TestInvalidMemoryLimit(t *testing.T) {
	loads := atomic.NewInt32(0)
	loader := func() (*Config, error) {
		loads.Inc()
		engineCfg := config.NewConfig().Engine
		engineCfg.MemoryLimit = "one gigabyte"
		return NewConfig(engineCfg)
	}
	opener := &mockOpener{}
	m := NewManager(loader, opener.open)

	_, first := m.Instance()
	require.True(t, offloaderrors.ErrEngineConfig.Equal(first))
	for i := 0; i < 3; i++ {
		_, err := m.Instance()
		require.Equal(t, first, err)
	}
	require.Equal(t, int32(1), loads.Load())
	require.Equal(t, int32(0), opener.opens.Load())
}

func TestShutdown(t *testing.T) {
	opener := newMockOpener(t)
	m := NewManager(defaultLoader, opener.open)
	conn, err := m.Instance()
	require.NoError(t, err)

	opener.mock.ExpectClose()
	require.NoError(t, m.Shutdown())
	require.NoError(t, m.Shutdown())
	require.NoError(t, opener.mock.ExpectationsWereMet())

	_, err = conn.Execute(context.Background(), "SELECT 1")
	require.True(t, offloaderrors.ErrEngineClosed.Equal(err))
	require.NoError(t, conn.Close())
}

func TestShutdownBeforeFirstUse(t *testing.T) {
	opener := newMockOpener(t)
	m := NewManager(defaultLoader, opener.open)
	require.NoError(t, m.Shutdown())

	conn, err := m.Instance()
	require.Nil(t, conn)
	require.True(t, offloaderrors.ErrEngineClosed.Equal(err))
	require.Equal(t, int32(0), opener.opens.Load())
	require.Equal(t, int32(0), m.Inits())

	opener.mock.ExpectClose()
	require.NoError(t, opener.db.Close())
}
