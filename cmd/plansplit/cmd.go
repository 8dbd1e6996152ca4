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
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pingcap/errors"
	"github.com/plansplit/plansplit/pkg/config"
	"github.com/plansplit/plansplit/pkg/engine"
	"github.com/plansplit/plansplit/pkg/hook"
	"github.com/plansplit/plansplit/pkg/host"
	"github.com/plansplit/plansplit/pkg/host/mysqldialect"
	"github.com/plansplit/plansplit/pkg/host/pgdialect"
	"github.com/plansplit/plansplit/pkg/metrics"
	"github.com/plansplit/plansplit/pkg/util/logutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

const (
	// FlagConfig is the name of config flag.
	FlagConfig = "config"
	// FlagDialect is the name of dialect flag.
	FlagDialect = "dialect"
	// FlagLogLevel is the name of log-level flag.
	FlagLogLevel = "log-level"
	// FlagStatusAddr is the name of status-addr flag.
	FlagStatusAddr = "status-addr"
)

var statusServer *http.Server

// DefineCommonFlags defines the flags shared by every plansplit command.
func DefineCommonFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringP(FlagConfig, "C", "",
		"Set the toml config file path")
	cmd.PersistentFlags().String(FlagDialect, pgdialect.Name,
		"Set the SQL dialect of the simulated host, postgres or mysql")
	cmd.PersistentFlags().StringP(FlagLogLevel, "L", "",
		"Set the log level, overrides log.level of the config file")
	cmd.PersistentFlags().String(FlagStatusAddr, "",
		"Set the HTTP listening address for metrics, overrides status.metrics-addr. Set to empty string to disable")
}

func loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	cfg := config.NewConfig()
	path, err := flags.GetString(FlagConfig)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if path != "" {
		if err := cfg.Load(path); err != nil {
			return nil, err
		}
	}
	if flags.Changed(FlagLogLevel) {
		if cfg.Log.Level, err = flags.GetString(FlagLogLevel); err != nil {
			return nil, errors.Trace(err)
		}
	}
	if flags.Changed(FlagStatusAddr) {
		if cfg.Status.MetricsAddr, err = flags.GetString(FlagStatusAddr); err != nil {
			return nil, errors.Trace(err)
		}
	}
	if err := cfg.Valid(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setup(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	if err := logutil.InitLogger(cfg.Log.ToLogConfig()); err != nil {
		return err
	}
	config.StoreGlobalConfig(cfg)

	registry := prometheus.NewRegistry()
	metrics.RegisterMetrics(registry)
	if cfg.Status.MetricsAddr != "" {
		return startStatusServer(cmd.Context(), cfg.Status.MetricsAddr, registry)
	}
	return nil
}

func teardown(*cobra.Command, []string) {
	if err := engine.Shutdown(); err != nil {
		logutil.BgLogger().Warn("release embedded engine failed", zap.Error(err))
	}
	if statusServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := statusServer.Shutdown(ctx); err != nil {
		logutil.BgLogger().Warn("stop status server failed", zap.Error(err))
	}
}

func startStatusServer(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	router.HandleFunc("/status", statusHandler).Methods(http.MethodGet)
	router.HandleFunc("/settings", settingsHandler).Methods(http.MethodPost)

	l, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Annotatef(err, "listen on status address %s", addr)
	}
	statusServer = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		if err := statusServer.Serve(l); err != nil && err != http.ErrServerClosed {
			logutil.BgLogger().Warn("status server stopped", zap.Error(err))
		}
	}()
	logutil.BgLogger().Info("status server started", zap.String("address", l.Addr().String()))
	return nil
}

type status struct {
	Probe       string `json:"probe"`
	EngineInits int32  `json:"engine_inits"`
}

func statusHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	st := status{Probe: hook.Hello(), EngineInits: engine.GlobalManager().Inits()}
	if err := json.NewEncoder(w).Encode(st); err != nil {
		logutil.BgLogger().Warn("write status failed", zap.Error(err))
	}
}

// settingsHandler changes runtime settings. Only log_level is supported.
func settingsHandler(w http.ResponseWriter, req *http.Request) {
	if err := req.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if level := req.Form.Get("log_level"); level != "" {
		if err := logutil.SetLevel(level); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logutil.BgLogger().Info("log level changed", zap.String("level", level))
	}
	w.WriteHeader(http.StatusOK)
}

func newDialect(flags *pflag.FlagSet) (host.Dialect, error) {
	name, err := flags.GetString(FlagDialect)
	if err != nil {
		return nil, errors.Trace(err)
	}
	switch name {
	case pgdialect.Name:
		return pgdialect.New(), nil
	case mysqldialect.Name:
		return mysqldialect.New(), nil
	}
	return nil, errors.Errorf("unknown dialect %q, expect %s or %s", name, pgdialect.Name, mysqldialect.Name)
}
