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

package metrics

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Label values for the result label.
const (
	LblOK      = "ok"
	LblError   = "error"
	LblSkipped = "skipped"
)

// Offload metrics.
var (
	OffloadQueryCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plansplit",
			Subsystem: "offload",
			Name:      "query_total",
			Help:      "Counter of planning calls that carried at least one CTE.",
		}, []string{})
	OffloadCTECounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plansplit",
			Subsystem: "offload",
			Name:      "cte_total",
			Help:      "Counter of offloaded CTEs by result.",
		}, []string{"result"})
	MalformedHostCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "plansplit",
			Subsystem: "offload",
			Name:      "malformed_host_total",
			Help:      "Counter of CTE lists rejected because of a malformed host structure.",
		})
	EngineExecuteHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "plansplit",
			Subsystem: "engine",
			Name:      "execute_duration_seconds",
			Help:      "Bucketed histogram of embedded engine statement time (s), including lock wait.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 20), // 100us ~ 52s
		}, []string{"result"})
	EngineInitCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plansplit",
			Subsystem: "engine",
			Name:      "init_total",
			Help:      "Counter of embedded engine initializations by result.",
		}, []string{"result"})
)

// RegisterMetrics registers metrics.
func RegisterMetrics(registry prometheus.Registerer) {
	registry.MustRegister(OffloadQueryCounter)
	registry.MustRegister(OffloadCTECounter)
	registry.MustRegister(MalformedHostCounter)
	registry.MustRegister(EngineExecuteHistogram)
	registry.MustRegister(EngineInitCounter)
}

// ReadCounter reports the current value of the counter.
func ReadCounter(counter prometheus.Counter) float64 {
	var metric dto.Metric
	if err := counter.Write(&metric); err != nil {
		return math.NaN()
	}
	return metric.Counter.GetValue()
}

// ReadHistogramCount reports how many samples the histogram observed.
func ReadHistogramCount(observer prometheus.Observer) uint64 {
	histogram, ok := observer.(prometheus.Histogram)
	if !ok {
		return 0
	}
	var metric dto.Metric
	if err := histogram.Write(&metric); err != nil {
		return 0
	}
	return metric.Histogram.GetSampleCount()
}
