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
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestRegisterMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	RegisterMetrics(registry)
	require.Panics(t, func() { RegisterMetrics(registry) })
}

func TestReadCounter(t *testing.T) {
	counter := OffloadCTECounter.WithLabelValues(LblSkipped)
	before := ReadCounter(counter)
	counter.Inc()
	counter.Add(2)
	require.Equal(t, before+3, ReadCounter(counter))

	hist := EngineExecuteHistogram.WithLabelValues(LblOK)
	count := ReadHistogramCount(hist)
	hist.Observe(0.01)
	require.Equal(t, count+1, ReadHistogramCount(hist))
}
