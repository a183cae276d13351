// Copyright 2025 Chimera Labs
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

package llm

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	promLLMCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chimera_llm_calls_total",
			Help: "Total number of LLM calls by provider and status",
		},
		[]string{"provider", "status"},
	)
	promLLMLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chimera_llm_call_duration_milliseconds",
			Help:    "LLM call duration in milliseconds",
			Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		},
		[]string{"provider"},
	)
)

func init() {
	prometheus.MustRegister(promLLMCalls)
	prometheus.MustRegister(promLLMLatency)
}
