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

package server

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics
var (
	promHTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chimera_http_requests_total",
			Help: "Total number of HTTP requests by route and status code",
		},
		[]string{"route", "status"},
	)
	promHTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chimera_http_request_duration_milliseconds",
			Help:    "HTTP request duration in milliseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"route"},
	)
	promJobsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chimera_jobs_processed_total",
			Help: "Total number of jobs processed by type and status",
		},
		[]string{"type", "status"},
	)
	promJobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chimera_job_duration_milliseconds",
			Help:    "Job execution duration in milliseconds",
			Buckets: []float64{50, 100, 250, 500, 1000, 5000, 15000, 60000, 300000},
		},
		[]string{"type"},
	)
	promQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chimera_queue_depth",
			Help: "Number of jobs waiting per queue",
		},
		[]string{"queue"},
	)
)

func init() {
	prometheus.MustRegister(promHTTPRequests)
	prometheus.MustRegister(promHTTPDuration)
	prometheus.MustRegister(promJobsProcessed)
	prometheus.MustRegister(promJobDuration)
	prometheus.MustRegister(promQueueDepth)
}

// ObserveJob records one job execution. Wired into the dispatcher as
// its OnJob hook.
func ObserveJob(jobType, status string, duration time.Duration) {
	promJobsProcessed.WithLabelValues(jobType, status).Inc()
	promJobDuration.WithLabelValues(jobType).Observe(float64(duration.Milliseconds()))
}

func observeRequest(route string, statusCode int, duration time.Duration) {
	promHTTPRequests.WithLabelValues(route, strconv.Itoa(statusCode)).Inc()
	promHTTPDuration.WithLabelValues(route).Observe(float64(duration.Milliseconds()))
}

func setQueueDepths(depths map[string]int64) {
	for queueName, depth := range depths {
		promQueueDepth.WithLabelValues(queueName).Set(float64(depth))
	}
}
