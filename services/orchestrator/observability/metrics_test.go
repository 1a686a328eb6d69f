// Copyright (C) 2026 RegAtlas (maintainers@regatlas.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

// ============================================================================
// Test Helper: isolated metrics to avoid global registry conflicts
// ============================================================================

func newTestMetrics(t *testing.T) *PipelineMetrics {
	t.Helper()

	return &PipelineMetrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "requests_total",
				Help:      "Total ask requests by query type and outcome",
			},
			[]string{"query_type", "status"},
		),
		ConfidenceScore: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "confidence_score",
				Help:      "Final confidence of answered requests",
				Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
			},
			[]string{"query_type"},
		),
		PassesPerRequest: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "passes_per_request",
				Help:      "Retrieval passes a request needed before finalizing",
				Buckets:   []float64{1, 2, 3},
			},
		),
		StageDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "stage_duration_seconds",
				Help:      "Per-stage pipeline latency in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"stage"},
		),
		ActiveRequests: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "active_requests",
				Help:      "Requests currently inside the pipeline",
			},
		),
	}
}

func TestRecordRequest_IncrementsLabeledCounter(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordRequest("LOOKUP", StatusSuccess)
	m.RecordRequest("LOOKUP", StatusSuccess)
	m.RecordRequest("COMPARE", StatusLowConfidence)

	assert.Equal(t, 2.0,
		testutil.ToFloat64(m.RequestsTotal.WithLabelValues("LOOKUP", "success")))
	assert.Equal(t, 1.0,
		testutil.ToFloat64(m.RequestsTotal.WithLabelValues("COMPARE", "low_confidence")))
	assert.Equal(t, 0.0,
		testutil.ToFloat64(m.RequestsTotal.WithLabelValues("LOOKUP", "error")))
}

func TestActiveRequests_GaugeUpDown(t *testing.T) {
	m := newTestMetrics(t)

	m.RequestStarted()
	m.RequestStarted()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ActiveRequests))

	m.RequestEnded()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveRequests))
}

func TestRecordConfidence_DoesNotPanic(t *testing.T) {
	m := newTestMetrics(t)
	m.RecordConfidence("EXPLAIN", 0.42)
	m.RecordPasses(2)
	m.RecordStageDuration("RETRIEVE", 0.3)
}
