// Copyright (C) 2026 RegAtlas (maintainers@regatlas.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the orchestrator.
//
// # Description
//
// Metrics cover the ask pipeline end to end:
//   - Request counters by query type and outcome
//   - Final confidence distribution
//   - Pipeline passes per request (1 to 3)
//   - Per-stage latency histograms
//   - Active request gauge
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Scrape with Prometheus.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const metricsNamespace = "regatlas"

// Subsystem for pipeline metrics
const pipelineSubsystem = "pipeline"

// PipelineMetrics holds all Prometheus metrics for ask pipeline operations.
//
// # Fields
//
//   - RequestsTotal: Counter of ask requests by query type and status
//   - ConfidenceScore: Histogram of final confidence values
//   - PassesPerRequest: Histogram of retrieval passes a request needed
//   - StageDurationSeconds: Histogram of per-stage latency
//   - ActiveRequests: Gauge of requests currently in the pipeline
//
// # Thread Safety
//
// All operations are thread-safe.
type PipelineMetrics struct {
	// RequestsTotal counts completed ask requests.
	// Labels: query_type (LOOKUP, COMPARE, CHECKLIST, EXPLAIN),
	// status (success, low_confidence, error)
	RequestsTotal *prometheus.CounterVec

	// ConfidenceScore records the final confidence of each answered request.
	// Labels: query_type
	ConfidenceScore *prometheus.HistogramVec

	// PassesPerRequest records how many retrieve/synthesize/validate passes
	// a request took before finalizing.
	PassesPerRequest prometheus.Histogram

	// StageDurationSeconds measures per-stage latency.
	// Labels: stage (CLASSIFY, RETRIEVE, SYNTHESIZE, VALIDATE)
	StageDurationSeconds *prometheus.HistogramVec

	// ActiveRequests tracks requests currently inside the pipeline.
	ActiveRequests prometheus.Gauge
}

// DefaultMetrics is the singleton instance of PipelineMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *PipelineMetrics

// InitMetrics creates and registers all pipeline metrics. Call once at
// application startup.
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
func InitMetrics() *PipelineMetrics {
	DefaultMetrics = &PipelineMetrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "requests_total",
				Help:      "Total ask requests by query type and outcome",
			},
			[]string{"query_type", "status"},
		),

		ConfidenceScore: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "confidence_score",
				Help:      "Final confidence of answered requests",
				Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
			},
			[]string{"query_type"},
		),

		PassesPerRequest: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "passes_per_request",
				Help:      "Retrieval passes a request needed before finalizing",
				Buckets:   []float64{1, 2, 3},
			},
		),

		StageDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "stage_duration_seconds",
				Help:      "Per-stage pipeline latency in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"stage"},
		),

		ActiveRequests: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "active_requests",
				Help:      "Requests currently inside the pipeline",
			},
		),
	}

	return DefaultMetrics
}

// RequestStatus labels the outcome of an ask request.
type RequestStatus string

const (
	// StatusSuccess means the pipeline finalized at or above the
	// confidence threshold.
	StatusSuccess RequestStatus = "success"

	// StatusLowConfidence means the pipeline finalized below threshold
	// after exhausting retries.
	StatusLowConfidence RequestStatus = "low_confidence"

	// StatusError means a stage failed and no answer was produced.
	StatusError RequestStatus = "error"
)

// RecordRequest records a completed ask request.
func (m *PipelineMetrics) RecordRequest(queryType string, status RequestStatus) {
	m.RequestsTotal.WithLabelValues(queryType, string(status)).Inc()
}

// RecordConfidence records a finalized request's confidence.
func (m *PipelineMetrics) RecordConfidence(queryType string, confidence float64) {
	m.ConfidenceScore.WithLabelValues(queryType).Observe(confidence)
}

// RecordPasses records how many passes a request took.
func (m *PipelineMetrics) RecordPasses(passes int) {
	m.PassesPerRequest.Observe(float64(passes))
}

// RecordStageDuration records one stage execution's latency.
func (m *PipelineMetrics) RecordStageDuration(stage string, seconds float64) {
	m.StageDurationSeconds.WithLabelValues(stage).Observe(seconds)
}

// RequestStarted increments the active request gauge.
func (m *PipelineMetrics) RequestStarted() {
	m.ActiveRequests.Inc()
}

// RequestEnded decrements the active request gauge.
func (m *PipelineMetrics) RequestEnded() {
	m.ActiveRequests.Dec()
}
