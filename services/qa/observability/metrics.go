// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the QA HTTP
// surface.
//
// # Description
//
// Request counters, assessment latency histograms, per-issue counters,
// and quality-level outcome counters for the assess API. Exposed via
// the /metrics endpoint; use with Prometheus + Grafana.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal
// locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AleutianAI/MedQA/services/qa/issue"
)

// Namespace for all metrics
const metricsNamespace = "medqa"

// Subsystem for the QA API
const qaSubsystem = "qa"

// Metrics holds the Prometheus metrics for the QA API. Build one with
// NewMetrics and hand it to the handlers; there is no package-level
// instance.
type Metrics struct {
	// RequestsTotal counts API requests.
	// Labels: endpoint (assess, assessments, dashboard), status (2xx, 4xx, 5xx)
	RequestsTotal *prometheus.CounterVec

	// AssessDurationSeconds measures end-to-end assessment latency.
	// Labels: status (success, error)
	AssessDurationSeconds *prometheus.HistogramVec

	// IssuesTotal counts issues found in assessed bundles.
	// Labels: category, severity
	IssuesTotal *prometheus.CounterVec

	// QualityLevelTotal counts assessment outcomes.
	// Labels: level (excellent, good, acceptable, poor, critical, failed)
	QualityLevelTotal *prometheus.CounterVec

	// RateLimitedTotal counts requests rejected by the rate limiter.
	// Labels: endpoint
	RateLimitedTotal *prometheus.CounterVec
}

// NewMetrics creates and registers the QA metrics on the given
// registerer. Pass prometheus.DefaultRegisterer in production and a
// fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: qaSubsystem,
				Name:      "requests_total",
				Help:      "Total API requests by endpoint and status class",
			},
			[]string{"endpoint", "status"},
		),

		AssessDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: qaSubsystem,
				Name:      "assess_duration_seconds",
				Help:      "End-to-end assessment latency in seconds",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"status"},
		),

		IssuesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: qaSubsystem,
				Name:      "issues_total",
				Help:      "Total issues found in assessed bundles by category and severity",
			},
			[]string{"category", "severity"},
		),

		QualityLevelTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: qaSubsystem,
				Name:      "quality_level_total",
				Help:      "Total assessments by quality level",
			},
			[]string{"level"},
		),

		RateLimitedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: qaSubsystem,
				Name:      "rate_limited_total",
				Help:      "Total requests rejected by the rate limiter",
			},
			[]string{"endpoint"},
		),
	}
}

// RecordRequest records one completed API request.
//
// # Inputs
//
//   - endpoint: The logical endpoint name.
//   - statusCode: The HTTP status code returned.
func (m *Metrics) RecordRequest(endpoint string, statusCode int) {
	m.RequestsTotal.WithLabelValues(endpoint, statusClass(statusCode)).Inc()
}

// RecordAssessment records the latency and outcome of one assessment.
//
// # Inputs
//
//   - seconds: End-to-end latency.
//   - success: Whether the assessment completed.
func (m *Metrics) RecordAssessment(seconds float64, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.AssessDurationSeconds.WithLabelValues(status).Observe(seconds)
}

// RecordIssues records every issue found in one assessment.
func (m *Metrics) RecordIssues(issues []issue.Issue) {
	for i := range issues {
		m.IssuesTotal.WithLabelValues(
			string(issues[i].Category),
			string(issues[i].Severity),
		).Inc()
	}
}

// RecordQualityLevel records the graded outcome of one assessment.
func (m *Metrics) RecordQualityLevel(level string) {
	m.QualityLevelTotal.WithLabelValues(level).Inc()
}

// RecordRateLimited records one request rejected by the limiter.
func (m *Metrics) RecordRateLimited(endpoint string) {
	m.RateLimitedTotal.WithLabelValues(endpoint).Inc()
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
