// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package hallucination

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/MedQA/services/qa/issue"
)

// Package-level tracer and meter for detection operations.
var (
	tracer = otel.Tracer("medqa.hallucination")
	meter  = otel.Meter("medqa.hallucination")
)

var (
	checksTotal   metric.Int64Counter
	checkDuration metric.Float64Histogram
	issuesTotal   metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		checksTotal, err = meter.Int64Counter(
			"hallucination_checks_total",
			metric.WithDescription("Total detection checks by checker and outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		checkDuration, err = meter.Float64Histogram(
			"hallucination_check_duration_seconds",
			metric.WithDescription("Detection check duration by checker"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		issuesTotal, err = meter.Int64Counter(
			"hallucination_issues_total",
			metric.WithDescription("Total issues by category and severity"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// RecordCheck records metrics for a single checker execution.
//
// Thread Safety: Safe for concurrent use.
func RecordCheck(ctx context.Context, checker string, issueCount int, duration time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}

	outcome := "pass"
	if issueCount > 0 {
		outcome = "issues_found"
	}

	attrs := metric.WithAttributes(
		attribute.String("checker", checker),
		attribute.String("outcome", outcome),
	)

	checksTotal.Add(ctx, 1, attrs)
	checkDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordIssue records a single detected issue.
//
// Thread Safety: Safe for concurrent use.
func RecordIssue(ctx context.Context, iss issue.Issue) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("category", string(iss.Category)),
		attribute.String("severity", string(iss.Severity)),
	)

	issuesTotal.Add(ctx, 1, attrs)
}

// StartDetectionSpan creates a span for a detection run.
//
// Thread Safety: Safe for concurrent use.
func StartDetectionSpan(ctx context.Context, reportID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "hallucination.detect",
		trace.WithAttributes(
			attribute.String("qa.report_id", reportID),
		),
	)
}

// SetDetectionSpanResult sets result attributes on a detection span.
//
// Thread Safety: Safe for concurrent use.
func SetDetectionSpanResult(span trace.Span, report *issue.Report) {
	if report == nil {
		return
	}

	span.SetAttributes(
		attribute.String("qa.status", string(report.Status)),
		attribute.Float64("qa.score", report.Score),
		attribute.Int("qa.issues", len(report.Issues)),
		attribute.Int("qa.critical_count", report.Count(issue.SeverityCritical)),
	)
}

// AddCheckerEvent adds a span event for one checker execution.
//
// Thread Safety: Safe for concurrent use.
func AddCheckerEvent(span trace.Span, checker string, issueCount int, duration time.Duration) {
	span.AddEvent("checker_executed", trace.WithAttributes(
		attribute.String("checker", checker),
		attribute.Int("issues", issueCount),
		attribute.Int64("duration_ms", duration.Milliseconds()),
	))
}
