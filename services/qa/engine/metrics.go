// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for assessment operations.
var (
	tracer = otel.Tracer("medqa.engine")
	meter  = otel.Meter("medqa.engine")
)

var (
	assessmentsTotal   metric.Int64Counter
	assessmentDuration metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		assessmentsTotal, err = meter.Int64Counter(
			"qa_assessments_total",
			metric.WithDescription("Total assessments by quality level and pass outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		assessmentDuration, err = meter.Float64Histogram(
			"qa_assessment_duration_seconds",
			metric.WithDescription("End-to-end assessment duration"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// RecordAssessment records metrics for one assessment run.
//
// Thread Safety: Safe for concurrent use.
func RecordAssessment(ctx context.Context, a *Assessment, duration time.Duration) {
	if err := initMetrics(); err != nil || a == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("level", string(a.Level)),
		attribute.Bool("passed", a.PassedValidation),
	)

	assessmentsTotal.Add(ctx, 1, attrs)
	assessmentDuration.Record(ctx, duration.Seconds(), attrs)
}

// StartAssessSpan creates a span for an assessment run.
//
// Thread Safety: Safe for concurrent use.
func StartAssessSpan(ctx context.Context, reportID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "engine.assess",
		trace.WithAttributes(
			attribute.String("qa.report_id", reportID),
		),
	)
}

// SetAssessSpanResult sets result attributes on an assessment span.
//
// Thread Safety: Safe for concurrent use.
func SetAssessSpanResult(span trace.Span, a *Assessment) {
	if a == nil {
		return
	}

	span.SetAttributes(
		attribute.String("qa.level", string(a.Level)),
		attribute.Float64("qa.overall_score", a.OverallScore),
		attribute.Float64("qa.hallucination_risk", a.HallucinationRisk),
		attribute.Int("qa.issues", len(a.Issues)),
		attribute.Bool("qa.passed", a.PassedValidation),
	)
}
