// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package qualitymetrics tracks quality measurements across assessment
// runs and derives trends and a dashboard view from the recorded
// history.
package qualitymetrics

import (
	"fmt"
	"time"
)

// MetricType classifies what dimension of quality a metric measures.
type MetricType string

const (
	TypeAccuracy     MetricType = "accuracy"
	TypeCompleteness MetricType = "completeness"
	TypeConsistency  MetricType = "consistency"
	TypeTimeliness   MetricType = "timeliness"
	TypeRelevance    MetricType = "relevance"
	TypeReliability  MetricType = "reliability"
)

// IsValid reports whether t is one of the defined metric types.
func (t MetricType) IsValid() bool {
	switch t {
	case TypeAccuracy, TypeCompleteness, TypeConsistency,
		TypeTimeliness, TypeRelevance, TypeReliability:
		return true
	}
	return false
}

// Canonical metric names produced by every assessment run.
const (
	MetricOverallAccuracy     = "overall_accuracy"
	MetricDataCompleteness    = "data_completeness"
	MetricValidationPassRate  = "validation_pass_rate"
	MetricResearchCredibility = "research_credibility"
	MetricProcessingTime      = "processing_time"
	MetricErrorRate           = "error_rate"
	MetricTerminologyAccuracy = "terminology_accuracy"
)

// target pairs a goal value with its comparison direction.
type target struct {
	value         float64
	lowerIsBetter bool
	metricType    MetricType
}

// targets is the canonical goal table. Read-only after init; Target and
// TypeOf are the only accessors.
var targets = map[string]target{
	MetricOverallAccuracy:     {0.90, false, TypeAccuracy},
	MetricDataCompleteness:    {0.95, false, TypeCompleteness},
	MetricValidationPassRate:  {0.85, false, TypeReliability},
	MetricResearchCredibility: {0.75, false, TypeRelevance},
	MetricProcessingTime:      {300.0, true, TypeTimeliness},
	MetricErrorRate:           {0.05, true, TypeReliability},
	MetricTerminologyAccuracy: {0.92, false, TypeAccuracy},
}

// Target returns the goal value for a canonical metric name. ok is
// false for names outside the canonical set.
func Target(name string) (value float64, ok bool) {
	t, ok := targets[name]
	return t.value, ok
}

// TypeOf returns the metric type for a canonical metric name.
func TypeOf(name string) (MetricType, bool) {
	t, ok := targets[name]
	return t.metricType, ok
}

// Metric is one quality measurement at a point in time.
type Metric struct {
	Name      string     `json:"name"`
	Type      MetricType `json:"type"`
	Value     float64    `json:"value"`
	Target    float64    `json:"target"`
	Unit      string     `json:"unit,omitempty"`
	Timestamp time.Time  `json:"timestamp"`

	// ReportID ties the measurement back to the assessment it came
	// from. Empty for ad hoc recordings.
	ReportID string `json:"report_id,omitempty"`
}

// MeetingTarget reports whether the measurement satisfies its goal.
// processing_time and error_rate are better when lower; everything
// else is better when higher.
func (m *Metric) MeetingTarget() bool {
	if t, ok := targets[m.Name]; ok && t.lowerIsBetter {
		return m.Value <= m.Target
	}
	return m.Value >= m.Target
}

// DeviationFromTarget returns how far the measurement is from its goal,
// signed so that positive is always better than target.
func (m *Metric) DeviationFromTarget() float64 {
	if t, ok := targets[m.Name]; ok && t.lowerIsBetter {
		return m.Target - m.Value
	}
	return m.Value - m.Target
}

// TrendDirection is the outcome of a trend analysis.
type TrendDirection string

const (
	TrendImproving TrendDirection = "improving"
	TrendDeclining TrendDirection = "declining"
	TrendStable    TrendDirection = "stable"
)

// Trend summarizes how a metric has moved over its recorded history.
type Trend struct {
	Metric      string         `json:"metric"`
	Direction   TrendDirection `json:"direction"`
	Slope       float64        `json:"slope"`
	Strength    float64        `json:"strength"`
	SampleCount int            `json:"sample_count"`
}

// MetricSummary is the dashboard view of one metric.
type MetricSummary struct {
	Name          string     `json:"name"`
	Type          MetricType `json:"type"`
	Latest        float64    `json:"latest"`
	Average       float64    `json:"average"`
	Target        float64    `json:"target"`
	MeetingTarget bool       `json:"meeting_target"`
	SampleCount   int        `json:"sample_count"`
	Trend         *Trend     `json:"trend,omitempty"`
}

// FailurePattern notes a metric that misses its target persistently.
type FailurePattern struct {
	Metric      string  `json:"metric"`
	FailureRate float64 `json:"failure_rate"`
	Occurrences int     `json:"occurrences"`
}

// Dashboard is a point-in-time rollup of the collector's history.
type Dashboard struct {
	GeneratedAt     time.Time        `json:"generated_at"`
	TotalRecorded   int              `json:"total_recorded"`
	Dropped         int64            `json:"dropped"`
	Metrics         []MetricSummary  `json:"metrics"`
	FailurePatterns []FailurePattern `json:"failure_patterns,omitempty"`
}

// ErrUnsupportedFormat is returned by Export for formats other than
// json.
type ErrUnsupportedFormat struct {
	Format string
}

func (e *ErrUnsupportedFormat) Error() string {
	return fmt.Sprintf("unsupported export format %q", e.Format)
}
