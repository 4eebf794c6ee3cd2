// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package qualitymetrics

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/AleutianAI/MedQA/services/qa/issue"
)

func newTestCollector(t *testing.T, mutate func(*Config)) *Collector {
	t.Helper()
	cfg := DefaultConfig()
	cfg.now = func() time.Time {
		return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	}
	if mutate != nil {
		mutate(cfg)
	}
	return NewCollector(cfg, nil)
}

func TestMetric_MeetingTarget(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		want  bool
	}{
		{MetricOverallAccuracy, 0.92, true},
		{MetricOverallAccuracy, 0.80, false},
		{MetricProcessingTime, 120.0, true},  // lower is better
		{MetricProcessingTime, 400.0, false}, // over the 300s goal
		{MetricErrorRate, 0.02, true},
		{MetricErrorRate, 0.20, false},
	}
	for _, tt := range tests {
		target, ok := Target(tt.name)
		if !ok {
			t.Fatalf("Target(%q) unknown", tt.name)
		}
		m := Metric{Name: tt.name, Value: tt.value, Target: target}
		if got := m.MeetingTarget(); got != tt.want {
			t.Errorf("MeetingTarget(%s=%v) = %v, want %v", tt.name, tt.value, got, tt.want)
		}
	}
}

func TestMetric_DeviationFromTarget(t *testing.T) {
	m := Metric{Name: MetricErrorRate, Value: 0.02, Target: 0.05}
	if got := m.DeviationFromTarget(); math.Abs(got-0.03) > 1e-9 {
		t.Errorf("lower-is-better deviation = %v, want 0.03", got)
	}
	m = Metric{Name: MetricOverallAccuracy, Value: 0.85, Target: 0.90}
	if got := m.DeviationFromTarget(); math.Abs(got+0.05) > 1e-9 {
		t.Errorf("higher-is-better deviation = %v, want -0.05", got)
	}
}

func TestCollectFromAssessment_CanonicalMetrics(t *testing.T) {
	c := newTestCollector(t, nil)

	sample := &Sample{
		ReportID:            "r-1",
		OverallScore:        0.91,
		DataQualityScore:    0.96,
		Passed:              true,
		ResearchCredibility: 0.80,
		ProcessingTime:      45 * time.Second,
		IssueCounts: map[issue.Severity]int{
			issue.SeverityWarning:  3,
			issue.SeverityError:    1,
			issue.SeverityCritical: 1,
		},
		TerminologyIssues: 1,
		ConditionCount:    4,
	}

	metrics := c.CollectFromAssessment(sample)
	if len(metrics) != 7 {
		t.Fatalf("got %d metrics, want 7", len(metrics))
	}

	byName := make(map[string]Metric)
	for _, m := range metrics {
		byName[m.Name] = m
	}

	if got := byName[MetricProcessingTime].Value; got != 45.0 {
		t.Errorf("processing_time = %v, want 45.0", got)
	}
	// (1 error + 2*1 critical) / (5 total + 10)
	if got, want := byName[MetricErrorRate].Value, 3.0/15.0; math.Abs(got-want) > 1e-9 {
		t.Errorf("error_rate = %v, want %v", got, want)
	}
	if got := byName[MetricValidationPassRate].Value; got != 1.0 {
		t.Errorf("validation_pass_rate = %v, want 1.0", got)
	}
	if got := byName[MetricTerminologyAccuracy].Value; got != 0.75 {
		t.Errorf("terminology_accuracy = %v, want 0.75", got)
	}
	for _, m := range metrics {
		if m.ReportID != "r-1" {
			t.Errorf("%s missing report ID", m.Name)
		}
		if _, ok := Target(m.Name); !ok {
			t.Errorf("%s not in the canonical target table", m.Name)
		}
	}
	if c.history.Size() != 7 {
		t.Errorf("history size = %d, want 7", c.history.Size())
	}
}

func TestCollectFromAssessment_EmptySample(t *testing.T) {
	c := newTestCollector(t, nil)

	metrics := c.CollectFromAssessment(&Sample{ReportID: "r-2"})
	byName := make(map[string]Metric)
	for _, m := range metrics {
		byName[m.Name] = m
	}
	if got := byName[MetricErrorRate].Value; got != 0 {
		t.Errorf("error_rate with no issues = %v, want 0", got)
	}
	// no conditions asserted means nothing to get wrong
	if got := byName[MetricTerminologyAccuracy].Value; got != 1.0 {
		t.Errorf("terminology_accuracy = %v, want 1.0", got)
	}
}

func TestRecord_FillsCanonicalDefaults(t *testing.T) {
	c := newTestCollector(t, nil)

	c.Record(Metric{Name: MetricOverallAccuracy, Value: 0.9})
	history := c.History()
	if len(history) != 1 {
		t.Fatalf("history = %d entries, want 1", len(history))
	}
	m := history[0]
	if m.Target != 0.90 || m.Type != TypeAccuracy {
		t.Errorf("canonical defaults not filled: %+v", m)
	}
	if m.Timestamp.IsZero() {
		t.Error("timestamp should default to now")
	}
}

func TestTrend_Directions(t *testing.T) {
	tests := []struct {
		name   string
		metric string
		values []float64
		want   TrendDirection
	}{
		{"improving accuracy", MetricOverallAccuracy, []float64{0.70, 0.80, 0.90}, TrendImproving},
		{"declining accuracy", MetricOverallAccuracy, []float64{0.90, 0.80, 0.70}, TrendDeclining},
		{"stable accuracy", MetricOverallAccuracy, []float64{0.90, 0.901, 0.899, 0.90}, TrendStable},
		// error_rate falling is an improvement
		{"falling error rate", MetricErrorRate, []float64{0.20, 0.10, 0.02}, TrendImproving},
		{"rising error rate", MetricErrorRate, []float64{0.02, 0.10, 0.20}, TrendDeclining},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCollector(t, nil)
			for _, v := range tt.values {
				c.Record(Metric{Name: tt.metric, Value: v})
			}
			tr, ok := c.Trend(tt.metric)
			if !ok {
				t.Fatal("Trend() not ok")
			}
			if tr.Direction != tt.want {
				t.Errorf("Direction = %v (slope %v), want %v", tr.Direction, tr.Slope, tt.want)
			}
			if tt.want == TrendStable && tr.Strength != 0 {
				t.Errorf("stable trend strength = %v, want 0", tr.Strength)
			}
			if tt.want != TrendStable && tr.Strength <= 0 {
				t.Errorf("trend strength = %v, want > 0", tr.Strength)
			}
		})
	}
}

func TestTrend_SlopeAndStrength(t *testing.T) {
	c := newTestCollector(t, nil)
	// Perfectly linear: slope exactly 0.05 per sample.
	for _, v := range []float64{0.70, 0.75, 0.80, 0.85} {
		c.Record(Metric{Name: MetricOverallAccuracy, Value: v})
	}
	tr, ok := c.Trend(MetricOverallAccuracy)
	if !ok {
		t.Fatal("Trend() not ok")
	}
	if math.Abs(tr.Slope-0.05) > 1e-9 {
		t.Errorf("Slope = %v, want 0.05", tr.Slope)
	}
	if math.Abs(tr.Strength-0.5) > 1e-9 {
		t.Errorf("Strength = %v, want 0.5", tr.Strength)
	}
	if tr.SampleCount != 4 {
		t.Errorf("SampleCount = %d, want 4", tr.SampleCount)
	}
}

func TestTrend_InsufficientHistory(t *testing.T) {
	c := newTestCollector(t, nil)
	c.Record(Metric{Name: MetricOverallAccuracy, Value: 0.9})
	c.Record(Metric{Name: MetricOverallAccuracy, Value: 0.8})

	if _, ok := c.Trend(MetricOverallAccuracy); ok {
		t.Error("two samples should not produce a trend")
	}
}

func TestDashboard_SummariesAndFailurePatterns(t *testing.T) {
	c := newTestCollector(t, nil)

	// Accuracy consistently under target, error rate consistently fine.
	for i := 0; i < 4; i++ {
		c.Record(Metric{Name: MetricOverallAccuracy, Value: 0.70})
		c.Record(Metric{Name: MetricErrorRate, Value: 0.01})
	}

	d := c.Dashboard()
	if d.TotalRecorded != 8 {
		t.Errorf("TotalRecorded = %d, want 8", d.TotalRecorded)
	}
	if len(d.Metrics) != 2 {
		t.Fatalf("metric summaries = %d, want 2", len(d.Metrics))
	}
	// Sorted by name: error_rate before overall_accuracy.
	if d.Metrics[0].Name != MetricErrorRate || d.Metrics[1].Name != MetricOverallAccuracy {
		t.Errorf("summaries not sorted by name: %+v", d.Metrics)
	}
	if d.Metrics[1].MeetingTarget {
		t.Error("accuracy at 0.70 should not meet its 0.90 target")
	}

	if len(d.FailurePatterns) != 1 || d.FailurePatterns[0].Metric != MetricOverallAccuracy {
		t.Fatalf("FailurePatterns = %+v, want overall_accuracy only", d.FailurePatterns)
	}
	if d.FailurePatterns[0].FailureRate != 1.0 || d.FailurePatterns[0].Occurrences != 4 {
		t.Errorf("failure pattern = %+v", d.FailurePatterns[0])
	}
}

func TestExport_JSONOnly(t *testing.T) {
	c := newTestCollector(t, nil)
	c.Record(Metric{Name: MetricOverallAccuracy, Value: 0.9})

	data, err := c.Export("json")
	if err != nil {
		t.Fatalf("Export(json) error = %v", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if snap.Dashboard.TotalRecorded != 1 {
		t.Errorf("TotalRecorded = %d, want 1", snap.Dashboard.TotalRecorded)
	}
	if len(snap.History) != 1 || snap.History[0].Name != MetricOverallAccuracy {
		t.Errorf("exported history = %+v, want the recorded metric", snap.History)
	}

	_, err = c.Export("csv")
	var unsupported *ErrUnsupportedFormat
	if !errors.As(err, &unsupported) {
		t.Errorf("Export(csv) error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestClearOlderThan(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCollector(t, func(cfg *Config) {
		cfg.now = func() time.Time { return now }
	})

	c.Record(Metric{Name: MetricOverallAccuracy, Value: 0.9, Timestamp: now.Add(-48 * time.Hour)})
	c.Record(Metric{Name: MetricOverallAccuracy, Value: 0.9, Timestamp: now.Add(-1 * time.Hour)})

	if removed := c.ClearOlderThan(24 * time.Hour); removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if size := len(c.History()); size != 1 {
		t.Errorf("history size = %d, want 1", size)
	}
}

func TestCollector_HistoryEviction(t *testing.T) {
	c := newTestCollector(t, func(cfg *Config) {
		cfg.HistorySize = 3
	})

	for i := 0; i < 5; i++ {
		c.Record(Metric{Name: MetricOverallAccuracy, Value: float64(i)})
	}
	history := c.History()
	if len(history) != 3 {
		t.Fatalf("history size = %d, want 3", len(history))
	}
	if history[0].Value != 2 {
		t.Errorf("oldest surviving value = %v, want 2", history[0].Value)
	}
	if c.Dashboard().Dropped != 2 {
		t.Errorf("Dropped = %d, want 2", c.Dashboard().Dropped)
	}
}
