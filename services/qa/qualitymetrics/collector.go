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
	"math"
	"sort"
	"strings"
	"time"

	"github.com/AleutianAI/MedQA/pkg/collections"
	"github.com/AleutianAI/MedQA/pkg/logging"
	"github.com/AleutianAI/MedQA/services/qa/issue"
)

// DefaultHistorySize bounds the in-memory metric history.
const DefaultHistorySize = 10000

// stableSlopeEpsilon is the slope magnitude below which a trend is
// reported as stable.
const stableSlopeEpsilon = 0.01

// Config tunes the collector.
type Config struct {
	// HistorySize is the ring buffer capacity. Zero means
	// DefaultHistorySize.
	HistorySize int

	// FailureRateThreshold is the below-target fraction above which a
	// metric is reported as a failure pattern.
	FailureRateThreshold float64

	// MinTrendSamples is the minimum history length for trend analysis.
	MinTrendSamples int

	// now is injectable for tests. Nil means time.Now.
	now func() time.Time
}

// DefaultConfig returns the standard collector settings.
func DefaultConfig() *Config {
	return &Config{
		HistorySize:          DefaultHistorySize,
		FailureRateThreshold: 0.3,
		MinTrendSamples:      3,
	}
}

// Sample carries the per-assessment facts the collector turns into
// canonical metrics. The engine fills one after every run.
type Sample struct {
	ReportID string

	// OverallScore is the engine's composite quality score in [0, 1].
	OverallScore float64

	// DataQualityScore is the data validation score in [0, 1].
	DataQualityScore float64

	// Passed reports whether the run passed validation outright.
	Passed bool

	// ResearchCredibility is the aggregate citation credibility in [0, 1].
	ResearchCredibility float64

	// ProcessingTime is how long the upstream pipeline took.
	ProcessingTime time.Duration

	// IssueCounts is the per-severity issue tally for the run.
	IssueCounts map[issue.Severity]int

	// TerminologyIssues counts terminology findings in the run.
	TerminologyIssues int

	// ConditionCount is how many conditions the summary asserted.
	ConditionCount int
}

// Collector records quality metrics into a bounded history and answers
// trend and dashboard queries over it.
//
// Thread Safety:
//
//	Safe for concurrent use. The history ring buffer carries its own
//	lock and the collector holds no other mutable state.
type Collector struct {
	cfg     *Config
	history *collections.RingBuffer[Metric]
	log     *logging.Logger
}

// NewCollector creates a collector. Nil cfg and log use defaults.
func NewCollector(cfg *Config, log *logging.Logger) *Collector {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultHistorySize
	}
	if cfg.FailureRateThreshold <= 0 {
		cfg.FailureRateThreshold = 0.3
	}
	if cfg.MinTrendSamples <= 0 {
		cfg.MinTrendSamples = 3
	}
	if log == nil {
		log = logging.Default()
	}
	return &Collector{
		cfg:     cfg,
		history: collections.NewRingBuffer[Metric](cfg.HistorySize),
		log:     log,
	}
}

// Record appends one measurement. The timestamp is set to now when
// zero, and the target and type are filled from the canonical table
// when the name is canonical.
func (c *Collector) Record(m Metric) {
	if m.Timestamp.IsZero() {
		m.Timestamp = c.now()
	}
	if t, ok := targets[m.Name]; ok {
		if m.Target == 0 {
			m.Target = t.value
		}
		if m.Type == "" {
			m.Type = t.metricType
		}
	}
	if c.history.Push(m) {
		c.log.Debug("metric history full, oldest sample evicted", "metric", m.Name)
	}
}

// CollectFromAssessment derives the seven canonical metrics from one
// assessment run and records them all with a shared timestamp.
//
// Description:
//
//	processing_time is recorded in seconds against a 300s goal.
//	error_rate weighs critical issues double and dampens small runs:
//	(errors + 2*criticals) / (total issues + 10). terminology_accuracy
//	is the fraction of asserted conditions free of terminology
//	findings.
func (c *Collector) CollectFromAssessment(s *Sample) []Metric {
	now := c.now()

	errors := s.IssueCounts[issue.SeverityError]
	criticals := s.IssueCounts[issue.SeverityCritical]
	total := 0
	for _, n := range s.IssueCounts {
		total += n
	}
	errorRate := float64(errors+2*criticals) / math.Max(1, float64(total+10))

	passRate := 0.0
	if s.Passed {
		passRate = 1.0
	}

	termAccuracy := math.Max(0, 1-float64(s.TerminologyIssues)/math.Max(1, float64(s.ConditionCount)))

	metrics := []Metric{
		{Name: MetricOverallAccuracy, Value: s.OverallScore},
		{Name: MetricDataCompleteness, Value: s.DataQualityScore},
		{Name: MetricValidationPassRate, Value: passRate},
		{Name: MetricResearchCredibility, Value: s.ResearchCredibility},
		{Name: MetricProcessingTime, Value: s.ProcessingTime.Seconds()},
		{Name: MetricErrorRate, Value: errorRate},
		{Name: MetricTerminologyAccuracy, Value: termAccuracy},
	}
	for i := range metrics {
		metrics[i].Timestamp = now
		metrics[i].ReportID = s.ReportID
		t := targets[metrics[i].Name]
		metrics[i].Target = t.value
		metrics[i].Type = t.metricType
		if metrics[i].Name == MetricProcessingTime {
			metrics[i].Unit = "seconds"
		} else {
			metrics[i].Unit = "ratio"
		}
		c.history.Push(metrics[i])
	}
	return metrics
}

// History returns a snapshot of all recorded metrics, oldest first.
func (c *Collector) History() []Metric {
	return c.history.ToSlice()
}

// Trend fits a least-squares line through the metric's recorded values
// in chronological order.
//
// Description:
//
//	A slope magnitude under 0.01 per sample is reported as stable with
//	strength 0. Otherwise the direction follows the slope sign and the
//	strength is min(1, |slope| * 10). Returns ok=false when the history
//	holds fewer than MinTrendSamples values for the metric.
func (c *Collector) Trend(name string) (Trend, bool) {
	var values []float64
	for _, m := range c.history.ToSlice() {
		if m.Name == name {
			values = append(values, m.Value)
		}
	}
	if len(values) < c.cfg.MinTrendSamples {
		return Trend{}, false
	}

	slope := leastSquaresSlope(values)
	tr := Trend{
		Metric:      name,
		Slope:       slope,
		SampleCount: len(values),
	}
	switch {
	case math.Abs(slope) < stableSlopeEpsilon:
		tr.Direction = TrendStable
		tr.Strength = 0
	case slope > 0:
		tr.Direction = TrendImproving
		tr.Strength = math.Min(1, math.Abs(slope)*10)
	default:
		tr.Direction = TrendDeclining
		tr.Strength = math.Min(1, math.Abs(slope)*10)
	}

	// For lower-is-better metrics a rising value is a decline.
	if t, ok := targets[name]; ok && t.lowerIsBetter && tr.Direction != TrendStable {
		if tr.Direction == TrendImproving {
			tr.Direction = TrendDeclining
		} else {
			tr.Direction = TrendImproving
		}
	}
	return tr, true
}

// leastSquaresSlope fits y = a + b*x over x = 0..n-1 and returns b.
func leastSquaresSlope(values []float64) float64 {
	n := float64(len(values))
	xMean := (n - 1) / 2

	yMean := 0.0
	for _, v := range values {
		yMean += v
	}
	yMean /= n

	num, den := 0.0, 0.0
	for i, v := range values {
		dx := float64(i) - xMean
		num += dx * (v - yMean)
		den += dx * dx
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// Dashboard rolls the full history up into per-metric summaries and
// persistent failure patterns, sorted by metric name.
func (c *Collector) Dashboard() *Dashboard {
	all := c.history.ToSlice()

	byName := make(map[string][]Metric)
	for _, m := range all {
		byName[m.Name] = append(byName[m.Name], m)
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	d := &Dashboard{
		GeneratedAt:   c.now(),
		TotalRecorded: len(all),
		Dropped:       c.history.DroppedCount(),
	}

	for _, name := range names {
		samples := byName[name]
		latest := samples[len(samples)-1]

		sum := 0.0
		misses := 0
		for i := range samples {
			sum += samples[i].Value
			if !samples[i].MeetingTarget() {
				misses++
			}
		}

		summary := MetricSummary{
			Name:          name,
			Type:          latest.Type,
			Latest:        latest.Value,
			Average:       sum / float64(len(samples)),
			Target:        latest.Target,
			MeetingTarget: latest.MeetingTarget(),
			SampleCount:   len(samples),
		}
		if tr, ok := c.Trend(name); ok {
			summary.Trend = &tr
		}
		d.Metrics = append(d.Metrics, summary)

		failureRate := float64(misses) / float64(len(samples))
		if failureRate > c.cfg.FailureRateThreshold {
			d.FailurePatterns = append(d.FailurePatterns, FailurePattern{
				Metric:      name,
				FailureRate: failureRate,
				Occurrences: misses,
			})
		}
	}
	return d
}

// Snapshot is the exported collector state: the dashboard rollup plus
// every retained metric record.
type Snapshot struct {
	Dashboard Dashboard `json:"dashboard"`
	History   []Metric  `json:"history"`
}

// Export serializes the dashboard and the retained history. Only json
// is supported.
func (c *Collector) Export(format string) ([]byte, error) {
	if strings.ToLower(format) != "json" {
		return nil, &ErrUnsupportedFormat{Format: format}
	}
	return json.MarshalIndent(Snapshot{
		Dashboard: *c.Dashboard(),
		History:   c.History(),
	}, "", "  ")
}

// ClearOlderThan removes history entries older than the given age and
// returns how many were removed.
func (c *Collector) ClearOlderThan(age time.Duration) int {
	cutoff := c.now().Add(-age)
	removed := c.history.Retain(func(m Metric) bool {
		return !m.Timestamp.Before(cutoff)
	})
	if removed > 0 {
		c.log.Debug("pruned metric history", "removed", removed, "cutoff", cutoff)
	}
	return removed
}

func (c *Collector) now() time.Time {
	if c.cfg.now != nil {
		return c.cfg.now()
	}
	return time.Now()
}
