// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine is the quality assurance façade. It runs full-bundle
// validation, grades the outcome into a QualityAssessment, records
// quality metrics, and optionally persists the assessment.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/MedQA/pkg/logging"
	"github.com/AleutianAI/MedQA/services/qa/hallucination"
	"github.com/AleutianAI/MedQA/services/qa/issue"
	"github.com/AleutianAI/MedQA/services/qa/model"
	"github.com/AleutianAI/MedQA/services/qa/qualitymetrics"
	"github.com/AleutianAI/MedQA/services/qa/research"
	"github.com/AleutianAI/MedQA/services/qa/terminology"
	"github.com/AleutianAI/MedQA/services/qa/validator"
)

// ErrNilBundle is returned when Assess receives nil.
var ErrNilBundle = errors.New("engine: nil analysis bundle")

// Store persists assessments. Satisfied by the badger-backed store;
// the engine only needs the write half.
type Store interface {
	Put(ctx context.Context, a *Assessment) error
}

// Config composes the per-component configurations. Nil sub-configs
// fall back to each component's defaults.
type Config struct {
	Terminology   *terminology.Config
	Hallucination *hallucination.Config
	Research      *research.Config
	Validation    *validator.Config
	Metrics       *qualitymetrics.Config

	// DefaultResearchQuality is the research score assumed when the
	// analysis reports no confidence of its own.
	DefaultResearchQuality float64

	// MissingResearchQuality is the research score when the bundle has
	// no research section at all.
	MissingResearchQuality float64
}

// DefaultConfig returns the standard engine settings.
func DefaultConfig() *Config {
	return &Config{
		DefaultResearchQuality: 0.7,
		MissingResearchQuality: 0.5,
	}
}

// Option customizes an Engine at construction.
type Option func(*Engine)

// WithStore makes the engine persist every assessment.
func WithStore(s Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithCollector replaces the engine's metrics collector.
func WithCollector(c *qualitymetrics.Collector) Option {
	return func(e *Engine) { e.collector = c }
}

// WithLogger replaces the engine's logger.
func WithLogger(log *logging.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// Engine grades analysis bundles.
//
// Thread Safety:
//
//	Safe for concurrent use once constructed. All composed components
//	are either read-only or internally synchronized.
type Engine struct {
	cfg          *Config
	orchestrator *validator.Orchestrator
	research     *research.Validator
	collector    *qualitymetrics.Collector
	store        Store
	log          *logging.Logger
}

// NewEngine builds the full validation stack from cfg. There is no
// package-level instance; callers hold the engine they construct.
func NewEngine(cfg *Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.DefaultResearchQuality == 0 {
		cfg.DefaultResearchQuality = 0.7
	}
	if cfg.MissingResearchQuality == 0 {
		cfg.MissingResearchQuality = 0.5
	}

	e := &Engine{cfg: cfg}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logging.Default()
	}
	if e.collector == nil {
		e.collector = qualitymetrics.NewCollector(cfg.Metrics, e.log)
	}

	term, err := terminology.NewValidator(cfg.Terminology)
	if err != nil {
		return nil, fmt.Errorf("building terminology validator: %w", err)
	}
	detector, err := hallucination.NewDetector(cfg.Hallucination, term, e.log)
	if err != nil {
		return nil, fmt.Errorf("building hallucination detector: %w", err)
	}
	res, err := research.NewValidator(cfg.Research)
	if err != nil {
		return nil, fmt.Errorf("building research validator: %w", err)
	}
	orch, err := validator.NewOrchestrator(cfg.Validation, term, detector, res, e.log)
	if err != nil {
		return nil, fmt.Errorf("building orchestrator: %w", err)
	}

	e.research = res
	e.orchestrator = orch
	return e, nil
}

// Collector exposes the engine's metrics collector for dashboards.
func (e *Engine) Collector() *qualitymetrics.Collector {
	return e.collector
}

// Stats exposes the orchestrator's outcome counters.
func (e *Engine) Stats() validator.Stats {
	return e.orchestrator.Stats()
}

// Assess validates a bundle and grades the result.
//
// Description:
//
//	Dimension scores: data quality starts at 0.8 and loses 0.2 per
//	critical and 0.1 per error among non-hallucination issues, floored
//	at 0. Hallucination risk weighs hallucination-category issues at
//	0.3 per critical, 0.2 per error, 0.1 per warning, capped at 1.
//	Research quality is the analysis's own confidence, with configured
//	fallbacks when unset or missing. Overall is
//	0.4*data + 0.3*(1-risk) + 0.3*research.
//
// Outputs:
//
//	The assessment is returned even when validation aborted early; the
//	error then describes the abort and the assessment is graded failed.
func (e *Engine) Assess(ctx context.Context, bundle *model.AnalysisBundle) (*Assessment, error) {
	if bundle == nil {
		return nil, ErrNilBundle
	}

	started := time.Now()
	ctx, span := StartAssessSpan(ctx, bundle.ReportID)
	defer span.End()

	report, verr := e.orchestrator.ValidateBundle(ctx, bundle)
	if report == nil {
		return nil, verr
	}

	a := e.grade(bundle, report)
	if verr != nil {
		a.Level = LevelFailed
		a.PassedValidation = false
	}

	SetAssessSpanResult(span, a)
	RecordAssessment(ctx, a, time.Since(started))
	e.recordMetrics(bundle, report, a)

	if e.store != nil && verr == nil {
		if err := e.store.Put(ctx, a); err != nil {
			// Persistence is best-effort; the verdict stands.
			e.log.Error("persisting assessment failed", "assessment_id", a.ID, "error", err)
		}
	}

	e.log.Info("assessment complete",
		"report_id", a.ReportID,
		"level", a.Level,
		"overall_score", a.OverallScore,
		"issues", len(a.Issues),
		"duration", time.Since(started))
	return a, verr
}

// grade turns a validation report into a scored assessment.
func (e *Engine) grade(bundle *model.AnalysisBundle, report *issue.Report) *Assessment {
	dataScore := 0.8
	var hallCritical, hallError, hallWarning int

	for i := range report.Issues {
		iss := &report.Issues[i]
		if iss.Category == issue.CategoryHallucination {
			switch iss.Severity {
			case issue.SeverityCritical:
				hallCritical++
			case issue.SeverityError:
				hallError++
			case issue.SeverityWarning:
				hallWarning++
			}
			continue
		}
		switch iss.Severity {
		case issue.SeverityCritical:
			dataScore -= 0.2
		case issue.SeverityError:
			dataScore -= 0.1
		}
	}
	dataScore = math.Max(0, dataScore)

	risk := math.Min(1, 0.3*float64(hallCritical)+0.2*float64(hallError)+0.1*float64(hallWarning))

	researchScore := e.cfg.MissingResearchQuality
	if bundle.Research != nil {
		researchScore = bundle.Research.AnalysisConfidence
		if researchScore == 0 {
			researchScore = e.cfg.DefaultResearchQuality
		}
	}

	overall := 0.4*dataScore + 0.3*(1-risk) + 0.3*researchScore

	level := levelForScore(overall)
	if report.HasBlockingIssues() {
		level = LevelCritical
	}

	a := &Assessment{
		ID:                   uuid.New(),
		ReportID:             bundle.ReportID,
		PatientID:            bundle.Patient.PatientID,
		Timestamp:            time.Now().UTC(),
		OverallScore:         overall,
		DataQualityScore:     dataScore,
		HallucinationRisk:    risk,
		ResearchQualityScore: researchScore,
		Level:                level,
		Issues:               report.Issues,
		PassedValidation:     level != LevelCritical && level != LevelFailed,
		ProcessingTime:       bundle.ProcessingTime,
	}
	a.Recommendations = e.recommend(a, report)
	return a
}

// recommend derives remediation advice from the failing dimensions.
func (e *Engine) recommend(a *Assessment, report *issue.Report) []string {
	var recs []string
	if a.DataQualityScore < 0.7 {
		recs = append(recs, "Review data validation findings before releasing this analysis.")
	}
	if a.HallucinationRisk > 0.3 {
		recs = append(recs, "Verify flagged statements against the source patient record; hallucination risk is elevated.")
	}
	if a.ResearchQualityScore < 0.6 {
		recs = append(recs, "Strengthen the research basis with additional peer-reviewed citations.")
	}
	if a.Level == LevelPoor || a.Level == LevelCritical {
		recs = append(recs, "Route this analysis for human clinical review before any downstream use.")
	}
	recs = append(recs, report.Recommendations...)
	return dedupe(recs)
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// recordMetrics feeds the run into the quality metrics collector.
func (e *Engine) recordMetrics(bundle *model.AnalysisBundle, report *issue.Report, a *Assessment) {
	counts := make(map[issue.Severity]int, len(report.CountBySeverity))
	for sev, n := range report.CountBySeverity {
		counts[sev] = n
	}

	termIssues := 0
	for i := range report.Issues {
		if report.Issues[i].Category == issue.CategoryTerminology {
			termIssues++
		}
	}
	conditionCount := 0
	if bundle.Summary != nil {
		conditionCount = len(bundle.Summary.KeyConditions)
	}

	e.collector.CollectFromAssessment(&qualitymetrics.Sample{
		ReportID:            bundle.ReportID,
		OverallScore:        a.OverallScore,
		DataQualityScore:    a.DataQualityScore,
		Passed:              a.PassedValidation,
		ResearchCredibility: e.research.AggregateCredibility(bundle.Research),
		ProcessingTime:      bundle.ProcessingTime,
		IssueCounts:         counts,
		TerminologyIssues:   termIssues,
		ConditionCount:      conditionCount,
	})
}
