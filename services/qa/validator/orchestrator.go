// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validator orchestrates full-bundle validation. It fans the
// bundle out to section validators, runs the hallucination detector,
// and merges everything into one report with deterministic ordering.
package validator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/MedQA/pkg/logging"
	"github.com/AleutianAI/MedQA/services/qa/hallucination"
	"github.com/AleutianAI/MedQA/services/qa/issue"
	"github.com/AleutianAI/MedQA/services/qa/model"
	"github.com/AleutianAI/MedQA/services/qa/research"
	"github.com/AleutianAI/MedQA/services/qa/terminology"
)

// ErrNilBundle is returned when ValidateBundle receives nil.
var ErrNilBundle = errors.New("validator: nil analysis bundle")

// Config tunes the orchestrator's own thresholds. The composed
// validators carry their own configs.
type Config struct {
	// MinNameLength is the shortest plausible patient name.
	MinNameLength int

	// MaxAge bounds plausible patient ages.
	MaxAge int

	// MinSummaryLength is the shortest plausible summary text.
	MinSummaryLength int

	// TermWarnThreshold and TermErrorThreshold split terminology
	// confidence into warning and error bands.
	TermWarnThreshold  float64
	TermErrorThreshold float64

	// MinConditionConfidence flags generator self-confidence below it.
	MinConditionConfidence float64

	// MinRelevantRatio is the fraction of findings that must bear on
	// the patient's conditions.
	MinRelevantRatio float64

	// OverconfidenceFindings is the evidence floor below which a high
	// analysis confidence is noted.
	OverconfidenceFindings  int
	OverconfidenceThreshold float64
}

// DefaultConfig returns the standard orchestration thresholds.
func DefaultConfig() *Config {
	return &Config{
		MinNameLength:           2,
		MaxAge:                  150,
		MinSummaryLength:        10,
		TermWarnThreshold:       0.7,
		TermErrorThreshold:      0.5,
		MinConditionConfidence:  0.3,
		MinRelevantRatio:        0.3,
		OverconfidenceFindings:  3,
		OverconfidenceThreshold: 0.8,
	}
}

// Stats counts orchestration outcomes.
type Stats struct {
	Runs   int64 `json:"runs"`
	Passed int64 `json:"passed"`
	Failed int64 `json:"failed"`
}

// PassRate returns the fraction of runs that passed, 0 for no runs.
func (s Stats) PassRate() float64 {
	if s.Runs == 0 {
		return 0
	}
	return float64(s.Passed) / float64(s.Runs)
}

// Orchestrator runs every validation section over a bundle.
//
// Thread Safety:
//
//	Safe for concurrent use. The composed validators are read-only
//	after construction and the stats counters are mutex-guarded.
type Orchestrator struct {
	cfg      *Config
	term     *terminology.Validator
	detector *hallucination.Detector
	research *research.Validator
	log      *logging.Logger

	mu    sync.Mutex
	stats Stats
}

// NewOrchestrator wires the section validators together. term,
// detector, and res are required; nil cfg and log use defaults.
func NewOrchestrator(cfg *Config, term *terminology.Validator, detector *hallucination.Detector, res *research.Validator, log *logging.Logger) (*Orchestrator, error) {
	if term == nil {
		return nil, errors.New("validator: terminology validator is required")
	}
	if detector == nil {
		return nil, errors.New("validator: hallucination detector is required")
	}
	if res == nil {
		return nil, errors.New("validator: research validator is required")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = logging.Default()
	}
	return &Orchestrator{
		cfg:      cfg,
		term:     term,
		detector: detector,
		research: res,
		log:      log,
	}, nil
}

// section is one independently runnable validation pass.
type section struct {
	name string
	run  func(context.Context, *model.AnalysisBundle) []issue.Issue
}

// ValidateBundle validates every section of the bundle concurrently
// and merges the findings into one report.
//
// Description:
//
//	Sections run under an errgroup: patient data, medical summary,
//	research analysis, source verification, completeness, and
//	cross-validation, plus the hallucination detector. Results merge
//	in fixed section order so repeated runs over the same bundle
//	produce identical reports. A section panic or context cancellation
//	yields a failed report and an error, never a crash.
func (o *Orchestrator) ValidateBundle(ctx context.Context, bundle *model.AnalysisBundle) (*issue.Report, error) {
	if bundle == nil {
		return nil, ErrNilBundle
	}

	started := time.Now()
	sections := []section{
		{"patient_data", o.validatePatientData},
		{"medical_summary", o.validateMedicalSummary},
		{"research_analysis", o.validateResearchAnalysis},
		{"source_verification", o.validateSourceVerification},
		{"completeness", o.validateCompleteness},
		{"cross_validation", o.validateCrossValidation},
	}

	results := make([][]issue.Issue, len(sections)+1)
	g, gctx := errgroup.WithContext(ctx)

	for i, s := range sections {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("validation section %s panicked: %v", s.name, r)
				}
			}()
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			results[i] = s.run(gctx, bundle)
			return nil
		})
	}
	g.Go(func() error {
		report, err := o.detector.Detect(gctx, bundle)
		if report != nil {
			results[len(sections)] = report.Issues
		}
		return err
	})

	if err := g.Wait(); err != nil {
		o.recordOutcome(false)
		o.log.Error("bundle validation aborted", "report_id", bundle.ReportID, "error", err)
		report := issue.BuildReport(bundle.ReportID, flatten(results))
		report.Status = issue.StatusFailed
		report.Score = 0
		return report, fmt.Errorf("validating bundle %s: %w", bundle.ReportID, err)
	}

	report := issue.BuildReport(bundle.ReportID, flatten(results))
	o.recordOutcome(!report.HasBlockingIssues())
	o.log.Debug("bundle validated",
		"report_id", bundle.ReportID,
		"status", report.Status,
		"issues", len(report.Issues),
		"duration", time.Since(started))
	return report, nil
}

func flatten(results [][]issue.Issue) []issue.Issue {
	var merged []issue.Issue
	for _, r := range results {
		merged = append(merged, r...)
	}
	return merged
}

func (o *Orchestrator) recordOutcome(passed bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stats.Runs++
	if passed {
		o.stats.Passed++
	} else {
		o.stats.Failed++
	}
}

// Stats returns a snapshot of the outcome counters.
func (o *Orchestrator) Stats() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stats
}

func (o *Orchestrator) validatePatientData(_ context.Context, bundle *model.AnalysisBundle) []issue.Issue {
	var issues []issue.Issue
	p := &bundle.Patient

	if p.PatientID == "" {
		issues = append(issues, issue.New(issue.CategoryCompleteness, issue.SeverityError,
			"patient.patient_id", "patient record has no identifier"))
	}
	if len(strings.TrimSpace(p.Name)) < o.cfg.MinNameLength {
		issues = append(issues, issue.New(issue.CategoryCompleteness, issue.SeverityError,
			"patient.name", "patient name is missing or implausibly short"))
	}
	switch {
	case p.Age == nil:
		issues = append(issues, issue.New(issue.CategoryCompleteness, issue.SeverityWarning,
			"patient.age", "patient age is not recorded"))
	case *p.Age < 0 || *p.Age > o.cfg.MaxAge:
		iss := issue.New(issue.CategoryConsistency, issue.SeverityWarning,
			"patient.age", fmt.Sprintf("patient age %d is outside the plausible range", *p.Age))
		iss.Expected = fmt.Sprintf("0 to %d", o.cfg.MaxAge)
		issues = append(issues, iss)
	}
	return issues
}

func (o *Orchestrator) validateMedicalSummary(_ context.Context, bundle *model.AnalysisBundle) []issue.Issue {
	s := bundle.Summary
	if s == nil {
		return nil // completeness section reports the missing summary
	}

	var issues []issue.Issue
	if len(s.KeyConditions) == 0 {
		issues = append(issues, issue.New(issue.CategoryCompleteness, issue.SeverityWarning,
			"summary.key_conditions", "summary asserts no key conditions"))
	}

	for i := range s.KeyConditions {
		cond := &s.KeyConditions[i]
		field := fmt.Sprintf("summary.key_conditions[%d]", i)

		match, termIssue := o.term.ValidateCondition(cond.Name, field)
		if match.Confidence < o.cfg.TermWarnThreshold && termIssue != nil {
			// Clamp the terminology verdict into the warn/error bands.
			if match.Confidence > o.cfg.TermErrorThreshold && termIssue.Severity.Rank() > issue.SeverityWarning.Rank() {
				termIssue.Severity = issue.SeverityWarning
			}
			issues = append(issues, *termIssue)
		}

		if cond.Confidence > 0 && cond.Confidence < o.cfg.MinConditionConfidence {
			iss := issue.New(issue.CategoryConsistency, issue.SeverityWarning, field,
				fmt.Sprintf("generator confidence %.2f for %q is too low to assert", cond.Confidence, cond.Name))
			iss.Confidence = cond.Confidence
			issues = append(issues, iss)
		}
	}

	if len(strings.TrimSpace(s.SummaryText)) < o.cfg.MinSummaryLength {
		issues = append(issues, issue.New(issue.CategoryCompleteness, issue.SeverityWarning,
			"summary.summary_text", "summary text is missing or implausibly short"))
	}
	return issues
}

func (o *Orchestrator) validateResearchAnalysis(_ context.Context, bundle *model.AnalysisBundle) []issue.Issue {
	if bundle.Research == nil {
		return nil
	}

	conditions := conditionNames(bundle)
	var issues []issue.Issue
	for i := range bundle.Research.Findings {
		field := fmt.Sprintf("research.findings[%d]", i)
		issues = append(issues, o.research.ValidateFinding(&bundle.Research.Findings[i], conditions, field)...)
	}
	return issues
}

func (o *Orchestrator) validateSourceVerification(_ context.Context, bundle *model.AnalysisBundle) []issue.Issue {
	return o.research.ValidateSources(bundle.Research)
}

func (o *Orchestrator) validateCompleteness(_ context.Context, bundle *model.AnalysisBundle) []issue.Issue {
	var issues []issue.Issue

	p := &bundle.Patient
	if len(p.Conditions) == 0 && len(p.Diagnoses) == 0 && len(p.Medications) == 0 {
		issues = append(issues, issue.New(issue.CategoryCompleteness, issue.SeverityWarning,
			"patient", "patient record carries no conditions, diagnoses, or medications to validate against"))
	}

	if s := bundle.Summary; s != nil {
		if s.GeneratedAt.IsZero() {
			issues = append(issues, issue.New(issue.CategoryCompleteness, issue.SeverityInfo,
				"summary.generated_at", "summary has no generation timestamp"))
		}
		if s.DataQualityScore == 0 {
			issues = append(issues, issue.New(issue.CategoryCompleteness, issue.SeverityInfo,
				"summary.data_quality_score", "generator did not self-report a quality score"))
		}
	}

	if r := bundle.Research; r != nil && len(r.Findings) > 0 && len(r.ConditionCorrelations) == 0 {
		issues = append(issues, issue.New(issue.CategoryCompleteness, issue.SeverityInfo,
			"research.condition_correlations", "research findings are not correlated to any condition"))
	}
	return issues
}

func (o *Orchestrator) validateCrossValidation(_ context.Context, bundle *model.AnalysisBundle) []issue.Issue {
	r := bundle.Research
	if r == nil || len(r.Findings) == 0 {
		return nil
	}

	var issues []issue.Issue
	conditions := conditionNames(bundle)

	relevant := 0
	for i := range r.Findings {
		if o.research.IsRelevant(&r.Findings[i], conditions) {
			relevant++
		}
	}
	ratio := float64(relevant) / float64(len(r.Findings))
	if ratio < o.cfg.MinRelevantRatio {
		iss := issue.New(issue.CategoryRelevance, issue.SeverityWarning, "research.findings",
			fmt.Sprintf("only %d of %d findings bear on the patient's documented conditions", relevant, len(r.Findings)))
		iss.Confidence = ratio
		issues = append(issues, iss)
	}

	if r.AnalysisConfidence > o.cfg.OverconfidenceThreshold && len(r.Findings) < o.cfg.OverconfidenceFindings {
		iss := issue.New(issue.CategoryConsistency, issue.SeverityInfo, "research.analysis_confidence",
			fmt.Sprintf("analysis confidence %.2f rests on only %d findings", r.AnalysisConfidence, len(r.Findings)))
		iss.Confidence = r.AnalysisConfidence
		issues = append(issues, iss)
	}
	return issues
}

// conditionNames gathers every condition name asserted anywhere in the
// bundle, for relevance checks.
func conditionNames(bundle *model.AnalysisBundle) []string {
	seen := make(map[string]bool)
	var names []string
	add := func(name string) {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for i := range bundle.Patient.Conditions {
		add(bundle.Patient.Conditions[i].Name)
	}
	for i := range bundle.Patient.Diagnoses {
		add(bundle.Patient.Diagnoses[i].Condition)
	}
	if bundle.Summary != nil {
		for i := range bundle.Summary.KeyConditions {
			add(bundle.Summary.KeyConditions[i].Name)
		}
	}
	return names
}
