// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package hallucination detects fabricated or unsupported claims in
// AI-generated medical analyses.
//
// A Detector runs a configurable set of checkers over a normalized
// analysis bundle: condition grounding, medication grounding,
// demographic consistency, temporal plausibility, and section
// completeness. Findings are aggregated into an issue.Report.
package hallucination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AleutianAI/MedQA/pkg/logging"
	"github.com/AleutianAI/MedQA/services/qa/issue"
	"github.com/AleutianAI/MedQA/services/qa/model"
	"github.com/AleutianAI/MedQA/services/qa/terminology"
)

// ErrNilBundle is returned when Detect is called without a bundle.
var ErrNilBundle = errors.New("hallucination: nil analysis bundle")

// Detector runs hallucination checks over analysis bundles.
//
// Thread Safety: Safe for concurrent use once constructed.
type Detector struct {
	cfg      *Config
	checkers []Checker
	log      *logging.Logger
}

// NewDetector builds a Detector with the standard checker set.
//
// Description:
//
//	Checkers are assembled from the enabled sub-configs. A nil cfg uses
//	DefaultConfig; a nil logger uses the package default.
//
// Inputs:
//
//	cfg - Detector configuration, may be nil.
//	term - Terminology validator, required.
//	log - Logger, may be nil.
func NewDetector(cfg *Config, term *terminology.Validator, log *logging.Logger) (*Detector, error) {
	if term == nil {
		return nil, errors.New("hallucination: terminology validator is required")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Conditions == nil {
		cfg.Conditions = DefaultConditionCheckConfig()
	}
	if cfg.Medications == nil {
		cfg.Medications = DefaultMedicationCheckConfig()
	}
	if cfg.Demographics == nil {
		cfg.Demographics = DefaultDemographicsCheckConfig()
	}
	if cfg.Temporal == nil {
		cfg.Temporal = DefaultTemporalCheckConfig()
	}
	if cfg.Completeness == nil {
		cfg.Completeness = DefaultCompletenessCheckConfig()
	}
	if log == nil {
		log = logging.Default()
	}

	var checkers []Checker
	if cfg.Conditions.Enabled {
		checkers = append(checkers, &conditionCheck{cfg: cfg.Conditions, term: term})
	}
	if cfg.Medications.Enabled {
		checkers = append(checkers, &medicationCheck{cfg: cfg.Medications, term: term})
	}
	if cfg.Demographics.Enabled {
		checkers = append(checkers, &demographicsCheck{cfg: cfg.Demographics})
	}
	if cfg.Temporal.Enabled {
		checkers = append(checkers, &temporalCheck{cfg: cfg.Temporal})
	}
	if cfg.Completeness.Enabled {
		checkers = append(checkers, &completenessCheck{cfg: cfg.Completeness})
	}

	return &Detector{cfg: cfg, checkers: checkers, log: log}, nil
}

// NewDetectorWithCheckers builds a Detector with a custom checker set.
// Intended for tests and specialized pipelines.
func NewDetectorWithCheckers(cfg *Config, log *logging.Logger, checkers ...Checker) *Detector {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = logging.Default()
	}
	return &Detector{cfg: cfg, checkers: checkers, log: log}
}

// Detect runs all enabled checkers and aggregates their findings.
//
// Description:
//
//	Checkers run sequentially in registration order. Context
//	cancellation aborts the run early; the issues found so far are
//	returned alongside the context error. With ShortCircuitOnCritical,
//	the first critical issue stops further checkers.
//
// Outputs:
//
//	*issue.Report - Aggregated report, never nil on success.
//	error - ErrNilBundle, or the context error on early abort.
func (d *Detector) Detect(ctx context.Context, bundle *model.AnalysisBundle) (*issue.Report, error) {
	if bundle == nil {
		return nil, ErrNilBundle
	}
	if !d.cfg.Enabled {
		return issue.BuildReport(bundle.ReportID, nil), nil
	}

	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}

	ctx, span := StartDetectionSpan(ctx, bundle.ReportID)
	defer span.End()

	start := time.Now()
	var issues []issue.Issue

	for _, checker := range d.checkers {
		select {
		case <-ctx.Done():
			d.log.Warn("detection aborted",
				"report_id", bundle.ReportID,
				"checker", checker.Name(),
				"error", ctx.Err())
			return issue.BuildReport(bundle.ReportID, issues),
				fmt.Errorf("detection aborted at %s: %w", checker.Name(), ctx.Err())
		default:
		}

		checkStart := time.Now()
		found := checker.Check(ctx, bundle)
		elapsed := time.Since(checkStart)

		RecordCheck(ctx, checker.Name(), len(found), elapsed)
		AddCheckerEvent(span, checker.Name(), len(found), elapsed)
		for _, iss := range found {
			RecordIssue(ctx, iss)
		}
		issues = append(issues, found...)

		if d.cfg.ShortCircuitOnCritical && hasCritical(found) {
			d.log.Info("short-circuit on critical issue",
				"report_id", bundle.ReportID,
				"checker", checker.Name())
			break
		}
	}

	report := issue.BuildReport(bundle.ReportID, issues)
	SetDetectionSpanResult(span, report)

	d.log.Debug("detection complete",
		"report_id", bundle.ReportID,
		"status", report.Status,
		"issues", len(report.Issues),
		"duration_ms", time.Since(start).Milliseconds())

	return report, nil
}

// GenerateReport aggregates externally collected issues using the same
// status and scoring rules as Detect.
func (d *Detector) GenerateReport(reportID string, issues []issue.Issue) *issue.Report {
	return issue.BuildReport(reportID, issues)
}

func hasCritical(issues []issue.Issue) bool {
	for _, iss := range issues {
		if iss.Severity == issue.SeverityCritical {
			return true
		}
	}
	return false
}
