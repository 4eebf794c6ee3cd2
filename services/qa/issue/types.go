// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package issue defines the validation issue taxonomy shared by every
// quality checker: severities, categories, the Issue record, and the
// aggregated validation Report.
package issue

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Severity indicates how serious a validation issue is.
type Severity string

const (
	// SeverityInfo is an observation that does not affect release.
	SeverityInfo Severity = "info"

	// SeverityWarning is a quality concern that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityError is a defect that degrades the analysis.
	SeverityError Severity = "error"

	// SeverityCritical is a defect that must block release.
	SeverityCritical Severity = "critical"
)

// Rank returns the ordering of the severity, info lowest.
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 0
	case SeverityWarning:
		return 1
	case SeverityError:
		return 2
	case SeverityCritical:
		return 3
	default:
		return -1
	}
}

// IsValid reports whether s is one of the defined severities.
func (s Severity) IsValid() bool {
	return s.Rank() >= 0
}

// ParseSeverity converts a string to a Severity, rejecting unknown values.
func ParseSeverity(v string) (Severity, error) {
	s := Severity(v)
	if !s.IsValid() {
		return "", fmt.Errorf("unknown severity %q", v)
	}
	return s, nil
}

// Worst returns the more severe of a and b.
func Worst(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// SeverityForConfidence maps a checker confidence to a severity.
//
// Description:
//
//	Low confidence in a claim means the claim is more likely fabricated,
//	so lower confidence maps to higher severity:
//	  < 0.3 critical, < 0.5 error, < 0.7 warning, otherwise info.
func SeverityForConfidence(confidence float64) Severity {
	switch {
	case confidence < 0.3:
		return SeverityCritical
	case confidence < 0.5:
		return SeverityError
	case confidence < 0.7:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// Category identifies the validation concern that raised an issue.
type Category string

const (
	// CategoryTerminology covers unrecognized or misspelled medical terms.
	CategoryTerminology Category = "terminology"

	// CategoryHallucination covers claims not grounded in the source record.
	CategoryHallucination Category = "hallucination"

	// CategoryDemographics covers patient identity and demographic mismatches.
	CategoryDemographics Category = "demographics"

	// CategoryTemporal covers impossible or inconsistent dates.
	CategoryTemporal Category = "temporal"

	// CategoryCompleteness covers missing required sections or fields.
	CategoryCompleteness Category = "completeness"

	// CategoryCitation covers malformed or untrustworthy research citations.
	CategoryCitation Category = "citation"

	// CategoryRelevance covers research findings unrelated to the patient.
	CategoryRelevance Category = "relevance"

	// CategoryConsistency covers contradictions between analysis sections.
	CategoryConsistency Category = "consistency"
)

// IsValid reports whether c is one of the defined categories.
func (c Category) IsValid() bool {
	switch c {
	case CategoryTerminology, CategoryHallucination, CategoryDemographics,
		CategoryTemporal, CategoryCompleteness, CategoryCitation,
		CategoryRelevance, CategoryConsistency:
		return true
	default:
		return false
	}
}

// ParseCategory converts a string to a Category, rejecting unknown values.
func ParseCategory(v string) (Category, error) {
	c := Category(v)
	if !c.IsValid() {
		return "", fmt.Errorf("unknown category %q", v)
	}
	return c, nil
}

// Issue is a single validation finding against an AI-generated analysis.
//
// Description:
//
//	Issues are produced by checkers and aggregated into a Report. The
//	Evidence and Expected fields carry the claim as generated and what
//	the source record actually supports, so reviewers can triage without
//	re-running the analysis.
type Issue struct {
	// ID uniquely identifies this issue.
	ID string `json:"id"`

	// Category is the validation concern that raised the issue.
	Category Category `json:"category"`

	// Severity indicates how serious the issue is.
	Severity Severity `json:"severity"`

	// Field is the location in the analysis bundle, e.g.
	// "summary.key_conditions[2]" or "patient.name".
	Field string `json:"field,omitempty"`

	// Message is a human-readable description of the problem.
	Message string `json:"message"`

	// Evidence is the claim as it appears in the generated analysis.
	Evidence string `json:"evidence,omitempty"`

	// Expected is what the source record supports, when known.
	Expected string `json:"expected,omitempty"`

	// Suggestion is an optional remediation hint.
	Suggestion string `json:"suggestion,omitempty"`

	// Confidence is the checker's confidence in the flagged claim,
	// in [0, 1]. Zero means the claim has no support at all.
	Confidence float64 `json:"confidence"`

	// DetectedAt is when the issue was raised.
	DetectedAt time.Time `json:"detected_at"`
}

// New creates an Issue with a fresh ID and the current timestamp.
func New(category Category, severity Severity, field, message string) Issue {
	return Issue{
		ID:         uuid.NewString(),
		Category:   category,
		Severity:   severity,
		Field:      field,
		Message:    message,
		DetectedAt: time.Now().UTC(),
	}
}

// FromConfidence creates an Issue whose severity is derived from the
// checker confidence via SeverityForConfidence.
func FromConfidence(category Category, confidence float64, field, message string) Issue {
	iss := New(category, SeverityForConfidence(confidence), field, message)
	iss.Confidence = clamp01(confidence)
	return iss
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
