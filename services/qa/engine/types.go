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
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/MedQA/services/qa/issue"
)

// QualityLevel grades an assessment outcome.
type QualityLevel string

const (
	LevelExcellent  QualityLevel = "excellent"
	LevelGood       QualityLevel = "good"
	LevelAcceptable QualityLevel = "acceptable"
	LevelPoor       QualityLevel = "poor"
	LevelCritical   QualityLevel = "critical"
	LevelFailed     QualityLevel = "failed"
)

// IsValid reports whether l is one of the defined levels.
func (l QualityLevel) IsValid() bool {
	switch l {
	case LevelExcellent, LevelGood, LevelAcceptable, LevelPoor, LevelCritical, LevelFailed:
		return true
	}
	return false
}

// ParseQualityLevel converts a string to a QualityLevel, rejecting
// unknown values.
func ParseQualityLevel(s string) (QualityLevel, error) {
	l := QualityLevel(s)
	if !l.IsValid() {
		return "", fmt.Errorf("unknown quality level %q", s)
	}
	return l, nil
}

// levelForScore grades a composite score. Critical issues override this
// in Assess.
func levelForScore(score float64) QualityLevel {
	switch {
	case score >= 0.95:
		return LevelExcellent
	case score >= 0.85:
		return LevelGood
	case score >= 0.70:
		return LevelAcceptable
	case score >= 0.50:
		return LevelPoor
	default:
		return LevelFailed
	}
}

// Assessment is the engine's verdict on one analysis bundle.
type Assessment struct {
	ID        uuid.UUID `json:"id"`
	ReportID  string    `json:"report_id"`
	PatientID string    `json:"patient_id"`
	Timestamp time.Time `json:"timestamp"`

	OverallScore         float64 `json:"overall_score"`
	DataQualityScore     float64 `json:"data_quality_score"`
	HallucinationRisk    float64 `json:"hallucination_risk"`
	ResearchQualityScore float64 `json:"research_quality_score"`

	Level            QualityLevel  `json:"level"`
	Issues           []issue.Issue `json:"issues,omitempty"`
	Recommendations  []string      `json:"recommendations,omitempty"`
	PassedValidation bool          `json:"passed_validation"`

	// ProcessingTime is the upstream generation time carried through
	// for the timeliness metric.
	ProcessingTime time.Duration `json:"processing_time_ns,omitempty"`
}

// ToMap flattens the assessment for template rendering and log export.
func (a *Assessment) ToMap() map[string]any {
	return map[string]any{
		"id":                     a.ID.String(),
		"report_id":              a.ReportID,
		"patient_id":             a.PatientID,
		"timestamp":              a.Timestamp,
		"overall_score":          a.OverallScore,
		"data_quality_score":     a.DataQualityScore,
		"hallucination_risk":     a.HallucinationRisk,
		"research_quality_score": a.ResearchQualityScore,
		"level":                  string(a.Level),
		"issue_count":            len(a.Issues),
		"recommendations":        a.Recommendations,
		"passed_validation":      a.PassedValidation,
	}
}
