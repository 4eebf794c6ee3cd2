// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package issue

import "testing"

func TestSeverityForConfidence(t *testing.T) {
	tests := []struct {
		confidence float64
		want       Severity
	}{
		{0.0, SeverityCritical},
		{0.29, SeverityCritical},
		{0.3, SeverityError},
		{0.49, SeverityError},
		{0.5, SeverityWarning},
		{0.69, SeverityWarning},
		{0.7, SeverityInfo},
		{1.0, SeverityInfo},
	}

	for _, tt := range tests {
		if got := SeverityForConfidence(tt.confidence); got != tt.want {
			t.Errorf("SeverityForConfidence(%v) = %v, want %v", tt.confidence, got, tt.want)
		}
	}
}

func TestParseSeverity_Unknown(t *testing.T) {
	if _, err := ParseSeverity("fatal"); err == nil {
		t.Error("expected error for unknown severity")
	}
	s, err := ParseSeverity("critical")
	if err != nil || s != SeverityCritical {
		t.Errorf("ParseSeverity(critical) = %v, %v", s, err)
	}
}

func TestWorst(t *testing.T) {
	if Worst(SeverityInfo, SeverityError) != SeverityError {
		t.Error("Worst should pick the higher rank")
	}
	if Worst(SeverityCritical, SeverityWarning) != SeverityCritical {
		t.Error("Worst should keep the higher rank on the left")
	}
}

func TestBuildReport_NoIssues(t *testing.T) {
	report := BuildReport("r-1", nil)

	if report.Status != StatusPassed {
		t.Errorf("Status = %v, want passed", report.Status)
	}
	if report.Score != 1.0 {
		t.Errorf("Score = %v, want 1.0", report.Score)
	}
	if len(report.Issues) != 0 {
		t.Errorf("Issues = %v, want empty", report.Issues)
	}
	if len(report.Recommendations) != 0 {
		t.Errorf("Recommendations = %v, want empty", report.Recommendations)
	}
}

func TestBuildReport_CriticalFails(t *testing.T) {
	issues := []Issue{
		New(CategoryTerminology, SeverityWarning, "summary.key_conditions[0]", "unknown term"),
		New(CategoryHallucination, SeverityCritical, "summary.key_conditions[1]", "fabricated condition"),
	}
	report := BuildReport("r-2", issues)

	if report.Status != StatusFailed {
		t.Errorf("Status = %v, want failed", report.Status)
	}
	if report.Score != 0.0 {
		t.Errorf("Score = %v, want 0.0", report.Score)
	}
	if report.Issues[0].Severity != SeverityCritical {
		t.Error("issues should be sorted most severe first")
	}
	if !report.HasBlockingIssues() {
		t.Error("HasBlockingIssues should be true with a critical issue")
	}
}

func TestBuildReport_ErrorYieldsWarningStatus(t *testing.T) {
	issues := []Issue{
		New(CategoryDemographics, SeverityError, "patient.name", "name mismatch"),
		New(CategoryCompleteness, SeverityWarning, "summary", "short summary"),
	}
	report := BuildReport("r-3", issues)

	if report.Status != StatusWarning {
		t.Errorf("Status = %v, want warning", report.Status)
	}
	if report.Score != 0.5 {
		t.Errorf("Score = %v, want 0.5", report.Score)
	}
}

func TestBuildReport_WarningsOnlyPass(t *testing.T) {
	issues := []Issue{
		New(CategoryCitation, SeverityWarning, "research.findings[0].journal", "unknown journal"),
		New(CategoryRelevance, SeverityInfo, "research", "few findings"),
	}
	report := BuildReport("r-4", issues)

	if report.Status != StatusPassedWithWarnings {
		t.Errorf("Status = %v, want passed_with_warnings", report.Status)
	}
	if report.Score != 0.8 {
		t.Errorf("Score = %v, want 0.8", report.Score)
	}
	if report.Count(SeverityWarning) != 1 || report.Count(SeverityInfo) != 1 {
		t.Errorf("CountBySeverity = %v", report.CountBySeverity)
	}
}

func TestBuildReport_RecommendationsDeduplicated(t *testing.T) {
	issues := []Issue{
		New(CategoryHallucination, SeverityError, "a", "x"),
		New(CategoryHallucination, SeverityWarning, "b", "y"),
		New(CategoryTemporal, SeverityWarning, "c", "z"),
	}
	report := BuildReport("r-5", issues)

	if len(report.Recommendations) != 2 {
		t.Errorf("Recommendations = %v, want one per category", report.Recommendations)
	}
}

func TestFromConfidence_ClampsAndMaps(t *testing.T) {
	iss := FromConfidence(CategoryTerminology, -0.5, "f", "m")
	if iss.Confidence != 0 {
		t.Errorf("Confidence = %v, want clamped to 0", iss.Confidence)
	}
	if iss.Severity != SeverityCritical {
		t.Errorf("Severity = %v, want critical", iss.Severity)
	}
	if iss.ID == "" || iss.DetectedAt.IsZero() {
		t.Error("issue should carry an ID and timestamp")
	}
}
