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

import (
	"sort"
	"time"
)

// Status is the overall outcome of a validation run.
type Status string

const (
	// StatusPassed means no issues were found.
	StatusPassed Status = "passed"

	// StatusPassedWithWarnings means only warnings or notes were found.
	StatusPassedWithWarnings Status = "passed_with_warnings"

	// StatusWarning means errors were found but nothing blocking.
	StatusWarning Status = "warning"

	// StatusFailed means at least one critical issue blocks release.
	StatusFailed Status = "failed"
)

// IsValid reports whether s is one of the defined statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusPassed, StatusPassedWithWarnings, StatusWarning, StatusFailed:
		return true
	default:
		return false
	}
}

// Report aggregates the issues from a full validation run.
type Report struct {
	// ReportID ties the report back to the analysis it validated.
	ReportID string `json:"report_id"`

	// GeneratedAt is when the report was built.
	GeneratedAt time.Time `json:"generated_at"`

	// Status is the overall outcome.
	Status Status `json:"status"`

	// Score is the overall validation score in [0, 1].
	Score float64 `json:"score"`

	// Issues holds every finding, most severe first.
	Issues []Issue `json:"issues"`

	// CountBySeverity counts issues per severity.
	CountBySeverity map[Severity]int `json:"count_by_severity"`

	// Recommendations are remediation hints derived from the issues.
	Recommendations []string `json:"recommendations,omitempty"`
}

// Count returns the number of issues at the given severity.
func (r *Report) Count(s Severity) int {
	return r.CountBySeverity[s]
}

// HasBlockingIssues reports whether the report contains critical issues.
func (r *Report) HasBlockingIssues() bool {
	return r.CountBySeverity[SeverityCritical] > 0
}

// BuildReport aggregates issues into a Report.
//
// Description:
//
//	Status and score follow a strict precedence: a clean run passes with
//	score 1.0; any critical issue fails the report with score 0.0; any
//	error (without criticals) yields warning status and score 0.5;
//	anything else passes with warnings at score 0.8. Issues are sorted
//	most severe first, ties broken by category then field for
//	deterministic output.
//
// Inputs:
//
//	reportID - Identifier of the validated analysis.
//	issues - All findings from the run. May be nil.
//
// Outputs:
//
//	*Report - Never nil.
func BuildReport(reportID string, issues []Issue) *Report {
	sorted := make([]Issue, len(issues))
	copy(sorted, issues)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Severity.Rank() != sorted[j].Severity.Rank() {
			return sorted[i].Severity.Rank() > sorted[j].Severity.Rank()
		}
		if sorted[i].Category != sorted[j].Category {
			return sorted[i].Category < sorted[j].Category
		}
		return sorted[i].Field < sorted[j].Field
	})

	counts := make(map[Severity]int, 4)
	for _, iss := range sorted {
		counts[iss.Severity]++
	}

	report := &Report{
		ReportID:        reportID,
		GeneratedAt:     time.Now().UTC(),
		Issues:          sorted,
		CountBySeverity: counts,
	}

	switch {
	case len(sorted) == 0:
		report.Status = StatusPassed
		report.Score = 1.0
	case counts[SeverityCritical] > 0:
		report.Status = StatusFailed
		report.Score = 0.0
	case counts[SeverityError] > 0:
		report.Status = StatusWarning
		report.Score = 0.5
	default:
		report.Status = StatusPassedWithWarnings
		report.Score = 0.8
	}

	report.Recommendations = recommendationsFor(sorted)
	return report
}

// recommendationsFor derives one remediation hint per category present,
// in severity order.
func recommendationsFor(issues []Issue) []string {
	seen := make(map[Category]bool, len(issues))
	var recs []string
	for _, iss := range issues {
		if seen[iss.Category] {
			continue
		}
		seen[iss.Category] = true
		if rec := recommendationForCategory(iss.Category); rec != "" {
			recs = append(recs, rec)
		}
	}
	return recs
}

func recommendationForCategory(c Category) string {
	switch c {
	case CategoryTerminology:
		return "Review flagged terms against standard medical vocabularies before release."
	case CategoryHallucination:
		return "Verify flagged claims against the source patient record; remove unsupported statements."
	case CategoryDemographics:
		return "Reconcile patient identity fields between the record and the generated summary."
	case CategoryTemporal:
		return "Correct event dates that fall outside the plausible timeline."
	case CategoryCompleteness:
		return "Populate the missing sections or mark them explicitly as unavailable."
	case CategoryCitation:
		return "Replace or re-verify citations from unrecognized or untrustworthy sources."
	case CategoryRelevance:
		return "Re-run literature retrieval scoped to the patient's documented conditions."
	case CategoryConsistency:
		return "Resolve contradictions between analysis sections before sign-off."
	default:
		return ""
	}
}
