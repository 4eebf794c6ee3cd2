// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package research

import (
	"math"
	"testing"
	"time"

	"github.com/AleutianAI/MedQA/services/qa/issue"
	"github.com/AleutianAI/MedQA/services/qa/model"
)

// fixedNow pins the clock so year arithmetic is stable.
var fixedNow = func() time.Time {
	return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
}

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	cfg := DefaultConfig()
	cfg.now = fixedNow
	v, err := NewValidator(cfg)
	if err != nil {
		t.Fatalf("NewValidator() error = %v", err)
	}
	return v
}

func goodFinding() model.ResearchFinding {
	return model.ResearchFinding{
		Title:           "Intensive blood pressure control in adults with hypertension",
		Authors:         []string{"Okafor A", "Lindqvist S", "Tran M"},
		Journal:         "The Lancet",
		PublicationDate: "2025-02-14",
		DOI:             "10.1016/S0140-6736(25)00001-2",
		StudyType:       "randomized_controlled_trial",
		RelevanceScore:  0.85,
		KeyFindings:     "Lower target reduced cardiovascular events in hypertension.",
	}
}

func TestValidateFinding_CleanCitation(t *testing.T) {
	v := newTestValidator(t)
	f := goodFinding()

	issues := v.ValidateFinding(&f, []string{"hypertension"}, "research.findings[0]")
	if len(issues) != 0 {
		t.Errorf("clean citation should raise no issues, got %+v", issues)
	}
}

func TestValidateFinding_PredatoryJournalIsCritical(t *testing.T) {
	v := newTestValidator(t)
	f := goodFinding()
	f.Journal = "International Journal of Advanced Medical Research"

	issues := v.ValidateFinding(&f, nil, "f")
	var critical bool
	for _, iss := range issues {
		if iss.Severity == issue.SeverityCritical && iss.Category == issue.CategoryCitation {
			critical = true
		}
	}
	if !critical {
		t.Errorf("predatory journal should be critical, got %+v", issues)
	}
}

func TestValidateFinding_UnknownJournalWarns(t *testing.T) {
	v := newTestValidator(t)
	f := goodFinding()
	f.Journal = "Quarterly Bulletin of Regional Medicine"

	issues := v.ValidateFinding(&f, nil, "f")
	var warned bool
	for _, iss := range issues {
		if iss.Field == "f.journal" && iss.Severity == issue.SeverityWarning {
			warned = true
		}
	}
	if !warned {
		t.Errorf("unknown journal should warn, got %+v", issues)
	}
}

func TestValidateFinding_Identifiers(t *testing.T) {
	v := newTestValidator(t)

	tests := []struct {
		name         string
		doi, pmid    string
		wantField    string
		wantSeverity issue.Severity
	}{
		{"malformed doi", "doi:10.1/x", "", "f.doi", issue.SeverityError},
		{"malformed pmid", "", "PMC123456", "f.pmid", issue.SeverityError},
		{"short pmid", "", "1234567", "f.pmid", issue.SeverityError},
		{"no identifiers", "", "", "f", issue.SeverityInfo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := goodFinding()
			f.DOI, f.PMID = tt.doi, tt.pmid

			issues := v.ValidateFinding(&f, nil, "f")
			var found bool
			for _, iss := range issues {
				if iss.Field == tt.wantField && iss.Severity == tt.wantSeverity {
					found = true
				}
			}
			if !found {
				t.Errorf("want %v on %s, got %+v", tt.wantSeverity, tt.wantField, issues)
			}
		})
	}
}

func TestValidateFinding_PlaceholderTitle(t *testing.T) {
	v := newTestValidator(t)
	f := goodFinding()
	f.Title = "Sample study about treatment outcomes"

	issues := v.ValidateFinding(&f, nil, "f")
	var flagged bool
	for _, iss := range issues {
		if iss.Field == "f.title" && iss.Severity == issue.SeverityError {
			flagged = true
		}
	}
	if !flagged {
		t.Errorf("placeholder title should be an error, got %+v", issues)
	}
}

func TestValidateFinding_YearBounds(t *testing.T) {
	v := newTestValidator(t)

	tests := []struct {
		name         string
		date         string
		wantCategory issue.Category
		wantSeverity issue.Severity
	}{
		{"future year", "2031-01-01", issue.CategoryTemporal, issue.SeverityError},
		{"pre-1900", "1885", issue.CategoryTemporal, issue.SeverityWarning},
		{"stale", "1999-03-01", issue.CategoryTemporal, issue.SeverityInfo},
		{"unparseable", "circa 2020", issue.CategoryCitation, issue.SeverityWarning},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := goodFinding()
			f.PublicationDate = tt.date

			issues := v.ValidateFinding(&f, nil, "f")
			var found bool
			for _, iss := range issues {
				if iss.Category == tt.wantCategory && iss.Severity == tt.wantSeverity {
					found = true
				}
			}
			if !found {
				t.Errorf("want %v/%v for date %q, got %+v", tt.wantCategory, tt.wantSeverity, tt.date, issues)
			}
		})
	}
}

func TestValidateFinding_LowExplicitRelevance(t *testing.T) {
	v := newTestValidator(t)
	f := goodFinding()
	f.RelevanceScore = 0.15

	issues := v.ValidateFinding(&f, []string{"hypertension"}, "f")
	var flagged bool
	for _, iss := range issues {
		if iss.Category == issue.CategoryRelevance {
			flagged = true
		}
	}
	if !flagged {
		t.Errorf("relevance 0.15 should be flagged, got %+v", issues)
	}
}

func TestValidateFinding_NoVocabularyOverlap(t *testing.T) {
	v := newTestValidator(t)
	f := goodFinding()
	f.RelevanceScore = 0 // forces the computed-overlap path
	f.Title = "Outcomes of arthroscopic knee surgery"
	f.KeyFindings = "Recovery time improved with early mobilization."

	issues := v.ValidateFinding(&f, []string{"hypertension", "diabetes"}, "f")
	var flagged bool
	for _, iss := range issues {
		if iss.Category == issue.CategoryRelevance {
			flagged = true
		}
	}
	if !flagged {
		t.Errorf("zero overlap with conditions should warn, got %+v", issues)
	}
}

func TestValidateAnalysis_ThinEvidenceBase(t *testing.T) {
	v := newTestValidator(t)
	analysis := &model.ResearchAnalysis{
		PatientID: "p-1",
		Findings:  []model.ResearchFinding{goodFinding()},
	}

	issues := v.ValidateAnalysis(analysis, []string{"hypertension"})
	var noted bool
	for _, iss := range issues {
		if iss.Field == "research.findings" && iss.Severity == issue.SeverityInfo {
			noted = true
		}
	}
	if !noted {
		t.Errorf("one finding should be noted as thin, got %+v", issues)
	}
}

func TestValidateAnalysis_NilAndEmpty(t *testing.T) {
	v := newTestValidator(t)

	if issues := v.ValidateAnalysis(nil, nil); issues != nil {
		t.Errorf("nil analysis should produce no issues, got %+v", issues)
	}
	empty := &model.ResearchAnalysis{PatientID: "p-1"}
	if issues := v.ValidateAnalysis(empty, nil); len(issues) != 0 {
		t.Errorf("empty analysis should produce no issues, got %+v", issues)
	}
}

func TestCredibilityScore_TopTierRecentRCT(t *testing.T) {
	v := newTestValidator(t)
	f := goodFinding()

	// 0.40 tier1 + 0.20 recent + 8/10*0.20 study + 0.10 DOI + 0.85*0.10
	want := 0.40 + 0.20 + 0.16 + 0.10 + 0.085
	got := v.CredibilityScore(&f)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("CredibilityScore() = %v, want %v", got, want)
	}
}

func TestCredibilityScore_UnknownEverything(t *testing.T) {
	v := newTestValidator(t)
	f := model.ResearchFinding{
		Title:   "Untraceable observations",
		Journal: "Quarterly Bulletin of Regional Medicine",
	}

	// 0.10 unknown journal + 0.05 no year + 0.05 unknown study
	// + 0.05 no identifiers + 0.0 relevance
	want := 0.25
	got := v.CredibilityScore(&f)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("CredibilityScore() = %v, want %v", got, want)
	}
}

func TestCredibilityScore_StudyTypeNormalization(t *testing.T) {
	v := newTestValidator(t)
	a := goodFinding()
	a.StudyType = "Meta-Analysis"
	b := goodFinding()
	b.StudyType = "meta_analysis"

	if got, want := v.CredibilityScore(&a), v.CredibilityScore(&b); got != want {
		t.Errorf("normalized study types should score equally: %v vs %v", got, want)
	}
}

func TestAggregateCredibility_ThinPenalty(t *testing.T) {
	v := newTestValidator(t)
	f := goodFinding()

	single := &model.ResearchAnalysis{PatientID: "p-1", Findings: []model.ResearchFinding{f}}
	triple := &model.ResearchAnalysis{PatientID: "p-1", Findings: []model.ResearchFinding{f, f, f}}

	per := v.CredibilityScore(&f)
	if got := v.AggregateCredibility(single); math.Abs(got-per*0.8) > 1e-9 {
		t.Errorf("single finding aggregate = %v, want %v", got, per*0.8)
	}
	if got := v.AggregateCredibility(triple); math.Abs(got-per) > 1e-9 {
		t.Errorf("three finding aggregate = %v, want %v", got, per)
	}
}

func TestAggregateCredibility_Empty(t *testing.T) {
	v := newTestValidator(t)

	if got := v.AggregateCredibility(nil); got != 0.0 {
		t.Errorf("nil analysis = %v, want 0.0", got)
	}
	if got := v.AggregateCredibility(&model.ResearchAnalysis{PatientID: "p-1"}); got != 0.0 {
		t.Errorf("empty analysis = %v, want 0.0", got)
	}
}

func TestJournalTier(t *testing.T) {
	v := newTestValidator(t)

	tests := []struct {
		journal string
		want    int
	}{
		{"The Lancet", TierTop},
		{"the lancet", TierTop},
		{"BMJ", TierStrong},
		{"BMC Medicine", TierRecognized},
		{"Quarterly Bulletin of Regional Medicine", TierUnknown},
	}
	for _, tt := range tests {
		if got := v.JournalTier(tt.journal); got != tt.want {
			t.Errorf("JournalTier(%q) = %d, want %d", tt.journal, got, tt.want)
		}
	}
}
