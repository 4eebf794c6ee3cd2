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
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/MedQA/services/qa/issue"
	"github.com/AleutianAI/MedQA/services/qa/model"
	"github.com/AleutianAI/MedQA/services/qa/qualitymetrics"
)

// memStore records persisted assessments.
type memStore struct {
	mu    sync.Mutex
	saved []*Assessment
}

func (m *memStore) Put(_ context.Context, a *Assessment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, a)
	return nil
}

func cleanBundle() *model.AnalysisBundle {
	age := 64
	return &model.AnalysisBundle{
		ReportID: "r-1",
		Patient: model.PatientRecord{
			PatientID: "p-1",
			Name:      "Maria Alvarez",
			Age:       &age,
			BirthYear: time.Now().Year() - age,
			Diagnoses: []model.Diagnosis{
				{Condition: "hypertension", ICD10Code: "I10", Status: "active"},
			},
			Medications: []model.Medication{
				{Name: "lisinopril", Dosage: "10mg", Frequency: "daily"},
			},
		},
		Summary: &model.MedicalSummary{
			PatientID:         "p-1",
			PatientName:       "Maria Alvarez",
			SummaryText:       "Patient has well-controlled hypertension on lisinopril.",
			KeyConditions:     []model.Condition{{Name: "hypertension", ICD10Code: "I10", Confidence: 0.95}},
			MedicationSummary: "lisinopril 10mg daily",
			GeneratedAt:       time.Now(),
			DataQualityScore:  0.9,
		},
		Research: &model.ResearchAnalysis{
			PatientID: "p-1",
			Findings: []model.ResearchFinding{
				researchFinding("The Lancet", "2021-05-01"),
				researchFinding("JAMA", "2023-02-01"),
				researchFinding("BMJ", "2025-01-15"),
			},
			AnalysisConfidence:    0.9,
			ConditionCorrelations: map[string][]int{"hypertension": {0, 1, 2}},
		},
		ProcessingTime: 30 * time.Second,
		GeneratedAt:    time.Now(),
	}
}

func researchFinding(journal, date string) model.ResearchFinding {
	return model.ResearchFinding{
		Title:           "Blood pressure control outcomes in adults with hypertension",
		Authors:         []string{"Okafor A", "Tran M"},
		Journal:         journal,
		PublicationDate: date,
		DOI:             "10.1056/NEJMoa2400001",
		StudyType:       "randomized_controlled_trial",
		RelevanceScore:  0.85,
		KeyFindings:     "Intensive control reduced events in hypertension.",
	}
}

func TestEngine_Assess_CleanBundle(t *testing.T) {
	e, err := NewEngine(nil)
	require.NoError(t, err)

	a, err := e.Assess(context.Background(), cleanBundle())
	require.NoError(t, err)

	// 0.4*0.8 data + 0.3*1.0 no risk + 0.3*0.9 research confidence
	assert.InDelta(t, 0.89, a.OverallScore, 1e-9)
	assert.Equal(t, LevelGood, a.Level)
	assert.True(t, a.PassedValidation)
	assert.Equal(t, 0.8, a.DataQualityScore)
	assert.Zero(t, a.HallucinationRisk)
	assert.Equal(t, "p-1", a.PatientID)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", a.ID.String())
}

func TestEngine_Assess_CriticalIssueOverridesLevel(t *testing.T) {
	e, err := NewEngine(nil)
	require.NoError(t, err)

	bundle := cleanBundle()
	bundle.Summary.PatientID = "p-999" // wrong patient entirely

	a, err := e.Assess(context.Background(), bundle)
	require.NoError(t, err)

	assert.Equal(t, LevelCritical, a.Level)
	assert.False(t, a.PassedValidation)
	assert.Contains(t, a.Recommendations,
		"Route this analysis for human clinical review before any downstream use.")
}

func TestEngine_Assess_HallucinationRisk(t *testing.T) {
	e, err := NewEngine(nil)
	require.NoError(t, err)

	bundle := cleanBundle()
	bundle.Summary.KeyConditions = append(bundle.Summary.KeyConditions,
		model.Condition{Name: "glorbotic flux imbalance", Confidence: 0.9})

	a, err := e.Assess(context.Background(), bundle)
	require.NoError(t, err)

	assert.Greater(t, a.HallucinationRisk, 0.0)
	assert.Less(t, a.OverallScore, 0.89)

	var hallucinated int
	for _, iss := range a.Issues {
		if iss.Category == issue.CategoryHallucination {
			hallucinated++
		}
	}
	assert.Positive(t, hallucinated, "the fabricated condition must surface as a hallucination issue")
}

func TestEngine_Assess_MissingResearch(t *testing.T) {
	e, err := NewEngine(nil)
	require.NoError(t, err)

	bundle := cleanBundle()
	bundle.Research = nil

	a, err := e.Assess(context.Background(), bundle)
	require.NoError(t, err)

	assert.Equal(t, 0.5, a.ResearchQualityScore)
}

func TestEngine_Assess_UnsetAnalysisConfidence(t *testing.T) {
	e, err := NewEngine(nil)
	require.NoError(t, err)

	bundle := cleanBundle()
	bundle.Research.AnalysisConfidence = 0

	a, err := e.Assess(context.Background(), bundle)
	require.NoError(t, err)

	assert.Equal(t, 0.7, a.ResearchQualityScore)
}

func TestEngine_Assess_PersistsAndCollects(t *testing.T) {
	store := &memStore{}
	collector := qualitymetrics.NewCollector(nil, nil)

	e, err := NewEngine(nil, WithStore(store), WithCollector(collector))
	require.NoError(t, err)

	_, err = e.Assess(context.Background(), cleanBundle())
	require.NoError(t, err)

	require.Len(t, store.saved, 1)
	assert.Equal(t, "r-1", store.saved[0].ReportID)

	// Seven canonical metrics per run.
	assert.Len(t, collector.History(), 7)
	assert.Same(t, collector, e.Collector())
}

func TestEngine_Assess_NilBundle(t *testing.T) {
	e, err := NewEngine(nil)
	require.NoError(t, err)

	_, err = e.Assess(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNilBundle)
}

func TestEngine_Assess_CancelledContext(t *testing.T) {
	store := &memStore{}
	e, err := NewEngine(nil, WithStore(store))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a, err := e.Assess(ctx, cleanBundle())
	require.Error(t, err)
	require.NotNil(t, a)
	assert.Equal(t, LevelFailed, a.Level)
	assert.False(t, a.PassedValidation)
	assert.Empty(t, store.saved, "aborted runs must not be persisted")
}

func TestEngine_Assess_Stats(t *testing.T) {
	e, err := NewEngine(nil)
	require.NoError(t, err)

	_, err = e.Assess(context.Background(), cleanBundle())
	require.NoError(t, err)

	stats := e.Stats()
	assert.Equal(t, int64(1), stats.Runs)
	assert.Equal(t, int64(1), stats.Passed)
}

func TestParseQualityLevel(t *testing.T) {
	l, err := ParseQualityLevel("good")
	require.NoError(t, err)
	assert.Equal(t, LevelGood, l)

	_, err = ParseQualityLevel("superb")
	assert.Error(t, err)
}

func TestLevelForScore(t *testing.T) {
	tests := []struct {
		score float64
		want  QualityLevel
	}{
		{0.97, LevelExcellent},
		{0.95, LevelExcellent},
		{0.90, LevelGood},
		{0.75, LevelAcceptable},
		{0.60, LevelPoor},
		{0.40, LevelFailed},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, levelForScore(tt.score), "score %v", tt.score)
	}
}

func TestAssessment_ToMap(t *testing.T) {
	e, err := NewEngine(nil)
	require.NoError(t, err)

	a, err := e.Assess(context.Background(), cleanBundle())
	require.NoError(t, err)

	m := a.ToMap()
	assert.Equal(t, "r-1", m["report_id"])
	assert.Equal(t, string(LevelGood), m["level"])
	assert.Equal(t, a.OverallScore, m["overall_score"])
}
