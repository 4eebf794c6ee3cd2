// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package model defines the normalized analysis bundle the QA engine
// validates.
//
// Every caller converts its upstream shapes into these types before
// invoking the engine. The engine never sniffs for optional attributes:
// a missing section is a nil pointer, and everything else is a concrete
// field. This keeps checkers simple and makes partial bundles explicit.
package model

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Condition is a medical condition as asserted by the patient record or
// the generated summary.
type Condition struct {
	// Name is the condition as written, e.g. "hypertension".
	Name string `json:"name" validate:"required"`

	// ICD10Code is the asserted ICD-10 code, if any.
	ICD10Code string `json:"icd10_code,omitempty"`

	// Status is active, resolved, or chronic.
	Status string `json:"status,omitempty"`

	// Confidence is the generator's own confidence in [0, 1].
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
}

// Medication is a drug mention with dosing details.
type Medication struct {
	Name      string `json:"name" validate:"required"`
	Dosage    string `json:"dosage,omitempty"`
	Frequency string `json:"frequency,omitempty"`
	Status    string `json:"status,omitempty"`
}

// Diagnosis is a dated diagnosis from the source patient record.
type Diagnosis struct {
	Condition     string `json:"condition" validate:"required"`
	ICD10Code     string `json:"icd10_code,omitempty"`
	DateDiagnosed string `json:"date_diagnosed,omitempty"`
	Status        string `json:"status,omitempty"`
}

// PatientRecord is the ground-truth patient data the analysis was
// generated from.
type PatientRecord struct {
	PatientID   string       `json:"patient_id" validate:"required"`
	Name        string       `json:"name"`
	Age         *int         `json:"age,omitempty"`
	Gender      string       `json:"gender,omitempty"`
	BirthYear   int          `json:"birth_year,omitempty"`
	Conditions  []Condition  `json:"conditions,omitempty" validate:"dive"`
	Medications []Medication `json:"medications,omitempty" validate:"dive"`
	Diagnoses   []Diagnosis  `json:"diagnoses,omitempty" validate:"dive"`
}

// MedicalSummary is the AI-generated summary under validation.
type MedicalSummary struct {
	PatientID string `json:"patient_id" validate:"required"`

	// PatientName is the name as the generator rendered it. Checked
	// against the record for demographic drift.
	PatientName string `json:"patient_name,omitempty"`

	SummaryText       string      `json:"summary_text"`
	KeyConditions     []Condition `json:"key_conditions,omitempty" validate:"dive"`
	MedicationSummary string      `json:"medication_summary,omitempty"`
	GeneratedAt       time.Time   `json:"generated_at"`

	// DataQualityScore is the generator's self-reported quality in [0, 1].
	DataQualityScore float64 `json:"data_quality_score" validate:"gte=0,lte=1"`

	// EventYears are years referenced by chronological events, used by
	// the temporal check.
	EventYears []int `json:"event_years,omitempty"`
}

// ResearchFinding is a single cited study.
type ResearchFinding struct {
	Title           string   `json:"title"`
	Authors         []string `json:"authors,omitempty"`
	Journal         string   `json:"journal"`
	PublicationDate string   `json:"publication_date,omitempty"`
	DOI             string   `json:"doi,omitempty"`
	PMID            string   `json:"pmid,omitempty"`
	StudyType       string   `json:"study_type,omitempty"`
	RelevanceScore  float64  `json:"relevance_score" validate:"gte=0,lte=1"`
	KeyFindings     string   `json:"key_findings,omitempty"`
	Citation        string   `json:"citation,omitempty"`
}

// Year returns the four-digit publication year, or 0 when the date is
// missing or unparseable. Dates are expected as YYYY or YYYY-MM-DD.
func (f *ResearchFinding) Year() int {
	s := f.PublicationDate
	if len(s) < 4 {
		return 0
	}
	year := 0
	for _, r := range s[:4] {
		if r < '0' || r > '9' {
			return 0
		}
		year = year*10 + int(r-'0')
	}
	return year
}

// ResearchAnalysis is the literature correlation section of the bundle.
type ResearchAnalysis struct {
	PatientID string            `json:"patient_id" validate:"required"`
	Findings  []ResearchFinding `json:"findings,omitempty" validate:"dive"`

	// AnalysisConfidence is the generator's confidence in [0, 1].
	// Zero means the generator did not report one.
	AnalysisConfidence float64 `json:"analysis_confidence" validate:"gte=0,lte=1"`

	// ConditionCorrelations maps condition names to indices into
	// Findings, recording which studies support which condition.
	ConditionCorrelations map[string][]int `json:"condition_correlations,omitempty"`
}

// AnalysisBundle is the single normalized input to the QA engine.
//
// Description:
//
//	Patient is always required. Summary and Research are nil when the
//	upstream pipeline did not produce them; checkers treat a nil section
//	as a completeness finding rather than an error.
type AnalysisBundle struct {
	// ReportID identifies the analysis run being validated.
	ReportID string `json:"report_id" validate:"required"`

	Patient  PatientRecord     `json:"patient" validate:"required"`
	Summary  *MedicalSummary   `json:"summary,omitempty"`
	Research *ResearchAnalysis `json:"research,omitempty"`

	// ProcessingTime is how long the upstream pipeline spent
	// generating the analysis.
	ProcessingTime time.Duration `json:"processing_time_ns,omitempty"`

	GeneratedAt time.Time `json:"generated_at"`
}

// validate is the shared validator instance. validator.Validate caches
// struct metadata, so one instance serves the whole package.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags on the bundle (required fields, score
// ranges). It covers shape only; semantic validation is the checkers'
// job.
func (b *AnalysisBundle) Validate() error {
	return validate.Struct(b)
}
