// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package hallucination

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/AleutianAI/MedQA/services/qa/issue"
	"github.com/AleutianAI/MedQA/services/qa/model"
	"github.com/AleutianAI/MedQA/services/qa/terminology"
)

// Checker inspects one aspect of an analysis bundle.
//
// Implementations must be stateless or internally synchronized; the
// detector may reuse them across concurrent runs.
type Checker interface {
	// Name identifies the checker in metrics and span events.
	Name() string

	// Check returns all issues found. An empty slice means the bundle
	// passed this checker.
	Check(ctx context.Context, bundle *model.AnalysisBundle) []issue.Issue
}

// conditionCheck verifies that summary conditions are real terminology
// and are grounded in the source patient record.
type conditionCheck struct {
	cfg  *ConditionCheckConfig
	term *terminology.Validator
}

func (c *conditionCheck) Name() string { return "conditions" }

func (c *conditionCheck) Check(ctx context.Context, bundle *model.AnalysisBundle) []issue.Issue {
	if bundle.Summary == nil {
		return nil
	}

	documented := documentedConditions(bundle.Patient, c.term)

	var issues []issue.Issue
	for i, cond := range bundle.Summary.KeyConditions {
		field := fmt.Sprintf("summary.key_conditions[%d]", i)

		match, termIss := c.term.ValidateCondition(cond.Name, field)
		if termIss != nil {
			issues = append(issues, *termIss)
		}

		if icdIss := c.term.ValidateICD10(cond.ICD10Code, cond.Name, field+".icd10_code"); icdIss != nil {
			issues = append(issues, *icdIss)
		}

		key := strings.ToLower(strings.TrimSpace(cond.Name))
		if match.Canonical != "" {
			key = strings.ToLower(match.Canonical)
		}
		if documented[key] {
			continue
		}

		if match.Confidence < c.cfg.FabricationThreshold {
			iss := issue.FromConfidence(issue.CategoryHallucination, match.Confidence, field,
				fmt.Sprintf("condition %q is unrecognized and absent from the patient record; likely fabricated", cond.Name))
			iss.Evidence = cond.Name
			iss.Suggestion = "Remove the condition or cite its source in the record."
			issues = append(issues, iss)
		} else {
			iss := issue.New(issue.CategoryHallucination, issue.SeverityWarning, field,
				fmt.Sprintf("condition %q is not documented in the patient record", cond.Name))
			iss.Evidence = cond.Name
			iss.Confidence = match.Confidence
			issues = append(issues, iss)
		}
	}
	return issues
}

// documentedConditions collects the record's condition vocabulary,
// keyed by canonical form where one exists.
func documentedConditions(rec model.PatientRecord, term *terminology.Validator) map[string]bool {
	documented := make(map[string]bool)
	add := func(name string) {
		if name == "" {
			return
		}
		documented[strings.ToLower(strings.TrimSpace(name))] = true
		if match, _ := term.ValidateCondition(name, ""); match.Canonical != "" {
			documented[strings.ToLower(match.Canonical)] = true
		}
	}
	for _, c := range rec.Conditions {
		add(c.Name)
	}
	for _, d := range rec.Diagnoses {
		add(d.Condition)
	}
	return documented
}

// medicationCheck verifies drug names in the record and flags drugs
// mentioned by the summary that the record does not contain.
type medicationCheck struct {
	cfg  *MedicationCheckConfig
	term *terminology.Validator
}

func (c *medicationCheck) Name() string { return "medications" }

func (c *medicationCheck) Check(ctx context.Context, bundle *model.AnalysisBundle) []issue.Issue {
	var issues []issue.Issue

	recorded := make(map[string]bool, len(bundle.Patient.Medications))
	for i, med := range bundle.Patient.Medications {
		recorded[strings.ToLower(strings.TrimSpace(med.Name))] = true

		field := fmt.Sprintf("patient.medications[%d]", i)
		if _, iss := c.term.ValidateMedication(med.Name, field); iss != nil {
			issues = append(issues, *iss)
		}
	}

	if bundle.Summary == nil || bundle.Summary.MedicationSummary == "" {
		return issues
	}

	for _, drug := range c.term.KnownDrugsIn(bundle.Summary.MedicationSummary) {
		if recorded[drug] {
			continue
		}
		iss := issue.New(issue.CategoryHallucination, issue.SeverityWarning, "summary.medication_summary",
			fmt.Sprintf("medication %q appears in the summary but not in the patient record", drug))
		iss.Evidence = drug
		iss.Suggestion = "Confirm the medication against the record or remove it from the summary."
		issues = append(issues, iss)
	}
	return issues
}

// demographicsCheck verifies patient identity consistency between the
// record and the generated summary.
type demographicsCheck struct {
	cfg *DemographicsCheckConfig
}

func (c *demographicsCheck) Name() string { return "demographics" }

func (c *demographicsCheck) Check(ctx context.Context, bundle *model.AnalysisBundle) []issue.Issue {
	if bundle.Summary == nil {
		return nil
	}

	var issues []issue.Issue

	if bundle.Summary.PatientID != "" && bundle.Summary.PatientID != bundle.Patient.PatientID {
		iss := issue.New(issue.CategoryDemographics, issue.SeverityCritical, "summary.patient_id",
			"summary patient ID does not match the source record")
		iss.Evidence = bundle.Summary.PatientID
		iss.Expected = bundle.Patient.PatientID
		issues = append(issues, iss)
	}

	if bundle.Summary.PatientName != "" && bundle.Patient.Name != "" {
		similarity := terminology.Similarity(bundle.Patient.Name, bundle.Summary.PatientName)
		if similarity < c.cfg.NameSimilarityThreshold {
			iss := issue.New(issue.CategoryDemographics, issue.SeverityError, "summary.patient_name",
				fmt.Sprintf("summary patient name diverges from the record (similarity %.2f)", similarity))
			iss.Evidence = bundle.Summary.PatientName
			iss.Expected = bundle.Patient.Name
			iss.Confidence = similarity
			issues = append(issues, iss)
		}
	}
	return issues
}

// temporalCheck flags event years outside the plausible timeline.
type temporalCheck struct {
	cfg *TemporalCheckConfig

	// now is injectable for tests. Nil means time.Now.
	now func() time.Time
}

func (c *temporalCheck) Name() string { return "temporal" }

func (c *temporalCheck) Check(ctx context.Context, bundle *model.AnalysisBundle) []issue.Issue {
	nowFn := c.now
	if nowFn == nil {
		nowFn = time.Now
	}
	thisYear := nowFn().Year()
	maxYear := thisYear + c.cfg.FutureGraceYears

	var issues []issue.Issue

	if bundle.Patient.Age != nil && bundle.Patient.BirthYear > 0 {
		implied := thisYear - bundle.Patient.BirthYear
		diff := implied - *bundle.Patient.Age
		if diff > c.cfg.AgeToleranceYears || diff < -c.cfg.AgeToleranceYears {
			iss := issue.New(issue.CategoryTemporal, issue.SeverityWarning, "patient.age",
				fmt.Sprintf("reported age %d disagrees with birth year %d",
					*bundle.Patient.Age, bundle.Patient.BirthYear))
			iss.Evidence = fmt.Sprintf("%d", *bundle.Patient.Age)
			iss.Expected = fmt.Sprintf("%d", implied)
			issues = append(issues, iss)
		}
	}

	if bundle.Summary == nil || len(bundle.Summary.EventYears) == 0 {
		return issues
	}

	for i, year := range bundle.Summary.EventYears {
		field := fmt.Sprintf("summary.event_years[%d]", i)
		switch {
		case year > maxYear:
			iss := issue.New(issue.CategoryTemporal, issue.SeverityError, field,
				fmt.Sprintf("event year %d is in the future", year))
			iss.Evidence = fmt.Sprintf("%d", year)
			issues = append(issues, iss)
		case bundle.Patient.BirthYear > 0 && year < bundle.Patient.BirthYear:
			iss := issue.New(issue.CategoryTemporal, issue.SeverityError, field,
				fmt.Sprintf("event year %d predates the patient's birth year %d", year, bundle.Patient.BirthYear))
			iss.Evidence = fmt.Sprintf("%d", year)
			issues = append(issues, iss)
		}
	}
	return issues
}

// completenessCheck flags missing required sections.
type completenessCheck struct {
	cfg *CompletenessCheckConfig
}

func (c *completenessCheck) Name() string { return "completeness" }

func (c *completenessCheck) Check(ctx context.Context, bundle *model.AnalysisBundle) []issue.Issue {
	var issues []issue.Issue

	if bundle.Summary == nil {
		issues = append(issues, issue.New(issue.CategoryCompleteness, issue.SeverityWarning,
			"summary", "medical summary section is missing"))
	} else {
		if len(strings.TrimSpace(bundle.Summary.SummaryText)) < c.cfg.MinSummaryLength {
			issues = append(issues, issue.New(issue.CategoryCompleteness, issue.SeverityWarning,
				"summary.summary_text", "summary text is missing or too short to be meaningful"))
		}
		if len(bundle.Patient.Medications) > 0 && bundle.Summary.MedicationSummary == "" {
			issues = append(issues, issue.New(issue.CategoryCompleteness, issue.SeverityInfo,
				"summary.medication_summary", "patient has medications but the summary omits a medication section"))
		}
	}

	if bundle.Research == nil {
		issues = append(issues, issue.New(issue.CategoryCompleteness, issue.SeverityInfo,
			"research", "research analysis section is missing"))
	}
	return issues
}
