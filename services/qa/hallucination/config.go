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

import "time"

// Config controls the detector. Nil sub-configs are replaced with
// defaults at construction.
type Config struct {
	// Enabled turns detection on or off globally. When false, Detect
	// returns a passing report without running any checks.
	Enabled bool

	// Timeout bounds a full detection run. Zero means no timeout.
	Timeout time.Duration

	// ShortCircuitOnCritical stops running further checks once a
	// critical issue is found.
	ShortCircuitOnCritical bool

	Conditions   *ConditionCheckConfig
	Medications  *MedicationCheckConfig
	Demographics *DemographicsCheckConfig
	Temporal     *TemporalCheckConfig
	Completeness *CompletenessCheckConfig
}

// DefaultConfig returns the production defaults with every check enabled.
func DefaultConfig() *Config {
	return &Config{
		Enabled:                true,
		Timeout:                10 * time.Second,
		ShortCircuitOnCritical: false,
		Conditions:             DefaultConditionCheckConfig(),
		Medications:            DefaultMedicationCheckConfig(),
		Demographics:           DefaultDemographicsCheckConfig(),
		Temporal:               DefaultTemporalCheckConfig(),
		Completeness:           DefaultCompletenessCheckConfig(),
	}
}

// ConditionCheckConfig tunes the condition grounding check.
type ConditionCheckConfig struct {
	Enabled bool

	// FabricationThreshold is the terminology confidence below which an
	// ungrounded condition is treated as fabricated rather than merely
	// undocumented.
	FabricationThreshold float64
}

// DefaultConditionCheckConfig returns defaults for the condition check.
func DefaultConditionCheckConfig() *ConditionCheckConfig {
	return &ConditionCheckConfig{
		Enabled:              true,
		FabricationThreshold: 0.5,
	}
}

// MedicationCheckConfig tunes the medication grounding check.
type MedicationCheckConfig struct {
	Enabled bool
}

// DefaultMedicationCheckConfig returns defaults for the medication check.
func DefaultMedicationCheckConfig() *MedicationCheckConfig {
	return &MedicationCheckConfig{Enabled: true}
}

// DemographicsCheckConfig tunes the demographic consistency check.
type DemographicsCheckConfig struct {
	Enabled bool

	// NameSimilarityThreshold is the minimum similarity between the
	// record name and the summary's rendering of it.
	NameSimilarityThreshold float64
}

// DefaultDemographicsCheckConfig returns defaults for the demographics check.
func DefaultDemographicsCheckConfig() *DemographicsCheckConfig {
	return &DemographicsCheckConfig{
		Enabled:                 true,
		NameSimilarityThreshold: 0.8,
	}
}

// TemporalCheckConfig tunes the timeline plausibility check.
type TemporalCheckConfig struct {
	Enabled bool

	// FutureGraceYears is how far past the current year an event may
	// be dated before it is flagged. Accounts for scheduled follow-ups.
	FutureGraceYears int

	// AgeToleranceYears is how far the reported age may drift from the
	// age implied by the birth year. One year absorbs birthdays.
	AgeToleranceYears int
}

// DefaultTemporalCheckConfig returns defaults for the temporal check.
func DefaultTemporalCheckConfig() *TemporalCheckConfig {
	return &TemporalCheckConfig{
		Enabled:           true,
		FutureGraceYears:  1,
		AgeToleranceYears: 1,
	}
}

// CompletenessCheckConfig tunes the required-section check.
type CompletenessCheckConfig struct {
	Enabled bool

	// MinSummaryLength is the minimum number of characters for a
	// summary to count as present.
	MinSummaryLength int
}

// DefaultCompletenessCheckConfig returns defaults for the completeness check.
func DefaultCompletenessCheckConfig() *CompletenessCheckConfig {
	return &CompletenessCheckConfig{
		Enabled:          true,
		MinSummaryLength: 10,
	}
}
