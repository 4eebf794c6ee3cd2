// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"strings"
	"testing"
)

func TestValidatePatientID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		// Valid identifiers
		{"simple", "p-1024", false},
		{"single char", "a", false},
		{"uuid style", "5b8c0e9a-1f2d-4e3b-9c8a-7d6e5f4a3b2c", false},
		{"mrn style", "MRN.2024.00991", false},
		{"underscores", "patient_42", false},
		{"max length", strings.Repeat("a", 64), false},

		// Invalid identifiers - injection attempts
		{"empty", "", true},
		{"key injection", "p-1/assessment_id", true},
		{"path traversal", "../secrets", true},
		{"newline", "p-1\nassessment", true},
		{"null byte", "p-1\x00", true},
		{"spaces", "p 1", true},
		{"starts with dot", ".p-1", true},
		{"starts with hyphen", "-p-1", true},
		{"too long", strings.Repeat("a", 65), true},
		{"unicode", "patient™", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePatientID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePatientID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestValidateReportID(t *testing.T) {
	if err := ValidateReportID("report-2026-08-001"); err != nil {
		t.Errorf("ValidateReportID(valid) error = %v", err)
	}
	if err := ValidateReportID("report/../other"); err == nil {
		t.Error("ValidateReportID should reject path separators")
	}
	if err := ValidateReportID(""); err == nil {
		t.Error("ValidateReportID should reject the empty string")
	}
}

func TestValidatePatientIDs(t *testing.T) {
	if err := ValidatePatientIDs([]string{"p-1", "p-2"}); err != nil {
		t.Errorf("ValidatePatientIDs(valid) error = %v", err)
	}

	err := ValidatePatientIDs([]string{"p-1", "bad/id", "also bad"})
	if err == nil {
		t.Fatal("ValidatePatientIDs should report invalid entries")
	}
	if !strings.Contains(err.Error(), "bad/id") || !strings.Contains(err.Error(), "also bad") {
		t.Errorf("error should list every invalid id, got %v", err)
	}
}
