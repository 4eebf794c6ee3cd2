// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for caller-provided identifiers that are
// embedded in storage keys or URL paths. Using these validators prevents key
// injection (a patient ID containing "/" would cross storage key prefixes)
// and path traversal.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// identifierPattern matches valid patient and report identifiers.
// Allows: letters, digits, then dots, underscores, hyphens.
// Max length: 64 characters.
var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

// ValidatePatientID validates a patient identifier before it is embedded
// in a storage key or URL path.
//
// Valid identifiers:
//   - 1-64 characters
//   - Letters A-Z, a-z and digits 0-9
//   - Dots (.), underscores (_), and hyphens (-) after the first character
//
// Returns an error if the identifier is invalid.
//
// Example:
//
//	if err := validation.ValidatePatientID(patientID); err != nil {
//	    return nil, fmt.Errorf("invalid patient id: %w", err)
//	}
//	// Safe to use as a key segment
func ValidatePatientID(id string) error {
	if id == "" {
		return fmt.Errorf("patient id cannot be empty")
	}

	if !identifierPattern.MatchString(id) {
		return fmt.Errorf("invalid patient id format: %q (must be 1-64 alphanumeric chars, dots, underscores, or hyphens)", id)
	}

	return nil
}

// ValidateReportID validates a report identifier. Report IDs follow the
// same grammar as patient IDs and end up in the same keyspace.
func ValidateReportID(id string) error {
	if id == "" {
		return fmt.Errorf("report id cannot be empty")
	}

	if !identifierPattern.MatchString(id) {
		return fmt.Errorf("invalid report id format: %q (must be 1-64 alphanumeric chars, dots, underscores, or hyphens)", id)
	}

	return nil
}

// ValidatePatientIDs validates multiple patient identifiers.
// Returns an error listing all invalid identifiers if any fail validation.
func ValidatePatientIDs(ids []string) error {
	var invalid []string
	for _, id := range ids {
		if err := ValidatePatientID(id); err != nil {
			invalid = append(invalid, id)
		}
	}
	if len(invalid) > 0 {
		return fmt.Errorf("invalid patient ids: %s", strings.Join(invalid, ", "))
	}
	return nil
}
