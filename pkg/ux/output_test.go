// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"strings"
	"testing"
)

func TestIconRender(t *testing.T) {
	for _, icon := range []Icon{IconSuccess, IconWarning, IconError, IconBullet} {
		if got := icon.Render(); !strings.Contains(got, string(icon)) {
			t.Errorf("Icon(%q).Render() = %q, should contain the glyph", icon, got)
		}
	}
}

func TestStatusBadge(t *testing.T) {
	if got := StatusBadge(true); !strings.Contains(got, "MEETING") {
		t.Errorf("StatusBadge(true) = %q, want MEETING", got)
	}
	if got := StatusBadge(false); !strings.Contains(got, "BELOW") {
		t.Errorf("StatusBadge(false) = %q, want BELOW", got)
	}
}

func TestQualityBadge(t *testing.T) {
	for _, level := range []string{"excellent", "good", "acceptable", "poor", "failed", "critical"} {
		if got := QualityBadge(level); !strings.Contains(got, level) {
			t.Errorf("QualityBadge(%q) = %q, should contain the level name", level, got)
		}
	}
}
