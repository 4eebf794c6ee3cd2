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
	"strings"

	"github.com/AleutianAI/MedQA/services/qa/model"
)

// CredibilityScore scores a single citation in [0, 1].
//
// Description:
//
//	Weighted sum of five dimensions:
//	  journal reputation  tier1 0.40, tier2 0.30, tier3 0.20, unknown 0.10
//	  recency             <=2y 0.20, <=5y 0.15, <=10y 0.10, else 0.05
//	  study design        hierarchy rank/10 * 0.20, unknown 0.05
//	  identifiers         DOI or PMID present 0.10, else 0.05
//	  relevance           explicit relevance score * 0.10
func (v *Validator) CredibilityScore(f *model.ResearchFinding) float64 {
	score := 0.0

	switch v.JournalTier(f.Journal) {
	case TierTop:
		score += 0.40
	case TierStrong:
		score += 0.30
	case TierRecognized:
		score += 0.20
	default:
		score += 0.10
	}

	if year := f.Year(); year > 0 {
		switch age := v.currentYear() - year; {
		case age <= 2:
			score += 0.20
		case age <= 5:
			score += 0.15
		case age <= 10:
			score += 0.10
		default:
			score += 0.05
		}
	} else {
		score += 0.05
	}

	if rank, ok := v.studyRank[normalizeStudyType(f.StudyType)]; ok {
		score += float64(rank) / 10.0 * 0.20
	} else {
		score += 0.05
	}

	if f.DOI != "" || f.PMID != "" {
		score += 0.10
	} else {
		score += 0.05
	}

	score += f.RelevanceScore * 0.10

	if score > 1 {
		score = 1
	}
	return score
}

// AggregateCredibility scores a whole research analysis.
//
// Description:
//
//	Mean of the per-finding scores, multiplied by 0.8 when the evidence
//	base is thinner than MinFindings. An empty analysis scores 0.0.
func (v *Validator) AggregateCredibility(analysis *model.ResearchAnalysis) float64 {
	if analysis == nil || len(analysis.Findings) == 0 {
		return 0.0
	}

	total := 0.0
	for i := range analysis.Findings {
		total += v.CredibilityScore(&analysis.Findings[i])
	}
	mean := total / float64(len(analysis.Findings))

	if len(analysis.Findings) < v.cfg.MinFindings {
		mean *= 0.8
	}
	return mean
}

// normalizeStudyType maps free-form study type strings onto the
// hierarchy keys, e.g. "Meta-Analysis" -> "meta_analysis".
func normalizeStudyType(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
