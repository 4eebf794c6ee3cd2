// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package research validates literature citations attached to a medical
// analysis: journal reputation, identifier formats, publication years,
// relevance to the patient's conditions, and aggregate source quality.
// It also scores the credibility of each cited study.
package research

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/MedQA/services/qa/issue"
	"github.com/AleutianAI/MedQA/services/qa/model"
)

var (
	doiFormat  = regexp.MustCompile(`^10\.\d{4,}/\S+$`)
	pmidFormat = regexp.MustCompile(`^\d{8}$`)
)

// Journal tiers, higher reputation first.
const (
	TierTop        = 1
	TierStrong     = 2
	TierRecognized = 3
	TierUnknown    = 0
)

// Config tunes the citation checks.
type Config struct {
	// MinTitleLength is the minimum plausible title length.
	MinTitleLength int

	// MaxAuthors flags author lists longer than this as suspicious.
	MaxAuthors int

	// MinRelevance is the explicit relevance score below which a
	// finding is flagged.
	MinRelevance float64

	// MinComputedRelevance is the term-overlap score below which a
	// finding without an explicit score is flagged.
	MinComputedRelevance float64

	// StaleYears is the age in years past which a citation is noted
	// as dated.
	StaleYears int

	// MinFindings is the number of findings below which the analysis
	// is noted as thin, and below which aggregate credibility is
	// penalized.
	MinFindings int

	// now is injectable for tests. Nil means time.Now.
	now func() time.Time
}

// DefaultConfig returns the standard citation thresholds.
func DefaultConfig() *Config {
	return &Config{
		MinTitleLength:       10,
		MaxAuthors:           20,
		MinRelevance:         0.3,
		MinComputedRelevance: 0.1,
		StaleYears:           20,
		MinFindings:          3,
	}
}

// knowledgeBase is the on-disk shape of journals.yaml.
type knowledgeBase struct {
	Journals struct {
		Tier1 []string `yaml:"tier1"`
		Tier2 []string `yaml:"tier2"`
		Tier3 []string `yaml:"tier3"`
	} `yaml:"journals"`
	StudyTypes              map[string]int `yaml:"study_types"`
	PredatoryPatterns       []string       `yaml:"predatory_patterns"`
	SuspiciousTitlePatterns []string       `yaml:"suspicious_title_patterns"`
}

// Validator validates research citations. Construct once with
// NewValidator and share; all tables are read-only after construction.
type Validator struct {
	cfg *Config

	tierByJournal    map[string]int
	studyRank        map[string]int
	predatory        []*regexp.Regexp
	suspiciousTitles []*regexp.Regexp
}

// NewValidator parses the embedded journal knowledge base. A nil cfg
// uses DefaultConfig.
func NewValidator(cfg *Config) (*Validator, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var kb knowledgeBase
	if err := yaml.Unmarshal(JournalsYAML, &kb); err != nil {
		return nil, fmt.Errorf("parsing journal knowledge base: %w", err)
	}

	v := &Validator{
		cfg:           cfg,
		tierByJournal: make(map[string]int),
		studyRank:     kb.StudyTypes,
	}

	for _, j := range kb.Journals.Tier1 {
		v.tierByJournal[strings.ToLower(j)] = TierTop
	}
	for _, j := range kb.Journals.Tier2 {
		v.tierByJournal[strings.ToLower(j)] = TierStrong
	}
	for _, j := range kb.Journals.Tier3 {
		v.tierByJournal[strings.ToLower(j)] = TierRecognized
	}

	for _, p := range kb.PredatoryPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compiling predatory pattern %q: %w", p, err)
		}
		v.predatory = append(v.predatory, re)
	}
	for _, p := range kb.SuspiciousTitlePatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compiling title pattern %q: %w", p, err)
		}
		v.suspiciousTitles = append(v.suspiciousTitles, re)
	}

	return v, nil
}

// JournalTier returns the reputation tier for a journal name, or
// TierUnknown when the journal is not in the table.
func (v *Validator) JournalTier(name string) int {
	return v.tierByJournal[strings.ToLower(strings.TrimSpace(name))]
}

// ValidateFinding checks a single citation.
//
// Description:
//
//	Covers journal reputation (predatory name shapes are critical,
//	unknown journals a warning), DOI and PMID formats, title
//	plausibility, author list size, publication year bounds, and
//	relevance to the patient's conditions.
//
// Inputs:
//
//	f - The citation under validation.
//	conditions - The patient's condition names, for relevance overlap.
//	field - Field prefix, e.g. "research.findings[3]".
func (v *Validator) ValidateFinding(f *model.ResearchFinding, conditions []string, field string) []issue.Issue {
	var issues []issue.Issue

	issues = append(issues, v.checkJournal(f, field)...)
	issues = append(issues, v.checkIdentifiers(f, field)...)
	issues = append(issues, v.checkTitle(f, field)...)
	issues = append(issues, v.checkAuthors(f, field)...)
	issues = append(issues, v.checkYear(f, field)...)
	issues = append(issues, v.checkRelevance(f, conditions, field)...)

	return issues
}

func (v *Validator) checkJournal(f *model.ResearchFinding, field string) []issue.Issue {
	if strings.TrimSpace(f.Journal) == "" {
		iss := issue.New(issue.CategoryCitation, issue.SeverityWarning, field+".journal",
			"citation has no journal")
		return []issue.Issue{iss}
	}

	for _, re := range v.predatory {
		if re.MatchString(f.Journal) {
			iss := issue.New(issue.CategoryCitation, issue.SeverityCritical, field+".journal",
				fmt.Sprintf("journal %q matches a predatory publisher pattern", f.Journal))
			iss.Evidence = f.Journal
			iss.Suggestion = "Replace with a citation from a recognized peer-reviewed journal."
			return []issue.Issue{iss}
		}
	}

	if v.JournalTier(f.Journal) == TierUnknown {
		iss := issue.New(issue.CategoryCitation, issue.SeverityWarning, field+".journal",
			fmt.Sprintf("journal %q is not in the recognized journal table", f.Journal))
		iss.Evidence = f.Journal
		return []issue.Issue{iss}
	}
	return nil
}

func (v *Validator) checkIdentifiers(f *model.ResearchFinding, field string) []issue.Issue {
	var issues []issue.Issue

	if f.DOI != "" && !doiFormat.MatchString(f.DOI) {
		iss := issue.New(issue.CategoryCitation, issue.SeverityError, field+".doi",
			fmt.Sprintf("DOI %q does not match the expected format", f.DOI))
		iss.Evidence = f.DOI
		iss.Expected = "10.<registrant>/<suffix>"
		issues = append(issues, iss)
	}
	if f.PMID != "" && !pmidFormat.MatchString(f.PMID) {
		iss := issue.New(issue.CategoryCitation, issue.SeverityError, field+".pmid",
			fmt.Sprintf("PMID %q is not a valid PubMed identifier", f.PMID))
		iss.Evidence = f.PMID
		iss.Expected = "1 to 8 digits"
		issues = append(issues, iss)
	}
	if f.DOI == "" && f.PMID == "" {
		issues = append(issues, issue.New(issue.CategoryCitation, issue.SeverityInfo, field,
			"citation has neither a DOI nor a PMID; it cannot be independently verified"))
	}
	return issues
}

func (v *Validator) checkTitle(f *model.ResearchFinding, field string) []issue.Issue {
	title := strings.TrimSpace(f.Title)
	if len(title) < v.cfg.MinTitleLength {
		iss := issue.New(issue.CategoryCitation, issue.SeverityWarning, field+".title",
			"citation title is missing or implausibly short")
		iss.Evidence = f.Title
		return []issue.Issue{iss}
	}
	for _, re := range v.suspiciousTitles {
		if re.MatchString(title) {
			iss := issue.New(issue.CategoryCitation, issue.SeverityError, field+".title",
				fmt.Sprintf("citation title %q looks like placeholder or generated text", f.Title))
			iss.Evidence = f.Title
			return []issue.Issue{iss}
		}
	}
	return nil
}

func (v *Validator) checkAuthors(f *model.ResearchFinding, field string) []issue.Issue {
	switch {
	case len(f.Authors) == 0:
		iss := issue.New(issue.CategoryCitation, issue.SeverityWarning, field+".authors",
			"citation has no authors")
		return []issue.Issue{iss}
	case len(f.Authors) > v.cfg.MaxAuthors:
		iss := issue.New(issue.CategoryCitation, issue.SeverityInfo, field+".authors",
			fmt.Sprintf("citation lists %d authors, which is unusually many", len(f.Authors)))
		return []issue.Issue{iss}
	}
	return nil
}

func (v *Validator) checkYear(f *model.ResearchFinding, field string) []issue.Issue {
	year := f.Year()
	if year == 0 {
		iss := issue.New(issue.CategoryCitation, issue.SeverityWarning, field+".publication_date",
			"citation has no parseable publication year")
		iss.Evidence = f.PublicationDate
		return []issue.Issue{iss}
	}

	current := v.currentYear()
	switch {
	case year > current:
		iss := issue.New(issue.CategoryTemporal, issue.SeverityError, field+".publication_date",
			fmt.Sprintf("publication year %d is in the future", year))
		iss.Evidence = f.PublicationDate
		return []issue.Issue{iss}
	case year < 1900:
		iss := issue.New(issue.CategoryTemporal, issue.SeverityWarning, field+".publication_date",
			fmt.Sprintf("publication year %d predates modern medical literature", year))
		iss.Evidence = f.PublicationDate
		return []issue.Issue{iss}
	case current-year > v.cfg.StaleYears:
		iss := issue.New(issue.CategoryTemporal, issue.SeverityInfo, field+".publication_date",
			fmt.Sprintf("citation is %d years old and may be superseded", current-year))
		iss.Evidence = f.PublicationDate
		return []issue.Issue{iss}
	}
	return nil
}

func (v *Validator) checkRelevance(f *model.ResearchFinding, conditions []string, field string) []issue.Issue {
	if f.RelevanceScore > 0 {
		if f.RelevanceScore < v.cfg.MinRelevance {
			iss := issue.New(issue.CategoryRelevance, issue.SeverityWarning, field+".relevance_score",
				fmt.Sprintf("citation relevance %.2f is below the acceptance threshold", f.RelevanceScore))
			iss.Confidence = f.RelevanceScore
			return []issue.Issue{iss}
		}
		return nil
	}

	if len(conditions) == 0 {
		return nil
	}
	if overlap := termOverlap(f, conditions); overlap < v.cfg.MinComputedRelevance {
		iss := issue.New(issue.CategoryRelevance, issue.SeverityWarning, field,
			"citation shares no vocabulary with the patient's documented conditions")
		iss.Confidence = overlap
		return []issue.Issue{iss}
	}
	return nil
}

// termOverlap computes the fraction of condition names mentioned in the
// citation's title or key findings.
func termOverlap(f *model.ResearchFinding, conditions []string) float64 {
	if len(conditions) == 0 {
		return 0
	}
	text := strings.ToLower(f.Title + " " + f.KeyFindings)
	matched := 0
	for _, cond := range conditions {
		cond = strings.ToLower(strings.TrimSpace(cond))
		if cond != "" && strings.Contains(text, cond) {
			matched++
		}
	}
	return float64(matched) / float64(len(conditions))
}

// ValidateAnalysis checks every finding plus aggregate source quality.
func (v *Validator) ValidateAnalysis(analysis *model.ResearchAnalysis, conditions []string) []issue.Issue {
	if analysis == nil {
		return nil
	}

	var issues []issue.Issue
	for i := range analysis.Findings {
		field := fmt.Sprintf("research.findings[%d]", i)
		issues = append(issues, v.ValidateFinding(&analysis.Findings[i], conditions, field)...)
	}
	return append(issues, v.ValidateSources(analysis)...)
}

// ValidateSources runs the aggregate source-quality checks.
//
// Description:
//
//	Flags evidence bases thinner than MinFindings, publication-year
//	spreads under two years (suggesting a single retrieval batch rather
//	than a literature review), and journal diversity below half the
//	findings count.
func (v *Validator) ValidateSources(analysis *model.ResearchAnalysis) []issue.Issue {
	if analysis == nil || len(analysis.Findings) == 0 {
		return nil
	}

	var issues []issue.Issue
	if len(analysis.Findings) < v.cfg.MinFindings {
		issues = append(issues, issue.New(issue.CategoryRelevance, issue.SeverityInfo, "research.findings",
			fmt.Sprintf("only %d research findings; conclusions rest on a thin evidence base", len(analysis.Findings))))
	}

	minYear, maxYear := 0, 0
	journals := make(map[string]bool)
	for i := range analysis.Findings {
		if y := analysis.Findings[i].Year(); y > 0 {
			if minYear == 0 || y < minYear {
				minYear = y
			}
			if y > maxYear {
				maxYear = y
			}
		}
		if j := strings.ToLower(strings.TrimSpace(analysis.Findings[i].Journal)); j != "" {
			journals[j] = true
		}
	}

	if len(analysis.Findings) >= v.cfg.MinFindings && minYear > 0 && maxYear-minYear < 2 {
		issues = append(issues, issue.New(issue.CategoryRelevance, issue.SeverityInfo, "research.findings",
			"all citations fall within a narrow publication window"))
	}
	if len(journals) > 0 && len(journals)*2 < len(analysis.Findings) {
		issues = append(issues, issue.New(issue.CategoryRelevance, issue.SeverityInfo, "research.findings",
			"citations are concentrated in few journals"))
	}

	return issues
}

// IsRelevant reports whether a citation bears on the patient's
// conditions, either by its explicit relevance score or by vocabulary
// overlap with the condition names.
func (v *Validator) IsRelevant(f *model.ResearchFinding, conditions []string) bool {
	if f.RelevanceScore > 0 {
		return f.RelevanceScore >= v.cfg.MinRelevance
	}
	return termOverlap(f, conditions) >= v.cfg.MinComputedRelevance
}

func (v *Validator) currentYear() int {
	if v.cfg.now != nil {
		return v.cfg.now().Year()
	}
	return time.Now().Year()
}
