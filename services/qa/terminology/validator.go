// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package terminology validates medical terms against an embedded
// knowledge base of conditions, medications, and ICD-10 codes.
//
// The knowledge base is parsed once at construction and never mutated.
// Matching is layered: exact and synonym lookups first, then fuzzy
// edit-distance matching, then generic medical keyword heuristics.
package terminology

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/MedQA/services/qa/issue"
)

// icd10Format matches a letter, two digits, and an optional one- or
// two-digit decimal extension, e.g. I10 or E11.9.
var icd10Format = regexp.MustCompile(`^[A-Z]\d{2}(\.\d{1,2})?$`)

// Config tunes the matching thresholds.
type Config struct {
	// FuzzyThreshold is the minimum similarity for a fuzzy match to a
	// known term. Default 0.85.
	FuzzyThreshold float64

	// GenericConfidence is assigned to terms that only match a generic
	// medical keyword. Default 0.6.
	GenericConfidence float64

	// SuffixConfidence is assigned to medications recognized only by a
	// pharmacological suffix pattern. Default 0.8.
	SuffixConfidence float64

	// UnknownConfidence is assigned to terms with no match at all.
	// Default 0.3.
	UnknownConfidence float64
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() *Config {
	return &Config{
		FuzzyThreshold:    0.85,
		GenericConfidence: 0.6,
		SuffixConfidence:  0.8,
		UnknownConfidence: 0.3,
	}
}

// knowledgeBase is the on-disk shape of kb.yaml.
type knowledgeBase struct {
	ICD10Codes        map[string]string   `yaml:"icd10_codes"`
	Conditions        map[string][]string `yaml:"conditions"`
	MedicationClasses map[string]medClass `yaml:"medication_classes"`
	GenericKeywords   []string            `yaml:"generic_keywords"`
}

type medClass struct {
	Drugs  []string `yaml:"drugs"`
	Suffix string   `yaml:"suffix"`
}

// Validator validates condition names, medication names, and ICD-10
// codes. Construct once with NewValidator and share; all lookup tables
// are read-only after construction.
type Validator struct {
	cfg *Config

	// canonicalByAlias maps every canonical name and synonym
	// (lowercased) to its canonical condition name.
	canonicalByAlias map[string]string

	// classByDrug maps lowercased drug names to their class.
	classByDrug map[string]string

	// suffixPatterns maps class names to compiled suffix regexes.
	suffixPatterns map[string]*regexp.Regexp

	icd10Codes map[string]string
	keywords   []string
}

// NewValidator parses the embedded knowledge base and builds the lookup
// tables. A nil cfg uses DefaultConfig.
func NewValidator(cfg *Config) (*Validator, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var kb knowledgeBase
	if err := yaml.Unmarshal(KnowledgeBaseYAML, &kb); err != nil {
		return nil, fmt.Errorf("parsing terminology knowledge base: %w", err)
	}

	v := &Validator{
		cfg:              cfg,
		canonicalByAlias: make(map[string]string),
		classByDrug:      make(map[string]string),
		suffixPatterns:   make(map[string]*regexp.Regexp),
		icd10Codes:       kb.ICD10Codes,
		keywords:         kb.GenericKeywords,
	}

	for canonical, synonyms := range kb.Conditions {
		v.canonicalByAlias[strings.ToLower(canonical)] = canonical
		for _, syn := range synonyms {
			v.canonicalByAlias[strings.ToLower(syn)] = canonical
		}
	}

	for class, mc := range kb.MedicationClasses {
		for _, drug := range mc.Drugs {
			v.classByDrug[strings.ToLower(drug)] = class
		}
		if mc.Suffix != "" {
			re, err := regexp.Compile(mc.Suffix)
			if err != nil {
				return nil, fmt.Errorf("compiling suffix pattern for %s: %w", class, err)
			}
			v.suffixPatterns[class] = re
		}
	}

	return v, nil
}

// Match is the result of validating a single term.
type Match struct {
	// Confidence is the validator's confidence in [0, 1] that the term
	// is real medical terminology.
	Confidence float64

	// Canonical is the canonical form when a condition matched.
	Canonical string

	// Class is the medication class when a medication matched.
	Class string
}

// ValidateCondition checks a condition name against the knowledge base.
//
// Description:
//
//	Lookup order: exact or synonym match (confidence 1.0), fuzzy match
//	against all known aliases (confidence = similarity, with a spelling
//	suggestion issue), generic medical keyword (configured generic
//	confidence with an info issue), otherwise the unknown confidence
//	with a severity derived from it.
//
// Outputs:
//
//	Match - Always populated.
//	*issue.Issue - Non-nil when the term is anything short of an exact match.
func (v *Validator) ValidateCondition(name, field string) (Match, *issue.Issue) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := v.canonicalByAlias[normalized]; ok {
		return Match{Confidence: 1.0, Canonical: canonical}, nil
	}

	if alias, similarity := v.closestAlias(normalized); similarity >= v.cfg.FuzzyThreshold {
		iss := issue.FromConfidence(issue.CategoryTerminology, similarity, field,
			fmt.Sprintf("condition %q is not a recognized term but closely matches %q", name, alias))
		iss.Evidence = name
		iss.Suggestion = fmt.Sprintf("Did you mean %q?", alias)
		return Match{Confidence: similarity, Canonical: v.canonicalByAlias[alias]}, &iss
	}

	for _, kw := range v.keywords {
		if strings.Contains(normalized, kw) {
			iss := issue.FromConfidence(issue.CategoryTerminology, v.cfg.GenericConfidence, field,
				fmt.Sprintf("condition %q is not in the curated vocabulary; accepted on generic medical keyword %q", name, kw))
			iss.Evidence = name
			return Match{Confidence: v.cfg.GenericConfidence}, &iss
		}
	}

	iss := issue.FromConfidence(issue.CategoryTerminology, v.cfg.UnknownConfidence, field,
		fmt.Sprintf("condition %q is not a recognized medical term", name))
	iss.Evidence = name
	iss.Suggestion = "Verify the condition name against the source record."
	return Match{Confidence: v.cfg.UnknownConfidence}, &iss
}

// ValidateMedication checks a medication name against known drugs and
// pharmacological suffix patterns.
func (v *Validator) ValidateMedication(name, field string) (Match, *issue.Issue) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if class, ok := v.classByDrug[normalized]; ok {
		return Match{Confidence: 1.0, Class: class}, nil
	}

	for class, re := range v.suffixPatterns {
		if re.MatchString(normalized) {
			iss := issue.FromConfidence(issue.CategoryTerminology, v.cfg.SuffixConfidence, field,
				fmt.Sprintf("medication %q is not in the curated list; accepted on %s suffix pattern", name, class))
			iss.Evidence = name
			return Match{Confidence: v.cfg.SuffixConfidence, Class: class}, &iss
		}
	}

	iss := issue.FromConfidence(issue.CategoryTerminology, v.cfg.UnknownConfidence, field,
		fmt.Sprintf("medication %q is not a recognized drug name", name))
	iss.Evidence = name
	iss.Suggestion = "Verify the medication against the source record."
	return Match{Confidence: v.cfg.UnknownConfidence}, &iss
}

// ValidateICD10 checks an ICD-10 code's format, whether it is a known
// code, and whether its description is consistent with the condition
// name it is attached to.
func (v *Validator) ValidateICD10(code, condition, field string) *issue.Issue {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil
	}

	if !icd10Format.MatchString(code) {
		iss := issue.New(issue.CategoryTerminology, issue.SeverityError, field,
			fmt.Sprintf("ICD-10 code %q does not match the expected format", code))
		iss.Evidence = code
		iss.Expected = "letter, two digits, optional decimal extension (e.g. I10, E11.9)"
		return &iss
	}

	desc, known := v.icd10Codes[code]
	if !known {
		iss := issue.New(issue.CategoryTerminology, issue.SeverityInfo, field,
			fmt.Sprintf("ICD-10 code %q is not in the common-code table", code))
		iss.Evidence = code
		return &iss
	}

	if condition != "" && !v.descriptionMatchesCondition(desc, condition) {
		iss := issue.New(issue.CategoryTerminology, issue.SeverityWarning, field,
			fmt.Sprintf("ICD-10 code %s (%s) does not match condition %q", code, desc, condition))
		iss.Evidence = condition
		iss.Expected = desc
		return &iss
	}

	return nil
}

// KnownDrugsIn returns the curated drug names mentioned in free text,
// sorted for deterministic output.
func (v *Validator) KnownDrugsIn(text string) []string {
	lower := strings.ToLower(text)
	var drugs []string
	for drug := range v.classByDrug {
		if strings.Contains(lower, drug) {
			drugs = append(drugs, drug)
		}
	}
	sort.Strings(drugs)
	return drugs
}

// ICD10Description returns the description for a known code.
func (v *Validator) ICD10Description(code string) (string, bool) {
	desc, ok := v.icd10Codes[strings.ToUpper(strings.TrimSpace(code))]
	return desc, ok
}

// closestAlias returns the known alias with the highest similarity to
// the term, and that similarity.
func (v *Validator) closestAlias(term string) (string, float64) {
	best := ""
	bestScore := 0.0
	for alias := range v.canonicalByAlias {
		if s := Similarity(term, alias); s > bestScore {
			best, bestScore = alias, s
		}
	}
	return best, bestScore
}

// descriptionMatchesCondition reports whether a code description and a
// condition name share vocabulary, checking the condition both as
// written and through its canonical form.
func (v *Validator) descriptionMatchesCondition(description, condition string) bool {
	candidates := []string{condition}
	if canonical, ok := v.canonicalByAlias[strings.ToLower(strings.TrimSpace(condition))]; ok {
		candidates = append(candidates, canonical)
	}
	for _, c := range candidates {
		if descriptionMatches(description, c) {
			return true
		}
	}
	return false
}

// descriptionMatches checks for containment or token overlap, ignoring
// short filler words.
func descriptionMatches(description, condition string) bool {
	desc := strings.ToLower(description)
	cond := strings.ToLower(strings.TrimSpace(condition))

	if strings.Contains(desc, cond) || strings.Contains(cond, desc) {
		return true
	}

	for _, tok := range strings.Fields(cond) {
		if len(tok) >= 4 && strings.Contains(desc, tok) {
			return true
		}
	}
	return false
}
