// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package metrics

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/AleutianAI/lenseval/benchmark/corpus"
)

// CoverageScorer measures how many of a problem's expected lenses a
// response actually engages with, and whether it applies them or
// merely name-drops.
//
// Thread Safety: read-only after construction; safe for concurrent
// use.
type CoverageScorer struct {
	rules *RuleSet
}

// NewCoverageScorer creates a coverage scorer using the given rule
// tables for lens aliases and depth markers.
func NewCoverageScorer(rules *RuleSet) *CoverageScorer {
	return &CoverageScorer{rules: rules}
}

// LensMatch records one matched expected lens and its depth class.
type LensMatch struct {
	Lens string
	Deep bool
}

// Score computes frame coverage against the problem's expected-lens
// lists. Only high and medium relevance lenses are scored; low
// relevance lenses are reported as informational evidence and never
// penalize absence.
//
// Outputs:
//   - Score: frame_coverage in [0,10], or unavailable when the
//     problem declares no scored lenses.
func (s *CoverageScorer) Score(text string, problem *corpus.ProblemSpec) Score {
	expected := problem.ExpectedLenses.Scored()
	if len(expected) == 0 {
		return NewUnavailable(MetricCoverage, "problem declares no expected lenses")
	}

	sentences := splitSentences(text)
	normalized := strings.ToLower(text)

	var matches []LensMatch
	for _, lens := range expected {
		if !s.lensMentioned(normalized, lens) {
			continue
		}
		matches = append(matches, LensMatch{
			Lens: lens,
			Deep: s.deeplyApplied(sentences, lens),
		})
	}

	matchedCount := len(matches)
	deepCount := 0
	evidence := make([]string, 0, matchedCount)
	for _, m := range matches {
		depth := "surface"
		if m.Deep {
			depth = "deep"
			deepCount++
		}
		evidence = append(evidence, fmt.Sprintf("%s (%s)", m.Lens, depth))
	}
	for _, lens := range problem.ExpectedLenses.Low {
		if s.lensMentioned(normalized, lens) {
			evidence = append(evidence, fmt.Sprintf("%s (low-relevance)", lens))
		}
	}

	coverage := float64(matchedCount) / float64(len(expected))
	depth := float64(deepCount) / float64(maxInt(matchedCount, 1))

	sc := NewScore(MetricCoverage, Clamp(7*coverage+3*depth, 0, 10), evidence...)
	sc.Breakdown = map[string]float64{
		"expected":       float64(len(expected)),
		"matched":        float64(matchedCount),
		"deep":           float64(deepCount),
		"coverage_ratio": Round1(coverage * 10),
		"depth_ratio":    Round1(depth * 10),
	}
	return sc
}

// -----------------------------------------------------------------------------
// Matching
// -----------------------------------------------------------------------------

// lensMentioned reports whether the lens or any of its aliases occurs
// in the normalized text. Matching tolerates punctuation and trailing
// plural forms.
func (s *CoverageScorer) lensMentioned(normalized, lens string) bool {
	aliases := s.rules.LensAliases(lens)
	if aliases == nil {
		aliases = []string{lens}
	}
	for _, alias := range aliases {
		if fuzzyContains(normalized, alias) {
			return true
		}
	}
	return false
}

// deeplyApplied reports whether an explanatory marker appears within
// two sentences of a lens mention.
func (s *CoverageScorer) deeplyApplied(sentences []string, lens string) bool {
	aliases := s.rules.LensAliases(lens)
	if aliases == nil {
		aliases = []string{lens}
	}
	for i, sentence := range sentences {
		lower := strings.ToLower(sentence)
		mentioned := false
		for _, alias := range aliases {
			if fuzzyContains(lower, alias) {
				mentioned = true
				break
			}
		}
		if !mentioned {
			continue
		}
		lo := maxInt(i-2, 0)
		hi := minInt(i+2, len(sentences)-1)
		for j := lo; j <= hi; j++ {
			window := " " + nonWordRe.ReplaceAllString(strings.ToLower(sentences[j]), " ") + " "
			for _, marker := range s.rules.DeepMarkers {
				if strings.Contains(window, " "+marker+" ") {
					return true
				}
			}
		}
	}
	return false
}

var nonWordRe = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// fuzzyContains does a case-insensitive substring match that ignores
// punctuation and a trailing plural "s" on the needle.
func fuzzyContains(haystack, needle string) bool {
	h := " " + nonWordRe.ReplaceAllString(strings.ToLower(haystack), " ") + " "
	n := strings.TrimSpace(nonWordRe.ReplaceAllString(strings.ToLower(needle), " "))
	if n == "" {
		return false
	}
	if strings.Contains(h, n) {
		return true
	}
	if strings.HasSuffix(n, "s") {
		return strings.Contains(h, strings.TrimSuffix(n, "s"))
	}
	return strings.Contains(h, n+"s")
}

func splitSentences(text string) []string {
	parts := sentenceSplitRe.Split(text, -1)
	sentences := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			sentences = append(sentences, trimmed)
		}
	}
	return sentences
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
