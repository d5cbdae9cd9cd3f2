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
	_ "embed"
	"regexp"
	"sort"
	"strings"
)

// MaxConcepts bounds the number of phrases fed to the embedding
// service per document.
const MaxConcepts = 15

//go:embed stop_phrases.txt
var stopPhrasesData string

// stopPhrases is the normalized stop-phrase set, loaded once.
var stopPhrases = loadStopPhrases()

func loadStopPhrases() map[string]struct{} {
	phrases := make(map[string]struct{})
	for _, line := range strings.Split(stopPhrasesData, "\n") {
		phrase := normalizePhrase(line)
		if phrase != "" && !strings.HasPrefix(phrase, "#") {
			phrases[phrase] = struct{}{}
		}
	}
	return phrases
}

// -----------------------------------------------------------------------------
// Extraction Patterns
// -----------------------------------------------------------------------------

var (
	// bulletRe matches markdown bullet and list items.
	bulletRe = regexp.MustCompile(`(?m)^\s*[-•*]\s+(.+)$`)

	// lensMentionRe matches "through/using/via/with/applying X" phrases,
	// the typical way agents name the conceptual frame they apply.
	lensMentionRe = regexp.MustCompile(`(?i)(?:through|using|via|with|applying)\s+([A-Z][A-Za-z &'-]{2,60}?)(?:\s*[:,.]|$)`)

	// quotedRe matches short quoted spans, often key insights.
	quotedRe = regexp.MustCompile(`"([^"]{10,100})"`)

	// sentenceSplitRe splits prose into sentences.
	sentenceSplitRe = regexp.MustCompile(`[.!?]+\s+`)

	// punctStripRe removes punctuation during normalization.
	punctStripRe = regexp.MustCompile(`[^\p{L}\p{N}\s'-]`)
)

// strategyKeywords flag sentences that carry a substantive idea worth
// embedding.
var strategyKeywords = []string{
	"solution", "approach", "strategy", "breakthrough", "insight",
	"pattern", "problem", "cause", "layer", "system", "loop",
	"constraint", "tradeoff", "reframe",
}

// -----------------------------------------------------------------------------
// Extractor
// -----------------------------------------------------------------------------

// ExtractConcepts turns response text into a bounded set of distinct
// concept phrases.
//
// Description:
//
//	Candidates come from bullet items, lens-application mentions,
//	quoted spans, and sentences containing strategy keywords. They are
//	normalized to lowercase, stop-phrases are filtered, phrases must be
//	at least two words, and the result is capped at MaxConcepts,
//	ordered by frequency then first occurrence.
//
// Outputs:
//   - []string: Up to MaxConcepts distinct phrases. Callers treat
//     fewer than two phrases as insufficient signal.
func ExtractConcepts(text string) []string {
	type candidate struct {
		phrase string
		first  int
		count  int
	}

	seen := make(map[string]*candidate)
	order := 0

	add := func(raw string) {
		phrase := normalizePhrase(raw)
		if phrase == "" || len(strings.Fields(phrase)) < 2 {
			return
		}
		if _, stop := stopPhrases[phrase]; stop {
			return
		}
		if c, ok := seen[phrase]; ok {
			c.count++
			return
		}
		seen[phrase] = &candidate{phrase: phrase, first: order, count: 1}
		order++
	}

	for _, m := range bulletRe.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	for _, m := range lensMentionRe.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	for _, m := range quotedRe.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	for _, sentence := range sentenceSplitRe.Split(text, -1) {
		lower := strings.ToLower(sentence)
		for _, kw := range strategyKeywords {
			if strings.Contains(lower, kw) {
				add(sentence)
				break
			}
		}
	}

	candidates := make([]*candidate, 0, len(seen))
	for _, c := range seen {
		candidates = append(candidates, c)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].count != candidates[j].count {
			return candidates[i].count > candidates[j].count
		}
		return candidates[i].first < candidates[j].first
	})

	limit := len(candidates)
	if limit > MaxConcepts {
		limit = MaxConcepts
	}
	phrases := make([]string, 0, limit)
	for _, c := range candidates[:limit] {
		phrases = append(phrases, c.phrase)
	}
	return phrases
}

// normalizePhrase lowercases, strips punctuation, and collapses
// whitespace.
func normalizePhrase(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	stripped := punctStripRe.ReplaceAllString(lowered, " ")
	return strings.Join(strings.Fields(stripped), " ")
}
