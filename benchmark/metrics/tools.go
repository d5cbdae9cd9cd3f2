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
	"encoding/json"
	"strings"

	"github.com/AleutianAI/lenseval/benchmark/corpus"
)

// ToolScorer analyzes how an agent used the lens toolset: how many
// distinct tools, whether creative tools appeared, whether invocation
// order followed strategic sequences, and whether known anti-patterns
// crept in.
//
// Thread Safety: read-only after construction; safe for concurrent
// use.
type ToolScorer struct {
	rules *RuleSet
}

// NewToolScorer creates a tool-pattern scorer over the given registry.
func NewToolScorer(rules *RuleSet) *ToolScorer {
	return &ToolScorer{rules: rules}
}

// Score computes the tool-usage score for a response document.
//
// Description:
//
//	Log-format documents carry explicit tool_calls entries and are
//	matched by exact tool name. Markdown documents are scanned for the
//	registry's trigger phrases in order of first appearance. A
//	response with no recognized tool invocations scores 0; unlike an
//	adapter outage, using no tools is itself signal.
func (s *ToolScorer) Score(doc *corpus.ResponseDocument) Score {
	var invoked []string
	if doc.Format == corpus.FormatLog {
		invoked = s.extractFromLog(doc.Text)
	} else {
		invoked = s.extractFromText(doc.Text)
	}

	if len(invoked) == 0 {
		sc := NewScore(MetricTools, 0, "no tool invocations detected")
		return sc
	}

	distinct := make(map[string]struct{})
	creative := make(map[string]struct{})
	for _, name := range invoked {
		distinct[name] = struct{}{}
		if tool := s.rules.ToolByName(name); tool != nil && tool.Category == CategoryCreative {
			creative[name] = struct{}{}
		}
	}

	sequences := s.matchSequences(invoked)
	antiPatterns := s.detectAntiPatterns(invoked, creative)

	diversity := float64(minInt(len(distinct), 10))
	creativeBonus := minFloat(2*float64(len(creative)), 4)
	sequenceBonus := minFloat(float64(len(sequences)), 4)
	antiPenalty := minFloat(float64(len(antiPatterns)), 4)

	evidence := make([]string, 0, len(invoked)+len(sequences)+len(antiPatterns))
	evidence = append(evidence, invoked...)
	for _, seq := range sequences {
		evidence = append(evidence, "sequence: "+seq)
	}
	for _, anti := range antiPatterns {
		evidence = append(evidence, "anti-pattern: "+anti)
	}

	sc := NewScore(MetricTools,
		Clamp(diversity+creativeBonus+sequenceBonus-antiPenalty, 0, 10), evidence...)
	sc.Breakdown = map[string]float64{
		"invocations":    float64(len(invoked)),
		"distinct":       float64(len(distinct)),
		"creative":       float64(len(creative)),
		"diversity":      diversity,
		"creative_bonus": creativeBonus,
		"sequence_bonus": sequenceBonus,
		"anti_penalty":   antiPenalty,
	}
	return sc
}

// -----------------------------------------------------------------------------
// Extraction
// -----------------------------------------------------------------------------

// extractFromText scans prose for trigger phrases and returns tool
// names ordered by first appearance. Each tool appears at most once;
// prose gives no reliable signal about repeated invocations.
func (s *ToolScorer) extractFromText(text string) []string {
	normalized := strings.ToLower(text)

	type hit struct {
		name string
		pos  int
	}
	var hits []hit
	for _, tool := range s.rules.Tools {
		best := -1
		for _, trigger := range tool.Triggers {
			if idx := strings.Index(normalized, trigger); idx >= 0 && (best < 0 || idx < best) {
				best = idx
			}
		}
		if best >= 0 {
			hits = append(hits, hit{name: tool.Name, pos: best})
		}
	}
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].pos < hits[j-1].pos; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}
	names := make([]string, len(hits))
	for i, h := range hits {
		names[i] = h.name
	}
	return names
}

// logMessage is the subset of a conversation-log entry the scorer
// reads.
type logMessage struct {
	Role      string `json:"role"`
	ToolCalls []struct {
		Name string `json:"name"`
	} `json:"tool_calls"`
}

// extractFromLog parses a JSON conversation log and returns the tool
// names invoked by assistant turns, in order. Unparseable logs yield
// no invocations rather than an error; a malformed log reads the same
// as a tool-free baseline.
func (s *ToolScorer) extractFromLog(text string) []string {
	var messages []logMessage
	if err := json.Unmarshal([]byte(text), &messages); err != nil {
		return nil
	}
	var names []string
	for _, msg := range messages {
		if msg.Role != "assistant" {
			continue
		}
		for _, call := range msg.ToolCalls {
			if call.Name != "" && s.rules.ToolByName(call.Name) != nil {
				names = append(names, call.Name)
			}
		}
	}
	return names
}

// -----------------------------------------------------------------------------
// Pattern Analysis
// -----------------------------------------------------------------------------

// matchSequences finds curated sequences occurring as contiguous
// subsequences of the invocation list.
func (s *ToolScorer) matchSequences(invoked []string) []string {
	var matched []string
	for _, seq := range s.rules.Sequences {
		for i := 0; i+len(seq) <= len(invoked); i++ {
			ok := true
			for j, name := range seq {
				if invoked[i+j] != name {
					ok = false
					break
				}
			}
			if ok {
				matched = append(matched, strings.Join(seq, " -> "))
			}
		}
	}
	return matched
}

// detectAntiPatterns flags ineffective usage: the same tool repeated
// consecutively past the threshold, searching without any creative
// followup, and leaning on random provocation alone.
func (s *ToolScorer) detectAntiPatterns(invoked []string, creative map[string]struct{}) []string {
	var anti []string

	cfg := s.rules.AntiPatterns

	run := 1
	for i := 1; i < len(invoked); i++ {
		if invoked[i] == invoked[i-1] {
			run++
			if run == cfg.RepeatThreshold {
				anti = append(anti, "repeated_invocation")
			}
		} else {
			run = 1
		}
	}

	hasSearch := false
	for _, name := range invoked {
		if name == cfg.SearchTool {
			hasSearch = true
			break
		}
	}
	if hasSearch && len(creative) == 0 && len(invoked) <= 2 {
		anti = append(anti, "no_followup")
	}

	randomOnly := len(invoked) > 0
	for _, name := range invoked {
		if name != cfg.RandomTool {
			randomOnly = false
			break
		}
	}
	if randomOnly {
		anti = append(anti, "random_only")
	}

	return anti
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
