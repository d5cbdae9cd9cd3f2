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
	"context"
	"fmt"
	"strings"

	"github.com/AleutianAI/lenseval/benchmark/adapters"
	"github.com/AleutianAI/lenseval/benchmark/corpus"
	"github.com/AleutianAI/lenseval/pkg/logging"
)

// strictRepromptSuffix is appended when the judge's first reply fails
// schema validation.
const strictRepromptSuffix = "\n\nIMPORTANT: Your previous reply did not conform. " +
	"Return ONLY the JSON object with integer fields specificity, novelty, " +
	"actionability, coherence (each 1-10) and a string field justification. No prose."

// QualityScorer runs the LLM-as-judge evaluation of a response.
//
// Description:
//
//	Builds a rubric prompt from the problem context plus the candidate
//	text, submits it to the judge adapter, and averages the four
//	returned sub-scores. The judge is non-deterministic and untrusted;
//	a malformed verdict earns exactly one stricter re-prompt before
//	the metric is reported unavailable.
//
// Thread Safety: stateless apart from the judge adapter; safe for
// concurrent use when the adapter is.
type QualityScorer struct {
	judge  adapters.Judge
	logger *logging.Logger
}

// NewQualityScorer creates a quality scorer backed by the given judge
// adapter.
func NewQualityScorer(judge adapters.Judge, logger *logging.Logger) *QualityScorer {
	if logger == nil {
		logger = logging.Default()
	}
	return &QualityScorer{judge: judge, logger: logger}
}

// Score evaluates a candidate response against its problem context.
//
// Outputs:
//   - Score: quality in [0,10] with the four sub-scores and the
//     judge's justification as evidence, or unavailable after a
//     failed re-prompt.
func (s *QualityScorer) Score(ctx context.Context, text string, problem *corpus.ProblemSpec) Score {
	prompt := buildJudgePrompt(text, problem)

	verdict, err := s.judge.Judge(ctx, prompt)
	if adapters.IsMalformed(err) {
		s.logger.Warn("judge verdict malformed, re-prompting once",
			"problem", problem.ID, "error", err)
		verdict, err = s.judge.Judge(ctx, prompt+strictRepromptSuffix)
	}
	if err != nil {
		return NewUnavailable(MetricQuality, fmt.Sprintf("judge failed: %v", err))
	}

	value := (float64(verdict.Specificity) + float64(verdict.Novelty) +
		float64(verdict.Actionability) + float64(verdict.Coherence)) / 4

	sc := NewScore(MetricQuality, value,
		fmt.Sprintf("specificity: %d", verdict.Specificity),
		fmt.Sprintf("novelty: %d", verdict.Novelty),
		fmt.Sprintf("actionability: %d", verdict.Actionability),
		fmt.Sprintf("coherence: %d", verdict.Coherence),
		"justification: "+verdict.Justification,
	)
	sc.Breakdown = map[string]float64{
		"specificity":   float64(verdict.Specificity),
		"novelty":       float64(verdict.Novelty),
		"actionability": float64(verdict.Actionability),
		"coherence":     float64(verdict.Coherence),
	}
	if verdict.TokensUsed > 0 {
		sc.CostNote = fmt.Sprintf("%d judge tokens", verdict.TokensUsed)
	}
	return sc
}

// buildJudgePrompt assembles the user message: problem statement,
// baseline and target patterns, then the candidate response.
func buildJudgePrompt(text string, problem *corpus.ProblemSpec) string {
	var b strings.Builder
	b.WriteString("## Problem\n\n")
	b.WriteString(problem.Statement)
	b.WriteString("\n\n## Baseline Solution (Conventional Wisdom)\n\n")
	b.WriteString(problem.BaselinePattern)
	b.WriteString("\n\n## Target Solution (Creative Reframe)\n\n")
	b.WriteString(problem.TargetPattern)
	b.WriteString("\n\n## Response to Evaluate\n\n")
	b.WriteString(text)
	b.WriteString("\n\n---\n\nEvaluate the response above using the scoring rubric. Return your assessment as JSON.")
	return b.String()
}
