// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/lenseval/pkg/logging"
)

// -----------------------------------------------------------------------------
// Judge Interface
// -----------------------------------------------------------------------------

// Verdict is the structured rating returned by the judge service.
type Verdict struct {
	Specificity   int    `json:"specificity"`
	Novelty       int    `json:"novelty"`
	Actionability int    `json:"actionability"`
	Coherence     int    `json:"coherence"`
	Justification string `json:"justification"`

	// TokensUsed records request cost. Zero for stub judges.
	TokensUsed int `json:"-"`
}

// Validate checks every rating is within 1-10.
func (v *Verdict) Validate() error {
	for name, score := range map[string]int{
		"specificity":   v.Specificity,
		"novelty":       v.Novelty,
		"actionability": v.Actionability,
		"coherence":     v.Coherence,
	} {
		if score < 1 || score > 10 {
			return fmt.Errorf("%s rating %d outside 1-10", name, score)
		}
	}
	return nil
}

// Judge submits a structured prompt and returns a scored verdict.
//
// Description:
//
//	The judge service is inherently non-deterministic and may fail to
//	conform to the schema. Malformed responses surface as KindMalformed
//	errors; the quality scorer owns the single stricter re-prompt.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Judge interface {
	Judge(ctx context.Context, prompt string) (*Verdict, error)
}

// -----------------------------------------------------------------------------
// OpenAI Judge
// -----------------------------------------------------------------------------

const judgeSystemPrompt = `You are an expert evaluator assessing the quality of creative problem-solving responses.
Score the candidate response on four dimensions, each an integer from 1 (worst) to 10 (best):
- specificity: concrete, actionable recommendations vs vague platitudes
- novelty: original insights vs obvious or generic advice
- actionability: clear next steps vs abstract concepts
- coherence: logical flow and internal consistency
Be rigorous. Reserve 9-10 for truly exceptional work; most responses land in the 4-7 range.
Return ONLY a JSON object of the form:
{"specificity": N, "novelty": N, "actionability": N, "coherence": N, "justification": "one short paragraph"}`

// jsonFenceRe strips a markdown code fence around the judge's JSON.
var jsonFenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*\\})\\s*```")

// OpenAIJudge rates candidate responses via a chat-completion model.
//
// Thread Safety: Safe for concurrent use.
type OpenAIJudge struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
	retry   RetryPolicy
	gate    permanentGate
	logger  *logging.Logger
}

// NewOpenAIJudge creates a judge adapter from configuration.
func NewOpenAIJudge(cfg Config, retry RetryPolicy, logger *logging.Logger) *OpenAIJudge {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	return &OpenAIJudge{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.JudgeModel,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		retry:   retry,
		logger:  logger,
	}
}

// Judge submits the prompt and parses the structured verdict.
//
// Description:
//
//	Transient API failures are retried with backoff. A response that
//	cannot be parsed into a conforming Verdict returns a KindMalformed
//	error without retrying here; the caller decides whether to re-prompt.
//
// Outputs:
//   - *Verdict: The parsed verdict on success.
//   - error: Classified adapter error otherwise.
func (j *OpenAIJudge) Judge(ctx context.Context, prompt string) (*Verdict, error) {
	if latched := j.gate.check(); latched != nil {
		return nil, latched
	}

	var content string
	var tokens int
	err := j.retry.Do(ctx, "judge", func(ctx context.Context) error {
		if err := j.limiter.Wait(ctx); err != nil {
			return err
		}
		resp, err := j.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       j.model,
			Temperature: 0.3,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: judgeSystemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return Malformed("judge", fmt.Errorf("no choices returned"))
		}
		content = resp.Choices[0].Message.Content
		tokens = resp.Usage.TotalTokens
		return nil
	})
	if err != nil {
		j.gate.trip(err)
		j.logger.Error("judge request failed", "error", err)
		return nil, err
	}

	verdict, err := ParseVerdict(content)
	if err != nil {
		return nil, err
	}
	verdict.TokensUsed = tokens
	return verdict, nil
}

// ParseVerdict extracts a conforming Verdict from raw judge output.
//
// Description:
//
//	Tolerates a markdown code fence around the JSON and leading or
//	trailing prose, but requires all four ratings present and in range.
func ParseVerdict(content string) (*Verdict, error) {
	payload := strings.TrimSpace(content)
	if m := jsonFenceRe.FindStringSubmatch(payload); m != nil {
		payload = m[1]
	} else if start := strings.Index(payload, "{"); start >= 0 {
		if end := strings.LastIndex(payload, "}"); end > start {
			payload = payload[start : end+1]
		}
	}

	var raw struct {
		Specificity   *int   `json:"specificity"`
		Novelty       *int   `json:"novelty"`
		Actionability *int   `json:"actionability"`
		Coherence     *int   `json:"coherence"`
		Justification string `json:"justification"`
	}
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, Malformed("judge", fmt.Errorf("unparseable verdict: %w", err))
	}
	for name, field := range map[string]*int{
		"specificity":   raw.Specificity,
		"novelty":       raw.Novelty,
		"actionability": raw.Actionability,
		"coherence":     raw.Coherence,
	} {
		if field == nil {
			return nil, Malformed("judge", fmt.Errorf("missing %s field", name))
		}
	}

	verdict := &Verdict{
		Specificity:   *raw.Specificity,
		Novelty:       *raw.Novelty,
		Actionability: *raw.Actionability,
		Coherence:     *raw.Coherence,
		Justification: raw.Justification,
	}
	if err := verdict.Validate(); err != nil {
		return nil, Malformed("judge", err)
	}
	return verdict, nil
}

var _ Judge = (*OpenAIJudge)(nil)
