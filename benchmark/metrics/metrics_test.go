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
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/lenseval/benchmark/adapters"
	"github.com/AleutianAI/lenseval/benchmark/corpus"
)

// -----------------------------------------------------------------------------
// Stub Adapters
// -----------------------------------------------------------------------------

// orthogonalEmbedder returns a distinct basis vector per phrase, so
// every pairwise cosine distance is exactly 1.
type orthogonalEmbedder struct{}

func (orthogonalEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{1}, nil
}

func (orthogonalEmbedder) BatchEmbed(_ context.Context, phrases []string) ([][]float32, error) {
	vectors := make([][]float32, len(phrases))
	for i := range phrases {
		v := make([]float32, len(phrases))
		v[i] = 1
		vectors[i] = v
	}
	return vectors, nil
}

// identicalEmbedder returns the same vector for every phrase, so every
// pairwise distance is exactly 0.
type identicalEmbedder struct{}

func (identicalEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (identicalEmbedder) BatchEmbed(_ context.Context, phrases []string) ([][]float32, error) {
	vectors := make([][]float32, len(phrases))
	for i := range phrases {
		vectors[i] = []float32{1, 0}
	}
	return vectors, nil
}

// failingEmbedder always reports a permanent failure.
type failingEmbedder struct{}

func (failingEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return nil, adapters.Permanent("embed", errors.New("auth rejected"))
}

func (failingEmbedder) BatchEmbed(_ context.Context, _ []string) ([][]float32, error) {
	return nil, adapters.Permanent("embed", errors.New("auth rejected"))
}

// scriptedJudge replays a fixed sequence of verdicts and errors and
// records every prompt it received.
type scriptedJudge struct {
	verdicts []*adapters.Verdict
	errs     []error
	prompts  []string
}

func (j *scriptedJudge) Judge(_ context.Context, prompt string) (*adapters.Verdict, error) {
	j.prompts = append(j.prompts, prompt)
	i := len(j.prompts) - 1
	if i < len(j.errs) && j.errs[i] != nil {
		return nil, j.errs[i]
	}
	if i < len(j.verdicts) {
		return j.verdicts[i], nil
	}
	return nil, errors.New("scripted judge exhausted")
}

func testProblem() *corpus.ProblemSpec {
	return &corpus.ProblemSpec{
		ID:     "performance-stuck",
		Domain: "engineering",
		ExpectedLenses: corpus.LensLists{
			High:   []string{"Feedback Loops"},
			Medium: []string{"Bottleneck Theory"},
			Low:    []string{"Pace Layering"},
		},
		Statement:       "Deploys are slow and the team is stuck.",
		BaselinePattern: "Hire more engineers and parallelize the work.",
		TargetPattern:   "Find the single constraint and subordinate everything to it.",
	}
}

func testRules(t *testing.T) *RuleSet {
	t.Helper()
	rules, err := DefaultRules()
	require.NoError(t, err)
	return rules
}

// -----------------------------------------------------------------------------
// Concept Extraction
// -----------------------------------------------------------------------------

func TestExtractConcepts_Sources(t *testing.T) {
	text := "Here is my plan.\n" +
		"- map the feedback loop\n" +
		"- identify the core constraint\n" +
		"I approached this through Pace Layering: slow layers absorb shock.\n" +
		"\"the queue is the product\" stood out.\n"

	phrases := ExtractConcepts(text)

	assert.Contains(t, phrases, "map the feedback loop")
	assert.Contains(t, phrases, "identify the core constraint")
	assert.Contains(t, phrases, "pace layering")
	assert.Contains(t, phrases, "the queue is the product")
}

func TestExtractConcepts_FrequencyOrdersFirst(t *testing.T) {
	text := "- rate limiting\n- connection pooling\n- rate limiting\n"

	phrases := ExtractConcepts(text)

	require.GreaterOrEqual(t, len(phrases), 2)
	assert.Equal(t, "rate limiting", phrases[0])
}

func TestExtractConcepts_FiltersShortAndStopPhrases(t *testing.T) {
	text := "- database\n- for example\n- best practices\n- sharded write path\n"

	phrases := ExtractConcepts(text)

	assert.NotContains(t, phrases, "database")
	assert.NotContains(t, phrases, "for example")
	assert.NotContains(t, phrases, "best practices")
	assert.Contains(t, phrases, "sharded write path")
}

func TestExtractConcepts_Cap(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 30; i++ {
		b.WriteString("- concept phrase number ")
		b.WriteString(strings.Repeat("x", i+1))
		b.WriteString("\n")
	}

	phrases := ExtractConcepts(b.String())

	assert.Len(t, phrases, MaxConcepts)
}

func TestExtractConcepts_EmptyText(t *testing.T) {
	assert.Empty(t, ExtractConcepts(""))
	assert.Empty(t, ExtractConcepts("Hello world."))
}

// -----------------------------------------------------------------------------
// Rule Tables
// -----------------------------------------------------------------------------

func TestDefaultRules(t *testing.T) {
	rules := testRules(t)

	assert.NotEmpty(t, rules.Lenses)
	assert.NotEmpty(t, rules.Tools)
	assert.NotEmpty(t, rules.Sequences)
	assert.Equal(t, 4, rules.AntiPatterns.RepeatThreshold)

	search := rules.ToolByName("search_lenses")
	require.NotNil(t, search)
	assert.Equal(t, CategoryBasic, search.Category)

	journey := rules.ToolByName("find_lens_journey")
	require.NotNil(t, journey)
	assert.Equal(t, CategoryCreative, journey.Category)

	aliases := rules.LensAliases("Feedback Loops")
	assert.Contains(t, aliases, "Feedback Loops")
	assert.Contains(t, aliases, "vicious cycle")
}

func TestLoadRules_RejectsUnknownSequenceTool(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	bad := `
lenses:
  - name: Feedback Loops
tools:
  - name: search_lenses
    category: basic
sequences:
  - [search_lenses, does_not_exist]
anti_patterns:
  repeat_threshold: 4
  search_tool: search_lenses
  random_tool: search_lenses
deep_markers: [because]
`
	require.NoError(t, os.WriteFile(path, []byte(bad), 0o644))

	_, err := LoadRules(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "does_not_exist")
}

func TestLoadRules_RejectsBadCategory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	bad := `
lenses:
  - name: Feedback Loops
tools:
  - name: search_lenses
    category: magical
anti_patterns:
  repeat_threshold: 4
  search_tool: search_lenses
  random_tool: search_lenses
deep_markers: [because]
`
	require.NoError(t, os.WriteFile(path, []byte(bad), 0o644))

	_, err := LoadRules(path)
	assert.Error(t, err)
}

// -----------------------------------------------------------------------------
// Semantic Diversity
// -----------------------------------------------------------------------------

func TestDiversityScorer_InsufficientConcepts(t *testing.T) {
	scorer := NewDiversityScorer(orthogonalEmbedder{}, nil)

	score := scorer.Score(context.Background(), "Hello world.")

	require.True(t, score.IsAvailable())
	assert.Equal(t, 0.0, *score.Value)
	assert.Contains(t, score.Evidence, "insufficient concepts")
}

func TestDiversityScorer_OrthogonalConceptsScoreTen(t *testing.T) {
	scorer := NewDiversityScorer(orthogonalEmbedder{}, nil)
	text := "- sharded write path\n- circadian rhythm alignment\n"

	score := scorer.Score(context.Background(), text)

	require.True(t, score.IsAvailable())
	assert.Equal(t, 10.0, *score.Value)
	assert.GreaterOrEqual(t, score.Breakdown["pairs"], 1.0)
}

func TestDiversityScorer_IdenticalConceptsScoreZero(t *testing.T) {
	scorer := NewDiversityScorer(identicalEmbedder{}, nil)
	text := "- sharded write path\n- circadian rhythm alignment\n"

	score := scorer.Score(context.Background(), text)

	require.True(t, score.IsAvailable())
	assert.Equal(t, 0.0, *score.Value)
}

func TestDiversityScorer_AdapterFailureIsUnavailable(t *testing.T) {
	scorer := NewDiversityScorer(failingEmbedder{}, nil)
	text := "- sharded write path\n- circadian rhythm alignment\n"

	score := scorer.Score(context.Background(), text)

	assert.False(t, score.IsAvailable())
	assert.Nil(t, score.Value)
	assert.Contains(t, score.Reason, "embedding failed")
}

// -----------------------------------------------------------------------------
// Frame Coverage
// -----------------------------------------------------------------------------

func TestCoverageScorer_NoMatchesScoresZero(t *testing.T) {
	scorer := NewCoverageScorer(testRules(t))

	score := scorer.Score("Generic advice about teamwork and communication.", testProblem())

	require.True(t, score.IsAvailable())
	assert.Equal(t, 0.0, *score.Value)
}

func TestCoverageScorer_AllDeepScoresTen(t *testing.T) {
	scorer := NewCoverageScorer(testRules(t))
	text := "The feedback loop amplifies churn because onboarding lags behind. " +
		"The bottleneck is the review stage because approvals queue up for days."

	score := scorer.Score(text, testProblem())

	require.True(t, score.IsAvailable())
	assert.Equal(t, 10.0, *score.Value)
	assert.Contains(t, score.Evidence, "Feedback Loops (deep)")
	assert.Contains(t, score.Evidence, "Bottleneck Theory (deep)")
}

func TestCoverageScorer_SurfaceMentionScoresLower(t *testing.T) {
	scorer := NewCoverageScorer(testRules(t))
	text := "There is a feedback loop here. Also note the bottleneck."

	score := scorer.Score(text, testProblem())

	require.True(t, score.IsAvailable())
	assert.Equal(t, 7.0, *score.Value)
}

func TestCoverageScorer_LowRelevanceIsInformationalOnly(t *testing.T) {
	scorer := NewCoverageScorer(testRules(t))
	text := "The feedback loop matters because retention compounds. " +
		"Pace layering also applies since slow layers absorb shock. " +
		"The bottleneck is review because approvals queue."

	score := scorer.Score(text, testProblem())

	require.True(t, score.IsAvailable())
	assert.Equal(t, 10.0, *score.Value)
	assert.Contains(t, score.Evidence, "Pace Layering (low-relevance)")
}

func TestCoverageScorer_NoExpectedLensesIsUnavailable(t *testing.T) {
	scorer := NewCoverageScorer(testRules(t))
	problem := testProblem()
	problem.ExpectedLenses = corpus.LensLists{}

	score := scorer.Score("Anything at all.", problem)

	assert.False(t, score.IsAvailable())
}

// -----------------------------------------------------------------------------
// Tool Patterns
// -----------------------------------------------------------------------------

func markdownDoc(text string) *corpus.ResponseDocument {
	return &corpus.ResponseDocument{
		ID:        "performance-stuck_current",
		ProblemID: "performance-stuck",
		Condition: "current",
		Format:    corpus.FormatMarkdown,
		Text:      text,
	}
}

func logDoc(text string) *corpus.ResponseDocument {
	doc := markdownDoc(text)
	doc.Format = corpus.FormatLog
	return doc
}

func TestToolScorer_NoToolsScoresZero(t *testing.T) {
	scorer := NewToolScorer(testRules(t))

	score := scorer.Score(markdownDoc("Just some plain advice with no tooling."))

	require.True(t, score.IsAvailable())
	assert.Equal(t, 0.0, *score.Value)
}

func TestToolScorer_MarkdownTriggerScan(t *testing.T) {
	scorer := NewToolScorer(testRules(t))
	text := "I'll search for relevant lenses first. " +
		"The journey from Bottleneck Theory to Pace Layering reveals a path."

	score := scorer.Score(markdownDoc(text))

	require.True(t, score.IsAvailable())
	// 2 distinct + creative bonus 2 + one matched sequence.
	assert.Equal(t, 5.0, *score.Value)
	assert.Contains(t, score.Evidence, "search_lenses")
	assert.Contains(t, score.Evidence, "find_lens_journey")
	assert.Contains(t, score.Evidence, "sequence: search_lenses -> find_lens_journey")
}

func TestToolScorer_LogParsing(t *testing.T) {
	scorer := NewToolScorer(testRules(t))
	log := `[
		{"role": "user", "content": "solve this"},
		{"role": "assistant", "tool_calls": [{"name": "search_lenses", "args": {"q": "constraints"}}]},
		{"role": "assistant", "tool_calls": [{"name": "find_bridge_lenses", "args": {}}]}
	]`

	score := scorer.Score(logDoc(log))

	require.True(t, score.IsAvailable())
	assert.Equal(t, 5.0, *score.Value)
}

func TestToolScorer_RepeatedInvocationPenalty(t *testing.T) {
	scorer := NewToolScorer(testRules(t))
	log := `[
		{"role": "assistant", "tool_calls": [
			{"name": "search_lenses"}, {"name": "search_lenses"},
			{"name": "search_lenses"}, {"name": "search_lenses"}
		]}
	]`

	score := scorer.Score(logDoc(log))

	require.True(t, score.IsAvailable())
	// diversity 1, no bonuses, repeated_invocation penalty 1.
	assert.Equal(t, 0.0, *score.Value)
	assert.Contains(t, score.Evidence, "anti-pattern: repeated_invocation")
}

func TestToolScorer_RandomOnlyPenalty(t *testing.T) {
	scorer := NewToolScorer(testRules(t))
	log := `[{"role": "assistant", "tool_calls": [{"name": "random_lens_provocation"}]}]`

	score := scorer.Score(logDoc(log))

	require.True(t, score.IsAvailable())
	// diversity 1 + creative 2 - random_only 1.
	assert.Equal(t, 2.0, *score.Value)
	assert.Contains(t, score.Evidence, "anti-pattern: random_only")
}

func TestToolScorer_NoFollowupPenalty(t *testing.T) {
	scorer := NewToolScorer(testRules(t))
	log := `[{"role": "assistant", "tool_calls": [{"name": "search_lenses"}]}]`

	score := scorer.Score(logDoc(log))

	require.True(t, score.IsAvailable())
	// diversity 1 - no_followup 1.
	assert.Equal(t, 0.0, *score.Value)
	assert.Contains(t, score.Evidence, "anti-pattern: no_followup")
}

func TestToolScorer_MalformedLogReadsAsToolFree(t *testing.T) {
	scorer := NewToolScorer(testRules(t))

	score := scorer.Score(logDoc("this is not json"))

	require.True(t, score.IsAvailable())
	assert.Equal(t, 0.0, *score.Value)
}

// -----------------------------------------------------------------------------
// Quality
// -----------------------------------------------------------------------------

func TestQualityScorer_AveragesVerdict(t *testing.T) {
	judge := &scriptedJudge{verdicts: []*adapters.Verdict{{
		Specificity: 8, Novelty: 7, Actionability: 6, Coherence: 9,
		Justification: "concrete plan with a fresh reframe",
		TokensUsed:    1234,
	}}}
	scorer := NewQualityScorer(judge, nil)

	score := scorer.Score(context.Background(), "candidate text", testProblem())

	require.True(t, score.IsAvailable())
	assert.Equal(t, 7.5, *score.Value)
	assert.Contains(t, score.Evidence, "specificity: 8")
	assert.Contains(t, score.Evidence, "justification: concrete plan with a fresh reframe")
	assert.Equal(t, "1234 judge tokens", score.CostNote)
	assert.Len(t, judge.prompts, 1)
}

func TestQualityScorer_PromptCarriesProblemContext(t *testing.T) {
	judge := &scriptedJudge{verdicts: []*adapters.Verdict{{
		Specificity: 5, Novelty: 5, Actionability: 5, Coherence: 5,
	}}}
	scorer := NewQualityScorer(judge, nil)
	problem := testProblem()

	scorer.Score(context.Background(), "the candidate response", problem)

	require.Len(t, judge.prompts, 1)
	assert.Contains(t, judge.prompts[0], problem.Statement)
	assert.Contains(t, judge.prompts[0], problem.BaselinePattern)
	assert.Contains(t, judge.prompts[0], problem.TargetPattern)
	assert.Contains(t, judge.prompts[0], "the candidate response")
}

func TestQualityScorer_MalformedTriggersSingleReprompt(t *testing.T) {
	judge := &scriptedJudge{
		errs: []error{adapters.Malformed("judge", errors.New("missing coherence field")), nil},
		verdicts: []*adapters.Verdict{nil, {
			Specificity: 6, Novelty: 6, Actionability: 6, Coherence: 6,
		}},
	}
	scorer := NewQualityScorer(judge, nil)

	score := scorer.Score(context.Background(), "candidate", testProblem())

	require.Len(t, judge.prompts, 2)
	assert.Contains(t, judge.prompts[1], "Return ONLY the JSON object")
	require.True(t, score.IsAvailable())
	assert.Equal(t, 6.0, *score.Value)
}

func TestQualityScorer_SecondMalformedIsUnavailable(t *testing.T) {
	judge := &scriptedJudge{errs: []error{
		adapters.Malformed("judge", errors.New("missing coherence field")),
		adapters.Malformed("judge", errors.New("still not json")),
	}}
	scorer := NewQualityScorer(judge, nil)

	score := scorer.Score(context.Background(), "candidate", testProblem())

	assert.Len(t, judge.prompts, 2)
	assert.False(t, score.IsAvailable())
	assert.Nil(t, score.Value)
}

func TestQualityScorer_PermanentFailureNotReprompted(t *testing.T) {
	judge := &scriptedJudge{errs: []error{
		adapters.Permanent("judge", errors.New("auth rejected")),
	}}
	scorer := NewQualityScorer(judge, nil)

	score := scorer.Score(context.Background(), "candidate", testProblem())

	assert.Len(t, judge.prompts, 1)
	assert.False(t, score.IsAvailable())
}

// -----------------------------------------------------------------------------
// Score Helpers
// -----------------------------------------------------------------------------

func TestNewScore_ClampsAndRounds(t *testing.T) {
	over := NewScore(MetricDiversity, 11.26)
	assert.Equal(t, 10.0, *over.Value)

	under := NewScore(MetricDiversity, -3)
	assert.Equal(t, 0.0, *under.Value)

	mid := NewScore(MetricDiversity, 7.46)
	assert.Equal(t, 7.5, *mid.Value)
}

func TestNewUnavailable(t *testing.T) {
	score := NewUnavailable(MetricQuality, "judge down")

	assert.False(t, score.IsAvailable())
	assert.Nil(t, score.Value)
	assert.Equal(t, "judge down", score.Reason)
}
