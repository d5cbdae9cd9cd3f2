// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package runner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/lenseval/benchmark/adapters"
	"github.com/AleutianAI/lenseval/benchmark/corpus"
	"github.com/AleutianAI/lenseval/benchmark/metrics"
)

// -----------------------------------------------------------------------------
// Stubs
// -----------------------------------------------------------------------------

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{1}, nil
}

func (stubEmbedder) BatchEmbed(_ context.Context, phrases []string) ([][]float32, error) {
	vectors := make([][]float32, len(phrases))
	for i := range phrases {
		v := make([]float32, len(phrases))
		v[i] = 1
		vectors[i] = v
	}
	return vectors, nil
}

type stubJudge struct{ calls int }

func (j *stubJudge) Judge(_ context.Context, _ string) (*adapters.Verdict, error) {
	j.calls++
	return &adapters.Verdict{
		Specificity: 6, Novelty: 6, Actionability: 6, Coherence: 6,
		Justification: "stub verdict",
	}, nil
}

func testCatalog() *corpus.Catalog {
	return corpus.NewCatalog(
		&corpus.ProblemSpec{
			ID:     "performance-stuck",
			Domain: "engineering",
			ExpectedLenses: corpus.LensLists{
				High:   []string{"Feedback Loops"},
				Medium: []string{"Bottleneck Theory"},
			},
			Statement:       "Deploys are slow and the team is stuck.",
			BaselinePattern: "Hire more engineers.",
			TargetPattern:   "Find the constraint.",
		},
		&corpus.ProblemSpec{
			ID:        "feature-overload",
			Domain:    "product",
			Statement: "The roadmap keeps growing.",
			ExpectedLenses: corpus.LensLists{
				High: []string{"Feature Fatigue"},
			},
			BaselinePattern: "Prioritize ruthlessly.",
			TargetPattern:   "Cut scope by job.",
		},
	)
}

func testRunner(t *testing.T, opts Options) (*Runner, *stubJudge) {
	t.Helper()
	rules, err := metrics.DefaultRules()
	require.NoError(t, err)
	judge := &stubJudge{}
	return New(testCatalog(), stubEmbedder{}, judge, rules, opts, nil), judge
}

func writeCorpus(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

const richResponse = "- map the feedback loop dynamics\n" +
	"- find the core constraint\n" +
	"The feedback loop matters because retention compounds. " +
	"The bottleneck is review because approvals queue up."

// -----------------------------------------------------------------------------
// Tests
// -----------------------------------------------------------------------------

func TestEvaluateDirectory(t *testing.T) {
	r, judge := testRunner(t, Options{})
	dir := writeCorpus(t, map[string]string{
		"performance-stuck_current.md": richResponse,
		"feature-overload_current.md":  "Feature fatigue sets in because users drown in options.",
	})

	result, err := r.EvaluateDirectory(context.Background(), dir)
	require.NoError(t, err)

	assert.Len(t, result.Results, 2)
	assert.False(t, result.Partial)
	assert.Equal(t, 2, judge.calls)
	assert.Equal(t, 2, result.Aggregate.Documents)

	for _, res := range result.Results {
		assert.Len(t, res.Scores, 4)
		require.NotNil(t, res.Overall)
		assert.GreaterOrEqual(t, *res.Overall, 0.0)
		assert.LessOrEqual(t, *res.Overall, 10.0)
	}

	quality, ok := result.Aggregate.Metrics[metrics.MetricQuality]
	require.True(t, ok)
	require.NotNil(t, quality.Mean)
	assert.Equal(t, 6.0, *quality.Mean)
	require.NotNil(t, result.Aggregate.Overall)
}

func TestEvaluateDirectory_SkipJudge(t *testing.T) {
	r, judge := testRunner(t, Options{SkipJudge: true})
	dir := writeCorpus(t, map[string]string{
		"performance-stuck_current.md": richResponse,
	})

	result, err := r.EvaluateDirectory(context.Background(), dir)
	require.NoError(t, err)

	assert.Zero(t, judge.calls)
	assert.Len(t, result.Results[0].Scores, 3)
	_, ok := result.Aggregate.Metrics[metrics.MetricQuality]
	assert.False(t, ok, "untried metric must not appear in the aggregate")
}

func TestEvaluateDirectory_UnresolvedProblemSkipped(t *testing.T) {
	r, _ := testRunner(t, Options{SkipJudge: true})
	dir := writeCorpus(t, map[string]string{
		"performance-stuck_current.md": richResponse,
		"mystery-problem_current.md":   "Response to a problem the catalog does not know.",
	})

	result, err := r.EvaluateDirectory(context.Background(), dir)
	require.NoError(t, err)

	assert.Len(t, result.Results, 1)
	require.Len(t, result.Skipped, 1)
	assert.Contains(t, result.Skipped[0].Reason, "mystery-problem")
}

func TestEvaluateDirectory_EmptyCorpusFails(t *testing.T) {
	r, _ := testRunner(t, Options{})

	_, err := r.EvaluateDirectory(context.Background(), t.TempDir())

	assert.ErrorIs(t, err, ErrNoDocuments)
}

func TestEvaluateDirectory_Sampling(t *testing.T) {
	r, _ := testRunner(t, Options{SkipJudge: true, Sample: 1})
	dir := writeCorpus(t, map[string]string{
		"performance-stuck_current.md": richResponse,
		"feature-overload_current.md":  "Feature fatigue sets in.",
	})

	first, err := r.EvaluateDirectory(context.Background(), dir)
	require.NoError(t, err)
	second, err := r.EvaluateDirectory(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, first.Results, 1)
	require.Len(t, second.Results, 1)
	assert.Equal(t, first.Results[0].DocumentID, second.Results[0].DocumentID)
}

func TestEvaluateDirectory_CancelledFlushesPartial(t *testing.T) {
	r, _ := testRunner(t, Options{SkipJudge: true})
	dir := writeCorpus(t, map[string]string{
		"performance-stuck_current.md": richResponse,
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := r.EvaluateDirectory(ctx, dir)
	require.NoError(t, err)

	assert.True(t, result.Partial)
	assert.Empty(t, result.Results)
}

// -----------------------------------------------------------------------------
// Aggregation
// -----------------------------------------------------------------------------

func scoreValue(metric metrics.Metric, v float64) metrics.Score {
	return metrics.NewScore(metric, v)
}

func TestAggregate_EmptySet(t *testing.T) {
	agg := Aggregate("empty", nil)

	assert.Equal(t, 0, agg.Documents)
	assert.Nil(t, agg.Overall)
	for _, metric := range metrics.AllMetrics {
		entry, ok := agg.Metrics[metric]
		require.True(t, ok)
		assert.Nil(t, entry.Mean)
	}
}

func TestAggregate_UnavailableNeverCountsAsZero(t *testing.T) {
	results := []EvaluationResult{
		{DocumentID: "a", Scores: []metrics.Score{
			scoreValue(metrics.MetricDiversity, 8),
		}},
		{DocumentID: "b", Scores: []metrics.Score{
			metrics.NewUnavailable(metrics.MetricDiversity, "embedding down"),
		}},
	}
	for i := range results {
		finalizeResult(&results[i])
	}

	agg := Aggregate("test", results)

	entry := agg.Metrics[metrics.MetricDiversity]
	require.NotNil(t, entry.Mean)
	assert.Equal(t, 8.0, *entry.Mean)
	assert.Equal(t, 1, entry.Available)
	assert.Equal(t, 1, entry.Unavailable)
}

func TestAggregate_OverallIsMeanOfMeans(t *testing.T) {
	results := []EvaluationResult{
		{DocumentID: "a", Scores: []metrics.Score{
			scoreValue(metrics.MetricDiversity, 4),
			scoreValue(metrics.MetricCoverage, 8),
		}},
	}
	for i := range results {
		finalizeResult(&results[i])
	}

	agg := Aggregate("test", results)

	require.NotNil(t, agg.Overall)
	assert.Equal(t, 6.0, *agg.Overall)
}

func TestFinalizeResult_NoAvailableMetrics(t *testing.T) {
	result := EvaluationResult{DocumentID: "a", Scores: []metrics.Score{
		metrics.NewUnavailable(metrics.MetricDiversity, "down"),
		metrics.NewUnavailable(metrics.MetricQuality, "down"),
	}}

	finalizeResult(&result)

	assert.Nil(t, result.Overall)
}
