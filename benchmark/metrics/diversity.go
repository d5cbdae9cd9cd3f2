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
	"math"

	"github.com/AleutianAI/lenseval/benchmark/adapters"
	"github.com/AleutianAI/lenseval/pkg/logging"
)

// DiversityScorer measures the semantic spread of the concepts a
// response explores. Broad, mixed-distance concept sets score high;
// generic advice clusters tightly and scores low.
//
// Thread Safety: stateless apart from the embedder; safe for
// concurrent use when the embedder is.
type DiversityScorer struct {
	embedder adapters.Embedder
	logger   *logging.Logger
}

// NewDiversityScorer creates a diversity scorer backed by the given
// embedding adapter.
func NewDiversityScorer(embedder adapters.Embedder, logger *logging.Logger) *DiversityScorer {
	if logger == nil {
		logger = logging.Default()
	}
	return &DiversityScorer{embedder: embedder, logger: logger}
}

// Score computes the semantic diversity of a response text.
//
// Description:
//
//	Extracts concept phrases, embeds them, and scores the pairwise
//	cosine-distance statistics. Fewer than two extractable concepts is
//	a real signal about the response and scores 0. An embedding
//	adapter failure is not a judgment about the text, so the metric is
//	reported unavailable rather than fabricated.
//
// Outputs:
//   - Score: semantic_diversity in [0,10], or unavailable on adapter
//     failure.
func (s *DiversityScorer) Score(ctx context.Context, text string) Score {
	phrases := ExtractConcepts(text)
	if len(phrases) < 2 {
		sc := NewScore(MetricDiversity, 0, "insufficient concepts")
		sc.Breakdown = map[string]float64{"concepts": float64(len(phrases))}
		return sc
	}

	vectors, err := s.embedder.BatchEmbed(ctx, phrases)
	if err != nil {
		s.logger.Warn("embedding unavailable, skipping diversity",
			"error", err, "concepts", len(phrases))
		return NewUnavailable(MetricDiversity, fmt.Sprintf("embedding failed: %v", err))
	}
	if len(vectors) != len(phrases) {
		return NewUnavailable(MetricDiversity,
			fmt.Sprintf("embedding returned %d vectors for %d phrases", len(vectors), len(phrases)))
	}

	distances := pairwiseDistances(vectors)
	meanD := mean(distances)
	varD := variance(distances, meanD)

	value := Clamp(10*meanD+5*math.Min(varD, 1), 0, 10)
	sc := NewScore(MetricDiversity, value, phrases...)
	sc.Breakdown = map[string]float64{
		"mean_distance": Round1(meanD * 10),
		"variance":      Round1(varD * 10),
		"min_distance":  Round1(minOf(distances) * 10),
		"max_distance":  Round1(maxOf(distances) * 10),
		"pairs":         float64(len(distances)),
		"concepts":      float64(len(phrases)),
	}
	return sc
}

// -----------------------------------------------------------------------------
// Vector Math
// -----------------------------------------------------------------------------

// pairwiseDistances returns the cosine distance for every unordered
// vector pair.
func pairwiseDistances(vectors [][]float32) []float64 {
	distances := make([]float64, 0, len(vectors)*(len(vectors)-1)/2)
	for i := 0; i < len(vectors); i++ {
		for j := i + 1; j < len(vectors); j++ {
			distances = append(distances, 1-cosineSimilarity(vectors[i], vectors[j]))
		}
	}
	return distances
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func variance(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return sum / float64(len(values))
}

func minOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
