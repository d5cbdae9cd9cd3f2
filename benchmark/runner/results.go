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
	"github.com/AleutianAI/lenseval/benchmark/corpus"
	"github.com/AleutianAI/lenseval/benchmark/metrics"
)

// EvaluationResult holds every metric score produced for one response
// document. Derived values are never mutated after creation.
type EvaluationResult struct {
	DocumentID string          `json:"document_id"`
	ProblemID  string          `json:"problem_id"`
	Condition  string          `json:"condition"`
	Scores     []metrics.Score `json:"scores"`

	// Overall is the mean of the available metric values; nil when no
	// metric could be scored.
	Overall *float64 `json:"overall"`
}

// Score returns the result's score for one metric, or nil if that
// metric was never attempted.
func (r *EvaluationResult) Score(metric metrics.Metric) *metrics.Score {
	for i := range r.Scores {
		if r.Scores[i].Metric == metric {
			return &r.Scores[i]
		}
	}
	return nil
}

// MetricAggregate summarizes one metric across a corpus.
type MetricAggregate struct {
	// Mean is the average over documents where the metric was
	// available; nil when it never was.
	Mean *float64 `json:"mean"`

	// Available counts documents with a numeric value.
	Available int `json:"available"`

	// Unavailable counts documents where the metric was attempted but
	// could not be scored.
	Unavailable int `json:"unavailable"`
}

// AggregateReport summarizes a whole corpus run.
type AggregateReport struct {
	Corpus    string                             `json:"corpus"`
	Documents int                                `json:"documents"`
	Metrics   map[metrics.Metric]MetricAggregate `json:"metrics"`

	// Overall is the mean of the available per-metric means. Metrics
	// never attempted are excluded from the denominator.
	Overall *float64 `json:"overall"`
}

// CorpusResult bundles the per-document results behind an
// AggregateReport, plus load-time skips.
type CorpusResult struct {
	Aggregate AggregateReport          `json:"aggregate"`
	Results   []EvaluationResult       `json:"results"`
	Skipped   []corpus.SkippedDocument `json:"skipped_documents,omitempty"`

	// Partial marks a run aborted before every document completed.
	Partial bool `json:"partial,omitempty"`
}

// -----------------------------------------------------------------------------
// Aggregation
// -----------------------------------------------------------------------------

// finalizeResult derives the overall score for one document.
func finalizeResult(result *EvaluationResult) {
	var sum float64
	var n int
	for _, sc := range result.Scores {
		if sc.IsAvailable() {
			sum += *sc.Value
			n++
		}
	}
	if n > 0 {
		overall := metrics.Round1(sum / float64(n))
		result.Overall = &overall
	}
}

// Aggregate builds the corpus summary over a set of finalized results.
//
// Description:
//
//	Per metric, the mean covers only documents where that metric is
//	available; unavailable markers never count as zero. An empty
//	result set yields null means for every metric rather than an
//	error.
func Aggregate(name string, results []EvaluationResult) AggregateReport {
	attempted := make(map[metrics.Metric]bool)
	for i := range results {
		for _, sc := range results[i].Scores {
			attempted[sc.Metric] = true
		}
	}

	agg := AggregateReport{
		Corpus:    name,
		Documents: len(results),
		Metrics:   make(map[metrics.Metric]MetricAggregate),
	}

	for _, metric := range metrics.AllMetrics {
		if len(results) > 0 && !attempted[metric] {
			continue
		}
		var sum float64
		entry := MetricAggregate{}
		for i := range results {
			sc := results[i].Score(metric)
			if sc == nil {
				continue
			}
			if sc.IsAvailable() {
				sum += *sc.Value
				entry.Available++
			} else {
				entry.Unavailable++
			}
		}
		if entry.Available > 0 {
			mean := metrics.Round1(sum / float64(entry.Available))
			entry.Mean = &mean
		}
		agg.Metrics[metric] = entry
	}

	var sum float64
	var n int
	for _, entry := range agg.Metrics {
		if entry.Mean != nil {
			sum += *entry.Mean
			n++
		}
	}
	if n > 0 {
		overall := metrics.Round1(sum / float64(n))
		agg.Overall = &overall
	}
	return agg
}
