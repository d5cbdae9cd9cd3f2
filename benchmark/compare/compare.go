// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package compare pairs evaluation results across two conditions and
// computes per-metric and overall improvement deltas.
package compare

import (
	"sort"

	"github.com/AleutianAI/lenseval/benchmark/metrics"
	"github.com/AleutianAI/lenseval/benchmark/runner"
)

// Pair joins the two conditions' results for one problem.
type Pair struct {
	ProblemID  string   `json:"problem_id"`
	BaselineID string   `json:"baseline_id"`
	CurrentID  string   `json:"current_id"`
	Baseline   *float64 `json:"baseline_overall"`
	Current    *float64 `json:"current_overall"`
	Delta      *float64 `json:"delta"`
}

// MetricDelta reports the movement of one metric between conditions.
type MetricDelta struct {
	Metric       metrics.Metric `json:"metric"`
	BaselineMean *float64       `json:"baseline_mean"`
	CurrentMean  *float64       `json:"current_mean"`
	Delta        *float64       `json:"delta"`

	// PercentImprovement is nil when either mean is missing or when
	// the improvement is unbounded.
	PercentImprovement *float64 `json:"percent_improvement"`

	// Unbounded flags a baseline mean of exactly 0 against a positive
	// current mean; the ratio is not a meaningful number.
	Unbounded bool `json:"unbounded,omitempty"`
}

// ComparisonReport summarizes baseline-vs-current movement.
type ComparisonReport struct {
	Pairs            []Pair        `json:"pairs"`
	Metrics          []MetricDelta `json:"metrics"`
	Overall          MetricDelta   `json:"overall"`
	PairedCount      int           `json:"paired_count"`
	UnpairedBaseline []string      `json:"unpaired_baseline,omitempty"`
	UnpairedCurrent  []string      `json:"unpaired_current,omitempty"`
}

// -----------------------------------------------------------------------------
// Comparison
// -----------------------------------------------------------------------------

// Compare builds a ComparisonReport from the two conditions' corpus
// results.
//
// Description:
//
//	Documents pair one-to-one by problem identity. A problem with
//	multiple documents on either side is ambiguous; every document of
//	that problem on both sides is reported unpaired rather than
//	silently matched. Metric deltas use the corpus-level means, so
//	unavailable scores never drag an average toward zero.
func Compare(baseline, current *runner.CorpusResult) *ComparisonReport {
	report := &ComparisonReport{}
	report.Pairs, report.UnpairedBaseline, report.UnpairedCurrent =
		pairResults(baseline.Results, current.Results)
	report.PairedCount = len(report.Pairs)

	for _, metric := range metrics.AllMetrics {
		baseAgg, baseOK := baseline.Aggregate.Metrics[metric]
		currAgg, currOK := current.Aggregate.Metrics[metric]
		if !baseOK && !currOK {
			continue
		}
		delta := deltaOf(metric, baseAgg.Mean, currAgg.Mean)
		report.Metrics = append(report.Metrics, delta)
	}

	report.Overall = deltaOf("overall", baseline.Aggregate.Overall, current.Aggregate.Overall)
	return report
}

// pairResults groups both sides by problem and pairs the unambiguous
// ones.
func pairResults(baseline, current []runner.EvaluationResult) (pairs []Pair, unpairedA, unpairedB []string) {
	byProblemA := groupByProblem(baseline)
	byProblemB := groupByProblem(current)

	problems := make(map[string]struct{})
	for id := range byProblemA {
		problems[id] = struct{}{}
	}
	for id := range byProblemB {
		problems[id] = struct{}{}
	}
	ordered := make([]string, 0, len(problems))
	for id := range problems {
		ordered = append(ordered, id)
	}
	sort.Strings(ordered)

	for _, problemID := range ordered {
		sideA := byProblemA[problemID]
		sideB := byProblemB[problemID]
		if len(sideA) == 1 && len(sideB) == 1 {
			a, b := sideA[0], sideB[0]
			pair := Pair{
				ProblemID:  problemID,
				BaselineID: a.DocumentID,
				CurrentID:  b.DocumentID,
				Baseline:   a.Overall,
				Current:    b.Overall,
			}
			if a.Overall != nil && b.Overall != nil {
				d := metrics.Round1(*b.Overall - *a.Overall)
				pair.Delta = &d
			}
			pairs = append(pairs, pair)
			continue
		}
		for _, r := range sideA {
			unpairedA = append(unpairedA, r.DocumentID)
		}
		for _, r := range sideB {
			unpairedB = append(unpairedB, r.DocumentID)
		}
	}
	return pairs, unpairedA, unpairedB
}

func groupByProblem(results []runner.EvaluationResult) map[string][]runner.EvaluationResult {
	grouped := make(map[string][]runner.EvaluationResult)
	for _, r := range results {
		grouped[r.ProblemID] = append(grouped[r.ProblemID], r)
	}
	return grouped
}

// deltaOf applies the improvement formula to one pair of means.
func deltaOf(metric metrics.Metric, baseMean, currMean *float64) MetricDelta {
	delta := MetricDelta{Metric: metric, BaselineMean: baseMean, CurrentMean: currMean}
	if baseMean == nil || currMean == nil {
		return delta
	}

	d := metrics.Round1(*currMean - *baseMean)
	delta.Delta = &d

	switch {
	case *baseMean > 0:
		pct := metrics.Round1(100 * (*currMean - *baseMean) / *baseMean)
		delta.PercentImprovement = &pct
	case *currMean > 0:
		delta.Unbounded = true
	default:
		zero := 0.0
		delta.PercentImprovement = &zero
	}
	return delta
}
