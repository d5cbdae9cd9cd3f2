// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package metrics implements the four independent quality scorers of
// the evaluation pipeline: semantic diversity, frame coverage, tool
// usage patterns, and LLM-judged quality.
//
// Each scorer is stateless apart from its external adapter and returns
// a Score in [0, 10] or an explicit unavailable marker. A score of 0
// means "measured and found absent"; unavailable means "could not be
// measured", and the two are never conflated.
package metrics

import (
	"fmt"
	"math"
)

// -----------------------------------------------------------------------------
// Metric Names
// -----------------------------------------------------------------------------

// Metric identifies one of the four quality dimensions.
type Metric string

const (
	// MetricDiversity measures conceptual spread via embeddings.
	MetricDiversity Metric = "semantic_diversity"

	// MetricCoverage measures expected-lens coverage and depth.
	MetricCoverage Metric = "frame_coverage"

	// MetricTools measures tool-usage sophistication.
	MetricTools Metric = "tool_patterns"

	// MetricQuality is the LLM-judged quality dimension.
	MetricQuality Metric = "quality"
)

// AllMetrics lists every metric in report order.
var AllMetrics = []Metric{MetricDiversity, MetricCoverage, MetricTools, MetricQuality}

// -----------------------------------------------------------------------------
// Scores
// -----------------------------------------------------------------------------

// Score is the outcome of running one scorer over one document.
//
// Invariant: Value is non-nil iff Unavailable is false, and when
// present lies in [0, 10]. An unavailable score never participates in
// averages as zero.
type Score struct {
	// Metric names the dimension this score belongs to.
	Metric Metric `json:"metric"`

	// Value is the score in [0, 10]; nil when unavailable.
	Value *float64 `json:"value,omitempty"`

	// Unavailable marks a metric that could not be measured.
	Unavailable bool `json:"unavailable,omitempty"`

	// Reason explains why the metric is unavailable.
	Reason string `json:"reason,omitempty"`

	// Evidence lists matched phrases, lenses, or tools supporting the
	// value.
	Evidence []string `json:"evidence,omitempty"`

	// Breakdown exposes the intermediate quantities behind the value.
	Breakdown map[string]float64 `json:"breakdown,omitempty"`

	// CostNote records external-service cost (e.g. judge tokens).
	CostNote string `json:"cost_note,omitempty"`
}

// NewScore builds an available score, clamping value into [0, 10] and
// rounding to one decimal.
func NewScore(metric Metric, value float64, evidence ...string) Score {
	v := Round1(Clamp(value, 0, 10))
	return Score{Metric: metric, Value: &v, Evidence: evidence}
}

// NewUnavailable builds an unavailable marker with the given reason.
func NewUnavailable(metric Metric, reason string) Score {
	return Score{Metric: metric, Unavailable: true, Reason: reason}
}

// IsAvailable reports whether the score carries a numeric value.
func (s Score) IsAvailable() bool {
	return !s.Unavailable && s.Value != nil
}

// String renders the score for logs.
func (s Score) String() string {
	if !s.IsAvailable() {
		return fmt.Sprintf("%s: unavailable (%s)", s.Metric, s.Reason)
	}
	return fmt.Sprintf("%s: %.1f", s.Metric, *s.Value)
}

// -----------------------------------------------------------------------------
// Numeric Helpers
// -----------------------------------------------------------------------------

// Clamp bounds v into [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Round1 rounds to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
