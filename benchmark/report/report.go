// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package report serializes evaluation runs to a JSON artifact and
// reads them back.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/lenseval/benchmark/compare"
	"github.com/AleutianAI/lenseval/benchmark/corpus"
	"github.com/AleutianAI/lenseval/benchmark/runner"
)

// Report is the persisted artifact of one run. Single-corpus runs
// fill Corpus; comparison runs fill Baseline, Current, and Comparison.
type Report struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`

	Corpus *runner.CorpusResult `json:"corpus,omitempty"`

	Baseline   *runner.CorpusResult      `json:"baseline,omitempty"`
	Current    *runner.CorpusResult      `json:"current,omitempty"`
	Comparison *compare.ComparisonReport `json:"comparison,omitempty"`

	Skipped []corpus.SkippedDocument `json:"skipped_documents"`
}

// NewSingle wraps one corpus run in a report envelope.
func NewSingle(result *runner.CorpusResult) *Report {
	return &Report{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Corpus:      result,
		Skipped:     result.Skipped,
	}
}

// NewComparison wraps a baseline/current pair plus its comparison.
func NewComparison(baseline, current *runner.CorpusResult, comparison *compare.ComparisonReport) *Report {
	skipped := make([]corpus.SkippedDocument, 0, len(baseline.Skipped)+len(current.Skipped))
	skipped = append(skipped, baseline.Skipped...)
	skipped = append(skipped, current.Skipped...)
	return &Report{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Baseline:    baseline,
		Current:     current,
		Comparison:  comparison,
		Skipped:     skipped,
	}
}

// Write serializes the report to path as indented JSON, creating
// parent directories as needed.
func (r *Report) Write(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create report dir %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}

// Read parses a previously written report.
func Read(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report %s: %w", path, err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse report %s: %w", path, err)
	}
	return &r, nil
}
