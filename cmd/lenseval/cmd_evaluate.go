// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/lenseval/benchmark/adapters"
	"github.com/AleutianAI/lenseval/benchmark/corpus"
	"github.com/AleutianAI/lenseval/benchmark/metrics"
	"github.com/AleutianAI/lenseval/benchmark/report"
	"github.com/AleutianAI/lenseval/benchmark/runner"
)

// buildRunner assembles the evaluation pipeline from flags and
// environment. Credentials are read once here; the adapters keep them
// read-only for the rest of the run.
func buildRunner() (*runner.Runner, error) {
	catalog, err := corpus.LoadCatalog(problemsPath)
	if err != nil {
		return nil, fmt.Errorf("load problem catalog: %w", err)
	}

	rules, err := loadRules()
	if err != nil {
		return nil, err
	}

	cfg, err := adapters.FromEnv()
	if err != nil {
		return nil, err
	}
	retry := adapters.DefaultRetryPolicy()
	embedder := adapters.NewOpenAIEmbedder(cfg, retry, logger)
	judge := adapters.NewOpenAIJudge(cfg, retry, logger)

	opts := runner.Options{
		Workers:   workers,
		SkipJudge: noLLMJudge,
		Sample:    sampleSize,
	}
	return runner.New(catalog, embedder, judge, rules, opts, logger), nil
}

func loadRules() (*metrics.RuleSet, error) {
	if rulesPath != "" {
		return metrics.LoadRules(rulesPath)
	}
	return metrics.DefaultRules()
}

// writeReport emits the report artifact to --output, or stdout for
// "-".
func writeReport(r *report.Report) error {
	if outputPath == "-" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	if err := r.Write(outputPath); err != nil {
		return err
	}
	logger.Info("report written", "path", outputPath, "run_id", r.RunID)
	return nil
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	r, err := buildRunner()
	if err != nil {
		return err
	}

	result, err := r.EvaluateDirectory(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return writeReport(report.NewSingle(result))
}
