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
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	problemsPath string
	rulesPath    string
	outputPath   string
	sampleSize   int
	workers      int
	noLLMJudge   bool

	rootCmd = &cobra.Command{
		Use:   "lenseval",
		Short: "A cli to score and compare agent responses across conditions",
		Long: `Lenseval evaluates free-text agent responses on four quality
				dimensions (semantic diversity, frame coverage, tool usage,
				LLM-judged quality) and compares conditions such as baseline
				vs with-tooling.`,
	}

	evaluateCmd = &cobra.Command{
		Use:   "evaluate [results dir]",
		Short: "Score every response document in a corpus directory",
		Args:  cobra.ExactArgs(1),
		RunE:  runEvaluate, // Defined in cmd_evaluate.go
	}

	compareCmd = &cobra.Command{
		Use:   "compare [baseline dir] [current dir]",
		Short: "Score two corpora and report per-metric improvement",
		Args:  cobra.ExactArgs(2),
		RunE:  runCompare, // Defined in cmd_compare.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&problemsPath, "problems", "problems",
		"Path to the problem catalog (YAML file or directory)")
	rootCmd.PersistentFlags().StringVar(&rulesPath, "rules", "",
		"Optional override for the scoring rule tables (YAML)")
	rootCmd.PersistentFlags().StringVar(&outputPath, "output", "lenseval-report.json",
		"Path for the JSON report; parent directories are created, \"-\" writes to stdout")
	rootCmd.PersistentFlags().IntVar(&sampleSize, "sample", 0,
		"Evaluate a deterministic sample of N documents per corpus")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0,
		"Concurrent document evaluations (default 4)")
	rootCmd.PersistentFlags().BoolVar(&noLLMJudge, "no-llm-judge", false,
		"Skip the LLM-judged quality metric")

	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(compareCmd)
}
