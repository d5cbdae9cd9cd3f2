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

	"github.com/AleutianAI/lenseval/benchmark/compare"
	"github.com/AleutianAI/lenseval/benchmark/report"
)

func runCompare(cmd *cobra.Command, args []string) error {
	r, err := buildRunner()
	if err != nil {
		return err
	}

	baseline, err := r.EvaluateDirectory(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	current, err := r.EvaluateDirectory(cmd.Context(), args[1])
	if err != nil {
		return err
	}

	comparison := compare.Compare(baseline, current)
	logger.Info("comparison complete",
		"paired", comparison.PairedCount,
		"unpaired_baseline", len(comparison.UnpairedBaseline),
		"unpaired_current", len(comparison.UnpairedCurrent))

	return writeReport(report.NewComparison(baseline, current, comparison))
}
