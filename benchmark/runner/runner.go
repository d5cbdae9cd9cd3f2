// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package runner orchestrates corpus evaluation: it loads response
// documents, resolves them to their problems, runs the four scorers
// over a bounded worker pool, and aggregates per-metric summaries.
package runner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/lenseval/benchmark/adapters"
	"github.com/AleutianAI/lenseval/benchmark/corpus"
	"github.com/AleutianAI/lenseval/benchmark/metrics"
	"github.com/AleutianAI/lenseval/pkg/logging"
)

// ErrNoDocuments means a corpus directory yielded nothing loadable.
// This is the only fatal load condition; individual bad documents are
// skipped with a warning.
var ErrNoDocuments = errors.New("no loadable documents in corpus")

// DefaultWorkers bounds concurrent document evaluations. The binding
// constraint is the external services' rate limits, not local compute.
const DefaultWorkers = 4

// Options configures a corpus run.
type Options struct {
	// Workers is the worker pool size; DefaultWorkers when zero.
	Workers int

	// SkipJudge disables the LLM-judged quality metric.
	SkipJudge bool

	// Sample retains a deterministic subset of this size when
	// positive.
	Sample int
}

// Runner evaluates corpora of response documents.
//
// Thread Safety: a Runner is read-only after construction; a single
// Runner may evaluate multiple directories sequentially or from
// separate goroutines.
type Runner struct {
	catalog   *corpus.Catalog
	diversity *metrics.DiversityScorer
	coverage  *metrics.CoverageScorer
	tools     *metrics.ToolScorer
	quality   *metrics.QualityScorer
	opts      Options
	logger    *logging.Logger
	tracer    trace.Tracer
}

// New creates a Runner wiring the scorers to the given adapters and
// rule tables.
func New(
	catalog *corpus.Catalog,
	embedder adapters.Embedder,
	judge adapters.Judge,
	rules *metrics.RuleSet,
	opts Options,
	logger *logging.Logger,
) *Runner {
	if logger == nil {
		logger = logging.Default()
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	return &Runner{
		catalog:   catalog,
		diversity: metrics.NewDiversityScorer(embedder, logger),
		coverage:  metrics.NewCoverageScorer(rules),
		tools:     metrics.NewToolScorer(rules),
		quality:   metrics.NewQualityScorer(judge, logger),
		opts:      opts,
		logger:    logger,
		tracer:    otel.Tracer("lenseval/runner"),
	}
}

// -----------------------------------------------------------------------------
// Corpus Evaluation
// -----------------------------------------------------------------------------

// EvaluateDirectory runs the full pipeline over one corpus directory.
//
// Description:
//
//	Loads every document, drops those whose problem cannot be
//	resolved, applies deterministic sampling when requested, then
//	scores documents concurrently. Cancellation mid-batch flushes the
//	results completed so far into a partial CorpusResult instead of
//	discarding them; judge calls are costly and their results must not
//	be wasted.
//
// Outputs:
//   - *CorpusResult: Aggregate plus per-document results. Partial is
//     set when the run was aborted.
//   - error: Only when the directory is unreadable or yields no
//     loadable documents.
func (r *Runner) EvaluateDirectory(ctx context.Context, dir string) (*CorpusResult, error) {
	name := filepath.Base(filepath.Clean(dir))

	docs, skipped, err := corpus.LoadDirectory(dir)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoDocuments, dir)
	}

	docs, skipped = r.resolveProblems(docs, skipped)
	if r.opts.Sample > 0 {
		docs = corpus.Sample(docs, r.opts.Sample)
	}

	r.logger.Info("evaluating corpus",
		"corpus", name, "documents", len(docs),
		"workers", r.opts.Workers, "skip_judge", r.opts.SkipJudge)

	results := r.scoreAll(ctx, docs)

	result := &CorpusResult{
		Aggregate: Aggregate(name, results),
		Results:   results,
		Skipped:   skipped,
		Partial:   ctx.Err() != nil && len(results) < len(docs),
	}
	if result.Partial {
		r.logger.Warn("run aborted, flushing partial results",
			"corpus", name, "completed", len(results), "total", len(docs))
	}
	return result, nil
}

// resolveProblems drops documents that reference an unknown problem.
func (r *Runner) resolveProblems(
	docs []corpus.ResponseDocument,
	skipped []corpus.SkippedDocument,
) ([]corpus.ResponseDocument, []corpus.SkippedDocument) {
	kept := docs[:0]
	for _, doc := range docs {
		if _, err := r.catalog.Get(doc.ProblemID); err != nil {
			r.logger.Warn("skipping document with unresolved problem",
				"document", doc.ID, "problem", doc.ProblemID)
			skipped = append(skipped, corpus.SkippedDocument{
				Path:   doc.ID,
				Reason: fmt.Sprintf("unresolved problem %q", doc.ProblemID),
			})
			continue
		}
		kept = append(kept, doc)
	}
	return kept, skipped
}

// scoreAll fans documents out over the worker pool and collects the
// results that completed.
func (r *Runner) scoreAll(ctx context.Context, docs []corpus.ResponseDocument) []EvaluationResult {
	completed := make([]*EvaluationResult, len(docs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for i := range docs {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			result := r.scoreDocument(gctx, &docs[i])
			mu.Lock()
			completed[i] = result
			mu.Unlock()
			return nil
		})
	}
	// The only task error is cancellation; partial results are kept.
	_ = g.Wait()

	results := make([]EvaluationResult, 0, len(docs))
	for _, result := range completed {
		if result != nil {
			results = append(results, *result)
		}
	}
	return results
}

// scoreDocument runs the four scorers for one document. All scorers
// complete, or are marked unavailable, before the result is finalized.
func (r *Runner) scoreDocument(ctx context.Context, doc *corpus.ResponseDocument) *EvaluationResult {
	ctx, span := r.tracer.Start(ctx, "runner.scoreDocument",
		trace.WithAttributes(
			attribute.String("document.id", doc.ID),
			attribute.String("document.problem", doc.ProblemID),
			attribute.String("document.condition", doc.Condition),
		))
	defer span.End()

	problem, err := r.catalog.Get(doc.ProblemID)
	if err != nil {
		// Unreachable after resolveProblems; guard anyway.
		return nil
	}

	result := &EvaluationResult{
		DocumentID: doc.ID,
		ProblemID:  doc.ProblemID,
		Condition:  doc.Condition,
	}
	result.Scores = append(result.Scores, r.diversity.Score(ctx, doc.Text))
	result.Scores = append(result.Scores, r.coverage.Score(doc.Text, problem))
	result.Scores = append(result.Scores, r.tools.Score(doc))
	if !r.opts.SkipJudge {
		result.Scores = append(result.Scores, r.quality.Score(ctx, doc.Text, problem))
	}
	finalizeResult(result)

	if result.Overall != nil {
		span.SetAttributes(attribute.Float64("result.overall", *result.Overall))
	}
	r.logger.Debug("document scored", "document", doc.ID, "overall", result.Overall)
	return result
}
