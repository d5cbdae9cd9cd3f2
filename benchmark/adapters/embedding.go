// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package adapters

import (
	"context"
	"fmt"
	"sync"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/lenseval/pkg/logging"
)

// -----------------------------------------------------------------------------
// Embedder Interface
// -----------------------------------------------------------------------------

// Embedder maps a phrase to a fixed-dimension vector.
//
// Description:
//
//	Embedder is the contract consumed by the semantic diversity scorer.
//	Tests substitute a deterministic stub; production uses
//	OpenAIEmbedder. Errors carry the adapter taxonomy so callers can
//	distinguish "retry exhausted" from "stop calling this service".
//
// Thread Safety: Implementations must be safe for concurrent use.
type Embedder interface {
	// Embed returns the embedding vector for one phrase.
	Embed(ctx context.Context, phrase string) ([]float32, error)

	// BatchEmbed returns one vector per input phrase, in order.
	BatchEmbed(ctx context.Context, phrases []string) ([][]float32, error)
}

// -----------------------------------------------------------------------------
// Permanent-Failure Gate
// -----------------------------------------------------------------------------

// permanentGate latches the first permanent failure seen by an adapter
// and short-circuits every subsequent call, so a bad credential does
// not burn one full retry cycle per document.
type permanentGate struct {
	mu  sync.RWMutex
	err *AdapterError
}

func (g *permanentGate) check() *AdapterError {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.err
}

func (g *permanentGate) trip(err error) {
	if !IsPermanent(err) {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err == nil {
		var ae *AdapterError
		if asAdapterError(err, &ae) {
			g.err = ae
		}
	}
}

func asAdapterError(err error, target **AdapterError) bool {
	ae, ok := err.(*AdapterError)
	if ok {
		*target = ae
	}
	return ok
}

// -----------------------------------------------------------------------------
// OpenAI Embedder
// -----------------------------------------------------------------------------

// OpenAIEmbedder produces embeddings via the OpenAI embeddings API.
//
// Thread Safety: Safe for concurrent use.
type OpenAIEmbedder struct {
	client  *openai.Client
	model   openai.EmbeddingModel
	dims    int
	limiter *rate.Limiter
	retry   RetryPolicy
	gate    permanentGate
	logger  *logging.Logger
}

// NewOpenAIEmbedder creates an embedding adapter from configuration.
//
// Inputs:
//   - cfg: Adapter configuration from FromEnv.
//   - retry: Shared retry policy.
//   - logger: Structured logger. Must not be nil.
//
// Outputs:
//   - *OpenAIEmbedder: The adapter. Never nil.
func NewOpenAIEmbedder(cfg Config, retry RetryPolicy, logger *logging.Logger) *OpenAIEmbedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	return &OpenAIEmbedder{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   openai.EmbeddingModel(cfg.EmbeddingModel),
		dims:    cfg.EmbeddingDimensions,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		retry:   retry,
		logger:  logger,
	}
}

// Embed returns the embedding vector for one phrase.
func (e *OpenAIEmbedder) Embed(ctx context.Context, phrase string) ([]float32, error) {
	vectors, err := e.BatchEmbed(ctx, []string{phrase})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// BatchEmbed returns one vector per phrase, issuing a single request.
//
// Description:
//
//	Transient failures are retried per the shared policy. A permanent
//	failure trips the gate: all later calls on this adapter return the
//	latched error without touching the network.
func (e *OpenAIEmbedder) BatchEmbed(ctx context.Context, phrases []string) ([][]float32, error) {
	if len(phrases) == 0 {
		return nil, Permanent("embed", fmt.Errorf("no phrases to embed"))
	}
	if latched := e.gate.check(); latched != nil {
		return nil, latched
	}

	var vectors [][]float32
	err := e.retry.Do(ctx, "embed", func(ctx context.Context) error {
		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}
		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input:      phrases,
			Model:      e.model,
			Dimensions: e.dims,
		})
		if err != nil {
			return err
		}
		if len(resp.Data) != len(phrases) {
			return Malformed("embed", fmt.Errorf("expected %d vectors, got %d", len(phrases), len(resp.Data)))
		}
		vectors = make([][]float32, len(resp.Data))
		for i, item := range resp.Data {
			vectors[i] = item.Embedding
		}
		return nil
	})
	if err != nil {
		e.gate.trip(err)
		e.logger.Error("embedding request failed", "phrases", len(phrases), "error", err)
		return nil, err
	}
	return vectors, nil
}

var _ Embedder = (*OpenAIEmbedder)(nil)
