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
	"errors"

	"github.com/kelseyhightower/envconfig"
)

// ErrMissingAPIKey indicates no credential was found in the environment.
var ErrMissingAPIKey = errors.New("OPENAI_API_KEY not set")

// Config holds external-service configuration, read once at startup
// from the process environment and treated as read-only afterwards.
type Config struct {
	// APIKey authenticates both the embedding and judge services.
	APIKey string `envconfig:"OPENAI_API_KEY"`

	// BaseURL overrides the API endpoint, e.g. for a gateway proxy.
	BaseURL string `envconfig:"LENSEVAL_API_BASE_URL"`

	// EmbeddingModel names the embedding model.
	EmbeddingModel string `envconfig:"LENSEVAL_EMBEDDING_MODEL" default:"text-embedding-3-small"`

	// EmbeddingDimensions is the requested vector width.
	EmbeddingDimensions int `envconfig:"LENSEVAL_EMBEDDING_DIMENSIONS" default:"384"`

	// JudgeModel names the chat model used as evaluation judge.
	JudgeModel string `envconfig:"LENSEVAL_JUDGE_MODEL" default:"gpt-4o"`

	// RequestsPerSecond throttles each adapter independently.
	RequestsPerSecond float64 `envconfig:"LENSEVAL_REQUESTS_PER_SECOND" default:"5"`
}

// FromEnv loads adapter configuration from the environment.
//
// Outputs:
//   - Config: Populated configuration.
//   - error: ErrMissingAPIKey when no credential is present, or an
//     envconfig parse failure.
func FromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	if cfg.APIKey == "" {
		return Config{}, ErrMissingAPIKey
	}
	return cfg, nil
}
