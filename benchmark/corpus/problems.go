// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package corpus loads the static inputs of an evaluation run: the
// problem catalog and the response documents for each condition.
package corpus

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrUnknownProblem indicates a document references a problem id
	// absent from the catalog.
	ErrUnknownProblem = errors.New("problem not found in catalog")

	// ErrEmptyCatalog indicates the catalog source contained no problems.
	ErrEmptyCatalog = errors.New("problem catalog is empty")
)

// -----------------------------------------------------------------------------
// Problem Specs
// -----------------------------------------------------------------------------

// LensLists partitions a problem's expected lenses by relevance.
//
// High and medium lenses are scored against; low-relevance lenses are
// informational and never penalize absence.
type LensLists struct {
	High   []string `yaml:"high" json:"high"`
	Medium []string `yaml:"medium" json:"medium"`
	Low    []string `yaml:"low" json:"low"`
}

// Scored returns the concatenation of high and medium lenses, the set
// coverage is measured against.
func (l LensLists) Scored() []string {
	out := make([]string, 0, len(l.High)+len(l.Medium))
	out = append(out, l.High...)
	out = append(out, l.Medium...)
	return out
}

// ProblemSpec describes one benchmark problem. Immutable after load.
type ProblemSpec struct {
	// ID is the problem identifier referenced from document filenames.
	ID string `yaml:"id" json:"id" validate:"required"`

	// Domain tags the problem area (e.g. "code", "strategy").
	Domain string `yaml:"domain" json:"domain" validate:"required"`

	// ExpectedLenses lists lens names by relevance tier.
	ExpectedLenses LensLists `yaml:"expected_lenses" json:"expected_lenses"`

	// Statement is the problem prompt shown to the agent.
	Statement string `yaml:"statement" json:"statement" validate:"required"`

	// BaselinePattern sketches the conventional-wisdom solution.
	BaselinePattern string `yaml:"baseline_pattern" json:"baseline_pattern"`

	// TargetPattern sketches the creative-reframe solution.
	TargetPattern string `yaml:"target_pattern" json:"target_pattern"`
}

// Catalog indexes ProblemSpecs by identifier.
//
// Thread Safety: Read-only after LoadCatalog; safe for concurrent use.
type Catalog struct {
	problems map[string]*ProblemSpec
}

// catalogFile is the YAML shape of a catalog source file.
type catalogFile struct {
	Problems []*ProblemSpec `yaml:"problems"`
}

// LoadCatalog reads problem specs from a YAML file or a directory of
// YAML files.
//
// Inputs:
//   - path: A .yaml/.yml file, or a directory scanned non-recursively.
//
// Outputs:
//   - *Catalog: The indexed catalog.
//   - error: Non-nil on unreadable source, parse failure, validation
//     failure, duplicate id, or an empty result.
func LoadCatalog(path string) (*Catalog, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat catalog source: %w", err)
	}

	var files []string
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog directory: %w", err)
		}
		for _, entry := range entries {
			ext := filepath.Ext(entry.Name())
			if !entry.IsDir() && (ext == ".yaml" || ext == ".yml") {
				files = append(files, filepath.Join(path, entry.Name()))
			}
		}
		sort.Strings(files)
	} else {
		files = []string{path}
	}

	validate := validator.New()
	catalog := &Catalog{problems: make(map[string]*ProblemSpec)}

	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read catalog file %s: %w", file, err)
		}
		var parsed catalogFile
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return nil, fmt.Errorf("parse catalog file %s: %w", file, err)
		}
		for _, problem := range parsed.Problems {
			if err := validate.Struct(problem); err != nil {
				return nil, fmt.Errorf("invalid problem in %s: %w", file, err)
			}
			if _, exists := catalog.problems[problem.ID]; exists {
				return nil, fmt.Errorf("duplicate problem id %q in %s", problem.ID, file)
			}
			catalog.problems[problem.ID] = problem
		}
	}

	if len(catalog.problems) == 0 {
		return nil, ErrEmptyCatalog
	}
	return catalog, nil
}

// NewCatalog builds a catalog from in-memory specs. Used by tests.
func NewCatalog(problems ...*ProblemSpec) *Catalog {
	catalog := &Catalog{problems: make(map[string]*ProblemSpec, len(problems))}
	for _, p := range problems {
		catalog.problems[p.ID] = p
	}
	return catalog
}

// Get resolves a problem by id.
//
// Outputs:
//   - *ProblemSpec: The spec, nil when absent.
//   - error: ErrUnknownProblem when absent.
func (c *Catalog) Get(id string) (*ProblemSpec, error) {
	problem, ok := c.problems[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProblem, id)
	}
	return problem, nil
}

// Len returns the number of problems in the catalog.
func (c *Catalog) Len() int {
	return len(c.problems)
}

// IDs returns all problem ids, sorted.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.problems))
	for id := range c.problems {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
