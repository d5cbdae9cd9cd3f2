// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package metrics

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesData []byte

// ToolCategory partitions the tool registry for scoring.
type ToolCategory string

const (
	CategoryBasic    ToolCategory = "basic"
	CategoryCreative ToolCategory = "creative"
)

// LensDef names a conceptual lens and the alias phrases that count as
// a mention of it.
type LensDef struct {
	Name    string   `yaml:"name" json:"name" validate:"required"`
	Aliases []string `yaml:"aliases" json:"aliases"`
}

// ToolDef describes one entry of the tool registry.
type ToolDef struct {
	Name     string       `yaml:"name" json:"name" validate:"required"`
	Category ToolCategory `yaml:"category" json:"category" validate:"required,oneof=basic creative"`
	Triggers []string     `yaml:"triggers" json:"triggers"`
}

// AntiPatternConfig parameterizes anti-pattern detection.
type AntiPatternConfig struct {
	// RepeatThreshold is the consecutive-run length of one tool that
	// counts as the repeated-invocation anti-pattern.
	RepeatThreshold int `yaml:"repeat_threshold" json:"repeat_threshold" validate:"min=2"`

	// SearchTool names the registry entry checked by no_followup.
	SearchTool string `yaml:"search_tool" json:"search_tool" validate:"required"`

	// RandomTool names the registry entry checked by random_only.
	RandomTool string `yaml:"random_tool" json:"random_tool" validate:"required"`
}

// RuleSet holds every externally-configurable scoring table. Scorer
// logic never hard-codes lens names, tool tokens, or pattern catalogs;
// it consults the RuleSet it was constructed with.
//
// Thread Safety: a RuleSet is read-only after construction and safe to
// share across scorer goroutines.
type RuleSet struct {
	Lenses       []LensDef         `yaml:"lenses" json:"lenses" validate:"required,min=1,dive"`
	Tools        []ToolDef         `yaml:"tools" json:"tools" validate:"required,min=1,dive"`
	Sequences    [][]string        `yaml:"sequences" json:"sequences" validate:"dive,min=2,max=3"`
	AntiPatterns AntiPatternConfig `yaml:"anti_patterns" json:"anti_patterns"`
	DeepMarkers  []string          `yaml:"deep_markers" json:"deep_markers" validate:"required,min=1"`
}

// -----------------------------------------------------------------------------
// Loading
// -----------------------------------------------------------------------------

// DefaultRules returns the embedded rule tables.
func DefaultRules() (*RuleSet, error) {
	return parseRules(defaultRulesData)
}

// LoadRules reads a rule table override from a YAML file.
//
// Inputs:
//   - path: YAML file with the same layout as the embedded defaults.
//
// Outputs:
//   - *RuleSet: Validated tables.
//   - error: Unreadable file, malformed YAML, or failed validation.
func LoadRules(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	rules, err := parseRules(data)
	if err != nil {
		return nil, fmt.Errorf("rules %s: %w", path, err)
	}
	return rules, nil
}

func parseRules(data []byte) (*RuleSet, error) {
	var rules RuleSet
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	if err := validator.New().Struct(&rules); err != nil {
		return nil, fmt.Errorf("validate rules: %w", err)
	}
	known := make(map[string]struct{}, len(rules.Tools))
	for _, tool := range rules.Tools {
		known[tool.Name] = struct{}{}
	}
	for _, seq := range rules.Sequences {
		for _, name := range seq {
			if _, ok := known[name]; !ok {
				return nil, fmt.Errorf("validate rules: sequence references unknown tool %q", name)
			}
		}
	}
	for _, name := range []string{rules.AntiPatterns.SearchTool, rules.AntiPatterns.RandomTool} {
		if _, ok := known[name]; !ok {
			return nil, fmt.Errorf("validate rules: anti-pattern references unknown tool %q", name)
		}
	}
	return &rules, nil
}

// -----------------------------------------------------------------------------
// Lookups
// -----------------------------------------------------------------------------

// ToolByName returns the registry entry for a tool, or nil.
func (r *RuleSet) ToolByName(name string) *ToolDef {
	for i := range r.Tools {
		if r.Tools[i].Name == name {
			return &r.Tools[i]
		}
	}
	return nil
}

// LensAliases returns every phrase that counts as a mention of the
// named lens, including the name itself. Nil if the lens is not in the
// vocabulary; callers fall back to matching the raw name.
func (r *RuleSet) LensAliases(name string) []string {
	for i := range r.Lenses {
		if r.Lenses[i].Name == name {
			aliases := make([]string, 0, len(r.Lenses[i].Aliases)+1)
			aliases = append(aliases, r.Lenses[i].Name)
			aliases = append(aliases, r.Lenses[i].Aliases...)
			return aliases
		}
	}
	return nil
}
