// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package corpus

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// -----------------------------------------------------------------------------
// Response Documents
// -----------------------------------------------------------------------------

// DocumentFormat distinguishes prose responses from conversation logs.
type DocumentFormat int

const (
	// FormatMarkdown is a free-text agent response.
	FormatMarkdown DocumentFormat = iota

	// FormatLog is a JSON conversation log carrying explicit tool_calls.
	FormatLog
)

// ResponseDocument is one agent response loaded from disk. Immutable
// once loaded.
type ResponseDocument struct {
	// ID is the filename without extension, unique within a corpus.
	ID string `json:"id"`

	// ProblemID references the owning ProblemSpec.
	ProblemID string `json:"problem_id"`

	// Condition tags the experimental condition (e.g. "baseline").
	Condition string `json:"condition"`

	// Format says how the text should be interpreted.
	Format DocumentFormat `json:"-"`

	// Text is the raw file content.
	Text string `json:"-"`
}

// SkippedDocument records a document excluded from a run and why, so
// the report can account for every input file.
type SkippedDocument struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// ParseFilename splits a document filename into problem id and
// condition.
//
// Description:
//
//	Filenames follow "<problem-id>_<condition>.<ext>". The problem id
//	is everything before the first underscore; the condition is the
//	remainder, defaulting to "default" when absent.
func ParseFilename(name string) (problemID, condition string) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if idx := strings.Index(base, "_"); idx > 0 {
		return base[:idx], base[idx+1:]
	}
	return base, "default"
}

// LoadDirectory reads all response documents from one condition
// directory.
//
// Description:
//
//	Accepts .md and .txt files as markdown responses and .json files as
//	conversation logs. Unreadable files are reported as skipped, not
//	fatal. Results are sorted by ID for deterministic downstream
//	sampling.
//
// Inputs:
//   - dir: The corpus directory.
//
// Outputs:
//   - []ResponseDocument: Loaded documents, sorted by ID.
//   - []SkippedDocument: Files that could not be loaded.
//   - error: Non-nil only when the directory itself is unreadable.
func LoadDirectory(dir string) ([]ResponseDocument, []SkippedDocument, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("read corpus directory: %w", err)
	}

	var docs []ResponseDocument
	var skipped []SkippedDocument

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		format := FormatMarkdown
		switch strings.ToLower(filepath.Ext(name)) {
		case ".md", ".txt":
		case ".json":
			format = FormatLog
		default:
			continue
		}

		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			skipped = append(skipped, SkippedDocument{Path: path, Reason: fmt.Sprintf("unreadable: %v", err)})
			continue
		}
		if len(strings.TrimSpace(string(data))) == 0 {
			skipped = append(skipped, SkippedDocument{Path: path, Reason: "empty file"})
			continue
		}

		problemID, condition := ParseFilename(name)
		docs = append(docs, ResponseDocument{
			ID:        strings.TrimSuffix(name, filepath.Ext(name)),
			ProblemID: problemID,
			Condition: condition,
			Format:    format,
			Text:      string(data),
		})
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, skipped, nil
}
