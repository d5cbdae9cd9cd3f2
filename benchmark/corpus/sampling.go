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
	"hash/fnv"
	"math/rand"
	"sort"
)

// -----------------------------------------------------------------------------
// Deterministic Sampling
// -----------------------------------------------------------------------------

// SampleSeed derives a seed from the sorted set of document ids.
//
// Description:
//
//	Uses FNV-1a over the sorted, newline-joined ids so the same input
//	set always yields the same seed regardless of load order. This
//	keeps the non-judge path of a run fully reproducible.
func SampleSeed(docs []ResponseDocument) int64 {
	ids := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
	}
	sort.Strings(ids)

	h := fnv.New64a()
	for _, id := range ids {
		h.Write([]byte(id))
		h.Write([]byte{'\n'})
	}
	return int64(h.Sum64())
}

// Sample selects n documents uniformly without replacement.
//
// Description:
//
//	The selection is deterministic for a given document set: the RNG is
//	seeded from SampleSeed, and documents are permuted from their
//	ID-sorted order. n >= len(docs) returns all documents.
//
// Outputs:
//   - []ResponseDocument: The sampled documents, sorted by ID.
func Sample(docs []ResponseDocument, n int) []ResponseDocument {
	if n <= 0 || n >= len(docs) {
		out := make([]ResponseDocument, len(docs))
		copy(out, docs)
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return out
	}

	ordered := make([]ResponseDocument, len(docs))
	copy(ordered, docs)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	rng := rand.New(rand.NewSource(SampleSeed(docs)))
	perm := rng.Perm(len(ordered))

	selected := make([]ResponseDocument, 0, n)
	for _, idx := range perm[:n] {
		selected = append(selected, ordered[idx])
	}
	sort.Slice(selected, func(i, j int) bool { return selected[i].ID < selected[j].ID })
	return selected
}
