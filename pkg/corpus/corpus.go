// Package corpus loads a flat JSON catalog of known historical
// transactions and groups/filters it for batch replay selection
// (SPEC_FULL §10.x, grounded on `src/corpus.rs`'s
// package-corpus model, scoped down to the catalog
// itself — the disk-layout writer that generates reports across a
// bytecode corpus is out of scope per §1).
package corpus

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/sui-sandbox/replay/pkg/types"
)

// Entry is one catalog row: a transaction worth replaying, plus the
// operator's free-form classification of why.
type Entry struct {
	Digest     string `json:"digest"`
	Checkpoint uint64 `json:"checkpoint"`
	Category   string `json:"category"`
	Notes      string `json:"notes,omitempty"`
}

// Catalog is an ordered set of Entries, as read from a catalog file.
type Catalog struct {
	Entries []Entry
}

// Load reads a JSON array of Entry from path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("corpus: read %s: %w", path, err)
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("corpus: parse %s: %w", path, err)
	}
	return &Catalog{Entries: entries}, nil
}

// Write serializes the catalog back to path as a pretty-printed JSON
// array, sorted by digest for a stable diff.
func Write(path string, c *Catalog) error {
	sorted := make([]Entry, len(c.Entries))
	copy(sorted, c.Entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Digest < sorted[j].Digest })
	data, err := json.MarshalIndent(sorted, "", "  ")
	if err != nil {
		return fmt.Errorf("corpus: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("corpus: write %s: %w", path, err)
	}
	return nil
}

// Categories returns the catalog's distinct category labels, sorted.
func (c *Catalog) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range c.Entries {
		if !seen[e.Category] {
			seen[e.Category] = true
			out = append(out, e.Category)
		}
	}
	sort.Strings(out)
	return out
}

// FilterByCategory returns every entry whose Category matches exactly.
func (c *Catalog) FilterByCategory(category string) []Entry {
	var out []Entry
	for _, e := range c.Entries {
		if e.Category == category {
			out = append(out, e)
		}
	}
	return out
}

// Digests returns every entry's digest, in catalog order, for handing to
// a batch replay loop.
func (c *Catalog) Digests() []string {
	out := make([]string, len(c.Entries))
	for i, e := range c.Entries {
		out[i] = e.Digest
	}
	return out
}

// GroupOutcomesByReason buckets already-replayed outcomes by their final
// reason code, for reporting which failure modes a batch run surfaced.
// The catalog has no reason code of its own — that only exists once a
// transaction has actually been replayed — so this operates on the
// engine's output, not the catalog's input.
func GroupOutcomesByReason(outcomes []*types.OutcomeRecord) map[string][]*types.OutcomeRecord {
	out := make(map[string][]*types.OutcomeRecord)
	for _, o := range outcomes {
		if o == nil {
			continue
		}
		out[o.FinalReason] = append(out[o.FinalReason], o)
	}
	return out
}
