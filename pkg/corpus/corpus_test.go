package corpus

import (
	"path/filepath"
	"testing"

	"github.com/sui-sandbox/replay/pkg/types"
)

func writeCatalogFile(t *testing.T, entries []Entry) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.json")
	if err := Write(path, &Catalog{Entries: entries}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return path
}

func TestLoadRoundTripsEntries(t *testing.T) {
	want := []Entry{
		{Digest: "txB", Checkpoint: 20, Category: "gas_edge_case"},
		{Digest: "txA", Checkpoint: 10, Category: "dynamic_field_heal", Notes: "child object across epoch boundary"},
	}
	path := writeCatalogFile(t, want)

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(got.Entries))
	}
}

func TestFilterByCategory(t *testing.T) {
	c := &Catalog{Entries: []Entry{
		{Digest: "tx1", Category: "gas_edge_case"},
		{Digest: "tx2", Category: "dynamic_field_heal"},
		{Digest: "tx3", Category: "gas_edge_case"},
	}}
	got := c.FilterByCategory("gas_edge_case")
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	for _, e := range got {
		if e.Category != "gas_edge_case" {
			t.Fatalf("unexpected category %q", e.Category)
		}
	}
}

func TestCategoriesReturnsSortedDistinctLabels(t *testing.T) {
	c := &Catalog{Entries: []Entry{
		{Category: "gas_edge_case"},
		{Category: "dynamic_field_heal"},
		{Category: "gas_edge_case"},
	}}
	want := []string{"dynamic_field_heal", "gas_edge_case"}
	got := c.Categories()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestDigestsPreservesCatalogOrder(t *testing.T) {
	c := &Catalog{Entries: []Entry{{Digest: "txZ"}, {Digest: "txA"}}}
	got := c.Digests()
	if len(got) != 2 || got[0] != "txZ" || got[1] != "txA" {
		t.Fatalf("Digests() = %v, want catalog order preserved", got)
	}
}

func TestGroupOutcomesByReason(t *testing.T) {
	outcomes := []*types.OutcomeRecord{
		{Digest: "tx1", FinalReason: "StrictMatch"},
		{Digest: "tx2", FinalReason: "MissingObject"},
		{Digest: "tx3", FinalReason: "StrictMatch"},
		nil,
	}
	groups := GroupOutcomesByReason(outcomes)
	if len(groups["StrictMatch"]) != 2 {
		t.Fatalf("StrictMatch group = %d, want 2", len(groups["StrictMatch"]))
	}
	if len(groups["MissingObject"]) != 1 {
		t.Fatalf("MissingObject group = %d, want 1", len(groups["MissingObject"]))
	}
}
