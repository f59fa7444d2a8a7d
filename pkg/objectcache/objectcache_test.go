package objectcache

import (
	"path/filepath"
	"testing"

	"github.com/sui-sandbox/replay/pkg/address"
	"github.com/sui-sandbox/replay/pkg/types"
)

func testObject(id address.Address, version address.Version) *types.VersionedObject {
	return &types.VersionedObject{
		ID:       id,
		Version:  version,
		BCSBytes: append(id.Bytes(), 0xAA),
	}
}

func TestInsertAndGetMemoryOnly(t *testing.T) {
	c, err := New(Config{})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	id := address.MustParse("0x01")
	obj := testObject(id, 5)
	if err := c.Insert(obj); err != nil {
		t.Fatal(err)
	}

	got, ok := c.Get(id, 5)
	if !ok {
		t.Fatal("expected hit")
	}
	if got.Version != 5 {
		t.Fatalf("expected version 5, got %d", got.Version)
	}

	if _, ok := c.Get(id, 6); ok {
		t.Fatal("expected miss for unseen version")
	}
}

func TestGetAnyReturnsLatestVersion(t *testing.T) {
	c, err := New(Config{})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	id := address.MustParse("0x02")
	if err := c.Insert(testObject(id, 1)); err != nil {
		t.Fatal(err)
	}
	if err := c.Insert(testObject(id, 9)); err != nil {
		t.Fatal(err)
	}
	if err := c.Insert(testObject(id, 4)); err != nil {
		t.Fatal(err)
	}

	latest, ok := c.GetAny(id)
	if !ok {
		t.Fatal("expected hit")
	}
	if latest.Version != 9 {
		t.Fatalf("expected latest version 9, got %d", latest.Version)
	}
}

func TestDiskTierSurvivesMemoryEviction(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "objects.db")
	c, err := New(Config{MemoryEntries: 1, DiskPath: dbPath})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	idA := address.MustParse("0x03")
	idB := address.MustParse("0x04")
	if err := c.Insert(testObject(idA, 1)); err != nil {
		t.Fatal(err)
	}
	if err := c.Insert(testObject(idB, 1)); err != nil {
		t.Fatal(err)
	}

	got, ok := c.Get(idA, 1)
	if !ok {
		t.Fatal("expected disk-tier hit after memory eviction")
	}
	if got.ID != idA {
		t.Fatalf("expected id %s, got %s", idA, got.ID)
	}
}

func TestRemoveAllEvictsAllVersions(t *testing.T) {
	c, err := New(Config{})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	id := address.MustParse("0x05")
	if err := c.Insert(testObject(id, 1)); err != nil {
		t.Fatal(err)
	}
	if err := c.Insert(testObject(id, 2)); err != nil {
		t.Fatal(err)
	}

	if err := c.RemoveAll(id); err != nil {
		t.Fatal(err)
	}

	if _, ok := c.Get(id, 1); ok {
		t.Fatal("expected version 1 evicted")
	}
	if _, ok := c.Get(id, 2); ok {
		t.Fatal("expected version 2 evicted")
	}
	if _, ok := c.GetAny(id); ok {
		t.Fatal("expected GetAny to miss after RemoveAll")
	}
}
