package types

import (
	"testing"

	"github.com/sui-sandbox/replay/pkg/address"
)

func TestTypeTagStringStruct(t *testing.T) {
	tt := TypeTag{
		Kind:    TypeStruct,
		Address: address.MustParse("0x2"),
		Module:  "coin",
		Name:    "Coin",
		TypeParams: []TypeTag{
			{Kind: TypeStruct, Address: address.MustParse("0x2"), Module: "sui", Name: "SUI"},
		},
	}
	want := "0x0000000000000000000000000000000000000000000000000000000000000002::coin::Coin<0x0000000000000000000000000000000000000000000000000000000000000002::sui::SUI>"
	if tt.String() != want {
		t.Fatalf("got %s want %s", tt.String(), want)
	}
}

func TestTypeTagBCSVectorU8(t *testing.T) {
	vecU8 := TypeTag{Kind: TypeVector, Elem: &TypeTag{Kind: TypeU8}}
	got := vecU8.BCSBytes()
	want := []byte{6, 1}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestEmbeddedIDInvariant(t *testing.T) {
	id := address.MustParse("0xabc")
	obj := VersionedObject{
		ID:       id,
		BCSBytes: append(id.Bytes(), []byte{1, 2, 3}...),
	}
	got, err := obj.EmbeddedID()
	if err != nil {
		t.Fatal(err)
	}
	if got != id {
		t.Fatalf("embedded id mismatch")
	}
}

func TestEmbeddedIDInvariantViolation(t *testing.T) {
	id := address.MustParse("0xabc")
	other := address.MustParse("0xdef")
	obj := VersionedObject{
		ID:       id,
		BCSBytes: append(other.Bytes(), []byte{1, 2, 3}...),
	}
	if _, err := obj.EmbeddedID(); err == nil {
		t.Fatal("expected invariant violation error")
	}
}

func TestGasUsedTotalSaturates(t *testing.T) {
	g := GasUsed{ComputationCost: 10, StorageCost: 5, StorageRebate: 1000}
	total, saturated := g.Total()
	if !saturated || total != 0 {
		t.Fatalf("expected saturated zero total, got %d saturated=%v", total, saturated)
	}

	g2 := GasUsed{ComputationCost: 1000, StorageCost: 2000, StorageRebate: 500}
	total2, saturated2 := g2.Total()
	if saturated2 || total2 != 2500 {
		t.Fatalf("expected 2500, got %d saturated=%v", total2, saturated2)
	}
}
