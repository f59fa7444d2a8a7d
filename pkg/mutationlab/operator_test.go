package mutationlab

import (
	"testing"

	"github.com/sui-sandbox/replay/pkg/address"
	"github.com/sui-sandbox/replay/pkg/statefile"
	"github.com/sui-sandbox/replay/pkg/types"
)

func seedStateWithObjects(ids ...address.Address) *statefile.State {
	s := statefile.New()
	for _, id := range ids {
		s.Objects = append(s.Objects, types.VersionedObject{ID: id, Version: 1})
	}
	return s
}

func TestDropRequiredObjectRemovesTheObject(t *testing.T) {
	target := address.MustParse("0x10")
	state := seedStateWithObjects(target)
	inputs := []types.RawInput{{Kind: types.Owned, ID: target, Version: 1}}

	delta, err := dropRequiredObject{}.Apply(state, inputs)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(state.Objects) != 0 {
		t.Fatalf("expected object removed, have %d objects", len(state.Objects))
	}
	if len(delta.RemovedIDs) != 1 || delta.RemovedIDs[0] != target {
		t.Fatalf("delta.RemovedIDs = %v, want [%s]", delta.RemovedIDs, target)
	}
}

func TestInputRewireSwapsIndicesZeroAndOne(t *testing.T) {
	a := address.MustParse("0x1")
	b := address.MustParse("0x2")
	inputs := []types.RawInput{
		{Kind: types.Owned, ID: a},
		{Kind: types.Owned, ID: b},
	}
	state := seedStateWithObjects(a, b)

	delta, err := inputRewire{}.Apply(state, inputs)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if inputs[0].ID != b || inputs[1].ID != a {
		t.Fatalf("inputs not swapped: %+v", inputs)
	}
	if len(delta.ChangedTxInputIndices) != 2 || delta.ChangedTxInputIndices[0] != 1 || delta.ChangedTxInputIndices[1] != 0 {
		t.Fatalf("delta.ChangedTxInputIndices = %v, want [1 0]", delta.ChangedTxInputIndices)
	}
}

func TestObjectVersionSkewIncrementsBothCopies(t *testing.T) {
	target := address.MustParse("0x20")
	state := seedStateWithObjects(target)
	inputs := []types.RawInput{{Kind: types.MutRef, ID: target, Version: 1}}

	if _, err := objectVersionSkew{}.Apply(state, inputs); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if inputs[0].Version != 2 {
		t.Fatalf("input version = %d, want 2", inputs[0].Version)
	}
	if state.Objects[0].Version != 2 {
		t.Fatalf("state object version = %d, want 2", state.Objects[0].Version)
	}
}

func TestSharedObjectSubstituteReplacesWithAnotherID(t *testing.T) {
	shared := address.MustParse("0x30")
	other := address.MustParse("0x31")
	state := seedStateWithObjects(shared, other)
	inputs := []types.RawInput{{Kind: types.Shared, ID: shared, InitialSharedVersion: 1}}

	delta, err := sharedObjectSubstitute{}.Apply(state, inputs)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if inputs[0].ID != other {
		t.Fatalf("input id = %s, want %s", inputs[0].ID, other)
	}
	if len(delta.ChangedIDs) != 2 {
		t.Fatalf("delta.ChangedIDs = %v, want 2 entries", delta.ChangedIDs)
	}
}

func TestPureTypeAwareOverwritesWithSingleZeroByte(t *testing.T) {
	inputs := []types.RawInput{{IsPure: true, Pure: []byte{1, 2, 3, 4}}}
	if _, err := pureTypeAware{}.Apply(statefile.New(), inputs); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(inputs[0].Pure) != 1 || inputs[0].Pure[0] != 0x00 {
		t.Fatalf("Pure = %v, want [0x00]", inputs[0].Pure)
	}
}

func TestPureSignatureAwareFlipsHighBit(t *testing.T) {
	inputs := []types.RawInput{{IsPure: true, Pure: []byte{0x01, 0x02}}}
	if _, err := pureSignatureAware{}.Apply(statefile.New(), inputs); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if inputs[0].Pure[0] != 0x81 {
		t.Fatalf("Pure[0] = %#x, want 0x81", inputs[0].Pure[0])
	}
	if inputs[0].Pure[1] != 0x02 {
		t.Fatalf("Pure[1] mutated unexpectedly: %#x", inputs[0].Pure[1])
	}
}

func TestOperatorsRegistersAllSix(t *testing.T) {
	ops := Operators()
	want := []string{
		"DropRequiredObject", "InputRewire", "ObjectVersionSkew",
		"SharedObjectSubstitute", "PureTypeAware", "PureSignatureAware",
	}
	if len(ops) != len(want) {
		t.Fatalf("got %d operators, want %d", len(ops), len(want))
	}
	for _, name := range want {
		if _, ok := ops[name]; !ok {
			t.Fatalf("missing operator %q", name)
		}
	}
}
