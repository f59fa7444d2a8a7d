package mutationlab

import (
	"fmt"

	"github.com/sui-sandbox/replay/pkg/address"
	"github.com/sui-sandbox/replay/pkg/statefile"
	"github.com/sui-sandbox/replay/pkg/types"
)

// Operator describes one state-diff mutation the lab can apply to a seed
// state + its transaction's raw inputs, producing a broken state a
// baseline replay is expected to fail against (SPEC_FULL §4.9).
type Operator interface {
	// Name identifies the operator for run records and operator-specific
	// minimization (§4.10).
	Name() string

	// Apply perturbs state and inputs in place and returns the Delta it
	// produced. Lab.Run hands it clones, so the seed is left untouched.
	Apply(state *statefile.State, inputs []types.RawInput) (Delta, error)
}

// Delta records what one operator changed, in the shape minimization
// reports consult (§4.10).
type Delta struct {
	RemovedIDs           []address.Address
	AddedIDs             []address.Address
	ChangedIDs           []address.Address
	ChangedTxInputIndices []int
}

func findObject(state *statefile.State, id address.Address) int {
	for i, obj := range state.Objects {
		if obj.ID == id {
			return i
		}
	}
	return -1
}

// objectInputIndices returns the indices of inputs carrying an
// ObjectInput referencing a non-system id, in input-list order.
func objectInputIndices(inputs []types.RawInput) []int {
	var out []int
	for i, in := range inputs {
		if !in.IsPure && !address.IsFramework(in.ID) {
			out = append(out, i)
		}
	}
	return out
}

// dropRequiredObject deletes a non-system object one of the transaction's
// inputs requires.
type dropRequiredObject struct{}

func (dropRequiredObject) Name() string { return "DropRequiredObject" }

func (dropRequiredObject) Apply(state *statefile.State, inputs []types.RawInput) (Delta, error) {
	indices := objectInputIndices(inputs)
	if len(indices) == 0 {
		return Delta{}, fmt.Errorf("mutationlab: DropRequiredObject: no object input to drop")
	}
	target := inputs[indices[0]].ID
	idx := findObject(state, target)
	if idx < 0 {
		return Delta{}, fmt.Errorf("mutationlab: DropRequiredObject: object %s not present in seed state", target)
	}
	state.Objects = append(state.Objects[:idx], state.Objects[idx+1:]...)
	return Delta{RemovedIDs: []address.Address{target}}, nil
}

// inputRewire swaps two object input indices in the transaction's input
// list.
type inputRewire struct{}

func (inputRewire) Name() string { return "InputRewire" }

func (inputRewire) Apply(state *statefile.State, inputs []types.RawInput) (Delta, error) {
	if len(inputs) < 2 {
		return Delta{}, fmt.Errorf("mutationlab: InputRewire: need at least 2 inputs, have %d", len(inputs))
	}
	inputs[0], inputs[1] = inputs[1], inputs[0]
	return Delta{ChangedTxInputIndices: []int{1, 0}}, nil
}

// objectVersionSkew increments the version field of one input-referenced
// object, in both the input itself and the seed state's copy.
type objectVersionSkew struct{}

func (objectVersionSkew) Name() string { return "ObjectVersionSkew" }

func (objectVersionSkew) Apply(state *statefile.State, inputs []types.RawInput) (Delta, error) {
	indices := objectInputIndices(inputs)
	if len(indices) == 0 {
		return Delta{}, fmt.Errorf("mutationlab: ObjectVersionSkew: no object input to skew")
	}
	i := indices[0]
	target := inputs[i].ID
	inputs[i].Version++

	idx := findObject(state, target)
	if idx < 0 {
		return Delta{}, fmt.Errorf("mutationlab: ObjectVersionSkew: object %s not present in seed state", target)
	}
	state.Objects[idx].Version++
	return Delta{ChangedIDs: []address.Address{target}, ChangedTxInputIndices: []int{i}}, nil
}

// sharedObjectSubstitute replaces a shared input's id with another
// non-system object id already present in state.
type sharedObjectSubstitute struct{}

func (sharedObjectSubstitute) Name() string { return "SharedObjectSubstitute" }

func (sharedObjectSubstitute) Apply(state *statefile.State, inputs []types.RawInput) (Delta, error) {
	var sharedIdx = -1
	for i, in := range inputs {
		if !in.IsPure && in.Kind == types.Shared {
			sharedIdx = i
			break
		}
	}
	if sharedIdx < 0 {
		return Delta{}, fmt.Errorf("mutationlab: SharedObjectSubstitute: no shared input present")
	}
	original := inputs[sharedIdx].ID
	var replacement address.Address
	found := false
	for _, obj := range state.Objects {
		if obj.ID != original && !address.IsFramework(obj.ID) {
			replacement = obj.ID
			found = true
			break
		}
	}
	if !found {
		return Delta{}, fmt.Errorf("mutationlab: SharedObjectSubstitute: no alternate non-system object id in state")
	}
	inputs[sharedIdx].ID = replacement
	return Delta{ChangedIDs: []address.Address{original, replacement}, ChangedTxInputIndices: []int{sharedIdx}}, nil
}

// pureTypeAware replaces a Pure input's bytes with the single byte 0x00,
// producing a value of a plausible but wrong shape for its declared type.
type pureTypeAware struct{}

func (pureTypeAware) Name() string { return "PureTypeAware" }

func (pureTypeAware) Apply(state *statefile.State, inputs []types.RawInput) (Delta, error) {
	for i, in := range inputs {
		if in.IsPure {
			inputs[i].Pure = []byte{0x00}
			return Delta{ChangedTxInputIndices: []int{i}}, nil
		}
	}
	return Delta{}, fmt.Errorf("mutationlab: PureTypeAware: no Pure input present")
}

// pureSignatureAware flips the high bit of a Pure input's first byte,
// a minimal single-bit corruption.
type pureSignatureAware struct{}

func (pureSignatureAware) Name() string { return "PureSignatureAware" }

func (pureSignatureAware) Apply(state *statefile.State, inputs []types.RawInput) (Delta, error) {
	for i, in := range inputs {
		if in.IsPure && len(in.Pure) > 0 {
			flipped := make([]byte, len(in.Pure))
			copy(flipped, in.Pure)
			flipped[0] ^= 0x80
			inputs[i].Pure = flipped
			return Delta{ChangedTxInputIndices: []int{i}}, nil
		}
	}
	return Delta{}, fmt.Errorf("mutationlab: PureSignatureAware: no non-empty Pure input present")
}

// Operators returns the fixed set of built-in operators, keyed by Name().
func Operators() map[string]Operator {
	all := []Operator{
		dropRequiredObject{},
		inputRewire{},
		objectVersionSkew{},
		sharedObjectSubstitute{},
		pureTypeAware{},
		pureSignatureAware{},
	}
	out := make(map[string]Operator, len(all))
	for _, op := range all {
		out[op.Name()] = op
	}
	return out
}
