// Package gaspatcher applies the surgical post-execution gas-coin mutation
// the VM harness does not model: it runs no bytecode, only decrements the
// gas object's u64 balance field by the canonical gas total and records
// the result into the local effects' object-version map (SPEC_FULL §4.7).
package gaspatcher

import (
	"encoding/binary"
	"fmt"

	"github.com/sui-sandbox/replay/pkg/address"
	"github.com/sui-sandbox/replay/pkg/types"
)

// balanceOffset is the byte offset of a Coin's u64 balance field within
// its BCS contents: 32 bytes of embedded object id, then the 8-byte
// little-endian balance (§4.7 step 5, §8's gas-patch invariant).
const balanceOffset = address.Length

// ErrShortGasBytes is returned when the gas object's bytes are too short
// to contain a balance field at the expected offset.
type ErrShortGasBytes struct {
	ID  address.Address
	Len int
}

func (e *ErrShortGasBytes) Error() string {
	return fmt.Sprintf("gaspatcher: gas object %s has %d bytes, too short for balance field at offset %d (needs %d)", e.ID, e.Len, balanceOffset, balanceOffset+8)
}

// Patch is the result of applying GasPatcher to one gas object.
type Patch struct {
	GasObjectID  address.Address
	InputVersion address.Version
	OutputBytes  []byte
	Saturated    bool
}

// Apply decrements gasBytes' u64-LE balance field (at offset [32:40]) by
// gasUsed's total (computation + storage - rebate), returning the patched
// coin bytes as a new slice; gasBytes is left untouched. Saturated is true
// when comp+stor < rebate, per §9's instruction to flag rather than mask
// the pathological case.
func Apply(gasID address.Address, inputVersion address.Version, gasBytes []byte, gasUsed types.GasUsed) (Patch, error) {
	if len(gasBytes) < balanceOffset+8 {
		return Patch{}, &ErrShortGasBytes{ID: gasID, Len: len(gasBytes)}
	}

	total, saturated := gasUsed.Total()

	out := make([]byte, len(gasBytes))
	copy(out, gasBytes)

	balance := binary.LittleEndian.Uint64(out[balanceOffset : balanceOffset+8])
	var newBalance uint64
	if total > balance {
		newBalance = 0
	} else {
		newBalance = balance - total
	}
	binary.LittleEndian.PutUint64(out[balanceOffset:balanceOffset+8], newBalance)

	return Patch{
		GasObjectID:  gasID,
		InputVersion: inputVersion,
		OutputBytes:  out,
		Saturated:    saturated,
	}, nil
}
