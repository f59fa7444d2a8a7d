// Package compare implements the byte-level strict comparator: the final
// gate between a locally reproduced execution and the canonical on-chain
// effects (SPEC_FULL §4.8). It fails fast, in a fixed step order, so the
// first disagreement determines the reason code rather than an arbitrary
// one among many.
package compare

import (
	"bytes"
	"fmt"

	"github.com/sui-sandbox/replay/pkg/address"
	"github.com/sui-sandbox/replay/pkg/transport"
	"github.com/sui-sandbox/replay/pkg/types"
)

// Reason is the strict comparator's outcome taxonomy. Its values are
// string-identical to pkg/replay's ReasonCode subset of the same names, so
// callers convert with a plain string cast; compare cannot import replay
// without creating an import cycle.
type Reason string

const (
	StrictMatch        Reason = "StrictMatch"
	StatusMismatch     Reason = "StatusMismatch"
	LamportMismatch    Reason = "LamportMismatch"
	ObjectMismatch     Reason = "ObjectMismatch"
	GasMismatch        Reason = "GasMismatch"
	WalrusInconsistent Reason = "WalrusInconsistent"
)

// Verdict is the outcome of a strict comparison.
type Verdict struct {
	Reason  Reason
	Message string
}

func (v Verdict) Matched() bool { return v.Reason == StrictMatch }

// Compare runs the six-step strict comparison between canonical on-chain
// effects and the local harness's execution result.
//
//  1. status parity
//  2. lamport parity
//  3. output-object integrity (canonical self-consistency)
//  4. per-object change parity
//  5. byte equality on writes
//  6. cardinality
func Compare(canonical transport.Effects, canonicalOutputs []transport.OutputObject, gasObjectID address.Address, local *types.ExecutionResult) Verdict {
	localSuccess := local != nil && local.Success
	if localSuccess != canonical.Success {
		return Verdict{Reason: StatusMismatch, Message: fmt.Sprintf("local success=%v, canonical success=%v", localSuccess, canonical.Success)}
	}
	if !canonical.Success {
		// Both sides failed; there is no effects structure left to compare.
		return Verdict{Reason: StrictMatch}
	}
	if local.Effects == nil {
		return Verdict{Reason: StatusMismatch, Message: "local execution succeeded but produced no effects"}
	}
	effects := local.Effects

	if effects.LamportTimestamp != canonical.LamportVersion {
		return Verdict{Reason: LamportMismatch, Message: fmt.Sprintf("local lamport=%d, canonical lamport=%d", effects.LamportTimestamp, canonical.LamportVersion)}
	}

	byID := make(map[address.Address]transport.OutputObject, len(canonicalOutputs))
	for _, out := range canonicalOutputs {
		byID[out.ID] = out
	}

	for _, change := range canonical.ChangedObjects {
		if change.ChangeType == types.ChangeDeleted || change.ChangeType == types.ChangeWrapped {
			continue
		}
		out, ok := byID[change.ID]
		if !ok {
			continue // no raw bytes bundled for this change; nothing to re-derive
		}
		if ObjectDigest(out) != change.OutputDigest {
			return Verdict{Reason: WalrusInconsistent, Message: fmt.Sprintf("canonical output digest for %s disagrees with its own bundled bytes", change.ID)}
		}
	}

	for _, change := range canonical.ChangedObjects {
		info, ok := effects.ObjectVersions[change.ID]
		if !ok {
			return Verdict{Reason: ObjectMismatch, Message: fmt.Sprintf("local effects have no entry for %s", change.ID)}
		}
		if info.OutputVersion != canonical.LamportVersion {
			return Verdict{Reason: ObjectMismatch, Message: fmt.Sprintf("%s: local output version %d != lamport %d", change.ID, info.OutputVersion, canonical.LamportVersion)}
		}
		if !versionsEqual(info.InputVersion, change.InputVersion) {
			return Verdict{Reason: ObjectMismatch, Message: fmt.Sprintf("%s: input version mismatch", change.ID)}
		}
		if info.ChangeType != change.ChangeType {
			return Verdict{Reason: ObjectMismatch, Message: fmt.Sprintf("%s: local change type %s != canonical %s", change.ID, info.ChangeType, change.ChangeType)}
		}

		if change.ChangeType == types.ChangeCreated || change.ChangeType == types.ChangeMutated || change.ChangeType == types.ChangeUnwrapped {
			out, ok := byID[change.ID]
			if ok && !bytes.Equal(info.OutputBytes, out.Contents) {
				reason := ObjectMismatch
				if change.ID == gasObjectID {
					reason = GasMismatch
				}
				return Verdict{Reason: reason, Message: fmt.Sprintf("%s: output bytes differ from canonical", change.ID)}
			}
		}
	}

	if len(effects.ObjectVersions) != len(canonical.ChangedObjects) {
		return Verdict{Reason: ObjectMismatch, Message: fmt.Sprintf("cardinality mismatch: local produced %d object versions, canonical expects %d", len(effects.ObjectVersions), len(canonical.ChangedObjects))}
	}

	return Verdict{Reason: StrictMatch}
}

func versionsEqual(a, b *address.Version) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
