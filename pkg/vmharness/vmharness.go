// Package vmharness defines the interface boundary between the replay
// engine and the Move VM that actually executes a programmable
// transaction block. The VM itself is out of scope for this module
// (SPEC_FULL §1 Non-goals); Harness is the seam the engine codes against,
// mirroring the idiom of wrapping an external execution
// engine behind a small capability interface.
package vmharness

import (
	"context"
	"errors"
	"fmt"

	"github.com/sui-sandbox/replay/pkg/address"
	"github.com/sui-sandbox/replay/pkg/ptb"
	"github.com/sui-sandbox/replay/pkg/types"
)

// ChildFetcher resolves a dynamic-field child the VM encounters mid-
// execution: either by (child id, exact version) or by (parent, key type,
// key bytes). It must consult caches, then disk, then RPC archive; a miss
// returns (nil, false), never an error — an absent child is expected
// during exploratory attempts.
type ChildFetcher interface {
	FetchByVersion(ctx context.Context, id address.Address, version address.Version) (*types.VersionedObject, bool)
	FetchByKey(ctx context.Context, parent address.Address, keyType types.TypeTag, keyBytes []byte) (*types.VersionedObject, bool)
}

// ErrMissingPackage is returned by Execute when the VM aborts because a
// referenced package was never installed; the engine retries the same
// attempt once after loading it (§4.6 step 9).
var ErrMissingPackage = errors.New("vmharness: missing package")

// ParentChildConflictError reports that the VM detected a cached child
// object being presented under the wrong parent — the signal that drives
// deny-list eviction (§4.6 step 10).
type ParentChildConflictError struct {
	Parent address.Address
	Child  address.Address
}

func (e *ParentChildConflictError) Error() string {
	return fmt.Sprintf("vmharness: object %s is not a child of %s", e.Child, e.Parent)
}

// Harness is the capability the replay engine needs from a Move VM: reset
// to a clean slate, install the linkage/alias tables an upgraded package
// needs, preload declared object inputs, install a child-fetcher, and run
// one PTB to completion.
type Harness interface {
	// Reset discards all installed state from any prior execution. The
	// engine calls this once per attempt (§4.6 step 4): the harness is not
	// reentrant and is never shared across concurrent executions.
	Reset()

	// SetSender and SetTimestampMS establish the transaction's execution
	// context.
	SetSender(sender address.Address)
	SetTimestampMS(ms *uint64)

	// SetLamportClock primes the VM's version counter so the first write
	// this execution performs lands on the expected output version.
	// Callers compute start as target_lamport - (2 if the transaction has
	// a shared input else 1), per §4.6 step 5.
	SetLamportClock(start address.Version)

	// InstallAlias registers a runtime-id -> storage-id mapping so
	// bytecode written against the runtime-id can resolve to the current
	// storage-id (§4.6 step 3).
	InstallAlias(runtimeID, storageID address.Address)

	// InstallLinkage registers a package's full linkage table in one call.
	InstallLinkage(pkg *types.Package)

	// PreloadObject installs one object input into the VM's object store
	// with its declared shared/immutable status (§4.6 step 6).
	PreloadObject(input ptb.ObjectInput)

	// InstallChildFetcher registers the callback the VM consults when
	// dynamic-field traversal needs a child object not already preloaded
	// (§4.6 step 7). A nil fetcher disables child resolution entirely,
	// used by attempt 0 (archival-only).
	InstallChildFetcher(fetcher ChildFetcher)

	// Execute runs the decoded PTB to completion with the given gas
	// budget, returning the reconstructed local effects. Execute returns
	// ErrMissingPackage or a *ParentChildConflictError for the two
	// recognized recoverable failure modes (§4.6 steps 9-10); any other
	// error is an unmodeled execution failure.
	Execute(ctx context.Context, block ptb.ProgrammableTransactionBlock) (*types.ExecutionResult, error)
}
