// Package transport defines the uniform fetch contract over the chain's
// three historical data sources — an archival checkpoint-blob store, a
// low-level object/transaction RPC, and a GraphQL-style query API — plus
// the capability-set interfaces the rest of the engine codes against so
// any of the three (or a test double) can satisfy a fetch (SPEC_FULL §9).
package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/sui-sandbox/replay/pkg/address"
	"github.com/sui-sandbox/replay/pkg/types"
)

// ErrorKind classifies a transport failure as retryable or terminal.
type ErrorKind int

const (
	KindRetryable ErrorKind = iota
	KindTerminal
)

// Error wraps an underlying transport failure with its retry
// classification.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	kind := "retryable"
	if e.Kind == KindTerminal {
		kind = "terminal"
	}
	return fmt.Sprintf("transport: %s (%s): %v", e.Op, kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable wraps err as a retryable transport error.
func Retryable(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindRetryable, Op: op, Err: err}
}

// Terminal wraps err as a non-retryable transport error.
func Terminal(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindTerminal, Op: op, Err: err}
}

// IsRetryable reports whether err (or a wrapped transport.Error within
// it) is classified retryable.
func IsRetryable(err error) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind == KindRetryable
	}
	return false
}

// ErrNotFound indicates a well-formed request that found nothing —
// distinct from a retryable/terminal transport failure, and the signal
// StateReconstructor and the child-fetcher use to treat a miss as data
// absence rather than an infrastructure error.
var ErrNotFound = errors.New("transport: not found")

// CheckpointBlob is the bundled transaction + input-object + output-object
// payload for one checkpoint (§6 ingress schema).
type CheckpointBlob struct {
	Sequence     uint64
	Transactions []CheckpointTransaction
}

// CheckpointTransaction is one transaction's bundled record within a
// checkpoint blob.
type CheckpointTransaction struct {
	Digest        string
	Sender        address.Address
	GasBudget     uint64
	GasPrice      uint64
	TimestampMS   *uint64
	GasPayment    []ObjectRef
	GasObjectIdx  int
	// Inputs and Commands are decoded at ingress from the checkpoint's
	// structured ProgrammableTransaction JSON (§6); types.RawInput/
	// types.Command are the shared pre-decode shape pkg/ptb's Parser
	// consumes regardless of which adapter produced them.
	Inputs   []types.RawInput
	Commands []types.Command
	InputObjects  []types.VersionedObject
	OutputObjects []OutputObject
	Effects       Effects
}

// ObjectRef identifies one object version, as referenced by gas payment
// entries and object inputs.
type ObjectRef struct {
	ID      address.Address
	Version address.Version
}

// OutputObject is one post-execution object record from a checkpoint's
// output_objects array (§6).
type OutputObject struct {
	ID                  address.Address
	Version             address.Version
	TypeTag             types.TypeTag
	Contents            []byte // raw Move contents, base64-decoded
	Owner               types.Owner
	PreviousTransaction [32]byte
	StorageRebate       uint64
	HasPublicTransfer   bool
}

// Effects is the decoded form of a checkpoint transaction's effects
// record (§6's `effects.V2` shape).
type Effects struct {
	Success         bool
	LamportVersion  address.Version
	ChangedObjects  []ChangedObjectEntry
	GasObjectIndex  int
	GasUsed         types.GasUsed
}

// ChangedObjectEntry is one entry in the effects' changed_objects table.
type ChangedObjectEntry struct {
	ID           address.Address
	InputVersion *address.Version // nil when InputState was not Exist
	OutputDigest [32]byte
	ChangeType   types.ChangeType
}

// TransactionRecord is the RPC adapter's decoded transaction record (§4.4
// table 2/3).
type TransactionRecord struct {
	Digest                        string
	Inputs                        []ObjectRef
	UnchangedLoadedRuntimeObjects []ObjectRef
	ChangedObjects                []ObjectRef
	UnchangedConsensusObjects     []ObjectRef
}

// DynamicFieldInfo describes one child object reachable from a parent via
// a dynamic-field key.
type DynamicFieldInfo struct {
	ParentID address.Address
	ChildID  address.Address
	Version  address.Version
	KeyType  types.TypeTag
	KeyBytes []byte
}

// PageInfo is the Relay-style pagination cursor state (§6).
type PageInfo struct {
	HasNextPage     bool
	HasPreviousPage bool
	StartCursor     string
	EndCursor       string
}

// ObjectSource fetches single objects, at latest or a specific version,
// and in batch with bounded parallelism.
type ObjectSource interface {
	GetObject(ctx context.Context, id address.Address) (*types.VersionedObject, error)
	GetObjectAtVersion(ctx context.Context, id address.Address, version address.Version) (*types.VersionedObject, error)
	BatchGetObjects(ctx context.Context, refs []ObjectRef, parallelism int) ([]*types.VersionedObject, error)
}

// TransactionSource fetches transaction records by digest, either
// individually or batched.
type TransactionSource interface {
	GetTransaction(ctx context.Context, digest string) (*TransactionRecord, error)
	BatchGetTransactions(ctx context.Context, digests []string) ([]*TransactionRecord, error)
}

// CheckpointSource fetches archival checkpoint blobs, the richest and
// preferred source for historical replay since it carries exact
// input/output object bytes (§4.1, §4.4).
type CheckpointSource interface {
	LatestCheckpoint(ctx context.Context) (uint64, error)
	GetCheckpoint(ctx context.Context, seq uint64) (*CheckpointBlob, error)
}

// PackageSource fetches package bytecode and upgrade history.
type PackageSource interface {
	FetchPackage(ctx context.Context, id address.Address) (*types.Package, error)
	FetchPackageAtCheckpoint(ctx context.Context, id address.Address, checkpoint uint64) (*types.Package, error)
	GetPackageUpgrades(ctx context.Context, id address.Address) ([]PackageUpgrade, error)
}

// PackageUpgrade is one entry in a package's upgrade chain.
type PackageUpgrade struct {
	StorageID address.Address
	Version   address.Version
}

// DynamicFieldSource enumerates and looks up dynamic fields.
type DynamicFieldSource interface {
	FetchDynamicFields(ctx context.Context, parent address.Address, limit int) ([]DynamicFieldInfo, error)
	FetchDynamicFieldByName(ctx context.Context, parent address.Address, keyType types.TypeTag, keyBytes []byte) (*DynamicFieldInfo, error)
}
