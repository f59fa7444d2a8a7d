// Package types holds the replay engine's core on-chain data model:
// addresses' structural companions (TypeTag, VersionedObject, Owner,
// Package), the canonical effects shapes parsed from on-chain records
// (ExpectedChange, ExecutionResult), and the per-transaction outcome
// record produced at the end of the pipeline.
package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/sui-sandbox/replay/pkg/address"
	"github.com/sui-sandbox/replay/pkg/bcs"
)

// TypeTagKind discriminates the structural variants of a Move TypeTag.
type TypeTagKind int

const (
	TypeBool TypeTagKind = iota
	TypeU8
	TypeU64
	TypeU128
	TypeAddress
	TypeSigner
	TypeVector
	TypeStruct
	TypeU16
	TypeU32
	TypeU256
)

// TypeTag is a structural type descriptor for Move values: primitives,
// vectors, and `Struct{address, module, name, type_params}`. String()
// renders it as text; this package has no parser back from that text.
type TypeTag struct {
	Kind TypeTagKind

	// Vector element, valid only when Kind == TypeVector.
	Elem *TypeTag

	// Struct fields, valid only when Kind == TypeStruct.
	Address    address.Address
	Module     string
	Name       string
	TypeParams []TypeTag
}

// String renders the canonical textual form of a TypeTag, e.g.
// "0x2::coin::Coin<0x2::sui::SUI>" or "vector<u8>".
func (t TypeTag) String() string {
	switch t.Kind {
	case TypeBool:
		return "bool"
	case TypeU8:
		return "u8"
	case TypeU16:
		return "u16"
	case TypeU32:
		return "u32"
	case TypeU64:
		return "u64"
	case TypeU128:
		return "u128"
	case TypeU256:
		return "u256"
	case TypeAddress:
		return "address"
	case TypeSigner:
		return "signer"
	case TypeVector:
		if t.Elem == nil {
			return "vector<?>"
		}
		return "vector<" + t.Elem.String() + ">"
	case TypeStruct:
		base := fmt.Sprintf("%s::%s::%s", t.Address.String(), t.Module, t.Name)
		if len(t.TypeParams) == 0 {
			return base
		}
		parts := make([]string, len(t.TypeParams))
		for i, p := range t.TypeParams {
			parts[i] = p.String()
		}
		return base + "<" + strings.Join(parts, ",") + ">"
	default:
		return "unknown"
	}
}

// BCS appends the canonical BCS-serialized form of the type tag to w,
// following Move's TypeTag enum discriminant ordering. Dynamic-field key
// ids are derived from this encoding.
func (t TypeTag) BCS(w *bcs.Writer) {
	switch t.Kind {
	case TypeBool:
		w.WriteU8(0)
	case TypeU8:
		w.WriteU8(1)
	case TypeU64:
		w.WriteU8(2)
	case TypeU128:
		w.WriteU8(3)
	case TypeAddress:
		w.WriteU8(4)
	case TypeSigner:
		w.WriteU8(5)
	case TypeVector:
		w.WriteU8(6)
		if t.Elem != nil {
			t.Elem.BCS(w)
		}
	case TypeStruct:
		w.WriteU8(7)
		w.WriteFixedBytes(t.Address.Bytes())
		w.WriteString(t.Module)
		w.WriteString(t.Name)
		bcs.WriteVector(w, t.TypeParams, func(ww *bcs.Writer, tt TypeTag) { tt.BCS(ww) })
	case TypeU16:
		w.WriteU8(8)
	case TypeU32:
		w.WriteU8(9)
	case TypeU256:
		w.WriteU8(10)
	}
}

// BCSBytes returns the BCS encoding of t as a standalone byte slice.
func (t TypeTag) BCSBytes() []byte {
	w := bcs.NewWriter()
	t.BCS(w)
	return w.Bytes()
}

// OwnerKind discriminates the tagged variants of Owner.
type OwnerKind int

const (
	OwnerAddress OwnerKind = iota
	OwnerObject
	OwnerShared
	OwnerImmutable
	OwnerConsensusAddress
)

// Owner is the tagged variant describing who/what controls an object: an
// address, a parent object (dynamic field), a shared object (with its
// initial shared version), immutable, or a consensus-managed address
// owner (§3 Open Question — digest computation for this variant is
// unverified; see pkg/compare doc comments).
type Owner struct {
	Kind OwnerKind

	Address address.Address // OwnerAddress

	Parent address.Address // OwnerObject

	InitialSharedVersion address.Version // OwnerShared

	// OwnerConsensusAddress
	ConsensusStartVersion address.Version
	ConsensusOwner        address.Address
}

func (o Owner) String() string {
	switch o.Kind {
	case OwnerAddress:
		return "Address(" + o.Address.String() + ")"
	case OwnerObject:
		return "Object(" + o.Parent.String() + ")"
	case OwnerShared:
		return fmt.Sprintf("Shared{initial_version:%d}", o.InitialSharedVersion)
	case OwnerImmutable:
		return "Immutable"
	case OwnerConsensusAddress:
		return fmt.Sprintf("ConsensusAddress{start_version:%d,owner:%s}", o.ConsensusStartVersion, o.ConsensusOwner)
	default:
		return "Unknown"
	}
}

// VersionedObject is a single (id, version) snapshot of on-chain object
// state: its type, raw BCS contents, owner, and shared/immutable flags.
type VersionedObject struct {
	ID          address.Address
	Version     address.Version
	TypeTag     TypeTag
	BCSBytes    []byte
	Owner       Owner
	IsShared    bool
	IsImmutable bool
	Digest      *[32]byte // nil when not yet computed/known

	// PreviousTransaction and StorageRebate are carried through from the
	// checkpoint's output_objects record; they participate in digest
	// reconstruction (§4.8 step 3).
	PreviousTransaction [32]byte
	StorageRebate       uint64
	HasPublicTransfer   bool
}

// EmbeddedID extracts the object id encoded in the first 32 bytes of a
// move-object's BCS contents, verifying the data-model invariant that
// bcs_bytes[0..32] == id.
func (o VersionedObject) EmbeddedID() (address.Address, error) {
	if len(o.BCSBytes) < address.Length {
		return address.Address{}, fmt.Errorf("types: object %s bcs bytes too short (%d) to embed id", o.ID, len(o.BCSBytes))
	}
	embedded, err := address.FromBytes(o.BCSBytes[:address.Length])
	if err != nil {
		return address.Address{}, err
	}
	if embedded != o.ID {
		return address.Address{}, fmt.Errorf("types: object %s has embedded id %s, violates bcs[0..32]==id invariant", o.ID, embedded)
	}
	return embedded, nil
}

// Package is module bytecode for a single on-chain package along with its
// upgrade identity and linkage table.
type Package struct {
	StorageID address.Address
	RuntimeID address.Address
	Version   address.Version
	Modules   []Module
	// Linkage maps each transitive dependency's runtime-id to the
	// storage-id at which it was linked when this package was published
	// or upgraded.
	Linkage map[address.Address]address.Address
}

// Module is a single named bytecode blob within a Package.
type Module struct {
	Name  string
	Bytes []byte
}

// ChangeType classifies how an object changed across a transaction.
type ChangeType int

const (
	ChangeCreated ChangeType = iota
	ChangeMutated
	ChangeDeleted
	ChangeWrapped
	ChangeUnwrapped
)

func (c ChangeType) String() string {
	switch c {
	case ChangeCreated:
		return "Created"
	case ChangeMutated:
		return "Mutated"
	case ChangeDeleted:
		return "Deleted"
	case ChangeWrapped:
		return "Wrapped"
	case ChangeUnwrapped:
		return "Unwrapped"
	default:
		return "Unknown"
	}
}

// ExpectedChange is a single entry parsed from canonical on-chain effects'
// changed_objects table.
type ExpectedChange struct {
	ID           address.Address
	InputVersion *address.Version
	OutputDigest [32]byte
	ChangeType   ChangeType
}

// ObjectVersionInfo records the pre/post version and classification the
// local replay produced for one object.
type ObjectVersionInfo struct {
	InputVersion  *address.Version
	OutputVersion address.Version
	ChangeType    ChangeType
	OutputBytes   []byte
}

// StructuredError carries a VM-level abort or type-mismatch detail.
type StructuredError struct {
	Code    string
	Message string
}

func (e *StructuredError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Effects is the local re-execution's reconstruction of what the VM did.
type Effects struct {
	Mutated          []address.Address
	Created          []address.Address
	Deleted          []address.Address
	Wrapped          []address.Address
	ObjectVersions   map[address.Address]ObjectVersionInfo
	LamportTimestamp address.Version
	ReturnValues     [][]byte
	GasUsed          GasUsed
}

// GasUsed is the canonical gas-accounting breakdown for a transaction.
type GasUsed struct {
	ComputationCost uint64
	StorageCost     uint64
	StorageRebate   uint64
}

// Total returns computation + storage - rebate, saturating at zero. See
// SPEC_FULL §9: pathological inputs where comp+stor < rebate are flagged
// by the caller rather than silently producing a negative/overflowed
// result.
func (g GasUsed) Total() (total uint64, saturated bool) {
	sum := g.ComputationCost + g.StorageCost
	if sum < g.StorageRebate {
		return 0, true
	}
	return sum - g.StorageRebate, false
}

// ExecutionResult is the outcome of running a PTB through the VM harness.
type ExecutionResult struct {
	Success bool
	Error   *StructuredError
	Effects *Effects
}

// OutcomeRecord is the egress artifact produced for one replayed
// transaction (§6).
type OutcomeRecord struct {
	Digest      string
	Checkpoint  uint64
	Attempts    []AttemptRecord
	FinalParity bool
	FinalReason string
}

// AttemptRecord captures one escalating attempt's outcome.
type AttemptRecord struct {
	Kind             string
	Success          bool
	Parity           bool
	Reason           string
	DurationMS       int64
	Notes            []string
	CommandsExecuted int
}

// Now is a seam for deterministic timestamping in tests; production code
// calls time.Now directly through this indirection point.
var Now = time.Now
