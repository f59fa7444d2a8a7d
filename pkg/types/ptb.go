package types

import "github.com/sui-sandbox/replay/pkg/address"

// ObjectInputKind discriminates the ways a PTB input can reference an
// on-chain object.
type ObjectInputKind int

const (
	ImmRef ObjectInputKind = iota
	MutRef
	Owned
	Shared
	Receiving
)

// ObjectInput is one object-valued PTB input, resolved to its declared
// type and raw bytes.
type ObjectInput struct {
	Kind                 ObjectInputKind
	ID                   address.Address
	Version              address.Version
	InitialSharedVersion address.Version // valid only when Kind == Shared
	TypeTag              TypeTag
	Bytes                []byte
}

// InputValue is a tagged PTB input: either a raw Pure byte string or a
// resolved ObjectInput.
type InputValue struct {
	IsPure bool
	Pure   []byte
	Object ObjectInput
}

// CommandKind discriminates the PTB command variants.
type CommandKind int

const (
	MoveCall CommandKind = iota
	TransferObjects
	SplitCoins
	MergeCoins
	Publish
	MakeMoveVec
	Upgrade
	Receive
)

// Argument references a PTB value: either an input by index, a prior
// command's result (optionally by sub-result index), or the gas coin.
type Argument struct {
	IsGasCoin    bool
	IsInput      bool
	InputIndex   int
	IsResult     bool
	ResultIndex  int
	SubResultIdx int
}

// Command is one tagged PTB command.
type Command struct {
	Kind CommandKind

	// MoveCall
	Package  address.Address
	Module   string
	Function string
	TypeArgs []TypeTag
	Args     []Argument

	// TransferObjects / MergeCoins / MakeMoveVec
	Objects   []Argument
	Recipient Argument
	ElemType  *TypeTag

	// SplitCoins
	Coin    Argument
	Amounts []Argument

	// Publish / Upgrade
	Modules       [][]byte
	Dependencies  []address.Address
	UpgradeTicket Argument
}

// ProgrammableTransactionBlock is the fully decoded PTB payload.
type ProgrammableTransactionBlock struct {
	Sender      address.Address
	GasBudget   uint64
	GasPrice    uint64
	TimestampMS *uint64
	Inputs      []InputValue
	Commands    []Command

	// PackageIDs is every runtime-id mentioned by a MoveCall or a type
	// argument anywhere in the block, for the engine to pre-load (§4.5).
	PackageIDs []address.Address
}

// RawInput is the pre-decode form of one declared PTB input, as carried by
// a checkpoint blob or assembled from a transaction record. It lives here
// rather than in pkg/ptb so pkg/transport's ingress adapters can produce
// it directly without importing the parser that consumes it.
type RawInput struct {
	IsPure                bool
	Pure                  []byte
	Kind                  ObjectInputKind
	ID                    address.Address
	Version               address.Version
	InitialSharedVersion  address.Version
	TypeTag               TypeTag
}
