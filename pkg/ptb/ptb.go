// Package ptb decodes a programmable transaction block's typed inputs and
// command sequence, resolving each object input's bytes from the object
// cache, then the RPC adapter, before giving up with MissingObject
// (SPEC_FULL §4.5). The structural PTB types themselves live in pkg/types
// so transport ingress adapters can produce them without importing this
// package; ptb re-exports them under their familiar names for callers.
package ptb

import (
	"context"
	"errors"
	"fmt"

	"github.com/sui-sandbox/replay/pkg/address"
	"github.com/sui-sandbox/replay/pkg/objectcache"
	"github.com/sui-sandbox/replay/pkg/transport"
	"github.com/sui-sandbox/replay/pkg/types"
)

// ErrMissingObject is returned when an object input's bytes cannot be
// resolved from either the cache or the RPC adapter.
var ErrMissingObject = errors.New("ptb: missing object")

type (
	ObjectInputKind              = types.ObjectInputKind
	ObjectInput                  = types.ObjectInput
	InputValue                   = types.InputValue
	CommandKind                  = types.CommandKind
	Argument                     = types.Argument
	Command                      = types.Command
	ProgrammableTransactionBlock = types.ProgrammableTransactionBlock
	RawInput                     = types.RawInput
)

const (
	ImmRef    = types.ImmRef
	MutRef    = types.MutRef
	Owned     = types.Owned
	Shared    = types.Shared
	Receiving = types.Receiving

	MoveCall        = types.MoveCall
	TransferObjects = types.TransferObjects
	SplitCoins      = types.SplitCoins
	MergeCoins      = types.MergeCoins
	Publish         = types.Publish
	MakeMoveVec     = types.MakeMoveVec
	Upgrade         = types.Upgrade
	Receive         = types.Receive
)

// Parser resolves object-input bytes via a versioned cache, falling back
// to the RPC object source at the exact recorded version.
type Parser struct {
	cache   *objectcache.Cache
	objects transport.ObjectSource
}

// New constructs a Parser.
func New(cache *objectcache.Cache, objects transport.ObjectSource) *Parser {
	return &Parser{cache: cache, objects: objects}
}

// ParseInputs resolves raw into fully-hydrated InputValues, collecting
// package ids referenced by any struct-typed object input along the way.
func (p *Parser) ParseInputs(ctx context.Context, raw []RawInput) ([]InputValue, []address.Address, error) {
	inputs := make([]InputValue, len(raw))
	packageIDs := make([]address.Address, 0)
	seen := make(map[address.Address]bool)

	for i, r := range raw {
		if r.IsPure {
			inputs[i] = InputValue{IsPure: true, Pure: r.Pure}
			continue
		}

		bytes, err := p.resolveObjectBytes(ctx, r.ID, r.Version)
		if err != nil {
			return nil, nil, fmt.Errorf("ptb: input %d: %w", i, err)
		}

		inputs[i] = InputValue{
			Object: ObjectInput{
				Kind:                 r.Kind,
				ID:                   r.ID,
				Version:              r.Version,
				InitialSharedVersion: r.InitialSharedVersion,
				TypeTag:              r.TypeTag,
				Bytes:                bytes,
			},
		}

		collectPackageIDs(r.TypeTag, seen, &packageIDs)
	}

	return inputs, packageIDs, nil
}

// resolveObjectBytes tries the cache at the exact version, then falls
// through to the RPC adapter; it returns ErrMissingObject wrapping the
// lookup failure when every source misses.
func (p *Parser) resolveObjectBytes(ctx context.Context, id address.Address, version address.Version) ([]byte, error) {
	if obj, ok := p.cache.Get(id, version); ok {
		return obj.BCSBytes, nil
	}

	obj, err := p.objects.GetObjectAtVersion(ctx, id, version)
	if err != nil {
		if errors.Is(err, transport.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s@%d", ErrMissingObject, id, version)
		}
		return nil, fmt.Errorf("ptb: fetch %s@%d: %w", id, version, err)
	}
	if obj == nil {
		return nil, fmt.Errorf("%w: %s@%d", ErrMissingObject, id, version)
	}

	if err := p.cache.Insert(obj); err != nil {
		return nil, fmt.Errorf("ptb: cache insert %s@%d: %w", id, version, err)
	}
	return obj.BCSBytes, nil
}

// CollectCommandPackageIDs extracts every package id referenced by a
// MoveCall command (the call target plus its type arguments).
func CollectCommandPackageIDs(cmds []Command) []address.Address {
	seen := make(map[address.Address]bool)
	var out []address.Address
	for _, cmd := range cmds {
		if cmd.Kind != MoveCall {
			continue
		}
		if !seen[cmd.Package] {
			seen[cmd.Package] = true
			out = append(out, cmd.Package)
		}
		for _, ta := range cmd.TypeArgs {
			collectPackageIDs(ta, seen, &out)
		}
	}
	return out
}

func collectPackageIDs(t types.TypeTag, seen map[address.Address]bool, out *[]address.Address) {
	switch t.Kind {
	case types.TypeStruct:
		if !seen[t.Address] {
			seen[t.Address] = true
			*out = append(*out, t.Address)
		}
		for _, tp := range t.TypeParams {
			collectPackageIDs(tp, seen, out)
		}
	case types.TypeVector:
		if t.Elem != nil {
			collectPackageIDs(*t.Elem, seen, out)
		}
	}
}
