package transport

import (
	"context"
	"fmt"

	"github.com/sui-sandbox/replay/pkg/address"
	"github.com/sui-sandbox/replay/pkg/config"
	"github.com/sui-sandbox/replay/pkg/log"
	"github.com/sui-sandbox/replay/pkg/types"
	"golang.org/x/sync/semaphore"
)

// RpcAdapter fetches single objects at specific versions, transaction
// records (loaded-runtime-object and changed-object tables), and batched
// objects. It may require an API key, supplied via config.TransportConfig
// (§4.1).
type RpcAdapter struct {
	http *httpClient
}

// NewRPCAdapter constructs an RpcAdapter against endpoint.
func NewRPCAdapter(endpoint string, cfg config.TransportConfig) *RpcAdapter {
	return &RpcAdapter{
		http: newHTTPClient("rpc", endpoint, cfg, log.WithComponent("transport.rpc")),
	}
}

type objectWire struct {
	ObjectID        string          `json:"object_id"`
	Version         uint64          `json:"version"`
	BCS             []byte          `json:"bcs"`
	TypeString      string          `json:"type_string"`
	Owner           ownerWire       `json:"owner"`
	PackageModules  map[string][]byte `json:"package_modules,omitempty"`
	PackageLinkage  map[string]string `json:"package_linkage,omitempty"`
	PackageOriginID string          `json:"package_original_id,omitempty"`
}

type ownerWire struct {
	Kind                 string `json:"kind"`
	Address              string `json:"address,omitempty"`
	Parent               string `json:"parent,omitempty"`
	InitialSharedVersion uint64 `json:"initial_shared_version,omitempty"`
	ConsensusStart       uint64 `json:"consensus_start_version,omitempty"`
	ConsensusOwner       string `json:"consensus_owner,omitempty"`
}

func (o ownerWire) decode() (types.Owner, error) {
	switch o.Kind {
	case "Address":
		a, err := address.Parse(o.Address)
		if err != nil {
			return types.Owner{}, err
		}
		return types.Owner{Kind: types.OwnerAddress, Address: a}, nil
	case "Object":
		a, err := address.Parse(o.Parent)
		if err != nil {
			return types.Owner{}, err
		}
		return types.Owner{Kind: types.OwnerObject, Parent: a}, nil
	case "Shared":
		return types.Owner{Kind: types.OwnerShared, InitialSharedVersion: address.Version(o.InitialSharedVersion)}, nil
	case "Immutable":
		return types.Owner{Kind: types.OwnerImmutable}, nil
	case "ConsensusAddress":
		a, err := address.Parse(o.ConsensusOwner)
		if err != nil {
			return types.Owner{}, err
		}
		return types.Owner{
			Kind:                   types.OwnerConsensusAddress,
			ConsensusStartVersion:  address.Version(o.ConsensusStart),
			ConsensusOwner:         a,
		}, nil
	default:
		return types.Owner{}, fmt.Errorf("rpc: unknown owner kind %q", o.Kind)
	}
}

func (w objectWire) decode() (*types.VersionedObject, error) {
	id, err := address.Parse(w.ObjectID)
	if err != nil {
		return nil, err
	}
	owner, err := w.Owner.decode()
	if err != nil {
		return nil, err
	}
	return &types.VersionedObject{
		ID:          id,
		Version:     address.Version(w.Version),
		BCSBytes:    w.BCS,
		Owner:       owner,
		IsShared:    owner.Kind == types.OwnerShared,
		IsImmutable: owner.Kind == types.OwnerImmutable,
		TypeTag:     parseTypeStringBestEffort(w.TypeString),
	}, nil
}

// parseTypeStringBestEffort wraps s, unparsed, as the Name of a struct
// TypeTag with a zero address, for the RPC and graph decode paths. No
// structural decoding is done, so TypeTag.String() does not reproduce s.
func parseTypeStringBestEffort(s string) types.TypeTag {
	return types.TypeTag{Kind: types.TypeStruct, Name: s}
}

// GetObject fetches the latest known version of id.
func (r *RpcAdapter) GetObject(ctx context.Context, id address.Address) (*types.VersionedObject, error) {
	req := struct {
		ObjectID string `json:"object_id"`
	}{ObjectID: id.String()}

	var wire objectWire
	if err := r.http.postJSON(ctx, "/get_object", req, &wire); err != nil {
		return nil, fmt.Errorf("rpc: get object %s: %w", id, err)
	}
	return wire.decode()
}

// GetObjectAtVersion fetches id at exactly version.
func (r *RpcAdapter) GetObjectAtVersion(ctx context.Context, id address.Address, version address.Version) (*types.VersionedObject, error) {
	req := struct {
		ObjectID string `json:"object_id"`
		Version  uint64 `json:"version"`
	}{ObjectID: id.String(), Version: uint64(version)}

	var wire objectWire
	if err := r.http.postJSON(ctx, "/get_object_at_version", req, &wire); err != nil {
		return nil, fmt.Errorf("rpc: get object %s@%d: %w", id, version, err)
	}
	return wire.decode()
}

// BatchGetObjects fetches refs with bounded parallelism, preserving the
// input order in the returned slice. A nil entry marks an unresolved
// object rather than aborting the whole batch.
func (r *RpcAdapter) BatchGetObjects(ctx context.Context, refs []ObjectRef, parallelism int) ([]*types.VersionedObject, error) {
	if parallelism <= 0 {
		parallelism = 1
	}
	sem := semaphore.NewWeighted(int64(parallelism))
	out := make([]*types.VersionedObject, len(refs))
	errs := make([]error, len(refs))

	done := make(chan int, len(refs))
	for i, ref := range refs {
		if err := sem.Acquire(ctx, 1); err != nil {
			return out, fmt.Errorf("rpc: batch get objects: %w", err)
		}
		go func(i int, ref ObjectRef) {
			defer sem.Release(1)
			obj, err := r.GetObjectAtVersion(ctx, ref.ID, ref.Version)
			out[i] = obj
			errs[i] = err
			done <- i
		}(i, ref)
	}
	for range refs {
		<-done
	}

	var firstErr error
	for _, e := range errs {
		if e != nil && !IsRetryable(e) {
			// Non-retryable per-item failures are tolerated as holes in
			// the batch (the caller falls back per-object); only report
			// the first such error for diagnostics.
			if firstErr == nil {
				firstErr = e
			}
		}
	}
	return out, firstErr
}

// GetTransaction fetches the decoded transaction record for digest.
func (r *RpcAdapter) GetTransaction(ctx context.Context, digest string) (*TransactionRecord, error) {
	req := struct {
		Digest string `json:"digest"`
	}{Digest: digest}

	var wire transactionWire
	if err := r.http.postJSON(ctx, "/get_transaction", req, &wire); err != nil {
		return nil, fmt.Errorf("rpc: get transaction %s: %w", digest, err)
	}
	return wire.decode()
}

// BatchGetTransactions fetches multiple transaction records, chunked at
// 100 digests per call per §4.4.
func (r *RpcAdapter) BatchGetTransactions(ctx context.Context, digests []string) ([]*TransactionRecord, error) {
	const chunkSize = 100
	out := make([]*TransactionRecord, 0, len(digests))
	for start := 0; start < len(digests); start += chunkSize {
		end := start + chunkSize
		if end > len(digests) {
			end = len(digests)
		}
		chunk := digests[start:end]

		req := struct {
			Digests []string `json:"digests"`
		}{Digests: chunk}

		var wires []transactionWire
		if err := r.http.postJSON(ctx, "/batch_get_transactions", req, &wires); err != nil {
			return nil, fmt.Errorf("rpc: batch get transactions [%d:%d]: %w", start, end, err)
		}
		for _, w := range wires {
			rec, err := w.decode()
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		}
	}
	return out, nil
}

type refWire struct {
	ID      string `json:"id"`
	Version uint64 `json:"version"`
}

func (r refWire) decode() (ObjectRef, error) {
	id, err := address.Parse(r.ID)
	if err != nil {
		return ObjectRef{}, err
	}
	return ObjectRef{ID: id, Version: address.Version(r.Version)}, nil
}

type transactionWire struct {
	Digest                        string    `json:"digest"`
	Inputs                        []refWire `json:"inputs"`
	UnchangedLoadedRuntimeObjects []refWire `json:"unchanged_loaded_runtime_objects"`
	ChangedObjects                []refWire `json:"changed_objects"`
	UnchangedConsensusObjects     []refWire `json:"unchanged_consensus_objects"`
}

func decodeRefs(refs []refWire) ([]ObjectRef, error) {
	out := make([]ObjectRef, 0, len(refs))
	for _, rw := range refs {
		ref, err := rw.decode()
		if err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, nil
}

func (w transactionWire) decode() (*TransactionRecord, error) {
	inputs, err := decodeRefs(w.Inputs)
	if err != nil {
		return nil, err
	}
	unchangedLoaded, err := decodeRefs(w.UnchangedLoadedRuntimeObjects)
	if err != nil {
		return nil, err
	}
	changed, err := decodeRefs(w.ChangedObjects)
	if err != nil {
		return nil, err
	}
	unchangedConsensus, err := decodeRefs(w.UnchangedConsensusObjects)
	if err != nil {
		return nil, err
	}
	return &TransactionRecord{
		Digest:                        w.Digest,
		Inputs:                        inputs,
		UnchangedLoadedRuntimeObjects: unchangedLoaded,
		ChangedObjects:                changed,
		UnchangedConsensusObjects:     unchangedConsensus,
	}, nil
}

var (
	_ ObjectSource      = (*RpcAdapter)(nil)
	_ TransactionSource = (*RpcAdapter)(nil)
)
