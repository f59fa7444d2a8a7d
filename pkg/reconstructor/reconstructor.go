// Package reconstructor builds the per-transaction Address→Version map a
// replay attempt needs before it can preload object inputs: the set of
// every object version a transaction is known to have touched, gathered
// from whichever data source is richest for that transaction (SPEC_FULL
// §4.4).
package reconstructor

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sui-sandbox/replay/pkg/address"
	"github.com/sui-sandbox/replay/pkg/log"
	"github.com/sui-sandbox/replay/pkg/objectcache"
	"github.com/sui-sandbox/replay/pkg/transport"
)

// chunkSize bounds batched RPC transaction-record calls (§4.4).
const chunkSize = 100

// VersionMap is the reconstructed Address→Version state for one
// transaction, covering every object the transaction is known to read or
// write.
type VersionMap map[address.Address]address.Version

// merge records id→version, keeping the existing entry if one is already
// present (the checkpoint blob, being the richest source, is always
// reconstructed first and never overwritten by a lower-priority source).
func (m VersionMap) merge(id address.Address, version address.Version) {
	if _, ok := m[id]; !ok {
		m[id] = version
	}
}

// Reconstructor assembles VersionMaps from a checkpoint blob, falling back
// to RPC transaction records for transactions the blob alone cannot fully
// resolve, and pre-populates the object cache with a bounded-parallelism
// batch fetch of the resulting references.
type Reconstructor struct {
	rpc         transport.TransactionSource
	objects     transport.ObjectSource
	cache       *objectcache.Cache
	parallelism int
	logger      zerolog.Logger
}

// New constructs a Reconstructor. parallelism bounds the concurrent
// BatchGetObjects pre-scan fetch (default 10 per §4.4/§5 when <= 0).
func New(rpc transport.TransactionSource, objects transport.ObjectSource, cache *objectcache.Cache, parallelism int) *Reconstructor {
	if parallelism <= 0 {
		parallelism = 10
	}
	return &Reconstructor{
		rpc:         rpc,
		objects:     objects,
		cache:       cache,
		parallelism: parallelism,
		logger:      log.WithComponent("reconstructor"),
	}
}

// FromCheckpoint builds a VersionMap from a single checkpoint transaction's
// bundled input/output object arrays — the richest source, since it
// carries object bytes directly (§4.4 priority 1).
func FromCheckpoint(tx transport.CheckpointTransaction) VersionMap {
	vm := make(VersionMap)
	for _, obj := range tx.InputObjects {
		vm.merge(obj.ID, obj.Version)
	}
	for _, obj := range tx.OutputObjects {
		vm.merge(obj.ID, obj.Version)
	}
	for _, ref := range tx.GasPayment {
		vm.merge(ref.ID, ref.Version)
	}
	for _, entry := range tx.Effects.ChangedObjects {
		if entry.InputVersion != nil {
			vm.merge(entry.ID, *entry.InputVersion)
		}
	}
	return vm
}

// FromTransactionRecord builds a VersionMap from an RPC transaction
// record's three tables: declared inputs, unchanged-loaded-runtime
// objects, and changed objects' pre-state versions (§4.4 priority 2/3).
func FromTransactionRecord(rec *transport.TransactionRecord) VersionMap {
	vm := make(VersionMap)
	for _, ref := range rec.Inputs {
		vm.merge(ref.ID, ref.Version)
	}
	for _, ref := range rec.UnchangedLoadedRuntimeObjects {
		vm.merge(ref.ID, ref.Version)
	}
	for _, ref := range rec.ChangedObjects {
		vm.merge(ref.ID, ref.Version)
	}
	for _, ref := range rec.UnchangedConsensusObjects {
		vm.merge(ref.ID, ref.Version)
	}
	return vm
}

// Reconstruct resolves the VersionMap for digest, preferring a bundled
// checkpoint transaction when present and falling back to an RPC
// transaction-record fetch otherwise.
func (r *Reconstructor) Reconstruct(ctx context.Context, digest string, fromCheckpoint *transport.CheckpointTransaction) (VersionMap, error) {
	if fromCheckpoint != nil {
		return FromCheckpoint(*fromCheckpoint), nil
	}

	rec, err := r.rpc.GetTransaction(ctx, digest)
	if err != nil {
		return nil, fmt.Errorf("reconstructor: fetch transaction record %s: %w", digest, err)
	}
	return FromTransactionRecord(rec), nil
}

// BatchReconstruct resolves VersionMaps for a batch of digests not bundled
// in a checkpoint blob, chunking RPC calls at chunkSize and merging the
// results, then pre-populates the object cache with a bounded-parallelism
// batch fetch of every (id, version) pair discovered (§4.4).
func (r *Reconstructor) BatchReconstruct(ctx context.Context, digests []string) (map[string]VersionMap, error) {
	out := make(map[string]VersionMap, len(digests))

	for start := 0; start < len(digests); start += chunkSize {
		end := start + chunkSize
		if end > len(digests) {
			end = len(digests)
		}
		chunk := digests[start:end]

		records, err := r.rpc.BatchGetTransactions(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("reconstructor: batch fetch transactions [%d:%d]: %w", start, end, err)
		}
		for i, rec := range records {
			if rec == nil {
				continue
			}
			out[chunk[i]] = FromTransactionRecord(rec)
		}
	}

	if err := r.prescan(ctx, out); err != nil {
		return out, err
	}
	return out, nil
}

// prescan collects every (id, version) pair across all VersionMaps and
// fetches them into the object cache with bounded parallelism, so later
// per-transaction replay reads hit the cache instead of the network.
func (r *Reconstructor) prescan(ctx context.Context, maps map[string]VersionMap) error {
	seen := make(map[transport.ObjectRef]bool)
	var refs []transport.ObjectRef
	for _, vm := range maps {
		for id, version := range vm {
			ref := transport.ObjectRef{ID: id, Version: version}
			if !seen[ref] {
				seen[ref] = true
				refs = append(refs, ref)
			}
		}
	}
	if len(refs) == 0 {
		return nil
	}

	objs, err := r.objects.BatchGetObjects(ctx, refs, r.parallelism)
	if err != nil {
		r.logger.Debug().Err(err).Int("refs", len(refs)).Msg("pre-scan batch fetch completed with partial failures")
	}
	for _, obj := range objs {
		if obj == nil {
			continue
		}
		if err := r.cache.Insert(obj); err != nil {
			r.logger.Warn().Str("object", obj.ID.String()).Err(err).Msg("failed to insert pre-scanned object into cache")
		}
	}
	return nil
}
