package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sui-sandbox/replay/pkg/address"
	"github.com/sui-sandbox/replay/pkg/config"
	"github.com/sui-sandbox/replay/pkg/corpus"
	"github.com/sui-sandbox/replay/pkg/objectcache"
	"github.com/sui-sandbox/replay/pkg/packagecache"
	"github.com/sui-sandbox/replay/pkg/replay"
	"github.com/sui-sandbox/replay/pkg/transport"
	"github.com/sui-sandbox/replay/pkg/types"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay one or more historical transactions and strict-compare the result",
}

func init() {
	replayCmd.AddCommand(replayTxCmd)
	replayCmd.AddCommand(replayBatchCmd)

	replayTxCmd.Flags().String("digest", "", "Transaction digest to replay (required unless --tx-file is set)")
	replayTxCmd.Flags().Uint64("checkpoint", 0, "Checkpoint sequence number the transaction belongs to")
	replayTxCmd.Flags().String("tx-file", "", "Replay a JSON-encoded transaction bundle directly, skipping checkpoint fetch (offline/state-file mode, §4.6)")

	replayBatchCmd.Flags().String("corpus", "", "Path to a corpus catalog JSON file (required)")
	replayBatchCmd.Flags().String("category", "", "If set, only replay catalog entries with this category")
	_ = replayBatchCmd.MarkFlagRequired("corpus")
}

var replayTxCmd = &cobra.Command{
	Use:   "tx",
	Short: "Replay a single transaction",
	RunE:  runReplayTx,
}

var replayBatchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Replay every digest in a corpus catalog",
	RunE:  runReplayBatch,
}

// txBundle is the offline --tx-file schema: a replay.Transaction plus the
// input objects a live checkpoint blob would otherwise bundle alongside
// it, so an offline replay never needs a transport fetch.
type txBundle struct {
	Transaction  replay.Transaction      `json:"transaction"`
	InputObjects []types.VersionedObject `json:"input_objects"`
}

func runReplayTx(cmd *cobra.Command, args []string) error {
	txFile, _ := cmd.Flags().GetString("tx-file")

	paths, err := resolveStorePaths(cmd)
	if err != nil {
		return err
	}
	cache, err := buildObjectCache(paths)
	if err != nil {
		return err
	}
	defer cache.Close()

	var tx replay.Transaction
	var objects transport.ObjectSource = emptyObjectSource{}
	var dynFields transport.DynamicFieldSource = emptyDynFieldSource{}
	var packages transport.PackageSource = emptyPackageSource{}

	if txFile != "" {
		data, err := os.ReadFile(txFile)
		if err != nil {
			return fmt.Errorf("sui-replay: read %s: %w", txFile, err)
		}
		var bundle txBundle
		if err := json.Unmarshal(data, &bundle); err != nil {
			return fmt.Errorf("sui-replay: parse %s: %w", txFile, err)
		}
		tx = bundle.Transaction
		for i := range bundle.InputObjects {
			if err := cache.Insert(&bundle.InputObjects[i]); err != nil {
				return fmt.Errorf("sui-replay: seed cache: %w", err)
			}
		}
	} else {
		digest, _ := cmd.Flags().GetString("digest")
		seq, _ := cmd.Flags().GetUint64("checkpoint")
		if digest == "" {
			return fmt.Errorf("sui-replay: --digest or --tx-file is required")
		}

		archival, rpc, graph, err := buildTransportAdapters(cmd)
		if err != nil {
			return err
		}
		objects, dynFields, packages = rpc, graph, graph

		blob, err := archival.GetCheckpoint(cmd.Context(), seq)
		if err != nil {
			return fmt.Errorf("sui-replay: fetch checkpoint %d: %w", seq, err)
		}
		ct, ok := findCheckpointTransaction(blob, digest)
		if !ok {
			return fmt.Errorf("sui-replay: digest %s not found in checkpoint %d", digest, seq)
		}
		tx = transactionFromCheckpoint(seq, ct)
		for i := range ct.InputObjects {
			if err := cache.Insert(&ct.InputObjects[i]); err != nil {
				return fmt.Errorf("sui-replay: seed cache: %w", err)
			}
		}
	}

	outcome, err := replayOne(cmd.Context(), cache, objects, dynFields, packages, tx)
	if err != nil {
		return err
	}
	if err := printJSON(outcome); err != nil {
		return err
	}
	if !outcome.FinalParity {
		// Single-transaction replay may exit nonzero on non-parity for
		// scripting (§7's user-visible-behavior note); batch runs never do.
		os.Exit(1)
	}
	return nil
}

func runReplayBatch(cmd *cobra.Command, args []string) error {
	catalogPath, _ := cmd.Flags().GetString("corpus")
	category, _ := cmd.Flags().GetString("category")

	catalog, err := corpus.Load(catalogPath)
	if err != nil {
		return err
	}
	entries := catalog.Entries
	if category != "" {
		entries = catalog.FilterByCategory(category)
	}

	archival, rpc, graph, err := buildTransportAdapters(cmd)
	if err != nil {
		return err
	}
	paths, err := resolveStorePaths(cmd)
	if err != nil {
		return err
	}

	blobsBySeq := make(map[uint64]*transport.CheckpointBlob)
	outcomes := make([]*types.OutcomeRecord, 0, len(entries))
	for _, entry := range entries {
		blob, ok := blobsBySeq[entry.Checkpoint]
		if !ok {
			blob, err = archival.GetCheckpoint(cmd.Context(), entry.Checkpoint)
			if err != nil {
				return fmt.Errorf("sui-replay: fetch checkpoint %d: %w", entry.Checkpoint, err)
			}
			blobsBySeq[entry.Checkpoint] = blob
		}
		ct, ok := findCheckpointTransaction(blob, entry.Digest)
		if !ok {
			continue
		}
		tx := transactionFromCheckpoint(entry.Checkpoint, ct)

		cache, err := buildObjectCache(paths)
		if err != nil {
			return err
		}
		for i := range ct.InputObjects {
			if err := cache.Insert(&ct.InputObjects[i]); err != nil {
				cache.Close()
				return fmt.Errorf("sui-replay: seed cache: %w", err)
			}
		}
		outcome, err := replayOne(cmd.Context(), cache, rpc, graph, graph, tx)
		cache.Close()
		if err != nil {
			return err
		}
		outcomes = append(outcomes, outcome)
	}

	grouped := corpus.GroupOutcomesByReason(outcomes)
	report := struct {
		Total    int            `json:"total"`
		ByReason map[string]int `json:"by_reason"`
	}{
		Total:    len(outcomes),
		ByReason: make(map[string]int, len(grouped)),
	}
	for reason, group := range grouped {
		report.ByReason[reason] = len(group)
	}

	// Batch replay always exits 0; the result is carried in the artifact
	// (§7's user-visible-behavior note).
	return printJSON(report)
}

func replayOne(ctx context.Context, cache *objectcache.Cache, objects transport.ObjectSource, dynFields transport.DynamicFieldSource, pkgSource transport.PackageSource, tx replay.Transaction) (*types.OutcomeRecord, error) {
	packages := packagecache.New()
	loader := packagecache.NewLoader(packages, pkgSource)
	engine := replay.NewEngine(objects, dynFields, cache, packages, loader, mirrorHarnessFactory(tx), replay.NewDenyList(), config.DefaultReplayOptions())
	return engine.Replay(ctx, tx)
}

// emptyObjectSource/emptyDynFieldSource/emptyPackageSource back an
// offline --tx-file replay, whose object cache is fully pre-seeded: any
// call into these means the bundle was incomplete, so a plain not-found
// is the right answer, not a fabricated one.
type emptyObjectSource struct{}

func (emptyObjectSource) GetObject(ctx context.Context, id address.Address) (*types.VersionedObject, error) {
	return nil, transport.ErrNotFound
}

func (emptyObjectSource) GetObjectAtVersion(ctx context.Context, id address.Address, version address.Version) (*types.VersionedObject, error) {
	return nil, transport.ErrNotFound
}

func (emptyObjectSource) BatchGetObjects(ctx context.Context, refs []transport.ObjectRef, parallelism int) ([]*types.VersionedObject, error) {
	return make([]*types.VersionedObject, len(refs)), nil
}

type emptyDynFieldSource struct{}

func (emptyDynFieldSource) FetchDynamicFields(ctx context.Context, parent address.Address, limit int) ([]transport.DynamicFieldInfo, error) {
	return nil, nil
}

func (emptyDynFieldSource) FetchDynamicFieldByName(ctx context.Context, parent address.Address, keyType types.TypeTag, keyBytes []byte) (*transport.DynamicFieldInfo, error) {
	return nil, transport.ErrNotFound
}

type emptyPackageSource struct{}

func (emptyPackageSource) FetchPackage(ctx context.Context, id address.Address) (*types.Package, error) {
	return nil, transport.ErrNotFound
}

func (emptyPackageSource) FetchPackageAtCheckpoint(ctx context.Context, id address.Address, checkpoint uint64) (*types.Package, error) {
	return nil, transport.ErrNotFound
}

func (emptyPackageSource) GetPackageUpgrades(ctx context.Context, id address.Address) ([]transport.PackageUpgrade, error) {
	return nil, nil
}
