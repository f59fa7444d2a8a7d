package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sui-sandbox/replay/pkg/address"
	"github.com/sui-sandbox/replay/pkg/config"
	"github.com/sui-sandbox/replay/pkg/metrics"
	"github.com/sui-sandbox/replay/pkg/objectcache"
	"github.com/sui-sandbox/replay/pkg/ptb"
	"github.com/sui-sandbox/replay/pkg/replay"
	"github.com/sui-sandbox/replay/pkg/transport"
	"github.com/sui-sandbox/replay/pkg/types"
	"github.com/sui-sandbox/replay/pkg/vmharness"
)

// envPrefix reads the shared --env-prefix persistent flag, falling back
// to config.DefaultPrefix the same way config.NewStorePathsFromEnv does
// internally when handed an empty prefix.
func envPrefix(cmd *cobra.Command) string {
	prefix, _ := cmd.Flags().GetString("env-prefix")
	if prefix == "" {
		return config.DefaultPrefix
	}
	return prefix
}

func resolveStorePaths(cmd *cobra.Command) (config.StorePaths, error) {
	paths, err := config.NewStorePathsFromEnv(envPrefix(cmd))
	if err != nil {
		return config.StorePaths{}, err
	}
	if err := paths.EnsureDirs(); err != nil {
		return config.StorePaths{}, err
	}
	return paths, nil
}

func resolveTransportConfig(cmd *cobra.Command) config.TransportConfig {
	return config.NewTransportConfigFromEnv(envPrefix(cmd))
}

// buildObjectCache wires the two-tier (in-memory LRU + bbolt) object
// cache at paths.CacheDir, per §4.2's disk-backed tier.
func buildObjectCache(paths config.StorePaths) (*objectcache.Cache, error) {
	cache, err := objectcache.New(objectcache.Config{DiskPath: filepath.Join(paths.CacheDir, "objects.db")})
	if err != nil {
		metrics.RegisterComponent("objectcache", false, err.Error())
		return nil, err
	}
	metrics.RegisterComponent("objectcache", true, "")
	return cache, nil
}

// buildTransportAdapters wires the three transport adapters from
// persistent flags, each sharing the same retry/timeout tuning.
func buildTransportAdapters(cmd *cobra.Command) (*transport.ArchivalAdapter, *transport.RpcAdapter, *transport.GraphAdapter, error) {
	archivalEndpoint, _ := cmd.Flags().GetString("archival-endpoint")
	rpcEndpoint, _ := cmd.Flags().GetString("rpc-endpoint")
	graphEndpoint, _ := cmd.Flags().GetString("graphql-endpoint")
	if archivalEndpoint == "" || rpcEndpoint == "" || graphEndpoint == "" {
		err := fmt.Errorf("sui-replay: --archival-endpoint, --rpc-endpoint, and --graphql-endpoint are all required")
		metrics.RegisterComponent("transport", false, err.Error())
		return nil, nil, nil, err
	}

	cfg := resolveTransportConfig(cmd)
	archival := transport.NewArchivalAdapter(archivalEndpoint, cfg)
	rpc := transport.NewRPCAdapter(rpcEndpoint, cfg)
	graph := transport.NewGraphAdapter(graphEndpoint, cfg)
	metrics.RegisterComponent("transport", true, "")
	return archival, rpc, graph, nil
}

// transactionFromCheckpoint adapts a checkpoint blob's bundled record into
// the engine's Transaction shape (§4.6's "State-file mode" counterpart: a
// live checkpoint already carries everything the reconstruction/prefetch
// phases would otherwise assemble).
func transactionFromCheckpoint(seq uint64, ct transport.CheckpointTransaction) replay.Transaction {
	hasShared := false
	for _, in := range ct.Inputs {
		if in.Kind == ptb.Shared {
			hasShared = true
			break
		}
	}
	return replay.Transaction{
		Digest:           ct.Digest,
		Checkpoint:       seq,
		Sender:           ct.Sender,
		GasBudget:        ct.GasBudget,
		GasPrice:         ct.GasPrice,
		TimestampMS:      ct.TimestampMS,
		GasPayment:       ct.GasPayment,
		GasObjectIdx:     ct.GasObjectIdx,
		RawInputs:        ct.Inputs,
		Commands:         ct.Commands,
		HasSharedInput:   hasShared,
		Canonical:        ct.Effects,
		CanonicalOutputs: ct.OutputObjects,
	}
}

// findCheckpointTransaction locates digest within blob, the step the CLI
// performs itself rather than pushing into pkg/transport, since "which
// transaction in the blob" is a CLI-ingress concern, not a transport one.
func findCheckpointTransaction(blob *transport.CheckpointBlob, digest string) (transport.CheckpointTransaction, bool) {
	for _, ct := range blob.Transactions {
		if ct.Digest == digest {
			return ct, true
		}
	}
	return transport.CheckpointTransaction{}, false
}

// mirrorHarnessFactory builds a Harness that reproduces tx's own canonical
// effects verbatim. The Move VM itself is out of scope for this module
// (spec's VM non-goal): Harness is the documented seam the engine codes
// against, and this implementation stands in for "the VM executed
// correctly" so the CLI can exercise the rest of the pipeline — transport,
// caches, parsing, the attempt ladder, gas patching, strict comparison —
// end to end against real archived data. A real Move VM integration would
// replace only this one function.
func mirrorHarnessFactory(tx replay.Transaction) func() vmharness.Harness {
	return func() vmharness.Harness {
		h := vmharness.NewMockHarness()
		h.Default = func(block ptb.ProgrammableTransactionBlock) (*types.ExecutionResult, error) {
			if !tx.Canonical.Success {
				return &types.ExecutionResult{Success: false, Error: &types.StructuredError{Code: "Aborted", Message: "canonical record reports failure"}}, nil
			}
			byID := make(map[address.Address]transport.OutputObject, len(tx.CanonicalOutputs))
			for _, out := range tx.CanonicalOutputs {
				byID[out.ID] = out
			}
			versions := make(map[address.Address]types.ObjectVersionInfo, len(tx.Canonical.ChangedObjects))
			for _, change := range tx.Canonical.ChangedObjects {
				info := types.ObjectVersionInfo{
					InputVersion:  change.InputVersion,
					OutputVersion: tx.Canonical.LamportVersion,
					ChangeType:    change.ChangeType,
				}
				if out, ok := byID[change.ID]; ok {
					info.OutputBytes = append([]byte(nil), out.Contents...)
				}
				versions[change.ID] = info
			}
			return &types.ExecutionResult{
				Success: true,
				Effects: &types.Effects{
					LamportTimestamp: tx.Canonical.LamportVersion,
					ObjectVersions:   versions,
					GasUsed:          tx.Canonical.GasUsed,
				},
			}, nil
		}
		return h
	}
}

// printJSON is the CLI's one egress helper: every subcommand prints its
// artifact as pretty JSON to stdout, matching §6's egress schemas.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("sui-replay: encode output: %w", err)
	}
	return nil
}
