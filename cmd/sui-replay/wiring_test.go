package main

import (
	"context"
	"testing"

	"github.com/sui-sandbox/replay/pkg/address"
	"github.com/sui-sandbox/replay/pkg/compare"
	"github.com/sui-sandbox/replay/pkg/ptb"
	"github.com/sui-sandbox/replay/pkg/replay"
	"github.com/sui-sandbox/replay/pkg/transport"
	"github.com/sui-sandbox/replay/pkg/types"
)

func TestTransactionFromCheckpointMapsFieldsAndDetectsSharedInput(t *testing.T) {
	gasID := address.MustParse("0x1")
	timestamp := uint64(42)
	ct := transport.CheckpointTransaction{
		Digest:       "digestA",
		Sender:       address.MustParse("0x2"),
		GasBudget:    1000,
		GasPrice:     1,
		TimestampMS:  &timestamp,
		GasPayment:   []transport.ObjectRef{{ID: gasID, Version: 1}},
		GasObjectIdx: 0,
		Inputs: []types.RawInput{
			{IsPure: true, Pure: []byte{1, 2, 3}},
			{Kind: ptb.Shared, ID: address.MustParse("0x3"), InitialSharedVersion: 5},
		},
		Effects: transport.Effects{Success: true, LamportVersion: 7},
	}

	tx := transactionFromCheckpoint(99, ct)

	if tx.Digest != "digestA" || tx.Checkpoint != 99 {
		t.Fatalf("digest/checkpoint not copied: %+v", tx)
	}
	if tx.Sender != ct.Sender || tx.GasBudget != ct.GasBudget || tx.GasPrice != ct.GasPrice {
		t.Fatalf("sender/gas fields not copied: %+v", tx)
	}
	if !tx.HasSharedInput {
		t.Fatalf("expected HasSharedInput=true, input list includes a Shared kind")
	}
	if tx.Canonical.LamportVersion != 7 {
		t.Fatalf("canonical effects not copied: %+v", tx.Canonical)
	}
}

func TestTransactionFromCheckpointNoSharedInput(t *testing.T) {
	ct := transport.CheckpointTransaction{
		Digest: "digestB",
		Inputs: []types.RawInput{{Kind: ptb.Owned}, {Kind: ptb.ImmRef}},
	}
	tx := transactionFromCheckpoint(1, ct)
	if tx.HasSharedInput {
		t.Fatalf("expected HasSharedInput=false with no Shared-kind input")
	}
}

func TestFindCheckpointTransaction(t *testing.T) {
	blob := &transport.CheckpointBlob{
		Sequence: 5,
		Transactions: []transport.CheckpointTransaction{
			{Digest: "a"},
			{Digest: "b"},
		},
	}

	if ct, ok := findCheckpointTransaction(blob, "b"); !ok || ct.Digest != "b" {
		t.Fatalf("expected to find digest b, got %+v ok=%v", ct, ok)
	}
	if _, ok := findCheckpointTransaction(blob, "missing"); ok {
		t.Fatalf("expected miss for unknown digest")
	}
}

// TestMirrorHarnessFactoryReachesStrictMatch builds a canonical effects
// record with one mutated object, seeds a mirror harness from it, and
// checks the harness's own Execute output survives compare.Compare as a
// strict match — guarding the one correctness property the mirror harness
// design depends on.
func TestMirrorHarnessFactoryReachesStrictMatch(t *testing.T) {
	objID := address.MustParse("0x42")
	gasID := address.MustParse("0x1")
	inputVersion := address.Version(3)

	out := transport.OutputObject{
		ID:                objID,
		Version:           10,
		TypeTag:           types.TypeTag{Kind: types.TypeStruct, Address: address.Framework0x2, Module: "coin", Name: "Coin"},
		Contents:          []byte{9, 9, 9},
		Owner:             types.Owner{Kind: types.OwnerAddress, Address: address.MustParse("0xfeed")},
		HasPublicTransfer: true,
	}
	digest := compare.ObjectDigest(out)

	tx := replayTransactionFixture(t, objID, inputVersion, out, digest)

	harness := mirrorHarnessFactory(tx)()
	result, err := harness.Execute(context.Background(), ptb.ProgrammableTransactionBlock{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	verdict := compare.Compare(tx.Canonical, tx.CanonicalOutputs, gasID, result)
	if !verdict.Matched() {
		t.Fatalf("expected StrictMatch, got %s: %s", verdict.Reason, verdict.Message)
	}
}

func TestMirrorHarnessFactoryReportsCanonicalFailure(t *testing.T) {
	tx := replay.Transaction{
		Canonical: transport.Effects{Success: false, LamportVersion: 1},
	}

	harness := mirrorHarnessFactory(tx)()
	result, err := harness.Execute(context.Background(), ptb.ProgrammableTransactionBlock{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Success {
		t.Fatalf("expected mirrored failure, got success")
	}
}

// replayTransactionFixture builds a replay.Transaction whose canonical
// effects describe a single mutated object, matching out's own bundled
// bytes/digest, so mirrorHarnessFactory's output should strict-match.
func replayTransactionFixture(t *testing.T, objID address.Address, inputVersion address.Version, out transport.OutputObject, digest [32]byte) replay.Transaction {
	t.Helper()
	return replay.Transaction{
		Digest: "digestC",
		Canonical: transport.Effects{
			Success:        true,
			LamportVersion: out.Version,
			ChangedObjects: []transport.ChangedObjectEntry{
				{ID: objID, InputVersion: &inputVersion, OutputDigest: digest, ChangeType: types.ChangeMutated},
			},
			GasUsed: types.GasUsed{ComputationCost: 1},
		},
		CanonicalOutputs: []transport.OutputObject{out},
	}
}
