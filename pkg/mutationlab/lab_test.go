package mutationlab

import (
	"context"
	"testing"

	"github.com/sui-sandbox/replay/pkg/address"
	"github.com/sui-sandbox/replay/pkg/compare"
	"github.com/sui-sandbox/replay/pkg/config"
	"github.com/sui-sandbox/replay/pkg/gaspatcher"
	"github.com/sui-sandbox/replay/pkg/ptb"
	"github.com/sui-sandbox/replay/pkg/replay"
	"github.com/sui-sandbox/replay/pkg/statefile"
	"github.com/sui-sandbox/replay/pkg/transport"
	"github.com/sui-sandbox/replay/pkg/types"
	"github.com/sui-sandbox/replay/pkg/vmharness"
)

// buildDropRequiredObjectFixture assembles a seed state and transaction
// whose sole non-gas object input is what DropRequiredObject removes: the
// baseline candidate (state-only, broken) must fail parsing that input,
// while the heal candidate (full live state) resolves it and proceeds to
// a scripted strict match. This exercises §8 scenario 5's shape
// (baseline fails, heal strict-matches) without depending on VM-internal
// positional-argument semantics, which lie beyond this repo's harness
// boundary (§1).
func buildDropRequiredObjectFixture(t *testing.T) (*statefile.State, replay.Transaction) {
	t.Helper()

	gasID := address.MustParse("0xFEED")
	targetID := address.MustParse("0xD00D")
	const gasInputVersion, gasOutputVersion = 10, 11
	used := types.GasUsed{ComputationCost: 10, StorageCost: 5, StorageRebate: 2}

	gasIn := make([]byte, address.Length+8)
	copy(gasIn, gasID.Bytes())
	const startingBalance = 100_000
	for i := 0; i < 8; i++ {
		gasIn[address.Length+i] = byte(startingBalance >> (8 * i))
	}
	patch, err := gaspatcher.Apply(gasID, gasInputVersion, gasIn, used)
	if err != nil {
		t.Fatalf("gaspatcher.Apply: %v", err)
	}
	gasOutput := transport.OutputObject{
		ID:                gasID,
		Version:           gasOutputVersion,
		TypeTag:           types.TypeTag{Kind: types.TypeStruct, Address: address.Framework0x2, Module: "coin", Name: "Coin"},
		Contents:          patch.OutputBytes,
		Owner:             types.Owner{Kind: types.OwnerAddress, Address: address.MustParse("0xA11CE")},
		HasPublicTransfer: true,
	}
	gasDigest := compare.ObjectDigest(gasOutput)
	gasInputVer := address.Version(gasInputVersion)

	state := statefile.New()
	state.Objects = append(state.Objects,
		types.VersionedObject{ID: targetID, Version: 1, BCSBytes: append(targetID.Bytes(), 0x01)},
		types.VersionedObject{ID: gasID, Version: gasInputVersion, BCSBytes: gasIn},
	)

	tx := replay.Transaction{
		Digest:       "mutationlab-drop-required-object",
		Sender:       address.MustParse("0x1"),
		GasPayment:   []transport.ObjectRef{{ID: gasID, Version: gasInputVersion}},
		GasObjectIdx: 0,
		RawInputs: []ptb.RawInput{
			{Kind: ptb.Owned, ID: targetID, Version: 1},
			{Kind: ptb.Owned, ID: gasID, Version: gasInputVersion},
		},
		Commands: []ptb.Command{
			{Kind: ptb.MergeCoins, Objects: []ptb.Argument{{IsInput: true, InputIndex: 1}, {IsInput: true, InputIndex: 0}}},
		},
		Canonical: transport.Effects{
			Success:        true,
			LamportVersion: gasOutputVersion,
			ChangedObjects: []transport.ChangedObjectEntry{
				{ID: gasID, InputVersion: &gasInputVer, OutputDigest: gasDigest, ChangeType: types.ChangeMutated},
			},
			GasUsed: used,
		},
		CanonicalOutputs: []transport.OutputObject{gasOutput},
	}
	return state, tx
}

func successHarnessFactory(lamport address.Version) func() vmharness.Harness {
	return func() vmharness.Harness {
		h := vmharness.NewMockHarness()
		h.Default = func(block ptb.ProgrammableTransactionBlock) (*types.ExecutionResult, error) {
			return &types.ExecutionResult{
				Success: true,
				Effects: &types.Effects{LamportTimestamp: lamport, ObjectVersions: make(map[address.Address]types.ObjectVersionInfo)},
			}, nil
		}
		return h
	}
}

func TestLabRunDropRequiredObjectFailsBaselineHealsLive(t *testing.T) {
	state, tx := buildDropRequiredObjectFixture(t)

	live := sourceFromState(state)
	lab := NewLab(live, successHarnessFactory(11), config.DefaultReplayOptions(), 1)

	record, err := lab.Run(context.Background(), state, tx, "DropRequiredObject", "forced_mutation")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !record.BaselineFailed() {
		t.Fatalf("expected baseline to fail, got %+v", record.Baseline)
	}
	if !record.HealSucceeded() {
		t.Fatalf("expected heal to strict-match, got %+v", record.Heal)
	}

	fired, violated := Evaluate(record)
	if !contains(fired, "fail_to_heal") {
		t.Fatalf("expected fail_to_heal oracle to fire, got %v", fired)
	}
	if !contains(fired, "forced_mutation_recovery") {
		t.Fatalf("expected forced_mutation_recovery oracle to fire, got %v", fired)
	}
	if len(violated) != 0 {
		t.Fatalf("expected no invariant violations, got %v", violated)
	}

	report := Minimize(record, StateDiff)
	if len(report.MinimalDelta) != 1 || report.MinimalDelta[0] != address.MustParse("0xD00D").String() {
		t.Fatalf("MinimalDelta = %v, want the dropped object id", report.MinimalDelta)
	}
}

func TestLabRunBatchReturnsOneRecordPerRequestedOperator(t *testing.T) {
	state, tx := buildDropRequiredObjectFixture(t)
	live := sourceFromState(state)
	lab := NewLab(live, successHarnessFactory(11), config.DefaultReplayOptions(), 4)

	records, err := lab.RunBatch(context.Background(), state, tx, []string{"DropRequiredObject"}, "forced_mutation")
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if len(records) != 1 || records[0] == nil {
		t.Fatalf("expected one record, got %+v", records)
	}
}
