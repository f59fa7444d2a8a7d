package mutationlab

import (
	"testing"

	"github.com/sui-sandbox/replay/pkg/address"
	"github.com/sui-sandbox/replay/pkg/types"
)

func outcome(parity bool, reason string, attempts ...types.AttemptRecord) *types.OutcomeRecord {
	return &types.OutcomeRecord{FinalParity: parity, FinalReason: reason, Attempts: attempts}
}

func TestFailToHealFiresOnBaselineFailHealSucceed(t *testing.T) {
	r := &RunRecord{
		Baseline: outcome(false, "MissingObject"),
		Heal:     outcome(true, "StrictMatch", types.AttemptRecord{CommandsExecuted: 2}),
	}
	fired, violated := Evaluate(r)
	if !contains(fired, "fail_to_heal") {
		t.Fatalf("expected fail_to_heal to fire, got %v", fired)
	}
	if !contains(fired, "state_rehydration_success") {
		t.Fatalf("expected state_rehydration_success alias to fire, got %v", fired)
	}
	if len(violated) != 0 {
		t.Fatalf("expected no violations, got %v", violated)
	}
}

func TestForcedMutationRecoveryRequiresForcedSource(t *testing.T) {
	r := &RunRecord{
		Source:   "forced_mutation",
		Baseline: outcome(false, "MissingObject"),
		Heal:     outcome(true, "StrictMatch", types.AttemptRecord{CommandsExecuted: 1}),
	}
	fired, _ := Evaluate(r)
	if !contains(fired, "forced_mutation_recovery") {
		t.Fatalf("expected forced_mutation_recovery to fire, got %v", fired)
	}

	r.Source = "live_capture"
	fired, _ = Evaluate(r)
	if contains(fired, "forced_mutation_recovery") {
		t.Fatalf("forced_mutation_recovery must not fire for non-forced source")
	}
}

func TestTimeoutResolutionFiresWhenBaselineTimesOutButHealDoesNot(t *testing.T) {
	r := &RunRecord{
		Baseline: outcome(false, "Timeout"),
		Heal:     outcome(true, "StrictMatch", types.AttemptRecord{CommandsExecuted: 1}),
	}
	fired, _ := Evaluate(r)
	if !contains(fired, "timeout_resolution") {
		t.Fatalf("expected timeout_resolution to fire, got %v", fired)
	}
}

func TestCommandsExecutedGtZeroViolationWhenHealSucceedsWithZeroCommands(t *testing.T) {
	r := &RunRecord{
		Baseline: outcome(false, "MissingObject"),
		Heal:     outcome(true, "StrictMatch", types.AttemptRecord{CommandsExecuted: 0}),
	}
	_, violated := Evaluate(r)
	if !contains(violated, "commands_executed_gt_zero") {
		t.Fatalf("expected commands_executed_gt_zero violation, got %v", violated)
	}
}

func TestBaselineFailedBeforeHealViolationWhenBothSucceed(t *testing.T) {
	r := &RunRecord{
		Baseline: outcome(true, "StrictMatch"),
		Heal:     outcome(true, "StrictMatch", types.AttemptRecord{CommandsExecuted: 1}),
	}
	_, violated := Evaluate(r)
	if !contains(violated, "baseline_failed_before_heal") {
		t.Fatalf("expected baseline_failed_before_heal violation, got %v", violated)
	}
}

func TestSourceDivergenceComparesDifferentialAgainstHeal(t *testing.T) {
	r := &RunRecord{
		Heal:         outcome(true, "StrictMatch", types.AttemptRecord{CommandsExecuted: 1}),
		Differential: outcome(false, "ObjectMismatch"),
	}
	fired, _ := Evaluate(r)
	if !contains(fired, "source_divergence") {
		t.Fatalf("expected source_divergence to fire on disagreement, got %v", fired)
	}

	r.Differential = outcome(true, "StrictMatch")
	fired, _ = Evaluate(r)
	if contains(fired, "source_divergence") {
		t.Fatalf("source_divergence must not fire when outcomes agree")
	}
}

func TestScoringStrategiesRankFailToHealHighest(t *testing.T) {
	failToHealRecord := &RunRecord{
		Source:   "forced_mutation",
		Baseline: outcome(false, "MissingObject"),
		Heal:     outcome(true, "StrictMatch", types.AttemptRecord{CommandsExecuted: 4}),
	}
	bothSucceedRecord := &RunRecord{
		Source:   "forced_mutation",
		Baseline: outcome(true, "StrictMatch"),
		Heal:     outcome(true, "StrictMatch", types.AttemptRecord{CommandsExecuted: 4}),
	}

	for name := range ScoringStrategies() {
		healed := ScoreAll(failToHealRecord)[name]
		notHealed := ScoreAll(bothSucceedRecord)[name]
		if healed.Value <= notHealed.Value {
			t.Fatalf("%s: fail-to-heal score %d should exceed both-succeed score %d", name, healed.Value, notHealed.Value)
		}
	}
}

func TestMinimizeInputRewireOperatorSpecific(t *testing.T) {
	r := &RunRecord{
		Operator: "InputRewire",
		Delta:    Delta{ChangedTxInputIndices: []int{1, 0}},
	}
	report := Minimize(r, OperatorSpecific)
	want := []string{"tx_input[1]", "tx_input[0]"}
	if len(report.MinimalDelta) != len(want) {
		t.Fatalf("MinimalDelta = %v, want %v", report.MinimalDelta, want)
	}
	for i := range want {
		if report.MinimalDelta[i] != want[i] {
			t.Fatalf("MinimalDelta = %v, want %v", report.MinimalDelta, want)
		}
	}
	if report.MinimizedTo != 2 {
		t.Fatalf("MinimizedTo = %d, want 2", report.MinimizedTo)
	}
}

func TestMinimizeStateDiffPrefersRemovedID(t *testing.T) {
	id := address.MustParse("0x99")
	r := &RunRecord{
		Operator: "DropRequiredObject",
		Delta:    Delta{RemovedIDs: []address.Address{id}},
	}
	report := Minimize(r, StateDiff)
	if len(report.MinimalDelta) != 1 || report.MinimalDelta[0] != id.String() {
		t.Fatalf("MinimalDelta = %v, want [%s]", report.MinimalDelta, id)
	}
	if !report.Verified {
		t.Fatalf("expected Verified when len(minimal) <= 1")
	}
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
