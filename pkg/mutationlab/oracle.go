package mutationlab

// Oracle is a named boolean predicate over a RunRecord (§4.10).
type Oracle func(*RunRecord) bool

// Oracles is the fixed set of built-in oracles, keyed by name.
func Oracles() map[string]Oracle {
	return map[string]Oracle{
		"fail_to_heal":              failToHeal,
		"forced_mutation_recovery":  forcedMutationRecovery,
		"timeout_resolution":        timeoutResolution,
		"state_rehydration_success": failToHeal, // alias per §4.10
		"source_divergence":         sourceDivergence,
	}
}

func failToHeal(r *RunRecord) bool {
	return r.BaselineFailed() && r.HealSucceeded()
}

func forcedMutationRecovery(r *RunRecord) bool {
	return r.Source == "forced_mutation" && r.HealSucceeded()
}

func timeoutResolution(r *RunRecord) bool {
	return r.BaselineTimedOut() && !r.HealTimedOut()
}

// sourceDivergence fires when a second, differential candidate was run
// against an alternate transport and its success disagreed with the
// primary heal candidate's. Most runs have no differential candidate, in
// which case it never fires.
func sourceDivergence(r *RunRecord) bool {
	if r.Differential == nil {
		return false
	}
	return r.Differential.FinalParity != r.HealSucceeded()
}

// Invariant is a named predicate that should normally be false; a true
// result flags a violation (§4.10).
type Invariant func(*RunRecord) bool

// Invariants is the fixed set of built-in invariants, keyed by name.
func Invariants() map[string]Invariant {
	return map[string]Invariant{
		"commands_executed_gt_zero":   commandsExecutedGtZero,
		"heal_not_timed_out":          healNotTimedOut,
		"baseline_failed_before_heal": baselineFailedBeforeHeal,
	}
}

func commandsExecutedGtZero(r *RunRecord) bool {
	return r.HealSucceeded() && r.HealCommandsExecuted() == 0
}

func healNotTimedOut(r *RunRecord) bool {
	return r.HealSucceeded() && r.HealTimedOut()
}

func baselineFailedBeforeHeal(r *RunRecord) bool {
	return r.HealSucceeded() && !r.BaselineFailed()
}

// Evaluate runs every built-in oracle and invariant over r, returning the
// names that fired/were violated.
func Evaluate(r *RunRecord) (firedOracles []string, violatedInvariants []string) {
	for name, oracle := range Oracles() {
		if oracle(r) {
			firedOracles = append(firedOracles, name)
		}
	}
	for name, inv := range Invariants() {
		if inv(r) {
			violatedInvariants = append(violatedInvariants, name)
		}
	}
	return firedOracles, violatedInvariants
}
