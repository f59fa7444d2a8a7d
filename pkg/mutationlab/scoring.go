package mutationlab

// Score is the result of running one scoring strategy over a RunRecord:
// a base score plus per-oracle/invariant adjustments (§4.10).
type Score struct {
	Strategy string
	Value    int
	Oracles  []string
	Violated []string
}

// ScoringStrategy computes a Score for r, given the oracle/invariant
// names that fired/were violated.
type ScoringStrategy func(r *RunRecord, oracles, violated []string) int

// ScoringStrategies is the fixed set of built-in strategies, keyed by
// name.
func ScoringStrategies() map[string]ScoringStrategy {
	return map[string]ScoringStrategy{
		"status-first":      statusFirst,
		"recovery-priority": recoveryPriority,
		"balanced":          balanced,
	}
}

// statusFirst bases its score on fail->heal (100), baseline-failed-only
// (60), or neither (20), then applies +15 per fired oracle and -25 per
// violated invariant.
func statusFirst(r *RunRecord, oracles, violated []string) int {
	base := 20
	switch {
	case r.BaselineFailed() && r.HealSucceeded():
		base = 100
	case r.BaselineFailed():
		base = 60
	}
	base += 15 * len(oracles)
	base -= 25 * len(violated)
	return base
}

// recoveryPriority extends status-first: +30 when the run was a forced
// mutation, plus up to 20 points for heal commands executed.
func recoveryPriority(r *RunRecord, oracles, violated []string) int {
	score := statusFirst(r, oracles, violated)
	if r.Source == "forced_mutation" {
		score += 30
	}
	score += min(r.HealCommandsExecuted(), 20)
	return score
}

// balanced extends status-first directly (not recovery-priority): a
// smaller, halved bonus for heal commands executed, capped lower.
func balanced(r *RunRecord, oracles, violated []string) int {
	score := statusFirst(r, oracles, violated)
	score += min(r.HealCommandsExecuted()/2, 10)
	return score
}

// ScoreAll runs every built-in strategy over r, evaluating oracles and
// invariants once and sharing the result across strategies.
func ScoreAll(r *RunRecord) map[string]Score {
	oracles, violated := Evaluate(r)
	out := make(map[string]Score, len(ScoringStrategies()))
	for name, strategy := range ScoringStrategies() {
		out[name] = Score{
			Strategy: name,
			Value:    strategy(r, oracles, violated),
			Oracles:  oracles,
			Violated: violated,
		}
	}
	return out
}
