package mutationlab

import "strconv"

// MinimizeMode selects how a run's delta is reduced to a single minimal
// cause (§4.10).
type MinimizeMode int

const (
	// StateDiff picks one canonical delta entry: the operator's declared
	// removed id if any, else the first removed/changed/added entry.
	StateDiff MinimizeMode = iota
	// OperatorSpecific consults the recorded operator for a tailored
	// delta, e.g. InputRewire reports exactly the two swapped indices.
	OperatorSpecific
)

// MinimizationReport is the egress artifact for one minimization pass
// (§4.10).
type MinimizationReport struct {
	MinimizedFrom int
	MinimizedTo   int
	MinimalDelta  []string
	Verified      bool
}

// Minimize reduces r.Delta to a minimal description under mode.
func Minimize(r *RunRecord, mode MinimizeMode) MinimizationReport {
	from := len(r.Delta.RemovedIDs) + len(r.Delta.AddedIDs) + len(r.Delta.ChangedIDs) + len(r.Delta.ChangedTxInputIndices)

	var minimal []string
	switch mode {
	case OperatorSpecific:
		minimal = operatorSpecificDelta(r)
	default:
		minimal = stateDiffDelta(r.Delta)
	}

	return MinimizationReport{
		MinimizedFrom: from,
		MinimizedTo:   len(minimal),
		MinimalDelta:  minimal,
		Verified:      len(minimal) <= 1,
	}
}

// stateDiffDelta prefers the operator's declared removed id, else the
// first removed/changed/added entry it finds.
func stateDiffDelta(d Delta) []string {
	if len(d.RemovedIDs) > 0 {
		return []string{d.RemovedIDs[0].String()}
	}
	if len(d.ChangedIDs) > 0 {
		return []string{d.ChangedIDs[0].String()}
	}
	if len(d.AddedIDs) > 0 {
		return []string{d.AddedIDs[0].String()}
	}
	return nil
}

// operatorSpecificDelta special-cases InputRewire, whose delta is exactly
// the two swapped input indices, formatted as "tx_input[N]" in swap order.
// Other operators fall back to stateDiffDelta.
func operatorSpecificDelta(r *RunRecord) []string {
	if r.Operator == "InputRewire" && len(r.Delta.ChangedTxInputIndices) == 2 {
		return []string{
			formatTxInput(r.Delta.ChangedTxInputIndices[0]),
			formatTxInput(r.Delta.ChangedTxInputIndices[1]),
		}
	}
	return stateDiffDelta(r.Delta)
}

func formatTxInput(idx int) string {
	return "tx_input[" + strconv.Itoa(idx) + "]"
}
