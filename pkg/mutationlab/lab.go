// Package mutationlab drives deterministic state-perturbation experiments
// against the replay engine: break a seed object's state in one typed way,
// confirm the transaction fails against the broken state alone, then
// confirm it recovers once the engine is allowed to re-hydrate from a live
// source (SPEC_FULL §4.9/§4.10).
package mutationlab

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/sui-sandbox/replay/pkg/config"
	"github.com/sui-sandbox/replay/pkg/log"
	"github.com/sui-sandbox/replay/pkg/objectcache"
	"github.com/sui-sandbox/replay/pkg/packagecache"
	"github.com/sui-sandbox/replay/pkg/ptb"
	"github.com/sui-sandbox/replay/pkg/replay"
	"github.com/sui-sandbox/replay/pkg/statefile"
	"github.com/sui-sandbox/replay/pkg/transport"
	"github.com/sui-sandbox/replay/pkg/types"
	"github.com/sui-sandbox/replay/pkg/vmharness"
)

// Source is the triple of capability interfaces a candidate replay wires
// into a fresh engine. live.Objects/Packages/DynFields give the heal
// replay (§4.9 step 4) "full re-hydration permissions" against the real
// transport, independent of whatever the operator broke in the seed
// state.
type Source struct {
	Objects   transport.ObjectSource
	Packages  transport.PackageSource
	DynFields transport.DynamicFieldSource
}

// RunRecord is the egress artifact for one (seed transaction, operator)
// pair: the two candidate outcomes plus the bookkeeping oracles/scoring
// consult (§4.9 step 5, §6).
type RunRecord struct {
	// RunID uniquely identifies this run for correlation across log lines
	// and stored findings; it carries no semantic meaning of its own.
	RunID    string
	Digest   string
	Operator string
	Source   string // "forced_mutation" unless the caller overrides it
	Delta    Delta
	Baseline *types.OutcomeRecord
	Heal     *types.OutcomeRecord

	// Differential is the outcome of an optional second heal candidate run
	// against an alternate transport, consulted by the source_divergence
	// oracle. Nil when no differential source was configured.
	Differential *types.OutcomeRecord
}

// BaselineFailed reports whether the baseline candidate did not reach
// strict parity, as the mutation lab expects (§4.9 step 3).
func (r *RunRecord) BaselineFailed() bool {
	return r.Baseline != nil && !r.Baseline.FinalParity
}

// BaselineTimedOut reports whether the baseline candidate's final reason
// was a per-attempt timeout.
func (r *RunRecord) BaselineTimedOut() bool {
	return r.Baseline != nil && replay.ReasonCode(r.Baseline.FinalReason) == replay.Timeout
}

// HealSucceeded reports whether the heal candidate reached strict parity.
func (r *RunRecord) HealSucceeded() bool {
	return r.Heal != nil && r.Heal.FinalParity
}

// HealTimedOut reports whether the heal candidate's final reason was a
// per-attempt timeout.
func (r *RunRecord) HealTimedOut() bool {
	return r.Heal != nil && replay.ReasonCode(r.Heal.FinalReason) == replay.Timeout
}

// HealCommandsExecuted returns the command count the heal candidate's
// final (matching) attempt reported, or 0 if it never reached parity.
func (r *RunRecord) HealCommandsExecuted() int {
	if r.Heal == nil || len(r.Heal.Attempts) == 0 {
		return 0
	}
	return r.Heal.Attempts[len(r.Heal.Attempts)-1].CommandsExecuted
}

// Lab orchestrates export/apply/baseline/heal candidate runs and their
// scoring. jobs bounds concurrent candidate executions (§5, default 1).
type Lab struct {
	live           Source
	differential   *Source
	harnessFactory func() vmharness.Harness
	opts           config.ReplayOptions
	jobs           int64
	logger         zerolog.Logger
}

// NewLab constructs a Lab. live is the full, unbroken set of sources used
// for heal replays; jobs <= 0 defaults to 1.
func NewLab(live Source, harnessFactory func() vmharness.Harness, opts config.ReplayOptions, jobs int) *Lab {
	if jobs <= 0 {
		jobs = 1
	}
	return &Lab{
		live:           live,
		harnessFactory: harnessFactory,
		opts:           opts,
		jobs:           int64(jobs),
		logger:         log.WithComponent("mutationlab"),
	}
}

// WithDifferential attaches a second, independent source the lab also
// replays the broken transaction against after heal, feeding the
// source_divergence oracle (§4.10). Pass nil to disable it.
func (l *Lab) WithDifferential(src *Source) *Lab {
	l.differential = src
	return l
}

// cloneState deep-copies seed via a JSON round-trip, matching step 1's
// framing of the seed as "the reconstructed state JSON".
func cloneState(seed *statefile.State) (*statefile.State, error) {
	data, err := json.Marshal(seed)
	if err != nil {
		return nil, fmt.Errorf("mutationlab: marshal seed state: %w", err)
	}
	var clone statefile.State
	if err := json.Unmarshal(data, &clone); err != nil {
		return nil, fmt.Errorf("mutationlab: unmarshal cloned state: %w", err)
	}
	return &clone, nil
}

func cloneInputs(inputs []ptb.RawInput) []ptb.RawInput {
	out := make([]ptb.RawInput, len(inputs))
	for i, in := range inputs {
		out[i] = in
		if in.Pure != nil {
			out[i].Pure = append([]byte(nil), in.Pure...)
		}
	}
	return out
}

// Run applies operatorName to a cloned copy of seedState/tx.RawInputs,
// then drives the baseline and heal candidate replays, returning the
// combined run record. source labels the record's provenance for the
// forced_mutation_recovery oracle; pass "forced_mutation" for a lab-driven run.
func (l *Lab) Run(ctx context.Context, seedState *statefile.State, tx replay.Transaction, operatorName, source string) (*RunRecord, error) {
	op, ok := Operators()[operatorName]
	if !ok {
		return nil, fmt.Errorf("mutationlab: unknown operator %q", operatorName)
	}

	brokenState, err := cloneState(seedState)
	if err != nil {
		return nil, err
	}
	brokenInputs := cloneInputs(tx.RawInputs)

	delta, err := op.Apply(brokenState, brokenInputs)
	if err != nil {
		return nil, fmt.Errorf("mutationlab: apply %s: %w", operatorName, err)
	}

	brokenTx := tx
	brokenTx.RawInputs = brokenInputs

	record := &RunRecord{
		RunID:    uuid.NewString(),
		Digest:   tx.Digest,
		Operator: operatorName,
		Source:   source,
		Delta:    delta,
	}

	baseline, err := l.runCandidate(ctx, brokenTx, sourceFromState(brokenState))
	if err != nil {
		return nil, fmt.Errorf("mutationlab: baseline candidate: %w", err)
	}
	record.Baseline = baseline

	heal, err := l.runCandidate(ctx, brokenTx, l.live)
	if err != nil {
		return nil, fmt.Errorf("mutationlab: heal candidate: %w", err)
	}
	record.Heal = heal

	if l.differential != nil {
		differential, err := l.runCandidate(ctx, brokenTx, *l.differential)
		if err != nil {
			return nil, fmt.Errorf("mutationlab: differential candidate: %w", err)
		}
		record.Differential = differential
	}

	l.logger.Info().
		Str("digest", tx.Digest).
		Str("operator", operatorName).
		Bool("baseline_parity", baseline != nil && baseline.FinalParity).
		Bool("heal_parity", heal != nil && heal.FinalParity).
		Msg("mutation lab run complete")

	return record, nil
}

// sourceFromState wires a Source backed exclusively by the given state
// snapshot: the baseline replay's "no prefetch/fallback" exclusive world.
func sourceFromState(state *statefile.State) Source {
	src := newStateSource(state)
	return Source{Objects: src, Packages: src, DynFields: src}
}

func (l *Lab) runCandidate(ctx context.Context, tx replay.Transaction, src Source) (*types.OutcomeRecord, error) {
	objectCache, err := objectcache.New(objectcache.Config{})
	if err != nil {
		return nil, fmt.Errorf("mutationlab: build object cache: %w", err)
	}
	defer objectCache.Close()

	packages := packagecache.New()
	loader := packagecache.NewLoader(packages, src.Packages)

	engine := replay.NewEngine(
		src.Objects,
		src.DynFields,
		objectCache,
		packages,
		loader,
		l.harnessFactory,
		replay.NewDenyList(),
		l.opts,
	)
	return engine.Replay(ctx, tx)
}

// RunBatch runs operatorNames against the same seed concurrently, bounded
// by l.jobs (§5's "candidate execution processes up to jobs targets
// concurrently").
func (l *Lab) RunBatch(ctx context.Context, seedState *statefile.State, tx replay.Transaction, operatorNames []string, source string) ([]*RunRecord, error) {
	sem := semaphore.NewWeighted(l.jobs)
	out := make([]*RunRecord, len(operatorNames))
	errs := make([]error, len(operatorNames))

	done := make(chan int, len(operatorNames))
	for i, name := range operatorNames {
		i, name := i, name
		go func() {
			if err := sem.Acquire(ctx, 1); err != nil {
				errs[i] = err
				done <- i
				return
			}
			defer sem.Release(1)
			record, err := l.Run(ctx, seedState, tx, name, source)
			out[i] = record
			errs[i] = err
			done <- i
		}()
	}
	for range operatorNames {
		<-done
	}
	for _, err := range errs {
		if err != nil {
			return out, err
		}
	}
	return out, nil
}
