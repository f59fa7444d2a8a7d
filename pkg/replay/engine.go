// Package replay orchestrates the escalating attempt ladder that turns a
// transaction digest into a strict-parity outcome record: parse the PTB,
// load its packages, prime the VM harness, execute, patch gas, and compare
// against canonical effects (SPEC_FULL §4.6).
package replay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sui-sandbox/replay/pkg/address"
	"github.com/sui-sandbox/replay/pkg/compare"
	"github.com/sui-sandbox/replay/pkg/config"
	"github.com/sui-sandbox/replay/pkg/gaspatcher"
	"github.com/sui-sandbox/replay/pkg/log"
	"github.com/sui-sandbox/replay/pkg/metrics"
	"github.com/sui-sandbox/replay/pkg/objectcache"
	"github.com/sui-sandbox/replay/pkg/packagecache"
	"github.com/sui-sandbox/replay/pkg/ptb"
	"github.com/sui-sandbox/replay/pkg/transport"
	"github.com/sui-sandbox/replay/pkg/types"
	"github.com/sui-sandbox/replay/pkg/vmharness"
)

// dynamicFieldPrefetchLimit bounds how many of a parent's dynamic fields
// attempt 2 (predictive prefetch) pulls per object input (§4.6 step 2).
const dynamicFieldPrefetchLimit = 200

// Transaction is the fully decoded per-digest input the engine replays:
// either sourced from a checkpoint blob or assembled from RPC records, or
// supplied directly in state-file mode (§4.6's "State-file mode").
type Transaction struct {
	Digest       string
	Checkpoint   uint64
	Sender       address.Address
	GasBudget    uint64
	GasPrice     uint64
	TimestampMS  *uint64
	GasPayment   []transport.ObjectRef
	GasObjectIdx int
	RawInputs    []ptb.RawInput
	Commands     []ptb.Command

	// HasSharedInput reports whether any input is a Shared object,
	// which changes the lamport clock seed (§4.6 step 5).
	HasSharedInput bool

	// Canonical is the on-chain effects this transaction must match.
	Canonical        transport.Effects
	CanonicalOutputs []transport.OutputObject
}

// Engine runs the four-attempt escalation ladder for individual
// transactions.
type Engine struct {
	objects   transport.ObjectSource
	dynFields transport.DynamicFieldSource

	objectCache *objectcache.Cache
	packages    *packagecache.Cache
	loader      *packagecache.Loader
	parser      *ptb.Parser

	harnessFactory func() vmharness.Harness
	denyList       *DenyList

	opts   config.ReplayOptions
	logger zerolog.Logger
}

// NewEngine constructs an Engine. harnessFactory must return a fresh,
// unshared Harness per call, since the VM harness is never reentrant
// (§5): the engine calls it once per Replay invocation so concurrent
// replays never contend for the same VM.
func NewEngine(
	objects transport.ObjectSource,
	dynFields transport.DynamicFieldSource,
	objectCache *objectcache.Cache,
	packages *packagecache.Cache,
	loader *packagecache.Loader,
	harnessFactory func() vmharness.Harness,
	denyList *DenyList,
	opts config.ReplayOptions,
) *Engine {
	return &Engine{
		objects:        objects,
		dynFields:      dynFields,
		objectCache:    objectCache,
		packages:       packages,
		loader:         loader,
		parser:         ptb.New(objectCache, objects),
		harnessFactory: harnessFactory,
		denyList:       denyList,
		opts:           opts,
		logger:         log.WithComponent("replay"),
	}
}

// Replay runs tx through the escalating attempt ladder to a final outcome.
func (e *Engine) Replay(ctx context.Context, tx Transaction) (*types.OutcomeRecord, error) {
	logger := e.logger.With().Str("digest", tx.Digest).Logger()
	outcome := &types.OutcomeRecord{
		Digest:     tx.Digest,
		Checkpoint: tx.Checkpoint,
	}

	harness := e.harnessFactory()

	for _, kind := range attemptLadder {
		attemptCtx, cancel := context.WithTimeout(ctx, e.opts.PerAttemptTimeout)
		record, reason := e.runAttempt(attemptCtx, kind, tx, harness)
		cancel()

		outcome.Attempts = append(outcome.Attempts, record)
		metrics.ReplayAttemptsTotal.WithLabelValues(string(kind), string(reason)).Inc()

		if reason == StrictMatch {
			outcome.FinalParity = true
			outcome.FinalReason = string(StrictMatch)
			metrics.StrictMatchesTotal.Inc()
			logger.Info().Str("attempt", string(kind)).Msg("strict match")
			return outcome, nil
		}

		outcome.FinalReason = string(reason)
		if !IsRetryable(reason) {
			logger.Warn().Str("attempt", string(kind)).Str("reason", string(reason)).Msg("non-retryable reason, halting ladder")
			break
		}
		logger.Debug().Str("attempt", string(kind)).Str("reason", string(reason)).Msg("retryable reason, escalating")
	}

	outcome.FinalParity = false
	return outcome, nil
}

// runAttempt executes the twelve-step per-attempt procedure for one rung
// of the ladder (§4.6).
func (e *Engine) runAttempt(ctx context.Context, kind AttemptKind, tx Transaction, harness vmharness.Harness) (types.AttemptRecord, ReasonCode) {
	start := time.Now()
	record := types.AttemptRecord{Kind: string(kind)}
	finish := func(reason ReasonCode, notes ...string) (types.AttemptRecord, ReasonCode) {
		record.DurationMS = time.Since(start).Milliseconds()
		record.Success = reason == StrictMatch
		record.Parity = reason == StrictMatch
		record.Reason = string(reason)
		record.Notes = append(record.Notes, notes...)
		return record, reason
	}

	// Step 1: parse.
	inputs, inputPackageIDs, err := e.parser.ParseInputs(ctx, tx.RawInputs)
	if err != nil {
		if errors.Is(err, ptb.ErrMissingObject) {
			return finish(MissingObject, err.Error())
		}
		return finish(ParseError, err.Error())
	}
	block := ptb.ProgrammableTransactionBlock{
		Sender:      tx.Sender,
		GasBudget:   tx.GasBudget,
		GasPrice:    tx.GasPrice,
		TimestampMS: tx.TimestampMS,
		Inputs:      inputs,
		Commands:    tx.Commands,
	}
	packageIDs := append(inputPackageIDs, ptb.CollectCommandPackageIDs(tx.Commands)...)

	// Step 2: ensure packages loaded.
	if err := e.loader.EnsureLoaded(ctx, packageIDs); err != nil {
		return finish(MissingPackage, err.Error())
	}

	// Step 3: register aliases and linkage.
	harness.Reset() // step 4 combined here: reset precedes re-registration every attempt.
	for _, id := range packageIDs {
		if pkg, ok := e.packages.Get(id); ok {
			harness.InstallLinkage(pkg)
		}
		if storageID, ok := e.packages.ResolveRuntime(id); ok {
			harness.InstallAlias(id, storageID)
		}
	}

	// Step 4/5: sender, timestamp, lamport clock.
	harness.SetSender(tx.Sender)
	harness.SetTimestampMS(tx.TimestampMS)
	shift := address.Version(1)
	if tx.HasSharedInput {
		shift = 2
	}
	if tx.Canonical.LamportVersion < shift {
		return finish(ParseError, "canonical lamport version smaller than required clock shift")
	}
	harness.SetLamportClock(tx.Canonical.LamportVersion - shift)

	// Step 6: preload object inputs.
	for _, in := range inputs {
		if !in.IsPure {
			harness.PreloadObject(in.Object)
		}
	}

	// Step 7: install child-fetcher (attempt 0 gets none).
	if kind != AttemptArchivalOnly {
		harness.InstallChildFetcher(e.newChildFetcher())
	}

	// Attempt 2's predictive + graph prefetch: prime the object cache with
	// dynamic fields hanging off every struct-typed object input before
	// execution runs, so the fetcher above serves from cache.
	if kind == AttemptPredictivePrefetch || kind == AttemptAggressiveResolution {
		e.prefetchDynamicFields(ctx, inputs)
	}

	// Step 8/9: execute, retrying once after loading a reported missing
	// package.
	result, execErr := harness.Execute(ctx, block)
	if execErr != nil {
		var conflict *vmharness.ParentChildConflictError
		switch {
		case errors.Is(execErr, vmharness.ErrMissingPackage):
			if loadErr := e.loader.EnsureLoaded(ctx, packageIDs); loadErr != nil {
				return finish(MissingPackage, loadErr.Error())
			}
			result, execErr = harness.Execute(ctx, block)
			if execErr != nil {
				return e.classifyExecError(execErr, finish)
			}
		case errors.As(execErr, &conflict):
			// Step 10: deny-list eviction, escalate to next attempt.
			e.denyList.Deny(conflict.Parent, conflict.Child)
			e.objectCache.RemoveAll(conflict.Child)
			return finish(DynamicFieldMiss, conflict.Error())
		default:
			return e.classifyExecError(execErr, finish)
		}
	}

	if result == nil || !result.Success {
		reason := ExecutionFailure
		notes := []string{}
		if result != nil && result.Error != nil {
			notes = append(notes, result.Error.Error())
		}
		if ctx.Err() != nil {
			reason = Timeout
		}
		return finish(reason, notes...)
	}

	// Step 11: gas patcher.
	if err := e.applyGasPatch(&tx, result, inputs); err != nil {
		return finish(NotModeled, err.Error())
	}

	// Step 12: strict comparator.
	gasID := address.Zero
	if tx.GasObjectIdx >= 0 && tx.GasObjectIdx < len(tx.GasPayment) {
		gasID = tx.GasPayment[tx.GasObjectIdx].ID
	}
	verdict := compare.Compare(tx.Canonical, tx.CanonicalOutputs, gasID, result)
	if ReasonCode(verdict.Reason) == StrictMatch {
		record.CommandsExecuted = len(tx.Commands)
	}
	return finish(ReasonCode(verdict.Reason), verdict.Message)
}

// classifyExecError maps an unrecognized Execute error into ExecutionFailure
// or Timeout, per §7's execution-error taxonomy.
func (e *Engine) classifyExecError(err error, finish func(ReasonCode, ...string) (types.AttemptRecord, ReasonCode)) (types.AttemptRecord, ReasonCode) {
	if errors.Is(err, context.DeadlineExceeded) {
		return finish(Timeout, err.Error())
	}
	return finish(ExecutionFailure, err.Error())
}

// applyGasPatch locates the gas object's pre-execution bytes among the
// parsed inputs and mutates result's effects in place (§4.7).
func (e *Engine) applyGasPatch(tx *Transaction, result *types.ExecutionResult, inputs []ptb.InputValue) error {
	if tx.GasObjectIdx < 0 || tx.GasObjectIdx >= len(tx.GasPayment) {
		return fmt.Errorf("gas patcher: gas_object_index %d out of range of %d gas payment entries", tx.GasObjectIdx, len(tx.GasPayment))
	}
	gasRef := tx.GasPayment[tx.GasObjectIdx]

	var gasBytes []byte
	for _, in := range inputs {
		if !in.IsPure && in.Object.ID == gasRef.ID {
			gasBytes = in.Object.Bytes
			break
		}
	}
	if gasBytes == nil {
		obj, ok := e.objectCache.Get(gasRef.ID, gasRef.Version)
		if !ok {
			return fmt.Errorf("gas patcher: gas object %s not found among parsed inputs or cache", gasRef.ID)
		}
		gasBytes = obj.BCSBytes
	}

	patch, err := gaspatcher.Apply(gasRef.ID, gasRef.Version, gasBytes, tx.Canonical.GasUsed)
	if err != nil {
		return err
	}
	if patch.Saturated {
		e.logger.Warn().Str("digest", tx.Digest).Str("gas_object", gasRef.ID.String()).Msg("gas patcher saturated at zero balance")
	}

	if result.Effects == nil {
		result.Effects = &types.Effects{ObjectVersions: make(map[address.Address]types.ObjectVersionInfo)}
	}
	if result.Effects.ObjectVersions == nil {
		result.Effects.ObjectVersions = make(map[address.Address]types.ObjectVersionInfo)
	}
	result.Effects.ObjectVersions[gasRef.ID] = types.ObjectVersionInfo{
		InputVersion:  &gasRef.Version,
		OutputVersion: tx.Canonical.LamportVersion,
		ChangeType:    types.ChangeMutated,
		OutputBytes:   patch.OutputBytes,
	}
	result.Effects.LamportTimestamp = tx.Canonical.LamportVersion
	return nil
}

// prefetchDynamicFields enumerates each struct-typed object input's
// dynamic fields and warms the object cache with their current bytes, the
// "graph prefetch" behavior of attempt 2 (§4.6).
func (e *Engine) prefetchDynamicFields(ctx context.Context, inputs []ptb.InputValue) {
	if e.dynFields == nil {
		return
	}
	for _, in := range inputs {
		if in.IsPure || in.Object.TypeTag.Kind != types.TypeStruct {
			continue
		}
		fields, err := e.dynFields.FetchDynamicFields(ctx, in.Object.ID, dynamicFieldPrefetchLimit)
		if err != nil {
			e.logger.Debug().Err(err).Str("parent", in.Object.ID.String()).Msg("prefetch dynamic fields failed")
			continue
		}
		for _, f := range fields {
			if e.denyList.IsDenied(f.ParentID, f.ChildID) {
				continue
			}
			if _, ok := e.objectCache.Get(f.ChildID, f.Version); ok {
				continue
			}
			child, err := e.objects.GetObjectAtVersion(ctx, f.ChildID, f.Version)
			if err != nil || child == nil {
				continue
			}
			_ = e.objectCache.Insert(child)
		}
	}
}

// childFetcher implements vmharness.ChildFetcher by consulting the object
// cache, then the object/dynamic-field transport sources, honoring the
// deny-list (§4.6 step 7, §5).
type childFetcher struct {
	engine *Engine
}

func (e *Engine) newChildFetcher() vmharness.ChildFetcher {
	return &childFetcher{engine: e}
}

// FetchByVersion resolves a child whose exact (id, version) the VM already
// knows, via cache then RPC archive. There is no parent/key relationship
// to protect here, so the deny-list does not apply.
func (f *childFetcher) FetchByVersion(ctx context.Context, id address.Address, version address.Version) (*types.VersionedObject, bool) {
	if obj, ok := f.engine.objectCache.Get(id, version); ok {
		return obj, true
	}
	obj, err := f.engine.objects.GetObjectAtVersion(ctx, id, version)
	if err != nil || obj == nil {
		return nil, false
	}
	_ = f.engine.objectCache.Insert(obj)
	return obj, true
}

func (f *childFetcher) FetchByKey(ctx context.Context, parent address.Address, keyType types.TypeTag, keyBytes []byte) (*types.VersionedObject, bool) {
	if f.engine.dynFields == nil {
		return nil, false
	}
	info, err := f.engine.dynFields.FetchDynamicFieldByName(ctx, parent, keyType, keyBytes)
	if err != nil || info == nil {
		return nil, false
	}
	if f.engine.denyList.IsDenied(info.ParentID, info.ChildID) {
		return nil, false
	}
	if obj, ok := f.engine.objectCache.Get(info.ChildID, info.Version); ok {
		return obj, true
	}
	obj, err := f.engine.objects.GetObjectAtVersion(ctx, info.ChildID, info.Version)
	if err != nil || obj == nil {
		return nil, false
	}
	_ = f.engine.objectCache.Insert(obj)
	return obj, true
}
