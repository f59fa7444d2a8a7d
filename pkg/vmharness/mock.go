package vmharness

import (
	"context"

	"github.com/sui-sandbox/replay/pkg/address"
	"github.com/sui-sandbox/replay/pkg/ptb"
	"github.com/sui-sandbox/replay/pkg/types"
)

// MockHarness is a scriptable Harness test double: callers set Responses
// keyed by PTB digest (or leave Default set) and MockHarness records every
// call it receives for assertions. It is exported (not _test.go) so other
// packages' tests — notably pkg/replay's end-to-end scenario tests — can
// construct a harness without reimplementing the interface.
type MockHarness struct {
	// Responses maps a scripted response to a digest supplied via
	// SetResponseFor; Default is used when no per-digest entry matches.
	Responses map[string]func(block ptb.ProgrammableTransactionBlock) (*types.ExecutionResult, error)
	Default   func(block ptb.ProgrammableTransactionBlock) (*types.ExecutionResult, error)

	currentDigest string

	ResetCount  int
	Sender      address.Address
	TimestampMS *uint64
	LamportBase address.Version
	Aliases     map[address.Address]address.Address
	Preloaded   []ptb.ObjectInput
	Fetcher     ChildFetcher
}

// NewMockHarness constructs an empty MockHarness.
func NewMockHarness() *MockHarness {
	return &MockHarness{
		Responses: make(map[string]func(ptb.ProgrammableTransactionBlock) (*types.ExecutionResult, error)),
		Aliases:   make(map[address.Address]address.Address),
	}
}

// SetResponseFor scripts fn to run for the given digest; Execute looks it
// up via currentDigest, set by the caller through SetCurrentDigest before
// invoking the engine for that transaction.
func (m *MockHarness) SetResponseFor(digest string, fn func(ptb.ProgrammableTransactionBlock) (*types.ExecutionResult, error)) {
	m.Responses[digest] = fn
}

// SetCurrentDigest tells the mock which scripted response to consult on
// the next Execute call.
func (m *MockHarness) SetCurrentDigest(digest string) {
	m.currentDigest = digest
}

func (m *MockHarness) Reset() {
	m.ResetCount++
	m.Preloaded = nil
	m.Aliases = make(map[address.Address]address.Address)
	m.Fetcher = nil
}

func (m *MockHarness) SetSender(sender address.Address) { m.Sender = sender }
func (m *MockHarness) SetTimestampMS(ms *uint64)         { m.TimestampMS = ms }
func (m *MockHarness) SetLamportClock(start address.Version) { m.LamportBase = start }

func (m *MockHarness) InstallAlias(runtimeID, storageID address.Address) {
	m.Aliases[runtimeID] = storageID
}

func (m *MockHarness) InstallLinkage(pkg *types.Package) {
	for runtimeID, storageID := range pkg.Linkage {
		m.Aliases[runtimeID] = storageID
	}
}

func (m *MockHarness) PreloadObject(input ptb.ObjectInput) {
	m.Preloaded = append(m.Preloaded, input)
}

func (m *MockHarness) InstallChildFetcher(fetcher ChildFetcher) {
	m.Fetcher = fetcher
}

func (m *MockHarness) Execute(ctx context.Context, block ptb.ProgrammableTransactionBlock) (*types.ExecutionResult, error) {
	if fn, ok := m.Responses[m.currentDigest]; ok {
		return fn(block)
	}
	if m.Default != nil {
		return m.Default(block)
	}
	return &types.ExecutionResult{Success: true, Effects: &types.Effects{}}, nil
}

var _ Harness = (*MockHarness)(nil)
