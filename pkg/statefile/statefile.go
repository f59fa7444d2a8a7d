// Package statefile reads and writes the sandbox's persistent JSON state
// file and named snapshots: the full object/package/coin-registry working
// set a local simulation or mutation-lab run operates against (SPEC_FULL
// §6's egress artifact schema, grounded on sui-napi's
// `PersistentState`/`SnapshotFile` shapes.
package statefile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sui-sandbox/replay/pkg/address"
	"github.com/sui-sandbox/replay/pkg/types"
)

// CurrentSchemaVersion is the highest state-file schema version this
// package knows how to read. Read forward-rejects any file whose Version
// exceeds it, per §6.
const CurrentSchemaVersion = 1

// CoinMetadata describes one registered coin type's display properties.
type CoinMetadata struct {
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	TypeTag  string `json:"type_tag"`
}

// SimulationConfig tunes local execution defaults carried alongside state.
type SimulationConfig struct {
	ProtocolVersion  uint64 `json:"protocol_version,omitempty"`
	ReferenceGasPrice uint64 `json:"reference_gas_price,omitempty"`
	Epoch            uint64 `json:"epoch,omitempty"`
}

// Metadata is free-form descriptive information about a state file, not
// interpreted by the engine.
type Metadata struct {
	Description *string  `json:"description,omitempty"`
	CreatedAt   *string  `json:"created_at,omitempty"`
	ModifiedAt  *string  `json:"modified_at,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// PendingReceive records an object a later transaction is expected to
// consume via Receive before it is considered resolved.
type PendingReceive struct {
	ObjectID address.Address `json:"object_id"`
	Version  address.Version `json:"version"`
}

// DynamicFieldEntry is one (parent, key) -> child mapping persisted
// alongside the owning objects so a reload does not need to re-derive it.
type DynamicFieldEntry struct {
	ParentID address.Address `json:"parent_id"`
	ChildID  address.Address `json:"child_id"`
	KeyType  string          `json:"key_type"`
	KeyBytes []byte          `json:"key_bytes"`
}

// ObjectHistoryEntry records one prior version of an object superseded by
// the current entry in Objects, kept for replay-through-history debugging.
type ObjectHistoryEntry struct {
	ID      address.Address `json:"id"`
	Version address.Version `json:"version"`
	Bytes   []byte          `json:"bytes"`
}

// State is the full persisted working set: every field the sandbox needs
// to resume a local simulation or feed a mutation-lab run without
// re-fetching from a transport (§6).
type State struct {
	Version         int                          `json:"version"`
	Objects         []types.VersionedObject      `json:"objects"`
	ObjectHistory   []ObjectHistoryEntry          `json:"object_history,omitempty"`
	Modules         []types.Module               `json:"modules,omitempty"`
	Packages        []types.Package              `json:"packages"`
	CoinRegistry    map[string]CoinMetadata       `json:"coin_registry"`
	Sender          address.Address               `json:"sender"`
	IDCounter       uint64                        `json:"id_counter"`
	TimestampMS     *uint64                       `json:"timestamp_ms,omitempty"`
	DynamicFields   []DynamicFieldEntry           `json:"dynamic_fields"`
	PendingReceives []PendingReceive              `json:"pending_receives"`
	Config          *SimulationConfig             `json:"config,omitempty"`
	Metadata        *Metadata                     `json:"metadata,omitempty"`
}

// New constructs an empty State at CurrentSchemaVersion with a seeded SUI
// coin-registry entry, matching sui-napi's
// `default_persistent_state`.
func New() *State {
	now := time.Now().UTC().Format(time.RFC3339)
	return &State{
		Version:   CurrentSchemaVersion,
		CoinRegistry: map[string]CoinMetadata{
			"0x2::sui::SUI": {Decimals: 9, Symbol: "SUI", Name: "Sui", TypeTag: "0x2::sui::SUI"},
		},
		Sender:          address.Zero,
		DynamicFields:   []DynamicFieldEntry{},
		PendingReceives: []PendingReceive{},
		Config:          &SimulationConfig{},
		Metadata:        &Metadata{CreatedAt: &now},
	}
}

// Read loads and parses a state file, rejecting one whose schema Version
// exceeds CurrentSchemaVersion rather than guessing at unknown fields.
func Read(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("statefile: read %s: %w", path, err)
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("statefile: parse %s: %w", path, err)
	}
	if s.Version > CurrentSchemaVersion {
		return nil, fmt.Errorf("statefile: %s has schema version %d, newer than supported %d", path, s.Version, CurrentSchemaVersion)
	}
	return &s, nil
}

// Write serializes s to path as pretty-printed, deterministically-ordered
// JSON, creating parent directories as needed.
func Write(path string, s *State) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("statefile: create directory for %s: %w", path, err)
	}
	sortForDeterminism(s)
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("statefile: marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("statefile: write %s: %w", path, err)
	}
	return nil
}

// sortForDeterminism orders the slices whose iteration order would
// otherwise be insertion-dependent, so two writes of logically identical
// state produce byte-identical files (§8's state-file round-trip law).
func sortForDeterminism(s *State) {
	sort.Slice(s.Objects, func(i, j int) bool {
		a, b := s.Objects[i], s.Objects[j]
		if a.ID != b.ID {
			return a.ID.Compare(b.ID) < 0
		}
		return a.Version < b.Version
	})
	sort.Slice(s.Packages, func(i, j int) bool {
		return s.Packages[i].StorageID.Compare(s.Packages[j].StorageID) < 0
	})
	sort.Slice(s.DynamicFields, func(i, j int) bool {
		a, b := s.DynamicFields[i], s.DynamicFields[j]
		if a.ParentID != b.ParentID {
			return a.ParentID.Compare(b.ParentID) < 0
		}
		return a.ChildID.Compare(b.ChildID) < 0
	})
	sort.Slice(s.PendingReceives, func(i, j int) bool {
		a, b := s.PendingReceives[i], s.PendingReceives[j]
		if a.ObjectID != b.ObjectID {
			return a.ObjectID.Compare(b.ObjectID) < 0
		}
		return a.Version < b.Version
	})
}

// Snapshot is a named, timestamped capture of a full State, stored
// separately from the live state file (§6).
type Snapshot struct {
	SchemaVersion int     `json:"schema_version"`
	Name          string  `json:"name"`
	Description   *string `json:"description,omitempty"`
	CreatedAt     string  `json:"created_at"`
	State         State   `json:"state"`
}

// sanitizeSnapshotName keeps only ASCII alphanumerics, '-', and '_',
// matching sui-napi's filename-safety rule.
func sanitizeSnapshotName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "snapshot"
	}
	return b.String()
}

// SnapshotPath resolves the on-disk path for a named snapshot under dir.
func SnapshotPath(dir, name string) string {
	return filepath.Join(dir, sanitizeSnapshotName(name)+".json")
}

// WriteSnapshot captures state under name into dir, stamping CreatedAt and
// SchemaVersion.
func WriteSnapshot(dir, name string, description *string, state State) error {
	snap := Snapshot{
		SchemaVersion: CurrentSchemaVersion,
		Name:          name,
		Description:   description,
		CreatedAt:     time.Now().UTC().Format(time.RFC3339),
		State:         state,
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("statefile: marshal snapshot %s: %w", name, err)
	}
	path := SnapshotPath(dir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("statefile: create snapshot directory %s: %w", dir, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("statefile: write snapshot %s: %w", path, err)
	}
	return nil
}

// ReadSnapshot loads a named snapshot from dir.
func ReadSnapshot(dir, name string) (*Snapshot, error) {
	path := SnapshotPath(dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("statefile: read snapshot %s: %w", path, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("statefile: parse snapshot %s: %w", path, err)
	}
	if snap.SchemaVersion > CurrentSchemaVersion {
		return nil, fmt.Errorf("statefile: snapshot %s has schema version %d, newer than supported %d", path, snap.SchemaVersion, CurrentSchemaVersion)
	}
	return &snap, nil
}

// ListSnapshots returns the sanitized names of every snapshot file under
// dir, sorted lexicographically.
func ListSnapshots(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("statefile: list snapshots in %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)
	return names, nil
}
