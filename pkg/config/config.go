// Package config resolves the replay engine's filesystem layout and
// transport tuning from the environment, at the CLI boundary only (per
// SPEC_FULL §9's "global mutable state" design note). Every constructor
// elsewhere in the module takes these values explicitly; nothing below
// this package reads os.Getenv directly.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// DefaultPrefix is the environment variable prefix used when the caller
// does not supply one, matching spec.md's "<SOURCE>_HOME" family.
const DefaultPrefix = "SUI_REPLAY"

// StorePaths is the set of filesystem roots the engine persists to:
// object/package disk caches, the state-file directory, and the snapshot
// directory.
type StorePaths struct {
	CacheDir    string
	StatePath   string
	SnapshotDir string
}

// NewStorePathsFromEnv resolves StorePaths from "<prefix>_HOME", falling
// back to a dotfile under the user's home directory. prefix defaults to
// DefaultPrefix when empty.
func NewStorePathsFromEnv(prefix string) (StorePaths, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	root := os.Getenv(prefix + "_HOME")
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return StorePaths{}, fmt.Errorf("config: resolve home directory: %w", err)
		}
		root = filepath.Join(home, "."+toDirName(prefix))
	}
	return StorePaths{
		CacheDir:    filepath.Join(root, "cache"),
		StatePath:   filepath.Join(root, "state.json"),
		SnapshotDir: filepath.Join(root, "snapshots"),
	}, nil
}

// EnsureDirs creates CacheDir and SnapshotDir if they do not exist.
func (p StorePaths) EnsureDirs() error {
	for _, dir := range []string{p.CacheDir, p.SnapshotDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create %s: %w", dir, err)
		}
	}
	return nil
}

func toDirName(prefix string) string {
	out := make([]byte, 0, len(prefix))
	for _, r := range prefix {
		if r == '_' {
			out = append(out, '-')
			continue
		}
		out = append(out, byte(r|0x20)) // lowercase ASCII
	}
	return string(out)
}

// TransportConfig tunes the timeouts, retry budget, and optional API key
// shared by the three transport adapters (§4.1, §6).
type TransportConfig struct {
	RequestTimeout time.Duration
	ConnectTimeout time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	RPCAPIKey      string
}

// DefaultTransportConfig matches spec.md §4.1's documented defaults.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		RequestTimeout: 30 * time.Second,
		ConnectTimeout: 10 * time.Second,
		MaxRetries:     5,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
	}
}

// NewTransportConfigFromEnv overlays DefaultTransportConfig with
// "<prefix>_GRAPHQL_TIMEOUT_SECS", "<prefix>_GRAPHQL_CONNECT_TIMEOUT_SECS",
// and "<prefix>_GRPC_API_KEY" when present.
func NewTransportConfigFromEnv(prefix string) TransportConfig {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	cfg := DefaultTransportConfig()
	if v := os.Getenv(prefix + "_GRAPHQL_TIMEOUT_SECS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.RequestTimeout = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv(prefix + "_GRAPHQL_CONNECT_TIMEOUT_SECS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.ConnectTimeout = time.Duration(secs) * time.Second
		}
	}
	cfg.RPCAPIKey = os.Getenv(prefix + "_GRPC_API_KEY")
	return cfg
}

// ReplayOptions tunes per-transaction replay behavior (§4.6, §9).
type ReplayOptions struct {
	// PerAttemptTimeout bounds a single attempt's wall-clock time
	// (default 45s per §5).
	PerAttemptTimeout time.Duration

	// SelfHealDynamicFields is carried as an option only: pkg/replay's
	// engine does not read it, so setting it does not change which
	// attempts install the child-fetcher or prefetch dynamic fields.
	SelfHealDynamicFields bool

	// BatchParallelism bounds concurrent object fetches during
	// pre-scanning (default 10, §4.4/§5).
	BatchParallelism int
}

// DefaultReplayOptions matches spec.md's stated defaults.
func DefaultReplayOptions() ReplayOptions {
	return ReplayOptions{
		PerAttemptTimeout: 45 * time.Second,
		BatchParallelism:  10,
	}
}
