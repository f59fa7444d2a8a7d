// Package packagecache stores package bytecode loaded during replay,
// keyed by storage-id, alongside the runtime-id alias table and version
// map the VM harness needs to resolve upgraded dependencies (SPEC_FULL
// §4.3).
package packagecache

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/sui-sandbox/replay/pkg/address"
	"github.com/sui-sandbox/replay/pkg/log"
	"github.com/sui-sandbox/replay/pkg/metrics"
	"github.com/sui-sandbox/replay/pkg/transport"
	"github.com/sui-sandbox/replay/pkg/types"
)

// maxTransitiveRounds bounds the dependency-resolution work-queue so a
// corrupt or cyclic linkage table cannot loop forever (§9).
const maxTransitiveRounds = 8

// Cache stores loaded packages and the alias/version tables derived from
// them. All methods are safe for concurrent use.
type Cache struct {
	mu sync.RWMutex

	byStorageID       map[address.Address]*types.Package
	runtimeToStorage  map[address.Address]address.Address
	versionsByPackage map[address.Address]address.Version
}

// New constructs an empty Cache.
func New() *Cache {
	return &Cache{
		byStorageID:       make(map[address.Address]*types.Package),
		runtimeToStorage:  make(map[address.Address]address.Address),
		versionsByPackage: make(map[address.Address]address.Version),
	}
}

// Get returns the package stored at storageID, if loaded.
func (c *Cache) Get(storageID address.Address) (*types.Package, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	pkg, ok := c.byStorageID[storageID]
	return pkg, ok
}

// ResolveRuntime returns the storage-id currently aliased to runtimeID.
func (c *Cache) ResolveRuntime(runtimeID address.Address) (address.Address, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	storageID, ok := c.runtimeToStorage[runtimeID]
	return storageID, ok
}

// insert records pkg and its alias/version entries. Framework packages are
// rejected: the VM harness is assumed to have them pre-installed (§4.3).
func (c *Cache) insert(pkg *types.Package) {
	if address.IsFramework(pkg.StorageID) || address.IsFramework(pkg.RuntimeID) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byStorageID[pkg.StorageID] = pkg
	c.runtimeToStorage[pkg.RuntimeID] = pkg.StorageID
	c.versionsByPackage[pkg.StorageID] = pkg.Version
	metrics.PackageCacheSize.Set(float64(len(c.byStorageID)))
}

// Len reports the number of packages currently loaded.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byStorageID)
}

// Loader fetches and loads packages, resolving their transitive
// dependencies through each package's linkage table and pulling those
// packages in turn, bounded by maxTransitiveRounds work-queue rounds.
type Loader struct {
	cache  *Cache
	source transport.PackageSource
	logger zerolog.Logger
}

// NewLoader constructs a Loader that fetches missing packages through
// source and stores them in cache.
func NewLoader(cache *Cache, source transport.PackageSource) *Loader {
	return &Loader{cache: cache, source: source, logger: log.WithComponent("packagecache")}
}

// EnsureLoaded loads every package in ids (and their transitive
// dependencies) that is not already cached, stopping after
// maxTransitiveRounds rounds of newly-discovered dependencies.
func (l *Loader) EnsureLoaded(ctx context.Context, ids []address.Address) error {
	queue := make([]address.Address, 0, len(ids))
	for _, id := range ids {
		if !address.IsFramework(id) {
			queue = append(queue, id)
		}
	}

	visited := make(map[address.Address]bool)
	for round := 0; len(queue) > 0; round++ {
		if round >= maxTransitiveRounds {
			l.logger.Warn().Int("rounds", maxTransitiveRounds).Int("pending", len(queue)).Msg("transitive package resolution stopped with packages still queued")
			break
		}

		next := make([]address.Address, 0)
		for _, id := range queue {
			if visited[id] {
				continue
			}
			visited[id] = true

			if _, ok := l.cache.Get(id); ok {
				continue
			}

			pkg, err := l.source.FetchPackage(ctx, id)
			if err != nil {
				return fmt.Errorf("packagecache: fetch package %s: %w", id, err)
			}
			l.cache.insert(pkg)

			// pkg.Linkage already resolves each transitive dependency's
			// runtime-id to the storage-id it was linked against; no
			// separate bytecode module-handle walk is needed.
			for _, storageID := range pkg.Linkage {
				if !address.IsFramework(storageID) && !visited[storageID] {
					next = append(next, storageID)
				}
			}
		}
		queue = next
	}
	return nil
}
