// Package objectcache stores versioned object snapshots fetched during
// replay. Reads check an in-memory LRU tier before falling through to a
// bbolt-backed disk tier, so state reconstructed for an earlier transaction
// in the same run survives eviction without re-fetching over the network
// (SPEC_FULL §4.2).
package objectcache

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"

	"github.com/sui-sandbox/replay/pkg/address"
	"github.com/sui-sandbox/replay/pkg/log"
	"github.com/sui-sandbox/replay/pkg/metrics"
	"github.com/sui-sandbox/replay/pkg/types"
)

var bucketObjects = []byte("objects")

// key is the composite (id, version) cache key.
type key struct {
	id      address.Address
	version address.Version
}

func (k key) diskKey() []byte {
	buf := make([]byte, address.Length+8)
	copy(buf, k.id.Bytes())
	binary.BigEndian.PutUint64(buf[address.Length:], uint64(k.version))
	return buf
}

// Cache is the two-tier versioned object store: an in-memory LRU in front
// of an optional on-disk bbolt database. A nil db runs memory-only, which
// is how unit tests and ephemeral one-shot replays use it.
type Cache struct {
	mu      sync.RWMutex
	memory  *lru.Cache[key, *types.VersionedObject]
	db      *bolt.DB
	latest  map[address.Address]address.Version
	logger  zerolog.Logger
}

// Config tunes the Cache's memory tier size and optional disk path.
type Config struct {
	// MemoryEntries bounds the in-memory LRU tier (default 4096).
	MemoryEntries int
	// DiskPath, when non-empty, backs the cache with a bbolt database at
	// this path for cross-process/cross-run persistence.
	DiskPath string
}

// New constructs a Cache per cfg.
func New(cfg Config) (*Cache, error) {
	entries := cfg.MemoryEntries
	if entries <= 0 {
		entries = 4096
	}
	mem, err := lru.New[key, *types.VersionedObject](entries)
	if err != nil {
		return nil, fmt.Errorf("objectcache: new lru: %w", err)
	}

	c := &Cache{
		memory: mem,
		latest: make(map[address.Address]address.Version),
		logger: log.WithComponent("objectcache"),
	}

	if cfg.DiskPath != "" {
		db, err := bolt.Open(cfg.DiskPath, 0o600, nil)
		if err != nil {
			return nil, fmt.Errorf("objectcache: open disk tier %s: %w", cfg.DiskPath, err)
		}
		if err := db.Update(func(tx *bolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(bucketObjects)
			return err
		}); err != nil {
			db.Close()
			return nil, fmt.Errorf("objectcache: create bucket: %w", err)
		}
		c.db = db
	}

	return c, nil
}

// Close releases the disk tier, if any.
func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Insert stores obj at its (ID, Version) and, if it is newer than any
// previously-seen version of ID, updates the "latest known version"
// shortcut used by GetAny.
func (c *Cache) Insert(obj *types.VersionedObject) error {
	if obj == nil {
		return fmt.Errorf("objectcache: insert nil object")
	}
	k := key{id: obj.ID, version: obj.Version}

	c.mu.Lock()
	if cur, ok := c.latest[obj.ID]; !ok || cur.Less(obj.Version) {
		c.latest[obj.ID] = obj.Version
	}
	c.mu.Unlock()

	c.memory.Add(k, obj)
	metrics.ObjectCacheSize.Set(float64(c.memory.Len()))

	if c.db != nil {
		data, err := json.Marshal(obj)
		if err != nil {
			return fmt.Errorf("objectcache: marshal %s@%d: %w", obj.ID, obj.Version, err)
		}
		if err := c.db.Update(func(tx *bolt.Tx) error {
			return tx.Bucket(bucketObjects).Put(k.diskKey(), data)
		}); err != nil {
			return fmt.Errorf("objectcache: persist %s@%d: %w", obj.ID, obj.Version, err)
		}
	}
	return nil
}

// Get returns the cached snapshot of id at exactly version, or (nil, false)
// on a miss.
func (c *Cache) Get(id address.Address, version address.Version) (*types.VersionedObject, bool) {
	k := key{id: id, version: version}
	if obj, ok := c.memory.Get(k); ok {
		metrics.ObjectCacheMemoryHits.Inc()
		return obj, true
	}

	if c.db != nil {
		var obj types.VersionedObject
		found := false
		_ = c.db.View(func(tx *bolt.Tx) error {
			data := tx.Bucket(bucketObjects).Get(k.diskKey())
			if data == nil {
				return nil
			}
			if err := json.Unmarshal(data, &obj); err != nil {
				return err
			}
			found = true
			return nil
		})
		if found {
			metrics.ObjectCacheDiskHits.Inc()
			c.memory.Add(k, &obj)
			return &obj, true
		}
	}

	return nil, false
}

// GetAny returns the highest cached version of id known to the cache, or
// (nil, false) if no version of id has ever been inserted.
func (c *Cache) GetAny(id address.Address) (*types.VersionedObject, bool) {
	c.mu.RLock()
	v, ok := c.latest[id]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return c.Get(id, v)
}

// RemoveAll evicts every cached version of id from both tiers, used when a
// mutation operator or deny-list entry invalidates an object's history.
func (c *Cache) RemoveAll(id address.Address) error {
	c.mu.Lock()
	delete(c.latest, id)
	c.mu.Unlock()

	for _, k := range c.memory.Keys() {
		if k.id == id {
			c.memory.Remove(k)
		}
	}
	metrics.ObjectCacheSize.Set(float64(c.memory.Len()))

	if c.db == nil {
		return nil
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketObjects)
		cur := b.Cursor()
		prefix := id.Bytes()
		var keysToDelete [][]byte
		for k, _ := cur.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = cur.Next() {
			kk := make([]byte, len(k))
			copy(kk, k)
			keysToDelete = append(keysToDelete, kk)
		}
		for _, k := range keysToDelete {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Len reports the number of entries resident in the memory tier, used for
// metrics.Snapshot reporting.
func (c *Cache) Len() int {
	return c.memory.Len()
}
