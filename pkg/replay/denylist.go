package replay

import (
	"sync"

	"github.com/sui-sandbox/replay/pkg/address"
	"github.com/sui-sandbox/replay/pkg/metrics"
)

// parentChild is a (parent, child) object pair.
type parentChild struct {
	parent address.Address
	child  address.Address
}

// DenyList records (parent, child) pairs refuted by a parent/child
// conflict the VM raised during a prior attempt, so subsequent attempts'
// child-fetcher callbacks never re-offer the same bad pairing. It is
// shared across concurrent child-fetcher callbacks and uses a many-reader,
// single-writer discipline (§5).
type DenyList struct {
	mu      sync.RWMutex
	refuted map[parentChild]bool
}

// NewDenyList constructs an empty DenyList.
func NewDenyList() *DenyList {
	return &DenyList{refuted: make(map[parentChild]bool)}
}

// Deny records parent/child as refuted.
func (d *DenyList) Deny(parent, child address.Address) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.refuted[parentChild{parent: parent, child: child}] = true
	metrics.DenyListEvictionsTotal.Inc()
}

// IsDenied reports whether parent/child was previously refuted.
func (d *DenyList) IsDenied(parent, child address.Address) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.refuted[parentChild{parent: parent, child: child}]
}

// Len reports the number of denied pairs, used in tests and diagnostics.
func (d *DenyList) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.refuted)
}
