package index

import (
	"sync/atomic"
	"time"

	"github.com/MrSnakeDoc/georoute/internal/domain"
	"github.com/MrSnakeDoc/georoute/internal/policy"
)

// Snapshot is one compiled view of the persisted state. It is never mutated
// after being published.
type Snapshot struct {
	Policy     *policy.Policy
	Enabled    bool
	GeoReady   bool
	GeoCount   int
	UserSites  int
	GeoMeta    domain.CacheMetadata
	CompiledAt time.Time
}

// MemoryIndex serves the active policy to request handlers. Readers load the
// current snapshot without locking; the compiler swaps it whole.
type MemoryIndex struct {
	current atomic.Pointer[Snapshot]
	swaps   atomic.Int64
}

// NewMemoryIndex creates an index whose policy routes everything DIRECT
func NewMemoryIndex() *MemoryIndex {
	idx := &MemoryIndex{}
	idx.current.Store(&Snapshot{})
	return idx
}

// Update publishes s as the current snapshot
func (idx *MemoryIndex) Update(s Snapshot) {
	if s.CompiledAt.IsZero() {
		s.CompiledAt = time.Now()
	}
	idx.current.Store(&s)
	idx.swaps.Add(1)
}

// Snapshot returns the current snapshot
func (idx *MemoryIndex) Snapshot() Snapshot {
	return *idx.current.Load()
}

// Policy returns the current compiled policy, possibly nil before the first compile
func (idx *MemoryIndex) Policy() *policy.Policy {
	return idx.current.Load().Policy
}

// Route decides how host is reached under the current policy
func (idx *MemoryIndex) Route(host string) policy.Decision {
	return idx.Policy().Route(host)
}

// Script renders the current policy as PAC
func (idx *MemoryIndex) Script() string {
	return idx.Policy().Script()
}

// Compiled reports whether any snapshot was published yet
func (idx *MemoryIndex) Compiled() bool {
	return idx.swaps.Load() > 0
}

// GetLastReload returns when the current snapshot was compiled
func (idx *MemoryIndex) GetLastReload() time.Time {
	return idx.current.Load().CompiledAt
}
