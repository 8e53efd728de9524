package utils

import (
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	// DefaultCacheTTL is used for item-level upstream state.
	DefaultCacheTTL = 5 * time.Minute
	// ReferenceCacheTTL is used for slow-changing reference data
	// such as quality profiles and tags.
	ReferenceCacheTTL = 1 * time.Hour
)

// CacheManager hands out named response caches shared between service
// clients. Caches are created lazily and live for the process lifetime.
type CacheManager struct {
	mu     sync.Mutex
	caches map[string]*gocache.Cache
}

// NewCacheManager creates an empty cache manager
func NewCacheManager() *CacheManager {
	return &CacheManager{caches: make(map[string]*gocache.Cache)}
}

// Get returns the cache with the given name, creating it if needed
func (m *CacheManager) Get(name string) *gocache.Cache {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.caches[name]
	if !ok {
		c = gocache.New(DefaultCacheTTL, 10*time.Minute)
		m.caches[name] = c
	}
	return c
}

// Flush clears all entries of the named cache. Flushing a cache that was
// never created is a no-op.
func (m *CacheManager) Flush(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.caches[name]; ok {
		c.Flush()
	}
}

// FlushPrefix clears every cache whose name starts with the given prefix.
// Used to flush a whole resolver family, e.g. all configured Radarr
// instances at once.
func (m *CacheManager) FlushPrefix(prefix string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, c := range m.caches {
		if strings.HasPrefix(name, prefix) {
			c.Flush()
		}
	}
}
