package cache

import (
	"strings"
	"time"

	goCache "github.com/patrickmn/go-cache"
)

const (
	// DefaultExpiration is the default expiration time for cache entries
	DefaultExpiration = 5 * time.Minute
	// DefaultCleanupInterval is how often expired items are removed from the cache
	DefaultCleanupInterval = 10 * time.Minute

	PrefixUserPermissions = "perm:user:"
)

// Cache is an in-memory key/value store with prefix invalidation
type Cache struct {
	cache *goCache.Cache
}

// New creates a cache using the given default TTL
func New(expiration time.Duration) *Cache {
	if expiration <= 0 {
		expiration = DefaultExpiration
	}
	return &Cache{cache: goCache.New(expiration, DefaultCleanupInterval)}
}

// Get retrieves a value from the cache
func (c *Cache) Get(key string) (interface{}, bool) {
	return c.cache.Get(key)
}

// Set adds a value with the default expiration
func (c *Cache) Set(key string, value interface{}) {
	c.cache.Set(key, value, goCache.DefaultExpiration)
}

// Delete removes a key from the cache
func (c *Cache) Delete(key string) {
	c.cache.Delete(key)
}

// DeleteByPrefix removes every key starting with prefix
func (c *Cache) DeleteByPrefix(prefix string) {
	for key := range c.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			c.cache.Delete(key)
		}
	}
}

// Flush removes every entry
func (c *Cache) Flush() {
	c.cache.Flush()
}

// PermissionSet is the cached grant set of one user
type PermissionSet struct {
	All   bool
	Codes map[string]struct{}
}

// Has reports whether the set grants code
func (p PermissionSet) Has(code string) bool {
	if p.All {
		return true
	}
	_, ok := p.Codes[code]
	return ok
}

// GetPermissions returns the cached set of a user
func (c *Cache) GetPermissions(userID string) (PermissionSet, bool) {
	v, ok := c.Get(PrefixUserPermissions + userID)
	if !ok {
		return PermissionSet{}, false
	}
	set, ok := v.(PermissionSet)
	return set, ok
}

// SetPermissions caches the set of a user
func (c *Cache) SetPermissions(userID string, set PermissionSet) {
	c.Set(PrefixUserPermissions+userID, set)
}

// InvalidateUser drops the cached set of one user
func (c *Cache) InvalidateUser(userID string) {
	c.Delete(PrefixUserPermissions + userID)
}

// InvalidatePermissions drops every cached set, used when roles change
func (c *Cache) InvalidatePermissions() {
	c.DeleteByPrefix(PrefixUserPermissions)
}
