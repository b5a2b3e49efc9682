package engine

import (
	"crypto/sha256"
	"fmt"
	"hash"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/emersion/go-ical"

	"github.com/cyp0633/librecur/icalconv"
)

// CacheEntry represents a cached recurrence result
type CacheEntry struct {
	Result     any // bool for HasOccurrenceInRange or []Occurrence for Expand
	ExpiresAt  time.Time
	AccessedAt time.Time
}

// RecurrenceCache provides caching for recurrence expansion and validation results
type RecurrenceCache struct {
	entries         map[string]*CacheEntry
	mutex           sync.RWMutex
	ttl             time.Duration
	maxEntries      int
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	closeOnce       sync.Once

	hits   atomic.Int64
	misses atomic.Int64
}

// CacheConfig holds configuration for the recurrence cache
type CacheConfig struct {
	TTL             time.Duration // How long entries stay valid
	MaxEntries      int           // Maximum number of entries before cleanup
	CleanupInterval time.Duration // How often to run cleanup
}

// DefaultCacheConfig provides sensible defaults for recurrence caching
var DefaultCacheConfig = CacheConfig{
	TTL:             15 * time.Minute, // Cache results for 15 minutes
	MaxEntries:      1000,             // Keep up to 1000 cached results
	CleanupInterval: 5 * time.Minute,  // Cleanup every 5 minutes
}

// keyProps are the component properties that influence a query result.
var keyProps = []string{
	ical.PropDateTimeStart,
	ical.PropDateTimeEnd,
	ical.PropDuration,
	ical.PropDue,
	ical.PropRecurrenceRule,
	ical.PropRecurrenceDates,
	ical.PropExceptionDates,
	"RECURRENCE-ID",
}

// CacheQuery identifies one engine query.
type CacheQuery struct {
	Operation  string
	Component  *ical.Component
	Zones      icalconv.ZoneSet
	RangeStart time.Time
	RangeEnd   time.Time
	Extra      string // Option fingerprint for Expand
}

// NewRecurrenceCache creates a new recurrence cache with the given configuration
func NewRecurrenceCache(config CacheConfig) *RecurrenceCache {
	cache := &RecurrenceCache{
		entries:         make(map[string]*CacheEntry),
		ttl:             config.TTL,
		maxEntries:      config.MaxEntries,
		cleanupInterval: config.CleanupInterval,
		stopCleanup:     make(chan struct{}),
	}

	if cache.cleanupInterval > 0 {
		go cache.cleanupLoop()
	}

	return cache
}

// generateCacheKey hashes the query together with every recurrence
// property of the component and the zones those properties refer to.
func (c *RecurrenceCache) generateCacheKey(q CacheQuery) string {
	hasher := sha256.New()

	writeField(hasher, q.Operation)
	writeField(hasher, q.RangeStart.UTC().Format(time.RFC3339Nano))
	writeField(hasher, q.RangeEnd.UTC().Format(time.RFC3339Nano))
	writeField(hasher, q.Extra)

	if q.Component != nil {
		writeField(hasher, q.Component.Name)
		for _, name := range keyProps {
			for _, prop := range q.Component.Props[name] {
				writeField(hasher, name)
				writeField(hasher, prop.Value)
				writeParams(hasher, prop.Params)
			}
		}
	}

	// Zones are keyed by identity; an equal but distinct ZoneSet misses.
	tzids := make([]string, 0, len(q.Zones))
	for tzid := range q.Zones {
		tzids = append(tzids, tzid)
	}
	sort.Strings(tzids)
	for _, tzid := range tzids {
		writeField(hasher, fmt.Sprintf("%s=%p", tzid, q.Zones[tzid]))
	}

	return fmt.Sprintf("%x", hasher.Sum(nil))
}

func writeParams(h hash.Hash, params ical.Params) {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		writeField(h, name)
		for _, v := range params[name] {
			writeField(h, v)
		}
	}
}

// writeField writes s followed by a separator so adjacent fields cannot
// run together.
func writeField(h hash.Hash, s string) {
	h.Write([]byte(s))
	h.Write([]byte{0})
}

// Get retrieves a cached result if it exists and hasn't expired
func (c *RecurrenceCache) Get(q CacheQuery) (any, bool) {
	key := c.generateCacheKey(q)

	c.mutex.RLock()
	entry, exists := c.entries[key]
	c.mutex.RUnlock()

	if !exists {
		c.misses.Add(1)
		return nil, false
	}

	// Check if entry has expired
	now := time.Now()
	if now.After(entry.ExpiresAt) {
		c.mutex.Lock()
		delete(c.entries, key)
		c.mutex.Unlock()
		c.misses.Add(1)
		return nil, false
	}

	c.mutex.Lock()
	entry.AccessedAt = now
	c.mutex.Unlock()

	c.hits.Add(1)
	return entry.Result, true
}

// Set stores a result in the cache
func (c *RecurrenceCache) Set(q CacheQuery, result any) {
	key := c.generateCacheKey(q)
	now := time.Now()

	entry := &CacheEntry{
		Result:     result,
		ExpiresAt:  now.Add(c.ttl),
		AccessedAt: now,
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries[key] = entry

	if c.maxEntries > 0 && len(c.entries) > c.maxEntries {
		c.cleanup()
	}
}

// cleanup removes expired entries, then the least recently accessed ones
// while the cache is over its limit. The caller holds the write lock.
func (c *RecurrenceCache) cleanup() {
	now := time.Now()

	for key, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, key)
		}
	}

	if c.maxEntries <= 0 || len(c.entries) <= c.maxEntries {
		return
	}

	type keyAccess struct {
		key        string
		accessedAt time.Time
	}
	keyAccessList := make([]keyAccess, 0, len(c.entries))
	for key, entry := range c.entries {
		keyAccessList = append(keyAccessList, keyAccess{key: key, accessedAt: entry.AccessedAt})
	}
	sort.Slice(keyAccessList, func(i, j int) bool {
		return keyAccessList[i].accessedAt.Before(keyAccessList[j].accessedAt)
	})

	entriesToRemove := len(c.entries) - c.maxEntries
	for i := 0; i < entriesToRemove; i++ {
		delete(c.entries, keyAccessList[i].key)
	}
}

// cleanupLoop runs periodic cleanup
func (c *RecurrenceCache) cleanupLoop() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mutex.Lock()
			c.cleanup()
			c.mutex.Unlock()
		case <-c.stopCleanup:
			return
		}
	}
}

// Close stops the cleanup goroutine and clears the cache
func (c *RecurrenceCache) Close() {
	c.closeOnce.Do(func() {
		close(c.stopCleanup)
	})
	c.mutex.Lock()
	c.entries = make(map[string]*CacheEntry)
	c.mutex.Unlock()
}

// Stats returns cache statistics
func (c *RecurrenceCache) Stats() CacheStats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entryCount := len(c.entries)
	expiredCount := 0
	now := time.Now()

	for _, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			expiredCount++
		}
	}

	return CacheStats{
		TotalEntries:   entryCount,
		ExpiredEntries: expiredCount,
		ActiveEntries:  entryCount - expiredCount,
		Hits:           c.hits.Load(),
		Misses:         c.misses.Load(),
	}
}

// CacheStats provides information about cache performance
type CacheStats struct {
	TotalEntries   int
	ExpiredEntries int
	ActiveEntries  int
	Hits           int64
	Misses         int64
}
