package icaltime

import "sync"

// CacheKind separates the memoized computations sharing one Cache.
type CacheKind int

const (
	KindDayOfWeek CacheKind = iota + 1
	KindWeekNumber
)

// CacheKey identifies one memoized calendar computation.
type CacheKey struct {
	Kind      CacheKind
	Year      int
	Month     int
	Day       int
	WeekStart Weekday
}

// Cache memoizes pure calendar computations. Implementations must be safe
// for concurrent use.
type Cache interface {
	Get(key CacheKey) (int, bool)
	Put(key CacheKey, value int)
}

// SyncCache is a map-backed Cache guarded by a read/write lock. When
// maxEntries is reached the map is reset.
type SyncCache struct {
	mu         sync.RWMutex
	entries    map[CacheKey]int
	maxEntries int
}

// NewSyncCache returns an empty cache. maxEntries <= 0 means unbounded.
func NewSyncCache(maxEntries int) *SyncCache {
	return &SyncCache{entries: make(map[CacheKey]int), maxEntries: maxEntries}
}

func (c *SyncCache) Get(key CacheKey) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *SyncCache) Put(key CacheKey, value int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.entries = make(map[CacheKey]int)
	}
	c.entries[key] = value
}

// Len returns the number of cached entries.
func (c *SyncCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

type nopCache struct{}

func (nopCache) Get(CacheKey) (int, bool) { return 0, false }
func (nopCache) Put(CacheKey, int)        {}

// NopCache never stores anything.
var NopCache Cache = nopCache{}

// Calendar answers weekday and week-number questions through a Cache.
type Calendar struct {
	cache Cache
}

// NewCalendar wraps cache. A nil cache disables memoization.
func NewCalendar(cache Cache) *Calendar {
	if cache == nil {
		cache = NopCache
	}
	return &Calendar{cache: cache}
}

// DayOfWeek is the memoized form of Time.DayOfWeek.
func (c *Calendar) DayOfWeek(t Time, weekStart Weekday) int {
	n := t.normalized()
	key := CacheKey{Kind: KindDayOfWeek, Year: n.year, Month: n.month, Day: n.day, WeekStart: weekStart}
	if v, ok := c.cache.Get(key); ok {
		return v
	}
	v := dayOfWeek(n.year, n.month, n.day, weekStart)
	c.cache.Put(key, v)
	return v
}

// WeekNumber is the memoized form of Time.WeekNumber.
func (c *Calendar) WeekNumber(t Time, weekStart Weekday) int {
	n := t.normalized()
	key := CacheKey{Kind: KindWeekNumber, Year: n.year, Month: n.month, Day: n.day, WeekStart: weekStart}
	if v, ok := c.cache.Get(key); ok {
		return v
	}
	_, v := isoWeek(n, weekStart)
	c.cache.Put(key, v)
	return v
}
