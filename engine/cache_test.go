package engine

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ruleComponent(rrule string) *ical.Component {
	comp := ical.NewComponent(ical.CompEvent)
	setRaw(comp, ical.PropDateTimeStart, "20240101T100000Z")
	setRaw(comp, ical.PropDateTimeEnd, "20240101T110000Z")
	if rrule != "" {
		setRaw(comp, ical.PropRecurrenceRule, rrule)
	}
	return comp
}

func setRaw(comp *ical.Component, name, value string) {
	prop := ical.NewProp(name)
	prop.Value = value
	comp.Props.Set(prop)
}

func query(rrule string) CacheQuery {
	return CacheQuery{
		Operation:  "test",
		Component:  ruleComponent(rrule),
		RangeStart: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRecurrenceCache_BasicOperations(t *testing.T) {
	cache := NewRecurrenceCache(CacheConfig{
		TTL:             5 * time.Minute,
		MaxEntries:      100,
		CleanupInterval: time.Minute,
	})
	defer cache.Close()

	q := query("FREQ=DAILY;COUNT=5")

	result, found := cache.Get(q)
	assert.False(t, found)
	assert.Nil(t, result)

	cache.Set(q, true)

	result, found = cache.Get(q)
	assert.True(t, found)
	assert.Equal(t, true, result)

	stats := cache.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestRecurrenceCache_TTLExpiration(t *testing.T) {
	cache := NewRecurrenceCache(CacheConfig{
		TTL:             100 * time.Millisecond,
		MaxEntries:      100,
		CleanupInterval: 50 * time.Millisecond,
	})
	defer cache.Close()

	q := query("FREQ=DAILY;COUNT=5")
	cache.Set(q, true)

	result, found := cache.Get(q)
	require.True(t, found)
	assert.Equal(t, true, result)

	time.Sleep(150 * time.Millisecond)

	_, found = cache.Get(q)
	assert.False(t, found, "entry should expire after its TTL")
}

func TestRecurrenceCache_Stats(t *testing.T) {
	cache := NewRecurrenceCache(DefaultCacheConfig)
	defer cache.Close()

	assert.Equal(t, 0, cache.Stats().TotalEntries)

	for i := 0; i < 5; i++ {
		cache.Set(query(fmt.Sprintf("FREQ=DAILY;COUNT=%d", i+1)), true)
	}

	stats := cache.Stats()
	assert.Equal(t, 5, stats.TotalEntries)
	assert.Equal(t, 5, stats.ActiveEntries)
	assert.Equal(t, 0, stats.ExpiredEntries)
}

func TestRecurrenceCache_MaxEntriesEviction(t *testing.T) {
	cache := NewRecurrenceCache(CacheConfig{
		TTL:             5 * time.Minute,
		MaxEntries:      3,
		CleanupInterval: time.Minute,
	})
	defer cache.Close()

	for i := 0; i < 3; i++ {
		cache.Set(query(fmt.Sprintf("FREQ=DAILY;COUNT=%d", i+1)), true)
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, 3, cache.Stats().TotalEntries)

	// Touch the oldest entry so the second one becomes least recently used.
	_, found := cache.Get(query("FREQ=DAILY;COUNT=1"))
	require.True(t, found)
	time.Sleep(time.Millisecond)

	newest := query("FREQ=WEEKLY;COUNT=1")
	cache.Set(newest, false)
	assert.Equal(t, 3, cache.Stats().TotalEntries)

	result, found := cache.Get(newest)
	assert.True(t, found)
	assert.Equal(t, false, result)

	_, found = cache.Get(query("FREQ=DAILY;COUNT=1"))
	assert.True(t, found, "recently read entry should survive eviction")
	_, found = cache.Get(query("FREQ=DAILY;COUNT=2"))
	assert.False(t, found, "least recently used entry should be evicted")
}

func TestRecurrenceCache_ConcurrentAccess(t *testing.T) {
	cache := NewRecurrenceCache(CacheConfig{
		TTL:             5 * time.Minute,
		MaxEntries:      100,
		CleanupInterval: time.Minute,
	})
	defer cache.Close()

	const numGoroutines = 10
	const operationsPerGoroutine = 100

	var wg sync.WaitGroup
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(goroutineID int) {
			defer wg.Done()
			for j := 0; j < operationsPerGoroutine; j++ {
				q := query(fmt.Sprintf("FREQ=DAILY;COUNT=%d", goroutineID*operationsPerGoroutine+j+1))
				if j%2 == 0 {
					cache.Set(q, true)
				} else {
					cache.Get(q)
				}
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, cache.Stats().TotalEntries, 100)

	q := query("FREQ=DAILY;COUNT=9999")
	cache.Set(q, true)
	result, found := cache.Get(q)
	assert.True(t, found)
	assert.Equal(t, true, result)
}

func TestRecurrenceCache_KeyGeneration(t *testing.T) {
	cache := NewRecurrenceCache(DefaultCacheConfig)
	defer cache.Close()

	base := query("FREQ=DAILY;COUNT=5")
	baseKey := cache.generateCacheKey(base)

	withProp := func(name, value string, params ical.Params) CacheQuery {
		q := query("FREQ=DAILY;COUNT=5")
		prop := ical.NewProp(name)
		prop.Value = value
		if params != nil {
			prop.Params = params
		}
		q.Component.Props.Add(prop)
		return q
	}

	tests := []struct {
		name    string
		q       CacheQuery
		sameKey bool
	}{
		{name: "identical query", q: query("FREQ=DAILY;COUNT=5"), sameKey: true},
		{name: "different operation", q: func() CacheQuery { q := query("FREQ=DAILY;COUNT=5"); q.Operation = "other"; return q }(), sameKey: false},
		{name: "different RRULE", q: query("FREQ=WEEKLY;COUNT=5"), sameKey: false},
		{name: "different range start", q: func() CacheQuery { q := query("FREQ=DAILY;COUNT=5"); q.RangeStart = q.RangeStart.Add(-time.Hour); return q }(), sameKey: false},
		{name: "same instant in another location", q: func() CacheQuery {
			q := query("FREQ=DAILY;COUNT=5")
			q.RangeStart = q.RangeStart.In(time.FixedZone("X", 3600))
			return q
		}(), sameKey: true},
		{name: "different extra", q: func() CacheQuery { q := query("FREQ=DAILY;COUNT=5"); q.Extra = "limit=5"; return q }(), sameKey: false},
		{name: "with EXDATE", q: withProp(ical.PropExceptionDates, "20240102T100000Z", nil), sameKey: false},
		{name: "with RDATE", q: withProp(ical.PropRecurrenceDates, "20240108T100000Z", nil), sameKey: false},
		{name: "with parameter", q: withProp(ical.PropRecurrenceDates, "20240108", ical.Params{"VALUE": {"DATE"}}), sameKey: false},
		{name: "unrelated property ignored", q: withProp(ical.PropSummary, "Standup", nil), sameKey: true},
		{name: "nil component", q: CacheQuery{Operation: "test", RangeStart: base.RangeStart, RangeEnd: base.RangeEnd}, sameKey: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := cache.generateCacheKey(tt.q)
			if tt.sameKey {
				assert.Equal(t, baseKey, key)
			} else {
				assert.NotEqual(t, baseKey, key)
			}
		})
	}
}

func TestRecurrenceCache_DetailedCleanup(t *testing.T) {
	cache := NewRecurrenceCache(CacheConfig{
		TTL:             200 * time.Millisecond,
		MaxEntries:      10,
		CleanupInterval: 100 * time.Millisecond,
	})
	defer cache.Close()

	for i := 0; i < 5; i++ {
		cache.Set(query(fmt.Sprintf("FREQ=DAILY;COUNT=%d", i+1)), true)
	}
	assert.Equal(t, 5, cache.Stats().TotalEntries)

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 5, cache.Stats().TotalEntries, "entries should survive a cleanup before their TTL")

	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, 0, cache.Stats().TotalEntries, "expired entries should be removed by the cleanup loop")
}

func TestRecurrenceCache_CloseTwice(t *testing.T) {
	cache := NewRecurrenceCache(DefaultCacheConfig)
	cache.Set(query(""), true)

	cache.Close()
	assert.NotPanics(t, cache.Close)
	assert.Equal(t, 0, cache.Stats().TotalEntries)
}

func TestRecurrenceCache_NoCleanupInterval(t *testing.T) {
	cache := NewRecurrenceCache(CacheConfig{TTL: time.Minute})
	defer cache.Close()

	q := query("")
	cache.Set(q, true)
	_, found := cache.Get(q)
	assert.True(t, found)
}
