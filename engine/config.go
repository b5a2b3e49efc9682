package engine

import (
	"io"
	"log/slog"
	"time"

	"github.com/cyp0633/librecur/icaltime"
)

// EngineConfig holds configuration options for the recurrence engine
type EngineConfig struct {
	// Logger receives warnings when a query is clamped or capped. Nil discards them.
	Logger *slog.Logger

	// Cache configuration
	CacheEnabled bool
	CacheConfig  CacheConfig

	// Performance tuning
	MaxExpansionOccurrences int           // Default cap on occurrences returned by Expand
	MaxScannedOccurrences   int           // Candidates examined per query before giving up
	LargeRangeThreshold     time.Duration // Threshold for "large" time ranges that get limited expansion
	LargeRangeLimit         time.Duration // Limit for expansion when range exceeds threshold

	// CalendarCacheSize bounds the weekday/week-number memo shared by iterators.
	CalendarCacheSize int
}

// DefaultEngineConfig provides sensible defaults for production use
var DefaultEngineConfig = EngineConfig{
	CacheEnabled: true,
	CacheConfig:  DefaultCacheConfig,

	MaxExpansionOccurrences: 100,
	MaxScannedOccurrences:   100_000,
	LargeRangeThreshold:     90 * 24 * time.Hour, // 90 days
	LargeRangeLimit:         90 * 24 * time.Hour, // Limit to 90 days expansion
	CalendarCacheSize:       1 << 14,
}

// HighPerformanceConfig is optimized for high-traffic scenarios
var HighPerformanceConfig = EngineConfig{
	CacheEnabled: true,
	CacheConfig: CacheConfig{
		TTL:             30 * time.Minute, // Longer cache TTL
		MaxEntries:      5000,             // More cache entries
		CleanupInterval: 10 * time.Minute, // Less frequent cleanup
	},

	MaxExpansionOccurrences: 50,                  // Fewer occurrences returned for speed
	MaxScannedOccurrences:   20_000,              // Give up sooner on sparse rules
	LargeRangeThreshold:     30 * 24 * time.Hour, // Shorter threshold
	LargeRangeLimit:         30 * 24 * time.Hour, // Shorter limit
	CalendarCacheSize:       1 << 16,
}

// LowMemoryConfig is optimized for memory-constrained environments
var LowMemoryConfig = EngineConfig{
	CacheEnabled: true,
	CacheConfig: CacheConfig{
		TTL:             5 * time.Minute, // Shorter cache TTL
		MaxEntries:      100,             // Fewer cache entries
		CleanupInterval: 2 * time.Minute, // More frequent cleanup
	},

	MaxExpansionOccurrences: 200,                  // More thorough checking
	MaxScannedOccurrences:   100_000,              // Same scan budget as the default
	LargeRangeThreshold:     180 * 24 * time.Hour, // Longer threshold
	LargeRangeLimit:         180 * 24 * time.Hour, // Longer limit
	CalendarCacheSize:       1 << 10,
}

// DisabledCacheConfig turns off caching entirely
var DisabledCacheConfig = EngineConfig{
	CacheEnabled: false,
	CacheConfig:  CacheConfig{}, // Not used

	MaxExpansionOccurrences: 1000,                 // More thorough without cache
	MaxScannedOccurrences:   500_000,              // Larger scan budget
	LargeRangeThreshold:     365 * 24 * time.Hour, // Very long threshold
	LargeRangeLimit:         365 * 24 * time.Hour, // Very long limit
}

// NewEngineWithConfig creates a new recurrence engine with custom configuration
func NewEngineWithConfig(config EngineConfig) *Engine {
	var cache *RecurrenceCache
	if config.CacheEnabled {
		cache = NewRecurrenceCache(config.CacheConfig)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var calCache icaltime.Cache = icaltime.NopCache
	if config.CalendarCacheSize > 0 {
		calCache = icaltime.NewSyncCache(config.CalendarCacheSize)
	}

	return &Engine{
		cache:    cache,
		config:   config,
		logger:   logger,
		calendar: icaltime.NewCalendar(calCache),
	}
}
