package engine

import (
	"time"

	"github.com/cyp0633/librecur/icaltime"
)

// Occurrence represents a single occurrence of an event in time
type Occurrence struct {
	Start time.Time     // Start instant of this occurrence
	End   time.Time     // End instant of this occurrence
	Local icaltime.Time // Start as written in the component's own zone
}

// ExpansionOptions controls how recurrence expansion behaves
type ExpansionOptions struct {
	MaxOccurrences    int           // Maximum number of occurrences to return (0 = engine default)
	MaxTimeSpan       time.Duration // Maximum time span to expand (0 = engine default)
	IncludeExceptions bool          // Whether overridden instances (RECURRENCE-ID) are expanded
}

// DefaultExpansionOptions provides sensible defaults for expansion
var DefaultExpansionOptions = ExpansionOptions{
	MaxOccurrences:    1000,
	MaxTimeSpan:       365 * 24 * time.Hour * 2, // 2 years
	IncludeExceptions: true,
}
