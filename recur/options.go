package recur

import (
	"io"
	"log/slog"

	"github.com/cyp0633/librecur/icaltime"
)

// Safety caps on open-ended searches.
const (
	// MaxMonthWalk bounds the months scanned for a BYDAY/BYMONTHDAY match.
	MaxMonthWalk = 48
	// MaxExpansionTries bounds consecutive candidates an Expansion may
	// discard before giving up.
	MaxExpansionTries = 500
	// MaxYearSearch bounds the years scanned for a YEARLY rule with no
	// matching days.
	MaxYearSearch = 1000
	// MaxStepsPerOccurrence bounds the frequency steps taken to find one
	// occurrence.
	MaxStepsPerOccurrence = 5_000_000
)

// Options configures iterators and expansions.
type Options struct {
	// Logger receives debug and warning records. Nil discards them.
	Logger *slog.Logger
	// Calendar memoizes weekday and week-number lookups. Nil uses a
	// shared process-wide cache.
	Calendar *icaltime.Calendar
	// Zones resolves TZIDs when restoring persisted state.
	Zones icaltime.ZoneLookup
}

var defaultCalendar = icaltime.NewCalendar(icaltime.NewSyncCache(1 << 16))

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.Calendar == nil {
		o.Calendar = defaultCalendar
	}
	return o
}
