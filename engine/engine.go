package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/emersion/go-ical"

	"github.com/cyp0633/librecur/icalconv"
	"github.com/cyp0633/librecur/icaltime"
	"github.com/cyp0633/librecur/recur"
)

const (
	opHasOccurrence = "has_occurrence"
	opExpand        = "expand"
)

// Engine answers range queries over recurring VEVENT and VTODO components.
type Engine struct {
	cache    *RecurrenceCache
	config   EngineConfig
	logger   *slog.Logger
	calendar *icaltime.Calendar
}

// NewEngine creates a new recurrence engine with the default configuration
func NewEngine() *Engine {
	return NewEngineWithConfig(DefaultEngineConfig)
}

// NewEngineWithoutCache creates an engine that recomputes every query
func NewEngineWithoutCache() *Engine {
	return NewEngineWithConfig(DisabledCacheConfig)
}

// Close releases the result cache, if any.
func (e *Engine) Close() {
	if e.cache != nil {
		e.cache.Close()
	}
}

// CacheStats reports the result cache counters. The zero value is
// returned when caching is disabled.
func (e *Engine) CacheStats() CacheStats {
	if e.cache == nil {
		return CacheStats{}
	}
	return e.cache.Stats()
}

// HasOccurrenceInRange reports whether any occurrence of comp overlaps
// [rangeStart, rangeEnd]. The scan stops at the first match.
func (e *Engine) HasOccurrenceInRange(comp *ical.Component, zones icalconv.ZoneSet, rangeStart, rangeEnd time.Time) (bool, error) {
	q := CacheQuery{Operation: opHasOccurrence, Component: comp, Zones: zones, RangeStart: rangeStart, RangeEnd: rangeEnd}
	if e.cache != nil {
		if v, ok := e.cache.Get(q); ok {
			return v.(bool), nil
		}
	}

	found := false
	err := e.scan(comp, zones, rangeStart, rangeEnd, func(Occurrence) bool {
		found = true
		return false
	})
	if err != nil {
		return false, fmt.Errorf("failed to check occurrences: %w", err)
	}

	if e.cache != nil {
		e.cache.Set(q, found)
	}
	return found, nil
}

// Expand lists the occurrences of comp overlapping [rangeStart, rangeEnd]
// in ascending order. Zero fields of opts fall back to the engine
// configuration.
func (e *Engine) Expand(comp *ical.Component, zones icalconv.ZoneSet, rangeStart, rangeEnd time.Time, opts ExpansionOptions) ([]Occurrence, error) {
	if !opts.IncludeExceptions && comp != nil && comp.Props.Get("RECURRENCE-ID") != nil {
		return nil, nil
	}

	limit := opts.MaxOccurrences
	if limit <= 0 {
		limit = e.config.MaxExpansionOccurrences
	}
	rangeEnd = e.limitRange(rangeStart, rangeEnd, opts.MaxTimeSpan)

	q := CacheQuery{
		Operation:  opExpand,
		Component:  comp,
		Zones:      zones,
		RangeStart: rangeStart,
		RangeEnd:   rangeEnd,
		Extra:      fmt.Sprintf("limit=%d", limit),
	}
	if e.cache != nil {
		if v, ok := e.cache.Get(q); ok {
			return append([]Occurrence(nil), v.([]Occurrence)...), nil
		}
	}

	var out []Occurrence
	err := e.scan(comp, zones, rangeStart, rangeEnd, func(o Occurrence) bool {
		out = append(out, o)
		if limit > 0 && len(out) >= limit {
			e.logger.Warn("expansion capped", "limit", limit, "last", o.Local.String())
			return false
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to expand occurrences: %w", err)
	}

	if e.cache != nil {
		e.cache.Set(q, append([]Occurrence(nil), out...))
	}
	return out, nil
}

// limitRange clamps rangeEnd to maxSpan, or to LargeRangeLimit when the
// range exceeds LargeRangeThreshold and no explicit span was requested.
func (e *Engine) limitRange(rangeStart, rangeEnd time.Time, maxSpan time.Duration) time.Time {
	span := rangeEnd.Sub(rangeStart)
	switch {
	case maxSpan > 0 && span > maxSpan:
		e.logger.Warn("expansion range clamped", "span", span, "limit", maxSpan)
		return rangeStart.Add(maxSpan)
	case maxSpan <= 0 && e.config.LargeRangeThreshold > 0 && span > e.config.LargeRangeThreshold:
		e.logger.Warn("large expansion range limited", "span", span, "limit", e.config.LargeRangeLimit)
		return rangeStart.Add(e.config.LargeRangeLimit)
	}
	return rangeEnd
}

// scan walks the occurrences of comp in order and calls visit for each one
// overlapping the range, using start <= rangeEnd && end >= rangeStart.
// visit returns false to stop early.
func (e *Engine) scan(comp *ical.Component, zones icalconv.ZoneSet, rangeStart, rangeEnd time.Time, visit func(Occurrence) bool) error {
	series, err := icalconv.ExtractSeries(comp, zones)
	if err != nil {
		return err
	}
	exp, err := series.Expansion(recur.Options{
		Logger:   e.logger,
		Calendar: e.calendar,
		Zones:    zones.Lookup,
	})
	if err != nil {
		return err
	}

	for scanned := 0; ; scanned++ {
		if budget := e.config.MaxScannedOccurrences; budget > 0 && scanned >= budget {
			e.logger.Warn("occurrence scan capped", "scanned", scanned, "last", exp.Last().String())
			return nil
		}
		next, err := exp.Next()
		if errors.Is(err, recur.Done) {
			return nil
		}
		if err != nil {
			return err
		}

		start := next.GoTime()
		if start.After(rangeEnd) {
			return nil
		}
		end := series.End(next).GoTime()
		if end.Before(rangeStart) {
			continue
		}
		if !visit(Occurrence{Start: start, End: end, Local: next}) {
			return nil
		}
	}
}
