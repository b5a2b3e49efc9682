package icaltime

import (
	"fmt"
	"sort"
	"sync"
)

// ExtraCoverageYears is how far past the requested year a zone's change
// table is expanded.
const ExtraCoverageYears = 5

type zoneKind int

const (
	zoneFloating zoneKind = iota
	zoneUTC
	zoneFixed
	zoneTable
)

// TransitionRule produces the local start times of a recurring zone
// observance. utcShift is the offset in effect before each transition and
// is used to move a UTC UNTIL bound into local time.
type TransitionRule interface {
	Transitions(start Time, utcShift int) (func() (Time, bool, error), error)
}

// ZoneRule is one STANDARD or DAYLIGHT observance of a zone.
type ZoneRule struct {
	Daylight   bool
	Start      Time
	OffsetFrom UtcOffset
	OffsetTo   UtcOffset
	RDates     []Time
	Recurrence TransitionRule
}

// Change is one offset transition. The date fields hold the UTC instant at
// which UTCOffset takes effect.
type Change struct {
	Year, Month, Day     int
	Hour, Minute, Second int
	UTCOffset            int
	PrevUTCOffset        int
	Daylight             bool
}

func (c *Change) adjust(seconds int) {
	t := Time{year: c.Year, month: c.Month, day: c.Day, hour: c.Hour, minute: c.Minute, second: c.Second}
	t.adjust(0, 0, 0, seconds)
	c.Year, c.Month, c.Day = t.year, t.month, t.day
	c.Hour, c.Minute, c.Second = t.hour, t.minute, t.second
}

func changeFromTime(t Time, base Change) Change {
	n := t.normalized()
	base.Year, base.Month, base.Day = n.year, n.month, n.day
	base.Hour, base.Minute, base.Second = n.hour, n.minute, n.second
	return base
}

func compareChange(a, b Change) int {
	ka := [6]int{a.Year, a.Month, a.Day, a.Hour, a.Minute, a.Second}
	kb := [6]int{b.Year, b.Month, b.Day, b.Hour, b.Minute, b.Second}
	for i := range ka {
		switch {
		case ka[i] < kb[i]:
			return -1
		case ka[i] > kb[i]:
			return 1
		}
	}
	return 0
}

// Timezone resolves UTC offsets for local times. Named zones hold a change
// table that is expanded lazily from their rules and is safe for concurrent
// use.
type Timezone struct {
	tzid  string
	kind  zoneKind
	fixed int

	mu            sync.Mutex
	rules         []ZoneRule
	changes       []Change
	expandedUntil int
	expanded      bool
	err           error
}

var (
	// UTC is the zero-offset zone.
	UTC = &Timezone{tzid: "UTC", kind: zoneUTC}
	// Floating marks local times that are not bound to any zone.
	Floating = &Timezone{tzid: "floating", kind: zoneFloating}
)

// FixedZone returns a zone with a constant offset.
func FixedZone(offset UtcOffset) *Timezone {
	return &Timezone{tzid: offset.String(), kind: zoneFixed, fixed: offset.ToSeconds()}
}

// NewTimezone returns a named zone whose changes are expanded from rules on
// demand.
func NewTimezone(tzid string, rules []ZoneRule) *Timezone {
	return &Timezone{tzid: tzid, kind: zoneTable, rules: rules}
}

// NewTimezoneFromChanges returns a named zone backed by a fixed change
// table.
func NewTimezoneFromChanges(tzid string, changes []Change) *Timezone {
	cs := append([]Change(nil), changes...)
	sort.SliceStable(cs, func(i, j int) bool { return compareChange(cs[i], cs[j]) < 0 })
	return &Timezone{tzid: tzid, kind: zoneTable, changes: cs, expanded: true, expandedUntil: maxCoverageYear}
}

const maxCoverageYear = 1<<31 - 1

// TZID returns the zone identifier.
func (z *Timezone) TZID() string {
	if z == nil {
		return Floating.tzid
	}
	return z.tzid
}

func (z *Timezone) String() string {
	return z.TZID()
}

// Err returns the first error met while expanding the zone's rules.
func (z *Timezone) Err() error {
	if z == nil || z.kind != zoneTable {
		return nil
	}
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.err
}

// Changes returns a copy of the change table expanded through year.
func (z *Timezone) Changes(year int) []Change {
	if z == nil || z.kind != zoneTable {
		return nil
	}
	z.mu.Lock()
	defer z.mu.Unlock()
	z.ensureCoverage(year)
	return append([]Change(nil), z.changes...)
}

// UTCOffsetAt returns the offset in seconds in effect at the local time t.
// When t falls in a repeated hour the standard-time offset wins.
func (z *Timezone) UTCOffsetAt(t Time) int {
	if z == nil {
		return 0
	}
	switch z.kind {
	case zoneFloating, zoneUTC:
		return 0
	case zoneFixed:
		return z.fixed
	}

	z.mu.Lock()
	defer z.mu.Unlock()

	n := t.normalized()
	z.ensureCoverage(n.year)
	if len(z.changes) == 0 {
		return 0
	}

	query := changeFromTime(n, Change{})
	idx := sort.Search(len(z.changes), func(i int) bool {
		return compareChange(z.changes[i], query) >= 0
	})
	if idx >= len(z.changes) {
		idx = len(z.changes) - 1
	}

	candidate := -1
	step := 1
	for {
		c := z.changes[idx]
		if c.UTCOffset < c.PrevUTCOffset {
			c.adjust(c.UTCOffset)
		} else {
			c.adjust(c.PrevUTCOffset)
		}
		if compareChange(query, c) >= 0 {
			candidate = idx
		} else {
			step = -1
		}
		if step == -1 && candidate != -1 {
			break
		}
		idx += step
		if idx < 0 {
			return z.changes[0].PrevUTCOffset
		}
		if idx >= len(z.changes) {
			break
		}
	}

	change := z.changes[candidate]
	delta := change.UTCOffset - change.PrevUTCOffset
	if delta < 0 && candidate > 0 {
		prev := change
		prev.adjust(prev.PrevUTCOffset)
		if compareChange(query, prev) < 0 {
			before := z.changes[candidate-1]
			if change.Daylight && !before.Daylight {
				change = before
			}
		}
	}
	return change.UTCOffset
}

// ensureCoverage expands the rules through year plus ExtraCoverageYears.
// The caller holds z.mu.
func (z *Timezone) ensureCoverage(year int) {
	if z.expanded && z.expandedUntil >= year {
		return
	}
	if len(z.rules) == 0 {
		z.expanded = true
		z.expandedUntil = maxCoverageYear
		return
	}
	end := year + ExtraCoverageYears
	var changes []Change
	for _, rule := range z.rules {
		var err error
		changes, err = expandRule(rule, end, changes)
		if err != nil && z.err == nil {
			z.err = fmt.Errorf("timezone %s: %w", z.tzid, err)
		}
	}
	sort.SliceStable(changes, func(i, j int) bool { return compareChange(changes[i], changes[j]) < 0 })
	z.changes = changes
	z.expandedUntil = end
	z.expanded = true
}

func expandRule(rule ZoneRule, endYear int, changes []Change) ([]Change, error) {
	base := Change{
		Daylight:      rule.Daylight,
		UTCOffset:     rule.OffsetTo.ToSeconds(),
		PrevUTCOffset: rule.OffsetFrom.ToSeconds(),
	}
	start := rule.Start.normalized()

	if rule.Recurrence == nil && len(rule.RDates) == 0 {
		c := changeFromTime(start, base)
		c.adjust(-c.PrevUTCOffset)
		return append(changes, c), nil
	}

	for _, rdate := range rule.RDates {
		r := rdate.normalized()
		if r.isDate {
			r.hour, r.minute, r.second = start.hour, start.minute, start.second
		}
		c := changeFromTime(r, base)
		if rdate.Zone() != UTC {
			c.adjust(-c.PrevUTCOffset)
		}
		changes = append(changes, c)
	}

	if rule.Recurrence == nil {
		return changes, nil
	}
	next, err := rule.Recurrence.Transitions(start, base.PrevUTCOffset)
	if err != nil {
		return changes, err
	}
	for {
		occ, ok, err := next()
		if err != nil {
			return changes, err
		}
		if !ok || occ.Year() > endYear {
			return changes, nil
		}
		c := changeFromTime(occ, base)
		c.adjust(-c.PrevUTCOffset)
		changes = append(changes, c)
	}
}
