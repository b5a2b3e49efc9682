package engine

import (
	"fmt"
	"time"

	"github.com/emersion/go-ical"

	"github.com/cyp0633/librecur/icalconv"
)

// TimeRange is a possibly open-ended query window. A nil bound is
// unbounded on that side.
type TimeRange struct {
	Start *time.Time
	End   *time.Time
}

var (
	minTime = time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)
	maxTime = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)
)

func (tr TimeRange) bounds() (time.Time, time.Time) {
	start, end := minTime, maxTime
	if tr.Start != nil {
		start = *tr.Start
	}
	if tr.End != nil {
		end = *tr.End
	}
	return start, end
}

// MatchTimeRange returns the VEVENT and VTODO children of cal with at
// least one occurrence overlapping tr. VTIMEZONE definitions of cal are
// used to resolve TZID parameters.
func (e *Engine) MatchTimeRange(cal *ical.Calendar, tr TimeRange) ([]*ical.Component, error) {
	if cal == nil {
		return nil, fmt.Errorf("nil calendar")
	}
	zones, err := icalconv.ZonesFromCalendar(cal)
	if err != nil {
		return nil, err
	}
	start, end := tr.bounds()

	var matched []*ical.Component
	for _, child := range cal.Children {
		if child.Name != ical.CompEvent && child.Name != ical.CompToDo {
			continue
		}
		ok, err := e.HasOccurrenceInRange(child, zones, start, end)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", child.Name, componentUID(child), err)
		}
		if ok {
			matched = append(matched, child)
		}
	}
	return matched, nil
}

func componentUID(comp *ical.Component) string {
	if prop := comp.Props.Get(ical.PropUID); prop != nil {
		return prop.Value
	}
	return "(no UID)"
}
