package icalconv

import (
	"fmt"

	"github.com/emersion/go-ical"

	"github.com/cyp0633/librecur/icaltime"
	"github.com/cyp0633/librecur/recur"
)

// Series is the recurrence data of one VEVENT or VTODO.
type Series struct {
	Start    icaltime.Time
	Duration icaltime.Duration
	Input    recur.ExpansionInput
}

// ExtractSeries reads DTSTART, the duration and the recurrence properties
// of comp. A VTODO without DTSTART is anchored at its DUE.
func ExtractSeries(comp *ical.Component, zones ZoneSet) (*Series, error) {
	if comp == nil {
		return nil, fmt.Errorf("nil component")
	}
	s := &Series{}

	startProp := comp.Props.Get(ical.PropDateTimeStart)
	dueProp := comp.Props.Get(ical.PropDue)
	switch {
	case startProp != nil:
		start, err := ParseTime(startProp, zones)
		if err != nil {
			return nil, err
		}
		s.Start = start
		if err := s.readDuration(comp, zones); err != nil {
			return nil, err
		}
	case comp.Name == ical.CompToDo && dueProp != nil:
		due, err := ParseTime(dueProp, zones)
		if err != nil {
			return nil, err
		}
		s.Start = due
	default:
		return nil, fmt.Errorf("%s without DTSTART", comp.Name)
	}

	s.Input.Start = s.Start
	for _, prop := range comp.Props[ical.PropRecurrenceRule] {
		parts, err := recur.ParseRuleParts(prop.Value)
		if err != nil {
			return nil, fmt.Errorf("RRULE: %w", err)
		}
		s.Input.Rules = append(s.Input.Rules, recur.RawRule(parts))
	}
	var err error
	if s.Input.RDates, err = ParseTimeList(comp.Props[ical.PropRecurrenceDates], zones); err != nil {
		return nil, err
	}
	if s.Input.ExDates, err = ParseTimeList(comp.Props[ical.PropExceptionDates], zones); err != nil {
		return nil, err
	}
	s.Input.HasRecurrenceID = comp.Props.Get(propRecurrenceID) != nil
	return s, nil
}

// readDuration takes the length from DTEND, then DURATION, then DUE for
// a VTODO. Without any, all-day entries last one day and timed ones are
// instantaneous.
func (s *Series) readDuration(comp *ical.Component, zones ZoneSet) error {
	if prop := comp.Props.Get(ical.PropDateTimeEnd); prop != nil {
		end, err := ParseTime(prop, zones)
		if err != nil {
			return err
		}
		s.Duration = span(s.Start, end)
		if s.Start.IsDate() && s.Duration.ToSeconds() <= 0 {
			s.Duration = icaltime.Duration{Days: 1}
		}
		return nil
	}
	if prop := comp.Props.Get(ical.PropDuration); prop != nil {
		d, err := icaltime.ParseDuration(prop.Value)
		if err != nil {
			return fmt.Errorf("DURATION: %w", err)
		}
		s.Duration = d
		return nil
	}
	if prop := comp.Props.Get(ical.PropDue); prop != nil && comp.Name == ical.CompToDo {
		due, err := ParseTime(prop, zones)
		if err != nil {
			return err
		}
		if due.Compare(s.Start) > 0 {
			s.Duration = span(s.Start, due)
		}
		return nil
	}
	if s.Start.IsDate() {
		s.Duration = icaltime.Duration{Days: 1}
	}
	return nil
}

// span measures start to end in wall-clock fields when both share a zone,
// matching how End adds the duration back. Across zones only the absolute
// difference is meaningful.
func span(start, end icaltime.Time) icaltime.Duration {
	if start.Zone().TZID() == end.Zone().TZID() {
		return end.SubtractDate(start)
	}
	return end.SubtractDateTz(start)
}

// End returns the end of the occurrence starting at start.
func (s *Series) End(start icaltime.Time) icaltime.Time {
	end := start
	end.AddDuration(s.Duration)
	end.Normalize()
	return end
}

// Expansion starts the merged occurrence sequence of the series.
func (s *Series) Expansion(opts recur.Options) (*recur.Expansion, error) {
	return recur.NewExpansion(s.Input, opts)
}
