// Package icalconv turns go-ical components into recurrence inputs: time
// zones from VTIMEZONE, and series (DTSTART, RRULE, RDATE, EXDATE) from
// VEVENT or VTODO.
package icalconv

import (
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-ical"

	"github.com/cyp0633/librecur/icaltime"
	"github.com/cyp0633/librecur/recur"
)

const (
	paramTZID  = "TZID"
	paramValue = "VALUE"

	valueDate   = "DATE"
	valuePeriod = "PERIOD"

	compStandard = "STANDARD"
	compDaylight = "DAYLIGHT"

	propOffsetFrom   = "TZOFFSETFROM"
	propOffsetTo     = "TZOFFSETTO"
	propRecurrenceID = "RECURRENCE-ID"
)

// ZoneSet maps TZIDs to decoded zones.
type ZoneSet map[string]*icaltime.Timezone

// Lookup resolves a TZID. It satisfies icaltime.ZoneLookup.
func (zs ZoneSet) Lookup(tzid string) (*icaltime.Timezone, bool) {
	z, ok := zs[tzid]
	return z, ok
}

// Decode reads an iCalendar stream and decodes its VTIMEZONE components.
func Decode(r io.Reader) (*ical.Calendar, ZoneSet, error) {
	cal, err := ical.NewDecoder(r).Decode()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode calendar: %w", err)
	}
	zones, err := ZonesFromCalendar(cal)
	if err != nil {
		return nil, nil, err
	}
	return cal, zones, nil
}

// ZonesFromCalendar decodes every VTIMEZONE in cal.
func ZonesFromCalendar(cal *ical.Calendar) (ZoneSet, error) {
	zones := ZoneSet{}
	if cal == nil {
		return zones, nil
	}
	for _, child := range cal.Children {
		if child.Name != ical.CompTimezone {
			continue
		}
		z, err := TimezoneFromComponent(child)
		if err != nil {
			return nil, err
		}
		zones[z.TZID()] = z
	}
	return zones, nil
}

// TimezoneFromComponent decodes one VTIMEZONE. Observance start times and
// RDATEs are read as local wall-clock time.
func TimezoneFromComponent(comp *ical.Component) (*icaltime.Timezone, error) {
	tzidProp := comp.Props.Get(ical.PropTimezoneID)
	if tzidProp == nil || tzidProp.Value == "" {
		return nil, fmt.Errorf("VTIMEZONE without TZID")
	}
	tzid := tzidProp.Value

	var rules []icaltime.ZoneRule
	for _, child := range comp.Children {
		if child.Name != compStandard && child.Name != compDaylight {
			continue
		}
		rule, err := zoneRule(child)
		if err != nil {
			return nil, fmt.Errorf("timezone %s: %w", tzid, err)
		}
		rules = append(rules, rule)
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("timezone %s has no observances", tzid)
	}
	return icaltime.NewTimezone(tzid, rules), nil
}

func zoneRule(comp *ical.Component) (icaltime.ZoneRule, error) {
	rule := icaltime.ZoneRule{Daylight: comp.Name == compDaylight}

	start := comp.Props.Get(ical.PropDateTimeStart)
	if start == nil {
		return rule, fmt.Errorf("%s without DTSTART", comp.Name)
	}
	var err error
	if rule.Start, err = ParseTime(start, nil); err != nil {
		return rule, err
	}
	if rule.OffsetFrom, err = offset(comp, propOffsetFrom); err != nil {
		return rule, err
	}
	if rule.OffsetTo, err = offset(comp, propOffsetTo); err != nil {
		return rule, err
	}
	if rule.RDates, err = ParseTimeList(comp.Props[ical.PropRecurrenceDates], nil); err != nil {
		return rule, err
	}
	if prop := comp.Props.Get(ical.PropRecurrenceRule); prop != nil {
		r, err := recur.ParseRecur(prop.Value)
		if err != nil {
			return rule, fmt.Errorf("%s RRULE: %w", comp.Name, err)
		}
		rule.Recurrence = r
	}
	return rule, nil
}

func offset(comp *ical.Component, name string) (icaltime.UtcOffset, error) {
	prop := comp.Props.Get(name)
	if prop == nil {
		return icaltime.UtcOffset{}, fmt.Errorf("%s without %s", comp.Name, name)
	}
	return icaltime.ParseUtcOffset(prop.Value)
}

// ParseTime decodes a DATE or DATE-TIME property. A TZID parameter is
// resolved through zones; an unknown TZID is an error.
func ParseTime(prop *ical.Prop, zones ZoneSet) (icaltime.Time, error) {
	if prop == nil {
		return icaltime.Time{}, fmt.Errorf("missing date-time property")
	}
	zone, err := propZone(prop, zones)
	if err != nil {
		return icaltime.Time{}, err
	}
	return parseValue(strings.TrimSpace(prop.Value), prop, zone)
}

// ParseTimeList decodes every value of a multi-valued RDATE or EXDATE.
// PERIOD values contribute their start.
func ParseTimeList(props []ical.Prop, zones ZoneSet) ([]icaltime.Time, error) {
	var out []icaltime.Time
	for i := range props {
		prop := &props[i]
		zone, err := propZone(prop, zones)
		if err != nil {
			return nil, err
		}
		for _, v := range strings.Split(prop.Value, ",") {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			if strings.EqualFold(prop.Params.Get(paramValue), valuePeriod) || strings.Contains(v, "/") {
				v, _, _ = strings.Cut(v, "/")
			}
			t, err := parseValue(v, prop, zone)
			if err != nil {
				return nil, err
			}
			out = append(out, t)
		}
	}
	return out, nil
}

func propZone(prop *ical.Prop, zones ZoneSet) (*icaltime.Timezone, error) {
	tzid := prop.Params.Get(paramTZID)
	if tzid == "" {
		return nil, nil
	}
	if z, ok := zones.Lookup(tzid); ok {
		return z, nil
	}
	return nil, fmt.Errorf("%s: unknown TZID %q", prop.Name, tzid)
}

func parseValue(v string, prop *ical.Prop, zone *icaltime.Timezone) (icaltime.Time, error) {
	if strings.EqualFold(prop.Params.Get(paramValue), valueDate) && len(v) != 8 {
		return icaltime.Time{}, fmt.Errorf("%s: %q is not a DATE", prop.Name, v)
	}
	t, err := icaltime.FromICALString(v, zone)
	if err != nil {
		return icaltime.Time{}, fmt.Errorf("%s: %w", prop.Name, err)
	}
	return t, nil
}
