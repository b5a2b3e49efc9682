package icaltime

import (
	"fmt"
	"strings"
)

// TimeData is the field-level record form of a Time, used when iterator
// state is persisted.
type TimeData struct {
	Year     int    `json:"year" yaml:"year"`
	Month    int    `json:"month" yaml:"month"`
	Day      int    `json:"day" yaml:"day"`
	Hour     int    `json:"hour,omitempty" yaml:"hour,omitempty"`
	Minute   int    `json:"minute,omitempty" yaml:"minute,omitempty"`
	Second   int    `json:"second,omitempty" yaml:"second,omitempty"`
	IsDate   bool   `json:"isDate,omitempty" yaml:"isDate,omitempty"`
	Timezone string `json:"timezone,omitempty" yaml:"timezone,omitempty"`
}

// ZoneLookup resolves a TZID to a zone.
type ZoneLookup func(tzid string) (*Timezone, bool)

// Data returns the normalized fields of t.
func (t Time) Data() TimeData {
	n := t.normalized()
	d := TimeData{
		Year: n.year, Month: n.month, Day: n.day,
		Hour: n.hour, Minute: n.minute, Second: n.second,
		IsDate: n.isDate,
	}
	switch z := n.Zone(); z.kind {
	case zoneFloating:
	case zoneUTC:
		d.Timezone = "Z"
	default:
		d.Timezone = z.tzid
	}
	return d
}

// FromData rebuilds a Time. Named zones other than UTC and fixed offsets
// are resolved through lookup.
func FromData(d TimeData, lookup ZoneLookup) (Time, error) {
	zone, err := resolveZone(d.Timezone, lookup)
	if err != nil {
		return Time{}, err
	}
	t := Time{
		year: d.Year, month: d.Month, day: d.Day,
		hour: d.Hour, minute: d.Minute, second: d.Second,
		isDate: d.IsDate, zone: zone,
	}
	t.Normalize()
	return t, nil
}

func resolveZone(tzid string, lookup ZoneLookup) (*Timezone, error) {
	switch {
	case tzid == "" || tzid == Floating.tzid:
		return Floating, nil
	case tzid == "Z" || strings.EqualFold(tzid, "UTC"):
		return UTC, nil
	case tzid[0] == '+' || tzid[0] == '-':
		off, err := ParseUtcOffset(tzid)
		if err != nil {
			return nil, err
		}
		return FixedZone(off), nil
	}
	if lookup != nil {
		if z, ok := lookup(tzid); ok && z != nil {
			return z, nil
		}
	}
	return nil, fmt.Errorf("%w: unknown timezone %q", ErrInvalidFormat, tzid)
}
