// Package icaltime implements iCalendar date-time values with lazy
// normalization, durations, UTC offsets and timezone offset resolution.
package icaltime

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrInvalidFormat is returned when a textual value cannot be parsed.
var ErrInvalidFormat = errors.New("invalid format")

// Time is a calendar date or date-time bound to an optional zone.
//
// Fields may be set out of range through the setters. The value is marked
// dirty and normalized on the next read, so arithmetic can be chained
// without intermediate carries. Getters never modify the receiver; call
// Normalize to fold the carries into the stored fields.
type Time struct {
	year, month, day     int
	hour, minute, second int
	isDate               bool
	zone                 *Timezone
	dirty                bool
}

// Date returns a date-only value with no zone.
func Date(year, month, day int) Time {
	t := Time{year: year, month: month, day: day, isDate: true, zone: Floating}
	t.Normalize()
	return t
}

// DateTime returns a date-time value. A nil zone means floating time.
func DateTime(year, month, day, hour, minute, second int, zone *Timezone) Time {
	if zone == nil {
		zone = Floating
	}
	t := Time{year: year, month: month, day: day, hour: hour, minute: minute, second: second, zone: zone}
	t.Normalize()
	return t
}

// FromDayOfYear returns the date for a 1-based ordinal in year. Ordinals
// outside the year roll into the neighbouring years.
func FromDayOfYear(doy, year int) Time {
	t := Time{year: year, month: 1, day: doy, isDate: true, zone: Floating}
	t.Normalize()
	return t
}

// FromUnix returns the UTC date-time for seconds since the epoch.
func FromUnix(secs int64) Time {
	days := secs / 86400
	rem := secs % 86400
	if rem < 0 {
		rem += 86400
		days--
	}
	y, m, d := civilFromDays(days)
	return Time{
		year: y, month: m, day: d,
		hour: int(rem / 3600), minute: int(rem % 3600 / 60), second: int(rem % 60),
		zone: UTC,
	}
}

// FromGoTime copies the wall clock of t into a date-time bound to zone.
func FromGoTime(t time.Time, zone *Timezone) Time {
	return DateTime(t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second(), zone)
}

// GoTime returns the absolute instant of t in UTC.
func (t Time) GoTime() time.Time {
	return time.Unix(t.Unix(), 0).UTC()
}

func (t Time) normalized() Time {
	if t.dirty {
		t.Normalize()
	}
	return t
}

// Normalize folds out-of-range fields into canonical form.
func (t *Time) Normalize() {
	if t.isDate {
		t.hour, t.minute, t.second = 0, 0, 0
	}
	t.adjust(0, 0, 0, 0)
	t.dirty = false
}

// adjust adds the given amounts and carries overflow into larger units.
func (t *Time) adjust(extraDays, extraHours, extraMinutes, extraSeconds int) {
	daysOverflow := 0
	if !t.isDate {
		second := t.second + extraSeconds
		t.second = floorMod(second, 60)
		minute := t.minute + extraMinutes + floorDiv(second, 60)
		t.minute = floorMod(minute, 60)
		hour := t.hour + extraHours + floorDiv(minute, 60)
		t.hour = floorMod(hour, 24)
		daysOverflow = floorDiv(hour, 24)
	}

	yearsOverflow := floorDiv(t.month-1, 12)
	t.year += yearsOverflow
	t.month -= 12 * yearsOverflow

	day := t.day + extraDays + daysOverflow
	if day > 0 {
		for {
			dim := DaysInMonth(t.month, t.year)
			if day <= dim {
				break
			}
			day -= dim
			t.month++
			if t.month > 12 {
				t.year++
				t.month = 1
			}
		}
	} else {
		for day <= 0 {
			if t.month == 1 {
				t.year--
				t.month = 12
			} else {
				t.month--
			}
			day += DaysInMonth(t.month, t.year)
		}
	}
	t.day = day
}

// Adjust adds the given amounts and normalizes immediately.
func (t *Time) Adjust(days, hours, minutes, seconds int) {
	if t.dirty {
		t.Normalize()
	}
	t.adjust(days, hours, minutes, seconds)
}

// AddDays shifts the date by n days and normalizes.
func (t *Time) AddDays(n int) {
	t.Adjust(n, 0, 0, 0)
}

// AddDuration adds d to the fields without normalizing. The next read
// carries the overflow.
func (t *Time) AddDuration(d Duration) {
	mult := 1
	if d.Negative {
		mult = -1
	}
	n := t.normalized()
	t.second = n.second + mult*d.Seconds
	t.minute = n.minute + mult*d.Minutes
	t.hour = n.hour + mult*d.Hours
	t.day = n.day + mult*(d.Days+7*d.Weeks)
	t.month, t.year = n.month, n.year
	t.dirty = true
}

func (t Time) Year() int   { return t.normalized().year }
func (t Time) Month() int  { return t.normalized().month }
func (t Time) Day() int    { return t.normalized().day }
func (t Time) Hour() int   { return t.normalized().hour }
func (t Time) Minute() int { return t.normalized().minute }
func (t Time) Second() int { return t.normalized().second }

// IsDate reports whether t carries no time of day.
func (t Time) IsDate() bool { return t.isDate }

// Zone returns the zone t is bound to. It is never nil.
func (t Time) Zone() *Timezone {
	if t.zone == nil {
		return Floating
	}
	return t.zone
}

// IsZero reports whether t is the zero value.
func (t Time) IsZero() bool {
	return t == Time{}
}

func (t *Time) SetYear(v int)   { t.year = v; t.dirty = true }
func (t *Time) SetMonth(v int)  { t.month = v; t.dirty = true }
func (t *Time) SetDay(v int)    { t.day = v; t.dirty = true }
func (t *Time) SetHour(v int)   { t.hour = v; t.dirty = true }
func (t *Time) SetMinute(v int) { t.minute = v; t.dirty = true }
func (t *Time) SetSecond(v int) { t.second = v; t.dirty = true }

// SetIsDate switches between date and date-time. Switching to a date drops
// the time of day after carrying any pending overflow.
func (t *Time) SetIsDate(v bool) {
	if v && !t.isDate {
		t.Normalize()
	}
	t.isDate = v
	t.dirty = true
}

// WithZone returns t relabelled to zone without converting the wall clock.
func (t Time) WithZone(zone *Timezone) Time {
	if zone == nil {
		zone = Floating
	}
	t.zone = zone
	return t
}

// ConvertToZone returns the same instant expressed in zone. Dates and
// floating values are relabelled only.
func (t Time) ConvertToZone(zone *Timezone) Time {
	if zone == nil {
		zone = Floating
	}
	c := t.normalized()
	from := c.Zone()
	if c.isDate || from.TZID() == zone.TZID() || from == Floating || zone == Floating {
		c.zone = zone
		return c
	}
	c.adjust(0, 0, 0, -from.UTCOffsetAt(c))
	c.zone = zone
	c.adjust(0, 0, 0, zone.UTCOffsetAt(c))
	return c
}

// ToUTC converts t to the UTC zone.
func (t Time) ToUTC() Time {
	return t.ConvertToZone(UTC)
}

// UTCOffset returns the offset in seconds of t's zone at t.
func (t Time) UTCOffset() int {
	return t.Zone().UTCOffsetAt(t)
}

// Unix returns seconds since the epoch. Floating values are read as UTC.
func (t Time) Unix() int64 {
	n := t.normalized()
	days := daysFromCivil(n.year, n.month, n.day)
	return days*86400 + int64(n.hour*3600+n.minute*60+n.second) - int64(n.UTCOffset())
}

// Compare orders two values by their absolute instant.
func (t Time) Compare(other Time) int {
	a, b := t.Unix(), other.Unix()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Equal reports whether t and other denote the same instant.
func (t Time) Equal(other Time) bool {
	return t.Compare(other) == 0
}

// CompareDateOnlyTz compares the dates of t and other after converting
// both into zone.
func (t Time) CompareDateOnlyTz(other Time, zone *Timezone) int {
	a := t.ConvertToZone(zone)
	b := other.ConvertToZone(zone)
	ka := a.year*10000 + a.month*100 + a.day
	kb := b.year*10000 + b.month*100 + b.day
	switch {
	case ka < kb:
		return -1
	case ka > kb:
		return 1
	}
	return 0
}

// SubtractDate returns the wall-clock difference t - other, ignoring zones.
func (t Time) SubtractDate(other Time) Duration {
	a := t.Unix() + int64(t.UTCOffset())
	b := other.Unix() + int64(other.UTCOffset())
	return DurationFromSeconds(a - b)
}

// SubtractDateTz returns the absolute difference t - other.
func (t Time) SubtractDateTz(other Time) Duration {
	return DurationFromSeconds(t.Unix() - other.Unix())
}

// DayOfWeek returns 1..7 with weekStart as 1.
func (t Time) DayOfWeek(weekStart Weekday) int {
	n := t.normalized()
	return dayOfWeek(n.year, n.month, n.day, weekStart)
}

// Weekday returns the named day of t.
func (t Time) Weekday() Weekday {
	return Weekday(t.DayOfWeek(Sunday))
}

// DayOfYear returns the 1-based ordinal day of t within its year.
func (t Time) DayOfYear() int {
	n := t.normalized()
	return dayOfYear(n.year, n.month, n.day)
}

// StartDoyWeek returns the day-of-year on which t's week begins. It can be
// zero or negative for weeks that start in the previous year.
func (t Time) StartDoyWeek(weekStart Weekday) int {
	delta := t.DayOfWeek(Sunday) - int(weekStart)
	if delta < 0 {
		delta += 7
	}
	return t.DayOfYear() - delta
}

// StartOfWeek returns the first day of t's week as a date.
func (t Time) StartOfWeek(weekStart Weekday) Time {
	n := t.normalized()
	delta := n.DayOfWeek(Sunday) - int(weekStart)
	if delta < 0 {
		delta += 7
	}
	return Date(n.year, n.month, n.day-delta)
}

// EndOfMonth returns the last day of t's month as a date.
func (t Time) EndOfMonth() Time {
	n := t.normalized()
	return Date(n.year, n.month, DaysInMonth(n.month, n.year))
}

// StartOfYear returns January 1 of t's year as a date.
func (t Time) StartOfYear() Time {
	return Date(t.Year(), 1, 1)
}

// WeekNumber returns the ISO-8601 style week number of t where weeks begin
// on weekStart.
func (t Time) WeekNumber(weekStart Weekday) int {
	_, w := isoWeek(t.normalized(), weekStart)
	return w
}

// ISOWeek returns the week-numbering year and week of t.
func (t Time) ISOWeek(weekStart Weekday) (year, week int) {
	return isoWeek(t.normalized(), weekStart)
}

func isoWeek(n Time, weekStart Weekday) (int, int) {
	dayNum := daysFromCivil(n.year, n.month, n.day)
	isoYear := n.year
	var w1 int64
	if n.month == 12 && n.day > 25 {
		w1 = weekOneStartDays(isoYear+1, weekStart)
		if dayNum < w1 {
			w1 = weekOneStartDays(isoYear, weekStart)
		} else {
			isoYear++
		}
	} else {
		w1 = weekOneStartDays(isoYear, weekStart)
		if dayNum < w1 {
			isoYear--
			w1 = weekOneStartDays(isoYear, weekStart)
		}
	}
	return isoYear, int((dayNum-w1)/7) + 1
}

// weekOneStartOffset is the offset from January 1 to the first day of week 1.
func weekOneStartOffset(year int, weekStart Weekday) int {
	dow := dayOfWeek(year, 1, 1, Sunday)
	day := 1
	if dow > int(Thursday) {
		day += 7
	}
	if weekStart > Thursday {
		day -= 7
	}
	day -= dow - int(weekStart)
	return day - 1
}

func weekOneStartDays(year int, weekStart Weekday) int64 {
	return daysFromCivil(year, 1, 1) + int64(weekOneStartOffset(year, weekStart))
}

// WeekOneStarts returns the first day of week 1 of year.
func WeekOneStarts(year int, weekStart Weekday) Time {
	return Date(year, 1, 1+weekOneStartOffset(year, weekStart))
}

// WeeksInYear returns the number of numbered weeks in the week-numbering
// year.
func WeeksInYear(year int, weekStart Weekday) int {
	return int((weekOneStartDays(year+1, weekStart) - weekOneStartDays(year, weekStart)) / 7)
}

// NthWeekDay returns the day of month of the pos-th dow in t's month.
// Negative positions count from the end and zero means the first. The
// result may fall outside the month when the position does not exist.
func (t Time) NthWeekDay(dow Weekday, pos int) int {
	n := t.normalized()
	if pos >= 0 {
		if pos != 0 {
			pos--
		}
		offset := int(dow) - dayOfWeek(n.year, n.month, 1, Sunday)
		if offset < 0 {
			offset += 7
		}
		return 1 + offset + pos*7
	}
	dim := DaysInMonth(n.month, n.year)
	back := dayOfWeek(n.year, n.month, dim, Sunday) - int(dow)
	if back < 0 {
		back += 7
	}
	return dim - back + (pos+1)*7
}

// IsNthWeekDay reports whether t is the pos-th dow of its month.
func (t Time) IsNthWeekDay(dow Weekday, pos int) bool {
	if pos == 0 {
		return t.Weekday() == dow
	}
	return t.NthWeekDay(dow, pos) == t.Day()
}

// String renders the canonical form, e.g. 2024-01-02 or
// 2024-01-02T10:00:00Z.
func (t Time) String() string {
	n := t.normalized()
	s := fmt.Sprintf("%04d-%02d-%02d", n.year, n.month, n.day)
	if n.isDate {
		return s
	}
	s += fmt.Sprintf("T%02d:%02d:%02d", n.hour, n.minute, n.second)
	if n.Zone() == UTC {
		s += "Z"
	}
	return s
}

// ICALString renders the basic format used in iCalendar text, e.g.
// 20240102T100000Z.
func (t Time) ICALString() string {
	n := t.normalized()
	s := fmt.Sprintf("%04d%02d%02d", n.year, n.month, n.day)
	if n.isDate {
		return s
	}
	s += fmt.Sprintf("T%02d%02d%02d", n.hour, n.minute, n.second)
	if n.Zone() == UTC {
		s += "Z"
	}
	return s
}

// FromString parses the canonical form produced by String. A trailing Z
// binds the value to UTC; otherwise it is floating.
func FromString(s string) (Time, error) {
	switch {
	case len(s) == 10 && s[4] == '-' && s[7] == '-':
		f, err := digits(s, [][2]int{{0, 4}, {5, 7}, {8, 10}})
		if err != nil {
			return Time{}, err
		}
		return checkedDate(f[0], f[1], f[2], s)
	case (len(s) == 19 || len(s) == 20 && s[19] == 'Z') &&
		s[4] == '-' && s[7] == '-' && s[10] == 'T' && s[13] == ':' && s[16] == ':':
		f, err := digits(s, [][2]int{{0, 4}, {5, 7}, {8, 10}, {11, 13}, {14, 16}, {17, 19}})
		if err != nil {
			return Time{}, err
		}
		zone := Floating
		if len(s) == 20 {
			zone = UTC
		}
		return checkedDateTime(f, zone, s)
	}
	return Time{}, fmt.Errorf("%w: date-time %q", ErrInvalidFormat, s)
}

// FromICALString parses the basic iCalendar form. Values without a
// trailing Z are bound to zone, or float when zone is nil.
func FromICALString(s string, zone *Timezone) (Time, error) {
	switch {
	case len(s) == 8:
		f, err := digits(s, [][2]int{{0, 4}, {4, 6}, {6, 8}})
		if err != nil {
			return Time{}, err
		}
		return checkedDate(f[0], f[1], f[2], s)
	case (len(s) == 15 || len(s) == 16 && s[15] == 'Z') && s[8] == 'T':
		f, err := digits(s, [][2]int{{0, 4}, {4, 6}, {6, 8}, {9, 11}, {11, 13}, {13, 15}})
		if err != nil {
			return Time{}, err
		}
		if len(s) == 16 {
			zone = UTC
		}
		return checkedDateTime(f, zone, s)
	}
	return Time{}, fmt.Errorf("%w: date-time %q", ErrInvalidFormat, s)
}

func digits(s string, spans [][2]int) ([]int, error) {
	out := make([]int, len(spans))
	for i, sp := range spans {
		part := s[sp[0]:sp[1]]
		for _, c := range part {
			if c < '0' || c > '9' {
				return nil, fmt.Errorf("%w: date-time %q", ErrInvalidFormat, s)
			}
		}
		v, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%w: date-time %q: %w", ErrInvalidFormat, s, err)
		}
		out[i] = v
	}
	return out, nil
}

func checkedDate(y, m, d int, src string) (Time, error) {
	if m < 1 || m > 12 || d < 1 || d > DaysInMonth(m, y) {
		return Time{}, fmt.Errorf("%w: date %q out of range", ErrInvalidFormat, src)
	}
	return Date(y, m, d), nil
}

func checkedDateTime(f []int, zone *Timezone, src string) (Time, error) {
	if f[1] < 1 || f[1] > 12 || f[2] < 1 || f[2] > DaysInMonth(f[1], f[0]) ||
		f[3] > 23 || f[4] > 59 || f[5] > 60 {
		return Time{}, fmt.Errorf("%w: date-time %q out of range", ErrInvalidFormat, src)
	}
	return DateTime(f[0], f[1], f[2], f[3], f[4], f[5], zone), nil
}
