package icaltime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsLeapYear(t *testing.T) {
	tests := []struct {
		year int
		want bool
	}{
		{1600, true},
		{1700, true},
		{1752, true},
		{1800, false},
		{1900, false},
		{2000, true},
		{2023, false},
		{2024, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsLeapYear(tt.year), "year %d", tt.year)
	}
}

func TestDaysInMonth(t *testing.T) {
	assert.Equal(t, 29, DaysInMonth(2, 2024))
	assert.Equal(t, 28, DaysInMonth(2, 2023))
	assert.Equal(t, 29, DaysInMonth(2, 1700))
	assert.Equal(t, 28, DaysInMonth(2, 1900))
	assert.Equal(t, 30, DaysInMonth(4, 2024))
	assert.Equal(t, 31, DaysInMonth(1, 2024))
	assert.Equal(t, 30, DaysInMonth(13, 2024))
	assert.Equal(t, 366, DaysInYear(2024))
	assert.Equal(t, 365, DaysInYear(2023))
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   Time
		want string
	}{
		{"day overflow", DateTime(2024, 1, 32, 0, 0, 0, UTC), "2024-02-01T00:00:00Z"},
		{"month overflow", DateTime(2024, 13, 1, 0, 0, 0, UTC), "2025-01-01T00:00:00Z"},
		{"month underflow", DateTime(2024, 0, 15, 0, 0, 0, UTC), "2023-12-15T00:00:00Z"},
		{"day zero", DateTime(2024, 3, 0, 0, 0, 0, UTC), "2024-02-29T00:00:00Z"},
		{"negative day", Date(2024, 1, -30), "2023-12-01"},
		{"hour overflow", DateTime(2024, 12, 31, 25, 0, 0, UTC), "2025-01-01T01:00:00Z"},
		{"negative second", DateTime(2024, 1, 1, 0, 0, -1, UTC), "2023-12-31T23:59:59Z"},
		{"large day count", Date(2024, 1, 367), "2025-01-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.String())
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	v := DateTime(2024, 1, 31, 23, 0, 0, UTC)
	v.SetDay(45)
	v.SetHour(30)
	v.Normalize()
	first := v
	v.Normalize()
	assert.Equal(t, first, v)
	assert.Equal(t, "2024-02-15T06:00:00Z", v.String())
}

func TestSettersAreLazy(t *testing.T) {
	v := Date(2024, 1, 31)
	v.SetDay(32)
	assert.True(t, v.dirty)
	assert.Equal(t, 2, v.Month())
	assert.Equal(t, 1, v.Day())
	// reads do not fold the carry into the receiver
	assert.Equal(t, 32, v.day)
	v.Normalize()
	assert.False(t, v.dirty)
	assert.Equal(t, 1, v.day)
}

func TestAddDuration(t *testing.T) {
	v := DateTime(2024, 1, 31, 23, 0, 0, UTC)
	v.AddDuration(Duration{Hours: 2})
	assert.Equal(t, 2024, v.Year())
	assert.Equal(t, 2, v.Month())
	assert.Equal(t, 1, v.Day())
	assert.Equal(t, 1, v.Hour())

	v = DateTime(2024, 3, 1, 0, 30, 0, UTC)
	v.AddDuration(Duration{Minutes: 45, Negative: true})
	assert.Equal(t, "2024-02-29T23:45:00Z", v.String())

	v = Date(2024, 1, 1)
	v.AddDuration(Duration{Weeks: 2, Days: 1})
	assert.Equal(t, "2024-01-16", v.String())
}

func TestSetIsDate(t *testing.T) {
	v := DateTime(2024, 1, 1, 10, 0, 0, UTC)
	v.SetHour(30)
	v.SetIsDate(true)
	assert.Equal(t, "2024-01-02", v.String())
}

func TestDayOfWeek(t *testing.T) {
	assert.Equal(t, 2, Date(2024, 1, 1).DayOfWeek(Sunday))
	assert.Equal(t, 1, Date(2024, 1, 1).DayOfWeek(Monday))
	assert.Equal(t, Monday, Date(2024, 1, 1).Weekday())
	assert.Equal(t, 7, Date(2000, 1, 1).DayOfWeek(Sunday))
	assert.Equal(t, Thursday, Date(1970, 1, 1).Weekday())
	assert.Equal(t, Sunday, Date(1970, 11, 1).Weekday())
}

func TestDayOfYear(t *testing.T) {
	assert.Equal(t, 61, Date(2024, 3, 1).DayOfYear())
	assert.Equal(t, 60, Date(2023, 3, 1).DayOfYear())
	assert.Equal(t, 366, Date(2024, 12, 31).DayOfYear())
	assert.Equal(t, 1, Date(2024, 1, 1).DayOfYear())
}

func TestFromDayOfYear(t *testing.T) {
	assert.Equal(t, "2024-02-29", FromDayOfYear(60, 2024).String())
	assert.Equal(t, "2023-12-31", FromDayOfYear(0, 2024).String())
	assert.Equal(t, "2025-01-01", FromDayOfYear(367, 2024).String())
	assert.Equal(t, "2024-01-01", FromDayOfYear(366, 2023).String())
}

func TestWeekNumber(t *testing.T) {
	tests := []struct {
		date     Time
		wkst     Weekday
		wantYear int
		wantWeek int
	}{
		{Date(2024, 1, 1), Monday, 2024, 1},
		{Date(2021, 1, 3), Monday, 2020, 53},
		{Date(2021, 1, 4), Monday, 2021, 1},
		{Date(2024, 12, 30), Monday, 2025, 1},
		{Date(2024, 5, 13), Monday, 2024, 20},
		{Date(2023, 12, 31), Sunday, 2024, 1},
	}
	for _, tt := range tests {
		y, w := tt.date.ISOWeek(tt.wkst)
		assert.Equal(t, tt.wantYear, y, tt.date.String())
		assert.Equal(t, tt.wantWeek, w, tt.date.String())
		assert.Equal(t, tt.wantWeek, tt.date.WeekNumber(tt.wkst))
	}
	assert.Equal(t, 53, WeeksInYear(2020, Monday))
	assert.Equal(t, 52, WeeksInYear(2024, Monday))
}

func TestWeekOneStarts(t *testing.T) {
	assert.Equal(t, "2024-01-01", WeekOneStarts(2024, Monday).String())
	assert.Equal(t, "2021-01-04", WeekOneStarts(2021, Monday).String())
	assert.Equal(t, "2019-12-30", WeekOneStarts(2020, Monday).String())
	assert.Equal(t, "2023-12-31", WeekOneStarts(2024, Sunday).String())
	assert.Equal(t, "2023-12-29", WeekOneStarts(2024, Friday).String())
}

func TestNthWeekDay(t *testing.T) {
	jan := Date(2024, 1, 15)
	assert.Equal(t, 1, jan.NthWeekDay(Monday, 1))
	assert.Equal(t, 8, jan.NthWeekDay(Monday, 2))
	assert.Equal(t, 29, jan.NthWeekDay(Monday, -1))
	assert.Equal(t, 1, jan.NthWeekDay(Monday, 0))
	assert.Equal(t, 5, jan.NthWeekDay(Friday, 1))
	assert.Equal(t, 29, Date(2024, 12, 1).NthWeekDay(Sunday, -1))
	// the fifth Monday of February 2024 does not exist
	assert.Greater(t, Date(2024, 2, 1).NthWeekDay(Monday, 5), 29)

	assert.True(t, Date(2024, 1, 29).IsNthWeekDay(Monday, -1))
	assert.True(t, Date(2024, 1, 8).IsNthWeekDay(Monday, 2))
	assert.True(t, Date(2024, 1, 8).IsNthWeekDay(Monday, 0))
	assert.False(t, Date(2024, 1, 9).IsNthWeekDay(Monday, 0))
	assert.False(t, Date(2024, 1, 8).IsNthWeekDay(Monday, 1))
}

func TestStartOfPeriods(t *testing.T) {
	v := Date(2024, 1, 3)
	assert.Equal(t, "2024-01-01", v.StartOfWeek(Monday).String())
	assert.Equal(t, "2023-12-31", v.StartOfWeek(Sunday).String())
	assert.Equal(t, 1, v.StartDoyWeek(Monday))
	assert.Equal(t, 0, v.StartDoyWeek(Sunday))
	assert.Equal(t, "2024-02-29", Date(2024, 2, 10).EndOfMonth().String())
	assert.Equal(t, "2024-01-01", Date(2024, 7, 4).StartOfYear().String())
}

func TestUnix(t *testing.T) {
	assert.Equal(t, int64(0), DateTime(1970, 1, 1, 0, 0, 0, UTC).Unix())
	assert.Equal(t, int64(1704067200), DateTime(2024, 1, 1, 0, 0, 0, UTC).Unix())
	assert.Equal(t, "2024-01-01T00:00:00Z", FromUnix(1704067200).String())
	assert.Equal(t, "1969-12-31T23:59:59Z", FromUnix(-1).String())

	for _, secs := range []int64{0, 951782400, 1709164799, 4102444800, -2208988800} {
		assert.Equal(t, secs, FromUnix(secs).Unix())
	}
	assert.Equal(t, time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), DateTime(2024, 1, 1, 9, 0, 0, UTC).GoTime())
}

func TestCompare(t *testing.T) {
	plus2 := FixedZone(UtcOffset{Hours: 2, Factor: 1})
	a := DateTime(2024, 1, 1, 10, 0, 0, plus2)
	b := DateTime(2024, 1, 1, 8, 0, 0, UTC)
	assert.Equal(t, 0, a.Compare(b))
	assert.True(t, a.Equal(b))
	assert.Equal(t, -1, Date(2024, 1, 1).Compare(Date(2024, 1, 2)))
	assert.Equal(t, 1, DateTime(2024, 1, 1, 0, 0, 1, UTC).Compare(DateTime(2024, 1, 1, 0, 0, 0, UTC)))

	assert.Equal(t, 0, a.CompareDateOnlyTz(b, UTC))
	late := DateTime(2024, 1, 1, 23, 0, 0, UTC)
	assert.Equal(t, 1, late.CompareDateOnlyTz(b, plus2))
}

func TestConvertToZone(t *testing.T) {
	plus2 := FixedZone(UtcOffset{Hours: 2, Factor: 1})
	v := DateTime(2024, 1, 1, 23, 30, 0, UTC)
	c := v.ConvertToZone(plus2)
	assert.Equal(t, "2024-01-02T01:30:00", c.String())
	assert.Equal(t, plus2, c.Zone())
	assert.True(t, v.Equal(c))
	assert.Equal(t, "2024-01-01T23:30:00Z", c.ToUTC().String())

	d := Date(2024, 1, 1).ConvertToZone(plus2)
	assert.Equal(t, "2024-01-01", d.String())
}

func TestSubtractDate(t *testing.T) {
	plus2 := FixedZone(UtcOffset{Hours: 2, Factor: 1})
	a := DateTime(2024, 1, 2, 10, 0, 0, plus2)
	b := DateTime(2024, 1, 1, 10, 0, 0, UTC)
	assert.Equal(t, "P1D", a.SubtractDate(b).String())
	assert.Equal(t, "PT22H", a.SubtractDateTz(b).String())
}

func TestStringRoundTrip(t *testing.T) {
	for _, s := range []string{"2024-02-29T10:20:30Z", "2024-02-29", "1999-12-31T23:59:59"} {
		v, err := FromString(s)
		require.NoError(t, err)
		assert.Equal(t, s, v.String())
	}

	v, err := FromICALString("20240229T102030Z", nil)
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29T10:20:30Z", v.String())
	assert.Equal(t, "20240229T102030Z", v.ICALString())

	v, err = FromICALString("20240101", nil)
	require.NoError(t, err)
	assert.True(t, v.IsDate())
	assert.Equal(t, "20240101", v.ICALString())

	for _, bad := range []string{"", "2024-13-01", "2023-02-29", "20240101T25", "2024-01-01T10:00", "abcd-01-01"} {
		_, err := FromString(bad)
		assert.ErrorIs(t, err, ErrInvalidFormat, bad)
	}
}

func TestDataRoundTrip(t *testing.T) {
	plus530 := FixedZone(UtcOffset{Hours: 5, Minutes: 30, Factor: 1})
	named := NewTimezoneFromChanges("Test/Zone", nil)
	lookup := func(tzid string) (*Timezone, bool) {
		if tzid == named.TZID() {
			return named, true
		}
		return nil, false
	}

	values := []Time{
		Date(2024, 2, 29),
		DateTime(2024, 1, 1, 9, 30, 15, UTC),
		DateTime(2024, 1, 1, 9, 30, 15, nil),
		DateTime(2024, 1, 1, 9, 30, 15, plus530),
		DateTime(2024, 6, 1, 12, 0, 0, named),
	}
	for _, v := range values {
		back, err := FromData(v.Data(), lookup)
		require.NoError(t, err)
		assert.Equal(t, v.Data(), back.Data())
		assert.True(t, v.Equal(back))
	}

	_, err := FromData(TimeData{Year: 2024, Month: 1, Day: 1, Timezone: "Nowhere/City"}, lookup)
	assert.ErrorIs(t, err, ErrInvalidFormat)
}
