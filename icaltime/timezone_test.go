package icaltime

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedDayRule fires once a year on the same month and day.
type fixedDayRule struct {
	month, day int
}

func (r fixedDayRule) Transitions(start Time, _ int) (func() (Time, bool, error), error) {
	year := start.Year()
	return func() (Time, bool, error) {
		t := DateTime(year, r.month, r.day, start.Hour(), start.Minute(), start.Second(), nil)
		year++
		return t, true, nil
	}, nil
}

func easternChanges() []Change {
	return []Change{
		{Year: 2024, Month: 11, Day: 3, Hour: 6, UTCOffset: -18000, PrevUTCOffset: -14400},
		{Year: 2024, Month: 3, Day: 10, Hour: 7, UTCOffset: -14400, PrevUTCOffset: -18000, Daylight: true},
	}
}

func TestFixedZones(t *testing.T) {
	v := DateTime(2024, 1, 1, 12, 0, 0, nil)
	assert.Equal(t, 0, UTC.UTCOffsetAt(v))
	assert.Equal(t, 0, Floating.UTCOffsetAt(v))
	assert.Equal(t, 19800, FixedZone(UtcOffset{Hours: 5, Minutes: 30, Factor: 1}).UTCOffsetAt(v))
	assert.Equal(t, "+05:30", FixedZone(UtcOffset{Hours: 5, Minutes: 30, Factor: 1}).TZID())
}

func TestUTCOffsetAtChangeTable(t *testing.T) {
	zone := NewTimezoneFromChanges("America/New_York", easternChanges())

	tests := []struct {
		name  string
		local Time
		want  int
	}{
		{"summer", DateTime(2024, 7, 1, 12, 0, 0, nil), -14400},
		{"before first change", DateTime(2024, 1, 15, 12, 0, 0, nil), -18000},
		{"after last change", DateTime(2024, 12, 1, 12, 0, 0, nil), -18000},
		{"just before spring forward", DateTime(2024, 3, 10, 1, 59, 0, nil), -18000},
		{"inside the skipped hour", DateTime(2024, 3, 10, 2, 30, 0, nil), -14400},
		{"repeated hour prefers standard time", DateTime(2024, 11, 3, 1, 30, 0, nil), -18000},
		{"after fall back", DateTime(2024, 11, 3, 2, 30, 0, nil), -18000},
		{"just before the repeated hour", DateTime(2024, 11, 3, 0, 59, 0, nil), -14400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, zone.UTCOffsetAt(tt.local))
		})
	}

	summer := DateTime(2024, 7, 1, 12, 0, 0, zone)
	assert.Equal(t, DateTime(2024, 7, 1, 16, 0, 0, UTC).Unix(), summer.Unix())
	assert.Equal(t, "2024-07-01T16:00:00Z", summer.ToUTC().String())
	assert.Equal(t, "2024-07-01T12:00:00", DateTime(2024, 7, 1, 16, 0, 0, UTC).ConvertToZone(zone).String())
}

func TestTimezoneExpandsLazily(t *testing.T) {
	zone := NewTimezone("Test/Eastern", []ZoneRule{
		{
			Start:      DateTime(2020, 11, 3, 2, 0, 0, nil),
			OffsetFrom: UtcOffset{Hours: 4, Factor: -1},
			OffsetTo:   UtcOffset{Hours: 5, Factor: -1},
			Recurrence: fixedDayRule{month: 11, day: 3},
		},
		{
			Daylight:   true,
			Start:      DateTime(2020, 3, 10, 2, 0, 0, nil),
			OffsetFrom: UtcOffset{Hours: 5, Factor: -1},
			OffsetTo:   UtcOffset{Hours: 4, Factor: -1},
			Recurrence: fixedDayRule{month: 3, day: 10},
		},
	})

	changes := zone.Changes(2024)
	require.Len(t, changes, 20)
	assert.Equal(t, 2020, changes[0].Year)
	assert.Equal(t, 7, changes[0].Hour, "local 02:00 at -05:00 is 07:00 UTC")
	assert.Equal(t, 2029, changes[len(changes)-1].Year)

	assert.Len(t, zone.Changes(2027), 20)
	assert.Len(t, zone.Changes(2030), 32)

	assert.Equal(t, -14400, zone.UTCOffsetAt(DateTime(2031, 7, 1, 0, 0, 0, nil)))
	assert.Equal(t, -18000, zone.UTCOffsetAt(DateTime(2031, 12, 1, 0, 0, 0, nil)))
	assert.NoError(t, zone.Err())
}

func TestTimezoneSingleObservance(t *testing.T) {
	zone := NewTimezone("Test/Single", []ZoneRule{{
		Start:      DateTime(1970, 1, 1, 0, 0, 0, nil),
		OffsetFrom: UtcOffset{Hours: 1, Factor: 1},
		OffsetTo:   UtcOffset{Hours: 1, Factor: 1},
	}})
	assert.Equal(t, 3600, zone.UTCOffsetAt(DateTime(2024, 6, 1, 0, 0, 0, nil)))

	withRDates := NewTimezone("Test/RDates", []ZoneRule{{
		Start:      DateTime(2000, 1, 1, 3, 0, 0, nil),
		OffsetFrom: UtcOffset{Hours: 1, Factor: 1},
		OffsetTo:   UtcOffset{Hours: 2, Factor: 1},
		RDates:     []Time{Date(2010, 6, 1)},
	}})
	changes := withRDates.Changes(2010)
	require.Len(t, changes, 1)
	assert.Equal(t, Change{Year: 2010, Month: 6, Day: 1, Hour: 2, UTCOffset: 7200, PrevUTCOffset: 3600}, changes[0])
}

func TestTimezoneConcurrentAccess(t *testing.T) {
	zone := NewTimezone("Test/Concurrent", []ZoneRule{{
		Start:      DateTime(2000, 3, 1, 2, 0, 0, nil),
		OffsetFrom: UtcOffset{Hours: 0, Factor: 1},
		OffsetTo:   UtcOffset{Hours: 1, Factor: 1},
		Recurrence: fixedDayRule{month: 3, day: 1},
	}})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(year int) {
			defer wg.Done()
			assert.Equal(t, 3600, zone.UTCOffsetAt(DateTime(year, 6, 1, 0, 0, 0, nil)))
		}(2000 + i*3)
	}
	wg.Wait()
}

func TestCalendarCache(t *testing.T) {
	cache := NewSyncCache(0)
	cal := NewCalendar(cache)
	d := Date(2024, 1, 1)
	assert.Equal(t, 1, cal.DayOfWeek(d, Monday))
	assert.Equal(t, 1, cal.DayOfWeek(d, Monday))
	assert.Equal(t, 1, cal.WeekNumber(d, Monday))
	assert.Equal(t, 2, cache.Len())

	v, ok := cache.Get(CacheKey{Kind: KindDayOfWeek, Year: 2024, Month: 1, Day: 1, WeekStart: Monday})
	require.True(t, ok)
	assert.Equal(t, 1, v)

	bounded := NewSyncCache(2)
	bcal := NewCalendar(bounded)
	for day := 1; day <= 5; day++ {
		bcal.DayOfWeek(Date(2024, 1, day), Sunday)
	}
	assert.LessOrEqual(t, bounded.Len(), 2)

	plain := NewCalendar(nil)
	assert.Equal(t, 7, plain.DayOfWeek(Date(2000, 1, 1), Sunday))
}

func TestWeekday(t *testing.T) {
	d, err := ParseWeekday("we")
	require.NoError(t, err)
	assert.Equal(t, Wednesday, d)
	assert.Equal(t, "WE", d.String())
	assert.Equal(t, 3, d.Relative(Monday))
	assert.Equal(t, 7, Sunday.Relative(Monday))
	assert.Equal(t, 1, Sunday.Relative(Sunday))

	_, err = ParseWeekday("XX")
	assert.ErrorIs(t, err, ErrInvalidFormat)
}
