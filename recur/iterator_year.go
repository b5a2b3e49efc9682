package recur

import "github.com/cyp0633/librecur/icaltime"

func (it *Iterator) nextYear() error {
	if !it.nextHour() {
		return nil
	}
	it.daysIndex++
	if it.daysIndex >= len(it.days) {
		it.daysIndex = 0
		for i := 0; ; i++ {
			if i >= MaxYearSearch {
				return exhaustedError("no matching day within %d years", MaxYearSearch)
			}
			it.incrementYear(it.rule.interval())
			if it.yearPastUntil(it.last.Year()) {
				it.completed = true
				return nil
			}
			it.expandYearDays(it.last.Year())
			if len(it.days) > 0 {
				break
			}
		}
	}
	it.nextByYearDay()
	return nil
}

func (it *Iterator) nextByYearDay() {
	next := icaltime.FromDayOfYear(it.days[it.daysIndex], it.last.Year())
	it.setDate(next.Year(), next.Month(), next.Day())
}

// expandYearDays computes the sorted day-of-year list a YEARLY rule
// selects in year. Day-level parts act as filters over the whole year;
// without any, the DTSTART day is used in each BYMONTH month.
func (it *Iterator) expandYearDays(year int) {
	r := it.rule
	hasMonth := r.HasPart(ByMonth)
	hasWeekNo := r.HasPart(ByWeekNo)
	hasYearDay := r.HasPart(ByYearDay)
	hasMonthDay := r.HasPart(ByMonthDay)
	hasDay := r.HasPart(ByDay)

	days := make([]int, 0, 8)
	if !hasWeekNo && !hasYearDay && !hasMonthDay && !hasDay {
		months := []int{it.dtstart.Month()}
		if hasMonth {
			months = it.byData[ByMonth]
		}
		day := it.dtstart.Day()
		for _, m := range months {
			if day <= icaltime.DaysInMonth(m, year) {
				days = append(days, icaltime.Date(year, m, day).DayOfYear())
			}
		}
		it.days = applySetPos(sortedUnique(days), it.byData[BySetPos])
		return
	}

	months := it.byData[ByMonth]
	weeks := r.Part(ByWeekNo)
	yearDays := r.Part(ByYearDay)
	monthDayRules := r.Part(ByMonthDay)
	daysInYear := icaltime.DaysInYear(year)

	var monthDays [13][]int
	if hasMonthDay {
		for m := 1; m <= 12; m++ {
			monthDays[m] = normalizeByMonthDayRules(year, m, monthDayRules)
		}
	}

	for doy := 1; doy <= daysInYear; doy++ {
		date := icaltime.FromDayOfYear(doy, year)
		m := date.Month()
		if hasMonth && !containsInt(months, m) {
			continue
		}
		if hasWeekNo && !it.matchesWeekNo(date, weeks) {
			continue
		}
		if hasYearDay && !matchesYearDay(yearDays, doy, daysInYear) {
			continue
		}
		if hasMonthDay && !containsInt(monthDays[m], date.Day()) {
			continue
		}
		if hasDay && !it.matchesYearByDay(date, doy, daysInYear, hasMonth) {
			continue
		}
		days = append(days, doy)
	}

	if !hasWeekNo {
		days = applySetPos(days, it.byData[BySetPos])
	}
	it.days = days
}

// matchesYearByDay checks BYDAY for a YEARLY rule. Ordinals count within
// the month when BYMONTH is present and within the year otherwise.
func (it *Iterator) matchesYearByDay(date icaltime.Time, doy, daysInYear int, monthScope bool) bool {
	dow := icaltime.Weekday(it.cal.DayOfWeek(date, icaltime.Sunday))
	for _, bd := range it.byDay {
		if bd.Day != dow {
			continue
		}
		if bd.Pos == 0 {
			return true
		}
		if monthScope {
			if date.IsNthWeekDay(bd.Day, bd.Pos) {
				return true
			}
			continue
		}
		if nthWeekDayOfYear(date.Year(), bd, daysInYear) == doy {
			return true
		}
	}
	return false
}

// nthWeekDayOfYear returns the day-of-year of the bd.Pos-th bd.Day in year.
func nthWeekDayOfYear(year int, bd WeekdayNum, daysInYear int) int {
	if bd.Pos > 0 {
		first := icaltime.Date(year, 1, 1).Weekday()
		return 1 + mod(int(bd.Day)-int(first), 7) + (bd.Pos-1)*7
	}
	last := icaltime.Date(year, 12, 31).Weekday()
	return daysInYear - mod(int(last)-int(bd.Day), 7) + (bd.Pos+1)*7
}
