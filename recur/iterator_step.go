package recur

import "github.com/cyp0633/librecur/icaltime"

type timeField int

const (
	fieldSecond timeField = iota
	fieldMinute
	fieldHour
)

func (it *Iterator) field(f timeField) int {
	switch f {
	case fieldSecond:
		return it.last.Second()
	case fieldMinute:
		return it.last.Minute()
	}
	return it.last.Hour()
}

func (it *Iterator) setField(f timeField, v int) {
	switch f {
	case fieldSecond:
		it.last.SetSecond(v)
	case fieldMinute:
		it.last.SetMinute(v)
	default:
		it.last.SetHour(v)
	}
	it.last.Normalize()
}

func (it *Iterator) setDate(year, month, day int) {
	it.last.SetYear(year)
	it.last.SetMonth(month)
	it.last.SetDay(day)
	it.last.Normalize()
}

func (it *Iterator) setDay(day int) {
	it.last.SetDay(day)
	it.last.Normalize()
}

// nextGeneric advances one time field: through its BY-part list when there
// is one, otherwise by INTERVAL when the field is the rule's own unit. It
// reports whether the list wrapped, which tells the caller to advance the
// next larger unit.
func (it *Iterator) nextGeneric(p Part, freq Frequency, f timeField, following func(int), previous func() bool) bool {
	if previous != nil && !previous() {
		return false
	}
	data := it.byData[p]
	hasBy := len(data) > 0
	thisFreq := it.rule.Freq == freq
	wrapped := false
	if hasBy {
		idx := it.byIndices[p] + 1
		if idx >= len(data) {
			idx = 0
			wrapped = true
		}
		it.byIndices[p] = idx
		it.setField(f, data[idx])
	} else if thisFreq {
		it.incrementField(f, it.rule.interval())
	}
	if hasBy && wrapped && thisFreq {
		following(1)
	}
	return wrapped
}

func (it *Iterator) nextSecond() bool {
	return it.nextGeneric(BySecond, Secondly, fieldSecond, it.incrementMinute, nil)
}

func (it *Iterator) nextMinute() bool {
	return it.nextGeneric(ByMinute, Minutely, fieldMinute, it.incrementHour, it.nextSecond)
}

func (it *Iterator) nextHour() bool {
	return it.nextGeneric(ByHour, Hourly, fieldHour, it.incrementMonthday, it.nextMinute)
}

func (it *Iterator) incrementField(f timeField, inc int) {
	switch f {
	case fieldSecond:
		it.incrementSecond(inc)
	case fieldMinute:
		it.incrementMinute(inc)
	default:
		it.incrementHour(inc)
	}
}

func (it *Iterator) incrementGeneric(inc int, f timeField, factor int, next func(int)) {
	v := it.field(f) + inc
	carry := v / factor
	it.setField(f, v%factor)
	if carry != 0 {
		next(carry)
	}
}

func (it *Iterator) incrementSecond(inc int) {
	it.incrementGeneric(inc, fieldSecond, 60, it.incrementMinute)
}

func (it *Iterator) incrementMinute(inc int) {
	it.incrementGeneric(inc, fieldMinute, 60, it.incrementHour)
}

func (it *Iterator) incrementHour(inc int) {
	it.incrementGeneric(inc, fieldHour, 24, it.incrementMonthday)
}

func (it *Iterator) incrementMonthday(inc int) {
	it.last.AddDays(inc)
}

// incrementMonth moves to day 1 of the next month: the next listed BYMONTH
// when the rule has one, otherwise INTERVAL months ahead for MONTHLY rules
// and one month ahead for the rest.
func (it *Iterator) incrementMonth() {
	it.last.SetDay(1)
	if it.rule.HasPart(ByMonth) {
		months := it.byData[ByMonth]
		cur := it.last.Month()
		idx := 0
		for idx < len(months) && months[idx] <= cur {
			idx++
		}
		if idx == len(months) {
			idx = 0
			it.incrementYear(1)
		}
		it.byIndices[ByMonth] = idx
		it.last.SetMonth(months[idx])
		it.last.Normalize()
		return
	}
	inc := 1
	if it.rule.Freq == Monthly {
		inc = it.rule.interval()
	}
	it.last.SetMonth(it.last.Month() + inc)
	it.last.Normalize()
}

func (it *Iterator) incrementYear(inc int) {
	it.last.SetDay(1)
	it.last.SetYear(it.last.Year() + inc)
	it.last.Normalize()
}

func (it *Iterator) nextDay() {
	if !it.nextHour() {
		return
	}
	it.incrementMonthday(it.rule.interval())
}

func (it *Iterator) nextWeek() {
	if !it.nextWeekdayByWeek() {
		return
	}
	it.incrementMonthday(7 * it.rule.interval())
}

// nextWeekdayByWeek moves to the next listed BYDAY within the current week
// and reports whether the list wrapped.
func (it *Iterator) nextWeekdayByWeek() bool {
	if !it.nextHour() {
		return false
	}
	if !it.rule.HasPart(ByDay) {
		return true
	}
	wrapped := false
	idx := it.byIndices[ByDay] + 1
	if idx >= len(it.byDay) {
		idx = 0
		wrapped = true
	}
	it.byIndices[ByDay] = idx

	wkst := it.rule.weekStart()
	dow := it.byDay[idx].Day.Relative(wkst) - 1
	start := it.last.StartDoyWeek(wkst)
	next := icaltime.FromDayOfYear(start+dow, it.last.Year())
	it.setDate(next.Year(), next.Month(), next.Day())
	return wrapped
}

func (it *Iterator) isDayInByDay(t icaltime.Time) bool {
	for _, bd := range it.byDay {
		if t.IsNthWeekDay(bd.Day, bd.Pos) {
			return true
		}
	}
	return false
}

func (it *Iterator) checkSetPosition(pos int) bool {
	return containsInt(it.byData[BySetPos], pos)
}

// monthSetPosValid reports whether the current day is a BYDAY match whose
// position in the month is selected by BYSETPOS.
func (it *Iterator) monthSetPosValid() bool {
	y, m, d := it.last.Year(), it.last.Month(), it.last.Day()
	dim := icaltime.DaysInMonth(m, y)
	pos, total := 0, 0
	matched := false
	for day := 1; day <= dim; day++ {
		if !it.isDayInByDay(icaltime.Date(y, m, day)) {
			continue
		}
		total++
		if day <= d {
			pos++
		}
		if day == d {
			matched = true
		}
	}
	return matched && (it.checkSetPosition(pos) || it.checkSetPosition(pos-total-1))
}

// monthDays lists the BYMONTHDAY days of a month after BYSETPOS selection.
func (it *Iterator) monthDays(year, month int) []int {
	days := normalizeByMonthDayRules(year, month, it.rule.Part(ByMonthDay))
	return applySetPos(days, it.byData[BySetPos])
}

// monthDayMatches reports whether the current day satisfies the day-level
// parts of a MONTHLY rule. Time expansion stays on the same day, which may
// be DTSTART's day rather than a generated one.
func (it *Iterator) monthDayMatches() bool {
	y, m, d := it.last.Year(), it.last.Month(), it.last.Day()
	switch {
	case it.rule.HasPart(ByDay) && it.rule.HasPart(ByMonthDay):
		return it.isDayInByDay(it.last) &&
			containsInt(normalizeByMonthDayRules(y, m, it.rule.Part(ByMonthDay)), d)
	case it.rule.HasPart(ByDay):
		if !it.isDayInByDay(it.last) {
			return false
		}
		return !it.rule.HasPart(BySetPos) || it.monthSetPosValid()
	case it.rule.HasPart(ByMonthDay):
		return containsInt(it.monthDays(y, m), d)
	}
	return d == it.byData[ByMonthDay][0]
}

// nextMonth advances a MONTHLY rule and reports whether the new candidate
// satisfies the day-level parts.
func (it *Iterator) nextMonth() (bool, error) {
	if !it.nextHour() {
		return it.monthDayMatches(), nil
	}

	switch {
	case it.rule.HasPart(ByDay) && it.rule.HasPart(ByMonthDay):
		return it.byDayAndMonthDay(false)

	case it.rule.HasPart(ByDay):
		y, m := it.last.Year(), it.last.Month()
		dim := icaltime.DaysInMonth(m, y)
		hasSetPos := it.rule.HasPart(BySetPos)
		setPos, total := 0, 0
		if hasSetPos {
			lastDay := it.last.Day()
			for day := 1; day <= dim; day++ {
				if it.isDayInByDay(icaltime.Date(y, m, day)) {
					total++
					if day <= lastDay {
						setPos++
					}
				}
			}
		}
		for day := it.last.Day() + 1; day <= dim; day++ {
			if !it.isDayInByDay(icaltime.Date(y, m, day)) {
				continue
			}
			setPos++
			if !hasSetPos || it.checkSetPosition(setPos) || it.checkSetPosition(setPos-total-1) {
				it.setDay(day)
				return true, nil
			}
		}

		it.incrementMonth()
		if !it.isDayInByDay(it.last) {
			return false, nil
		}
		if !hasSetPos {
			return true, nil
		}
		y, m = it.last.Year(), it.last.Month()
		dim = icaltime.DaysInMonth(m, y)
		total = 0
		for day := 1; day <= dim; day++ {
			if it.isDayInByDay(icaltime.Date(y, m, day)) {
				total++
			}
		}
		return it.checkSetPosition(1) || it.checkSetPosition(-total), nil

	case it.rule.HasPart(ByMonthDay):
		days := it.monthDays(it.last.Year(), it.last.Month())
		cur := it.last.Day()
		for i, d := range days {
			if d > cur {
				it.byIndices[ByMonthDay] = i
				it.setDay(d)
				return true, nil
			}
		}
		it.incrementMonth()
		days = it.monthDays(it.last.Year(), it.last.Month())
		if len(days) == 0 {
			return false, nil
		}
		it.byIndices[ByMonthDay] = 0
		it.setDay(days[0])
		return true, nil
	}

	it.incrementMonth()
	day := it.byData[ByMonthDay][0]
	if day > icaltime.DaysInMonth(it.last.Month(), it.last.Year()) {
		return false, nil
	}
	it.setDay(day)
	return true, nil
}

// byDayAndMonthDay finds the next day matching both BYDAY and BYMONTHDAY,
// scanning at most MaxMonthWalk months. On init the current day is a
// candidate too.
func (it *Iterator) byDayAndMonthDay(isInit bool) (bool, error) {
	var (
		byMonthDay  []int
		dateIdx     int
		daysInMonth int
		months      int
	)
	rules := it.rule.Part(ByMonthDay)
	lastDay := it.last.Day()

	initMonth := func() {
		y, m := it.last.Year(), it.last.Month()
		daysInMonth = icaltime.DaysInMonth(m, y)
		byMonthDay = normalizeByMonthDayRules(y, m, rules)
		for dateIdx < len(byMonthDay)-1 && byMonthDay[dateIdx] <= lastDay &&
			!(isInit && byMonthDay[dateIdx] == lastDay) {
			dateIdx++
		}
	}
	nextMonth := func() {
		lastDay = 0
		it.incrementMonth()
		dateIdx = 0
		months++
		initMonth()
	}

	initMonth()
	if isInit {
		lastDay--
	}

	for {
		if months >= MaxMonthWalk {
			return false, exhaustedError("no day matching BYDAY and BYMONTHDAY within %d months", MaxMonthWalk)
		}
		date := lastDay + 1
		if date > daysInMonth || dateIdx >= len(byMonthDay) {
			nextMonth()
			continue
		}
		next := byMonthDay[dateIdx]
		dateIdx++
		if next < date {
			nextMonth()
			continue
		}
		lastDay = next
		it.setDay(lastDay)
		for _, bd := range it.byDay {
			if it.last.IsNthWeekDay(bd.Day, bd.Pos) {
				return true, nil
			}
		}
		if dateIdx == len(byMonthDay) {
			nextMonth()
		}
	}
}
