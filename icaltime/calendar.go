package icaltime

// Cumulative day counts before each month, for common and leap years.
var daysInYearPassedMonth = [2][13]int{
	{0, 31, 59, 90, 120, 151, 181, 212, 243, 273, 304, 334, 365},
	{0, 31, 60, 91, 121, 152, 182, 213, 244, 274, 305, 335, 366},
}

var daysInMonth = [13]int{0, 31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// IsLeapYear applies the Julian rule up to 1752 and the Gregorian rule after.
func IsLeapYear(year int) bool {
	if year <= 1752 {
		return year%4 == 0
	}
	return (year%4 == 0 && year%100 != 0) || year%400 == 0
}

// DaysInMonth returns the length of month in year. Months outside 1..12
// report 30.
func DaysInMonth(month, year int) int {
	if month < 1 || month > 12 {
		return 30
	}
	if month == 2 && IsLeapYear(year) {
		return 29
	}
	return daysInMonth[month]
}

// DaysInYear returns 365 or 366.
func DaysInYear(year int) int {
	if IsLeapYear(year) {
		return 366
	}
	return 365
}

func leapIndex(year int) int {
	if IsLeapYear(year) {
		return 1
	}
	return 0
}

// dayOfYear returns the 1-based ordinal of a normalized date.
func dayOfYear(year, month, day int) int {
	return daysInYearPassedMonth[leapIndex(year)][month-1] + day
}

// dayOfWeek uses Zeller's congruence and maps the result onto 1..7 with
// weekStart as 1.
func dayOfWeek(year, month, day int, weekStart Weekday) int {
	m, y := month, year
	if m < 3 {
		m += 12
		y--
	}
	h := day + y + (m+1)*26/10 + floorDiv(y, 4) + 6*floorDiv(y, 100) + floorDiv(y, 400)
	h = floorMod(h, 7) // 0 is Saturday
	return floorMod(h+7-int(weekStart), 7) + 1
}

// daysFromCivil counts days since 1970-01-01 on the proleptic Gregorian
// calendar.
func daysFromCivil(year, month, day int) int64 {
	y := int64(year)
	if month <= 2 {
		y--
	}
	era := y / 400
	if y < 0 && y%400 != 0 {
		era--
	}
	yoe := y - era*400
	mp := int64(month+9) % 12
	doy := (153*mp+2)/5 + int64(day) - 1
	doe := yoe*365 + yoe/4 - yoe/100 + doy
	return era*146097 + doe - 719468
}

// civilFromDays is the inverse of daysFromCivil.
func civilFromDays(z int64) (year, month, day int) {
	z += 719468
	era := z / 146097
	if z < 0 && z%146097 != 0 {
		era--
	}
	doe := z - era*146097
	yoe := (doe - doe/1460 + doe/36524 - doe/146096) / 365
	y := yoe + era*400
	doy := doe - (365*yoe + yoe/4 - yoe/100)
	mp := (5*doy + 2) / 153
	d := doy - (153*mp+2)/5 + 1
	m := mp + 3
	if m > 12 {
		m -= 12
	}
	if m <= 2 {
		y++
	}
	return int(y), int(m), int(d)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	return a - floorDiv(a, b)*b
}
