package icaltime

import (
	"fmt"
	"strings"
)

// Weekday numbers days the way iCalendar orders them, Sunday first.
type Weekday int

const (
	Sunday Weekday = iota + 1
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

// DefaultWeekStart is the WKST value used when a rule does not name one.
const DefaultWeekStart = Monday

var weekdayTokens = [...]string{"", "SU", "MO", "TU", "WE", "TH", "FR", "SA"}

// Valid reports whether d is one of the seven named days.
func (d Weekday) Valid() bool {
	return d >= Sunday && d <= Saturday
}

// String returns the two-letter iCalendar token, e.g. "MO".
func (d Weekday) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Weekday(%d)", int(d))
	}
	return weekdayTokens[d]
}

// ParseWeekday converts a two-letter token into a Weekday.
func ParseWeekday(s string) (Weekday, error) {
	token := strings.ToUpper(strings.TrimSpace(s))
	for i := 1; i < len(weekdayTokens); i++ {
		if weekdayTokens[i] == token {
			return Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown weekday %q", ErrInvalidFormat, s)
}

// Relative maps d onto 1..7 where weekStart is 1.
func (d Weekday) Relative(weekStart Weekday) int {
	return floorMod(int(d)-int(weekStart), 7) + 1
}
