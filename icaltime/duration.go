package icaltime

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration is a signed iCalendar duration. Weeks and Days may both be set
// internally; String folds weeks into days when both are present.
type Duration struct {
	Weeks    int
	Days     int
	Hours    int
	Minutes  int
	Seconds  int
	Negative bool
}

// DurationFromSeconds decomposes secs. Whole weeks are used only when the
// day count divides evenly by seven.
func DurationFromSeconds(secs int64) Duration {
	var d Duration
	if secs < 0 {
		d.Negative = true
		secs = -secs
	}
	days := secs / 86400
	if days%7 == 0 {
		d.Weeks = int(days / 7)
	} else {
		d.Days = int(days)
	}
	secs -= days * 86400
	d.Hours = int(secs / 3600)
	secs -= int64(d.Hours) * 3600
	d.Minutes = int(secs / 60)
	d.Seconds = int(secs % 60)
	return d
}

// ToSeconds returns the signed length of d.
func (d Duration) ToSeconds() int64 {
	secs := int64(d.Seconds) + 60*int64(d.Minutes) + 3600*int64(d.Hours) +
		86400*int64(d.Days) + 7*86400*int64(d.Weeks)
	if d.Negative {
		return -secs
	}
	return secs
}

// GoDuration converts d into a time.Duration.
func (d Duration) GoDuration() time.Duration {
	return time.Duration(d.ToSeconds()) * time.Second
}

// Normalize returns the canonical decomposition of d.
func (d Duration) Normalize() Duration {
	return DurationFromSeconds(d.ToSeconds())
}

// Compare orders durations by signed length.
func (d Duration) Compare(other Duration) int {
	a, b := d.ToSeconds(), other.ToSeconds()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// IsZero reports whether d has no length.
func (d Duration) IsZero() bool {
	return d.ToSeconds() == 0
}

// String renders d in RFC 5545 form. A zero duration is PT0S.
func (d Duration) String() string {
	if d.ToSeconds() == 0 {
		return "PT0S"
	}
	var b strings.Builder
	if d.Negative {
		b.WriteByte('-')
	}
	b.WriteByte('P')
	weeks, days := d.Weeks, d.Days
	if weeks != 0 && days != 0 {
		days += 7 * weeks
		weeks = 0
	}
	if weeks != 0 {
		fmt.Fprintf(&b, "%dW", weeks)
	}
	if days != 0 {
		fmt.Fprintf(&b, "%dD", days)
	}
	if d.Hours != 0 || d.Minutes != 0 || d.Seconds != 0 {
		b.WriteByte('T')
		if d.Hours != 0 {
			fmt.Fprintf(&b, "%dH", d.Hours)
		}
		if d.Minutes != 0 {
			fmt.Fprintf(&b, "%dM", d.Minutes)
		}
		if d.Seconds != 0 {
			fmt.Fprintf(&b, "%dS", d.Seconds)
		}
	}
	return b.String()
}

// ParseDuration reads an RFC 5545 duration such as -P1DT2H or P3W.
func ParseDuration(s string) (Duration, error) {
	var d Duration
	rest := strings.TrimSpace(s)
	if rest == "" {
		return d, fmt.Errorf("%w: empty duration", ErrInvalidFormat)
	}
	switch rest[0] {
	case '-':
		d.Negative = true
		rest = rest[1:]
	case '+':
		rest = rest[1:]
	}
	if !strings.HasPrefix(rest, "P") {
		return Duration{}, fmt.Errorf("%w: duration %q", ErrInvalidFormat, s)
	}
	rest = rest[1:]
	if rest == "" {
		return Duration{}, fmt.Errorf("%w: duration %q", ErrInvalidFormat, s)
	}

	inTime := false
	parts, timeParts := 0, 0
	for rest != "" {
		if rest[0] == 'T' {
			if inTime {
				return Duration{}, fmt.Errorf("%w: duration %q", ErrInvalidFormat, s)
			}
			inTime = true
			rest = rest[1:]
			continue
		}
		i := 0
		for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
			i++
		}
		if i == 0 || i == len(rest) {
			return Duration{}, fmt.Errorf("%w: duration %q", ErrInvalidFormat, s)
		}
		n, err := strconv.Atoi(rest[:i])
		if err != nil {
			return Duration{}, fmt.Errorf("%w: duration %q: %w", ErrInvalidFormat, s, err)
		}
		switch unit := rest[i]; {
		case unit == 'W' && !inTime:
			d.Weeks = n
		case unit == 'D' && !inTime:
			d.Days = n
		case unit == 'H' && inTime:
			d.Hours = n
		case unit == 'M' && inTime:
			d.Minutes = n
		case unit == 'S' && inTime:
			d.Seconds = n
		default:
			return Duration{}, fmt.Errorf("%w: duration %q", ErrInvalidFormat, s)
		}
		parts++
		if inTime {
			timeParts++
		}
		rest = rest[i+1:]
	}
	if parts == 0 || (inTime && timeParts == 0) {
		return Duration{}, fmt.Errorf("%w: duration %q", ErrInvalidFormat, s)
	}
	return d, nil
}
