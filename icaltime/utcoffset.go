package icaltime

import (
	"fmt"
	"strconv"
)

// Offsets are kept within [-12:00, +14:00]. Values outside wrap by 27 hours.
const (
	minOffsetSeconds = -12 * 3600
	maxOffsetSeconds = 14 * 3600
	offsetWrap       = 27 * 3600
)

// UtcOffset is a signed hours/minutes offset from UTC. Factor carries the
// sign so that -00:00 can be represented; zero is treated as +1.
type UtcOffset struct {
	Hours   int
	Minutes int
	Factor  int
}

// UtcOffsetFromSeconds builds an offset from signed seconds. Seconds below
// a whole minute are dropped.
func UtcOffsetFromSeconds(secs int) UtcOffset {
	o := UtcOffset{Factor: 1}
	if secs < 0 {
		o.Factor = -1
		secs = -secs
	}
	o.Hours = secs / 3600
	o.Minutes = secs % 3600 / 60
	return o
}

func (o UtcOffset) sign() int {
	if o.Factor < 0 {
		return -1
	}
	return 1
}

// ToSeconds returns the signed offset in seconds.
func (o UtcOffset) ToSeconds() int {
	return o.sign() * (o.Hours*3600 + o.Minutes*60)
}

// Normalize wraps o into the supported range. A zero result keeps the
// original sign.
func (o UtcOffset) Normalize() UtcOffset {
	secs := o.ToSeconds()
	for secs < minOffsetSeconds {
		secs += offsetWrap
	}
	for secs > maxOffsetSeconds {
		secs -= offsetWrap
	}
	if secs == 0 {
		return UtcOffset{Factor: o.sign()}
	}
	return UtcOffsetFromSeconds(secs)
}

// Compare orders offsets by signed length.
func (o UtcOffset) Compare(other UtcOffset) int {
	a, b := o.ToSeconds(), other.ToSeconds()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (o UtcOffset) signChar() byte {
	if o.sign() < 0 {
		return '-'
	}
	return '+'
}

// String renders o as +HH:MM.
func (o UtcOffset) String() string {
	return fmt.Sprintf("%c%02d:%02d", o.signChar(), o.Hours, o.Minutes)
}

// ICALString renders o as +HHMM.
func (o UtcOffset) ICALString() string {
	return fmt.Sprintf("%c%02d%02d", o.signChar(), o.Hours, o.Minutes)
}

// ParseUtcOffset reads +HH:MM, +HHMM or +HHMMSS.
func ParseUtcOffset(s string) (UtcOffset, error) {
	if len(s) < 5 || (s[0] != '+' && s[0] != '-') {
		return UtcOffset{}, fmt.Errorf("%w: utc offset %q", ErrInvalidFormat, s)
	}
	body := s[1:]
	if len(body) == 5 && body[2] == ':' {
		body = body[:2] + body[3:]
	}
	if len(body) != 4 && len(body) != 6 {
		return UtcOffset{}, fmt.Errorf("%w: utc offset %q", ErrInvalidFormat, s)
	}
	for _, c := range body {
		if c < '0' || c > '9' {
			return UtcOffset{}, fmt.Errorf("%w: utc offset %q", ErrInvalidFormat, s)
		}
	}
	hours, _ := strconv.Atoi(body[:2])
	minutes, _ := strconv.Atoi(body[2:4])
	if minutes > 59 {
		return UtcOffset{}, fmt.Errorf("%w: utc offset %q", ErrInvalidFormat, s)
	}
	o := UtcOffset{Hours: hours, Minutes: minutes, Factor: 1}
	if s[0] == '-' {
		o.Factor = -1
	}
	return o, nil
}
