// Package recur implements RFC 5545 recurrence rules: the RRULE value
// type, a resumable occurrence iterator, and an expansion that merges
// RRULE, RDATE and EXDATE sets in chronological order.
package recur

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/mo"

	"github.com/cyp0633/librecur/icaltime"
)

// Frequency is the FREQ rule part.
type Frequency int

const (
	Secondly Frequency = iota + 1
	Minutely
	Hourly
	Daily
	Weekly
	Monthly
	Yearly
)

var frequencyNames = [...]string{"", "SECONDLY", "MINUTELY", "HOURLY", "DAILY", "WEEKLY", "MONTHLY", "YEARLY"}

func (f Frequency) String() string {
	if f < Secondly || f > Yearly {
		return fmt.Sprintf("Frequency(%d)", int(f))
	}
	return frequencyNames[f]
}

// ParseFrequency converts a FREQ value.
func ParseFrequency(s string) (Frequency, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for i := 1; i < len(frequencyNames); i++ {
		if frequencyNames[i] == name {
			return Frequency(i), nil
		}
	}
	return 0, validationError("unknown frequency %q", s)
}

// Part names a BY-rule part.
type Part string

const (
	BySecond   Part = "BYSECOND"
	ByMinute   Part = "BYMINUTE"
	ByHour     Part = "BYHOUR"
	ByDay      Part = "BYDAY"
	ByMonthDay Part = "BYMONTHDAY"
	ByYearDay  Part = "BYYEARDAY"
	ByWeekNo   Part = "BYWEEKNO"
	ByMonth    Part = "BYMONTH"
	BySetPos   Part = "BYSETPOS"
)

// partOrder is the order parts are written in.
var partOrder = []Part{BySecond, ByMinute, ByHour, ByDay, ByMonthDay, ByYearDay, ByWeekNo, ByMonth, BySetPos}

type partRange struct {
	min, max  int
	allowZero bool
}

var partRanges = map[Part]partRange{
	BySecond:   {0, 60, true},
	ByMinute:   {0, 59, true},
	ByHour:     {0, 23, true},
	ByMonthDay: {-31, 31, false},
	ByYearDay:  {-366, 366, false},
	ByWeekNo:   {-53, 53, false},
	ByMonth:    {1, 12, false},
	BySetPos:   {-366, 366, false},
}

func checkRange(p Part, values []int) error {
	r, ok := partRanges[p]
	if !ok {
		return validationError("unknown rule part %s", p)
	}
	for _, v := range values {
		if v < r.min || v > r.max || (v == 0 && !r.allowZero) {
			return validationError("%s value %d out of range", p, v)
		}
	}
	return nil
}

// WeekdayNum is one BYDAY entry: a weekday with an optional ordinal.
// Pos 0 means every such weekday in the period.
type WeekdayNum struct {
	Pos int
	Day icaltime.Weekday
}

var byDayPattern = regexp.MustCompile(`^([+-])?(5[0-3]|[1-4][0-9]|[1-9])?(SU|MO|TU|WE|TH|FR|SA)$`)

// ParseWeekdayNum parses a BYDAY token such as MO, 2TU or -1SU.
func ParseWeekdayNum(s string) (WeekdayNum, error) {
	m := byDayPattern.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(s)))
	if m == nil {
		return WeekdayNum{}, validationError("malformed BYDAY value %q", s)
	}
	day, err := icaltime.ParseWeekday(m[3])
	if err != nil {
		return WeekdayNum{}, validationError("malformed BYDAY value %q", s)
	}
	w := WeekdayNum{Day: day}
	if m[2] != "" {
		w.Pos, _ = strconv.Atoi(m[2])
		if m[1] == "-" {
			w.Pos = -w.Pos
		}
	}
	return w, nil
}

func (w WeekdayNum) String() string {
	if w.Pos == 0 {
		return w.Day.String()
	}
	return strconv.Itoa(w.Pos) + w.Day.String()
}

// RuleParts is the decoded, not yet validated form of a rule. Parts maps
// BY-part names to their raw tokens.
type RuleParts struct {
	Freq      string
	Interval  int
	Count     *int
	Until     *icaltime.Time
	WeekStart string
	Parts     map[string][]string
}

// Recur is a validated recurrence rule.
type Recur struct {
	Freq      Frequency
	Interval  int
	Count     mo.Option[int]
	Until     mo.Option[icaltime.Time]
	WeekStart icaltime.Weekday

	parts map[Part][]int
	byDay []WeekdayNum
}

// NewRecur validates p and builds a rule.
func NewRecur(p RuleParts) (*Recur, error) {
	freq, err := ParseFrequency(p.Freq)
	if err != nil {
		return nil, err
	}
	r := &Recur{Freq: freq, Interval: p.Interval, WeekStart: icaltime.DefaultWeekStart}
	if r.Interval < 1 {
		r.Interval = 1
	}
	if p.Count != nil {
		if *p.Count < 0 {
			return nil, validationError("COUNT must not be negative, got %d", *p.Count)
		}
		r.Count = mo.Some(*p.Count)
	}
	if p.Until != nil {
		r.Until = mo.Some(*p.Until)
	}
	if p.WeekStart != "" {
		wkst, err := icaltime.ParseWeekday(p.WeekStart)
		if err != nil {
			return nil, validationError("unknown WKST %q", p.WeekStart)
		}
		r.WeekStart = wkst
	}

	names := make([]string, 0, len(p.Parts))
	for name := range p.Parts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		part := Part(strings.ToUpper(name))
		tokens := p.Parts[name]
		if part == ByDay {
			days := make([]WeekdayNum, 0, len(tokens))
			for _, tok := range tokens {
				w, err := ParseWeekdayNum(tok)
				if err != nil {
					return nil, err
				}
				days = append(days, w)
			}
			if err := r.SetByDay(days); err != nil {
				return nil, err
			}
			continue
		}
		values := make([]int, 0, len(tokens))
		for _, tok := range tokens {
			v, err := strconv.Atoi(strings.TrimSpace(tok))
			if err != nil {
				return nil, malformedError(err, "%s value %q", part, tok)
			}
			values = append(values, v)
		}
		if err := r.SetPart(part, values); err != nil {
			return nil, err
		}
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// ParseRecur parses an RRULE value such as FREQ=WEEKLY;BYDAY=MO,WE.
func ParseRecur(s string) (*Recur, error) {
	p, err := ParseRuleParts(s)
	if err != nil {
		return nil, err
	}
	return NewRecur(p)
}

// ParseRuleParts splits an RRULE value into its raw parts.
func ParseRuleParts(s string) (RuleParts, error) {
	p := RuleParts{Parts: map[string][]string{}}
	for _, field := range strings.Split(strings.TrimSpace(s), ";") {
		if field == "" {
			continue
		}
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			return RuleParts{}, malformedError(nil, "rule part %q has no value", field)
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		switch key {
		case "FREQ":
			p.Freq = value
		case "INTERVAL":
			n, err := strconv.Atoi(value)
			if err != nil {
				return RuleParts{}, malformedError(err, "INTERVAL %q", value)
			}
			p.Interval = n
		case "COUNT":
			n, err := strconv.Atoi(value)
			if err != nil {
				return RuleParts{}, malformedError(err, "COUNT %q", value)
			}
			p.Count = &n
		case "UNTIL":
			until, err := parseUntil(value)
			if err != nil {
				return RuleParts{}, err
			}
			p.Until = &until
		case "WKST":
			p.WeekStart = value
		default:
			if strings.HasPrefix(key, "X-") {
				continue
			}
			if _, known := partRanges[Part(key)]; !known && Part(key) != ByDay {
				return RuleParts{}, validationError("unknown rule part %s", key)
			}
			p.Parts[key] = strings.Split(value, ",")
		}
	}
	return p, nil
}

func parseUntil(value string) (icaltime.Time, error) {
	if t, err := icaltime.FromICALString(value, nil); err == nil {
		return t, nil
	}
	t, err := icaltime.FromString(value)
	if err != nil {
		return icaltime.Time{}, malformedError(err, "UNTIL %q", value)
	}
	return t, nil
}

func (r *Recur) interval() int {
	if r.Interval < 1 {
		return 1
	}
	return r.Interval
}

func (r *Recur) weekStart() icaltime.Weekday {
	if !r.WeekStart.Valid() {
		return icaltime.DefaultWeekStart
	}
	return r.WeekStart
}

// HasPart reports whether the rule names p.
func (r *Recur) HasPart(p Part) bool {
	if p == ByDay {
		return len(r.byDay) > 0
	}
	return len(r.parts[p]) > 0
}

// Part returns a copy of the values of a numeric BY-part.
func (r *Recur) Part(p Part) []int {
	return append([]int(nil), r.parts[p]...)
}

// ByDay returns a copy of the BYDAY entries.
func (r *Recur) ByDay() []WeekdayNum {
	return append([]WeekdayNum(nil), r.byDay...)
}

// SetPart replaces a numeric BY-part after checking each value's range.
// An empty list removes the part.
func (r *Recur) SetPart(p Part, values []int) error {
	if p == ByDay {
		return validationError("BYDAY takes weekday values")
	}
	if err := checkRange(p, values); err != nil {
		return err
	}
	if r.parts == nil {
		r.parts = map[Part][]int{}
	}
	if len(values) == 0 {
		delete(r.parts, p)
		return nil
	}
	r.parts[p] = append([]int(nil), values...)
	return nil
}

// AddPart appends one value to a numeric BY-part.
func (r *Recur) AddPart(p Part, v int) error {
	return r.SetPart(p, append(r.Part(p), v))
}

// SetByDay replaces the BYDAY part.
func (r *Recur) SetByDay(days []WeekdayNum) error {
	for _, d := range days {
		if !d.Day.Valid() || d.Pos < -53 || d.Pos > 53 {
			return validationError("BYDAY value %v out of range", d)
		}
	}
	r.byDay = append([]WeekdayNum(nil), days...)
	return nil
}

// IsFinite reports whether the rule is bounded by COUNT or UNTIL.
func (r *Recur) IsFinite() bool {
	return r.Count.IsPresent() || r.Until.IsPresent()
}

// IsByCount reports whether the rule is bounded by COUNT.
func (r *Recur) IsByCount() bool {
	return r.Count.IsPresent()
}

// Clone returns a deep copy of r.
func (r *Recur) Clone() *Recur {
	c := *r
	c.parts = make(map[Part][]int, len(r.parts))
	for p, v := range r.parts {
		c.parts[p] = append([]int(nil), v...)
	}
	c.byDay = append([]WeekdayNum(nil), r.byDay...)
	return &c
}

// Validate checks the part combination rules of RFC 5545.
func (r *Recur) Validate() error {
	if r.Freq < Secondly || r.Freq > Yearly {
		return validationError("unknown frequency %d", int(r.Freq))
	}
	if r.Count.IsPresent() && r.Until.IsPresent() {
		return validationError("COUNT and UNTIL cannot both be set")
	}
	for _, p := range partOrder {
		if p == ByDay {
			continue
		}
		if err := checkRange(p, r.parts[p]); err != nil {
			return err
		}
	}

	has := r.HasPart
	if has(ByYearDay) && (has(ByMonth) || has(ByWeekNo) || has(ByMonthDay) || has(ByDay)) {
		return validationError("BYYEARDAY cannot be combined with BYMONTH, BYWEEKNO, BYMONTHDAY or BYDAY")
	}
	if has(ByWeekNo) && has(ByMonthDay) {
		return validationError("BYWEEKNO cannot be combined with BYMONTHDAY")
	}
	if r.Freq == Monthly && (has(ByYearDay) || has(ByWeekNo)) {
		return validationError("MONTHLY rules cannot use BYYEARDAY or BYWEEKNO")
	}
	if r.Freq == Weekly && (has(ByMonthDay) || has(ByYearDay)) {
		return validationError("WEEKLY rules cannot use BYMONTHDAY or BYYEARDAY")
	}
	if r.Freq != Yearly && has(ByYearDay) {
		return validationError("BYYEARDAY is only valid in YEARLY rules")
	}
	if has(BySetPos) {
		other := false
		for _, p := range partOrder {
			if p != BySetPos && has(p) {
				other = true
				break
			}
		}
		if !other {
			return validationError("BYSETPOS requires another BY rule part")
		}
	}
	for _, d := range r.byDay {
		if d.Pos == 0 {
			continue
		}
		switch {
		case r.Freq != Monthly && r.Freq != Yearly:
			return validationError("BYDAY ordinal %s is only valid in MONTHLY or YEARLY rules", d)
		case r.Freq == Yearly && has(ByWeekNo):
			return validationError("BYDAY ordinal %s cannot be combined with BYWEEKNO", d)
		case (r.Freq == Monthly || has(ByMonth)) && (d.Pos < -5 || d.Pos > 5):
			return validationError("BYDAY ordinal %s out of range for a month", d)
		}
	}
	return nil
}

// Parts returns the structured form of r.
func (r *Recur) Parts() RuleParts {
	p := RuleParts{
		Freq:      r.Freq.String(),
		Interval:  r.interval(),
		WeekStart: r.weekStart().String(),
		Parts:     map[string][]string{},
	}
	if n, ok := r.Count.Get(); ok {
		p.Count = &n
	}
	if u, ok := r.Until.Get(); ok {
		p.Until = &u
	}
	for _, part := range partOrder {
		if tokens := r.tokens(part); len(tokens) > 0 {
			p.Parts[string(part)] = tokens
		}
	}
	return p
}

func (r *Recur) tokens(p Part) []string {
	if p == ByDay {
		out := make([]string, len(r.byDay))
		for i, d := range r.byDay {
			out[i] = d.String()
		}
		return out
	}
	values := r.parts[p]
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strconv.Itoa(v)
	}
	return out
}

// String renders r as an RRULE value.
func (r *Recur) String() string {
	var b strings.Builder
	b.WriteString("FREQ=")
	b.WriteString(r.Freq.String())
	if n, ok := r.Count.Get(); ok {
		fmt.Fprintf(&b, ";COUNT=%d", n)
	}
	if r.interval() > 1 {
		fmt.Fprintf(&b, ";INTERVAL=%d", r.interval())
	}
	for _, p := range partOrder {
		if !r.HasPart(p) {
			continue
		}
		fmt.Fprintf(&b, ";%s=%s", p, strings.Join(r.tokens(p), ","))
	}
	if u, ok := r.Until.Get(); ok {
		b.WriteString(";UNTIL=")
		b.WriteString(u.ICALString())
	}
	if wkst := r.weekStart(); wkst != icaltime.DefaultWeekStart {
		b.WriteString(";WKST=")
		b.WriteString(wkst.String())
	}
	return b.String()
}

// Iterator returns an iterator over the occurrences of r starting at
// start, with default options.
func (r *Recur) Iterator(start icaltime.Time) (*Iterator, error) {
	return NewIterator(r, start, Options{})
}

// NextOccurrenceAfter returns the first occurrence of r from start that is
// strictly after after. ok is false when the rule ends first.
func (r *Recur) NextOccurrenceAfter(start, after icaltime.Time) (icaltime.Time, bool, error) {
	it, err := r.Iterator(start)
	if err != nil {
		return icaltime.Time{}, false, err
	}
	for {
		next, err := it.Next()
		if errors.Is(err, Done) {
			return icaltime.Time{}, false, nil
		}
		if err != nil {
			return icaltime.Time{}, false, err
		}
		if next.Compare(after) > 0 {
			return next, true, nil
		}
	}
}
