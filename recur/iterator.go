package recur

import (
	"errors"
	"log/slog"
	"sort"

	"github.com/cyp0633/librecur/icaltime"
)

// How a BY-part acts for a given frequency.
type partAction int

const (
	actionNone partAction = iota
	actionContract
	actionExpand
	actionIllegal
)

var partIndex = map[Part]int{
	BySecond:   0,
	ByMinute:   1,
	ByHour:     2,
	ByDay:      3,
	ByMonthDay: 4,
	ByYearDay:  5,
	ByWeekNo:   6,
	ByMonth:    7,
}

// RFC 5545 section 3.3.10, indexed by partIndex.
var expandMap = func() map[Frequency][8]partAction {
	const (
		con = actionContract
		exp = actionExpand
		ill = actionIllegal
	)
	return map[Frequency][8]partAction{
		Secondly: {con, con, con, con, con, con, con, con},
		Minutely: {exp, con, con, con, con, con, con, con},
		Hourly:   {exp, exp, con, con, con, con, con, con},
		Daily:    {exp, exp, exp, con, con, con, con, con},
		Weekly:   {exp, exp, exp, exp, ill, ill, con, con},
		Monthly:  {exp, exp, exp, exp, exp, ill, ill, con},
		Yearly:   {exp, exp, exp, exp, exp, exp, exp, exp},
	}
}()

// Iterator yields the occurrences of one rule in ascending order. All of
// its state is plain data; see State and RestoreIterator.
type Iterator struct {
	rule    *Recur
	dtstart icaltime.Time
	last    icaltime.Time

	byData    map[Part][]int
	byDay     []WeekdayNum
	byIndices map[Part]int
	days      []int
	daysIndex int

	occurrence  int
	initialized bool
	completed   bool

	cal    *icaltime.Calendar
	logger *slog.Logger
}

// NewIterator prepares an iterator for rule anchored at start. The first
// call to Next returns the first occurrence at or after start.
func NewIterator(rule *Recur, start icaltime.Time, opts Options) (*Iterator, error) {
	it, err := newIterator(rule, start, opts)
	if err != nil {
		return nil, err
	}
	if err := it.init(); err != nil {
		return nil, err
	}
	return it, nil
}

func newIterator(rule *Recur, start icaltime.Time, opts Options) (*Iterator, error) {
	if rule == nil {
		return nil, validationError("missing rule")
	}
	opts = opts.withDefaults()
	start.Normalize()
	it := &Iterator{
		rule:      rule.Clone(),
		dtstart:   start,
		last:      start,
		byData:    make(map[Part][]int),
		byDay:     rule.ByDay(),
		byIndices: make(map[Part]int),
		cal:       opts.Calendar,
		logger:    opts.Logger,
	}
	for p, v := range rule.parts {
		it.byData[p] = append([]int(nil), v...)
	}
	return it, nil
}

// Rule returns a copy of the iterated rule.
func (it *Iterator) Rule() *Recur { return it.rule.Clone() }

// DTStart returns the anchor of the iteration.
func (it *Iterator) DTStart() icaltime.Time { return it.dtstart }

// Last returns the most recent candidate.
func (it *Iterator) Last() icaltime.Time { return it.last }

// Occurrences returns how many occurrences have been returned so far.
func (it *Iterator) Occurrences() int { return it.occurrence }

// Completed reports whether the iterator has run out.
func (it *Iterator) Completed() bool { return it.completed }

func (it *Iterator) action(p Part) partAction {
	idx, ok := partIndex[p]
	if !ok {
		return actionNone
	}
	return expandMap[it.rule.Freq][idx]
}

func (it *Iterator) init() error {
	it.initialized = true
	if err := it.rule.Validate(); err != nil {
		return err
	}

	wkst := it.rule.weekStart()
	sort.SliceStable(it.byDay, func(i, j int) bool {
		return it.byDay[i].Day.Relative(wkst) < it.byDay[j].Day.Relative(wkst)
	})
	for _, p := range []Part{BySecond, ByMinute, ByHour, ByMonth} {
		it.byData[p] = sortedUnique(it.byData[p])
	}
	for _, p := range []Part{BySecond, ByMinute, ByHour, ByDay, ByMonthDay, ByMonth} {
		it.byIndices[p] = 0
	}

	second := it.setupDefaults(BySecond, Secondly, it.dtstart.Second())
	minute := it.setupDefaults(ByMinute, Minutely, it.dtstart.Minute())
	hour := it.setupDefaults(ByHour, Hourly, it.dtstart.Hour())
	day := it.setupDefaults(ByMonthDay, Daily, it.dtstart.Day())
	month := it.setupDefaults(ByMonth, Monthly, it.dtstart.Month())
	year := it.dtstart.Year()
	if day < 1 || day > icaltime.DaysInMonth(month, year) {
		day = 1
	}
	it.last = it.dtstart
	it.last.SetSecond(second)
	it.last.SetMinute(minute)
	it.last.SetHour(hour)
	it.setDate(year, month, day)

	var err error
	switch it.rule.Freq {
	case Weekly:
		it.initWeekly()
	case Monthly:
		err = it.initMonthly()
	case Yearly:
		err = it.initYearly()
	}
	if err != nil {
		it.logger.Warn("recurrence iterator init failed", "rule", it.rule.String(), "dtstart", it.dtstart.String(), "error", err)
		return err
	}
	it.logger.Debug("recurrence iterator initialized", "rule", it.rule.String(), "dtstart", it.dtstart.String(), "first", it.last.String())
	return nil
}

// setupDefaults seeds an absent expanding part with the DTSTART value and
// returns the value the first candidate should use.
func (it *Iterator) setupDefaults(p Part, freq Frequency, def int) int {
	if it.action(p) != actionContract {
		if len(it.byData[p]) == 0 {
			it.byData[p] = []int{def}
		}
		if it.rule.Freq != freq {
			return it.byData[p][0]
		}
	}
	return def
}

func (it *Iterator) initWeekly() {
	if !it.rule.HasPart(ByDay) {
		it.byDay = []WeekdayNum{{Day: it.dtstart.Weekday()}}
		return
	}
	wkst := it.rule.weekStart()
	want := it.byDay[0].Day.Relative(wkst)
	cur := it.cal.DayOfWeek(it.last, wkst)
	if delta := want - cur; delta != 0 {
		it.last.AddDays(delta)
	}
}

func (it *Iterator) initMonthly() error {
	switch {
	case it.rule.HasPart(ByDay):
		return it.initMonthlyByDay()
	case it.rule.HasPart(ByMonthDay):
		return it.initMonthlyByMonthDay()
	}
	return nil
}

func (it *Iterator) initMonthlyByDay() error {
	start := it.last
	var best icaltime.Time
	found := false
	for _, bd := range it.byDay {
		if bd.Pos <= -6 || bd.Pos >= 6 {
			return validationError("BYDAY ordinal %s out of range for a month", bd)
		}
		it.last = start
		dim := icaltime.DaysInMonth(it.last.Month(), it.last.Year())
		day := it.last.NthWeekDay(bd.Day, bd.Pos)
		if day < 1 || day > dim {
			if found && best.Month() == start.Month() {
				continue
			}
			for months := 0; day < 1 || day > dim; months++ {
				if months >= MaxMonthWalk {
					return exhaustedError("no %s found within %d months", bd, MaxMonthWalk)
				}
				it.incrementMonth()
				dim = icaltime.DaysInMonth(it.last.Month(), it.last.Year())
				day = it.last.NthWeekDay(bd.Day, bd.Pos)
			}
		}
		it.setDay(day)
		if !found || it.last.Compare(best) < 0 {
			best = it.last
			found = true
		}
	}
	it.last = best

	if it.rule.HasPart(ByMonthDay) {
		_, err := it.byDayAndMonthDay(true)
		return err
	}
	if it.rule.HasPart(BySetPos) {
		for steps := 0; !it.monthSetPosValid(); steps++ {
			if steps >= MaxStepsPerOccurrence {
				return exhaustedError("no BYSETPOS match found")
			}
			if _, err := it.nextMonth(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (it *Iterator) initMonthlyByMonthDay() error {
	minDay := it.dtstart.Day()
	days := it.monthDays(it.last.Year(), it.last.Month())
	for months := 0; ; months++ {
		for i, d := range days {
			if d >= minDay {
				it.byIndices[ByMonthDay] = i
				it.setDay(d)
				return nil
			}
		}
		if months >= MaxMonthWalk {
			return exhaustedError("no BYMONTHDAY match within %d months", MaxMonthWalk)
		}
		it.incrementMonth()
		minDay = 1
		days = it.monthDays(it.last.Year(), it.last.Month())
	}
}

func (it *Iterator) initYearly() error {
	for i := 0; ; i++ {
		if i >= MaxYearSearch {
			return exhaustedError("no matching day within %d years", MaxYearSearch)
		}
		if it.yearPastUntil(it.last.Year()) {
			it.completed = true
			return nil
		}
		it.expandYearDays(it.last.Year())
		if len(it.days) > 0 {
			break
		}
		it.incrementYear(it.rule.interval())
	}
	it.daysIndex = 0
	it.nextByYearDay()
	return nil
}

// Next returns the next occurrence, or Done once the rule is exhausted.
func (it *Iterator) Next() (icaltime.Time, error) {
	return it.next(false)
}

func (it *Iterator) next(again bool) (icaltime.Time, error) {
	if !it.initialized {
		if err := it.init(); err != nil {
			return icaltime.Time{}, err
		}
	}
	before := it.last

	if count, ok := it.rule.Count.Get(); ok && it.occurrence >= count {
		it.completed = true
	}
	if it.pastUntil() {
		it.completed = true
	}
	if it.completed {
		return icaltime.Time{}, Done
	}

	if it.occurrence == 0 && it.last.Compare(it.dtstart) >= 0 && it.checkContractingRules() {
		it.occurrence++
		return it.last, nil
	}

	for steps := 0; ; steps++ {
		if steps >= MaxStepsPerOccurrence {
			it.logger.Warn("recurrence search exhausted", "rule", it.rule.String(), "last", it.last.String())
			return icaltime.Time{}, exhaustedError("no occurrence within %d steps of %s", MaxStepsPerOccurrence, before)
		}
		valid, err := it.step()
		if err != nil {
			return icaltime.Time{}, err
		}
		if it.completed {
			return icaltime.Time{}, Done
		}
		if valid && it.checkContractingRules() && it.last.Compare(it.dtstart) >= 0 {
			break
		}
	}

	if it.last.Compare(before) == 0 {
		if again {
			return icaltime.Time{}, &Error{
				Type:    ErrInvariantViolation,
				Message: "same occurrence produced twice: " + it.last.String(),
			}
		}
		return it.next(true)
	}

	if it.pastUntil() {
		it.completed = true
		return icaltime.Time{}, Done
	}
	it.occurrence++
	return it.last, nil
}

// All drains the iterator, returning at most limit occurrences. A limit of
// zero or less means no limit, which only terminates for finite rules.
func (it *Iterator) All(limit int) ([]icaltime.Time, error) {
	var out []icaltime.Time
	for limit <= 0 || len(out) < limit {
		t, err := it.Next()
		if errors.Is(err, Done) {
			break
		}
		if err != nil {
			return out, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (it *Iterator) step() (bool, error) {
	switch it.rule.Freq {
	case Secondly:
		it.nextSecond()
	case Minutely:
		it.nextMinute()
	case Hourly:
		it.nextHour()
	case Daily:
		it.nextDay()
	case Weekly:
		it.nextWeek()
	case Monthly:
		return it.nextMonth()
	case Yearly:
		return true, it.nextYear()
	}
	return true, nil
}

func (it *Iterator) pastUntil() bool {
	until, ok := it.rule.Until.Get()
	if !ok {
		return false
	}
	if until.IsDate() && !it.last.IsDate() {
		return compareDates(it.last, until) > 0
	}
	return it.last.Compare(until) > 0
}

func (it *Iterator) yearPastUntil(year int) bool {
	until, ok := it.rule.Until.Get()
	return ok && year > until.Year()
}

func compareDates(a, b icaltime.Time) int {
	ka := a.Year()*10000 + a.Month()*100 + a.Day()
	kb := b.Year()*10000 + b.Month()*100 + b.Day()
	switch {
	case ka < kb:
		return -1
	case ka > kb:
		return 1
	}
	return 0
}

func (it *Iterator) checkContractingRules() bool {
	return it.checkContract(BySecond, it.last.Second()) &&
		it.checkContract(ByMinute, it.last.Minute()) &&
		it.checkContract(ByHour, it.last.Hour()) &&
		it.checkByDayContract() &&
		it.checkWeekNoContract() &&
		it.checkMonthDayContract() &&
		it.checkContract(ByMonth, it.last.Month()) &&
		it.checkYearDayContract()
}

func (it *Iterator) checkContract(p Part, v int) bool {
	if it.action(p) != actionContract || len(it.byData[p]) == 0 {
		return true
	}
	return containsInt(it.byData[p], v)
}

func (it *Iterator) checkByDayContract() bool {
	if it.action(ByDay) != actionContract || len(it.byDay) == 0 {
		return true
	}
	dow := icaltime.Weekday(it.cal.DayOfWeek(it.last, icaltime.Sunday))
	for _, bd := range it.byDay {
		if bd.Day == dow {
			return true
		}
	}
	return false
}

func (it *Iterator) checkWeekNoContract() bool {
	weeks := it.byData[ByWeekNo]
	if it.action(ByWeekNo) != actionContract || len(weeks) == 0 {
		return true
	}
	return it.matchesWeekNo(it.last, weeks)
}

func (it *Iterator) matchesWeekNo(t icaltime.Time, weeks []int) bool {
	wkst := it.rule.weekStart()
	week := it.cal.WeekNumber(t, wkst)
	total := -1
	for _, w := range weeks {
		if w < 0 {
			if total < 0 {
				isoYear, _ := t.ISOWeek(wkst)
				total = icaltime.WeeksInYear(isoYear, wkst)
			}
			w = total + w + 1
		}
		if w == week {
			return true
		}
	}
	return false
}

func (it *Iterator) checkMonthDayContract() bool {
	rules := it.byData[ByMonthDay]
	if it.action(ByMonthDay) != actionContract || len(rules) == 0 {
		return true
	}
	return containsInt(normalizeByMonthDayRules(it.last.Year(), it.last.Month(), rules), it.last.Day())
}

func (it *Iterator) checkYearDayContract() bool {
	rules := it.byData[ByYearDay]
	if it.action(ByYearDay) != actionContract || len(rules) == 0 {
		return true
	}
	return matchesYearDay(rules, it.last.DayOfYear(), icaltime.DaysInYear(it.last.Year()))
}

func matchesYearDay(rules []int, doy, daysInYear int) bool {
	for _, r := range rules {
		if r < 0 {
			r = daysInYear + r + 1
		}
		if r == doy {
			return true
		}
	}
	return false
}

// normalizeByMonthDayRules resolves negative BYMONTHDAY values against the
// month and drops days the month does not have. The result is sorted.
func normalizeByMonthDayRules(year, month int, rules []int) []int {
	dim := icaltime.DaysInMonth(month, year)
	out := make([]int, 0, len(rules))
	for _, r := range rules {
		d := r
		if d < 0 {
			d = dim + d + 1
		}
		if d < 1 || d > dim {
			continue
		}
		out = append(out, d)
	}
	return sortedUnique(out)
}

// applySetPos keeps the entries of a sorted candidate set selected by the
// BYSETPOS positions.
func applySetPos(set []int, positions []int) []int {
	if len(positions) == 0 {
		return set
	}
	out := make([]int, 0, len(positions))
	for _, p := range positions {
		idx := p - 1
		if p < 0 {
			idx = len(set) + p
		}
		if idx >= 0 && idx < len(set) {
			out = append(out, set[idx])
		}
	}
	return sortedUnique(out)
}

func sortedUnique(values []int) []int {
	if len(values) == 0 {
		return values
	}
	out := append([]int(nil), values...)
	sort.Ints(out)
	n := 1
	for i := 1; i < len(out); i++ {
		if out[i] != out[n-1] {
			out[n] = out[i]
			n++
		}
	}
	return out[:n]
}

func containsInt(values []int, v int) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

func mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
