package recur

import (
	"errors"
	"log/slog"
	"sort"

	"github.com/cyp0633/librecur/icaltime"
)

// ExpansionInput collects the recurrence properties of one component.
type ExpansionInput struct {
	Start           icaltime.Time
	Rules           []RuleInput
	RDates          []icaltime.Time
	ExDates         []icaltime.Time
	HasRecurrenceID bool
}

// Expansion merges the occurrences of every RRULE with the RDATE list,
// drops EXDATE matches, and yields the result in ascending order.
type Expansion struct {
	dtstart   icaltime.Time
	last      icaltime.Time
	iterators []*Iterator

	ruleDates   []icaltime.Time
	ruleDateInc int
	exDates     []icaltime.Time
	exDateInc   int
	complete    bool

	logger *slog.Logger
}

// NewExpansion prepares the merged sequence for in.
func NewExpansion(in ExpansionInput, opts Options) (*Expansion, error) {
	opts = opts.withDefaults()
	start := in.Start
	start.Normalize()
	e := &Expansion{
		dtstart: start,
		last:    start,
		logger:  opts.Logger,
	}

	if len(in.Rules) == 0 && len(in.RDates) == 0 && !in.HasRecurrenceID {
		e.ruleDates = []icaltime.Time{start}
	} else {
		e.ruleDates = sortTimes(in.RDates)
		if len(e.ruleDates) > 0 && e.ruleDates[0].Compare(start) < 0 {
			e.last = e.ruleDates[0]
		} else {
			e.ruleDateInc = searchTimes(e.ruleDates, e.last)
		}
	}

	for i, input := range in.Rules {
		rule, err := FromInput(input)
		if err != nil {
			return nil, err
		}
		it, err := NewIterator(rule, start, opts)
		if err != nil {
			return nil, err
		}
		if _, err := it.Next(); err != nil && !errors.Is(err, Done) {
			return nil, err
		}
		e.logger.Debug("recurrence rule attached", "index", i, "rule", rule.String())
		e.iterators = append(e.iterators, it)
	}

	e.exDates = sortTimes(in.ExDates)
	e.exDateInc = searchTimes(e.exDates, e.last)
	return e, nil
}

// Last returns the most recently produced occurrence.
func (e *Expansion) Last() icaltime.Time { return e.last }

// Complete reports whether every source is exhausted.
func (e *Expansion) Complete() bool { return e.complete }

// Next returns the next occurrence or Done. It gives up with an
// ErrIterationExhausted error after MaxExpansionTries consecutive
// excluded candidates.
func (e *Expansion) Next() (icaltime.Time, error) {
	if e.complete {
		return icaltime.Time{}, Done
	}
	for tries := 0; ; tries++ {
		if tries >= MaxExpansionTries {
			e.logger.Warn("recurrence expansion exhausted", "tries", tries, "last", e.last.String())
			return icaltime.Time{}, exhaustedError("%d consecutive candidates excluded after %s", tries, e.last)
		}

		next, hasDate := e.currentRuleDate()
		iter := e.nextRecurrenceIter()
		if !hasDate && iter == nil {
			e.complete = true
			return icaltime.Time{}, Done
		}

		if !hasDate || (iter != nil && next.Compare(iter.last) > 0) {
			next = iter.last
			if err := e.advance(iter); err != nil {
				return icaltime.Time{}, err
			}
		} else {
			e.ruleDateInc++
			if iter != nil && next.Compare(iter.last) == 0 {
				if err := e.advance(iter); err != nil {
					return icaltime.Time{}, err
				}
			}
		}
		e.last = next

		if e.excluded(next) {
			continue
		}
		return next, nil
	}
}

func (e *Expansion) advance(it *Iterator) error {
	if _, err := it.Next(); err != nil && !errors.Is(err, Done) {
		return err
	}
	return nil
}

// excluded moves the EXDATE cursor past dates before t and reports whether
// t itself is excluded.
func (e *Expansion) excluded(t icaltime.Time) bool {
	for e.exDateInc < len(e.exDates) {
		cmp := compareExclusion(e.exDates[e.exDateInc], t)
		if cmp < 0 {
			e.exDateInc++
			continue
		}
		if cmp == 0 {
			e.exDateInc++
			return true
		}
		return false
	}
	return false
}

// compareExclusion orders an EXDATE against an occurrence. A date-only
// EXDATE excludes every occurrence on that date.
func compareExclusion(ex, occ icaltime.Time) int {
	if ex.IsDate() && !occ.IsDate() {
		return compareDates(ex, occ)
	}
	return ex.Compare(occ)
}

func (e *Expansion) currentRuleDate() (icaltime.Time, bool) {
	if e.ruleDateInc < len(e.ruleDates) {
		return e.ruleDates[e.ruleDateInc], true
	}
	return icaltime.Time{}, false
}

// nextRecurrenceIter drops completed iterators and returns the one with the
// earliest pending occurrence.
func (e *Expansion) nextRecurrenceIter() *Iterator {
	live := e.iterators[:0]
	var best *Iterator
	for _, it := range e.iterators {
		if it.completed {
			continue
		}
		live = append(live, it)
		if best == nil || it.last.Compare(best.last) < 0 {
			best = it
		}
	}
	e.iterators = live
	return best
}

func sortTimes(in []icaltime.Time) []icaltime.Time {
	out := append([]icaltime.Time(nil), in...)
	for i := range out {
		out[i].Normalize()
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Compare(out[j]) < 0 })
	return out
}

// searchTimes returns the index of the first entry not before t.
func searchTimes(list []icaltime.Time, t icaltime.Time) int {
	return sort.Search(len(list), func(i int) bool { return list[i].Compare(t) >= 0 })
}
