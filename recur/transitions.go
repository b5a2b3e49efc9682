package recur

import (
	"errors"

	"github.com/samber/mo"

	"github.com/cyp0633/librecur/icaltime"
)

// Transitions lets a rule drive the observances of a time zone. Zone rules
// run on local wall-clock time, so a UTC UNTIL is shifted by utcShift and
// treated as floating.
func (r *Recur) Transitions(start icaltime.Time, utcShift int) (func() (icaltime.Time, bool, error), error) {
	rule := r.Clone()
	if until, ok := rule.Until.Get(); ok && until.Zone() == icaltime.UTC && !until.IsDate() {
		until.Adjust(0, 0, 0, utcShift)
		rule.Until = mo.Some(until.WithZone(icaltime.Floating))
	}
	it, err := NewIterator(rule, start.WithZone(icaltime.Floating), Options{})
	if err != nil {
		return nil, err
	}
	return func() (icaltime.Time, bool, error) {
		t, err := it.Next()
		if errors.Is(err, Done) {
			return icaltime.Time{}, false, nil
		}
		if err != nil {
			return icaltime.Time{}, false, err
		}
		return t, true, nil
	}, nil
}

var _ icaltime.TransitionRule = (*Recur)(nil)
