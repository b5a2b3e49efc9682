package recur

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/cyp0633/librecur/icaltime"
)

// RuleState is the persisted form of a Recur.
type RuleState struct {
	Freq      string              `json:"freq" yaml:"freq"`
	Interval  int                 `json:"interval,omitempty" yaml:"interval,omitempty"`
	Count     *int                `json:"count,omitempty" yaml:"count,omitempty"`
	Until     *icaltime.TimeData  `json:"until,omitempty" yaml:"until,omitempty"`
	WeekStart string              `json:"wkst,omitempty" yaml:"wkst,omitempty"`
	Parts     map[string][]string `json:"parts,omitempty" yaml:"parts,omitempty"`
}

// IteratorState is everything needed to resume an Iterator.
type IteratorState struct {
	Rule        RuleState         `json:"rule" yaml:"rule"`
	DTStart     icaltime.TimeData `json:"dtstart" yaml:"dtstart"`
	Last        icaltime.TimeData `json:"last" yaml:"last"`
	Initialized bool              `json:"initialized" yaml:"initialized"`
	ByData      map[string][]int  `json:"byData,omitempty" yaml:"byData,omitempty"`
	ByDay       []string          `json:"byDay,omitempty" yaml:"byDay,omitempty"`
	ByIndices   map[string]int    `json:"byIndices,omitempty" yaml:"byIndices,omitempty"`
	Days        []int             `json:"days,omitempty" yaml:"days,omitempty"`
	DaysIndex   int               `json:"daysIndex,omitempty" yaml:"daysIndex,omitempty"`
	Occurrence  int               `json:"occurrence" yaml:"occurrence"`
	Completed   bool              `json:"completed,omitempty" yaml:"completed,omitempty"`
}

// ExpansionState is everything needed to resume an Expansion.
type ExpansionState struct {
	DTStart     icaltime.TimeData   `json:"dtstart" yaml:"dtstart"`
	Last        icaltime.TimeData   `json:"last" yaml:"last"`
	Iterators   []IteratorState     `json:"iterators,omitempty" yaml:"iterators,omitempty"`
	RuleDates   []icaltime.TimeData `json:"ruleDates,omitempty" yaml:"ruleDates,omitempty"`
	RuleDateInc int                 `json:"ruleDateInc,omitempty" yaml:"ruleDateInc,omitempty"`
	ExDates     []icaltime.TimeData `json:"exDates,omitempty" yaml:"exDates,omitempty"`
	ExDateInc   int                 `json:"exDateInc,omitempty" yaml:"exDateInc,omitempty"`
	Complete    bool                `json:"complete,omitempty" yaml:"complete,omitempty"`
}

func ruleState(r *Recur) RuleState {
	p := r.Parts()
	s := RuleState{
		Freq:      p.Freq,
		Interval:  p.Interval,
		Count:     p.Count,
		WeekStart: p.WeekStart,
	}
	if len(p.Parts) > 0 {
		s.Parts = p.Parts
	}
	if p.Until != nil {
		d := p.Until.Data()
		s.Until = &d
	}
	return s
}

func ruleFromState(s RuleState, zones icaltime.ZoneLookup) (*Recur, error) {
	p := RuleParts{
		Freq:      s.Freq,
		Interval:  s.Interval,
		Count:     s.Count,
		WeekStart: s.WeekStart,
		Parts:     s.Parts,
	}
	if s.Until != nil {
		until, err := icaltime.FromData(*s.Until, zones)
		if err != nil {
			return nil, malformedError(err, "rule UNTIL")
		}
		p.Until = &until
	}
	return NewRecur(p)
}

// State captures the iterator for later resumption.
func (it *Iterator) State() IteratorState {
	s := IteratorState{
		Rule:        ruleState(it.rule),
		DTStart:     it.dtstart.Data(),
		Last:        it.last.Data(),
		Initialized: it.initialized,
		DaysIndex:   it.daysIndex,
		Occurrence:  it.occurrence,
		Completed:   it.completed,
	}
	if len(it.byData) > 0 {
		s.ByData = make(map[string][]int, len(it.byData))
		for p, v := range it.byData {
			if len(v) > 0 {
				s.ByData[string(p)] = append([]int(nil), v...)
			}
		}
	}
	for _, d := range it.byDay {
		s.ByDay = append(s.ByDay, d.String())
	}
	if len(it.byIndices) > 0 {
		s.ByIndices = make(map[string]int, len(it.byIndices))
		for p, v := range it.byIndices {
			s.ByIndices[string(p)] = v
		}
	}
	if len(it.days) > 0 {
		s.Days = append([]int(nil), it.days...)
	}
	return s
}

// RestoreIterator rebuilds an iterator from s. The restored iterator
// continues exactly where the captured one stopped.
func RestoreIterator(s IteratorState, opts Options) (*Iterator, error) {
	rule, err := ruleFromState(s.Rule, opts.Zones)
	if err != nil {
		return nil, err
	}
	dtstart, err := icaltime.FromData(s.DTStart, opts.Zones)
	if err != nil {
		return nil, malformedError(err, "iterator dtstart")
	}
	it, err := newIterator(rule, dtstart, opts)
	if err != nil {
		return nil, err
	}
	if !s.Initialized {
		if err := it.init(); err != nil {
			return nil, err
		}
		return it, nil
	}

	if it.last, err = icaltime.FromData(s.Last, opts.Zones); err != nil {
		return nil, malformedError(err, "iterator last")
	}
	it.byData = make(map[Part][]int, len(s.ByData))
	for name, v := range s.ByData {
		it.byData[Part(name)] = append([]int(nil), v...)
	}
	it.byDay = it.byDay[:0]
	for _, tok := range s.ByDay {
		d, err := ParseWeekdayNum(tok)
		if err != nil {
			return nil, err
		}
		it.byDay = append(it.byDay, d)
	}
	for name, idx := range s.ByIndices {
		p := Part(name)
		size := len(it.byData[p])
		if p == ByDay {
			size = len(it.byDay)
		}
		if idx < 0 || (idx > 0 && idx >= size) {
			return nil, malformedError(nil, "cursor %s=%d outside its list", name, idx)
		}
		it.byIndices[p] = idx
	}
	it.days = append([]int(nil), s.Days...)
	if s.DaysIndex < 0 || (len(it.days) > 0 && s.DaysIndex >= len(it.days)) {
		return nil, malformedError(nil, "day cursor %d outside its list", s.DaysIndex)
	}
	it.daysIndex = s.DaysIndex
	it.occurrence = s.Occurrence
	it.completed = s.Completed
	it.initialized = true
	return it, nil
}

// State captures the expansion for later resumption.
func (e *Expansion) State() ExpansionState {
	s := ExpansionState{
		DTStart:     e.dtstart.Data(),
		Last:        e.last.Data(),
		RuleDateInc: e.ruleDateInc,
		ExDateInc:   e.exDateInc,
		Complete:    e.complete,
	}
	for _, it := range e.iterators {
		s.Iterators = append(s.Iterators, it.State())
	}
	for _, t := range e.ruleDates {
		s.RuleDates = append(s.RuleDates, t.Data())
	}
	for _, t := range e.exDates {
		s.ExDates = append(s.ExDates, t.Data())
	}
	return s
}

// RestoreExpansion rebuilds an expansion from s.
func RestoreExpansion(s ExpansionState, opts Options) (*Expansion, error) {
	opts = opts.withDefaults()
	e := &Expansion{
		ruleDateInc: s.RuleDateInc,
		exDateInc:   s.ExDateInc,
		complete:    s.Complete,
		logger:      opts.Logger,
	}
	var err error
	if e.dtstart, err = icaltime.FromData(s.DTStart, opts.Zones); err != nil {
		return nil, malformedError(err, "expansion dtstart")
	}
	if e.last, err = icaltime.FromData(s.Last, opts.Zones); err != nil {
		return nil, malformedError(err, "expansion last")
	}
	for i, is := range s.Iterators {
		it, err := RestoreIterator(is, opts)
		if err != nil {
			return nil, fmt.Errorf("iterator %d: %w", i, err)
		}
		e.iterators = append(e.iterators, it)
	}
	if e.ruleDates, err = timesFromData(s.RuleDates, opts.Zones); err != nil {
		return nil, err
	}
	if e.exDates, err = timesFromData(s.ExDates, opts.Zones); err != nil {
		return nil, err
	}
	if e.ruleDateInc < 0 || e.ruleDateInc > len(e.ruleDates) || e.exDateInc < 0 || e.exDateInc > len(e.exDates) {
		return nil, malformedError(nil, "expansion cursor outside its list")
	}
	return e, nil
}

func timesFromData(in []icaltime.TimeData, zones icaltime.ZoneLookup) ([]icaltime.Time, error) {
	out := make([]icaltime.Time, 0, len(in))
	for _, d := range in {
		t, err := icaltime.FromData(d, zones)
		if err != nil {
			return nil, malformedError(err, "expansion date")
		}
		out = append(out, t)
	}
	return out, nil
}

// Codec encodes persisted state.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

type jsonCodec struct{}

func (jsonCodec) Name() string                       { return "json" }
func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

type yamlCodec struct{}

func (yamlCodec) Name() string                       { return "yaml" }
func (yamlCodec) Marshal(v any) ([]byte, error)      { return yaml.Marshal(v) }
func (yamlCodec) Unmarshal(data []byte, v any) error { return yaml.Unmarshal(data, v) }

var (
	// JSONCodec encodes state as JSON.
	JSONCodec Codec = jsonCodec{}
	// YAMLCodec encodes state as YAML.
	YAMLCodec Codec = yamlCodec{}
)

// CodecByName returns the codec registered under name.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", JSONCodec.Name():
		return JSONCodec, nil
	case YAMLCodec.Name():
		return YAMLCodec, nil
	}
	return nil, malformedError(nil, "unknown state encoding %q", name)
}
