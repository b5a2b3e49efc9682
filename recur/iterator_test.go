package recur

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/cyp0633/librecur/icaltime"
)

type ruleVector struct {
	Name    string   `yaml:"name"`
	Rule    string   `yaml:"rule"`
	DTStart string   `yaml:"dtstart"`
	Want    []string `yaml:"want"`
	Finite  bool     `yaml:"finite"`
}

func loadRuleVectors(t *testing.T) []ruleVector {
	t.Helper()
	data, err := os.ReadFile("testdata/rules.yaml")
	require.NoError(t, err)
	var vectors []ruleVector
	require.NoError(t, yaml.Unmarshal(data, &vectors))
	require.NotEmpty(t, vectors)
	return vectors
}

func mustTime(t *testing.T, s string) icaltime.Time {
	t.Helper()
	v, err := icaltime.FromString(s)
	require.NoError(t, err)
	return v
}

func mustIterator(t *testing.T, rule, dtstart string) *Iterator {
	t.Helper()
	r, err := ParseRecur(rule)
	require.NoError(t, err)
	it, err := NewIterator(r, mustTime(t, dtstart), Options{})
	require.NoError(t, err)
	return it
}

func formatTimes(ts []icaltime.Time) []string {
	out := make([]string, len(ts))
	for i, v := range ts {
		out[i] = v.String()
	}
	return out
}

func TestIteratorVectors(t *testing.T) {
	for _, v := range loadRuleVectors(t) {
		t.Run(v.Name, func(t *testing.T) {
			it := mustIterator(t, v.Rule, v.DTStart)
			limit := len(v.Want)
			if v.Finite {
				limit++
			}
			got, err := it.All(limit)
			require.NoError(t, err)
			assert.Equal(t, v.Want, formatTimes(got))
			if v.Finite {
				assert.True(t, it.Completed())
			}
		})
	}
}

func TestIteratorDoneIsSticky(t *testing.T) {
	it := mustIterator(t, "FREQ=DAILY;COUNT=1", "2024-01-01")

	first, err := it.Next()
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", first.String())

	for i := 0; i < 3; i++ {
		_, err := it.Next()
		assert.True(t, errors.Is(err, Done))
	}
	assert.Equal(t, 1, it.Occurrences())
}

func TestIteratorStrictlyIncreasing(t *testing.T) {
	rules := []string{
		"FREQ=DAILY;BYHOUR=9,12,17;BYMINUTE=0,30",
		"FREQ=WEEKLY;BYDAY=TU,TH,SA;WKST=SU",
		"FREQ=MONTHLY;BYMONTHDAY=1,15,-1",
		"FREQ=MONTHLY;BYDAY=-1FR,2MO",
		"FREQ=YEARLY;BYMONTH=1,6;BYDAY=MO",
		"FREQ=YEARLY;BYWEEKNO=1,-1",
	}
	for _, rule := range rules {
		t.Run(rule, func(t *testing.T) {
			it := mustIterator(t, rule, "2024-01-01T00:00:00Z")
			got, err := it.All(60)
			require.NoError(t, err)
			require.Len(t, got, 60)
			for i := 1; i < len(got); i++ {
				assert.Equal(t, 1, got[i].Compare(got[i-1]), "%s then %s", got[i-1], got[i])
			}
		})
	}
}

func TestIteratorUntilDateAgainstDateTime(t *testing.T) {
	it := mustIterator(t, "FREQ=DAILY;UNTIL=20240103", "2024-01-01T10:00:00Z")
	got, err := it.All(10)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"2024-01-01T10:00:00Z",
		"2024-01-02T10:00:00Z",
		"2024-01-03T10:00:00Z",
	}, formatTimes(got))
}

func TestIteratorUntilBeforeStart(t *testing.T) {
	it := mustIterator(t, "FREQ=YEARLY;UNTIL=20200101", "2024-01-01")
	got, err := it.All(5)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.True(t, it.Completed())
}

func TestIteratorInvalidRule(t *testing.T) {
	r := &Recur{Freq: Weekly}
	require.NoError(t, r.SetPart(ByMonthDay, []int{1}))

	_, err := NewIterator(r, icaltime.Date(2024, 1, 1), Options{})
	require.Error(t, err)
	assert.True(t, IsType(err, ErrRuleValidation))
}

func TestIteratorImpossibleByDayAndMonthDay(t *testing.T) {
	r, err := ParseRecur("FREQ=MONTHLY;BYDAY=1MO;BYMONTHDAY=20")
	require.NoError(t, err)

	_, err = NewIterator(r, icaltime.Date(2024, 1, 1), Options{})
	require.Error(t, err)
	assert.True(t, IsType(err, ErrIterationExhausted))
}

func TestIteratorNilRule(t *testing.T) {
	_, err := NewIterator(nil, icaltime.Date(2024, 1, 1), Options{})
	assert.True(t, IsType(err, ErrRuleValidation))
}

func TestIteratorSharedCalendar(t *testing.T) {
	cal := icaltime.NewCalendar(icaltime.NewSyncCache(128))
	r, err := ParseRecur("FREQ=DAILY;BYDAY=MO")
	require.NoError(t, err)

	it, err := NewIterator(r, icaltime.Date(2024, 1, 1), Options{Calendar: cal})
	require.NoError(t, err)
	got, err := it.All(3)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-01", "2024-01-08", "2024-01-15"}, formatTimes(got))
}

func TestNextOccurrenceAfter(t *testing.T) {
	r, err := ParseRecur("FREQ=WEEKLY;BYDAY=MO;COUNT=3")
	require.NoError(t, err)
	start := icaltime.Date(2024, 1, 1)

	next, ok, err := r.NextOccurrenceAfter(start, icaltime.Date(2024, 1, 3))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2024-01-08", next.String())

	_, ok, err = r.NextOccurrenceAfter(start, icaltime.Date(2024, 1, 15))
	require.NoError(t, err)
	assert.False(t, ok)
}
