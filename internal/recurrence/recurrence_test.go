package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courtside/internal/interval"
)

func dates(exp Expansion) []string {
	out := make([]string, len(exp.Occurrences))
	for i, o := range exp.Occurrences {
		out[i] = o.Date.ISO()
	}
	return out
}

func endDate(s string) *interval.Date {
	d := interval.MustParseDate(s)
	return &d
}

func TestExpandNoneAlwaysYieldsOrigin(t *testing.T) {
	origin := interval.MustParse("2025-01-06", "18:00", "19:00")

	for _, hardCap := range []int{0, 1, 5, 1000} {
		exp, err := Expand(origin, None(), hardCap)
		require.NoError(t, err)
		assert.Equal(t, []interval.DateInterval{origin}, exp.Occurrences)
		assert.False(t, exp.Truncated)
	}
}

func TestExpandDaily(t *testing.T) {
	origin := interval.MustParse("2025-01-30", "07:00", "08:00")

	exp, err := Expand(origin, Rule{Pattern: PatternDaily, Interval: 2, EndDate: endDate("2025-02-05")}, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-01-30", "2025-02-01", "2025-02-03", "2025-02-05"}, dates(exp))
	assert.False(t, exp.Truncated)

	for _, occ := range exp.Occurrences {
		assert.Equal(t, origin.Start, occ.Start)
		assert.Equal(t, origin.End, occ.End)
	}
}

func TestExpandDailyWeekdayFilter(t *testing.T) {
	// 2025-03-03 is a Monday.
	origin := interval.MustParse("2025-03-03", "07:00", "08:00")
	rule := Rule{Pattern: PatternDaily, Interval: 1, DaysOfWeek: []time.Weekday{time.Tuesday, time.Thursday}}

	exp, err := Expand(origin, rule, 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-03-04", "2025-03-06", "2025-03-11", "2025-03-13"}, dates(exp))
	assert.True(t, exp.Truncated)
}

func TestExpandDailyFilterThatNeverMatches(t *testing.T) {
	origin := interval.MustParse("2025-03-03", "07:00", "08:00")
	rule := Rule{Pattern: PatternDaily, Interval: 7, DaysOfWeek: []time.Weekday{time.Friday}}

	exp, err := Expand(origin, rule, 10)
	require.NoError(t, err)
	assert.Empty(t, exp.Occurrences)
	assert.False(t, exp.Truncated)
}

func TestExpandWeeklyMondaysWithoutEndDate(t *testing.T) {
	origin := interval.MustParse("2025-01-06", "18:00", "19:00")

	exp, err := Expand(origin, Rule{Pattern: PatternWeekly, Interval: 1}, 52)
	require.NoError(t, err)
	require.Len(t, exp.Occurrences, 52)
	assert.True(t, exp.Truncated)

	for _, occ := range exp.Occurrences {
		assert.Equal(t, time.Monday, occ.Date.Weekday())
	}
	assert.Equal(t, "2025-12-29", exp.Occurrences[51].Date.ISO())
}

func TestExpandWeeklyEndDateStopsExactly(t *testing.T) {
	origin := interval.MustParse("2025-01-06", "18:00", "19:00")

	exp, err := Expand(origin, Rule{Pattern: PatternWeekly, Interval: 2, EndDate: endDate("2025-02-03")}, 52)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-01-06", "2025-01-20", "2025-02-03"}, dates(exp))
	assert.False(t, exp.Truncated)
}

func TestExpandWeeklyByDay(t *testing.T) {
	// Wednesday origin; Monday of the first week is skipped because it precedes the origin.
	origin := interval.MustParse("2025-03-05", "19:00", "20:30")
	rule := Rule{Pattern: PatternWeekly, Interval: 1, DaysOfWeek: []time.Weekday{time.Friday, time.Monday, time.Wednesday}}

	exp, err := Expand(origin, rule, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-03-05", "2025-03-07", "2025-03-10", "2025-03-12", "2025-03-14"}, dates(exp))
}

func TestExpandWeeklySundaySelection(t *testing.T) {
	origin := interval.MustParse("2025-03-05", "10:00", "11:00")
	rule := Rule{Pattern: PatternWeekly, Interval: 1, DaysOfWeek: []time.Weekday{time.Sunday}, EndDate: endDate("2025-03-20")}

	exp, err := Expand(origin, rule, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-03-09", "2025-03-16"}, dates(exp))
}

func TestExpandWeeklySundayFollowsMonday(t *testing.T) {
	origin := interval.MustParse("2025-01-06", "18:00", "19:00")
	days := []time.Weekday{time.Sunday, time.Monday}

	t.Run("end date before first sunday", func(t *testing.T) {
		rule := Rule{Pattern: PatternWeekly, Interval: 1, DaysOfWeek: days, EndDate: endDate("2025-01-11")}
		exp, err := Expand(origin, rule, 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"2025-01-06"}, dates(exp))
		assert.False(t, exp.Truncated)
	})

	t.Run("capped prefix is chronological", func(t *testing.T) {
		exp, err := Expand(origin, Rule{Pattern: PatternWeekly, Interval: 1, DaysOfWeek: days}, 3)
		require.NoError(t, err)
		assert.Equal(t, []string{"2025-01-06", "2025-01-12", "2025-01-13"}, dates(exp))
		assert.True(t, exp.Truncated)
	})

	t.Run("signature keeps sorted weekdays", func(t *testing.T) {
		r, err := Rule{Pattern: PatternWeekly, DaysOfWeek: days}.Normalize()
		require.NoError(t, err)
		assert.Equal(t, []time.Weekday{time.Sunday, time.Monday}, r.DaysOfWeek)
	})
}

func TestExpandMonthlyClampsToMonthEnd(t *testing.T) {
	origin := interval.MustParse("2025-01-31", "09:00", "10:00")

	exp, err := Expand(origin, Rule{Pattern: PatternMonthly, Interval: 1}, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-01-31", "2025-02-28", "2025-03-31"}, dates(exp))

	leap := interval.MustParse("2024-01-31", "09:00", "10:00")
	exp, err = Expand(leap, Rule{Pattern: PatternMonthly, Interval: 1}, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-31", "2024-02-29", "2024-03-31"}, dates(exp))
}

func TestExpandMonthlyAcrossYear(t *testing.T) {
	origin := interval.MustParse("2025-11-30", "09:00", "10:00")

	exp, err := Expand(origin, Rule{Pattern: PatternMonthly, Interval: 3}, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-11-30", "2026-02-28", "2026-05-30"}, dates(exp))
}

func TestExpandDefaultCap(t *testing.T) {
	origin := interval.MustParse("2025-01-01", "09:00", "10:00")

	exp, err := Expand(origin, Rule{Pattern: PatternDaily}, 0)
	require.NoError(t, err)
	assert.Len(t, exp.Occurrences, DefaultHardCap)
	assert.Equal(t, DefaultHardCap, exp.HardCap)
	assert.True(t, exp.Truncated)
}

func TestIteratorIsRestartable(t *testing.T) {
	origin := interval.MustParse("2025-01-06", "18:00", "19:00")
	it, err := NewIterator(origin, Rule{Pattern: PatternWeekly}, 3)
	require.NoError(t, err)

	var first []interval.DateInterval
	for occ, ok := it.Next(); ok; occ, ok = it.Next() {
		first = append(first, occ)
	}
	it.Reset()
	var second []interval.DateInterval
	for occ, ok := it.Next(); ok; occ, ok = it.Next() {
		second = append(second, occ)
	}

	assert.Len(t, first, 3)
	assert.Equal(t, first, second)
}

func TestExpandRejectsInvalidRule(t *testing.T) {
	origin := interval.MustParse("2025-01-06", "18:00", "19:00")

	_, err := Expand(origin, Rule{Pattern: "yearly"}, 3)
	assert.ErrorIs(t, err, ErrInvalidPattern)

	_, err = Expand(origin, Rule{Pattern: PatternDaily, Interval: -1}, 3)
	assert.ErrorIs(t, err, ErrInvalidRule)
}

func TestSignatureRoundTrip(t *testing.T) {
	rules := []Rule{
		None(),
		{Pattern: PatternDaily, Interval: 3},
		{Pattern: PatternWeekly, Interval: 1, EndDate: endDate("2025-12-31"), DaysOfWeek: []time.Weekday{time.Saturday, time.Monday, time.Monday}, SeriesID: "9b1c"},
		{Pattern: PatternMonthly, Interval: 2, SeriesID: "f00d"},
	}

	for _, r := range rules {
		normalized, err := r.Normalize()
		require.NoError(t, err)

		sig := Encode(normalized)
		decoded, err := Decode(sig)
		require.NoError(t, err, sig)
		assert.Equal(t, normalized, decoded, sig)
		assert.Equal(t, sig, Encode(decoded), "encoding must be deterministic")
	}
}

func TestEncodeLayout(t *testing.T) {
	r, err := Rule{Pattern: PatternWeekly, Interval: 1, EndDate: endDate("2025-12-29"), DaysOfWeek: []time.Weekday{time.Wednesday, time.Monday}, SeriesID: "abc"}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, "v1;p=weekly;i=1;u=2025-12-29;d=1,3;s=abc", Encode(r))
}

func TestDecodeRejectsGarbage(t *testing.T) {
	for _, sig := range []string{
		"",
		"weekly",
		"v2;p=weekly;i=1;u=;d=;s=",
		"v1;p=weekly;i=0;u=;d=;s=",
		"v1;p=hourly;i=1;u=;d=;s=",
		"v1;p=weekly;i=1;u=2025-02-30;d=;s=",
		"v1;p=weekly;i=1;u=;d=9;s=",
		"v1;i=1;p=weekly;u=;d=;s=",
	} {
		_, err := Decode(sig)
		assert.ErrorIs(t, err, ErrInvalidSignature, sig)
	}
}
