package interval

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		minutes int
		clock   string
		wantErr bool
	}{
		{in: "09:00", minutes: 540, clock: "09:00:00"},
		{in: "09:00:30", minutes: 540, clock: "09:00:30"},
		{in: "23:59", minutes: 1439, clock: "23:59:00"},
		{in: "00:00:00", minutes: 0, clock: "00:00:00"},
		{in: "24:00", wantErr: true},
		{in: "9:00", wantErr: true},
		{in: "09:60", wantErr: true},
		{in: "09:00:61", wantErr: true},
		{in: "0900", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTime)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.minutes, got.Minutes())
			assert.Equal(t, tt.clock, got.Clock())
		})
	}
}

func TestTimeOfDaySecondsIgnoredForComparison(t *testing.T) {
	a := MustParseTimeOfDay("10:15:45")
	b := MustParseTimeOfDay("10:15")
	assert.True(t, a.Equal(b))
	assert.False(t, a.Before(b))
	assert.Equal(t, "10:15", a.String())
	assert.Equal(t, "10:15:45", a.Clock())
}

func TestNewRejectsInvertedAndEmpty(t *testing.T) {
	d := MustParseDate("2025-03-10")

	_, err := New(d, MustAt(10, 0), MustAt(10, 0))
	assert.ErrorIs(t, err, ErrInvalidInterval)

	_, err = New(d, MustAt(11, 0), MustAt(10, 0))
	assert.ErrorIs(t, err, ErrInvalidInterval)

	_, err = New(Date{}, MustAt(9, 0), MustAt(10, 0))
	assert.ErrorIs(t, err, ErrInvalidInterval)

	_, err = Parse("2025-03-10", "10:00", "nope")
	assert.ErrorIs(t, err, ErrInvalidInterval)
}

func TestOverlaps(t *testing.T) {
	base := MustParse("2025-03-10", "14:00", "15:00")

	tests := []struct {
		name  string
		other DateInterval
		want  bool
	}{
		{"self", base, true},
		{"partial tail", MustParse("2025-03-10", "14:30", "15:30"), true},
		{"partial head", MustParse("2025-03-10", "13:30", "14:01"), true},
		{"contained", MustParse("2025-03-10", "14:15", "14:45"), true},
		{"touching after", MustParse("2025-03-10", "15:00", "16:00"), false},
		{"touching before", MustParse("2025-03-10", "13:00", "14:00"), false},
		{"other date", MustParse("2025-03-11", "14:00", "15:00"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(base, tt.other))
			assert.Equal(t, tt.want, Overlaps(tt.other, base), "overlap must be symmetric")
		})
	}
}

func TestContains(t *testing.T) {
	outer := MustParse("2025-03-10", "09:00", "11:00")
	assert.True(t, Contains(outer, MustParse("2025-03-10", "09:00", "11:00")))
	assert.True(t, Contains(outer, MustParse("2025-03-10", "10:00", "10:30")))
	assert.False(t, Contains(outer, MustParse("2025-03-10", "10:30", "11:15")))
	assert.False(t, Contains(outer, MustParse("2025-03-11", "10:00", "10:30")))
}

func TestQuartersCovered(t *testing.T) {
	hourSlot := MustParse("2025-03-10", "09:00", "10:00")
	assert.Equal(t, [4]bool{true, true, true, true}, QuartersCovered(hourSlot, 9))
	assert.Equal(t, [4]bool{}, QuartersCovered(hourSlot, 8))
	assert.Equal(t, [4]bool{}, QuartersCovered(hourSlot, 10))

	partial := MustParse("2025-03-10", "10:10", "10:31")
	assert.Equal(t, [4]bool{true, true, true, false}, QuartersCovered(partial, 10))

	late := MustParse("2025-03-10", "10:45", "12:15")
	assert.Equal(t, [4]bool{false, false, false, true}, QuartersCovered(late, 10))
	assert.Equal(t, [4]bool{true, true, true, true}, QuartersCovered(late, 11))
	assert.Equal(t, [4]bool{true, false, false, false}, QuartersCovered(late, 12))
}

func TestHourRange(t *testing.T) {
	first, last := HourRange(MustParse("2025-03-10", "09:00", "10:00"))
	assert.Equal(t, 9, first)
	assert.Equal(t, 9, last)

	first, last = HourRange(MustParse("2025-03-10", "09:30", "11:15"))
	assert.Equal(t, 9, first)
	assert.Equal(t, 11, last)

	first, last = HourRange(MustParse("2025-03-10", "23:00", "23:59"))
	assert.Equal(t, 23, first)
	assert.Equal(t, 23, last)
}

func TestDateArithmetic(t *testing.T) {
	d := MustParseDate("2024-02-28")
	assert.Equal(t, "2024-02-29", d.AddDays(1).ISO())
	assert.Equal(t, "2024-03-01", d.AddDays(2).ISO())
	assert.Equal(t, time.Wednesday, d.Weekday())
	assert.True(t, d.Before(d.AddDays(1)))
	assert.True(t, d.AddDays(1).After(d))
	assert.Equal(t, 29, DaysIn(2024, time.February))
	assert.Equal(t, 28, DaysIn(2025, time.February))

	_, err := ParseDate("2024-13-01")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestStartTime(t *testing.T) {
	iv := MustParse("2025-03-10", "18:30", "19:00")
	want := time.Date(2025, 3, 10, 18, 30, 0, 0, time.UTC)
	assert.True(t, iv.StartTime(time.UTC).Equal(want))
	assert.Equal(t, 30*time.Minute, iv.Duration())
}

func TestIntervalWireForm(t *testing.T) {
	data, err := json.Marshal(MustParse("2025-03-10", "18:30:15", "19:00"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2025-03-10","start":"18:30","end":"19:00"}`, string(data))

	var iv DateInterval
	require.NoError(t, json.Unmarshal([]byte(`{"date":"2025-03-10","start":"18:30:00","end":"19:00"}`), &iv))
	assert.Equal(t, MustParse("2025-03-10", "18:30", "19:00"), iv)

	err = json.Unmarshal([]byte(`{"date":"2025-03-10","start":"19:00","end":"18:30"}`), &iv)
	assert.ErrorIs(t, err, ErrInvalidInterval)
}
