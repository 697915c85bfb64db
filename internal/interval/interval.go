// Package interval implements the date + time-of-day range algebra used by the
// calendar: overlap tests, quarter-hour decomposition and wire formats.
package interval

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	MinutesPerDay  = 24 * 60
	QuarterMinutes = 15
	QuartersInHour = 4
	dateLayout     = "2006-01-02"
)

var (
	// ErrInvalidInterval reports a malformed or inverted time range.
	ErrInvalidInterval = errors.New("invalid interval")
	// ErrInvalidTime reports a time-of-day string that cannot be parsed.
	ErrInvalidTime = errors.New("invalid time of day")
	// ErrInvalidDate reports a calendar date string that cannot be parsed.
	ErrInvalidDate = errors.New("invalid date")
)

// TimeOfDay is a wall-clock time within one day. Comparisons use minute
// granularity; seconds are kept only so a stored value can be re-emitted as is.
type TimeOfDay struct {
	minutes int
	seconds int
}

// At builds a TimeOfDay from hour and minute.
func At(hour, minute int) (TimeOfDay, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("%w: %02d:%02d", ErrInvalidTime, hour, minute)
	}
	return TimeOfDay{minutes: hour*60 + minute}, nil
}

// MustAt is At for constants and tests.
func MustAt(hour, minute int) TimeOfDay {
	t, err := At(hour, minute)
	if err != nil {
		panic(err)
	}
	return t
}

// FromMinutes builds a TimeOfDay from minutes since midnight.
func FromMinutes(m int) (TimeOfDay, error) {
	if m < 0 || m >= MinutesPerDay {
		return TimeOfDay{}, fmt.Errorf("%w: %d minutes", ErrInvalidTime, m)
	}
	return TimeOfDay{minutes: m}, nil
}

// ParseTimeOfDay accepts "HH:MM" or "HH:MM:SS" (24-hour, zero padded).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}

	values := make([]int, len(parts))
	for i, p := range parts {
		if len(p) != 2 {
			return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
		v, err := strconv.Atoi(p)
		if err != nil {
			return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
		values[i] = v
	}

	t, err := At(values[0], values[1])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	if len(values) == 3 {
		if values[2] < 0 || values[2] > 59 {
			return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
		t.seconds = values[2]
	}
	return t, nil
}

// MustParseTimeOfDay panics on malformed input.
func MustParseTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

// Minutes returns minutes since midnight.
func (t TimeOfDay) Minutes() int { return t.minutes }

// Hour returns the clock hour.
func (t TimeOfDay) Hour() int { return t.minutes / 60 }

// String formats as "HH:MM".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.minutes/60, t.minutes%60)
}

// Clock formats as "HH:MM:SS", the form storage expects.
func (t TimeOfDay) Clock() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.minutes/60, t.minutes%60, t.seconds)
}

// Before compares at minute granularity.
func (t TimeOfDay) Before(o TimeOfDay) bool { return t.minutes < o.minutes }

// Equal compares at minute granularity.
func (t TimeOfDay) Equal(o TimeOfDay) bool { return t.minutes == o.minutes }

// Date is a naive calendar date. No timezone conversion is ever applied.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate normalizes out-of-range values the way time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf takes the calendar date of t in its own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses "YYYY-MM-DD".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return DateOf(t), nil
}

// MustParseDate panics on malformed input.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// ISO formats as "YYYY-MM-DD"; it is the lookup key used by the grid.
func (d Date) ISO() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func (d Date) String() string { return d.ISO() }

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool { return d == Date{} }

// Time returns midnight of d in loc (UTC when loc is nil).
func (d Date) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// AddDays moves d by n days.
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time(time.UTC).AddDate(0, 0, n))
}

// Weekday returns the day of week.
func (d Date) Weekday() time.Weekday {
	return d.Time(time.UTC).Weekday()
}

// Compare returns -1, 0 or 1.
func (d Date) Compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return cmpInt(d.Year, o.Year)
	case d.Month != o.Month:
		return cmpInt(int(d.Month), int(o.Month))
	default:
		return cmpInt(d.Day, o.Day)
	}
}

// Before reports d < o.
func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }

// After reports d > o.
func (d Date) After(o Date) bool { return d.Compare(o) > 0 }

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DateInterval is a half-open [Start, End) range on a single date.
// Ranges crossing midnight must be split by the caller.
type DateInterval struct {
	Date  Date
	Start TimeOfDay
	End   TimeOfDay
}

// New validates start < end.
func New(date Date, start, end TimeOfDay) (DateInterval, error) {
	if date.IsZero() {
		return DateInterval{}, fmt.Errorf("%w: date is required", ErrInvalidInterval)
	}
	if !start.Before(end) {
		return DateInterval{}, fmt.Errorf("%w: start %s must be before end %s", ErrInvalidInterval, start, end)
	}
	return DateInterval{Date: date, Start: start, End: end}, nil
}

// Parse builds an interval from wire strings.
func Parse(date, start, end string) (DateInterval, error) {
	d, err := ParseDate(date)
	if err != nil {
		return DateInterval{}, fmt.Errorf("%w: %v", ErrInvalidInterval, err)
	}
	s, err := ParseTimeOfDay(start)
	if err != nil {
		return DateInterval{}, fmt.Errorf("%w: %v", ErrInvalidInterval, err)
	}
	e, err := ParseTimeOfDay(end)
	if err != nil {
		return DateInterval{}, fmt.Errorf("%w: %v", ErrInvalidInterval, err)
	}
	return New(d, s, e)
}

// MustParse panics on malformed input.
func MustParse(date, start, end string) DateInterval {
	iv, err := Parse(date, start, end)
	if err != nil {
		panic(err)
	}
	return iv
}

// OnDate returns the same time range moved to another date.
func (iv DateInterval) OnDate(d Date) DateInterval {
	iv.Date = d
	return iv
}

// Duration returns End - Start.
func (iv DateInterval) Duration() time.Duration {
	return time.Duration(iv.End.minutes-iv.Start.minutes) * time.Minute
}

// StartTime returns the start instant in loc.
func (iv DateInterval) StartTime(loc *time.Location) time.Time {
	return iv.Date.Time(loc).Add(time.Duration(iv.Start.minutes)*time.Minute + time.Duration(iv.Start.seconds)*time.Second)
}

func (iv DateInterval) String() string {
	return fmt.Sprintf("%s %s-%s", iv.Date.ISO(), iv.Start, iv.End)
}

// Overlaps reports whether a and b share any instant. Touching endpoints do
// not overlap.
func Overlaps(a, b DateInterval) bool {
	return a.Date == b.Date && a.Start.minutes < b.End.minutes && b.Start.minutes < a.End.minutes
}

// Contains reports whether inner lies entirely within outer.
func Contains(outer, inner DateInterval) bool {
	return outer.Date == inner.Date && outer.Start.minutes <= inner.Start.minutes && inner.End.minutes <= outer.End.minutes
}

// QuartersCovered reports which of the four 15-minute cells of hour h
// intersect iv.
func QuartersCovered(iv DateInterval, hour int) [QuartersInHour]bool {
	var out [QuartersInHour]bool
	base := hour * 60
	for q := 0; q < QuartersInHour; q++ {
		cellStart := base + q*QuarterMinutes
		cellEnd := cellStart + QuarterMinutes
		out[q] = iv.Start.minutes < cellEnd && cellStart < iv.End.minutes
	}
	return out
}

// HourRange returns the first and last clock hours iv touches. An end on an
// exact hour boundary does not touch that hour.
func HourRange(iv DateInterval) (first, last int) {
	return iv.Start.minutes / 60, (iv.End.minutes - 1) / 60
}

type wireInterval struct {
	Date  string `json:"date"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// MarshalJSON emits {"date":"YYYY-MM-DD","start":"HH:MM","end":"HH:MM"}.
func (iv DateInterval) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireInterval{Date: iv.Date.ISO(), Start: iv.Start.String(), End: iv.End.String()})
}

// UnmarshalJSON accepts the MarshalJSON form, with or without seconds.
func (iv *DateInterval) UnmarshalJSON(data []byte) error {
	var w wireInterval
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInterval, err)
	}
	parsed, err := Parse(w.Date, w.Start, w.End)
	if err != nil {
		return err
	}
	*iv = parsed
	return nil
}

// MarshalText formats the date as ISO so it can be used in JSON and as a map key.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.ISO()), nil
}

// UnmarshalText parses an ISO date.
func (d *Date) UnmarshalText(text []byte) error {
	parsed, err := ParseDate(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
