package recurrence

import (
	"slices"
	"time"

	"courtside/internal/interval"
)

// Expansion is the materialized result of expanding a rule.
type Expansion struct {
	Occurrences []interval.DateInterval
	// Truncated is set when the cap stopped expansion before the rule ran out.
	// It is a warning, not a failure: the emitted prefix is still usable.
	Truncated bool
	HardCap   int
}

// Iterator lazily walks the occurrences of a rule. It is restartable with
// Reset and never yields more than its cap.
type Iterator struct {
	origin  interval.DateInterval
	rule    Rule
	cap     int
	emitted int
	step    int // week or month index, or day index for daily rules
	dayIdx  int // position within weekDays for weekly-by-day rules
	done    bool
	// weekDays holds DaysOfWeek in Monday-first order.
	weekDays []time.Weekday
}

// NewIterator prepares an iterator. A non-positive cap uses DefaultHardCap.
func NewIterator(origin interval.DateInterval, rule Rule, hardCap int) (*Iterator, error) {
	normalized, err := rule.Normalize()
	if err != nil {
		return nil, err
	}
	if hardCap <= 0 {
		hardCap = DefaultHardCap
	}
	weekDays := slices.Clone(normalized.DaysOfWeek)
	slices.SortFunc(weekDays, func(a, b time.Weekday) int {
		return mondayOffset(a) - mondayOffset(b)
	})
	return &Iterator{origin: origin, rule: normalized, cap: hardCap, weekDays: weekDays}, nil
}

// Reset rewinds the iterator to the origin.
func (it *Iterator) Reset() {
	it.emitted, it.step, it.dayIdx, it.done = 0, 0, 0, false
}

// Next returns the next occurrence, or false when the rule is exhausted or the
// cap has been reached.
func (it *Iterator) Next() (interval.DateInterval, bool) {
	if it.done || it.emitted >= it.cap {
		return interval.DateInterval{}, false
	}
	d, ok := it.advance()
	if !ok {
		it.done = true
		return interval.DateInterval{}, false
	}
	it.emitted++
	return it.origin.OnDate(d), true
}

// Exhausted reports whether the rule itself has no further occurrences,
// regardless of the cap.
func (it *Iterator) Exhausted() bool {
	if it.done {
		return true
	}
	peek := *it
	_, ok := peek.advance()
	return !ok
}

func (it *Iterator) advance() (interval.Date, bool) {
	// A daily rule cycles through weekdays with a period of at most 7 steps,
	// so 7 consecutive rejections mean the filter can never match.
	for misses := 0; misses <= 7; misses++ {
		d, ok := it.candidate()
		if !ok {
			return interval.Date{}, false
		}
		if it.rule.EndDate != nil && d.After(*it.rule.EndDate) {
			return interval.Date{}, false
		}
		if it.accept(d) {
			return d, true
		}
	}
	return interval.Date{}, false
}

// candidate produces the next date in rule order without the end-date check.
func (it *Iterator) candidate() (interval.Date, bool) {
	origin := it.origin.Date

	switch it.rule.Pattern {
	case PatternNone:
		if it.step > 0 {
			return interval.Date{}, false
		}
		it.step++
		return origin, true

	case PatternDaily:
		d := origin.AddDays(it.step * it.rule.Interval)
		it.step++
		return d, true

	case PatternWeekly:
		if len(it.rule.DaysOfWeek) == 0 {
			d := origin.AddDays(it.step * 7 * it.rule.Interval)
			it.step++
			return d, true
		}
		for {
			weekStart := mondayOf(origin).AddDays(it.step * 7 * it.rule.Interval)
			if it.dayIdx >= len(it.weekDays) {
				it.dayIdx = 0
				it.step++
				continue
			}
			day := it.weekDays[it.dayIdx]
			it.dayIdx++
			d := weekStart.AddDays(mondayOffset(day))
			if d.Before(origin) {
				continue
			}
			return d, true
		}

	case PatternMonthly:
		d := addMonthsClamped(origin, it.step*it.rule.Interval)
		it.step++
		return d, true
	}

	return interval.Date{}, false
}

// accept applies the weekday filter of daily rules.
func (it *Iterator) accept(d interval.Date) bool {
	if it.rule.Pattern != PatternDaily || len(it.rule.DaysOfWeek) == 0 {
		return true
	}
	wd := d.Weekday()
	for _, day := range it.rule.DaysOfWeek {
		if day == wd {
			return true
		}
	}
	return false
}

// Expand materializes at most hardCap occurrences of rule starting at origin.
// Pattern none always yields exactly the origin.
func Expand(origin interval.DateInterval, rule Rule, hardCap int) (Expansion, error) {
	it, err := NewIterator(origin, rule, hardCap)
	if err != nil {
		return Expansion{}, err
	}

	out := Expansion{HardCap: it.cap, Occurrences: make([]interval.DateInterval, 0, min(it.cap, 64))}
	for {
		occ, ok := it.Next()
		if !ok {
			break
		}
		out.Occurrences = append(out.Occurrences, occ)
	}
	out.Truncated = len(out.Occurrences) == it.cap && !it.Exhausted()
	return out, nil
}

// addMonthsClamped keeps the origin's day of month, clamped to the target
// month's last day.
func addMonthsClamped(origin interval.Date, months int) interval.Date {
	total := int(origin.Month) - 1 + months
	year := origin.Year + total/12
	month := time.Month(total%12 + 1)
	day := origin.Day
	if last := interval.DaysIn(year, month); day > last {
		day = last
	}
	return interval.Date{Year: year, Month: month, Day: day}
}

func mondayOffset(day time.Weekday) int {
	return (int(day) + 6) % 7
}

func mondayOf(d interval.Date) interval.Date {
	return d.AddDays(-mondayOffset(d.Weekday()))
}
