// Package recurrence expands availability rules into concrete occurrences and
// encodes rules into the signature shared by every occurrence of a series.
package recurrence

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"courtside/internal/interval"
)

// Pattern is the repeat unit of a rule.
type Pattern string

const (
	PatternNone    Pattern = "none"
	PatternDaily   Pattern = "daily"
	PatternWeekly  Pattern = "weekly"
	PatternMonthly Pattern = "monthly"
)

// DefaultHardCap bounds expansion of rules without an end date: one year of
// daily occurrences.
const DefaultHardCap = 366

const signatureVersion = "v1"

var (
	ErrInvalidPattern   = errors.New("recurrence: invalid pattern")
	ErrInvalidRule      = errors.New("recurrence: invalid rule")
	ErrInvalidSignature = errors.New("recurrence: invalid signature")
)

// Rule describes how an origin occurrence repeats.
type Rule struct {
	Pattern  Pattern
	Interval int
	EndDate  *interval.Date
	// DaysOfWeek selects weekdays for weekly rules and filters daily rules.
	// Empty means the origin's weekday.
	DaysOfWeek []time.Weekday
	// SeriesID keeps two identical rules created separately in distinct groups.
	SeriesID string
}

// None returns the rule of a one-off slot.
func None() Rule {
	return Rule{Pattern: PatternNone, Interval: 1}
}

// IsRecurring reports whether the rule repeats.
func (r Rule) IsRecurring() bool {
	return r.Pattern != "" && r.Pattern != PatternNone
}

// Normalize defaults the interval, sorts and dedupes weekdays, and validates
// the rule. Signatures are only reversible for normalized rules.
func (r Rule) Normalize() (Rule, error) {
	switch r.Pattern {
	case "":
		r.Pattern = PatternNone
	case PatternNone, PatternDaily, PatternWeekly, PatternMonthly:
	default:
		return Rule{}, fmt.Errorf("%w: %q", ErrInvalidPattern, r.Pattern)
	}

	if r.Interval == 0 {
		r.Interval = 1
	}
	if r.Interval < 0 {
		return Rule{}, fmt.Errorf("%w: interval must be positive", ErrInvalidRule)
	}

	if len(r.DaysOfWeek) > 0 {
		seen := make(map[time.Weekday]struct{}, len(r.DaysOfWeek))
		days := make([]time.Weekday, 0, len(r.DaysOfWeek))
		for _, d := range r.DaysOfWeek {
			if d < time.Sunday || d > time.Saturday {
				return Rule{}, fmt.Errorf("%w: weekday %d", ErrInvalidRule, d)
			}
			if _, ok := seen[d]; ok {
				continue
			}
			seen[d] = struct{}{}
			days = append(days, d)
		}
		sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
		r.DaysOfWeek = days
	} else {
		r.DaysOfWeek = nil
	}

	if r.EndDate != nil {
		end := *r.EndDate
		r.EndDate = &end
	}
	if strings.ContainsAny(r.SeriesID, ";=") {
		return Rule{}, fmt.Errorf("%w: series id contains reserved characters", ErrInvalidRule)
	}

	return r, nil
}

// Encode serializes a normalized rule:
//
//	v1;p=weekly;i=1;u=2025-12-31;d=1,3;s=<series>
//
// Empty fields are kept so the layout is fixed.
func Encode(r Rule) string {
	var b strings.Builder
	b.WriteString(signatureVersion)
	b.WriteString(";p=")
	b.WriteString(string(r.Pattern))
	b.WriteString(";i=")
	b.WriteString(strconv.Itoa(r.Interval))
	b.WriteString(";u=")
	if r.EndDate != nil {
		b.WriteString(r.EndDate.ISO())
	}
	b.WriteString(";d=")
	for i, d := range r.DaysOfWeek {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(int(d)))
	}
	b.WriteString(";s=")
	b.WriteString(r.SeriesID)
	return b.String()
}

// Decode parses a signature produced by Encode.
func Decode(sig string) (Rule, error) {
	parts := strings.Split(sig, ";")
	if len(parts) != 6 || parts[0] != signatureVersion {
		return Rule{}, fmt.Errorf("%w: %q", ErrInvalidSignature, sig)
	}

	wantKeys := []string{"p", "i", "u", "d", "s"}
	values := make(map[string]string, len(wantKeys))
	for i, part := range parts[1:] {
		key, value, ok := strings.Cut(part, "=")
		if !ok || key != wantKeys[i] {
			return Rule{}, fmt.Errorf("%w: field %d in %q", ErrInvalidSignature, i+1, sig)
		}
		values[key] = value
	}

	r := Rule{Pattern: Pattern(values["p"]), SeriesID: values["s"]}

	n, err := strconv.Atoi(values["i"])
	if err != nil || n <= 0 {
		return Rule{}, fmt.Errorf("%w: interval %q", ErrInvalidSignature, values["i"])
	}
	r.Interval = n

	if u := values["u"]; u != "" {
		end, err := interval.ParseDate(u)
		if err != nil {
			return Rule{}, fmt.Errorf("%w: end date %q", ErrInvalidSignature, u)
		}
		r.EndDate = &end
	}

	if d := values["d"]; d != "" {
		for _, raw := range strings.Split(d, ",") {
			v, err := strconv.Atoi(raw)
			if err != nil {
				return Rule{}, fmt.Errorf("%w: weekday %q", ErrInvalidSignature, raw)
			}
			r.DaysOfWeek = append(r.DaysOfWeek, time.Weekday(v))
		}
	}

	normalized, err := r.Normalize()
	if err != nil {
		return Rule{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return normalized, nil
}
