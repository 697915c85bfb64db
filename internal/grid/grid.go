package grid

import (
	"courtside/internal/interval"
	"courtside/internal/models"
)

type cellKey struct {
	date string
	hour int
}

// Grid indexes slots and invites by (ISO date, hour). A record spanning several
// hours lands in every hour it touches.
type Grid struct {
	slots   map[cellKey][]models.AvailabilitySlot
	invites map[cellKey][]models.MatchInvite
}

// Build indexes the records. Non-blocking invites are dropped.
func Build(slots []models.AvailabilitySlot, invites []models.MatchInvite) *Grid {
	g := &Grid{
		slots:   make(map[cellKey][]models.AvailabilitySlot),
		invites: make(map[cellKey][]models.MatchInvite),
	}
	for i := range slots {
		first, last := interval.HourRange(slots[i].Interval)
		for h := first; h <= last; h++ {
			k := cellKey{date: slots[i].Interval.Date.ISO(), hour: h}
			g.slots[k] = append(g.slots[k], slots[i])
		}
	}
	for i := range invites {
		if !invites[i].Status.Blocking() {
			continue
		}
		first, last := interval.HourRange(invites[i].Interval)
		for h := first; h <= last; h++ {
			k := cellKey{date: invites[i].Interval.Date.ISO(), hour: h}
			g.invites[k] = append(g.invites[k], invites[i])
		}
	}
	return g
}

// Quarters classifies one hour.
func (g *Grid) Quarters(date interval.Date, hour int) Quarters {
	k := cellKey{date: date.ISO(), hour: hour}
	return Classify(date, hour, g.slots[k], g.invites[k])
}

// Others counts distinct offering owners in one hour.
func (g *Grid) Others(date interval.Date, hour int) Quarters {
	return ClassifyOthers(date, hour, g.slots[cellKey{date: date.ISO(), hour: hour}])
}

// IsHourAvailable reports whether any quarter of the hour is available.
func (g *Grid) IsHourAvailable(date interval.Date, hour int) bool {
	return g.Quarters(date, hour).AnyAvailable()
}

// HasInviteInHour reports whether any quarter of the hour holds an invite.
func (g *Grid) HasInviteInHour(date interval.Date, hour int) bool {
	return g.Quarters(date, hour).AnyInvite()
}

// Hour is one classified row of a day.
type Hour struct {
	Hour     int      `json:"hour"`
	Quarters Quarters `json:"quarters"`
}

// Day is the classified hours of a single date.
type Day struct {
	Date  interval.Date `json:"date"`
	Hours []Hour        `json:"hours"`
}

// HourWindow bounds the rendered hours, inclusive on both ends.
type HourWindow struct {
	First int
	Last  int
}

// FullDay renders every hour.
var FullDay = HourWindow{First: 0, Last: 23}

// Days renders n consecutive dates starting at from.
func (g *Grid) Days(from interval.Date, n int, window HourWindow) []Day {
	return g.render(from, n, window, g.Quarters)
}

// OthersDays renders n consecutive dates of others counts.
func (g *Grid) OthersDays(from interval.Date, n int, window HourWindow) []Day {
	return g.render(from, n, window, g.Others)
}

func (g *Grid) render(from interval.Date, n int, window HourWindow, classify func(interval.Date, int) Quarters) []Day {
	window = window.clamp()
	days := make([]Day, 0, n)
	for i := 0; i < n; i++ {
		d := from.AddDays(i)
		day := Day{Date: d, Hours: make([]Hour, 0, window.Last-window.First+1)}
		for h := window.First; h <= window.Last; h++ {
			day.Hours = append(day.Hours, Hour{Hour: h, Quarters: classify(d, h)})
		}
		days = append(days, day)
	}
	return days
}

func (w HourWindow) clamp() HourWindow {
	if w.First < 0 {
		w.First = 0
	}
	if w.Last > 23 || w.Last < w.First {
		w.Last = 23
	}
	return w
}
