package schedule

import (
	"time"

	appLog "gabinet/internal/log"
)

// DateLayout is the date format used for TimedEvent.Date and view dates.
const DateLayout = "2006-01-02"

// DayLayout is everything a day column needs to paint itself.
type DayLayout struct {
	Date     string     `json:"date"`
	Height   float64    `json:"height"`
	Blocks   []Geometry `json:"blocks"`
	Rejected []Rejected `json:"rejected,omitempty"`
	// NowTop is the offset of the "now" line, nil when it is not shown.
	NowTop *float64 `json:"now_top,omitempty"`
}

// Layout runs the full pipeline over one day's events. Blocks come out in
// chronological sweep order; malformed and invisible events are left out.
func Layout(events []TimedEvent, s Scale) DayLayout {
	spans, rejected := Prepare(events)
	for _, r := range rejected {
		appLog.Warn("schedule: dropping malformed event",
			"id", r.Event.ID, "date", r.Event.Date, "reason", r.Reason)
	}

	blocks := make([]Geometry, 0, len(spans))
	for _, cl := range Cluster(spans, CanonicalOrder) {
		for i, a := range Pack(cl) {
			if g, ok := Project(cl[i], a, s); ok {
				blocks = append(blocks, g)
			}
		}
	}

	return DayLayout{
		Height:   s.Height(),
		Blocks:   blocks,
		Rejected: rejected,
	}
}

// DayView lays out the events of date. Events with an empty Date are taken
// to belong to the viewed day.
func DayView(date string, events []TimedEvent, s Scale, now time.Time) DayLayout {
	day := make([]TimedEvent, 0, len(events))
	for _, ev := range events {
		if ev.Date == "" || ev.Date == date {
			day = append(day, ev)
		}
	}

	out := Layout(day, s)
	out.Date = date
	if top, ok := NowLine(date, now, s); ok {
		out.NowTop = &top
	}
	return out
}

// WeekView lays out seven consecutive days starting at weekStart. Days are
// independent; an event only appears in the column of its own Date.
func WeekView(weekStart time.Time, events []TimedEvent, s Scale, now time.Time) []DayLayout {
	byDate := make(map[string][]TimedEvent)
	for _, ev := range events {
		byDate[ev.Date] = append(byDate[ev.Date], ev)
	}

	days := make([]DayLayout, 0, 7)
	for i := 0; i < 7; i++ {
		date := weekStart.AddDate(0, 0, i).Format(DateLayout)
		days = append(days, DayView(date, byDate[date], s, now))
	}
	return days
}

// NowLine returns the offset of the current-time indicator. It is only shown
// when viewDate is today (in now's location) and now falls inside the window.
func NowLine(viewDate string, now time.Time, s Scale) (float64, bool) {
	if now.Format(DateLayout) != viewDate {
		return 0, false
	}
	c := Clock(now.Hour()*60 + now.Minute())
	if c < s.WindowStart || c > s.WindowEnd {
		return 0, false
	}
	return s.Offset(c), true
}

// StartOfWeek returns midnight of the first day of the week containing t.
// weekStart is time.Monday or time.Sunday.
func StartOfWeek(t time.Time, weekStart time.Weekday) time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	shift := (int(d.Weekday()) - int(weekStart) + 7) % 7
	return d.AddDate(0, 0, -shift)
}
