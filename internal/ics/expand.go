package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "gabinet/internal/log"
)

const defaultMaxOccurrences = 1000

// Occurrence is one concrete instance of an Event.
type Occurrence struct {
	FeedID   string
	UID      string
	Summary  string
	Location string
	Start    time.Time
	End      time.Time
	AllDay   bool
}

// ExpandConfig bounds recurrence expansion.
type ExpandConfig struct {
	Location       *time.Location // occurrences are converted here; nil means time.Local
	RangeStart     time.Time
	RangeEnd       time.Time
	MaxOccurrences int // per recurring event; 0 means 1000
}

// ExpandOccurrences turns events into the occurrences intersecting
// [RangeStart, RangeEnd], applying EXDATEs and RECURRENCE-ID overrides.
// Results are ordered by start time.
func ExpandOccurrences(events []Event, cfg ExpandConfig) ([]Occurrence, error) {
	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return nil, errors.New("ics: range end is before range start")
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.MaxOccurrences <= 0 {
		cfg.MaxOccurrences = defaultMaxOccurrences
	}

	overrides := make(map[string][]Event)
	var bases []Event
	for _, ev := range events {
		if ev.RecurrenceID != nil {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		bases = append(bases, ev)
	}

	out := []Occurrence{}
	for _, ev := range bases {
		if ev.RRule == "" {
			if overlaps(ev.Start, ev.End, cfg.RangeStart, cfg.RangeEnd) {
				out = append(out, occurrenceOf(ev, ev.Start, ev.End, cfg.Location))
			}
			continue
		}
		out = append(out, expandRecurring(ev, overrides[ev.UID], cfg)...)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func expandRecurring(ev Event, overrides []Event, cfg ExpandConfig) []Occurrence {
	r, err := rrule.StrToRRule(ev.RRule)
	if err != nil {
		appLog.Warn("skipping unparseable RRULE", "feed", ev.FeedID, "uid", ev.UID, "rrule", ev.RRule)
		return nil
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	dur := ev.End.Sub(ev.Start)
	// Widen by the duration so instances that began before the range but
	// are still running inside it are kept.
	from := cfg.RangeStart.Add(-dur).In(ev.Start.Location())
	to := cfg.RangeEnd.In(ev.Start.Location())
	starts := set.Between(from, to, true)
	if len(starts) > cfg.MaxOccurrences {
		appLog.Warn("recurrence truncated", "feed", ev.FeedID, "uid", ev.UID, "cap", cfg.MaxOccurrences)
		starts = starts[:cfg.MaxOccurrences]
	}

	out := make([]Occurrence, 0, len(starts))
	for _, start := range starts {
		inst, s, e := ev, start, start.Add(dur)
		for _, o := range overrides {
			if o.RecurrenceID.Equal(start) {
				inst, s, e = o, o.Start, o.End
				break
			}
		}
		if !overlaps(s, e, cfg.RangeStart, cfg.RangeEnd) {
			continue
		}
		out = append(out, occurrenceOf(inst, s, e, cfg.Location))
	}
	return out
}

func occurrenceOf(ev Event, start, end time.Time, loc *time.Location) Occurrence {
	o := Occurrence{
		FeedID:   ev.FeedID,
		UID:      ev.UID,
		Summary:  ev.Summary,
		Location: ev.Location,
		AllDay:   ev.AllDay,
		Start:    start.In(loc),
		End:      end.In(loc),
	}
	if ev.AllDay {
		// All-day dates are floating; keep the calendar day, not the instant.
		o.Start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
		o.End = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, loc)
	}
	return o
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	if !aEnd.After(aStart) {
		return !aStart.Before(bStart) && !aStart.After(bEnd)
	}
	return aStart.Before(bEnd) && aEnd.After(bStart)
}
