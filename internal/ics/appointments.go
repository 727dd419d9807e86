package ics

import (
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"gabinet/internal/model"
	"gabinet/internal/schedule"
)

// ToAppointments converts occurrences into appointments sourced from their
// feed. An occurrence crossing midnight (all-day ones included) becomes one
// appointment per day, clamped to 00:00-24:00.
func ToAppointments(occs []Occurrence, loc *time.Location) []model.Appointment {
	if loc == nil {
		loc = time.Local
	}
	out := []model.Appointment{}
	for _, o := range occs {
		start, end := o.Start.In(loc), o.End.In(loc)
		if o.AllDay {
			start = time.Date(o.Start.Year(), o.Start.Month(), o.Start.Day(), 0, 0, 0, 0, loc)
			end = time.Date(o.End.Year(), o.End.Month(), o.End.Day(), 0, 0, 0, 0, loc)
		}
		if !end.After(start) {
			continue
		}

		day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
		for day.Before(end) {
			next := day.AddDate(0, 0, 1)
			segStart, segEnd := start, end
			if segStart.Before(day) {
				segStart = day
			}
			if segEnd.After(next) {
				segEnd = next
			}

			from := clockOf(segStart, day)
			to := clockOf(segEnd, day)
			if from < to {
				out = append(out, model.Appointment{
					PatientName: o.Summary,
					Notes:       o.Location,
					Date:        day.Format(schedule.DateLayout),
					Start:       from.String(),
					End:         to.String(),
					Status:      model.AppointmentConfirmed,
					Source:      o.FeedID,
				})
			}
			day = next
		}
	}
	return out
}

// clockOf is t's minute offset from midnight of day; the following midnight
// maps to 24:00.
func clockOf(t, day time.Time) schedule.Clock {
	return schedule.Clock(int(t.Sub(day) / time.Minute))
}

// instant resolves a date and a clock string in loc.
func instant(date, clock string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(schedule.DateLayout, date, loc)
	if err != nil {
		return time.Time{}, err
	}
	c, err := schedule.ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return d.Add(time.Duration(c) * time.Minute), nil
}

// Export renders appointments as an iCalendar feed. Appointments with a
// malformed date or clock are left out.
func Export(appts []model.Appointment, loc *time.Location, name string) string {
	if loc == nil {
		loc = time.Local
	}
	cal := ical.NewCalendarFor("gabinet")
	cal.SetMethod(ical.MethodPublish)
	if name != "" {
		cal.SetXWRCalName(name)
	}

	for _, a := range appts {
		start, err := instant(a.Date, a.Start, loc)
		if err != nil {
			continue
		}
		end, err := instant(a.Date, a.End, loc)
		if err != nil || !end.After(start) {
			continue
		}

		ev := cal.AddEvent(a.ID + "@gabinet")
		stamp := a.CreatedAt
		if stamp.IsZero() {
			stamp = start
		}
		ev.SetDtStampTime(stamp)
		ev.SetStartAt(start)
		ev.SetEndAt(end)
		ev.SetSummary(summaryOf(a))
		if a.Notes != "" {
			ev.SetDescription(a.Notes)
		}
		switch a.Status {
		case model.AppointmentCancelled:
			ev.SetStatus(ical.ObjectStatusCancelled)
		case model.AppointmentScheduled:
			ev.SetStatus(ical.ObjectStatusTentative)
		default:
			ev.SetStatus(ical.ObjectStatusConfirmed)
		}
	}
	return cal.Serialize()
}

func summaryOf(a model.Appointment) string {
	parts := make([]string, 0, 2)
	if a.PatientName != "" {
		parts = append(parts, a.PatientName)
	}
	if a.Treatment != "" {
		parts = append(parts, a.Treatment)
	}
	if len(parts) == 0 {
		return "Appointment"
	}
	return strings.Join(parts, ": ")
}

// Cadence is how often a series repeats.
type Cadence string

const (
	CadenceDaily    Cadence = "daily"
	CadenceWeekly   Cadence = "weekly"
	CadenceBiweekly Cadence = "biweekly"
	CadenceMonthly  Cadence = "monthly"
)

// MaxSeriesCount bounds a single series.
const MaxSeriesCount = 104

var ErrBadSeries = errors.New("ics: invalid series")

func ParseCadence(s string) (Cadence, error) {
	switch c := Cadence(strings.ToLower(strings.TrimSpace(s))); c {
	case CadenceDaily, CadenceWeekly, CadenceBiweekly, CadenceMonthly:
		return c, nil
	}
	return "", fmt.Errorf("%w: cadence %q", ErrBadSeries, s)
}

// Series repeats first count times at cadence, first occurrence included.
// Monthly series skip months that lack first's day of month.
func Series(first model.Appointment, cadence Cadence, count int, loc *time.Location) ([]model.Appointment, error) {
	if count < 1 || count > MaxSeriesCount {
		return nil, fmt.Errorf("%w: count %d not in 1..%d", ErrBadSeries, count, MaxSeriesCount)
	}
	if loc == nil {
		loc = time.Local
	}
	start, err := instant(first.Date, first.Start, loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSeries, err)
	}

	opt := rrule.ROption{Dtstart: start, Count: count, Interval: 1}
	switch cadence {
	case CadenceDaily:
		opt.Freq = rrule.DAILY
	case CadenceWeekly:
		opt.Freq = rrule.WEEKLY
	case CadenceBiweekly:
		opt.Freq = rrule.WEEKLY
		opt.Interval = 2
	case CadenceMonthly:
		opt.Freq = rrule.MONTHLY
	default:
		return nil, fmt.Errorf("%w: cadence %q", ErrBadSeries, cadence)
	}
	r, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSeries, err)
	}

	times := r.All()
	out := make([]model.Appointment, 0, len(times))
	for _, t := range times {
		a := first
		a.ID = ""
		a.Date = t.In(loc).Format(schedule.DateLayout)
		out = append(out, a)
	}
	return out, nil
}
