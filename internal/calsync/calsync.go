// Package calsync pulls subscribed calendar feeds into the appointment
// store, on demand and on a cron schedule.
package calsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"gabinet/internal/ics"
	appLog "gabinet/internal/log"
	"gabinet/internal/model"
	"gabinet/internal/schedule"
)

// Fetcher returns the current body of a feed.
type Fetcher interface {
	Fetch(ctx context.Context, feed ics.Feed) (ics.Payload, error)
}

// Sink stores the appointments of one feed for a date range, replacing what
// the previous sync stored there.
type Sink interface {
	ReplaceExternal(ctx context.Context, source, from, to string, appts []model.Appointment) (int, error)
}

type Syncer struct {
	Fetcher  Fetcher
	Sink     Sink
	Feeds    []ics.Feed
	Location *time.Location

	// PastDays / FutureDays bound the synced window around today.
	PastDays   int
	FutureDays int

	// Now is overridable for tests.
	Now func() time.Time
}

// Report is the outcome of one sync pass.
type Report struct {
	Feeds    int               `json:"feeds"`
	Imported map[string]int    `json:"imported"`
	Failed   map[string]string `json:"failed,omitempty"`
}

// RunOnce syncs every feed. A failing feed is logged and reported and does
// not stop the others.
func (s *Syncer) RunOnce(ctx context.Context) Report {
	loc := s.Location
	if loc == nil {
		loc = time.Local
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	today := now().In(loc)
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, loc)
	from := today.AddDate(0, 0, -s.PastDays)
	to := today.AddDate(0, 0, s.FutureDays+1)

	rep := Report{Feeds: len(s.Feeds), Imported: map[string]int{}, Failed: map[string]string{}}
	for _, feed := range s.Feeds {
		if ctx.Err() != nil {
			rep.Failed[feed.ID] = ctx.Err().Error()
			continue
		}
		n, err := s.syncFeed(ctx, feed, from, to, loc)
		if err != nil {
			appLog.Error("feed sync failed", err, "feed", feed.ID)
			rep.Failed[feed.ID] = err.Error()
			continue
		}
		rep.Imported[feed.ID] = n
	}

	appLog.Info("calendar sync finished", "feeds", rep.Feeds, "failed", len(rep.Failed))
	return rep
}

func (s *Syncer) syncFeed(ctx context.Context, feed ics.Feed, from, to time.Time, loc *time.Location) (int, error) {
	if feed.ID == "" {
		return 0, errors.New("feed has no id")
	}
	p, err := s.Fetcher.Fetch(ctx, feed)
	if err != nil {
		return 0, err
	}
	events, err := ics.ParseICS(feed.ID, p.Body)
	if err != nil {
		return 0, fmt.Errorf("parse: %w", err)
	}
	occs, err := ics.ExpandOccurrences(events, ics.ExpandConfig{
		Location:   loc,
		RangeStart: from,
		RangeEnd:   to,
	})
	if err != nil {
		return 0, err
	}

	appts := ics.ToAppointments(occs, loc)
	lastDay := to.AddDate(0, 0, -1)
	return s.Sink.ReplaceExternal(ctx, feed.ID,
		from.Format(schedule.DateLayout), lastDay.Format(schedule.DateLayout), inRange(appts, from, lastDay))
}

// inRange drops split days that fall outside [from, last].
func inRange(appts []model.Appointment, from, last time.Time) []model.Appointment {
	lo, hi := from.Format(schedule.DateLayout), last.Format(schedule.DateLayout)
	out := appts[:0]
	for _, a := range appts {
		if a.Date >= lo && a.Date <= hi {
			out = append(out, a)
		}
	}
	return out
}

// Scheduler runs jobs on cron specs in the clinic's timezone. Jobs get the
// context the scheduler was created with.
type Scheduler struct {
	ctx context.Context
	c   *cron.Cron
}

func NewScheduler(ctx context.Context, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{ctx: ctx, c: cron.New(cron.WithLocation(loc))}
}

// Add registers job under spec. Runs of the same job never overlap.
func (s *Scheduler) Add(name, spec string, job func(ctx context.Context)) error {
	busy := make(chan struct{}, 1)
	_, err := s.c.AddFunc(spec, func() {
		select {
		case busy <- struct{}{}:
		default:
			appLog.Warn("skipping cron run, previous one still running", "job", name)
			return
		}
		defer func() { <-busy }()

		start := time.Now()
		job(s.ctx)
		appLog.Debug("cron job done", "job", name, "took", time.Since(start).String())
	})
	if err != nil {
		return fmt.Errorf("cron %s %q: %w", name, spec, err)
	}
	appLog.Info("cron job registered", "job", name, "spec", spec)
	return nil
}

func (s *Scheduler) Start() { s.c.Start() }

// Stop stops the scheduler and waits for running jobs or ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.c.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
