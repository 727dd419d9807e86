package calsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"gabinet/internal/ics"
	"gabinet/internal/model"
)

const weekly = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:daily@test\r\n" +
	"SUMMARY:Rehab\r\n" +
	"DTSTART:20260225T080000Z\r\n" +
	"DTEND:20260225T083000Z\r\n" +
	"RRULE:FREQ=WEEKLY;COUNT=10\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

type fakeFetcher map[string]string

func (f fakeFetcher) Fetch(_ context.Context, feed ics.Feed) (ics.Payload, error) {
	body, ok := f[feed.ID]
	if !ok {
		return ics.Payload{}, errors.New("connection refused")
	}
	return ics.Payload{Feed: feed, Body: []byte(body)}, nil
}

type call struct {
	source, from, to string
	appts            []model.Appointment
}

type fakeSink struct{ calls []call }

func (s *fakeSink) ReplaceExternal(_ context.Context, source, from, to string, appts []model.Appointment) (int, error) {
	s.calls = append(s.calls, call{source, from, to, appts})
	return len(appts), nil
}

func TestRunOnceSkipsFailingFeeds(t *testing.T) {
	sink := &fakeSink{}
	s := &Syncer{
		Fetcher:    fakeFetcher{"rehab": weekly, "empty": ""},
		Sink:       sink,
		Feeds:      []ics.Feed{{ID: "down"}, {ID: "rehab"}, {ID: "empty"}},
		Location:   time.UTC,
		PastDays:   1,
		FutureDays: 7,
		Now:        func() time.Time { return time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC) },
	}

	rep := s.RunOnce(context.Background())
	if rep.Feeds != 3 || rep.Imported["rehab"] != 1 {
		t.Errorf("report = %+v", rep)
	}
	for _, id := range []string{"down", "empty"} {
		if _, ok := rep.Failed[id]; !ok {
			t.Errorf("feed %s not reported as failed: %+v", id, rep.Failed)
		}
	}

	var rehab *call
	for i := range sink.calls {
		if sink.calls[i].source == "rehab" {
			rehab = &sink.calls[i]
		}
	}
	if rehab == nil {
		t.Fatal("rehab feed was not stored")
	}
	if rehab.from != "2026-03-01" || rehab.to != "2026-03-09" {
		t.Errorf("range = %s..%s", rehab.from, rehab.to)
	}
	// Weekly on Wednesdays; only 2026-03-04 falls inside 03-01..03-09.
	if len(rehab.appts) != 1 || rehab.appts[0].Date != "2026-03-04" || rehab.appts[0].Start != "08:00" {
		t.Errorf("appointments = %+v", rehab.appts)
	}
}

func TestRunOnceCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink := &fakeSink{}
	s := &Syncer{Fetcher: fakeFetcher{"rehab": weekly}, Sink: sink, Feeds: []ics.Feed{{ID: "rehab"}}}

	rep := s.RunOnce(ctx)
	if len(sink.calls) != 0 || rep.Failed["rehab"] == "" {
		t.Errorf("report = %+v, calls = %d", rep, len(sink.calls))
	}
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	s := NewScheduler(context.Background(), time.UTC)
	if err := s.Add("sync", "every tuesday", func(context.Context) {}); err == nil {
		t.Error("expected an error for a malformed spec")
	}
	if err := s.Add("sync", "*/5 * * * *", func(context.Context) {}); err != nil {
		t.Errorf("valid spec: %v", err)
	}
	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
