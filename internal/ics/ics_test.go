package ics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gabinet/internal/model"
)

const feedBody = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:weekly@test\r\n" +
	"SUMMARY:Physio\r\n" +
	"DTSTART:20260302T090000Z\r\n" +
	"DTEND:20260302T100000Z\r\n" +
	"RRULE:FREQ=WEEKLY;COUNT=4\r\n" +
	"EXDATE:20260309T090000Z\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:weekly@test\r\n" +
	"SUMMARY:Physio (moved)\r\n" +
	"RECURRENCE-ID:20260316T090000Z\r\n" +
	"DTSTART:20260316T130000Z\r\n" +
	"DTEND:20260316T140000Z\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:holiday@test\r\n" +
	"SUMMARY:Closed\r\n" +
	"DTSTART;VALUE=DATE:20260304\r\n" +
	"DTEND;VALUE=DATE:20260305\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"SUMMARY:No uid\r\n" +
	"DTSTART:20260305T090000Z\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestParseAndExpand(t *testing.T) {
	events, err := ParseICS("therapist", []byte(feedBody))
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 {
		t.Fatalf("parsed %d events, want 3", len(events))
	}

	occs, err := ExpandOccurrences(events, ExpandConfig{
		Location:   time.UTC,
		RangeStart: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}

	want := []struct {
		start   string
		summary string
	}{
		{"2026-03-02T09:00", "Physio"},
		{"2026-03-04T00:00", "Closed"},
		{"2026-03-16T13:00", "Physio (moved)"},
		{"2026-03-23T09:00", "Physio"},
	}
	if len(occs) != len(want) {
		t.Fatalf("got %d occurrences, want %d: %+v", len(occs), len(want), occs)
	}
	for i, w := range want {
		if got := occs[i].Start.Format("2006-01-02T15:04"); got != w.start || occs[i].Summary != w.summary {
			t.Errorf("occurrence %d = %s %q, want %s %q", i, got, occs[i].Summary, w.start, w.summary)
		}
		if occs[i].FeedID != "therapist" {
			t.Errorf("occurrence %d feed = %q", i, occs[i].FeedID)
		}
	}
}

func TestParseICSEmpty(t *testing.T) {
	if _, err := ParseICS("x", nil); !errors.Is(err, ErrEmptyFeed) {
		t.Errorf("err = %v, want ErrEmptyFeed", err)
	}
}

func TestExpandRejectsInvertedRange(t *testing.T) {
	now := time.Now()
	if _, err := ExpandOccurrences(nil, ExpandConfig{RangeStart: now, RangeEnd: now.Add(-time.Hour)}); err == nil {
		t.Error("expected an error for an inverted range")
	}
}

func TestToAppointmentsSplitsDays(t *testing.T) {
	day := func(d, h, m int) time.Time { return time.Date(2026, 3, d, h, m, 0, 0, time.UTC) }
	occs := []Occurrence{
		{FeedID: "f", Summary: "Night shift", Start: day(2, 22, 0), End: day(3, 2, 0)},
		{FeedID: "f", Summary: "Closed", Start: day(4, 0, 0), End: day(5, 0, 0), AllDay: true},
		{FeedID: "f", Summary: "Zero", Start: day(6, 9, 0), End: day(6, 9, 0)},
		{FeedID: "f", Summary: "Ends at midnight", Start: day(6, 23, 0), End: day(7, 0, 0)},
	}

	got := ToAppointments(occs, time.UTC)
	want := []struct{ date, start, end string }{
		{"2026-03-02", "22:00", "24:00"},
		{"2026-03-03", "00:00", "02:00"},
		{"2026-03-04", "00:00", "24:00"},
		{"2026-03-06", "23:00", "24:00"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d appointments, want %d: %+v", len(got), len(want), got)
	}
	for i, w := range want {
		a := got[i]
		if a.Date != w.date || a.Start != w.start || a.End != w.end {
			t.Errorf("appointment %d = %s %s-%s, want %s %s-%s", i, a.Date, a.Start, a.End, w.date, w.start, w.end)
		}
		if a.Source != "f" || a.Status != model.AppointmentConfirmed {
			t.Errorf("appointment %d source/status = %q/%q", i, a.Source, a.Status)
		}
	}
}

func TestSeries(t *testing.T) {
	first := model.Appointment{PatientName: "Anna", Date: "2026-01-31", Start: "09:00", End: "09:45"}

	tests := []struct {
		cadence Cadence
		count   int
		want    []string
	}{
		{CadenceDaily, 3, []string{"2026-01-31", "2026-02-01", "2026-02-02"}},
		{CadenceWeekly, 3, []string{"2026-01-31", "2026-02-07", "2026-02-14"}},
		{CadenceBiweekly, 2, []string{"2026-01-31", "2026-02-14"}},
		{CadenceMonthly, 3, []string{"2026-01-31", "2026-03-31", "2026-05-31"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.cadence), func(t *testing.T) {
			got, err := Series(first, tt.cadence, tt.count, time.UTC)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d, want %d", len(got), len(tt.want))
			}
			for i, d := range tt.want {
				if got[i].Date != d || got[i].Start != "09:00" || got[i].End != "09:45" {
					t.Errorf("occurrence %d = %s %s-%s, want %s", i, got[i].Date, got[i].Start, got[i].End, d)
				}
			}
		})
	}

	for _, bad := range []int{0, MaxSeriesCount + 1} {
		if _, err := Series(first, CadenceWeekly, bad, time.UTC); !errors.Is(err, ErrBadSeries) {
			t.Errorf("count %d err = %v", bad, err)
		}
	}
	if _, err := ParseCadence("yearly"); !errors.Is(err, ErrBadSeries) {
		t.Errorf("ParseCadence(yearly) err = %v", err)
	}
	if c, err := ParseCadence(" Weekly "); err != nil || c != CadenceWeekly {
		t.Errorf("ParseCadence(Weekly) = %q, %v", c, err)
	}
}

func TestExportRoundTrip(t *testing.T) {
	appts := []model.Appointment{
		{ID: "a1", PatientName: "Anna", Treatment: "Massage", Date: "2026-03-02", Start: "09:00", End: "10:00", Status: model.AppointmentConfirmed},
		{ID: "a2", PatientName: "Jan", Date: "2026-03-02", Start: "11:00", End: "11:30", Status: model.AppointmentCancelled},
		{ID: "bad", Date: "2026-03-02", Start: "12:00", End: "11:00"},
	}
	out := Export(appts, time.UTC, "Gabinet")
	for _, want := range []string{"SUMMARY:Anna: Massage", "STATUS:CANCELLED", "X-WR-CALNAME:Gabinet", "METHOD:PUBLISH"} {
		if !strings.Contains(out, want) {
			t.Errorf("export is missing %q", want)
		}
	}

	events, err := ParseICS("export", []byte(out))
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("round trip gave %d events, want 2", len(events))
	}
	if !events[0].Start.Equal(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v", events[0].Start)
	}
}

func TestFetcherCachesAndFallsBack(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		switch calls {
		case 1:
			w.Header().Set("ETag", `"v1"`)
			w.Write([]byte(feedBody))
		case 2:
			if r.Header.Get("If-None-Match") != `"v1"` {
				t.Errorf("If-None-Match = %q", r.Header.Get("If-None-Match"))
			}
			w.WriteHeader(http.StatusNotModified)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	f := NewFetcher(dir, time.Second)
	feed := Feed{ID: "therapist", URL: srv.URL + "/private.ics?token=secret"}
	ctx := context.Background()

	p, err := f.Fetch(ctx, feed)
	if err != nil || p.Stale || string(p.Body) != feedBody {
		t.Fatalf("first fetch = stale %v, %v", p.Stale, err)
	}
	p, err = f.Fetch(ctx, feed)
	if err != nil || !p.Stale || string(p.Body) != feedBody {
		t.Fatalf("304 fetch = stale %v, %v", p.Stale, err)
	}
	p, err = f.Fetch(ctx, feed)
	if err != nil || !p.Stale {
		t.Fatalf("500 fetch = stale %v, %v", p.Stale, err)
	}

	empty := NewFetcher(t.TempDir(), time.Second)
	if _, err := empty.Fetch(ctx, feed); err == nil {
		t.Error("expected an error without a cached body")
	}
}

func TestRedactURL(t *testing.T) {
	if got := redactURL("https://cal.example.com/private/abc.ics?token=x"); got != "https://cal.example.com/..." {
		t.Errorf("redactURL = %q", got)
	}
	if got := redactURL("not a url"); got != "(redacted)" {
		t.Errorf("redactURL = %q", got)
	}
}
