package web

import (
	"net/http"
	"time"

	"gabinet/internal/ics"
	"gabinet/internal/schedule"
)

const (
	feedCacheTTL    = 30 * time.Second
	feedPastDays    = 30
	feedFutureDays  = 180
	feedCalendarTag = "Gabinet"
)

type feedCache struct {
	body      string
	updatedAt time.Time
}

func (s *Server) invalidateFeed() {
	s.feedMu.Lock()
	s.feedCache = nil
	s.feedMu.Unlock()
}

// GET /calendar.ics publishes the booked schedule around today.
func (s *Server) handleCalendarFeed(w http.ResponseWriter, r *http.Request) {
	s.feedMu.RLock()
	fc := s.feedCache
	s.feedMu.RUnlock()

	if fc == nil || time.Since(fc.updatedAt) >= feedCacheTTL {
		today := s.now().In(s.loc)
		from := today.AddDate(0, 0, -feedPastDays).Format(schedule.DateLayout)
		to := today.AddDate(0, 0, feedFutureDays).Format(schedule.DateLayout)

		appts, err := s.store.ListAppointments(r.Context(), from, to)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		fc = &feedCache{body: ics.Export(appts, s.loc, feedCalendarTag), updatedAt: time.Now()}

		s.feedMu.Lock()
		s.feedCache = fc
		s.feedMu.Unlock()
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="calendar.ics"`)
	_, _ = w.Write([]byte(fc.body))
}
