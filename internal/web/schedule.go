package web

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"gabinet/internal/model"
	"gabinet/internal/schedule"
)

// dayParam parses ?<name>=YYYY-MM-DD in the clinic timezone; missing means
// today.
func (s *Server) dayParam(r *http.Request, name string) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		n := s.now().In(s.loc)
		return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, s.loc), nil
	}
	d, err := time.ParseInLocation(schedule.DateLayout, v, s.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be YYYY-MM-DD", name)
	}
	return d, nil
}

func timed(appts []model.Appointment) []schedule.TimedEvent {
	out := make([]schedule.TimedEvent, len(appts))
	for i, a := range appts {
		out[i] = a.Timed()
	}
	return out
}

func (s *Server) dayLayout(r *http.Request) (schedule.DayLayout, []model.Appointment, error) {
	day, err := s.dayParam(r, "date")
	if err != nil {
		return schedule.DayLayout{}, nil, errBadRequest{err}
	}
	date := day.Format(schedule.DateLayout)
	appts, err := s.store.ListAppointments(r.Context(), date, date)
	if err != nil {
		return schedule.DayLayout{}, nil, err
	}
	return schedule.DayView(date, timed(appts), s.scale, s.now().In(s.loc)), appts, nil
}

func (s *Server) weekLayout(r *http.Request) ([]schedule.DayLayout, []model.Appointment, error) {
	day, err := s.dayParam(r, "start")
	if err != nil {
		return nil, nil, errBadRequest{err}
	}
	start := schedule.StartOfWeek(day, s.cfg.WeekStartDay())
	from := start.Format(schedule.DateLayout)
	to := start.AddDate(0, 0, 6).Format(schedule.DateLayout)
	appts, err := s.store.ListAppointments(r.Context(), from, to)
	if err != nil {
		return nil, nil, err
	}
	return schedule.WeekView(start, timed(appts), s.scale, s.now().In(s.loc)), appts, nil
}

type errBadRequest struct{ error }

func (s *Server) writeLayoutError(w http.ResponseWriter, err error) {
	if br, ok := err.(errBadRequest); ok {
		writeError(w, http.StatusBadRequest, br.Error())
		return
	}
	writeStoreError(w, err)
}

// GET /api/schedule/day?date=YYYY-MM-DD
func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	layout, _, err := s.dayLayout(r)
	if err != nil {
		s.writeLayoutError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, layout)
}

// GET /api/schedule/week?start=YYYY-MM-DD; any day of the week works.
func (s *Server) handleWeek(w http.ResponseWriter, r *http.Request) {
	days, _, err := s.weekLayout(r)
	if err != nil {
		s.writeLayoutError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, days)
}

type slotResponse struct {
	Date  string `json:"date"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// GET /api/schedule/slot?date=&offset=<px>
// Resolves a click on the empty track into the slot to prefill a booking.
func (s *Server) handleSlot(w http.ResponseWriter, r *http.Request) {
	day, err := s.dayParam(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := strconv.ParseFloat(r.URL.Query().Get("offset"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "offset must be a number of pixels")
		return
	}

	start := s.scale.SlotAt(offset)
	end := min(start+schedule.Clock(s.scale.SlotMinutes), s.scale.WindowEnd)
	writeJSON(w, http.StatusOK, slotResponse{
		Date:  day.Format(schedule.DateLayout),
		Start: start.String(),
		End:   end.String(),
	})
}

// GET /api/slots?date=&duration=<minutes>
func (s *Server) handleFreeSlots(w http.ResponseWriter, r *http.Request) {
	day, err := s.dayParam(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	duration := s.scale.SlotMinutes
	if v := r.URL.Query().Get("duration"); v != "" {
		duration, err = strconv.Atoi(v)
		if err != nil || duration <= 0 {
			writeError(w, http.StatusBadRequest, "duration must be a positive number of minutes")
			return
		}
	}

	date := day.Format(schedule.DateLayout)
	appts, err := s.store.ListAppointments(r.Context(), date, date)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	busy := make([]model.Appointment, 0, len(appts))
	for _, a := range appts {
		if a.Status != model.AppointmentCancelled {
			busy = append(busy, a)
		}
	}

	slots := schedule.FreeSlots(timed(busy), s.scale, duration)
	if slots == nil {
		slots = []schedule.Slot{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "duration": duration, "slots": slots})
}
