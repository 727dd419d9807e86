package web

import (
	"net/http"

	"github.com/gorilla/mux"

	"gabinet/internal/ics"
	appLog "gabinet/internal/log"
	"gabinet/internal/model"
	"gabinet/internal/schedule"
)

type repeatRequest struct {
	Cadence string `json:"cadence"`
	Count   int    `json:"count"`
}

type createAppointmentRequest struct {
	PatientID   string         `json:"patient_id"`
	PatientName string         `json:"patient_name"`
	Treatment   string         `json:"treatment"`
	Date        string         `json:"date"`
	Start       string         `json:"start"`
	End         string         `json:"end"`
	Status      string         `json:"status"`
	Notes       string         `json:"notes"`
	Repeat      *repeatRequest `json:"repeat,omitempty"`
}

// GET /api/appointments?from=&to=
// Both bounds default to today; to defaults to from.
func (s *Server) handleListAppointments(w http.ResponseWriter, r *http.Request) {
	from, err := s.dayParam(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to := from
	if r.URL.Query().Get("to") != "" {
		if to, err = s.dayParam(r, "to"); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, "to is before from")
		return
	}

	appts, err := s.store.ListAppointments(r.Context(),
		from.Format(schedule.DateLayout), to.Format(schedule.DateLayout))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appts)
}

// POST /api/appointments
// With "repeat" the body is the first occurrence of a series and the
// response lists every created appointment.
func (s *Server) handleCreateAppointment(w http.ResponseWriter, r *http.Request) {
	var req createAppointmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	a := model.Appointment{
		PatientID:   req.PatientID,
		PatientName: req.PatientName,
		Treatment:   req.Treatment,
		Date:        req.Date,
		Start:       req.Start,
		End:         req.End,
		Status:      model.AppointmentStatus(req.Status),
		Notes:       req.Notes,
	}

	if req.Repeat == nil {
		if err := s.store.CreateAppointment(r.Context(), &a); err != nil {
			writeStoreError(w, err)
			return
		}
		s.invalidateFeed()
		appLog.Info("appointment created", "id", a.ID, "date", a.Date, "start", a.Start)
		writeJSON(w, http.StatusCreated, a)
		return
	}

	cadence, err := ics.ParseCadence(req.Repeat.Cadence)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	series, err := ics.Series(a, cadence, req.Repeat.Count, s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	created, err := s.store.CreateSeries(r.Context(), series)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	s.invalidateFeed()
	appLog.Info("appointment series created", "series", created[0].SeriesID, "count", len(created), "cadence", cadence)
	writeJSON(w, http.StatusCreated, created)
}

// GET /api/appointments/{id}
func (s *Server) handleGetAppointment(w http.ResponseWriter, r *http.Request) {
	a, err := s.store.GetAppointment(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// PATCH /api/appointments/{id}/status {"status": "confirmed"}
func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	status := model.ParseAppointmentStatus(req.Status)
	if status == model.AppointmentUnknown {
		writeError(w, http.StatusBadRequest, "unknown status "+req.Status)
		return
	}

	id := mux.Vars(r)["id"]
	if err := s.store.UpdateAppointmentStatus(r.Context(), id, status); err != nil {
		writeStoreError(w, err)
		return
	}
	s.invalidateFeed()

	a, err := s.store.GetAppointment(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
