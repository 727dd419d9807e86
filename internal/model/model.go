package model

import (
	"time"

	"gabinet/internal/schedule"
)

// Appointment is a single booked visit in the clinic schedule.
// Date is "YYYY-MM-DD" and Start/End are zero-padded "HH:MM" in the
// clinic's display timezone.
type Appointment struct {
	ID          string            `json:"id"`
	PatientID   string            `json:"patient_id,omitempty"`
	PatientName string            `json:"patient_name"`
	Treatment   string            `json:"treatment,omitempty"`
	Date        string            `json:"date"`
	Start       string            `json:"start"`
	End         string            `json:"end"`
	Status      AppointmentStatus `json:"status"`
	Notes       string            `json:"notes,omitempty"`

	// SeriesID groups appointments created together as a recurring series.
	SeriesID string `json:"series_id,omitempty"`

	// Source is empty for locally booked appointments and holds the feed ID
	// for appointments pulled from an external calendar.
	Source string `json:"source,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Timed returns the layout input for the appointment.
func (a Appointment) Timed() schedule.TimedEvent {
	return schedule.TimedEvent{ID: a.ID, Date: a.Date, Start: a.Start, End: a.End}
}

// Stage is one column of a kanban pipeline.
type Stage struct {
	ID         string `json:"id"`
	PipelineID string `json:"pipeline_id"`
	Name       string `json:"name"`
	Position   int    `json:"position"`
}

// Card is a lead/deal card sitting in exactly one stage.
type Card struct {
	ID              string  `json:"id"`
	PipelineID      string  `json:"pipeline_id"`
	PipelineStageID string  `json:"pipeline_stage_id"`
	StageOrder      float64 `json:"stage_order"`
	Title           string  `json:"title"`
}

// Record is one imported entity (contact, patient, lead, company) after
// field mapping and coercion. Values are string, []string, float64 or bool.
type Record map[string]any
