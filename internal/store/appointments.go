package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	appLog "gabinet/internal/log"
	"gabinet/internal/model"
	"gabinet/internal/schedule"
)

const appointmentColumns = `id, patient_id, patient_name, treatment, date, start_time, end_time, status, notes, series_id, source, created_at`

// validateAppointment rejects appointments the layout engine would drop.
func validateAppointment(a *model.Appointment) error {
	if _, err := time.Parse(schedule.DateLayout, a.Date); err != nil {
		return fmt.Errorf("%w: date %q", ErrInvalid, a.Date)
	}
	start, err := schedule.ParseClock(a.Start)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	end, err := schedule.ParseClock(a.End)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if start >= end {
		return fmt.Errorf("%w: start %s is not before end %s", ErrInvalid, a.Start, a.End)
	}
	if a.Status == "" {
		a.Status = model.AppointmentScheduled
	}
	if model.ParseAppointmentStatus(string(a.Status)) == model.AppointmentUnknown {
		return fmt.Errorf("%w: status %q", ErrInvalid, a.Status)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertAppointment(ctx context.Context, db execer, a *model.Appointment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := db.ExecContext(ctx, `INSERT INTO appointments (`+appointmentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.PatientID, a.PatientName, a.Treatment,
		a.Date, a.Start, a.End, string(a.Status), a.Notes,
		a.SeriesID, a.Source, a.CreatedAt.Format(time.RFC3339Nano),
	)
	return err
}

// CreateAppointment validates and stores a, filling in ID, CreatedAt and a
// default status.
func (s *Store) CreateAppointment(ctx context.Context, a *model.Appointment) error {
	if err := validateAppointment(a); err != nil {
		return err
	}
	if err := insertAppointment(ctx, s.db, a); err != nil {
		return fmt.Errorf("create appointment: %w", err)
	}
	return nil
}

// CreateSeries stores all appointments under one new series ID, all or
// nothing.
func (s *Store) CreateSeries(ctx context.Context, appts []model.Appointment) ([]model.Appointment, error) {
	if len(appts) == 0 {
		return nil, fmt.Errorf("%w: empty series", ErrInvalid)
	}
	seriesID := uuid.NewString()
	out := make([]model.Appointment, len(appts))
	for i := range appts {
		a := appts[i]
		a.SeriesID = seriesID
		if err := validateAppointment(&a); err != nil {
			return nil, err
		}
		out[i] = a
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for i := range out {
			if err := insertAppointment(ctx, tx, &out[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create series: %w", err)
	}
	return out, nil
}

// GetAppointment returns ErrNotFound for unknown IDs.
func (s *Store) GetAppointment(ctx context.Context, id string) (model.Appointment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = ?`, id)
	a, err := scanAppointment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Appointment{}, ErrNotFound
	}
	return a, err
}

// ListAppointments returns appointments dated within [from, to] (inclusive,
// "YYYY-MM-DD"), ordered by date, start and end.
func (s *Store) ListAppointments(ctx context.Context, from, to string) ([]model.Appointment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+appointmentColumns+` FROM appointments
		WHERE date >= ? AND date <= ?
		ORDER BY date, start_time, end_time, created_at`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpdateAppointmentStatus sets a known status on an existing appointment.
func (s *Store) UpdateAppointmentStatus(ctx context.Context, id string, status model.AppointmentStatus) error {
	if model.ParseAppointmentStatus(string(status)) == model.AppointmentUnknown {
		return fmt.Errorf("%w: status %q", ErrInvalid, status)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE appointments SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceExternal swaps every appointment of source dated within [from, to]
// for appts. Invalid appointments are skipped and logged.
func (s *Store) ReplaceExternal(ctx context.Context, source, from, to string, appts []model.Appointment) (int, error) {
	if source == "" {
		return 0, fmt.Errorf("%w: empty source", ErrInvalid)
	}
	inserted := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM appointments WHERE source = ? AND date >= ? AND date <= ?`,
			source, from, to); err != nil {
			return err
		}
		for i := range appts {
			a := appts[i]
			a.ID = ""
			a.Source = source
			if err := validateAppointment(&a); err != nil {
				appLog.Warn("store: skipping external appointment", "source", source, "reason", err.Error())
				continue
			}
			if err := insertAppointment(ctx, tx, &a); err != nil {
				return err
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("replace external %s: %w", source, err)
	}
	return inserted, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAppointment(r scanner) (model.Appointment, error) {
	var (
		a       model.Appointment
		status  string
		created string
	)
	err := r.Scan(&a.ID, &a.PatientID, &a.PatientName, &a.Treatment,
		&a.Date, &a.Start, &a.End, &status, &a.Notes,
		&a.SeriesID, &a.Source, &created)
	if err != nil {
		return model.Appointment{}, err
	}
	a.Status = model.ParseAppointmentStatus(status)
	if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
		a.CreatedAt = t
	}
	return a, nil
}
