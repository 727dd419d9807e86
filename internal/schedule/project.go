package schedule

import (
	"errors"
	"math"
)

// Scale maps clock time onto the pixel track of a day column.
type Scale struct {
	// WindowStart / WindowEnd bound the visible part of the day.
	WindowStart Clock
	WindowEnd   Clock

	PixelsPerMinute float64

	// MinHeightPx keeps short events clickable.
	MinHeightPx float64

	// Horizontal cascade: each column is offset by
	// min(MaxStepPercent, UsableWidthPercent/totalColumns) percent and every
	// block stretches to RightInsetPx from the right edge.
	UsableWidthPercent int
	MaxStepPercent     int
	RightInsetPx       int

	// BaseZ is the z-index of column 0; column i sits at BaseZ+i.
	BaseZ int

	// SlotMinutes is the grid step used for slot clicks and free slots.
	SlotMinutes int

	// ClampToWindow truncates events that cross the window edges instead of
	// dropping the ones starting before WindowStart.
	ClampToWindow bool
}

// DefaultScale is a 07:00-20:00 track with 48px per half hour.
func DefaultScale() Scale {
	return Scale{
		WindowStart:        7 * 60,
		WindowEnd:          20 * 60,
		PixelsPerMinute:    1.6,
		MinHeightPx:        20,
		UsableWidthPercent: 90,
		MaxStepPercent:     45,
		RightInsetPx:       4,
		BaseZ:              10,
		SlotMinutes:        15,
		ClampToWindow:      true,
	}
}

// Validate reports scales that cannot produce a layout.
func (s Scale) Validate() error {
	switch {
	case s.WindowStart < 0 || s.WindowEnd > MinutesPerDay:
		return errors.New("schedule: window must lie within 00:00-24:00")
	case s.WindowStart >= s.WindowEnd:
		return errors.New("schedule: window start must be before window end")
	case s.PixelsPerMinute <= 0:
		return errors.New("schedule: pixels per minute must be positive")
	case s.UsableWidthPercent <= 0 || s.UsableWidthPercent > 100:
		return errors.New("schedule: usable width must be in (0, 100]")
	case s.MaxStepPercent <= 0:
		return errors.New("schedule: max step must be positive")
	case s.SlotMinutes <= 0:
		return errors.New("schedule: slot minutes must be positive")
	}
	return nil
}

// Height is the pixel height of the whole visible track.
func (s Scale) Height() float64 {
	return float64(s.WindowEnd-s.WindowStart) * s.PixelsPerMinute
}

// Offset converts a clock time into a pixel offset from the top of the track.
func (s Scale) Offset(c Clock) float64 {
	return float64(c-s.WindowStart) * s.PixelsPerMinute
}

// SlotAt resolves a click at offsetPx from the top of the track to the start
// of the grid slot under it.
func (s Scale) SlotAt(offsetPx float64) Clock {
	step := Clock(max(s.SlotMinutes, 1))
	minutes := Clock(math.Floor(offsetPx / s.PixelsPerMinute))
	c := s.WindowStart + minutes/step*step
	if offsetPx < 0 {
		c = s.WindowStart
	}
	if last := s.WindowEnd - step; c > last {
		c = max(last, s.WindowStart)
	}
	return c
}

// Geometry is the rendered box of one event. Top and Height are pixels,
// Left is a percentage of the track width and Right a pixel inset.
type Geometry struct {
	EventID      string  `json:"event_id"`
	Top          float64 `json:"top"`
	Height       float64 `json:"height"`
	Left         int     `json:"left"`
	Right        int     `json:"right"`
	ZIndex       int     `json:"z_index"`
	Column       int     `json:"column"`
	TotalColumns int     `json:"total_columns"`
}

// Project computes the box of span in its assigned column. It reports false
// when the event is not visible in the window.
func Project(span Span, a Assignment, s Scale) (Geometry, bool) {
	start, end := span.Start, span.End
	if s.ClampToWindow {
		start = max(start, s.WindowStart)
		end = min(end, s.WindowEnd)
	}
	if start >= s.WindowEnd {
		return Geometry{}, false
	}

	top := s.Offset(start)
	height := float64(end-start) * s.PixelsPerMinute
	if top < 0 || height <= 0 {
		return Geometry{}, false
	}

	total := max(a.TotalColumns, 1)
	step := min(s.MaxStepPercent, s.UsableWidthPercent/total)

	return Geometry{
		EventID:      span.Event.ID,
		Top:          top,
		Height:       max(s.MinHeightPx, height),
		Left:         a.Column * step,
		Right:        s.RightInsetPx,
		ZIndex:       s.BaseZ + a.Column,
		Column:       a.Column,
		TotalColumns: total,
	}, true
}
