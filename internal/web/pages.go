package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	appLog "gabinet/internal/log"
	"gabinet/internal/model"
	"gabinet/internal/schedule"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTmpl = template.Must(template.ParseFS(templateFS, "templates/schedule.html"))

type pageView struct {
	Title       string
	PrevURL     string
	NextURL     string
	SwitchURL   string
	SwitchLabel string
	Days        []dayView
}

type dayView struct {
	Heading  string
	Style    template.CSS
	Hours    []hourView
	Blocks   []blockView
	NowStyle template.CSS
}

type hourView struct {
	Label string
	Style template.CSS
}

type blockView struct {
	ID     string
	Title  string
	Time   string
	Status string
	Style  template.CSS
}

// px formats a pixel length for inline styles.
func px(v float64) string {
	return fmt.Sprintf("%.1fpx", v)
}

func (s *Server) dayViewOf(layout schedule.DayLayout, byID map[string]model.Appointment) dayView {
	dv := dayView{
		Heading: layout.Date,
		Style:   template.CSS("height: " + px(layout.Height)),
	}
	if d, err := time.Parse(schedule.DateLayout, layout.Date); err == nil {
		dv.Heading = d.Format("Mon 02.01")
	}

	for c := (s.scale.WindowStart + 59) / 60 * 60; c < s.scale.WindowEnd; c += 60 {
		dv.Hours = append(dv.Hours, hourView{
			Label: c.String(),
			Style: template.CSS("top: " + px(s.scale.Offset(c))),
		})
	}

	for _, g := range layout.Blocks {
		a := byID[g.EventID]
		title := a.PatientName
		if a.Treatment != "" {
			title += " · " + a.Treatment
		}
		style := fmt.Sprintf("top: %s; height: %s; left: %d%%; right: %dpx; z-index: %d; background: %s",
			px(g.Top), px(g.Height), g.Left, g.Right, g.ZIndex, a.Status.Style().Color)
		dv.Blocks = append(dv.Blocks, blockView{
			ID:     g.EventID,
			Title:  title,
			Time:   a.Start + "-" + a.End,
			Status: string(a.Status),
			Style:  template.CSS(style),
		})
	}

	if layout.NowTop != nil {
		dv.NowStyle = template.CSS("top: " + px(*layout.NowTop))
	}
	return dv
}

func indexByID(appts []model.Appointment) map[string]model.Appointment {
	m := make(map[string]model.Appointment, len(appts))
	for _, a := range appts {
		m[a.ID] = a
	}
	return m
}

// GET /schedule/day?date=
func (s *Server) handleDayPage(w http.ResponseWriter, r *http.Request) {
	layout, appts, err := s.dayLayout(r)
	if err != nil {
		s.writeLayoutError(w, err)
		return
	}
	day, _ := time.Parse(schedule.DateLayout, layout.Date)
	s.renderPage(w, pageView{
		Title:       "Schedule " + layout.Date,
		PrevURL:     "/schedule/day?date=" + day.AddDate(0, 0, -1).Format(schedule.DateLayout),
		NextURL:     "/schedule/day?date=" + day.AddDate(0, 0, 1).Format(schedule.DateLayout),
		SwitchURL:   "/schedule/week?start=" + layout.Date,
		SwitchLabel: "Week",
		Days:        []dayView{s.dayViewOf(layout, indexByID(appts))},
	})
}

// GET /schedule/week?start=
func (s *Server) handleWeekPage(w http.ResponseWriter, r *http.Request) {
	days, appts, err := s.weekLayout(r)
	if err != nil {
		s.writeLayoutError(w, err)
		return
	}
	byID := indexByID(appts)
	first, _ := time.Parse(schedule.DateLayout, days[0].Date)

	pv := pageView{
		Title:       fmt.Sprintf("Week %s - %s", days[0].Date, days[len(days)-1].Date),
		PrevURL:     "/schedule/week?start=" + first.AddDate(0, 0, -7).Format(schedule.DateLayout),
		NextURL:     "/schedule/week?start=" + first.AddDate(0, 0, 7).Format(schedule.DateLayout),
		SwitchURL:   "/schedule/day?date=" + days[0].Date,
		SwitchLabel: "Day",
	}
	for _, d := range days {
		pv.Days = append(pv.Days, s.dayViewOf(d, byID))
	}
	s.renderPage(w, pv)
}

func (s *Server) renderPage(w http.ResponseWriter, pv pageView) {
	var buf bytes.Buffer
	if err := pageTmpl.Execute(&buf, pv); err != nil {
		appLog.Error("template render failed", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
