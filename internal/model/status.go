package model

import "strings"

// StatusStyle is the presentation of a status tag: a CSS color and the
// translation key of its label.
type StatusStyle struct {
	Color    string `json:"color"`
	LabelKey string `json:"label_key"`
}

var unknownStyle = StatusStyle{Color: "#9ca3af", LabelKey: "status.unknown"}

type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "scheduled"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCancelled AppointmentStatus = "cancelled"
	AppointmentNoShow    AppointmentStatus = "no_show"
	AppointmentUnknown   AppointmentStatus = "unknown"
)

// ParseAppointmentStatus returns AppointmentUnknown for unrecognized tags.
func ParseAppointmentStatus(s string) AppointmentStatus {
	switch st := AppointmentStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case AppointmentScheduled, AppointmentConfirmed, AppointmentCompleted,
		AppointmentCancelled, AppointmentNoShow:
		return st
	default:
		return AppointmentUnknown
	}
}

func (s AppointmentStatus) Style() StatusStyle {
	switch s {
	case AppointmentScheduled:
		return StatusStyle{Color: "#3b82f6", LabelKey: "appointment.status.scheduled"}
	case AppointmentConfirmed:
		return StatusStyle{Color: "#10b981", LabelKey: "appointment.status.confirmed"}
	case AppointmentCompleted:
		return StatusStyle{Color: "#6b7280", LabelKey: "appointment.status.completed"}
	case AppointmentCancelled:
		return StatusStyle{Color: "#ef4444", LabelKey: "appointment.status.cancelled"}
	case AppointmentNoShow:
		return StatusStyle{Color: "#f59e0b", LabelKey: "appointment.status.no_show"}
	default:
		return unknownStyle
	}
}

type LeaveStatus string

const (
	LeavePending  LeaveStatus = "pending"
	LeaveApproved LeaveStatus = "approved"
	LeaveRejected LeaveStatus = "rejected"
	LeaveUnknown  LeaveStatus = "unknown"
)

func ParseLeaveStatus(s string) LeaveStatus {
	switch st := LeaveStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case LeavePending, LeaveApproved, LeaveRejected:
		return st
	default:
		return LeaveUnknown
	}
}

func (s LeaveStatus) Style() StatusStyle {
	switch s {
	case LeavePending:
		return StatusStyle{Color: "#f59e0b", LabelKey: "leave.status.pending"}
	case LeaveApproved:
		return StatusStyle{Color: "#10b981", LabelKey: "leave.status.approved"}
	case LeaveRejected:
		return StatusStyle{Color: "#ef4444", LabelKey: "leave.status.rejected"}
	default:
		return unknownStyle
	}
}

type DocumentStatus string

const (
	DocumentDraft    DocumentStatus = "draft"
	DocumentSigned   DocumentStatus = "signed"
	DocumentArchived DocumentStatus = "archived"
	DocumentUnknown  DocumentStatus = "unknown"
)

func ParseDocumentStatus(s string) DocumentStatus {
	switch st := DocumentStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case DocumentDraft, DocumentSigned, DocumentArchived:
		return st
	default:
		return DocumentUnknown
	}
}

func (s DocumentStatus) Style() StatusStyle {
	switch s {
	case DocumentDraft:
		return StatusStyle{Color: "#6b7280", LabelKey: "document.status.draft"}
	case DocumentSigned:
		return StatusStyle{Color: "#10b981", LabelKey: "document.status.signed"}
	case DocumentArchived:
		return StatusStyle{Color: "#9ca3af", LabelKey: "document.status.archived"}
	default:
		return unknownStyle
	}
}
