package models

import "time"

const (
	EventAttendanceUpdate = "attendance_update"
	EventSessionEnded     = "session_ended"
	EventSessionFinalized = "session_finalized"
)

// Event is what the notification hub fans out to presenter clients.
type Event struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Payload   any    `json:"payload,omitempty"`
}

type AttendanceUpdate struct {
	StudentID string    `json:"studentId"`
	Time      time.Time `json:"time"`
}

type SessionEnded struct {
	EndedAt time.Time `json:"endedAt"`
	Count   int       `json:"count"`
}

type SessionFinalized struct {
	Kept []string `json:"kept"`
}
