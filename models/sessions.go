package models

import "time"

type SessionStatus string

const (
	StatusActive    SessionStatus = "ACTIVE"
	StatusEnded     SessionStatus = "ENDED"
	StatusFinalized SessionStatus = "FINALIZED"
)

// Next reports the only status a session may move to from s.
func (s SessionStatus) Next() (SessionStatus, bool) {
	switch s {
	case StatusActive:
		return StatusEnded, true
	case StatusEnded:
		return StatusFinalized, true
	}
	return "", false
}

// Session is one live attendance window. It doubles as the durable
// sessions row.
type Session struct {
	SessionID string        `json:"sessionId" gorm:"primaryKey"`
	CourseID  string        `json:"courseId" gorm:"index;not null"`
	OwnerID   string        `json:"ownerId" gorm:"not null"`
	Status    SessionStatus `json:"status" gorm:"not null"`
	StartedAt time.Time     `json:"startedAt"`
	EndedAt   *time.Time    `json:"endedAt,omitempty"`
}

// Credential is a short-lived code bound to one session.
type Credential struct {
	Code      string    `json:"code"`
	SessionID string    `json:"sessionId"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}
