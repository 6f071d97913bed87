package models

import (
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
)

// AttendanceRecord is one participant's presence claim for one session.
// Rows are soft-removed only.
type AttendanceRecord struct {
	ID                uint      `json:"-" gorm:"primaryKey"`
	SessionID         string    `json:"sessionId" gorm:"not null;index"`
	StudentID         string    `json:"studentId" gorm:"not null"`
	DeviceFingerprint *string   `json:"deviceFingerprint,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
	Removed           bool      `json:"removed" gorm:"not null;default:false"`
	Finalized         bool      `json:"finalized" gorm:"not null;default:false"`
}

// Enrollment places a participant on a course roster.
type Enrollment struct {
	CourseID  string `json:"courseId" gorm:"primaryKey"`
	StudentID string `json:"studentId" gorm:"primaryKey"`
	Name      string `json:"name"`
}

// DeviceBinding pins a participant to the first device they verified from.
type DeviceBinding struct {
	StudentID         string    `json:"studentId" gorm:"primaryKey"`
	DeviceFingerprint string    `json:"deviceFingerprint" gorm:"not null"`
	BoundAt           time.Time `json:"boundAt"`
}

// Participant holds the passkeys a participant registered.
type Participant struct {
	StudentID   string                `gorm:"primaryKey"`
	Credentials []webauthn.Credential `gorm:"serializer:json"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (p Participant) WebAuthnID() []byte {
	return []byte(p.StudentID)
}

func (p Participant) WebAuthnName() string {
	return p.StudentID
}

func (p Participant) WebAuthnDisplayName() string {
	return p.StudentID
}

func (p Participant) WebAuthnCredentials() []webauthn.Credential {
	return p.Credentials
}
