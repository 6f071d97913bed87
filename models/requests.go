package models

type StartSessionRequest struct {
	CourseID string `json:"courseId" binding:"required"`
}

// VerifyRequest may omit StudentID when the participant is logged in with
// a passkey.
type VerifyRequest struct {
	StudentID         string `json:"studentId"`
	Code              string `json:"code" binding:"required"`
	DeviceFingerprint string `json:"deviceFingerprint"`
}

type FinalizeRequest struct {
	KeepIDs []string `json:"keepIds"`
}

type RosterRequest struct {
	Students []Enrollment `json:"students" binding:"required,dive"`
}

// ScanInit is the first message on the student scan socket.
type ScanInit struct {
	StudentID         string `json:"studentId"`
	DeviceFingerprint string `json:"deviceFingerprint"`
}

// ScanMessage is sent once per scanned code.
type ScanMessage struct {
	Code string `json:"code"`
}

// TokenMessage is pushed to the presenter on every rotation.
type TokenMessage struct {
	Type      string `json:"type"`
	Code      string `json:"code"`
	ExpiresIn int64  `json:"expiresIn"` // milliseconds
}
