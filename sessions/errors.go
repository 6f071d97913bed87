package sessions

import (
	"errors"

	"github.com/anuragrao04/qr-attendance/tokens"
)

var (
	ErrMissingCourse      = errors.New("course id is required")
	ErrMissingFields      = errors.New("student id and code are required")
	ErrMissingFingerprint = errors.New("device fingerprint is required")
	ErrSessionNotFound    = errors.New("session not found")
	ErrUnknownSession     = errors.New("session is not live")
	ErrNotOwner           = errors.New("requester does not own the session")
	ErrAlreadyEnded       = errors.New("session already ended")
	ErrNotEnded           = errors.New("session must be ended before it is finalized")
	ErrAlreadyFinalized   = errors.New("session already finalized")
	ErrSessionInactive    = errors.New("session is not accepting attendance")
	ErrAlreadyMarked      = errors.New("attendance already marked")
	ErrDuplicateDevice    = errors.New("device already used for this session")
	ErrDeviceMismatch     = errors.New("device is bound to another fingerprint")
)

// Reason maps an engine error to the code reported to clients. Anything
// unrecognised is an internal error.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingFields):
		return "missing_fields"
	case errors.Is(err, ErrMissingFingerprint):
		return "missing_fingerprint"
	case errors.Is(err, ErrMissingCourse):
		return "missing_course"
	case errors.Is(err, tokens.ErrTokenNotFound):
		return "token_not_found"
	case errors.Is(err, tokens.ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, tokens.ErrInvalidSession):
		return "invalid_session"
	case errors.Is(err, ErrSessionInactive):
		return "session_inactive"
	case errors.Is(err, ErrAlreadyMarked):
		return "already_marked"
	case errors.Is(err, ErrDuplicateDevice):
		return "duplicate_device"
	case errors.Is(err, ErrDeviceMismatch):
		return "device_mismatch"
	case errors.Is(err, ErrNotOwner):
		return "not_owner"
	case errors.Is(err, ErrAlreadyEnded):
		return "already_ended"
	case errors.Is(err, ErrNotEnded):
		return "not_ended"
	case errors.Is(err, ErrAlreadyFinalized):
		return "already_finalized"
	case errors.Is(err, ErrUnknownSession):
		return "unknown_session"
	case errors.Is(err, ErrSessionNotFound):
		return "session_not_found"
	}
	return "internal_error"
}

// IsRejection reports whether err is an expected outcome of normal use
// rather than a failure worth logging.
func IsRejection(err error) bool {
	r := Reason(err)
	return r != "" && r != "internal_error"
}
