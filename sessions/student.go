package sessions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anuragrao04/qr-attendance/database"
	"github.com/anuragrao04/qr-attendance/models"
)

// Verify redeems code for studentID and records attendance. It returns the
// session the code belongs to. Rejections come back as the package's
// sentinel errors or the tokens package's.
func (e *Engine) Verify(ctx context.Context, studentID, code, deviceFingerprint string) (string, error) {
	studentID = strings.TrimSpace(studentID)
	code = strings.ToUpper(strings.TrimSpace(code))
	deviceFingerprint = strings.TrimSpace(deviceFingerprint)
	if studentID == "" || code == "" {
		return "", ErrMissingFields
	}
	if deviceFingerprint == "" && e.cfg.RequireFingerprint {
		return "", ErrMissingFingerprint
	}

	cred, err := e.issuer.Redeem(code)
	if err != nil {
		return "", err
	}
	sessionID := cred.SessionID

	ent, ok := e.registry.lookup(sessionID)
	if !ok {
		return "", ErrSessionInactive
	}

	ent.mu.Lock()
	rec, err := e.recordLocked(ctx, ent, studentID, deviceFingerprint)
	ent.mu.Unlock()
	if err != nil {
		if IsRejection(err) {
			e.logger.Debug("scan rejected", "session_id", sessionID, "student_id", studentID, "reason", Reason(err))
		} else {
			e.logger.Error("failed to record attendance", "session_id", sessionID, "student_id", studentID, "error", err)
		}
		return "", err
	}

	e.notify(models.EventAttendanceUpdate, sessionID, models.AttendanceUpdate{
		StudentID: rec.StudentID,
		Time:      rec.Timestamp,
	})
	return sessionID, nil
}

// recordLocked runs with the session entry locked, so the status check and
// the insert see the same state.
func (e *Engine) recordLocked(ctx context.Context, ent *entry, studentID, deviceFingerprint string) (*models.AttendanceRecord, error) {
	if ent.session.Status != models.StatusActive {
		return nil, ErrSessionInactive
	}
	rec := &models.AttendanceRecord{
		SessionID: ent.session.SessionID,
		StudentID: studentID,
		Timestamp: e.clock.Now(),
	}
	if deviceFingerprint != "" {
		rec.DeviceFingerprint = &deviceFingerprint
	}

	var err error
	if e.cfg.BindDevices {
		err = e.store.InsertBoundAttendance(ctx, rec)
	} else {
		err = e.store.InsertAttendance(ctx, rec)
	}
	var dup *database.UniqueViolationError
	switch {
	case err == nil:
		return rec, nil
	case errors.Is(err, database.ErrFingerprintMismatch):
		return nil, ErrDeviceMismatch
	case errors.As(err, &dup) && dup.Key == database.KeyStudent:
		return nil, ErrAlreadyMarked
	case errors.As(err, &dup):
		return nil, ErrDuplicateDevice
	}
	return nil, fmt.Errorf("verify: %w", err)
}
