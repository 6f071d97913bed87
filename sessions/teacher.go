package sessions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anuragrao04/qr-attendance/database"
	"github.com/anuragrao04/qr-attendance/models"
)

// Start opens a new ACTIVE session for courseID owned by ownerID.
func (e *Engine) Start(ctx context.Context, courseID, ownerID string) (models.Session, error) {
	courseID = strings.TrimSpace(courseID)
	ownerID = strings.TrimSpace(ownerID)
	if courseID == "" {
		return models.Session{}, ErrMissingCourse
	}
	if ownerID == "" {
		return models.Session{}, ErrMissingFields
	}

	session := models.Session{
		SessionID: e.newID(),
		CourseID:  courseID,
		OwnerID:   ownerID,
		Status:    models.StatusActive,
		StartedAt: e.clock.Now(),
	}
	if err := e.store.UpsertSession(ctx, session); err != nil {
		e.logger.Error("failed to persist session", "course_id", courseID, "error", err)
		return models.Session{}, fmt.Errorf("start session: %w", err)
	}
	e.registry.add(session)

	e.logger.Info("session started", "session_id", session.SessionID, "course_id", courseID, "owner_id", ownerID)
	return session, nil
}

// IssueToken hands out a fresh code for an ACTIVE session.
func (e *Engine) IssueToken(sessionID string) (models.Credential, error) {
	return e.issuer.Issue(sessionID, e.cfg.TokenTTL)
}

// Get returns the live session, falling back to the durable row once the
// session has left the registry.
func (e *Engine) Get(ctx context.Context, sessionID string) (models.Session, error) {
	s, err := e.registry.Get(sessionID)
	if err == nil {
		return s, nil
	}
	s, err = e.store.GetSession(ctx, sessionID)
	if errors.Is(err, database.ErrNotFound) {
		return models.Session{}, ErrSessionNotFound
	}
	if err != nil {
		return models.Session{}, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

// End stops an ACTIVE session and returns every record for review,
// soft-removed rows included.
func (e *Engine) End(ctx context.Context, sessionID, requesterID string) ([]models.AttendanceRecord, error) {
	ent, ok := e.registry.lookup(sessionID)
	if !ok {
		return nil, e.missingSession(ctx, sessionID, ErrAlreadyEnded, ErrSessionNotFound)
	}

	ent.mu.Lock()
	if ent.session.OwnerID != requesterID {
		ent.mu.Unlock()
		return nil, ErrNotOwner
	}
	if ent.session.Status != models.StatusActive {
		ent.mu.Unlock()
		return nil, ErrAlreadyEnded
	}
	// no scan can land while the entry is locked, so this is the final list
	records, err := e.store.ListAttendance(ctx, sessionID)
	if err != nil {
		ent.mu.Unlock()
		e.logger.Error("failed to list attendance", "session_id", sessionID, "error", err)
		return nil, fmt.Errorf("end session: %w", err)
	}
	next, _ := ent.session.Status.Next()
	now := e.clock.Now()
	if err := e.store.UpdateSessionStatus(ctx, sessionID, next, &now); err != nil {
		ent.mu.Unlock()
		e.logger.Error("failed to end session", "session_id", sessionID, "error", err)
		return nil, fmt.Errorf("end session: %w", err)
	}
	ent.session.Status = next
	ent.session.EndedAt = &now
	ent.mu.Unlock()

	e.logger.Info("session ended", "session_id", sessionID, "records", len(records))
	e.notify(models.EventSessionEnded, sessionID, models.SessionEnded{EndedAt: now, Count: len(records)})
	return records, nil
}

// Records lists every attendance row of a session, live or not.
func (e *Engine) Records(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error) {
	if _, err := e.Get(ctx, sessionID); err != nil {
		return nil, err
	}
	return e.store.ListAttendance(ctx, sessionID)
}

// Absentees lists enrolled participants of the session's course that have
// no kept record.
func (e *Engine) Absentees(ctx context.Context, sessionID string) ([]models.Enrollment, error) {
	s, err := e.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return e.store.Absentees(ctx, s.CourseID, sessionID)
}

// missingSession classifies a session absent from the registry: finalized
// ones get finalizedErr, unknown ones get unknownErr.
func (e *Engine) missingSession(ctx context.Context, sessionID string, finalizedErr, unknownErr error) error {
	s, err := e.store.GetSession(ctx, sessionID)
	if errors.Is(err, database.ErrNotFound) {
		return unknownErr
	}
	if err != nil {
		return fmt.Errorf("lookup session: %w", err)
	}
	if s.Status == models.StatusFinalized {
		return finalizedErr
	}
	return unknownErr
}
