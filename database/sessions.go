package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anuragrao04/qr-attendance/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpsertSession writes the durable copy of a session.
func (s *Store) UpsertSession(ctx context.Context, session models.Session) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&session).Error
	if err != nil {
		return fmt.Errorf("upsert session %s: %w", session.SessionID, err)
	}
	return nil
}

// UpdateSessionStatus moves the durable row to status. endedAt is only
// written when non-nil.
func (s *Store) UpdateSessionStatus(ctx context.Context, sessionID string, status models.SessionStatus, endedAt *time.Time) error {
	updates := map[string]any{"status": status}
	if endedAt != nil {
		updates["ended_at"] = *endedAt
	}
	result := s.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("session_id = ?", sessionID).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("update session %s: %w", sessionID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (models.Session, error) {
	var session models.Session
	err := s.db.WithContext(ctx).First(&session, "session_id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return session, ErrNotFound
	}
	if err != nil {
		return session, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	return session, nil
}
