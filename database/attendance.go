package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/anuragrao04/qr-attendance/models"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

// UniqueKey names which dedup index rejected an insert.
type UniqueKey string

const (
	KeyStudent UniqueKey = "student"
	KeyDevice  UniqueKey = "device"
)

type UniqueViolationError struct {
	Key UniqueKey
}

func (e *UniqueViolationError) Error() string {
	return fmt.Sprintf("attendance already recorded for this %s", e.Key)
}

// AttendanceFilter selects rows of one session. A nil Students matches
// every participant; a non-nil empty Students matches none.
type AttendanceFilter struct {
	Students []string
}

// FlagUpdate sets removed/finalized on the rows its filter selects.
type FlagUpdate struct {
	Filter    AttendanceFilter
	Removed   bool
	Finalized bool
}

// InsertAttendance inserts rec, letting the unique indexes decide whether
// it is a duplicate. On a collision nothing is written and the returned
// *UniqueViolationError names the key, student winning when both collide.
func (s *Store) InsertAttendance(ctx context.Context, rec *models.AttendanceRecord) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return insertAttendance(tx, rec)
	})
}

func insertAttendance(tx *gorm.DB, rec *models.AttendanceRecord) error {
	err := tx.Create(rec).Error
	if err == nil {
		return nil
	}
	if !isUniqueViolation(err) {
		return fmt.Errorf("insert attendance: %w", err)
	}

	var students int64
	err = tx.Model(&models.AttendanceRecord{}).
		Where("session_id = ? AND student_id = ? AND removed = ?", rec.SessionID, rec.StudentID, false).
		Count(&students).Error
	if err != nil {
		return fmt.Errorf("classify duplicate: %w", err)
	}
	if students > 0 {
		return &UniqueViolationError{Key: KeyStudent}
	}
	return &UniqueViolationError{Key: KeyDevice}
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// ListAttendance returns every row of the session, soft-removed included,
// oldest first.
func (s *Store) ListAttendance(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error) {
	records := []models.AttendanceRecord{}
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("timestamp, id").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list attendance %s: %w", sessionID, err)
	}
	return records, nil
}

// FlagResult reports what an UpdateAttendanceFlags call did. Kept is read
// in the same transaction and counts the session's finalized rows that are
// not removed.
type FlagResult struct {
	Changed int64
	Kept    int64
}

// UpdateAttendanceFlags applies updates in order inside one transaction.
// Finalized rows are never touched.
func (s *Store) UpdateAttendanceFlags(ctx context.Context, sessionID string, updates ...FlagUpdate) (FlagResult, error) {
	var res FlagResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range updates {
			if u.Filter.Students != nil && len(u.Filter.Students) == 0 {
				continue
			}
			q := tx.Model(&models.AttendanceRecord{}).
				Where("session_id = ? AND finalized = ?", sessionID, false)
			if u.Filter.Students != nil {
				q = q.Where("student_id IN ?", u.Filter.Students)
			}
			result := q.Updates(map[string]any{
				"removed":   u.Removed,
				"finalized": u.Finalized,
			})
			if result.Error != nil {
				return result.Error
			}
			res.Changed += result.RowsAffected
		}
		return tx.Model(&models.AttendanceRecord{}).
			Where("session_id = ? AND finalized = ? AND removed = ?", sessionID, true, false).
			Count(&res.Kept).Error
	})
	if err != nil {
		return FlagResult{}, fmt.Errorf("update attendance flags %s: %w", sessionID, err)
	}
	return res, nil
}
