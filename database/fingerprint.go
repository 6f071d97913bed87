package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/anuragrao04/qr-attendance/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrFingerprintMismatch means the participant is bound to another device.
var ErrFingerprintMismatch = errors.New("device fingerprint does not match the bound device")

// InsertBoundAttendance is InsertAttendance for participants pinned to one
// device. The first fingerprint a participant records with becomes their
// binding; a later different one fails with ErrFingerprintMismatch. The
// binding and the insert commit together, so a rejected scan binds nothing.
func (s *Store) InsertBoundAttendance(ctx context.Context, rec *models.AttendanceRecord) error {
	if rec.DeviceFingerprint == nil {
		return s.InsertAttendance(ctx, rec)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		candidate := models.DeviceBinding{
			StudentID:         rec.StudentID,
			DeviceFingerprint: *rec.DeviceFingerprint,
			BoundAt:           rec.Timestamp,
		}
		// first writer wins; later callers read its binding
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&candidate).Error; err != nil {
			return fmt.Errorf("bind device for %s: %w", rec.StudentID, err)
		}
		var bound models.DeviceBinding
		if err := tx.First(&bound, "student_id = ?", rec.StudentID).Error; err != nil {
			return fmt.Errorf("bind device for %s: %w", rec.StudentID, err)
		}
		if bound.DeviceFingerprint != *rec.DeviceFingerprint {
			return ErrFingerprintMismatch
		}
		return insertAttendance(tx, rec)
	})
}

