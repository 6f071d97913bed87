package database

import (
	"context"
	"fmt"

	"github.com/anuragrao04/qr-attendance/models"
	"gorm.io/gorm"
)

// SetRoster replaces the roster of courseID.
func (s *Store) SetRoster(ctx context.Context, courseID string, students []models.Enrollment) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("course_id = ?", courseID).Delete(&models.Enrollment{}).Error; err != nil {
			return err
		}
		if len(students) == 0 {
			return nil
		}
		rows := make([]models.Enrollment, len(students))
		for i, st := range students {
			rows[i] = models.Enrollment{CourseID: courseID, StudentID: st.StudentID, Name: st.Name}
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("set roster %s: %w", courseID, err)
	}
	return nil
}

func (s *Store) GetStudentsInACourse(ctx context.Context, courseID string) ([]models.Enrollment, error) {
	students := []models.Enrollment{}
	err := s.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("student_id").
		Find(&students).Error
	if err != nil {
		return nil, fmt.Errorf("roster %s: %w", courseID, err)
	}
	return students, nil
}

// Absentees lists enrolled participants of courseID with no kept record
// in sessionID.
func (s *Store) Absentees(ctx context.Context, courseID, sessionID string) ([]models.Enrollment, error) {
	present := s.db.Model(&models.AttendanceRecord{}).
		Select("student_id").
		Where("session_id = ? AND removed = ?", sessionID, false)

	students := []models.Enrollment{}
	err := s.db.WithContext(ctx).
		Where("course_id = ? AND student_id NOT IN (?)", courseID, present).
		Order("student_id").
		Find(&students).Error
	if err != nil {
		return nil, fmt.Errorf("absentees %s: %w", sessionID, err)
	}
	return students, nil
}
