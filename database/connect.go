// Package database is the durable record store: sessions, attendance
// rows, rosters, device bindings and passkey participants, kept in SQLite
// through gorm.
package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/anuragrao04/qr-attendance/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrNotFound = errors.New("record not found")

// The dedup invariant lives in these two partial indexes, not in Go.
// NULL fingerprints never collide with each other.
var attendanceIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_attendance_session_student
		ON attendance_records (session_id, student_id) WHERE removed = 0`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_attendance_session_device
		ON attendance_records (session_id, device_fingerprint)
		WHERE removed = 0 AND device_fingerprint IS NOT NULL`,
}

type Store struct {
	db *gorm.DB
}

// Open connects to the SQLite file at path and migrates the schema.
func Open(path string) (*Store, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_busy_timeout=5000&_foreign_keys=on"
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one writer; SQLite would answer SQLITE_BUSY otherwise
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	err := s.db.AutoMigrate(
		&models.Session{},
		&models.AttendanceRecord{},
		&models.Enrollment{},
		&models.DeviceBinding{},
		&models.Participant{},
	)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	for _, stmt := range attendanceIndexes {
		if err := s.db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
