package database

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/anuragrao04/qr-attendance/models"
	"github.com/go-webauthn/webauthn/webauthn"
	"gorm.io/gorm"
)

var ErrCredentialNotFound = errors.New("credential not found")

func (s *Store) CreateParticipant(ctx context.Context, studentID string) (models.Participant, error) {
	p := models.Participant{StudentID: studentID}
	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		return p, fmt.Errorf("create participant %s: %w", studentID, err)
	}
	return p, nil
}

func (s *Store) GetParticipant(ctx context.Context, studentID string) (models.Participant, error) {
	var p models.Participant
	err := s.db.WithContext(ctx).Where("student_id = ?", studentID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return p, ErrNotFound
	}
	if err != nil {
		return p, fmt.Errorf("get participant %s: %w", studentID, err)
	}
	return p, nil
}

func (s *Store) AddCredential(ctx context.Context, studentID string, credential *webauthn.Credential) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Participant
		if err := tx.Where("student_id = ?", studentID).First(&p).Error; err != nil {
			return fmt.Errorf("add credential for %s: %w", studentID, err)
		}
		p.Credentials = append(p.Credentials, *credential)
		return tx.Save(&p).Error
	})
}

// UpdateCredential replaces the stored credential with the same ID, e.g.
// to persist a bumped sign counter after login.
func (s *Store) UpdateCredential(ctx context.Context, studentID string, credential *webauthn.Credential) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Participant
		if err := tx.Where("student_id = ?", studentID).First(&p).Error; err != nil {
			return fmt.Errorf("update credential for %s: %w", studentID, err)
		}
		updated := false
		for i, existing := range p.Credentials {
			if bytes.Equal(existing.ID, credential.ID) {
				p.Credentials[i] = *credential
				updated = true
				break
			}
		}
		if !updated {
			return ErrCredentialNotFound
		}
		return tx.Save(&p).Error
	})
}
