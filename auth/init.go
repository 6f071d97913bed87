// Package auth lets participants enrol a passkey and log in with it, so a
// scan can be tied to an identity the server has verified.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/anuragrao04/qr-attendance/clock"
	"github.com/anuragrao04/qr-attendance/config"
	"github.com/anuragrao04/qr-attendance/models"
	"github.com/go-webauthn/webauthn/webauthn"
)

const (
	StudentHeader = "X-Student-ID"
	SessionCookie = "participant_session"

	// IdentityTTL bounds a login both in the browser and on the server.
	IdentityTTL = 12 * time.Hour
)

type ParticipantStore interface {
	CreateParticipant(ctx context.Context, studentID string) (models.Participant, error)
	GetParticipant(ctx context.Context, studentID string) (models.Participant, error)
	AddCredential(ctx context.Context, studentID string, credential *webauthn.Credential) error
	UpdateCredential(ctx context.Context, studentID string, credential *webauthn.Credential) error
}

type Passkeys struct {
	webAuthn *webauthn.WebAuthn
	store    ParticipantStore
	logger   *slog.Logger
	clock    clock.Clock

	registerSessions sync.Map // student id -> *webauthn.SessionData
	loginSessions    sync.Map // student id -> *webauthn.SessionData
	identities       sync.Map // cookie token -> identity
}

type identity struct {
	studentID string
	expiresAt time.Time
}

func New(cfg config.WebAuthn, store ParticipantStore, logger *slog.Logger) (*Passkeys, error) {
	wa, err := webauthn.New(&webauthn.Config{
		RPDisplayName: cfg.RPDisplayName,
		RPID:          cfg.RPID,
		RPOrigins:     cfg.RPOrigins,
	})
	if err != nil {
		return nil, fmt.Errorf("webauthn: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Passkeys{webAuthn: wa, store: store, logger: logger, clock: clock.Real()}, nil
}
