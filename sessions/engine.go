// Package sessions runs the attendance session lifecycle: the live
// registry, scan verification against the anti-fraud dedup rules, and the
// presenter's two-phase finalize.
package sessions

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/anuragrao04/qr-attendance/clock"
	"github.com/anuragrao04/qr-attendance/database"
	"github.com/anuragrao04/qr-attendance/models"
	"github.com/anuragrao04/qr-attendance/tokens"
)

const DefaultTokenTTL = 3 * time.Second

// Store is the durable record store the engine writes through.
// *database.Store implements it.
type Store interface {
	UpsertSession(ctx context.Context, session models.Session) error
	UpdateSessionStatus(ctx context.Context, sessionID string, status models.SessionStatus, endedAt *time.Time) error
	GetSession(ctx context.Context, sessionID string) (models.Session, error)
	InsertAttendance(ctx context.Context, rec *models.AttendanceRecord) error
	ListAttendance(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error)
	UpdateAttendanceFlags(ctx context.Context, sessionID string, updates ...database.FlagUpdate) (database.FlagResult, error)
	InsertBoundAttendance(ctx context.Context, rec *models.AttendanceRecord) error
	Absentees(ctx context.Context, courseID, sessionID string) ([]models.Enrollment, error)
}

// Notifier receives fire-and-forget events.
type Notifier interface {
	Notify(ev models.Event)
}

type Config struct {
	TokenTTL time.Duration
	// RequireFingerprint rejects scans without a device fingerprint.
	// Otherwise such scans are recorded with no device dedup.
	RequireFingerprint bool
	// BindDevices pins each participant to their first fingerprint.
	BindDevices bool
}

type Engine struct {
	registry *Registry
	issuer   *tokens.Issuer
	store    Store
	notifier Notifier
	clock    clock.Clock
	logger   *slog.Logger
	cfg      Config
	newID    func() string
}

// NewEngine wires the engine. issuer must have been built on registry.
func NewEngine(registry *Registry, issuer *tokens.Issuer, store Store, notifier Notifier, clk clock.Clock, cfg Config, logger *slog.Logger) *Engine {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		registry: registry,
		issuer:   issuer,
		store:    store,
		notifier: notifier,
		clock:    clk,
		logger:   logger,
		cfg:      cfg,
		newID:    func() string { return "sess_" + uuid.NewString() },
	}
}

func (e *Engine) notify(eventType, sessionID string, payload any) {
	if e.notifier == nil {
		return
	}
	e.notifier.Notify(models.Event{Type: eventType, SessionID: sessionID, Payload: payload})
}
