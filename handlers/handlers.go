// Package handlers exposes the attendance engine over HTTP and
// websockets.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/anuragrao04/qr-attendance/auth"
	"github.com/anuragrao04/qr-attendance/models"
	"github.com/anuragrao04/qr-attendance/notify"
	"github.com/anuragrao04/qr-attendance/sessions"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const PresenterHeader = "X-Presenter-ID"

type RosterStore interface {
	SetRoster(ctx context.Context, courseID string, students []models.Enrollment) error
	GetStudentsInACourse(ctx context.Context, courseID string) ([]models.Enrollment, error)
}

type Options struct {
	RotateInterval time.Duration
	AllowedOrigins []string
	RequirePasskey bool
}

type Handler struct {
	engine   *sessions.Engine
	roster   RosterStore
	hub      *notify.Hub
	passkeys *auth.Passkeys
	opts     Options
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// New builds the handler set. passkeys may be nil when passkey login is
// not offered.
func New(engine *sessions.Engine, roster RosterStore, hub *notify.Hub, passkeys *auth.Passkeys, opts Options, logger *slog.Logger) *Handler {
	if opts.RotateInterval <= 0 {
		opts.RotateInterval = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		engine:   engine,
		roster:   roster,
		hub:      hub,
		passkeys: passkeys,
		opts:     opts,
		logger:   logger,
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			// non-browser clients send no Origin
			return origin == "" || slices.Contains(h.opts.AllowedOrigins, origin)
		},
	}
	return h
}

func (h *Handler) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.POST("/sessions", h.StartSession)
	router.GET("/sessions/:id", h.GetSession)
	router.POST("/sessions/:id/token", h.IssueToken)
	router.GET("/sessions/:id/present", h.PresenterSocket)
	router.POST("/sessions/:id/end", h.EndSession)
	router.POST("/sessions/:id/finalize", h.FinalizeSession)
	router.GET("/sessions/:id/records", h.Records)
	router.GET("/sessions/:id/absentees", h.Absentees)
	router.PUT("/courses/:id/roster", h.SetRoster)
	router.GET("/courses/:id/roster", h.GetRoster)

	router.POST("/verify", h.Verify)
	router.GET("/scan", h.StudentScan)

	if h.passkeys != nil {
		router.POST("/auth/register/begin", h.passkeys.BeginRegistration)
		router.POST("/auth/register/finish", h.passkeys.FinishRegistration)
		router.POST("/auth/login/begin", h.passkeys.BeginLogin)
		router.POST("/auth/login/finish", h.passkeys.FinishLogin)
		router.GET("/auth/registered", h.passkeys.CheckIfRegistered)
	}
	return router
}

// presenterID reads the presenter identity from the header, or from the
// query string for websocket clients that cannot set headers.
func presenterID(c *gin.Context) string {
	if id := c.GetHeader(PresenterHeader); id != "" {
		return id
	}
	return c.Query("presenter")
}

func statusFor(reason string) int {
	switch reason {
	case "missing_fields", "missing_fingerprint", "missing_course", "token_not_found", "invalid_session":
		return http.StatusBadRequest
	case "not_authenticated":
		return http.StatusUnauthorized
	case "not_owner", "device_mismatch":
		return http.StatusForbidden
	case "session_not_found", "unknown_session":
		return http.StatusNotFound
	case "token_expired":
		return http.StatusGone
	case "session_inactive", "already_marked", "duplicate_device", "already_ended", "not_ended", "already_finalized":
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// fail writes the error body for err and logs it when it is not an
// ordinary rejection.
func (h *Handler) fail(c *gin.Context, err error) {
	reason := sessions.Reason(err)
	if !sessions.IsRejection(err) {
		h.logger.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(statusFor(reason), gin.H{"ok": false, "error": reason})
}
