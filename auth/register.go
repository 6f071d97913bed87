package auth

import (
	"errors"
	"net/http"

	"github.com/anuragrao04/qr-attendance/database"
	"github.com/gin-gonic/gin"
	"github.com/go-webauthn/webauthn/webauthn"
)

func (p *Passkeys) BeginRegistration(c *gin.Context) {
	studentID := c.GetHeader(StudentHeader)
	if studentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "missing_fields"})
		return
	}
	ctx := c.Request.Context()

	user, err := p.store.GetParticipant(ctx, studentID)
	if errors.Is(err, database.ErrNotFound) {
		user, err = p.store.CreateParticipant(ctx, studentID)
	}
	if err != nil {
		p.logger.Error("failed to load participant", "student_id", studentID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "internal_error"})
		return
	}

	if len(user.Credentials) > 0 {
		// one authenticator per participant
		c.JSON(http.StatusConflict, gin.H{"ok": false, "error": "already_registered"})
		return
	}

	options, session, err := p.webAuthn.BeginRegistration(user)
	if err != nil {
		p.logger.Error("begin registration failed", "student_id", studentID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "internal_error"})
		return
	}
	p.registerSessions.Store(studentID, session)
	c.JSON(http.StatusOK, options)
}

func (p *Passkeys) FinishRegistration(c *gin.Context) {
	studentID := c.GetHeader(StudentHeader)
	value, ok := p.registerSessions.Load(studentID)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "registration_not_started"})
		return
	}
	session := value.(*webauthn.SessionData)
	ctx := c.Request.Context()

	user, err := p.store.GetParticipant(ctx, studentID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "registration_not_started"})
		return
	}
	credential, err := p.webAuthn.FinishRegistration(user, *session, c.Request)
	if err != nil {
		p.logger.Debug("passkey registration rejected", "student_id", studentID, "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid_credential"})
		return
	}
	if err := p.store.AddCredential(ctx, studentID, credential); err != nil {
		p.logger.Error("failed to store credential", "student_id", studentID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "internal_error"})
		return
	}
	p.registerSessions.Delete(studentID)

	p.login(c, studentID)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (p *Passkeys) CheckIfRegistered(c *gin.Context) {
	studentID := c.GetHeader(StudentHeader)
	if studentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "missing_fields"})
		return
	}
	user, err := p.store.GetParticipant(c.Request.Context(), studentID)
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusOK, gin.H{"registered": false})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "internal_error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"registered": len(user.Credentials) > 0})
}
