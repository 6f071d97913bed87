package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
)

func (p *Passkeys) BeginLogin(c *gin.Context) {
	studentID := c.GetHeader(StudentHeader)
	if studentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "missing_fields"})
		return
	}
	user, err := p.store.GetParticipant(c.Request.Context(), studentID)
	if err != nil || len(user.Credentials) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "not_registered"})
		return
	}
	options, session, err := p.webAuthn.BeginLogin(user)
	if err != nil {
		p.logger.Error("begin login failed", "student_id", studentID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "internal_error"})
		return
	}
	p.loginSessions.Store(studentID, session)
	c.JSON(http.StatusOK, options)
}

func (p *Passkeys) FinishLogin(c *gin.Context) {
	studentID := c.GetHeader(StudentHeader)
	value, ok := p.loginSessions.Load(studentID)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "login_not_started"})
		return
	}
	session := value.(*webauthn.SessionData)
	ctx := c.Request.Context()

	user, err := p.store.GetParticipant(ctx, studentID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "not_registered"})
		return
	}
	credential, err := p.webAuthn.FinishLogin(user, *session, c.Request)
	if err != nil {
		p.logger.Debug("passkey login rejected", "student_id", studentID, "error", err)
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "invalid_credential"})
		return
	}
	if err := p.store.UpdateCredential(ctx, studentID, credential); err != nil {
		p.logger.Error("failed to update credential", "student_id", studentID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "internal_error"})
		return
	}
	p.loginSessions.Delete(studentID)

	p.login(c, studentID)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// login hands the browser an opaque cookie naming studentID. Expired
// logins are dropped on the way.
func (p *Passkeys) login(c *gin.Context, studentID string) {
	now := p.clock.Now()
	p.identities.Range(func(key, value any) bool {
		if !now.Before(value.(identity).expiresAt) {
			p.identities.Delete(key)
		}
		return true
	})

	token := uuid.NewString()
	p.identities.Store(token, identity{studentID: studentID, expiresAt: now.Add(IdentityTTL)})
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(SessionCookie, token, int(IdentityTTL.Seconds()), "/", "", true, true)
}

// Identity returns the participant logged in on this request, if any.
func (p *Passkeys) Identity(c *gin.Context) (string, bool) {
	token, err := c.Cookie(SessionCookie)
	if err != nil {
		return "", false
	}
	value, ok := p.identities.Load(token)
	if !ok {
		return "", false
	}
	id := value.(identity)
	if !p.clock.Now().Before(id.expiresAt) {
		p.identities.Delete(token)
		return "", false
	}
	return id.studentID, true
}
