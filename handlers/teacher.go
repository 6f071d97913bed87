package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/anuragrao04/qr-attendance/models"
	"github.com/anuragrao04/qr-attendance/sessions"
	"github.com/anuragrao04/qr-attendance/tokens"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func tokenMessage(cred models.Credential) models.TokenMessage {
	return models.TokenMessage{
		Type:      "token",
		Code:      cred.Code,
		ExpiresIn: cred.ExpiresAt.Sub(cred.IssuedAt).Milliseconds(),
	}
}

func (h *Handler) StartSession(c *gin.Context) {
	var req models.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, sessions.ErrMissingCourse)
		return
	}
	session, err := h.engine.Start(c.Request.Context(), req.CourseID, presenterID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	cred, err := h.engine.IssueToken(session.SessionID)
	if err != nil {
		h.fail(c, err)
		return
	}
	msg := tokenMessage(cred)
	c.JSON(http.StatusOK, gin.H{
		"ok":        true,
		"sessionId": session.SessionID,
		"code":      msg.Code,
		"expiresIn": msg.ExpiresIn,
	})
}

func (h *Handler) GetSession(c *gin.Context) {
	session, err := h.engine.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *Handler) IssueToken(c *gin.Context) {
	cred, err := h.engine.IssueToken(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	msg := tokenMessage(cred)
	c.JSON(http.StatusOK, gin.H{"ok": true, "code": msg.Code, "expiresIn": msg.ExpiresIn})
}

func (h *Handler) EndSession(c *gin.Context) {
	records, err := h.engine.End(c.Request.Context(), c.Param("id"), presenterID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "records": records})
}

func (h *Handler) FinalizeSession(c *gin.Context) {
	var req models.FinalizeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.fail(c, sessions.ErrMissingFields)
			return
		}
	}
	kept, err := h.engine.Finalize(c.Request.Context(), c.Param("id"), presenterID(c), req.KeepIDs)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "keptCount": kept})
}

func (h *Handler) Records(c *gin.Context) {
	records, err := h.engine.Records(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "records": records})
}

func (h *Handler) Absentees(c *gin.Context) {
	absent, err := h.engine.Absentees(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "absentees": absent})
}

func (h *Handler) SetRoster(c *gin.Context) {
	var req models.RosterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, sessions.ErrMissingFields)
		return
	}
	for _, st := range req.Students {
		if st.StudentID == "" {
			h.fail(c, sessions.ErrMissingFields)
			return
		}
	}
	if err := h.roster.SetRoster(c.Request.Context(), c.Param("id"), req.Students); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "count": len(req.Students)})
}

func (h *Handler) GetRoster(c *gin.Context) {
	students, err := h.roster.GetStudentsInACourse(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "students": students})
}

// PresenterSocket streams a fresh code every rotate interval, plus the
// session's events, to the presenter's screen. Rotation stops once the
// session ends; the socket closes after the finalize event.
func (h *Handler) PresenterSocket(c *gin.Context) {
	sessionID := c.Param("id")
	session, err := h.engine.Get(c.Request.Context(), sessionID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if session.OwnerID != presenterID(c) {
		h.fail(c, sessions.ErrNotOwner)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade presenter socket", "session_id", sessionID, "error", err)
		return
	}
	defer conn.Close()

	sub := h.hub.Subscribe(sessionID, 0)
	defer sub.Close()

	// reads only to notice the client going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.opts.RotateInterval)
	defer ticker.Stop()
	rotate := ticker.C

	send := func() bool {
		cred, err := h.engine.IssueToken(sessionID)
		if errors.Is(err, tokens.ErrInvalidSession) {
			rotate = nil
			return true
		}
		if err != nil {
			h.logger.Error("failed to rotate token", "session_id", sessionID, "error", err)
			return false
		}
		return conn.WriteJSON(tokenMessage(cred)) == nil
	}
	if !send() {
		return
	}

	for {
		select {
		case <-gone:
			h.logger.Debug("presenter disconnected", "session_id", sessionID)
			return
		case <-rotate:
			if !send() {
				return
			}
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
			if ev.Type == models.EventSessionFinalized {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session finalized"))
				return
			}
		}
	}
}
