package handlers

import (
	"net/http"

	"github.com/anuragrao04/qr-attendance/models"
	"github.com/anuragrao04/qr-attendance/sessions"
	"github.com/gin-gonic/gin"
)

// participant resolves who is scanning. With passkeys required the
// logged-in identity wins and a conflicting claimed id is refused.
func (h *Handler) participant(c *gin.Context, claimed string) (string, string) {
	if !h.opts.RequirePasskey || h.passkeys == nil {
		return claimed, ""
	}
	id, ok := h.passkeys.Identity(c)
	if !ok {
		return "", "not_authenticated"
	}
	if claimed != "" && claimed != id {
		return "", "not_owner"
	}
	return id, ""
}

func (h *Handler) Verify(c *gin.Context) {
	var req models.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"accepted": false, "reason": "missing_fields"})
		return
	}
	studentID, reason := h.participant(c, req.StudentID)
	if reason != "" {
		c.JSON(statusFor(reason), gin.H{"accepted": false, "reason": reason})
		return
	}

	sessionID, err := h.engine.Verify(c.Request.Context(), studentID, req.Code, req.DeviceFingerprint)
	if err != nil {
		reason := sessions.Reason(err)
		c.JSON(statusFor(reason), gin.H{"accepted": false, "reason": reason})
		return
	}
	c.JSON(http.StatusOK, gin.H{"accepted": true, "sessionId": sessionID})
}

// StudentScan keeps a socket open while the participant's camera scans.
// The first message identifies the participant; each later one carries a
// scanned code. The socket closes on the first accepted scan.
func (h *Handler) StudentScan(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade scan socket", "error", err)
		return
	}
	defer conn.Close()

	var hello models.ScanInit
	if err := conn.ReadJSON(&hello); err != nil {
		conn.WriteJSON(gin.H{"status": "error", "reason": "missing_fields"})
		return
	}
	studentID, reason := h.participant(c, hello.StudentID)
	if reason != "" {
		conn.WriteJSON(gin.H{"status": "error", "reason": reason})
		return
	}

	for {
		var scan models.ScanMessage
		if err := conn.ReadJSON(&scan); err != nil {
			h.logger.Debug("scanner disconnected", "student_id", studentID, "error", err)
			return
		}

		sessionID, err := h.engine.Verify(c.Request.Context(), studentID, scan.Code, hello.DeviceFingerprint)
		if err != nil {
			// keep the socket open for the next scan
			if conn.WriteJSON(gin.H{"status": "error", "reason": sessions.Reason(err)}) != nil {
				return
			}
			continue
		}
		conn.WriteJSON(gin.H{"status": "OK", "sessionId": sessionID})
		return
	}
}
