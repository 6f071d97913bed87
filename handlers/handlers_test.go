package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anuragrao04/qr-attendance/clock"
	"github.com/anuragrao04/qr-attendance/database"
	"github.com/anuragrao04/qr-attendance/models"
	"github.com/anuragrao04/qr-attendance/notify"
	"github.com/anuragrao04/qr-attendance/sessions"
	"github.com/anuragrao04/qr-attendance/tokens"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store, err := database.Open(filepath.Join(t.TempDir(), "handlers.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	reg := sessions.NewRegistry()
	issuer := tokens.NewIssuer(reg, clock.Real(), time.Hour, nil)
	hub := notify.NewHub(nil)
	engine := sessions.NewEngine(reg, issuer, store, hub, clock.Real(), sessions.Config{TokenTTL: time.Minute}, nil)
	h := New(engine, store, hub, nil, Options{RotateInterval: time.Hour}, nil)
	return h.Router()
}

func call(t *testing.T, r http.Handler, method, path, presenter string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if presenter != "" {
		req.Header.Set(PresenterHeader, presenter)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w.Code, out
}

func startSession(t *testing.T, r http.Handler) (string, string) {
	t.Helper()
	code, body := call(t, r, http.MethodPost, "/sessions", "T1", models.StartSessionRequest{CourseID: "CS101"})
	require.Equal(t, http.StatusOK, code, body)
	return body["sessionId"].(string), body["code"].(string)
}

func TestSessionFlow(t *testing.T) {
	r := newTestRouter(t)
	sessionID, token := startSession(t, r)

	status, body := call(t, r, http.MethodPost, "/sessions/"+sessionID+"/token", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, time.Minute.Milliseconds(), body["expiresIn"])
	assert.NotEqual(t, token, body["code"])

	status, body = call(t, r, http.MethodPost, "/verify", "", models.VerifyRequest{StudentID: "S1", Code: token, DeviceFingerprint: "fp-1"})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, true, body["accepted"])
	assert.Equal(t, sessionID, body["sessionId"])

	status, body = call(t, r, http.MethodPost, "/verify", "", models.VerifyRequest{StudentID: "S1", Code: token, DeviceFingerprint: "fp-2"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "already_marked", body["reason"])

	status, body = call(t, r, http.MethodPost, "/verify", "", models.VerifyRequest{StudentID: "S2", Code: token, DeviceFingerprint: "fp-1"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "duplicate_device", body["reason"])

	status, body = call(t, r, http.MethodPost, "/sessions/"+sessionID+"/finalize", "T1", models.FinalizeRequest{})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "not_ended", body["error"])

	status, _ = call(t, r, http.MethodPost, "/sessions/"+sessionID+"/end", "T2", nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body = call(t, r, http.MethodPost, "/sessions/"+sessionID+"/end", "T1", nil)
	require.Equal(t, http.StatusOK, status)
	records := body["records"].([]any)
	require.Len(t, records, 1)
	assert.Equal(t, "S1", records[0].(map[string]any)["studentId"])

	status, body = call(t, r, http.MethodPost, "/sessions/"+sessionID+"/finalize", "T1", models.FinalizeRequest{KeepIDs: []string{"S1"}})
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["keptCount"])

	status, body = call(t, r, http.MethodPost, "/sessions/"+sessionID+"/finalize", "T1", models.FinalizeRequest{KeepIDs: []string{"S1"}})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "already_finalized", body["error"])

	status, body = call(t, r, http.MethodGet, "/sessions/"+sessionID, "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, string(models.StatusFinalized), body["status"])
}

func TestVerifyRejections(t *testing.T) {
	r := newTestRouter(t)
	startSession(t, r)

	status, body := call(t, r, http.MethodPost, "/verify", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "missing_fields", body["reason"])

	status, body = call(t, r, http.MethodPost, "/verify", "", models.VerifyRequest{StudentID: "S1"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "missing_fields", body["reason"])

	status, body = call(t, r, http.MethodPost, "/verify", "", models.VerifyRequest{StudentID: "S1", Code: "ZZZZZZZZ"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "token_not_found", body["reason"])
}

func TestRequestBinding(t *testing.T) {
	gin.SetMode(gin.TestMode)
	bind := func(body string, dst any) error {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		c.Request.Header.Set("Content-Type", "application/json")
		return c.ShouldBindJSON(dst)
	}

	assert.Error(t, bind(`{"studentId":"S1"}`, &models.VerifyRequest{}))
	// passkey logins name the participant through the cookie
	assert.NoError(t, bind(`{"code":"ABCDEFGH"}`, &models.VerifyRequest{}))
	assert.Error(t, bind(`{}`, &models.StartSessionRequest{}))
	assert.NoError(t, bind(`{"courseId":"CS101"}`, &models.StartSessionRequest{}))
}

func TestStartRequiresCourse(t *testing.T) {
	r := newTestRouter(t)

	status, body := call(t, r, http.MethodPost, "/sessions", "T1", models.StartSessionRequest{})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "missing_course", body["error"])

	status, body = call(t, r, http.MethodGet, "/sessions/sess_nope", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "session_not_found", body["error"])
}

func TestRosterAndAbsentees(t *testing.T) {
	r := newTestRouter(t)

	status, _ := call(t, r, http.MethodPut, "/courses/CS101/roster", "", models.RosterRequest{
		Students: []models.Enrollment{{StudentID: "S1"}, {StudentID: "S2"}},
	})
	require.Equal(t, http.StatusOK, status)

	status, body := call(t, r, http.MethodGet, "/courses/CS101/roster", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["students"].([]any), 2)

	sessionID, token := startSession(t, r)
	status, _ = call(t, r, http.MethodPost, "/verify", "", models.VerifyRequest{StudentID: "S1", Code: token})
	require.Equal(t, http.StatusOK, status)

	status, body = call(t, r, http.MethodGet, "/sessions/"+sessionID+"/absentees", "", nil)
	require.Equal(t, http.StatusOK, status)
	absent := body["absentees"].([]any)
	require.Len(t, absent, 1)
	assert.Equal(t, "S2", absent[0].(map[string]any)["studentId"])

	status, body = call(t, r, http.MethodGet, "/sessions/"+sessionID+"/records", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["records"].([]any), 1)
}

func wsURL(server *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + path
}

func TestPresenterSocket(t *testing.T) {
	r := newTestRouter(t)
	server := httptest.NewServer(r)
	defer server.Close()
	sessionID, _ := startSession(t, r)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(server, "/sessions/"+sessionID+"/present?presenter=T2"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, "/sessions/"+sessionID+"/present?presenter=T1"), nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var tok models.TokenMessage
	require.NoError(t, conn.ReadJSON(&tok))
	assert.Equal(t, "token", tok.Type)
	require.True(t, tokens.ValidCode(tok.Code))

	status, _ := call(t, r, http.MethodPost, "/verify", "", models.VerifyRequest{StudentID: "S1", Code: tok.Code, DeviceFingerprint: "fp-1"})
	require.Equal(t, http.StatusOK, status)

	var ev models.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, models.EventAttendanceUpdate, ev.Type)
	assert.Equal(t, sessionID, ev.SessionID)

	call(t, r, http.MethodPost, "/sessions/"+sessionID+"/end", "T1", nil)
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, models.EventSessionEnded, ev.Type)

	call(t, r, http.MethodPost, "/sessions/"+sessionID+"/finalize", "T1", models.FinalizeRequest{})
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, models.EventSessionFinalized, ev.Type)

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "%v", err)
}

func TestStudentScanSocket(t *testing.T) {
	r := newTestRouter(t)
	server := httptest.NewServer(r)
	defer server.Close()
	sessionID, token := startSession(t, r)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, "/scan"), nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	require.NoError(t, conn.WriteJSON(models.ScanInit{StudentID: "S1", DeviceFingerprint: "fp-1"}))

	require.NoError(t, conn.WriteJSON(models.ScanMessage{Code: "ZZZZZZZZ"}))
	var reply map[string]any
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "error", reply["status"])
	assert.Equal(t, "token_not_found", reply["reason"])

	require.NoError(t, conn.WriteJSON(models.ScanMessage{Code: token}))
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "OK", reply["status"])
	assert.Equal(t, sessionID, reply["sessionId"])
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusGone, statusFor("token_expired"))
	assert.Equal(t, http.StatusConflict, statusFor("already_marked"))
	assert.Equal(t, http.StatusInternalServerError, statusFor("internal_error"))
}
