package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anuragrao04/qr-attendance/clock"
	"github.com/anuragrao04/qr-attendance/config"
	"github.com/anuragrao04/qr-attendance/database"
)

func newTestPasskeys(t *testing.T) (*Passkeys, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store, err := database.Open(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	p, err := New(config.WebAuthn{
		RPID:          "localhost",
		RPDisplayName: "QR Attendance",
		RPOrigins:     []string{"http://localhost:3000"},
	}, store, nil)
	require.NoError(t, err)

	r := gin.New()
	r.POST("/auth/register/begin", p.BeginRegistration)
	r.POST("/auth/register/finish", p.FinishRegistration)
	r.POST("/auth/login/begin", p.BeginLogin)
	r.GET("/auth/registered", p.CheckIfRegistered)
	return p, r
}

func do(r http.Handler, method, path, student string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if student != "" {
		req.Header.Set(StudentHeader, student)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestBeginRegistration(t *testing.T) {
	_, r := newTestPasskeys(t)

	w := do(r, http.MethodPost, "/auth/register/begin", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/auth/register/begin", "S1")
	require.Equal(t, http.StatusOK, w.Code)
	var options map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &options))
	assert.Contains(t, options, "publicKey")

	w = do(r, http.MethodGet, "/auth/registered", "S1")
	assert.JSONEq(t, `{"registered":false}`, w.Body.String())
}

func TestFinishWithoutBegin(t *testing.T) {
	_, r := newTestPasskeys(t)

	w := do(r, http.MethodPost, "/auth/register/finish", "S1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "registration_not_started")
}

func TestBeginLoginUnregistered(t *testing.T) {
	_, r := newTestPasskeys(t)

	w := do(r, http.MethodPost, "/auth/login/begin", "S1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "not_registered")
}

func TestIdentityFromCookie(t *testing.T) {
	p, _ := newTestPasskeys(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)
	p.login(c, "S7")

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	c2, _ := gin.CreateTestContext(httptest.NewRecorder())
	c2.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c2.Request.AddCookie(cookies[0])
	id, ok := p.Identity(c2)
	require.True(t, ok)
	assert.Equal(t, "S7", id)

	c3, _ := gin.CreateTestContext(httptest.NewRecorder())
	c3.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c3.Request.AddCookie(&http.Cookie{Name: SessionCookie, Value: "forged"})
	_, ok = p.Identity(c3)
	assert.False(t, ok)
}

func TestIdentityExpires(t *testing.T) {
	p, _ := newTestPasskeys(t)
	clk := clock.Fake(time.Date(2026, 4, 6, 9, 0, 0, 0, time.UTC))
	p.clock = clk

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)
	p.login(c, "S7")
	cookie := w.Result().Cookies()[0]
	assert.Equal(t, int(IdentityTTL.Seconds()), cookie.MaxAge)

	identify := func() bool {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		c.Request.AddCookie(cookie)
		_, ok := p.Identity(c)
		return ok
	}

	clk.Advance(IdentityTTL - time.Second)
	assert.True(t, identify())

	clk.Advance(time.Second)
	assert.False(t, identify())

	// a later login prunes stale entries
	clk.Advance(time.Hour)
	p.login(c, "S8")
	count := 0
	p.identities.Range(func(_, _ any) bool { count++; return true })
	assert.Equal(t, 1, count)
}
