package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsboard/internal/core"
)

const testKey = "0123456789abcdef0123456789abcdef"

// roundTrip saves s and returns a new request that carries the resulting cookies.
func roundTrip(t *testing.T, m *Manager, s *Session) (*httptest.ResponseRecorder, *http.Request) {
	t.Helper()
	rec := httptest.NewRecorder()
	require.NoError(t, m.Save(rec, httptest.NewRequest(http.MethodPost, "/auth/login", nil), s))

	req := httptest.NewRequest(http.MethodGet, "/api/incidents", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return rec, req
}

func TestSession_SignInAndReset(t *testing.T) {
	s := &Session{}
	s.SignIn(&core.Account{ID: 7, Username: "alice", Role: core.RoleAnalyst, PasswordHash: "x"})

	assert.True(t, s.Authenticated)
	require.NotNil(t, s.AccountID)
	assert.Equal(t, int64(7), *s.AccountID)
	assert.Equal(t, "alice", s.Username)
	assert.Equal(t, core.RoleAnalyst, s.Role)

	s.Reset()
	assert.Equal(t, Session{}, *s)
}

func TestSession_HasRole(t *testing.T) {
	analyst := &Session{Authenticated: true, Role: core.RoleAnalyst}
	assert.True(t, analyst.HasRole(core.RoleUser))
	assert.True(t, analyst.HasRole(core.RoleAnalyst))
	assert.False(t, analyst.HasRole(core.RoleAdmin))

	anon := &Session{Role: core.RoleAdmin}
	assert.False(t, anon.HasRole(core.RoleUser))
}

func TestManager_SaveLoad(t *testing.T) {
	m := NewManager(testKey, Options{MaxAge: time.Hour})
	s := &Session{}
	s.SignIn(&core.Account{ID: 42, Username: "bob", Role: core.RoleAdmin})

	rec, req := roundTrip(t, m, s)
	cookie := rec.Header().Get("Set-Cookie")
	assert.Contains(t, cookie, cookieName+"=")
	assert.Contains(t, cookie, "HttpOnly")
	assert.NotContains(t, cookie, "bob", "cookie value is encoded")

	loaded := m.Load(req)
	assert.Equal(t, s, loaded)
}

func TestManager_LoadWithoutCookie(t *testing.T) {
	m := NewManager(testKey, Options{})
	s := m.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, s.Authenticated)
	assert.Nil(t, s.AccountID)
}

func TestManager_TamperedCookieIsAnonymous(t *testing.T) {
	m := NewManager(testKey, Options{})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: cookieName, Value: "forged-value"})

	assert.False(t, m.Load(req).Authenticated)
}

func TestManager_OtherKeyCannotRead(t *testing.T) {
	s := &Session{}
	s.SignIn(&core.Account{ID: 1, Username: "alice", Role: core.RoleUser})
	_, req := roundTrip(t, NewManager(testKey, Options{}), s)

	other := NewManager(strings.Repeat("z", 32), Options{})
	assert.False(t, other.Load(req).Authenticated)
}

func TestManager_ClearExpiresCookie(t *testing.T) {
	m := NewManager(testKey, Options{})
	rec := httptest.NewRecorder()
	require.NoError(t, m.Clear(rec, httptest.NewRequest(http.MethodPost, "/auth/logout", nil)))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, cookieName, cookies[0].Name)
	assert.Negative(t, cookies[0].MaxAge)
}

func TestContext(t *testing.T) {
	assert.False(t, FromContext(context.Background()).Authenticated)

	s := &Session{Authenticated: true, Username: "alice"}
	assert.Same(t, s, FromContext(WithSession(context.Background(), s)))
}
