// Package session holds the per-caller authenticated identity and keeps it
// in a signed cookie.
package session

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/sessions"

	"opsboard/internal/core"
	"opsboard/internal/logger"
)

const cookieName = "opsboard-session"

// Session is the cached identity of the last successful login.
type Session struct {
	Authenticated bool      `json:"authenticated"`
	AccountID     *int64    `json:"accountId"`
	Username      string    `json:"username"`
	Role          core.Role `json:"role"`
}

// SignIn copies the identity fields of acc.
func (s *Session) SignIn(acc *core.Account) {
	id := acc.ID
	s.Authenticated = true
	s.AccountID = &id
	s.Username = acc.Username
	s.Role = acc.Role
}

// Reset returns every field to its unauthenticated default.
func (s *Session) Reset() {
	*s = Session{}
}

// HasRole reports whether the session is signed in with at least min.
func (s *Session) HasRole(min core.Role) bool {
	return s.Authenticated && s.Role.Level() >= min.Level()
}

type Options struct {
	MaxAge time.Duration
	Secure bool
}

// Manager reads and writes sessions through a gorilla cookie store.
type Manager struct {
	store *sessions.CookieStore
}

func NewManager(key string, opts Options) *Manager {
	if opts.MaxAge <= 0 {
		opts.MaxAge = 7 * 24 * time.Hour
	}
	store := sessions.NewCookieStore([]byte(key))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(opts.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Manager{store: store}
}

// Load decodes the session cookie. A missing or tampered cookie yields an
// anonymous session.
func (m *Manager) Load(r *http.Request) *Session {
	raw, err := m.store.Get(r, cookieName)
	if err != nil {
		logger.Info.Printf("Discarding unreadable session cookie: %v", err)
		return &Session{}
	}

	s := &Session{}
	id, ok := raw.Values["account_id"].(int64)
	if !ok || id == 0 {
		return s
	}
	s.Authenticated = true
	s.AccountID = &id
	s.Username, _ = raw.Values["username"].(string)
	role, _ := raw.Values["role"].(string)
	s.Role = core.Role(role)
	return s
}

// Save writes s to the response cookie. An anonymous session clears it.
func (m *Manager) Save(w http.ResponseWriter, r *http.Request, s *Session) error {
	if !s.Authenticated || s.AccountID == nil {
		return m.Clear(w, r)
	}

	raw, _ := m.store.Get(r, cookieName)
	raw.Values["account_id"] = *s.AccountID
	raw.Values["username"] = s.Username
	raw.Values["role"] = string(s.Role)
	return raw.Save(r, w)
}

// Clear expires the cookie.
func (m *Manager) Clear(w http.ResponseWriter, r *http.Request) error {
	raw, _ := m.store.Get(r, cookieName)
	raw.Values = map[interface{}]interface{}{}
	raw.Options.MaxAge = -1
	return raw.Save(r, w)
}

type ctxKey struct{}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the request's session, or an anonymous one.
func FromContext(ctx context.Context) *Session {
	if s, ok := ctx.Value(ctxKey{}).(*Session); ok && s != nil {
		return s
	}
	return &Session{}
}
