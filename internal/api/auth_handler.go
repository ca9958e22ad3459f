package api

import (
	"errors"
	"net/http"

	"opsboard/internal/core"
	"opsboard/internal/logger"
	"opsboard/internal/service"
	"opsboard/internal/session"
)

type AuthHandler struct {
	authSvc  *service.AuthService
	sessions *session.Manager
}

func NewAuthHandler(authSvc *service.AuthService, sessions *session.Manager) *AuthHandler {
	return &AuthHandler{
		authSvc:  authSvc,
		sessions: sessions,
	}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type passwordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Setup creates the first admin account. It is refused once any account exists.
func (h *AuthHandler) Setup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	acc, err := h.authSvc.SetupAdmin(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	Created(w, acc)
}

// Register always creates a plain user; elevated roles come from the CLI.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	acc, err := h.authSvc.Register(r.Context(), req.Username, req.Password, core.RoleUser)
	if err != nil {
		writeError(w, r, err)
		return
	}
	Created(w, acc)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	acc, err := h.authSvc.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, core.ErrNotFound) {
		JSONError(w, notFound("User not found"))
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	s := session.FromContext(r.Context())
	s.SignIn(acc)
	if err := h.sessions.Save(w, r, s); err != nil {
		logger.Error.Printf("Failed to save session for '%s': %v", acc.Username, err)
		JSONError(w, ErrInternalServer)
		return
	}

	logger.Info.Printf("Login: '%s' (%s)", acc.Username, acc.Role)
	OK(w, s)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	s.Reset()
	if err := h.sessions.Clear(w, r); err != nil {
		logger.Error.Printf("Failed to clear session: %v", err)
	}
	OK(w, s)
}

// Session reports the caller's current session, anonymous or not.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	OK(w, session.FromContext(r.Context()))
}

// ChangePassword expects RequireSession to have run.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	s := session.FromContext(r.Context())
	if err := h.authSvc.ChangePassword(r.Context(), *s.AccountID, req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}
	NoContent(w)
}
