package service

import (
	"context"
	"errors"

	"opsboard/internal/core"
	"opsboard/internal/logger"
	"opsboard/internal/metrics"
)

type AuthService struct {
	accounts core.AccountRepository
	creds    core.Credentials
}

func NewAuthService(accounts core.AccountRepository, creds core.Credentials) *AuthService {
	return &AuthService{
		accounts: accounts,
		creds:    creds,
	}
}

// Register validates the request and creates an account. Checks run in this
// order: required fields, username length, password strength, role, and
// finally username uniqueness. An empty role means RoleUser.
func (s *AuthService) Register(ctx context.Context, username, password string, role core.Role) (*core.Account, error) {
	acc, err := s.register(ctx, username, password, role)
	metrics.RecordAuth("register", outcome(err))
	return acc, err
}

func (s *AuthService) register(ctx context.Context, username, password string, role core.Role) (*core.Account, error) {
	if username == "" || password == "" {
		return nil, core.InvalidInput("Username and password are required")
	}
	if len(username) < 3 {
		return nil, core.InvalidInput("Username must be at least 3 characters")
	}
	if err := s.checkPassword(password); err != nil {
		return nil, err
	}
	if role == "" {
		role = core.RoleUser
	}
	if !role.Valid() {
		return nil, core.InvalidInput("Role must be one of user, analyst, admin")
	}

	exists, err := s.accounts.Exists(ctx, username)
	if err != nil {
		return nil, s.authFailure("register", err)
	}
	if exists {
		return nil, core.ErrDuplicateUsername
	}

	hash, err := s.creds.Hash(password)
	if err != nil {
		return nil, s.authFailure("register", err)
	}

	acc, err := s.accounts.Create(ctx, username, hash, role)
	if err != nil {
		return nil, s.authFailure("register", err)
	}

	logger.Info.Printf("Registered account '%s' (role %s)", acc.Username, acc.Role)
	return public(acc), nil
}

// SetupAdmin creates the first admin account, only allowed if no accounts exist
func (s *AuthService) SetupAdmin(ctx context.Context, username, password string) (*core.Account, error) {
	has, err := s.HasUsers(ctx)
	if err != nil {
		return nil, err
	}
	if has {
		return nil, core.InvalidInput("Setup already completed")
	}
	return s.Register(ctx, username, password, core.RoleAdmin)
}

// Login checks credentials and returns the account without its hash.
func (s *AuthService) Login(ctx context.Context, username, password string) (*core.Account, error) {
	acc, err := s.login(ctx, username, password)
	metrics.RecordAuth("login", outcome(err))
	return acc, err
}

func (s *AuthService) login(ctx context.Context, username, password string) (*core.Account, error) {
	if username == "" || password == "" {
		return nil, core.InvalidInput("Username and password are required")
	}

	acc, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		return nil, s.authFailure("login", err)
	}
	if acc == nil {
		return nil, core.ErrNotFound
	}

	if !s.creds.Verify(password, acc.PasswordHash) {
		return nil, core.ErrInvalidCredentials
	}

	return public(acc), nil
}

// Account looks up a live account by id, used to re-check a session.
func (s *AuthService) Account(ctx context.Context, id int64) (*core.Account, error) {
	acc, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, s.authFailure("lookup", err)
	}
	if acc == nil {
		return nil, notFound("account", id)
	}
	return public(acc), nil
}

// ChangePassword replaces the password after confirming the current one.
func (s *AuthService) ChangePassword(ctx context.Context, accountID int64, current, next string) error {
	err := s.changePassword(ctx, accountID, current, next)
	metrics.RecordAuth("change_password", outcome(err))
	return err
}

func (s *AuthService) changePassword(ctx context.Context, accountID int64, current, next string) error {
	if current == "" || next == "" {
		return core.InvalidInput("Current and new password are required")
	}

	acc, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return s.authFailure("change password", err)
	}
	if acc == nil {
		return notFound("account", accountID)
	}
	if !s.creds.Verify(current, acc.PasswordHash) {
		return core.ErrInvalidCredentials
	}
	if err := s.checkPassword(next); err != nil {
		return err
	}
	return s.storeHash(ctx, acc, next, "change password")
}

// ResetPassword sets a new password by username without the old one.
func (s *AuthService) ResetPassword(ctx context.Context, username, newPassword string) error {
	if username == "" {
		return core.InvalidInput("Username is required")
	}
	if err := s.checkPassword(newPassword); err != nil {
		return err
	}

	acc, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		return s.authFailure("reset password", err)
	}
	if acc == nil {
		return core.ErrNotFound
	}
	return s.storeHash(ctx, acc, newPassword, "reset password")
}

// HasUsers checks if system is set up
func (s *AuthService) HasUsers(ctx context.Context) (bool, error) {
	count, err := s.accounts.Count(ctx)
	if err != nil {
		return false, s.authFailure("count accounts", err)
	}
	return count > 0, nil
}

func (s *AuthService) checkPassword(password string) error {
	if ok, reason := s.creds.ValidateStrength(password); !ok {
		return &core.WeakPasswordError{Reason: reason}
	}
	if len(password) > MaxPasswordBytes {
		return &core.WeakPasswordError{Reason: "Password must be at most 72 bytes long"}
	}
	return nil
}

func (s *AuthService) storeHash(ctx context.Context, acc *core.Account, password, op string) error {
	hash, err := s.creds.Hash(password)
	if err != nil {
		return s.authFailure(op, err)
	}
	ok, err := s.accounts.UpdatePasswordHash(ctx, acc.ID, hash)
	if err != nil {
		return s.authFailure(op, err)
	}
	if !ok {
		return notFound("account", acc.ID)
	}
	logger.Info.Printf("Password updated for account '%s'", acc.Username)
	return nil
}

// authFailure turns an unexpected error into an auth StoreError. Policy
// errors from the hasher pass through untouched.
func (s *AuthService) authFailure(op string, err error) error {
	var weak *core.WeakPasswordError
	if errors.As(err, &weak) {
		return err
	}
	logger.Error.Printf("auth: %s: %v", op, err)
	return &core.StoreError{Op: "auth: " + op, Err: err}
}

// public strips the password hash.
func public(acc *core.Account) *core.Account {
	out := *acc
	out.PasswordHash = ""
	return &out
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, core.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, core.ErrWeakPassword):
		return "weak_password"
	case errors.Is(err, core.ErrDuplicateUsername):
		return "duplicate_username"
	case errors.Is(err, core.ErrNotFound):
		return "not_found"
	case errors.Is(err, core.ErrInvalidCredentials):
		return "invalid_credentials"
	}
	return "error"
}
