package data

import (
	"context"
	"time"

	"opsboard/internal/core"
)

type AccountRepo struct {
	store Querier
}

func NewAccountRepo(store Querier) *AccountRepo {
	return &AccountRepo{store: store}
}

type accountRow struct {
	id           int64
	username     string
	passwordHash string
	role         string
	createdAt    string
}

func (r *accountRow) dest() []any {
	return []any{&r.id, &r.username, &r.passwordHash, &r.role, &r.createdAt}
}

func (r *accountRow) account() *core.Account {
	// created_at is informational; a malformed value leaves the zero time.
	createdAt, _ := core.ParseTime(r.createdAt)
	return &core.Account{
		ID:           r.id,
		Username:     r.username,
		PasswordHash: r.passwordHash,
		Role:         core.Role(r.role),
		CreatedAt:    createdAt,
	}
}

// Create inserts a new account with an already hashed password
func (r *AccountRepo) Create(ctx context.Context, username, passwordHash string, role core.Role) (*core.Account, error) {
	now := time.Now()
	id, err := r.store.Insert(ctx, "users", "id", core.Params{
		"username":      username,
		"password_hash": passwordHash,
		"role":          string(role),
		"created_at":    core.FormatTimestamp(now),
	})
	if err != nil {
		return nil, core.WrapStore("create account", err)
	}
	return &core.Account{
		ID:           id,
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now.Truncate(time.Second),
	}, nil
}

// GetByUsername returns nil, nil when no account matches (case-sensitive)
func (r *AccountRepo) GetByUsername(ctx context.Context, username string) (*core.Account, error) {
	var row accountRow
	found, err := r.store.FetchOne(ctx,
		`SELECT id, username, password_hash, role, created_at FROM users WHERE username = {username}`,
		core.Params{"username": username}, row.dest()...)
	if err != nil {
		return nil, core.WrapStore("get account by username", err)
	}
	if !found {
		//nolint:nilnil
		return nil, nil
	}
	return row.account(), nil
}

func (r *AccountRepo) GetByID(ctx context.Context, id int64) (*core.Account, error) {
	var row accountRow
	found, err := r.store.FetchOne(ctx,
		`SELECT id, username, password_hash, role, created_at FROM users WHERE id = {id}`,
		core.Params{"id": id}, row.dest()...)
	if err != nil {
		return nil, core.WrapStore("get account by id", err)
	}
	if !found {
		//nolint:nilnil
		return nil, nil
	}
	return row.account(), nil
}

func (r *AccountRepo) Exists(ctx context.Context, username string) (bool, error) {
	var one int
	found, err := r.store.FetchOne(ctx,
		`SELECT 1 FROM users WHERE username = {username}`,
		core.Params{"username": username}, &one)
	if err != nil {
		return false, core.WrapStore("check username", err)
	}
	return found, nil
}

func (r *AccountRepo) UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) (bool, error) {
	n, err := r.store.Exec(ctx,
		`UPDATE users SET password_hash = {hash} WHERE id = {id}`,
		core.Params{"hash": passwordHash, "id": id})
	if err != nil {
		return false, core.WrapStore("update password", err)
	}
	return n > 0, nil
}

// Count returns total number of accounts (useful for setup check)
func (r *AccountRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	if _, err := r.store.FetchOne(ctx, `SELECT COUNT(*) FROM users`, nil, &count); err != nil {
		return 0, core.WrapStore("count accounts", err)
	}
	return count, nil
}
