package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"opsboard/internal/core"
	"opsboard/internal/data"
)

func openStore(t *testing.T) *data.Store {
	t.Helper()
	ctx := context.Background()

	store, err := data.Open(ctx, "sqlite", filepath.Join(t.TempDir(), "opsboard.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(ctx))
	return store
}

func newAuth(t *testing.T) *AuthService {
	t.Helper()
	return NewAuthService(data.NewAccountRepo(openStore(t)), NewCredentialManager(bcrypt.MinCost))
}

var errDriver = errors.New("dial tcp 10.0.0.5:5432: connection refused")

// brokenAccounts fails every call the way an unreachable database would.
type brokenAccounts struct{}

func (brokenAccounts) fail(op string) error { return core.WrapStore(op, errDriver) }

func (b brokenAccounts) Create(context.Context, string, string, core.Role) (*core.Account, error) {
	return nil, b.fail("create account")
}

func (b brokenAccounts) GetByUsername(context.Context, string) (*core.Account, error) {
	return nil, b.fail("get account by username")
}

func (b brokenAccounts) GetByID(context.Context, int64) (*core.Account, error) {
	return nil, b.fail("get account")
}

func (b brokenAccounts) Exists(context.Context, string) (bool, error) {
	return false, b.fail("account exists")
}

func (b brokenAccounts) UpdatePasswordHash(context.Context, int64, string) (bool, error) {
	return false, b.fail("update password")
}

func (b brokenAccounts) Count(context.Context) (int64, error) {
	return 0, b.fail("count accounts")
}
