package data

import (
	"context"
	"embed"
	"sync"

	"github.com/pressly/goose/v3"

	"opsboard/internal/logger"
)

//go:embed migrations/*/*.sql
var migrationsFS embed.FS

// goose keeps its dialect and filesystem in package state.
var gooseMu sync.Mutex

// Migrate brings the schema up to the latest version for the store's dialect.
func (s *Store) Migrate(ctx context.Context) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := s.prepareGoose(); err != nil {
		return err
	}
	return goose.UpContext(ctx, s.db, s.migrationsDir())
}

// SchemaVersion reports the applied migration version.
func (s *Store) SchemaVersion(ctx context.Context) (int64, error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := s.prepareGoose(); err != nil {
		return 0, err
	}
	return goose.GetDBVersionContext(ctx, s.db)
}

func (s *Store) prepareGoose() error {
	if err := goose.SetDialect(s.dialect.Goose); err != nil {
		return err
	}
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(logger.Info)
	return nil
}

func (s *Store) migrationsDir() string {
	return "migrations/" + s.dialect.Name
}
