package database

import (
	"context"
	"embed"
	"fmt"

	"finishflow/pkg/migration"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// NewMigrator возвращает мигратор встроенной схемы журнала запусков.
func NewMigrator(pool *pgxpool.Pool, logger *zap.Logger) *migration.Migrator {
	return migration.NewMigrator(migration.Config{
		MigrationsPath: "migrations",
		MigrationsFS:   migrationsFS,
	}, pool, logger)
}

// ApplyMigrations применяет встроенные миграции и проверяет, что схема не
// осталась в состоянии dirty после прерванной миграции.
func ApplyMigrations(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := NewMigrator(pool, logger)
	if err := m.Up(ctx); err != nil {
		return err
	}
	version, dirty, err := m.Version(ctx)
	if err != nil {
		return err
	}
	if dirty {
		return fmt.Errorf("journal schema version %d is dirty, fix it manually", version)
	}
	logger.Info("Journal schema is up to date", zap.Uint("version", version))
	return nil
}
