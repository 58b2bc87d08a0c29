// Package migration применяет SQL миграции из fs.FS через golang-migrate.
package migration

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

// Config содержит настройки для миграций
type Config struct {
	MigrationsPath  string
	MigrationsFS    fs.FS
	MigrationsTable string
}

// Migrator выполняет миграции базы данных
type Migrator struct {
	config Config
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewMigrator создает новый экземпляр Migrator
func NewMigrator(config Config, pool *pgxpool.Pool, logger *zap.Logger) *Migrator {
	if config.MigrationsTable == "" {
		config.MigrationsTable = "schema_migrations"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Migrator{config: config, pool: pool, logger: logger}
}

// Up применяет все доступные миграции. Отсутствие изменений не ошибка.
func (m *Migrator) Up(ctx context.Context) error {
	return m.with(ctx, func(mg *migrate.Migrate) error {
		if err := mg.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("apply migrations: %w", err)
		}
		m.logger.Info("Database migrations applied", zap.String("table", m.config.MigrationsTable))
		return nil
	})
}

// Down откатывает все миграции.
func (m *Migrator) Down(ctx context.Context) error {
	return m.with(ctx, func(mg *migrate.Migrate) error {
		if err := mg.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("roll back migrations: %w", err)
		}
		m.logger.Info("Database migrations rolled back", zap.String("table", m.config.MigrationsTable))
		return nil
	})
}

// Version возвращает текущую версию и флаг dirty. Пустая схема дает версию 0.
func (m *Migrator) Version(ctx context.Context) (version uint, dirty bool, err error) {
	err = m.with(ctx, func(mg *migrate.Migrate) error {
		var verr error
		version, dirty, verr = mg.Version()
		if errors.Is(verr, migrate.ErrNilVersion) {
			version, dirty = 0, false
			return nil
		}
		if verr != nil {
			return fmt.Errorf("read migration version: %w", verr)
		}
		return nil
	})
	return version, dirty, err
}

func (m *Migrator) with(ctx context.Context, fn func(*migrate.Migrate) error) error {
	mg, err := m.createMigrator(ctx)
	if err != nil {
		return err
	}
	defer mg.Close()
	return fn(mg)
}

func (m *Migrator) createMigrator(ctx context.Context) (*migrate.Migrate, error) {
	if err := m.pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// golang-migrate работает с database/sql, оборачиваем пул pgx
	db := stdlib.OpenDBFromPool(m.pool)

	driver, err := postgres.WithInstance(db, &postgres.Config{
		MigrationsTable:       m.config.MigrationsTable,
		MigrationsTableQuoted: true,
	})
	if err != nil {
		return nil, fmt.Errorf("migrate postgres driver: %w", err)
	}

	source, err := iofs.New(m.config.MigrationsFS, m.config.MigrationsPath)
	if err != nil {
		return nil, fmt.Errorf("migrate source %q: %w", m.config.MigrationsPath, err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	migrator.LockTimeout = 30 * time.Second
	return migrator, nil
}
