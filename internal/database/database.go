package database

import (
	"context"
	"embed"
	"fmt"

	"translation-server/pkg/migration"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// NewPool создает пул соединений PostgreSQL и проверяет доступность базы.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать пул соединений: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("не удалось подключиться к базе данных: %w", err)
	}

	return pool, nil
}

// ApplyMigrations применяет встроенные миграции схемы.
func ApplyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrator := migration.NewMigrator(migration.Config{
		MigrationsPath: "migrations",
		MigrationsFS:   migrationsFS,
	}, pool)

	if err := migrator.Up(ctx); err != nil {
		return fmt.Errorf("не удалось применить миграции: %w", err)
	}
	return nil
}
