package database

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// NewMigrationProvider returns a goose provider for the NNN_name.sql files in migrations.
// Applied versions are tracked in goose's default goose_db_version table.
func NewMigrationProvider(pool *pgxpool.Pool, migrations fs.FS) (*goose.Provider, error) {
	provider, err := goose.NewProvider(goose.DialectPostgres, stdlib.OpenDBFromPool(pool), migrations)
	if err != nil {
		return nil, fmt.Errorf("create migration provider: %w", err)
	}

	return provider, nil
}

// Migrate applies every pending migration in version order, each inside its own transaction,
// and returns the versions applied. Versions already recorded are skipped.
func Migrate(ctx context.Context, pool *pgxpool.Pool, migrations fs.FS) ([]int64, error) {
	provider, err := NewMigrationProvider(pool, migrations)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := provider.Close(); err != nil {
			slog.WarnContext(ctx, "close migration provider", "error", err)
		}
	}()

	results, err := provider.Up(ctx)

	applied := make([]int64, 0, len(results))

	for _, res := range results {
		if res.Error != nil || res.Empty {
			continue
		}

		slog.InfoContext(ctx, "migration applied",
			"version", res.Source.Version,
			"file", res.Source.Path,
			"duration", res.Duration,
		)

		applied = append(applied, res.Source.Version)
	}

	if err != nil {
		return applied, fmt.Errorf("apply migrations: %w", err)
	}

	return applied, nil
}
