// Package testutil starts throwaway Postgres instances for integration tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/questforge/embeddings/migrations"
	"github.com/questforge/embeddings/pkg/database"
)

const pgvectorImage = "pgvector/pgvector:pg16"

// PlatformSchema is a minimal copy of the platform tables the service reads.
const PlatformSchema = `
CREATE TABLE IF NOT EXISTS campaigns (
    id       TEXT PRIMARY KEY,
    name     TEXT NOT NULL,
    owner_id TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS campaign_members (
    campaign_id TEXT NOT NULL REFERENCES campaigns (id) ON DELETE CASCADE,
    user_id     TEXT NOT NULL,
    role        TEXT NOT NULL DEFAULT 'player',
    PRIMARY KEY (campaign_id, user_id)
);

CREATE TABLE IF NOT EXISTS notes (
    id          TEXT PRIMARY KEY,
    campaign_id TEXT NOT NULL REFERENCES campaigns (id) ON DELETE CASCADE,
    title       TEXT NOT NULL,
    content     TEXT
);

CREATE TABLE IF NOT EXISTS assets (
    id          TEXT PRIMARY KEY,
    campaign_id TEXT NOT NULL REFERENCES campaigns (id) ON DELETE CASCADE,
    title       TEXT NOT NULL,
    description TEXT,
    content     TEXT
);
`

// NewPostgres starts a pgvector container, applies the embedded migrations, River's
// migrations and PlatformSchema, and returns a pool with vector types registered. The test is
// skipped under -short or when no container runtime is reachable.
func NewPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ctr, err := postgres.Run(ctx, pgvectorImage,
		postgres.WithDatabase("embeddings_test"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err, "start postgres container")

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	bootstrap, err := database.NewPostgresPool(ctx, dsn)
	require.NoError(t, err)

	_, err = database.Migrate(ctx, bootstrap, migrations.FS)
	require.NoError(t, err, "apply migrations")

	migrator, err := rivermigrate.New(riverpgxv5.New(bootstrap), nil)
	require.NoError(t, err)

	_, err = migrator.Migrate(ctx, rivermigrate.DirectionUp, nil)
	require.NoError(t, err, "apply river migrations")

	_, err = bootstrap.Exec(ctx, PlatformSchema)
	require.NoError(t, err, "create platform schema")
	bootstrap.Close()

	pool, err := database.NewPostgresPool(ctx, dsn, database.WithVectorTypes())
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return pool
}
