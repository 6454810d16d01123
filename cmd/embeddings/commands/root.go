// Package commands defines the Cobra commands of the embeddings binary.
package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/questforge/embeddings/internal/config"
	"github.com/questforge/embeddings/internal/models"
	"github.com/questforge/embeddings/internal/observability"
	"github.com/questforge/embeddings/internal/pipeline"
	"github.com/questforge/embeddings/pkg/database"
)

var errEmptyContentID = errors.New("content id must not be empty")

// state is shared by every subcommand once the root pre-run has loaded config.
type state struct {
	cfg      *config.Config
	logLevel string
}

// NewRootCmd constructs the root command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	st := &state{}

	root := &cobra.Command{
		Use:   "embeddings",
		Short: "Campaign content embedding pipeline",
		Long: `Operate the campaign content embedding pipeline against the configured database.

Configuration comes from the environment (and a .env file when present), the same
variables the API server reads: DATABASE_URL, EMBEDDING_PROVIDER, EMBEDDING_MODEL,
EMBEDDING_PROVIDER_API_KEY, CHUNK_SIZE, EMBEDDING_BATCH_SIZE and friends.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			st.cfg = cfg

			level := st.logLevel
			if level == "" {
				level = cfg.LogLevel
			}

			setupLogging(level)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&st.logLevel, "log-level", "", "Log level (debug, info, warn, error); defaults to LOG_LEVEL")

	root.AddCommand(
		newSyncCmd(st),
		newProcessCmd(st),
		newRetryCmd(st),
		newStatusCmd(st),
		newMigrateCmd(st),
	)

	return root
}

// setupLogging writes text logs to stderr so stdout stays machine readable.
func setupLogging(level string) {
	var logLevel slog.Level

	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn", "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(observability.NewTraceContextHandler(handler)))
}

// openPipeline connects to the database and wires the pipeline. Callers close the pool.
func (s *state) openPipeline(ctx context.Context) (*pgxpool.Pool, *pipeline.Pipeline, error) {
	db, err := database.NewPostgresPool(ctx, s.cfg.DatabaseURL, database.WithVectorTypes())
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	p, err := pipeline.New(ctx, s.cfg, db, nil)
	if err != nil {
		db.Close()

		return nil, nil, err
	}

	return db, p, nil
}

// parseContentRef turns the <type> <id> arguments into a content key.
func parseContentRef(args []string) (models.ContentKey, error) {
	ct, err := models.ParseContentType(args[0])
	if err != nil {
		return models.ContentKey{}, err
	}

	id := strings.TrimSpace(args[1])
	if id == "" {
		return models.ContentKey{}, errEmptyContentID
	}

	return models.ContentKey{Type: ct, ID: id}, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	return nil
}
