package commands

import (
	"fmt"
	"log/slog"

	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/spf13/cobra"

	"github.com/questforge/embeddings/migrations"
	"github.com/questforge/embeddings/pkg/database"
)

func newMigrateCmd(st *state) *cobra.Command {
	var skipRiver bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embeddings schema and River's job tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			// No vector type registration here: the first migration creates the extension.
			db, err := database.NewPostgresPool(ctx, st.cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("migrate: connect to database: %w", err)
			}
			defer db.Close()

			applied, err := database.Migrate(ctx, db, migrations.FS)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}

			slog.InfoContext(ctx, "embeddings schema up to date", "applied", applied)

			if skipRiver {
				return nil
			}

			migrator, err := rivermigrate.New(riverpgxv5.New(db), nil)
			if err != nil {
				return fmt.Errorf("migrate: create river migrator: %w", err)
			}

			res, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil)
			if err != nil {
				return fmt.Errorf("migrate: river: %w", err)
			}

			for _, v := range res.Versions {
				slog.InfoContext(ctx, "river migration applied", "version", v.Version)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&skipRiver, "skip-river", false, "Only apply the embeddings schema")

	return cmd
}
