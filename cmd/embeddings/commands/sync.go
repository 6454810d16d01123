package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/questforge/embeddings/internal/jobs"
	"github.com/questforge/embeddings/internal/models"
	"github.com/questforge/embeddings/internal/service"
)

func newSyncCmd(st *state) *cobra.Command {
	var (
		campaignID string
		types      []string
		force      bool
		process    bool
		maxBatches int
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Chunk a campaign's content and queue it for embedding",
		Long: `Chunk every note and asset of a campaign and upsert pending embedding records.

Unchanged chunks keep their embedding unless --force is given. By default a
process_embeddings job is inserted for the API server's workers; with --process the
queue is drained in this process instead.`,
		Example: `  embeddings sync --campaign 3f2c... --types notes
  embeddings sync --campaign 3f2c... --force --process`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			contentTypes, err := models.ParseContentTypes(types)
			if err != nil {
				return fmt.Errorf("sync: %w", err)
			}

			db, p, err := st.openPipeline(ctx)
			if err != nil {
				return fmt.Errorf("sync: %w", err)
			}
			defer db.Close()

			var trigger service.ProcessTrigger

			if !process {
				inserter, err := jobs.NewInsertOnlyClient(db)
				if err != nil {
					return fmt.Errorf("sync: %w", err)
				}

				trigger = service.NewRiverTrigger(inserter, st.cfg.EmbeddingMaxAttempts)
			}

			res, err := p.SyncService(trigger).EnqueueContent(ctx, campaignID, contentTypes, force)
			if err != nil {
				return fmt.Errorf("sync: %w", err)
			}

			out := struct {
				Sync    models.SyncResponse     `json:"sync"`
				Process *models.ProcessResponse `json:"process,omitempty"`
			}{Sync: res.Response()}

			if process && res.TotalQueued > 0 {
				drained, err := p.Processor.DrainQueue(ctx, maxBatches)
				if err != nil {
					slog.ErrorContext(ctx, "sync: drain failed", "error", err)
				}

				resp := drained.Response()
				out.Process = &resp
			}

			return writeJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().StringVarP(&campaignID, "campaign", "c", "", "Campaign ID to sync (required)")
	cmd.Flags().StringSliceVarP(&types, "types", "t", nil, "Content types to sync (note, asset); default all")
	cmd.Flags().BoolVar(&force, "force", false, "Re-embed chunks whose text did not change")
	cmd.Flags().BoolVar(&process, "process", false, "Drain the queue in this process instead of inserting a job")
	cmd.Flags().IntVar(&maxBatches, "max-batches", 0, "Batch cap for --process (0 = until empty)")
	_ = cmd.MarkFlagRequired("campaign")

	return cmd
}
