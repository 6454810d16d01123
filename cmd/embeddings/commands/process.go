package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/questforge/embeddings/internal/service"
)

var errNegativeMaxBatches = errors.New("--max-batches must not be negative")

func newProcessCmd(st *state) *cobra.Command {
	var (
		untilEmpty bool
		maxBatches int
	)

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Claim pending records and embed them",
		Long: `Claim one batch of pending records (EMBEDDING_BATCH_SIZE), embed them and store the vectors.

With --until-empty, batches run until nothing is left to claim or --max-batches ran.
Per-record failures are written to the rows and counted; the exit code is non-zero only
when claiming fails.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if maxBatches < 0 {
				return errNegativeMaxBatches
			}

			ctx := cmd.Context()

			db, p, err := st.openPipeline(ctx)
			if err != nil {
				return fmt.Errorf("process: %w", err)
			}
			defer db.Close()

			var res service.ProcessResult

			if untilEmpty {
				res, err = p.Processor.DrainQueue(ctx, maxBatches)
			} else {
				res, err = p.Processor.ProcessQueue(ctx)
			}

			if writeErr := writeJSON(cmd.OutOrStdout(), res.Response()); writeErr != nil {
				return writeErr
			}

			if err != nil {
				return fmt.Errorf("process: %w", err)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&untilEmpty, "until-empty", false, "Keep processing batches until the queue is empty")
	cmd.Flags().IntVar(&maxBatches, "max-batches", 0, "Batch cap for --until-empty (0 = no cap)")

	return cmd
}
