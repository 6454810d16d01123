package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRetryCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:     "retry <type> <id>",
		Short:   "Re-chunk one content item and embed it immediately",
		Example: "  embeddings retry note 7d9e...",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseContentRef(args)
			if err != nil {
				return fmt.Errorf("retry: %w", err)
			}

			ctx := cmd.Context()

			db, p, err := st.openPipeline(ctx)
			if err != nil {
				return fmt.Errorf("retry: %w", err)
			}
			defer db.Close()

			res, err := p.RetryService().Retry(ctx, key)
			if err != nil {
				return fmt.Errorf("retry %s: %w", key, err)
			}

			return writeJSON(cmd.OutOrStdout(), res.Response())
		},
	}
}
