package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd(st *state) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "status [<type> <id>]",
		Short: "Show queue counts or the chunks of one content item",
		Example: `  embeddings status --limit 20
  embeddings status asset 91ab...`,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return fmt.Errorf("status takes no arguments or <type> <id>, got %d", len(args))
			}

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			db, p, err := st.openPipeline(ctx)
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}
			defer db.Close()

			svc := p.StatusService(nil)

			if len(args) == 0 {
				res, err := svc.Status(ctx, limit)
				if err != nil {
					return fmt.Errorf("status: %w", err)
				}

				return writeJSON(cmd.OutOrStdout(), res)
			}

			key, err := parseContentRef(args)
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}

			res, err := svc.ContentStatus(ctx, key)
			if err != nil {
				return fmt.Errorf("status %s: %w", key, err)
			}

			return writeJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Number of recent pending and failed rows to list (default 5)")

	return cmd
}
