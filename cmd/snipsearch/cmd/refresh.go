package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/snipsearch/internal/index"
	"github.com/Aman-CERP/snipsearch/internal/output"
)

func newRefreshCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refresh [metadata|files|all]",
		Short: "Re-crawl a search index",
		Long: `Re-crawl one or both indexes so recent snippet changes become searchable.
Saving, deleting or rating through snipsearch refreshes automatically; use this
after changing the database or blob directory by other means.`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{string(index.KindMetadata), string(index.KindFileContent), "all"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := "all"
			if len(args) == 1 {
				target = args[0]
			}
			return runRefresh(cmd.Context(), cmd, target)
		},
	}
	return cmd
}

func runRefresh(ctx context.Context, cmd *cobra.Command, target string) error {
	kinds := []index.Kind{index.KindMetadata, index.KindFileContent}
	if target != "all" {
		kind, err := index.ParseKind(target)
		if err != nil {
			return err
		}
		kinds = []index.Kind{kind}
	}

	return withApp(ctx, func(ctx context.Context, a *app) error {
		out := output.New(cmd.OutOrStdout())
		for _, kind := range kinds {
			start := time.Now()
			if err := a.trigger.Run(ctx, kind); err != nil {
				return err
			}
			out.Successf("Refreshed %s index (%s)", kind, time.Since(start).Round(time.Millisecond))
		}
		return nil
	})
}
