package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/snipsearch/internal/output"
)

func newRateCmd() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "rate <snippet-id> <value>",
		Short: "Rate a snippet from 1 to 5",
		Long: `Record a rating for a snippet. A user's later rating replaces the earlier one.

Examples:
  snipsearch rate 4f1c9a 5
  snipsearch rate 4f1c9a 3 --user alice`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid rating %q: %w", args[1], err)
			}
			return runRate(cmd.Context(), cmd, args[0], user, value)
		},
	}

	cmd.Flags().StringVar(&user, "user", defaultUser(), "User recording the rating")
	return cmd
}

func runRate(ctx context.Context, cmd *cobra.Command, snippetID, user string, value float64) error {
	return withApp(ctx, func(ctx context.Context, a *app) error {
		if err := a.snippets.Rate(ctx, snippetID, user, value); err != nil {
			return err
		}
		output.New(cmd.OutOrStdout()).Successf("Rated %s: %.1f", snippetID, value)
		return nil
	})
}

func defaultUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "cli"
}
