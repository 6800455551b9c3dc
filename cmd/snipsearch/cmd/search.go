package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/snipsearch/internal/index"
	"github.com/Aman-CERP/snipsearch/internal/output"
	"github.com/Aman-CERP/snipsearch/internal/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit       int
	format      string
	all         bool
	skipRatings bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Search snippets by metadata and file content",
		Long: `Search both indexes and print one entry per matching snippet.

Examples:
  snipsearch search "json parser"
  snipsearch search retry --limit 5
  snipsearch search --all --format json
  snipsearch search '*' --skip-ratings`,
		RunE: func(cmd *cobra.Command, args []string) error {
			term := strings.Join(args, " ")
			if opts.all {
				term = index.MatchAllTerm
			}
			return runSearch(cmd.Context(), cmd, term, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default: search.max_results)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.all, "all", false, "List every snippet")
	cmd.Flags().BoolVar(&opts.skipRatings, "skip-ratings", false, "Leave out average ratings")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, term string, opts searchOptions) error {
	format, err := output.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	return withApp(ctx, func(ctx context.Context, a *app) error {
		limit := opts.limit
		if limit <= 0 {
			limit = a.cfg.Search.MaxResults
		}

		slog.Info("search_started", slog.String("term", term), slog.Int("limit", limit))
		results, err := a.engine.Search(ctx, term, search.SearchOptions{
			Limit:       limit,
			SkipRatings: opts.skipRatings,
		})
		if err != nil {
			return err
		}

		return output.New(cmd.OutOrStdout()).Results(term, results, format)
	})
}
