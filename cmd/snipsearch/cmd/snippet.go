package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/snipsearch/internal/output"
	"github.com/Aman-CERP/snipsearch/internal/store"
)

func newSnippetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snippet",
		Short: "Add, remove and list snippets",
		Long: `Manage snippet records and their files. Every change fires a background
refresh of the affected indexes; the command waits for it before exiting.`,
	}

	cmd.AddCommand(newSnippetAddCmd())
	cmd.AddCommand(newSnippetRemoveCmd())
	cmd.AddCommand(newSnippetListCmd())
	return cmd
}

type snippetAddOptions struct {
	name        string
	description string
	readme      string
	owner       string
	files       []string
}

func newSnippetAddCmd() *cobra.Command {
	var opts snippetAddOptions

	cmd := &cobra.Command{
		Use:   "add <snippet-id>",
		Short: "Create or update a snippet",
		Example: `  snipsearch snippet add 4f1c9a --name "JSON parser" --file parser.go --file README.md
  snipsearch snippet add 4f1c9a --description "Streaming JSON tokenizer"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnippetAdd(cmd.Context(), cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.name, "name", "", "Display name")
	cmd.Flags().StringVar(&opts.description, "description", "", "Short description")
	cmd.Flags().StringVar(&opts.readme, "readme", "", "Readme text")
	cmd.Flags().StringVar(&opts.owner, "owner", defaultUser(), "Owner of the snippet")
	cmd.Flags().StringArrayVar(&opts.files, "file", nil, "File to attach (repeatable)")
	return cmd
}

func runSnippetAdd(ctx context.Context, cmd *cobra.Command, id string, opts snippetAddOptions) error {
	files := make(map[string][]byte, len(opts.files))
	for _, p := range opts.files {
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", p, err)
		}
		files[filepath.Base(p)] = data
	}

	return withApp(ctx, func(ctx context.Context, a *app) error {
		sn := &store.Snippet{
			ID:          id,
			Owner:       opts.owner,
			DisplayName: opts.name,
			Description: opts.description,
			Readme:      opts.readme,
		}
		if err := a.snippets.Save(ctx, sn, files); err != nil {
			return err
		}
		a.settle(a.cfg.RefreshTimeout())
		output.New(cmd.OutOrStdout()).Successf("Saved snippet %s (%d files)", id, len(files))
		return nil
	})
}

func newSnippetRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <snippet-id>",
		Aliases: []string{"remove", "delete"},
		Short:   "Delete a snippet, its files and its ratings",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				if err := a.snippets.Delete(ctx, args[0]); err != nil {
					return err
				}
				a.settle(a.cfg.RefreshTimeout())
				output.New(cmd.OutOrStdout()).Successf("Deleted snippet %s", args[0])
				return nil
			})
		},
	}
}

func newSnippetListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List snippet records from the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				list, err := a.store.ListSnippets(ctx)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				_, _ = fmt.Fprintln(tw, "ID\tNAME\tOWNER\tUPDATED")
				for _, sn := range list {
					_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
						sn.ID, sn.DisplayName, sn.Owner, sn.UpdatedAt.Format("2006-01-02 15:04"))
				}
				return tw.Flush()
			})
		},
	}
}
