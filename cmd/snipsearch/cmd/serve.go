package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/snipsearch/internal/index"
	"github.com/Aman-CERP/snipsearch/internal/mcp"
	"github.com/Aman-CERP/snipsearch/internal/watcher"
)

func newServeCmd() *cobra.Command {
	var noWatch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Long: `Serve snippet search to AI clients over the Model Context Protocol.

stdout and stdin carry the protocol; logs go to ~/.snipsearch/logs/server.log.
With the local backend the blob directory is watched and the file-content
index is refreshed after changes settle.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), noWatch)
		},
	}

	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Do not watch the blob directory")
	return cmd
}

func runServe(ctx context.Context, noWatch bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(configDir)
	if err != nil {
		return err
	}
	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	srv, err := mcp.NewServer(a.engine,
		mcp.WithRater(a.snippets),
		mcp.WithIndexRunner(a.trigger),
		mcp.WithMetrics(a.metrics),
		mcp.WithDefaultLimit(cfg.Search.MaxResults))
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	if a.blobDir != "" && !noWatch {
		w, err := watcher.New(watcher.Options{Dir: a.blobDir, Debounce: cfg.RefreshDebounce()})
		if err != nil {
			return err
		}
		g.Go(func() error {
			err := w.Run(ctx, onBlobChange(a))
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	g.Go(func() error {
		defer cancel()
		return srv.Serve(ctx, cfg.Server.Transport)
	})

	err = g.Wait()
	slog.Info("serve_stopped")
	return err
}

// onBlobChange refreshes the file-content index after a settled batch of blob
// writes and drops cached records of the snippets involved.
func onBlobChange(a *app) func([]watcher.BlobEvent) {
	return func(batch []watcher.BlobEvent) {
		ids := watcher.ChangedSnippets(batch)
		a.lookup.Invalidate(ids...)
		slog.Info("blob_change_detected",
			slog.Int("events", len(batch)),
			slog.Int("snippets", len(ids)))
		a.trigger.Fire(index.KindFileContent)
	}
}
