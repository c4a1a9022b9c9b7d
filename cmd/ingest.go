package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/bookwise-ai/bookwise/internal/app"
	"github.com/bookwise-ai/bookwise/internal/config"
)

// runIngest indexes a book PDF into the chunk index. Safe to re-run after an
// interruption; already-indexed chunks are skipped.
func runIngest(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: bookwise ingest <pdf-path>")
	}
	pdfPath := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			slog.Warn("shutdown error", "error", closeErr)
		}
	}()

	if err := a.Indexer.IndexPDF(ctx, pdfPath); err != nil {
		return fmt.Errorf("indexing %s: %w", pdfPath, err)
	}

	count, err := a.SearchStore.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting chunks: %w", err)
	}
	fmt.Printf("Done. Index contains %d chunks.\n", count)
	return nil
}
