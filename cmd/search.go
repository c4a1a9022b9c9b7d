package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bookwise-ai/bookwise/internal/app"
	"github.com/bookwise-ai/bookwise/internal/config"
	"github.com/bookwise-ai/bookwise/internal/search"
)

// runSearch searches the chunk index from the command line.
func runSearch(args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	searchType := fs.String("type", "hybrid", "search type: vector, text, or hybrid")
	limit := fs.Int("limit", 5, "maximum number of results")
	chunkType := fs.String("chunk-type", "", "filter by chunk type: code, explanation, example, reference")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("usage: bookwise search [flags] <query>")
	}
	query := strings.Join(fs.Args(), " ")

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

	filters := search.Filters{Type: *chunkType}

	var results []search.Result
	switch *searchType {
	case "vector":
		results, err = a.SearchStore.SimilaritySearch(ctx, query, *limit, filters)
	case "text":
		results, err = a.SearchStore.FullTextSearch(ctx, query, *limit, filters)
	case "hybrid":
		results, err = a.SearchStore.HybridSearch(ctx, query, *limit, filters)
	default:
		return fmt.Errorf("unknown search type: %s", *searchType)
	}
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("No results.")
		return nil
	}

	for i, r := range results {
		fmt.Printf("%d. [%.4f] %s, page %d (%s)\n", i+1, r.Score, r.Metadata.Chapter, r.Metadata.Page, r.Metadata.Type)
		preview := r.Text
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		fmt.Printf("   %s\n\n", strings.ReplaceAll(preview, "\n", " "))
	}

	return nil
}
