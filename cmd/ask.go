package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bookwise-ai/bookwise/internal/app"
	"github.com/bookwise-ai/bookwise/internal/config"
	"github.com/bookwise-ai/bookwise/internal/rag"
)

// runAsk answers a single question from the command line.
func runAsk(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: bookwise ask <question>")
	}
	question := strings.Join(args, " ")

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

	resp, err := a.Service.Query(ctx, question, rag.DefaultOptions())
	if err != nil {
		return fmt.Errorf("answering question: %w", err)
	}

	fmt.Println(resp.Answer)

	if len(resp.Sources) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for i, s := range resp.Sources {
			line := fmt.Sprintf("  %d. %s, page %d (%s)", i+1, s.Metadata.Chapter, s.Metadata.Page, s.Metadata.Type)
			if s.Metadata.Section != "" {
				line += " - " + s.Metadata.Section
			}
			fmt.Println(line)
		}
	}

	return nil
}
