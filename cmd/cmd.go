// Package cmd provides CLI commands for Bookwise.
//
// Commands:
//   - serve: HTTP API server
//   - ask: answer a single question from the command line
//   - search: search the chunk index
//   - ingest: index a book PDF
//
// Signal handling and graceful shutdown are implemented for all commands
// via context cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/bookwise-ai/bookwise/internal/log"
)

// Execute is the main entry point for the Bookwise CLI application.
func Execute() error {
	// Initialize logger once at entry point
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(log.New(log.Config{
		Level: level,
		JSON:  os.Getenv("LOG_FORMAT") == "json",
	}))

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe()
	case "ask":
		return runAsk(os.Args[2:])
	case "search":
		return runSearch(os.Args[2:])
	case "ingest":
		return runIngest(os.Args[2:])
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("Bookwise - Ask questions about a technical book")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  bookwise serve            Start the HTTP API server")
	fmt.Println("  bookwise ask <question>   Answer a question from the command line")
	fmt.Println("  bookwise search <query>   Search the chunk index (hybrid by default)")
	fmt.Println("  bookwise ingest <pdf>     Index a book PDF")
	fmt.Println("  bookwise --version        Show version information")
	fmt.Println("  bookwise --help           Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY            Required with the gemini provider")
	fmt.Println("  DATABASE_URL              Optional: overrides postgres_* config")
	fmt.Println("  DEBUG                     Optional: enable debug logging")
	fmt.Println("  LOG_FORMAT                Optional: set to \"json\" for JSON logs")
}
