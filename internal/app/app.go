// Package app wires configuration, storage, AI providers, and the answer
// pipeline into a runnable application.
package app

import (
	"errors"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bookwise-ai/bookwise/internal/cache"
	"github.com/bookwise-ai/bookwise/internal/config"
	"github.com/bookwise-ai/bookwise/internal/conversation"
	"github.com/bookwise-ai/bookwise/internal/guardrail"
	"github.com/bookwise-ai/bookwise/internal/ingest"
	"github.com/bookwise-ai/bookwise/internal/rag"
	"github.com/bookwise-ai/bookwise/internal/search"
)

// App holds all initialized application components.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	DBPool   *pgxpool.Pool
	Genkit   *genkit.Genkit
	Embedder ai.Embedder

	SearchStore   *search.Store
	Cache         *cache.Cache
	Guardrail     *guardrail.Classifier
	Service       *rag.Service
	Conversations *conversation.Store
	Indexer       *ingest.Indexer

	otelCleanup func()
	dbCleanup   func()
}

// Close releases all resources in reverse initialization order.
func (a *App) Close() error {
	var errs []error

	if a.dbCleanup != nil {
		a.dbCleanup()
		a.dbCleanup = nil
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
		a.otelCleanup = nil
	}

	return errors.Join(errs...)
}
