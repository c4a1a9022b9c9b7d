package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"golang.org/x/time/rate"

	"github.com/bookwise-ai/bookwise/internal/search"
)

// insertBatchSize bounds a single insert transaction.
const insertBatchSize = 50

// defaultEmbedRPM keeps below the free-tier embedding quota of 100 requests
// per minute, with margin.
const defaultEmbedRPM = 90

// Inserter persists chunks. Satisfied by *search.Store.
type Inserter interface {
	InsertBatch(ctx context.Context, chunks []search.Chunk) error
	Count(ctx context.Context) (int, error)
}

// Indexer runs the full ingestion pipeline: extract, split, classify,
// embed, insert.
type Indexer struct {
	store     Inserter
	embedder  ai.Embedder
	splitter  *Splitter
	limiter   *rate.Limiter
	logger    *slog.Logger
	bookTitle string
}

// IndexerConfig tunes an Indexer. Zero values fall back to defaults.
type IndexerConfig struct {
	BookTitle    string
	ChunkSize    int
	ChunkOverlap int
	// EmbedRPM throttles embedding calls, requests per minute.
	EmbedRPM int
}

// NewIndexer creates an Indexer. logger may be nil.
func NewIndexer(store Inserter, embedder ai.Embedder, cfg IndexerConfig, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	rpm := cfg.EmbedRPM
	if rpm <= 0 {
		rpm = defaultEmbedRPM
	}
	return &Indexer{
		store:     store,
		embedder:  embedder,
		splitter:  NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		limiter:   rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1),
		logger:    logger,
		bookTitle: cfg.BookTitle,
	}
}

// IndexPDF ingests a PDF file into the chunk index.
//
// Ingestion is incremental: chunks already present (by count) are skipped,
// so an interrupted run resumes where it stopped after an embedding quota
// reset. Chunk order is deterministic for a given file and splitter config,
// which is what makes the count-based resume sound.
func (ix *Indexer) IndexPDF(ctx context.Context, path string) error {
	doc, err := ExtractPDF(path)
	if err != nil {
		return err
	}
	ix.logger.Info("extracted pdf", "path", path, "pages", doc.PageCount, "chars", len(doc.Text))

	texts := ix.splitter.Split(doc.Text)
	if len(texts) == 0 {
		return errors.New("no text chunks produced from pdf")
	}
	ix.logger.Info("split into chunks", "count", len(texts))

	classifier := NewClassifier(ix.bookTitle, doc.PageCount)
	chunks := make([]chunkInput, len(texts))
	typeCounts := make(map[string]int)
	for i, text := range texts {
		md := classifier.Classify(text, i, len(texts))
		chunks[i] = chunkInput{text: text, metadata: md}
		typeCounts[md.Type]++
	}
	ix.logger.Info("classified chunks",
		"code", typeCounts[search.TypeCode],
		"explanation", typeCounts[search.TypeExplanation],
		"example", typeCounts[search.TypeExample],
		"reference", typeCounts[search.TypeReference],
	)

	existing, err := ix.store.Count(ctx)
	if err != nil {
		return err
	}
	if existing >= len(chunks) {
		ix.logger.Info("all chunks already indexed", "count", existing)
		return nil
	}
	if existing > 0 {
		ix.logger.Info("resuming ingestion", "already_indexed", existing, "remaining", len(chunks)-existing)
	}

	return ix.embedAndInsert(ctx, chunks[existing:], existing, len(chunks))
}

type chunkInput struct {
	text     string
	metadata search.Metadata
}

func (ix *Indexer) embedAndInsert(ctx context.Context, pending []chunkInput, done, total int) error {
	batch := make([]search.Chunk, 0, insertBatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := ix.store.InsertBatch(ctx, batch); err != nil {
			return err
		}
		done += len(batch)
		ix.logger.Info("indexed chunks", "done", done, "total", total)
		batch = batch[:0]
		return nil
	}

	for _, c := range pending {
		if err := ix.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("waiting for embed rate limit: %w", err)
		}

		embedding, err := ix.embed(ctx, c.text)
		if err != nil {
			// Flush what is embedded so the resume point advances.
			if flushErr := flush(); flushErr != nil {
				return errors.Join(err, flushErr)
			}
			return err
		}

		batch = append(batch, search.Chunk{
			Text:      c.text,
			Embedding: embedding,
			Metadata:  c.metadata,
		})
		if len(batch) >= insertBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}

	return flush()
}

func (ix *Indexer) embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := ix.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(text, nil)},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding chunk: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, errors.New("empty embedding returned for chunk")
	}
	return resp.Embeddings[0].Embedding, nil
}
