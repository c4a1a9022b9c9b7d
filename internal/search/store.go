// Package search implements the retrieval layer: vector similarity search,
// full-text search, and their Reciprocal Rank Fusion into a single ranking.
//
// Chunks live in PostgreSQL with a pgvector embedding column and a generated
// tsvector column, so both ranking signals come from the same table and see
// identical metadata filters.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"golang.org/x/sync/errgroup"
)

// ErrUnavailable indicates the chunk index could not be reached or errored.
// It is never swallowed into an empty result set: callers must be able to
// distinguish "no results" from "retrieval broken".
var ErrUnavailable = errors.New("retrieval unavailable")

// ErrDimensionMismatch indicates an embedding whose length differs from the
// corpus dimension. Rejected at ingestion, never at query time.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// DefaultDimension is the embedding dimension of the corpus. Must match the
// vector column in the chunks table.
const DefaultDimension = 768

// candidateFactor is the over-fetch multiplier applied to the vector index
// candidate pool (hnsw.ef_search = limit × candidateFactor) to improve recall
// before truncating to limit. Tunable, but the pool must never be below limit.
const candidateFactor = 10

// maxEFSearch is the pgvector upper bound for hnsw.ef_search.
const maxEFSearch = 1000

// Config tunes a Store. Zero values fall back to package defaults.
type Config struct {
	Dimension    int
	VectorWeight float64
	TextWeight   float64
}

// Store performs searches against the chunks table.
// It is safe for concurrent use by multiple goroutines.
type Store struct {
	pool         *pgxpool.Pool
	embedder     ai.Embedder
	logger       *slog.Logger
	dimension    int
	vectorWeight float64
	textWeight   float64
}

// New creates a Store. logger may be nil (defaults to slog.Default()).
func New(pool *pgxpool.Pool, embedder ai.Embedder, cfg Config, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = DefaultDimension
	}
	if cfg.VectorWeight <= 0 {
		cfg.VectorWeight = DefaultVectorWeight
	}
	if cfg.TextWeight <= 0 {
		cfg.TextWeight = DefaultTextWeight
	}

	return &Store{
		pool:         pool,
		embedder:     embedder,
		logger:       logger,
		dimension:    cfg.Dimension,
		vectorWeight: cfg.VectorWeight,
		textWeight:   cfg.TextWeight,
	}
}

const chunkCols = "text, page, chapter, COALESCE(section, ''), chunk_type, book_title"

// VectorSearch returns the limit most similar chunks to queryEmbedding,
// scored by cosine similarity. The HNSW candidate pool is widened to
// limit × candidateFactor before truncation.
func (s *Store) VectorSearch(ctx context.Context, queryEmbedding []float32, limit int, f Filters) ([]Result, error) {
	if limit < 1 {
		return nil, fmt.Errorf("limit must be >= 1, got %d", limit)
	}
	if len(queryEmbedding) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, corpus has %d",
			ErrDimensionMismatch, len(queryEmbedding), s.dimension)
	}

	candidates := min(limit*candidateFactor, maxEFSearch)
	candidates = max(candidates, limit)

	where, args := f.sqlConditions(2)
	sql := fmt.Sprintf(
		`SELECT %s, 1 - (embedding <=> $1)::float8 AS score
		 FROM chunks%s
		 ORDER BY embedding <=> $1
		 LIMIT %d`,
		chunkCols, where, limit,
	)
	args = append([]any{pgvector.NewVector(queryEmbedding)}, args...)

	// SET LOCAL scopes the widened candidate pool to this transaction only.
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: begin vector search: %w", ErrUnavailable, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", candidates)); err != nil {
		return nil, fmt.Errorf("%w: setting candidate pool: %w", ErrUnavailable, err)
	}

	rows, err := tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: vector search: %w", ErrUnavailable, err)
	}
	results, err := scanResults(rows)
	if err != nil {
		return nil, fmt.Errorf("%w: vector search: %w", ErrUnavailable, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: vector search: %w", ErrUnavailable, err)
	}
	return results, nil
}

// FullTextSearch returns the limit chunks best matching the query keywords,
// scored by ts_rank_cd. Queries with no lexemes (stop words only) return an
// empty result set.
func (s *Store) FullTextSearch(ctx context.Context, query string, limit int, f Filters) ([]Result, error) {
	if limit < 1 {
		return nil, fmt.Errorf("limit must be >= 1, got %d", limit)
	}

	where, args := f.sqlConditions(2)
	sql := fmt.Sprintf(
		`SELECT %s, ts_rank_cd(search_text, plainto_tsquery('english', $1), 1)::float8 AS score
		 FROM chunks
		 WHERE search_text @@ plainto_tsquery('english', $1)%s
		 ORDER BY score DESC
		 LIMIT %d`,
		chunkCols, strings.Replace(where, " WHERE ", " AND ", 1), limit,
	)
	args = append([]any{query}, args...)

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: full-text search: %w", ErrUnavailable, err)
	}
	results, err := scanResults(rows)
	if err != nil {
		return nil, fmt.Errorf("%w: full-text search: %w", ErrUnavailable, err)
	}
	return results, nil
}

// HybridSearch embeds the query, runs vector and full-text search
// concurrently at 2 × limit each, and fuses the two rankings with RRF.
// Filters apply identically to both legs; fusion never re-filters.
// Both legs empty yields an empty result, not an error.
func (s *Store) HybridSearch(ctx context.Context, query string, limit int, f Filters) ([]Result, error) {
	if limit < 1 {
		return nil, fmt.Errorf("limit must be >= 1, got %d", limit)
	}

	queryEmbedding, err := s.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	fetch := 2 * limit
	var vectorResults, textResults []Result

	// The two legs are independent read-only queries; issuing them together
	// halves retrieval latency.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		vectorResults, err = s.VectorSearch(gctx, queryEmbedding, fetch, f)
		return err
	})
	g.Go(func() error {
		var err error
		textResults, err = s.FullTextSearch(gctx, query, fetch, f)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.Debug("hybrid search legs",
		"vector_results", len(vectorResults),
		"text_results", len(textResults),
		"limit", limit,
	)

	return fuseRRF(vectorResults, textResults, limit, s.vectorWeight, s.textWeight), nil
}

// SimilaritySearch embeds the query and runs a plain vector search.
func (s *Store) SimilaritySearch(ctx context.Context, query string, limit int, f Filters) ([]Result, error) {
	queryEmbedding, err := s.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.VectorSearch(ctx, queryEmbedding, limit, f)
}

// Insert stores a single chunk. The embedding dimension is validated here:
// a corpus with mixed dimensions must be impossible to create.
func (s *Store) Insert(ctx context.Context, c Chunk) error {
	if err := s.validateChunk(c); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO chunks (text, embedding, page, chapter, section, chunk_type, book_title)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)`,
		c.Text, pgvector.NewVector(c.Embedding),
		c.Metadata.Page, c.Metadata.Chapter, c.Metadata.Section,
		c.Metadata.Type, c.Metadata.BookTitle,
	)
	if err != nil {
		return fmt.Errorf("%w: inserting chunk: %w", ErrUnavailable, err)
	}
	return nil
}

// InsertBatch stores chunks in a single transaction. All-or-nothing: any
// invalid chunk or database error rolls the whole batch back.
func (s *Store) InsertBatch(ctx context.Context, chunks []Chunk) error {
	for i, c := range chunks {
		if err := s.validateChunk(c); err != nil {
			return fmt.Errorf("chunk %d: %w", i, err)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin batch insert: %w", ErrUnavailable, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, c := range chunks {
		_, err := tx.Exec(ctx,
			`INSERT INTO chunks (text, embedding, page, chapter, section, chunk_type, book_title)
			 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)`,
			c.Text, pgvector.NewVector(c.Embedding),
			c.Metadata.Page, c.Metadata.Chapter, c.Metadata.Section,
			c.Metadata.Type, c.Metadata.BookTitle,
		)
		if err != nil {
			return fmt.Errorf("%w: inserting chunk batch: %w", ErrUnavailable, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: committing chunk batch: %w", ErrUnavailable, err)
	}

	s.logger.Debug("inserted chunk batch", "count", len(chunks))
	return nil
}

// Count returns the total number of indexed chunks.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM chunks").Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: counting chunks: %w", ErrUnavailable, err)
	}
	return count, nil
}

func (s *Store) validateChunk(c Chunk) error {
	if c.Text == "" {
		return errors.New("chunk text must not be empty")
	}
	if len(c.Embedding) != s.dimension {
		return fmt.Errorf("%w: chunk has %d dimensions, corpus has %d",
			ErrDimensionMismatch, len(c.Embedding), s.dimension)
	}
	if c.Metadata.Page < 0 {
		return fmt.Errorf("page must be >= 0, got %d", c.Metadata.Page)
	}
	if !ValidType(c.Metadata.Type) {
		return fmt.Errorf("invalid chunk type %q", c.Metadata.Type)
	}
	return nil
}

// embedQuery generates the query embedding via the configured embedder.
func (s *Store) embedQuery(ctx context.Context, query string) ([]float32, error) {
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(query, nil)},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, errors.New("empty embedding returned for query")
	}
	return resp.Embeddings[0].Embedding, nil
}

// scanResults reads chunk rows with a trailing score column.
func scanResults(rows pgx.Rows) ([]Result, error) {
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(
			&r.Text,
			&r.Metadata.Page, &r.Metadata.Chapter, &r.Metadata.Section,
			&r.Metadata.Type, &r.Metadata.BookTitle,
			&r.Score,
		); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading results: %w", err)
	}
	return results, nil
}
