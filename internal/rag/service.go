// Package rag orchestrates the answer pipeline: guardrail, cache, hybrid
// retrieval, grounding context assembly, and generation.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/bookwise-ai/bookwise/internal/cache"
	"github.com/bookwise-ai/bookwise/internal/search"
)

// ErrGenerationFailed indicates the model call errored or returned empty
// output. Not retried here; retry policy belongs to the model plugin.
var ErrGenerationFailed = errors.New("generation failed")

// sourcePreviewLen bounds the chunk text echoed back in Source previews.
const sourcePreviewLen = 200

// Default query options.
const (
	DefaultTopK        = 5
	DefaultTemperature = 0.3
	DefaultMaxTokens   = 2048
)

// Scoper classifies whether a question is within the supported domain.
type Scoper interface {
	InScope(question string) bool
}

// Searcher is the retrieval dependency. Satisfied by *search.Store.
type Searcher interface {
	HybridSearch(ctx context.Context, query string, limit int, f search.Filters) ([]search.Result, error)
	SimilaritySearch(ctx context.Context, query string, limit int, f search.Filters) ([]search.Result, error)
}

// Options controls a single query. The zero value is NOT the default; use
// DefaultOptions so the boolean toggles start enabled.
type Options struct {
	UseCache        bool
	UseHybridSearch bool
	TopK            int
	Filters         search.Filters
}

// DefaultOptions returns the standard query options: cache on, hybrid
// search on, result count deferred to the service's configured TopK.
func DefaultOptions() Options {
	return Options{UseCache: true, UseHybridSearch: true}
}

// Source is a provenance record for one retrieved chunk, with the chunk
// text truncated to a preview.
type Source struct {
	Text     string          `json:"text"`
	Metadata search.Metadata `json:"metadata"`
	Score    float64         `json:"score"`
}

// Response is the outcome of a query. Scope rejection and empty retrieval
// are successful responses carrying a fixed message, not errors.
type Response struct {
	Answer    string   `json:"response"`
	Sources   []Source `json:"sources"`
	FromCache bool     `json:"fromCache"`
}

// Config tunes the Service.
type Config struct {
	// Model is the generation model name, e.g. "googleai/gemini-2.5-flash".
	Model       string
	Temperature float64
	MaxTokens   int
	// TopK is the result count used when Options does not specify one.
	TopK int
	// BookTitle appears in the system prompt and the fixed refusal messages.
	BookTitle string
	// Subject is the short domain name, e.g. "TypeScript".
	Subject string
	// Language the model is instructed to answer in, e.g. "English".
	Language string
}

// Service is the single entry point for answering questions.
type Service struct {
	genkit   *genkit.Genkit
	searcher Searcher
	cache    *cache.Cache
	scoper   Scoper
	logger   *slog.Logger
	cfg      Config
}

// New creates a Service. logger may be nil.
func New(g *genkit.Genkit, searcher Searcher, c *cache.Cache, scoper Scoper, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.Language == "" {
		cfg.Language = "English"
	}
	return &Service{
		genkit:   g,
		searcher: searcher,
		cache:    c,
		scoper:   scoper,
		logger:   logger,
		cfg:      cfg,
	}
}

// Query answers a question grounded in retrieved book chunks.
//
// Pipeline: guardrail, cache lookup, retrieval, context assembly,
// generation, cache write. Out-of-scope questions and questions with zero
// retrieved context return fixed messages without calling the model; the
// system never answers ungrounded.
func (s *Service) Query(ctx context.Context, question string, opts Options) (Response, error) {
	if opts.TopK <= 0 {
		opts.TopK = s.cfg.TopK
	}

	if !s.scoper.InScope(question) {
		s.logger.Debug("question rejected by guardrail", "question", question)
		return Response{Answer: s.refusalMessage(), Sources: []Source{}}, nil
	}

	if opts.UseCache {
		if entry, ok := s.cache.Get(question); ok {
			s.logger.Debug("cache hit", "question", question)
			return Response{
				Answer:    entry.Answer,
				Sources:   sourcesFromCache(entry.Sources),
				FromCache: true,
			}, nil
		}
	}

	var results []search.Result
	var err error
	if opts.UseHybridSearch {
		results, err = s.searcher.HybridSearch(ctx, question, opts.TopK, opts.Filters)
	} else {
		results, err = s.searcher.SimilaritySearch(ctx, question, opts.TopK, opts.Filters)
	}
	if err != nil {
		return Response{}, err
	}

	if len(results) == 0 {
		s.logger.Debug("no relevant chunks retrieved", "question", question)
		return Response{Answer: s.noContextMessage(), Sources: []Source{}}, nil
	}

	answer, err := s.generate(ctx, question, buildContext(results))
	if err != nil {
		return Response{}, err
	}

	resp := Response{
		Answer:  answer,
		Sources: makeSources(results),
	}

	if opts.UseCache {
		s.cache.Set(question, cache.Entry{
			Answer:  answer,
			Sources: cacheSources(resp.Sources),
		})
	}

	return resp, nil
}

// CacheStats exposes cache occupancy for the operational API.
func (s *Service) CacheStats() cache.Stats { return s.cache.Stats() }

// ClearCache empties the answer cache.
func (s *Service) ClearCache() { s.cache.Clear() }

func (s *Service) generate(ctx context.Context, question, context string) (string, error) {
	prompt := fmt.Sprintf(`BOOK CONTEXT:
%s

USER QUESTION:
%s

Answer clearly and didactically. Do NOT mention chapters, pages, or sections in the text. Sources are displayed separately by the system.`, context, question)

	resp, err := genkit.Generate(ctx, s.genkit,
		ai.WithModelName(s.cfg.Model),
		ai.WithSystem(s.systemPrompt()),
		ai.WithPrompt(prompt),
		ai.WithConfig(&ai.GenerationCommonConfig{
			Temperature:     s.cfg.Temperature,
			MaxOutputTokens: s.cfg.MaxTokens,
		}),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	answer := strings.TrimSpace(resp.Text())
	if answer == "" {
		return "", fmt.Errorf("%w: model returned empty output", ErrGenerationFailed)
	}
	return answer, nil
}

func (s *Service) systemPrompt() string {
	return fmt.Sprintf(`You are an assistant specialized in %[1]s, based on the book %[2]q.

STRICT RULES:
- Answer ONLY about %[1]s
- Use ONLY the provided context from the book chunks
- If the question is not about %[1]s, politely refuse
- Be clear, didactic, and objective
- If the context lacks sufficient information, say so clearly
- Do NOT include chapter or page references in the answer text
- Do NOT write phrases like "According to Chapter X" or "(page Y)"

ANSWER FORMAT:
- Explain the concept clearly and directly
- Use code examples when appropriate
- Write fluidly, without citing sources or references in the text
- If there are multiple approaches, mention the differences
- Focus on the technical content, not on citations

Always answer in %[3]s.`, s.cfg.Subject, s.cfg.BookTitle, s.cfg.Language)
}

func (s *Service) refusalMessage() string {
	return fmt.Sprintf(
		"Sorry, I can only answer questions about %s. My knowledge is based on the book %q. Please ask a question related to %s.",
		s.cfg.Subject, s.cfg.BookTitle, s.cfg.Subject,
	)
}

func (s *Service) noContextMessage() string {
	return fmt.Sprintf(
		"Sorry, I could not find relevant information in the book %q to answer your question. Try rephrasing it or asking something more specific.",
		s.cfg.BookTitle,
	)
}

// buildContext assembles the grounding context the model draws from: each
// chunk's text with its provenance metadata, highest score first, separated
// by a delimiter line.
func buildContext(results []search.Result) string {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n---\n\n")
		}
		fmt.Fprintf(&b, "[Source %d]\n", i+1)
		fmt.Fprintf(&b, "Chapter: %s\n", r.Metadata.Chapter)
		if r.Metadata.Section != "" {
			fmt.Fprintf(&b, "Section: %s\n", r.Metadata.Section)
		}
		fmt.Fprintf(&b, "Page: %d\n", r.Metadata.Page)
		fmt.Fprintf(&b, "Type: %s\n", r.Metadata.Type)
		fmt.Fprintf(&b, "Relevance: %.1f%%\n", r.Score*100)
		fmt.Fprintf(&b, "\nContent:\n%s\n", r.Text)
	}
	return b.String()
}

// makeSources converts results into response sources with truncated previews.
func makeSources(results []search.Result) []Source {
	sources := make([]Source, len(results))
	for i, r := range results {
		text := r.Text
		if len(text) > sourcePreviewLen {
			text = text[:sourcePreviewLen] + "..."
		}
		sources[i] = Source{Text: text, Metadata: r.Metadata, Score: r.Score}
	}
	return sources
}

func cacheSources(sources []Source) []cache.Source {
	out := make([]cache.Source, len(sources))
	for i, s := range sources {
		out[i] = cache.Source{
			Preview:   s.Text,
			Page:      s.Metadata.Page,
			Chapter:   s.Metadata.Chapter,
			Section:   s.Metadata.Section,
			Type:      s.Metadata.Type,
			BookTitle: s.Metadata.BookTitle,
			Score:     s.Score,
		}
	}
	return out
}

func sourcesFromCache(sources []cache.Source) []Source {
	out := make([]Source, len(sources))
	for i, s := range sources {
		out[i] = Source{
			Text: s.Preview,
			Metadata: search.Metadata{
				Page:      s.Page,
				Chapter:   s.Chapter,
				Section:   s.Section,
				Type:      s.Type,
				BookTitle: s.BookTitle,
			},
			Score: s.Score,
		}
	}
	return out
}
