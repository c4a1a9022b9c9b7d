// Package api exposes the answer pipeline over a JSON HTTP API.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bookwise-ai/bookwise/internal/conversation"
	"github.com/bookwise-ai/bookwise/internal/rag"
	"github.com/bookwise-ai/bookwise/internal/search"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger        *slog.Logger
	Service       *rag.Service        // Required
	SearchStore   *search.Store       // Required
	Conversations *conversation.Store // Optional: nil disables transcript persistence and listing
	Pool          *pgxpool.Pool       // Optional: nil disables pool stats in /ready
	CORSOrigins   []string            // Allowed origins for CORS
	TrustProxy    bool                // Trust X-Real-IP/X-Forwarded-For headers (behind reverse proxy)
	RateRPS       float64             // Rate limiter refill per IP (0 = default 5/s)
	RateBurst     int                 // Rate limiter burst size per IP (0 = default 10)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Service == nil {
		return nil, errors.New("rag service is required")
	}
	if cfg.SearchStore == nil {
		return nil, errors.New("search store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ah := &askHandler{service: cfg.Service, conversations: cfg.Conversations, logger: logger}
	sh := &searchHandler{store: cfg.SearchStore, logger: logger}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/ask", ah.ask)
	mux.HandleFunc("POST /api/v1/search", sh.search)
	mux.HandleFunc("GET /api/v1/cache/stats", ah.cacheStats)
	mux.HandleFunc("DELETE /api/v1/cache", ah.clearCache)

	// Transcript endpoints only exist when a conversation store is wired.
	if cfg.Conversations != nil {
		ch := &conversationHandler{store: cfg.Conversations, logger: logger}
		mux.HandleFunc("GET /api/v1/conversations", ch.list)
		mux.HandleFunc("GET /api/v1/conversations/{id}", ch.get)
		mux.HandleFunc("DELETE /api/v1/conversations/{id}", ch.delete)
	}

	rps := cfg.RateRPS
	if rps <= 0 {
		rps = 5.0
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 10
	}
	rl := newRateLimiter(rps, burst)

	// Middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Routes
	// RequestID must come before Logging so request_id is in log attributes.
	// CORS must come before RateLimit so preflight OPTIONS gets CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w)
		handler.ServeHTTP(w, r)
	})

	// Health probes stay outside the middleware stack so rate limiting can
	// never starve orchestrator checks.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Pool))
	topMux.Handle("/", final)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
