package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/bookwise-ai/bookwise/internal/conversation"
	"github.com/bookwise-ai/bookwise/internal/rag"
	"github.com/bookwise-ai/bookwise/internal/search"
)

// maxBodyBytes bounds request bodies; questions and search queries are small.
const maxBodyBytes = 64 * 1024

// Question and query length bounds, in runes.
const (
	minQuestionLen = 3
	maxQuestionLen = 500
	minQueryLen    = 2
	maxQueryLen    = 200
	maxTopK        = 10
	maxSearchLimit = 20
)

// Search types accepted by the search endpoint.
const (
	searchTypeVector = "vector"
	searchTypeText   = "text"
	searchTypeHybrid = "hybrid"
)

type askRequest struct {
	Question        string         `json:"question"`
	ConversationID  string         `json:"conversationId,omitempty"`
	UseCache        *bool          `json:"useCache,omitempty"`
	UseHybridSearch *bool          `json:"useHybridSearch,omitempty"`
	TopK            int            `json:"topK,omitempty"`
	Filters         search.Filters `json:"filters,omitempty"`
}

type askResponse struct {
	Response       string       `json:"response"`
	Sources        []rag.Source `json:"sources"`
	ConversationID string       `json:"conversationId"`
	FromCache      bool         `json:"fromCache"`
	Timestamp      time.Time    `json:"timestamp"`
}

type searchRequest struct {
	Query      string         `json:"query"`
	Limit      int            `json:"limit,omitempty"`
	SearchType string         `json:"searchType,omitempty"`
	Filters    search.Filters `json:"filters,omitempty"`
}

type searchResponse struct {
	Results    []search.Result `json:"results"`
	Total      int             `json:"total"`
	SearchType string          `json:"searchType"`
	Timestamp  time.Time       `json:"timestamp"`
}

type askHandler struct {
	service       *rag.Service
	conversations *conversation.Store
	logger        *slog.Logger
}

func (h *askHandler) ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	if n := utf8.RuneCountInString(req.Question); n < minQuestionLen || n > maxQuestionLen {
		WriteError(w, http.StatusBadRequest, "invalid_question",
			"question must be between 3 and 500 characters", h.logger)
		return
	}

	conversationID := uuid.Nil
	if req.ConversationID != "" {
		id, err := uuid.Parse(req.ConversationID)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid_conversation_id",
				"conversationId must be a valid UUID", h.logger)
			return
		}
		conversationID = id
	}
	if conversationID == uuid.Nil {
		conversationID = uuid.New()
	}

	opts := rag.DefaultOptions()
	if req.UseCache != nil {
		opts.UseCache = *req.UseCache
	}
	if req.UseHybridSearch != nil {
		opts.UseHybridSearch = *req.UseHybridSearch
	}
	if req.TopK != 0 {
		if req.TopK < 1 || req.TopK > maxTopK {
			WriteError(w, http.StatusBadRequest, "invalid_top_k",
				"topK must be between 1 and 10", h.logger)
			return
		}
		opts.TopK = req.TopK
	}
	opts.Filters = req.Filters

	resp, err := h.service.Query(r.Context(), req.Question, opts)
	if err != nil {
		writeQueryError(w, err, h.logger)
		return
	}

	now := time.Now().UTC()

	// Transcript persistence is best effort; a failed append must not turn a
	// generated answer into an error response.
	if h.conversations != nil {
		err := h.conversations.Append(r.Context(), conversationID,
			conversation.Message{Role: conversation.RoleUser, Content: req.Question, Timestamp: now},
			conversation.Message{Role: conversation.RoleAssistant, Content: resp.Answer, Timestamp: now, Sources: resp.Sources},
		)
		if err != nil {
			h.logger.Warn("failed to persist conversation turn",
				"conversation_id", conversationID,
				"error", err,
			)
		}
	}

	WriteJSON(w, http.StatusOK, askResponse{
		Response:       resp.Answer,
		Sources:        resp.Sources,
		ConversationID: conversationID.String(),
		FromCache:      resp.FromCache,
		Timestamp:      now,
	})
}

func (h *askHandler) cacheStats(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, h.service.CacheStats())
}

func (h *askHandler) clearCache(w http.ResponseWriter, _ *http.Request) {
	h.service.ClearCache()
	WriteJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

type searchHandler struct {
	store  *search.Store
	logger *slog.Logger
}

func (h *searchHandler) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	if n := utf8.RuneCountInString(req.Query); n < minQueryLen || n > maxQueryLen {
		WriteError(w, http.StatusBadRequest, "invalid_query",
			"query must be between 2 and 200 characters", h.logger)
		return
	}

	limit := req.Limit
	if limit == 0 {
		limit = 5
	}
	if limit < 1 || limit > maxSearchLimit {
		WriteError(w, http.StatusBadRequest, "invalid_limit",
			"limit must be between 1 and 20", h.logger)
		return
	}

	searchType := req.SearchType
	if searchType == "" {
		searchType = searchTypeHybrid
	}

	var results []search.Result
	var err error
	switch searchType {
	case searchTypeVector:
		results, err = h.store.SimilaritySearch(r.Context(), req.Query, limit, req.Filters)
	case searchTypeText:
		results, err = h.store.FullTextSearch(r.Context(), req.Query, limit, req.Filters)
	case searchTypeHybrid:
		results, err = h.store.HybridSearch(r.Context(), req.Query, limit, req.Filters)
	default:
		WriteError(w, http.StatusBadRequest, "invalid_search_type",
			"searchType must be one of: vector, text, hybrid", h.logger)
		return
	}
	if err != nil {
		writeQueryError(w, err, h.logger)
		return
	}

	if results == nil {
		results = []search.Result{}
	}
	WriteJSON(w, http.StatusOK, searchResponse{
		Results:    results,
		Total:      len(results),
		SearchType: searchType,
		Timestamp:  time.Now().UTC(),
	})
}

type conversationHandler struct {
	store  *conversation.Store
	logger *slog.Logger
}

func (h *conversationHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := 0 // store default
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			WriteError(w, http.StatusBadRequest, "invalid_limit",
				"limit must be a positive integer", h.logger)
			return
		}
		limit = n
	}

	summaries, err := h.store.List(r.Context(), limit)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "internal_error", "failed to list conversations", h.logger)
		return
	}
	if summaries == nil {
		summaries = []conversation.Summary{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"conversations": summaries,
		"total":         len(summaries),
	})
}

func (h *conversationHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_conversation_id",
			"conversation id must be a valid UUID", h.logger)
		return
	}

	conv, err := h.store.Get(r.Context(), id)
	if errors.Is(err, conversation.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "not_found", "conversation not found", h.logger)
		return
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "internal_error", "failed to load conversation", h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, conv)
}

func (h *conversationHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_conversation_id",
			"conversation id must be a valid UUID", h.logger)
		return
	}

	err = h.store.Delete(r.Context(), id)
	if errors.Is(err, conversation.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "not_found", "conversation not found", h.logger)
		return
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "internal_error", "failed to delete conversation", h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// decodeBody parses a JSON request body into dst, writing a 400 on failure.
// Unknown fields are rejected so typos surface instead of silently defaulting.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any, logger *slog.Logger) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_body", "request body is not valid JSON", logger)
		return false
	}
	return true
}

// writeQueryError maps pipeline errors to HTTP statuses: a broken index is
// 503, a failed model call is 502, anything else 500.
func writeQueryError(w http.ResponseWriter, err error, logger *slog.Logger) {
	switch {
	case errors.Is(err, search.ErrUnavailable):
		logger.Error("retrieval unavailable", "error", err)
		WriteError(w, http.StatusServiceUnavailable, "retrieval_unavailable", "search index is unavailable", logger)
	case errors.Is(err, rag.ErrGenerationFailed):
		logger.Error("generation failed", "error", err)
		WriteError(w, http.StatusBadGateway, "generation_failed", "answer generation failed", logger)
	default:
		logger.Error("query failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal_error", "internal server error", logger)
	}
}
