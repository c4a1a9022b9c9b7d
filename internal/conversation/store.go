// Package conversation persists chat transcripts. The answer pipeline only
// appends turns; history is never fed back into generation, each query is
// answered statelessly.
package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bookwise-ai/bookwise/internal/rag"
)

// ErrNotFound indicates no conversation exists with the given id.
var ErrNotFound = errors.New("conversation not found")

// listLimit is the default and maximum page size for List.
const listLimit = 20

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single turn. Sources is set only on assistant turns.
type Message struct {
	Role      string       `json:"role"`
	Content   string       `json:"content"`
	Timestamp time.Time    `json:"timestamp"`
	Sources   []rag.Source `json:"sources,omitempty"`
}

// Conversation is a full transcript.
type Conversation struct {
	ID        uuid.UUID `json:"conversationId"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Summary is a listing row: enough to render a conversation picker without
// loading full transcripts.
type Summary struct {
	ID           uuid.UUID `json:"conversationId"`
	MessageCount int       `json:"messageCount"`
	LastMessage  string    `json:"lastMessage"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Store persists conversations in PostgreSQL with a jsonb message array.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New creates a Store. logger may be nil.
func New(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}
}

// Append adds messages to a conversation, creating it if absent. The jsonb
// concatenation keeps the append atomic under concurrent writers.
func (s *Store) Append(ctx context.Context, id uuid.UUID, messages ...Message) error {
	if len(messages) == 0 {
		return nil
	}

	payload, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("encoding messages: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO conversations (id, messages, created_at, updated_at)
		 VALUES ($1, $2::jsonb, now(), now())
		 ON CONFLICT (id) DO UPDATE
		 SET messages = conversations.messages || EXCLUDED.messages,
		     updated_at = now()`,
		id, payload,
	)
	if err != nil {
		return fmt.Errorf("appending to conversation %s: %w", id, err)
	}
	return nil
}

// Get loads a full transcript. Returns ErrNotFound for unknown ids.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Conversation, error) {
	var c Conversation
	var raw []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, messages, created_at, updated_at
		 FROM conversations WHERE id = $1`,
		id,
	).Scan(&c.ID, &raw, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Conversation{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("loading conversation %s: %w", id, err)
	}

	if err := json.Unmarshal(raw, &c.Messages); err != nil {
		return Conversation{}, fmt.Errorf("decoding conversation %s: %w", id, err)
	}
	return c, nil
}

// List returns summaries of the most recently updated conversations,
// newest first. A non-positive limit uses the default of 20, which is
// also the maximum.
func (s *Store) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit < 1 || limit > listLimit {
		limit = listLimit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id,
		        jsonb_array_length(messages),
		        COALESCE(messages -> -1 ->> 'content', ''),
		        created_at,
		        updated_at
		 FROM conversations
		 ORDER BY updated_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.MessageCount, &s.LastMessage, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning conversation summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading conversation summaries: %w", err)
	}
	return summaries, nil
}

// Delete removes a conversation. Deleting an unknown id returns ErrNotFound.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM conversations WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("deleting conversation %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
