// Package ingest turns a source PDF into classified, embedded chunks in the
// index. This is a one-time batch pipeline, run from the CLI, not a runtime
// concern of the answer path.
package ingest

import "strings"

// Splitter defaults: roughly 200-300 tokens per chunk, with overlap so
// context is not lost at chunk boundaries.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// defaultSeparators is the preference order for split points: paragraph,
// line, sentence, word, and finally hard character cuts.
var defaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Splitter splits long text into overlapping chunks, preferring to break at
// paragraph boundaries and degrading to finer separators only when a piece
// is still too large.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// NewSplitter creates a Splitter. Non-positive arguments fall back to the
// package defaults.
func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = min(DefaultChunkOverlap, chunkSize/5)
	}
	return &Splitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   defaultSeparators,
	}
}

// Split divides text into chunks of at most chunkSize bytes, overlapping by
// roughly chunkOverlap. Whitespace-only chunks are dropped.
func (s *Splitter) Split(text string) []string {
	return s.split(text, s.separators)
}

func (s *Splitter) split(text string, separators []string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if len(text) <= s.chunkSize {
		return []string{strings.TrimSpace(text)}
	}

	sep := separators[0]
	rest := separators[1:]

	var pieces []string
	if sep == "" {
		// Last resort: hard cuts at chunkSize.
		for len(text) > 0 {
			n := min(len(text), s.chunkSize)
			pieces = append(pieces, text[:n])
			text = text[n:]
		}
	} else {
		pieces = splitKeepSeparator(text, sep)
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		chunk := strings.TrimSpace(current.String())
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		current.Reset()
	}

	for _, piece := range pieces {
		// A piece that alone exceeds the chunk size gets split again with
		// the next finer separator.
		if len(piece) > s.chunkSize {
			flush()
			if len(rest) > 0 {
				chunks = append(chunks, s.split(piece, rest)...)
			} else {
				chunks = append(chunks, strings.TrimSpace(piece))
			}
			continue
		}

		if current.Len()+len(piece) > s.chunkSize && current.Len() > 0 {
			chunk := strings.TrimSpace(current.String())
			if chunk != "" {
				chunks = append(chunks, chunk)
			}
			// Seed the next chunk with the tail of this one for continuity.
			tail := overlapTail(current.String(), s.chunkOverlap)
			current.Reset()
			current.WriteString(tail)
		}
		current.WriteString(piece)
	}
	flush()

	return chunks
}

// splitKeepSeparator splits text by sep, keeping the separator attached to
// the preceding piece so rejoining pieces reproduces the original text.
func splitKeepSeparator(text, sep string) []string {
	parts := strings.Split(text, sep)
	pieces := make([]string, 0, len(parts))
	for i, p := range parts {
		if i < len(parts)-1 {
			p += sep
		}
		if p != "" {
			pieces = append(pieces, p)
		}
	}
	return pieces
}

// overlapTail returns the last n bytes of s, extended left to the nearest
// whitespace so the overlap never starts mid-word.
func overlapTail(s string, n int) string {
	if n <= 0 || len(s) <= n {
		if n <= 0 {
			return ""
		}
		return s
	}
	tail := s[len(s)-n:]
	if idx := strings.IndexAny(tail, " \n"); idx >= 0 && idx < len(tail)-1 {
		tail = tail[idx+1:]
	}
	return tail
}
