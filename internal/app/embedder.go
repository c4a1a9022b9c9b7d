package app

import (
	"context"

	"github.com/firebase/genkit/go/ai"
	"google.golang.org/genai"
)

// dimensionedEmbedder wraps a Gemini embedder so every request asks for the
// output dimensionality matching the pgvector schema. gemini-embedding-001
// returns 3072 dimensions by default but supports truncation via
// OutputDimensionality (Matryoshka Representation Learning); without it the
// search store rejects every vector with a dimension mismatch.
type dimensionedEmbedder struct {
	ai.Embedder
	dimension int32
}

func (e *dimensionedEmbedder) Embed(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	if req.Options == nil {
		dim := e.dimension
		req.Options = &genai.EmbedContentConfig{OutputDimensionality: &dim}
	}
	return e.Embedder.Embed(ctx, req)
}
