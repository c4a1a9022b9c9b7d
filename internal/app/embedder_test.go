package app

import (
	"context"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"google.golang.org/genai"
)

// captureEmbedder records the request it receives so tests can inspect the
// options the wrapper attaches.
type captureEmbedder struct {
	lastReq *ai.EmbedRequest
}

func (c *captureEmbedder) Name() string { return "capture" }

func (c *captureEmbedder) Register(api.Registry) {}

func (c *captureEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	c.lastReq = req
	return &ai.EmbedResponse{
		Embeddings: []*ai.Embedding{{Embedding: make([]float32, 768)}},
	}, nil
}

func TestDimensionedEmbedder_RequestsOutputDimensionality(t *testing.T) {
	inner := &captureEmbedder{}
	embedder := &dimensionedEmbedder{Embedder: inner, dimension: 768}

	_, err := embedder.Embed(context.Background(), &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText("what is narrowing", nil)},
	})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	cfg, ok := inner.lastReq.Options.(*genai.EmbedContentConfig)
	if !ok {
		t.Fatalf("options = %T, want *genai.EmbedContentConfig", inner.lastReq.Options)
	}
	if cfg.OutputDimensionality == nil || *cfg.OutputDimensionality != 768 {
		t.Errorf("OutputDimensionality = %v, want 768", cfg.OutputDimensionality)
	}
}

func TestDimensionedEmbedder_KeepsCallerOptions(t *testing.T) {
	inner := &captureEmbedder{}
	embedder := &dimensionedEmbedder{Embedder: inner, dimension: 768}

	dim := int32(256)
	opts := &genai.EmbedContentConfig{OutputDimensionality: &dim}
	_, err := embedder.Embed(context.Background(), &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText("what is narrowing", nil)},
		Options: opts,
	})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	if inner.lastReq.Options != opts {
		t.Errorf("caller options were replaced: got %v", inner.lastReq.Options)
	}
}
