package search

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/firebase/genkit/go/genkit"

	"github.com/bookwise-ai/bookwise/internal/testutil"
)

// vec768 returns a 768-dimensional unit vector with a single 1 at index i,
// giving exact control over cosine similarity between test chunks.
func vec768(i int) []float32 {
	v := make([]float32, DefaultDimension)
	v[i] = 1
	return v
}

func TestStore_ValidateChunk(t *testing.T) {
	// Validation happens before any database access, so no pool is needed.
	s := New(nil, nil, Config{}, testutil.NopLogger())

	valid := Chunk{
		Text:      "Type narrowing reduces a union.",
		Embedding: vec768(0),
		Metadata:  Metadata{Page: 10, Chapter: "Chapter 5", Type: TypeExplanation, BookTitle: "Essential TypeScript 5"},
	}

	tests := []struct {
		name    string
		mutate  func(c *Chunk)
		wantErr string
	}{
		{"empty text", func(c *Chunk) { c.Text = "" }, "text must not be empty"},
		{"wrong dimension", func(c *Chunk) { c.Embedding = make([]float32, 10) }, "dimension mismatch"},
		{"negative page", func(c *Chunk) { c.Metadata.Page = -1 }, "page must be >= 0"},
		{"unknown type", func(c *Chunk) { c.Metadata.Type = "prose" }, "invalid chunk type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			err := s.validateChunk(c)
			if err == nil {
				t.Fatal("validateChunk accepted invalid chunk")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}

	if err := s.validateChunk(valid); err != nil {
		t.Errorf("validateChunk rejected valid chunk: %v", err)
	}
}

func TestStore_VectorSearch_DimensionMismatch(t *testing.T) {
	s := New(nil, nil, Config{}, testutil.NopLogger())

	_, err := s.VectorSearch(context.Background(), make([]float32, 10), 5, Filters{})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("error = %v, want ErrDimensionMismatch", err)
	}
}

func TestStore_SearchLimitValidation(t *testing.T) {
	s := New(nil, nil, Config{}, testutil.NopLogger())
	ctx := context.Background()

	if _, err := s.VectorSearch(ctx, vec768(0), 0, Filters{}); err == nil {
		t.Error("VectorSearch accepted limit 0")
	}
	if _, err := s.FullTextSearch(ctx, "query", -1, Filters{}); err == nil {
		t.Error("FullTextSearch accepted limit -1")
	}
	if _, err := s.HybridSearch(ctx, "query", 0, Filters{}); err == nil {
		t.Error("HybridSearch accepted limit 0")
	}
}

func TestStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()
	db, cleanup := testutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	g := genkit.Init(ctx)
	mock := testutil.NewMockEmbedder(DefaultDimension)
	embedder := mock.RegisterEmbedder(g)

	store := New(db.Pool, embedder, Config{}, testutil.QuietLogger())

	chunks := []Chunk{
		{
			Text:      "Type narrowing reduces a union to a single member inside a branch.",
			Embedding: vec768(0),
			Metadata:  Metadata{Page: 50, Chapter: "Chapter 5", Section: "Narrowing", Type: TypeExplanation, BookTitle: "Essential TypeScript 5"},
		},
		{
			Text:      "function identity<T>(value: T): T { return value; }",
			Embedding: vec768(1),
			Metadata:  Metadata{Page: 120, Chapter: "Chapter 12", Type: TypeCode, BookTitle: "Essential TypeScript 5"},
		},
		{
			Text:      "Generic constraints bound the parameter with the extends keyword.",
			Embedding: vec768(2),
			Metadata:  Metadata{Page: 125, Chapter: "Chapter 12", Section: "Constraints", Type: TypeExplanation, BookTitle: "Essential TypeScript 5"},
		},
	}
	for i, c := range chunks {
		if err := store.Insert(ctx, c); err != nil {
			t.Fatalf("Insert %d failed: %v", i, err)
		}
	}

	t.Run("Count", func(t *testing.T) {
		n, err := store.Count(ctx)
		if err != nil {
			t.Fatalf("Count failed: %v", err)
		}
		if n != len(chunks) {
			t.Errorf("count = %d, want %d", n, len(chunks))
		}
	})

	t.Run("VectorSearchRanking", func(t *testing.T) {
		results, err := store.VectorSearch(ctx, vec768(0), 3, Filters{})
		if err != nil {
			t.Fatalf("VectorSearch failed: %v", err)
		}
		if len(results) != 3 {
			t.Fatalf("got %d results, want 3", len(results))
		}
		if !strings.Contains(results[0].Text, "narrowing") {
			t.Errorf("top result = %q, want the narrowing chunk", results[0].Text)
		}
		// Identical vectors have cosine similarity 1.
		if results[0].Score < 0.999 {
			t.Errorf("top score = %v, want ~1.0", results[0].Score)
		}
		if results[0].Metadata.Section != "Narrowing" {
			t.Errorf("section = %q, want %q", results[0].Metadata.Section, "Narrowing")
		}
	})

	t.Run("VectorSearchTypeFilter", func(t *testing.T) {
		results, err := store.VectorSearch(ctx, vec768(0), 3, Filters{Type: TypeCode})
		if err != nil {
			t.Fatalf("VectorSearch failed: %v", err)
		}
		if len(results) != 1 {
			t.Fatalf("got %d results, want 1", len(results))
		}
		if results[0].Metadata.Type != TypeCode {
			t.Errorf("type = %q, want %q", results[0].Metadata.Type, TypeCode)
		}
	})

	t.Run("FullTextSearch", func(t *testing.T) {
		results, err := store.FullTextSearch(ctx, "narrowing union branch", 5, Filters{})
		if err != nil {
			t.Fatalf("FullTextSearch failed: %v", err)
		}
		if len(results) != 1 {
			t.Fatalf("got %d results, want 1", len(results))
		}
		if !strings.Contains(results[0].Text, "narrowing") {
			t.Errorf("result = %q, want the narrowing chunk", results[0].Text)
		}
		if results[0].Score <= 0 {
			t.Errorf("score = %v, want > 0", results[0].Score)
		}
	})

	t.Run("FullTextSearchChapterFilter", func(t *testing.T) {
		results, err := store.FullTextSearch(ctx, "generic constraints", 5, Filters{Chapter: "Chapter 12"})
		if err != nil {
			t.Fatalf("FullTextSearch failed: %v", err)
		}
		if len(results) != 1 {
			t.Fatalf("got %d results, want 1", len(results))
		}
		if results[0].Metadata.Chapter != "Chapter 12" {
			t.Errorf("chapter = %q, want %q", results[0].Metadata.Chapter, "Chapter 12")
		}
	})

	t.Run("FullTextSearchStopWordsOnly", func(t *testing.T) {
		results, err := store.FullTextSearch(ctx, "the of and", 5, Filters{})
		if err != nil {
			t.Fatalf("FullTextSearch failed: %v", err)
		}
		if len(results) != 0 {
			t.Errorf("got %d results for stop-word query, want 0", len(results))
		}
	})

	t.Run("HybridSearch", func(t *testing.T) {
		mock.SetVector("type narrowing in branches", vec768(0))

		results, err := store.HybridSearch(ctx, "type narrowing in branches", 3, Filters{})
		if err != nil {
			t.Fatalf("HybridSearch failed: %v", err)
		}
		if len(results) == 0 {
			t.Fatal("got 0 results, want at least the narrowing chunk")
		}
		if !strings.Contains(results[0].Text, "narrowing") {
			t.Errorf("top result = %q, want the narrowing chunk first", results[0].Text)
		}
	})

	t.Run("HybridSearchFilterAppliesToBothLegs", func(t *testing.T) {
		mock.SetVector("identity function generics", vec768(1))

		results, err := store.HybridSearch(ctx, "identity function generics", 3, Filters{Type: TypeCode})
		if err != nil {
			t.Fatalf("HybridSearch failed: %v", err)
		}
		for i, r := range results {
			if r.Metadata.Type != TypeCode {
				t.Errorf("result %d type = %q, want %q", i, r.Metadata.Type, TypeCode)
			}
		}
	})

	t.Run("SimilaritySearch", func(t *testing.T) {
		mock.SetVector("bounding a type parameter", vec768(2))

		results, err := store.SimilaritySearch(ctx, "bounding a type parameter", 2, Filters{})
		if err != nil {
			t.Fatalf("SimilaritySearch failed: %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("got %d results, want 2", len(results))
		}
		if !strings.Contains(results[0].Text, "constraints") {
			t.Errorf("top result = %q, want the constraints chunk", results[0].Text)
		}
	})

	t.Run("PageRangeFilter", func(t *testing.T) {
		minPage, maxPage := 100, 130
		results, err := store.VectorSearch(ctx, vec768(0), 5, Filters{MinPage: &minPage, MaxPage: &maxPage})
		if err != nil {
			t.Fatalf("VectorSearch failed: %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("got %d results, want 2", len(results))
		}
		for i, r := range results {
			if r.Metadata.Page < minPage || r.Metadata.Page > maxPage {
				t.Errorf("result %d page = %d, outside [%d, %d]", i, r.Metadata.Page, minPage, maxPage)
			}
		}
	})

	t.Run("InsertBatch", func(t *testing.T) {
		batch := []Chunk{
			{Text: "Decorators attach behavior to class members.", Embedding: vec768(3),
				Metadata: Metadata{Page: 200, Chapter: "Chapter 15", Type: TypeExplanation, BookTitle: "Essential TypeScript 5"}},
			{Text: "enum Direction { Up, Down }", Embedding: vec768(4),
				Metadata: Metadata{Page: 201, Chapter: "Chapter 15", Type: TypeCode, BookTitle: "Essential TypeScript 5"}},
		}
		if err := store.InsertBatch(ctx, batch); err != nil {
			t.Fatalf("InsertBatch failed: %v", err)
		}

		n, err := store.Count(ctx)
		if err != nil {
			t.Fatalf("Count failed: %v", err)
		}
		if n != len(chunks)+len(batch) {
			t.Errorf("count = %d, want %d", n, len(chunks)+len(batch))
		}
	})

	t.Run("InsertBatchRollsBackOnInvalidChunk", func(t *testing.T) {
		before, err := store.Count(ctx)
		if err != nil {
			t.Fatalf("Count failed: %v", err)
		}

		batch := []Chunk{
			{Text: "Valid chunk.", Embedding: vec768(5),
				Metadata: Metadata{Page: 1, Chapter: "Chapter 1", Type: TypeExplanation, BookTitle: "Essential TypeScript 5"}},
			{Text: "", Embedding: vec768(6),
				Metadata: Metadata{Page: 2, Chapter: "Chapter 1", Type: TypeExplanation, BookTitle: "Essential TypeScript 5"}},
		}
		if err := store.InsertBatch(ctx, batch); err == nil {
			t.Fatal("InsertBatch accepted a batch with an invalid chunk")
		}

		after, err := store.Count(ctx)
		if err != nil {
			t.Fatalf("Count failed: %v", err)
		}
		if after != before {
			t.Errorf("count changed from %d to %d, want unchanged", before, after)
		}
	})
}
