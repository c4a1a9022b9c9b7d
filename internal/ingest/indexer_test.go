package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/firebase/genkit/go/genkit"

	"github.com/bookwise-ai/bookwise/internal/search"
	"github.com/bookwise-ai/bookwise/internal/testutil"
)

// fakeInserter records inserted batches in memory.
type fakeInserter struct {
	batches [][]search.Chunk
	count   int
	err     error
}

func (f *fakeInserter) InsertBatch(_ context.Context, chunks []search.Chunk) error {
	if f.err != nil {
		return f.err
	}
	batch := make([]search.Chunk, len(chunks))
	copy(batch, chunks)
	f.batches = append(f.batches, batch)
	f.count += len(chunks)
	return nil
}

func (f *fakeInserter) Count(_ context.Context) (int, error) {
	return f.count, nil
}

func newTestIndexer(t *testing.T, store Inserter) *Indexer {
	t.Helper()

	g := genkit.Init(context.Background())
	embedder := testutil.NewMockEmbedder(8).RegisterEmbedder(g)

	// A very high RPM so tests are not throttled.
	return NewIndexer(store, embedder, IndexerConfig{
		BookTitle: "Essential TypeScript 5",
		EmbedRPM:  6_000_000,
	}, testutil.QuietLogger())
}

func makeInputs(n int) []chunkInput {
	inputs := make([]chunkInput, n)
	for i := range inputs {
		inputs[i] = chunkInput{
			text: fmt.Sprintf("Chunk %d about type narrowing.", i),
			metadata: search.Metadata{
				Page:      i + 1,
				Chapter:   "Chapter 1",
				Type:      search.TypeExplanation,
				BookTitle: "Essential TypeScript 5",
			},
		}
	}
	return inputs
}

func TestIndexer_EmbedAndInsertBatches(t *testing.T) {
	store := &fakeInserter{}
	ix := newTestIndexer(t, store)

	// 120 chunks with a batch size of 50 should flush 50, 50, 20.
	if err := ix.embedAndInsert(context.Background(), makeInputs(120), 0, 120); err != nil {
		t.Fatalf("embedAndInsert returned error: %v", err)
	}

	if len(store.batches) != 3 {
		t.Fatalf("got %d batches, want 3", len(store.batches))
	}
	wantSizes := []int{50, 50, 20}
	for i, want := range wantSizes {
		if got := len(store.batches[i]); got != want {
			t.Errorf("batch %d size = %d, want %d", i, got, want)
		}
	}
	if store.count != 120 {
		t.Errorf("inserted %d chunks, want 120", store.count)
	}
}

func TestIndexer_EmbeddingsAttached(t *testing.T) {
	store := &fakeInserter{}
	ix := newTestIndexer(t, store)

	if err := ix.embedAndInsert(context.Background(), makeInputs(3), 0, 3); err != nil {
		t.Fatalf("embedAndInsert returned error: %v", err)
	}

	for _, batch := range store.batches {
		for i, c := range batch {
			if len(c.Embedding) != 8 {
				t.Errorf("chunk %d embedding dimension = %d, want 8", i, len(c.Embedding))
			}
			if c.Text == "" || c.Metadata.BookTitle == "" {
				t.Errorf("chunk %d lost text or metadata", i)
			}
		}
	}
}

func TestIndexer_InsertErrorPropagates(t *testing.T) {
	wantErr := errors.New("disk full")
	store := &fakeInserter{err: wantErr}
	ix := newTestIndexer(t, store)

	err := ix.embedAndInsert(context.Background(), makeInputs(60), 0, 60)
	if !errors.Is(err, wantErr) {
		t.Fatalf("error = %v, want %v", err, wantErr)
	}
}

func TestIndexer_ContextCancellation(t *testing.T) {
	store := &fakeInserter{}
	ix := newTestIndexer(t, store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := ix.embedAndInsert(ctx, makeInputs(5), 0, 5); err == nil {
		t.Fatal("embedAndInsert succeeded with a cancelled context, want error")
	}
}
