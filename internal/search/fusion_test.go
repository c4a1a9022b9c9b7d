package search

import (
	"fmt"
	"testing"
)

func mkResult(text string, score float64) Result {
	return Result{Text: text, Score: score, Metadata: Metadata{Chapter: "Chapter 1", Type: TypeExplanation}}
}

func TestFuseRRF_Deterministic(t *testing.T) {
	vector := []Result{mkResult("alpha", 0.9), mkResult("beta", 0.8), mkResult("gamma", 0.7)}
	text := []Result{mkResult("beta", 12.0), mkResult("delta", 8.0)}

	first := fuseRRF(vector, text, 10, DefaultVectorWeight, DefaultTextWeight)
	for i := 0; i < 10; i++ {
		got := fuseRRF(vector, text, 10, DefaultVectorWeight, DefaultTextWeight)
		if len(got) != len(first) {
			t.Fatalf("run %d: got %d results, want %d", i, len(got), len(first))
		}
		for j := range got {
			if got[j].Text != first[j].Text || got[j].Score != first[j].Score {
				t.Fatalf("run %d: result %d = (%q, %v), want (%q, %v)",
					i, j, got[j].Text, got[j].Score, first[j].Text, first[j].Score)
			}
		}
	}
}

func TestFuseRRF_DualListItemWins(t *testing.T) {
	// beta is rank 2 in the vector list and rank 1 in the text list; its
	// summed contribution must beat alpha's single first-place one when
	// weights are equal.
	vector := []Result{mkResult("alpha", 0.9), mkResult("beta", 0.8)}
	text := []Result{mkResult("beta", 12.0)}

	got := fuseRRF(vector, text, 10, 0.5, 0.5)
	if got[0].Text != "beta" {
		t.Fatalf("top result = %q, want %q", got[0].Text, "beta")
	}

	wantScore := 0.5/float64(rrfK+2) + 0.5/float64(rrfK+1)
	if diff := got[0].Score - wantScore; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("beta score = %v, want %v", got[0].Score, wantScore)
	}
}

func TestFuseRRF_DedupByPrefix(t *testing.T) {
	base := ""
	for i := 0; i < dedupKeyLen; i++ {
		base += "x"
	}

	// Same 100-byte prefix, different tails: must merge into one entry.
	vector := []Result{mkResult(base+" from vector leg", 0.9)}
	text := []Result{mkResult(base+" from text leg", 10.0)}

	got := fuseRRF(vector, text, 10, DefaultVectorWeight, DefaultTextWeight)
	if len(got) != 1 {
		t.Fatalf("got %d results, want 1 merged entry", len(got))
	}

	wantScore := DefaultVectorWeight/float64(rrfK+1) + DefaultTextWeight/float64(rrfK+1)
	if diff := got[0].Score - wantScore; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("merged score = %v, want sum of both contributions %v", got[0].Score, wantScore)
	}
}

func TestFuseRRF_ShortTextsDistinct(t *testing.T) {
	// Texts shorter than the prefix length are only merged when identical.
	vector := []Result{mkResult("generics", 0.9)}
	text := []Result{mkResult("generic types", 10.0)}

	got := fuseRRF(vector, text, 10, DefaultVectorWeight, DefaultTextWeight)
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2 distinct entries", len(got))
	}
}

func TestFuseRRF_LimitTruncation(t *testing.T) {
	var vector []Result
	for i := 0; i < 20; i++ {
		vector = append(vector, mkResult(fmt.Sprintf("chunk %02d", i), 1.0-float64(i)*0.01))
	}

	got := fuseRRF(vector, nil, 5, DefaultVectorWeight, DefaultTextWeight)
	if len(got) != 5 {
		t.Fatalf("got %d results, want 5", len(got))
	}
	// Single-list fusion must preserve the input ranking.
	for i := 0; i < 5; i++ {
		want := fmt.Sprintf("chunk %02d", i)
		if got[i].Text != want {
			t.Errorf("result %d = %q, want %q", i, got[i].Text, want)
		}
	}
}

func TestFuseRRF_ScoresDescending(t *testing.T) {
	vector := []Result{mkResult("a", 0.9), mkResult("b", 0.8), mkResult("c", 0.7)}
	text := []Result{mkResult("c", 5.0), mkResult("d", 4.0), mkResult("a", 3.0)}

	got := fuseRRF(vector, text, 10, DefaultVectorWeight, DefaultTextWeight)
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Fatalf("scores not descending at %d: %v > %v", i, got[i].Score, got[i-1].Score)
		}
	}
}

func TestFuseRRF_EmptyInputs(t *testing.T) {
	if got := fuseRRF(nil, nil, 5, DefaultVectorWeight, DefaultTextWeight); len(got) != 0 {
		t.Fatalf("got %d results from empty inputs, want 0", len(got))
	}
}
