package ingest

import (
	"testing"

	"github.com/bookwise-ai/bookwise/internal/search"
)

func TestClassifyType(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name: "code with several declarations",
			content: `interface Product {
  name: string;
}

const repo = new ProductRepository();
function getProduct(id: number) {
  return repo.find(id);
}`,
			want: search.TypeCode,
		},
		{
			name:    "single declaration stays explanation",
			content: "An interface Product describes the shape of an object without creating it.",
			want:    search.TypeExplanation,
		},
		{
			name:    "example phrase",
			content: "For example, the compiler infers a union from the initializer.",
			want:    search.TypeExample,
		},
		{
			name:    "listing reference",
			content: "Listing 12 shows how the decorator is applied to the method.",
			want:    search.TypeExample,
		},
		{
			name:    "note line",
			content: "Note: the strict flag must be enabled for this check.",
			want:    search.TypeReference,
		},
		{
			name:    "cross reference",
			content: "This behavior is described in chapter 9 in more detail.",
			want:    search.TypeReference,
		},
		{
			name:    "plain prose",
			content: "The structural system compares the shape of values rather than their names.",
			want:    search.TypeExplanation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyType(tt.content); got != tt.want {
				t.Errorf("ClassifyType() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractPage(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		fallback int
		want     int
	}{
		{"page marker", "The details appear on page 42 of the text.", 7, 42},
		{"abbreviated marker", "See p. 17 for the full listing.", 7, 17},
		{"no marker uses fallback", "Plain explanatory text without markers.", 7, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractPage(tt.content, tt.fallback); got != tt.want {
				t.Errorf("extractPage() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestClassifier_PageEstimate(t *testing.T) {
	c := NewClassifier("Essential TypeScript 5", 100)

	md := c.Classify("Plain explanatory text without markers.", 5, 10)
	if md.Page != 51 {
		t.Errorf("estimated page = %d, want 51", md.Page)
	}
	if md.BookTitle != "Essential TypeScript 5" {
		t.Errorf("bookTitle = %q, want %q", md.BookTitle, "Essential TypeScript 5")
	}
}

func TestClassifier_ChapterExtraction(t *testing.T) {
	c := NewClassifier("Essential TypeScript 5", 10)

	md := c.Classify("Chapter 3: Type Annotations\n\nTypes describe the shapes of values.", 0, 10)
	if md.Chapter != "Chapter 3: Type Annotations" {
		t.Errorf("chapter = %q, want %q", md.Chapter, "Chapter 3: Type Annotations")
	}

	// The next chunk carries no heading; the chapter propagates by page
	// proximity.
	md = c.Classify("More detail on annotations without any heading.", 1, 10)
	if md.Chapter != "Chapter 3: Type Annotations" {
		t.Errorf("propagated chapter = %q, want %q", md.Chapter, "Chapter 3: Type Annotations")
	}
}

func TestClassifier_UnknownChapter(t *testing.T) {
	c := NewClassifier("Essential TypeScript 5", 10)

	md := c.Classify("Preface text before any numbered heading appears.", 0, 10)
	if md.Chapter != "Unknown Chapter" {
		t.Errorf("chapter = %q, want %q", md.Chapter, "Unknown Chapter")
	}
}

func TestClassifier_SimpleChapterNumber(t *testing.T) {
	c := NewClassifier("Essential TypeScript 5", 10)

	md := c.Classify("The rules from chapter 7 apply to tuples as well.", 0, 10)
	if md.Chapter != "Chapter 7" {
		t.Errorf("chapter = %q, want %q", md.Chapter, "Chapter 7")
	}
}

func TestClassifier_SectionExtraction(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "markdown heading",
			content: "## Using Type Guards\n\nGuards narrow a union inside a branch.",
			want:    "Using Type Guards",
		},
		{
			name:    "decimal heading",
			content: "3.2 Understanding Assignability\n\nAssignability follows shapes.",
			want:    "3.2 Understanding Assignability",
		},
		{
			name:    "title case subtitle",
			content: "Structural Type Equivalence\nThe compiler compares shapes.",
			want:    "Structural Type Equivalence",
		},
		{
			name:    "section label",
			content: "Section: Working with Enums\nEnums group related constants.",
			want:    "Working with Enums",
		},
		{
			name:    "no heading no history",
			content: "Plain body text continues here.",
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClassifier("Essential TypeScript 5", 10)
			md := c.Classify(tt.content, 0, 10)
			if md.Section != tt.want {
				t.Errorf("section = %q, want %q", md.Section, tt.want)
			}
		})
	}
}

func TestClassifier_SectionPropagation(t *testing.T) {
	c := NewClassifier("Essential TypeScript 5", 10)

	md := c.Classify("## Generic Constraints\n\nConstraints bound type parameters.", 0, 10)
	if md.Section != "Generic Constraints" {
		t.Fatalf("section = %q, want %q", md.Section, "Generic Constraints")
	}

	md = c.Classify("Further discussion without a heading of its own.", 1, 10)
	if md.Section != "Generic Constraints" {
		t.Errorf("propagated section = %q, want %q", md.Section, "Generic Constraints")
	}
}
