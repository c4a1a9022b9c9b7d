package search

// Chunk type constants. Every indexed passage is classified into exactly one
// of these categories at ingestion time.
const (
	TypeCode        = "code"
	TypeExplanation = "explanation"
	TypeExample     = "example"
	TypeReference   = "reference"
)

// ValidType reports whether t is a known chunk type.
func ValidType(t string) bool {
	switch t {
	case TypeCode, TypeExplanation, TypeExample, TypeReference:
		return true
	}
	return false
}

// Metadata is the classification metadata attached to a chunk at ingestion.
type Metadata struct {
	Page      int    `json:"page"`
	Chapter   string `json:"chapter"`
	Section   string `json:"section,omitempty"`
	Type      string `json:"type"`
	BookTitle string `json:"bookTitle"`
}

// Chunk is a contiguous span of book text with its embedding and metadata.
// Chunks are immutable after ingestion.
type Chunk struct {
	Text      string
	Embedding []float32
	Metadata  Metadata
}

// Result is a single search hit. The meaning of Score depends on the search
// that produced it: cosine similarity for vector search, ts_rank_cd relevance
// for full-text search, or a fused RRF sum for hybrid search. Scores from
// different origins are never comparable without fusion.
type Result struct {
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
	Score    float64  `json:"score"`
}

// Filters restricts searches to chunks matching all set fields.
// Zero values ("" / nil) mean "no constraint". The page bounds are pointers so
// that page 0 remains expressible as an explicit bound.
type Filters struct {
	Type    string `json:"type,omitempty"`
	Chapter string `json:"chapter,omitempty"`
	Section string `json:"section,omitempty"`
	MinPage *int   `json:"minPage,omitempty"`
	MaxPage *int   `json:"maxPage,omitempty"`
}

// IsZero reports whether no filter field is set.
func (f Filters) IsZero() bool {
	return f.Type == "" && f.Chapter == "" && f.Section == "" && f.MinPage == nil && f.MaxPage == nil
}
