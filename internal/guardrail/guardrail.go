// Package guardrail decides whether a question is plausibly about the
// supported book before any retrieval or generation cost is spent.
package guardrail

import "strings"

// Default term sets for the TypeScript corpus. Keywords confirm scope,
// blocked terms name other languages, strong terms override a blocked match
// ("migrate from python to typescript" is in scope).
var (
	defaultStrong = []string{"typescript"}

	defaultKeywords = []string{
		"typescript", "ts", "type", "interface", "generic", "enum",
		"class", "function", "const", "let", "var",
		"import", "export", "module", "namespace", "decorator",
		"async", "await", "promise",
		"array", "object", "string", "number", "boolean",
		"void", "never", "any", "unknown", "tuple",
		"union", "intersection", "literal", "readonly",
		"partial", "required", "pick", "omit", "record",
	}

	defaultBlocked = []string{"python", "java", "c++", "rust", "go", "ruby", "php"}
)

// Classifier is a pure keyword heuristic, not a learned model. False
// positives and negatives are accepted background noise; the safe default
// for an unmatched query is refusal.
type Classifier struct {
	strong   map[string]struct{}
	keywords map[string]struct{}
	blocked  map[string]struct{}
}

// New creates a Classifier with the default TypeScript term sets.
func New() *Classifier {
	return NewWithTerms(defaultStrong, defaultKeywords, defaultBlocked)
}

// NewWithTerms creates a Classifier with custom term sets. All terms are
// matched as whole tokens, case-insensitively.
func NewWithTerms(strong, keywords, blocked []string) *Classifier {
	return &Classifier{
		strong:   toSet(strong),
		keywords: toSet(keywords),
		blocked:  toSet(blocked),
	}
}

// InScope reports whether the question is about the supported domain.
//
// A blocked term rejects the question unless a strong term also appears.
// Otherwise the question is accepted iff at least one keyword appears.
// Matching is on whole tokens, so "go" in "algorithm" or "ts" in "tests"
// never fires. Never fails; short or empty questions are simply rejected.
func (c *Classifier) InScope(question string) bool {
	tokens := tokenize(question)

	var hasStrong, hasBlocked, hasKeyword bool
	for _, t := range tokens {
		if _, ok := c.strong[t]; ok {
			hasStrong = true
		}
		if _, ok := c.blocked[t]; ok {
			hasBlocked = true
		}
		if _, ok := c.keywords[t]; ok {
			hasKeyword = true
		}
	}

	if hasBlocked && !hasStrong {
		return false
	}
	return hasKeyword
}

// tokenize lowercases the question and splits it into word tokens. '+' and
// '#' count as word characters so language names like "c++" survive intact.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '+', r == '#':
			return false
		}
		return true
	})
}

func toSet(terms []string) map[string]struct{} {
	set := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		set[strings.ToLower(t)] = struct{}{}
	}
	return set
}
