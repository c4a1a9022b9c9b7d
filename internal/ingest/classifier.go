package ingest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bookwise-ai/bookwise/internal/search"
)

// Content type heuristics. A chunk is code when at least this many code
// patterns match.
const codeMatchThreshold = 3

// Page proximity windows for heading propagation. Sections change more
// often than chapters, so their window is tighter.
const (
	chapterPageWindow = 5
	sectionPageWindow = 3
)

var codePatterns = []*regexp.Regexp{
	regexp.MustCompile("```"),
	regexp.MustCompile(`function\s+\w+`),
	regexp.MustCompile(`class\s+\w+`),
	regexp.MustCompile(`interface\s+\w+`),
	regexp.MustCompile(`const\s+\w+\s*=`),
	regexp.MustCompile(`let\s+\w+\s*=`),
	regexp.MustCompile(`type\s+\w+\s*=`),
	regexp.MustCompile(`enum\s+\w+`),
	regexp.MustCompile(`import\s+.*from`),
	regexp.MustCompile(`export\s+(class|function|interface|type|const)`),
}

var examplePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?im)^example\s+\d+`),
	regexp.MustCompile(`(?i)for example`),
	regexp.MustCompile(`(?i)the following example`),
	regexp.MustCompile(`(?i)listing\s+\d+`),
	regexp.MustCompile(`(?i)demonstrates`),
}

var referencePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?im)^see also`),
	regexp.MustCompile(`(?im)^note:`),
	regexp.MustCompile(`(?im)^tip:`),
	regexp.MustCompile(`(?im)^warning:`),
	regexp.MustCompile(`(?im)^caution:`),
	regexp.MustCompile(`(?i)refer to`),
	regexp.MustCompile(`(?i)described in chapter`),
}

var (
	pagePattern     = regexp.MustCompile(`(?i)\bpage\s+(\d+)\b`)
	pageAbbrPattern = regexp.MustCompile(`(?i)\bp\.\s*(\d+)\b`)

	chapterTitlePattern  = regexp.MustCompile(`(?i)chapter\s+(\d+)\s*[:\-]\s*([^\n]+)`)
	chapterSimplePattern = regexp.MustCompile(`(?i)chapter\s+(\d+)`)
	partPattern          = regexp.MustCompile(`(?im)^(part|section)\s+([IVX\d]+)[:\-\s]+([^\n]+)`)
	capsTitlePattern     = regexp.MustCompile(`(?m)^([A-Z][A-Z\s]{15,})$`)
	skipCapsPattern      = regexp.MustCompile(`(?i)^(TABLE OF CONTENTS|INDEX|REFERENCES|BIBLIOGRAPHY|APPENDIX)`)
	decimalHeadPattern   = regexp.MustCompile(`(?m)^(\d+\.\d+)\s+([^\n]+)`)

	markdownHeadPattern = regexp.MustCompile(`(?m)^#{2,3}\s+(.+)$`)
	subtitlePattern     = regexp.MustCompile(`(?m)^([A-Z][a-z]+(?:\s+[A-Z][a-z]+){1,4})$`)
	sectionLabelPattern = regexp.MustCompile(`(?im)^section[:\s]+(.+)$`)
)

// Classifier derives chunk metadata from content heuristics. Chapter and
// section headings appear only in the chunks where the heading text falls,
// so the classifier carries the last seen heading forward across chunks and
// looks it up by page proximity. One Classifier instance per document;
// chunks must be fed in document order.
type Classifier struct {
	bookTitle string
	pageCount int

	lastChapter    string
	lastSection    string
	chaptersByPage map[int]string
	sectionsByPage map[int]string
}

// NewClassifier creates a Classifier for one document. pageCount is used to
// estimate page numbers for chunks carrying no page marker.
func NewClassifier(bookTitle string, pageCount int) *Classifier {
	if pageCount <= 0 {
		pageCount = 1
	}
	return &Classifier{
		bookTitle:      bookTitle,
		pageCount:      pageCount,
		chaptersByPage: make(map[int]string),
		sectionsByPage: make(map[int]string),
	}
}

// Classify derives the metadata for one chunk. chunkIndex and totalChunks
// drive the page estimate when the text itself names no page.
func (c *Classifier) Classify(content string, chunkIndex, totalChunks int) search.Metadata {
	page := extractPage(content, c.estimatePage(chunkIndex, totalChunks))
	return search.Metadata{
		Page:      page,
		Chapter:   c.extractChapter(content, page),
		Section:   c.extractSection(content, page),
		Type:      ClassifyType(content),
		BookTitle: c.bookTitle,
	}
}

// estimatePage assumes chunks are distributed uniformly across the book.
func (c *Classifier) estimatePage(chunkIndex, totalChunks int) int {
	if totalChunks <= 0 {
		return 1
	}
	return chunkIndex*c.pageCount/totalChunks + 1
}

// ClassifyType classifies chunk content as code, example, reference, or
// explanation (the default).
func ClassifyType(content string) string {
	codeMatches := 0
	for _, p := range codePatterns {
		codeMatches += len(p.FindAllStringIndex(content, -1))
	}
	if codeMatches >= codeMatchThreshold {
		return search.TypeCode
	}

	for _, p := range examplePatterns {
		if p.MatchString(content) {
			return search.TypeExample
		}
	}

	for _, p := range referencePatterns {
		if p.MatchString(content) {
			return search.TypeReference
		}
	}

	return search.TypeExplanation
}

// extractPage pulls a "Page X" or "p. X" marker out of the content, falling
// back to the estimate.
func extractPage(content string, fallback int) int {
	m := pagePattern.FindStringSubmatch(content)
	if m == nil {
		m = pageAbbrPattern.FindStringSubmatch(content)
	}
	if m != nil {
		var page int
		if _, err := fmt.Sscanf(m[1], "%d", &page); err == nil {
			return page
		}
	}
	return fallback
}

func (c *Classifier) extractChapter(content string, page int) string {
	if m := chapterTitlePattern.FindStringSubmatch(content); m != nil {
		return c.recordChapter(fmt.Sprintf("Chapter %s: %s", m[1], strings.TrimSpace(m[2])), page)
	}
	if m := chapterSimplePattern.FindStringSubmatch(content); m != nil {
		return c.recordChapter("Chapter "+m[1], page)
	}
	if m := partPattern.FindStringSubmatch(content); m != nil {
		return c.recordChapter(fmt.Sprintf("%s %s: %s", m[1], m[2], strings.TrimSpace(m[3])), page)
	}
	if m := capsTitlePattern.FindStringSubmatch(content); m != nil {
		title := strings.TrimSpace(m[1])
		if !skipCapsPattern.MatchString(title) {
			return c.recordChapter(title, page)
		}
	}
	if m := decimalHeadPattern.FindStringSubmatch(content); m != nil && len(m[2]) > 10 {
		return c.recordChapter(fmt.Sprintf("Section %s: %s", m[1], strings.TrimSpace(m[2])), page)
	}

	// No heading in this chunk: reuse a chapter seen on a nearby page, or
	// the last one seen at all.
	if c.lastChapter != "" {
		for offset := 0; offset <= chapterPageWindow; offset++ {
			if ch, ok := c.chaptersByPage[page-offset]; ok {
				return ch
			}
			if ch, ok := c.chaptersByPage[page+offset]; ok {
				return ch
			}
		}
		return c.lastChapter
	}

	return "Unknown Chapter"
}

func (c *Classifier) recordChapter(chapter string, page int) string {
	c.lastChapter = chapter
	c.chaptersByPage[page] = chapter
	return chapter
}

func (c *Classifier) extractSection(content string, page int) string {
	if m := markdownHeadPattern.FindStringSubmatch(content); m != nil {
		return c.recordSection(strings.TrimSpace(m[1]), page)
	}
	if m := decimalHeadPattern.FindStringSubmatch(content); m != nil && len(m[2]) > 5 {
		return c.recordSection(m[1]+" "+strings.TrimSpace(m[2]), page)
	}
	if m := subtitlePattern.FindStringSubmatch(content); m != nil && len(m[1]) > 10 {
		return c.recordSection(strings.TrimSpace(m[1]), page)
	}
	if m := sectionLabelPattern.FindStringSubmatch(content); m != nil {
		return c.recordSection(strings.TrimSpace(m[1]), page)
	}

	if c.lastSection != "" {
		for offset := 0; offset <= sectionPageWindow; offset++ {
			if sec, ok := c.sectionsByPage[page-offset]; ok {
				return sec
			}
			if sec, ok := c.sectionsByPage[page+offset]; ok {
				return sec
			}
		}
		return c.lastSection
	}

	return ""
}

func (c *Classifier) recordSection(section string, page int) string {
	c.lastSection = section
	c.sectionsByPage[page] = section
	return section
}
