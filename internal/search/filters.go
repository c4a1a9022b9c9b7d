package search

import (
	"fmt"
	"strings"
)

// sqlConditions renders the filter as a SQL WHERE clause with positional
// placeholders starting at startIdx. Returns an empty string and no args when
// the filter is zero. The leading " WHERE " is included so callers can splice
// the clause directly; callers that already have a WHERE rewrite it to AND.
func (f Filters) sqlConditions(startIdx int) (string, []any) {
	if f.IsZero() {
		return "", nil
	}

	var conds []string
	var args []any

	next := func() int { return startIdx + len(args) }

	if f.Type != "" {
		conds = append(conds, fmt.Sprintf("chunk_type = $%d", next()))
		args = append(args, f.Type)
	}
	if f.Chapter != "" {
		conds = append(conds, fmt.Sprintf("chapter = $%d", next()))
		args = append(args, f.Chapter)
	}
	if f.Section != "" {
		conds = append(conds, fmt.Sprintf("section = $%d", next()))
		args = append(args, f.Section)
	}
	if f.MinPage != nil {
		conds = append(conds, fmt.Sprintf("page >= $%d", next()))
		args = append(args, *f.MinPage)
	}
	if f.MaxPage != nil {
		conds = append(conds, fmt.Sprintf("page <= $%d", next()))
		args = append(args, *f.MaxPage)
	}

	return " WHERE " + strings.Join(conds, " AND "), args
}
