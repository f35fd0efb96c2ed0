package store

import (
	"context"
	"fmt"
	"strings"
)

// maxSearchTermLength caps free-text search input. An unbounded term wastes
// planner time and an adversarial one can force pathological LIKE scans.
const maxSearchTermLength = 100

// escapeLike neutralizes LIKE wildcard characters in user input. An
// unescaped % or _ silently matches far more rows than intended, which is a
// correctness problem for callers acting on the result set, not just a
// hardening concern.
func escapeLike(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(term)
}

// SearchDirectories returns active catalog directories whose name contains
// the term, case-insensitively
func (s *Store) SearchDirectories(ctx context.Context, term string, limit int) ([]Directory, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, fmt.Errorf("search term is required")
	}
	if len(term) > maxSearchTermLength {
		term = term[:maxSearchTermLength]
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := `
		SELECT id, name, category, submit_url, active, created_at
		FROM directories
		WHERE active = TRUE
		  AND name ILIKE '%' || $1 || '%' ESCAPE '\'
		ORDER BY name ASC
		LIMIT $2
	`

	var dirs []Directory
	if err := s.db.SelectContext(ctx, &dirs, query, escapeLike(term), limit); err != nil {
		return nil, fmt.Errorf("failed to search directories: %w", err)
	}

	return dirs, nil
}
