// Package dedup removes duplicate studies returned by different sources.
//
// Two studies are duplicates when their titles share the same normalized
// prefix. The first occurrence wins, so callers control which copy is kept
// through the order of the input.
package dedup

import (
	"strings"

	"github.com/helixir/evidence-search-service/internal/domain"
)

// KeyLength is the number of characters of the normalized title compared.
const KeyLength = 50

// Key returns the deduplication key of a title: lower-cased, trimmed and
// truncated to KeyLength characters.
func Key(title string) string {
	key := strings.ToLower(strings.TrimSpace(title))
	n := 0
	for i := range key {
		if n == KeyLength {
			return key[:i]
		}
		n++
	}
	return key
}

// ByTitle returns studies with title duplicates removed, preserving the
// order of first occurrences. Studies with an empty key are always kept.
// The input slice is not modified.
func ByTitle(studies []domain.Study) []domain.Study {
	seen := make(map[string]struct{}, len(studies))
	unique := make([]domain.Study, 0, len(studies))

	for _, s := range studies {
		key := Key(s.Title)
		if key == "" {
			unique = append(unique, s)
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, s)
	}

	return unique
}
