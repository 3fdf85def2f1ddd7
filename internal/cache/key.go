package cache

import (
	"sort"
	"strings"

	"github.com/docmind/backend/pkg/utils"
)

// Key builds the deterministic cache key for an answer: a stable hash of the
// normalized query, the sorted document scope, and the answer-length
// preference. Equivalent requests collide regardless of scope ordering.
func Key(query string, scope []string, length string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))

	sortedScope := make([]string, len(scope))
	copy(sortedScope, scope)
	sort.Strings(sortedScope)

	parts := []string{normalized, strings.Join(sortedScope, ","), length}
	return utils.HashString(strings.Join(parts, "|"))
}
