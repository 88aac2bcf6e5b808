package facts

import (
	"strings"

	"github.com/scrypster/recall/pkg/types"
)

// DetectConflicts compares incoming facts against existing ones and
// returns a conflict for every key present in both sets with differing
// normalized values.
//
// The existing set is folded into a map once, so the whole detection is
// O(len(existing) + len(incoming)). The existing-fact set grows with user
// tenure, which rules out the obvious all-pairs comparison.
func DetectConflicts(existing, incoming []types.Fact) []types.FactConflict {
	if len(existing) == 0 || len(incoming) == 0 {
		return nil
	}

	prev := make(map[string]string, len(existing))
	for _, f := range existing {
		prev[normalizeKey(f.Key)] = f.Value
	}

	var conflicts []types.FactConflict
	reported := make(map[string]bool)
	for _, f := range incoming {
		key := normalizeKey(f.Key)
		old, ok := prev[key]
		if !ok || reported[key] {
			continue
		}
		if normalizeValue(old) == normalizeValue(f.Value) {
			continue
		}
		reported[key] = true
		conflicts = append(conflicts, types.FactConflict{
			Key:  f.Key,
			Prev: old,
			Next: f.Value,
		})
	}
	return conflicts
}

// normalizeKey folds case and trims space so "Name" and "name " collide.
func normalizeKey(k string) string {
	return strings.ToLower(strings.TrimSpace(k))
}

// normalizeValue makes value comparison insensitive to case and
// surrounding whitespace. Values differing only in these are not
// contradictions.
func normalizeValue(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
