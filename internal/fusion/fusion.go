// Package fusion merges a heuristic/vector-ranked result list with a
// keyword-ranked list into one ordering. Vector similarity and keyword
// relevance measure different things on different scales; each list is
// normalized by its own maximum before the weighted combination so neither
// scale dominates.
package fusion

import (
	"math"
	"sort"
)

// HeuristicItem is one entry from the heuristic/vector-ranked list.
type HeuristicItem struct {
	// Key identifies the item across both lists (record ID or content).
	Key string

	// Score is the raw heuristic score; only its relative magnitude
	// within this list matters.
	Score float64

	// Order is the item's 1-based position in the heuristic ranking and
	// breaks combined-score ties (lower order wins).
	Order int
}

// KeywordItem is one entry from the keyword-ranked list.
type KeywordItem struct {
	Key   string
	Score float64
}

// Result is one fused entry.
type Result struct {
	Key   string
	Score float64
}

// Options configures a fusion pass.
type Options struct {
	// HeuristicWeight and KeywordWeight blend the two normalized signals.
	// Defaults: 0.7 and 0.3.
	HeuristicWeight float64
	KeywordWeight   float64

	// Pinned keys receive PinnedBoost on top of the blended score.
	Pinned      map[string]bool
	PinnedBoost float64

	// Limit truncates the output; zero or negative means no truncation.
	Limit int
}

// Fuse combines the two rankings. An item present in only one list keeps
// that list's weighted normalized score — absence from the other list is
// not a penalty to zero.
func Fuse(heuristic []HeuristicItem, keyword []KeywordItem, opts Options) []Result {
	if opts.HeuristicWeight == 0 && opts.KeywordWeight == 0 {
		opts.HeuristicWeight = 0.7
		opts.KeywordWeight = 0.3
	}

	var maxH float64
	for _, it := range heuristic {
		if it.Score > maxH {
			maxH = it.Score
		}
	}
	var maxK float64
	for _, it := range keyword {
		if it.Score > maxK {
			maxK = it.Score
		}
	}

	type fused struct {
		key   string
		score float64
		order int
	}
	byKey := make(map[string]*fused, len(heuristic)+len(keyword))
	var ordered []*fused

	for _, it := range heuristic {
		norm := 0.0
		if maxH > 0 {
			norm = it.Score / maxH
		}
		f := &fused{key: it.Key, score: opts.HeuristicWeight * norm, order: it.Order}
		byKey[it.Key] = f
		ordered = append(ordered, f)
	}

	for _, it := range keyword {
		norm := 0.0
		if maxK > 0 {
			norm = it.Score / maxK
		}
		if f, ok := byKey[it.Key]; ok {
			f.score += opts.KeywordWeight * norm
			continue
		}
		// Keyword-only items carry no heuristic order; they lose ties.
		f := &fused{key: it.Key, score: opts.KeywordWeight * norm, order: math.MaxInt}
		byKey[it.Key] = f
		ordered = append(ordered, f)
	}

	if opts.PinnedBoost != 0 {
		for _, f := range ordered {
			if opts.Pinned[f.key] {
				f.score += opts.PinnedBoost
			}
		}
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].score != ordered[j].score {
			return ordered[i].score > ordered[j].score
		}
		return ordered[i].order < ordered[j].order
	})

	if opts.Limit > 0 && len(ordered) > opts.Limit {
		ordered = ordered[:opts.Limit]
	}

	out := make([]Result, len(ordered))
	for i, f := range ordered {
		out[i] = Result{Key: f.key, Score: f.score}
	}
	return out
}
