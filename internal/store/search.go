package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/scrypster/recall/internal/config"
	"github.com/scrypster/recall/internal/embedding"
	"github.com/scrypster/recall/pkg/types"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 100
)

// Query narrows a similarity search. All filters are conjunctive and are
// applied before any vector math so non-matching records cost nothing.
type Query struct {
	UserID string
	Text   string

	Types         []types.MemoryType
	Category      string
	Tags          []string
	MinImportance float64
	CreatedAfter  time.Time
	CreatedBefore time.Time

	// Threshold rejects candidates whose cosine similarity falls below
	// it, before composite scoring.
	Threshold float64
	Limit     int
}

// Result is one search hit. Rank is 1-based within the returned page.
type Result struct {
	Record     *types.MemoryRecord
	Similarity float64
	Score      float64
	Rank       int
}

// Search embeds the query text, scores the user's filtered candidates and
// returns the top results by composite score. Returned records have had
// their access stats bumped.
func (s *Store) Search(ctx context.Context, q Query) ([]Result, error) {
	if q.UserID == "" {
		return nil, fmt.Errorf("%w: user ID is required", types.ErrValidation)
	}
	if q.Text == "" {
		return nil, fmt.Errorf("%w: query text is required", types.ErrValidation)
	}
	if q.Limit <= 0 {
		q.Limit = defaultSearchLimit
	}
	if q.Limit > maxSearchLimit {
		q.Limit = maxSearchLimit
	}
	if q.Threshold < 0 {
		q.Threshold = 0
	}

	queryVec := s.embedder.embed(ctx, q.Text)
	cfg := s.scoringConfig()
	now := s.now()

	type hit struct {
		id         string
		similarity float64
		score      float64
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, types.ErrClosed
	}
	candidates := make([]hit, 0, 32)
	for id := range s.userIndex[q.UserID] {
		rec, ok := s.records[id]
		if !ok || !q.matches(rec) {
			continue
		}
		sim := embedding.CosineSimilarity(queryVec, rec.PrimaryEmbedding)
		if sim < q.Threshold {
			continue
		}
		candidates = append(candidates, hit{
			id:         id,
			similarity: sim,
			score:      compositeScore(cfg, rec, sim, q.Text, now),
		})
	}
	s.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		if candidates[i].similarity != candidates[j].similarity {
			return candidates[i].similarity > candidates[j].similarity
		}
		return candidates[i].id < candidates[j].id
	})
	if len(candidates) > q.Limit {
		candidates = candidates[:q.Limit]
	}

	// Bump access stats for the winners only, then clone under the same
	// lock so the returned records reflect the bump.
	results := make([]Result, 0, len(candidates))
	s.mu.Lock()
	for _, c := range candidates {
		rec, ok := s.records[c.id]
		if !ok {
			continue
		}
		rec.LastAccessedAt = now
		rec.AccessCount++
		results = append(results, Result{
			Record:     rec.Clone(),
			Similarity: c.similarity,
			Score:      c.score,
			Rank:       len(results) + 1,
		})
	}
	if len(results) > 0 {
		s.markDirtyLocked()
	}
	s.mu.Unlock()

	return results, nil
}

// matches applies the metadata filters. Zero-valued filters match
// everything.
func (q Query) matches(rec *types.MemoryRecord) bool {
	if len(q.Types) > 0 {
		found := false
		for _, t := range q.Types {
			if rec.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q.Category != "" && rec.Category != q.Category {
		return false
	}
	if rec.Importance < q.MinImportance {
		return false
	}
	if !q.CreatedAfter.IsZero() && !rec.CreatedAt.After(q.CreatedAfter) {
		return false
	}
	if !q.CreatedBefore.IsZero() && !rec.CreatedAt.Before(q.CreatedBefore) {
		return false
	}
	for _, want := range q.Tags {
		found := false
		for _, have := range rec.Tags {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// compositeScore blends similarity with importance, time decay and access
// frequency, plus small lexical bonuses for short content and literal
// substring matches. The weighted terms each stay in [0, 1]; the bonuses
// can push the total slightly above 1.
func compositeScore(cfg *config.ScoringConfig, rec *types.MemoryRecord, similarity float64, queryText string, now time.Time) float64 {
	w := cfg.Composite

	decay := math.Exp(-rec.AgeDays(now) / w.TimeDecayDays)
	access := math.Min(1, float64(rec.AccessCount)/w.AccessNormBase)

	score := w.Similarity*similarity +
		w.Importance*rec.Importance +
		w.TimeDecay*decay +
		w.Access*access

	contentRunes := len([]rune(rec.Content))
	queryRunes := len([]rune(queryText))
	if contentRunes <= w.ShortContentRunes && queryRunes <= w.ShortContentRunes {
		score += w.ShortContentBonus
	}
	if queryRunes > w.SubstringMinQueryLen &&
		strings.Contains(strings.ToLower(rec.Content), strings.ToLower(queryText)) {
		score += w.SubstringBonus
	}
	return score
}
