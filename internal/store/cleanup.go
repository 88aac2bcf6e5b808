package store

import (
	"sort"
	"time"

	"github.com/scrypster/recall/pkg/types"
)

// CleanupResult summarizes one batch cleanup pass.
type CleanupResult struct {
	Removed int
	Kept    int
}

// CleanupExpired removes, in one pass, every non-protected record that is
// both older than maxAge and below minImportance, then trims each user back
// to maxPerUser by eviction score. Pinned and profile records are never
// touched and do not count against the age cut, but they do occupy
// capacity slots.
func (s *Store) CleanupExpired(maxAge time.Duration, maxPerUser int, minImportance float64) CleanupResult {
	cfg := s.scoringConfig()
	now := s.now()

	var removed []string
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return CleanupResult{}
	}

	for id, rec := range s.records {
		if rec.Type.Protected() {
			continue
		}
		if now.Sub(rec.CreatedAt) > maxAge && rec.Importance < minImportance {
			s.deleteLocked(rec)
			removed = append(removed, id)
		}
	}

	if maxPerUser > 0 {
		for _, ids := range s.userIndex {
			if len(ids) <= maxPerUser {
				continue
			}
			// Evict lowest-scoring first until the user fits.
			candidates := make([]*types.MemoryRecord, 0, len(ids))
			for id := range ids {
				if rec, ok := s.records[id]; ok && !rec.Type.Protected() {
					candidates = append(candidates, rec)
				}
			}
			sort.Slice(candidates, func(i, j int) bool {
				return evictionScore(cfg, candidates[i], now) < evictionScore(cfg, candidates[j], now)
			})
			excess := len(ids) - maxPerUser
			if excess > len(candidates) {
				excess = len(candidates)
			}
			for _, rec := range candidates[:excess] {
				s.deleteLocked(rec)
				removed = append(removed, rec.ID)
			}
		}
	}

	kept := len(s.records)
	if len(removed) > 0 {
		s.markDirtyLocked()
	}
	s.mu.Unlock()

	if s.notifier != nil {
		for _, id := range removed {
			s.notifier.Forget(id)
		}
	}
	return CleanupResult{Removed: len(removed), Kept: kept}
}
