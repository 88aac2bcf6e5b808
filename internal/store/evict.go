package store

import (
	"math"
	"time"

	"github.com/scrypster/recall/internal/config"
	"github.com/scrypster/recall/pkg/types"
)

// evictionScore ranks a record for capacity eviction. Higher means more
// worth keeping. Deliberately distinct from the query-time composite:
// eviction judges intrinsic worth without any query in hand.
func evictionScore(cfg *config.ScoringConfig, rec *types.MemoryRecord, now time.Time) float64 {
	w := cfg.Eviction
	inactiveDays := now.Sub(rec.EffectiveLastAccess()).Hours() / 24
	inactivityRatio := math.Min(inactiveDays/w.MaxAgeWindowDays, 1)
	return w.Importance*rec.Importance + w.Recency*(1-inactivityRatio)
}

// evictLowestLocked removes the user's lowest-scoring non-protected record
// and returns its ID. Pinned and profile records never qualify; when only
// protected records remain the user is allowed over capacity. Callers hold
// the write lock.
func (s *Store) evictLowestLocked(userID string, now time.Time) (string, bool) {
	cfg := s.scoringConfig()

	var victim *types.MemoryRecord
	lowest := math.Inf(1)
	for id := range s.userIndex[userID] {
		rec, ok := s.records[id]
		if !ok || rec.Type.Protected() {
			continue
		}
		if score := evictionScore(cfg, rec, now); score < lowest {
			lowest = score
			victim = rec
		}
	}
	if victim == nil {
		return "", false
	}
	s.deleteLocked(victim)
	return victim.ID, true
}
