package store

import "github.com/scrypster/recall/pkg/types"

// Stats is a point-in-time snapshot of store contents.
type Stats struct {
	TotalRecords      int                      `json:"total_records"`
	UserCount         int                      `json:"user_count"`
	TypeDistribution  map[types.MemoryType]int `json:"type_distribution"`
	AverageImportance float64                  `json:"average_importance"`
}

// Statistics computes aggregate counts in one pass under the read lock.
func (s *Store) Statistics() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		TotalRecords:     len(s.records),
		UserCount:        len(s.userIndex),
		TypeDistribution: make(map[types.MemoryType]int),
	}
	var sum float64
	for _, rec := range s.records {
		st.TypeDistribution[rec.Type]++
		sum += rec.Importance
	}
	if st.TotalRecords > 0 {
		st.AverageImportance = sum / float64(st.TotalRecords)
	}
	return st
}
