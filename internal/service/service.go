// Package service is the composition facade over the memory engine. It
// ties together fact extraction, conflict detection, the vector store, the
// keyword index and hybrid fusion behind the operations callers actually
// use: write, search, hybrid search, lifecycle sweep.
package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/scrypster/recall/internal/facts"
	"github.com/scrypster/recall/internal/fusion"
	"github.com/scrypster/recall/internal/index"
	"github.com/scrypster/recall/internal/lifecycle"
	"github.com/scrypster/recall/internal/store"
	"github.com/scrypster/recall/pkg/types"
)

// KeywordSearcher is the slice of the keyword index the service reads
// from. Writes flow through the store's notifier, not through here.
type KeywordSearcher interface {
	Search(ctx context.Context, userID, query string, limit int) ([]index.Hit, error)
}

// Service is the single entry point for callers. Construct with New and
// share freely; all methods are safe for concurrent use.
type Service struct {
	store    *store.Store
	keywords KeywordSearcher
	lifecyc  *lifecycle.Manager
	fusionW  func() fusionWeights
}

type fusionWeights struct {
	heuristic   float64
	keyword     float64
	pinnedBoost float64
}

// Deps carries the service's collaborators.
type Deps struct {
	Store     *store.Store
	Keywords  KeywordSearcher // nil disables hybrid search
	Lifecycle *lifecycle.Manager

	// FusionWeights returns the current hybrid weights; read per query so
	// config hot reloads apply. Nil uses 0.7 / 0.3 / 0.2.
	FusionWeights func() (heuristic, keyword, pinnedBoost float64)
}

// New wires the facade.
func New(deps Deps) (*Service, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("service: store is required")
	}
	s := &Service{
		store:    deps.Store,
		keywords: deps.Keywords,
		lifecyc:  deps.Lifecycle,
	}
	if deps.FusionWeights != nil {
		s.fusionW = func() fusionWeights {
			h, k, p := deps.FusionWeights()
			return fusionWeights{h, k, p}
		}
	} else {
		s.fusionW = func() fusionWeights {
			return fusionWeights{0.7, 0.3, 0.2}
		}
	}
	return s, nil
}

// WriteOptions refines a memory write.
type WriteOptions struct {
	Type       types.MemoryType
	Importance float64
	Category   string
	Tags       []string
	Media      *types.Media
	MediaData  []byte

	// AutoResolveConflicts writes through detected fact conflicts instead
	// of aborting. The conflicts are still reported so the caller can
	// reconcile the superseded records.
	AutoResolveConflicts bool
}

// WriteResult reports the outcome of one write.
type WriteResult struct {
	ID        string               `json:"id,omitempty"`
	Written   bool                 `json:"written"`
	Facts     []types.Fact         `json:"facts,omitempty"`
	Conflicts []types.FactConflict `json:"conflicts,omitempty"`

	// TraceID correlates the write across log lines.
	TraceID string `json:"trace_id"`
}

// Write extracts facts from the text, checks them against the user's
// long-term and profile memories, and stores the record. When conflicts
// are found and AutoResolveConflicts is off, nothing is written and the
// conflicts come back for the caller to resolve.
func (s *Service) Write(ctx context.Context, userID, text string, opts WriteOptions) (WriteResult, error) {
	res := WriteResult{TraceID: uuid.NewString()}

	incoming := facts.ExtractFacts(text)
	res.Facts = incoming

	if len(incoming) > 0 {
		existing := s.establishedFacts(userID)
		res.Conflicts = facts.DetectConflicts(existing, incoming)
		if len(res.Conflicts) > 0 && !opts.AutoResolveConflicts {
			log.Printf("write %s: %d fact conflict(s) for user %s, holding write", res.TraceID, len(res.Conflicts), userID)
			return res, nil
		}
	}

	id, err := s.store.Add(ctx, store.AddRequest{
		UserID:     userID,
		Content:    text,
		Type:       opts.Type,
		Importance: opts.Importance,
		Category:   opts.Category,
		Tags:       opts.Tags,
		Media:      opts.Media,
		MediaData:  opts.MediaData,
	})
	if err != nil {
		return res, err
	}
	res.ID = id
	res.Written = true
	return res, nil
}

// establishedFacts harvests facts from the user's durable memories. Only
// long-term and profile records count as established; short-lived chatter
// must not block new writes.
func (s *Service) establishedFacts(userID string) []types.Fact {
	var out []types.Fact
	for _, rec := range s.store.GetAllForUser(userID) {
		if rec.Type != types.LongTerm && rec.Type != types.Profile {
			continue
		}
		out = append(out, facts.ExtractFacts(rec.Content)...)
	}
	return out
}

// Search runs the store's similarity search directly.
func (s *Service) Search(ctx context.Context, q store.Query) ([]store.Result, error) {
	return s.store.Search(ctx, q)
}

// HybridSearch fuses the store's composite ranking with the keyword
// index's ranking. A keyword backend failure degrades to heuristic-only
// results rather than failing the query.
func (s *Service) HybridSearch(ctx context.Context, q store.Query) ([]store.Result, error) {
	heuristicResults, err := s.store.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	if s.keywords == nil {
		return heuristicResults, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}
	// Over-fetch keyword hits so fusion has candidates beyond the final page.
	hits, err := s.keywords.Search(ctx, q.UserID, q.Text, limit*3)
	if err != nil {
		log.Printf("WARNING: keyword search failed, degrading to heuristic only: %v", err)
		return heuristicResults, nil
	}
	if len(hits) == 0 {
		return heuristicResults, nil
	}

	heuristic := make([]fusion.HeuristicItem, len(heuristicResults))
	byID := make(map[string]store.Result, len(heuristicResults))
	pinned := make(map[string]bool)
	for i, r := range heuristicResults {
		heuristic[i] = fusion.HeuristicItem{Key: r.Record.ID, Score: r.Score, Order: i}
		byID[r.Record.ID] = r
		if r.Record.Type == types.Pinned {
			pinned[r.Record.ID] = true
		}
	}
	keyword := make([]fusion.KeywordItem, 0, len(hits))
	for _, h := range hits {
		keyword = append(keyword, fusion.KeywordItem{Key: h.ID, Score: h.Score})
		if _, ok := byID[h.ID]; !ok {
			if rec, found := s.store.GetByID(h.ID); found && rec.UserID == q.UserID {
				byID[h.ID] = store.Result{Record: rec}
				if rec.Type == types.Pinned {
					pinned[h.ID] = true
				}
			}
		}
	}

	w := s.fusionW()
	fused := fusion.Fuse(heuristic, keyword, fusion.Options{
		HeuristicWeight: w.heuristic,
		KeywordWeight:   w.keyword,
		Pinned:          pinned,
		PinnedBoost:     w.pinnedBoost,
		Limit:           limit,
	})

	out := make([]store.Result, 0, len(fused))
	for i, f := range fused {
		r, ok := byID[f.Key]
		if !ok {
			continue
		}
		r.Score = f.Score
		r.Rank = i + 1
		out = append(out, r)
	}
	return out, nil
}

// EvaluateLifecycle sweeps one user synchronously.
func (s *Service) EvaluateLifecycle(userID string) (types.LifecycleReport, error) {
	if s.lifecyc == nil {
		return types.LifecycleReport{}, fmt.Errorf("service: lifecycle manager not configured")
	}
	return s.lifecyc.SweepUser(userID), nil
}

// Statistics exposes store aggregates.
func (s *Service) Statistics() store.Stats {
	return s.store.Statistics()
}

// Get returns one record by ID.
func (s *Service) Get(id string) (*types.MemoryRecord, bool) {
	return s.store.GetByID(id)
}

// Forget removes one record.
func (s *Service) Forget(ctx context.Context, id string) bool {
	return s.store.Remove(ctx, id)
}

// Flush forces pending persistence to disk.
func (s *Service) Flush() error {
	return s.store.Flush()
}

// Close shuts the engine down in dependency order: lifecycle first so no
// sweep races the closing store, then the store with its final flush.
func (s *Service) Close() error {
	if s.lifecyc != nil {
		s.lifecyc.Stop()
	}
	start := time.Now()
	err := s.store.Close()
	log.Printf("service closed in %s", time.Since(start).Round(time.Millisecond))
	return err
}
