// Package store implements the vector memory store: the primary record
// table, the per-user index, similarity search with composite scoring,
// capacity eviction, batch cleanup and debounced crash-safe persistence.
//
// The store is the exclusive owner of every MemoryRecord. All reads hand
// out clones; the keyword index and the per-user index hold only ID
// back-references. Structural mutation of the table and the per-user index
// is serialized under one writer lock, which is the consistency invariant
// every mutator guards.
package store

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/scrypster/recall/internal/config"
	"github.com/scrypster/recall/internal/embedding"
	"github.com/scrypster/recall/internal/index"
	"github.com/scrypster/recall/pkg/types"
)

// Store is the central entity store. Construct it once at the composition
// root and inject the reference; there is no package-level instance.
type Store struct {
	mu        sync.RWMutex
	records   map[string]*types.MemoryRecord
	userIndex map[string]map[string]struct{}
	closed    bool

	embedder emergencyEmbedder
	notifier index.Notifier

	scoring    atomic.Pointer[config.ScoringConfig]
	maxPerUser int

	persist *persister

	// now is swappable for tests.
	now func() time.Time
}

// emergencyEmbedder pairs the injected provider with a local deterministic
// fallback. Add must never fail because of the provider, even when the
// caller injected an unwrapped one.
type emergencyEmbedder struct {
	primary  embedding.Provider
	fallback *embedding.FallbackProvider
}

func (e emergencyEmbedder) embed(ctx context.Context, text string) []float64 {
	vec, err := e.primary.Embed(ctx, text)
	if err != nil {
		log.Printf("WARNING: embed failed, using deterministic fallback: %v", err)
		vec, _ = e.fallback.Embed(ctx, text)
	}
	return vec
}

func (e emergencyEmbedder) embedImage(ctx context.Context, data []byte) []float64 {
	vec, err := e.primary.EmbedImage(ctx, data)
	if err != nil {
		log.Printf("WARNING: image embed failed, using deterministic fallback: %v", err)
		vec, _ = e.fallback.EmbedImage(ctx, data)
	}
	return vec
}

// Option customizes store construction.
type Option func(*Store)

// WithKeywordNotifier attaches the fire-and-forget keyword index notifier.
func WithKeywordNotifier(n index.Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

// WithClock overrides the time source. Tests use it to make decay and
// eviction deterministic.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a store, loading any previously persisted state from
// cfg.DataPath. An empty DataPath keeps the store memory-only.
func New(cfg config.StoreConfig, scoring *config.ScoringConfig, embedder embedding.Provider, opts ...Option) (*Store, error) {
	if embedder == nil {
		return nil, fmt.Errorf("store: embedding provider is required")
	}
	if scoring == nil {
		scoring = config.DefaultScoringConfig()
	}
	if err := scoring.Validate(); err != nil {
		return nil, fmt.Errorf("store: invalid scoring config: %w", err)
	}
	if cfg.MaxRecordsPerUser <= 0 {
		cfg.MaxRecordsPerUser = 1000
	}
	if cfg.SaveDebounce <= 0 {
		cfg.SaveDebounce = 10 * time.Second
	}

	s := &Store{
		records:   make(map[string]*types.MemoryRecord),
		userIndex: make(map[string]map[string]struct{}),
		embedder: emergencyEmbedder{
			primary:  embedder,
			fallback: embedding.NewFallbackProvider(embedder.Dimension()),
		},
		maxPerUser: cfg.MaxRecordsPerUser,
		now:        time.Now,
	}
	s.scoring.Store(scoring)

	for _, opt := range opts {
		opt(s)
	}

	if cfg.DataPath != "" {
		records, userIndex, err := loadState(cfg.DataPath)
		if err != nil {
			return nil, fmt.Errorf("store: load persisted state: %w", err)
		}
		s.records = records
		s.userIndex = userIndex
		s.persist = newPersister(cfg.DataPath, cfg.SaveDebounce, s.snapshot)
		go s.persist.run()
	}

	return s, nil
}

// SetScoring swaps in a new scoring config. Called by the config watcher
// on hot reload; safe against concurrent searches.
func (s *Store) SetScoring(cfg *config.ScoringConfig) {
	if cfg == nil || cfg.Validate() != nil {
		return
	}
	s.scoring.Store(cfg)
}

// AddRequest carries one memory write.
type AddRequest struct {
	UserID     string
	Content    string
	Type       types.MemoryType
	Importance float64
	Category   string
	Tags       []string

	// Media describes non-text input; Content must already hold the
	// textual surrogate. MediaData optionally carries the raw bytes for
	// the secondary image embedding.
	Media     *types.Media
	MediaData []byte
}

// Add embeds the content, builds a record and inserts it. When the user is
// at capacity the lowest-scoring non-pinned record is evicted first. The
// write never fails because of the embedding provider.
func (s *Store) Add(ctx context.Context, req AddRequest) (string, error) {
	if req.UserID == "" {
		return "", fmt.Errorf("%w: user ID is required", types.ErrValidation)
	}
	if req.Content == "" {
		return "", fmt.Errorf("%w: content is required", types.ErrValidation)
	}
	if req.Importance < 0 || req.Importance > 1 {
		return "", fmt.Errorf("%w: importance %v outside [0,1]", types.ErrValidation, req.Importance)
	}
	if req.Type == "" {
		req.Type = types.ShortTerm
	}
	if !types.IsValidMemoryType(req.Type) {
		return "", fmt.Errorf("%w: unknown memory type %q", types.ErrValidation, req.Type)
	}
	if err := req.Media.Validate(); err != nil {
		return "", err
	}

	// Embedding happens outside the lock; the provider call is the slow
	// part and must not serialize writers behind the network.
	primary := s.embedder.embed(ctx, req.Content)
	var secondary []float64
	if req.Media != nil && req.Media.Kind == types.MediaImage && len(req.MediaData) > 0 {
		secondary = s.embedder.embedImage(ctx, req.MediaData)
	}

	now := s.now()
	rec := &types.MemoryRecord{
		UserID:             req.UserID,
		Content:            req.Content,
		PrimaryEmbedding:   primary,
		SecondaryEmbedding: secondary,
		Type:               req.Type,
		Importance:         req.Importance,
		Category:           req.Category,
		Tags:               append([]string(nil), req.Tags...),
		Media:              req.Media.Clone(),
		CreatedAt:          now,
	}

	var evicted string
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", types.ErrClosed
	}

	// Identical content written within the same nanosecond would collide;
	// advance the creation instant until the derived ID is free.
	for {
		rec.ID = types.NewRecordID(rec.UserID, rec.Content, rec.CreatedAt)
		if _, exists := s.records[rec.ID]; !exists {
			break
		}
		rec.CreatedAt = rec.CreatedAt.Add(time.Nanosecond)
	}

	if len(s.userIndex[req.UserID]) >= s.maxPerUser {
		evicted, _ = s.evictLowestLocked(req.UserID, now)
	}
	s.insertLocked(rec)
	s.markDirtyLocked()
	s.mu.Unlock()

	if s.notifier != nil {
		if evicted != "" {
			s.notifier.Forget(evicted)
		}
		s.notifier.Notify(index.Document{
			ID:             rec.ID,
			UserID:         rec.UserID,
			Content:        rec.Content,
			ImageEmbedding: secondary,
		})
	}
	return rec.ID, nil
}

// UpdatePatch names the mutable fields of a record. Nil fields are left
// untouched; the record ID never changes.
type UpdatePatch struct {
	Content    *string
	Importance *float64
	Category   *string
	Tags       []string
	Type       *types.MemoryType
}

// Update applies a partial mutation. Returns false with a nil error when
// the record does not exist.
func (s *Store) Update(ctx context.Context, id string, patch UpdatePatch) (bool, error) {
	if patch.Importance != nil && (*patch.Importance < 0 || *patch.Importance > 1) {
		return false, fmt.Errorf("%w: importance %v outside [0,1]", types.ErrValidation, *patch.Importance)
	}
	if patch.Type != nil && !types.IsValidMemoryType(*patch.Type) {
		return false, fmt.Errorf("%w: unknown memory type %q", types.ErrValidation, *patch.Type)
	}

	// Re-embed outside the lock when the content changes.
	var newEmbedding []float64
	if patch.Content != nil {
		if *patch.Content == "" {
			return false, fmt.Errorf("%w: content cannot be cleared", types.ErrValidation)
		}
		newEmbedding = s.embedder.embed(ctx, *patch.Content)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, types.ErrClosed
	}
	rec, ok := s.records[id]
	if !ok {
		s.mu.Unlock()
		return false, nil
	}

	if patch.Content != nil {
		rec.Content = *patch.Content
		rec.PrimaryEmbedding = newEmbedding
	}
	if patch.Importance != nil {
		rec.Importance = types.ClampImportance(*patch.Importance)
	}
	if patch.Category != nil {
		rec.Category = *patch.Category
	}
	if patch.Tags != nil {
		rec.Tags = append([]string(nil), patch.Tags...)
	}
	if patch.Type != nil && *patch.Type != rec.Type {
		rec.Type = *patch.Type
		rec.TierChangedAt = s.now()
	}
	s.markDirtyLocked()
	contentChanged := patch.Content != nil
	doc := index.Document{ID: rec.ID, UserID: rec.UserID, Content: rec.Content}
	s.mu.Unlock()

	if contentChanged && s.notifier != nil {
		s.notifier.Notify(doc)
	}
	return true, nil
}

// Remove deletes a record. Returns false when the ID is unknown; removal
// is idempotent and never an error.
func (s *Store) Remove(ctx context.Context, id string) bool {
	s.mu.Lock()
	rec, ok := s.records[id]
	if !ok || s.closed {
		s.mu.Unlock()
		return false
	}
	s.deleteLocked(rec)
	s.markDirtyLocked()
	s.mu.Unlock()

	if s.notifier != nil {
		s.notifier.Forget(id)
	}
	return true
}

// GetByID returns a clone of the record, or (nil, false) for unknown IDs.
func (s *Store) GetByID(id string) (*types.MemoryRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// GetAllForUser returns clones of every record owned by userID.
func (s *Store) GetAllForUser(userID string) []*types.MemoryRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.userIndex[userID]
	out := make([]*types.MemoryRecord, 0, len(ids))
	for id := range ids {
		if rec, ok := s.records[id]; ok {
			out = append(out, rec.Clone())
		}
	}
	return out
}

// GetAll returns clones of every record in the store.
func (s *Store) GetAll() []*types.MemoryRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.MemoryRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.Clone())
	}
	return out
}

// ApplyLifecycle applies a lifecycle decision through the same write path
// as direct mutation. Promote/demote transitions are validated against the
// tier ladder; protected tiers never transition.
func (s *Store) ApplyLifecycle(id string, decision types.LifecycleDecision) (bool, error) {
	switch decision.Action {
	case types.ActionKeep:
		return true, nil
	case types.ActionDelete:
		s.mu.Lock()
		rec, ok := s.records[id]
		if !ok || s.closed {
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return false, types.ErrClosed
			}
			return false, nil
		}
		if rec.Type.Protected() {
			s.mu.Unlock()
			return false, fmt.Errorf("%w: cannot delete %s record %s", types.ErrValidation, rec.Type, id)
		}
		s.deleteLocked(rec)
		s.markDirtyLocked()
		s.mu.Unlock()
		if s.notifier != nil {
			s.notifier.Forget(id)
		}
		return true, nil
	case types.ActionPromote, types.ActionDemote:
		s.mu.Lock()
		defer s.mu.Unlock()
		rec, ok := s.records[id]
		if !ok || s.closed {
			if s.closed {
				return false, types.ErrClosed
			}
			return false, nil
		}
		if !types.IsValidTierTransition(rec.Type, decision.ToType) {
			return false, fmt.Errorf("%w: illegal tier transition %s → %s", types.ErrValidation, rec.Type, decision.ToType)
		}
		rec.Type = decision.ToType
		rec.TierChangedAt = s.now()
		s.markDirtyLocked()
		return true, nil
	default:
		return false, fmt.Errorf("%w: unknown lifecycle action %q", types.ErrValidation, decision.Action)
	}
}

// AdjustImportance nudges a record's importance by delta, clamped to
// [0, 1]. Used by the lifecycle manager, including on pinned and profile
// records whose tier never moves.
func (s *Store) AdjustImportance(id string, delta float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok || s.closed {
		return false
	}
	rec.Importance = types.ClampImportance(rec.Importance + delta)
	s.markDirtyLocked()
	return true
}

// Flush forces any pending dirty state to disk synchronously. It is the
// only way to guarantee durability of the final debounce window before
// shutdown.
func (s *Store) Flush() error {
	if s.persist == nil {
		return nil
	}
	return s.persist.flushSync()
}

// Close flushes pending state and stops the persistence loop. The store
// rejects mutations afterwards.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.persist != nil {
		return s.persist.stopAndWait()
	}
	return nil
}

// insertLocked adds rec to the primary table and the per-user index.
// Callers hold the write lock.
func (s *Store) insertLocked(rec *types.MemoryRecord) {
	s.records[rec.ID] = rec
	ids, ok := s.userIndex[rec.UserID]
	if !ok {
		ids = make(map[string]struct{})
		s.userIndex[rec.UserID] = ids
	}
	ids[rec.ID] = struct{}{}
}

// deleteLocked removes rec from both structures, dropping the user entry
// when it empties. Callers hold the write lock.
func (s *Store) deleteLocked(rec *types.MemoryRecord) {
	delete(s.records, rec.ID)
	if ids, ok := s.userIndex[rec.UserID]; ok {
		delete(ids, rec.ID)
		if len(ids) == 0 {
			delete(s.userIndex, rec.UserID)
		}
	}
}

func (s *Store) markDirtyLocked() {
	if s.persist != nil {
		s.persist.markDirty()
	}
}

func (s *Store) scoringConfig() *config.ScoringConfig {
	return s.scoring.Load()
}
