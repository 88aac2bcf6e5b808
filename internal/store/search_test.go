package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/recall/internal/config"
	"github.com/scrypster/recall/pkg/types"
)

func TestSearch_WordOverlapWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	target, err := s.Add(ctx, AddRequest{UserID: "u1", Content: "I like Chinese food", Importance: 0.5})
	require.NoError(t, err)
	_, err = s.Add(ctx, AddRequest{UserID: "u1", Content: "Meeting with Bob at three", Importance: 0.5})
	require.NoError(t, err)
	_, err = s.Add(ctx, AddRequest{UserID: "u1", Content: "The quarterly report is overdue", Importance: 0.5})
	require.NoError(t, err)

	results, err := s.Search(ctx, Query{UserID: "u1", Text: "chinese food"})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, target, results[0].Record.ID)
	assert.Equal(t, 1, results[0].Rank)
}

func TestSearch_Validation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Search(ctx, Query{UserID: "", Text: "q"})
	assert.ErrorIs(t, err, types.ErrValidation)
	_, err = s.Search(ctx, Query{UserID: "u1", Text: ""})
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestSearch_UserIsolation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Add(ctx, AddRequest{UserID: "alice", Content: "alice secret plans"})
	require.NoError(t, err)
	_, err = s.Add(ctx, AddRequest{UserID: "bob", Content: "bob secret plans"})
	require.NoError(t, err)

	results, err := s.Search(ctx, Query{UserID: "alice", Text: "secret plans"})
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, "alice", r.Record.UserID)
	}
}

func TestSearch_RanksStayDenseWhenRecordsVanish(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, content := range []string{
		"grocery list for the weekend market",
		"grocery receipts from the weekend",
		"weekend grocery budget notes",
	} {
		_, err := s.Add(ctx, AddRequest{UserID: "u1", Content: content, Importance: 0.5})
		require.NoError(t, err)
	}

	// Churn records for the same user while searching; a record deleted
	// between scoring and the access bump must not leave a gap in the
	// returned ranks.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			id, err := s.Add(ctx, AddRequest{UserID: "u1", Content: "weekend grocery churn", Importance: 0.5})
			if err != nil {
				return
			}
			s.Remove(ctx, id)
		}
	}()

	for i := 0; i < 200; i++ {
		results, err := s.Search(ctx, Query{UserID: "u1", Text: "weekend grocery"})
		require.NoError(t, err)
		for j, r := range results {
			require.Equal(t, j+1, r.Rank)
		}
	}
	<-done
}

func TestSearch_BumpsAccessStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id, err := s.Add(ctx, AddRequest{UserID: "u1", Content: "frequently needed"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = s.Search(ctx, Query{UserID: "u1", Text: "frequently needed"})
		require.NoError(t, err)
	}

	rec, _ := s.GetByID(id)
	assert.Equal(t, 3, rec.AccessCount)
	assert.False(t, rec.LastAccessedAt.IsZero())
}

func TestSearch_ResultReflectsBump(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.Add(ctx, AddRequest{UserID: "u1", Content: "bumped content"})
	require.NoError(t, err)

	results, err := s.Search(ctx, Query{UserID: "u1", Text: "bumped content"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Record.AccessCount)
}

func TestSearch_ThresholdRejects(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.Add(ctx, AddRequest{UserID: "u1", Content: "anything at all"})
	require.NoError(t, err)

	// Cosine similarity is capped at 1; an impossible threshold returns
	// nothing rather than erroring.
	results, err := s.Search(ctx, Query{UserID: "u1", Text: "zzz", Threshold: 1.01})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_FiltersMatchPostFiltering(t *testing.T) {
	// Pre-filtering before the vector math must select exactly the same
	// records as searching wide and filtering afterwards.
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Add(ctx, AddRequest{UserID: "u1", Content: "work note about budget", Category: "work", Tags: []string{"budget"}, Importance: 0.8, Type: types.LongTerm})
	require.NoError(t, err)
	_, err = s.Add(ctx, AddRequest{UserID: "u1", Content: "home note about budget", Category: "home", Tags: []string{"budget"}, Importance: 0.4})
	require.NoError(t, err)
	_, err = s.Add(ctx, AddRequest{UserID: "u1", Content: "work note about travel", Category: "work", Tags: []string{"travel"}, Importance: 0.6})
	require.NoError(t, err)

	filtered, err := s.Search(ctx, Query{
		UserID:   "u1",
		Text:     "note about budget",
		Category: "work",
		Tags:     []string{"budget"},
		Limit:    100,
	})
	require.NoError(t, err)

	wide, err := s.Search(ctx, Query{UserID: "u1", Text: "note about budget", Limit: 100})
	require.NoError(t, err)

	wantIDs := make(map[string]bool)
	for _, r := range wide {
		if r.Record.Category == "work" && hasTag(r.Record.Tags, "budget") {
			wantIDs[r.Record.ID] = true
		}
	}
	gotIDs := make(map[string]bool)
	for _, r := range filtered {
		gotIDs[r.Record.ID] = true
	}
	assert.Equal(t, wantIDs, gotIDs)
}

func hasTag(tags []string, want string) bool {
	for _, t := range tags {
		if t == want {
			return true
		}
	}
	return false
}

func TestSearch_TypeAndImportanceAndTimeFilters(t *testing.T) {
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	clock := base
	s := newTestStore(t, WithClock(func() time.Time { return clock }))
	ctx := context.Background()

	oldID, err := s.Add(ctx, AddRequest{UserID: "u1", Content: "old long term fact", Type: types.LongTerm, Importance: 0.9})
	require.NoError(t, err)
	clock = base.Add(48 * time.Hour)
	newID, err := s.Add(ctx, AddRequest{UserID: "u1", Content: "new short term note", Importance: 0.2})
	require.NoError(t, err)

	results, err := s.Search(ctx, Query{
		UserID:        "u1",
		Text:          "term",
		Types:         []types.MemoryType{types.LongTerm},
		MinImportance: 0.5,
		CreatedBefore: base.Add(time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, oldID, results[0].Record.ID)

	results, err = s.Search(ctx, Query{
		UserID:       "u1",
		Text:         "term",
		CreatedAfter: base.Add(time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, newID, results[0].Record.ID)
}

func TestSearch_LimitAndRank(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := s.Add(ctx, AddRequest{UserID: "u1", Content: contentN(i) + " searchable", Importance: 0.5})
		require.NoError(t, err)
	}

	results, err := s.Search(ctx, Query{UserID: "u1", Text: "searchable", Limit: 3})
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, i+1, r.Rank)
		if i > 0 {
			assert.LessOrEqual(t, r.Score, results[i-1].Score)
		}
	}
}

func TestCompositeScore_RecencyAndAccessContribute(t *testing.T) {
	cfg := config.DefaultScoringConfig()
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	fresh := &types.MemoryRecord{Content: "some reasonably long piece of content that is not short", CreatedAt: now, Importance: 0.5}
	stale := &types.MemoryRecord{Content: "some reasonably long piece of content that is not short", CreatedAt: now.Add(-90 * 24 * time.Hour), Importance: 0.5}
	assert.Greater(t,
		compositeScore(cfg, fresh, 0.5, "irrelevant query text", now),
		compositeScore(cfg, stale, 0.5, "irrelevant query text", now))

	accessed := &types.MemoryRecord{Content: fresh.Content, CreatedAt: now, Importance: 0.5, AccessCount: 10}
	assert.Greater(t,
		compositeScore(cfg, accessed, 0.5, "irrelevant query text", now),
		compositeScore(cfg, fresh, 0.5, "irrelevant query text", now))
}

func TestCompositeScore_SubstringBonus(t *testing.T) {
	cfg := config.DefaultScoringConfig()
	now := time.Now()

	containing := &types.MemoryRecord{Content: "my favorite color is dark green apparently and always", CreatedAt: now, Importance: 0.5}
	other := &types.MemoryRecord{Content: "my favorite colour was never really decided upon today", CreatedAt: now, Importance: 0.5}

	withBonus := compositeScore(cfg, containing, 0.5, "dark green", now)
	withoutBonus := compositeScore(cfg, other, 0.5, "dark green", now)
	assert.InDelta(t, cfg.Composite.SubstringBonus, withBonus-withoutBonus, 1e-9)
}

func TestCompositeScore_SubstringBonusRequiresQueryLongerThanMin(t *testing.T) {
	cfg := config.DefaultScoringConfig()
	require.Equal(t, 3, cfg.Composite.SubstringMinQueryLen)
	now := time.Now()

	rec := &types.MemoryRecord{
		Content:    "the neighbours cats wander through our garden every single morning",
		CreatedAt:  now,
		Importance: 0.5,
	}

	// Both queries are literal substrings of the content, but a query of
	// exactly SubstringMinQueryLen runes stays at the base score.
	atMin := compositeScore(cfg, rec, 0.5, "cat", now)
	aboveMin := compositeScore(cfg, rec, 0.5, "cats", now)
	assert.InDelta(t, cfg.Composite.SubstringBonus, aboveMin-atMin, 1e-9)
}
