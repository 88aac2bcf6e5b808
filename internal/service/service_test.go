package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/recall/internal/config"
	"github.com/scrypster/recall/internal/embedding"
	"github.com/scrypster/recall/internal/index"
	"github.com/scrypster/recall/internal/lifecycle"
	"github.com/scrypster/recall/internal/store"
	"github.com/scrypster/recall/pkg/types"
)

func newTestService(t *testing.T, keywords KeywordSearcher) *Service {
	t.Helper()
	st, err := store.New(config.StoreConfig{}, config.DefaultScoringConfig(), embedding.NewFallbackProvider(64))
	require.NoError(t, err)

	mgr := lifecycle.New(st, func() config.LifecycleRules {
		return config.DefaultScoringConfig().Lifecycle
	})

	svc, err := New(Deps{Store: st, Keywords: keywords, Lifecycle: mgr})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestWrite_PlainText(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	res, err := svc.Write(ctx, "u1", "We discussed the roadmap today", WriteOptions{Importance: 0.5})
	require.NoError(t, err)
	assert.True(t, res.Written)
	assert.NotEmpty(t, res.ID)
	assert.NotEmpty(t, res.TraceID)
	assert.Empty(t, res.Conflicts)

	rec, ok := svc.Get(res.ID)
	require.True(t, ok)
	assert.Equal(t, "We discussed the roadmap today", rec.Content)
}

func TestWrite_ConflictHoldsWrite(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	first, err := svc.Write(ctx, "u1", "姓名：李雷", WriteOptions{Type: types.Profile, Importance: 0.9})
	require.NoError(t, err)
	require.True(t, first.Written)

	second, err := svc.Write(ctx, "u1", "姓名：韩梅梅", WriteOptions{Importance: 0.5})
	require.NoError(t, err)
	assert.False(t, second.Written, "conflicting write must be held")
	assert.Empty(t, second.ID)
	require.Len(t, second.Conflicts, 1)
	assert.Equal(t, "姓名", second.Conflicts[0].Key)
	assert.Equal(t, "李雷", second.Conflicts[0].Prev)
	assert.Equal(t, "韩梅梅", second.Conflicts[0].Next)

	// The held write left no record behind.
	assert.Equal(t, 1, svc.Statistics().TotalRecords)
}

func TestWrite_AutoResolveWritesThrough(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.Write(ctx, "u1", "My name is Alice", WriteOptions{Type: types.Profile, Importance: 0.9})
	require.NoError(t, err)

	res, err := svc.Write(ctx, "u1", "My name is Bob", WriteOptions{AutoResolveConflicts: true})
	require.NoError(t, err)
	assert.True(t, res.Written)
	require.Len(t, res.Conflicts, 1, "conflicts are still reported on auto-resolve")
	assert.Equal(t, 2, svc.Statistics().TotalRecords)
}

func TestWrite_ShortTermFactsAreNotEstablished(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	// A short-term record does not establish facts.
	_, err := svc.Write(ctx, "u1", "My name is Alice", WriteOptions{})
	require.NoError(t, err)

	res, err := svc.Write(ctx, "u1", "My name is Bob", WriteOptions{})
	require.NoError(t, err)
	assert.True(t, res.Written, "short-term chatter must not block new writes")
	assert.Empty(t, res.Conflicts)
}

func TestSearch_DelegatesToStore(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	res, err := svc.Write(ctx, "u1", "the cat sat on the mat", WriteOptions{Importance: 0.5})
	require.NoError(t, err)

	results, err := svc.Search(ctx, store.Query{UserID: "u1", Text: "cat mat"})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, res.ID, results[0].Record.ID)
}

// stubKeywords replays canned hits or an error.
type stubKeywords struct {
	hits []index.Hit
	err  error
}

func (s *stubKeywords) Search(context.Context, string, string, int) ([]index.Hit, error) {
	return s.hits, s.err
}

func TestHybridSearch_NoKeywordBackendDegrades(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.Write(ctx, "u1", "plain heuristic result", WriteOptions{Importance: 0.5})
	require.NoError(t, err)

	results, err := svc.HybridSearch(ctx, store.Query{UserID: "u1", Text: "heuristic result"})
	require.NoError(t, err)
	assert.NotEmpty(t, results)
}

func TestHybridSearch_KeywordFailureDegrades(t *testing.T) {
	svc := newTestService(t, &stubKeywords{err: errors.New("index offline")})
	ctx := context.Background()

	_, err := svc.Write(ctx, "u1", "resilient result", WriteOptions{Importance: 0.5})
	require.NoError(t, err)

	results, err := svc.HybridSearch(ctx, store.Query{UserID: "u1", Text: "resilient result"})
	require.NoError(t, err)
	assert.NotEmpty(t, results, "keyword outage must not fail the query")
}

func TestHybridSearch_KeywordOnlyHitIsSurfaced(t *testing.T) {
	st, err := store.New(config.StoreConfig{}, config.DefaultScoringConfig(), embedding.NewFallbackProvider(64))
	require.NoError(t, err)
	ctx := context.Background()

	// A record with no lexical or semantic overlap with the query text,
	// surfaced purely by the keyword backend.
	hidden, err := st.Add(ctx, store.AddRequest{UserID: "u1", Content: "zebra quartz umbrella", Importance: 0.5})
	require.NoError(t, err)
	visible, err := st.Add(ctx, store.AddRequest{UserID: "u1", Content: "searchable phrase here", Importance: 0.5})
	require.NoError(t, err)

	kw := &stubKeywords{hits: []index.Hit{{ID: hidden, Content: "zebra quartz umbrella", Score: 5}}}
	svc, err := New(Deps{Store: st, Keywords: kw})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	results, err := svc.HybridSearch(ctx, store.Query{UserID: "u1", Text: "searchable phrase here", Limit: 10})
	require.NoError(t, err)

	ids := make(map[string]bool)
	for _, r := range results {
		ids[r.Record.ID] = true
	}
	assert.True(t, ids[visible], "heuristic hit present")
	assert.True(t, ids[hidden], "keyword-only hit fused in")
}

func TestEvaluateLifecycle_RequiresManager(t *testing.T) {
	st, err := store.New(config.StoreConfig{}, config.DefaultScoringConfig(), embedding.NewFallbackProvider(32))
	require.NoError(t, err)
	svc, err := New(Deps{Store: st})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	_, err = svc.EvaluateLifecycle("u1")
	assert.Error(t, err)
}

func TestForget(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	res, err := svc.Write(ctx, "u1", "forget me", WriteOptions{})
	require.NoError(t, err)
	assert.True(t, svc.Forget(ctx, res.ID))
	_, ok := svc.Get(res.ID)
	assert.False(t, ok)
}

func TestNew_RequiresStore(t *testing.T) {
	_, err := New(Deps{})
	assert.Error(t, err)
}
