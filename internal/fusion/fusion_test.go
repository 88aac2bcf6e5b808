package fusion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFuse_HeuristicWinnerHolds(t *testing.T) {
	// A dominates the heuristic list, B dominates the keyword list. With
	// the 0.7/0.3 default split the heuristic signal must carry the day.
	heuristic := []HeuristicItem{
		{Key: "A", Score: 50, Order: 0},
		{Key: "B", Score: 20, Order: 1},
	}
	keyword := []KeywordItem{
		{Key: "B", Score: 100},
		{Key: "A", Score: 1},
	}

	got := Fuse(heuristic, keyword, Options{Limit: 1})
	if len(got) != 1 {
		t.Fatalf("expected 1 result, got %d", len(got))
	}
	assert.Equal(t, "A", got[0].Key)
	// A: 0.7·(50/50) + 0.3·(1/100) = 0.703
	assert.InDelta(t, 0.703, got[0].Score, 1e-9)
}

func TestFuse_AbsenceIsNotAPenalty(t *testing.T) {
	heuristic := []HeuristicItem{{Key: "only-h", Score: 10, Order: 0}}
	keyword := []KeywordItem{{Key: "only-k", Score: 10}}

	got := Fuse(heuristic, keyword, Options{})
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	assert.Equal(t, "only-h", got[0].Key)
	assert.InDelta(t, 0.7, got[0].Score, 1e-9)
	assert.Equal(t, "only-k", got[1].Key)
	assert.InDelta(t, 0.3, got[1].Score, 1e-9)
}

func TestFuse_PinnedBoost(t *testing.T) {
	heuristic := []HeuristicItem{
		{Key: "plain", Score: 10, Order: 0},
		{Key: "pinned", Score: 9, Order: 1},
	}

	got := Fuse(heuristic, nil, Options{
		Pinned:      map[string]bool{"pinned": true},
		PinnedBoost: 0.2,
	})
	assert.Equal(t, "pinned", got[0].Key)
	assert.InDelta(t, 0.7*0.9+0.2, got[0].Score, 1e-9)
}

func TestFuse_TieBreaksOnHeuristicOrder(t *testing.T) {
	heuristic := []HeuristicItem{
		{Key: "second", Score: 10, Order: 5},
		{Key: "first", Score: 10, Order: 2},
	}

	got := Fuse(heuristic, nil, Options{})
	assert.Equal(t, "first", got[0].Key)
	assert.Equal(t, "second", got[1].Key)
}

func TestFuse_KeywordOnlyLosesTies(t *testing.T) {
	// Identical fused scores: the heuristic-backed item has an order, the
	// keyword-only one sits at math.MaxInt.
	heuristic := []HeuristicItem{{Key: "ranked", Score: 3, Order: 0}}
	keyword := []KeywordItem{{Key: "unranked", Score: 3}}

	got := Fuse(heuristic, keyword, Options{HeuristicWeight: 0.5, KeywordWeight: 0.5})
	assert.Equal(t, "ranked", got[0].Key)
}

func TestFuse_ZeroMaxScoresDoNotDivideByZero(t *testing.T) {
	heuristic := []HeuristicItem{{Key: "a", Score: 0, Order: 0}}
	keyword := []KeywordItem{{Key: "a", Score: 0}}

	got := Fuse(heuristic, keyword, Options{})
	if len(got) != 1 {
		t.Fatalf("expected 1 result, got %d", len(got))
	}
	if math.IsNaN(got[0].Score) {
		t.Fatalf("score is NaN")
	}
	assert.Equal(t, 0.0, got[0].Score)
}

func TestFuse_LimitTruncates(t *testing.T) {
	heuristic := []HeuristicItem{
		{Key: "a", Score: 3, Order: 0},
		{Key: "b", Score: 2, Order: 1},
		{Key: "c", Score: 1, Order: 2},
	}
	got := Fuse(heuristic, nil, Options{Limit: 2})
	assert.Len(t, got, 2)
}

func TestFuse_EmptyInputs(t *testing.T) {
	assert.Empty(t, Fuse(nil, nil, Options{}))
}
