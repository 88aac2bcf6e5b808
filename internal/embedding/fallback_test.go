package embedding

import (
	"context"
	"math"
	"testing"
)

func TestFallback_Deterministic(t *testing.T) {
	p := NewFallbackProvider(64)
	a, _ := p.Embed(context.Background(), "the same text")
	b, _ := p.Embed(context.Background(), "the same text")

	if len(a) != 64 {
		t.Fatalf("expected dimension 64, got %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vectors differ at %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestFallback_UnitLength(t *testing.T) {
	p := NewFallbackProvider(128)
	vec, _ := p.Embed(context.Background(), "normalize me")

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if math.Abs(math.Sqrt(norm)-1.0) > 1e-9 {
		t.Errorf("expected unit length, got %f", math.Sqrt(norm))
	}
}

func TestFallback_IdenticalTextMaxSimilarity(t *testing.T) {
	p := NewFallbackProvider(256)
	a, _ := p.Embed(context.Background(), "hello world")
	b, _ := p.Embed(context.Background(), "hello world")

	if sim := CosineSimilarity(a, b); math.Abs(sim-1.0) > 1e-9 {
		t.Errorf("identical texts should have similarity 1.0, got %f", sim)
	}
}

func TestFallback_WordOverlapRaisesSimilarity(t *testing.T) {
	p := NewFallbackProvider(256)
	ctx := context.Background()
	base, _ := p.Embed(ctx, "I like Chinese food")
	overlap, _ := p.Embed(ctx, "Chinese food is great")
	unrelated, _ := p.Embed(ctx, "quarterly report deadline")

	simOverlap := CosineSimilarity(base, overlap)
	simUnrelated := CosineSimilarity(base, unrelated)
	if simOverlap <= simUnrelated {
		t.Errorf("overlapping words should score higher: overlap=%f unrelated=%f", simOverlap, simUnrelated)
	}
}

func TestFallback_UnrelatedTextsShareBaseline(t *testing.T) {
	// The sinusoid is shifted positive, so even disjoint texts must keep a
	// similarity comfortably above zero.
	p := NewFallbackProvider(256)
	ctx := context.Background()
	a, _ := p.Embed(ctx, "I like Chinese food")
	b, _ := p.Embed(ctx, "What is my favorite cuisine?")

	if sim := CosineSimilarity(a, b); sim <= 0.05 {
		t.Errorf("expected similarity above 0.05, got %f", sim)
	}
}

func TestFallback_EmptyText(t *testing.T) {
	p := NewFallbackProvider(32)
	vec, err := p.Embed(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 32 {
		t.Fatalf("expected dimension 32, got %d", len(vec))
	}
}

func TestFallback_EmbedImageDeterministic(t *testing.T) {
	p := NewFallbackProvider(64)
	data := []byte{0x89, 0x50, 0x4e, 0x47, 1, 2, 3, 4, 5, 6, 7, 8}
	a, _ := p.EmbedImage(context.Background(), data)
	b, _ := p.EmbedImage(context.Background(), data)

	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("image vectors differ at %d", i)
		}
	}
}

func TestCosineSimilarity_MismatchedAndZero(t *testing.T) {
	if got := CosineSimilarity([]float64{1, 0}, []float64{1, 0, 0}); got != 0 {
		t.Errorf("mismatched lengths should score 0, got %f", got)
	}
	if got := CosineSimilarity([]float64{0, 0}, []float64{1, 0}); got != 0 {
		t.Errorf("zero vector should score 0, got %f", got)
	}
}
