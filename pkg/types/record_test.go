package types

import (
	"testing"
	"time"
)

func TestNewRecordID_Deterministic(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := NewRecordID("u1", "hello", at)
	b := NewRecordID("u1", "hello", at)
	if a != b {
		t.Fatalf("same inputs produced different IDs: %s vs %s", a, b)
	}
	if len(a) != 32 {
		t.Fatalf("expected 32-char ID, got %d", len(a))
	}
}

func TestNewRecordID_DistinctInputs(t *testing.T) {
	at := time.Now()
	base := NewRecordID("u1", "hello", at)
	if NewRecordID("u2", "hello", at) == base {
		t.Error("different users must yield different IDs")
	}
	if NewRecordID("u1", "goodbye", at) == base {
		t.Error("different content must yield different IDs")
	}
	if NewRecordID("u1", "hello", at.Add(time.Nanosecond)) == base {
		t.Error("different instants must yield different IDs")
	}
}

func TestMemoryType_Protected(t *testing.T) {
	if !Pinned.Protected() || !Profile.Protected() {
		t.Error("pinned and profile must be protected")
	}
	if ShortTerm.Protected() || MidTerm.Protected() || LongTerm.Protected() {
		t.Error("ladder tiers must not be protected")
	}
}

func TestTierLadder(t *testing.T) {
	if ShortTerm.NextTier() != MidTerm || MidTerm.NextTier() != LongTerm {
		t.Error("promotion ladder broken")
	}
	if LongTerm.NextTier() != LongTerm {
		t.Error("long_term is the top of the ladder")
	}
	if LongTerm.PrevTier() != MidTerm || MidTerm.PrevTier() != ShortTerm {
		t.Error("demotion ladder broken")
	}
	if Pinned.NextTier() != Pinned || Profile.PrevTier() != Profile {
		t.Error("protected tiers never move")
	}
}

func TestIsValidTierTransition(t *testing.T) {
	cases := []struct {
		from, to MemoryType
		want     bool
	}{
		{ShortTerm, MidTerm, true},
		{MidTerm, LongTerm, true},
		{LongTerm, MidTerm, true},
		{MidTerm, ShortTerm, true},
		{ShortTerm, LongTerm, false}, // no tier skipping
		{ShortTerm, ShortTerm, false},
		{Pinned, MidTerm, false},
		{MidTerm, Pinned, false},
		{Profile, ShortTerm, false},
	}
	for _, c := range cases {
		if got := IsValidTierTransition(c.from, c.to); got != c.want {
			t.Errorf("IsValidTierTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestClone_DeepCopy(t *testing.T) {
	rec := &MemoryRecord{
		ID:               "id1",
		UserID:           "u1",
		Content:          "original",
		PrimaryEmbedding: []float64{1, 2, 3},
		Tags:             []string{"a"},
		Media: &Media{
			Kind:  MediaImage,
			Image: &ImageMedia{OriginalPath: "/tmp/x.png"},
		},
	}

	cp := rec.Clone()
	cp.PrimaryEmbedding[0] = 99
	cp.Tags[0] = "mutated"
	cp.Media.Image.OriginalPath = "/elsewhere"

	if rec.PrimaryEmbedding[0] != 1 {
		t.Error("embedding was shared, not copied")
	}
	if rec.Tags[0] != "a" {
		t.Error("tags were shared, not copied")
	}
	if rec.Media.Image.OriginalPath != "/tmp/x.png" {
		t.Error("media was shared, not copied")
	}
}

func TestEffectiveLastAccess(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := &MemoryRecord{CreatedAt: created}
	if rec.EffectiveLastAccess() != created {
		t.Error("never-accessed records fall back to creation time")
	}
	accessed := created.Add(48 * time.Hour)
	rec.LastAccessedAt = accessed
	if rec.EffectiveLastAccess() != accessed {
		t.Error("accessed records use last access time")
	}
}

func TestTierEnteredAt(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := &MemoryRecord{CreatedAt: created}
	if rec.TierEnteredAt() != created {
		t.Error("untransitioned records entered their tier at creation")
	}
	moved := created.Add(72 * time.Hour)
	rec.TierChangedAt = moved
	if rec.TierEnteredAt() != moved {
		t.Error("transitioned records use the transition time")
	}
}

func TestClampImportance(t *testing.T) {
	if ClampImportance(-0.5) != 0 {
		t.Error("negative values clamp to 0")
	}
	if ClampImportance(1.5) != 1 {
		t.Error("values above 1 clamp to 1")
	}
	if ClampImportance(0.42) != 0.42 {
		t.Error("in-range values pass through")
	}
}

func TestMediaValidate(t *testing.T) {
	var nilMedia *Media
	if err := nilMedia.Validate(); err != nil {
		t.Errorf("nil media is valid: %v", err)
	}

	ok := &Media{Kind: MediaImage, Image: &ImageMedia{}}
	if err := ok.Validate(); err != nil {
		t.Errorf("valid media rejected: %v", err)
	}

	mismatched := &Media{Kind: MediaAudio, Image: &ImageMedia{}}
	if err := mismatched.Validate(); err == nil {
		t.Error("kind/variant mismatch must fail")
	}

	twoVariants := &Media{Kind: MediaImage, Image: &ImageMedia{}, Audio: &AudioMedia{}}
	if err := twoVariants.Validate(); err == nil {
		t.Error("two populated variants must fail")
	}

	empty := &Media{Kind: MediaImage}
	if err := empty.Validate(); err == nil {
		t.Error("no populated variant must fail")
	}
}
