// Package types defines the core data model for the Recall memory system.
// A MemoryRecord is the atomic unit of storage: normalized text content,
// one or two embedding vectors, ownership metadata, and the usage counters
// that drive retrieval ranking and lifecycle transitions.
package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// MemoryType classifies a record into a retention tier. The tier governs
// retrieval weighting and eviction eligibility.
type MemoryType string

const (
	// ShortTerm is the entry tier for freshly written records.
	ShortTerm MemoryType = "short_term"

	// MidTerm holds records with demonstrated repeated use.
	MidTerm MemoryType = "mid_term"

	// LongTerm holds records with frequent and sustained use.
	LongTerm MemoryType = "long_term"

	// Pinned records are exempt from eviction, cleanup and tier transitions.
	Pinned MemoryType = "pinned"

	// Profile records describe the user themselves and share the pinned
	// exemptions. Long-term fact conflict detection draws on them.
	Profile MemoryType = "profile"
)

// ValidMemoryTypes contains all valid tier values.
var ValidMemoryTypes = []MemoryType{ShortTerm, MidTerm, LongTerm, Pinned, Profile}

// IsValidMemoryType reports whether t is a known tier.
func IsValidMemoryType(t MemoryType) bool {
	for _, v := range ValidMemoryTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Protected reports whether the tier is exempt from auto-deletion,
// capacity eviction and tier transitions.
func (t MemoryType) Protected() bool {
	return t == Pinned || t == Profile
}

// NextTier returns the tier one step up, or t itself when no promotion
// exists (LongTerm is the top of the ladder; protected tiers never move).
func (t MemoryType) NextTier() MemoryType {
	switch t {
	case ShortTerm:
		return MidTerm
	case MidTerm:
		return LongTerm
	default:
		return t
	}
}

// PrevTier returns the tier one step down, or t itself when no demotion
// exists.
func (t MemoryType) PrevTier() MemoryType {
	switch t {
	case LongTerm:
		return MidTerm
	case MidTerm:
		return ShortTerm
	default:
		return t
	}
}

// IsValidTierTransition validates a tier change. Only adjacent moves on the
// short ⇄ mid ⇄ long ladder are legal; pinned and profile records never
// change tier.
func IsValidTierTransition(from, to MemoryType) bool {
	if from.Protected() || to.Protected() {
		return false
	}
	if from == to {
		return false
	}
	return from.NextTier() == to || from.PrevTier() == to
}

// MemoryRecord is one stored memory unit.
//
// Ownership: records are held exclusively by the vector memory store. The
// per-user index and the keyword index keep only ID back-references.
type MemoryRecord struct {
	// ID is derived deterministically from (UserID, Content, CreatedAt)
	// and never changes after creation.
	ID string `json:"id"`

	// UserID identifies the single owner of this record.
	UserID string `json:"user_id"`

	// Content is the normalized text representation. Image and audio
	// inputs are downgraded to a textual surrogate (OCR text or a
	// transcript) before they reach this field.
	Content string `json:"content"`

	// PrimaryEmbedding is the vector used for similarity search.
	PrimaryEmbedding []float64 `json:"primary_embedding,omitempty"`

	// SecondaryEmbedding optionally holds an image embedding, enabling
	// image-based search independent of PrimaryEmbedding.
	SecondaryEmbedding []float64 `json:"secondary_embedding,omitempty"`

	// Type is the retention tier.
	Type MemoryType `json:"type"`

	// Importance is always kept within [0, 1].
	Importance float64 `json:"importance"`

	Category string   `json:"category,omitempty"`
	Tags     []string `json:"tags,omitempty"`

	// Media carries the closed multimodal variant when the record was
	// produced from non-text input. Nil for plain text records.
	Media *Media `json:"media,omitempty"`

	CreatedAt time.Time `json:"created_at"`

	// TierChangedAt records the last lifecycle tier transition. Zero means
	// the record has been in its tier since creation.
	TierChangedAt time.Time `json:"tier_changed_at,omitempty"`

	// LastAccessedAt and AccessCount are updated on every successful
	// retrieval and drive lifecycle decisions.
	LastAccessedAt time.Time `json:"last_accessed_at,omitempty"`
	AccessCount    int       `json:"access_count"`
}

// NewRecordID derives the stable record identifier from the owning user,
// the content and the creation instant. Re-insertion of identical content
// at a different instant yields a distinct ID, while updates keep it.
func NewRecordID(userID, content string, createdAt time.Time) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%d", userID, content, createdAt.UnixNano())
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// TierEnteredAt returns when the record entered its current tier.
func (r *MemoryRecord) TierEnteredAt() time.Time {
	if !r.TierChangedAt.IsZero() {
		return r.TierChangedAt
	}
	return r.CreatedAt
}

// EffectiveLastAccess returns the reference time for inactivity
// calculations, falling back to CreatedAt for never-accessed records.
func (r *MemoryRecord) EffectiveLastAccess() time.Time {
	if !r.LastAccessedAt.IsZero() {
		return r.LastAccessedAt
	}
	return r.CreatedAt
}

// AgeDays returns the record age in days at the given instant, measured
// from creation rather than last access.
func (r *MemoryRecord) AgeDays(now time.Time) float64 {
	d := now.Sub(r.CreatedAt).Hours() / 24.0
	if d < 0 {
		return 0
	}
	return d
}

// Clone returns a deep copy safe to hand to callers while the store keeps
// mutating the original.
func (r *MemoryRecord) Clone() *MemoryRecord {
	cp := *r
	if r.PrimaryEmbedding != nil {
		cp.PrimaryEmbedding = append([]float64(nil), r.PrimaryEmbedding...)
	}
	if r.SecondaryEmbedding != nil {
		cp.SecondaryEmbedding = append([]float64(nil), r.SecondaryEmbedding...)
	}
	if r.Tags != nil {
		cp.Tags = append([]string(nil), r.Tags...)
	}
	cp.Media = r.Media.Clone()
	return &cp
}

// ClampImportance forces v into [0, 1].
func ClampImportance(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
