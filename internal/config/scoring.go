package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/scrypster/recall/pkg/types"
)

// scoringConfigVersion is the current schema version for ScoringConfig
// files. Files with a different version are rejected rather than guessed at.
const scoringConfigVersion = 1

// ScoringConfig groups every empirically tuned scoring, eviction, fusion
// and lifecycle constant into one versioned object passed at construction.
// The defaults are tuned, not derived; treat them as a starting point.
type ScoringConfig struct {
	Version int `yaml:"version"`

	Composite CompositeWeights `yaml:"composite"`
	Eviction  EvictionWeights  `yaml:"eviction"`
	Fusion    FusionWeights    `yaml:"fusion"`
	Lifecycle LifecycleRules   `yaml:"lifecycle"`
}

// CompositeWeights drives the query-time composite score:
//
//	score = Similarity·sim + Importance·imp + TimeDecay·decay + Access·access + lengthBonus
type CompositeWeights struct {
	Similarity float64 `yaml:"similarity"`
	Importance float64 `yaml:"importance"`
	TimeDecay  float64 `yaml:"time_decay"`
	Access     float64 `yaml:"access"`

	// TimeDecayDays is the e-folding constant: decay = exp(-ageDays / TimeDecayDays).
	TimeDecayDays float64 `yaml:"time_decay_days"`

	// AccessNormBase normalizes access counts: accessScore = min(1, count/AccessNormBase).
	// Keeps unbounded access counts from dominating the score.
	AccessNormBase float64 `yaml:"access_norm_base"`

	// ShortContentBonus is added when a short record matches a short query.
	ShortContentBonus float64 `yaml:"short_content_bonus"`
	// ShortContentRunes is the cutoff, in runes, below which content and
	// query count as short.
	ShortContentRunes int `yaml:"short_content_runes"`

	// SubstringBonus is added when the content literally contains the
	// query (query longer than SubstringMinQueryLen). Trades embedding
	// recall for precision on short factual lookups.
	SubstringBonus       float64 `yaml:"substring_bonus"`
	SubstringMinQueryLen int     `yaml:"substring_min_query_len"`
}

// EvictionWeights drives capacity eviction, not query-time ranking:
//
//	evictionScore = Importance·imp + Recency·(1 − min(inactivityRatio, 1))
//
// The lowest-scoring non-pinned record goes first. Importance and Recency
// must sum to 1.0.
type EvictionWeights struct {
	Importance float64 `yaml:"importance"`
	Recency    float64 `yaml:"recency"`

	// MaxAgeWindowDays bounds the inactivity ratio:
	// inactivityRatio = daysSinceLastAccess / MaxAgeWindowDays.
	MaxAgeWindowDays float64 `yaml:"max_age_window_days"`
}

// MaxAgeWindow returns the inactivity window as a duration.
func (e EvictionWeights) MaxAgeWindow() time.Duration {
	return time.Duration(e.MaxAgeWindowDays * 24 * float64(time.Hour))
}

// FusionWeights drives hybrid fusion of heuristic and keyword rankings.
type FusionWeights struct {
	Heuristic   float64 `yaml:"heuristic"`
	Keyword     float64 `yaml:"keyword"`
	PinnedBoost float64 `yaml:"pinned_boost"`
}

// TierRule holds the per-tier lifecycle thresholds.
type TierRule struct {
	// InactivityDays is how long a record may go unaccessed before it is
	// demotion-eligible.
	InactivityDays float64 `yaml:"inactivity_days"`

	// MaxAgeDays and MinImportance gate deletion: a record older than
	// MaxAgeDays whose importance sits below MinImportance is deleted.
	MaxAgeDays    float64 `yaml:"max_age_days"`
	MinImportance float64 `yaml:"min_importance"`
}

// LifecycleRules holds promotion, demotion and deletion thresholds for the
// lifecycle state machine.
type LifecycleRules struct {
	// Promotion requires all three: frequent AND sustained use, not a burst.
	PromoteMinAccess  int     `yaml:"promote_min_access"`
	PromoteMinDensity float64 `yaml:"promote_min_density"` // accesses per survival day
	PromoteMinAgeDays float64 `yaml:"promote_min_age_days"`

	// DemoteMaxDensity marks low-usage records; demotion also requires
	// inactivity past the tier's InactivityDays.
	DemoteMaxDensity float64 `yaml:"demote_max_density"`

	// MinTierTenureDays is the minimum time a record must spend in its
	// current tier before another transition. Makes back-to-back sweeps
	// idempotent: a record promoted in one run cannot cascade upward in
	// the next.
	MinTierTenureDays float64 `yaml:"min_tier_tenure_days"`

	// StaleImportanceDelta is subtracted from importance on each sweep
	// that finds the record inactive past its tier threshold. Applies to
	// pinned and profile records too; their tier never changes.
	StaleImportanceDelta float64 `yaml:"stale_importance_delta"`

	// HardInactivityImportance deletes any non-protected record, whatever
	// its tier, once inactivity exceeds 2× the tier MaxAgeDays and
	// importance sits below this floor.
	HardInactivityImportance float64 `yaml:"hard_inactivity_importance"`

	Tiers map[types.MemoryType]TierRule `yaml:"tiers"`
}

// DefaultScoringConfig returns the tuned defaults.
func DefaultScoringConfig() *ScoringConfig {
	return &ScoringConfig{
		Version: scoringConfigVersion,
		Composite: CompositeWeights{
			Similarity:           0.4,
			Importance:           0.3,
			TimeDecay:            0.2,
			Access:               0.1,
			TimeDecayDays:        30,
			AccessNormBase:       10,
			ShortContentBonus:    0.05,
			ShortContentRunes:    48,
			SubstringBonus:       0.10,
			SubstringMinQueryLen: 3,
		},
		Eviction: EvictionWeights{
			Importance:       0.6,
			Recency:          0.4,
			MaxAgeWindowDays: 30,
		},
		Fusion: FusionWeights{
			Heuristic:   0.7,
			Keyword:     0.3,
			PinnedBoost: 0.2,
		},
		Lifecycle: LifecycleRules{
			PromoteMinAccess:         5,
			PromoteMinDensity:        0.5,
			PromoteMinAgeDays:        3,
			DemoteMaxDensity:         0.1,
			MinTierTenureDays:        3,
			StaleImportanceDelta:     0.02,
			HardInactivityImportance: 0.2,
			Tiers: map[types.MemoryType]TierRule{
				types.ShortTerm: {InactivityDays: 7, MaxAgeDays: 14, MinImportance: 0.3},
				types.MidTerm:   {InactivityDays: 30, MaxAgeDays: 90, MinImportance: 0.25},
				types.LongTerm:  {InactivityDays: 90, MaxAgeDays: 365, MinImportance: 0.15},
			},
		},
	}
}

// LoadScoringConfig reads a ScoringConfig from a YAML file. Fields omitted
// from the file keep their defaults, so a tuning file need only name the
// constants it overrides.
func LoadScoringConfig(path string) (*ScoringConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read scoring file %s: %w", path, err)
	}

	cfg := DefaultScoringConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse scoring file %s: %w", path, err)
	}

	if cfg.Version != scoringConfigVersion {
		return nil, fmt.Errorf("config: scoring file %s has version %d, want %d", path, cfg.Version, scoringConfigVersion)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: scoring file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks internal consistency of the scoring constants.
func (c *ScoringConfig) Validate() error {
	w := c.Composite
	sum := w.Similarity + w.Importance + w.TimeDecay + w.Access
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("composite weights must sum to 1.0, got %v", sum)
	}
	if w.TimeDecayDays <= 0 {
		return fmt.Errorf("time_decay_days must be positive, got %v", w.TimeDecayDays)
	}
	if w.AccessNormBase <= 0 {
		return fmt.Errorf("access_norm_base must be positive, got %v", w.AccessNormBase)
	}

	if math.Abs(c.Eviction.Importance+c.Eviction.Recency-1.0) > 1e-9 {
		return fmt.Errorf("eviction weights must sum to 1.0, got %v", c.Eviction.Importance+c.Eviction.Recency)
	}
	if c.Eviction.MaxAgeWindowDays <= 0 {
		return fmt.Errorf("eviction max_age_window_days must be positive, got %v", c.Eviction.MaxAgeWindowDays)
	}

	if c.Fusion.Heuristic < 0 || c.Fusion.Keyword < 0 {
		return fmt.Errorf("fusion weights must be non-negative")
	}

	for _, tier := range []types.MemoryType{types.ShortTerm, types.MidTerm, types.LongTerm} {
		if _, ok := c.Lifecycle.Tiers[tier]; !ok {
			return fmt.Errorf("lifecycle tier rules missing for %q", tier)
		}
	}
	return nil
}
