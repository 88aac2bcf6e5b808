// Package lifecycle implements the tier state machine: periodic sweeps
// that promote sustained-use records up the short ⇄ mid ⇄ long ladder,
// demote or delete the idle ones, and decay the importance of stale
// protected records whose tier never moves.
package lifecycle

import (
	"context"
	"log"
	"math"
	"sync"
	"time"

	"github.com/scrypster/recall/internal/config"
	"github.com/scrypster/recall/internal/store"
	"github.com/scrypster/recall/pkg/types"
)

// Manager runs lifecycle sweeps over the store. A sweep is a pure
// evaluation over cloned records followed by apply calls through the
// store's write path; the manager holds no record state itself.
type Manager struct {
	store *store.Store
	rules func() config.LifecycleRules

	mu      sync.Mutex
	ticker  *time.Ticker
	cancel  context.CancelFunc
	stopped chan struct{}

	// now is swappable for tests.
	now func() time.Time
}

// New builds a manager. rules is read at each sweep so config hot reloads
// take effect without restart.
func New(st *store.Store, rules func() config.LifecycleRules) *Manager {
	return &Manager{
		store: st,
		rules: rules,
		now:   time.Now,
	}
}

// WithClock overrides the time source for tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Start launches the periodic sweep. Safe to call once; Stop undoes it.
func (m *Manager) Start(interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ticker != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.ticker = time.NewTicker(interval)
	m.cancel = cancel
	m.stopped = make(chan struct{})

	go func() {
		defer close(m.stopped)
		for {
			select {
			case <-m.ticker.C:
				report := m.SweepAll()
				if !report.Empty() {
					log.Printf("lifecycle sweep: upgraded=%d downgraded=%d deleted=%d unchanged=%d",
						report.Upgraded, report.Downgraded, report.Deleted, report.Unchanged)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the periodic sweep and waits for the in-flight one.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ticker == nil {
		return
	}
	m.ticker.Stop()
	m.cancel()
	<-m.stopped
	m.ticker = nil
}

// SweepAll evaluates every record in the store.
func (m *Manager) SweepAll() types.LifecycleReport {
	var total types.LifecycleReport
	byUser := make(map[string]struct{})
	for _, rec := range m.store.GetAll() {
		byUser[rec.UserID] = struct{}{}
	}
	for userID := range byUser {
		r := m.SweepUser(userID)
		total.Upgraded += r.Upgraded
		total.Downgraded += r.Downgraded
		total.Deleted += r.Deleted
		total.Unchanged += r.Unchanged
	}
	return total
}

// SweepUser evaluates and applies lifecycle decisions for one user. The
// sweep is idempotent: a record that just transitioned is tenure-gated out
// of further moves, so an immediate second sweep reports no changes.
func (m *Manager) SweepUser(userID string) types.LifecycleReport {
	rules := m.rules()
	now := m.now()

	var report types.LifecycleReport
	for _, rec := range m.store.GetAllForUser(userID) {
		decision := Evaluate(rec, rules, now)

		switch decision.Action {
		case types.ActionKeep:
			report.Unchanged++
		case types.ActionPromote:
			if ok, err := m.store.ApplyLifecycle(rec.ID, decision); err != nil {
				log.Printf("WARNING: promote %s: %v", rec.ID, err)
			} else if ok {
				report.Upgraded++
			}
		case types.ActionDemote:
			if ok, err := m.store.ApplyLifecycle(rec.ID, decision); err != nil {
				log.Printf("WARNING: demote %s: %v", rec.ID, err)
			} else if ok {
				report.Downgraded++
			}
		case types.ActionDelete:
			if ok, err := m.store.ApplyLifecycle(rec.ID, decision); err != nil {
				log.Printf("WARNING: delete %s: %v", rec.ID, err)
			} else if ok {
				report.Deleted++
			}
		}

		// Stale protected records lose a sliver of importance instead of
		// tier; everything else already had its verdict above.
		if rec.Type.Protected() {
			if tier, ok := rules.Tiers[types.LongTerm]; ok {
				inactiveDays := now.Sub(rec.EffectiveLastAccess()).Hours() / 24
				if inactiveDays > tier.InactivityDays {
					m.store.AdjustImportance(rec.ID, -rules.StaleImportanceDelta)
				}
			}
		}
	}
	return report
}

// Evaluate computes the verdict for one record without applying it.
//
// Order matters: deletion is judged first (an expired record must not be
// saved by a promotion it would earn on paper), then promotion, then
// demotion. Protected tiers always keep.
func Evaluate(rec *types.MemoryRecord, rules config.LifecycleRules, now time.Time) types.LifecycleDecision {
	if rec.Type.Protected() {
		return types.LifecycleDecision{Action: types.ActionKeep}
	}

	tier, ok := rules.Tiers[rec.Type]
	if !ok {
		return types.LifecycleDecision{Action: types.ActionKeep}
	}

	ageDays := rec.AgeDays(now)
	inactiveDays := now.Sub(rec.EffectiveLastAccess()).Hours() / 24
	tenureDays := now.Sub(rec.TierEnteredAt()).Hours() / 24

	// Access density is accesses per day of survival, floored at one day
	// so a burst of reads on a fresh record does not read as sustained use.
	density := float64(rec.AccessCount) / math.Max(ageDays, 1)

	// Deletion: old and unimportant, or inactive far past the tier window
	// with importance below the hard floor.
	if ageDays > tier.MaxAgeDays && rec.Importance < tier.MinImportance {
		return types.LifecycleDecision{Action: types.ActionDelete}
	}
	if inactiveDays > 2*tier.MaxAgeDays && rec.Importance < rules.HardInactivityImportance {
		return types.LifecycleDecision{Action: types.ActionDelete}
	}

	// Tenure gate: no transition until the record has settled in its tier.
	if tenureDays < rules.MinTierTenureDays {
		return types.LifecycleDecision{Action: types.ActionKeep}
	}

	if next := rec.Type.NextTier(); next != rec.Type &&
		rec.AccessCount >= rules.PromoteMinAccess &&
		density >= rules.PromoteMinDensity &&
		ageDays >= rules.PromoteMinAgeDays {
		return types.LifecycleDecision{Action: types.ActionPromote, ToType: next}
	}

	if prev := rec.Type.PrevTier(); prev != rec.Type &&
		inactiveDays > tier.InactivityDays &&
		density < rules.DemoteMaxDensity {
		return types.LifecycleDecision{Action: types.ActionDemote, ToType: prev}
	}

	return types.LifecycleDecision{Action: types.ActionKeep}
}
