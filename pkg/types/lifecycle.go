package types

// LifecycleAction is the verdict of a single lifecycle evaluation.
type LifecycleAction string

const (
	ActionKeep    LifecycleAction = "keep"
	ActionPromote LifecycleAction = "promote"
	ActionDemote  LifecycleAction = "demote"
	ActionDelete  LifecycleAction = "delete"
)

// LifecycleDecision is the per-record verdict computed from access density,
// inactivity and survival duration. Ephemeral: it exists only for the
// duration of one sweep.
type LifecycleDecision struct {
	Action LifecycleAction `json:"action"`

	// ToType names the target tier for promote/demote actions.
	ToType MemoryType `json:"to_type,omitempty"`
}

// LifecycleReport tallies the outcome of one lifecycle run for one user.
type LifecycleReport struct {
	Upgraded   int `json:"upgraded"`
	Downgraded int `json:"downgraded"`
	Deleted    int `json:"deleted"`
	Unchanged  int `json:"unchanged"`
}

// Empty reports whether the run changed nothing.
func (r LifecycleReport) Empty() bool {
	return r.Upgraded == 0 && r.Downgraded == 0 && r.Deleted == 0
}
