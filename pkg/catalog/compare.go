package catalog

// LimitChange records a limit moving from one value to another between plans.
type LimitChange struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

// PlanDiff describes how feature limits differ between two plans. The billing
// UI uses it for downgrade warnings ("you will lose API access") before the
// change is confirmed.
type PlanDiff struct {
	Increased map[Feature]LimitChange `json:"increased,omitempty"`
	Decreased map[Feature]LimitChange `json:"decreased,omitempty"`
	Added     map[Feature]int64       `json:"added,omitempty"`
	Removed   map[Feature]int64       `json:"removed,omitempty"`
}

// DiffPlans returns the limit differences moving from the current plan to the
// target plan. Leaving an unlimited allocation always counts as a decrease,
// so accidental loss of unlimited access is surfaced.
func DiffPlans(current, target Plan) *PlanDiff {
	diff := &PlanDiff{
		Increased: make(map[Feature]LimitChange),
		Decreased: make(map[Feature]LimitChange),
		Added:     make(map[Feature]int64),
		Removed:   make(map[Feature]int64),
	}

	for feature, targetLimit := range target.Limits {
		currentLimit, exists := current.Limits[feature]
		if !exists {
			diff.Added[feature] = targetLimit
			continue
		}
		if targetLimit == currentLimit {
			continue
		}

		change := LimitChange{From: currentLimit, To: targetLimit}
		switch {
		case currentLimit == Unlimited:
			diff.Decreased[feature] = change
		case targetLimit == Unlimited:
			diff.Increased[feature] = change
		case targetLimit > currentLimit:
			diff.Increased[feature] = change
		default:
			diff.Decreased[feature] = change
		}
	}

	for feature, currentLimit := range current.Limits {
		if _, exists := target.Limits[feature]; !exists {
			diff.Removed[feature] = currentLimit
		}
	}

	return diff
}

// HasLosses reports whether the diff takes anything away from the tenant.
func (d *PlanDiff) HasLosses() bool {
	return len(d.Decreased) > 0 || len(d.Removed) > 0
}
