package catalog

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// Feature represents a gated capability of the product. Limits are expressed
// per feature: Unlimited means no cap, 0 means the feature is unavailable on
// the plan, any positive value is a hard cap.
type Feature string

const (
	FeatureStores          Feature = "stores"
	FeatureProducts        Feature = "products"
	FeatureOrdersPerMonth  Feature = "orders_per_month"
	FeatureForecastReports Feature = "forecast_reports"
	FeatureShopifySync     Feature = "shopify_sync"
	FeatureAPIAccess       Feature = "api_access"
	FeatureTeamMembers     Feature = "team_members"
)

const (
	// Unlimited indicates no limit for a feature (-1 for storage compatibility).
	Unlimited int64 = -1
)

// Money represents a monetary amount in the smallest currency unit.
type Money struct {
	Amount   int64  `json:"amount" yaml:"amount"`     // cents for USD
	Currency string `json:"currency" yaml:"currency"` // ISO 4217 code
}

// BillingInterval represents the billing frequency for a plan.
type BillingInterval string

const (
	BillingIntervalMonthly BillingInterval = "monthly"
	BillingIntervalAnnual  BillingInterval = "annual"
)

// Plan describes a subscription tier and its feature quotas.
// The ID should match the payment provider's price ID so webhook payloads
// map back to a catalog entry without a translation table.
type Plan struct {
	ID          string            `json:"id" yaml:"id"`
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description" yaml:"description"`
	Ordinal     int               `json:"ordinal" yaml:"ordinal"` // rank used to classify plan changes
	Price       Money             `json:"price" yaml:"price"`
	Interval    BillingInterval   `json:"interval" yaml:"interval"`
	Limits      map[Feature]int64 `json:"limits" yaml:"limits"`
	Public      bool              `json:"public" yaml:"public"`
	TrialDays   int               `json:"trial_days" yaml:"trial_days"`
}

// LimitsSnapshot returns a copy of the plan's limits for denormalization onto
// a subscription record. Later catalog edits must not retroactively change an
// existing subscriber's entitlements.
func (p Plan) LimitsSnapshot() map[Feature]int64 {
	return maps.Clone(p.Limits)
}

// ChangeKind classifies a plan change by comparing catalog ordinals.
type ChangeKind string

const (
	ChangeUpgrade   ChangeKind = "upgrade"
	ChangeDowngrade ChangeKind = "downgrade"
	ChangeLateral   ChangeKind = "lateral"
)

// Catalog is an immutable set of plans loaded at startup.
type Catalog struct {
	plans map[string]Plan
}

// New loads plans from the given source and validates them.
func New(src Source) (*Catalog, error) {
	plans, err := src.Load()
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}
	if err := validatePlans(plans); err != nil {
		return nil, err
	}
	return &Catalog{plans: plans}, nil
}

// Get returns the plan for the given ID.
func (c *Catalog) Get(planID string) (Plan, error) {
	plan, ok := c.plans[planID]
	if !ok {
		return Plan{}, ErrPlanNotFound
	}
	return plan, nil
}

// Has reports whether the catalog contains the given plan ID.
func (c *Catalog) Has(planID string) bool {
	_, ok := c.plans[planID]
	return ok
}

// List returns all public plans ordered by ordinal.
func (c *Catalog) List() []Plan {
	plans := make([]Plan, 0, len(c.plans))
	for _, p := range c.plans {
		if p.Public {
			plans = append(plans, p)
		}
	}
	slices.SortFunc(plans, func(a, b Plan) int {
		return a.Ordinal - b.Ordinal
	})
	return plans
}

// Rank returns the ordinal of a plan.
func (c *Catalog) Rank(planID string) (int, error) {
	plan, ok := c.plans[planID]
	if !ok {
		return 0, ErrPlanNotFound
	}
	return plan.Ordinal, nil
}

// Compare classifies a change from the current plan to the target plan.
func (c *Catalog) Compare(currentPlanID, targetPlanID string) (ChangeKind, error) {
	current, err := c.Rank(currentPlanID)
	if err != nil {
		return "", err
	}
	target, err := c.Rank(targetPlanID)
	if err != nil {
		return "", err
	}
	switch {
	case target > current:
		return ChangeUpgrade, nil
	case target < current:
		return ChangeDowngrade, nil
	default:
		return ChangeLateral, nil
	}
}

// validatePlans catches configuration mistakes at startup rather than at
// entitlement-check time.
func validatePlans(plans map[string]Plan) error {
	if len(plans) == 0 {
		return errors.Join(ErrInvalidPlanConfiguration, errors.New("catalog is empty"))
	}

	ordinals := make(map[int]string, len(plans))
	for planID, plan := range plans {
		if plan.ID != planID {
			return errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("plan ID mismatch: map key %s != plan.ID %s", planID, plan.ID))
		}
		if plan.TrialDays < 0 {
			return errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("plan %s has negative trial days: %d", planID, plan.TrialDays))
		}
		if other, taken := ordinals[plan.Ordinal]; taken {
			return errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("plans %s and %s share ordinal %d", other, planID, plan.Ordinal))
		}
		ordinals[plan.Ordinal] = planID
		for feature, limit := range plan.Limits {
			if limit < Unlimited {
				return errors.Join(ErrInvalidPlanConfiguration,
					fmt.Errorf("plan %s has invalid limit %d for %s", planID, limit, feature))
			}
		}
	}
	return nil
}
