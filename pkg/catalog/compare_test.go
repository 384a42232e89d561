package catalog_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shelfmetrics/billing/pkg/catalog"
)

func TestDiffPlans(t *testing.T) {
	t.Parallel()

	current := catalog.Plan{
		ID: "professional",
		Limits: map[catalog.Feature]int64{
			catalog.FeatureStores:    5,
			catalog.FeatureProducts:  catalog.Unlimited,
			catalog.FeatureAPIAccess: catalog.Unlimited,
		},
	}
	target := catalog.Plan{
		ID: "starter",
		Limits: map[catalog.Feature]int64{
			catalog.FeatureStores:      1,
			catalog.FeatureProducts:    500,
			catalog.FeatureTeamMembers: 2,
		},
	}

	diff := catalog.DiffPlans(current, target)

	assert.Equal(t, catalog.LimitChange{From: 5, To: 1}, diff.Decreased[catalog.FeatureStores])
	assert.Equal(t, catalog.LimitChange{From: catalog.Unlimited, To: 500}, diff.Decreased[catalog.FeatureProducts],
		"leaving unlimited is a decrease even though the raw numbers say otherwise")
	assert.Equal(t, int64(2), diff.Added[catalog.FeatureTeamMembers])
	assert.Equal(t, catalog.Unlimited, diff.Removed[catalog.FeatureAPIAccess])
	assert.True(t, diff.HasLosses())

	reverse := catalog.DiffPlans(target, current)
	assert.Equal(t, catalog.LimitChange{From: 1, To: 5}, reverse.Increased[catalog.FeatureStores])
	assert.Equal(t, catalog.LimitChange{From: 500, To: catalog.Unlimited}, reverse.Increased[catalog.FeatureProducts])
}

func TestDiffPlansIdentical(t *testing.T) {
	t.Parallel()

	plan := catalog.Plan{
		ID:     "starter",
		Limits: map[catalog.Feature]int64{catalog.FeatureStores: 1},
	}

	diff := catalog.DiffPlans(plan, plan)
	assert.Empty(t, diff.Increased)
	assert.Empty(t, diff.Decreased)
	assert.Empty(t, diff.Added)
	assert.Empty(t, diff.Removed)
	assert.False(t, diff.HasLosses())
}
