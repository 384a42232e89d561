package catalog

// DefaultTrialDays is the fixed trial length for every plan in the catalog.
const DefaultTrialDays = 14

// Default returns the built-in three-tier catalog for the retail-forecasting
// product. Plan IDs double as the payment provider's price IDs.
func Default() *StaticSource {
	return NewStaticSource(
		Plan{
			ID:          "starter",
			Name:        "Starter",
			Description: "For a single store getting started with demand forecasting.",
			Ordinal:     0,
			Price:       Money{Amount: 2900, Currency: "USD"},
			Interval:    BillingIntervalMonthly,
			Public:      true,
			TrialDays:   DefaultTrialDays,
			Limits: map[Feature]int64{
				FeatureStores:          1,
				FeatureProducts:        100,
				FeatureOrdersPerMonth:  500,
				FeatureForecastReports: 5,
				FeatureShopifySync:     1,
				FeatureAPIAccess:       0,
				FeatureTeamMembers:     2,
			},
		},
		Plan{
			ID:          "professional",
			Name:        "Professional",
			Description: "For growing retailers running several storefronts.",
			Ordinal:     1,
			Price:       Money{Amount: 7900, Currency: "USD"},
			Interval:    BillingIntervalMonthly,
			Public:      true,
			TrialDays:   DefaultTrialDays,
			Limits: map[Feature]int64{
				FeatureStores:          5,
				FeatureProducts:        1000,
				FeatureOrdersPerMonth:  5000,
				FeatureForecastReports: 50,
				FeatureShopifySync:     1,
				FeatureAPIAccess:       Unlimited,
				FeatureTeamMembers:     10,
			},
		},
		Plan{
			ID:          "enterprise",
			Name:        "Enterprise",
			Description: "Unlimited usage for large retail operations.",
			Ordinal:     2,
			Price:       Money{Amount: 19900, Currency: "USD"},
			Interval:    BillingIntervalMonthly,
			Public:      true,
			TrialDays:   DefaultTrialDays,
			Limits: map[Feature]int64{
				FeatureStores:          Unlimited,
				FeatureProducts:        Unlimited,
				FeatureOrdersPerMonth:  Unlimited,
				FeatureForecastReports: Unlimited,
				FeatureShopifySync:     1,
				FeatureAPIAccess:       Unlimited,
				FeatureTeamMembers:     Unlimited,
			},
		},
	)
}
