package entitlement

import (
	"context"

	"github.com/shelfmetrics/billing/pkg/catalog"
)

// FeatureUsage pairs current usage with the subscription's limit for one
// feature.
type FeatureUsage struct {
	Used           int64 `json:"used"`
	Limit          int64 `json:"limit"`          // -1 unlimited, 0 unavailable
	PercentageUsed int   `json:"percentageUsed"` // 0-100, -1 for unlimited
}

// UsageStats is the tenant's full usage report against their limit snapshot.
type UsageStats struct {
	Features map[catalog.Feature]FeatureUsage `json:"features"`
}

// UsageStats returns usage for every feature in the tenant's limit snapshot.
// Features without a registered counter report zero usage; counter failures
// also report zero rather than failing the whole dashboard.
func (e *Evaluator) UsageStats(ctx context.Context, userID string) (*UsageStats, error) {
	sub, err := e.subs.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	stats := &UsageStats{Features: make(map[catalog.Feature]FeatureUsage, len(sub.Limits))}
	for feature, limit := range sub.Limits {
		usage := FeatureUsage{Limit: limit}

		if counter, ok := e.counters[feature]; ok {
			if used, err := counter(ctx, userID); err == nil {
				usage.Used = used
			}
		}

		usage.PercentageUsed = percentage(usage.Used, limit)
		stats.Features[feature] = usage
	}
	return stats, nil
}

// percentage returns usage as a percentage of the limit, capped at 100 to
// keep UI progress bars sane. Unlimited reports -1, unavailable 100.
func percentage(used, limit int64) int {
	if limit == catalog.Unlimited {
		return -1
	}
	if limit == 0 {
		return 100
	}
	return min(int((used*100)/limit), 100)
}
