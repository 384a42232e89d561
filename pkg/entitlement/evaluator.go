package entitlement

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shelfmetrics/billing/pkg/catalog"
	"github.com/shelfmetrics/billing/pkg/logger"
	"github.com/shelfmetrics/billing/pkg/store"
)

// SubscriptionReader loads a tenant's subscription. It is satisfied by
// lifecycle.Manager, which applies lazy trial expiry on read, so entitlement
// checks can never observe a stale trialing status.
type SubscriptionReader interface {
	Get(ctx context.Context, userID string) (*store.Subscription, error)
}

// UsageCounterFunc returns the tenant's current usage for a feature. Must be
// fast, ideally backed by database aggregates or cached values, as it runs on
// every gated request.
type UsageCounterFunc func(ctx context.Context, userID string) (int64, error)

// Reason explains an entitlement decision. The three-way limit semantic
// (unlimited / unavailable / capped) is preserved so the billing UI can
// distinguish "upgrade to unlock" from "you hit your cap".
type Reason string

const (
	ReasonUnlimited          Reason = "unlimited"
	ReasonWithinLimit        Reason = "within_limit"
	ReasonLimitExceeded      Reason = "limit_exceeded"
	ReasonFeatureUnavailable Reason = "feature_unavailable"
	ReasonStatusBlocked      Reason = "subscription_inactive"
	ReasonNoSubscription     Reason = "no_subscription"
	ReasonUsageUnavailable   Reason = "usage_unavailable"
)

// Decision is the full result of an entitlement check.
type Decision struct {
	Allowed   bool   `json:"allowed"`
	Reason    Reason `json:"reason"`
	Limit     int64  `json:"limit"`     // -1 unlimited, 0 unavailable, N cap
	Remaining int64  `json:"remaining"` // -1 when unlimited
}

// Evaluator decides feature access from a subscription's status and its
// denormalized limit snapshot.
type Evaluator struct {
	subs     SubscriptionReader
	counters map[catalog.Feature]UsageCounterFunc
	logger   *slog.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithCounter registers a usage counter for a feature. Panics if the feature
// already has one, to catch wiring mistakes at startup.
func WithCounter(feature catalog.Feature, fn UsageCounterFunc) Option {
	return func(e *Evaluator) {
		if fn == nil {
			return
		}
		if _, exists := e.counters[feature]; exists {
			panic("entitlement: counter for feature " + string(feature) + " already registered")
		}
		e.counters[feature] = fn
	}
}

// WithLogger sets the logger for the Evaluator.
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEvaluator creates an entitlement evaluator reading subscriptions from
// the given reader.
func NewEvaluator(subs SubscriptionReader, opts ...Option) *Evaluator {
	if subs == nil {
		panic("entitlement: SubscriptionReader is required")
	}

	e := &Evaluator{
		subs:     subs,
		counters: make(map[catalog.Feature]UsageCounterFunc),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate decides whether the tenant may use the feature at the given usage
// level. Denies unless the subscription is trialing or active: trial_expired,
// past_due, and cancelled never grant access regardless of limits.
func (e *Evaluator) Evaluate(ctx context.Context, userID string, feature catalog.Feature, currentUsage int64) Decision {
	return e.evaluate(ctx, userID, feature, &currentUsage)
}

// EvaluateCurrent decides feature access using the registered usage counter
// for the feature, so callers that do not track usage themselves cannot
// accidentally bypass a cap. Features without a counter evaluate at zero
// usage; a counter failure on a capped feature fails closed.
func (e *Evaluator) EvaluateCurrent(ctx context.Context, userID string, feature catalog.Feature) Decision {
	return e.evaluate(ctx, userID, feature, nil)
}

func (e *Evaluator) evaluate(ctx context.Context, userID string, feature catalog.Feature, explicitUsage *int64) Decision {
	sub, err := e.subs.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrSubscriptionNotFound) {
			e.logger.LogAttrs(ctx, slog.LevelWarn, "entitlement check failed to load subscription",
				logger.UserID(userID), logger.Error(err))
		}
		return Decision{Allowed: false, Reason: ReasonNoSubscription}
	}

	if !sub.Status.GrantsAccess() {
		return Decision{Allowed: false, Reason: ReasonStatusBlocked}
	}

	limit, ok := sub.Limits[feature]
	if !ok || limit == 0 {
		return Decision{Allowed: false, Reason: ReasonFeatureUnavailable, Limit: limit}
	}
	if limit == catalog.Unlimited {
		return Decision{Allowed: true, Reason: ReasonUnlimited, Limit: limit, Remaining: catalog.Unlimited}
	}

	// Only finite caps need a usage figure, so counter failures can never
	// block unlimited features.
	var currentUsage int64
	switch {
	case explicitUsage != nil:
		currentUsage = *explicitUsage
	default:
		if counter, ok := e.counters[feature]; ok {
			used, err := counter(ctx, userID)
			if err != nil {
				e.logger.LogAttrs(ctx, slog.LevelWarn, "usage counter failed",
					logger.UserID(userID), slog.String("feature", string(feature)), logger.Error(err))
				return Decision{Allowed: false, Reason: ReasonUsageUnavailable, Limit: limit}
			}
			currentUsage = used
		}
	}

	if currentUsage < limit {
		return Decision{Allowed: true, Reason: ReasonWithinLimit, Limit: limit, Remaining: limit - currentUsage}
	}
	return Decision{Allowed: false, Reason: ReasonLimitExceeded, Limit: limit}
}

// CheckFeatureAccess is the boolean form of Evaluate. Fails closed on any
// error.
func (e *Evaluator) CheckFeatureAccess(ctx context.Context, userID string, feature catalog.Feature, currentUsage int64) bool {
	return e.Evaluate(ctx, userID, feature, currentUsage).Allowed
}
