package billing

import (
	"context"
	"log/slog"
	"time"

	"github.com/shelfmetrics/billing/pkg/catalog"
	"github.com/shelfmetrics/billing/pkg/entitlement"
	"github.com/shelfmetrics/billing/pkg/lifecycle"
	"github.com/shelfmetrics/billing/pkg/notify"
	"github.com/shelfmetrics/billing/pkg/payment"
	"github.com/shelfmetrics/billing/pkg/reconciler"
	"github.com/shelfmetrics/billing/pkg/store"
)

// Engine is the subscription lifecycle and entitlement engine consumed by the
// HTTP layer. It composes the plan catalog, lifecycle manager, entitlement
// evaluator, webhook reconciler, and notification emitter behind one facade.
// All dependencies are injected at construction; the engine holds no global
// state.
type Engine struct {
	catalog    *catalog.Catalog
	lifecycle  *lifecycle.Manager
	evaluator  *entitlement.Evaluator
	reconciler *reconciler.Reconciler
	emitter    *notify.Emitter
}

// Options configures optional engine behavior.
type Options struct {
	Logger        *slog.Logger                                     // defaults to slog.Default()
	Notifications notify.Storage                                   // enables notification side effects
	EmailSender   notify.EmailSender                               // optional email copies of notifications
	EmailResolver notify.EmailResolver                             // required when EmailSender is set
	Dedup         reconciler.DedupStore                            // webhook event-ID dedup
	Counters      map[catalog.Feature]entitlement.UsageCounterFunc // usage counters for entitlement checks
	Now           func() time.Time                                 // injected clock for tests
}

// New assembles the engine from its collaborators.
func New(cat *catalog.Catalog, subs store.SubscriptionStore, methods store.PaymentMethodStore, events store.PaymentEventStore, provider payment.Provider, opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	var emitter *notify.Emitter
	if opts.Notifications != nil {
		emitterOpts := []notify.EmitterOption{notify.WithLogger(log)}
		if opts.EmailSender != nil && opts.EmailResolver != nil {
			emitterOpts = append(emitterOpts, notify.WithEmail(opts.EmailSender, opts.EmailResolver))
		}
		emitter = notify.NewEmitter(opts.Notifications, emitterOpts...)
	}

	lifecycleOpts := []lifecycle.Option{lifecycle.WithLogger(log)}
	if emitter != nil {
		lifecycleOpts = append(lifecycleOpts, lifecycle.WithEmitter(emitter))
	}
	if opts.Now != nil {
		lifecycleOpts = append(lifecycleOpts, lifecycle.WithNow(opts.Now))
	}
	lm := lifecycle.NewManager(cat, subs, methods, provider, lifecycleOpts...)

	evalOpts := []entitlement.Option{entitlement.WithLogger(log)}
	for feature, counter := range opts.Counters {
		evalOpts = append(evalOpts, entitlement.WithCounter(feature, counter))
	}
	evaluator := entitlement.NewEvaluator(lm, evalOpts...)

	reconcilerOpts := []reconciler.Option{reconciler.WithLogger(log)}
	if emitter != nil {
		reconcilerOpts = append(reconcilerOpts, reconciler.WithEmitter(emitter))
	}
	if opts.Dedup != nil {
		reconcilerOpts = append(reconcilerOpts, reconciler.WithDedup(opts.Dedup))
	}
	if opts.Now != nil {
		reconcilerOpts = append(reconcilerOpts, reconciler.WithNow(opts.Now))
	}
	rec := reconciler.NewReconciler(provider, lm, methods, events, reconcilerOpts...)

	return &Engine{
		catalog:    cat,
		lifecycle:  lm,
		evaluator:  evaluator,
		reconciler: rec,
		emitter:    emitter,
	}
}

// CreateSubscription starts a trial subscription for the tenant.
func (e *Engine) CreateSubscription(ctx context.Context, userID, planID string, opts lifecycle.CreateOptions) (*store.Subscription, error) {
	return e.lifecycle.Create(ctx, userID, planID, opts)
}

// GetSubscription returns the tenant's subscription with lazy trial expiry
// applied. Returns store.ErrSubscriptionNotFound when none exists.
func (e *Engine) GetSubscription(ctx context.Context, userID string) (*store.Subscription, error) {
	return e.lifecycle.Get(ctx, userID)
}

// UpdateSubscriptionPlan upgrades or downgrades the tenant's plan.
func (e *Engine) UpdateSubscriptionPlan(ctx context.Context, userID, planID string, pm *lifecycle.PaymentMethod) (*store.Subscription, error) {
	return e.lifecycle.ChangePlan(ctx, userID, planID, pm)
}

// AttachPaymentMethod links payment details to the tenant, activating a
// trialing or trial-expired subscription.
func (e *Engine) AttachPaymentMethod(ctx context.Context, userID string, pm lifecycle.PaymentMethod) (*store.Subscription, error) {
	return e.lifecycle.AttachPaymentMethod(ctx, userID, pm)
}

// CancelSubscription cancels the tenant's subscription. Terminal.
func (e *Engine) CancelSubscription(ctx context.Context, userID, reason string) (*store.Subscription, error) {
	return e.lifecycle.Cancel(ctx, userID, reason)
}

// CheckFeatureAccess reports whether the tenant may use the feature at the
// given usage level. Fails closed.
func (e *Engine) CheckFeatureAccess(ctx context.Context, userID string, feature catalog.Feature, currentUsage int64) bool {
	return e.evaluator.CheckFeatureAccess(ctx, userID, feature, currentUsage)
}

// EvaluateFeature returns the full entitlement decision, preserving the
// unlimited/unavailable/capped distinction for the billing UI.
func (e *Engine) EvaluateFeature(ctx context.Context, userID string, feature catalog.Feature, currentUsage int64) entitlement.Decision {
	return e.evaluator.Evaluate(ctx, userID, feature, currentUsage)
}

// EvaluateFeatureAccess returns the entitlement decision at the tenant's
// current usage, read from the counters registered at construction. This is
// what the HTTP access endpoint serves, so a tenant at a cap is denied there
// too.
func (e *Engine) EvaluateFeatureAccess(ctx context.Context, userID string, feature catalog.Feature) entitlement.Decision {
	return e.evaluator.EvaluateCurrent(ctx, userID, feature)
}

// CheckTrialAndPaymentStatus summarizes the tenant's trial and payment state.
func (e *Engine) CheckTrialAndPaymentStatus(ctx context.Context, userID string) (*lifecycle.TrialStatus, error) {
	return e.lifecycle.TrialAndPaymentStatus(ctx, userID)
}

// GetUsageStats returns per-feature usage against the tenant's limits.
func (e *Engine) GetUsageStats(ctx context.Context, userID string) (*entitlement.UsageStats, error) {
	return e.evaluator.UsageStats(ctx, userID)
}

// HandleWebhookEvent verifies and applies a payment-provider webhook
// delivery.
func (e *Engine) HandleWebhookEvent(ctx context.Context, payload []byte, signature string) (reconciler.Result, error) {
	return e.reconciler.Handle(ctx, payload, signature)
}

// GetAvailablePlans lists the public plan catalog in ordinal order.
func (e *Engine) GetAvailablePlans() []catalog.Plan {
	return e.catalog.List()
}

// Notifications returns the notification storage for UI read paths, or nil
// when notifications are disabled.
func (e *Engine) Notifications() notify.Storage {
	if e.emitter == nil {
		return nil
	}
	return e.emitter.Storage()
}
