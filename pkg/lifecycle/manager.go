package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shelfmetrics/billing/pkg/catalog"
	"github.com/shelfmetrics/billing/pkg/logger"
	"github.com/shelfmetrics/billing/pkg/notify"
	"github.com/shelfmetrics/billing/pkg/payment"
	"github.com/shelfmetrics/billing/pkg/store"
	"github.com/shelfmetrics/billing/pkg/trial"
)

// PaymentMethod is the payment details a tenant supplies when upgrading or
// adding payment. MethodID is the provider's saved-method token captured by
// the hosted payment flow; Email seeds provider customer creation.
type PaymentMethod struct {
	MethodID string `json:"methodId"`
	Email    string `json:"email,omitempty"`
}

// CreateOptions carries optional creation parameters.
type CreateOptions struct {
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Manager orchestrates subscription lifecycle operations: creation, plan
// changes, cancellation, and the status transitions driven by webhook
// reconciliation. It is the only writer of Subscription.Status.
type Manager struct {
	catalog  *catalog.Catalog
	subs     store.SubscriptionStore
	methods  store.PaymentMethodStore
	provider payment.Provider
	emitter  *notify.Emitter
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithEmitter enables notification records as transition side effects.
func WithEmitter(emitter *notify.Emitter) Option {
	return func(m *Manager) { m.emitter = emitter }
}

// WithLogger sets the logger for the Manager.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithNow injects a clock for deterministic trial-expiry tests.
func WithNow(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates a lifecycle manager. Panics if a required dependency is
// nil to fail fast during initialization.
func NewManager(cat *catalog.Catalog, subs store.SubscriptionStore, methods store.PaymentMethodStore, provider payment.Provider, opts ...Option) *Manager {
	if cat == nil {
		panic("lifecycle: catalog is required")
	}
	if subs == nil {
		panic("lifecycle: subscription store is required")
	}
	if methods == nil {
		panic("lifecycle: payment method store is required")
	}
	if provider == nil {
		panic("lifecycle: payment provider is required")
	}

	m := &Manager{
		catalog:  cat,
		subs:     subs,
		methods:  methods,
		provider: provider,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create starts a 14-day trial subscription on the given plan. The insert is
// guarded on non-existence, so a tenant can never hold two subscriptions.
func (m *Manager) Create(ctx context.Context, userID, planID string, opts CreateOptions) (*store.Subscription, error) {
	plan, err := m.catalog.Get(planID)
	if err != nil {
		return nil, err
	}

	now := m.now().UTC()
	sub := &store.Subscription{
		UserID:         userID,
		SubscriptionID: uuid.New().String(),
		PlanID:         plan.ID,
		Status:         store.StatusTrialing,
		TrialStart:     now,
		TrialEnd:       trial.EndAt(now),
		Limits:         plan.LimitsSnapshot(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for k, v := range opts.Metadata {
		sub.SetMeta(k, v)
	}

	if err := m.subs.Create(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// Get returns the tenant's subscription, applying lazy trial expiry: a
// trialing record past its trial end is rewritten to trial_expired before it
// is returned, so no caller ever observes an expired trial still reporting
// trialing. Expiry is evaluated on read precisely so no background scheduler
// is needed.
func (m *Manager) Get(ctx context.Context, userID string) (*store.Subscription, error) {
	for attempt := 0; ; attempt++ {
		sub, err := m.subs.Get(ctx, userID)
		if err != nil {
			return nil, err
		}

		now := m.now().UTC()
		if sub.Status != store.StatusTrialing || !trial.ExpiredAt(sub.TrialEnd, now) {
			return sub, nil
		}

		if !canTransition(sub.Status, store.StatusTrialExpired) {
			return sub, nil
		}
		sub.Status = store.StatusTrialExpired
		sub.PaymentMethodRequired = true
		sub.UpdatedAt = now

		err = m.subs.Update(ctx, sub)
		if err == nil {
			m.emit(ctx, userID, notify.TypeTrialExpired, "Trial ended",
				"Your free trial has ended. Add a payment method to keep access to your forecasts.")
			return sub, nil
		}
		// A concurrent write advanced the record; reload once and re-evaluate
		// against the fresh state.
		if errors.Is(err, store.ErrConflict) && attempt == 0 {
			continue
		}
		return nil, err
	}
}

// ChangePlan switches the tenant to a new plan. Upgrades from trial_expired
// or past_due require a payment method supplied or on file; downgrades never
// do. Plan limits are re-snapshotted from the catalog and provenance is
// recorded in metadata. A plan change by itself does not alter billing
// status, except that attaching payment from trialing/trial_expired
// activates the subscription.
func (m *Manager) ChangePlan(ctx context.Context, userID, newPlanID string, pm *PaymentMethod) (*store.Subscription, error) {
	newPlan, err := m.catalog.Get(newPlanID)
	if err != nil {
		return nil, err
	}

	var attached *store.PaymentMethodRecord
	providerSubID := ""

	for attempt := 0; ; attempt++ {
		sub, err := m.Get(ctx, userID)
		if err != nil {
			return nil, err
		}
		if sub.IsCancelled() {
			return nil, store.ErrSubscriptionNotFound
		}

		kind, err := m.catalog.Compare(sub.PlanID, newPlanID)
		if err != nil {
			return nil, err
		}

		if kind == catalog.ChangeUpgrade && (sub.Status == store.StatusTrialExpired || sub.Status == store.StatusPastDue) {
			if pm == nil && !m.hasPaymentMethod(ctx, userID) {
				return nil, ErrPaymentMethodRequired
			}
		}

		if pm != nil && attached == nil {
			attached, err = m.attach(ctx, userID, *pm)
			if err != nil {
				return nil, err
			}
		}
		if attached != nil {
			sub.PaymentMethodRequired = false
			if sub.Status == store.StatusTrialing || sub.Status == store.StatusTrialExpired {
				if providerSubID == "" {
					providerSubID, err = m.provider.CreateSubscription(ctx, attached.ProviderCustomerID, newPlan.ID)
					if err != nil {
						return nil, err
					}
				}
				sub.SetMeta(store.MetaProviderSubID, providerSubID)
				sub.Status = store.StatusActive
			}
		}

		sub.SetMeta(store.MetaPreviousPlan, sub.PlanID)
		sub.SetMeta(store.MetaChangeReason, string(kind))
		sub.PlanID = newPlan.ID
		sub.Limits = newPlan.LimitsSnapshot()
		sub.UpdatedAt = m.now().UTC()

		err = m.subs.Update(ctx, sub)
		if err == nil {
			m.emit(ctx, userID, notify.TypePlanChanged, "Plan changed",
				fmt.Sprintf("Your subscription has moved to the %s plan.", newPlan.Name))
			return sub, nil
		}
		if errors.Is(err, store.ErrConflict) && attempt == 0 {
			continue
		}
		return nil, err
	}
}

// AttachPaymentMethod links payment details to the tenant and, when the
// subscription is trialing or trial-expired, activates it on its current
// plan.
func (m *Manager) AttachPaymentMethod(ctx context.Context, userID string, pm PaymentMethod) (*store.Subscription, error) {
	attached, err := m.attach(ctx, userID, pm)
	if err != nil {
		return nil, err
	}

	providerSubID := ""
	for attempt := 0; ; attempt++ {
		sub, err := m.Get(ctx, userID)
		if err != nil {
			return nil, err
		}
		if sub.IsCancelled() {
			return nil, store.ErrSubscriptionNotFound
		}

		sub.PaymentMethodRequired = false
		if sub.Status == store.StatusTrialing || sub.Status == store.StatusTrialExpired {
			if providerSubID == "" {
				providerSubID, err = m.provider.CreateSubscription(ctx, attached.ProviderCustomerID, sub.PlanID)
				if err != nil {
					return nil, err
				}
			}
			sub.SetMeta(store.MetaProviderSubID, providerSubID)
			sub.Status = store.StatusActive
		}
		sub.UpdatedAt = m.now().UTC()

		err = m.subs.Update(ctx, sub)
		if err == nil {
			return sub, nil
		}
		if errors.Is(err, store.ErrConflict) && attempt == 0 {
			continue
		}
		return nil, err
	}
}

// Cancel marks the subscription cancelled. The record is retained for audit;
// cancellation is terminal. Cancelling a missing or already-cancelled
// subscription returns ErrSubscriptionNotFound.
func (m *Manager) Cancel(ctx context.Context, userID, reason string) (*store.Subscription, error) {
	for attempt := 0; ; attempt++ {
		sub, err := m.Get(ctx, userID)
		if err != nil {
			return nil, err
		}
		if sub.IsCancelled() {
			return nil, store.ErrSubscriptionNotFound
		}

		now := m.now().UTC()
		sub.Status = store.StatusCancelled
		sub.CancelledAt = &now
		sub.CancelReason = reason
		sub.UpdatedAt = now

		err = m.subs.Update(ctx, sub)
		if err == nil {
			m.emit(ctx, userID, notify.TypeSubscriptionCancelled, "Subscription cancelled",
				"Your subscription has been cancelled. Your data remains available for export.")
			return sub, nil
		}
		if errors.Is(err, store.ErrConflict) && attempt == 0 {
			continue
		}
		return nil, err
	}
}

// ApplyStatus moves the subscription to an absolute target status on behalf
// of webhook reconciliation. Re-applying the current status is a no-op, which
// is what makes redelivered provider events harmless. Illegal transitions
// return ErrInvalidTransition.
func (m *Manager) ApplyStatus(ctx context.Context, userID string, target store.Status, meta map[string]string) (*store.Subscription, error) {
	for attempt := 0; ; attempt++ {
		sub, err := m.subs.Get(ctx, userID)
		if err != nil {
			return nil, err
		}
		if sub.Status == target {
			return sub, nil
		}
		if !canTransition(sub.Status, target) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, sub.Status, target)
		}

		sub.Status = target
		if target == store.StatusActive {
			sub.PaymentMethodRequired = false
		}
		for k, v := range meta {
			sub.SetMeta(k, v)
		}
		sub.UpdatedAt = m.now().UTC()

		err = m.subs.Update(ctx, sub)
		if err == nil {
			return sub, nil
		}
		if errors.Is(err, store.ErrConflict) && attempt == 0 {
			continue
		}
		return nil, err
	}
}

// attach registers the payment method with the provider and persists the
// tenant's payment record, reusing an existing provider customer when one is
// already on file.
func (m *Manager) attach(ctx context.Context, userID string, pm PaymentMethod) (*store.PaymentMethodRecord, error) {
	if pm.MethodID == "" {
		return nil, payment.ErrMissingPaymentMethodID
	}

	rec, err := m.methods.Get(ctx, userID)
	switch {
	case err == nil:
		// Existing provider customer; only the method changes.
	case errors.Is(err, store.ErrPaymentMethodNotFound):
		customerID, err := m.provider.CreateCustomer(ctx, userID, pm.Email)
		if err != nil {
			return nil, err
		}
		rec = &store.PaymentMethodRecord{
			UserID:             userID,
			ProviderCustomerID: customerID,
		}
	default:
		return nil, err
	}

	if err := m.provider.AttachPaymentMethod(ctx, rec.ProviderCustomerID, pm.MethodID); err != nil {
		return nil, err
	}

	rec.PaymentMethodID = pm.MethodID
	rec.AttachedAt = m.now().UTC()
	if err := m.methods.Save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// hasPaymentMethod reports whether payment details are on file. Errors fail
// closed: a store failure counts as no payment method.
func (m *Manager) hasPaymentMethod(ctx context.Context, userID string) bool {
	_, err := m.methods.Get(ctx, userID)
	return err == nil
}

// emit records a notification as a best-effort side effect; failures are
// logged but never fail the transition that triggered them.
func (m *Manager) emit(ctx context.Context, userID string, typ notify.Type, title, message string) {
	if m.emitter == nil {
		return
	}
	if err := m.emitter.Emit(ctx, userID, typ, title, message); err != nil {
		m.logger.LogAttrs(ctx, slog.LevelWarn, "failed to emit notification",
			logger.UserID(userID),
			slog.String("type", string(typ)),
			logger.Error(err),
		)
	}
}
