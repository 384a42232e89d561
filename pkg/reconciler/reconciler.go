package reconciler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shelfmetrics/billing/pkg/lifecycle"
	"github.com/shelfmetrics/billing/pkg/logger"
	"github.com/shelfmetrics/billing/pkg/notify"
	"github.com/shelfmetrics/billing/pkg/payment"
	"github.com/shelfmetrics/billing/pkg/store"
)

// Result is the acknowledgement returned to the webhook transport.
type Result struct {
	Received bool `json:"received"`
}

// Reconciler applies payment-provider webhook events to local subscription
// state. Events may arrive duplicated or out of order; every state change
// goes through the lifecycle manager's legality-checked, absolute-status
// update path, so re-application is a no-op in effect.
type Reconciler struct {
	provider  payment.Provider
	lifecycle *lifecycle.Manager
	methods   store.PaymentMethodStore
	events    store.PaymentEventStore
	emitter   *notify.Emitter
	dedup     DedupStore
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithEmitter enables notification side effects for trial-ending and
// payment-failed events.
func WithEmitter(emitter *notify.Emitter) Option {
	return func(r *Reconciler) { r.emitter = emitter }
}

// WithDedup enables explicit event-ID deduplication in front of the
// absolute-state idempotency.
func WithDedup(dedup DedupStore) Option {
	return func(r *Reconciler) { r.dedup = dedup }
}

// WithLogger sets the logger for the Reconciler.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithNow injects a clock for deterministic tests.
func WithNow(now func() time.Time) Option {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// NewReconciler creates a webhook reconciler. Panics if a required dependency
// is nil to fail fast during initialization.
func NewReconciler(provider payment.Provider, lm *lifecycle.Manager, methods store.PaymentMethodStore, events store.PaymentEventStore, opts ...Option) *Reconciler {
	if provider == nil {
		panic("reconciler: payment provider is required")
	}
	if lm == nil {
		panic("reconciler: lifecycle manager is required")
	}
	if methods == nil {
		panic("reconciler: payment method store is required")
	}
	if events == nil {
		panic("reconciler: payment event store is required")
	}

	r := &Reconciler{
		provider:  provider,
		lifecycle: lm,
		methods:   methods,
		events:    events,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle verifies, deduplicates, and applies one webhook delivery.
//
// Failure semantics: a bad signature is fatal and surfaced so the transport
// rejects the delivery; an unresolvable tenant is logged and acknowledged
// (retrying cannot fix it); store failures are surfaced so the provider's
// retry mechanism reattempts delivery.
func (r *Reconciler) Handle(ctx context.Context, payload []byte, signature string) (Result, error) {
	event, err := r.provider.ParseWebhook(ctx, payload, signature)
	if err != nil {
		return Result{}, err
	}

	if r.dedup != nil && event.EventID != "" {
		seen, err := r.dedup.Seen(ctx, event.EventID)
		if err != nil {
			// Dedup is an optimization; fall through to the idempotent path.
			r.logger.LogAttrs(ctx, slog.LevelWarn, "webhook dedup lookup failed",
				logger.EventID(event.EventID), logger.Error(err))
		} else if seen {
			r.logger.LogAttrs(ctx, slog.LevelDebug, "duplicate webhook event ignored",
				logger.EventID(event.EventID))
			return Result{Received: true}, nil
		}
	}

	userID := r.resolveUser(ctx, event)
	if userID == "" {
		r.logger.LogAttrs(ctx, slog.LevelWarn, "webhook event references unknown tenant",
			logger.EventID(event.EventID),
			slog.String("provider_event", event.ProviderEvent),
			slog.String("customer_id", event.CustomerID),
		)
		return Result{Received: true}, nil
	}

	if err := r.apply(ctx, userID, event); err != nil {
		return Result{}, err
	}

	if r.dedup != nil && event.EventID != "" {
		if err := r.dedup.Mark(ctx, event.EventID); err != nil {
			r.logger.LogAttrs(ctx, slog.LevelWarn, "failed to mark webhook event as processed",
				logger.EventID(event.EventID), logger.Error(err))
		}
	}

	return Result{Received: true}, nil
}

// apply maps the event kind onto a lifecycle transition and side effects.
func (r *Reconciler) apply(ctx context.Context, userID string, event *payment.Event) error {
	meta := map[string]string{store.MetaWebhookEventID: event.EventID}
	if event.SubscriptionID != "" {
		meta[store.MetaProviderSubID] = event.SubscriptionID
	}

	switch event.Kind {
	case payment.KindTrialWillEnd:
		r.emit(ctx, userID, notify.TypeTrialWillEnd, "Trial ending soon",
			"Your free trial is ending soon. Add a payment method to keep access to your forecasts.")
		return nil

	case payment.KindSubscriptionUpdated:
		target, ok := statusFromProvider(event.Status)
		if !ok {
			r.logger.LogAttrs(ctx, slog.LevelWarn, "webhook carries unmapped subscription status",
				logger.EventID(event.EventID), slog.String("status", event.Status))
			return nil
		}
		return r.applyStatus(ctx, userID, target, meta, event)

	case payment.KindPaymentFailed:
		if err := r.applyStatus(ctx, userID, store.StatusPastDue, meta, event); err != nil {
			return err
		}
		if err := r.recordPayment(ctx, userID, event, "failed"); err != nil {
			return err
		}
		r.emit(ctx, userID, notify.TypePaymentFailed, "Payment failed",
			"We could not collect your last payment. Update your payment method to keep your subscription active.")
		return nil

	case payment.KindPaymentSucceeded:
		if err := r.applyStatus(ctx, userID, store.StatusActive, meta, event); err != nil {
			return err
		}
		return r.recordPayment(ctx, userID, event, "succeeded")

	case payment.KindUnknown:
		r.logger.LogAttrs(ctx, slog.LevelDebug, "ignoring unhandled webhook event",
			logger.EventID(event.EventID), slog.String("provider_event", event.ProviderEvent))
		return nil

	default:
		r.logger.LogAttrs(ctx, slog.LevelDebug, "ignoring unhandled webhook event",
			logger.EventID(event.EventID), slog.String("provider_event", event.ProviderEvent))
		return nil
	}
}

// applyStatus drives the transition through the lifecycle manager. A missing
// subscription or an illegal transition gets logged and acknowledged: the
// event is stale relative to local state and redelivery cannot help.
func (r *Reconciler) applyStatus(ctx context.Context, userID string, target store.Status, meta map[string]string, event *payment.Event) error {
	_, err := r.lifecycle.ApplyStatus(ctx, userID, target, meta)
	if err == nil {
		return nil
	}
	if errors.Is(err, lifecycle.ErrInvalidTransition) || errors.Is(err, store.ErrSubscriptionNotFound) {
		r.logger.LogAttrs(ctx, slog.LevelWarn, "webhook transition not applicable",
			logger.UserID(userID),
			logger.EventID(event.EventID),
			slog.String("target", string(target)),
			logger.Error(err),
		)
		return nil
	}
	return err
}

func (r *Reconciler) recordPayment(ctx context.Context, userID string, event *payment.Event, status string) error {
	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = r.now().UTC()
	}
	return r.events.Append(ctx, &store.PaymentEvent{
		EventID:    event.EventID,
		UserID:     userID,
		InvoiceID:  event.InvoiceID,
		Amount:     event.Amount,
		Currency:   event.Currency,
		Status:     status,
		OccurredAt: occurredAt,
		RecordedAt: r.now().UTC(),
	})
}

// resolveUser extracts the tenant from event metadata, falling back to a
// provider customer-ID lookup when metadata is absent.
func (r *Reconciler) resolveUser(ctx context.Context, event *payment.Event) string {
	if event.UserID != "" {
		return event.UserID
	}
	if event.CustomerID == "" {
		return ""
	}
	rec, err := r.methods.FindByCustomerID(ctx, event.CustomerID)
	if err != nil {
		return ""
	}
	return rec.UserID
}

func (r *Reconciler) emit(ctx context.Context, userID string, typ notify.Type, title, message string) {
	if r.emitter == nil {
		return
	}
	if err := r.emitter.Emit(ctx, userID, typ, title, message); err != nil {
		r.logger.LogAttrs(ctx, slog.LevelWarn, "failed to emit notification",
			logger.UserID(userID), slog.String("type", string(typ)), logger.Error(err))
	}
}

// statusFromProvider maps provider-reported subscription statuses onto local
// ones. Unknown statuses are skipped rather than guessed.
func statusFromProvider(providerStatus string) (store.Status, bool) {
	switch providerStatus {
	case "trialing":
		return store.StatusTrialing, true
	case "active":
		return store.StatusActive, true
	case "past_due":
		return store.StatusPastDue, true
	case "canceled", "cancelled":
		return store.StatusCancelled, true
	default:
		return "", false
	}
}
