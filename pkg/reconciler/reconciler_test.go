package reconciler_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shelfmetrics/billing/pkg/catalog"
	"github.com/shelfmetrics/billing/pkg/lifecycle"
	"github.com/shelfmetrics/billing/pkg/notify"
	"github.com/shelfmetrics/billing/pkg/payment"
	"github.com/shelfmetrics/billing/pkg/reconciler"
	"github.com/shelfmetrics/billing/pkg/store"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) CreateCustomer(ctx context.Context, userID, email string) (string, error) {
	args := m.Called(ctx, userID, email)
	return args.String(0), args.Error(1)
}

func (m *mockProvider) CreateSubscription(ctx context.Context, customerID, planID string) (string, error) {
	args := m.Called(ctx, customerID, planID)
	return args.String(0), args.Error(1)
}

func (m *mockProvider) AttachPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error {
	args := m.Called(ctx, customerID, paymentMethodID)
	return args.Error(0)
}

func (m *mockProvider) ParseWebhook(ctx context.Context, payload []byte, signature string) (*payment.Event, error) {
	args := m.Called(ctx, payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Event), args.Error(1)
}

type fixture struct {
	rec      *reconciler.Reconciler
	manager  *lifecycle.Manager
	subs     *store.MemorySubscriptionStore
	methods  *store.MemoryPaymentMethodStore
	events   *store.MemoryPaymentEventStore
	provider *mockProvider
	notifs   *notify.MemoryStorage
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cat, err := catalog.New(catalog.NewStaticSource(
		catalog.Plan{
			ID:        "starter",
			Name:      "Starter",
			Ordinal:   0,
			Limits:    map[catalog.Feature]int64{catalog.FeatureStores: 1},
			Public:    true,
			TrialDays: 14,
		},
	))
	require.NoError(t, err)

	f := &fixture{
		subs:     store.NewMemorySubscriptionStore(),
		methods:  store.NewMemoryPaymentMethodStore(),
		events:   store.NewMemoryPaymentEventStore(),
		provider: &mockProvider{},
		notifs:   notify.NewMemoryStorage(),
	}
	emitter := notify.NewEmitter(f.notifs)
	f.manager = lifecycle.NewManager(cat, f.subs, f.methods, f.provider,
		lifecycle.WithEmitter(emitter))
	f.rec = reconciler.NewReconciler(f.provider, f.manager, f.methods, f.events,
		reconciler.WithEmitter(emitter),
		reconciler.WithDedup(reconciler.NewMemoryDedup()))
	return f
}

func (f *fixture) createSubscription(t *testing.T, userID string) {
	t.Helper()
	_, err := f.manager.Create(context.Background(), userID, "starter", lifecycle.CreateOptions{})
	require.NoError(t, err)
}

func (f *fixture) expectEvent(event *payment.Event) {
	f.provider.On("ParseWebhook", mock.Anything, mock.Anything, mock.Anything).Return(event, nil).Once()
}

func TestHandlePaymentFailed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t)
	f.createSubscription(t, "user-1")
	_, err := f.manager.ApplyStatus(ctx, "user-1", store.StatusActive, nil)
	require.NoError(t, err)

	f.expectEvent(&payment.Event{
		EventID:    "evt_1",
		Kind:       payment.KindPaymentFailed,
		UserID:     "user-1",
		InvoiceID:  "inv_1",
		Amount:     2900,
		Currency:   "USD",
		OccurredAt: time.Now().UTC(),
	})

	result, err := f.rec.Handle(ctx, []byte(`{}`), "sig")
	require.NoError(t, err)
	assert.True(t, result.Received)

	sub, err := f.subs.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusPastDue, sub.Status)
	assert.Equal(t, "evt_1", sub.Metadata[store.MetaWebhookEventID])

	history, err := f.events.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "failed", history[0].Status)
	assert.Equal(t, int64(2900), history[0].Amount)

	notifs, err := f.notifs.List(ctx, "user-1", notify.ListOptions{})
	require.NoError(t, err)
	require.Len(t, notifs, 1)
	assert.Equal(t, notify.TypePaymentFailed, notifs[0].Type)
}

func TestHandlePaymentSucceeded(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("recovers a past due subscription", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.createSubscription(t, "user-1")
		_, err := f.manager.ApplyStatus(ctx, "user-1", store.StatusActive, nil)
		require.NoError(t, err)
		_, err = f.manager.ApplyStatus(ctx, "user-1", store.StatusPastDue, nil)
		require.NoError(t, err)

		f.expectEvent(&payment.Event{
			EventID: "evt_2",
			Kind:    payment.KindPaymentSucceeded,
			UserID:  "user-1",
			Amount:  2900,
		})

		_, err = f.rec.Handle(ctx, []byte(`{}`), "sig")
		require.NoError(t, err)

		sub, err := f.subs.Get(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, store.StatusActive, sub.Status)
		assert.False(t, sub.PaymentMethodRequired)

		history, err := f.events.ListByUser(ctx, "user-1")
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, "succeeded", history[0].Status)
	})

	t.Run("activates an expired trial after checkout", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.createSubscription(t, "user-1")
		_, err := f.manager.ApplyStatus(ctx, "user-1", store.StatusTrialExpired, nil)
		require.NoError(t, err)

		f.expectEvent(&payment.Event{
			EventID: "evt_3",
			Kind:    payment.KindPaymentSucceeded,
			UserID:  "user-1",
		})

		_, err = f.rec.Handle(ctx, []byte(`{}`), "sig")
		require.NoError(t, err)

		sub, err := f.subs.Get(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, store.StatusActive, sub.Status)
	})
}

func TestHandleDuplicateDelivery(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t)
	f.createSubscription(t, "user-1")
	_, err := f.manager.ApplyStatus(ctx, "user-1", store.StatusActive, nil)
	require.NoError(t, err)

	event := &payment.Event{
		EventID: "evt_dup",
		Kind:    payment.KindPaymentFailed,
		UserID:  "user-1",
		Amount:  2900,
	}
	f.expectEvent(event)
	f.expectEvent(event)

	_, err = f.rec.Handle(ctx, []byte(`{}`), "sig")
	require.NoError(t, err)
	result, err := f.rec.Handle(ctx, []byte(`{}`), "sig")
	require.NoError(t, err)
	assert.True(t, result.Received, "duplicates are acknowledged, not errored")

	history, err := f.events.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, history, 1, "history entry must not repeat")

	notifs, err := f.notifs.List(ctx, "user-1", notify.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, notifs, 1, "notification must not repeat")
}

func TestHandleSubscriptionUpdated(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("applies the provider status", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.createSubscription(t, "user-1")

		f.expectEvent(&payment.Event{
			EventID: "evt_4",
			Kind:    payment.KindSubscriptionUpdated,
			UserID:  "user-1",
			Status:  "active",
		})

		_, err := f.rec.Handle(ctx, []byte(`{}`), "sig")
		require.NoError(t, err)

		sub, err := f.subs.Get(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, store.StatusActive, sub.Status)
	})

	t.Run("unmapped provider status is acknowledged", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.createSubscription(t, "user-1")

		f.expectEvent(&payment.Event{
			EventID: "evt_5",
			Kind:    payment.KindSubscriptionUpdated,
			UserID:  "user-1",
			Status:  "paused",
		})

		result, err := f.rec.Handle(ctx, []byte(`{}`), "sig")
		require.NoError(t, err)
		assert.True(t, result.Received)

		sub, err := f.subs.Get(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, store.StatusTrialing, sub.Status)
	})
}

func TestHandleStaleTransition(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t)
	f.createSubscription(t, "user-1")
	_, err := f.manager.Cancel(ctx, "user-1", "")
	require.NoError(t, err)

	f.expectEvent(&payment.Event{
		EventID: "evt_6",
		Kind:    payment.KindPaymentSucceeded,
		UserID:  "user-1",
	})

	result, err := f.rec.Handle(ctx, []byte(`{}`), "sig")
	require.NoError(t, err, "events that cannot apply are acknowledged so the provider stops retrying")
	assert.True(t, result.Received)

	sub, err := f.subs.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusCancelled, sub.Status, "cancelled stays terminal")
}

func TestHandleTrialWillEnd(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t)
	f.createSubscription(t, "user-1")

	f.expectEvent(&payment.Event{
		EventID: "evt_7",
		Kind:    payment.KindTrialWillEnd,
		UserID:  "user-1",
	})

	_, err := f.rec.Handle(ctx, []byte(`{}`), "sig")
	require.NoError(t, err)

	notifs, err := f.notifs.List(ctx, "user-1", notify.ListOptions{})
	require.NoError(t, err)
	require.Len(t, notifs, 1)
	assert.Equal(t, notify.TypeTrialWillEnd, notifs[0].Type)

	sub, err := f.subs.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusTrialing, sub.Status, "a warning event changes nothing")
}

func TestHandleInvalidSignature(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.provider.On("ParseWebhook", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, payment.ErrWebhookVerificationFailed).Once()

	_, err := f.rec.Handle(context.Background(), []byte(`{}`), "bad-sig")
	assert.ErrorIs(t, err, payment.ErrWebhookVerificationFailed)
}

func TestHandleUnknownTenant(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("unresolvable customer is acknowledged", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.expectEvent(&payment.Event{
			EventID:    "evt_8",
			Kind:       payment.KindPaymentFailed,
			CustomerID: "ctm_unknown",
		})

		result, err := f.rec.Handle(ctx, []byte(`{}`), "sig")
		require.NoError(t, err)
		assert.True(t, result.Received)
	})

	t.Run("customer ID resolves through payment records", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.createSubscription(t, "user-1")
		_, err := f.manager.ApplyStatus(ctx, "user-1", store.StatusActive, nil)
		require.NoError(t, err)
		require.NoError(t, f.methods.Save(ctx, &store.PaymentMethodRecord{
			UserID: "user-1", ProviderCustomerID: "ctm_1",
		}))

		f.expectEvent(&payment.Event{
			EventID:    "evt_9",
			Kind:       payment.KindPaymentFailed,
			CustomerID: "ctm_1",
		})

		_, err = f.rec.Handle(ctx, []byte(`{}`), "sig")
		require.NoError(t, err)

		sub, err := f.subs.Get(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, store.StatusPastDue, sub.Status)
	})
}

func TestHandleUnknownEventKind(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.createSubscription(t, "user-1")
	f.expectEvent(&payment.Event{
		EventID:       "evt_10",
		Kind:          payment.KindUnknown,
		ProviderEvent: "subscription.paused",
		UserID:        "user-1",
	})

	result, err := f.rec.Handle(context.Background(), []byte(`{}`), "sig")
	require.NoError(t, err)
	assert.True(t, result.Received)
}
