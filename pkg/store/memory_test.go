package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfmetrics/billing/pkg/catalog"
	"github.com/shelfmetrics/billing/pkg/store"
)

func newSubscription(userID string) *store.Subscription {
	now := time.Now().UTC()
	return &store.Subscription{
		UserID:         userID,
		SubscriptionID: "sub-" + userID,
		PlanID:         "starter",
		Status:         store.StatusTrialing,
		TrialStart:     now,
		TrialEnd:       now.AddDate(0, 0, 14),
		Limits:         map[catalog.Feature]int64{catalog.FeatureStores: 1},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestMemorySubscriptionStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		t.Parallel()

		s := store.NewMemorySubscriptionStore()
		_, err := s.Get(ctx, "absent")
		assert.ErrorIs(t, err, store.ErrSubscriptionNotFound)
	})

	t.Run("create then get", func(t *testing.T) {
		t.Parallel()

		s := store.NewMemorySubscriptionStore()
		sub := newSubscription("user-1")
		require.NoError(t, s.Create(ctx, sub))
		assert.Equal(t, int64(1), sub.Version)

		got, err := s.Get(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, sub.SubscriptionID, got.SubscriptionID)
		assert.Equal(t, store.StatusTrialing, got.Status)
	})

	t.Run("create duplicate", func(t *testing.T) {
		t.Parallel()

		s := store.NewMemorySubscriptionStore()
		require.NoError(t, s.Create(ctx, newSubscription("user-1")))
		err := s.Create(ctx, newSubscription("user-1"))
		assert.ErrorIs(t, err, store.ErrSubscriptionAlreadyExists)
	})

	t.Run("update increments version", func(t *testing.T) {
		t.Parallel()

		s := store.NewMemorySubscriptionStore()
		sub := newSubscription("user-1")
		require.NoError(t, s.Create(ctx, sub))

		sub.Status = store.StatusActive
		require.NoError(t, s.Update(ctx, sub))
		assert.Equal(t, int64(2), sub.Version)

		got, err := s.Get(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, store.StatusActive, got.Status)
	})

	t.Run("update with stale version conflicts", func(t *testing.T) {
		t.Parallel()

		s := store.NewMemorySubscriptionStore()
		require.NoError(t, s.Create(ctx, newSubscription("user-1")))

		first, err := s.Get(ctx, "user-1")
		require.NoError(t, err)
		second, err := s.Get(ctx, "user-1")
		require.NoError(t, err)

		first.Status = store.StatusActive
		require.NoError(t, s.Update(ctx, first))

		second.Status = store.StatusCancelled
		assert.ErrorIs(t, s.Update(ctx, second), store.ErrConflict)
	})

	t.Run("update missing", func(t *testing.T) {
		t.Parallel()

		s := store.NewMemorySubscriptionStore()
		assert.ErrorIs(t, s.Update(ctx, newSubscription("absent")), store.ErrSubscriptionNotFound)
	})

	t.Run("returned records are isolated copies", func(t *testing.T) {
		t.Parallel()

		s := store.NewMemorySubscriptionStore()
		require.NoError(t, s.Create(ctx, newSubscription("user-1")))

		got, err := s.Get(ctx, "user-1")
		require.NoError(t, err)
		got.Limits[catalog.FeatureStores] = 999
		got.Status = store.StatusCancelled

		fresh, err := s.Get(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), fresh.Limits[catalog.FeatureStores])
		assert.Equal(t, store.StatusTrialing, fresh.Status)
	})
}

func TestMemoryPaymentMethodStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		t.Parallel()

		s := store.NewMemoryPaymentMethodStore()
		_, err := s.Get(ctx, "absent")
		assert.ErrorIs(t, err, store.ErrPaymentMethodNotFound)
	})

	t.Run("save then get", func(t *testing.T) {
		t.Parallel()

		s := store.NewMemoryPaymentMethodStore()
		rec := &store.PaymentMethodRecord{
			UserID:             "user-1",
			ProviderCustomerID: "ctm_123",
			PaymentMethodID:    "pm_456",
			AttachedAt:         time.Now().UTC(),
		}
		require.NoError(t, s.Save(ctx, rec))

		got, err := s.Get(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, "ctm_123", got.ProviderCustomerID)
	})

	t.Run("find by customer ID", func(t *testing.T) {
		t.Parallel()

		s := store.NewMemoryPaymentMethodStore()
		require.NoError(t, s.Save(ctx, &store.PaymentMethodRecord{UserID: "user-1", ProviderCustomerID: "ctm_123"}))

		got, err := s.FindByCustomerID(ctx, "ctm_123")
		require.NoError(t, err)
		assert.Equal(t, "user-1", got.UserID)

		_, err = s.FindByCustomerID(ctx, "ctm_unknown")
		assert.ErrorIs(t, err, store.ErrPaymentMethodNotFound)
	})
}

func TestMemoryPaymentEventStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("append is idempotent by event ID", func(t *testing.T) {
		t.Parallel()

		s := store.NewMemoryPaymentEventStore()
		ev := &store.PaymentEvent{EventID: "evt_1", UserID: "user-1", Amount: 2900, Status: "succeeded"}
		require.NoError(t, s.Append(ctx, ev))
		require.NoError(t, s.Append(ctx, ev))

		events, err := s.ListByUser(ctx, "user-1")
		require.NoError(t, err)
		assert.Len(t, events, 1)
	})

	t.Run("list newest first per user", func(t *testing.T) {
		t.Parallel()

		s := store.NewMemoryPaymentEventStore()
		require.NoError(t, s.Append(ctx, &store.PaymentEvent{EventID: "evt_1", UserID: "user-1"}))
		require.NoError(t, s.Append(ctx, &store.PaymentEvent{EventID: "evt_2", UserID: "user-2"}))
		require.NoError(t, s.Append(ctx, &store.PaymentEvent{EventID: "evt_3", UserID: "user-1"}))

		events, err := s.ListByUser(ctx, "user-1")
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, "evt_3", events[0].EventID)
		assert.Equal(t, "evt_1", events[1].EventID)
	})
}
