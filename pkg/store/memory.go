package store

import (
	"context"
	"maps"
	"sync"
)

// MemorySubscriptionStore is an in-memory SubscriptionStore.
// Suitable for development and testing.
type MemorySubscriptionStore struct {
	mu   sync.RWMutex
	subs map[string]Subscription
}

// NewMemorySubscriptionStore creates an empty in-memory subscription store.
func NewMemorySubscriptionStore() *MemorySubscriptionStore {
	return &MemorySubscriptionStore{subs: make(map[string]Subscription)}
}

func (s *MemorySubscriptionStore) Get(ctx context.Context, userID string) (*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subs[userID]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return cloneSubscription(sub), nil
}

func (s *MemorySubscriptionStore) Create(ctx context.Context, sub *Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subs[sub.UserID]; exists {
		return ErrSubscriptionAlreadyExists
	}
	sub.Version = 1
	s.subs[sub.UserID] = *cloneSubscription(*sub)
	return nil
}

func (s *MemorySubscriptionStore) Update(ctx context.Context, sub *Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.subs[sub.UserID]
	if !exists {
		return ErrSubscriptionNotFound
	}
	if current.Version != sub.Version {
		return ErrConflict
	}
	sub.Version++
	s.subs[sub.UserID] = *cloneSubscription(*sub)
	return nil
}

// MemoryPaymentMethodStore is an in-memory PaymentMethodStore.
type MemoryPaymentMethodStore struct {
	mu      sync.RWMutex
	methods map[string]PaymentMethodRecord
}

// NewMemoryPaymentMethodStore creates an empty in-memory payment method store.
func NewMemoryPaymentMethodStore() *MemoryPaymentMethodStore {
	return &MemoryPaymentMethodStore{methods: make(map[string]PaymentMethodRecord)}
}

func (s *MemoryPaymentMethodStore) Get(ctx context.Context, userID string) (*PaymentMethodRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.methods[userID]
	if !ok {
		return nil, ErrPaymentMethodNotFound
	}
	return &rec, nil
}

func (s *MemoryPaymentMethodStore) Save(ctx context.Context, rec *PaymentMethodRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.methods[rec.UserID] = *rec
	return nil
}

func (s *MemoryPaymentMethodStore) FindByCustomerID(ctx context.Context, customerID string) (*PaymentMethodRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.methods {
		if rec.ProviderCustomerID == customerID {
			found := rec
			return &found, nil
		}
	}
	return nil, ErrPaymentMethodNotFound
}

// MemoryPaymentEventStore is an in-memory PaymentEventStore.
type MemoryPaymentEventStore struct {
	mu     sync.RWMutex
	events map[string]PaymentEvent
	order  []string
}

// NewMemoryPaymentEventStore creates an empty in-memory payment event store.
func NewMemoryPaymentEventStore() *MemoryPaymentEventStore {
	return &MemoryPaymentEventStore{events: make(map[string]PaymentEvent)}
}

func (s *MemoryPaymentEventStore) Append(ctx context.Context, event *PaymentEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, seen := s.events[event.EventID]; seen {
		return nil
	}
	s.events[event.EventID] = *event
	s.order = append(s.order, event.EventID)
	return nil
}

func (s *MemoryPaymentEventStore) ListByUser(ctx context.Context, userID string) ([]PaymentEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []PaymentEvent
	// Newest first: walk insertion order backwards.
	for i := len(s.order) - 1; i >= 0; i-- {
		if ev := s.events[s.order[i]]; ev.UserID == userID {
			out = append(out, ev)
		}
	}
	return out, nil
}

// cloneSubscription copies the record and its maps so callers cannot mutate
// stored state through shared references.
func cloneSubscription(sub Subscription) *Subscription {
	sub.Limits = maps.Clone(sub.Limits)
	sub.Metadata = maps.Clone(sub.Metadata)
	if sub.CancelledAt != nil {
		at := *sub.CancelledAt
		sub.CancelledAt = &at
	}
	return &sub
}
