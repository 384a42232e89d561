package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	collSubscriptions  = "subscriptions"
	collPaymentMethods = "payment_methods"
	collPaymentEvents  = "payment_events"
)

// MongoSubscriptionStore is a MongoDB-backed SubscriptionStore. Conditional
// writes are expressed as filters on _id plus version so a stale
// read-then-write surfaces as ErrConflict instead of silently overwriting a
// concurrent transition.
type MongoSubscriptionStore struct {
	coll *mongo.Collection
}

// NewMongoSubscriptionStore creates a subscription store on the given database.
func NewMongoSubscriptionStore(db *mongo.Database) *MongoSubscriptionStore {
	return &MongoSubscriptionStore{coll: db.Collection(collSubscriptions)}
}

func (s *MongoSubscriptionStore) Get(ctx context.Context, userID string) (*Subscription, error) {
	var sub Subscription
	err := s.coll.FindOne(ctx, bson.M{"_id": userID}).Decode(&sub)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, errors.Join(ErrStoreFailure, err)
	}
	return &sub, nil
}

func (s *MongoSubscriptionStore) Create(ctx context.Context, sub *Subscription) error {
	sub.Version = 1
	if _, err := s.coll.InsertOne(ctx, sub); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrSubscriptionAlreadyExists
		}
		return errors.Join(ErrStoreFailure, err)
	}
	return nil
}

func (s *MongoSubscriptionStore) Update(ctx context.Context, sub *Subscription) error {
	expected := sub.Version
	sub.Version = expected + 1

	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": sub.UserID, "version": expected}, sub)
	if err != nil {
		sub.Version = expected
		return errors.Join(ErrStoreFailure, err)
	}
	if res.MatchedCount == 0 {
		sub.Version = expected
		// Distinguish a missing record from a version mismatch.
		count, err := s.coll.CountDocuments(ctx, bson.M{"_id": sub.UserID})
		if err != nil {
			return errors.Join(ErrStoreFailure, err)
		}
		if count == 0 {
			return ErrSubscriptionNotFound
		}
		return ErrConflict
	}
	return nil
}

// MongoPaymentMethodStore is a MongoDB-backed PaymentMethodStore.
type MongoPaymentMethodStore struct {
	coll *mongo.Collection
}

// NewMongoPaymentMethodStore creates a payment method store on the given database.
func NewMongoPaymentMethodStore(db *mongo.Database) *MongoPaymentMethodStore {
	return &MongoPaymentMethodStore{coll: db.Collection(collPaymentMethods)}
}

// EnsureIndexes creates the customer-ID lookup index used by webhook
// reconciliation. Call once at startup.
func (s *MongoPaymentMethodStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "provider_customer_id", Value: 1}},
	})
	if err != nil {
		return errors.Join(ErrStoreFailure, err)
	}
	return nil
}

func (s *MongoPaymentMethodStore) Get(ctx context.Context, userID string) (*PaymentMethodRecord, error) {
	var rec PaymentMethodRecord
	err := s.coll.FindOne(ctx, bson.M{"_id": userID}).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPaymentMethodNotFound
		}
		return nil, errors.Join(ErrStoreFailure, err)
	}
	return &rec, nil
}

func (s *MongoPaymentMethodStore) Save(ctx context.Context, rec *PaymentMethodRecord) error {
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": rec.UserID}, rec,
		options.Replace().SetUpsert(true))
	if err != nil {
		return errors.Join(ErrStoreFailure, err)
	}
	return nil
}

func (s *MongoPaymentMethodStore) FindByCustomerID(ctx context.Context, customerID string) (*PaymentMethodRecord, error) {
	var rec PaymentMethodRecord
	err := s.coll.FindOne(ctx, bson.M{"provider_customer_id": customerID}).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPaymentMethodNotFound
		}
		return nil, errors.Join(ErrStoreFailure, err)
	}
	return &rec, nil
}

// MongoPaymentEventStore is a MongoDB-backed PaymentEventStore. The provider
// event ID is the document _id, so redelivered webhooks collapse into a
// single history entry.
type MongoPaymentEventStore struct {
	coll *mongo.Collection
}

// NewMongoPaymentEventStore creates a payment event store on the given database.
func NewMongoPaymentEventStore(db *mongo.Database) *MongoPaymentEventStore {
	return &MongoPaymentEventStore{coll: db.Collection(collPaymentEvents)}
}

// EnsureIndexes creates the per-tenant history index. Call once at startup.
func (s *MongoPaymentEventStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "occurred_at", Value: -1}},
	})
	if err != nil {
		return errors.Join(ErrStoreFailure, err)
	}
	return nil
}

func (s *MongoPaymentEventStore) Append(ctx context.Context, event *PaymentEvent) error {
	if _, err := s.coll.InsertOne(ctx, event); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return errors.Join(ErrStoreFailure, err)
	}
	return nil
}

func (s *MongoPaymentEventStore) ListByUser(ctx context.Context, userID string) ([]PaymentEvent, error) {
	cursor, err := s.coll.Find(ctx, bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "occurred_at", Value: -1}}))
	if err != nil {
		return nil, errors.Join(ErrStoreFailure, err)
	}

	var events []PaymentEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, errors.Join(ErrStoreFailure, err)
	}
	return events, nil
}
