package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
)

// PaddleConfig holds configuration for the Paddle billing provider.
type PaddleConfig struct {
	APIKey        string `env:"PADDLE_API_KEY,required"`
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET,required"`
	Environment   string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
}

// PaddleProvider implements Provider for Paddle.
type PaddleProvider struct {
	client   *paddle.SDK
	verifier *paddle.WebhookVerifier
	config   PaddleConfig
}

// NewPaddleProvider creates a Paddle-backed payment provider.
func NewPaddleProvider(config PaddleConfig) (*PaddleProvider, error) {
	if config.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if config.WebhookSecret == "" {
		return nil, ErrMissingWebhookSecret
	}

	var client *paddle.SDK
	var err error

	switch strings.ToLower(config.Environment) {
	case "sandbox":
		client, err = paddle.NewSandbox(config.APIKey)
	case "production", "":
		client, err = paddle.New(config.APIKey)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidProviderEnvironment, config.Environment)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create paddle client: %w", err)
	}

	return &PaddleProvider{
		client:   client,
		verifier: paddle.NewWebhookVerifier(config.WebhookSecret),
		config:   config,
	}, nil
}

// CreateCustomer registers the tenant as a Paddle customer. The tenant ID is
// carried in custom data so webhook payloads can be resolved back without a
// lookup table.
func (p *PaddleProvider) CreateCustomer(ctx context.Context, userID, email string) (string, error) {
	if userID == "" {
		return "", errors.New("user ID is required")
	}

	customer, err := p.client.CustomersClient.CreateCustomer(ctx, &paddle.CreateCustomerRequest{
		Email: email,
		CustomData: paddle.CustomData{
			"user_id": userID,
		},
	})
	if err != nil {
		return "", errors.Join(ErrProviderFailure, err)
	}
	return customer.ID, nil
}

// CreateSubscription creates the provider-side subscription by opening a
// transaction for the plan's catalog price. Paddle materializes the
// subscription from the completed transaction and reports it via webhooks.
func (p *PaddleProvider) CreateSubscription(ctx context.Context, customerID, planID string) (string, error) {
	if customerID == "" {
		return "", ErrMissingCustomerID
	}

	item := paddle.NewCreateTransactionItemsTransactionItemFromCatalog(&paddle.TransactionItemFromCatalog{
		PriceID:  planID,
		Quantity: 1,
	})

	transaction, err := p.client.TransactionsClient.CreateTransaction(ctx, &paddle.CreateTransactionRequest{
		Items:      []paddle.CreateTransactionItems{*item},
		CustomerID: paddle.PtrTo(customerID),
		CustomData: paddle.CustomData{
			"customer_id": customerID,
		},
	})
	if err != nil {
		return "", errors.Join(ErrProviderFailure, err)
	}
	return transaction.ID, nil
}

// AttachPaymentMethod records the customer's default payment method. Paddle
// captures card details through its hosted checkout, so the method ID here is
// the saved-method token Paddle already holds; there is no separate attach
// call to make against the API.
func (p *PaddleProvider) AttachPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error {
	if customerID == "" {
		return ErrMissingCustomerID
	}
	if paymentMethodID == "" {
		return ErrMissingPaymentMethodID
	}
	return nil
}

// paddleEnvelope is the common outer shape of every Paddle webhook payload.
type paddleEnvelope struct {
	EventID    string         `json:"event_id"`
	EventType  string         `json:"event_type"`
	OccurredAt string         `json:"occurred_at"`
	Data       map[string]any `json:"data"`
}

// ParseWebhook verifies the Paddle signature and normalizes the payload.
func (p *PaddleProvider) ParseWebhook(ctx context.Context, payload []byte, signature string) (*Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhook", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request for verification: %w", err)
	}
	req.Header.Set("Paddle-Signature", signature)

	valid, err := p.verifier.Verify(req)
	if err != nil {
		return nil, errors.Join(ErrWebhookVerificationFailed, err)
	}
	if !valid {
		return nil, ErrWebhookVerificationFailed
	}

	var envelope paddleEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse webhook payload: %w", err)
	}

	event := &Event{
		EventID:       envelope.EventID,
		Kind:          mapPaddleEventKind(envelope.EventType),
		ProviderEvent: envelope.EventType,
	}
	if at, err := time.Parse(time.RFC3339, envelope.OccurredAt); err == nil {
		event.OccurredAt = at
	}

	data := envelope.Data
	event.CustomerID = stringField(data, "customer_id")
	event.Status = stringField(data, "status")
	event.InvoiceID = stringField(data, "invoice_id")
	event.Amount = amountField(data)
	event.Currency = stringField(data, "currency_code")

	if custom, ok := data["custom_data"].(map[string]any); ok {
		event.UserID = stringField(custom, "user_id")
	}

	// Subscription events carry their own ID in data.id; transaction events
	// reference the subscription through subscription_id.
	if strings.HasPrefix(envelope.EventType, "subscription.") {
		event.SubscriptionID = stringField(data, "id")
	} else {
		if event.InvoiceID == "" {
			event.InvoiceID = stringField(data, "id")
		}
		event.SubscriptionID = stringField(data, "subscription_id")
	}

	if items, ok := data["items"].([]any); ok && len(items) > 0 {
		if item, ok := items[0].(map[string]any); ok {
			if price, ok := item["price"].(map[string]any); ok {
				event.PlanID = stringField(price, "id")
			}
			if event.PlanID == "" {
				event.PlanID = stringField(item, "price_id")
			}
		}
	}

	return event, nil
}

// mapPaddleEventKind maps provider event names to the closed internal union.
func mapPaddleEventKind(providerEvent string) Kind {
	switch providerEvent {
	case "subscription.trial_will_end", "trial_will_end":
		return KindTrialWillEnd
	case "subscription.updated":
		return KindSubscriptionUpdated
	case "transaction.payment_failed", "invoice.payment_failed":
		return KindPaymentFailed
	case "transaction.payment_succeeded", "transaction.completed", "invoice.payment_succeeded":
		return KindPaymentSucceeded
	default:
		return KindUnknown
	}
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

// amountField extracts a monetary amount in the smallest currency unit.
// Paddle serializes amounts as strings; JSON numbers are handled too.
func amountField(m map[string]any) int64 {
	switch v := m["amount"].(type) {
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	case float64:
		return int64(v)
	default:
		return 0
	}
}
