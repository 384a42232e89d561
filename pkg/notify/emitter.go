package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// EmailSender delivers a copy of a notification by email. Implementations
// must be safe for concurrent use.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// EmailResolver maps a tenant ID to a billing email address. The identity
// provider owns user profiles, so the address is looked up rather than
// stored here.
type EmailResolver func(ctx context.Context, userID string) (string, error)

// Emitter writes user-visible notification records as a side effect of
// subscription transitions. It never reads or mutates subscription state.
type Emitter struct {
	storage  Storage
	email    EmailSender
	resolver EmailResolver
	logger   *slog.Logger
}

// EmitterOption configures an Emitter.
type EmitterOption func(*Emitter)

// WithLogger sets the logger for the Emitter.
func WithLogger(logger *slog.Logger) EmitterOption {
	return func(e *Emitter) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithEmail enables best-effort email delivery alongside stored
// notifications. Both the sender and the resolver are required.
func WithEmail(sender EmailSender, resolver EmailResolver) EmitterOption {
	return func(e *Emitter) {
		if sender != nil && resolver != nil {
			e.email = sender
			e.resolver = resolver
		}
	}
}

// NewEmitter creates a notification emitter backed by the given storage.
func NewEmitter(storage Storage, opts ...EmitterOption) *Emitter {
	if storage == nil {
		panic("notify: Storage is required")
	}

	e := &Emitter{
		storage: storage,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Emit appends a notification record. The record is stored first; email
// delivery is best effort and a failure only logs a warning, since the
// notification remains available in the UI either way.
func (e *Emitter) Emit(ctx context.Context, userID string, typ Type, title, message string) error {
	notif := Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Type:      typ,
		Title:     title,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}

	if err := e.storage.Create(ctx, notif); err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}

	if e.email != nil {
		if err := e.sendEmail(ctx, notif); err != nil {
			e.logger.LogAttrs(ctx, slog.LevelWarn, "notification stored but email delivery failed",
				slog.String("notification_id", notif.ID),
				slog.String("user_id", userID),
				slog.String("type", string(typ)),
				slog.Any("error", err),
			)
		}
	}

	return nil
}

func (e *Emitter) sendEmail(ctx context.Context, notif Notification) error {
	to, err := e.resolver(ctx, notif.UserID)
	if err != nil {
		return fmt.Errorf("failed to resolve email address: %w", err)
	}
	return e.email.SendEmail(ctx, to, notif.Title, notif.Message)
}

// Storage returns the underlying notification storage, for the read paths
// (listing, unread counts) the UI layer serves.
func (e *Emitter) Storage() Storage {
	return e.storage
}
