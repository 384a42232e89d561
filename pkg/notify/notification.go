package notify

import "time"

// Type identifies what a notification is about.
type Type string

const (
	TypeTrialWillEnd          Type = "trial_will_end"
	TypeTrialExpired          Type = "trial_expired"
	TypePaymentFailed         Type = "payment_failed"
	TypePaymentSucceeded      Type = "payment_succeeded"
	TypePlanChanged           Type = "plan_changed"
	TypeSubscriptionCancelled Type = "subscription_cancelled"
)

// Notification is an append-only, user-visible record. Only the UI mutates
// it afterwards, and only to flip the read flag.
type Notification struct {
	ID        string     `bson:"_id" json:"id"`
	UserID    string     `bson:"user_id" json:"userId"`
	Type      Type       `bson:"type" json:"type"`
	Title     string     `bson:"title" json:"title"`
	Message   string     `bson:"message" json:"message"`
	Read      bool       `bson:"read" json:"read"`
	ReadAt    *time.Time `bson:"read_at,omitempty" json:"readAt,omitempty"`
	CreatedAt time.Time  `bson:"created_at" json:"createdAt"`
}

// MarkAsRead flips the read flag with the current timestamp.
func (n *Notification) MarkAsRead() {
	n.Read = true
	now := time.Now().UTC()
	n.ReadAt = &now
}
