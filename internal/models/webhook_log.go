package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Webhook log statuses
const (
	WebhookStatusReceived       = "received"
	WebhookStatusIgnored        = "ignored"
	WebhookStatusInvalid        = "invalid"
	WebhookStatusNoMatch        = "no_match"
	WebhookStatusDuplicate      = "duplicate"
	WebhookStatusAmountMismatch = "amount_mismatch"
	WebhookStatusProcessed      = "processed"
	WebhookStatusRejected       = "rejected"
	WebhookStatusError          = "error"
)

// WebhookLog records every inbound provider notification before any decision
// is made about it.
type WebhookLog struct {
	ID                   string    `gorm:"type:uuid;primaryKey" json:"id"`
	Provider             string    `gorm:"not null;size:32;index" json:"provider"`
	EventType            string    `json:"event_type"`
	Payload              string    `gorm:"type:text" json:"payload"`
	Status               string    `gorm:"not null;default:'received'" json:"status"`
	MatchedTransactionID *string   `gorm:"type:uuid" json:"matched_transaction_id,omitempty"`
	IPAddress            string    `json:"ip_address"`
	CreatedAt            time.Time `gorm:"index" json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func (l *WebhookLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}
