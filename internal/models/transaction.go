package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Transaction types
const (
	TransactionTypeDeposit         = "deposit"
	TransactionTypePackagePurchase = "package_purchase"
	TransactionTypeConsume         = "consume"
	TransactionTypeRefund          = "refund"
)

// Transaction statuses. Paid and success are both terminal success states:
// signed gateways settle to paid, the bank-transfer gateway settles to success.
const (
	TransactionStatusPending = "pending"
	TransactionStatusPaid    = "paid"
	TransactionStatusSuccess = "success"
	TransactionStatusFailed  = "failed"
	TransactionStatusExpired = "expired"
)

// Payment providers
const (
	ProviderPayOS        = "PAYOS"
	ProviderSePay        = "SEPAY"
	ProviderLemonSqueezy = "LEMON_SQUEEZY"
	ProviderStripe       = "STRIPE"
)

// Transaction is one funding or spending event.
type Transaction struct {
	ID              string     `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          string     `gorm:"type:uuid;not null;index" json:"user_id"`
	Type            string     `gorm:"not null" json:"type"`
	Status          string     `gorm:"not null;default:'pending';index" json:"status"`
	Amount          int64      `gorm:"not null" json:"amount"`
	Currency        string     `gorm:"not null;size:8" json:"currency"`
	Provider        *string    `gorm:"size:32;uniqueIndex:idx_transactions_provider_ref,priority:1" json:"provider,omitempty"`
	ProviderRef     *string    `gorm:"uniqueIndex:idx_transactions_provider_ref,priority:2" json:"provider_ref,omitempty"`
	MatchKey        *string    `gorm:"index" json:"-"`
	GatewayTxnID    string     `json:"gateway_txn_id,omitempty"`
	PaymentURL      string     `json:"payment_url,omitempty"`
	GatewayResponse JSON       `gorm:"type:jsonb" json:"-"`
	PackageID       *string    `gorm:"type:uuid" json:"package_id,omitempty"`
	PromoCodeID     *string    `gorm:"type:uuid" json:"promo_code_id,omitempty"`
	Description     string     `json:"description,omitempty"`
	IPAddress       string     `json:"-"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CreatedAt       time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// IsTerminal reports whether the status can no longer change.
func (t *Transaction) IsTerminal() bool {
	return IsTerminalStatus(t.Status)
}

// IsTerminalStatus reports whether status is one of the terminal states.
func IsTerminalStatus(status string) bool {
	switch status {
	case TransactionStatusPaid, TransactionStatusSuccess, TransactionStatusFailed, TransactionStatusExpired:
		return true
	}
	return false
}

// ProviderName returns the provider or an empty string for non-gateway types.
func (t *Transaction) ProviderName() string {
	if t.Provider == nil {
		return ""
	}
	return *t.Provider
}
