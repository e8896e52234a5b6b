package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Wallet is one user's balance in one currency. Amounts are minor units.
type Wallet struct {
	ID             string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         string    `gorm:"type:uuid;not null;uniqueIndex:uq_wallets_user_currency,priority:1" json:"user_id"`
	CurrencyID     string    `gorm:"type:uuid;not null;uniqueIndex:uq_wallets_user_currency,priority:2" json:"currency_id"`
	Currency       *Currency `gorm:"foreignKey:CurrencyID" json:"currency,omitempty"`
	Balance        int64     `gorm:"not null;default:0;check:chk_wallets_balance_non_negative,balance >= 0" json:"balance"`
	TotalDeposited int64     `gorm:"not null;default:0" json:"total_deposited"`
	TotalSpent     int64     `gorm:"not null;default:0" json:"total_spent"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (w *Wallet) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	return nil
}

// BillingSettings holds per-user billing switches.
type BillingSettings struct {
	ID          string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      string    `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	PaygEnabled bool      `gorm:"not null;default:false" json:"payg_enabled"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (s *BillingSettings) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
