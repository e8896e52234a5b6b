package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Usage sources
const (
	UsageSourcePackage = "package"
	UsageSourcePAYG    = "payg"
)

// TokenPackage is a purchasable bundle of input and output tokens, priced in
// USD cents.
type TokenPackage struct {
	ID           string    `gorm:"type:uuid;primaryKey" json:"id"`
	Slug         string    `gorm:"uniqueIndex;not null" json:"slug"`
	Name         string    `gorm:"not null" json:"name"`
	PriceCents   int64     `gorm:"not null" json:"price_cents"`
	InputTokens  int64     `gorm:"not null" json:"input_tokens"`
	OutputTokens int64     `gorm:"not null" json:"output_tokens"`
	ValidityDays int       `gorm:"not null;default:0" json:"validity_days"`
	IsActive     bool      `gorm:"not null;default:true" json:"is_active"`
	SortOrder    int       `gorm:"not null;default:0" json:"sort_order"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (p *TokenPackage) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// TokenBalance is what a settled package purchase grants.
type TokenBalance struct {
	ID                    string     `gorm:"type:uuid;primaryKey" json:"id"`
	UserID                string     `gorm:"type:uuid;not null;index" json:"user_id"`
	PackageID             string     `gorm:"type:uuid;not null" json:"package_id"`
	TransactionID         *string    `gorm:"type:uuid;uniqueIndex" json:"transaction_id,omitempty"`
	InputTokensRemaining  int64      `gorm:"not null" json:"input_tokens_remaining"`
	OutputTokensRemaining int64      `gorm:"not null" json:"output_tokens_remaining"`
	IsExhausted           bool       `gorm:"not null;default:false" json:"is_exhausted"`
	ExpiresAt             *time.Time `json:"expires_at,omitempty"`
	CreatedAt             time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

func (b *TokenBalance) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

type PromoCode struct {
	ID              string     `gorm:"type:uuid;primaryKey" json:"id"`
	Code            string     `gorm:"uniqueIndex;not null" json:"code"`
	DiscountPercent int        `gorm:"not null;check:chk_promo_codes_discount,discount_percent BETWEEN 0 AND 100" json:"discount_percent"`
	IsActive        bool       `gorm:"not null;default:true" json:"is_active"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func (p *PromoCode) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// FeatureRate prices a feature in USD cents per 1,000 tokens.
type FeatureRate struct {
	ID         string          `gorm:"type:uuid;primaryKey" json:"id"`
	Feature    string          `gorm:"uniqueIndex;not null" json:"feature"`
	InputRate  decimal.Decimal `gorm:"type:numeric(12,4);not null" json:"input_rate"`
	OutputRate decimal.Decimal `gorm:"type:numeric(12,4);not null" json:"output_rate"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (r *FeatureRate) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

type UsageLog struct {
	ID             string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         string    `gorm:"type:uuid;not null;index" json:"user_id"`
	Feature        string    `gorm:"not null" json:"feature"`
	InputTokens    int64     `gorm:"not null" json:"input_tokens"`
	OutputTokens   int64     `gorm:"not null" json:"output_tokens"`
	Source         string    `gorm:"not null" json:"source"`
	TokenBalanceID *string   `gorm:"type:uuid" json:"token_balance_id,omitempty"`
	CostCents      int64     `gorm:"not null;default:0" json:"cost_cents"`
	InputMeta      JSON      `gorm:"type:jsonb" json:"input_meta,omitempty"`
	OutputMeta     JSON      `gorm:"type:jsonb" json:"output_meta,omitempty"`
	IPAddress      string    `json:"-"`
	UserAgent      string    `json:"-"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

func (l *UsageLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}
