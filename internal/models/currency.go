package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BaseCurrency is the bridge currency every stored rate is quoted from.
const BaseCurrency = "USD"

type Currency struct {
	ID          string    `gorm:"type:uuid;primaryKey" json:"id"`
	Code        string    `gorm:"uniqueIndex;not null;size:8" json:"code"`
	Description string    `json:"description"`
	MinorUnits  int32     `gorm:"not null;default:2" json:"minor_units"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (c *Currency) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// ConversionRate is one append-only rate observation. Only one row per
// ToCode carries IsLatest.
type ConversionRate struct {
	ID        string          `gorm:"type:uuid;primaryKey" json:"id"`
	FromCode  string          `gorm:"not null;size:8;default:'USD'" json:"from_code"`
	ToCode    string          `gorm:"not null;size:8;index:idx_conversion_rates_to_latest,priority:1" json:"to_code"`
	Rate      decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"rate"`
	Source    string          `json:"source"`
	IsLatest  bool            `gorm:"not null;default:false;index:idx_conversion_rates_to_latest,priority:2" json:"is_latest"`
	CreatedAt time.Time       `json:"created_at"`
}

func (r *ConversionRate) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
