// Command seed loads the reference data the billing API expects:
// currencies, token packages and per-feature PAYG rates.
package main

import (
	"flag"
	"fmt"
	"time"

	"ocru/internal/config"
	applog "ocru/internal/logger"
	"ocru/internal/models"
	"ocru/internal/repositories"
	"ocru/internal/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var currencies = []models.Currency{
	{Code: "USD", Description: "US Dollar", MinorUnits: 2},
	{Code: "VND", Description: "Vietnamese Dong", MinorUnits: 0},
	{Code: "EUR", Description: "Euro", MinorUnits: 2},
}

var packages = []models.TokenPackage{
	{Slug: "standard", Name: "Standard", PriceCents: 1000, InputTokens: 55_000_000, OutputTokens: 27_000_000, SortOrder: 1, IsActive: true},
	{Slug: "premium", Name: "Premium", PriceCents: 1900, InputTokens: 118_000_000, OutputTokens: 59_000_000, SortOrder: 2, IsActive: true},
}

// Rates are USD cents per 1000 tokens.
var featureRates = []models.FeatureRate{
	{Feature: "ocr", InputRate: decimal.RequireFromString("0.02"), OutputRate: decimal.RequireFromString("0.06")},
	{Feature: "reconstruct", InputRate: decimal.RequireFromString("0.03"), OutputRate: decimal.RequireFromString("0.09")},
	{Feature: "translate", InputRate: decimal.RequireFromString("0.03"), OutputRate: decimal.RequireFromString("0.09")},
}

func main() {
	promo := flag.String("promo", "", "optional promo code to create, as CODE:PERCENT")
	tokenFor := flag.String("token-for", "", "print a development access token for this user id")
	flag.Parse()

	config.LoadEnv()
	cfg := config.Load()
	log := applog.Must(config.IsProduction())
	defer func() { _ = log.Sync() }()

	db, err := repositories.InitDB(cfg.DB)
	if err != nil {
		log.Fatal("database init failed", zap.Error(err))
	}
	defer func() {
		if err := repositories.Close(db); err != nil {
			log.Warn("failed to close database", zap.Error(err))
		}
	}()

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := upsert(tx, &currencies, "code", "description", "minor_units"); err != nil {
			return fmt.Errorf("seed currencies: %w", err)
		}
		if err := upsert(tx, &packages, "slug", "name", "price_cents", "input_tokens", "output_tokens", "sort_order", "is_active"); err != nil {
			return fmt.Errorf("seed packages: %w", err)
		}
		if err := upsert(tx, &featureRates, "feature", "input_rate", "output_rate"); err != nil {
			return fmt.Errorf("seed feature rates: %w", err)
		}
		if *promo != "" {
			code, err := parsePromo(*promo)
			if err != nil {
				return err
			}
			if err := upsert(tx, &[]models.PromoCode{*code}, "code", "discount_percent", "is_active"); err != nil {
				return fmt.Errorf("seed promo code: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal("seed failed", zap.Error(err))
	}
	log.Info("reference data seeded",
		zap.Int("currencies", len(currencies)),
		zap.Int("packages", len(packages)),
		zap.Int("feature_rates", len(featureRates)))

	if *tokenFor != "" {
		if cfg.JWTSecret == "" {
			log.Fatal("JWT_SECRET is required to issue a token")
		}
		token, err := utils.GenerateAccessToken(cfg.JWTSecret, *tokenFor, "", "user", 24*time.Hour)
		if err != nil {
			log.Fatal("failed to sign token", zap.Error(err))
		}
		fmt.Println(token)
	}
}

// upsert inserts rows keyed on a unique column and refreshes the listed columns.
func upsert(tx *gorm.DB, rows interface{}, key string, columns ...string) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: key}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(rows).Error
}
