// Package repotest opens throwaway SQLite databases for repository and
// service tests.
package repotest

import (
	"fmt"
	"testing"

	"ocru/internal/models"
	"ocru/internal/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open returns a migrated in-memory database private to t.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, repositories.Migrate(db))
	return db
}

// SeedCurrencies inserts USD and VND and returns them by code.
func SeedCurrencies(t testing.TB, db *gorm.DB) map[string]*models.Currency {
	t.Helper()
	out := map[string]*models.Currency{}
	for _, c := range []models.Currency{
		{Code: "USD", Description: "US Dollar", MinorUnits: 2},
		{Code: "VND", Description: "Vietnamese Dong", MinorUnits: 0},
		{Code: "EUR", Description: "Euro", MinorUnits: 2},
	} {
		c := c
		require.NoError(t, db.Create(&c).Error)
		out[c.Code] = &c
	}
	return out
}

// SeedRate writes a latest USD->code rate.
func SeedRate(t testing.TB, db *gorm.DB, code, rate string) {
	t.Helper()
	require.NoError(t, db.Create(&models.ConversionRate{
		FromCode: models.BaseCurrency,
		ToCode:   code,
		Rate:     decimal.RequireFromString(rate),
		Source:   "test",
		IsLatest: true,
	}).Error)
}
