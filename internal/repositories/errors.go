package repositories

import "errors"

var (
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrWalletNotFound       = errors.New("wallet not found")
	ErrCurrencyNotFound     = errors.New("currency not found")
	ErrPackageNotFound      = errors.New("token package not found")
	ErrPromoCodeNotFound    = errors.New("promo code not found")
	ErrRateNotFound         = errors.New("conversion rate not found")
	ErrFeatureRateNotFound  = errors.New("feature rate not found")
	ErrTokenBalanceNotFound = errors.New("no usable token balance")
	ErrInsufficientFunds    = errors.New("insufficient wallet balance")
)
