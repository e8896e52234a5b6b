package currency

import "errors"

var (
	// ErrRateNotFound means no usable latest rate exists for a code. Callers
	// may retry after the next refresh.
	ErrRateNotFound = errors.New("exchange rate not found")
	// ErrRefreshFailed wraps any failure to fetch or store fresh rates.
	ErrRefreshFailed = errors.New("exchange rate refresh failed")
	// ErrNotConfigured is returned by Refresh when no API key is set.
	ErrNotConfigured = errors.New("exchange rate api key not configured")
)
