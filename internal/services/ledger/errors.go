package ledger

import (
	"errors"
	"fmt"

	"ocru/internal/services/gateway"
)

// Service errors
var (
	ErrNotFound              = errors.New("transaction not found")
	ErrPackageNotFound       = errors.New("package not found")
	ErrInvalidPromoCode      = errors.New("invalid or expired promo code")
	ErrCurrencyNotFound      = errors.New("currency not supported")
	ErrProviderMisconfigured = gateway.ErrProviderMisconfigured
)

// ValidationError is a rejected request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func newValidationError(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
