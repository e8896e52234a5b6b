package gateway

import "errors"

var (
	ErrUnknownProvider       = errors.New("unknown payment provider")
	ErrProviderMisconfigured = errors.New("payment provider is not configured")
	ErrVerificationFailed    = errors.New("webhook verification failed")
	ErrInvalidPayload        = errors.New("webhook payload is missing required fields")
	ErrProviderRequestFailed = errors.New("payment provider request failed")
)
