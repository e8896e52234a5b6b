package gateway

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"testing"

	"ocru/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestSePay() *SePay {
	return NewSePay(config.SePayConfig{
		WebhookKey:    "secret-key",
		AccountNumber: "0123456789",
		BankCode:      "MBBank",
		QRBaseURL:     "https://qr.sepay.vn/img",
	}, zap.NewNop())
}

func sepayRequest(auth, body string) WebhookRequest {
	h := http.Header{}
	if auth != "" {
		h.Set("Authorization", auth)
	}
	return WebhookRequest{Body: []byte(body), Headers: h}
}

func TestSePayMemoFormat(t *testing.T) {
	memo, err := NewSePayMemo("user-42")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^OCR-user-42-[A-Z0-9]{8}$`), memo)
}

func TestSePayCreateCheckout(t *testing.T) {
	s := newTestSePay()
	s.memo = func(userID string) (string, error) { return "OCR-" + userID + "-A7K3M9XB", nil }

	co, err := s.CreateCheckout(context.Background(), CheckoutRequest{UserID: "u1", Amount: 50000})
	require.NoError(t, err)

	assert.Equal(t, "OCR-u1-A7K3M9XB", co.CorrelationKey)
	assert.Equal(t, "OCRU1A7K3M9XB", co.MatchKey)

	u, err := url.Parse(co.URL)
	require.NoError(t, err)
	assert.Equal(t, "qr.sepay.vn", u.Host)
	assert.Equal(t, "0123456789", u.Query().Get("acc"))
	assert.Equal(t, "MBBank", u.Query().Get("bank"))
	assert.Equal(t, "50000", u.Query().Get("amount"))
	assert.Equal(t, "OCR-u1-A7K3M9XB", u.Query().Get("des"))
	assert.Equal(t, "0123456789", co.Extra["accountNumber"])
}

func TestSePayCreateCheckoutMisconfigured(t *testing.T) {
	s := NewSePay(config.SePayConfig{}, zap.NewNop())
	_, err := s.CreateCheckout(context.Background(), CheckoutRequest{UserID: "u1", Amount: 50000})
	assert.ErrorIs(t, err, ErrProviderMisconfigured)
}

func TestSePayVerifyAuth(t *testing.T) {
	s := newTestSePay()
	body := `{"id":1,"transferType":"in","content":"OCR-u1-A7K3M9XB","transferAmount":50000}`

	for _, auth := range []string{"Bearer secret-key", "Apikey secret-key", "apikey  secret-key", "secret-key"} {
		_, err := s.Verify(context.Background(), sepayRequest(auth, body))
		assert.NoError(t, err, auth)
	}
	for _, auth := range []string{"", "Bearer nope", "Bearer secret-key-extra"} {
		_, err := s.Verify(context.Background(), sepayRequest(auth, body))
		assert.ErrorIs(t, err, ErrVerificationFailed, auth)
	}

	_, err := NewSePay(config.SePayConfig{}, zap.NewNop()).Verify(context.Background(), sepayRequest("Bearer x", body))
	assert.ErrorIs(t, err, ErrProviderMisconfigured)
}

func TestSePayVerifyOutcomes(t *testing.T) {
	s := newTestSePay()
	tests := []struct {
		name    string
		body    string
		outcome Outcome
	}{
		{"outgoing transfer", `{"id":1,"transferType":"out","content":"OCR-u1-X","transferAmount":50000}`, OutcomeIgnored},
		{"missing content", `{"id":1,"transferType":"in","content":"","transferAmount":50000}`, OutcomeInvalid},
		{"missing amount", `{"id":1,"transferType":"in","content":"OCR-u1-X"}`, OutcomeInvalid},
		{"malformed body", `{"id":`, OutcomeInvalid},
		{"incoming transfer", `{"id":99,"transferType":"in","content":"ck OCR-u1-A7K3","transferAmount":50000,"referenceCode":"FT1"}`, OutcomePaid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := s.Verify(context.Background(), sepayRequest("Bearer secret-key", tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.outcome, n.Outcome)
			assert.True(t, n.RequireAmountMatch)
		})
	}

	n, err := s.Verify(context.Background(), sepayRequest("Bearer secret-key",
		`{"id":99,"transferType":"in","content":"OCR-u1-A7K3","transferAmount":50000,"referenceCode":"FT1"}`))
	require.NoError(t, err)
	assert.Equal(t, "OCRU1A7K3", n.MatchKey)
	assert.Equal(t, int64(50000), n.Amount)
	assert.Equal(t, "99", n.GatewayTxnID)
}
