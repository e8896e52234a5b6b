package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"ocru/internal/config"
	"ocru/internal/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStripe(apiURL string) *Stripe {
	return NewStripe(config.StripeConfig{
		SecretKey:     "sk_test_123",
		WebhookSecret: "whsec_test",
		SuccessURL:    "https://app/ok",
		CancelURL:     "https://app/cancel",
	}, NewHTTPClient(2*time.Second), apiURL, metrics.NoopMetricsCollector{}, zap.NewNop())
}

func stripeRequest(secret, body string) WebhookRequest {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	sig := hmacHex(secret, []byte(ts+"."+body))
	h := http.Header{}
	h.Set("Stripe-Signature", fmt.Sprintf("t=%s,v1=%s", ts, sig))
	return WebhookRequest{Body: []byte(body), Headers: h}
}

func stripeEvent(eventType, paymentStatus string) string {
	return fmt.Sprintf(`{"id":"evt_1","object":"event","type":%q,"data":{"object":{"id":"cs_test_1","object":"checkout.session",`+
		`"payment_status":%q,"amount_total":1500,"currency":"usd","client_reference_id":"tx-1",`+
		`"metadata":{"user_id":"u1","transaction_id":"tx-1"},"payment_intent":"pi_1"}}}`, eventType, paymentStatus)
}

func TestStripeCreateCheckout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "tx-1", r.PostForm.Get("client_reference_id"))
		assert.Equal(t, "u1", r.PostForm.Get("metadata[user_id]"))
		assert.Equal(t, "1500", r.PostForm.Get("line_items[0][price_data][unit_amount]"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_1","object":"checkout.session","url":"https://checkout.stripe.com/c/pay/cs_test_1"}`))
	}))
	defer srv.Close()

	co, err := newTestStripe(srv.URL).CreateCheckout(context.Background(), CheckoutRequest{
		TransactionID: "tx-1", UserID: "u1", Amount: 1500,
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", co.CorrelationKey)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", co.URL)
}

func TestStripeVerify(t *testing.T) {
	s := newTestStripe("")

	n, err := s.Verify(context.Background(), stripeRequest("whsec_test", stripeEvent("checkout.session.completed", "paid")))
	require.NoError(t, err)
	assert.Equal(t, OutcomePaid, n.Outcome)
	assert.Equal(t, "cs_test_1", n.CorrelationKey)
	assert.Equal(t, "tx-1", n.TransactionID)
	assert.Equal(t, "u1", n.UserID)
	assert.Equal(t, int64(1500), n.Amount)
	assert.Equal(t, "USD", n.Currency)
	assert.Equal(t, "pi_1", n.GatewayTxnID)
	assert.True(t, n.Recoverable)

	n, err = s.Verify(context.Background(), stripeRequest("whsec_test", stripeEvent("checkout.session.completed", "unpaid")))
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, n.Outcome)

	n, err = s.Verify(context.Background(), stripeRequest("whsec_test", stripeEvent("checkout.session.expired", "unpaid")))
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, n.Outcome)

	n, err = s.Verify(context.Background(), stripeRequest("whsec_test", stripeEvent("customer.created", "")))
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, n.Outcome)
}

func TestStripeVerifyRejectsBadSignature(t *testing.T) {
	s := newTestStripe("")
	_, err := s.Verify(context.Background(), stripeRequest("whsec_other", stripeEvent("checkout.session.completed", "paid")))
	assert.ErrorIs(t, err, ErrVerificationFailed)

	_, err = NewStripe(config.StripeConfig{}, NewHTTPClient(time.Second), "", metrics.NoopMetricsCollector{}, zap.NewNop()).
		Verify(context.Background(), stripeRequest("x", "{}"))
	assert.ErrorIs(t, err, ErrProviderMisconfigured)
}
