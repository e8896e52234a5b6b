package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ocru/internal/config"
	"ocru/internal/metrics"
	"ocru/internal/models"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
	"github.com/stripe/stripe-go/v72/webhook"
	"go.uber.org/zap"
)

const (
	stripeMinAmount       = 100
	stripeSignatureHeader = "Stripe-Signature"
)

// Stripe is the Checkout Session card gateway.
type Stripe struct {
	cfg     config.StripeConfig
	api     *client.API
	metrics metrics.MetricsCollector
	log     *zap.Logger
}

// NewStripe builds the client. apiURL overrides the API host and is only
// set in tests.
func NewStripe(cfg config.StripeConfig, httpClient *http.Client, apiURL string, m metrics.MetricsCollector, log *zap.Logger) *Stripe {
	backendCfg := &stripe.BackendConfig{
		HTTPClient:        httpClient,
		MaxNetworkRetries: stripe.Int64(0),
	}
	if apiURL != "" {
		backendCfg.URL = stripe.String(apiURL)
	}
	api := &client.API{}
	api.Init(cfg.SecretKey, &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, &stripe.BackendConfig{HTTPClient: httpClient}),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, &stripe.BackendConfig{HTTPClient: httpClient}),
	})
	return &Stripe{cfg: cfg, api: api, metrics: m, log: log.Named("stripe")}
}

func (s *Stripe) Provider() string { return models.ProviderStripe }
func (s *Stripe) Currency() string { return "USD" }
func (s *Stripe) MinAmount() int64 { return stripeMinAmount }

func (s *Stripe) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	if s.cfg.SecretKey == "" {
		return nil, ErrProviderMisconfigured
	}
	name := req.Description
	if name == "" {
		name = "Account top-up"
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(s.Currency())),
				UnitAmount: stripe.Int64(req.Amount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(name),
				},
			},
			Quantity: stripe.Int64(1),
		}},
		SuccessURL:        stripe.String(s.cfg.SuccessURL),
		CancelURL:         stripe.String(s.cfg.CancelURL),
		ClientReferenceID: stripe.String(req.TransactionID),
	}
	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}
	params.Context = ctx
	params.AddMetadata("user_id", req.UserID)
	params.AddMetadata("transaction_id", req.TransactionID)

	start := time.Now()
	sess, err := s.api.CheckoutSessions.New(params)
	s.metrics.RecordProviderCall(s.Provider(), "create_checkout", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("%w: stripe: %w", ErrProviderRequestFailed, err)
	}
	if sess.URL == "" {
		return nil, fmt.Errorf("%w: stripe returned no checkout url", ErrProviderRequestFailed)
	}

	return &Checkout{
		URL:            sess.URL,
		CorrelationKey: sess.ID,
		Extra: map[string]interface{}{
			"checkoutUrl": sess.URL,
			"sessionId":   sess.ID,
		},
	}, nil
}

func (s *Stripe) Verify(_ context.Context, req WebhookRequest) (*Notification, error) {
	if s.cfg.WebhookSecret == "" {
		return nil, ErrProviderMisconfigured
	}
	if err := webhook.ValidatePayload(req.Body, req.Headers.Get(stripeSignatureHeader), s.cfg.WebhookSecret); err != nil {
		return nil, ErrVerificationFailed
	}

	var event stripe.Event
	if err := json.Unmarshal(req.Body, &event); err != nil {
		return nil, ErrInvalidPayload
	}
	raw, _ := decodeJSONMap(req.Body)
	n := &Notification{
		Provider:  s.Provider(),
		EventType: event.Type,
		Outcome:   OutcomeIgnored,
		Raw:       models.JSON(raw),
	}

	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		n.Outcome = OutcomePaid
	case "checkout.session.expired", "checkout.session.async_payment_failed":
		n.Outcome = OutcomeFailed
	default:
		return n, nil
	}

	if event.Data == nil {
		return nil, ErrInvalidPayload
	}
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil || sess.ID == "" {
		return nil, ErrInvalidPayload
	}
	// A completed session for a delayed payment method is not paid yet.
	if n.Outcome == OutcomePaid && sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		n.Outcome = OutcomeIgnored
		return n, nil
	}

	n.CorrelationKey = sess.ID
	n.TransactionID = sess.Metadata["transaction_id"]
	if n.TransactionID == "" {
		n.TransactionID = sess.ClientReferenceID
	}
	n.UserID = sess.Metadata["user_id"]
	n.Amount = sess.AmountTotal
	n.Currency = strings.ToUpper(string(sess.Currency))
	if n.Currency == "" {
		n.Currency = s.Currency()
	}
	if sess.PaymentIntent != nil {
		n.GatewayTxnID = sess.PaymentIntent.ID
	}
	n.Recoverable = n.Outcome == OutcomePaid && n.UserID != ""
	return n, nil
}
