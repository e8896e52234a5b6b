package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"ocru/internal/config"
	"ocru/internal/metrics"
	"ocru/internal/models"

	"go.uber.org/zap"
)

const (
	lemonMinAmount       = 100
	lemonSignatureHeader = "X-Signature"
	lemonMediaType       = "application/vnd.api+json"
)

// LemonSqueezy is the HMAC-signed card gateway.
type LemonSqueezy struct {
	cfg     config.LemonSqueezyConfig
	client  *http.Client
	metrics metrics.MetricsCollector
	log     *zap.Logger
}

func NewLemonSqueezy(cfg config.LemonSqueezyConfig, client *http.Client, m metrics.MetricsCollector, log *zap.Logger) *LemonSqueezy {
	return &LemonSqueezy{cfg: cfg, client: client, metrics: m, log: log.Named("lemonsqueezy")}
}

func (l *LemonSqueezy) Provider() string { return models.ProviderLemonSqueezy }
func (l *LemonSqueezy) Currency() string { return "USD" }
func (l *LemonSqueezy) MinAmount() int64 { return lemonMinAmount }

type lemonRelationship struct {
	Data struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	} `json:"data"`
}

type lemonCheckoutResponse struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			URL string `json:"url"`
		} `json:"attributes"`
	} `json:"data"`
}

func (l *LemonSqueezy) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	if l.cfg.APIKey == "" || l.cfg.StoreID == "" || l.cfg.VariantID == "" {
		return nil, ErrProviderMisconfigured
	}
	variantID, err := strconv.Atoi(l.cfg.VariantID)
	if err != nil {
		return nil, fmt.Errorf("%w: variant id %q is not numeric", ErrProviderMisconfigured, l.cfg.VariantID)
	}

	checkoutData := map[string]interface{}{
		"custom": map[string]string{
			"user_id":        req.UserID,
			"transaction_id": req.TransactionID,
		},
	}
	if req.Email != "" {
		checkoutData["email"] = req.Email
	}

	store := lemonRelationship{}
	store.Data.Type, store.Data.ID = "stores", l.cfg.StoreID
	variant := lemonRelationship{}
	variant.Data.Type, variant.Data.ID = "variants", l.cfg.VariantID

	body := map[string]interface{}{
		"data": map[string]interface{}{
			"type": "checkouts",
			"attributes": map[string]interface{}{
				"custom_price":  req.Amount,
				"checkout_data": checkoutData,
				"checkout_options": map[string]bool{
					"embed": false,
					"media": true,
					"logo":  true,
				},
				"product_options": map[string]interface{}{
					"enabled_variants": []int{variantID},
					"redirect_url":     l.cfg.RedirectURL,
					"description":      req.Description,
				},
			},
			"relationships": map[string]interface{}{
				"store":   store,
				"variant": variant,
			},
		},
	}
	headers := map[string]string{
		"Accept":        lemonMediaType,
		"Content-Type":  lemonMediaType,
		"Authorization": "Bearer " + l.cfg.APIKey,
	}

	var resp lemonCheckoutResponse
	url := strings.TrimRight(l.cfg.BaseURL, "/") + "/v1/checkouts"
	if err := postJSON(ctx, l.client, l.metrics, l.Provider(), "create_checkout", url, headers, body, &resp); err != nil {
		return nil, err
	}
	if resp.Data.Attributes.URL == "" || resp.Data.ID == "" {
		return nil, fmt.Errorf("%w: lemon squeezy returned no checkout url", ErrProviderRequestFailed)
	}

	return &Checkout{
		URL:            resp.Data.Attributes.URL,
		CorrelationKey: resp.Data.ID,
		Extra: map[string]interface{}{
			"checkoutUrl": resp.Data.Attributes.URL,
		},
		Raw: models.ToJSON(resp),
	}, nil
}

// VerifyLemonSignature compares the hex signature header with
// HMAC-SHA256(secret, body) in constant time. Malformed hex fails.
func VerifyLemonSignature(secret string, body []byte, signature string) bool {
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), got)
}

type lemonWebhook struct {
	Meta struct {
		EventName  string            `json:"event_name"`
		CustomData map[string]string `json:"custom_data"`
	} `json:"meta"`
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			Status     string `json:"status"`
			Total      int64  `json:"total"`
			Currency   string `json:"currency"`
			Identifier string `json:"identifier"`
		} `json:"attributes"`
	} `json:"data"`
}

func (l *LemonSqueezy) Verify(_ context.Context, req WebhookRequest) (*Notification, error) {
	if l.cfg.WebhookSecret == "" {
		return nil, ErrProviderMisconfigured
	}
	if !VerifyLemonSignature(l.cfg.WebhookSecret, req.Body, req.Headers.Get(lemonSignatureHeader)) {
		return nil, ErrVerificationFailed
	}

	var w lemonWebhook
	if err := json.Unmarshal(req.Body, &w); err != nil {
		return nil, ErrInvalidPayload
	}
	raw, _ := decodeJSONMap(req.Body)

	n := &Notification{
		Provider:      l.Provider(),
		EventType:     w.Meta.EventName,
		Outcome:       OutcomeIgnored,
		Raw:           models.JSON(raw),
		TransactionID: w.Meta.CustomData["transaction_id"],
		UserID:        w.Meta.CustomData["user_id"],
	}
	if w.Meta.EventName != "order_created" && w.Meta.EventName != "order_paid" {
		return n, nil
	}

	switch w.Data.Attributes.Status {
	case "paid":
		n.Outcome = OutcomePaid
	case "failed":
		n.Outcome = OutcomeFailed
	default:
		return n, nil
	}

	if w.Data.ID == "" || (n.UserID == "" && n.TransactionID == "") {
		return nil, ErrInvalidPayload
	}

	// Order totals are already in cents.
	n.CorrelationKey = w.Data.ID
	n.GatewayTxnID = w.Data.ID
	n.Amount = w.Data.Attributes.Total
	n.Currency = strings.ToUpper(w.Data.Attributes.Currency)
	if n.Currency == "" {
		n.Currency = l.Currency()
	}
	n.Recoverable = n.Outcome == OutcomePaid && n.UserID != ""
	return n, nil
}
