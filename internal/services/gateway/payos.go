package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"ocru/internal/config"
	"ocru/internal/metrics"
	"ocru/internal/models"

	"go.uber.org/zap"
)

const (
	payosMinAmount        = 2000
	payosDescriptionLimit = 25
	payosDefaultMemo      = "Nap tien OCR"
	payosSuccessCode      = "00"
	payosOrderCodeMin     = 10_000_000
	payosOrderCodeSpan    = 90_000_000
)

// PayOS is the checksum-signed VietQR gateway.
type PayOS struct {
	cfg       config.PayOSConfig
	client    *http.Client
	metrics   metrics.MetricsCollector
	log       *zap.Logger
	orderCode func() (int64, error)
}

func NewPayOS(cfg config.PayOSConfig, client *http.Client, m metrics.MetricsCollector, log *zap.Logger) *PayOS {
	return &PayOS{
		cfg:       cfg,
		client:    client,
		metrics:   m,
		log:       log.Named("payos"),
		orderCode: newPayOSOrderCode,
	}
}

func newPayOSOrderCode() (int64, error) {
	n, err := randomInt(payosOrderCodeSpan)
	if err != nil {
		return 0, err
	}
	return payosOrderCodeMin + n, nil
}

func (p *PayOS) Provider() string { return models.ProviderPayOS }
func (p *PayOS) Currency() string { return "VND" }
func (p *PayOS) MinAmount() int64 { return payosMinAmount }

type payosCreateResponse struct {
	Code string `json:"code"`
	Desc string `json:"desc"`
	Data *struct {
		CheckoutURL   string `json:"checkoutUrl"`
		QRCode        string `json:"qrCode"`
		PaymentLinkID string `json:"paymentLinkId"`
	} `json:"data"`
}

func (p *PayOS) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	if p.cfg.ClientID == "" || p.cfg.APIKey == "" || p.cfg.ChecksumKey == "" {
		return nil, ErrProviderMisconfigured
	}

	orderCode, err := p.orderCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate order code: %w", err)
	}
	description := req.Description
	if description == "" {
		description = payosDefaultMemo
	}
	description = truncateRunes(description, payosDescriptionLimit)

	body := map[string]interface{}{
		"orderCode":   orderCode,
		"amount":      req.Amount,
		"description": description,
		"cancelUrl":   p.cfg.CancelURL,
		"returnUrl":   p.cfg.ReturnURL,
		"signature":   PayOSCheckoutSignature(p.cfg.ChecksumKey, req.Amount, p.cfg.CancelURL, description, orderCode, p.cfg.ReturnURL),
	}
	headers := map[string]string{
		"x-client-id": p.cfg.ClientID,
		"x-api-key":   p.cfg.APIKey,
	}

	var resp payosCreateResponse
	url := strings.TrimRight(p.cfg.BaseURL, "/") + "/v2/payment-requests"
	if err := postJSON(ctx, p.client, p.metrics, p.Provider(), "create_checkout", url, headers, body, &resp); err != nil {
		return nil, err
	}
	if resp.Code != payosSuccessCode || resp.Data == nil || resp.Data.CheckoutURL == "" {
		p.log.Warn("payment request rejected", zap.String("code", resp.Code), zap.String("desc", resp.Desc))
		return nil, fmt.Errorf("%w: payos code %s: %s", ErrProviderRequestFailed, resp.Code, resp.Desc)
	}

	key := strconv.FormatInt(orderCode, 10)
	return &Checkout{
		URL:            resp.Data.CheckoutURL,
		CorrelationKey: key,
		Extra: map[string]interface{}{
			"checkoutUrl": resp.Data.CheckoutURL,
			"orderCode":   orderCode,
		},
		Raw: models.ToJSON(resp),
	}, nil
}

func (p *PayOS) Verify(_ context.Context, req WebhookRequest) (*Notification, error) {
	if p.cfg.ChecksumKey == "" {
		return nil, ErrProviderMisconfigured
	}

	body, err := decodeJSONMap(req.Body)
	if err != nil {
		return nil, ErrVerificationFailed
	}
	data, ok := body["data"].(map[string]interface{})
	if !ok {
		return nil, ErrVerificationFailed
	}
	signature, _ := body["signature"].(string)
	if signature == "" {
		return nil, ErrVerificationFailed
	}
	expected := PayOSDataSignature(p.cfg.ChecksumKey, data)
	if subtle.ConstantTimeCompare([]byte(strings.ToLower(signature)), []byte(expected)) != 1 {
		return nil, ErrVerificationFailed
	}

	orderCode := payosValue(data["orderCode"])
	if orderCode == "" {
		return nil, ErrInvalidPayload
	}

	code := payosValue(data["code"])
	if code == "" {
		code = payosValue(body["code"])
	}
	outcome := OutcomeFailed
	if code == payosSuccessCode {
		outcome = OutcomePaid
	}

	amount, _ := strconv.ParseInt(payosValue(data["amount"]), 10, 64)
	gatewayTxnID := payosValue(data["reference"])
	if gatewayTxnID == "" {
		gatewayTxnID = payosValue(data["paymentLinkId"])
	}

	return &Notification{
		Provider:       p.Provider(),
		EventType:      "payment." + string(outcome),
		Outcome:        outcome,
		CorrelationKey: orderCode,
		Amount:         amount,
		Currency:       p.Currency(),
		GatewayTxnID:   gatewayTxnID,
		Raw:            models.JSON(body),
	}, nil
}

// PayOSCheckoutSignature signs a payment request. The field order is fixed
// by the provider.
func PayOSCheckoutSignature(key string, amount int64, cancelURL, description string, orderCode int64, returnURL string) string {
	msg := fmt.Sprintf("amount=%d&cancelUrl=%s&description=%s&orderCode=%d&returnUrl=%s",
		amount, cancelURL, description, orderCode, returnURL)
	return hmacHex(key, []byte(msg))
}

// PayOSDataSignature signs the webhook data object: keys sorted, joined as
// key=value with '&', nulls as empty strings.
func PayOSDataSignature(key string, data map[string]interface{}) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+payosValue(data[k]))
	}
	return hmacHex(key, []byte(strings.Join(parts, "&")))
}

func payosValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		if t == "null" || t == "undefined" {
			return ""
		}
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func hmacHex(key string, msg []byte) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(msg)
	return hex.EncodeToString(mac.Sum(nil))
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
