package gateway

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"ocru/internal/config"
	"ocru/internal/models"

	"go.uber.org/zap"
)

const (
	sepayMinAmount    = 2000
	sepayTransferIn   = "in"
	sepayRandomLength = 8
)

var sepayAuthPrefix = regexp.MustCompile(`(?i)^(bearer|apikey)\s+`)

// SePay is the bank-transfer gateway. Payments are matched on the memo the
// payer types, so authenticity rests on a shared key and the amount.
type SePay struct {
	cfg  config.SePayConfig
	log  *zap.Logger
	memo func(userID string) (string, error)
}

func NewSePay(cfg config.SePayConfig, log *zap.Logger) *SePay {
	return &SePay{cfg: cfg, log: log.Named("sepay"), memo: NewSePayMemo}
}

// NewSePayMemo returns OCR-{userID}-{8 random [A-Z0-9]}.
func NewSePayMemo(userID string) (string, error) {
	suffix, err := randomCode(sepayRandomLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate memo: %w", err)
	}
	return fmt.Sprintf("%s-%s-%s", MemoPrefix, userID, suffix), nil
}

func (s *SePay) Provider() string { return models.ProviderSePay }
func (s *SePay) Currency() string { return "VND" }
func (s *SePay) MinAmount() int64 { return sepayMinAmount }

func (s *SePay) CreateCheckout(_ context.Context, req CheckoutRequest) (*Checkout, error) {
	if s.cfg.AccountNumber == "" {
		return nil, ErrProviderMisconfigured
	}
	memo, err := s.memo(req.UserID)
	if err != nil {
		return nil, err
	}

	qrURL := s.qrURL(req.Amount, memo)
	return &Checkout{
		URL:            qrURL,
		CorrelationKey: memo,
		MatchKey:       NormalizeMemo(memo),
		Extra: map[string]interface{}{
			"paymentCode":   memo,
			"qrUrl":         qrURL,
			"amountVND":     req.Amount,
			"bankName":      s.cfg.BankCode,
			"accountNumber": s.cfg.AccountNumber,
		},
	}, nil
}

func (s *SePay) qrURL(amount int64, memo string) string {
	q := url.Values{}
	q.Set("acc", s.cfg.AccountNumber)
	q.Set("bank", s.cfg.BankCode)
	q.Set("amount", strconv.FormatInt(amount, 10))
	q.Set("des", memo)
	return s.cfg.QRBaseURL + "?" + q.Encode()
}

// sepayPayload is the transfer notification body.
type sepayPayload struct {
	ID              json.Number `json:"id"`
	Gateway         string      `json:"gateway"`
	TransactionDate string      `json:"transactionDate"`
	AccountNumber   string      `json:"accountNumber"`
	Code            *string     `json:"code"`
	Content         string      `json:"content"`
	TransferType    string      `json:"transferType"`
	TransferAmount  json.Number `json:"transferAmount"`
	ReferenceCode   string      `json:"referenceCode"`
	Description     string      `json:"description"`
}

func (s *SePay) Verify(_ context.Context, req WebhookRequest) (*Notification, error) {
	if s.cfg.WebhookKey == "" {
		return nil, ErrProviderMisconfigured
	}
	received := strings.TrimSpace(sepayAuthPrefix.ReplaceAllString(strings.TrimSpace(req.Headers.Get("Authorization")), ""))
	if received == "" || subtle.ConstantTimeCompare([]byte(received), []byte(s.cfg.WebhookKey)) != 1 {
		return nil, ErrVerificationFailed
	}

	raw, _ := decodeJSONMap(req.Body)
	n := &Notification{
		Provider:           s.Provider(),
		Currency:           s.Currency(),
		RequireAmountMatch: true,
		Raw:                models.JSON(raw),
	}

	var p sepayPayload
	if err := json.Unmarshal(req.Body, &p); err != nil {
		n.EventType = "unknown"
		n.Outcome = OutcomeInvalid
		return n, nil
	}
	n.EventType = p.TransferType
	if n.EventType == "" {
		n.EventType = "unknown"
	}
	if p.TransferType != sepayTransferIn {
		n.Outcome = OutcomeIgnored
		return n, nil
	}

	amount, _ := strconv.ParseInt(p.TransferAmount.String(), 10, 64)
	if strings.TrimSpace(p.Content) == "" || amount <= 0 {
		n.Outcome = OutcomeInvalid
		return n, nil
	}

	n.Outcome = OutcomePaid
	n.Amount = amount
	n.MatchKey = NormalizeMemo(p.Content)
	n.GatewayTxnID = p.ID.String()
	if n.GatewayTxnID == "" {
		n.GatewayTxnID = p.ReferenceCode
	}
	return n, nil
}
