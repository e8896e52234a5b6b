package usage

import (
	"ocru/internal/models"
)

// SourceInsufficient is reported when neither a package nor the wallet
// could pay.
const SourceInsufficient = "insufficient_balance"

type ConsumeInput struct {
	UserID       string
	Feature      string
	InputTokens  int64
	OutputTokens int64
	InputMeta    models.JSON
	OutputMeta   models.JSON
	IPAddress    string
	UserAgent    string
}

type Result struct {
	Success   bool   `json:"success"`
	Source    string `json:"source"`
	BalanceID string `json:"balance_id,omitempty"`
	CostCents int64  `json:"cost_cents"`
}

// Summary is what a user can spend right now.
type Summary struct {
	PaygEnabled     bool                  `json:"payg_enabled"`
	TokenBalances   []models.TokenBalance `json:"token_balances"`
	InputRemaining  int64                 `json:"input_tokens_remaining"`
	OutputRemaining int64                 `json:"output_tokens_remaining"`
}
