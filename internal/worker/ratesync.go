package worker

import (
	"context"
	"errors"

	"ocru/internal/services/currency"
)

// RateSync refreshes exchange rates on a schedule.
type RateSync struct {
	rates currency.Service
}

func NewRateSync(rates currency.Service) *RateSync {
	return &RateSync{rates: rates}
}

func (r *RateSync) Name() string { return "rate-sync" }

func (r *RateSync) Run(ctx context.Context) error {
	_, err := r.rates.Refresh(ctx)
	if errors.Is(err, currency.ErrNotConfigured) {
		return nil
	}
	return err
}
