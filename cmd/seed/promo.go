package main

import (
	"fmt"
	"strconv"
	"strings"

	"ocru/internal/models"
)

func parsePromo(s string) (*models.PromoCode, error) {
	code, pct, ok := strings.Cut(s, ":")
	code = strings.ToUpper(strings.TrimSpace(code))
	if !ok || code == "" {
		return nil, fmt.Errorf("promo %q: want CODE:PERCENT", s)
	}
	n, err := strconv.Atoi(strings.TrimSpace(pct))
	if err != nil || n <= 0 || n > 100 {
		return nil, fmt.Errorf("promo %q: percent must be 1-100", s)
	}
	return &models.PromoCode{Code: code, DiscountPercent: n, IsActive: true}, nil
}
