package payments

import (
	"errors"
	"math"
	"strings"
)

var ErrInvalidAmount = errors.New("amount must be a finite number greater than zero")

// AmountNormalizer converts major-unit amounts into the integer minor units
// the gateway expects. The zero-decimal table is a gateway contract, so it is
// an explicit lookup.
type AmountNormalizer struct {
	zeroDecimal map[string]struct{}
}

func NewAmountNormalizer(zeroDecimalCurrencies []string) *AmountNormalizer {
	set := make(map[string]struct{}, len(zeroDecimalCurrencies))
	for _, code := range zeroDecimalCurrencies {
		if code = strings.ToLower(strings.TrimSpace(code)); code != "" {
			set[code] = struct{}{}
		}
	}
	return &AmountNormalizer{zeroDecimal: set}
}

func (n *AmountNormalizer) IsZeroDecimal(currency string) bool {
	_, ok := n.zeroDecimal[strings.ToLower(strings.TrimSpace(currency))]
	return ok
}

func (n *AmountNormalizer) Normalize(amount float64, currency string) (int64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return 0, ErrInvalidAmount
	}
	multiplier := 100.0
	if n.IsZeroDecimal(currency) {
		multiplier = 1
	}
	return int64(math.Round(amount * multiplier)), nil
}
