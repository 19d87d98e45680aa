package payments

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testZeroDecimal = []string{
	"bif", "clp", "djf", "gnf", "jpy", "kmf", "krw", "mga",
	"pyg", "rwf", "ugx", "vnd", "vuv", "xaf", "xof", "xpf",
}

func TestNormalizeZeroDecimalCurrencies(t *testing.T) {
	n := NewAmountNormalizer(testZeroDecimal)
	for _, code := range testZeroDecimal {
		for _, amount := range []float64{1, 25.5, 25.49, 1999.99} {
			got, err := n.Normalize(amount, code)
			require.NoError(t, err)
			assert.Equal(t, int64(math.Round(amount)), got, "%s %v", code, amount)
		}
	}
}

func TestNormalizeTwoDecimalCurrencies(t *testing.T) {
	n := NewAmountNormalizer(testZeroDecimal)
	for _, code := range []string{"usd", "eur", "GBP", "ngn"} {
		for _, amount := range []float64{1, 25.5, 0.015, 19.99} {
			got, err := n.Normalize(amount, code)
			require.NoError(t, err)
			assert.Equal(t, int64(math.Round(amount*100)), got, "%s %v", code, amount)
		}
	}
}

func TestNormalizeXAFRoundsHalfUp(t *testing.T) {
	n := NewAmountNormalizer(testZeroDecimal)
	got, err := n.Normalize(25.5, "XAF")
	require.NoError(t, err)
	assert.Equal(t, int64(26), got)
}

func TestNormalizeRejectsInvalidAmounts(t *testing.T) {
	n := NewAmountNormalizer(testZeroDecimal)
	for _, code := range []string{"xaf", "usd", "jpy"} {
		for _, amount := range []float64{0, -1, math.NaN(), math.Inf(1), math.Inf(-1)} {
			_, err := n.Normalize(amount, code)
			assert.ErrorIs(t, err, ErrInvalidAmount, "%s %v", code, amount)
		}
	}
}

func TestNormalizeUsesOnlyConfiguredTable(t *testing.T) {
	n := NewAmountNormalizer([]string{" JPY "})
	assert.True(t, n.IsZeroDecimal("jpy"))
	assert.False(t, n.IsZeroDecimal("xaf"))

	got, err := n.Normalize(10, "xaf")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got)
}
