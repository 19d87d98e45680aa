package pricing

import (
	"math"

	"storefront/internal/models"
)

// Rates are the store-configured pricing constants.
type Rates struct {
	FreeDeliveryThreshold int64
	DeliveryFee           int64
	TaxRate               float64
	LoyaltyPointValue     int64
}

// Adjustments are per-order reductions supplied by the caller.
type Adjustments struct {
	DiscountAmount int64
	LoyaltyPoints  int64
}

func Subtotal(items []models.OrderItem) int64 {
	var subtotal int64
	for _, item := range items {
		subtotal += item.UnitPrice * int64(item.Quantity)
	}
	return subtotal
}

func DeliveryFee(deliveryType models.DeliveryType, subtotal int64, rates Rates) int64 {
	if deliveryType != models.DeliveryTypeDelivery {
		return 0
	}
	if subtotal >= rates.FreeDeliveryThreshold {
		return 0
	}
	return rates.DeliveryFee
}

// Calculate prices a validated draft. It has no side effects.
func Calculate(items []models.OrderItem, deliveryType models.DeliveryType, rates Rates, adj Adjustments) models.OrderPricing {
	subtotal := Subtotal(items)
	p := models.OrderPricing{
		Subtotal:        subtotal,
		DeliveryFee:     DeliveryFee(deliveryType, subtotal, rates),
		TaxAmount:       int64(math.Round(float64(subtotal) * rates.TaxRate)),
		DiscountAmount:  adj.DiscountAmount,
		LoyaltyDiscount: adj.LoyaltyPoints * rates.LoyaltyPointValue,
	}

	total := p.Subtotal + p.DeliveryFee + p.TaxAmount - p.DiscountAmount - p.LoyaltyDiscount
	if total < 0 {
		total = 0
	}
	p.Total = total
	return p
}
