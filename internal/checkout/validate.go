package checkout

import (
	"fmt"
	"strings"

	"storefront/internal/models"
)

// Draft is an unvalidated checkout submission.
type Draft struct {
	Items         []models.OrderItem
	DeliveryType  models.DeliveryType
	Address       *models.Address
	Contact       models.Contact
	PaymentMethod models.PaymentMethod
	// Discount comes from server-side promotions, never from the client.
	Discount      int64
	LoyaltyPoints int64
}

// ValidationError names the first field that failed.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// ValidateDraft stops at the first problem, in the order a customer fills the
// checkout form.
func ValidateDraft(d Draft, maxQuantity int) error {
	if len(d.Items) == 0 {
		return invalid("items", "at least one item is required")
	}
	for i, item := range d.Items {
		field := fmt.Sprintf("items[%d]", i)
		if strings.TrimSpace(item.ProductID) == "" {
			return invalid(field+".productId", fmt.Sprintf("item %d is missing a productId", i+1))
		}
		if item.UnitPrice < 0 {
			return invalid(field+".unitPrice", fmt.Sprintf("item %d has a negative price", i+1))
		}
		if item.Quantity <= 0 {
			return invalid(field+".quantity", fmt.Sprintf("item %d quantity must be greater than zero", i+1))
		}
		if maxQuantity > 0 && item.Quantity > maxQuantity {
			return invalid(field+".quantity", fmt.Sprintf("item %d quantity must not exceed %d", i+1, maxQuantity))
		}
	}

	if d.DeliveryType == "" {
		return invalid("deliveryType", "deliveryType is required")
	}
	if !d.DeliveryType.Valid() {
		return invalid("deliveryType", "deliveryType must be pickup or delivery")
	}

	if d.DeliveryType == models.DeliveryTypeDelivery {
		if d.Address == nil {
			return invalid("address", "address is required for delivery")
		}
		if strings.TrimSpace(d.Address.Neighborhood) == "" {
			return invalid("address.neighborhood", "address neighborhood is required for delivery")
		}
		if strings.TrimSpace(d.Address.Street) == "" {
			return invalid("address.street", "address street is required for delivery")
		}
	}

	if strings.TrimSpace(d.Contact.FullName) == "" {
		return invalid("contact.fullName", "contact full name is required")
	}
	if strings.TrimSpace(d.Contact.Phone) == "" {
		return invalid("contact.phone", "contact phone is required")
	}

	if d.PaymentMethod == "" {
		return invalid("paymentMethod", "paymentMethod is required")
	}
	if !d.PaymentMethod.Valid() {
		return invalid("paymentMethod", "paymentMethod must be card, mobile_money or cash")
	}

	if d.Discount < 0 {
		return invalid("discountAmount", "discountAmount must not be negative")
	}
	if d.LoyaltyPoints < 0 {
		return invalid("loyaltyPoints", "loyaltyPoints must not be negative")
	}
	return nil
}
