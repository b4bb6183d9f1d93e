package domain

import "time"

// PaymentMethod identifies how an order is paid. Values match the payment
// gateway's method ids.
type PaymentMethod string

const (
	PaymentCard   PaymentMethod = "credit_card"
	PaymentPix    PaymentMethod = "pix"
	PaymentBoleto PaymentMethod = "bolbradesco"
)

// RequiresCardToken reports whether the method needs a tokenized card before
// the order can be submitted.
func (m PaymentMethod) RequiresCardToken() bool {
	return m == PaymentCard
}

// Order is a processed order as stored by the backend.
type Order struct {
	ID        string        `json:"id"`
	UserID    string        `json:"user_id"`
	Method    PaymentMethod `json:"payment_method"`
	Items     []CartItem    `json:"items"`
	Total     float64       `json:"total"`
	Status    string        `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

const (
	OrderStatusPaid   = "paid"
	OrderStatusFailed = "failed"
)

// OrderResult is what the checkout flow reports back to its caller.
type OrderResult struct {
	Success bool   `json:"success"`
	OrderID string `json:"order_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OrderSummary is the user-facing totals block of the checkout page.
type OrderSummary struct {
	Subtotal         float64
	Discount         float64
	Total            float64
	RecurringMonthly float64
	RecurringYearly  float64
}

// HasRecurring reports whether the order carries any recurring obligation
// that must be disclosed before payment.
func (s OrderSummary) HasRecurring() bool {
	return s.RecurringMonthly > 0 || s.RecurringYearly > 0
}
