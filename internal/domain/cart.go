package domain

import (
	"crypto/rand"
	"math"
	"strings"
)

// Purchase discounts: 10% off the purchase-only subtotal once it reaches the
// threshold. Subscriptions are never discounted. The storefront and the
// backend both price orders from these values.
const (
	DiscountThreshold = 200.0
	DiscountRate      = 0.10
)

// CartItem is one line of the cart. JSON field names match the persisted
// profile-store format so carts written by older clients keep loading.
type CartItem struct {
	ID       ProductID `json:"id"`
	Name     string    `json:"name"`
	Price    float64   `json:"price"`
	Image    string    `json:"image"`
	Quantity int       `json:"quantity"`
	Kind     Kind      `json:"type"`
	Period   Period    `json:"period,omitempty"`
}

// LineTotal is unit price times quantity, independent of kind.
func (it CartItem) LineTotal() float64 {
	return it.Price * float64(it.Quantity)
}

// IsSubscription reports whether the item bills on a recurring cadence.
func (it CartItem) IsSubscription() bool {
	return it.Kind == KindSubscription
}

// CartTotal sums the line totals of all items.
func CartTotal(items []CartItem) float64 {
	var total float64
	for _, it := range items {
		total += it.LineTotal()
	}
	return total
}

// SplitByKind partitions items into purchases and subscriptions, preserving
// insertion order within each group.
func SplitByKind(items []CartItem) (purchases, subscriptions []CartItem) {
	for _, it := range items {
		if it.IsSubscription() {
			subscriptions = append(subscriptions, it)
		} else {
			purchases = append(purchases, it)
		}
	}
	return purchases, subscriptions
}

// PurchaseDiscount returns the discount earned by the purchase-only subtotal.
func PurchaseDiscount(items []CartItem) float64 {
	purchases, _ := SplitByKind(items)
	if subtotal := CartTotal(purchases); subtotal >= DiscountThreshold {
		return subtotal * DiscountRate
	}
	return 0
}

// PayableTotal is the amount an order for these items charges: the full
// subtotal minus the purchase discount, rounded to cents so float noise
// never reaches a stored or compared total.
func PayableTotal(items []CartItem) float64 {
	return RoundCents(CartTotal(items) - PurchaseDiscount(items))
}

// RoundCents rounds a monetary amount to two decimals.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// PurchasedProduct is one entry of the purchased-products ledger a user sees
// on the dashboard after checkout.
type PurchasedProduct struct {
	ID         ProductID `json:"id"`
	Name       string    `json:"name"`
	Image      string    `json:"image"`
	LicenseKey string    `json:"key"`
}

const licenseAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewLicenseKey mints a XXXX-XXXX-XXXX-XXXX key for a purchased product.
func NewLicenseKey() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	var b strings.Builder
	for i, c := range buf {
		if i > 0 && i%4 == 0 {
			b.WriteByte('-')
		}
		b.WriteByte(licenseAlphabet[int(c)%len(licenseAlphabet)])
	}
	return b.String()
}
