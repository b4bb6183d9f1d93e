// Package payment holds the contract the checkout flow needs from the
// external payment provider: turning raw card data into a one-time token.
// Provider internals beyond that are out of scope.
package payment

import (
	"context"
	"strings"

	"kortstore/internal/domain"
)

// Card is the raw card data collected by the checkout form.
type Card struct {
	Number string
	Holder string
	Expiry string // MM/YY
	CVV    string
}

// Complete reports whether every required card field is present.
func (c Card) Complete() bool {
	return strings.TrimSpace(c.Number) != "" &&
		strings.TrimSpace(c.Holder) != "" &&
		strings.TrimSpace(c.Expiry) != "" &&
		strings.TrimSpace(c.CVV) != ""
}

// ExpiryParts splits the MM/YY expiry into its components.
func (c Card) ExpiryParts() (month, year string, err error) {
	parts := strings.SplitN(c.Expiry, "/", 2)
	if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
		return "", "", domain.ErrIncompleteCardData
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), nil
}

// Gateway tokenizes card data with the payment provider.
type Gateway interface {
	CreateCardToken(ctx context.Context, card Card) (string, error)
}
