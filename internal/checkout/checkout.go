// Package checkout reconciles the cart against the latest catalog, computes
// order totals and drives payment-method-specific submission.
package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"

	"kortstore/internal/apiclient"
	"kortstore/internal/currency"
	"kortstore/internal/domain"
	"kortstore/internal/payment"
	"kortstore/internal/store"
)

// Cart is the slice of the cart engine the orchestrator needs.
type Cart interface {
	Items() []domain.CartItem
	ReplaceAll(items []domain.CartItem)
	Clear()
}

// SessionSource yields the current authenticated identity.
type SessionSource interface {
	Current() *domain.Session
}

// OrderAPI submits orders to the backend.
type OrderAPI interface {
	ProcessPayment(ctx context.Context, bearer string, req apiclient.ProcessPaymentRequest) (*domain.OrderResult, error)
}

type Orchestrator struct {
	cart     Cart
	sessions SessionSource
	api      OrderAPI
	gateway  payment.Gateway
	store    store.Store
	logger   zerolog.Logger
	inFlight atomic.Bool
}

func NewOrchestrator(c Cart, sessions SessionSource, api OrderAPI, gw payment.Gateway, st store.Store, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		cart:     c,
		sessions: sessions,
		api:      api,
		gateway:  gw,
		store:    st,
		logger:   logger,
	}
}

// Reconcile overwrites price, name and image of cart items from matching
// catalog products and reports whether anything changed. It is re-entrant:
// running it again with the same snapshot performs zero writes.
func (o *Orchestrator) Reconcile(snap *domain.CatalogSnapshot) bool {
	if snap == nil {
		return false
	}
	items := o.cart.Items()
	if len(items) == 0 {
		return false
	}
	index := snap.ProductIndex()
	changed := false
	for i := range items {
		p, ok := index[items[i].ID]
		if !ok {
			continue
		}
		if price := p.UnitPrice(); price > 0 && items[i].Price != price {
			o.logger.Debug().Str("product", items[i].Name).Float64("price", price).Msg("checkout: price reconciled")
			items[i].Price = price
			changed = true
		}
		if p.Title != "" && items[i].Name != p.Title {
			items[i].Name = p.Title
			changed = true
		}
		if p.Icon != "" && items[i].Image != p.Icon {
			items[i].Image = p.Icon
			changed = true
		}
	}
	if changed {
		o.cart.ReplaceAll(items)
	}
	return changed
}

// ComputeOrderSummary splits the cart into purchases and subscriptions and
// applies the purchase discount.
func ComputeOrderSummary(items []domain.CartItem) domain.OrderSummary {
	_, subscriptions := domain.SplitByKind(items)

	var summary domain.OrderSummary
	summary.Subtotal = domain.CartTotal(items)
	summary.Discount = domain.PurchaseDiscount(items)
	summary.Total = domain.PayableTotal(items)

	for _, it := range subscriptions {
		switch it.Period {
		case domain.PeriodYearly:
			summary.RecurringYearly += it.LineTotal()
		default:
			summary.RecurringMonthly += it.LineTotal()
		}
	}
	return summary
}

// RecurringDisclosure renders the user-facing recurring-charges notice, or
// an empty string when the order has none.
func RecurringDisclosure(summary domain.OrderSummary) string {
	if !summary.HasRecurring() {
		return ""
	}
	var parts []string
	if summary.RecurringMonthly > 0 {
		parts = append(parts, currency.BRL(summary.RecurringMonthly)+" mensalmente")
	}
	if summary.RecurringYearly > 0 {
		parts = append(parts, currency.BRL(summary.RecurringYearly)+" anualmente")
	}
	return fmt.Sprintf("Após a confirmação, você será cobrado %s até o cancelamento.", strings.Join(parts, " e "))
}

// SubmitOrder drives one order submission. Failure modes, in order: a second
// call while one is in flight, no session (the caller must redirect to login
// and resume checkout afterwards), an empty cart, incomplete card data for
// card payments. The backend rejecting the order is not an error here; it
// comes back in the result with the cart left untouched so the user can
// retry.
func (o *Orchestrator) SubmitOrder(ctx context.Context, method domain.PaymentMethod, card *payment.Card) (*domain.OrderResult, error) {
	if !o.inFlight.CompareAndSwap(false, true) {
		return nil, domain.ErrCheckoutInFlight
	}
	defer o.inFlight.Store(false)

	sess := o.sessions.Current()
	if sess == nil || sess.Token == "" {
		o.setPendingToast("Você precisa estar logado para finalizar a compra")
		return nil, domain.ErrAuthRequired
	}

	items := o.cart.Items()
	if len(items) == 0 {
		return nil, domain.ErrEmptyCart
	}

	req := apiclient.ProcessPaymentRequest{
		PaymentMethod: method,
		Items:         items,
		Total:         ComputeOrderSummary(items).Total,
	}
	if method.RequiresCardToken() {
		if card == nil || !card.Complete() {
			return nil, domain.ErrIncompleteCardData
		}
		token, err := o.gateway.CreateCardToken(ctx, *card)
		if err != nil {
			return nil, fmt.Errorf("checkout: tokenize card: %w", err)
		}
		req.Token = token
	}

	result, err := o.api.ProcessPayment(ctx, sess.Token, req)
	if err != nil {
		return nil, fmt.Errorf("checkout: submit order: %w", err)
	}
	if !result.Success {
		o.logger.Warn().Str("error", result.Error).Msg("checkout: order rejected")
		return result, nil
	}

	o.recordPurchases(items)
	o.cart.Clear()
	o.setPendingToast("Compra realizada com sucesso! Seus produtos estão disponíveis em \"Meus Produtos\".")
	o.logger.Info().Str("order_id", result.OrderID).Int("items", len(items)).Msg("checkout: order completed")
	return result, nil
}

// recordPurchases appends the bought one-time products, with fresh license
// keys, to the profile's purchased-products ledger.
func (o *Orchestrator) recordPurchases(items []domain.CartItem) {
	ledger := o.loadLedger()
	seen := make(map[domain.ProductID]bool, len(ledger))
	for _, p := range ledger {
		seen[p.ID] = true
	}
	for _, it := range items {
		if it.IsSubscription() || seen[it.ID] {
			continue
		}
		ledger = append(ledger, domain.PurchasedProduct{
			ID:         it.ID,
			Name:       it.Name,
			Image:      it.Image,
			LicenseKey: domain.NewLicenseKey(),
		})
		seen[it.ID] = true
	}
	data, err := json.Marshal(ledger)
	if err != nil {
		o.logger.Error().Err(err).Msg("checkout: marshal ledger failed")
		return
	}
	if err := o.store.Set(store.KeyMyProducts, data); err != nil {
		o.logger.Error().Err(err).Msg("checkout: persist ledger failed")
	}
}

func (o *Orchestrator) loadLedger() []domain.PurchasedProduct {
	data, ok, err := o.store.Get(store.KeyMyProducts)
	if err != nil || !ok {
		return nil
	}
	var ledger []domain.PurchasedProduct
	if err := json.Unmarshal(data, &ledger); err != nil {
		return nil
	}
	return ledger
}

func (o *Orchestrator) setPendingToast(msg string) {
	if err := o.store.Set(store.KeyPendingToast, []byte(msg)); err != nil {
		o.logger.Warn().Err(err).Msg("checkout: persist pending toast failed")
	}
}
