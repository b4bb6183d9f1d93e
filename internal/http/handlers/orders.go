package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"kortstore/internal/domain"
)

type processPaymentRequest struct {
	PaymentMethod domain.PaymentMethod `json:"paymentMethod"`
	Items         []domain.CartItem    `json:"items"`
	Total         float64              `json:"total"`
	Token         string               `json:"token"`
}

type processPaymentResponse struct {
	Success bool   `json:"success"`
	OrderID string `json:"order_id"`
}

// ProcessPayment validates and records an order. The discount applied by
// the storefront is recomputed here so a tampered total is rejected.
func (a *App) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "missing user context")
		return
	}

	var req processPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "Pedido inválido.")
		return
	}
	if len(req.Items) == 0 {
		a.error(w, http.StatusBadRequest, "Carrinho vazio.")
		return
	}
	switch req.PaymentMethod {
	case domain.PaymentCard, domain.PaymentPix, domain.PaymentBoleto:
	default:
		a.error(w, http.StatusBadRequest, "Método de pagamento inválido.")
		return
	}
	if req.PaymentMethod.RequiresCardToken() && req.Token == "" {
		a.error(w, http.StatusBadRequest, "Dados do cartão incompletos.")
		return
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 || item.Price < 0 {
			a.error(w, http.StatusBadRequest, "Pedido inválido.")
			return
		}
	}
	expected := domain.PayableTotal(req.Items)
	if !closeEnough(req.Total, expected) {
		a.Logger.Warn().Float64("sent", req.Total).Float64("expected", expected).Msg("order total mismatch")
		a.error(w, http.StatusBadRequest, "Total do pedido inválido.")
		return
	}

	order := &domain.Order{
		ID:        uuid.NewString(),
		UserID:    userID,
		Method:    req.PaymentMethod,
		Items:     req.Items,
		Total:     expected,
		Status:    domain.OrderStatusPaid,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.Orders.Create(r.Context(), order); err != nil {
		a.Logger.Error().Err(err).Msg("insert order failed")
		a.error(w, http.StatusInternalServerError, "Erro ao processar pagamento.")
		return
	}

	purchases, _ := domain.SplitByKind(req.Items)
	if len(purchases) > 0 {
		ledger := make([]domain.PurchasedProduct, 0, len(purchases))
		for _, item := range purchases {
			ledger = append(ledger, domain.PurchasedProduct{
				ID:         item.ID,
				Name:       item.Name,
				Image:      item.Image,
				LicenseKey: domain.NewLicenseKey(),
			})
		}
		if err := a.Orders.RecordPurchases(r.Context(), userID, order.ID, ledger); err != nil {
			a.Logger.Error().Err(err).Str("order_id", order.ID).Msg("record purchases failed")
		}
	}

	a.Events.OrderCompleted(r.Context(), order)
	a.json(w, http.StatusOK, processPaymentResponse{Success: true, OrderID: order.ID})
}

// MyProducts lists the caller's purchased products with their license keys.
func (a *App) MyProducts(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "missing user context")
		return
	}
	purchases, err := a.Orders.ListPurchases(r.Context(), userID)
	if err != nil {
		a.Logger.Error().Err(err).Msg("list purchases failed")
		a.error(w, http.StatusInternalServerError, "Erro ao carregar produtos.")
		return
	}
	if purchases == nil {
		purchases = []domain.PurchasedProduct{}
	}
	a.json(w, http.StatusOK, map[string][]domain.PurchasedProduct{"products": purchases})
}

func closeEnough(a, b float64) bool {
	diff := a - b
	return diff < 0.01 && diff > -0.01
}
