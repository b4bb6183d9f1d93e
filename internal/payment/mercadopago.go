package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// MercadoPagoOptions configures the card tokenization client.
type MercadoPagoOptions struct {
	PublicKey  string
	BaseURL    string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// MercadoPago tokenizes cards against the Mercado Pago card-token endpoint.
type MercadoPago struct {
	publicKey  string
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

func NewMercadoPago(opts MercadoPagoOptions) *MercadoPago {
	base := opts.BaseURL
	if base == "" {
		base = "https://api.mercadopago.com"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &MercadoPago{
		publicKey:  opts.PublicKey,
		baseURL:    base,
		httpClient: client,
		logger:     opts.Logger,
	}
}

type cardTokenRequest struct {
	CardNumber      string          `json:"card_number"`
	SecurityCode    string          `json:"security_code"`
	ExpirationMonth string          `json:"expiration_month"`
	ExpirationYear  string          `json:"expiration_year"`
	Cardholder      cardholderBlock `json:"cardholder"`
}

type cardholderBlock struct {
	Name string `json:"name"`
}

type cardTokenResponse struct {
	ID string `json:"id"`
}

func (m *MercadoPago) CreateCardToken(ctx context.Context, card Card) (string, error) {
	month, year, err := card.ExpiryParts()
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(cardTokenRequest{
		CardNumber:      card.Number,
		SecurityCode:    card.CVV,
		ExpirationMonth: month,
		ExpirationYear:  year,
		Cardholder:      cardholderBlock{Name: card.Holder},
	})
	if err != nil {
		return "", fmt.Errorf("payment: encode card: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/card_tokens?public_key=%s", m.baseURL, url.QueryEscape(m.publicKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("payment: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("payment: tokenize card: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("payment: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		m.logger.Warn().Int("status", resp.StatusCode).Msg("payment: card tokenization rejected")
		return "", fmt.Errorf("payment: provider responded with status %d", resp.StatusCode)
	}
	var out cardTokenResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("payment: decode response: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("payment: provider returned empty token")
	}
	return out.ID, nil
}
