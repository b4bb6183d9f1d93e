// Package apiclient is the storefront's HTTP client for the backend API:
// registration, login, profile and order processing.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"kortstore/internal/domain"
)

// APIError carries the backend-provided message for a rejected request.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("api: request failed with status %d", e.Status)
}

// Unwrap maps authentication failures onto the domain sentinel so callers
// can branch with errors.Is.
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return domain.ErrAuthRequired
	}
	return nil
}

type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

func New(opts Options) *Client {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: client,
		logger:     opts.Logger,
	}
}

type loginRequest struct {
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password"`
}

// LoginResponse is the payload of a successful login.
type LoginResponse struct {
	Token string         `json:"token"`
	User  domain.Account `json:"user"`
}

// Login authenticates with an email or username plus password. Identifiers
// containing '@' are sent as emails, matching the backend lookup.
func (c *Client) Login(ctx context.Context, identifier, password string) (*LoginResponse, error) {
	req := loginRequest{Password: password}
	if strings.Contains(identifier, "@") {
		req.Email = identifier
	} else {
		req.Username = identifier
	}
	var out LoginResponse
	if err := c.do(ctx, http.MethodPost, "/api/login", req, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account. Duplicate identities surface as an APIError
// with the backend message.
func (c *Client) Register(ctx context.Context, username, email, password string) error {
	req := registerRequest{Username: username, Email: email, Password: password}
	return c.do(ctx, http.MethodPost, "/api/register", req, "", nil)
}

type meResponse struct {
	User domain.Account `json:"user"`
}

// Me fetches the authoritative profile for the given token. The realtime
// listener calls it after a user_update push instead of trusting the push
// payload.
func (c *Client) Me(ctx context.Context, token string) (*domain.Account, error) {
	var out meResponse
	if err := c.do(ctx, http.MethodGet, "/api/me", nil, token, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// ProcessPaymentRequest mirrors the order-processing endpoint contract.
type ProcessPaymentRequest struct {
	PaymentMethod domain.PaymentMethod `json:"paymentMethod"`
	Items         []domain.CartItem    `json:"items"`
	Total         float64              `json:"total"`
	Token         string               `json:"token,omitempty"`
}

// ProcessPayment submits the order. A backend rejection comes back as an
// OrderResult with Success false, not as an error; errors mean the request
// itself failed.
func (c *Client) ProcessPayment(ctx context.Context, bearer string, req ProcessPaymentRequest) (*domain.OrderResult, error) {
	var out domain.OrderResult
	if err := c.do(ctx, http.MethodPost, "/api/process-payment", req, bearer, &out); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError && apiErr.Status != http.StatusUnauthorized {
			return &domain.OrderResult{Success: false, Error: apiErr.Message}, nil
		}
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, bearer string, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("api: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("api: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("api: read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &payload)
		c.logger.Debug().Int("status", resp.StatusCode).Str("path", path).Msg("api: request rejected")
		return &APIError{Status: resp.StatusCode, Message: payload.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("api: decode response: %w", err)
	}
	return nil
}
