package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"kortstore/internal/domain"
	"kortstore/internal/middleware"
)

func newTestApp(accounts *fakeAccounts) *App {
	return &App{
		Logger:    zerolog.Nop(),
		JWTSecret: "test-secret",
		Accounts:  accounts,
		Orders:    &fakeOrders{},
		Events:    &fakePublisher{},
	}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestRegister(t *testing.T) {
	cases := []struct {
		name       string
		payload    string
		wantStatus int
		wantError  string
	}{
		{
			name:       "success",
			payload:    `{"username":"ana","email":"ana@example.com","password":"s3cret"}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "missing fields",
			payload:    `{"username":"ana"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Preencha todos os campos.",
		},
		{
			name:       "invalid json",
			payload:    `{`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Preencha todos os campos.",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newTestApp(&fakeAccounts{})
			req := httptest.NewRequest(http.MethodPost, "/api/register", strings.NewReader(tc.payload))
			rec := httptest.NewRecorder()

			app.Register(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if tc.wantError != "" {
				if got := decodeBody(t, rec)["error"]; got != tc.wantError {
					t.Fatalf("error = %v, want %q", got, tc.wantError)
				}
			}
		})
	}
}

func TestRegisterDuplicateIdentity(t *testing.T) {
	accounts := &fakeAccounts{}
	accounts.add(domain.Account{Username: "ana", Email: "ana@example.com"})
	app := newTestApp(accounts)

	req := httptest.NewRequest(http.MethodPost, "/api/register",
		strings.NewReader(`{"username":"ana","email":"other@example.com","password":"x"}`))
	rec := httptest.NewRecorder()

	app.Register(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if got := decodeBody(t, rec)["error"]; got != "E-mail ou usuário já cadastrado." {
		t.Fatalf("error = %v", got)
	}
}

func TestRegisterHashesPassword(t *testing.T) {
	accounts := &fakeAccounts{}
	app := newTestApp(accounts)

	req := httptest.NewRequest(http.MethodPost, "/api/register",
		strings.NewReader(`{"username":"ana","email":"ana@example.com","password":"s3cret"}`))
	rec := httptest.NewRecorder()
	app.Register(rec, req)

	acc, err := accounts.FindByUsername(req.Context(), "ana")
	if err != nil {
		t.Fatalf("account not stored: %v", err)
	}
	if acc.PasswordHash == "s3cret" {
		t.Fatal("password stored in plaintext")
	}
	if bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte("s3cret")) != nil {
		t.Fatal("stored hash does not match the password")
	}
}

func TestLogin(t *testing.T) {
	seed := func(accounts *fakeAccounts) {
		accounts.add(domain.Account{
			Username:     "ana",
			Email:        "ana@example.com",
			PasswordHash: hashOf("s3cret"),
			Role:         "Membro",
		})
	}

	cases := []struct {
		name       string
		payload    string
		wantStatus int
		wantError  string
	}{
		{
			name:       "by email",
			payload:    `{"email":"ana@example.com","password":"s3cret"}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "by username",
			payload:    `{"username":"ana","password":"s3cret"}`,
			wantStatus: http.StatusOK,
		},
		{
			// 400, not 401: only missing or expired tokens answer 401.
			name:       "unknown user",
			payload:    `{"username":"nobody","password":"s3cret"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Usuário não encontrado.",
		},
		{
			name:       "wrong password",
			payload:    `{"username":"ana","password":"nope"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Senha incorreta.",
		},
		{
			name:       "missing password",
			payload:    `{"username":"ana"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Preencha todos os campos.",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			accounts := &fakeAccounts{}
			seed(accounts)
			app := newTestApp(accounts)

			req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(tc.payload))
			rec := httptest.NewRecorder()
			app.Login(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tc.wantStatus, rec.Body)
			}
			if tc.wantError != "" {
				if got := decodeBody(t, rec)["error"]; got != tc.wantError {
					t.Fatalf("error = %v, want %q", got, tc.wantError)
				}
			}
		})
	}
}

func TestLoginIssuesProfileToken(t *testing.T) {
	accounts := &fakeAccounts{}
	accounts.add(domain.Account{
		Username:     "ana",
		Email:        "ana@example.com",
		PasswordHash: hashOf("s3cret"),
		Role:         "Membro",
		LicenseKey:   "AAAA-BBBB-CCCC-DDDD",
	})
	app := newTestApp(accounts)
	app.Geo = fixedLocator{location: "São Paulo, Brazil", lat: "-23.5505", lon: "-46.6333"}

	req := httptest.NewRequest(http.MethodPost, "/api/login",
		strings.NewReader(`{"email":"ana@example.com","password":"s3cret"}`))
	req.RemoteAddr = "203.0.113.7:51234"
	rec := httptest.NewRecorder()
	app.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", rec.Code, rec.Body)
	}
	body := decodeBody(t, rec)
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatal("missing token in response")
	}

	claims, err := middleware.VerifyJWT("test-secret", token)
	if err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
	if claims.Username != "ana" || claims.Cargo != "Membro" || claims.Key != "AAAA-BBBB-CCCC-DDDD" {
		t.Fatalf("claims mismatch: %+v", claims)
	}
	if claims.Location != "São Paulo, Brazil" {
		t.Fatalf("location claim = %q", claims.Location)
	}
	if claims.Status != domain.StatusOnline {
		t.Fatalf("status claim = %q", claims.Status)
	}

	// Presence was persisted, not only reflected in the token.
	acc, _ := accounts.FindByUsername(req.Context(), "ana")
	if acc.Status != domain.StatusOnline || acc.Location != "São Paulo, Brazil" {
		t.Fatalf("stored presence mismatch: %+v", acc)
	}
}

func TestLoginLegacyPlaintext(t *testing.T) {
	t.Run("flag off rejects", func(t *testing.T) {
		accounts := &fakeAccounts{}
		accounts.add(domain.Account{Username: "old", Email: "old@example.com", PasswordHash: "plain"})
		app := newTestApp(accounts)

		req := httptest.NewRequest(http.MethodPost, "/api/login",
			strings.NewReader(`{"username":"old","password":"plain"}`))
		rec := httptest.NewRecorder()
		app.Login(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("flag on accepts and upgrades", func(t *testing.T) {
		accounts := &fakeAccounts{}
		accounts.add(domain.Account{Username: "old", Email: "old@example.com", PasswordHash: "plain"})
		app := newTestApp(accounts)
		app.AllowLegacyPlaintext = true

		req := httptest.NewRequest(http.MethodPost, "/api/login",
			strings.NewReader(`{"username":"old","password":"plain"}`))
		rec := httptest.NewRecorder()
		app.Login(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d (body %s)", rec.Code, rec.Body)
		}
		acc, _ := accounts.FindByUsername(req.Context(), "old")
		if acc.PasswordHash == "plain" {
			t.Fatal("plaintext password not upgraded")
		}
		if bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte("plain")) != nil {
			t.Fatal("upgraded hash does not match the password")
		}
	})
}

func TestMe(t *testing.T) {
	accounts := &fakeAccounts{}
	stored := accounts.add(domain.Account{Username: "ana", Email: "ana@example.com"})
	app := newTestApp(accounts)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req = req.WithContext(middleware.ContextWithUserID(req.Context(), stored.ID))
	rec := httptest.NewRecorder()
	app.Me(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	user, _ := body["user"].(map[string]any)
	if user == nil || user["username"] != "ana" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestMeWithoutContext(t *testing.T) {
	app := newTestApp(&fakeAccounts{})
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	rec := httptest.NewRecorder()
	app.Me(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestLogoutMarksOffline(t *testing.T) {
	accounts := &fakeAccounts{}
	stored := accounts.add(domain.Account{Username: "ana", Status: domain.StatusOnline})
	app := newTestApp(accounts)

	req := httptest.NewRequest(http.MethodPost, "/api/logout", nil)
	req = req.WithContext(middleware.ContextWithUserID(req.Context(), stored.ID))
	rec := httptest.NewRecorder()
	app.Logout(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	acc, _ := accounts.FindByID(req.Context(), stored.ID)
	if acc.Status != domain.StatusOffline {
		t.Fatalf("status = %q, want Offline", acc.Status)
	}
}
