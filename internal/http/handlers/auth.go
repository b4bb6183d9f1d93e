package handlers

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"kortstore/internal/domain"
	"kortstore/internal/middleware"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *App) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "Preencha todos os campos.")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Username == "" || req.Email == "" || req.Password == "" {
		a.error(w, http.StatusBadRequest, "Preencha todos os campos.")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		a.Logger.Error().Err(err).Msg("hash password failed")
		a.error(w, http.StatusInternalServerError, "Erro ao criar conta.")
		return
	}

	account := &domain.Account{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		AccountAdmin: "false",
		Role:         "Membro",
		Status:       domain.StatusOffline,
	}
	if _, err := a.Accounts.Create(r.Context(), account); err != nil {
		if errors.Is(err, domain.ErrDuplicateIdentity) {
			a.error(w, http.StatusBadRequest, "E-mail ou usuário já cadastrado.")
			return
		}
		a.Logger.Error().Err(err).Msg("create account failed")
		a.error(w, http.StatusInternalServerError, "Erro ao criar conta.")
		return
	}
	a.json(w, http.StatusCreated, map[string]string{"message": "Conta criada com sucesso."})
}

type loginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string          `json:"token"`
	User  *domain.Account `json:"user"`
}

func (a *App) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "Preencha todos os campos.")
		return
	}
	if (req.Email == "" && req.Username == "") || req.Password == "" {
		a.error(w, http.StatusBadRequest, "Preencha todos os campos.")
		return
	}

	var account *domain.Account
	var err error
	if req.Email != "" {
		account, err = a.Accounts.FindByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	} else {
		account, err = a.Accounts.FindByUsername(r.Context(), strings.TrimSpace(req.Username))
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusBadRequest, "Usuário não encontrado.")
			return
		}
		a.Logger.Error().Err(err).Msg("find account failed")
		a.error(w, http.StatusInternalServerError, "Erro ao entrar.")
		return
	}

	// Bad credentials answer 400, not 401: a 401 means a missing or expired
	// bearer token and sends the client back to the login screen.
	if !a.verifyPassword(r, account, req.Password) {
		a.error(w, http.StatusBadRequest, "Senha incorreta.")
		return
	}

	a.fillPresence(r, account)

	token, err := middleware.SignJWT(a.JWTSecret, claimsFor(account))
	if err != nil {
		a.Logger.Error().Err(err).Msg("sign jwt failed")
		a.error(w, http.StatusInternalServerError, "Erro ao entrar.")
		return
	}
	a.json(w, http.StatusOK, loginResponse{Token: token, User: account})
}

// verifyPassword checks the bcrypt hash. Records written before hashing was
// introduced hold the raw password; when the compatibility flag is on those
// still log in and get upgraded to a hash on the spot.
func (a *App) verifyPassword(r *http.Request, account *domain.Account, password string) bool {
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) == nil {
		return true
	}
	if !a.AllowLegacyPlaintext || account.PasswordHash != password {
		return false
	}
	if hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost); err == nil {
		if err := a.Accounts.UpdatePassword(r.Context(), account.ID, string(hash)); err != nil {
			a.Logger.Warn().Err(err).Msg("upgrade legacy password failed")
		} else {
			account.PasswordHash = string(hash)
		}
	}
	return true
}

// fillPresence resolves the client IP to a location and marks the account
// online. Best effort; login succeeds regardless.
func (a *App) fillPresence(r *http.Request, account *domain.Account) {
	account.Status = domain.StatusOnline
	if a.Geo != nil {
		if loc, lat, lon, ok := a.Geo.Locate(clientIP(r)); ok {
			account.Location = loc
			account.Latitude = lat
			account.Longitude = lon
		}
	}
	err := a.Accounts.UpdatePresence(r.Context(), account.ID, account.Location, account.Latitude, account.Longitude, account.Status)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("update presence failed")
	}
}

func (a *App) Me(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "missing user context")
		return
	}
	account, err := a.Accounts.FindByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "Usuário não encontrado.")
			return
		}
		a.Logger.Error().Err(err).Msg("find account failed")
		a.error(w, http.StatusInternalServerError, "Erro ao carregar perfil.")
		return
	}
	a.json(w, http.StatusOK, map[string]*domain.Account{"user": account})
}

func (a *App) Logout(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "missing user context")
		return
	}
	account, err := a.Accounts.FindByID(r.Context(), userID)
	if err != nil {
		a.json(w, http.StatusOK, map[string]bool{"success": true})
		return
	}
	err = a.Accounts.UpdatePresence(r.Context(), userID, account.Location, account.Latitude, account.Longitude, domain.StatusOffline)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("update presence failed")
	}
	a.json(w, http.StatusOK, map[string]bool{"success": true})
}

func claimsFor(account *domain.Account) middleware.TokenClaims {
	claims := middleware.TokenClaims{
		ID:           account.ID,
		Username:     account.Username,
		Email:        account.Email,
		Key:          account.LicenseKey,
		HWID:         account.HardwareID,
		Location:     account.Location,
		Latitude:     account.Latitude,
		Longitude:    account.Longitude,
		AccountAdmin: account.AccountAdmin,
		Cargo:        account.Role,
		Status:       account.Status,
		Exp:          time.Now().Add(middleware.TokenLifetime).Unix(),
	}
	if account.KeyExpiry != nil {
		claims.KeyExpiry = account.KeyExpiry.Format(time.RFC3339)
	}
	return claims
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
