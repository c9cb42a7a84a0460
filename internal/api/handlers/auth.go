package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/baharkarakas/mpesa-backend/internal/api/httpx"
	"github.com/baharkarakas/mpesa-backend/internal/auth"
	"github.com/baharkarakas/mpesa-backend/internal/services"
)

type AuthHandler struct {
	tm  *auth.TokenManager
	svc *services.ClientService
}

func NewAuthHandler(tm *auth.TokenManager, svc *services.ClientService) *AuthHandler {
	return &AuthHandler{tm: tm, svc: svc}
}

type registerReq struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Role         string `json:"role,omitempty"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid json body", nil)
		return
	}
	c, err := h.svc.Register(req.ClientID, req.ClientSecret, req.Role)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", err.Error(), nil)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, c)
}

type tokenReq struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

type tokenResp struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Token exchanges client credentials for a bearer JWT, the same shape the
// Daraja gateway uses toward us.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req tokenReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ClientID == "" || req.ClientSecret == "" {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "client_id and client_secret required", nil)
		return
	}
	c, err := h.svc.Authenticate(req.ClientID, req.ClientSecret)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid credentials", nil)
		return
	}
	access, exp, err := h.tm.Generate(c.ClientID, c.Role)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "token generation failed", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tokenResp{
		AccessToken: access,
		TokenType:   "Bearer",
		ExpiresIn:   int64(time.Until(exp).Seconds()),
	})
}
