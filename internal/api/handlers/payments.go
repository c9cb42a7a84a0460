package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/baharkarakas/mpesa-backend/internal/api/httpx"
	"github.com/baharkarakas/mpesa-backend/internal/metrics"
	"github.com/baharkarakas/mpesa-backend/internal/middleware"
	"github.com/baharkarakas/mpesa-backend/internal/models"
	"github.com/baharkarakas/mpesa-backend/internal/services"
)

type PaymentsHandler struct {
	svc      *services.PaymentService
	validate *validator.Validate
}

func NewPaymentsHandler(svc *services.PaymentService) *PaymentsHandler {
	v := validator.New()
	_ = v.RegisterValidation("msisdn", func(fl validator.FieldLevel) bool {
		return models.MSISDN.MatchString(fl.Field().String())
	})
	return &PaymentsHandler{svc: svc, validate: v}
}

// Initiate handles POST /payments: validates, pushes to the gateway and
// answers with the gateway's acknowledgment. A 200 here means "prompt
// sent", not "paid".
func (h *PaymentsHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	var req models.PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	clientID := ""
	if claims, ok := middleware.GetClaims(r.Context()); ok {
		clientID = claims.ClientID
	}

	resp, err := h.svc.Initiate(r.Context(), req, clientID)
	if err != nil {
		var ve *services.ValidationError
		if errors.As(err, &ve) {
			httpx.WriteJSON(w, http.StatusBadRequest, map[string]any{"error": ve.Error()})
			return
		}
		// auth and gateway failures are both upstream trouble
		httpx.WriteJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": resp.CustomerMessage,
		"data":    resp,
	})
}

// callbackAck is what Daraja expects back; anything but a 200 triggers
// gateway-side redelivery and duplicate processing.
var callbackAck = map[string]any{"ResultCode": 0, "ResultDesc": "Accepted"}

// Callback handles the gateway webhook. Parse failures are acked too:
// redelivering an unparseable payload will not make it parseable.
func (h *PaymentsHandler) Callback(w http.ResponseWriter, r *http.Request) {
	var env models.CallbackEnvelope
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&env); err != nil {
		slog.Error("malformed callback", "err", err)
		metrics.MalformedCallbacks.Inc()
		httpx.WriteJSON(w, http.StatusOK, callbackAck)
		return
	}
	cb := env.Body.StkCallback
	if cb.CheckoutRequestID == "" {
		slog.Error("callback missing CheckoutRequestID")
		metrics.MalformedCallbacks.Inc()
		httpx.WriteJSON(w, http.StatusOK, callbackAck)
		return
	}

	h.svc.Reconcile(r.Context(), cb)
	httpx.WriteJSON(w, http.StatusOK, callbackAck)
}

// List handles GET /payments: reconciled transactions from the store.
func (h *PaymentsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 { limit = n }
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 { offset = n }
	}

	recs, err := h.svc.List(r.Context(), limit, offset)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", err.Error(), nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, recs)
}

// GatewayToken handles GET /mpesa/token, a diagnostic that goes through the
// cache's refresh logic.
func (h *PaymentsHandler) GatewayToken(w http.ResponseWriter, r *http.Request) {
	tok, err := h.svc.GatewayToken(r.Context())
	if err != nil {
		httpx.WriteJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"access_token": tok.Value,
		"expires_at":   tok.ExpiresAt(),
	})
}
