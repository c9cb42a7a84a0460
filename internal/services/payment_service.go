package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/baharkarakas/mpesa-backend/internal/daraja"
	"github.com/baharkarakas/mpesa-backend/internal/ledger"
	"github.com/baharkarakas/mpesa-backend/internal/metrics"
	"github.com/baharkarakas/mpesa-backend/internal/models"
	repo "github.com/baharkarakas/mpesa-backend/internal/repository"
	"github.com/baharkarakas/mpesa-backend/internal/worker"
)

// CollectionPayments is where reconciled transactions land in the store.
const CollectionPayments = "payments"

const persistTimeout = 10 * time.Second

// ValidationError reports caller input rejected before any gateway call.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Msg }

// Gateway is the slice of the Daraja client the service needs.
type Gateway interface {
	Token(ctx context.Context) (daraja.AccessToken, error)
	STKPush(ctx context.Context, phone string, amount decimal.Decimal, accountRef, desc string) (*daraja.STKPushResponse, error)
}

type PaymentService struct {
	gw      Gateway
	ledger  ledger.Ledger
	records repo.Records
	audit   repo.AuditLogs
	wp      *worker.Pool
}

func NewPaymentService(gw Gateway, l ledger.Ledger, rec repo.Records, al repo.AuditLogs, wp *worker.Pool) *PaymentService {
	return &PaymentService{gw: gw, ledger: l, records: rec, audit: al, wp: wp}
}

// ----------------- Helpers -----------------

func (s *PaymentService) auditAsync(entityID, action string, details map[string]any) {
	id := entityID
	s.wp.Submit(func() {
		if err := s.audit.Create(models.AuditLog{
			EntityType: "payment",
			EntityID:   &id,
			Action:     action,
			Details:    details,
		}); err != nil {
			slog.Error("audit write", "action", action, "err", err)
		}
	})
}

func validate(req models.PaymentRequest) error {
	if !models.MSISDN.MatchString(req.PhoneNumber) {
		return &ValidationError{Field: "phoneNumber", Msg: "must match 254XXXXXXXXX"}
	}
	if !req.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Msg: "must be > 0"}
	}
	return nil
}

// ----------------- INITIATE -----------------

// Initiate submits an STK push and registers the pending transaction under
// the gateway's CheckoutRequestID. The returned acknowledgment means the
// prompt was dispatched, not that the payment succeeded; the outcome
// arrives minutes later on the callback.
func (s *PaymentService) Initiate(ctx context.Context, req models.PaymentRequest, clientID string) (*daraja.STKPushResponse, error) {
	if err := validate(req); err != nil {
		metrics.PaymentsInitiated.WithLabelValues("validation_error").Inc()
		return nil, err
	}
	if req.AccountReference == "" {
		req.AccountReference = "account"
	}
	if req.TransactionDesc == "" {
		req.TransactionDesc = "payment"
	}

	// the prompt may already be on the payer's phone when the caller hangs
	// up; finish the round trip and register the ledger entry regardless
	ctx = context.WithoutCancel(ctx)

	resp, err := s.gw.STKPush(ctx, req.PhoneNumber, req.Amount, req.AccountReference, req.TransactionDesc)
	if err != nil {
		metrics.PaymentsInitiated.WithLabelValues(initiateErrLabel(err)).Inc()
		return nil, err
	}

	s.ledger.Put(resp.CheckoutRequestID, models.PendingPayment{
		CheckoutRequestID: resp.CheckoutRequestID,
		Request:           req,
		ClientID:          clientID,
		CreatedAt:         time.Now(),
	})
	metrics.LedgerDepth.Set(float64(s.ledger.Len()))
	metrics.PaymentsInitiated.WithLabelValues("ok").Inc()
	s.auditAsync(resp.CheckoutRequestID, "initiated", map[string]any{
		"phone":  req.PhoneNumber,
		"amount": req.Amount.String(),
	})
	return resp, nil
}

func initiateErrLabel(err error) string {
	switch err.(type) {
	case *daraja.AuthError:
		return "auth_error"
	default:
		return "gateway_error"
	}
}

// ----------------- RECONCILE -----------------

// Reconcile merges an stkCallback with its ledger entry and persists the
// outcome. An unknown CheckoutRequestID is not an error: the gateway will
// not redeliver, so the result is persisted without caller context rather
// than dropped.
func (s *PaymentService) Reconcile(ctx context.Context, cb models.StkCallback) models.Payment {
	res := extractResult(cb)
	p := models.Payment{
		ID:            uuid.NewString(),
		PaymentResult: res,
		ReconciledAt:  time.Now(),
		Succeeded:     res.ResultCode == 0,
	}

	if pend, ok := s.ledger.Take(cb.CheckoutRequestID); ok {
		reqCopy := pend.Request
		initiated := pend.CreatedAt
		p.Request = &reqCopy
		p.ClientID = pend.ClientID
		p.InitiatedAt = &initiated
	} else {
		// late, duplicate, or initiated by another instance
		metrics.OrphanCallbacks.Inc()
		s.auditAsync(cb.CheckoutRequestID, "orphan_callback", map[string]any{
			"result_code": res.ResultCode,
		})
	}
	metrics.LedgerDepth.Set(float64(s.ledger.Len()))
	metrics.CallbacksTotal.WithLabelValues(outcomeLabel(res.ResultCode)).Inc()

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if _, err := s.records.Create(pctx, CollectionPayments, p); err != nil {
		// the gateway still gets its ack; the outcome survives in the logs
		metrics.PersistFailures.Inc()
		slog.Error("persist reconciled payment",
			"checkout_request_id", res.CheckoutRequestID, "err", err)
	} else {
		s.auditAsync(res.CheckoutRequestID, "reconciled", map[string]any{
			"result_code": res.ResultCode,
			"result_desc": res.ResultDesc,
		})
	}
	return p
}

func outcomeLabel(code int) string {
	if code == 0 {
		return "success"
	}
	return "failure"
}

// extractResult pulls the structured fields out of the callback. Metadata is
// only present on success, and partial metadata is valid: a missing item
// leaves its field nil instead of failing the reconciliation.
func extractResult(cb models.StkCallback) models.PaymentResult {
	res := models.PaymentResult{
		CheckoutRequestID: cb.CheckoutRequestID,
		MerchantRequestID: cb.MerchantRequestID,
		ResultCode:        cb.ResultCode,
		ResultDesc:        cb.ResultDesc,
	}
	if cb.CallbackMetadata == nil {
		return res
	}
	for _, item := range cb.CallbackMetadata.Item {
		switch item.Name {
		case "Amount":
			if d, ok := toDecimal(item.Value); ok {
				res.Amount = &d
			}
		case "MpesaReceiptNumber":
			if v, ok := toString(item.Value); ok {
				res.ReceiptNumber = &v
			}
		case "TransactionDate":
			if v, ok := toString(item.Value); ok {
				res.TransactionDate = &v
			}
		case "PhoneNumber":
			if v, ok := toString(item.Value); ok {
				res.PhoneNumber = &v
			}
		}
	}
	return res
}

func toString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return "", false
	}
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case string:
		d, err := decimal.NewFromString(t)
		return d, err == nil
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(t), true
	default:
		return decimal.Decimal{}, false
	}
}

// ----------------- Queries -----------------

func (s *PaymentService) List(ctx context.Context, limit, offset int) ([]models.Record, error) {
	return s.records.List(ctx, CollectionPayments, limit, offset)
}

// GatewayToken exposes the cached gateway token for diagnostics. It goes
// through the cache, so it never forces an extra exchange.
func (s *PaymentService) GatewayToken(ctx context.Context) (daraja.AccessToken, error) {
	return s.gw.Token(ctx)
}
