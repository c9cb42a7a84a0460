package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baharkarakas/mpesa-backend/internal/daraja"
	"github.com/baharkarakas/mpesa-backend/internal/ledger"
	"github.com/baharkarakas/mpesa-backend/internal/models"
	"github.com/baharkarakas/mpesa-backend/internal/worker"
)

// ----------------- fakes -----------------

type fakeGateway struct {
	pushCalls  int
	tokenCalls int
	resp       *daraja.STKPushResponse
	err        error
}

func (f *fakeGateway) Token(ctx context.Context) (daraja.AccessToken, error) {
	f.tokenCalls++
	return daraja.AccessToken{Value: "tok", ObtainedAt: time.Now(), TTL: time.Hour}, nil
}

func (f *fakeGateway) STKPush(ctx context.Context, phone string, amount decimal.Decimal, accountRef, desc string) (*daraja.STKPushResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, &daraja.GatewayError{Body: err.Error()}
	}
	f.pushCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

type memRecords struct {
	mu   sync.Mutex
	fail bool
	recs []models.Record
}

func (m *memRecords) Create(ctx context.Context, collection string, data any) (string, error) {
	if m.fail {
		return "", errors.New("store down")
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := models.Record{ID: uuid.NewString(), Collection: collection, Data: payload, CreatedAt: time.Now()}
	m.recs = append(m.recs, rec)
	return rec.ID, nil
}

func (m *memRecords) List(ctx context.Context, collection string, limit, offset int) ([]models.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Record
	for _, r := range m.recs {
		if r.Collection == collection {
			out = append(out, r)
		}
	}
	return out, nil
}

type memAudit struct {
	mu   sync.Mutex
	logs []models.AuditLog
}

func (m *memAudit) Create(l models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, l)
	return nil
}

func (m *memAudit) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, l := range m.logs {
		out = append(out, l.Action)
	}
	return out
}

type fixture struct {
	gw      *fakeGateway
	led     *ledger.Memory
	records *memRecords
	audit   *memAudit
	wp      *worker.Pool
	svc     *PaymentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		gw: &fakeGateway{resp: &daraja.STKPushResponse{
			MerchantRequestID:   "29115-34620561-1",
			CheckoutRequestID:   "ws_CO_1",
			ResponseCode:        "0",
			ResponseDescription: "Success. Request accepted for processing",
			CustomerMessage:     "Success. Request accepted for processing",
		}},
		led:     ledger.NewMemory(),
		records: &memRecords{},
		audit:   &memAudit{},
		wp:      worker.NewPool(1),
	}
	f.svc = NewPaymentService(f.gw, f.led, f.records, f.audit, f.wp)
	return f
}

func request(phone string, amount int64) models.PaymentRequest {
	return models.PaymentRequest{
		PhoneNumber:      phone,
		Amount:           decimal.NewFromInt(amount),
		AccountReference: "INV-001",
		TransactionDesc:  "order",
	}
}

// ----------------- initiation -----------------

func TestInitiate_RejectsBadInputWithoutNetworkCall(t *testing.T) {
	tests := []struct {
		name string
		req  models.PaymentRequest
	}{
		{"short phone", request("25471234567", 100)},
		{"local format", request("0712345678", 100)},
		{"plus prefix", request("+254712345678", 100)},
		{"not a number", request("notaphone", 100)},
		{"wrong country", request("255712345678", 100)},
		{"zero amount", request("254712345678", 0)},
		{"negative amount", request("254712345678", -5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			defer f.wp.Stop()

			_, err := f.svc.Initiate(context.Background(), tt.req, "shop-1")
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, 0, f.gw.pushCalls, "validation must fail before any network call")
			assert.Equal(t, 0, f.gw.tokenCalls)
			assert.Equal(t, 0, f.led.Len())
		})
	}
}

func TestInitiate_RegistersPendingTransaction(t *testing.T) {
	f := newFixture(t)
	defer f.wp.Stop()

	resp, err := f.svc.Initiate(context.Background(), request("254712345678", 100), "shop-1")
	require.NoError(t, err)
	assert.Equal(t, "ws_CO_1", resp.CheckoutRequestID)
	assert.Equal(t, 1, f.led.Len())

	p, ok := f.led.Take("ws_CO_1")
	require.True(t, ok)
	assert.Equal(t, "254712345678", p.Request.PhoneNumber)
	assert.Equal(t, "shop-1", p.ClientID)
	assert.False(t, p.CreatedAt.IsZero())
}

func TestInitiate_GatewayErrorLeavesNoLedgerEntry(t *testing.T) {
	f := newFixture(t)
	defer f.wp.Stop()
	f.gw.err = &daraja.GatewayError{Status: 503, Body: "down"}

	_, err := f.svc.Initiate(context.Background(), request("254712345678", 100), "shop-1")
	var ge *daraja.GatewayError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, 0, f.led.Len())
	assert.Equal(t, 1, f.gw.pushCalls, "initiation is never retried here")
}

func TestInitiate_SurvivesCallerCancellation(t *testing.T) {
	f := newFixture(t)
	defer f.wp.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // caller already gone

	_, err := f.svc.Initiate(ctx, request("254712345678", 100), "shop-1")
	require.NoError(t, err)
	assert.Equal(t, 1, f.led.Len())
}

// ----------------- reconciliation -----------------

func successCallback(id string) models.StkCallback {
	return models.StkCallback{
		MerchantRequestID: "29115-34620561-1",
		CheckoutRequestID: id,
		ResultCode:        0,
		ResultDesc:        "The service request is processed successfully.",
		CallbackMetadata: &models.CallbackMetadata{Item: []models.MetadataItem{
			{Name: "Amount", Value: json.Number("500")},
			{Name: "MpesaReceiptNumber", Value: "ABC123"},
			{Name: "TransactionDate", Value: json.Number("20240101120000")},
			{Name: "PhoneNumber", Value: json.Number("254712345678")},
		}},
	}
}

func (f *fixture) storedPayments(t *testing.T) []models.Payment {
	t.Helper()
	recs, err := f.records.List(context.Background(), CollectionPayments, 100, 0)
	require.NoError(t, err)
	out := make([]models.Payment, 0, len(recs))
	for _, r := range recs {
		var p models.Payment
		require.NoError(t, json.Unmarshal(r.Data, &p))
		out = append(out, p)
	}
	return out
}

func TestReconcile_MergesMetadataWithLedgerEntry(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Initiate(context.Background(), request("254712345678", 500), "shop-1")
	require.NoError(t, err)

	p := f.svc.Reconcile(context.Background(), successCallback("ws_CO_1"))
	f.wp.Stop()

	assert.True(t, p.Succeeded)
	require.NotNil(t, p.Amount)
	assert.True(t, p.Amount.Equal(decimal.NewFromInt(500)))
	require.NotNil(t, p.ReceiptNumber)
	assert.Equal(t, "ABC123", *p.ReceiptNumber)
	require.NotNil(t, p.TransactionDate)
	assert.Equal(t, "20240101120000", *p.TransactionDate)
	require.NotNil(t, p.PhoneNumber)
	assert.Equal(t, "254712345678", *p.PhoneNumber)

	require.NotNil(t, p.Request, "ledger context must be merged in")
	assert.Equal(t, "254712345678", p.Request.PhoneNumber)
	assert.Equal(t, "shop-1", p.ClientID)
	assert.NotNil(t, p.InitiatedAt)

	assert.Equal(t, 0, f.led.Len(), "reconciliation retires the ledger entry")
	assert.Len(t, f.storedPayments(t), 1)
	assert.Contains(t, f.audit.actions(), "reconciled")
}

func TestReconcile_FailureWithoutMetadata(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Initiate(context.Background(), request("254712345678", 500), "shop-1")
	require.NoError(t, err)

	cb := models.StkCallback{
		MerchantRequestID: "29115-34620561-1",
		CheckoutRequestID: "ws_CO_1",
		ResultCode:        1032,
		ResultDesc:        "Request cancelled by user",
	}
	p := f.svc.Reconcile(context.Background(), cb)
	f.wp.Stop()

	assert.False(t, p.Succeeded)
	assert.Equal(t, 1032, p.ResultCode)
	assert.Equal(t, "Request cancelled by user", p.ResultDesc)
	assert.Nil(t, p.Amount)
	assert.Nil(t, p.ReceiptNumber)
	assert.NotNil(t, p.Request)
	assert.Len(t, f.storedPayments(t), 1)
}

func TestReconcile_PartialMetadata(t *testing.T) {
	f := newFixture(t)
	defer f.wp.Stop()

	cb := successCallback("ws_CO_9")
	cb.CallbackMetadata.Item = []models.MetadataItem{
		{Name: "Amount", Value: json.Number("250")},
		{Name: "Balance"}, // present but valueless, daraja does this
	}
	p := f.svc.Reconcile(context.Background(), cb)

	require.NotNil(t, p.Amount)
	assert.True(t, p.Amount.Equal(decimal.NewFromInt(250)))
	assert.Nil(t, p.ReceiptNumber)
	assert.Nil(t, p.TransactionDate)
	assert.Nil(t, p.PhoneNumber)
}

func TestReconcile_DuplicateCallbackPersistsBoth(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Initiate(context.Background(), request("254712345678", 500), "shop-1")
	require.NoError(t, err)

	first := f.svc.Reconcile(context.Background(), successCallback("ws_CO_1"))
	second := f.svc.Reconcile(context.Background(), successCallback("ws_CO_1"))
	f.wp.Stop()

	assert.NotNil(t, first.Request, "first delivery gets the ledger context")
	assert.Nil(t, second.Request, "duplicate delivery proceeds context-less")
	assert.Len(t, f.storedPayments(t), 2, "no delivery is silently dropped")
	assert.Contains(t, f.audit.actions(), "orphan_callback")
}

func TestReconcile_UnknownIDStillPersists(t *testing.T) {
	f := newFixture(t)

	p := f.svc.Reconcile(context.Background(), successCallback("ws_CO_unseen"))
	f.wp.Stop()

	assert.Nil(t, p.Request)
	require.NotNil(t, p.Amount)
	assert.True(t, p.Amount.Equal(decimal.NewFromInt(500)))
	assert.Len(t, f.storedPayments(t), 1)
	assert.Contains(t, f.audit.actions(), "orphan_callback")
}

func TestReconcile_PersistFailureDoesNotPanicOrRetry(t *testing.T) {
	f := newFixture(t)
	defer f.wp.Stop()
	f.records.fail = true

	p := f.svc.Reconcile(context.Background(), successCallback("ws_CO_1"))
	assert.True(t, p.Succeeded, "reconciled result is still returned for the ack path")
}

// ----------------- interleaving -----------------

func TestInitiateAndReconcileInterleaved(t *testing.T) {
	f := newFixture(t)

	// second push gets its own correlation id
	_, err := f.svc.Initiate(context.Background(), request("254712345678", 100), "shop-1")
	require.NoError(t, err)
	f.gw.resp = &daraja.STKPushResponse{CheckoutRequestID: "ws_CO_2", MerchantRequestID: "m2"}
	_, err = f.svc.Initiate(context.Background(), request("254798765432", 200), "shop-2")
	require.NoError(t, err)
	assert.Equal(t, 2, f.led.Len())

	// callbacks arrive out of order
	second := f.svc.Reconcile(context.Background(), successCallback("ws_CO_2"))
	first := f.svc.Reconcile(context.Background(), successCallback("ws_CO_1"))
	f.wp.Stop()

	require.NotNil(t, second.Request)
	assert.Equal(t, "254798765432", second.Request.PhoneNumber)
	require.NotNil(t, first.Request)
	assert.Equal(t, "254712345678", first.Request.PhoneNumber)
	assert.Equal(t, 0, f.led.Len())
	assert.Len(t, f.storedPayments(t), 2)
}
