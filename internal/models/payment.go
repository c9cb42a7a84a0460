package models

import (
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

// MSISDN is the only payer address the gateway accepts: a Kenyan mobile
// number in international form without the plus sign.
var MSISDN = regexp.MustCompile(`^254\d{9}$`)

// PaymentRequest is a caller's order to prompt a phone for payment.
// The json field names are the wire contract toward existing callers.
type PaymentRequest struct {
	PhoneNumber      string          `json:"phoneNumber" validate:"required,msisdn"`
	Amount           decimal.Decimal `json:"amount"`
	AccountReference string          `json:"accountReference"`
	TransactionDesc  string          `json:"transactionDesc"`
}

// PendingPayment is a ledger entry: an initiated push waiting for the
// gateway's asynchronous result.
type PendingPayment struct {
	CheckoutRequestID string         `json:"checkout_request_id"`
	Request           PaymentRequest `json:"request"`
	ClientID          string         `json:"client_id,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
}

// PaymentResult holds the structured fields extracted from an stkCallback.
// ResultCode 0 is success; any other value is a gateway-classified failure
// and is preserved verbatim. The pointer fields come from the callback
// metadata and stay nil when the gateway omitted them.
type PaymentResult struct {
	CheckoutRequestID string           `json:"checkout_request_id"`
	MerchantRequestID string           `json:"merchant_request_id"`
	ResultCode        int              `json:"result_code"`
	ResultDesc        string           `json:"result_desc"`
	ReceiptNumber     *string          `json:"receipt_number"`
	Amount            *decimal.Decimal `json:"amount"`
	TransactionDate   *string          `json:"transaction_date"`
	PhoneNumber       *string          `json:"phone_number"`
}

// Payment is the reconciled transaction: the gateway's result merged with
// the originating request context. Request is nil when the ledger had no
// entry for the CheckoutRequestID (late, duplicate, or foreign callback).
type Payment struct {
	ID string `json:"id"`
	PaymentResult
	Request      *PaymentRequest `json:"request"`
	ClientID     string          `json:"client_id,omitempty"`
	InitiatedAt  *time.Time      `json:"initiated_at,omitempty"`
	ReconciledAt time.Time       `json:"reconciled_at"`
	Succeeded    bool            `json:"succeeded"`
}
