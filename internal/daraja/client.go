package daraja

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	PassKey        string
	CallbackURL    string
	Timeout        time.Duration
}

// Client talks to the Daraja API: OAuth token exchange and STK push.
type Client struct {
	cfg    Config
	http   *http.Client
	tokens *TokenCache
	now    func() time.Time
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		now:  time.Now,
	}
	c.tokens = NewTokenCache(c.fetchToken)
	return c
}

// Token returns a valid bearer token through the cache.
func (c *Client) Token(ctx context.Context) (AccessToken, error) {
	return c.tokens.Get(ctx)
}

type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresIn   json.Number `json:"expires_in"` // daraja sends "3599" as a string
}

func (c *Client) fetchToken(ctx context.Context) (AccessToken, error) {
	if c.cfg.ConsumerKey == "" || c.cfg.ConsumerSecret == "" {
		return AccessToken{}, &AuthError{Detail: "consumer key/secret not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.BaseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return AccessToken{}, err
	}
	basic := base64.StdEncoding.EncodeToString([]byte(c.cfg.ConsumerKey + ":" + c.cfg.ConsumerSecret))
	req.Header.Set("Authorization", "Basic "+basic)

	resp, err := c.http.Do(req)
	if err != nil {
		return AccessToken{}, &AuthError{Detail: err.Error()}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return AccessToken{}, &AuthError{Status: resp.StatusCode, Detail: string(body)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil || tr.AccessToken == "" {
		return AccessToken{}, &AuthError{Detail: "malformed token response"}
	}
	ttl, _ := tr.ExpiresIn.Int64()
	if ttl <= 0 {
		ttl = 3599
	}
	return AccessToken{
		Value:      tr.AccessToken,
		ObtainedAt: c.now(),
		TTL:        time.Duration(ttl) * time.Second,
	}, nil
}

type STKPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            string `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// STKPush prompts the payer's phone. A 401/403 invalidates the cached token
// and retries exactly once with a fresh one; any other failure is surfaced
// as a GatewayError without retrying, since the gateway may already have
// dispatched the prompt.
func (c *Client) STKPush(ctx context.Context, phone string, amount decimal.Decimal, accountRef, desc string) (*STKPushResponse, error) {
	ts := Timestamp(c.now())
	body := STKPushRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          Password(c.cfg.ShortCode, c.cfg.PassKey, ts),
		Timestamp:         ts,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            amount.String(),
		PartyA:            phone,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       phone,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  accountRef,
		TransactionDesc:   desc,
	}

	resp, err := c.push(ctx, body)
	if err == nil {
		return resp, nil
	}
	var ge *GatewayError
	if errors.As(err, &ge) && (ge.Status == http.StatusUnauthorized || ge.Status == http.StatusForbidden) {
		c.tokens.Invalidate()
		return c.push(ctx, body)
	}
	return nil, err
}

func (c *Client) push(ctx context.Context, body STKPushRequest) (*STKPushResponse, error) {
	tok, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	pctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(pctx, http.MethodPost,
		c.cfg.BaseURL+"/mpesa/stkpush/v1/processrequest", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+tok.Value)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &GatewayError{Body: err.Error()}
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, &GatewayError{Status: resp.StatusCode, Body: string(raw)}
	}

	var out STKPushResponse
	if err := json.Unmarshal(raw, &out); err != nil || out.CheckoutRequestID == "" {
		return nil, &GatewayError{Status: resp.StatusCode, Body: string(raw)}
	}
	return &out, nil
}
