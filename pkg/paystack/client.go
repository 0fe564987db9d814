package paystack

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sokoplace/sokoplace-backend/pkg/config"
	pkgerrors "github.com/sokoplace/sokoplace-backend/pkg/errors"
	"github.com/sokoplace/sokoplace-backend/pkg/logger"
)

const defaultBaseURL = "https://api.paystack.co"

var (
	errSecretKeyRequired = errors.New("paystack secret key is required")
	errLoggerRequired    = errors.New("paystack logger is required")
)

// Client wraps the Paystack REST API with centralized auth, timeouts, and
// error mapping. All calls honor the caller's context and the configured
// request timeout; a timeout never marks anything paid.
type Client struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
	logger     *logger.Logger
}

// NewClient initializes the Paystack wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.PaystackConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	secretKey := strings.TrimSpace(cfg.SecretKey)
	if secretKey == "" {
		return nil, errSecretKeyRequired
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		secretKey:  secretKey,
		logger:     logg,
	}

	logg.Info(ctx, "paystack client initialized")
	return c, nil
}

// InitializeParams is the payload for creating a Paystack transaction.
type InitializeParams struct {
	Email       string         `json:"email"`
	AmountKobo  int64          `json:"amount"`
	Reference   string         `json:"reference,omitempty"`
	CallbackURL string         `json:"callback_url,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// InitializeResult carries the authorization handles the checkout UI needs.
type InitializeResult struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// VerifyResult is the gateway's verdict on a transaction reference.
type VerifyResult struct {
	AmountKobo int64      `json:"amount"`
	Status     string     `json:"status"`
	Reference  string     `json:"reference"`
	Channel    string     `json:"channel"`
	Currency   string     `json:"currency"`
	PaidAt     *time.Time `json:"paid_at"`
	PayerEmail string     `json:"payer_email"`
}

// Success reports whether the gateway confirmed the charge.
func (v VerifyResult) Success() bool {
	return strings.EqualFold(v.Status, "success")
}

type apiEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type verifyData struct {
	Amount    int64      `json:"amount"`
	Status    string     `json:"status"`
	Reference string     `json:"reference"`
	Channel   string     `json:"channel"`
	Currency  string     `json:"currency"`
	PaidAt    *time.Time `json:"paid_at"`
	Customer  struct {
		Email string `json:"email"`
	} `json:"customer"`
}

// InitializeTransaction creates a pending charge and returns the
// authorization handles for the checkout widget.
func (c *Client) InitializeTransaction(ctx context.Context, params InitializeParams) (*InitializeResult, error) {
	if strings.TrimSpace(params.Email) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payer email required")
	}
	if params.AmountKobo <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	c.log(ctx, "request", "initialize_transaction", map[string]any{
		"reference":   params.Reference,
		"amount_kobo": params.AmountKobo,
	})

	var result InitializeResult
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// VerifyTransaction asks Paystack for the final state of a reference.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*VerifyResult, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference required")
	}

	c.log(ctx, "request", "verify_transaction", map[string]any{"reference": reference})

	var data verifyData
	if err := c.do(ctx, http.MethodGet, "/transaction/verify/"+reference, nil, &data); err != nil {
		return nil, err
	}
	return &VerifyResult{
		AmountKobo: data.Amount,
		Status:     data.Status,
		Reference:  data.Reference,
		Channel:    data.Channel,
		Currency:   data.Currency,
		PaidAt:     data.PaidAt,
		PayerEmail: data.Customer.Email,
	}, nil
}

// ValidSignature checks the x-paystack-signature header against the raw
// webhook body. Paystack signs with HMAC-SHA512 keyed by the secret key.
func (c *Client) ValidSignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(c.secretKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode paystack request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build paystack request")
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "paystack request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read paystack response")
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode paystack response")
	}

	if resp.StatusCode >= 400 || !envelope.Status {
		message := envelope.Message
		if message == "" {
			message = fmt.Sprintf("paystack returned status %d", resp.StatusCode)
		}
		return pkgerrors.New(pkgerrors.CodeDependency, message).WithDetails(map[string]any{
			"http_status": resp.StatusCode,
		})
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode paystack data")
		}
	}
	return nil
}

func (c *Client) log(ctx context.Context, stage, operation string, fields map[string]any) {
	if c.logger == nil {
		return
	}
	merged := map[string]any{"gateway": "paystack", "stage": stage, "operation": operation}
	for k, v := range fields {
		merged[k] = v
	}
	ctx = c.logger.WithFields(ctx, merged)
	c.logger.Info(ctx, "paystack."+operation)
}
