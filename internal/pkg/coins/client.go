package coins

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/coinly/coinadmin-api/internal/domain/transaction"
)

const defaultTimeout = 15 * time.Second

// Config holds coins backend connection configuration
type Config struct {
	BaseURL      string
	ServiceToken string
	Timeout      time.Duration
	// ReadRetries bounds re-attempts for read-only calls. Mutating calls
	// are never retried to avoid double application.
	ReadRetries int
	UserAgent   string
}

// Client talks to the coins backend's admin API. All mutating operations
// map 1:1 onto the backend's approve/reject/pay/adjust endpoints; the
// backend remains the sole authority on transaction state.
type Client struct {
	baseURL     string
	token       string
	ua          string
	readRetries int
	http        *http.Client
}

// UserProfile is the coin-account owner as shown to operators
type UserProfile struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone,omitempty"`
	PayoutID    string `json:"payoutId,omitempty"`
	CoinBalance int64  `json:"coinBalance"`
}

// PageMeta is the backend's pagination envelope
type PageMeta struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewClient creates a coins backend client
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retries := cfg.ReadRetries
	if retries < 0 {
		retries = 0
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		token:       cfg.ServiceToken,
		ua:          cfg.UserAgent,
		readRetries: retries,
		http: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

type pendingPage struct {
	Transactions []*transaction.Transaction `json:"transactions"`
	Meta         PageMeta                   `json:"meta"`
}

// ListPendingTransactions fetches a user's PENDING transactions ordered
// oldest first. Read-only, retried on transport failures.
func (c *Client) ListPendingTransactions(ctx context.Context, userID string, page, limit int) ([]*transaction.Transaction, PageMeta, error) {
	if limit <= 0 {
		limit = 50
	}
	if page <= 0 {
		page = 1
	}

	path := fmt.Sprintf("/internal/admin/users/%s/transactions/pending?page=%d&limit=%d&sort=oldest", userID, page, limit)

	var out pendingPage
	err := c.doWithRetry(ctx, http.MethodGet, path, nil, &out)
	if err != nil {
		return nil, PageMeta{}, err
	}
	return out.Transactions, out.Meta, nil
}

// GetUserProfile fetches the owning user's profile. Read-only, retried.
func (c *Client) GetUserProfile(ctx context.Context, userID string) (*UserProfile, error) {
	var out UserProfile
	err := c.doWithRetry(ctx, http.MethodGet, "/internal/admin/users/"+userID, nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTransaction fetches one transaction by id. Read-only, retried.
func (c *Client) GetTransaction(ctx context.Context, id string) (*transaction.Transaction, error) {
	var out transaction.Transaction
	err := c.doWithRetry(ctx, http.MethodGet, "/internal/admin/transactions/"+id, nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Approve approves a pending transaction and returns the updated record
func (c *Client) Approve(ctx context.Context, id, adminNotes string) (*transaction.Transaction, error) {
	body := map[string]string{}
	if adminNotes != "" {
		body["adminNotes"] = adminNotes
	}
	var out transaction.Transaction
	if err := c.do(ctx, http.MethodPost, "/internal/admin/transactions/"+id+"/approve", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Reject rejects a pending transaction. Reason is mandatory and passed
// through to the backend unmodified.
func (c *Client) Reject(ctx context.Context, id, reason, adminNotes string) error {
	body := map[string]string{"reason": reason}
	if adminNotes != "" {
		body["adminNotes"] = adminNotes
	}
	return c.do(ctx, http.MethodPost, "/internal/admin/transactions/"+id+"/reject", body, nil)
}

// ProcessPayment records a payout for an approved redemption
func (c *Client) ProcessPayment(ctx context.Context, id, paymentRef, method string, amount int64, adminNotes string) (*transaction.Transaction, error) {
	body := map[string]interface{}{
		"paymentReferenceId": paymentRef,
		"method":             method,
		"amount":             amount,
	}
	if adminNotes != "" {
		body["adminNotes"] = adminNotes
	}
	var out transaction.Transaction
	if err := c.do(ctx, http.MethodPost, "/internal/admin/transactions/"+id+"/process-payment", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkPaid flips an UNPAID transaction to PAID (manual payout path)
func (c *Client) MarkPaid(ctx context.Context, id, paymentRef, adminNotes string) (*transaction.Transaction, error) {
	body := map[string]string{"paymentReferenceId": paymentRef}
	if adminNotes != "" {
		body["adminNotes"] = adminNotes
	}
	var out transaction.Transaction
	if err := c.do(ctx, http.MethodPost, "/internal/admin/transactions/"+id+"/mark-paid", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AdjustRedeem sets a pending redemption's coinsRedeemed to newAmount
func (c *Client) AdjustRedeem(ctx context.Context, id string, newAmount int64, adminNotes string) (*transaction.Transaction, error) {
	body := map[string]interface{}{"newRedeemedAmount": newAmount}
	if adminNotes != "" {
		body["adminNotes"] = adminNotes
	}
	var out transaction.Transaction
	if err := c.do(ctx, http.MethodPatch, "/internal/admin/transactions/"+id+"/redeem-amount", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// doWithRetry re-attempts read-only calls on transport/5xx failures with
// exponential backoff
func (c *Client) doWithRetry(ctx context.Context, method, path string, body, out interface{}) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = c.do(ctx, method, path, body, out)
		if err == nil || attempt >= c.readRetries || !retryable(err) {
			return err
		}

		backoff := time.Duration(1<<attempt) * 250 * time.Millisecond
		log.Warn().
			Err(err).
			Str("path", path).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Msg("coins read failed, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	if c == nil || c.http == nil {
		return fmt.Errorf("coins client is not initialized")
	}
	if strings.TrimSpace(c.baseURL) == "" {
		return fmt.Errorf("coins config error: base_url is empty")
	}

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode coins request: %w", err)
		}
		reqBody = bytes.NewBuffer(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("coins request error: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.ua != "" {
		req.Header.Set("User-Agent", c.ua)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyRequestError(ctx, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read coins response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: %s", ErrUnauthorized, backendMessage(raw))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Code:       backendCode(raw),
			Message:    backendMessage(raw),
		}
	}

	if out == nil {
		return nil
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("failed to parse coins response: %w", err)
	}
	if envelope.Data == nil {
		// Some endpoints answer with the bare object
		return json.Unmarshal(raw, out)
	}
	return json.Unmarshal(envelope.Data, out)
}

func backendMessage(raw []byte) string {
	var envelope apiEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error != nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return ""
}

func backendCode(raw []byte) string {
	var envelope apiEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error != nil {
		return envelope.Error.Code
	}
	return ""
}
