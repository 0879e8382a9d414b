package pakasir

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://pakasir.com/api"
	defaultTimeout = 15 * time.Second
	maxErrorBody   = 500
)

// Gateway statuses reported by transactiondetail and the webhook.
const (
	StatusPending   = "pending"
	StatusPaid      = "paid"
	StatusExpired   = "expired"
	StatusCancelled = "cancelled"
)

// Config holds the project credentials.
type Config struct {
	BaseURL     string
	ProjectSlug string
	APIKey      string
	Timeout     time.Duration
}

type Client struct {
	baseURL    string
	project    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a client. httpClient may be nil.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		project:    cfg.ProjectSlug,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
	}
}

// APIError is a non-2xx answer from the gateway.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pakasir status %d: %s", e.StatusCode, e.Body)
}

type CreateRequest struct {
	OrderID string
	Amount  int64
	Method  string
}

type Transaction struct {
	OrderID   string    `json:"order_id"`
	QRString  string    `json:"qr_string,omitempty"`
	VANumber  string    `json:"va_number,omitempty"`
	Total     int64     `json:"total"`
	ExpiredAt time.Time `json:"expired_at"`
}

// PaymentNumber is what the buyer pays to: the QR payload or the VA number.
func (t *Transaction) PaymentNumber() string {
	if t.QRString != "" {
		return t.QRString
	}
	return t.VANumber
}

type TransactionDetail struct {
	OrderID       string     `json:"order_id"`
	Status        string     `json:"status"`
	Amount        int64      `json:"amount"`
	PaymentMethod string     `json:"payment_method"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// CreateTransaction opens a payment for an order with the given method.
func (c *Client) CreateTransaction(ctx context.Context, req CreateRequest) (*Transaction, error) {
	if !ValidMethod(req.Method) {
		return nil, fmt.Errorf("unsupported payment method %q", req.Method)
	}

	body := map[string]any{
		"project":  c.project,
		"order_id": req.OrderID,
		"amount":   req.Amount,
		"method":   req.Method,
	}
	var tx Transaction
	if err := c.do(ctx, http.MethodPost, "/transactioncreate/"+url.PathEscape(req.Method), body, &tx); err != nil {
		return nil, err
	}
	if tx.OrderID == "" {
		tx.OrderID = req.OrderID
	}
	return &tx, nil
}

// TransactionDetail fetches the current state of a transaction.
func (c *Client) TransactionDetail(ctx context.Context, orderID string) (*TransactionDetail, error) {
	q := url.Values{}
	q.Set("order_id", orderID)
	if c.project != "" {
		q.Set("project", c.project)
	}

	var detail TransactionDetail
	if err := c.do(ctx, http.MethodGet, "/transactiondetail?"+q.Encode(), nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// SimulatePayment asks a sandbox project to settle a transaction.
func (c *Client) SimulatePayment(ctx context.Context, orderID string) error {
	body := map[string]any{
		"project":  c.project,
		"order_id": orderID,
	}
	return c.do(ctx, http.MethodPost, "/paymentsimulation", body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c == nil {
		return errors.New("pakasir client is nil")
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("pakasir request: %w", err)
	}
	defer resp.Body.Close()

	resBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read pakasir response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: truncate(string(resBody), maxErrorBody)}
	}

	if out == nil || len(bytes.TrimSpace(resBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resBody, out); err != nil {
		return fmt.Errorf("decode pakasir response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
