package khalti

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"esn/src/config"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// ErrMissingParams is returned before any network call when a required
// initiate parameter is absent.
var ErrMissingParams = errors.New("khalti: missing required parameters")

// GatewayError is a non-2xx answer from the Khalti ePayment API.
type GatewayError struct {
	Op     string
	Status int
	Body   string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("khalti: %s returned %d: %s", e.Op, e.Status, e.Body)
}

type Config struct {
	BaseURL   string
	SecretKey string
}

type Client struct {
	baseURL   string
	secretKey string
	hc        *http.Client
}

func New(cfg Config) *Client {
	return &Client{
		baseURL:   cfg.BaseURL,
		secretKey: cfg.SecretKey,
		hc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

var client *Client

func GetClient() *Client {
	if client != nil {
		return client
	}
	client = New(Config{
		BaseURL:   config.KhaltiBaseURL(),
		SecretKey: config.KhaltiSecretKey(),
	})
	return client
}

// NewClient Replace the singleton with a custom client implementation
func NewClient(c *Client) *Client {
	client = c
	return client
}

type CustomerInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type InitiateRequest struct {
	ReturnURL         string       `json:"return_url"`
	WebsiteURL        string       `json:"website_url"`
	Amount            int64        `json:"amount"`
	PurchaseOrderID   string       `json:"purchase_order_id"`
	PurchaseOrderName string       `json:"purchase_order_name"`
	CustomerInfo      CustomerInfo `json:"customer_info"`
}

type InitiateResponse struct {
	Pidx       string `json:"pidx"`
	PaymentURL string `json:"payment_url"`
	ExpiresAt  string `json:"expires_at"`
}

// Initiate opens a payment session and returns the gateway-hosted payment
// URL. Amount is in paisa, callers convert from the event price in rupees.
func (c *Client) Initiate(ctx context.Context, req *InitiateRequest) (*InitiateResponse, error) {
	if req.ReturnURL == "" || req.Amount <= 0 || req.PurchaseOrderID == "" || req.PurchaseOrderName == "" {
		return nil, ErrMissingParams
	}
	var res InitiateResponse
	if err := c.post(ctx, "initiate", req, &res); err != nil {
		return nil, err
	}
	if res.Pidx == "" || res.PaymentURL == "" {
		return nil, &GatewayError{Op: "initiate", Status: http.StatusOK, Body: "response missing pidx or payment_url"}
	}
	return &res, nil
}

// Lookup fetches the server-side state of a payment session. The payload is
// returned verbatim, interpreting the status field ("Completed" means paid)
// is the caller's concern.
func (c *Client) Lookup(ctx context.Context, pidx string) (map[string]any, error) {
	if pidx == "" {
		return nil, ErrMissingParams
	}
	var res map[string]any
	if err := c.post(ctx, "lookup", map[string]string{"pidx": pidx}, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) post(ctx context.Context, op string, body any, out any) error {
	bbody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("khalti: %s: %w", op, err)
	}
	url := fmt.Sprintf("%s/epayment/%s/", c.baseURL, op)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bbody))
	if err != nil {
		return fmt.Errorf("khalti: %s: %w", op, err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("Key %s", c.secretKey))
	req.Header.Set("Content-Type", "application/json")
	res, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("khalti: %s: %w", op, err)
	}
	defer res.Body.Close()
	rbytes, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("khalti: %s: %w", op, err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		log.Printf("[khalti] %s failed with status %d: %s\n", op, res.StatusCode, string(rbytes))
		return &GatewayError{Op: op, Status: res.StatusCode, Body: string(rbytes)}
	}
	if err := json.Unmarshal(rbytes, out); err != nil {
		return fmt.Errorf("khalti: %s: malformed response body: %w", op, err)
	}
	return nil
}
