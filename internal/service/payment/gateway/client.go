package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultTimeout = 10 * time.Second

type Config struct {
	// Gateway API root, e.g. https://api.yookassa.ru
	BaseURL string

	// Shop credentials used as basic auth
	ShopID    string
	SecretKey string
}

// Client talks to the external payment gateway over its REST API.
// Every create call carries an Idempotence-Key so gateway-side retries
// never produce a second payment.
type Client struct {
	http *resty.Client
}

func NewClient(c Config) *Client {
	http := resty.New().
		SetBaseURL(c.BaseURL).
		SetBasicAuth(c.ShopID, c.SecretKey).
		SetTimeout(defaultTimeout).
		SetHeader("Content-Type", "application/json")

	return &Client{http: http}
}

type Amount struct {
	// Exact decimal with two fraction digits, e.g. "4990.00"
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type Confirmation struct {
	Type      string `json:"type"`
	ReturnURL string `json:"return_url,omitempty"`

	// Hosted checkout page, filled by the gateway in responses
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

type Customer struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type ReceiptItem struct {
	Description    string `json:"description"`
	Quantity       string `json:"quantity"`
	Amount         Amount `json:"amount"`
	VATCode        int    `json:"vat_code"`
	PaymentSubject string `json:"payment_subject"`
	PaymentMode    string `json:"payment_mode"`
}

type Receipt struct {
	Customer Customer      `json:"customer"`
	Items    []ReceiptItem `json:"items"`
}

type CreatePaymentRequest struct {
	Amount       Amount            `json:"amount"`
	Capture      bool              `json:"capture"`
	Description  string            `json:"description"`
	Confirmation Confirmation      `json:"confirmation"`
	Receipt      Receipt           `json:"receipt"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

type Payment struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	Confirmation Confirmation      `json:"confirmation"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

func (c *Client) CreatePayment(ctx context.Context, idempotenceKey string, req CreatePaymentRequest) (Payment, error) {
	var payment Payment

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Idempotence-Key", idempotenceKey).
		SetBody(req).
		SetResult(&payment).
		Post("/v3/payments")

	switch {
	case err != nil:
		return payment, fmt.Errorf("gateway request failed. Err: %w", err)
	case resp.IsError():
		return payment, fmt.Errorf("gateway responded %s: %s", resp.Status(), resp.String())
	case payment.ID == "" || payment.Confirmation.ConfirmationURL == "":
		return payment, fmt.Errorf("gateway response missing payment id or checkout url")
	}

	return payment, nil
}
