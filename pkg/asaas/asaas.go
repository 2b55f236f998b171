package asaas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"
)

// Client talks to one Asaas environment. Build one per environment via
// Selector; all calls carry the configured timeout through ctx plus the
// http.Client deadline.
type Client struct {
	baseURL string
	apiKey  string
	env     Env
	client  *http.Client
}

type Config struct {
	BaseURL string
	APIKey  string
	Env     Env
	Timeout time.Duration
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: environment %q", ErrMissingAPIKey, cfg.Env)
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = cfg.Env.BaseURL()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		env:     cfg.Env,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (c *Client) Env() Env { return c.env }

// CustomerProfile is the data Asaas needs to register a payer.
type CustomerProfile struct {
	Name          string `json:"name"`
	Email         string `json:"email,omitempty"`
	CPFCNPJ       string `json:"cpfCnpj,omitempty"`
	MobilePhone   string `json:"mobilePhone,omitempty"`
	Address       string `json:"address,omitempty"`
	AddressNumber string `json:"addressNumber,omitempty"`
	Complement    string `json:"complement,omitempty"`
	Province      string `json:"province,omitempty"`
	PostalCode    string `json:"postalCode,omitempty"`
}

type CreditCard struct {
	HolderName  string `json:"holderName"`
	Number      string `json:"number"`
	ExpiryMonth string `json:"expiryMonth"`
	ExpiryYear  string `json:"expiryYear"`
	CCV         string `json:"ccv"`
}

type CreditCardHolderInfo struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	CPFCNPJ       string `json:"cpfCnpj"`
	PostalCode    string `json:"postalCode"`
	AddressNumber string `json:"addressNumber"`
	MobilePhone   string `json:"mobilePhone"`
}

// PaymentRequest creates a charge. BillingType is PIX or CREDIT_CARD.
type PaymentRequest struct {
	Customer             string                `json:"customer"`
	BillingType          string                `json:"billingType"`
	DueDate              string                `json:"dueDate"`
	Value                float64               `json:"value"`
	Description          string                `json:"description"`
	ExternalReference    string                `json:"externalReference,omitempty"`
	CreditCard           *CreditCard           `json:"creditCard,omitempty"`
	CreditCardHolderInfo *CreditCardHolderInfo `json:"creditCardHolderInfo,omitempty"`
}

// Payment is the gateway's view of a charge. Dates are strings in the wire
// formats Asaas uses; ParseDate converts them.
type Payment struct {
	ID            string  `json:"id"`
	Status        string  `json:"status"`
	Value         float64 `json:"value"`
	InvoiceURL    string  `json:"invoiceUrl"`
	DueDate       string  `json:"dueDate"`
	BillingType   string  `json:"billingType"`
	PaymentDate   string  `json:"paymentDate"`
	ConfirmedDate string  `json:"confirmedDate"`
}

// Settled reports whether the gateway considers the charge paid.
func (p *Payment) Settled() bool {
	return p.Status == "CONFIRMED" || p.Status == "RECEIVED"
}

type PixQrCode struct {
	EncodedImage   string `json:"encodedImage"`
	Payload        string `json:"payload"`
	ExpirationDate string `json:"expirationDate"`
}

// CreateCustomer registers the profile with the gateway, reusing an existing
// customer with the same CPF or email when one exists (idempotent upstream).
func (c *Client) CreateCustomer(ctx context.Context, profile CustomerProfile) (string, error) {
	if id := c.findExistingCustomer(ctx, profile.CPFCNPJ, profile.Email); id != "" {
		return id, nil
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/customers", profile, &out); err != nil {
		log.Printf("[ASAAS] create customer failed (env=%s): %v", c.env, err)
		return "", err
	}
	return out.ID, nil
}

func (c *Client) findExistingCustomer(ctx context.Context, cpf, email string) string {
	type page struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	lookup := func(param, value string) string {
		if value == "" {
			return ""
		}
		var out page
		path := "/customers?" + url.Values{param: {value}}.Encode()
		if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
			return ""
		}
		if len(out.Data) > 0 {
			return out.Data[0].ID
		}
		return ""
	}
	if id := lookup("cpfCnpj", cpf); id != "" {
		return id
	}
	return lookup("email", email)
}

func (c *Client) CreatePayment(ctx context.Context, req PaymentRequest) (*Payment, error) {
	var out Payment
	if err := c.do(ctx, http.MethodPost, "/payments", req, &out); err != nil {
		log.Printf("[ASAAS] create payment failed (env=%s): %v", c.env, err)
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	var out Payment
	if err := c.do(ctx, http.MethodGet, "/payments/"+paymentID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetPixQrCode(ctx context.Context, paymentID string) (*PixQrCode, error) {
	var out PixQrCode
	if err := c.do(ctx, http.MethodGet, "/payments/"+paymentID+"/pixQrCode", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("access_token", c.apiKey)
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("asaas %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return apiErrorFromResponse(resp.StatusCode, respBody)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

// ParseDate handles the date shapes Asaas returns: bare dates on charges and
// full timestamps on webhook payloads. Nil for empty or unparseable input.
func ParseDate(v string) *time.Time {
	if v == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return &t
		}
	}
	return nil
}
