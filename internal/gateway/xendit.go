package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultXenditBaseURL = "https://api.xendit.co"
	xenditInvoicePath    = "/v2/invoices"
	maxResponseBytes     = 1 << 20
)

type XenditAdapter struct {
	creds  Credentials
	client *http.Client
}

func NewXenditAdapter(creds Credentials, client *http.Client) (*XenditAdapter, error) {
	if creds.SecretKey == "" {
		return nil, fmt.Errorf("%s: %w", ProviderXendit, ErrNotConfigured)
	}
	if creds.BaseURL == "" {
		creds.BaseURL = defaultXenditBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &XenditAdapter{creds: creds, client: client}, nil
}

func XenditFactory(creds Credentials, client *http.Client) (Adapter, error) {
	a, err := NewXenditAdapter(creds, client)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *XenditAdapter) Provider() Provider { return ProviderXendit }

type xenditCustomer struct {
	GivenNames string `json:"given_names,omitempty"`
	Email      string `json:"email,omitempty"`
}

type xenditInvoiceRequest struct {
	ExternalID      string          `json:"external_id"`
	Amount          int64           `json:"amount"`
	Description     string          `json:"description"`
	InvoiceDuration int64           `json:"invoice_duration,omitempty"`
	Currency        string          `json:"currency"`
	Customer        *xenditCustomer `json:"customer,omitempty"`
	PaymentMethods  []string        `json:"payment_methods,omitempty"`
}

type xenditInvoiceResponse struct {
	ID         string    `json:"id"`
	InvoiceURL string    `json:"invoice_url"`
	ExpiryDate time.Time `json:"expiry_date"`
}

type xenditErrorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

func (a *XenditAdapter) CreateInvoice(ctx context.Context, req InvoiceRequest) (*Invoice, error) {
	body := xenditInvoiceRequest{
		ExternalID:      req.ExternalID,
		Amount:          req.Amount,
		Description:     req.Description,
		InvoiceDuration: int64(req.ExpiresIn / time.Second),
		Currency:        "IDR",
	}
	if req.CustomerEmail != "" || req.CustomerName != "" {
		body.Customer = &xenditCustomer{GivenNames: req.CustomerName, Email: req.CustomerEmail}
	}
	if req.PaymentMethod != "" {
		body.PaymentMethods = []string{req.PaymentMethod}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(a.creds.BaseURL, "/")+xenditInvoicePath, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.SetBasicAuth(a.creds.SecretKey, "")
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, transportError(ProviderXendit, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, transportError(ProviderXendit, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e xenditErrorResponse
		_ = json.Unmarshal(raw, &e)
		return nil, newProviderError(ProviderXendit, resp.StatusCode, e.ErrorCode, e.Message)
	}

	var out xenditInvoiceResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%s: %w: decode invoice: %v", ProviderXendit, ErrProviderInternal, err)
	}
	if out.ID == "" || out.InvoiceURL == "" {
		return nil, fmt.Errorf("%s: %w: invoice response missing id or url", ProviderXendit, ErrProviderInternal)
	}

	return &Invoice{ID: out.ID, InvoiceURL: out.InvoiceURL, ExpiresAt: out.ExpiryDate}, nil
}
