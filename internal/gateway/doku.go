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

	"github.com/google/uuid"
)

const (
	defaultDokuBaseURL = "https://api-sandbox.doku.com"
	dokuCheckoutPath   = "/checkout/v1/payment"
	dokuTimestampFmt   = "2006-01-02T15:04:05Z"
	dokuExpiryFmt      = "20060102150405"
)

// DOKU reports expiry in Western Indonesian Time without a zone suffix.
var dokuZone = time.FixedZone("WIB", 7*60*60)

type DokuAdapter struct {
	creds     Credentials
	client    *http.Client
	now       func() time.Time
	requestID func() string
}

func NewDokuAdapter(creds Credentials, client *http.Client) (*DokuAdapter, error) {
	if creds.ClientID == "" || creds.SecretKey == "" {
		return nil, fmt.Errorf("%s: %w", ProviderDoku, ErrNotConfigured)
	}
	if creds.BaseURL == "" {
		creds.BaseURL = defaultDokuBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &DokuAdapter{
		creds:     creds,
		client:    client,
		now:       time.Now,
		requestID: uuid.NewString,
	}, nil
}

func DokuFactory(creds Credentials, client *http.Client) (Adapter, error) {
	a, err := NewDokuAdapter(creds, client)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *DokuAdapter) Provider() Provider { return ProviderDoku }

type dokuOrder struct {
	Amount        int64  `json:"amount"`
	InvoiceNumber string `json:"invoice_number"`
	Currency      string `json:"currency"`
}

type dokuPayment struct {
	PaymentDueDate     int      `json:"payment_due_date"`
	PaymentMethodTypes []string `json:"payment_method_types,omitempty"`
}

type dokuCustomer struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

type dokuPaymentRequest struct {
	Order    dokuOrder     `json:"order"`
	Payment  dokuPayment   `json:"payment"`
	Customer *dokuCustomer `json:"customer,omitempty"`
}

type dokuPaymentResponse struct {
	Response struct {
		Payment struct {
			TokenID     string `json:"token_id"`
			URL         string `json:"url"`
			ExpiredDate string `json:"expired_date"`
		} `json:"payment"`
	} `json:"response"`
}

type dokuErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Message []string `json:"message"`
}

func (a *DokuAdapter) CreateInvoice(ctx context.Context, req InvoiceRequest) (*Invoice, error) {
	dueMinutes := int(req.ExpiresIn / time.Minute)
	if dueMinutes <= 0 {
		dueMinutes = 60
	}

	body := dokuPaymentRequest{
		Order: dokuOrder{
			Amount:        req.Amount,
			InvoiceNumber: req.ExternalID,
			Currency:      "IDR",
		},
		Payment: dokuPayment{PaymentDueDate: dueMinutes},
	}
	if req.PaymentMethod != "" {
		body.Payment.PaymentMethodTypes = []string{req.PaymentMethod}
	}
	if req.CustomerEmail != "" || req.CustomerName != "" {
		body.Customer = &dokuCustomer{Name: req.CustomerName, Email: req.CustomerEmail}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	requestedAt := a.now()
	components := DokuComponents{
		ClientID:  a.creds.ClientID,
		RequestID: a.requestID(),
		Timestamp: requestedAt.UTC().Format(dokuTimestampFmt),
		Target:    dokuCheckoutPath,
		Digest:    DokuDigest(payload),
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(a.creds.BaseURL, "/")+dokuCheckoutPath, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Client-Id", components.ClientID)
	httpReq.Header.Set("Request-Id", components.RequestID)
	httpReq.Header.Set("Request-Timestamp", components.Timestamp)
	httpReq.Header.Set("Signature", SignDoku(a.creds.SecretKey, components))

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, transportError(ProviderDoku, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, transportError(ProviderDoku, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e dokuErrorResponse
		_ = json.Unmarshal(raw, &e)
		msg := e.Error.Message
		if msg == "" && len(e.Message) > 0 {
			msg = strings.Join(e.Message, "; ")
		}
		return nil, newProviderError(ProviderDoku, resp.StatusCode, e.Error.Code, msg)
	}

	var out dokuPaymentResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%s: %w: decode payment: %v", ProviderDoku, ErrProviderInternal, err)
	}
	p := out.Response.Payment
	if p.TokenID == "" || p.URL == "" {
		return nil, fmt.Errorf("%s: %w: payment response missing token or url", ProviderDoku, ErrProviderInternal)
	}

	expiresAt, err := time.ParseInLocation(dokuExpiryFmt, p.ExpiredDate, dokuZone)
	if err != nil {
		expiresAt = requestedAt.Add(time.Duration(dueMinutes) * time.Minute)
	}

	return &Invoice{ID: p.TokenID, InvoiceURL: p.URL, ExpiresAt: expiresAt}, nil
}
