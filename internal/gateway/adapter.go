package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

type Provider string

const (
	ProviderXendit Provider = "xendit"
	ProviderDoku   Provider = "doku"
)

func (p Provider) String() string { return string(p) }

func ParseProvider(s string) (Provider, error) {
	switch Provider(s) {
	case ProviderXendit, ProviderDoku:
		return Provider(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
}

var (
	ErrAuthenticationFailed = errors.New("gateway authentication failed")
	ErrProviderInternal     = errors.New("gateway internal error")
	ErrInvalidRequest       = errors.New("gateway rejected request")

	ErrUnknownProvider = errors.New("unknown gateway provider")
	ErrNoActiveGateway = errors.New("no active primary gateway configured")
	ErrNotConfigured   = errors.New("gateway credentials not configured")
)

// Adapter creates hosted invoices on one payment provider. Implementations
// make a single attempt per call; retrying is the caller's decision.
type Adapter interface {
	Provider() Provider
	CreateInvoice(ctx context.Context, req InvoiceRequest) (*Invoice, error)
}

type InvoiceRequest struct {
	Amount        int64
	Description   string
	ExternalID    string
	CustomerEmail string
	CustomerName  string
	PaymentMethod string
	ExpiresIn     time.Duration
}

type Invoice struct {
	ID         string    `json:"id"`
	InvoiceURL string    `json:"invoice_url"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// ProviderError carries the raw provider response while matching one of the
// shared sentinels through errors.Is.
type ProviderError struct {
	Provider   Provider
	StatusCode int
	Code       string
	Message    string
	kind       error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s: %v (status %d", e.Provider, e.kind, e.StatusCode)
	if e.Code != "" {
		msg += ", code " + e.Code
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg + ")"
}

func (e *ProviderError) Unwrap() error { return e.kind }

// Kind returns a short label for metrics.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrAuthenticationFailed):
		return "authentication_failed"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrProviderInternal):
		return "provider_internal"
	case errors.Is(err, ErrNotConfigured):
		return "not_configured"
	default:
		return "unknown"
	}
}

func classifyStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrAuthenticationFailed
	case status >= 500:
		return ErrProviderInternal
	case status >= 400:
		return ErrInvalidRequest
	default:
		return ErrProviderInternal
	}
}

func newProviderError(p Provider, status int, code, message string) *ProviderError {
	return &ProviderError{
		Provider:   p,
		StatusCode: status,
		Code:       code,
		Message:    message,
		kind:       classifyStatus(status),
	}
}

// transportError wraps network failures and timeouts as retryable internal errors.
func transportError(p Provider, err error) error {
	return fmt.Errorf("%s: %w: %v", p, ErrProviderInternal, err)
}
