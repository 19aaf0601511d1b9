package order

import (
	"time"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusExpired Status = "expired"
	StatusFailed  Status = "failed"
)

func (s Status) IsTerminal() bool {
	return s == StatusPaid || s == StatusExpired || s == StatusFailed
}

// CanTransition reports whether an order may move from one status to another.
// Only pending orders move, and only once.
func CanTransition(from, to Status) bool {
	return from == StatusPending && to.IsTerminal()
}

// Order is a request to add funds through a payment gateway.
type Order struct {
	ID                string     `db:"id" json:"id"`
	UserID            string     `db:"user_id" json:"user_id"`
	Amount            int64      `db:"amount" json:"amount"`
	Status            Status     `db:"status" json:"status"`
	PaymentMethod     *string    `db:"payment_method" json:"payment_method,omitempty"`
	GatewayProvider   string     `db:"gateway_provider" json:"gateway_provider"`
	ExternalID        string     `db:"external_id" json:"external_id"`
	GatewayInvoiceID  *string    `db:"gateway_invoice_id" json:"gateway_invoice_id,omitempty"`
	GatewayInvoiceURL *string    `db:"gateway_invoice_url" json:"gateway_invoice_url,omitempty"`
	GatewayPaymentID  *string    `db:"gateway_payment_id" json:"gateway_payment_id,omitempty"`
	ExpiresAt         *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	PaidAt            *time.Time `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

type CreateOrderInput struct {
	UserID        string
	Amount        int64
	PaymentMethod string
	CustomerEmail string
	CustomerName  string
}

type FinalizeInput struct {
	Outcome          Status
	GatewayPaymentID string
	PaymentMethod    string
}

// FinalizeResult.AlreadyProcessed is set when the order had left pending before this call.
type FinalizeResult struct {
	Order            *Order
	AlreadyProcessed bool
}

// InvoiceLink is the gateway linkage stored after a successful invoice call.
type InvoiceLink struct {
	InvoiceID  string
	InvoiceURL string
	ExpiresAt  time.Time
}

// TransitionInput carries the fields written with a terminal status.
type TransitionInput struct {
	To               Status
	GatewayPaymentID string
	PaymentMethod    string
	PaidAt           *time.Time
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
