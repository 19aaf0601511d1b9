package reconcile

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"payhub/internal/gateway"
)

var ErrMalformedPayload = errors.New("malformed notification payload")

type PaymentStatus string

const (
	PaymentSuccess PaymentStatus = "success"
	PaymentExpired PaymentStatus = "expired"
	PaymentFailed  PaymentStatus = "failed"
	PaymentOther   PaymentStatus = "other"
)

// Notification is a gateway callback reduced to the fields reconciliation needs.
type Notification struct {
	ExternalID       string
	Status           PaymentStatus
	RawStatus        string
	GatewayPaymentID string
	PaymentMethod    string
	PaidAmount       decimal.Decimal
}

type PayloadParser func(raw []byte) (Notification, error)

func defaultParsers() map[gateway.Provider]PayloadParser {
	return map[gateway.Provider]PayloadParser{
		gateway.ProviderXendit: ParseXendit,
		gateway.ProviderDoku:   ParseDoku,
	}
}

type xenditCallback struct {
	ID            string          `json:"id"`
	ExternalID    string          `json:"external_id"`
	Status        string          `json:"status"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	PaymentMethod string          `json:"payment_method"`
	PaymentID     string          `json:"payment_id"`
}

func ParseXendit(raw []byte) (Notification, error) {
	var cb xenditCallback
	if err := json.Unmarshal(raw, &cb); err != nil {
		return Notification{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if cb.ExternalID == "" || cb.Status == "" {
		return Notification{}, fmt.Errorf("%w: external_id and status are required", ErrMalformedPayload)
	}

	status := PaymentOther
	switch strings.ToUpper(cb.Status) {
	case "PAID", "SETTLED":
		status = PaymentSuccess
	case "EXPIRED":
		status = PaymentExpired
	case "FAILED":
		status = PaymentFailed
	}

	paymentID := cb.ID
	if paymentID == "" {
		paymentID = cb.PaymentID
	}

	return Notification{
		ExternalID:       cb.ExternalID,
		Status:           status,
		RawStatus:        cb.Status,
		GatewayPaymentID: paymentID,
		PaymentMethod:    cb.PaymentMethod,
		PaidAmount:       cb.PaidAmount,
	}, nil
}

type dokuNotification struct {
	Order struct {
		InvoiceNumber string          `json:"invoice_number"`
		Amount        decimal.Decimal `json:"amount"`
	} `json:"order"`
	Transaction struct {
		Status string `json:"status"`
		ID     string `json:"id"`
	} `json:"transaction"`
	Channel struct {
		ID string `json:"id"`
	} `json:"channel"`
}

func ParseDoku(raw []byte) (Notification, error) {
	var n dokuNotification
	if err := json.Unmarshal(raw, &n); err != nil {
		return Notification{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if n.Order.InvoiceNumber == "" || n.Transaction.Status == "" {
		return Notification{}, fmt.Errorf("%w: order.invoice_number and transaction.status are required", ErrMalformedPayload)
	}

	status := PaymentOther
	switch strings.ToUpper(n.Transaction.Status) {
	case "SUCCESS":
		status = PaymentSuccess
	case "EXPIRED":
		status = PaymentExpired
	case "FAILED":
		status = PaymentFailed
	}

	return Notification{
		ExternalID:       n.Order.InvoiceNumber,
		Status:           status,
		RawStatus:        n.Transaction.Status,
		GatewayPaymentID: n.Transaction.ID,
		PaymentMethod:    n.Channel.ID,
		PaidAmount:       n.Order.Amount,
	}, nil
}
