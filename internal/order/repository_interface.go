package order

import (
	"context"
	"errors"
	"time"
)

var (
	ErrValidation    = errors.New("validation failed")
	ErrOrderNotFound = errors.New("order not found")
	// ErrNotPending is returned by conditional updates that matched no pending row.
	ErrNotPending = errors.New("order is not pending")
)

type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	GetByExternalID(ctx context.Context, externalID string) (*Order, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error)
	// AttachInvoice records gateway linkage while the order is still pending.
	AttachInvoice(ctx context.Context, id string, link InvoiceLink) (*Order, error)
	// Transition moves a pending order to a terminal status in one conditional
	// update. It returns ErrNotPending when no pending row matched.
	Transition(ctx context.Context, id string, in TransitionInput) (*Order, error)
	// SettlePaid holds the pending order exclusively while credit runs, then
	// marks it paid. If credit fails nothing changes. Another transition on the
	// same order waits for it, so an order is never credited and expired.
	SettlePaid(ctx context.Context, id string, in TransitionInput, credit CreditFunc) (*Order, error)
	ListStalePending(ctx context.Context, cut StaleCutoff, limit int) ([]Order, error)
}

// CreditFunc writes the ledger side of a payment. ctx carries the order's
// transaction, so Postgres repositories that use db.Conn or db.WithTx join it.
type CreditFunc func(ctx context.Context, o *Order) error

// StaleCutoff selects pending orders for expiry. Orders with an invoice
// qualify once their deadline is before ExpiredBefore. Orders that never got
// an invoice qualify once they were created before UnlinkedBefore.
type StaleCutoff struct {
	ExpiredBefore  time.Time
	UnlinkedBefore time.Time
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
