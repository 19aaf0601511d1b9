package wallet

import (
	"fmt"
	"time"
)

const DefaultCurrency = "IDR"

type TransactionType string

const (
	TypeTopUp        TransactionType = "topup"
	TypeSubscription TransactionType = "subscription"
	TypeRefund       TransactionType = "refund"

	StatusCompleted = "completed"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TypeTopUp, TypeSubscription, TypeRefund:
		return true
	}
	return false
}

// Wallet holds a single balance in the smallest currency unit. It never goes below zero.
type Wallet struct {
	ID        string    `db:"id" json:"id"`
	OwnerID   string    `db:"owner_id" json:"owner_id"`
	Balance   int64     `db:"balance" json:"balance"`
	Currency  string    `db:"currency" json:"currency"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Transaction is an immutable ledger entry. BalanceAfter always equals BalanceBefore + Amount.
type Transaction struct {
	ID               string          `db:"id" json:"id"`
	WalletID         string          `db:"wallet_id" json:"wallet_id"`
	Type             TransactionType `db:"type" json:"type"`
	Amount           int64           `db:"amount" json:"amount"`
	BalanceBefore    int64           `db:"balance_before" json:"balance_before"`
	BalanceAfter     int64           `db:"balance_after" json:"balance_after"`
	Description      string          `db:"description" json:"description"`
	ReferenceID      *string         `db:"reference_id" json:"reference_id,omitempty"`
	GatewayPaymentID *string         `db:"gateway_payment_id" json:"gateway_payment_id,omitempty"`
	GatewayProvider  *string         `db:"gateway_provider" json:"gateway_provider,omitempty"`
	Status           string          `db:"status" json:"status"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
}

type TransactionInput struct {
	WalletID         string
	Type             TransactionType
	Amount           int64
	Description      string
	ReferenceID      string
	GatewayPaymentID string
	GatewayProvider  string
}

// Validate checks the sign convention per type: top-ups and refunds credit, subscriptions debit.
func (in TransactionInput) Validate() error {
	if in.WalletID == "" {
		return fmt.Errorf("%w: wallet id is required", ErrInvalidTransaction)
	}
	if !in.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidTransaction, in.Type)
	}
	switch in.Type {
	case TypeTopUp, TypeRefund:
		if in.Amount <= 0 {
			return fmt.Errorf("%w: %s amount must be positive", ErrInvalidTransaction, in.Type)
		}
	case TypeSubscription:
		if in.Amount >= 0 {
			return fmt.Errorf("%w: subscription amount must be negative", ErrInvalidTransaction)
		}
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
