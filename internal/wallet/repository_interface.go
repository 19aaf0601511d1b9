package wallet

import (
	"context"
	"errors"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrDuplicateReference  = errors.New("ledger entry already exists for reference")
	ErrInvalidTransaction  = errors.New("invalid transaction")
)

type Repository interface {
	GetOrCreateWallet(ctx context.Context, ownerID string) (*Wallet, error)
	GetWallet(ctx context.Context, walletID string) (*Wallet, error)
	// ApplyTransaction locks the wallet, appends one ledger entry and moves the balance.
	// Either both writes happen or neither does.
	ApplyTransaction(ctx context.Context, in TransactionInput) (*Wallet, *Transaction, error)
	GetTransactions(ctx context.Context, walletID string, limit, offset int) ([]Transaction, error)
}

const (
	defaultPageSize = 50
	maxPageSize     = 200
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
