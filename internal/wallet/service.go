package wallet

import (
	"context"
	"errors"
	"fmt"

	"payhub/internal/logger"
	"payhub/internal/metrics"
)

// Service resolves an account's wallet and applies ledger mutations to it.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetOrCreateWallet(ctx context.Context, ownerID string) (*Wallet, error) {
	return s.repo.GetOrCreateWallet(ctx, ownerID)
}

// Apply writes one ledger entry against the owner's wallet, creating the wallet on first use.
// in.WalletID is ignored.
func (s *Service) Apply(ctx context.Context, ownerID string, in TransactionInput) (*Wallet, *Transaction, error) {
	w, err := s.repo.GetOrCreateWallet(ctx, ownerID)
	if err != nil {
		return nil, nil, err
	}

	in.WalletID = w.ID
	updated, entry, err := s.repo.ApplyTransaction(ctx, in)
	if err != nil {
		if errors.Is(err, ErrInsufficientBalance) || errors.Is(err, ErrDuplicateReference) {
			logger.Info("ledger mutation rejected",
				"owner_id", ownerID,
				"wallet_id", w.ID,
				"type", in.Type,
				"amount", in.Amount,
				"reference_id", in.ReferenceID,
				"reason", err.Error(),
			)
		} else {
			logger.Error("ledger mutation failed", "owner_id", ownerID, "wallet_id", w.ID, "error", err)
		}
		return nil, nil, err
	}

	metrics.RecordLedgerTransaction(string(entry.Type), entry.Amount)
	logger.Info("ledger entry written",
		"wallet_id", updated.ID,
		"entry_id", entry.ID,
		"type", entry.Type,
		"amount", entry.Amount,
		"balance_after", entry.BalanceAfter,
	)

	return updated, entry, nil
}

// Credit writes a positive entry such as a top-up or refund.
func (s *Service) Credit(ctx context.Context, ownerID string, in TransactionInput) (*Wallet, *Transaction, error) {
	if in.Amount <= 0 {
		return nil, nil, fmt.Errorf("%w: credit amount must be positive", ErrInvalidTransaction)
	}
	return s.Apply(ctx, ownerID, in)
}

// Debit takes a positive amount and writes it as a negative entry.
func (s *Service) Debit(ctx context.Context, ownerID string, in TransactionInput) (*Wallet, *Transaction, error) {
	if in.Amount <= 0 {
		return nil, nil, fmt.Errorf("%w: debit amount must be positive", ErrInvalidTransaction)
	}
	in.Amount = -in.Amount
	return s.Apply(ctx, ownerID, in)
}

func (s *Service) Balance(ctx context.Context, ownerID string) (int64, error) {
	w, err := s.repo.GetOrCreateWallet(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	return w.Balance, nil
}

func (s *Service) History(ctx context.Context, ownerID string, limit, offset int) ([]Transaction, error) {
	w, err := s.repo.GetOrCreateWallet(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return s.repo.GetTransactions(ctx, w.ID, limit, offset)
}
