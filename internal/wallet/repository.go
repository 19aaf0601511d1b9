package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"payhub/internal/db"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type PostgresRepository struct {
	db       *sqlx.DB
	currency string
}

func NewRepository(sqlxDB *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: sqlxDB, currency: DefaultCurrency}
}

// GetOrCreateWallet and ApplyTransaction join a transaction carried by ctx
// (see db.InTx).
func (r *PostgresRepository) GetOrCreateWallet(ctx context.Context, ownerID string) (*Wallet, error) {
	q := db.Conn(ctx, r.db)

	w := &Wallet{}
	err := sqlx.GetContext(ctx, q, w,
		`SELECT id, owner_id, balance, currency, created_at, updated_at
		 FROM wallets
		 WHERE owner_id = $1`,
		ownerID,
	)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	// Concurrent first calls race on the owner_id unique key; losers fall through to the read.
	_, err = q.ExecContext(ctx,
		`INSERT INTO wallets (id, owner_id, balance, currency)
		 VALUES ($1, $2, 0, $3)
		 ON CONFLICT (owner_id) DO NOTHING`,
		uuid.NewString(), ownerID, r.currency,
	)
	if err != nil {
		return nil, fmt.Errorf("create wallet: %w", err)
	}

	err = sqlx.GetContext(ctx, q, w,
		`SELECT id, owner_id, balance, currency, created_at, updated_at
		 FROM wallets
		 WHERE owner_id = $1`,
		ownerID,
	)
	if err != nil {
		return nil, err
	}

	return w, nil
}

func (r *PostgresRepository) GetWallet(ctx context.Context, walletID string) (*Wallet, error) {
	w := &Wallet{}
	err := r.db.GetContext(ctx, w,
		`SELECT id, owner_id, balance, currency, created_at, updated_at
		 FROM wallets
		 WHERE id = $1`,
		walletID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (r *PostgresRepository) ApplyTransaction(ctx context.Context, in TransactionInput) (*Wallet, *Transaction, error) {
	if err := in.Validate(); err != nil {
		return nil, nil, err
	}

	var (
		w     Wallet
		entry *Transaction
	)
	err := db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.QueryRowxContext(ctx,
			`SELECT id, owner_id, balance, currency, created_at, updated_at
			 FROM wallets
			 WHERE id = $1
			 FOR UPDATE`,
			in.WalletID,
		).StructScan(&w)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrWalletNotFound
			}
			return err
		}

		if in.ReferenceID != "" {
			dup, err := db.Exists(ctx, tx,
				`SELECT EXISTS(SELECT 1 FROM wallet_transactions WHERE reference_id = $1 AND type = $2)`,
				in.ReferenceID, in.Type,
			)
			if err != nil {
				return err
			}
			if dup {
				return ErrDuplicateReference
			}
		}

		newBalance := w.Balance + in.Amount
		if newBalance < 0 {
			return ErrInsufficientBalance
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE wallets
			 SET balance = $1, updated_at = NOW()
			 WHERE id = $2`,
			newBalance, w.ID,
		)
		if err != nil {
			return err
		}

		entry = &Transaction{}
		err = tx.QueryRowxContext(ctx,
			`INSERT INTO wallet_transactions (id, wallet_id, type, amount, balance_before, balance_after, description, reference_id, gateway_payment_id, gateway_provider, status)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			 RETURNING id, wallet_id, type, amount, balance_before, balance_after, description, reference_id, gateway_payment_id, gateway_provider, status, created_at`,
			uuid.NewString(), w.ID, in.Type, in.Amount, w.Balance, newBalance, in.Description,
			nullable(in.ReferenceID), nullable(in.GatewayPaymentID), nullable(in.GatewayProvider), StatusCompleted,
		).StructScan(entry)
		if err != nil {
			if db.IsUniqueViolation(err) {
				return ErrDuplicateReference
			}
			return err
		}

		w.Balance = newBalance
		w.UpdatedAt = entry.CreatedAt
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return &w, entry, nil
}

func (r *PostgresRepository) GetTransactions(ctx context.Context, walletID string, limit, offset int) ([]Transaction, error) {
	limit, offset = normalizePage(limit, offset)

	txs := []Transaction{}
	err := r.db.SelectContext(ctx, &txs, `
		SELECT id, wallet_id, type, amount, balance_before, balance_after, description,
		       reference_id, gateway_payment_id, gateway_provider, status, created_at
		FROM wallet_transactions
		WHERE wallet_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, walletID, limit, offset)
	if err != nil {
		return nil, err
	}

	return txs, nil
}
