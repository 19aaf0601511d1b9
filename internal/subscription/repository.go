package subscription

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

const purchaseColumns = `id, user_id, plan_code, amount, status, transaction_id, valid_from, valid_until, created_at, updated_at`

type PostgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, p *Purchase) error {
	return r.db.QueryRowxContext(ctx, `
		INSERT INTO subscription_purchases (id, user_id, plan_code, amount, status, transaction_id, valid_from, valid_until)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`, p.ID, p.UserID, p.PlanCode, p.Amount, p.Status, p.TransactionID, p.ValidFrom, p.ValidUntil,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Purchase, error) {
	p := &Purchase{}
	err := r.db.GetContext(ctx, p, `SELECT `+purchaseColumns+` FROM subscription_purchases WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPurchaseNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PostgresRepository) ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]Purchase, error) {
	purchases := []Purchase{}
	err := r.db.SelectContext(ctx, &purchases, `
		SELECT `+purchaseColumns+`
		FROM subscription_purchases
		WHERE user_id = $1
		  AND status = 'active'
		  AND valid_from <= $2
		  AND valid_until >= $2
		ORDER BY created_at DESC
	`, userID, now)
	return purchases, err
}

func (r *PostgresRepository) MarkRefunded(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE subscription_purchases
		SET status = 'refunded',
		    updated_at = NOW()
		WHERE id = $1 AND status = 'active'
	`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotActive
	}
	return nil
}
