package order

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"payhub/internal/db"
)

const orderColumns = `id, user_id, amount, status, payment_method, gateway_provider, external_id,
	gateway_invoice_id, gateway_invoice_url, gateway_payment_id, expires_at, paid_at, created_at, updated_at`

type PostgresRepository struct {
	db *sqlx.DB
}

func NewRepository(sqlxDB *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: sqlxDB}
}

func (r *PostgresRepository) Create(ctx context.Context, o *Order) error {
	return r.db.QueryRowxContext(ctx,
		`INSERT INTO topup_orders (id, user_id, amount, status, payment_method, gateway_provider, external_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at, updated_at`,
		o.ID, o.UserID, o.Amount, o.Status, o.PaymentMethod, o.GatewayProvider, o.ExternalID,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM topup_orders WHERE id = $1`, id)
}

func (r *PostgresRepository) GetByExternalID(ctx context.Context, externalID string) (*Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM topup_orders WHERE external_id = $1`, externalID)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg interface{}) (*Order, error) {
	o := &Order{}
	err := r.db.GetContext(ctx, o, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error) {
	limit, offset = normalizePage(limit, offset)

	orders := []Order{}
	err := r.db.SelectContext(ctx, &orders, `
		SELECT `+orderColumns+`
		FROM topup_orders
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *PostgresRepository) AttachInvoice(ctx context.Context, id string, link InvoiceLink) (*Order, error) {
	o := &Order{}
	err := r.db.QueryRowxContext(ctx,
		`UPDATE topup_orders
		 SET gateway_invoice_id = $2, gateway_invoice_url = $3, expires_at = $4, updated_at = NOW()
		 WHERE id = $1 AND status = 'pending'
		 RETURNING `+orderColumns,
		id, link.InvoiceID, link.InvoiceURL, link.ExpiresAt,
	).StructScan(o)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotPending
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *PostgresRepository) Transition(ctx context.Context, id string, in TransitionInput) (*Order, error) {
	return transition(ctx, db.Conn(ctx, r.db), id, in)
}

func transition(ctx context.Context, q sqlx.QueryerContext, id string, in TransitionInput) (*Order, error) {
	o := &Order{}
	err := q.QueryRowxContext(ctx,
		`UPDATE topup_orders
		 SET status = $2,
		     gateway_payment_id = COALESCE($3, gateway_payment_id),
		     payment_method = COALESCE($4, payment_method),
		     paid_at = COALESCE($5, paid_at),
		     updated_at = NOW()
		 WHERE id = $1 AND status = 'pending'
		 RETURNING `+orderColumns,
		id, in.To, nullable(in.GatewayPaymentID), nullable(in.PaymentMethod), in.PaidAt,
	).StructScan(o)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotPending
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *PostgresRepository) SettlePaid(ctx context.Context, id string, in TransitionInput, credit CreditFunc) (*Order, error) {
	var settled *Order
	err := db.InTx(ctx, r.db, func(ctx context.Context) error {
		q := db.Conn(ctx, r.db)

		locked := &Order{}
		err := sqlx.GetContext(ctx, q, locked, `SELECT `+orderColumns+` FROM topup_orders WHERE id = $1 FOR UPDATE`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrOrderNotFound
		}
		if err != nil {
			return err
		}
		if locked.Status != StatusPending {
			return ErrNotPending
		}

		if err := credit(ctx, locked); err != nil {
			return err
		}

		in.To = StatusPaid
		settled, err = transition(ctx, q, id, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return settled, nil
}

func (r *PostgresRepository) ListStalePending(ctx context.Context, cut StaleCutoff, limit int) ([]Order, error) {
	orders := []Order{}
	err := r.db.SelectContext(ctx, &orders, `
		SELECT `+orderColumns+`
		FROM topup_orders
		WHERE status = 'pending'
		  AND (expires_at < $1 OR (expires_at IS NULL AND created_at < $2))
		ORDER BY COALESCE(expires_at, created_at)
		LIMIT $3
	`, cut.ExpiredBefore, cut.UnlinkedBefore, limit)
	if err != nil {
		return nil, err
	}
	return orders, nil
}
