package db

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestExists(t *testing.T) {
	sqlxDB, mock := setupMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM wallets WHERE owner_id = $1)")).
		WithArgs("owner-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := Exists(context.Background(), sqlxDB, "SELECT EXISTS(SELECT 1 FROM wallets WHERE owner_id = $1)", "owner-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx(t *testing.T) {
	t.Run("commits on success", func(t *testing.T) {
		sqlxDB, mock := setupMock(t)
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE payment_gateway_configs").WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		err := WithTx(context.Background(), sqlxDB, func(tx *sqlx.Tx) error {
			_, err := tx.Exec("UPDATE payment_gateway_configs SET is_primary = FALSE")
			return err
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		sqlxDB, mock := setupMock(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err := WithTx(context.Background(), sqlxDB, func(tx *sqlx.Tx) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestInTx_NestedCallsShareOneTransaction(t *testing.T) {
	sqlxDB, mock := setupMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE topup_orders")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE wallets")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := InTx(context.Background(), sqlxDB, func(ctx context.Context) error {
		if _, err := Conn(ctx, sqlxDB).ExecContext(ctx, "UPDATE topup_orders SET status = 'paid'"); err != nil {
			return err
		}
		return WithTx(ctx, sqlxDB, func(tx *sqlx.Tx) error {
			_, err := tx.ExecContext(ctx, "UPDATE wallets SET balance = 10000")
			return err
		})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTx_InnerErrorRollsBackOuter(t *testing.T) {
	sqlxDB, mock := setupMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := InTx(context.Background(), sqlxDB, func(ctx context.Context) error {
		return WithTx(ctx, sqlxDB, func(*sqlx.Tx) error { return boom })
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConn_WithoutTransaction(t *testing.T) {
	sqlxDB, _ := setupMock(t)
	assert.Equal(t, sqlxDB, Conn(context.Background(), sqlxDB))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("plain")))
}
