package wallet_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"payhub/internal/db"
	"payhub/internal/wallet"
)

func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	url := os.Getenv("PAYHUB_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("PAYHUB_TEST_DATABASE_URL not set")
	}

	conn, err := db.Connect(url)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(conn, "../../migrations"))

	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestPostgresLedger_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	conn := setupTestDB(t)
	repo := wallet.NewRepository(conn)
	ctx := context.Background()
	owner := "it_" + uuid.NewString()

	w, err := repo.GetOrCreateWallet(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, int64(0), w.Balance)

	again, err := repo.GetOrCreateWallet(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, w.ID, again.ID)

	orderID := uuid.NewString()
	_, entry, err := repo.ApplyTransaction(ctx, wallet.TransactionInput{
		WalletID:    w.ID,
		Type:        wallet.TypeTopUp,
		Amount:      10000,
		ReferenceID: orderID,
	})
	require.NoError(t, err)
	require.Equal(t, int64(10000), entry.BalanceAfter)

	_, _, err = repo.ApplyTransaction(ctx, wallet.TransactionInput{
		WalletID:    w.ID,
		Type:        wallet.TypeTopUp,
		Amount:      10000,
		ReferenceID: orderID,
	})
	require.ErrorIs(t, err, wallet.ErrDuplicateReference)

	_, _, err = repo.ApplyTransaction(ctx, wallet.TransactionInput{
		WalletID: w.ID,
		Type:     wallet.TypeSubscription,
		Amount:   -10001,
	})
	require.ErrorIs(t, err, wallet.ErrInsufficientBalance)

	final, err := repo.GetWallet(ctx, w.ID)
	require.NoError(t, err)
	require.Equal(t, int64(10000), final.Balance)
}

func TestPostgresLedger_ConcurrentDebits_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	conn := setupTestDB(t)
	repo := wallet.NewRepository(conn)
	ctx := context.Background()

	w, err := repo.GetOrCreateWallet(ctx, "it_"+uuid.NewString())
	require.NoError(t, err)
	_, _, err = repo.ApplyTransaction(ctx, wallet.TransactionInput{WalletID: w.ID, Type: wallet.TypeTopUp, Amount: 500})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 20)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = repo.ApplyTransaction(ctx, wallet.TransactionInput{
				WalletID:    w.ID,
				Type:        wallet.TypeSubscription,
				Amount:      -100,
				ReferenceID: fmt.Sprintf("%s-%d", w.ID, i),
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, wallet.ErrInsufficientBalance)
	}
	require.Equal(t, 5, succeeded)

	var sum int64
	require.NoError(t, conn.Get(&sum, `SELECT COALESCE(SUM(amount), 0) FROM wallet_transactions WHERE wallet_id = $1`, w.ID))
	final, err := repo.GetWallet(ctx, w.ID)
	require.NoError(t, err)
	require.Equal(t, int64(0), final.Balance)
	require.Equal(t, final.Balance, sum)
}
