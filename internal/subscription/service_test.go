package subscription

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"payhub/internal/wallet"
)

type MockLedger struct{ mock.Mock }

func (m *MockLedger) Debit(ctx context.Context, ownerID string, in wallet.TransactionInput) (*wallet.Wallet, *wallet.Transaction, error) {
	args := m.Called(ctx, ownerID, in)
	if args.Get(1) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*wallet.Wallet), args.Get(1).(*wallet.Transaction), args.Error(2)
}

func (m *MockLedger) Credit(ctx context.Context, ownerID string, in wallet.TransactionInput) (*wallet.Wallet, *wallet.Transaction, error) {
	args := m.Called(ctx, ownerID, in)
	if args.Get(1) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*wallet.Wallet), args.Get(1).(*wallet.Transaction), args.Error(2)
}

type denyTier struct{}

func (denyTier) CanPurchase(context.Context, string, Plan) error { return ErrTierLimit }

type failingRepo struct{ *MemoryRepository }

func (failingRepo) Create(context.Context, *Purchase) error { return errors.New("db down") }

func TestService_Purchase(t *testing.T) {
	ctx := context.Background()
	ledger := new(MockLedger)
	svc := NewService(NewMemoryRepository(), ledger, nil, nil)

	ledger.On("Debit", ctx, "usr_1", mock.MatchedBy(func(in wallet.TransactionInput) bool {
		return in.Type == wallet.TypeSubscription && in.Amount == 25000 && in.ReferenceID != ""
	})).Return(&wallet.Wallet{Balance: 5000}, &wallet.Transaction{ID: "tx-1", Amount: -25000}, nil)

	p, err := svc.Purchase(ctx, "usr_1", "storage_basic")
	require.NoError(t, err)
	assert.Equal(t, "tx-1", p.TransactionID)
	assert.Equal(t, StatusActive, p.Status)
	assert.Equal(t, p.ValidFrom.AddDate(0, 0, 30), p.ValidUntil)

	active, err := svc.ListActive(ctx, "usr_1")
	require.NoError(t, err)
	assert.Len(t, active, 1)
	ledger.AssertExpectations(t)
}

func TestService_Purchase_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown plan", func(t *testing.T) {
		ledger := new(MockLedger)
		_, err := NewService(NewMemoryRepository(), ledger, nil, nil).Purchase(ctx, "usr_1", "gold")
		assert.ErrorIs(t, err, ErrUnknownPlan)
		ledger.AssertNotCalled(t, "Debit", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("tier check", func(t *testing.T) {
		ledger := new(MockLedger)
		_, err := NewService(NewMemoryRepository(), ledger, denyTier{}, nil).Purchase(ctx, "usr_1", "storage_pro")
		assert.ErrorIs(t, err, ErrTierLimit)
		ledger.AssertNotCalled(t, "Debit", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("insufficient balance", func(t *testing.T) {
		ledger := new(MockLedger)
		repo := NewMemoryRepository()
		ledger.On("Debit", ctx, "usr_1", mock.Anything).Return(nil, nil, wallet.ErrInsufficientBalance)

		_, err := NewService(repo, ledger, nil, nil).Purchase(ctx, "usr_1", "storage_pro")
		assert.ErrorIs(t, err, wallet.ErrInsufficientBalance)

		active, _ := repo.ListActiveByUser(ctx, "usr_1", time.Now())
		assert.Empty(t, active)
	})
}

func TestService_Purchase_RecordFailureRefunds(t *testing.T) {
	ctx := context.Background()
	ledger := new(MockLedger)
	svc := NewService(failingRepo{NewMemoryRepository()}, ledger, nil, nil)

	ledger.On("Debit", ctx, "usr_1", mock.Anything).
		Return(&wallet.Wallet{}, &wallet.Transaction{ID: "tx-1"}, nil)
	ledger.On("Credit", ctx, "usr_1", mock.MatchedBy(func(in wallet.TransactionInput) bool {
		return in.Type == wallet.TypeRefund && in.Amount == 25000
	})).Return(&wallet.Wallet{}, &wallet.Transaction{ID: "tx-2"}, nil)

	_, err := svc.Purchase(ctx, "usr_1", "storage_basic")
	assert.Error(t, err)
	ledger.AssertExpectations(t)
}

func TestService_RefundWithRealLedger(t *testing.T) {
	ctx := context.Background()
	wallets := wallet.NewService(wallet.NewMemoryRepository())
	_, _, err := wallets.Credit(ctx, "usr_1", wallet.TransactionInput{Type: wallet.TypeTopUp, Amount: 100000, ReferenceID: "order-1"})
	require.NoError(t, err)

	svc := NewService(NewMemoryRepository(), wallets, nil, nil)
	p, err := svc.Purchase(ctx, "usr_1", "storage_plus")
	require.NoError(t, err)

	balance, _ := wallets.Balance(ctx, "usr_1")
	assert.Equal(t, int64(25000), balance)

	refunded, err := svc.Refund(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRefunded, refunded.Status)

	balance, _ = wallets.Balance(ctx, "usr_1")
	assert.Equal(t, int64(100000), balance)

	_, err = svc.Refund(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotActive)

	balance, _ = wallets.Balance(ctx, "usr_1")
	assert.Equal(t, int64(100000), balance)
}
