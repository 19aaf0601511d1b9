package wallet

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type referenceKey struct {
	referenceID string
	txType      TransactionType
}

type memoryWallet struct {
	mu      sync.Mutex
	wallet  Wallet
	entries []Transaction
}

// MemoryRepository keeps wallets in process. Each wallet has its own lock, so
// mutations on different wallets never contend.
type MemoryRepository struct {
	mu       sync.RWMutex
	byID     map[string]*memoryWallet
	byOwner  map[string]string
	refs     map[referenceKey]struct{}
	currency string
	now      func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:     make(map[string]*memoryWallet),
		byOwner:  make(map[string]string),
		refs:     make(map[referenceKey]struct{}),
		currency: DefaultCurrency,
		now:      time.Now,
	}
}

func (r *MemoryRepository) GetOrCreateWallet(_ context.Context, ownerID string) (*Wallet, error) {
	r.mu.RLock()
	id, ok := r.byOwner[ownerID]
	r.mu.RUnlock()
	if ok {
		return r.snapshot(id)
	}

	r.mu.Lock()
	if id, ok := r.byOwner[ownerID]; ok {
		r.mu.Unlock()
		return r.snapshot(id)
	}
	now := r.now()
	mw := &memoryWallet{wallet: Wallet{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Currency:  r.currency,
		CreatedAt: now,
		UpdatedAt: now,
	}}
	r.byID[mw.wallet.ID] = mw
	r.byOwner[ownerID] = mw.wallet.ID
	r.mu.Unlock()

	return r.snapshot(mw.wallet.ID)
}

func (r *MemoryRepository) GetWallet(_ context.Context, walletID string) (*Wallet, error) {
	return r.snapshot(walletID)
}

func (r *MemoryRepository) ApplyTransaction(_ context.Context, in TransactionInput) (*Wallet, *Transaction, error) {
	if err := in.Validate(); err != nil {
		return nil, nil, err
	}

	mw, err := r.lookup(in.WalletID)
	if err != nil {
		return nil, nil, err
	}

	mw.mu.Lock()
	defer mw.mu.Unlock()

	before := mw.wallet.Balance
	after := before + in.Amount

	key := referenceKey{referenceID: in.ReferenceID, txType: in.Type}
	r.mu.Lock()
	if in.ReferenceID != "" {
		if _, dup := r.refs[key]; dup {
			r.mu.Unlock()
			return nil, nil, ErrDuplicateReference
		}
	}
	if after < 0 {
		r.mu.Unlock()
		return nil, nil, ErrInsufficientBalance
	}
	if in.ReferenceID != "" {
		r.refs[key] = struct{}{}
	}
	r.mu.Unlock()

	now := r.now()
	entry := Transaction{
		ID:               uuid.NewString(),
		WalletID:         mw.wallet.ID,
		Type:             in.Type,
		Amount:           in.Amount,
		BalanceBefore:    before,
		BalanceAfter:     after,
		Description:      in.Description,
		ReferenceID:      nullable(in.ReferenceID),
		GatewayPaymentID: nullable(in.GatewayPaymentID),
		GatewayProvider:  nullable(in.GatewayProvider),
		Status:           StatusCompleted,
		CreatedAt:        now,
	}
	mw.entries = append(mw.entries, entry)
	mw.wallet.Balance = after
	mw.wallet.UpdatedAt = now

	w := mw.wallet
	return &w, &entry, nil
}

func (r *MemoryRepository) GetTransactions(_ context.Context, walletID string, limit, offset int) ([]Transaction, error) {
	limit, offset = normalizePage(limit, offset)

	mw, err := r.lookup(walletID)
	if err != nil {
		return []Transaction{}, nil
	}

	mw.mu.Lock()
	defer mw.mu.Unlock()

	out := []Transaction{}
	for i := len(mw.entries) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, mw.entries[i])
	}
	return out, nil
}

func (r *MemoryRepository) lookup(walletID string) (*memoryWallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mw, ok := r.byID[walletID]
	if !ok {
		return nil, ErrWalletNotFound
	}
	return mw, nil
}

func (r *MemoryRepository) snapshot(walletID string) (*Wallet, error) {
	mw, err := r.lookup(walletID)
	if err != nil {
		return nil, err
	}

	mw.mu.Lock()
	defer mw.mu.Unlock()

	w := mw.wallet
	return &w, nil
}
