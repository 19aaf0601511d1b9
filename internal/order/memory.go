package order

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

type MemoryRepository struct {
	mu     sync.RWMutex
	orders map[string]*Order
	byExt  map[string]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		orders: make(map[string]*Order),
		byExt:  make(map[string]string),
	}
}

func (r *MemoryRepository) Create(_ context.Context, o *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[o.ID]; ok {
		return fmt.Errorf("order %s already exists", o.ID)
	}
	if _, ok := r.byExt[o.ExternalID]; ok {
		return fmt.Errorf("external id %s already exists", o.ExternalID)
	}

	now := time.Now()
	o.CreatedAt = now
	o.UpdatedAt = now
	stored := *o
	r.orders[o.ID] = &stored
	r.byExt[o.ExternalID] = o.ID
	return nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	out := *o
	return &out, nil
}

func (r *MemoryRepository) GetByExternalID(ctx context.Context, externalID string) (*Order, error) {
	r.mu.RLock()
	id, ok := r.byExt[externalID]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrOrderNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *MemoryRepository) ListByUser(_ context.Context, userID string, limit, offset int) ([]Order, error) {
	limit, offset = normalizePage(limit, offset)

	r.mu.RLock()
	defer r.mu.RUnlock()

	all := []Order{}
	for _, o := range r.orders {
		if o.UserID == userID {
			all = append(all, *o)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	if offset >= len(all) {
		return []Order{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *MemoryRepository) AttachInvoice(_ context.Context, id string, link InvoiceLink) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok || o.Status != StatusPending {
		return nil, ErrNotPending
	}
	o.GatewayInvoiceID = nullable(link.InvoiceID)
	o.GatewayInvoiceURL = nullable(link.InvoiceURL)
	expires := link.ExpiresAt
	o.ExpiresAt = &expires
	o.UpdatedAt = time.Now()

	out := *o
	return &out, nil
}

func (r *MemoryRepository) Transition(_ context.Context, id string, in TransitionInput) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok || !CanTransition(o.Status, in.To) {
		return nil, ErrNotPending
	}
	applyTransition(o, in)

	out := *o
	return &out, nil
}

// SettlePaid keeps the repository locked while credit runs. credit must not
// call back into the repository.
func (r *MemoryRepository) SettlePaid(ctx context.Context, id string, in TransitionInput, credit CreditFunc) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	if o.Status != StatusPending {
		return nil, ErrNotPending
	}

	locked := *o
	if err := credit(ctx, &locked); err != nil {
		return nil, err
	}

	in.To = StatusPaid
	applyTransition(o, in)

	out := *o
	return &out, nil
}

func applyTransition(o *Order, in TransitionInput) {
	o.Status = in.To
	if in.GatewayPaymentID != "" {
		o.GatewayPaymentID = nullable(in.GatewayPaymentID)
	}
	if in.PaymentMethod != "" {
		o.PaymentMethod = nullable(in.PaymentMethod)
	}
	if in.PaidAt != nil {
		paid := *in.PaidAt
		o.PaidAt = &paid
	}
	o.UpdatedAt = time.Now()
}

func (r *MemoryRepository) ListStalePending(_ context.Context, cut StaleCutoff, limit int) ([]Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []Order{}
	for _, o := range r.orders {
		if o.Status != StatusPending {
			continue
		}
		if o.ExpiresAt != nil && o.ExpiresAt.Before(cut.ExpiredBefore) ||
			o.ExpiresAt == nil && o.CreatedAt.Before(cut.UnlinkedBefore) {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return staleSince(out[i]).Before(staleSince(out[j])) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func staleSince(o Order) time.Time {
	if o.ExpiresAt != nil {
		return *o.ExpiresAt
	}
	return o.CreatedAt
}
