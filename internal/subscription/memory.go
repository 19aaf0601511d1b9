package subscription

import (
	"context"
	"sort"
	"sync"
	"time"
)

type MemoryRepository struct {
	mu        sync.RWMutex
	purchases map[string]Purchase
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{purchases: make(map[string]Purchase)}
}

func (r *MemoryRepository) Create(_ context.Context, p *Purchase) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	r.purchases[p.ID] = *p
	return nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*Purchase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.purchases[id]
	if !ok {
		return nil, ErrPurchaseNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) ListActiveByUser(_ context.Context, userID string, now time.Time) ([]Purchase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []Purchase{}
	for _, p := range r.purchases {
		if p.UserID == userID && p.Status == StatusActive && !p.ValidFrom.After(now) && !p.ValidUntil.Before(now) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) MarkRefunded(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.purchases[id]
	if !ok || p.Status != StatusActive {
		return ErrNotActive
	}
	p.Status = StatusRefunded
	p.UpdatedAt = time.Now()
	r.purchases[id] = p
	return nil
}
