package subscription

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUnknownPlan      = errors.New("unknown plan")
	ErrPurchaseNotFound = errors.New("purchase not found")
	ErrNotActive        = errors.New("purchase is not active")
	ErrTierLimit        = errors.New("plan not allowed for account")
)

type Repository interface {
	Create(ctx context.Context, p *Purchase) error
	GetByID(ctx context.Context, id string) (*Purchase, error)
	ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]Purchase, error)
	// MarkRefunded flips an active purchase to refunded, returning ErrNotActive otherwise.
	MarkRefunded(ctx context.Context, id string) error
}
