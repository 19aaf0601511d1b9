package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"payhub/internal/activity"
	"payhub/internal/logger"
	"payhub/internal/metrics"
	"payhub/internal/wallet"
)

type Ledger interface {
	Debit(ctx context.Context, ownerID string, in wallet.TransactionInput) (*wallet.Wallet, *wallet.Transaction, error)
	Credit(ctx context.Context, ownerID string, in wallet.TransactionInput) (*wallet.Wallet, *wallet.Transaction, error)
}

// TierChecker decides whether an account may buy a plan, e.g. against its current quota.
type TierChecker interface {
	CanPurchase(ctx context.Context, userID string, plan Plan) error
}

type AllowAll struct{}

func (AllowAll) CanPurchase(context.Context, string, Plan) error { return nil }

type Service struct {
	repo     Repository
	ledger   Ledger
	tiers    TierChecker
	activity activity.Recorder
	now      func() time.Time
}

func NewService(repo Repository, ledger Ledger, tiers TierChecker, rec activity.Recorder) *Service {
	if tiers == nil {
		tiers = AllowAll{}
	}
	if rec == nil {
		rec = activity.LogRecorder{}
	}
	return &Service{repo: repo, ledger: ledger, tiers: tiers, activity: rec, now: time.Now}
}

// Purchase debits the plan price and records the purchase. The ledger entry
// references the purchase id, so a purchase is charged at most once.
func (s *Service) Purchase(ctx context.Context, userID, planCode string) (*Purchase, error) {
	plan, err := FindPlan(planCode)
	if err != nil {
		return nil, err
	}
	if err := s.tiers.CanPurchase(ctx, userID, plan); err != nil {
		return nil, err
	}

	now := s.now()
	p := &Purchase{
		ID:         uuid.NewString(),
		UserID:     userID,
		PlanCode:   plan.Code,
		Amount:     plan.Price,
		Status:     StatusActive,
		ValidFrom:  now,
		ValidUntil: now.AddDate(0, 0, plan.PeriodDays),
	}

	_, entry, err := s.ledger.Debit(ctx, userID, wallet.TransactionInput{
		Type:        wallet.TypeSubscription,
		Amount:      plan.Price,
		Description: "Subscription " + plan.Name,
		ReferenceID: p.ID,
	})
	if err != nil {
		return nil, err
	}
	p.TransactionID = entry.ID

	if err := s.repo.Create(ctx, p); err != nil {
		logger.Error("subscription record failed after debit, refunding",
			"purchase_id", p.ID,
			"user_id", userID,
			"error", err,
		)
		if _, _, refundErr := s.refundLedger(ctx, p); refundErr != nil {
			logger.Error("subscription refund failed", "purchase_id", p.ID, "error", refundErr)
		}
		return nil, fmt.Errorf("create purchase: %w", err)
	}

	metrics.RecordSubscription(plan.Code)
	logger.Info("subscription purchased", "purchase_id", p.ID, "user_id", userID, "plan", plan.Code, "amount", plan.Price)
	s.activity.Record(ctx, activity.Event{
		Type:   activity.SubscriptionPurchased,
		UserID: userID,
		Amount: plan.Price,
		Attrs:  map[string]string{"plan": plan.Code, "purchase_id": p.ID},
	})

	return p, nil
}

// Refund credits the purchase amount back and marks the purchase refunded.
// A refund entry that already exists counts as credited.
func (s *Service) Refund(ctx context.Context, purchaseID string) (*Purchase, error) {
	p, err := s.repo.GetByID(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	if p.Status != StatusActive {
		return nil, ErrNotActive
	}

	if _, _, err := s.refundLedger(ctx, p); err != nil && !errors.Is(err, wallet.ErrDuplicateReference) {
		return nil, fmt.Errorf("refund purchase %s: %w", p.ID, err)
	}

	if err := s.repo.MarkRefunded(ctx, p.ID); err != nil {
		return nil, err
	}
	p.Status = StatusRefunded

	logger.Info("subscription refunded", "purchase_id", p.ID, "user_id", p.UserID, "amount", p.Amount)
	s.activity.Record(ctx, activity.Event{
		Type:   activity.SubscriptionRefunded,
		UserID: p.UserID,
		Amount: p.Amount,
		Attrs:  map[string]string{"plan": p.PlanCode, "purchase_id": p.ID},
	})
	return p, nil
}

func (s *Service) refundLedger(ctx context.Context, p *Purchase) (*wallet.Wallet, *wallet.Transaction, error) {
	return s.ledger.Credit(ctx, p.UserID, wallet.TransactionInput{
		Type:        wallet.TypeRefund,
		Amount:      p.Amount,
		Description: "Refund subscription " + p.PlanCode,
		ReferenceID: p.ID,
	})
}

func (s *Service) ListActive(ctx context.Context, userID string) ([]Purchase, error) {
	return s.repo.ListActiveByUser(ctx, userID, s.now())
}
