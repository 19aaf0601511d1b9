package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"payhub/internal/activity"
	"payhub/internal/gateway"
	"payhub/internal/logger"
	"payhub/internal/metrics"
)

const (
	maxPaymentMethodLen = 50
	staleBatchSize      = 500
)

// GatewayResolver returns the adapter new orders are created on and the
// config row that enables it.
type GatewayResolver interface {
	Active(ctx context.Context) (gateway.Adapter, gateway.Config, error)
}

type Limits struct {
	MinAmount       int64
	MaxAmount       int64
	InvoiceDuration time.Duration
	// ExpiryGrace keeps lapsed orders pending this long so late gateway
	// callbacks still find them pending.
	ExpiryGrace time.Duration
}

type Manager struct {
	repo     Repository
	gateways GatewayResolver
	activity activity.Recorder
	limits   Limits
	now      func() time.Time
}

func NewManager(repo Repository, gateways GatewayResolver, rec activity.Recorder, limits Limits) *Manager {
	if rec == nil {
		rec = activity.LogRecorder{}
	}
	return &Manager{
		repo:     repo,
		gateways: gateways,
		activity: rec,
		limits:   limits,
		now:      time.Now,
	}
}

func (m *Manager) validate(in CreateOrderInput) error {
	if in.UserID == "" {
		return fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if in.Amount < m.limits.MinAmount || in.Amount > m.limits.MaxAmount {
		return fmt.Errorf("%w: amount must be between %d and %d", ErrValidation, m.limits.MinAmount, m.limits.MaxAmount)
	}
	if len(in.PaymentMethod) > maxPaymentMethodLen {
		return fmt.Errorf("%w: payment method is too long", ErrValidation)
	}
	return nil
}

// CreateOrder persists a pending order and opens a hosted invoice for it.
// When the gateway call fails the order stays pending without gateway linkage
// and is returned together with the wrapped gateway error.
func (m *Manager) CreateOrder(ctx context.Context, in CreateOrderInput) (*Order, error) {
	if err := m.validate(in); err != nil {
		return nil, err
	}

	adapter, gw, err := m.gateways.Active(ctx)
	if err != nil {
		if errors.Is(err, gateway.ErrNoActiveGateway) {
			logger.Warn("top-up rejected, no active gateway", "user_id", in.UserID)
		}
		return nil, err
	}
	provider := adapter.Provider()
	if !gw.Supports(in.PaymentMethod) {
		return nil, fmt.Errorf("%w: payment method %q is not available on %s", ErrValidation, in.PaymentMethod, provider)
	}

	externalID, err := NewExternalID(m.now())
	if err != nil {
		return nil, fmt.Errorf("generate external id: %w", err)
	}

	o := &Order{
		ID:              uuid.NewString(),
		UserID:          in.UserID,
		Amount:          in.Amount,
		Status:          StatusPending,
		PaymentMethod:   nullable(in.PaymentMethod),
		GatewayProvider: provider.String(),
		ExternalID:      externalID,
	}
	if err := m.repo.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	metrics.RecordTopUpOrder(o.GatewayProvider, string(StatusPending))

	inv, err := adapter.CreateInvoice(ctx, gateway.InvoiceRequest{
		Amount:        o.Amount,
		Description:   fmt.Sprintf("Wallet top-up %s", o.ExternalID),
		ExternalID:    o.ExternalID,
		CustomerEmail: in.CustomerEmail,
		CustomerName:  in.CustomerName,
		PaymentMethod: in.PaymentMethod,
		ExpiresIn:     m.limits.InvoiceDuration,
	})
	if err != nil {
		kind := gateway.Kind(err)
		metrics.RecordGatewayError(o.GatewayProvider, kind)
		logger.Error("invoice creation failed",
			"order_id", o.ID,
			"external_id", o.ExternalID,
			"provider", o.GatewayProvider,
			"kind", kind,
			"error", err,
		)
		m.activity.Record(ctx, activity.Event{
			Type:     activity.TopUpInvoiceFailed,
			UserID:   o.UserID,
			OrderID:  o.ID,
			Provider: o.GatewayProvider,
			Amount:   o.Amount,
			Attrs:    map[string]string{"kind": kind},
		})
		return o, fmt.Errorf("create invoice: %w", err)
	}

	linked, err := m.repo.AttachInvoice(ctx, o.ID, InvoiceLink{
		InvoiceID:  inv.ID,
		InvoiceURL: inv.InvoiceURL,
		ExpiresAt:  inv.ExpiresAt,
	})
	if err != nil {
		return o, fmt.Errorf("attach invoice: %w", err)
	}

	logger.Info("top-up order created",
		"order_id", linked.ID,
		"external_id", linked.ExternalID,
		"provider", linked.GatewayProvider,
		"amount", linked.Amount,
		"invoice_id", inv.ID,
	)
	m.activity.Record(ctx, activity.Event{
		Type:     activity.TopUpCreated,
		UserID:   linked.UserID,
		OrderID:  linked.ID,
		Provider: linked.GatewayProvider,
		Amount:   linked.Amount,
	})

	return linked, nil
}

// Finalize moves a pending order to its terminal outcome. Calling it on an order
// that already left pending is not an error.
func (m *Manager) Finalize(ctx context.Context, orderID string, in FinalizeInput) (FinalizeResult, error) {
	if !in.Outcome.IsTerminal() {
		return FinalizeResult{}, fmt.Errorf("%w: %q is not a terminal status", ErrValidation, in.Outcome)
	}

	tin := TransitionInput{
		To:               in.Outcome,
		GatewayPaymentID: in.GatewayPaymentID,
		PaymentMethod:    in.PaymentMethod,
	}
	if in.Outcome == StatusPaid {
		paidAt := m.now()
		tin.PaidAt = &paidAt
	}

	o, err := m.repo.Transition(ctx, orderID, tin)
	if errors.Is(err, ErrNotPending) {
		return m.alreadyProcessed(ctx, orderID)
	}
	if err != nil {
		return FinalizeResult{}, err
	}

	m.finalized(ctx, o)
	return FinalizeResult{Order: o}, nil
}

// Settle marks a pending order paid once credit succeeds. The order is held
// for the whole call, so an expiry or failure cannot land between the credit
// and the transition. credit is not called for an order that already left
// pending.
func (m *Manager) Settle(ctx context.Context, orderID string, in FinalizeInput, credit CreditFunc) (FinalizeResult, error) {
	paidAt := m.now()
	o, err := m.repo.SettlePaid(ctx, orderID, TransitionInput{
		To:               StatusPaid,
		GatewayPaymentID: in.GatewayPaymentID,
		PaymentMethod:    in.PaymentMethod,
		PaidAt:           &paidAt,
	}, credit)
	if errors.Is(err, ErrNotPending) {
		return m.alreadyProcessed(ctx, orderID)
	}
	if err != nil {
		return FinalizeResult{}, err
	}

	m.finalized(ctx, o)
	return FinalizeResult{Order: o}, nil
}

func (m *Manager) alreadyProcessed(ctx context.Context, orderID string) (FinalizeResult, error) {
	current, err := m.repo.GetByID(ctx, orderID)
	if err != nil {
		return FinalizeResult{}, err
	}
	return FinalizeResult{Order: current, AlreadyProcessed: true}, nil
}

func (m *Manager) finalized(ctx context.Context, o *Order) {
	metrics.RecordTopUpOrder(o.GatewayProvider, string(o.Status))
	logger.Info("top-up order finalized",
		"order_id", o.ID,
		"external_id", o.ExternalID,
		"provider", o.GatewayProvider,
		"status", o.Status,
	)
	m.activity.Record(ctx, activity.Event{
		Type:     eventFor(o.Status),
		UserID:   o.UserID,
		OrderID:  o.ID,
		Provider: o.GatewayProvider,
		Amount:   o.Amount,
	})
}

func eventFor(s Status) string {
	switch s {
	case StatusPaid:
		return activity.TopUpPaid
	case StatusExpired:
		return activity.TopUpExpired
	default:
		return activity.TopUpFailed
	}
}

// StaleCutoff is the expiry cutoff as of now. An invoiced order becomes stale
// ExpiryGrace after its deadline. An order whose invoice was never created
// becomes stale ExpiryGrace after the deadline it would have had.
func (m *Manager) StaleCutoff(now time.Time) StaleCutoff {
	expired := now.Add(-m.limits.ExpiryGrace)
	return StaleCutoff{
		ExpiredBefore:  expired,
		UnlinkedBefore: expired.Add(-m.limits.InvoiceDuration),
	}
}

// ExpireStale expires one batch of pending orders that are stale as of now
// and returns how many it moved.
func (m *Manager) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	cut := m.StaleCutoff(now)
	stale, err := m.repo.ListStalePending(ctx, cut, staleBatchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, o := range stale {
		res, err := m.Finalize(ctx, o.ID, FinalizeInput{Outcome: StatusExpired})
		if err != nil {
			return expired, fmt.Errorf("expire %s: %w", o.ID, err)
		}
		if !res.AlreadyProcessed {
			expired++
		}
	}

	if expired > 0 {
		logger.Info("expired stale top-up orders",
			"count", expired,
			"expired_before", cut.ExpiredBefore,
			"unlinked_before", cut.UnlinkedBefore,
		)
	}
	return expired, nil
}

// RunSweeper calls ExpireStale every interval until ctx is done.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.ExpireStale(ctx, m.now()); err != nil {
				logger.WithError(err).Error("expiry sweep failed")
			}
		}
	}
}

func (m *Manager) Get(ctx context.Context, orderID string) (*Order, error) {
	return m.repo.GetByID(ctx, orderID)
}

// GetForUser hides other users' orders behind ErrOrderNotFound.
func (m *Manager) GetForUser(ctx context.Context, userID, orderID string) (*Order, error) {
	o, err := m.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

func (m *Manager) GetByExternalID(ctx context.Context, externalID string) (*Order, error) {
	if !ValidExternalID(externalID) {
		return nil, ErrOrderNotFound
	}
	return m.repo.GetByExternalID(ctx, externalID)
}

func (m *Manager) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error) {
	return m.repo.ListByUser(ctx, userID, limit, offset)
}
