package reconcile

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"payhub/internal/gateway"
	"payhub/internal/logger"
	"payhub/internal/metrics"
	"payhub/internal/order"
	"payhub/internal/wallet"
	"payhub/internal/webhook"
)

type Result string

const (
	ResultPaid             Result = "paid"
	ResultExpired          Result = "expired"
	ResultFailed           Result = "failed"
	ResultAlreadyProcessed Result = "already_processed"
	ResultIgnored          Result = "ignored"
)

type Outcome struct {
	Result     Result
	OrderID    string
	ExternalID string
	Credited   int64
}

type Orders interface {
	GetByExternalID(ctx context.Context, externalID string) (*order.Order, error)
	Finalize(ctx context.Context, orderID string, in order.FinalizeInput) (order.FinalizeResult, error)
	Settle(ctx context.Context, orderID string, in order.FinalizeInput, credit order.CreditFunc) (order.FinalizeResult, error)
}

type Ledger interface {
	Apply(ctx context.Context, ownerID string, in wallet.TransactionInput) (*wallet.Wallet, *wallet.Transaction, error)
}

// Processor turns verified gateway notifications into ledger credits and
// order transitions. Redelivered or concurrent notifications credit at most once.
type Processor struct {
	verifiers map[gateway.Provider]webhook.Verifier
	parsers   map[gateway.Provider]PayloadParser
	orders    Orders
	ledger    Ledger
}

func NewProcessor(verifiers map[gateway.Provider]webhook.Verifier, orders Orders, ledger Ledger) *Processor {
	return &Processor{
		verifiers: verifiers,
		parsers:   defaultParsers(),
		orders:    orders,
		ledger:    ledger,
	}
}

func (p *Processor) Reconcile(ctx context.Context, provider gateway.Provider, rawBody []byte, headers http.Header) (Outcome, error) {
	out, err := p.reconcile(ctx, provider, rawBody, headers)
	metrics.RecordWebhook(provider.String(), webhookLabel(out, err))
	return out, err
}

func webhookLabel(out Outcome, err error) string {
	switch {
	case err == nil:
		return string(out.Result)
	case errors.Is(err, webhook.ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, order.ErrOrderNotFound):
		return "not_found"
	case errors.Is(err, ErrMalformedPayload):
		return "malformed"
	default:
		return "error"
	}
}

func (p *Processor) reconcile(ctx context.Context, provider gateway.Provider, rawBody []byte, headers http.Header) (Outcome, error) {
	verifier, ok := p.verifiers[provider]
	parse, parseOK := p.parsers[provider]
	if !ok || !parseOK {
		return Outcome{}, fmt.Errorf("%w: %q", gateway.ErrUnknownProvider, provider)
	}

	if err := verifier.Verify(ctx, rawBody, headers); err != nil {
		if errors.Is(err, webhook.ErrUnauthenticated) {
			logger.Warn("webhook rejected", "provider", provider, "reason", err.Error())
		} else {
			logger.Error("webhook verification errored", "provider", provider, "error", err)
		}
		return Outcome{}, err
	}

	n, err := parse(rawBody)
	if err != nil {
		logger.Warn("webhook payload rejected", "provider", provider, "error", err)
		return Outcome{}, err
	}

	o, err := p.orders.GetByExternalID(ctx, n.ExternalID)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			logger.Warn("webhook for unknown order", "provider", provider, "external_id", n.ExternalID)
		}
		return Outcome{}, err
	}
	// An order only accepts notifications from the gateway it was created on.
	if o.GatewayProvider != provider.String() {
		logger.Warn("webhook provider does not match order",
			"provider", provider,
			"order_provider", o.GatewayProvider,
			"external_id", n.ExternalID,
		)
		return Outcome{}, order.ErrOrderNotFound
	}

	out := Outcome{OrderID: o.ID, ExternalID: o.ExternalID}
	if o.Status != order.StatusPending {
		logFinalized(provider, o, n)
		out.Result = ResultAlreadyProcessed
		return out, nil
	}

	switch n.Status {
	case PaymentSuccess:
		return p.settle(ctx, provider, o, n, out)
	case PaymentExpired:
		return p.closeUnpaid(ctx, provider, o, n, order.StatusExpired, ResultExpired, out)
	case PaymentFailed:
		return p.closeUnpaid(ctx, provider, o, n, order.StatusFailed, ResultFailed, out)
	default:
		logger.Info("webhook status ignored",
			"provider", provider,
			"order_id", o.ID,
			"gateway_status", n.RawStatus,
		)
		out.Result = ResultIgnored
		return out, nil
	}
}

// logFinalized flags a payment reported for an order that was closed unpaid.
// The wallet is not touched; support settles these by hand.
func logFinalized(provider gateway.Provider, o *order.Order, n Notification) {
	if n.Status == PaymentSuccess && o.Status != order.StatusPaid {
		metrics.RecordLatePayment(provider.String())
		logger.Error("payment reported for order closed without payment",
			"provider", provider,
			"order_id", o.ID,
			"external_id", o.ExternalID,
			"status", o.Status,
			"gateway_payment_id", n.GatewayPaymentID,
		)
		return
	}
	logger.Info("webhook for finalized order",
		"provider", provider,
		"order_id", o.ID,
		"status", o.Status,
		"gateway_status", n.RawStatus,
	)
}

// settle credits the wallet and flips the order to paid while the order is
// held, so a concurrent expiry cannot interleave. A duplicate ledger
// reference means an earlier attempt already credited this order.
func (p *Processor) settle(ctx context.Context, provider gateway.Provider, o *order.Order, n Notification, out Outcome) (Outcome, error) {
	if !n.PaidAmount.IsZero() && !n.PaidAmount.Equal(decimal.NewFromInt(o.Amount)) {
		metrics.RecordPaidAmountMismatch(provider.String())
		logger.Warn("paid amount differs from order amount",
			"provider", provider,
			"order_id", o.ID,
			"order_amount", o.Amount,
			"paid_amount", n.PaidAmount.String(),
		)
	}

	credited := int64(0)
	credit := func(ctx context.Context, locked *order.Order) error {
		_, entry, err := p.ledger.Apply(ctx, locked.UserID, wallet.TransactionInput{
			Type:             wallet.TypeTopUp,
			Amount:           locked.Amount,
			Description:      fmt.Sprintf("Top-up via %s (%s)", provider, locked.ExternalID),
			ReferenceID:      locked.ID,
			GatewayPaymentID: n.GatewayPaymentID,
			GatewayProvider:  provider.String(),
		})
		switch {
		case err == nil:
			credited = entry.Amount
		case errors.Is(err, wallet.ErrDuplicateReference):
			logger.Info("top-up already credited", "order_id", locked.ID, "external_id", locked.ExternalID)
		default:
			return fmt.Errorf("credit order %s: %w", locked.ID, err)
		}
		return nil
	}

	res, err := p.orders.Settle(ctx, o.ID, order.FinalizeInput{
		Outcome:          order.StatusPaid,
		GatewayPaymentID: n.GatewayPaymentID,
		PaymentMethod:    n.PaymentMethod,
	}, credit)
	if err != nil {
		return Outcome{}, fmt.Errorf("settle order %s: %w", o.ID, err)
	}

	if res.AlreadyProcessed {
		if res.Order != nil {
			logFinalized(provider, res.Order, n)
		}
		out.Result = ResultAlreadyProcessed
		return out, nil
	}

	out.Result = ResultPaid
	out.Credited = credited
	return out, nil
}

func (p *Processor) closeUnpaid(ctx context.Context, provider gateway.Provider, o *order.Order, n Notification, to order.Status, result Result, out Outcome) (Outcome, error) {
	res, err := p.orders.Finalize(ctx, o.ID, order.FinalizeInput{
		Outcome:          to,
		GatewayPaymentID: n.GatewayPaymentID,
		PaymentMethod:    n.PaymentMethod,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("finalize order %s: %w", o.ID, err)
	}
	if res.AlreadyProcessed {
		out.Result = ResultAlreadyProcessed
		return out, nil
	}

	logger.Info("top-up closed without payment", "provider", provider, "order_id", o.ID, "status", to)
	out.Result = result
	return out, nil
}
