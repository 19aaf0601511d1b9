package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payhub_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payhub_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	TopUpOrdersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payhub_topup_orders_total",
			Help: "Top-up order transitions by gateway and resulting status",
		},
		[]string{"provider", "status"},
	)

	WebhooksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payhub_webhooks_total",
			Help: "Gateway callbacks by provider and reconciliation result",
		},
		[]string{"provider", "result"},
	)

	LedgerTransactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payhub_ledger_transactions_total",
			Help: "Ledger entries written, by type",
		},
		[]string{"type"},
	)

	WalletCreditedAmountTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "payhub_wallet_credited_amount_total",
			Help: "Sum of positive ledger amounts in the smallest currency unit",
		},
	)

	GatewayErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payhub_gateway_errors_total",
			Help: "Gateway adapter failures by provider and error kind",
		},
		[]string{"provider", "kind"},
	)

	PaidAmountMismatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payhub_paid_amount_mismatch_total",
			Help: "Settled callbacks whose paid amount differs from the order amount",
		},
		[]string{"provider"},
	)

	LatePaymentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payhub_late_payments_total",
			Help: "Payment callbacks for orders already closed without payment",
		},
		[]string{"provider"},
	)

	SubscriptionsPurchasedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payhub_subscriptions_purchased_total",
			Help: "Subscription purchases paid from the wallet",
		},
		[]string{"plan"},
	)

	ActivityQueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "payhub_activity_queue_length",
			Help: "Current length of the activity event queue",
		},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordTopUpOrder(provider, status string) {
	TopUpOrdersTotal.WithLabelValues(provider, status).Inc()
}

func RecordWebhook(provider, result string) {
	WebhooksTotal.WithLabelValues(provider, result).Inc()
}

func RecordLedgerTransaction(txType string, amount int64) {
	LedgerTransactionsTotal.WithLabelValues(txType).Inc()
	if amount > 0 {
		WalletCreditedAmountTotal.Add(float64(amount))
	}
}

func RecordGatewayError(provider, kind string) {
	GatewayErrorsTotal.WithLabelValues(provider, kind).Inc()
}

func RecordPaidAmountMismatch(provider string) {
	PaidAmountMismatchTotal.WithLabelValues(provider).Inc()
}

func RecordLatePayment(provider string) {
	LatePaymentsTotal.WithLabelValues(provider).Inc()
}

func RecordSubscription(plan string) {
	SubscriptionsPurchasedTotal.WithLabelValues(plan).Inc()
}

func SetActivityQueueLength(n int64) {
	ActivityQueueLength.Set(float64(n))
}
