package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordHTTPRequest(t *testing.T) {
	HTTPRequestsTotal.Reset()
	HTTPRequestDuration.Reset()

	RecordHTTPRequest("GET", "/api/v1/wallet", "200", 0.5)

	count := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/wallet", "200"))
	assert.Equal(t, float64(1), count)

	metric := HTTPRequestDuration.WithLabelValues("GET", "/api/v1/wallet").(prometheus.Histogram)
	metric.Observe(0.5)
}

func TestRecordHTTPRequestMultiple(t *testing.T) {
	HTTPRequestsTotal.Reset()

	RecordHTTPRequest("POST", "/webhooks/xendit", "200", 0.1)
	RecordHTTPRequest("POST", "/webhooks/xendit", "200", 0.2)
	RecordHTTPRequest("POST", "/webhooks/xendit", "401", 0.05)

	assert.Equal(t, float64(2), testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/webhooks/xendit", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/webhooks/xendit", "401")))
}

func TestRecordWebhook(t *testing.T) {
	WebhooksTotal.Reset()

	RecordWebhook("doku", "paid")
	RecordWebhook("doku", "already_processed")
	RecordWebhook("doku", "paid")

	assert.Equal(t, float64(2), testutil.ToFloat64(WebhooksTotal.WithLabelValues("doku", "paid")))
	assert.Equal(t, float64(1), testutil.ToFloat64(WebhooksTotal.WithLabelValues("doku", "already_processed")))
}

func TestRecordLedgerTransaction(t *testing.T) {
	LedgerTransactionsTotal.Reset()
	before := testutil.ToFloat64(WalletCreditedAmountTotal)

	RecordLedgerTransaction("topup", 10000)
	RecordLedgerTransaction("subscription", -4000)

	assert.Equal(t, float64(1), testutil.ToFloat64(LedgerTransactionsTotal.WithLabelValues("topup")))
	assert.Equal(t, float64(1), testutil.ToFloat64(LedgerTransactionsTotal.WithLabelValues("subscription")))
	assert.Equal(t, before+10000, testutil.ToFloat64(WalletCreditedAmountTotal))
}

func TestRecordTopUpOrderAndGatewayError(t *testing.T) {
	TopUpOrdersTotal.Reset()
	GatewayErrorsTotal.Reset()

	RecordTopUpOrder("xendit", "pending")
	RecordGatewayError("xendit", "provider_internal")

	assert.Equal(t, float64(1), testutil.ToFloat64(TopUpOrdersTotal.WithLabelValues("xendit", "pending")))
	assert.Equal(t, float64(1), testutil.ToFloat64(GatewayErrorsTotal.WithLabelValues("xendit", "provider_internal")))
}

func TestSetActivityQueueLength(t *testing.T) {
	SetActivityQueueLength(7)
	assert.Equal(t, float64(7), testutil.ToFloat64(ActivityQueueLength))
}

func TestRecordLatePayment(t *testing.T) {
	LatePaymentsTotal.Reset()

	RecordLatePayment("xendit")

	assert.Equal(t, float64(1), testutil.ToFloat64(LatePaymentsTotal.WithLabelValues("xendit")))
}
