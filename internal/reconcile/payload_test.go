package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseXendit(t *testing.T) {
	tests := []struct {
		status string
		want   PaymentStatus
	}{
		{"PAID", PaymentSuccess},
		{"SETTLED", PaymentSuccess},
		{"EXPIRED", PaymentExpired},
		{"FAILED", PaymentFailed},
		{"PENDING", PaymentOther},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			n, err := ParseXendit([]byte(`{"id":"inv_123","external_id":"TOPX","status":"` + tt.status + `","paid_amount":10000,"payment_method":"QRIS"}`))
			require.NoError(t, err)
			assert.Equal(t, tt.want, n.Status)
			assert.Equal(t, "TOPX", n.ExternalID)
			assert.Equal(t, "inv_123", n.GatewayPaymentID)
			assert.Equal(t, "QRIS", n.PaymentMethod)
			assert.Equal(t, "10000", n.PaidAmount.String())
		})
	}
}

func TestParseXendit_DecimalAmount(t *testing.T) {
	n, err := ParseXendit([]byte(`{"external_id":"TOPX","status":"PAID","paid_amount":10000.00}`))
	require.NoError(t, err)
	assert.True(t, n.PaidAmount.IsInteger())
	assert.Equal(t, int64(10000), n.PaidAmount.IntPart())
}

func TestParseXendit_Malformed(t *testing.T) {
	for _, raw := range []string{`not json`, `{"status":"PAID"}`, `{"external_id":"TOPX"}`, `{"external_id":"TOPX","status":"PAID","paid_amount":"abc"}`} {
		_, err := ParseXendit([]byte(raw))
		assert.ErrorIs(t, err, ErrMalformedPayload, raw)
	}
}

func TestParseDoku(t *testing.T) {
	raw := `{"order":{"invoice_number":"TOPY","amount":50000},"transaction":{"status":"SUCCESS","id":"trx-1"},"channel":{"id":"VIRTUAL_ACCOUNT_BCA"}}`
	n, err := ParseDoku([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, PaymentSuccess, n.Status)
	assert.Equal(t, "TOPY", n.ExternalID)
	assert.Equal(t, "trx-1", n.GatewayPaymentID)
	assert.Equal(t, "VIRTUAL_ACCOUNT_BCA", n.PaymentMethod)
	assert.Equal(t, int64(50000), n.PaidAmount.IntPart())

	n, err = ParseDoku([]byte(`{"order":{"invoice_number":"TOPY"},"transaction":{"status":"FAILED"}}`))
	require.NoError(t, err)
	assert.Equal(t, PaymentFailed, n.Status)

	_, err = ParseDoku([]byte(`{"order":{},"transaction":{"status":"SUCCESS"}}`))
	assert.ErrorIs(t, err, ErrMalformedPayload)
}
