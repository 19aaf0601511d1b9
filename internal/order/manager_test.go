package order

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payhub/internal/activity"
	"payhub/internal/gateway"
	"payhub/internal/logger"
)

func TestMain(m *testing.M) {
	logger.Init()

	code := m.Run()
	os.Exit(code)
}

type fakeAdapter struct {
	provider gateway.Provider
	invoice  *gateway.Invoice
	err      error

	mu       sync.Mutex
	requests []gateway.InvoiceRequest
}

func (f *fakeAdapter) Provider() gateway.Provider { return f.provider }

func (f *fakeAdapter) CreateInvoice(_ context.Context, req gateway.InvoiceRequest) (*gateway.Invoice, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.invoice, nil
}

type fakeResolver struct {
	adapter gateway.Adapter
	methods []string
	err     error
}

func (r fakeResolver) Active(context.Context) (gateway.Adapter, gateway.Config, error) {
	if r.err != nil {
		return nil, gateway.Config{}, r.err
	}
	return r.adapter, gateway.Config{Provider: r.adapter.Provider(), IsActive: true, IsPrimary: true, SupportedMethods: r.methods}, nil
}

type capturingRecorder struct {
	mu     sync.Mutex
	events []activity.Event
}

func (c *capturingRecorder) Record(_ context.Context, e activity.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *capturingRecorder) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Type)
	}
	return out
}

var testLimits = Limits{MinAmount: 10000, MaxAmount: 10000000, InvoiceDuration: 24 * time.Hour}

func newTestManager(adapter *fakeAdapter) (*Manager, *MemoryRepository, *capturingRecorder) {
	repo := NewMemoryRepository()
	rec := &capturingRecorder{}
	return NewManager(repo, fakeResolver{adapter: adapter}, rec, testLimits), repo, rec
}

func xenditInvoice() *fakeAdapter {
	return &fakeAdapter{
		provider: gateway.ProviderXendit,
		invoice: &gateway.Invoice{
			ID:         "inv_123",
			InvoiceURL: "https://checkout.xendit.co/web/inv_123",
			ExpiresAt:  time.Now().Add(24 * time.Hour),
		},
	}
}

func TestCreateOrder_Success(t *testing.T) {
	adapter := xenditInvoice()
	m, repo, rec := newTestManager(adapter)

	o, err := m.CreateOrder(context.Background(), CreateOrderInput{
		UserID:        "usr_1",
		Amount:        10000,
		PaymentMethod: "QRIS",
		CustomerEmail: "ana@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, "xendit", o.GatewayProvider)
	require.NotNil(t, o.GatewayInvoiceID)
	assert.Equal(t, "inv_123", *o.GatewayInvoiceID)
	require.NotNil(t, o.GatewayInvoiceURL)
	require.NotNil(t, o.ExpiresAt)
	assert.True(t, ValidExternalID(o.ExternalID))

	require.Len(t, adapter.requests, 1)
	assert.Equal(t, o.ExternalID, adapter.requests[0].ExternalID)
	assert.Equal(t, int64(10000), adapter.requests[0].Amount)
	assert.Equal(t, 24*time.Hour, adapter.requests[0].ExpiresIn)

	stored, err := repo.GetByExternalID(context.Background(), o.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, stored.ID)
	assert.Equal(t, []string{activity.TopUpCreated}, rec.types())
}

func TestCreateOrder_AmountBounds(t *testing.T) {
	adapter := xenditInvoice()
	m, _, _ := newTestManager(adapter)

	for _, amount := range []int64{0, -5, 9999, 10000001} {
		_, err := m.CreateOrder(context.Background(), CreateOrderInput{UserID: "usr_1", Amount: amount})
		assert.ErrorIs(t, err, ErrValidation, "amount %d", amount)
	}
	assert.Empty(t, adapter.requests)

	_, err := m.CreateOrder(context.Background(), CreateOrderInput{UserID: "usr_1", Amount: 10000000})
	assert.NoError(t, err)
}

func TestCreateOrder_GatewayFailureKeepsPendingOrder(t *testing.T) {
	adapter := &fakeAdapter{
		provider: gateway.ProviderDoku,
		err:      fmt.Errorf("doku: %w: timeout", gateway.ErrProviderInternal),
	}
	m, repo, rec := newTestManager(adapter)

	o, err := m.CreateOrder(context.Background(), CreateOrderInput{UserID: "usr_1", Amount: 50000})
	require.Error(t, err)
	assert.ErrorIs(t, err, gateway.ErrProviderInternal)
	require.NotNil(t, o)

	stored, getErr := repo.GetByID(context.Background(), o.ID)
	require.NoError(t, getErr)
	assert.Equal(t, StatusPending, stored.Status)
	assert.Nil(t, stored.GatewayInvoiceID)
	assert.Nil(t, stored.GatewayInvoiceURL)
	assert.Equal(t, []string{activity.TopUpInvoiceFailed}, rec.types())
}

func TestCreateOrder_NoActiveGateway(t *testing.T) {
	repo := NewMemoryRepository()
	m := NewManager(repo, fakeResolver{err: gateway.ErrNoActiveGateway}, nil, testLimits)

	o, err := m.CreateOrder(context.Background(), CreateOrderInput{UserID: "usr_1", Amount: 10000})
	assert.Nil(t, o)
	assert.ErrorIs(t, err, gateway.ErrNoActiveGateway)

	orders, _ := repo.ListByUser(context.Background(), "usr_1", 10, 0)
	assert.Empty(t, orders)
}

func TestFinalize_OnlyOnce(t *testing.T) {
	m, _, rec := newTestManager(xenditInvoice())
	ctx := context.Background()

	o, err := m.CreateOrder(ctx, CreateOrderInput{UserID: "usr_1", Amount: 10000})
	require.NoError(t, err)

	res, err := m.Finalize(ctx, o.ID, FinalizeInput{Outcome: StatusPaid, GatewayPaymentID: "pay_1", PaymentMethod: "QRIS"})
	require.NoError(t, err)
	assert.False(t, res.AlreadyProcessed)
	assert.Equal(t, StatusPaid, res.Order.Status)
	require.NotNil(t, res.Order.PaidAt)
	require.NotNil(t, res.Order.GatewayPaymentID)
	assert.Equal(t, "pay_1", *res.Order.GatewayPaymentID)

	res, err = m.Finalize(ctx, o.ID, FinalizeInput{Outcome: StatusExpired})
	require.NoError(t, err)
	assert.True(t, res.AlreadyProcessed)
	assert.Equal(t, StatusPaid, res.Order.Status)

	assert.Equal(t, []string{activity.TopUpCreated, activity.TopUpPaid}, rec.types())
}

func TestFinalize_ConcurrentCallsTransitionOnce(t *testing.T) {
	m, _, _ := newTestManager(xenditInvoice())
	ctx := context.Background()

	o, err := m.CreateOrder(ctx, CreateOrderInput{UserID: "usr_1", Amount: 10000})
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	transitioned := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := m.Finalize(ctx, o.ID, FinalizeInput{Outcome: StatusPaid})
			assert.NoError(t, err)
			if err == nil && !res.AlreadyProcessed {
				mu.Lock()
				transitioned++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, transitioned)
}

func TestFinalize_Errors(t *testing.T) {
	m, _, _ := newTestManager(xenditInvoice())

	_, err := m.Finalize(context.Background(), "missing", FinalizeInput{Outcome: StatusPaid})
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = m.Finalize(context.Background(), "missing", FinalizeInput{Outcome: StatusPending})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCreateOrder_PaymentMethodMustBeSupported(t *testing.T) {
	adapter := xenditInvoice()
	repo := NewMemoryRepository()
	m := NewManager(repo, fakeResolver{adapter: adapter, methods: []string{"QRIS", "OVO"}}, nil, testLimits)
	ctx := context.Background()

	_, err := m.CreateOrder(ctx, CreateOrderInput{UserID: "usr_1", Amount: 10000, PaymentMethod: "VIRTUAL_ACCOUNT_BCA"})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, adapter.requests)

	orders, err := repo.ListByUser(ctx, "usr_1", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, orders)

	o, err := m.CreateOrder(ctx, CreateOrderInput{UserID: "usr_1", Amount: 10000, PaymentMethod: "ovo"})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, o.Status)

	_, err = m.CreateOrder(ctx, CreateOrderInput{UserID: "usr_1", Amount: 10000})
	assert.NoError(t, err)
}

func TestExpireStale(t *testing.T) {
	adapter := xenditInvoice()
	m, repo, _ := newTestManager(adapter)
	ctx := context.Background()

	adapter.invoice.ExpiresAt = time.Now().Add(-time.Minute)
	stale, err := m.CreateOrder(ctx, CreateOrderInput{UserID: "usr_1", Amount: 10000})
	require.NoError(t, err)

	adapter.invoice.ExpiresAt = time.Now().Add(time.Hour)
	fresh, err := m.CreateOrder(ctx, CreateOrderInput{UserID: "usr_1", Amount: 20000})
	require.NoError(t, err)

	n, err := m.ExpireStale(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, _ := repo.GetByID(ctx, stale.ID)
	assert.Equal(t, StatusExpired, got.Status)
	assert.Nil(t, got.PaidAt)

	got, _ = repo.GetByID(ctx, fresh.ID)
	assert.Equal(t, StatusPending, got.Status)

	n, err = m.ExpireStale(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestExpireStale_LeavesOrdersPendingDuringGrace(t *testing.T) {
	adapter := xenditInvoice()
	limits := testLimits
	limits.ExpiryGrace = 72 * time.Hour
	m := NewManager(NewMemoryRepository(), fakeResolver{adapter: adapter}, nil, limits)
	ctx := context.Background()

	deadline := time.Now().Add(-time.Minute)
	adapter.invoice.ExpiresAt = deadline
	o, err := m.CreateOrder(ctx, CreateOrderInput{UserID: "usr_1", Amount: 10000})
	require.NoError(t, err)

	n, err := m.ExpireStale(ctx, deadline.Add(71*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	res, err := m.Finalize(ctx, o.ID, FinalizeInput{Outcome: StatusPaid, GatewayPaymentID: "pay_late"})
	require.NoError(t, err)
	assert.False(t, res.AlreadyProcessed)
	assert.Equal(t, StatusPaid, res.Order.Status)
}

func TestExpireStale_AfterGrace(t *testing.T) {
	adapter := xenditInvoice()
	limits := testLimits
	limits.ExpiryGrace = 72 * time.Hour
	m := NewManager(NewMemoryRepository(), fakeResolver{adapter: adapter}, nil, limits)
	ctx := context.Background()

	deadline := time.Now().Add(-time.Minute)
	adapter.invoice.ExpiresAt = deadline
	o, err := m.CreateOrder(ctx, CreateOrderInput{UserID: "usr_1", Amount: 10000})
	require.NoError(t, err)

	n, err := m.ExpireStale(ctx, deadline.Add(73*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := m.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, got.Status)
}

func TestExpireStale_OrderWithoutInvoice(t *testing.T) {
	adapter := xenditInvoice()
	adapter.err = fmt.Errorf("xendit: %w: status 500", gateway.ErrProviderInternal)
	m, _, _ := newTestManager(adapter)
	ctx := context.Background()

	o, err := m.CreateOrder(ctx, CreateOrderInput{UserID: "usr_1", Amount: 10000})
	require.Error(t, err)
	require.NotNil(t, o)
	require.Nil(t, o.ExpiresAt)

	n, err := m.ExpireStale(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = m.ExpireStale(ctx, time.Now().Add(testLimits.InvoiceDuration+time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := m.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, got.Status)
}

func TestStaleCutoff(t *testing.T) {
	limits := testLimits
	limits.ExpiryGrace = 2 * time.Hour
	m := NewManager(NewMemoryRepository(), fakeResolver{}, nil, limits)
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	cut := m.StaleCutoff(now)
	assert.Equal(t, now.Add(-2*time.Hour), cut.ExpiredBefore)
	assert.Equal(t, now.Add(-26*time.Hour), cut.UnlinkedBefore)
}

func TestSettle(t *testing.T) {
	ctx := context.Background()

	t.Run("credits then marks paid", func(t *testing.T) {
		m, _, rec := newTestManager(xenditInvoice())
		o, err := m.CreateOrder(ctx, CreateOrderInput{UserID: "usr_1", Amount: 10000})
		require.NoError(t, err)

		var credited int64
		res, err := m.Settle(ctx, o.ID, FinalizeInput{GatewayPaymentID: "pay_1"}, func(_ context.Context, locked *Order) error {
			assert.Equal(t, StatusPending, locked.Status)
			credited = locked.Amount
			return nil
		})
		require.NoError(t, err)
		assert.False(t, res.AlreadyProcessed)
		assert.Equal(t, StatusPaid, res.Order.Status)
		require.NotNil(t, res.Order.PaidAt)
		assert.Equal(t, int64(10000), credited)
		assert.Contains(t, rec.types(), activity.TopUpPaid)
	})

	t.Run("credit failure keeps the order pending", func(t *testing.T) {
		m, _, _ := newTestManager(xenditInvoice())
		o, err := m.CreateOrder(ctx, CreateOrderInput{UserID: "usr_1", Amount: 10000})
		require.NoError(t, err)

		boom := errors.New("ledger down")
		_, err = m.Settle(ctx, o.ID, FinalizeInput{}, func(context.Context, *Order) error { return boom })
		assert.ErrorIs(t, err, boom)

		got, err := m.Get(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusPending, got.Status)
	})

	t.Run("expired order is never credited", func(t *testing.T) {
		m, _, _ := newTestManager(xenditInvoice())
		o, err := m.CreateOrder(ctx, CreateOrderInput{UserID: "usr_1", Amount: 10000})
		require.NoError(t, err)

		_, err = m.Finalize(ctx, o.ID, FinalizeInput{Outcome: StatusExpired})
		require.NoError(t, err)

		called := false
		res, err := m.Settle(ctx, o.ID, FinalizeInput{}, func(context.Context, *Order) error {
			called = true
			return nil
		})
		require.NoError(t, err)
		assert.True(t, res.AlreadyProcessed)
		assert.Equal(t, StatusExpired, res.Order.Status)
		assert.False(t, called)
	})

	t.Run("concurrent settle and expiry credit at most once", func(t *testing.T) {
		m, _, _ := newTestManager(xenditInvoice())
		o, err := m.CreateOrder(ctx, CreateOrderInput{UserID: "usr_1", Amount: 10000})
		require.NoError(t, err)

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			credits int
		)
		for i := 0; i < 10; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				_, _ = m.Settle(ctx, o.ID, FinalizeInput{}, func(context.Context, *Order) error {
					mu.Lock()
					credits++
					mu.Unlock()
					return nil
				})
			}()
			go func() {
				defer wg.Done()
				_, _ = m.Finalize(ctx, o.ID, FinalizeInput{Outcome: StatusExpired})
			}()
		}
		wg.Wait()

		got, err := m.Get(ctx, o.ID)
		require.NoError(t, err)
		if got.Status == StatusPaid {
			assert.Equal(t, 1, credits)
		} else {
			assert.Equal(t, StatusExpired, got.Status)
			assert.Zero(t, credits)
		}
	})
}

func TestGetForUser(t *testing.T) {
	m, _, _ := newTestManager(xenditInvoice())
	ctx := context.Background()

	o, err := m.CreateOrder(ctx, CreateOrderInput{UserID: "usr_1", Amount: 10000})
	require.NoError(t, err)

	got, err := m.GetForUser(ctx, "usr_1", o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	_, err = m.GetForUser(ctx, "usr_2", o.ID)
	assert.True(t, errors.Is(err, ErrOrderNotFound))

	_, err = m.GetByExternalID(ctx, "not-valid!")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}
