package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"payhub/internal/logger"
	"payhub/internal/metrics"
)

const (
	TopUpCreated          = "topup.created"
	TopUpInvoiceFailed    = "topup.invoice_failed"
	TopUpPaid             = "topup.paid"
	TopUpExpired          = "topup.expired"
	TopUpFailed           = "topup.failed"
	SubscriptionPurchased = "subscription.purchased"
	SubscriptionRefunded  = "subscription.refunded"
)

const (
	eventsKey  = "activity:events"
	failedKey  = "activity:failed"
	maxTries   = 3
	popTimeout = 2 * time.Second

	outboxSize  = 1024
	pushTimeout = 100 * time.Millisecond
)

type Event struct {
	Type     string            `json:"type"`
	UserID   string            `json:"user_id,omitempty"`
	OrderID  string            `json:"order_id,omitempty"`
	Provider string            `json:"provider,omitempty"`
	Amount   int64             `json:"amount,omitempty"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	At       time.Time         `json:"at"`
	Tries    int               `json:"tries,omitempty"`
}

// Recorder is fire-and-forget: callers never see delivery failures.
type Recorder interface {
	Record(ctx context.Context, e Event)
}

// Sink is where the worker delivers queued events.
type Sink interface {
	Write(ctx context.Context, e Event) error
}

type LogSink struct{}

func (LogSink) Write(_ context.Context, e Event) error {
	logger.Info("activity",
		"type", e.Type,
		"user_id", e.UserID,
		"order_id", e.OrderID,
		"provider", e.Provider,
		"amount", e.Amount,
		"attrs", e.Attrs,
		"at", e.At,
	)
	return nil
}

// LogRecorder writes events straight to the log. Used when Redis is unavailable.
type LogRecorder struct{}

func (LogRecorder) Record(ctx context.Context, e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_ = LogSink{}.Write(ctx, e)
}

// RedisRecorder buffers events in memory and forwards them to a Redis list
// from a background goroutine. Record never waits on Redis.
type RedisRecorder struct {
	redis      *redis.Client
	sink       Sink
	outbox     chan Event
	retryDelay time.Duration
}

func NewRedisRecorder(client *redis.Client, sink Sink) *RedisRecorder {
	if sink == nil {
		sink = LogSink{}
	}
	return &RedisRecorder{
		redis:      client,
		sink:       sink,
		outbox:     make(chan Event, outboxSize),
		retryDelay: time.Second,
	}
}

func (r *RedisRecorder) Record(ctx context.Context, e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	select {
	case r.outbox <- e:
	default:
		logger.Warn("activity buffer full, logging inline", "type", e.Type)
		_ = LogSink{}.Write(ctx, e)
	}
}

// push moves one buffered event onto the Redis list.
func (r *RedisRecorder) push(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		logger.Errorf("Failed to marshal activity event %s: %v", e.Type, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()

	if err := r.redis.LPush(ctx, eventsKey, string(data)).Err(); err != nil {
		logger.WithError(err).Warn("activity queue unavailable, logging inline", "type", e.Type)
		_ = LogSink{}.Write(ctx, e)
	}
}

// Forward pushes buffered events to Redis until ctx is cancelled, then logs
// whatever is still buffered.
func (r *RedisRecorder) Forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			r.drainToLog()
			return
		case e := <-r.outbox:
			r.push(e)
		}
	}
}

func (r *RedisRecorder) drainToLog() {
	for {
		select {
		case e := <-r.outbox:
			_ = LogSink{}.Write(context.Background(), e)
		default:
			return
		}
	}
}

// Start forwards buffered events and drains the queue until ctx is cancelled.
func (r *RedisRecorder) Start(ctx context.Context) {
	logger.Info("Activity worker started")

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Forward(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			<-done
			logger.Info("Activity worker stopped")
			return
		default:
			r.processNext(ctx)
		}
	}
}

// processNext handles at most one event and reports whether one was popped.
func (r *RedisRecorder) processNext(ctx context.Context) bool {
	result, err := r.redis.BRPop(ctx, popTimeout, eventsKey).Result()
	if err != nil {
		return false
	}

	var e Event
	if err := json.Unmarshal([]byte(result[1]), &e); err != nil {
		logger.Errorf("Bad activity event data: %v", err)
		return true
	}

	e.Tries++
	if err := r.sink.Write(ctx, e); err != nil {
		logger.Errorf("Failed to deliver activity event %s (attempt %d): %v", e.Type, e.Tries, err)

		if e.Tries < maxTries {
			if r.retryDelay > 0 {
				time.Sleep(r.retryDelay)
			}
			data, _ := json.Marshal(e)
			r.redis.LPush(context.Background(), eventsKey, string(data))
		} else {
			r.saveFailed(e, err)
		}
	}
	return true
}

func (r *RedisRecorder) saveFailed(e Event, cause error) {
	failed := map[string]interface{}{
		"event": e,
		"error": cause.Error(),
		"time":  time.Now(),
	}
	data, _ := json.Marshal(failed)
	r.redis.LPush(context.Background(), failedKey, string(data))
	logger.Error("activity event parked", "type", e.Type, "order_id", e.OrderID, "error", cause)
}

// QueueLength also refreshes the queue gauge.
func (r *RedisRecorder) QueueLength(ctx context.Context) int64 {
	length, err := r.redis.LLen(ctx, eventsKey).Result()
	if err != nil {
		return 0
	}
	metrics.SetActivityQueueLength(length)
	return length
}

// ReportQueueLength samples the queue length every interval until ctx ends.
func (r *RedisRecorder) ReportQueueLength(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.QueueLength(ctx)
		}
	}
}

func (r *RedisRecorder) Close() error {
	return r.redis.Close()
}

func (e Event) String() string {
	return fmt.Sprintf("%s order=%s user=%s", e.Type, e.OrderID, e.UserID)
}
