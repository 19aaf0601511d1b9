package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"payhub/internal/api"
	"payhub/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyHeader    = "Idempotency-Key"
	idempotencyReplayed     = "Idempotency-Replayed"
	idempotencyPrefix       = "idempotency:v1:"
	inProgressMarker        = "__in_progress__"
	maxIdempotencyKeyLen    = 255
	idempotencyStoreTimeout = 2 * time.Second
)

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        string `json:"body"`
}

type capturingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *capturingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *capturingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency replays the first response for a repeated Idempotency-Key.
// Keys are scoped per caller. Requests without the header pass through, and
// 5xx responses are not cached so the client can retry with the same key.
func Idempotency(cache *redis.Client, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(idempotencyKeyHeader)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLen {
			c.AbortWithStatusJSON(http.StatusBadRequest, api.ErrorResponse{Error: "Idempotency-Key too long"})
			return
		}

		cacheKey := idempotencyPrefix + UserKey(c) + ":" + key

		ctx, cancel := context.WithTimeout(c.Request.Context(), idempotencyStoreTimeout)
		defer cancel()

		cached, err := cache.Get(ctx, cacheKey).Result()
		switch {
		case err == nil:
			replay(c, key, cached)
			return
		case !errors.Is(err, redis.Nil):
			logger.Error("idempotency lookup failed", "key", key, "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, api.ErrorResponse{Error: "idempotency store failure"})
			return
		}

		reserved, err := cache.SetNX(ctx, cacheKey, inProgressMarker, ttl).Result()
		if err != nil {
			logger.Error("idempotency reservation failed", "key", key, "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, api.ErrorResponse{Error: "idempotency store failure"})
			return
		}
		if !reserved {
			c.AbortWithStatusJSON(http.StatusConflict, api.ErrorResponse{Error: "duplicate request currently processing"})
			return
		}

		w := &capturingWriter{ResponseWriter: c.Writer}
		c.Writer = w

		c.Next()

		persistCtx, persistCancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), idempotencyStoreTimeout)
		defer persistCancel()

		if w.Status() >= http.StatusInternalServerError {
			cache.Del(persistCtx, cacheKey)
			return
		}

		payload, err := json.Marshal(storedResponse{
			Status:      w.Status(),
			ContentType: w.Header().Get("Content-Type"),
			Body:        w.body.String(),
		})
		if err == nil {
			err = cache.Set(persistCtx, cacheKey, payload, ttl).Err()
		}
		if err != nil {
			logger.Error("failed to persist idempotent response", "key", key, "error", err)
			cache.Del(persistCtx, cacheKey)
		}
	}
}

func replay(c *gin.Context, key, cached string) {
	if cached == inProgressMarker {
		c.AbortWithStatusJSON(http.StatusConflict, api.ErrorResponse{Error: "duplicate request currently processing"})
		return
	}

	var stored storedResponse
	if err := json.Unmarshal([]byte(cached), &stored); err != nil {
		logger.Warn("failed to decode stored idempotent response", "key", key, "error", err)
		c.AbortWithStatusJSON(http.StatusConflict, api.ErrorResponse{Error: "duplicate request"})
		return
	}

	c.Header(idempotencyReplayed, "true")
	c.Data(stored.Status, stored.ContentType, []byte(stored.Body))
	c.Abort()
}
