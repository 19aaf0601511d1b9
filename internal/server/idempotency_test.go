package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payhub/internal/auth"
)

type idempotencyEnv struct {
	mr     *miniredis.Miniredis
	router *gin.Engine
	calls  int
	status int
}

func newIdempotencyEnv(t *testing.T) *idempotencyEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	env := &idempotencyEnv{mr: mr, status: http.StatusCreated}
	router := gin.New()
	router.Use(func(c *gin.Context) {
		auth.SetIdentity(c, c.GetHeader("X-User"), "", auth.RoleUser)
		c.Next()
	})
	router.POST("/topups", Idempotency(cache, time.Minute), func(c *gin.Context) {
		env.calls++
		c.JSON(env.status, gin.H{"call": env.calls})
	})
	env.router = router
	return env
}

func (e *idempotencyEnv) post(user, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/topups", strings.NewReader(`{"amount":10000}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User", user)
	if key != "" {
		req.Header.Set(idempotencyKeyHeader, key)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestIdempotency_WithoutHeaderPassesThrough(t *testing.T) {
	env := newIdempotencyEnv(t)

	assert.Equal(t, http.StatusCreated, env.post("usr_1", "").Code)
	assert.Equal(t, http.StatusCreated, env.post("usr_1", "").Code)
	assert.Equal(t, 2, env.calls)
}

func TestIdempotency_ReplaysFirstResponse(t *testing.T) {
	env := newIdempotencyEnv(t)

	first := env.post("usr_1", "key-1")
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Empty(t, first.Header().Get(idempotencyReplayed))

	second := env.post("usr_1", "key-1")
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get(idempotencyReplayed))
	assert.Contains(t, second.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, 1, env.calls)

	assert.True(t, env.mr.Exists(idempotencyPrefix+"user:usr_1:key-1"))
}

func TestIdempotency_KeysAreScopedPerUser(t *testing.T) {
	env := newIdempotencyEnv(t)

	env.post("usr_1", "shared")
	w := env.post("usr_2", "shared")

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 2, env.calls)
}

func TestIdempotency_InFlightConflict(t *testing.T) {
	env := newIdempotencyEnv(t)
	require.NoError(t, env.mr.Set(idempotencyPrefix+"user:usr_1:key-1", inProgressMarker))

	w := env.post("usr_1", "key-1")

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, 0, env.calls)
}

func TestIdempotency_ServerErrorsAreNotCached(t *testing.T) {
	env := newIdempotencyEnv(t)
	env.status = http.StatusBadGateway

	assert.Equal(t, http.StatusBadGateway, env.post("usr_1", "key-1").Code)
	assert.False(t, env.mr.Exists(idempotencyPrefix+"user:usr_1:key-1"))

	env.status = http.StatusCreated
	assert.Equal(t, http.StatusCreated, env.post("usr_1", "key-1").Code)
	assert.Equal(t, 2, env.calls)
}

func TestIdempotency_KeyTooLong(t *testing.T) {
	env := newIdempotencyEnv(t)

	w := env.post("usr_1", strings.Repeat("k", maxIdempotencyKeyLen+1))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, env.calls)
}

func TestIdempotency_StoreDown(t *testing.T) {
	env := newIdempotencyEnv(t)
	env.mr.Close()

	w := env.post("usr_1", "key-1")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 0, env.calls)
}
