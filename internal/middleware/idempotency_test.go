package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carona/internal/middleware"
)

// newIdempotentRouter counts how often the handler behind the middleware runs.
func newIdempotentRouter(client *redis.Client, calls *int, status int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.NewAuthenticator("", "").Middleware())
	router.Use(middleware.NewIdempotency(client, time.Minute, nil).Middleware())
	router.POST("/v1/offers/:id/join", func(c *gin.Context) {
		*calls++
		c.JSON(status, gin.H{"call": *calls})
	})
	return router
}

func post(router *gin.Engine, userID, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/offers/o1/join", nil)
	req.Header.Set("X-User-ID", userID)
	if key != "" {
		req.Header.Set(middleware.IdempotencyHeader, key)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestIdempotency_DisabledWithoutClient(t *testing.T) {
	var calls int
	router := newIdempotentRouter(nil, &calls, http.StatusCreated)

	post(router, "rider-1", "k1")
	rec := post(router, "rider-1", "k1")

	assert.Equal(t, 2, calls)
	assert.Empty(t, rec.Header().Get(middleware.ReplayedHeader))
}

func TestIdempotency_ReplaysPerPrincipal(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, client.Ping(context.Background()).Err())
	t.Cleanup(func() { client.Close() })

	var calls int
	router := newIdempotentRouter(client, &calls, http.StatusCreated)
	key := uuid.New().String()

	first := post(router, "rider-1", key)
	require.Equal(t, http.StatusCreated, first.Code)

	replay := post(router, "rider-1", key)
	assert.Equal(t, http.StatusCreated, replay.Code)
	assert.Equal(t, "true", replay.Header().Get(middleware.ReplayedHeader))
	assert.JSONEq(t, first.Body.String(), replay.Body.String())
	assert.Equal(t, 1, calls)

	other := post(router, "rider-2", key)
	assert.Empty(t, other.Header().Get(middleware.ReplayedHeader), "keys are scoped to the principal")
	assert.Equal(t, 2, calls)

	post(router, "rider-1", "")
	assert.Equal(t, 3, calls, "requests without a key always run")
}

func TestIdempotency_ServerErrorsAreNotStored(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, client.Ping(context.Background()).Err())
	t.Cleanup(func() { client.Close() })

	var calls int
	router := newIdempotentRouter(client, &calls, http.StatusInternalServerError)
	key := uuid.New().String()

	post(router, "rider-1", key)
	rec := post(router, "rider-1", key)

	assert.Equal(t, 2, calls)
	assert.Empty(t, rec.Header().Get(middleware.ReplayedHeader))
}
