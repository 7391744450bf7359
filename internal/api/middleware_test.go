package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/FairForge/sitefence/internal/config"
)

func TestRateLimitMiddleware_AllowsWithinLimit(t *testing.T) {
	limiter := NewRateLimiter(10, 5)
	called := false
	handler := RateLimitMiddleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stonith", nil))

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "10", rec.Header().Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimitMiddleware_Returns429WhenLimited(t *testing.T) {
	limiter := NewRateLimiter(0.001, 2)
	require.True(t, limiter.Allow())
	require.True(t, limiter.Allow())

	called := false
	handler := RateLimitMiddleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stonith", nil))

	assert.False(t, called)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestServer_RateLimitsWebhook(t *testing.T) {
	f := newFixture(t, func(c *config.Config) {
		c.Server.RateLimit = 0.001
		c.Server.RateBurst = 1
	})

	first := f.post(t, "", webhookBody(t))
	second := f.post(t, "", webhookBody(t))

	assert.Equal(t, http.StatusUnauthorized, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)

	// probes are never limited
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestID(t *testing.T) {
	f := newFixture(t)

	t.Run("assigned", func(t *testing.T) {
		rec := httptest.NewRecorder()
		f.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		_, err := uuid.Parse(rec.Header().Get("X-Request-ID"))
		assert.NoError(t, err)
	})

	t.Run("propagated", func(t *testing.T) {
		id := uuid.NewString()
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("X-Request-ID", id)
		rec := httptest.NewRecorder()
		f.server.Handler().ServeHTTP(rec, req)

		assert.Equal(t, id, rec.Header().Get("X-Request-ID"))
	})

	t.Run("garbage replaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("X-Request-ID", "<script>")
		rec := httptest.NewRecorder()
		f.server.Handler().ServeHTTP(rec, req)

		assert.NotEqual(t, "<script>", rec.Header().Get("X-Request-ID"))
	})
}

func TestAccessLog(t *testing.T) {
	f := newFixture(t)

	rec := f.post(t, "", webhookBody(t))

	entries := f.logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/stonith", fields["path"])
	assert.EqualValues(t, http.StatusUnauthorized, fields["status"])
	assert.Equal(t, rec.Header().Get("X-Request-ID"), fields["request_id"])
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
}
