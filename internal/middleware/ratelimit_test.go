package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func rateLimited(client redis.Cmdable, limit int) http.Handler {
	return RateLimitMiddleware(client, RateLimitConfig{
		RequestsPerWindow: limit,
		Window:            time.Minute,
		KeyPrefix:         "ratelimit",
	}, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func requestAs(owner, addr string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.RemoteAddr = addr
	if owner != "" {
		req = req.WithContext(context.WithValue(req.Context(), OwnerKey, owner))
	}
	return req
}

// Feature: hybrid-storefront, Property 12: Rate limiting blocks excessive requests
func TestProperty_RateLimitingBlocksExcessiveRequests(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	properties := gopter.NewProperties(nil)

	properties.Property("requests past the window limit get 429", prop.ForAll(
		func(limit int, excess int) bool {
			mr.FlushAll()
			handler := rateLimited(client, limit)

			ok, blocked := 0, 0
			for i := 0; i < limit+excess; i++ {
				w := httptest.NewRecorder()
				handler.ServeHTTP(w, requestAs("", "192.168.1.100:5123"))
				switch w.Code {
				case http.StatusOK:
					ok++
				case http.StatusTooManyRequests:
					blocked++
				}
			}
			return ok == limit && blocked == excess
		},
		gen.IntRange(1, 20),
		gen.IntRange(1, 10),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestRateLimitMiddleware_CountsPerOwner(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	handler := rateLimited(client, 1)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestAs("1", "10.0.0.1:1000"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	// same address, different owner
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, requestAs("U1", "10.0.0.1:1001"))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, requestAs("1", "10.0.0.2:1000"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	assert.True(t, mr.Exists("ratelimit:owner:1"))
	assert.Greater(t, mr.TTL("ratelimit:owner:1"), time.Duration(0))
}

func TestRateLimitMiddleware_FailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	mr.Close()

	w := httptest.NewRecorder()
	rateLimited(client, 1).ServeHTTP(w, requestAs("1", "10.0.0.1:1000"))
	assert.Equal(t, http.StatusOK, w.Code)
}
