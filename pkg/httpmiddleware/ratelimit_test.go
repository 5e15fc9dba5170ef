package httpmiddleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limited(max int, keyFunc func(*http.Request) string) http.Handler {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return RateLimit(RateLimitConfig{Max: max, Window: time.Minute, KeyFunc: keyFunc})(next)
}

func hit(handler http.Handler, remoteAddr string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit(t *testing.T) {
	t.Run("budget and headers", func(t *testing.T) {
		handler := limited(3, nil)

		for i := 0; i < 3; i++ {
			rec := hit(handler, "192.0.2.1:1000", nil)
			require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
			assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
			assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
		}

		rec := hit(handler, "192.0.2.1:1000", nil)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, rec.Header().Get("Retry-After"))

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, float64(429), body["code"])
		assert.Equal(t, "rate limit exceeded", body["message"])
	})

	t.Run("keys are independent", func(t *testing.T) {
		handler := limited(1, nil)

		assert.Equal(t, http.StatusOK, hit(handler, "10.0.0.1:1", nil).Code)
		assert.Equal(t, http.StatusOK, hit(handler, "10.0.0.2:1", nil).Code)
		// Same client, fresh socket: still one budget.
		assert.Equal(t, http.StatusTooManyRequests, hit(handler, "10.0.0.1:2", nil).Code)
	})

	t.Run("custom key function", func(t *testing.T) {
		handler := limited(1, func(r *http.Request) string {
			return r.Header.Get("X-API-Key")
		})

		assert.Equal(t, http.StatusOK, hit(handler, "10.0.0.1:1", map[string]string{"X-API-Key": "a"}).Code)
		assert.Equal(t, http.StatusTooManyRequests, hit(handler, "10.0.0.1:1", map[string]string{"X-API-Key": "a"}).Code)
		assert.Equal(t, http.StatusOK, hit(handler, "10.0.0.1:1", map[string]string{"X-API-Key": "b"}).Code)
	})

	t.Run("forwarded-for wins over socket address", func(t *testing.T) {
		handler := limited(1, nil)
		xff := map[string]string{"X-Forwarded-For": "203.0.113.50, 70.41.3.18"}

		assert.Equal(t, http.StatusOK, hit(handler, "192.168.1.1:1", xff).Code)
		assert.Equal(t, http.StatusTooManyRequests, hit(handler, "192.168.1.2:1", xff).Code)
	})
}

func TestLimiterSweep(t *testing.T) {
	l := newLimiter(RateLimitConfig{Max: 1, Window: time.Second})
	now := time.Now()

	_, _, ok := l.take("stale", now)
	require.True(t, ok)
	_, _, ok = l.take("fresh", now.Add(2*time.Second))
	require.True(t, ok)

	l.sweep(now.Add(2 * time.Second))

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.NotContains(t, l.keys, "stale")
	assert.Contains(t, l.keys, "fresh")
}
