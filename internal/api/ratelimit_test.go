package api

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"
)

func TestTokenBucket(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tb := newTokenBucket(2, 1, start) // 2 burst, 1 token per second

	for i := 0; i < 2; i++ {
		if allowed, _, _ := tb.take(start); !allowed {
			t.Fatalf("take %d should be allowed", i)
		}
	}
	allowed, remaining, full := tb.take(start)
	if allowed || remaining != 0 {
		t.Errorf("take() = %v, %d, want denied with 0 remaining", allowed, remaining)
	}
	if want := start.Add(2 * time.Second); !full.Equal(want) {
		t.Errorf("full = %v, want %v", full, want)
	}

	if allowed, _, _ := tb.take(start.Add(time.Second)); !allowed {
		t.Error("a token should refill after one second")
	}
	if allowed, remaining, _ := tb.take(start.Add(time.Hour)); !allowed || remaining != 1 {
		t.Errorf("refill should cap at capacity, remaining = %d", remaining)
	}
}

func newTestLimiter(t *testing.T, rpm, burst int) (*RateLimiter, *time.Time) {
	t.Helper()
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerMinute: rpm, BurstSize: burst})
	t.Cleanup(rl.Close)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestRateLimiterAllow(t *testing.T) {
	rl, now := newTestLimiter(t, 60, 3)

	for i := 0; i < 3; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Error("fourth request should be denied")
	}
	if !rl.Allow("10.0.0.2") {
		t.Error("another IP has its own bucket")
	}

	*now = now.Add(time.Second)
	if !rl.Allow("10.0.0.1") {
		t.Error("one request per second should refill")
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl, now := newTestLimiter(t, 60, 1)
	rl.Allow("10.0.0.1")
	*now = now.Add(time.Minute)
	rl.Allow("10.0.0.2")
	*now = now.Add(5 * time.Minute)

	if n := rl.cleanup(); n != 1 {
		t.Errorf("cleanup() = %d, want 1", n)
	}
	if _, ok := rl.buckets["10.0.0.2"]; !ok {
		t.Error("recent bucket should survive cleanup")
	}
	rl.Close()
	rl.Close()
}

func TestRateLimiterMiddleware(t *testing.T) {
	rl, _ := newTestLimiter(t, 60, 2)
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/parse?q=john", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	for i := 0; i < 2; i++ {
		if w := send(); w.Code != http.StatusOK {
			t.Fatalf("request %d = %d", i, w.Code)
		}
	}
	w := send()
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("third request = %d, want 429", w.Code)
	}
	if w.Header().Get("X-RateLimit-Limit") != "60" || w.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("rate limit headers = %v", w.Header())
	}
	if n, err := strconv.Atoi(w.Header().Get("Retry-After")); err != nil || n < 1 {
		t.Errorf("Retry-After = %q", w.Header().Get("Retry-After"))
	}
}

func TestRateLimiterConcurrent(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerMinute: 6000, BurstSize: 50})
	defer rl.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				rl.Allow("10.0.0." + strconv.Itoa(n%4))
			}
		}(i)
	}
	wg.Wait()
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"remote addr", "192.0.2.1:1234", nil, "192.0.2.1"},
		{"forwarded wins", "192.0.2.1:1234", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, "203.0.113.5"},
		{"invalid forwarded", "192.0.2.1:1234", map[string]string{"X-Forwarded-For": "not-an-ip"}, "192.0.2.1"},
		{"real ip", "192.0.2.1:1234", map[string]string{"X-Real-IP": "198.51.100.7"}, "198.51.100.7"},
		{"ipv6", "[2001:db8::1]:443", nil, "2001:db8::1"},
		{"bare ip", "192.0.2.1", nil, "192.0.2.1"},
		{"garbage", "garbage", nil, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := getClientIP(req); got != tt.want {
				t.Errorf("getClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
